/*
Maddy Mail Server - Composable all-in-one email server.
Copyright © 2019-2020 Max Mazurov <fox.cpp@disroot.org>, Maddy Mail Server contributors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package types

import (
	"testing"
	"time"
)

func TestParseMediaType(t *testing.T) {
	mt, err := ParseMediaType("Multipart/Mixed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mt.Equal(MultipartMixed) {
		t.Errorf("got %v", mt)
	}
	if !mt.IsMultipart() {
		t.Error("expected IsMultipart")
	}
}

func TestParseMediaTypeMalformed(t *testing.T) {
	if _, err := ParseMediaType("not-a-media-type"); err == nil {
		t.Error("expected error for missing '/'")
	}
}

func TestParseDateTimeModern(t *testing.T) {
	ts, err := ParseDateTime("Mon, 2 Jan 2006 15:04:05 -0700")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.Year() != 2006 {
		t.Errorf("got year %d", ts.Year())
	}
}

func TestParseDateTimeObsoleteZone(t *testing.T) {
	ts, err := ParseDateTime("2 Jan 2006 15:04:05 EST")
	if err != nil {
		t.Fatalf("unexpected error parsing obsolete zone: %v", err)
	}
	_, offset := ts.Zone()
	if offset != -5*3600 {
		t.Errorf("got offset %d", offset)
	}
}

func TestParseDateTimeTwoDigitYearPivot(t *testing.T) {
	ts, err := ParseDateTime("Wed, 2 Jan 86 10:00:00 +0000")
	if err != nil {
		t.Fatalf("unexpected error parsing 2-digit year: %v", err)
	}
	if ts.Year() != 1986 {
		t.Errorf("got year %d, want 1986", ts.Year())
	}

	ts, err = ParseDateTime("Fri, 2 Jan 04 10:00:00 +0000")
	if err != nil {
		t.Fatalf("unexpected error parsing 2-digit year: %v", err)
	}
	if ts.Year() != 2004 {
		t.Errorf("got year %d, want 2004", ts.Year())
	}
}

func TestParseDateTimeTwoDigitYearWithObsoleteZone(t *testing.T) {
	ts, err := ParseDateTime("2 Jan 86 15:04:05 EST")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.Year() != 1986 {
		t.Errorf("got year %d, want 1986", ts.Year())
	}
	_, offset := ts.Zone()
	if offset != -5*3600 {
		t.Errorf("got offset %d", offset)
	}
}

func TestFormatDateTimeRoundTrip(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.FixedZone("", 0))
	formatted := FormatDateTime(now)
	parsed, err := ParseDateTime(formatted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !parsed.Equal(now) {
		t.Errorf("want %v, got %v", now, parsed)
	}
}

func TestMessageIDRoundTrip(t *testing.T) {
	id := GenerateMessageID(time.Now(), "mail.example.org", 1234)
	str := id.String()

	parsed, err := ParseMessageID(str)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Domain != "mail.example.org" {
		t.Errorf("got domain %q", parsed.Domain)
	}
}

func TestParseMessageIDMalformed(t *testing.T) {
	if _, err := ParseMessageID("<no-at-sign>"); err == nil {
		t.Error("expected error for missing '@'")
	}
}
