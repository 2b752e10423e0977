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

// Package types implements the small leaf value types the MIME tree and
// header packages build on: MediaType (original_source/src/mediaType.hpp),
// DateTime (RFC 2822 §3.3, including obsolete zone names) and MessageID
// (original_source/src/messageId.hpp).
package types

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-vmime/mailkit/mkerrors"
)

// MediaType is a content-type's type/subtype pair
// (original_source/src/mediaType.hpp), e.g. "text/plain" or "multipart/mixed".
type MediaType struct {
	Type    string
	SubType string
}

// ParseMediaType parses a "type/subtype" string.
func ParseMediaType(s string) (MediaType, error) {
	s = strings.TrimSpace(s)
	idx := strings.IndexByte(s, '/')
	if idx == -1 {
		return MediaType{}, mkerrors.New(mkerrors.KindParse, "types.ParseMediaType",
			fmt.Errorf("missing '/' in media type %q", s), nil)
	}
	return MediaType{
		Type:    strings.ToLower(strings.TrimSpace(s[:idx])),
		SubType: strings.ToLower(strings.TrimSpace(s[idx+1:])),
	}, nil
}

func (m MediaType) String() string { return m.Type + "/" + m.SubType }

func (m MediaType) IsEmpty() bool { return m.Type == "" && m.SubType == "" }

func (m MediaType) Equal(other MediaType) bool {
	return strings.EqualFold(m.Type, other.Type) && strings.EqualFold(m.SubType, other.SubType)
}

// IsMultipart reports whether this is a multipart/* media type — the signal
// mime/tree uses to decide whether a body parses as a boundary-delimited
// tree of parts or a single leaf payload.
func (m MediaType) IsMultipart() bool { return strings.EqualFold(m.Type, "multipart") }

// IsMessage reports whether this is message/rfc822 or message/global, whose
// body is itself a nested MIME message rather than arbitrary content.
func (m MediaType) IsMessage() bool {
	return strings.EqualFold(m.Type, "message") &&
		(strings.EqualFold(m.SubType, "rfc822") || strings.EqualFold(m.SubType, "global"))
}

// Well-known media types used as defaults throughout the MIME tree.
var (
	TextPlain     = MediaType{Type: "text", SubType: "plain"}
	MultipartMixed = MediaType{Type: "multipart", SubType: "mixed"}
	ApplicationOctetStream = MediaType{Type: "application", SubType: "octet-stream"}
	MessageRFC822 = MediaType{Type: "message", SubType: "rfc822"}
)

// obsoleteZones maps the RFC 822 military/alphabetic zone names still seen
// in the wild (RFC 2822 §4.3) to a UTC offset in minutes. RFC 2822 mandates
// that generators never produce them but parsers must still accept them.
var obsoleteZones = map[string]int{
	"UT": 0, "GMT": 0, "Z": 0,
	"EST": -5 * 60, "EDT": -4 * 60,
	"CST": -6 * 60, "CDT": -5 * 60,
	"MST": -7 * 60, "MDT": -6 * 60,
	"PST": -8 * 60, "PDT": -7 * 60,
}

// twoDigitYearRe matches a month name followed by a bare 2-digit year, e.g.
// "Jan 86" — deliberately anchored to the month so a 4-digit year's leading
// two digits never match (the trailing \b fails inside "2006").
var twoDigitYearRe = regexp.MustCompile(`(?i)(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+(\d{2})\b`)

// rewriteTwoDigitYear expands a 2-digit year to 4 digits, windowed at pivot
// 50 per RFC 2822 §4.3's obsolete-date tolerance: 00-49 resolve to 2000-2049,
// 50-99 resolve to 1950-1999.
func rewriteTwoDigitYear(s string) string {
	return twoDigitYearRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := twoDigitYearRe.FindStringSubmatch(m)
		yr, err := strconv.Atoi(sub[2])
		if err != nil {
			return m
		}
		century := 1900
		if yr < 50 {
			century = 2000
		}
		return sub[1] + " " + strconv.Itoa(century+yr)
	})
}

// ParseDateTime parses an RFC 2822 §3.3 date-time value, falling back to
// obsolete zone names, a 2-digit year and missing weekday/seconds per §4.3's
// "obsolete syntax" forms a tolerant parser must still accept.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	layouts := []string{
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"2 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04 -0700",
		"2 Jan 2006 15:04 -0700",
	}

	// Try the literal string, then the same string with any 2-digit year
	// windowed to 4 digits.
	candidates := []string{s, rewriteTwoDigitYear(s)}
	for _, candidate := range candidates {
		for _, layout := range layouts {
			if t, err := time.Parse(layout, candidate); err == nil {
				return t, nil
			}
		}
	}

	// Retry after substituting a trailing obsolete zone name with its
	// numeric offset, on both candidates so a date combining a 2-digit
	// year and an obsolete zone name still resolves.
	for _, candidate := range candidates {
		fields := strings.Fields(candidate)
		if len(fields) == 0 {
			continue
		}
		last := fields[len(fields)-1]
		if offsetMin, ok := obsoleteZones[strings.ToUpper(last)]; ok {
			fields[len(fields)-1] = formatOffset(offsetMin)
			rewritten := strings.Join(fields, " ")
			for _, layout := range layouts {
				if t, err := time.Parse(layout, rewritten); err == nil {
					return t, nil
				}
			}
		}
	}

	return time.Time{}, mkerrors.New(mkerrors.KindParse, "types.ParseDateTime",
		fmt.Errorf("unrecognized date-time %q", s), nil)
}

func formatOffset(minutes int) string {
	sign := "+"
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	return fmt.Sprintf("%s%02d%02d", sign, minutes/60, minutes%60)
}

// FormatDateTime renders t in the non-obsolete RFC 2822 §3.3 form mailkit
// always generates (day names and numeric zones only — generators must
// never emit obsolete forms).
func FormatDateTime(t time.Time) string {
	return t.Format("Mon, 2 Jan 2006 15:04:05 -0700")
}

// MessageID is an RFC 2822 "msg-id": an opaque token wrapped in angle
// brackets, generated fresh for every outgoing message
// (original_source/src/messageId.hpp).
type MessageID struct {
	LocalPart string
	Domain    string
}

func (id MessageID) String() string {
	return fmt.Sprintf("<%s@%s>", id.LocalPart, id.Domain)
}

// ParseMessageID strips the surrounding angle brackets and splits on '@'.
func ParseMessageID(s string) (MessageID, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "<")
	s = strings.TrimSuffix(s, ">")
	idx := strings.IndexByte(s, '@')
	if idx == -1 {
		return MessageID{}, mkerrors.New(mkerrors.KindParse, "types.ParseMessageID",
			fmt.Errorf("malformed message-id %q", s), nil)
	}
	return MessageID{LocalPart: s[:idx], Domain: s[idx+1:]}, nil
}

// GenerateMessageID builds a fresh, collision-resistant message-id from the
// current time, the hostname and a crypto/rand hex suffix — the same
// entropy recipe maddy's framework/buffer.BufferInFile uses for unique
// temp-file names, applied here to message-id generation instead.
func GenerateMessageID(now time.Time, hostname string, pid int) MessageID {
	var nonce [8]byte
	_, _ = rand.Read(nonce[:])

	local := fmt.Sprintf("%d.%d.%s", now.UnixNano(), pid, hex.EncodeToString(nonce[:]))
	return MessageID{LocalPart: local, Domain: hostname}
}

// ContentLength is a thin typed wrapper used by mime/header's Content-Length
// field, parsed as a plain decimal.
type ContentLength int64

func ParseContentLength(s string) (ContentLength, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, mkerrors.New(mkerrors.KindParse, "types.ParseContentLength", err, nil)
	}
	return ContentLength(n), nil
}

func (c ContentLength) String() string { return strconv.FormatInt(int64(c), 10) }
