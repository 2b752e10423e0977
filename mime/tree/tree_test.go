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

package tree

import (
	"strings"
	"testing"

	"github.com/go-vmime/mailkit/platform"
)

func TestParseSimpleMessage(t *testing.T) {
	raw := "From: a@example.org\r\nTo: b@example.org\r\nSubject: hi\r\nContent-Type: text/plain; charset=utf-8\r\nContent-Transfer-Encoding: 7bit\r\n\r\nhello world\r\n"

	msg, err := ParseMessage(platform.Default, []byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	subj, err := msg.Header.Subject()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subj != "hi" {
		t.Errorf("got subject %q", subj)
	}

	text, err := msg.Body.DecodedText()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "hello world") {
		t.Errorf("got body %q", text)
	}
}

func TestParseMultipartMessage(t *testing.T) {
	raw := "Content-Type: multipart/mixed; boundary=BOUND\r\n\r\n" +
		"preamble\r\n" +
		"--BOUND\r\n" +
		"Content-Type: text/plain\r\n\r\n" +
		"part one\r\n" +
		"--BOUND\r\n" +
		"Content-Type: text/plain\r\n\r\n" +
		"part two\r\n" +
		"--BOUND--\r\n" +
		"epilogue\r\n"

	msg, err := ParseMessage(platform.Default, []byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !msg.ContentType().IsMultipart() {
		t.Fatal("expected multipart content type")
	}
	if msg.Body.Count() != 2 {
		t.Fatalf("expected 2 child parts, got %d", msg.Body.Count())
	}

	text, err := msg.Body.Parts[0].Body.DecodedText()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "part one") {
		t.Errorf("got %q", text)
	}
}

func TestWalk(t *testing.T) {
	raw := "Content-Type: multipart/mixed; boundary=BOUND\r\n\r\n" +
		"--BOUND\r\n" +
		"Content-Type: text/plain\r\n\r\n" +
		"leaf\r\n" +
		"--BOUND--\r\n"

	msg, err := ParseMessage(platform.Default, []byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	count := 0
	msg.Walk(func(p *BodyPart) { count++ })
	if count != 2 {
		t.Errorf("expected 2 parts visited (root + leaf), got %d", count)
	}
}

func TestGenerateRoundTrip(t *testing.T) {
	msg := NewMessage()
	msg.Header.SetSubject("round trip")

	out, err := msg.Generate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Subject:") {
		t.Errorf("missing Subject header in output: %q", out)
	}
}

func TestIsValidBoundary(t *testing.T) {
	if !IsValidBoundary("simple-boundary_123") {
		t.Error("expected valid")
	}
	if IsValidBoundary("") {
		t.Error("empty should be invalid")
	}
	if IsValidBoundary(strings.Repeat("a", 71)) {
		t.Error("over-length boundary should be invalid")
	}
}
