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

package compose

import (
	"strings"
	"testing"

	"github.com/go-vmime/mailkit/mime/address"
	"github.com/go-vmime/mailkit/mime/tree"
	"github.com/go-vmime/mailkit/mime/types"
	"github.com/go-vmime/mailkit/mime/word"
	"github.com/go-vmime/mailkit/platform"
)

func TestConstructFlatMessage(t *testing.T) {
	b := NewMessageBuilder(platform.Default)
	b.From = address.NewMailbox("alice@example.org")
	b.To.Append(address.NewMailbox("bob@example.org"))
	b.Subject = word.Text{Words: []word.Word{word.New([]byte("hello"))}}
	b.ConstructTextPart(types.TextPlain, "hi there", "")

	msg, err := b.Construct()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.ContentType().IsMultipart() {
		t.Fatal("expected a flat message with no attachments")
	}

	out, err := msg.Generate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "From: alice@example.org") {
		t.Errorf("missing From header: %q", out)
	}
	if !strings.Contains(out, "bob@example.org") {
		t.Errorf("missing To header: %q", out)
	}

	text, err := msg.Body.DecodedText()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "hi there") {
		t.Errorf("got body %q", text)
	}
}

func TestConstructWithAttachment(t *testing.T) {
	b := NewMessageBuilder(platform.Default)
	b.From = address.NewMailbox("alice@example.org")
	b.To.Append(address.NewMailbox("bob@example.org"))
	b.ConstructTextPart(types.TextPlain, "see attached", "")
	b.Attach(NewAttachment("notes.txt", types.MediaType{Type: "text", SubType: "plain"}, strings.NewReader("file contents")))

	msg, err := b.Construct()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !msg.ContentType().IsMultipart() {
		t.Fatal("expected multipart/mixed with an attachment present")
	}
	if msg.Body.Count() != 2 {
		t.Fatalf("expected 2 parts (text + attachment), got %d", msg.Body.Count())
	}

	attachments := FindAttachments(msg)
	if len(attachments) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(attachments))
	}
	if attachments[0].Filename != "notes.txt" {
		t.Errorf("got filename %q", attachments[0].Filename)
	}

	decoded, err := attachments[0].Part.Body.Contents.DecodedBytes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(decoded) != "file contents" {
		t.Errorf("got attachment contents %q", decoded)
	}
}

func TestFindTextPart(t *testing.T) {
	b := NewMessageBuilder(platform.Default)
	b.From = address.NewMailbox("alice@example.org")
	b.To.Append(address.NewMailbox("bob@example.org"))
	b.ConstructTextPart(types.TextPlain, "body text", "")
	b.Attach(NewAttachment("a.bin", types.ApplicationOctetStream, strings.NewReader("\x00\x01")))

	msg, err := b.Construct()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	part := FindTextPart(msg)
	if part == nil {
		t.Fatal("expected to find a text part")
	}
	text, err := part.Body.DecodedText()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "body text") {
		t.Errorf("got %q", text)
	}
}

func TestRoundTripThroughParse(t *testing.T) {
	b := NewMessageBuilder(platform.Default)
	b.From = address.NewMailbox("alice@example.org")
	b.To.Append(address.NewMailbox("bob@example.org"))
	b.ConstructTextPart(types.TextPlain, "round trip body", "")

	msg, err := b.Construct()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rendered, err := msg.Generate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reparsed, err := tree.ParseMessage(platform.Default, []byte(rendered))
	if err != nil {
		t.Fatalf("unexpected error reparsing: %v", err)
	}

	text, err := reparsed.Body.DecodedText()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "round trip body") {
		t.Errorf("got %q after reparse", text)
	}
}
