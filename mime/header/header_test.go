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

package header

import (
	"strings"
	"testing"

	"github.com/go-vmime/mailkit/mime/types"
)

func TestParseUnfoldsContinuations(t *testing.T) {
	raw := "Subject: Hello\r\n World\r\nFrom: a@example.org\r\n"
	h, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Count() != 2 {
		t.Fatalf("expected 2 fields, got %d", h.Count())
	}
	f, ok := h.Find("subject")
	if !ok {
		t.Fatal("expected subject field")
	}
	if f.Body != "Hello World" {
		t.Errorf("got body %q", f.Body)
	}
}

func TestHeaderSetAppend(t *testing.T) {
	h := New()
	h.Set("Subject", "first")
	h.Set("Subject", "second")
	if h.Count() != 1 {
		t.Fatalf("expected Set to replace, got %d fields", h.Count())
	}
	f, _ := h.Find("subject")
	if f.Body != "second" {
		t.Errorf("got %q", f.Body)
	}
}

func TestHeaderFindAll(t *testing.T) {
	h := New()
	h.Append("Received", "from a")
	h.Append("Received", "from b")
	all := h.FindAll("received")
	if len(all) != 2 {
		t.Fatalf("expected 2, got %d", len(all))
	}
}

func TestGenerateFolding(t *testing.T) {
	h := New()
	h.Set("Subject", strings.Repeat("word ", 30))
	out := h.Generate()
	for _, line := range strings.Split(strings.TrimRight(out, "\r\n"), "\r\n") {
		if len(line) > foldLineLength+10 {
			t.Errorf("line too long: %d: %q", len(line), line)
		}
	}
}

func TestContentTypeRoundTrip(t *testing.T) {
	h := New()
	h.SetContentType(types.MultipartMixed, map[string]string{"boundary": "abc123"})

	mt, v, err := h.ContentType()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mt.Equal(types.MultipartMixed) {
		t.Errorf("got %v", mt)
	}
	if v.Get("boundary") != "abc123" {
		t.Errorf("got boundary %q", v.Get("boundary"))
	}
}

func TestParseValueRFC2231Continuation(t *testing.T) {
	v, err := ParseValue(`attachment; filename*0="long fi"; filename*1="lename.txt"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Get("filename") != "long filename.txt" {
		t.Errorf("got %q", v.Get("filename"))
	}
}

func TestParseValueRFC2231Extended(t *testing.T) {
	v, err := ParseValue(`attachment; filename*=UTF-8''caf%C3%A9.txt`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Get("filename") != "café.txt" {
		t.Errorf("got %q", v.Get("filename"))
	}
}

func TestSubjectRoundTrip(t *testing.T) {
	h := New()
	h.SetSubject("café meeting")

	got, err := h.Subject()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "café meeting" {
		t.Errorf("got %q", got)
	}
}

func TestKindOf(t *testing.T) {
	if KindOf("To") != KindAddressList {
		t.Errorf("expected To to be KindAddressList")
	}
	if KindOf("X-Custom-Header") != KindDefault {
		t.Errorf("expected unknown field to default")
	}
}
