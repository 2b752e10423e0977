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

package word

import (
	"testing"

	"github.com/go-vmime/mailkit/mime/charset"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	test := func(text string, enc Encoding) {
		t.Helper()

		w := NewWithCharset([]byte(text), charset.UTF8)
		encoded := Encode(w, enc)

		decoded, err := Decode(encoded)
		if err != nil {
			t.Fatalf("%q: Decode: %v", encoded, err)
		}
		got, err := decoded.GetDecodedText()
		if err != nil {
			t.Fatalf("%q: GetDecodedText: %v", encoded, err)
		}
		if got != text {
			t.Errorf("round trip mismatch: want %q, got %q (encoded as %q)", text, got, encoded)
		}
	}

	test("café au lait", EncodingB)
	test("café au lait", EncodingQ)
	test("plain ascii stays plain", EncodingB)
}

func TestEncodeASCIIPassthrough(t *testing.T) {
	w := New([]byte("Hello, World!"))
	got := Encode(w, EncodingQ)
	if got != "Hello, World!" {
		t.Errorf("expected passthrough, got %q", got)
	}
}

func TestChooseEncodingPicksByDensity(t *testing.T) {
	// "café au lait" has one non-ASCII codepoint (2 UTF-8 bytes) in a
	// 13-byte buffer: 2/13 is under the 20% threshold, so Q stays cheaper
	// than B's fixed per-byte expansion.
	if enc := ChooseEncoding(NewWithCharset([]byte("café au lait"), charset.UTF8)); enc != EncodingQ {
		t.Errorf("ChooseEncoding(%q) = %c, want Q", "café au lait", enc)
	}

	// Mostly non-ASCII (CJK-style dense high-bit bytes): above the
	// threshold, B wins.
	dense := NewWithCharset([]byte("日本語テスト"), charset.UTF8)
	if enc := ChooseEncoding(dense); enc != EncodingB {
		t.Errorf("ChooseEncoding(dense) = %c, want B", enc)
	}
}

func TestDecodeTextMixed(t *testing.T) {
	encoded := Encode(NewWithCharset([]byte("café"), charset.UTF8), EncodingB)
	input := "Hello " + encoded + " world"

	text, err := DecodeText(input)
	if err != nil {
		t.Fatalf("DecodeText: %v", err)
	}
	got := text.String()
	want := "Hello café world"
	if got != want {
		t.Errorf("want %q, got %q", want, got)
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, err := Decode("=?utf-8?X?bad-encoding?="); err == nil {
		t.Error("expected error for unknown encoding letter")
	}
}
