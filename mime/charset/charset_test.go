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

package charset

import (
	"bytes"
	"testing"
)

func TestConvertRoundTrip(t *testing.T) {
	test := func(from, to Charset, in string) {
		t.Helper()

		encoded, err := EncodeFromString(in, from)
		if err != nil {
			t.Fatalf("%s: encode: %v", from, err)
		}
		decoded, err := DecodeToString(encoded, from)
		if err != nil {
			t.Fatalf("%s: decode: %v", from, err)
		}
		if decoded != in {
			t.Errorf("%s: round trip mismatch, want %q, got %q", from, in, decoded)
		}

		converted, err := Convert(encoded, from, to)
		if err != nil {
			t.Fatalf("%s -> %s: %v", from, to, err)
		}
		back, err := Convert(converted, to, from)
		if err != nil {
			t.Fatalf("%s -> %s: %v", to, from, err)
		}
		decodedBack, err := DecodeToString(back, from)
		if err != nil {
			t.Fatalf("%s: decode: %v", from, err)
		}
		if decodedBack != in {
			t.Errorf("%s -> %s -> %s: want %q, got %q", from, to, from, in, decodedBack)
		}
	}

	test(UTF8, USASCII, "hello world")
	test("iso-8859-1", UTF8, "café")
	test("windows-1252", UTF8, "’quoted’")
}

func TestConvertNoopSameCharset(t *testing.T) {
	in := []byte("unchanged")
	out, err := Convert(in, UTF8, "UTF-8")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(in, out) {
		t.Errorf("expected passthrough, got %q", out)
	}
}

func TestConvertUnknownCharset(t *testing.T) {
	_, err := Convert([]byte("x"), "bogus-charset-9000", UTF8)
	if err == nil {
		t.Fatal("expected error for unknown charset")
	}
}

func TestConvertStream(t *testing.T) {
	var out bytes.Buffer
	in := bytes.NewBufferString("plain ascii text")
	if err := ConvertStream(in, &out, USASCII, UTF8); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "plain ascii text" {
		t.Errorf("got %q", out.String())
	}
}

func TestAvailable(t *testing.T) {
	if !Available("utf-8") {
		t.Error("utf-8 should be available")
	}
	if !Available("ISO-8859-1") {
		t.Error("ISO-8859-1 should be available")
	}
	if Available("not-a-real-charset") {
		t.Error("bogus charset reported available")
	}
}

func TestCanonical(t *testing.T) {
	if Charset(" UTF-8 ").Canonical() != "utf-8" {
		t.Errorf("got %q", Charset(" UTF-8 ").Canonical())
	}
}
