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

package codec

import (
	"bytes"
	"strings"
	"testing"
)

func roundTrip(t *testing.T, name Name, data []byte) []byte {
	t.Helper()

	c, err := ByName(name)
	if err != nil {
		t.Fatalf("%s: ByName: %v", name, err)
	}

	var encoded bytes.Buffer
	if _, err := c.Encode(&encoded, bytes.NewReader(data)); err != nil {
		t.Fatalf("%s: Encode: %v", name, err)
	}

	var decoded bytes.Buffer
	if _, err := c.Decode(&decoded, bytes.NewReader(encoded.Bytes())); err != nil {
		t.Fatalf("%s: Decode: %v", name, err)
	}

	if !bytes.Equal(decoded.Bytes(), data) {
		t.Errorf("%s: round trip mismatch, want %q, got %q", name, data, decoded.Bytes())
	}
	return encoded.Bytes()
}

func TestRoundTripAllCodecs(t *testing.T) {
	data := bytes.Repeat([]byte("The quick brown fox jumps over the lazy dog. "), 5)

	for _, name := range []Name{SevenBit, EightBit, Binary, QuotedPrintable, Base64, UUEncode} {
		roundTrip(t, name, data)
	}
}

func TestBase64LineLength(t *testing.T) {
	data := bytes.Repeat([]byte{0x41}, 1000)
	encoded := roundTrip(t, Base64, data)

	for _, line := range strings.Split(strings.TrimRight(string(encoded), "\r\n"), "\r\n") {
		if len(line) > maxLineLength {
			t.Errorf("line exceeds %d bytes: %d", maxLineLength, len(line))
		}
	}
}

func TestBase64DecodeIgnoresWhitespaceAndUnknownBytes(t *testing.T) {
	c := base64Codec{}
	var decoded bytes.Buffer
	// "aGVsbG8=" decodes to "hello"; interleave spaces, tabs and a stray
	// '*' that a broken mail gateway might introduce.
	mangled := "aGV s\tb*G8=\r\n"
	if _, err := c.Decode(&decoded, strings.NewReader(mangled)); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.String() != "hello" {
		t.Errorf("got %q, want %q", decoded.String(), "hello")
	}
}

func TestQuotedPrintableEmpty(t *testing.T) {
	roundTrip(t, QuotedPrintable, nil)
}

func TestUUEncodeFraming(t *testing.T) {
	encoded := roundTrip(t, UUEncode, []byte("hello, world"))
	if !strings.HasPrefix(string(encoded), "begin 644 attachment\n") {
		t.Errorf("missing begin line: %q", encoded)
	}
	if !strings.Contains(string(encoded), "end\n") {
		t.Errorf("missing end line: %q", encoded)
	}
}

func TestByNameUnknown(t *testing.T) {
	if _, err := ByName("does-not-exist"); err == nil {
		t.Error("expected error for unknown codec name")
	}
}
