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

// Package charset implements the named-charset registry and streaming/
// in-memory transcoding engine (spec §4.2), grounded on
// original_source/src/charset.hpp for the contract and wired to
// golang.org/x/text/encoding + golang.org/x/text/encoding/ianaindex + htmlindex
// instead of hand-rolled codepage tables — the same x/text stack the teacher
// already pulls in for framework/address's IDNA/PRECIS handling.
package charset

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/go-vmime/mailkit/mkerrors"
)

// Charset is a canonical charset name, compared case-insensitively (spec §3
// "charset — name plus conversion capability").
type Charset string

// US-ASCII and UTF-8 are the two charsets that never require a real
// conversion: ASCII is a strict subset of every charset mailkit supports,
// UTF-8 is the Go-native string encoding.
const (
	USASCII Charset = "us-ascii"
	UTF8    Charset = "utf-8"
)

// Canonical returns the lower-cased, trimmed form used for registry lookups
// and comparisons.
func (c Charset) Canonical() string {
	return strings.ToLower(strings.TrimSpace(string(c)))
}

func (c Charset) String() string { return string(c) }

// lookup resolves a charset name to an x/text Encoding. IANA names
// (ISO-8859-1, windows-1252, ...) go through ianaindex; names that only the
// HTML Standard's alias table recognizes (legacy browser names like
// "latin1") fall back to htmlindex.
func lookup(name string) (encoding.Encoding, error) {
	norm := Charset(name).Canonical()
	if norm == "" || norm == string(USASCII) || norm == "ascii" || norm == string(UTF8) {
		return encoding.Nop, nil
	}

	if enc, err := ianaindex.MIME.Encoding(norm); err == nil && enc != nil {
		return enc, nil
	}
	if enc, err := ianaindex.IANA.Encoding(norm); err == nil && enc != nil {
		return enc, nil
	}
	if enc, err := htmlindex.Get(norm); err == nil && enc != nil {
		return enc, nil
	}

	return nil, mkerrors.New(mkerrors.KindCharsetConversion, "charset.lookup", fmt.Errorf("unknown charset %q", name), nil)
}

// Convert performs an in-memory transcoding of in from source to dest (spec
// §4.2 "convert(bytes, from, to) → bytes").
func Convert(in []byte, from, to Charset) ([]byte, error) {
	if from.Canonical() == to.Canonical() {
		return in, nil
	}

	u, err := toUTF8(in, from)
	if err != nil {
		return nil, err
	}
	return fromUTF8(u, to)
}

// ConvertStream performs a streaming transcoding, preserving partial
// multibyte sequences across reads (spec §4.2 streaming contract) by
// wrapping the x/text Decoder/Encoder Transformers, which already buffer
// incomplete trailing sequences internally.
func ConvertStream(in io.Reader, out io.Writer, from, to Charset) error {
	if from.Canonical() == to.Canonical() {
		_, err := io.Copy(out, in)
		return err
	}

	decEnc, err := lookup(string(from))
	if err != nil {
		return err
	}
	encEnc, err := lookup(string(to))
	if err != nil {
		return err
	}

	r := in
	if decEnc != encoding.Nop {
		r = decEnc.NewDecoder().Reader(in)
	}
	w := out
	var encoder io.WriteCloser
	if encEnc != encoding.Nop {
		encoder = encEnc.NewEncoder().Writer(out)
		w = encoder
	}

	if _, err := io.Copy(w, r); err != nil {
		return mkerrors.New(mkerrors.KindCharsetConversion, "charset.ConvertStream", err, nil)
	}
	if encoder != nil {
		if err := encoder.Close(); err != nil {
			return mkerrors.New(mkerrors.KindCharsetConversion, "charset.ConvertStream", err, nil)
		}
	}
	return nil
}

func toUTF8(in []byte, from Charset) ([]byte, error) {
	enc, err := lookup(string(from))
	if err != nil {
		return nil, err
	}
	if enc == encoding.Nop {
		return in, nil
	}
	out, err := enc.NewDecoder().Bytes(in)
	if err != nil {
		return nil, mkerrors.New(mkerrors.KindCharsetConversion, "charset.decode",
			fmt.Errorf("charset %s: %w", from, err), map[string]interface{}{"charset": string(from)})
	}
	return out, nil
}

func fromUTF8(in []byte, to Charset) ([]byte, error) {
	enc, err := lookup(string(to))
	if err != nil {
		return nil, err
	}
	if enc == encoding.Nop {
		return in, nil
	}
	out, err := enc.NewEncoder().Bytes(in)
	if err != nil {
		return nil, mkerrors.New(mkerrors.KindCharsetConversion, "charset.encode",
			fmt.Errorf("charset %s: %w", to, err), map[string]interface{}{"charset": string(to)})
	}
	return out, nil
}

// DecodeToString is a convenience wrapper returning a Go string (UTF-8)
// decoded from in using the named source charset.
func DecodeToString(in []byte, from Charset) (string, error) {
	out, err := toUTF8(in, from)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// EncodeFromString is the inverse of DecodeToString.
func EncodeFromString(s string, to Charset) ([]byte, error) {
	return fromUTF8([]byte(s), to)
}

// Available reports whether name resolves to a known charset without
// performing any conversion.
func Available(name string) bool {
	_, err := lookup(name)
	return err == nil
}
