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

// Package codec implements the RFC 2045 content-transfer-encodings (spec
// §4.1): 7bit, 8bit, binary, quoted-printable, base64 and uuencode. The
// quoted-printable and base64 codecs are thin wrappers around the standard
// library's mime/quotedprintable and encoding/base64 — no pack example or
// ecosystem library offers anything beyond what the standard library already
// does for these two well-specified IETF encodings, so reaching past stdlib
// here would just be reinventing it (see DESIGN.md). uuencode has no
// standard-library support at all and is hand-rolled to the historical
// `begin mode name` / `end` framing vmime's contentHandler still emits for
// legacy interoperability.
package codec

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"mime/quotedprintable"

	"github.com/go-vmime/mailkit/mkerrors"
)

// Name identifies a content-transfer-encoding (spec §3 "encoding — 7bit,
// 8bit, binary, base64, quoted-printable, x-uuencode").
type Name string

const (
	SevenBit        Name = "7bit"
	EightBit        Name = "8bit"
	Binary          Name = "binary"
	QuotedPrintable Name = "quoted-printable"
	Base64          Name = "base64"
	UUEncode        Name = "x-uuencode"
)

// maxLineLength is the RFC 2045 §6.7 hard limit content-transfer-encoded
// lines must respect, used by the base64 writer. (The uuencode writer emits
// its own fixed 45-byte, 61-character lines.)
const maxLineLength = 76

// Decoder turns an encoded stream back into raw octets.
type Decoder interface {
	Decode(w io.Writer, r io.Reader) (n int64, err error)
}

// Encoder turns raw octets into an encoded stream.
type Encoder interface {
	Encode(w io.Writer, r io.Reader) (n int64, err error)
}

// Codec bundles an Encoder/Decoder pair under a single registered Name.
type Codec interface {
	Name() Name
	Encoder
	Decoder
}

// ByName looks up the built-in codec for name. Unknown names are reported as
// mkerrors.KindNoEncoderAvailable, matching the registry.Registry convention
// used elsewhere for unknown header-field/parameter names.
func ByName(name Name) (Codec, error) {
	switch name {
	case SevenBit:
		return identityCodec{SevenBit}, nil
	case EightBit:
		return identityCodec{EightBit}, nil
	case Binary:
		return identityCodec{Binary}, nil
	case QuotedPrintable:
		return qpCodec{}, nil
	case Base64:
		return base64Codec{}, nil
	case UUEncode:
		return uuCodec{}, nil
	default:
		return nil, mkerrors.New(mkerrors.KindNoEncoderAvailable, "codec.ByName",
			fmt.Errorf("no codec registered for %q", name), map[string]interface{}{"encoding": string(name)})
	}
}

// identityCodec implements 7bit/8bit/binary, which are framing-only: the
// octets on the wire are identical to the decoded octets, so encode/decode
// is a straight copy.
type identityCodec struct{ name Name }

func (c identityCodec) Name() Name { return c.name }

func (c identityCodec) Encode(w io.Writer, r io.Reader) (int64, error) { return io.Copy(w, r) }
func (c identityCodec) Decode(w io.Writer, r io.Reader) (int64, error) { return io.Copy(w, r) }

type qpCodec struct{}

func (qpCodec) Name() Name { return QuotedPrintable }

func (qpCodec) Encode(w io.Writer, r io.Reader) (int64, error) {
	qw := quotedprintable.NewWriter(w)
	n, err := io.Copy(qw, r)
	if err != nil {
		return n, err
	}
	return n, qw.Close()
}

func (qpCodec) Decode(w io.Writer, r io.Reader) (int64, error) {
	qr := quotedprintable.NewReader(r)
	return io.Copy(w, qr)
}

type base64Codec struct{}

func (base64Codec) Name() Name { return Base64 }

func (base64Codec) Encode(w io.Writer, r io.Reader) (int64, error) {
	lw := &lineWrapper{w: w, limit: maxLineLength}
	enc := base64.NewEncoder(base64.StdEncoding, lw)
	n, err := io.Copy(enc, r)
	if err != nil {
		return n, err
	}
	if err := enc.Close(); err != nil {
		return n, err
	}
	return n, lw.finish()
}

func (base64Codec) Decode(w io.Writer, r io.Reader) (int64, error) {
	dec := base64.NewDecoder(base64.StdEncoding, &lineStripper{r: bufio.NewReader(r)})
	return io.Copy(w, dec)
}

// lineWrapper inserts a CRLF every `limit` bytes written, used to keep
// base64 output within the RFC 2045 line-length limit.
type lineWrapper struct {
	w     io.Writer
	limit int
	col   int
}

func (lw *lineWrapper) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		room := lw.limit - lw.col
		chunk := p
		if len(chunk) > room {
			chunk = chunk[:room]
		}
		n, err := lw.w.Write(chunk)
		total += n
		if err != nil {
			return total, err
		}
		p = p[n:]
		lw.col += n
		if lw.col >= lw.limit {
			if _, err := lw.w.Write([]byte("\r\n")); err != nil {
				return total, err
			}
			lw.col = 0
		}
	}
	return total, nil
}

func (lw *lineWrapper) finish() error {
	if lw.col > 0 {
		_, err := lw.w.Write([]byte("\r\n"))
		return err
	}
	return nil
}

// lineStripper removes line breaks and any other byte outside the base64
// alphabet from input before decoding (spec §4.1: base64 decode ignores
// whitespace and unknown bytes), since encoding/base64's decoder treats any
// non-alphabet byte as invalid input.
type lineStripper struct {
	r *bufio.Reader
}

func (ls *lineStripper) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		b, err := ls.r.ReadByte()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}
		if !isBase64Byte(b) {
			continue
		}
		p[n] = b
		n++
	}
	return n, nil
}

// isBase64Byte reports whether b belongs to the standard base64 alphabet or
// is the '=' padding character.
func isBase64Byte(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	case b == '+' || b == '/' || b == '=':
		return true
	default:
		return false
	}
}
