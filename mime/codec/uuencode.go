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
	"bufio"
	"fmt"
	"io"

	"github.com/go-vmime/mailkit/mkerrors"
)

// uuCodec implements the legacy Unix uuencode framing
// (`begin <mode> <name>` ... `end`) that some old mail clients still emit
// under the x-uuencode content-transfer-encoding. There is no standard
// library or ecosystem package for this; it predates MIME entirely.
type uuCodec struct{}

func (uuCodec) Name() Name { return UUEncode }

const uuDefaultMode = "644"
const uuDefaultName = "attachment"

func (uuCodec) Encode(w io.Writer, r io.Reader) (int64, error) {
	if _, err := fmt.Fprintf(w, "begin %s %s\n", uuDefaultMode, uuDefaultName); err != nil {
		return 0, err
	}

	var total int64
	buf := make([]byte, 45) // 45 bytes -> 60 encoded chars, the uuencode line unit
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if werr := writeUULine(w, buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return total, err
		}
	}

	if _, err := fmt.Fprint(w, "`\nend\n"); err != nil {
		return total, err
	}
	return total, nil
}

func writeUULine(w io.Writer, chunk []byte) error {
	if err := writeUUByte(w, len(chunk)); err != nil {
		return err
	}
	for i := 0; i < len(chunk); i += 3 {
		var b [3]byte
		n := copy(b[:], chunk[i:])
		c0 := b[0] >> 2
		c1 := (b[0]<<4)&0x30 | b[1]>>4
		c2 := (b[1]<<2)&0x3c | b[2]>>6
		c3 := b[2] & 0x3f
		for _, c := range []byte{c0, c1, c2, c3} {
			if err := writeUUByte(w, int(c)); err != nil {
				return err
			}
		}
		_ = n
	}
	_, err := w.Write([]byte{'\n'})
	return err
}

func writeUUByte(w io.Writer, v int) error {
	c := byte(v&0x3f) + ' '
	if c == ' ' {
		c = '`'
	}
	_, err := w.Write([]byte{c})
	return err
}

func (uuCodec) Decode(w io.Writer, r io.Reader) (int64, error) {
	br := bufio.NewReader(r)
	if err := skipUUHeader(br); err != nil {
		return 0, err
	}

	var total int64
	for {
		line, err := br.ReadString('\n')
		if len(line) == 0 && err != nil {
			return total, mkerrors.New(mkerrors.KindParse, "codec.uuencode.Decode", io.ErrUnexpectedEOF, nil)
		}
		trimmed := trimEOL(line)
		if trimmed == "end" || trimmed == "" {
			break
		}

		n := uuDecodeByte(trimmed[0])
		if n == 0 {
			if err != nil {
				break
			}
			continue
		}
		decoded, derr := uuDecodeLine(trimmed[1:], n)
		if derr != nil {
			return total, mkerrors.New(mkerrors.KindParse, "codec.uuencode.Decode", derr, nil)
		}
		if _, werr := w.Write(decoded); werr != nil {
			return total, werr
		}
		total += int64(len(decoded))

		if err != nil {
			break
		}
	}
	return total, nil
}

func skipUUHeader(br *bufio.Reader) error {
	for {
		line, err := br.ReadString('\n')
		trimmed := trimEOL(line)
		if len(trimmed) >= 6 && trimmed[:6] == "begin " {
			return nil
		}
		if err != nil {
			return mkerrors.New(mkerrors.KindParse, "codec.uuencode.Decode",
				fmt.Errorf("no uuencode begin line found"), nil)
		}
	}
}

func trimEOL(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func uuDecodeByte(c byte) int {
	if c == '`' {
		return 0
	}
	return int(c-' ') & 0x3f
}

func uuDecodeLine(s string, count int) ([]byte, error) {
	out := make([]byte, 0, count)
	for i := 0; i+4 <= len(s) && len(out) < count; i += 4 {
		c0 := uuDecodeByte(s[i])
		c1 := uuDecodeByte(s[i+1])
		c2 := uuDecodeByte(s[i+2])
		c3 := uuDecodeByte(s[i+3])
		out = append(out, byte(c0<<2|c1>>4), byte(c1<<4|c2>>2), byte(c2<<6|c3))
	}
	if len(out) > count {
		out = out[:count]
	}
	if len(out) < count {
		return nil, fmt.Errorf("truncated uuencode line")
	}
	return out, nil
}
