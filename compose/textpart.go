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
	"bytes"
	"io"
	"strings"

	"github.com/go-vmime/mailkit/mime/charset"
	"github.com/go-vmime/mailkit/mime/codec"
	"github.com/go-vmime/mailkit/mime/tree"
	"github.com/go-vmime/mailkit/mime/types"
	"github.com/go-vmime/mailkit/platform"
)

// TextPart is the readable body of a message (original_source/src/textPart.hpp,
// referenced from messageBuilder.hpp's constructTextPart/textPart): plain
// text or HTML, in a given charset, chosen by MessageBuilder.ConstructTextPart.
type TextPart struct {
	Type    types.MediaType
	Text    string
	Charset string // empty defaults to UTF-8
}

// buildBodyPart renders the text part: charset-converted, quoted-printable
// encoded (the encoding vmime's textPart picks for anything that isn't pure
// 7-bit ASCII, so non-ASCII text survives transit unmodified by relays).
func (t *TextPart) buildBodyPart(host platform.Host) (*tree.BodyPart, error) {
	cs := charset.Charset(t.Charset)
	if cs == "" {
		cs = charset.UTF8
	}

	encoded, err := charset.Convert([]byte(t.Text), charset.UTF8, cs)
	if err != nil {
		return nil, err
	}

	part := tree.NewBodyPart()
	part.Header.SetContentType(t.Type, map[string]string{"charset": cs.String()})
	part.Header.SetContentTransferEncoding(codec.QuotedPrintable)

	ch, err := encodeContent(host, bytes.NewReader(encoded), codec.QuotedPrintable)
	if err != nil {
		return nil, err
	}
	part.Body.Contents = ch

	return part, nil
}

// encodeContent content-transfer-encodes raw (decoded) data from r and
// stores the encoded result in a fresh backing buffer, the step
// NewContentHandlerFromReader deliberately skips for data that arrives
// already encoded off the wire (see mime/tree.ParseBodyPart).
func encodeContent(host platform.Host, r io.Reader, name codec.Name) (*tree.ContentHandler, error) {
	cd, err := codec.ByName(name)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := cd.Encode(&buf, r); err != nil {
		return nil, err
	}

	backing, err := host.NewMemoryBuffer(strings.NewReader(buf.String()))
	if err != nil {
		return nil, err
	}
	return tree.NewContentHandler(backing, name), nil
}
