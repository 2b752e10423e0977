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

	"github.com/go-vmime/mailkit/mime/charset"
	"github.com/go-vmime/mailkit/mime/codec"
	"github.com/go-vmime/mailkit/mime/types"
)

// Body holds a part's contents plus, for multipart/* parts, its child
// BodyParts and the preamble/epilogue text surrounding them
// (original_source/src/body.hpp: contentHandler + partsContainer +
// prologText/epilogText).
type Body struct {
	Contents *ContentHandler
	Parts    []*BodyPart

	PrologText string
	EpilogText string

	part *BodyPart // owning part, for ContentType/Charset/Encoding quick access
}

func newBody(owner *BodyPart) *Body {
	return &Body{part: owner}
}

// Append adds a child part at the end (body.hpp partsContainer::append).
func (b *Body) Append(part *BodyPart) { b.Parts = append(b.Parts, part) }

// Insert adds a child part before index at.
func (b *Body) Insert(at int, part *BodyPart) {
	b.Parts = append(b.Parts, nil)
	copy(b.Parts[at+1:], b.Parts[at:])
	b.Parts[at] = part
}

// Remove deletes the child part at index i.
func (b *Body) Remove(i int) {
	b.Parts = append(b.Parts[:i], b.Parts[i+1:]...)
}

func (b *Body) Count() int { return len(b.Parts) }

func (b *Body) Empty() bool { return len(b.Parts) == 0 }

// ContentType is the quick-access function body.hpp documents
// ("contentType()"), reading the owning part's Content-Type field.
func (b *Body) ContentType() types.MediaType {
	mt, _, err := b.part.Header.ContentType()
	if err != nil {
		return types.TextPlain
	}
	return mt
}

// Charset reads the "charset" Content-Type parameter, defaulting to
// US-ASCII per RFC 2046 §4.1.2 when absent.
func (b *Body) Charset() charset.Charset {
	_, v, err := b.part.Header.ContentType()
	if err != nil {
		return charset.USASCII
	}
	if cs, ok := v.Find("charset"); ok {
		return charset.Charset(cs)
	}
	return charset.USASCII
}

// Encoding reads Content-Transfer-Encoding, defaulting to 7bit.
func (b *Body) Encoding() codec.Name {
	enc, err := b.part.Header.ContentTransferEncoding()
	if err != nil {
		return codec.SevenBit
	}
	return enc
}

// Boundary returns the Content-Type "boundary" parameter, generating and
// storing a fresh random one via SetContentType if this is a multipart
// body that doesn't have one yet.
func (b *Body) Boundary() string {
	mt, v, err := b.part.Header.ContentType()
	if err != nil {
		return ""
	}
	if boundary, ok := v.Find("boundary"); ok {
		return boundary
	}
	if !mt.IsMultipart() {
		return ""
	}
	boundary := GenerateRandomBoundaryString()
	params := map[string]string{"boundary": boundary}
	for _, p := range v.Parameters {
		params[p.Name] = p.Value
	}
	b.part.Header.SetContentType(mt, params)
	return boundary
}

// DecodedText is a convenience for leaf text/* parts: decode the
// transfer-encoding, then transcode from Charset() to UTF-8.
func (b *Body) DecodedText() (string, error) {
	raw, err := b.Contents.DecodedBytes()
	if err != nil {
		return "", err
	}
	out, err := charset.Convert(raw, b.Charset(), charset.UTF8)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// generate renders the body: for a leaf part, just the encoded contents;
// for multipart/*, the preamble, each child part framed by the boundary
// delimiter, and the epilogue (RFC 2046 §5.1.1).
func (b *Body) generate() (string, error) {
	if b.ContentType().IsMultipart() {
		return b.generateMultipart()
	}
	if b.Contents == nil {
		return "", nil
	}

	var buf strings.Builder
	if _, err := b.Contents.GenerateEncoded(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (b *Body) generateMultipart() (string, error) {
	boundary := b.Boundary()
	if boundary == "" {
		boundary = GenerateRandomBoundaryString()
	}

	var buf strings.Builder
	if b.PrologText != "" {
		buf.WriteString(b.PrologText)
		buf.WriteString("\r\n")
	}
	for _, part := range b.Parts {
		buf.WriteString("--")
		buf.WriteString(boundary)
		buf.WriteString("\r\n")
		rendered, err := part.Generate()
		if err != nil {
			return "", err
		}
		buf.WriteString(rendered)
		buf.WriteString("\r\n")
	}
	buf.WriteString("--")
	buf.WriteString(boundary)
	buf.WriteString("--\r\n")
	if b.EpilogText != "" {
		buf.WriteString(b.EpilogText)
	}
	return buf.String(), nil
}
