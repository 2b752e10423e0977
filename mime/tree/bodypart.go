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
	"fmt"
	"strings"

	"github.com/go-vmime/mailkit/mime/header"
	"github.com/go-vmime/mailkit/mime/types"
	"github.com/go-vmime/mailkit/mkerrors"
	"github.com/go-vmime/mailkit/platform"
)

// BodyPart is a header plus a body (original_source/src/bodyPart.hpp): the
// unit every node of the MIME tree is made of, including the root (see
// Message).
type BodyPart struct {
	Header *header.Header
	Body   *Body
}

// NewBodyPart builds an empty part with a leaf (non-multipart) body.
func NewBodyPart() *BodyPart {
	p := &BodyPart{Header: header.New()}
	p.Body = newBody(p)
	p.Header.SetContentType(types.TextPlain, nil)
	p.Header.SetContentTransferEncoding("7bit")
	return p
}

func (p *BodyPart) ContentType() types.MediaType { return p.Body.ContentType() }

// Generate renders this part's header followed by a blank line and its
// body, recursing into child parts for multipart/* content
// (original_source/src/bodyPart.hpp's generate, which delegates to
// header::generate and body::generate in turn).
func (p *BodyPart) Generate() (string, error) {
	bodyText, err := p.Body.generate()
	if err != nil {
		return "", err
	}
	return p.Header.Generate() + "\r\n" + bodyText, nil
}

// ParseBodyPart splits raw into header and body sections at the first
// blank line, parses the header, and recursively parses a multipart body
// into child parts using the Content-Type boundary parameter
// (original_source/src/bodyPart.hpp's parse contract).
func ParseBodyPart(host platform.Host, raw []byte) (*BodyPart, error) {
	headerBytes, bodyBytes, err := splitHeaderBody(raw)
	if err != nil {
		return nil, err
	}

	h, err := header.Parse(headerBytes)
	if err != nil {
		return nil, err
	}

	p := &BodyPart{Header: h}
	p.Body = newBody(p)

	mt, v, ctErr := h.ContentType()
	if ctErr != nil {
		mt = types.TextPlain
	}

	if mt.IsMultipart() {
		boundary, _ := v.Find("boundary")
		if boundary == "" {
			return nil, mkerrors.New(mkerrors.KindParse, "tree.ParseBodyPart",
				fmt.Errorf("multipart content-type without a boundary parameter"), nil)
		}

		preamble, segments, epilogue := splitOnBoundary(bodyBytes, boundary)
		p.Body.PrologText = strings.TrimRight(preamble, "\n")
		p.Body.EpilogText = strings.TrimRight(epilogue, "\n")

		for _, seg := range segments {
			child, err := ParseBodyPart(host, seg)
			if err != nil {
				return nil, err
			}
			p.Body.Append(child)
		}
		// A multipart part still needs a ContentHandler for callers that
		// re-serialize it verbatim without walking Body.Parts.
		buf, err := host.NewMemoryBuffer(strings.NewReader(""))
		if err != nil {
			return nil, err
		}
		encName, _ := h.ContentTransferEncoding()
		p.Body.Contents = NewContentHandler(buf, encName)
	} else {
		encName, encErr := h.ContentTransferEncoding()
		if encErr != nil {
			encName = "7bit"
		}
		ch, err := NewContentHandlerFromReader(host, strings.NewReader(string(bodyBytes)), encName)
		if err != nil {
			return nil, err
		}
		p.Body.Contents = ch
	}

	return p, nil
}

// splitHeaderBody finds the first blank line (CRLFCRLF or LFLF) separating
// header from body, per RFC 2822 §2.1. The returned slices use LF line
// endings regardless of the input's.
func splitHeaderBody(raw []byte) (headerPart, bodyPart []byte, err error) {
	normalized := strings.ReplaceAll(string(raw), "\r\n", "\n")

	idx := strings.Index(normalized, "\n\n")
	if idx == -1 {
		return []byte(normalized), nil, nil
	}
	return []byte(normalized[:idx]), []byte(normalized[idx+2:]), nil
}
