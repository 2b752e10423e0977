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
	"github.com/go-vmime/mailkit/mime/tree"
	"github.com/go-vmime/mailkit/mime/types"
)

// ParsedAttachment is an attachment found inside an already-parsed message:
// the MessageBuilder side builds parts from scratch, this is its inverse —
// locating the parts a sender's MessageBuilder (or any other MUA) produced.
// No original_source/src/messageParser.hpp was present in the retrieved
// sources to ground this against directly, so its shape is inferred from
// attachment.hpp's accessors and built on the MIME tree traversal
// mime/tree.Message.Walk already provides.
type ParsedAttachment struct {
	Part *tree.BodyPart

	Type        types.MediaType
	Filename    string
	Description string
}

// FindAttachments walks msg depth-first and returns every part whose
// Content-Disposition is "attachment", or whose Content-Type isn't text/*
// or a multipart container — the same heuristic MUAs use to separate the
// readable body from the things attached to it.
func FindAttachments(msg *tree.Message) []ParsedAttachment {
	var out []ParsedAttachment
	msg.Walk(func(p *tree.BodyPart) {
		mt := p.ContentType()
		if mt.IsMultipart() {
			return
		}

		disposition, v, dispErr := p.Header.ContentDisposition()
		isAttachment := dispErr == nil && disposition == "attachment"
		if !isAttachment && mt.Type == "text" {
			return
		}
		if p == msg.BodyPart && !isAttachment {
			// The root part of a flat (non-multipart) message is the
			// message body itself, never an implicit attachment.
			return
		}

		filename, _ := v.Find("filename")
		if filename == "" {
			_, ctv, err := p.Header.ContentType()
			if err == nil {
				filename, _ = ctv.Find("name")
			}
		}

		var description string
		if text, err := p.Header.Text("Content-Description"); err == nil {
			description = text.String()
		}

		out = append(out, ParsedAttachment{
			Part:        p,
			Type:        mt,
			Filename:    filename,
			Description: description,
		})
	})
	return out
}

// FindTextPart returns the first leaf text/* part in msg, the readable body
// a mail client renders by default (messageBuilder's counterpart when
// reading a message rather than composing one).
func FindTextPart(msg *tree.Message) *tree.BodyPart {
	return msg.FindByContentType(func(p *tree.BodyPart) bool {
		mt := p.ContentType()
		return !mt.IsMultipart() && mt.Type == "text"
	})
}
