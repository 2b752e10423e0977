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

// Package compose implements MessageBuilder (assembling a From/To/Cc/Bcc/
// Subject/text-part/attachment set into a MIME tree) and the inverse
// extraction of attachments and the readable text part from a parsed
// message. Grounded on original_source/src/messageBuilder.hpp,
// attachment.hpp and textPart.hpp.
package compose

import (
	"fmt"

	"github.com/go-vmime/mailkit/mime/address"
	"github.com/go-vmime/mailkit/mime/tree"
	"github.com/go-vmime/mailkit/mime/types"
	"github.com/go-vmime/mailkit/mime/word"
	"github.com/go-vmime/mailkit/platform"
)

// MessageBuilder assembles a message from its expeditor/recipients/subject/
// text-part/attachments (original_source/src/messageBuilder.hpp).
type MessageBuilder struct {
	Host platform.Host

	From        address.Mailbox
	To          *address.AddressList
	Cc          *address.AddressList
	Bcc         *address.AddressList
	Subject     word.Text
	Attachments []*Attachment

	textPart *TextPart
}

// NewMessageBuilder builds an empty builder backed by host (needed for the
// content-handler buffers Construct allocates).
func NewMessageBuilder(host platform.Host) *MessageBuilder {
	return &MessageBuilder{
		Host: host,
		To:   &address.AddressList{},
		Cc:   &address.AddressList{},
		Bcc:  &address.AddressList{},
	}
}

// Attach adds an attachment, mirroring messageBuilder::attach.
func (b *MessageBuilder) Attach(a *Attachment) {
	b.Attachments = append(b.Attachments, a)
}

// ConstructTextPart selects the text part variant (plain, or plain+HTML
// once TextPart grows alternatives), mirroring
// messageBuilder::constructTextPart.
func (b *MessageBuilder) ConstructTextPart(mt types.MediaType, text string, charset string) {
	b.textPart = &TextPart{Type: mt, Text: text, Charset: charset}
}

// TextPart returns the builder's current text part, constructing a default
// empty text/plain one if none was set yet (messageBuilder::textPart()).
func (b *MessageBuilder) TextPart() *TextPart {
	if b.textPart == nil {
		b.textPart = &TextPart{Type: types.TextPlain}
	}
	return b.textPart
}

// Construct assembles the final MIME tree (messageBuilder::construct):
//   - no attachments, no alternative text -> a flat single-part message
//   - attachments present -> multipart/mixed with the text part first
func (b *MessageBuilder) Construct() (*tree.Message, error) {
	textBodyPart, err := b.TextPart().buildBodyPart(b.Host)
	if err != nil {
		return nil, fmt.Errorf("compose: building text part: %w", err)
	}

	var root *tree.BodyPart
	if len(b.Attachments) == 0 {
		// Flat message: the text part's own header/body become the
		// message's, rather than wrapping a single-child multipart.
		root = textBodyPart
	} else {
		root = tree.NewBodyPart()
		root.Header.SetContentType(types.MultipartMixed, map[string]string{"boundary": tree.GenerateRandomBoundaryString()})
		root.Body.Append(textBodyPart)

		for _, a := range b.Attachments {
			part, err := a.buildBodyPart(b.Host)
			if err != nil {
				return nil, fmt.Errorf("compose: building attachment %q: %w", a.Filename, err)
			}
			root.Body.Append(part)
		}
	}

	root.Header.SetMailbox("From", b.From)
	root.Header.SetAddressList("To", b.To)
	if !b.Cc.Empty() {
		root.Header.SetAddressList("Cc", b.Cc)
	}
	if !b.Bcc.Empty() {
		root.Header.SetAddressList("Bcc", b.Bcc)
	}
	root.Header.SetText("Subject", b.Subject)
	root.Header.Set("Mime-Version", "1.0")

	return &tree.Message{BodyPart: root}, nil
}
