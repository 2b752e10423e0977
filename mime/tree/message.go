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
	"github.com/go-vmime/mailkit/platform"
)

// Message is the root BodyPart of a MIME tree (original_source/src/message.hpp
// is, in vmime, a distinct class only so it can expose message-level
// quick-access like getHeader()/getBody() without an extra indirection;
// mailkit's BodyPart already exposes Header/Body directly, so Message is
// just a BodyPart with document-level constructors).
type Message struct {
	*BodyPart
}

// NewMessage builds an empty outgoing message.
func NewMessage() *Message {
	return &Message{BodyPart: NewBodyPart()}
}

// ParseMessage parses a complete RFC 2822 message (header, blank line,
// body, recursively parsed into a MIME tree for multipart content).
func ParseMessage(host platform.Host, raw []byte) (*Message, error) {
	part, err := ParseBodyPart(host, raw)
	if err != nil {
		return nil, err
	}
	return &Message{BodyPart: part}, nil
}

// Walk calls fn for this message's root part and every descendant, in
// depth-first pre-order — the traversal compose's attachment finder uses.
func (m *Message) Walk(fn func(*BodyPart)) {
	walk(m.BodyPart, fn)
}

func walk(p *BodyPart, fn func(*BodyPart)) {
	fn(p)
	for _, child := range p.Body.Parts {
		walk(child, fn)
	}
}

// FindByContentType returns the first part (depth-first) for which matches
// returns true, or nil.
func (m *Message) FindByContentType(matches func(p *BodyPart) bool) *BodyPart {
	var found *BodyPart
	m.Walk(func(p *BodyPart) {
		if found == nil && matches(p) {
			found = p
		}
	})
	return found
}
