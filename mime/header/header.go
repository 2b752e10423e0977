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

// Package header implements the RFC 2822 header section: an ordered list of
// Fields plus unfolding/folding and typed accessors for the well-known
// fields. Grounded on original_source/src/header.hpp's fieldsContainer
// (append/insert/remove/find/get-or-create by name, a sorted field list)
// and original_source/src/parameterizedHeaderField.hpp for the
// Content-Type/Content-Disposition parameter sub-grammar.
package header

import (
	"fmt"
	"strings"

	"github.com/go-vmime/mailkit/mkerrors"
	"github.com/go-vmime/mailkit/registry"
)

// Field is a single "Name: Body" header line, Body holding the raw
// (still-encoded-word, still RFC 2047/2231-escaped) value exactly as it
// would appear on the wire, sans folding whitespace.
type Field struct {
	Name string
	Body string
}

func (f *Field) String() string { return f.Name + ": " + f.Body }

// Header is an ordered field list (original_source/src/header.hpp's
// fieldsContainer, generalized from a C++ vector-of-pointers to a Go
// slice-of-pointers since Go has no need for the iterator indirection).
type Header struct {
	Fields []*Field
}

func New() *Header { return &Header{} }

// Append adds field at the end of the header, mirroring
// fieldsContainer::append.
func (h *Header) Append(name, body string) *Field {
	f := &Field{Name: name, Body: body}
	h.Fields = append(h.Fields, f)
	return f
}

// Insert adds field before position at, mirroring fieldsContainer::insert.
func (h *Header) Insert(at int, name, body string) *Field {
	f := &Field{Name: name, Body: body}
	h.Fields = append(h.Fields, nil)
	copy(h.Fields[at+1:], h.Fields[at:])
	h.Fields[at] = f
	return f
}

// Remove deletes the field at index i.
func (h *Header) Remove(i int) {
	h.Fields = append(h.Fields[:i], h.Fields[i+1:]...)
}

func (h *Header) Clear() { h.Fields = nil }

func (h *Header) Count() int { return len(h.Fields) }

func (h *Header) Empty() bool { return len(h.Fields) == 0 }

// Has reports whether at least one field with this name exists
// (fieldsContainer::has), case-insensitively per RFC 2822 §2.2.
func (h *Header) Has(name string) bool {
	_, ok := h.Find(name)
	return ok
}

// Find returns the first field with the given name (fieldsContainer::find).
func (h *Header) Find(name string) (*Field, bool) {
	for _, f := range h.Fields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return nil, false
}

// FindAll returns every field with the given name
// (fieldsContainer::findAllByName), e.g. every "Received:" trace field.
func (h *Header) FindAll(name string) []*Field {
	var out []*Field
	for _, f := range h.Fields {
		if strings.EqualFold(f.Name, name) {
			out = append(out, f)
		}
	}
	return out
}

// Get returns the first field with the given name, creating (and
// appending) an empty one if none exists yet (fieldsContainer::get).
func (h *Header) Get(name string) *Field {
	if f, ok := h.Find(name); ok {
		return f
	}
	return h.Append(name, "")
}

// Set replaces the first field named name with body, or appends a new one.
func (h *Header) Set(name, body string) {
	if f, ok := h.Find(name); ok {
		f.Body = body
		return
	}
	h.Append(name, body)
}

// RemoveAll deletes every field with the given name.
func (h *Header) RemoveAll(name string) {
	out := h.Fields[:0]
	for _, f := range h.Fields {
		if !strings.EqualFold(f.Name, name) {
			out = append(out, f)
		}
	}
	h.Fields = out
}

// Parse unfolds raw (CRLF or LF delimited) header text into a Header: each
// physical line starting with a tab or space is a continuation of the
// previous field's body (RFC 2822 §2.2.3 "folding white space").
func Parse(raw []byte) (*Header, error) {
	h := New()
	lines := splitLines(string(raw))

	var cur *Field
	for _, line := range lines {
		if line == "" {
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && cur != nil {
			cur.Body += " " + strings.TrimSpace(line)
			continue
		}

		idx := strings.IndexByte(line, ':')
		if idx == -1 {
			return nil, mkerrors.New(mkerrors.KindParse, "header.Parse",
				fmt.Errorf("malformed header line %q", line), nil)
		}
		name := strings.TrimSpace(line[:idx])
		body := strings.TrimSpace(line[idx+1:])
		cur = h.Append(name, body)
	}
	return h, nil
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(s, "\n")
}

// foldLineLength is the RFC 2822 §2.1.1 recommended header line length.
const foldLineLength = 78

// Generate renders the header back to RFC 2822 wire form, folding any field
// whose "Name: Body" exceeds foldLineLength at whitespace boundaries
// (original_source/src/header.hpp's generate, which delegates per-field
// folding to each headerField::generate).
func (h *Header) Generate() string {
	var b strings.Builder
	for _, f := range h.Fields {
		b.WriteString(foldField(f.Name, f.Body))
		b.WriteString("\r\n")
	}
	return b.String()
}

func foldField(name, body string) string {
	prefix := name + ": "
	if len(prefix)+len(body) <= foldLineLength {
		return prefix + body
	}

	var b strings.Builder
	b.WriteString(prefix)
	col := len(prefix)
	words := strings.Fields(body)
	for i, word := range words {
		if i > 0 {
			if col+1+len(word) > foldLineLength {
				b.WriteString("\r\n ")
				col = 1
			} else {
				b.WriteByte(' ')
				col++
			}
		}
		b.WriteString(word)
		col += len(word)
	}
	return b.String()
}

// fieldKind names a well-known header field so the registry can dispatch to
// a typed constructor, mirroring header.hpp's headerField::Types enum
// (headerField::From, headerField::To, ...) without the dynamic_cast-based
// dispatch C++ needs: mailkit just keys a Registry[FieldKind] by
// lower-cased field name.
type FieldKind int

const (
	KindUnknown FieldKind = iota
	KindMailbox           // From, Sender, Reply-To, Delivered-To
	KindAddressList       // To, Cc, Bcc
	KindDate
	KindText // Subject, Organization, User-Agent, Content-Description
	KindContentType
	KindContentTransferEncoding
	KindContentDisposition
	KindMessageID // Message-Id, Content-Id
	KindDefault   // MIME-Version, Content-Location, everything else
)

// Kinds registers the well-known field name -> FieldKind mapping (spec §9
// "registries ... for header fields"), so mime/tree and compose can decide
// how to interpret a field without a giant switch scattered across callers.
var Kinds = registry.New[FieldKind]()

func init() {
	register := func(name string, kind FieldKind) {
		_ = Kinds.Register(name, func(string) (FieldKind, error) { return kind, nil })
	}

	register("from", KindMailbox)
	register("sender", KindMailbox)
	register("reply-to", KindMailbox)
	register("delivered-to", KindMailbox)
	register("to", KindAddressList)
	register("cc", KindAddressList)
	register("bcc", KindAddressList)
	register("date", KindDate)
	register("resent-date", KindDate)
	register("subject", KindText)
	register("organization", KindText)
	register("user-agent", KindText)
	register("content-description", KindText)
	register("content-type", KindContentType)
	register("content-transfer-encoding", KindContentTransferEncoding)
	register("content-disposition", KindContentDisposition)
	register("message-id", KindMessageID)
	register("content-id", KindMessageID)
	register("mime-version", KindDefault)
	register("content-location", KindDefault)
}

// KindOf reports the registered FieldKind for name, or KindDefault if name
// isn't one of the well-known fields.
func KindOf(name string) FieldKind {
	kind, err := Kinds.New(strings.ToLower(name), "")
	if err != nil {
		return KindDefault
	}
	return kind
}
