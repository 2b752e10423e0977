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

// Package address implements the RFC 2822 address value types: Mailbox
// (display-name + addr-spec), MailboxGroup (a named list of mailboxes, used
// by "undisclosed-recipients:;"-style fields) and AddressList (a mixed list
// of either). Grounded on original_source/src/mailbox.hpp, mailboxGroup.hpp
// and addressList.hpp (vmime's address/mailbox/mailboxGroup/addressList
// hierarchy). The addr-spec leaf grammar (local-part@domain quoting and
// validation) is delegated to the teacher's framework/address package
// rather than reimplemented, since that package already carries the exact
// RFC 5321/5322 local-part quoting rules maddy needs for envelope
// addresses — this package adds the RFC 2822 display-name/group layer on
// top that framework/address, working only with bare envelope addresses,
// never needed.
package address

import (
	"fmt"
	"strings"

	"github.com/go-vmime/mailkit/framework/address"
	"github.com/go-vmime/mailkit/mime/lexer"
	"github.com/go-vmime/mailkit/mime/word"
	"github.com/go-vmime/mailkit/mkerrors"
)

// Address is satisfied by both Mailbox and MailboxGroup (vmime's `address`
// base class, whose only common operation across the two is "is this a
// group").
type Address interface {
	IsGroup() bool
	Generate() string
}

// Mailbox is a full name plus an email (original_source/src/mailbox.hpp).
type Mailbox struct {
	Name  word.Text
	Email string
}

// NewMailbox builds an unnamed mailbox from a bare email address.
func NewMailbox(email string) Mailbox {
	return Mailbox{Email: email}
}

// NewNamedMailbox builds a mailbox with a display name.
func NewNamedMailbox(name word.Text, email string) Mailbox {
	return Mailbox{Name: name, Email: email}
}

func (m Mailbox) IsGroup() bool { return false }

func (m Mailbox) IsEmpty() bool { return m.Email == "" && len(m.Name.Words) == 0 }

// Valid reports whether Email parses as local-part@domain, delegating to
// framework/address's addr-spec validator.
func (m Mailbox) Valid() bool {
	return address.Valid(m.Email)
}

// Generate renders the mailbox as an RFC 2822 "mailbox" production:
// `Display Name <local@domain>` if named, or the bare email otherwise. The
// display name is wrapped in double quotes only when it contains a character
// other than ASCII letters, digits, space, '-', '.' or '_'.
func (m Mailbox) Generate() string {
	name := m.Name.String()
	if name == "" {
		return m.Email
	}
	return fmt.Sprintf("%s <%s>", quoteDisplayName(name), m.Email)
}

func quoteDisplayName(name string) string {
	if !needsQuoting(name) {
		return name
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range name {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

func needsQuoting(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == ' ' || r == '-' || r == '.' || r == '_':
		default:
			return true
		}
	}
	return false
}

// MailboxGroup is a named list of mailboxes (original_source/src/mailboxGroup.hpp),
// used for fields like "Undisclosed recipients:;".
type MailboxGroup struct {
	Name     word.Text
	Mailboxes []Mailbox
}

// NewMailboxGroup builds an empty named group.
func NewMailboxGroup(name word.Text) *MailboxGroup {
	return &MailboxGroup{Name: name}
}

func (g *MailboxGroup) IsGroup() bool { return true }

func (g *MailboxGroup) Append(m Mailbox) { g.Mailboxes = append(g.Mailboxes, m) }

func (g *MailboxGroup) Insert(at int, m Mailbox) {
	g.Mailboxes = append(g.Mailboxes[:at], append([]Mailbox{m}, g.Mailboxes[at:]...)...)
}

func (g *MailboxGroup) Erase(at int) {
	g.Mailboxes = append(g.Mailboxes[:at], g.Mailboxes[at+1:]...)
}

func (g *MailboxGroup) Count() int { return len(g.Mailboxes) }

func (g *MailboxGroup) Empty() bool { return len(g.Mailboxes) == 0 }

// Generate renders the "group" production: `Name: mbox, mbox, ...;`.
func (g *MailboxGroup) Generate() string {
	parts := make([]string, len(g.Mailboxes))
	for i, m := range g.Mailboxes {
		parts[i] = m.Generate()
	}
	return fmt.Sprintf("%s: %s;", g.Name.String(), strings.Join(parts, ", "))
}

// AddressList is a mixed list of Mailbox and *MailboxGroup values
// (original_source/src/addressList.hpp), the parsed form of a To:/Cc:/Bcc:
// header.
type AddressList struct {
	Addresses []Address
}

func (l *AddressList) Append(a Address) { l.Addresses = append(l.Addresses, a) }

func (l *AddressList) Count() int { return len(l.Addresses) }

func (l *AddressList) Empty() bool { return len(l.Addresses) == 0 }

// ToMailboxList flattens every mailbox in the list, expanding groups
// (original_source/src/addressList.hpp's `toMailboxList` convenience,
// used e.g. to build the SMTP RCPT TO set from a To: header).
func (l *AddressList) ToMailboxList() MailboxList {
	var out MailboxList
	for _, a := range l.Addresses {
		switch v := a.(type) {
		case Mailbox:
			out.Mailboxes = append(out.Mailboxes, v)
		case *MailboxGroup:
			out.Mailboxes = append(out.Mailboxes, v.Mailboxes...)
		}
	}
	return out
}

// Generate renders the comma-separated address-list production.
func (l *AddressList) Generate() string {
	parts := make([]string, len(l.Addresses))
	for i, a := range l.Addresses {
		parts[i] = a.Generate()
	}
	return strings.Join(parts, ", ")
}

// MailboxList is a flat list of mailboxes (original_source/src/mailboxList.hpp),
// the type a Sender:/Resent-From: header (single mailbox only per RFC 2822,
// but vmime and mailkit both model the general list for consistency) or an
// expanded AddressList ultimately reduces to.
type MailboxList struct {
	Mailboxes []Mailbox
}

func (l *MailboxList) Append(m Mailbox) { l.Mailboxes = append(l.Mailboxes, m) }

func (l *MailboxList) Count() int { return len(l.Mailboxes) }

func (l *MailboxList) Empty() bool { return len(l.Mailboxes) == 0 }

// ParseMailbox parses a single "mailbox" production: either a bare email, or
// a `Display Name <local@domain>` form. RFC 2822 comments anywhere in s are
// skipped first (spec.md §4.3: "comments in parentheses are skipped but
// their position is not preserved").
func ParseMailbox(s string) (Mailbox, error) {
	s = strings.TrimSpace(lexer.StripComments(s))
	if s == "" {
		return Mailbox{}, mkerrors.New(mkerrors.KindParse, "address.ParseMailbox",
			fmt.Errorf("empty mailbox"), nil)
	}

	if idx := strings.LastIndexByte(s, '<'); idx != -1 && strings.HasSuffix(s, ">") {
		display := strings.TrimSpace(s[:idx])
		email := s[idx+1 : len(s)-1]

		display = strings.Trim(display, `"`)
		display = strings.ReplaceAll(display, `\"`, `"`)

		text, err := word.DecodeText(display)
		if err != nil {
			return Mailbox{}, err
		}
		return Mailbox{Name: text, Email: email}, nil
	}

	return Mailbox{Email: s}, nil
}

// ParseAddressList splits s on top-level commas (respecting quoted strings
// and angle brackets) and parses each element as either a group or a
// mailbox (original_source/src/addressList.hpp's parse contract). RFC 2822
// comments are skipped first, the same as ParseMailbox.
func ParseAddressList(s string) (*AddressList, error) {
	s = lexer.StripComments(s)
	list := &AddressList{}
	// A group's member commas are top-level too, so rejoin the pieces from a
	// group-name colon up to the group's closing ';'.
	var elems []string
	for _, piece := range lexer.SplitTopLevel(s, ',') {
		if n := len(elems); n > 0 && lexer.FindTopLevel(elems[n-1], ':') != -1 &&
			!strings.HasSuffix(strings.TrimSpace(elems[n-1]), ";") {
			elems[n-1] += "," + piece
			continue
		}
		elems = append(elems, piece)
	}
	for _, elem := range elems {
		elem = strings.TrimSpace(elem)
		if elem == "" {
			continue
		}

		if colon := lexer.FindTopLevel(elem, ':'); colon != -1 {
			name, err := word.DecodeText(strings.TrimSpace(elem[:colon]))
			if err != nil {
				return nil, err
			}
			group := NewMailboxGroup(name)

			body := strings.TrimSuffix(strings.TrimSpace(elem[colon+1:]), ";")
			for _, member := range lexer.SplitTopLevel(body, ',') {
				member = strings.TrimSpace(member)
				if member == "" {
					continue
				}
				mbox, err := ParseMailbox(member)
				if err != nil {
					return nil, err
				}
				group.Append(mbox)
			}
			list.Append(group)
			continue
		}

		mbox, err := ParseMailbox(elem)
		if err != nil {
			return nil, err
		}
		list.Append(mbox)
	}
	return list, nil
}

