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

package imap

import (
	"fmt"
	"strings"

	"github.com/go-vmime/mailkit/mime/header"
	"github.com/go-vmime/mailkit/mkerrors"
)

// address is one RFC 3501 ENVELOPE address structure: (name adl mailbox
// host). A nil/empty mailbox marks a group boundary (RFC 822 group
// syntax), which this client has no use for and simply drops.
type address struct {
	name, mailbox, host string
}

func (a address) String() string {
	if a.mailbox == "" {
		return ""
	}
	addr := a.mailbox + "@" + a.host
	if a.name != "" {
		return fmt.Sprintf("%s <%s>", a.name, addr)
	}
	return addr
}

// envelope is RFC 3501's ENVELOPE structure: date, subject, the five
// address lists, in-reply-to and message-id, in that fixed field order.
type envelope struct {
	date                                    string
	subject                                 string
	from, sender, replyTo, to, cc, bcc       []address
	inReplyTo                               string
	messageID                               string
}

// parseEnvelope decodes a FETCH ENVELOPE field list (spec.md §4.11's
// "ENVELOPE with 10 named subfields"), grounded on that field catalogue;
// there is no vmime equivalent since vmime's IMAP client never populates
// a structured envelope object, so the 10-field order and per-address
// shape come from the RFC text spec.md §4.11 distills.
func parseEnvelope(fields []token) (*envelope, error) {
	if len(fields) != 10 {
		return nil, mkerrors.New(mkerrors.KindInvalidResponse, "imap.parseEnvelope",
			fmt.Errorf("envelope has %d fields, want 10", len(fields)), nil)
	}

	e := &envelope{}
	if s, ok := asString(fields[0]); ok {
		e.date = s
	}
	if s, ok := asString(fields[1]); ok {
		e.subject = s
	}

	addrLists := []*[]address{&e.from, &e.sender, &e.replyTo, &e.to, &e.cc, &e.bcc}
	for i, dst := range addrLists {
		list, ok := asList(fields[2+i])
		if !ok {
			continue // NIL: empty list
		}
		*dst = parseAddressList(list)
	}

	if s, ok := asString(fields[8]); ok {
		e.inReplyTo = s
	}
	if s, ok := asString(fields[9]); ok {
		e.messageID = s
	}
	return e, nil
}

func parseAddressList(items []token) []address {
	var out []address
	for _, item := range items {
		fields, ok := asList(item)
		if !ok || len(fields) != 4 {
			continue
		}
		a := address{}
		a.name, _ = asString(fields[0])
		a.mailbox, _ = asString(fields[2])
		a.host, _ = asString(fields[3])
		out = append(out, a)
	}
	return out
}

// toHeader synthesizes RFC-822-style header fields from the envelope into
// h, reusing the already-existing mime/header type rather than adding a
// parallel IMAP-specific field to net.Message.
func (e *envelope) toHeader(h *header.Header) {
	if e.date != "" {
		h.Set("Date", e.date)
	}
	if e.subject != "" {
		h.Set("Subject", e.subject)
	}
	setAddressList(h, "From", e.from)
	setAddressList(h, "Reply-To", e.replyTo)
	setAddressList(h, "To", e.to)
	setAddressList(h, "Cc", e.cc)
	setAddressList(h, "Bcc", e.bcc)
	if e.inReplyTo != "" {
		h.Set("In-Reply-To", e.inReplyTo)
	}
	if e.messageID != "" {
		h.Set("Message-ID", e.messageID)
	}
}

func setAddressList(h *header.Header, name string, addrs []address) {
	var parts []string
	for _, a := range addrs {
		if s := a.String(); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) > 0 {
		h.Set(name, strings.Join(parts, ", "))
	}
}
