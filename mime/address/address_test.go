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

package address

import (
	"strings"
	"testing"
)

func TestParseMailboxBare(t *testing.T) {
	m, err := ParseMailbox("simple@example.org")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Email != "simple@example.org" {
		t.Errorf("got %q", m.Email)
	}
	if m.Name.String() != "" {
		t.Errorf("expected no display name, got %q", m.Name.String())
	}
}

func TestParseMailboxNamed(t *testing.T) {
	m, err := ParseMailbox(`"Jane Doe" <jane@example.org>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Email != "jane@example.org" {
		t.Errorf("got email %q", m.Email)
	}
	if m.Name.String() != "Jane Doe" {
		t.Errorf("got name %q", m.Name.String())
	}
}

func TestMailboxGenerateRoundTrip(t *testing.T) {
	m, err := ParseMailbox(`Jane Doe <jane@example.org>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := m.Generate()
	want := `Jane Doe <jane@example.org>`
	if got != want {
		t.Errorf("want %q, got %q", want, got)
	}
}

func TestParseAddressListMixed(t *testing.T) {
	list, err := ParseAddressList(`alice@example.org, Bob <bob@example.org>, Team: carol@example.org, dave@example.org;`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list.Count() != 3 {
		t.Fatalf("expected 3 top-level addresses, got %d", list.Count())
	}

	group, ok := list.Addresses[2].(*MailboxGroup)
	if !ok {
		t.Fatalf("expected third address to be a group, got %T", list.Addresses[2])
	}
	if group.Count() != 2 {
		t.Errorf("expected 2 members in group, got %d", group.Count())
	}

	flattened := list.ToMailboxList()
	if flattened.Count() != 4 {
		t.Errorf("expected 4 flattened mailboxes, got %d", flattened.Count())
	}
}

func TestParseMailboxEmpty(t *testing.T) {
	if _, err := ParseMailbox("   "); err == nil {
		t.Error("expected error for empty mailbox")
	}
}

func TestParseMailboxStripsComment(t *testing.T) {
	m, err := ParseMailbox(`John (work) Smith <john@example.org>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Email != "john@example.org" {
		t.Errorf("got email %q", m.Email)
	}
	if strings.Contains(m.Name.String(), "work") {
		t.Errorf("expected comment to be stripped, got name %q", m.Name.String())
	}
}

func TestParseAddressListStripsComment(t *testing.T) {
	list, err := ParseAddressList(`alice@example.org (personal), bob@example.org`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list.Count() != 2 {
		t.Fatalf("expected 2 addresses, got %d", list.Count())
	}
	mbox, ok := list.Addresses[0].(Mailbox)
	if !ok {
		t.Fatalf("expected first address to be a mailbox, got %T", list.Addresses[0])
	}
	if mbox.Email != "alice@example.org" {
		t.Errorf("got email %q, comment should have been stripped before the comma split", mbox.Email)
	}
}

func TestMailboxIsEmpty(t *testing.T) {
	var m Mailbox
	if !m.IsEmpty() {
		t.Error("zero-value mailbox should be empty")
	}
	if NewMailbox("a@b.org").IsEmpty() {
		t.Error("mailbox with email should not be empty")
	}
}
