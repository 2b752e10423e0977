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

package net

import (
	"context"
	"io"

	"github.com/go-vmime/mailkit/mime/header"
	"github.com/go-vmime/mailkit/mime/tree"
	"github.com/go-vmime/mailkit/platform"
)

// Flags is the IMAP-style per-message flag bitmask, shared across all three
// engines (POP3 emulates it from DELE-pending state, Maildir encodes it in
// the filename's ":2,<flags>" suffix per spec.md §4.12, IMAP speaks it
// natively).
type Flags uint8

const (
	FlagSeen Flags = 1 << iota
	FlagAnswered
	FlagFlagged
	FlagDeleted
	FlagDraft
	FlagRecent
)

// maildirFlagLetters gives Flags->Maildir-filename-letter in the
// alphabetical order spec.md §4.12 requires ("D(draft), F(marked),
// P(passed), R(replied), S(seen), T(deleted)").
var maildirFlagLetters = []struct {
	bit    Flags
	letter byte
}{
	{FlagDraft, 'D'},
	{FlagFlagged, 'F'},
	{FlagAnswered, 'R'},
	{FlagSeen, 'S'},
	{FlagDeleted, 'T'},
}

// MaildirSuffix renders the flag set as Maildir's ":2,<flags>" suffix
// (without the leading colon), letters in alphabetical order, skipping
// FlagRecent and the "P(passed)" letter maildir.Folder doesn't track since
// spec.md's own flag set has no Passed bit.
func (f Flags) MaildirSuffix() string {
	var out []byte
	for _, m := range maildirFlagLetters {
		if f&m.bit != 0 {
			out = append(out, m.letter)
		}
	}
	return string(out)
}

// ParseMaildirFlags is MaildirSuffix's inverse.
func ParseMaildirFlags(letters string) Flags {
	var f Flags
	for _, m := range maildirFlagLetters {
		for i := 0; i < len(letters); i++ {
			if letters[i] == m.letter {
				f |= m.bit
			}
		}
	}
	return f
}

// Message is a net-layer message handle (spec.md §3 "message (net)"): a
// weak reference back to its folder, the server-assigned sequence number
// and UID, size, flags, and lazily-populated header/structure — distinct
// from mime/tree.Message, which is the MIME *content* this handle refers
// to once Extract has been called.
type Message struct {
	Folder Folder
	Num    int // 1-based sequence number within the folder, scan/session order
	UID    string

	Size  int64
	Flags Flags

	// Header and Structure are populated by Folder.FetchMessages; nil
	// until AttrFullHeader/AttrStructure has been fetched for this
	// message.
	Header    *header.Header
	Structure *tree.BodyPart

	Expunged bool
}

// Extractor is implemented by engines that can stream a message's raw
// bytes (original_source/src/messaging/message.hpp's extract()): POP3's
// RETR, IMAP's BODY[], Maildir's direct file read.
type Extractor interface {
	Extract(ctx context.Context, msg *Message, w io.Writer) error
	// ExtractPartial streams only [offset, offset+length) of the raw
	// message (spec.md §4.9 capability EXTRACT_PART / IMAP's
	// BODY[]<offset.length>, POP3's emulated TOP — see
	// mime/tree.ContentHandler.Range for the in-memory equivalent).
	ExtractPartial(ctx context.Context, msg *Message, offset, length int64, w io.Writer) error
}

// Parse decodes msg's raw bytes (already extracted via an Extractor) into
// a MIME tree, using host as the ContentHandler backing-store factory
// (see mime/tree.ParseMessage).
func Parse(host platform.Host, raw []byte) (*tree.Message, error) {
	return tree.ParseMessage(host, raw)
}
