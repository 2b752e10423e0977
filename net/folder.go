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
)

// FolderMode is folder::open's mode argument (spec.md §4.9 verbatim:
// "Modes are {READ_ONLY, READ_WRITE}").
type FolderMode int

const (
	ReadOnly FolderMode = iota
	ReadWrite
)

// FlagMode is setMessageFlags' mode argument (spec.md §4.9 verbatim:
// "Flag modes are {SET, ADD, REMOVE}").
type FlagMode int

const (
	FlagsSet FlagMode = iota
	FlagsAdd
	FlagsRemove
)

// Attribute is fetchMessages' attribute bitmask (spec.md §4.9 verbatim:
// "Attributes bitmask covers {ENVELOPE, STRUCTURE, CONTENT_INFO, FLAGS,
// SIZE, FULL_HEADER, UID, IMPORTANCE}").
type Attribute uint16

const (
	AttrEnvelope Attribute = 1 << iota
	AttrStructure
	AttrContentInfo
	AttrFlags
	AttrSize
	AttrFullHeader
	AttrUID
	AttrImportance
)

// CreateAttrs is folder::create's attribute argument — whether the new
// folder itself is a container for messages, subfolders, or both.
type CreateAttrs uint8

const (
	CreateHoldsMessages CreateAttrs = 1 << iota
	CreateHoldsFolders
)

// Status is folder::status' result: message count plus unseen count.
type Status struct {
	Count  int
	Unseen int
}

// Folder is the common operation set every store's folder implementation
// exposes (spec.md §4.9 verbatim operation list). Implemented by
// net/pop3.Folder, net/imap.Folder and net/maildir.Folder.
type Folder interface {
	// Path is the folder's full hierarchical path, slash-separated
	// regardless of the underlying protocol's own separator.
	Path() string

	Open(ctx context.Context, mode FolderMode) error
	Close(ctx context.Context, expunge bool) error
	IsOpen() bool

	Create(ctx context.Context, attrs CreateAttrs) error
	Destroy(ctx context.Context) error
	Rename(ctx context.Context, newPath string) error
	Exists(ctx context.Context) (bool, error)

	GetFolder(ctx context.Context, name string) (Folder, error)
	GetFolders(ctx context.Context, recursive bool) ([]Folder, error)

	GetMessage(ctx context.Context, num int) (*Message, error)
	GetMessages(ctx context.Context, set MessageSet) ([]*Message, error)
	GetMessageCount(ctx context.Context) (int, error)

	DeleteMessages(ctx context.Context, set MessageSet) error
	SetMessageFlags(ctx context.Context, set MessageSet, flags Flags, mode FlagMode) error
	AddMessage(ctx context.Context, rawMessage []byte, flags Flags) error
	CopyMessages(ctx context.Context, dest string, set MessageSet) error

	Status(ctx context.Context) (Status, error)
	Expunge(ctx context.Context) error
	FetchMessages(ctx context.Context, msgs []*Message, attrs Attribute) error

	// Invalidate marks the folder detached after its owning store
	// disconnects or the folder is closed; every subsequent operation
	// fails with mkerrors.KindIllegalState (spec.md §4.9 "Failure
	// semantics").
	Invalidate()
}
