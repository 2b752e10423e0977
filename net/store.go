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

	"github.com/go-vmime/mailkit/registry"
)

// Store is a Service that additionally exposes the folder hierarchy
// (original_source/src/messaging/store.hpp verbatim operation set:
// getDefaultFolder, getRootFolder, getFolder).
type Store interface {
	Service

	// GetDefaultFolder returns the protocol's natural starting point
	// (INBOX for IMAP/Maildir, the sole implicit mailbox for POP3).
	GetDefaultFolder(ctx context.Context) (Folder, error)

	// GetRootFolder returns the top of the hierarchy, from which every
	// other folder is reachable via GetFolders/GetFolder.
	GetRootFolder(ctx context.Context) (Folder, error)

	// GetFolder resolves a slash-separated path to a folder handle.
	GetFolder(ctx context.Context, path string) (Folder, error)
}

// BaseStore is embedded by the concrete per-protocol Store implementations.
// It tracks every folder handle the store has ever handed out, so that:
//
//   - disconnect (Service.Disconnect) can invalidate all of them at once
//     (spec.md §4.9 "Failure semantics": a closed store poisons its
//     folders), and
//   - a mutation made through one folder handle (a flag change, an
//     expunge) can be mirrored onto every *other* live handle for the
//     same path held by a different session, per spec.md §5's
//     mirror-propagation rule, instead of silently going stale.
//
// This is the Go repurposing of framework/resource.Singleton's "keyed
// container you can sweep" shape (see registry.WeakSet's doc comment) —
// here keyed by folder path rather than by module-instance name.
type BaseStore struct {
	BaseService
	EventSource

	folders *registry.WeakSet[Folder]
}

func NewBaseStore(sess *Session, u *URL, auth Authenticator) BaseStore {
	return BaseStore{
		BaseService: NewBaseService(sess, u, auth),
		folders:     registry.NewWeakSet[Folder](),
	}
}

// TrackFolder registers f as live under its path so it participates in
// future Mirror/InvalidateAll calls. Concrete Store.GetFolder
// implementations must call this on every folder they construct.
func (s *BaseStore) TrackFolder(f Folder) {
	s.folders.Add(f.Path(), f)
}

// UntrackFolder removes f from the live set (called by folder.Close).
func (s *BaseStore) UntrackFolder(f Folder) {
	s.folders.Remove(f.Path(), func(o Folder) bool { return o == f })
}

// Mirror calls mutate on every other live folder handle sharing path, so a
// flag/expunge/rename made through one session's handle is observed by
// every other handle before it next talks to the backend (spec.md §5).
// The folder that originated the mutation should be excluded by the caller
// passing it as except.
func (s *BaseStore) Mirror(path string, except Folder, mutate func(Folder)) {
	s.folders.Each(path, func(f Folder) {
		if f == except {
			return
		}
		mutate(f)
	})
}

// InvalidateAll marks every folder this store ever handed out as detached
// and clears the tracking set (called from Service.Disconnect).
func (s *BaseStore) InvalidateAll() {
	s.folders.EachAll(func(_ string, f Folder) {
		f.Invalidate()
	})
}
