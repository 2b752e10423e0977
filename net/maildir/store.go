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

// Package maildir implements the Maildir store: a filesystem-backed engine
// with no socket, no server round-trips and no inherent ordering beyond
// what a directory listing gives you, grounded on
// original_source/src/net/maildir/{maildirStore,maildirFolder,maildirFormat,maildirUtils}.cpp.
package maildir

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-vmime/mailkit/mkerrors"
	"github.com/go-vmime/mailkit/net"
)

func init() {
	ctor := func(string) (net.ServiceConstructor, error) { return newService, nil }
	if err := net.Services.Register("maildir", ctor); err != nil {
		panic(err)
	}
}

func newService(sess *net.Session, u *net.URL, auth net.Authenticator) (net.Service, error) {
	base := net.NewBaseStore(sess, u, auth)
	return &Store{BaseStore: base}, nil
}

// Store is a connected maildir root directory
// (original_source/src/net/maildir/maildirStore.cpp). Unlike POP3/IMAP
// there is no socket: Connect only resolves and, if necessary, creates the
// filesystem root named by the URL path.
type Store struct {
	net.BaseStore

	root string
	fmt  format
}

var _ net.Store = (*Store)(nil)

func (s *Store) Infos() net.ServiceInfos {
	return net.ServiceInfos{Protocol: "maildir", DefaultPort: 0, Secure: false}
}

// Connect resolves the filesystem root from the "maildir://host/path" URL
// (net/url.go's URL.Path field maps directly onto the filesystem, per
// spec.md §6), creating it if absent, and detects which of the two layouts
// (maildirFormat::detect) the root already uses.
func (s *Store) Connect(ctx context.Context) error {
	if s.IsConnected() {
		return mkerrors.New(mkerrors.KindAlreadyConnected, "maildir.Connect", nil, nil)
	}

	root := s.URL.Path
	if root == "" {
		return mkerrors.New(mkerrors.KindInvalidArgument, "maildir.Connect",
			fmt.Errorf("maildir URL carries no filesystem path"), nil)
	}

	if info, err := os.Stat(root); err != nil {
		if !os.IsNotExist(err) {
			return mkerrors.New(mkerrors.KindFilesystem, "maildir.Connect", err, map[string]interface{}{"root": root})
		}
		if err := os.MkdirAll(root, 0o700); err != nil {
			return mkerrors.New(mkerrors.KindFilesystem, "maildir.Connect", err, map[string]interface{}{"root": root})
		}
	} else if !info.IsDir() {
		return mkerrors.New(mkerrors.KindFilesystem, "maildir.Connect",
			fmt.Errorf("%s is not a directory", root), nil)
	}

	s.root = root
	s.fmt = detect(root)
	s.SetConnected(true)
	return nil
}

func (s *Store) Disconnect() error {
	if !s.IsConnected() {
		return mkerrors.New(mkerrors.KindNotConnected, "maildir.Disconnect", nil, nil)
	}
	s.InvalidateAll()
	s.SetConnected(false)
	return nil
}

// Noop is a no-op: there is no keepalive to send over a filesystem
// connection (maildirStore::noop's comment verbatim).
func (s *Store) Noop(ctx context.Context) error {
	if !s.IsConnected() {
		return mkerrors.New(mkerrors.KindNotConnected, "maildir.Noop", nil, nil)
	}
	return nil
}

// Capabilities matches maildirStore::getCapabilities()'s full bit set,
// identical to IMAP's — Maildir can create/rename/delete folders, add,
// copy and delete messages, store flags, fetch partially and extract parts.
func (s *Store) Capabilities() net.Capability {
	return net.CapCreateFolder | net.CapRenameFolder | net.CapAddMessage | net.CapCopyMessage |
		net.CapDeleteMessage | net.CapPartialFetch | net.CapMessageFlags | net.CapExtractPart
}

// GetDefaultFolder returns "INBOX", an ordinary top-level folder directory
// rather than the root itself — see DESIGN.md's Open Question decision:
// vmime's maildirStore::getDefaultFolder names a lowercase "inbox"
// component, kept here as uppercase "INBOX" for consistency with the
// IMAP/POP3 engines this repo already implements.
func (s *Store) GetDefaultFolder(ctx context.Context) (net.Folder, error) {
	return s.GetFolder(ctx, "INBOX")
}

// GetRootFolder returns the empty-path container folder: it holds no
// messages of its own, only the top-level subfolder listing
// (maildirStore::getRootFolder).
func (s *Store) GetRootFolder(ctx context.Context) (net.Folder, error) {
	return s.GetFolder(ctx, "")
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// GetFolder resolves a slash-separated path into a Folder handle without
// checking existence on disk (Folder.Exists does that), mirroring
// maildirStore::getFolder's lightweight construction.
func (s *Store) GetFolder(ctx context.Context, path string) (net.Folder, error) {
	if !s.IsConnected() {
		return nil, mkerrors.New(mkerrors.KindNotConnected, "maildir.GetFolder", nil, nil)
	}
	components := splitPath(path)
	for _, c := range components {
		if err := validateFolderName(c); err != nil {
			return nil, err
		}
	}
	f := &Folder{store: s, path: strings.Join(components, "/")}
	s.TrackFolder(f)
	return f, nil
}

// validateFolderName rejects names maildirStore::isValidFolderName does:
// leading/trailing whitespace, or a name that starts with '.' (that prefix
// is reserved for the on-disk escaping schemes themselves).
func validateFolderName(name string) error {
	if name == "" || name != strings.TrimSpace(name) {
		return mkerrors.New(mkerrors.KindInvalidFolderName, "maildir.GetFolder", nil, map[string]interface{}{"name": name})
	}
	if strings.HasPrefix(name, ".") {
		return mkerrors.New(mkerrors.KindInvalidFolderName, "maildir.GetFolder", nil, map[string]interface{}{"name": name})
	}
	return nil
}
