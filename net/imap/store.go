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
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-vmime/mailkit/mkerrors"
	"github.com/go-vmime/mailkit/net"
	"github.com/go-vmime/mailkit/platform"
)

func init() {
	ctor := func(string) (net.ServiceConstructor, error) { return newService, nil }
	if err := net.Services.Register("imap", ctor); err != nil {
		panic(err)
	}
	if err := net.Services.Register("imaps", ctor); err != nil {
		panic(err)
	}
}

// DefaultPort is IMAP's IANA-assigned port (IMAPStore::_infos::getDefaultPort).
const DefaultPort = 143

// DefaultSecurePort is imaps' port.
const DefaultSecurePort = 993

func newService(sess *net.Session, u *net.URL, auth net.Authenticator) (net.Service, error) {
	base := net.NewBaseStore(sess, u, auth)
	return &Store{BaseStore: base, hierSep: '/'}, nil
}

// Store is an IMAP4rev1 connection, grounded on
// original_source/src/messaging/IMAPStore.cpp.
type Store struct {
	net.BaseStore

	c       *conn
	hierSep byte
}

var _ net.Store = (*Store)(nil)

func (s *Store) Infos() net.ServiceInfos {
	port := DefaultPort
	secure := s.URL.Scheme == "imaps"
	if secure {
		port = DefaultSecurePort
	}
	return net.ServiceInfos{Protocol: "imap", DefaultPort: port, Secure: secure}
}

// Connect dials, reads the greeting, authenticates (unless the greeting was
// already PREAUTH), and discovers the hierarchy separator via LIST "" ""
// (IMAPStore::connect, generalized from vmime's SASL/plain login dispatch
// to the single LOGIN path spec.md §4.11 requires).
func (s *Store) Connect(ctx context.Context) error {
	if s.IsConnected() {
		return mkerrors.New(mkerrors.KindAlreadyConnected, "imap.Connect", nil, nil)
	}

	addr := fmt.Sprintf("%s:%d", s.URL.Host, s.portOrDefault())
	tlsCfg := &platform.TLSConfig{
		Enabled:    s.URL.Scheme == "imaps",
		ServerName: s.URL.Host,
	}
	nc, err := s.Host.DialSocket(ctx, "tcp", addr, tlsCfg)
	if err != nil {
		return mkerrors.New(mkerrors.KindConnection, "imap.Connect", err, map[string]interface{}{"addr": addr})
	}

	logger := func(line string, outbound bool) {
		dir := "S:"
		if outbound {
			dir = "C:"
		}
		s.Logger.Debugf("%s %s", dir, line)
	}
	c := newConn(nc, logger)

	preauth, err := c.readGreeting()
	if err != nil {
		nc.Close()
		return err
	}

	if !preauth {
		user, err := s.Auth.Username()
		if err != nil {
			nc.Close()
			return err
		}
		pass, err := s.Auth.Password()
		if err != nil {
			nc.Close()
			return err
		}

		_, status, err := c.command("LOGIN " + quoteString(user) + " " + quoteString(pass))
		if err != nil {
			nc.Close()
			return err
		}
		if err := checkOK("imap.Connect", status); err != nil {
			nc.Close()
			return mkerrors.New(mkerrors.KindAuthentication, "imap.Connect", err, nil)
		}
	}

	s.c = c

	if err := s.discoverHierarchySeparator(); err != nil {
		nc.Close()
		return err
	}

	s.SetConnected(true)
	return nil
}

// discoverHierarchySeparator issues LIST "" "" and records the hierarchy
// delimiter char every untagged LIST response carries in its second field
// (IMAPConnection.cpp's mailbox_list()->quoted_char() extraction).
func (s *Store) discoverHierarchySeparator() error {
	untagged, status, err := s.c.command(`LIST "" ""`)
	if err != nil {
		return err
	}
	if err := checkOK("imap.discoverHierarchySeparator", status); err != nil {
		return err
	}
	for _, u := range untagged {
		if u.kind != "LIST" || len(u.fields) < 2 {
			continue
		}
		if sep, ok := asString(u.fields[1]); ok && sep != "" {
			s.hierSep = sep[0]
			return nil
		}
	}
	// No LIST response (unusual, but not fatal): keep the default '/'.
	return nil
}

func (s *Store) portOrDefault() int {
	if s.URL.Port != "" {
		if n, err := strconv.Atoi(s.URL.Port); err == nil {
			return n
		}
	}
	return s.Infos().DefaultPort
}

// Disconnect sends LOGOUT and invalidates every folder this store ever
// returned (IMAPStore::internalDisconnect's folder-invalidation fan-out).
func (s *Store) Disconnect() error {
	if !s.IsConnected() {
		return mkerrors.New(mkerrors.KindNotConnected, "imap.Disconnect", nil, nil)
	}

	s.InvalidateAll()

	_, _, _ = s.c.command("LOGOUT")

	s.SetConnected(false)
	s.c = nil
	return nil
}

func (s *Store) Noop(ctx context.Context) error {
	if !s.IsConnected() {
		return mkerrors.New(mkerrors.KindNotConnected, "imap.Noop", nil, nil)
	}
	_, status, err := s.c.command("NOOP")
	if err != nil {
		return err
	}
	return checkOK("imap.Noop", status)
}

// Capabilities matches IMAPStore::getCapabilities()'s bit list exactly:
// IMAP is the one engine supporting the full operation set spec.md §4.9
// names.
func (s *Store) Capabilities() net.Capability {
	return net.CapCreateFolder | net.CapRenameFolder | net.CapAddMessage | net.CapCopyMessage |
		net.CapDeleteMessage | net.CapPartialFetch | net.CapMessageFlags | net.CapExtractPart
}

func (s *Store) GetDefaultFolder(ctx context.Context) (net.Folder, error) {
	return s.GetFolder(ctx, "INBOX")
}

func (s *Store) GetRootFolder(ctx context.Context) (net.Folder, error) {
	return s.GetFolder(ctx, "")
}

// GetFolder resolves a slash-separated path into a Folder handle, without
// checking existence on the wire (folder.Exists does that); mailboxName
// converts to the server's own hierarchy separator at the point of use.
func (s *Store) GetFolder(ctx context.Context, path string) (net.Folder, error) {
	if !s.IsConnected() {
		return nil, mkerrors.New(mkerrors.KindNotConnected, "imap.GetFolder", nil, nil)
	}
	f := &Folder{store: s, path: path}
	s.TrackFolder(f)
	return f, nil
}

// mailboxName converts a slash-separated net.Folder path to the server's
// own hierarchy-separator form (net/folder.go's Path() doc comment: paths
// are slash-separated "regardless of the underlying protocol's own
// separator").
func (s *Store) mailboxName(path string) string {
	if path == "" {
		return "INBOX"
	}
	if strings.EqualFold(path, "INBOX") {
		return "INBOX"
	}
	if s.hierSep == '/' {
		return path
	}
	return strings.ReplaceAll(path, "/", string(s.hierSep))
}

// folderPath is mailboxName's inverse, used when turning a LIST response's
// mailbox name back into a net.Folder path.
func (s *Store) folderPath(mailboxName string) string {
	if strings.EqualFold(mailboxName, "INBOX") {
		return "INBOX"
	}
	if s.hierSep == '/' {
		return mailboxName
	}
	return strings.ReplaceAll(mailboxName, string(s.hierSep), "/")
}
