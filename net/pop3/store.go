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

package pop3

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-vmime/mailkit/mkerrors"
	"github.com/go-vmime/mailkit/net"
	"github.com/go-vmime/mailkit/platform"
)

func init() {
	ctor := func(string) (net.ServiceConstructor, error) { return newService, nil }
	if err := net.Services.Register("pop3", ctor); err != nil {
		panic(err)
	}
	if err := net.Services.Register("pop3s", ctor); err != nil {
		panic(err)
	}
	if err := net.Services.Alias("apop", "pop3"); err != nil {
		panic(err)
	}
}

// DefaultPort is POP3's IANA-assigned port (POP3Store::_infos::getDefaultPort).
const DefaultPort = 110

// DefaultSecurePort is pop3s' port.
const DefaultSecurePort = 995

func newService(sess *net.Session, u *net.URL, auth net.Authenticator) (net.Service, error) {
	base := net.NewBaseStore(sess, u, auth)
	return &Store{BaseStore: base}, nil
}

// Store is a POP3 connection exposing a single implicit INBOX folder,
// grounded on original_source/src/messaging/POP3Store.cpp.
type Store struct {
	net.BaseStore

	c *conn
}

var _ net.Store = (*Store)(nil)

func (s *Store) Infos() net.ServiceInfos {
	port := DefaultPort
	secure := s.URL.Scheme == "pop3s"
	if secure {
		port = DefaultSecurePort
	}
	return net.ServiceInfos{Protocol: "pop3", DefaultPort: port, Secure: secure}
}

// Connect dials the server, reads the greeting, and authenticates — via
// APOP if the "options.apop" property is set and the server's greeting
// carries a message-id, via USER/PASS if "options.apop" is unset. When APOP
// is requested but unavailable or rejected, USER/PASS is tried only if
// "options.apop.fallback" is set; otherwise Connect fails
// (POP3Store::connect's decision tree).
func (s *Store) Connect(ctx context.Context) error {
	if s.IsConnected() {
		return mkerrors.New(mkerrors.KindAlreadyConnected, "pop3.Connect", nil, nil)
	}

	addr := fmt.Sprintf("%s:%d", s.URL.Host, s.portOrDefault())
	tlsCfg := &platform.TLSConfig{
		Enabled:    s.URL.Scheme == "pop3s",
		ServerName: s.URL.Host,
	}
	nc, err := s.Host.DialSocket(ctx, "tcp", addr, tlsCfg)
	if err != nil {
		return mkerrors.New(mkerrors.KindConnection, "pop3.Connect", err, map[string]interface{}{"addr": addr})
	}

	logger := func(line string, outbound bool) {
		dir := "S:"
		if outbound {
			dir = "C:"
		}
		s.Logger.Debugf("%s %s", dir, line)
	}
	c := newConn(nc, logger)

	greeting, err := c.readLine()
	if err != nil {
		nc.Close()
		return err
	}
	if !isSuccessResponse(greeting) {
		nc.Close()
		return mkerrors.New(mkerrors.KindConnectionGreeting, "pop3.Connect",
			fmt.Errorf("%s", greeting), map[string]interface{}{"response": greeting})
	}

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

	authed := false
	if s.Session.Properties.GetBool("options.apop", false) {
		if mid := extractAngleBracketed(greeting); mid != "" {
			digest := md5.Sum([]byte(mid + pass))
			if err := c.send("APOP " + user + " " + hex.EncodeToString(digest[:])); err != nil {
				nc.Close()
				return err
			}
			if _, err := c.readStatusLine("APOP"); err == nil {
				authed = true
			} else if !s.Session.Properties.GetBool("options.apop.fallback", false) {
				nc.Close()
				return mkerrors.New(mkerrors.KindAuthentication, "pop3.Connect", err, nil)
			}
		} else if !s.Session.Properties.GetBool("options.apop.fallback", false) {
			nc.Close()
			return mkerrors.New(mkerrors.KindOperationNotSupported, "pop3.Connect",
				fmt.Errorf("server greeting carries no message-id, APOP unavailable"), nil)
		}
	}

	if !authed {
		if err := c.send("USER " + user); err != nil {
			nc.Close()
			return err
		}
		if _, err := c.readStatusLine("USER"); err != nil {
			nc.Close()
			return mkerrors.New(mkerrors.KindAuthentication, "pop3.Connect", err, nil)
		}

		if err := c.send("PASS " + pass); err != nil {
			nc.Close()
			return err
		}
		if _, err := c.readStatusLine("PASS"); err != nil {
			nc.Close()
			return mkerrors.New(mkerrors.KindAuthentication, "pop3.Connect", err, nil)
		}
	}

	s.c = c
	s.SetConnected(true)
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

// Disconnect sends QUIT and invalidates every folder this store ever
// returned (POP3Store::internalDisconnect's onStoreDisconnected fan-out).
func (s *Store) Disconnect() error {
	if !s.IsConnected() {
		return mkerrors.New(mkerrors.KindNotConnected, "pop3.Disconnect", nil, nil)
	}

	s.InvalidateAll()

	_ = s.c.send("QUIT")
	_, _ = s.c.readLine()

	s.SetConnected(false)
	s.c = nil
	return nil
}

func (s *Store) Noop(ctx context.Context) error {
	if !s.IsConnected() {
		return mkerrors.New(mkerrors.KindNotConnected, "pop3.Noop", nil, nil)
	}
	if err := s.c.send("NOOP"); err != nil {
		return err
	}
	_, err := s.c.readStatusLine("NOOP")
	return err
}

// Capabilities reports only DELETE_MESSAGE: POP3 supports no folder
// creation/renaming, no server-side copy, no flag storage beyond deletion,
// and no partial fetch (POP3Store::getCapabilities' single
// CAPABILITY_DELETE_MESSAGE bit).
func (s *Store) Capabilities() net.Capability {
	return net.CapDeleteMessage
}

func (s *Store) GetDefaultFolder(ctx context.Context) (net.Folder, error) {
	return s.GetFolder(ctx, "INBOX")
}

func (s *Store) GetRootFolder(ctx context.Context) (net.Folder, error) {
	return s.GetFolder(ctx, "")
}

// GetFolder resolves path; POP3 exposes only the root (folder-container)
// and "INBOX" (message-container) paths, per POP3Folder::getType.
func (s *Store) GetFolder(ctx context.Context, path string) (net.Folder, error) {
	if !s.IsConnected() {
		return nil, mkerrors.New(mkerrors.KindNotConnected, "pop3.GetFolder", nil, nil)
	}
	if path != "" && !strings.EqualFold(path, "INBOX") {
		return nil, mkerrors.New(mkerrors.KindFolderNotFound, "pop3.GetFolder", nil, map[string]interface{}{"path": path})
	}

	f := &Folder{store: s, path: path}
	s.TrackFolder(f)
	return f, nil
}

func extractAngleBracketed(line string) string {
	start := strings.IndexByte(line, '<')
	end := strings.IndexByte(line, '>')
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return line[start : end+1]
}
