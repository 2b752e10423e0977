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

	"github.com/go-vmime/mailkit/atomicbool"
	"github.com/go-vmime/mailkit/framework/log"
	"github.com/go-vmime/mailkit/platform"
)

// ServiceInfos describes a protocol's identity and default port
// (original_source's serviceInfos: propertyInfoMap + defaultPort, trimmed to
// what spec.md's URL/property catalogue actually uses).
type ServiceInfos struct {
	Protocol    string
	DefaultPort int
	Secure      bool // true for the *s (imaps/pop3s/smtps) variants
}

// Service is the common lifecycle every store/transport shares
// (original_source/src/messaging/service.hpp): connect/disconnect,
// isConnected, a keepalive and capability reporting.
type Service interface {
	Infos() ServiceInfos

	// Connect transitions the service from disconnected to connected
	// (socket dial + protocol greeting/authentication handshake).
	Connect(ctx context.Context) error

	// Disconnect reverses Connect and invalidates every live folder
	// handed out by this service (store.hpp's disconnect contract; a
	// transport's Disconnect just closes the socket).
	Disconnect() error

	// IsConnected reports the current lifecycle state.
	IsConnected() bool

	// Noop is a keepalive / "are you still there" probe.
	Noop(ctx context.Context) error

	// Capabilities returns the bitmask of optional operations this
	// service instance supports (spec.md §4.9).
	Capabilities() Capability
}

// BaseService bundles the state every concrete store/transport needs:
// connected flag, session, logger, auth, URL. Embedded (not wrapped) by
// net.BaseStore, and through it by net/pop3.Store, net/imap.Store and
// net/maildir.Store, and directly by
// net/smtptransport.SMTPTransport/SendmailTransport, the way a single
// shared base class would be in original_source.
type BaseService struct {
	Session *Session
	URL     *URL
	Auth    Authenticator
	Host    platform.Host
	Logger  log.Logger

	// connected uses atomicbool (kept from the teacher, see
	// atomicbool.AtomicBool) since Connect/Disconnect/IsConnected may be
	// called from different goroutines (a long RETR/FETCH in progress
	// while a caller checks IsConnected for a status display).
	connected atomicbool.AtomicBool
}

func NewBaseService(sess *Session, u *URL, auth Authenticator) BaseService {
	host := sess.Host
	if host == nil {
		host = platform.Default
	}
	return BaseService{Session: sess, URL: u, Auth: auth, Host: host, Logger: sess.Logger}
}

func (s *BaseService) IsConnected() bool { return s.connected.IsSet() }

// SetConnected is called by concrete Connect/Disconnect implementations in
// the net/pop3, net/imap, net/maildir and net/smtptransport packages to
// flip the lifecycle flag once the handshake has actually succeeded/torn
// down — BaseService itself has no protocol knowledge of when that is.
func (s *BaseService) SetConnected(v bool) { s.connected.Set(v) }
