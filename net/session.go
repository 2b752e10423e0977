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
	"fmt"

	"github.com/go-vmime/mailkit/framework/log"
	"github.com/go-vmime/mailkit/mkerrors"
	"github.com/go-vmime/mailkit/platform"
	"github.com/go-vmime/mailkit/registry"
)

// Authenticator supplies credentials to a service's authentication step
// (USER/PASS, LOGIN, PLAIN, APOP...); a session never embeds a password
// directly so the same session can reconnect after a credential rotation.
type Authenticator interface {
	Username() (string, error)
	Password() (string, error)
}

// StaticAuthenticator is the trivial Authenticator for credentials already
// known up-front.
type StaticAuthenticator struct {
	User string
	Pass string
}

func (a StaticAuthenticator) Username() (string, error) { return a.User, nil }
func (a StaticAuthenticator) Password() (string, error) { return a.Pass, nil }

// ServiceConstructor builds a new, unconnected Service for one URL, the
// per-protocol factory function registered in Services
// (original_source/src/messaging/serviceFactory.hpp's create(), generalized
// into registry.Registry as spec.md §9 calls for).
type ServiceConstructor func(sess *Session, url *URL, auth Authenticator) (Service, error)

// Services is the process-wide protocol-name -> constructor table
// (spec.md §4.9 "service factory"), populated by each net/<protocol>
// package's init() (pop3.init registers "pop3"/"pop3s", imap.init registers
// "imap"/"imaps", maildir.init registers "maildir", smtptransport.init
// registers "smtp"/"smtps"/"sendmail").
var Services = registry.New[ServiceConstructor]()

// Session is the shared context a store/transport service is constructed
// against — a property set, the platform host and a logger
// (original_source/src/messaging/session.cpp). It holds no credentials:
// GetStore/GetTransport each take their own Authenticator.
type Session struct {
	Properties *Properties
	Host       platform.Host
	Logger     log.Logger
}

// NewSession builds a session with default properties and the stock
// platform host; callers needing a fake clock/socket factory for tests
// replace Host after construction.
func NewSession() *Session {
	return &Session{
		Properties: NewProperties(),
		Host:       platform.Default,
	}
}

// GetStore looks up protocol in Services, constructs the service for url
// and fails unless it implements Store (session::getStore's TYPE_STORE
// check, done here via a Go type assertion instead of an RTTI tag).
func (s *Session) GetStore(rawURL string, auth Authenticator) (Store, error) {
	svc, err := s.getService(rawURL, auth)
	if err != nil {
		return nil, err
	}
	store, ok := svc.(Store)
	if !ok {
		return nil, mkerrors.New(mkerrors.KindOperationNotSupported, "net.Session.GetStore",
			fmt.Errorf("%q is not a store protocol", svc.Infos().Protocol), nil)
	}
	return store, nil
}

// GetTransport is GetStore's transport-side counterpart
// (session::getTransport's TYPE_TRANSPORT check).
func (s *Session) GetTransport(rawURL string, auth Authenticator) (Transport, error) {
	svc, err := s.getService(rawURL, auth)
	if err != nil {
		return nil, err
	}
	transport, ok := svc.(Transport)
	if !ok {
		return nil, mkerrors.New(mkerrors.KindOperationNotSupported, "net.Session.GetTransport",
			fmt.Errorf("%q is not a transport protocol", svc.Infos().Protocol), nil)
	}
	return transport, nil
}

func (s *Session) getService(rawURL string, auth Authenticator) (Service, error) {
	u, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	ctor, err := Services.New(u.Scheme, "")
	if err != nil {
		return nil, mkerrors.New(mkerrors.KindOperationNotSupported, "net.Session.getService", err,
			map[string]interface{}{"protocol": u.Scheme})
	}

	props := NewProperties()
	props.Merge(s.Properties)
	props.Merge(u.Properties)

	sub := &Session{Properties: props, Host: s.Host, Logger: s.Logger}
	return ctor(sub, u, auth)
}
