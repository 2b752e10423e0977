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

// Package smtptransport implements the client side of the outgoing-message
// transports spec.md's GLOSSARY names but original_source keeps as full
// modules: an RFC 5321 SMTP client (SMTPTransport) and a local
// sendmail(1)-pipe transport (SendmailTransport).
//
// Grounded on original_source/src/messaging/sendmail/sendmailTransport.cpp
// for the overall connect/send/disconnect shape, with the SMTP wire
// protocol itself (no C++ SMTPTransport.cpp survives in original_source)
// modeled after net/pop3 and net/imap's own conn.go request/response style.
package smtptransport

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/emersion/go-sasl"
	"github.com/go-vmime/mailkit/mkerrors"
	"github.com/go-vmime/mailkit/net"
	"github.com/go-vmime/mailkit/platform"
)

func init() {
	smtpCtor := func(string) (net.ServiceConstructor, error) { return newSMTPService, nil }
	if err := net.Services.Register("smtp", smtpCtor); err != nil {
		panic(err)
	}
	if err := net.Services.Register("smtps", smtpCtor); err != nil {
		panic(err)
	}

	sendmailCtor := func(string) (net.ServiceConstructor, error) { return newSendmailService, nil }
	if err := net.Services.Register("sendmail", sendmailCtor); err != nil {
		panic(err)
	}
}

// DefaultPort is SMTP's IANA-assigned port.
const DefaultPort = 25

// DefaultSecurePort is smtps' port (implicit TLS, as opposed to STARTTLS —
// STARTTLS negotiation is left to the platform.Host.DialSocket hook per
// spec.md §1 Non-goals, the same split net/pop3 and net/imap already make).
const DefaultSecurePort = 465

func newSMTPService(sess *net.Session, u *net.URL, auth net.Authenticator) (net.Service, error) {
	base := net.NewBaseService(sess, u, auth)
	return &SMTPTransport{BaseService: base}, nil
}

// SMTPTransport is a client connection to an RFC 5321 SMTP server: EHLO,
// optional AUTH, and one MAIL FROM/RCPT TO/DATA exchange per Send.
type SMTPTransport struct {
	net.BaseService

	c              *conn
	authMechanisms map[string]bool
}

var _ net.Transport = (*SMTPTransport)(nil)

func (t *SMTPTransport) Infos() net.ServiceInfos {
	port := DefaultPort
	secure := t.URL.Scheme == "smtps"
	if secure {
		port = DefaultSecurePort
	}
	return net.ServiceInfos{Protocol: "smtp", DefaultPort: port, Secure: secure}
}

// Capabilities is empty: Transport carries none of the Store-side bits
// (CapCreateFolder et al. have no meaning for a message sink).
func (t *SMTPTransport) Capabilities() net.Capability { return 0 }

// Connect dials, reads the greeting, sends EHLO, and authenticates via
// AUTH PLAIN/LOGIN if the service's Authenticator supplies a non-empty
// username; if the server then offers neither mechanism, Connect fails
// (sendmailTransport.cpp's connect()/helo()/
// authenticate() sequence, generalized from its single fixed auth scheme
// to the two SASL mechanisms spec.md leaves in scope).
func (t *SMTPTransport) Connect(ctx context.Context) error {
	if t.IsConnected() {
		return mkerrors.New(mkerrors.KindAlreadyConnected, "smtptransport.Connect", nil, nil)
	}

	addr := fmt.Sprintf("%s:%d", t.URL.Host, t.portOrDefault())
	tlsCfg := &platform.TLSConfig{
		Enabled:    t.URL.Scheme == "smtps",
		ServerName: t.URL.Host,
	}
	nc, err := t.Host.DialSocket(ctx, "tcp", addr, tlsCfg)
	if err != nil {
		return mkerrors.New(mkerrors.KindConnection, "smtptransport.Connect", err, map[string]interface{}{"addr": addr})
	}

	logger := func(line string, outbound bool) {
		dir := "S:"
		if outbound {
			dir = "C:"
		}
		t.Logger.Debugf("%s %s", dir, line)
	}
	c := newConn(nc, logger)

	greeting, err := c.readReply()
	if err != nil {
		nc.Close()
		return err
	}
	if !greeting.ok() {
		nc.Close()
		return mkerrors.New(mkerrors.KindConnectionGreeting, "smtptransport.Connect",
			nil, map[string]interface{}{"response": greeting.String()})
	}

	ehlo, err := c.command("smtptransport.EHLO", "EHLO "+t.Host.Hostname())
	if err != nil {
		nc.Close()
		return err
	}
	t.authMechanisms = parseAuthMechanisms(ehlo.lines)

	t.c = c

	if t.Auth != nil {
		user, uerr := t.Auth.Username()
		if uerr == nil && user != "" {
			if err := t.authenticate(user); err != nil {
				nc.Close()
				t.c = nil
				return err
			}
		}
	}

	t.SetConnected(true)
	return nil
}

// authenticate runs AUTH PLAIN if the server offered it, else AUTH LOGIN,
// else fails: the Non-goal in spec.md §1 is a broader SASL mechanism
// catalogue, not authentication altogether.
func (t *SMTPTransport) authenticate(user string) error {
	pass, err := t.Auth.Password()
	if err != nil {
		return err
	}

	var client sasl.Client
	switch {
	case t.authMechanisms["PLAIN"]:
		client = sasl.NewPlainClient("", user, pass)
	case t.authMechanisms["LOGIN"]:
		client = sasl.NewLoginClient(user, pass)
	default:
		return mkerrors.New(mkerrors.KindOperationNotSupported, "smtptransport.authenticate",
			fmt.Errorf("server offers neither AUTH PLAIN nor AUTH LOGIN"), nil)
	}

	mech, ir, err := client.Start()
	if err != nil {
		return mkerrors.New(mkerrors.KindAuthentication, "smtptransport.authenticate", err, nil)
	}

	line := "AUTH " + mech
	if ir != nil {
		line += " " + base64.StdEncoding.EncodeToString(ir)
	}
	if err := t.c.send(line); err != nil {
		return err
	}

	for {
		r, err := t.c.readReply()
		if err != nil {
			return err
		}
		switch {
		case r.code == 235:
			return nil
		case r.code == 334:
			challenge, decErr := base64.StdEncoding.DecodeString(strings.Join(r.lines, ""))
			if decErr != nil {
				return mkerrors.New(mkerrors.KindInvalidResponse, "smtptransport.authenticate", decErr, nil)
			}
			resp, nextErr := client.Next(challenge)
			if nextErr != nil {
				return mkerrors.New(mkerrors.KindAuthentication, "smtptransport.authenticate", nextErr, nil)
			}
			if err := t.c.send(base64.StdEncoding.EncodeToString(resp)); err != nil {
				return err
			}
		default:
			return mkerrors.New(mkerrors.KindAuthentication, "smtptransport.authenticate",
				nil, map[string]interface{}{"code": r.code, "response": r.String()})
		}
	}
}

func (t *SMTPTransport) portOrDefault() int {
	if t.URL.Port != "" {
		if n, err := strconv.Atoi(t.URL.Port); err == nil {
			return n
		}
	}
	return t.Infos().DefaultPort
}

func (t *SMTPTransport) Disconnect() error {
	if !t.IsConnected() {
		return mkerrors.New(mkerrors.KindNotConnected, "smtptransport.Disconnect", nil, nil)
	}
	_ = t.c.send("QUIT")
	_, _ = t.c.readReply()
	t.SetConnected(false)
	t.c = nil
	return nil
}

func (t *SMTPTransport) Noop(ctx context.Context) error {
	if !t.IsConnected() {
		return mkerrors.New(mkerrors.KindNotConnected, "smtptransport.Noop", nil, nil)
	}
	_, err := t.c.command("smtptransport.NOOP", "NOOP")
	return err
}

// Send runs one MAIL FROM/RCPT TO.../DATA exchange (sendmailTransport.cpp's
// send()), dot-stuffing raw on the way out per RFC 5321 §4.5.2 — the
// inverse of net/pop3's dot-unstuffing on the receive side.
func (t *SMTPTransport) Send(ctx context.Context, sender string, recipients []string, raw []byte) error {
	if !t.IsConnected() {
		return mkerrors.New(mkerrors.KindNotConnected, "smtptransport.Send", nil, nil)
	}
	if len(recipients) == 0 {
		return mkerrors.New(mkerrors.KindInvalidArgument, "smtptransport.Send",
			fmt.Errorf("no recipients"), nil)
	}

	if _, err := t.c.command("smtptransport.MAIL", "MAIL FROM:<"+sender+">"); err != nil {
		return err
	}
	for _, rcpt := range recipients {
		if _, err := t.c.command("smtptransport.RCPT", "RCPT TO:<"+rcpt+">"); err != nil {
			return err
		}
	}

	if _, err := t.c.command("smtptransport.DATA", "DATA"); err != nil {
		return err
	}

	if err := t.c.send(dotStuff(raw)); err != nil {
		return err
	}
	if err := t.c.send("."); err != nil {
		return err
	}
	r, err := t.c.readReply()
	if err != nil {
		return err
	}
	if !r.ok() {
		return mkerrors.New(mkerrors.KindCommand, "smtptransport.DATA", nil,
			map[string]interface{}{"code": r.code, "response": r.String()})
	}
	return nil
}

// dotStuff doubles any line beginning with "." so the bare "." terminator
// line below can't be confused with message content (RFC 5321 §4.5.2).
func dotStuff(raw []byte) string {
	var b strings.Builder
	sc := bufio.NewScanner(strings.NewReader(string(raw)))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	first := true
	for sc.Scan() {
		if !first {
			b.WriteString("\r\n")
		}
		first = false
		line := sc.Text()
		if strings.HasPrefix(line, ".") {
			b.WriteByte('.')
		}
		b.WriteString(line)
	}
	return b.String()
}

// parseAuthMechanisms finds the "AUTH ..." EHLO response line and uppercases
// its mechanism tokens for lookup.
func parseAuthMechanisms(lines []string) map[string]bool {
	out := make(map[string]bool)
	for _, line := range lines {
		upper := strings.ToUpper(line)
		if !strings.HasPrefix(upper, "AUTH") {
			continue
		}
		for _, tok := range strings.Fields(upper)[1:] {
			out[tok] = true
		}
	}
	return out
}
