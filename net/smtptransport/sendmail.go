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

package smtptransport

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-vmime/mailkit/mkerrors"
	"github.com/go-vmime/mailkit/net"
)

// DefaultSendmailPath is the binary invoked when the "sendmail://" URL's
// path is empty, the same fallback sendmailTransport.cpp uses before
// consulting its "sendmail.path" property.
const DefaultSendmailPath = "/usr/sbin/sendmail"

func newSendmailService(sess *net.Session, u *net.URL, auth net.Authenticator) (net.Service, error) {
	base := net.NewBaseService(sess, u, auth)
	return &SendmailTransport{BaseService: base}, nil
}

// SendmailTransport delivers by piping a generated message to a local
// sendmail(1)-compatible binary's stdin, passing recipients as argv —
// grounded on original_source/src/messaging/sendmail/sendmailTransport.cpp,
// with the actual exec done through platform.Host.RunChildProcess instead
// of a direct os/exec call (maddy's own external-process style in
// externalauth.go and internal/check/command/command.go: resolve the
// binary path up front, build argv, pipe stdin, inspect the result).
type SendmailTransport struct {
	net.BaseService
}

var _ net.Transport = (*SendmailTransport)(nil)

func (t *SendmailTransport) Infos() net.ServiceInfos {
	return net.ServiceInfos{Protocol: "sendmail", DefaultPort: 0, Secure: false}
}

func (t *SendmailTransport) Capabilities() net.Capability { return 0 }

// Connect has nothing to dial: it only marks the transport connected and
// does not check the binary, since RunChildProcess forks fresh per Send
// rather than holding a long-lived pipe the way SMTPTransport holds a socket.
func (t *SendmailTransport) Connect(ctx context.Context) error {
	if t.IsConnected() {
		return mkerrors.New(mkerrors.KindAlreadyConnected, "smtptransport.sendmail.Connect", nil, nil)
	}
	t.SetConnected(true)
	return nil
}

func (t *SendmailTransport) Disconnect() error {
	if !t.IsConnected() {
		return mkerrors.New(mkerrors.KindNotConnected, "smtptransport.sendmail.Disconnect", nil, nil)
	}
	t.SetConnected(false)
	return nil
}

func (t *SendmailTransport) Noop(ctx context.Context) error {
	if !t.IsConnected() {
		return mkerrors.New(mkerrors.KindNotConnected, "smtptransport.sendmail.Noop", nil, nil)
	}
	return nil
}

// binaryPath returns the sendmail://<path> URL's path, or
// DefaultSendmailPath if it's empty (sendmailTransport.cpp's
// getProperties()->getProperty("binPath", "/usr/sbin/sendmail")).
func (t *SendmailTransport) binaryPath() string {
	if t.URL.Path != "" {
		return t.URL.Path
	}
	return DefaultSendmailPath
}

// Send execs the sendmail binary with "-i" (don't let a lone "." in a
// non-dot-stuffed body end the message early) and "-f sender", recipients
// as trailing argv, feeding raw on stdin (sendmailTransport.cpp's send():
// argv construction + pipe, exit code checked for failure).
func (t *SendmailTransport) Send(ctx context.Context, sender string, recipients []string, raw []byte) error {
	if !t.IsConnected() {
		return mkerrors.New(mkerrors.KindNotConnected, "smtptransport.sendmail.Send", nil, nil)
	}
	if len(recipients) == 0 {
		return mkerrors.New(mkerrors.KindInvalidArgument, "smtptransport.sendmail.Send",
			fmt.Errorf("no recipients"), nil)
	}

	argv := append([]string{t.binaryPath(), "-i", "-f", sender, "--"}, recipients...)

	out, err := t.Host.RunChildProcess(ctx, argv, bytes.NewReader(raw))
	if err != nil {
		return mkerrors.New(mkerrors.KindCommand, "smtptransport.sendmail.Send", err,
			map[string]interface{}{"argv": argv, "output": string(out)})
	}
	return nil
}
