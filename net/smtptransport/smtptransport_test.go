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
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"testing"

	mknet "github.com/go-vmime/mailkit/net"
	"github.com/go-vmime/mailkit/platform"
)

// fakeServer drives a scripted SMTP server over one side of a net.Pipe, the
// same technique net/pop3 and net/imap's tests use.
type fakeServer struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func newFakeServer(t *testing.T, conn net.Conn) *fakeServer {
	return &fakeServer{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (s *fakeServer) expectPrefix(want string) string {
	s.t.Helper()
	line, err := s.r.ReadString('\n')
	if err != nil {
		s.t.Fatalf("server: read: %v", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, want) {
		s.t.Fatalf("server: got %q, want prefix %q", line, want)
	}
	return line
}

func (s *fakeServer) readLine() string {
	s.t.Helper()
	line, err := s.r.ReadString('\n')
	if err != nil {
		s.t.Fatalf("server: read: %v", err)
	}
	return strings.TrimRight(line, "\r\n")
}

func (s *fakeServer) send(lines ...string) {
	s.t.Helper()
	for _, l := range lines {
		if _, err := s.conn.Write([]byte(l + "\r\n")); err != nil {
			s.t.Fatalf("server: write: %v", err)
		}
	}
}

type testHost struct {
	platform.Host
	conn net.Conn
}

func (h testHost) DialSocket(ctx context.Context, network, addr string, tlsConfig *platform.TLSConfig) (net.Conn, error) {
	return h.conn, nil
}

func (h testHost) Hostname() string { return "client.example.org" }

func newTestTransport(clientConn net.Conn) *SMTPTransport {
	sess := mknet.NewSession()
	sess.Host = testHost{conn: clientConn}
	return &SMTPTransport{BaseService: mknet.NewBaseService(sess, &mknet.URL{Scheme: "smtp", Host: "mail.example.org"},
		mknet.StaticAuthenticator{})}
}

func TestConnectAndSendRunsExpectedCommandSequence(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	srv := newFakeServer(t, serverConn)
	transport := newTestTransport(clientConn)

	done := make(chan error, 1)
	go func() { done <- transport.Connect(context.Background()) }()

	srv.send("220 mail.example.org ESMTP")
	srv.expectPrefix("EHLO client.example.org")
	srv.send("250-mail.example.org", "250 PIPELINING")

	if err := <-done; err != nil {
		t.Fatalf("Connect: %v", err)
	}

	done = make(chan error, 1)
	go func() {
		done <- transport.Send(context.Background(), "alice@example.org", []string{"bob@example.org"},
			[]byte("Subject: hi\r\n\r\n.leading dot\r\nbody\r\n"))
	}()

	srv.expectPrefix("MAIL FROM:<alice@example.org>")
	srv.send("250 OK")
	srv.expectPrefix("RCPT TO:<bob@example.org>")
	srv.send("250 OK")
	srv.expectPrefix("DATA")
	srv.send("354 Start mail input")

	if got := srv.readLine(); got != "Subject: hi" {
		t.Fatalf("data line 1 = %q", got)
	}
	if got := srv.readLine(); got != "" {
		t.Fatalf("data line 2 = %q, want blank", got)
	}
	if got := srv.readLine(); got != "..leading dot" {
		t.Fatalf("dot-stuffed line = %q, want %q", got, "..leading dot")
	}
	if got := srv.readLine(); got != "body" {
		t.Fatalf("data line 4 = %q", got)
	}
	if got := srv.readLine(); got != "." {
		t.Fatalf("terminator = %q, want \".\"", got)
	}
	srv.send("250 Message accepted")

	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestConnectAuthenticatesWithPlainWhenOffered(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	srv := newFakeServer(t, serverConn)
	sess := mknet.NewSession()
	sess.Host = testHost{conn: clientConn}
	transport := &SMTPTransport{BaseService: mknet.NewBaseService(sess,
		&mknet.URL{Scheme: "smtp", Host: "mail.example.org"},
		mknet.StaticAuthenticator{User: "alice", Pass: "wonderland"})}

	done := make(chan error, 1)
	go func() { done <- transport.Connect(context.Background()) }()

	srv.send("220 mail.example.org ESMTP")
	srv.expectPrefix("EHLO client.example.org")
	srv.send("250-mail.example.org", "250 AUTH PLAIN LOGIN")
	srv.expectPrefix("AUTH PLAIN ")
	srv.send("235 Authenticated")

	if err := <-done; err != nil {
		t.Fatalf("Connect: %v", err)
	}
}

func TestSendRejectsEmptyRecipients(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()
	transport := newTestTransport(clientConn)
	transport.SetConnected(true)

	if err := transport.Send(context.Background(), "alice@example.org", nil, []byte("x")); err == nil {
		t.Fatal("expected an error for zero recipients")
	}
}

// fakeRunHost fakes RunChildProcess for SendmailTransport: it records argv
// and stdin instead of exec'ing a real binary.
type fakeRunHost struct {
	platform.Host
	gotArgv  []string
	gotStdin []byte
	err      error
}

func (h *fakeRunHost) RunChildProcess(ctx context.Context, argv []string, stdin io.Reader) ([]byte, error) {
	h.gotArgv = argv
	b, _ := io.ReadAll(stdin)
	h.gotStdin = b
	return nil, h.err
}

func TestSendmailTransportPipesMessageAndBuildsArgv(t *testing.T) {
	host := &fakeRunHost{}
	sess := mknet.NewSession()
	sess.Host = host
	transport := &SendmailTransport{BaseService: mknet.NewBaseService(sess,
		&mknet.URL{Scheme: "sendmail", Path: "/usr/sbin/sendmail"}, mknet.StaticAuthenticator{})}

	if err := transport.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	raw := []byte("Subject: hi\r\n\r\nbody\r\n")
	if err := transport.Send(context.Background(), "alice@example.org", []string{"bob@example.org", "carol@example.org"}, raw); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if !bytes.Equal(host.gotStdin, raw) {
		t.Fatalf("stdin = %q, want %q", host.gotStdin, raw)
	}
	wantArgv := []string{"/usr/sbin/sendmail", "-i", "-f", "alice@example.org", "--", "bob@example.org", "carol@example.org"}
	if len(host.gotArgv) != len(wantArgv) {
		t.Fatalf("argv = %v, want %v", host.gotArgv, wantArgv)
	}
	for i := range wantArgv {
		if host.gotArgv[i] != wantArgv[i] {
			t.Fatalf("argv[%d] = %q, want %q", i, host.gotArgv[i], wantArgv[i])
		}
	}
}

func TestSendmailTransportDefaultsBinaryPath(t *testing.T) {
	host := &fakeRunHost{}
	sess := mknet.NewSession()
	sess.Host = host
	transport := &SendmailTransport{BaseService: mknet.NewBaseService(sess,
		&mknet.URL{Scheme: "sendmail"}, mknet.StaticAuthenticator{})}

	if err := transport.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := transport.Send(context.Background(), "a@b", []string{"c@d"}, []byte("x")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if host.gotArgv[0] != DefaultSendmailPath {
		t.Fatalf("argv[0] = %q, want default %q", host.gotArgv[0], DefaultSendmailPath)
	}
}
