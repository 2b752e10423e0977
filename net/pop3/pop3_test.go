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
	"bufio"
	"context"
	"net"
	"strings"
	"testing"

	mknet "github.com/go-vmime/mailkit/net"
	"github.com/go-vmime/mailkit/platform"
)

// fakeServer drives a scripted POP3 server over one side of a net.Pipe,
// the way POP3Store.cpp's author would have hand-tested against a real
// maildrop — here scripted instead, since no toolchain/network is
// available during this exercise.
type fakeServer struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func newFakeServer(t *testing.T, conn net.Conn) *fakeServer {
	return &fakeServer{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (s *fakeServer) expect(want string) {
	s.t.Helper()
	line, err := s.r.ReadString('\n')
	if err != nil {
		s.t.Fatalf("server: read: %v", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if want != "" && line != want {
		s.t.Fatalf("server: got %q, want %q", line, want)
	}
}

func (s *fakeServer) send(lines ...string) {
	s.t.Helper()
	for _, l := range lines {
		if _, err := s.conn.Write([]byte(l + "\r\n")); err != nil {
			s.t.Fatalf("server: write: %v", err)
		}
	}
}

func dialingHost(conn net.Conn) platform.Host {
	return testHost{conn: conn}
}

type testHost struct {
	platform.Host
	conn net.Conn
}

func (h testHost) DialSocket(ctx context.Context, network, addr string, tlsConfig *platform.TLSConfig) (net.Conn, error) {
	return h.conn, nil
}

func newTestStore(clientConn net.Conn) *Store {
	sess := mknet.NewSession()
	sess.Host = dialingHost(clientConn)
	return &Store{BaseStore: mknet.NewBaseStore(sess, &mknet.URL{Scheme: "pop3", Host: "mail.example.org"},
		mknet.StaticAuthenticator{User: "alice", Pass: "wonderland"})}
}

func TestConnectUserPass(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	srv := newFakeServer(t, serverConn)
	store := newTestStore(clientConn)

	done := make(chan error, 1)
	go func() { done <- store.Connect(context.Background()) }()

	srv.send("+OK POP3 server ready")
	srv.expect("USER alice")
	srv.send("+OK")
	srv.expect("PASS wonderland")
	srv.send("+OK logged in")

	if err := <-done; err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !store.IsConnected() {
		t.Fatal("expected IsConnected() after successful Connect")
	}
}

func TestConnectAPOP(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	srv := newFakeServer(t, serverConn)
	store := newTestStore(clientConn)
	store.Session.Properties.Set("options.apop", "true")

	done := make(chan error, 1)
	go func() { done <- store.Connect(context.Background()) }()

	srv.send("+OK POP3 server ready <1896.697170952@dbc.mtview.ca.us>")
	// accept whatever digest is sent; md5("<1896.697170952@dbc.mtview.ca.us>wonderland")
	srv.expect("")
	srv.send("+OK alice's maildrop has 2 messages")

	if err := <-done; err != nil {
		t.Fatalf("Connect (APOP): %v", err)
	}
}

func TestConnectAuthenticationFailure(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	srv := newFakeServer(t, serverConn)
	store := newTestStore(clientConn)

	done := make(chan error, 1)
	go func() { done <- store.Connect(context.Background()) }()

	srv.send("+OK POP3 server ready")
	srv.expect("USER alice")
	srv.send("-ERR no such mailbox")

	if err := <-done; err == nil {
		t.Fatal("expected authentication failure")
	}
	if store.IsConnected() {
		t.Fatal("did not expect IsConnected() after failed auth")
	}
}

func TestOpenInboxAndFetch(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	srv := newFakeServer(t, serverConn)
	store := newTestStore(clientConn)

	connDone := make(chan error, 1)
	go func() { connDone <- store.Connect(context.Background()) }()
	srv.send("+OK ready")
	srv.expect("USER alice")
	srv.send("+OK")
	srv.expect("PASS wonderland")
	srv.send("+OK")
	if err := <-connDone; err != nil {
		t.Fatalf("Connect: %v", err)
	}

	folderIface, err := store.GetFolder(context.Background(), "INBOX")
	if err != nil {
		t.Fatalf("GetFolder: %v", err)
	}
	folder := folderIface.(*Folder)

	openDone := make(chan error, 1)
	go func() { openDone <- folder.Open(context.Background(), mknet.ReadWrite) }()
	srv.expect("STAT")
	srv.send("+OK 2 320")
	if err := <-openDone; err != nil {
		t.Fatalf("Open: %v", err)
	}

	count, err := folder.GetMessageCount(context.Background())
	if err != nil || count != 2 {
		t.Fatalf("GetMessageCount: %d, %v", count, err)
	}

	msgs, err := folder.GetMessages(context.Background(), mknet.MessageSet{})
	if err != nil || len(msgs) != 2 {
		t.Fatalf("GetMessages: %d, %v", len(msgs), err)
	}

	fetchDone := make(chan error, 1)
	go func() { fetchDone <- folder.FetchMessages(context.Background(), msgs, mknet.AttrSize|mknet.AttrUID) }()
	srv.expect("LIST")
	srv.send("+OK", "1 47548", "2 12653", ".")
	srv.expect("UIDL")
	srv.send("+OK", "1 whqtswO00WBw418f9t5JxYwZ", "2 QhdPYR:00WBw1Ph7x7", ".")
	if err := <-fetchDone; err != nil {
		t.Fatalf("FetchMessages: %v", err)
	}

	if msgs[0].Size != 47548 || msgs[0].UID != "whqtswO00WBw418f9t5JxYwZ" {
		t.Fatalf("message 1 not populated: %+v", msgs[0])
	}
	if msgs[1].Size != 12653 || msgs[1].UID != "QhdPYR:00WBw1Ph7x7" {
		t.Fatalf("message 2 not populated: %+v", msgs[1])
	}
}

func TestExtractUndotStuffing(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	srv := newFakeServer(t, serverConn)
	store := newTestStore(clientConn)
	store.SetConnected(true)
	store.setTestConn(clientConn)

	folder := &Folder{store: store, path: "INBOX", open: true, msgCount: 1}

	var buf strings.Builder
	msg := &mknet.Message{Num: 1}
	extractDone := make(chan error, 1)
	go func() { extractDone <- folder.Extract(context.Background(), msg, &buf) }()

	srv.expect("RETR 1")
	srv.send("+OK 42 octets")
	// ".." at line start must be undone to "." (dot-stuffing transparency).
	srv.send("Subject: test", "..this line started with a dot", ".")

	if err := <-extractDone; err != nil {
		t.Fatalf("Extract: %v", err)
	}

	want := "Subject: test\r\n.this line started with a dot\r\n"
	if buf.String() != want {
		t.Fatalf("Extract: got %q, want %q", buf.String(), want)
	}
}

func (s *Store) setTestConn(conn net.Conn) {
	s.c = newConn(conn, nil)
}

func TestParseListOrUidlLine(t *testing.T) {
	n, v, ok := parseListOrUidlLine("1 whqtswO00WBw418f9t5JxYwZ")
	if !ok || n != 1 || v != "whqtswO00WBw418f9t5JxYwZ" {
		t.Fatalf("got %d %q %v", n, v, ok)
	}
	if _, _, ok := parseListOrUidlLine("garbage"); ok {
		t.Fatal("expected parse failure for malformed line")
	}
}

func TestStripResponseCode(t *testing.T) {
	if got := stripResponseCode("+OK 2 320"); got != "2 320" {
		t.Fatalf("got %q", got)
	}
}

func TestIsSuccessResponse(t *testing.T) {
	if !isSuccessResponse("+OK done") {
		t.Fatal("expected success")
	}
	if isSuccessResponse("-ERR nope") {
		t.Fatal("expected failure")
	}
}
