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
	"bufio"
	"context"
	"net"
	"strings"
	"testing"

	mknet "github.com/go-vmime/mailkit/net"
	"github.com/go-vmime/mailkit/platform"
)

// fakeServer drives a scripted IMAP server over one side of a net.Pipe,
// mirroring net/pop3's test technique since no toolchain/network is
// available during this exercise.
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

func newTestStore(clientConn net.Conn) *Store {
	sess := mknet.NewSession()
	sess.Host = testHost{conn: clientConn}
	return &Store{BaseStore: mknet.NewBaseStore(sess, &mknet.URL{Scheme: "imap", Host: "mail.example.org"},
		mknet.StaticAuthenticator{User: "alice", Pass: "wonderland"}), hierSep: '/'}
}

func TestConnectLoginAndDiscoverSeparator(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	srv := newFakeServer(t, serverConn)
	store := newTestStore(clientConn)

	done := make(chan error, 1)
	go func() { done <- store.Connect(context.Background()) }()

	srv.send("* OK IMAP4rev1 Service Ready")
	line := srv.expectPrefix("a001 LOGIN")
	tag := strings.Fields(line)[0]
	srv.send(tag + " OK LOGIN completed")
	line = srv.expectPrefix("a002 LIST")
	tag = strings.Fields(line)[0]
	srv.send(`* LIST (\Noselect) "." ""`, tag+" OK LIST completed")

	if err := <-done; err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !store.IsConnected() {
		t.Fatal("expected IsConnected() after successful Connect")
	}
	if store.hierSep != '.' {
		t.Fatalf("hierSep = %q, want '.'", store.hierSep)
	}
}

func TestConnectPreauth(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	srv := newFakeServer(t, serverConn)
	store := newTestStore(clientConn)

	done := make(chan error, 1)
	go func() { done <- store.Connect(context.Background()) }()

	srv.send("* PREAUTH IMAP4rev1 server logged in as alice")
	line := srv.expectPrefix("a001 LIST")
	tag := strings.Fields(line)[0]
	srv.send(`* LIST (\Noselect) "/" ""`, tag+" OK LIST completed")

	if err := <-done; err != nil {
		t.Fatalf("Connect (PREAUTH): %v", err)
	}
}

func TestSelectPopulatesState(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	srv := newFakeServer(t, serverConn)
	store := newTestStore(clientConn)
	store.SetConnected(true)
	store.c = newConn(clientConn, nil)

	folder := &Folder{store: store, path: "INBOX"}

	openDone := make(chan error, 1)
	go func() { openDone <- folder.Open(context.Background(), mknet.ReadWrite) }()

	line := srv.expectPrefix("a001 SELECT")
	tag := strings.Fields(line)[0]
	srv.send(
		"* 172 EXISTS",
		"* 1 RECENT",
		`* OK [UIDVALIDITY 3857529045] UIDs valid`,
		`* OK [UIDNEXT 4392] Predicted next UID`,
		`* FLAGS (\Answered \Flagged \Deleted \Seen \Draft)`,
		tag+" OK [READ-WRITE] SELECT completed",
	)

	if err := <-openDone; err != nil {
		t.Fatalf("Open: %v", err)
	}
	if folder.exists != 172 || folder.recent != 1 {
		t.Fatalf("exists=%d recent=%d", folder.exists, folder.recent)
	}
	if folder.uidValidity != 3857529045 || folder.uidNext != 4392 {
		t.Fatalf("uidValidity=%d uidNext=%d", folder.uidValidity, folder.uidNext)
	}
}

func TestFetchParsesEnvelopeFlagsAndUID(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	srv := newFakeServer(t, serverConn)
	store := newTestStore(clientConn)
	store.SetConnected(true)
	store.c = newConn(clientConn, nil)
	folder := &Folder{store: store, path: "INBOX", open: true, exists: 1}

	msgs := []*mknet.Message{{Folder: folder, Num: 1}}

	fetchDone := make(chan error, 1)
	go func() {
		fetchDone <- folder.FetchMessages(context.Background(), msgs, mknet.AttrUID|mknet.AttrFlags|mknet.AttrEnvelope|mknet.AttrSize)
	}()

	line := srv.expectPrefix("a001 FETCH")
	tag := strings.Fields(line)[0]
	srv.send(
		`* 1 FETCH (UID 101 RFC822.SIZE 4096 FLAGS (\Seen) ENVELOPE ("Mon, 7 Feb 1994 21:52:25 -0800" "Subject here" ` +
			`(("John Doe" NIL "jdoe" "example.org")) (("John Doe" NIL "jdoe" "example.org")) NIL ` +
			`(("Mary Smith" NIL "mary" "example.org")) NIL NIL NIL "<some-id@example.org>"))`,
		tag+" OK FETCH completed",
	)

	if err := <-fetchDone; err != nil {
		t.Fatalf("FetchMessages: %v", err)
	}

	msg := msgs[0]
	if msg.UID != "101" || msg.Size != 4096 {
		t.Fatalf("msg = %+v", msg)
	}
	if msg.Flags&mknet.FlagSeen == 0 {
		t.Fatalf("expected FlagSeen set, got %v", msg.Flags)
	}
	if msg.Header == nil {
		t.Fatal("expected header synthesized from ENVELOPE")
	}
	if got := msg.Header.Get("Subject"); got == nil || got.Body != "Subject here" {
		t.Fatalf("Subject header = %+v", got)
	}
	if got := msg.Header.Get("To"); got == nil || got.Body != "Mary Smith <mary@example.org>" {
		t.Fatalf("To header = %+v", got)
	}
}

func TestScannerReadsListsAndLiterals(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("(\"a\" {3}\r\nxyz NIL)\r\n"))
	sc := newScanner(r)
	tok, err := sc.readWord()
	if err != nil {
		t.Fatalf("readWord: %v", err)
	}
	list, ok := tok.([]token)
	if !ok || len(list) != 3 {
		t.Fatalf("got %#v", tok)
	}
	if list[0] != "a" {
		t.Fatalf("list[0] = %#v", list[0])
	}
	if list[1] != "xyz" {
		t.Fatalf("list[1] = %#v", list[1])
	}
	if list[2] != nil {
		t.Fatalf("list[2] (NIL) = %#v, want nil", list[2])
	}
}

func TestScannerStreamsLiteralToBodySink(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("{5}\r\nhello\r\n"))
	sc := newScanner(r)
	var buf strings.Builder
	sc.bodySink = &buf
	tok, err := sc.readWord()
	if err != nil {
		t.Fatalf("readWord: %v", err)
	}
	if _, ok := tok.(literalStreamed); !ok {
		t.Fatalf("got %#v, want literalStreamed", tok)
	}
	if buf.String() != "hello" {
		t.Fatalf("buf = %q", buf.String())
	}
	if sc.bodySink != nil {
		t.Fatal("bodySink should self-clear after one literal")
	}
}

func TestTagGeneratorWraps(t *testing.T) {
	var g tagGenerator
	first := g.next()
	if first != "a001" {
		t.Fatalf("first tag = %q, want a001", first)
	}
	g.number = maxTagNumber - 2
	last := g.next()
	if last != "Z999" {
		t.Fatalf("last tag before wrap = %q, want Z999", last)
	}
	wrapped := g.next()
	if wrapped != "a001" {
		t.Fatalf("wrapped tag = %q, want a001", wrapped)
	}
}

func TestParseResponseCode(t *testing.T) {
	code, value, ok := parseResponseCode("[UIDVALIDITY 1] UIDs valid")
	if !ok || code != "UIDVALIDITY" || value != "1" {
		t.Fatalf("got %q %q %v", code, value, ok)
	}
	if _, _, ok := parseResponseCode("no bracket here"); ok {
		t.Fatal("expected no response code")
	}
}
