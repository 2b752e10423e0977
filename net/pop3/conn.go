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

// Package pop3 implements the POP3 client engine (spec.md §4.10): a single
// implicit INBOX mailbox, USER/PASS or APOP authentication, LIST/UIDL/RETR/
// DELE/STAT/NOOP/QUIT, and dot-unstuffing of multi-line responses.
//
// Grounded directly on original_source/src/messaging/POP3Store.cpp and
// src/messaging/pop3/POP3Folder.cpp — the corpus has no POP3 *client*
// reference implementation in Go, so the C++ original is the grounding of
// record for the request/response and dot-unstuffing state machine.
package pop3

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-vmime/mailkit/mkerrors"
)

// conn wraps the raw socket with POP3's line-oriented protocol: single-line
// "+OK ..."/"-ERR ..." responses and multi-line ones terminated by a bare
// "." line, with leading-dot transparency per RFC 1939 §3 (POP3Store.cpp's
// checkTerminator/readResponse, reworked around bufio.Reader instead of a
// manual rolling 2-byte lookback since Go's buffered line reads make the
// "\n.." -> "\n." transparency check a plain string-prefix trim per line).
type conn struct {
	nc     net.Conn
	r      *bufio.Reader
	logger func(line string, outbound bool)
}

func newConn(nc net.Conn, logger func(line string, outbound bool)) *conn {
	return &conn{nc: nc, r: bufio.NewReader(nc), logger: logger}
}

func (c *conn) send(line string) error {
	if c.logger != nil {
		c.logger(line, true)
	}
	_, err := c.nc.Write([]byte(line + "\r\n"))
	if err != nil {
		return mkerrors.New(mkerrors.KindConnection, "pop3.send", err, nil)
	}
	return nil
}

// readLine reads one CRLF (or bare LF) terminated line, stripped of the
// terminator.
func (c *conn) readLine() (string, error) {
	line, err := c.r.ReadString('\n')
	if err != nil {
		return "", mkerrors.New(mkerrors.KindConnection, "pop3.readLine", err, nil)
	}
	line = strings.TrimRight(line, "\r\n")
	if c.logger != nil {
		c.logger(line, false)
	}
	return line, nil
}

// readStatusLine reads the single status line every POP3 response begins
// with and fails unless it starts with "+OK".
func (c *conn) readStatusLine(op string) (string, error) {
	line, err := c.readLine()
	if err != nil {
		return "", err
	}
	if !isSuccessResponse(line) {
		return "", mkerrors.New(mkerrors.KindCommand, op, fmt.Errorf("%s", line), map[string]interface{}{"response": line})
	}
	return line, nil
}

// readMultiLine reads a dot-terminated body following a successful status
// line (POP3Store.cpp's readResponse(multiLine=true) + checkTerminator),
// undoing byte-stuffing: a line consisting of just "." ends the body, and
// a line beginning with ".." has one leading dot removed.
func (c *conn) readMultiLine() ([]string, error) {
	var lines []string
	for {
		line, err := c.readLine()
		if err != nil {
			return nil, err
		}
		if line == "." {
			return lines, nil
		}
		if strings.HasPrefix(line, "..") {
			line = line[1:]
		}
		lines = append(lines, line)
	}
}

func isSuccessResponse(line string) bool {
	return strings.HasPrefix(line, "+OK")
}

// stripResponseCode drops the leading "+OK"/"-ERR" token, returning the
// remainder with leading whitespace trimmed (POP3Store::stripResponseCode).
func stripResponseCode(line string) string {
	idx := strings.IndexAny(line, " \t")
	if idx == -1 {
		return ""
	}
	return strings.TrimLeft(line[idx+1:], " \t")
}

// parseListOrUidlLine parses one "<num> <value>" LIST/UIDL response line
// (POP3Folder::parseMultiListOrUidlResponse).
func parseListOrUidlLine(line string) (num int, value string, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, "", false
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, "", false
	}
	return n, fields[1], true
}
