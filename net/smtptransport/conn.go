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
	"net"
	"strconv"
	"strings"

	"github.com/go-vmime/mailkit/mkerrors"
)

// conn wraps the raw socket with SMTP's line-oriented reply protocol (RFC
// 5321 §4.2): a reply is one or more lines sharing the same three-digit
// code, all but the last joined to it with "-" instead of " ". Modeled on
// net/pop3.conn's bufio.Reader-based line wrapper since the framing problem
// (accumulate until a terminator line) is the same shape.
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
		return mkerrors.New(mkerrors.KindConnection, "smtptransport.send", err, nil)
	}
	return nil
}

// reply is one parsed SMTP response: a code shared by every line, and the
// text of each line with the code and its separator stripped.
type reply struct {
	code  int
	lines []string
}

func (r reply) String() string { return strings.Join(r.lines, "\n") }

// ok reports whether the reply's code is a 2xx or 3xx success (RFC 5321
// §4.2.1: "2yz" is success, "3yz" only for DATA's interim go-ahead).
func (r reply) ok() bool { return r.code >= 200 && r.code < 400 }

// readReply reads a full (possibly multi-line) reply and fails unless every
// continuation line carries the same code as the first.
func (c *conn) readReply() (reply, error) {
	var r reply
	for {
		line, err := c.r.ReadString('\n')
		if err != nil {
			return reply{}, mkerrors.New(mkerrors.KindConnection, "smtptransport.readReply", err, nil)
		}
		line = strings.TrimRight(line, "\r\n")
		if c.logger != nil {
			c.logger(line, false)
		}
		if len(line) < 4 {
			return reply{}, mkerrors.New(mkerrors.KindInvalidResponse, "smtptransport.readReply",
				nil, map[string]interface{}{"line": line})
		}
		code, err := strconv.Atoi(line[:3])
		if err != nil {
			return reply{}, mkerrors.New(mkerrors.KindInvalidResponse, "smtptransport.readReply",
				err, map[string]interface{}{"line": line})
		}
		if r.code == 0 {
			r.code = code
		} else if code != r.code {
			return reply{}, mkerrors.New(mkerrors.KindInvalidResponse, "smtptransport.readReply",
				nil, map[string]interface{}{"line": line, "expected_code": r.code})
		}
		r.lines = append(r.lines, strings.TrimSpace(line[4:]))
		if line[3] == ' ' {
			return r, nil
		}
		// line[3] == '-': a continuation line, keep reading.
	}
}

// command sends line and returns the reply, failing if it isn't a success
// code.
func (c *conn) command(op, line string) (reply, error) {
	if err := c.send(line); err != nil {
		return reply{}, err
	}
	r, err := c.readReply()
	if err != nil {
		return reply{}, err
	}
	if !r.ok() {
		return r, mkerrors.New(mkerrors.KindCommand, op, nil,
			map[string]interface{}{"code": r.code, "response": r.String()})
	}
	return r, nil
}
