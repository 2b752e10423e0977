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
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/go-vmime/mailkit/mkerrors"
)

// conn wraps the raw socket with IMAP's tagged command/response protocol
// (IMAPConnection.cpp's send()/readResponse() pair, generalized from vmime's
// single parsed-response-tree object to the full list of untagged responses
// a command may generate before its tagged completion).
type conn struct {
	nc     net.Conn
	sc     *scanner
	tags   tagGenerator
	logger func(line string, outbound bool)
}

func newConn(nc net.Conn, logger func(line string, outbound bool)) *conn {
	return &conn{nc: nc, sc: newScanner(bufio.NewReader(nc)), logger: logger}
}

func (c *conn) rawSend(line string) error {
	if c.logger != nil {
		c.logger(line, true)
	}
	if _, err := c.nc.Write([]byte(line + "\r\n")); err != nil {
		return mkerrors.New(mkerrors.KindConnection, "imap.send", err, nil)
	}
	return nil
}

// readGreeting reads the server's untagged greeting line
// (IMAPConnection::connect: resp_cond_bye/resp_cond_auth/PREAUTH).
// preauth reports whether the greeting was PREAUTH (already authenticated).
func (c *conn) readGreeting() (preauth bool, err error) {
	resp, err := c.sc.readResponse()
	if err != nil {
		return false, err
	}
	if resp.untagged == nil {
		return false, mkerrors.New(mkerrors.KindConnectionGreeting, "imap.readGreeting",
			fmt.Errorf("expected untagged greeting"), nil)
	}
	switch resp.untagged.kind {
	case "OK":
		return false, nil
	case "PREAUTH":
		return true, nil
	case "BYE":
		return false, mkerrors.New(mkerrors.KindConnectionGreeting, "imap.readGreeting",
			fmt.Errorf("%s", resp.untagged.text), map[string]interface{}{"response": resp.untagged.text})
	default:
		return false, mkerrors.New(mkerrors.KindConnectionGreeting, "imap.readGreeting",
			fmt.Errorf("unexpected greeting %q", resp.untagged.kind), nil)
	}
}

// command sends "<tag> <line>\r\n" and reads responses until the tagged
// completion for that tag arrives, accumulating every untagged response
// seen along the way (IMAPConnection.cpp's send+readResponse, generalized
// over the whole untagged list rather than one parsed tree).
func (c *conn) command(line string) ([]*untaggedResponse, *taggedResponse, error) {
	tag := c.tags.next()
	if err := c.rawSend(tag + " " + line); err != nil {
		return nil, nil, err
	}
	return c.readUntil(tag)
}

func (c *conn) readUntil(tag string) ([]*untaggedResponse, *taggedResponse, error) {
	var untagged []*untaggedResponse
	for {
		resp, err := c.sc.readResponse()
		if err != nil {
			return untagged, nil, err
		}
		if resp.untagged != nil {
			if c.logger != nil {
				c.logger(fmt.Sprintf("* %s %s", resp.untagged.kind, resp.untagged.text), false)
			}
			untagged = append(untagged, resp.untagged)
			continue
		}
		if resp.tagged != nil {
			if c.logger != nil {
				c.logger(fmt.Sprintf("%s %s %s", resp.tagged.tag, resp.tagged.status, resp.tagged.text), false)
			}
			if resp.tagged.tag != tag {
				return untagged, nil, mkerrors.New(mkerrors.KindInvalidResponse, "imap.command",
					fmt.Errorf("tag mismatch: got %q, want %q", resp.tagged.tag, tag), nil)
			}
			return untagged, resp.tagged, nil
		}
		// A bare continuation mid-command is not expected outside
		// appendMessage/fetchBody's own read loops; ignore it.
	}
}

// checkOK turns a non-OK tagged completion into a KindCommand error.
func checkOK(op string, status *taggedResponse) error {
	if status.status != "OK" {
		return mkerrors.New(mkerrors.KindCommand, op, fmt.Errorf("%s %s", status.status, status.text),
			map[string]interface{}{"status": status.status, "text": status.text})
	}
	return nil
}

// appendMessage implements the synchronizing-literal APPEND flow: send the
// command line up to and including the literal length, wait for the "+"
// continuation, write the literal bytes plus trailing CRLF, then read to
// the tagged completion (RFC 3501 §6.3.11; there is no vmime APPEND client
// path to ground on, since IMAPStore.cpp's folder never implements
// addMessage — this is transcribed from the ABNF spec.md §4.11 distills).
func (c *conn) appendMessage(mailbox string, flagsSpec string, raw []byte) ([]*untaggedResponse, *taggedResponse, error) {
	tag := c.tags.next()
	line := fmt.Sprintf("%s APPEND %s", tag, quoteString(mailbox))
	if flagsSpec != "" {
		line += " (" + flagsSpec + ")"
	}
	line += fmt.Sprintf(" {%d}", len(raw))
	if err := c.rawSend(line); err != nil {
		return nil, nil, err
	}

	resp, err := c.sc.readResponse()
	if err != nil {
		return nil, nil, err
	}
	if !resp.continuation {
		return nil, nil, mkerrors.New(mkerrors.KindInvalidResponse, "imap.appendMessage",
			fmt.Errorf("expected continuation request before literal"), nil)
	}

	if _, err := c.nc.Write(raw); err != nil {
		return nil, nil, mkerrors.New(mkerrors.KindConnection, "imap.appendMessage", err, nil)
	}
	if _, err := c.nc.Write([]byte("\r\n")); err != nil {
		return nil, nil, mkerrors.New(mkerrors.KindConnection, "imap.appendMessage", err, nil)
	}

	return c.readUntil(tag)
}

// fetchBody issues a FETCH command whose BODY[...] literal is streamed
// directly to w instead of buffered, arming the scanner's one-shot
// bodySink for the duration of the call.
func (c *conn) fetchBody(line string, w io.Writer) ([]*untaggedResponse, *taggedResponse, error) {
	c.sc.bodySink = w
	defer func() { c.sc.bodySink = nil }()
	return c.command(line)
}

// quoteString renders s as an IMAP quoted string, escaping '\' and '"'
// (grounded on IMAPUtils::quoteString, referenced by IMAPConnection.cpp's
// LOGIN call site).
func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' || c == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	b.WriteByte('"')
	return b.String()
}
