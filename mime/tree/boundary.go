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

package tree

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// GenerateRandomBoundaryString returns a fresh multipart boundary token
// (original_source/src/body.hpp's `generateRandomBoundaryString`), built
// from crypto/rand so concurrent message builders never collide.
func GenerateRandomBoundaryString() string {
	var buf [12]byte
	_, _ = rand.Read(buf[:])
	return "----=_Part_" + hex.EncodeToString(buf[:])
}

// IsValidBoundary reports whether s is a legal RFC 2046 §5.1.1 boundary
// token: 1-70 characters from bchars, not ending in a space.
func IsValidBoundary(s string) bool {
	if len(s) == 0 || len(s) > 70 {
		return false
	}
	if strings.HasSuffix(s, " ") {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("'()+_,-./:=? ", r):
		default:
			return false
		}
	}
	return true
}

// splitOnBoundary splits a multipart body's raw bytes into (preamble,
// parts, epilogue) given the boundary string, per RFC 2046 §5.1.1's
// "dash-boundary transport-padding CRLF" delimiter grammar.
func splitOnBoundary(raw []byte, boundary string) (preamble string, parts [][]byte, epilogue string) {
	delim := []byte("--" + boundary)
	closeDelim := []byte("--" + boundary + "--")

	text := string(raw)
	lines := strings.Split(text, "\n")

	var segments [][]byte
	var cur strings.Builder
	started := false
	closed := false

	flush := func() {
		segments = append(segments, []byte(strings.TrimSuffix(cur.String(), "\r")))
		cur.Reset()
	}

	for _, line := range lines {
		trimmed := strings.TrimSuffix(line, "\r")
		switch {
		case string(closeDelim) == trimmed:
			if started {
				flush()
			}
			closed = true
			started = false
		case string(delim) == trimmed:
			if started {
				flush()
			}
			started = true
		default:
			if started {
				cur.WriteString(line)
				cur.WriteByte('\n')
			} else if !closed {
				preamble += line + "\n"
			} else {
				epilogue += line + "\n"
			}
		}
	}
	if started {
		flush()
	}

	return preamble, segments, epilogue
}
