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

// Package imap implements the IMAP4rev1 client engine (spec.md §4.11):
// tagged commands, a streaming response parser, SELECT/EXAMINE state,
// FETCH/STORE/COPY/APPEND, and hierarchy-separator discovery.
//
// Grounded on original_source/src/messaging/IMAPTag.cpp, IMAPStore.cpp and
// IMAPConnection.cpp for protocol shape (tag generation, connect/LOGIN
// sequence, capability bits), and on alienscience-imapsrv's lexer.go for
// the token-level grammar (quoted-string/literal/atom scanning) — reused
// here to parse *responses* rather than the commands that corpus package
// parses, with parenthesized-list and NIL productions added since
// FETCH/BODYSTRUCTURE need them and a client never needs to lex a client
// command.
package imap

// tagGenerator produces IMAPTag.cpp's 4-character tags: a base-52 letter
// prefix followed by three decimal digits, wrapping after sm_maxNumber.
type tagGenerator struct {
	number int
}

const maxTagNumber = 52 * 10 * 10 * 10

const tagPrefixChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// next advances and renders the next tag (IMAPTag::operator++ + generate).
func (g *tagGenerator) next() string {
	g.number++
	if g.number >= maxTagNumber {
		g.number = 1
	}
	n := g.number
	tag := make([]byte, 4)
	tag[0] = tagPrefixChars[n/1000]
	tag[1] = '0' + byte((n%1000)/100)
	tag[2] = '0' + byte((n%100)/10)
	tag[3] = '0' + byte(n%10)
	return string(tag)
}
