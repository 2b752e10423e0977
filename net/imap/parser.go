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
	"fmt"
	"strconv"

	"github.com/go-vmime/mailkit/mkerrors"
)

// untaggedResponse is one "*" response line: either a numbered response
// ("12 EXISTS", "12 FETCH (...)") or a keyword-only one ("OK ...",
// "CAPABILITY ...", "LIST (...) \"/\" INBOX"). num is -1 for the latter.
type untaggedResponse struct {
	num    int
	kind   string
	fields []token
	text   string
}

// taggedResponse is the command-completion line: "<tag> OK|NO|BAD <text>".
type taggedResponse struct {
	tag    string
	status string
	text   string
}

// response is the result of reading one line from the server: exactly one
// of continuation, untagged or tagged is set. Grounded on
// IMAPConnection.cpp's readResponse()/resp_cond_bye/resp_cond_auth
// branching (continuation vs. untagged vs. tagged completion), rewritten
// around this package's token scanner instead of vmime's parser objects.
type response struct {
	continuation bool
	contText     string
	untagged     *untaggedResponse
	tagged       *taggedResponse
}

// readResponse reads and classifies exactly one server response line.
func (s *scanner) readResponse() (*response, error) {
	if err := s.skipSpace(); err != nil {
		return nil, err
	}
	b, err := s.peek()
	if err != nil {
		return nil, err
	}

	switch b {
	case '+':
		if _, err := s.readByte(); err != nil {
			return nil, err
		}
		text, err := s.readToEOL()
		if err != nil {
			return nil, err
		}
		return &response{continuation: true, contText: trimLeadingSpace(text)}, nil

	case '*':
		if _, err := s.readByte(); err != nil {
			return nil, err
		}
		u, err := s.readUntagged()
		if err != nil {
			return nil, err
		}
		return &response{untagged: u}, nil

	default:
		t, err := s.readTagged()
		if err != nil {
			return nil, err
		}
		return &response{tagged: t}, nil
	}
}

// readUntagged reads everything after "* ": an optional leading number (as
// in "12 EXISTS" / "12 FETCH (...)"), a keyword, and either a structured
// field list (FETCH/LIST/LSUB/SEARCH/FLAGS/STATUS) or a free-text tail
// (OK/NO/BAD/BYE/CAPABILITY/EXISTS/RECENT/EXPUNGE and anything else).
func (s *scanner) readUntagged() (*untaggedResponse, error) {
	if err := s.skipSpace(); err != nil {
		return nil, err
	}

	u := &untaggedResponse{num: -1}

	b, err := s.peek()
	if err != nil {
		return nil, err
	}
	if b >= '0' && b <= '9' {
		numTok, err := s.readAtom()
		if err != nil {
			return nil, err
		}
		n, err := strconv.Atoi(numTok.(string))
		if err != nil {
			return nil, mkerrors.New(mkerrors.KindParse, "imap.readUntagged", err, nil)
		}
		u.num = n
		if err := s.skipSpace(); err != nil {
			return nil, err
		}
	}

	kindTok, err := s.readAtom()
	if err != nil {
		return nil, err
	}
	u.kind = kindTok.(string)

	switch u.kind {
	case "FETCH", "LIST", "LSUB", "SEARCH", "FLAGS", "STATUS":
		if err := s.skipSpace(); err != nil {
			return nil, err
		}
		eol, err := s.atEOL()
		if err != nil {
			return nil, err
		}
		for !eol {
			tok, err := s.readWord()
			if err != nil {
				return nil, err
			}
			u.fields = append(u.fields, tok)
			if err := s.skipSpace(); err != nil {
				return nil, err
			}
			eol, err = s.atEOL()
			if err != nil {
				return nil, err
			}
		}
		if err := s.consumeEOL(); err != nil {
			return nil, err
		}
	default:
		// OK/NO/BAD/BYE/CAPABILITY/EXISTS/RECENT/EXPUNGE and anything
		// else: the rest of the line is free text (response codes like
		// "[UIDVALIDITY 1]" are parsed out of this text by the caller).
		text, err := s.readToEOL()
		if err != nil {
			return nil, err
		}
		u.text = trimLeadingSpace(text)
	}

	return u, nil
}

// readTagged reads "<tag> OK|NO|BAD <text>", the command-completion line.
func (s *scanner) readTagged() (*taggedResponse, error) {
	tagTok, err := s.readAtom()
	if err != nil {
		return nil, err
	}
	tag, ok := tagTok.(string)
	if !ok {
		return nil, mkerrors.New(mkerrors.KindInvalidResponse, "imap.readTagged",
			fmt.Errorf("expected tag, got NIL"), nil)
	}
	if err := s.skipSpace(); err != nil {
		return nil, err
	}
	statusTok, err := s.readAtom()
	if err != nil {
		return nil, err
	}
	status, _ := statusTok.(string)

	text, err := s.readToEOL()
	if err != nil {
		return nil, err
	}
	return &taggedResponse{tag: tag, status: status, text: trimLeadingSpace(text)}, nil
}

func trimLeadingSpace(s string) string {
	if len(s) > 0 && s[0] == ' ' {
		return s[1:]
	}
	return s
}

// parseResponseCode scans an untagged status line's text for a leading
// "[CODE value]" bracket (e.g. "[UIDVALIDITY 1] UIDs valid"), as emitted on
// SELECT/EXAMINE. Returns ok=false when no bracket is present.
func parseResponseCode(text string) (code, value string, ok bool) {
	if len(text) == 0 || text[0] != '[' {
		return "", "", false
	}
	end := -1
	for i := 1; i < len(text); i++ {
		if text[i] == ']' {
			end = i
			break
		}
	}
	if end < 0 {
		return "", "", false
	}
	inner := text[1:end]
	for i := 0; i < len(inner); i++ {
		if inner[i] == ' ' {
			return inner[:i], inner[i+1:], true
		}
	}
	return inner, "", true
}

// asString reads a token expected to be a plain string (atom, quoted
// string or literal) — not NIL, not a list.
func asString(t token) (string, bool) {
	s, ok := t.(string)
	return s, ok
}

// asList reads a token expected to be a parenthesized list.
func asList(t token) ([]token, bool) {
	l, ok := t.([]token)
	return l, ok
}
