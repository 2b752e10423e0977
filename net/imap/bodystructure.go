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
	"strings"

	"github.com/go-vmime/mailkit/mime/tree"
	"github.com/go-vmime/mailkit/mime/types"
	"github.com/go-vmime/mailkit/mkerrors"
)

// parseBodyStructure decodes a FETCH BODY/BODYSTRUCTURE field list (spec.md
// §4.11: "BODY/BODYSTRUCTURE recursive part descriptor") into the
// mime/tree.BodyPart type net.Message.Structure already carries for every
// other engine, instead of inventing an IMAP-specific parallel type.
//
// A part list is a multipart descriptor when every leading element is
// itself a list (one nested body-structure per child part) followed by a
// bare subtype atom; otherwise it is a leaf descriptor: type, subtype,
// params, id, description, encoding, size, plus type-specific trailing
// fields this client does not need (envelope/lines for message/rfc822 and
// text/*) and so leaves unread.
//
// This is metadata only: no content bytes are attached, and no per-part
// byte size is recorded on the synthesized part, since tree.BodyPart has
// no dedicated size field and writing one into its Header would corrupt
// Generate() output if the cached structure were ever re-serialized. The
// cache is read-only and is never regenerated back to wire bytes.
func parseBodyStructure(fields []token) (*tree.BodyPart, error) {
	if isMultipartStructure(fields) {
		return parseMultipartStructure(fields)
	}
	return parseLeafStructure(fields)
}

func isMultipartStructure(fields []token) bool {
	if len(fields) < 2 {
		return false
	}
	_, firstIsList := asList(fields[0])
	return firstIsList
}

func parseMultipartStructure(fields []token) (*tree.BodyPart, error) {
	p := tree.NewBodyPart()
	i := 0
	for ; i < len(fields); i++ {
		childFields, ok := asList(fields[i])
		if !ok {
			break
		}
		child, err := parseBodyStructure(childFields)
		if err != nil {
			return nil, err
		}
		p.Body.Append(child)
	}
	if i >= len(fields) {
		return nil, mkerrors.New(mkerrors.KindInvalidResponse, "imap.parseBodyStructure",
			fmt.Errorf("multipart structure missing subtype"), nil)
	}
	subtype, _ := asString(fields[i])
	p.Header.SetContentType(types.MediaType{Type: "multipart", SubType: subtype}, nil)
	return p, nil
}

func parseLeafStructure(fields []token) (*tree.BodyPart, error) {
	if len(fields) < 7 {
		return nil, mkerrors.New(mkerrors.KindInvalidResponse, "imap.parseBodyStructure",
			fmt.Errorf("leaf body structure has %d fields, want >= 7", len(fields)), nil)
	}

	p := tree.NewBodyPart()

	typ, _ := asString(fields[0])
	subtype, _ := asString(fields[1])
	params := parseBodyParams(fields[2])
	p.Header.SetContentType(types.MediaType{Type: strings.ToLower(typ), SubType: strings.ToLower(subtype)}, params)

	if id, ok := asString(fields[3]); ok && id != "" {
		p.Header.SetContentID(mustParseMessageID(id))
	}
	if desc, ok := asString(fields[4]); ok && desc != "" {
		p.Header.Set("Content-Description", desc)
	}
	if enc, ok := asString(fields[5]); ok && enc != "" {
		p.Header.SetContentTransferEncoding(strings.ToLower(enc))
	}

	return p, nil
}

func parseBodyParams(t token) map[string]string {
	list, ok := asList(t)
	if !ok {
		return nil
	}
	params := map[string]string{}
	for i := 0; i+1 < len(list); i += 2 {
		name, _ := asString(list[i])
		val, _ := asString(list[i+1])
		if name != "" {
			params[strings.ToLower(name)] = val
		}
	}
	if len(params) == 0 {
		return nil
	}
	return params
}

// mustParseMessageID wraps a bare BODYSTRUCTURE "id" field (not
// necessarily RFC-2822-angle-bracket-quoted by every server) into the
// angle-bracket form types.MessageID expects, falling back to a raw
// passthrough when the server already sent one.
func mustParseMessageID(id string) types.MessageID {
	if !strings.HasPrefix(id, "<") {
		id = "<" + id + ">"
	}
	mid, err := types.ParseMessageID(id)
	if err != nil {
		return types.MessageID{}
	}
	return mid
}
