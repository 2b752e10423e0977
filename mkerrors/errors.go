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

// Package mkerrors implements the exhaustive error-kind catalogue of the
// MIME codec and mail-access engines. It layers a Kind enum on top of
// framework/exterrors' Fields()/Unwrap() convention so the two compose:
// exterrors.Fields(err) keeps working on an *E, and mkerrors.Is matches a
// Kind by finding an *E in the chain with errors.As.
package mkerrors

import (
	"errors"
	"fmt"
)

// Kind enumerates every error kind named by the mail-access and MIME design
// (spec §7). It is exhaustive on purpose: new failure modes should be
// mapped onto one of these, not bolted on as a fresh sentinel type.
type Kind int

const (
	_ Kind = iota

	// MIME / value parsing
	KindParse              // malformed structured field, boundary, or protocol response
	KindCharsetConversion  // unmappable codepoint during charset transcoding
	KindNoSuchField        // header field lookup miss
	KindNoSuchParameter    // parameter lookup miss
	KindBadFieldType       // field found but wrong value type requested
	KindNoEncoderAvailable // unknown content-transfer-encoding requested

	// Access lifecycle
	KindIllegalState         // operation attempted in the wrong lifecycle state
	KindAlreadyConnected
	KindNotConnected
	KindInvalidArgument
	KindInvalidFolderName
	KindMessageNotFound
	KindFolderNotFound
	KindOperationNotSupported

	// Network / protocol
	KindConnection         // socket/DNS failure, fatal to the service
	KindConnectionGreeting // server refused at greeting
	KindAuthentication     // credentials rejected
	KindCommand            // protocol command returned failure
	KindInvalidResponse    // response failed to parse or violated grammar
	KindOperationTimedOut
	KindOperationCancelled

	// Filesystem
	KindFilesystem   // Maildir I/O failed
	KindUnfetchedObject
)

var kindNames = map[Kind]string{
	KindParse:                 "parse-error",
	KindCharsetConversion:      "charset-conversion",
	KindNoSuchField:            "no-such-field",
	KindNoSuchParameter:        "no-such-parameter",
	KindBadFieldType:           "bad-field-type",
	KindNoEncoderAvailable:     "no-encoder-available",
	KindIllegalState:           "illegal-state",
	KindAlreadyConnected:       "already-connected",
	KindNotConnected:           "not-connected",
	KindInvalidArgument:        "invalid-argument",
	KindInvalidFolderName:      "invalid-folder-name",
	KindMessageNotFound:        "message-not-found",
	KindFolderNotFound:         "folder-not-found",
	KindOperationNotSupported:  "operation-not-supported",
	KindConnection:             "connection-error",
	KindConnectionGreeting:     "connection-greeting-error",
	KindAuthentication:         "authentication-error",
	KindCommand:                "command-error",
	KindInvalidResponse:        "invalid-response",
	KindOperationTimedOut:      "operation-timed-out",
	KindOperationCancelled:     "operation-cancelled",
	KindFilesystem:             "filesystem-error",
	KindUnfetchedObject:        "unfetched-object",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown-error"
}

// E is the concrete error value used across mailkit. Op names the failing
// operation (e.g. "pop3.RETR", "mime.header.parse"); Err, if set, is the
// underlying cause and participates in errors.Unwrap/errors.Is chains.
type E struct {
	Kind Kind
	Op   string
	Err  error

	// Extra carries kind-specific diagnostics: position/expected token for
	// KindParse, the raw server line for KindCommand/KindInvalidResponse,
	// the path for KindFilesystem.
	Extra map[string]interface{}
}

func (e *E) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *E) Unwrap() error {
	return e.Err
}

// Fields implements the exterrors.fieldsErr interface so that
// exterrors.Fields walks straight through an *E.
func (e *E) Fields() map[string]interface{} {
	if e.Extra == nil {
		return map[string]interface{}{"kind": e.Kind.String(), "op": e.Op}
	}
	fields := make(map[string]interface{}, len(e.Extra)+2)
	for k, v := range e.Extra {
		fields[k] = v
	}
	fields["kind"] = e.Kind.String()
	fields["op"] = e.Op
	return fields
}

// Is reports whether err is an *E of the given kind, walking the Unwrap
// chain (so a wrapped E is still matched by errors.Is-style callers via
// mkerrors.Is).
func Is(err error, kind Kind) bool {
	var e *E
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// New builds a new *E. extra may be nil.
func New(kind Kind, op string, err error, extra map[string]interface{}) *E {
	return &E{Kind: kind, Op: op, Err: err, Extra: extra}
}
