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

package net

// Capability is the bitmask getCapabilities() returns (spec.md §4.9
// verbatim: "a bitmask over {CREATE_FOLDER, RENAME_FOLDER, ADD_MESSAGE,
// COPY_MESSAGE, DELETE_MESSAGE, PARTIAL_FETCH, MESSAGE_FLAGS, EXTRACT_PART}").
type Capability uint16

const (
	CapCreateFolder Capability = 1 << iota
	CapRenameFolder
	CapAddMessage
	CapCopyMessage
	CapDeleteMessage
	CapPartialFetch
	CapMessageFlags
	CapExtractPart
)

func (c Capability) Has(bit Capability) bool { return c&bit != 0 }

var capabilityNames = map[Capability]string{
	CapCreateFolder: "CREATE_FOLDER",
	CapRenameFolder: "RENAME_FOLDER",
	CapAddMessage:   "ADD_MESSAGE",
	CapCopyMessage:  "COPY_MESSAGE",
	CapDeleteMessage: "DELETE_MESSAGE",
	CapPartialFetch: "PARTIAL_FETCH",
	CapMessageFlags: "MESSAGE_FLAGS",
	CapExtractPart:  "EXTRACT_PART",
}

// String lists the set bits, for logging.
func (c Capability) String() string {
	if c == 0 {
		return "(none)"
	}
	var out string
	for bit, name := range capabilityNames {
		if c.Has(bit) {
			if out != "" {
				out += "|"
			}
			out += name
		}
	}
	return out
}
