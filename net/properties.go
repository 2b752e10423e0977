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

// Package net implements the access abstractions of spec.md §3/§4.9:
// session, service, store, transport, folder, (net) message, messageSet and
// event notification. Grounded on original_source/src/messaging/session.cpp,
// store.hpp, service-adjacent headers, and on the pack's server-side IMAP
// engines (alienscience-imapsrv, spilled-ink-spilld) read for response-grammar
// shape rather than for this package's own (client-side) structure.
package net

import (
	"strconv"
	"strings"
)

// Properties is the case-insensitive name->string map backing a session
// (original_source/src/propertySet.hpp's propertySet, simplified: maddy's
// framework/config.Map parses a directive *file* into typed Go fields; there
// is no config-file grammar here, only URL-derived and explicitly-set
// key/value pairs, so Properties stays a flat map with the same typed-getter
// ergonomics instead of reimplementing config.Map's directive parser).
type Properties struct {
	values map[string]string
}

// NewProperties builds an empty property set.
func NewProperties() *Properties {
	return &Properties{values: make(map[string]string)}
}

func normalizeKey(key string) string { return strings.ToLower(key) }

// Set stores value under key, case-insensitively.
func (p *Properties) Set(key, value string) {
	if p.values == nil {
		p.values = make(map[string]string)
	}
	p.values[normalizeKey(key)] = value
}

// Get returns the raw string value and whether key was present.
func (p *Properties) Get(key string) (string, bool) {
	v, ok := p.values[normalizeKey(key)]
	return v, ok
}

// GetDefault returns key's value, or def if unset.
func (p *Properties) GetDefault(key, def string) string {
	if v, ok := p.Get(key); ok {
		return v
	}
	return def
}

// GetBool parses key as a bool ("true"/"1"/"yes" and their opposites),
// defaulting to def on absence or parse failure.
func (p *Properties) GetBool(key string, def bool) bool {
	v, ok := p.Get(key)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return def
	}
}

// GetInt parses key as an integer, defaulting to def on absence or parse
// failure.
func (p *Properties) GetInt(key string, def int) int {
	v, ok := p.Get(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Merge copies every key from other into p, overwriting existing keys —
// used to layer URL-derived properties over explicitly-set session
// defaults (see ParseURL).
func (p *Properties) Merge(other *Properties) {
	for k, v := range other.values {
		p.Set(k, v)
	}
}
