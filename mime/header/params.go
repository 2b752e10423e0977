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

package header

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-vmime/mailkit/mime/lexer"
	"github.com/go-vmime/mailkit/mkerrors"
)

// Parameter is a single "name=value" attribute of a parameterized field
// like Content-Type or Content-Disposition
// (original_source/src/parameterizedHeaderField.hpp's paramsContainer
// element). RFC 2231 extended-parameter encoding (`name*=charset'lang'value`,
// and `name*0*=`/`name*1*=` continuations) is decoded transparently by
// ParseValue so callers only ever see the plain name/value pair.
type Parameter struct {
	Name  string
	Value string
}

// Value is a parameterized field's base value (e.g. "multipart/mixed" for
// Content-Type, "attachment" for Content-Disposition) plus its parameter
// list — the Go shape of parameterizedHeaderField.
type Value struct {
	Value      string
	Parameters []Parameter
}

// Find returns the first parameter with the given name, case-insensitively
// per RFC 2045 §5.1 (paramsContainer::find).
func (v Value) Find(name string) (string, bool) {
	for _, p := range v.Parameters {
		if strings.EqualFold(p.Name, name) {
			return p.Value, true
		}
	}
	return "", false
}

// Get is like Find but returns "" for a missing parameter instead of a
// bool, for the common "it's fine if this is absent" case.
func (v Value) Get(name string) string {
	val, _ := v.Find(name)
	return val
}

// Set replaces or appends a parameter.
func (v *Value) Set(name, value string) {
	for i := range v.Parameters {
		if strings.EqualFold(v.Parameters[i].Name, name) {
			v.Parameters[i].Value = value
			return
		}
	}
	v.Parameters = append(v.Parameters, Parameter{Name: name, Value: value})
}

// ParseValue parses a parameterized field body: `value; name=val; name2="val 2"`,
// including RFC 2231 `name*0=`/`name*1=` continuation reassembly and
// `name*=charset'lang'pct-encoded-value` extended notation (decoded via
// percent-unescaping). ParseValue only strips the RFC 2231 framing: the
// decoded bytes are returned as they are, not transcoded from the declared
// charset to UTF-8.
func ParseValue(body string) (Value, error) {
	segments := lexer.SplitTopLevel(body, ';')
	if len(segments) == 0 {
		return Value{}, mkerrors.New(mkerrors.KindParse, "header.ParseValue",
			fmt.Errorf("empty parameterized field value"), nil)
	}

	v := Value{Value: strings.TrimSpace(segments[0])}

	continuations := map[string]map[int]string{}
	for _, seg := range segments[1:] {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		eq := strings.IndexByte(seg, '=')
		if eq == -1 {
			continue
		}
		rawName := strings.TrimSpace(seg[:eq])
		rawValue := strings.TrimSpace(seg[eq+1:])
		rawValue = unquote(rawValue)

		base, idx, extended, ok := parseRFC2231Name(rawName)
		if !ok {
			v.Set(rawName, rawValue)
			continue
		}
		if extended {
			rawValue = decodeRFC2231Extended(rawValue)
		}
		if continuations[base] == nil {
			continuations[base] = map[int]string{}
		}
		continuations[base][idx] = rawValue
	}

	for name, parts := range continuations {
		var b strings.Builder
		for i := 0; i < len(parts); i++ {
			b.WriteString(parts[i])
		}
		v.Set(name, b.String())
	}

	return v, nil
}

// Generate renders v back to "value; name=val; ..." wire form, quoting any
// parameter value that contains whitespace or a tspecial character (RFC
// 2045 §5.1's token grammar).
func (v Value) Generate() string {
	var b strings.Builder
	b.WriteString(v.Value)
	for _, p := range v.Parameters {
		b.WriteString("; ")
		b.WriteString(p.Name)
		b.WriteByte('=')
		if needsParamQuoting(p.Value) {
			b.WriteString(quoteParam(p.Value))
		} else {
			b.WriteString(p.Value)
		}
	}
	return b.String()
}

func needsParamQuoting(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("!#$%&'*+-.^_`|~", r):
		default:
			return true
		}
	}
	return false
}

func quoteParam(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		inner := s[1 : len(s)-1]
		return strings.ReplaceAll(strings.ReplaceAll(inner, `\"`, `"`), `\\`, `\`)
	}
	return s
}

// parseRFC2231Name splits "name", "name*", "name*0" and "name*0*" forms
// (RFC 2231 §3/§4.1). idx is 0 for a non-continuation parameter.
func parseRFC2231Name(name string) (base string, idx int, extended bool, ok bool) {
	star := strings.IndexByte(name, '*')
	if star == -1 {
		return name, 0, false, false
	}
	base = name[:star]
	rest := name[star+1:]

	if rest == "" {
		// name*= form: single-segment extended parameter
		return base, 0, true, true
	}
	if rest == "0" || rest == "0*" {
		return base, 0, strings.HasSuffix(rest, "*"), true
	}

	rest = strings.TrimSuffix(rest, "*")
	n, err := strconv.Atoi(rest)
	if err != nil {
		return name, 0, false, false
	}
	return base, n, strings.HasSuffix(name, "*"), true
}

// decodeRFC2231Extended strips the leading "charset'language'" tag and
// percent-decodes the remainder (RFC 2231 §4's extended-value grammar).
func decodeRFC2231Extended(s string) string {
	parts := strings.SplitN(s, "'", 3)
	val := s
	if len(parts) == 3 {
		val = parts[2]
	}
	var b strings.Builder
	for i := 0; i < len(val); i++ {
		if val[i] == '%' && i+2 < len(val) {
			var c byte
			if _, err := fmt.Sscanf(val[i+1:i+3], "%02X", &c); err == nil {
				b.WriteByte(c)
				i += 2
				continue
			}
		}
		b.WriteByte(val[i])
	}
	return b.String()
}

