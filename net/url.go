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

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-vmime/mailkit/mkerrors"
)

// URL is a parsed service URL (spec.md §6's property/URL catalogue):
// `protocol://[user[:pass]@]host[:port][/path]`, e.g.
// "imaps://alice@mail.example.org/INBOX" or "maildir:///home/alice/Mail".
// Grounded on stdlib net/url rather than a hand-rolled parser — percent
// decoding is already exactly RFC 3986, so there is no ecosystem gap to
// fill here (DESIGN.md stdlib justification).
type URL struct {
	Scheme string
	User   string
	Pass   string
	Host   string
	Port   string
	Path   string

	// Properties carries query-string parameters funneled into the
	// session's property set, the same way maddy's framework/config.Map
	// funnels config directives into Go fields (spec.md §6).
	Properties *Properties
}

// ParseURL parses rawURL into a URL, rejecting anything without a scheme
// (every mailkit service is protocol-qualified; a bare path is never a
// valid service URL).
func ParseURL(rawURL string) (*URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, mkerrors.New(mkerrors.KindParse, "net.ParseURL", err, map[string]interface{}{"url": rawURL})
	}
	if u.Scheme == "" {
		return nil, mkerrors.New(mkerrors.KindParse, "net.ParseURL",
			fmt.Errorf("missing protocol scheme"), map[string]interface{}{"url": rawURL})
	}

	out := &URL{
		Scheme:     strings.ToLower(u.Scheme),
		Host:       u.Hostname(),
		Port:       u.Port(),
		Path:       u.Path,
		Properties: NewProperties(),
	}
	if u.User != nil {
		out.User = u.User.Username()
		out.Pass, _ = u.User.Password()
	}

	for key, vals := range u.Query() {
		if len(vals) > 0 {
			out.Properties.Set(key, vals[0])
		}
	}

	return out, nil
}

// String renders the URL back (without credentials, so it's safe to log).
func (u *URL) String() string {
	host := u.Host
	if u.Port != "" {
		host = host + ":" + u.Port
	}
	return fmt.Sprintf("%s://%s%s", u.Scheme, host, u.Path)
}
