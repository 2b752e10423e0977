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

package maildir

import (
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/go-vmime/mailkit/net"
	"github.com/go-vmime/mailkit/platform"
)

// idSeparator is the character joining a message's unique id to its
// "2,<flags>" info field: ':' everywhere except Windows, where it is
// illegal in a FAT/NTFS file name (maildirUtils.cpp picks '-' as the
// fallback there, and reads either back on lookup).
func idSeparator() byte {
	if runtime.GOOS == "windows" {
		return '-'
	}
	return ':'
}

// isMessageFile reports whether name (an entry of new/ or cur/) names a
// message rather than a dotfile like "." or "..", mirroring
// maildirUtils::isMessageFile's leading-dot skip.
func isMessageFile(name string) bool {
	return name != "" && name[0] != '.'
}

// extractID returns the unique-id portion of a message file name, the part
// before the first ':' or '-' info-separator (maildirUtils::extractId,
// generalized to try both separators the way the original tries ':' then
// '-' when reading filenames back, regardless of which one generateID used
// to write them).
func extractID(name string) string {
	if i := strings.IndexByte(name, ':'); i != -1 {
		return name[:i]
	}
	if i := strings.IndexByte(name, '-'); i != -1 {
		return name[:i]
	}
	return name
}

// extractFlags parses the "2,<letters>" info field following the
// separator, reusing net.ParseMaildirFlags for the letter table
// (maildirUtils::extractFlags).
func extractFlags(name string) net.Flags {
	i := strings.IndexByte(name, ':')
	if i == -1 {
		i = strings.IndexByte(name, '-')
	}
	if i == -1 {
		return 0
	}
	info := name[i+1:]
	info = strings.TrimPrefix(info, "2,")
	return net.ParseMaildirFlags(info)
}

// buildFilename renders id and flags back into a maildir file name
// (maildirUtils::buildFilename). Flags equal to 0 with noFlagsField set
// produces the bare id, the form used for files freshly delivered to new/.
func buildFilename(id string, flags net.Flags, noFlagsField bool) string {
	if noFlagsField {
		return id
	}
	return id + string(idSeparator()) + "2," + flags.MaildirSuffix()
}

// idCounter disambiguates ids generated within the same clock tick
// (maildirUtils::generateId increments a static counter for the same
// purpose).
var idCounter uint64

// generateID builds a unique maildir id out of the current time, pid, a
// monotonically increasing counter and the hostname, following
// maildirUtils::generateId's "<time>.<pid>_<counter>.<hostname>" shape.
func generateID(host platform.Host) string {
	now := host.Clock()
	n := atomic.AddUint64(&idCounter, 1)
	return strconv.FormatInt(now.Unix(), 10) + "." +
		strconv.Itoa(host.Pid()) + "_" + strconv.FormatUint(n, 10) +
		"." + host.Hostname()
}
