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

import "context"

// Transport is a Service that sends outgoing messages instead of storing
// them (original_source/src/messaging/transport.hpp: connect/disconnect
// inherited from service, plus a single send operation). Implemented by
// net/smtptransport.SMTPTransport and net/smtptransport.SendmailTransport.
type Transport interface {
	Service

	// Send hands raw (envelope-ready, CRLF-terminated) message bytes to
	// the transport for delivery to recipients, using sender as the
	// envelope-from address. What "delivery" means is transport-specific:
	// SMTPTransport speaks MAIL FROM/RCPT TO/DATA over the wire,
	// SendmailTransport execs sendmail(1) with recipients as argv and raw
	// on stdin.
	Send(ctx context.Context, sender string, recipients []string, raw []byte) error
}
