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

// Package platform collects the host-dependent hooks the rest of mailkit
// takes as a single injected capability, instead of calling os/net/exec
// directly: getUnixTime, getHostName, getProcessId, locale charset, a
// buffer (filesystem) factory, a socket factory and a child-process
// factory. maddy spreads the same idea across several
// same-interface-different-build-tag file pairs (systemd.go /
// systemd_nonlinux.go, signal.go / signal_nonposix.go, directories.go /
// directories_docker.go); mailkit collapses it into one Host interface
// since none of its hooks are actually platform-specific in the build-tag
// sense — Default works unmodified on every target Go supports.
package platform

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/go-vmime/mailkit/framework/buffer"
)

// Host is the single capability interface injected at session construction
// (spec §9 "Platform hooks"). Every subsystem that needs the current time,
// the hostname, a temp file, a socket or a child process gets it through
// here rather than importing os/net/exec on its own, so tests can supply a
// fake Host.
type Host interface {
	// Clock returns the current time, used for Date header generation and
	// message-id/Maildir unique-id entropy.
	Clock() time.Time

	// Hostname returns the name used in the right-hand side of generated
	// message-ids.
	Hostname() string

	// Pid returns the current process id, also used for id entropy.
	Pid() int

	// LocaleCharset detects the process locale's charset name (e.g.
	// "UTF-8", "ISO-8859-1"), the moral equivalent of POSIX
	// nl_langinfo(CODESET). See original_source/src/platforms/posix/handler.hpp.
	LocaleCharset() string

	// NewMemoryBuffer and NewFileBuffer construct a contentHandler backing
	// store (spec §3's "wrap an in-memory string, a file").
	NewMemoryBuffer(r io.Reader) (buffer.Buffer, error)
	NewFileBuffer(r io.Reader, dir string) (buffer.Buffer, error)

	// DialSocket opens a transport connection for a store/transport
	// service. TLS is treated as a pluggable detail of the dial, not a
	// protocol the engines implement themselves (spec §1 Non-goals).
	DialSocket(ctx context.Context, network, addr string, tlsConfig *TLSConfig) (net.Conn, error)

	// RunChildProcess execs argv, feeding it stdin and returning everything
	// it wrote to stdout. Used by the sendmail transport.
	RunChildProcess(ctx context.Context, argv []string, stdin io.Reader) ([]byte, error)
}

// TLSConfig is deliberately minimal: mailkit treats the TLS handshake as a
// pluggable socket-factory detail (spec §1 Non-goals say "TLS/SSL handshake
// details (treated as a pluggable socket)"), not something it implements.
// ServerName is the only bit the engines themselves need to pick (SNI).
type TLSConfig struct {
	Enabled    bool
	ServerName string
	// InsecureSkipVerify exists for test doubles only.
	InsecureSkipVerify bool
}

// Default is the stock Host implementation used unless a caller supplies
// its own (e.g. in tests).
var Default Host = defaultHost{}

type defaultHost struct{}

func (defaultHost) Clock() time.Time { return time.Now() }

func (defaultHost) Hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "localhost"
	}
	return name
}

func (defaultHost) Pid() int { return os.Getpid() }

func (defaultHost) LocaleCharset() string {
	for _, env := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		v := os.Getenv(env)
		if v == "" {
			continue
		}
		// POSIX locale strings look like "en_US.UTF-8" or "C.UTF-8"; the
		// charset is whatever follows the last dot, if any.
		if idx := strings.LastIndexByte(v, '.'); idx != -1 {
			cs := v[idx+1:]
			if cs != "" {
				return strings.ToUpper(cs)
			}
		}
	}
	return "US-ASCII"
}

func (defaultHost) NewMemoryBuffer(r io.Reader) (buffer.Buffer, error) {
	return buffer.BufferInMemory(r)
}

func (defaultHost) NewFileBuffer(r io.Reader, dir string) (buffer.Buffer, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	return buffer.BufferInFile(r, dir)
}

func (defaultHost) DialSocket(ctx context.Context, network, addr string, tlsConfig *TLSConfig) (net.Conn, error) {
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil && tlsConfig.Enabled {
		return dialTLS(conn, addr, tlsConfig)
	}
	return conn, nil
}

func (defaultHost) RunChildProcess(ctx context.Context, argv []string, stdin io.Reader) ([]byte, error) {
	if len(argv) == 0 {
		return nil, os.ErrInvalid
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = stdin
	return cmd.Output()
}

// TimeoutHandler is the cooperative polling hook of spec §5: a long-running
// socket/filesystem wait polls it before blocking further, and it decides
// whether the operation should keep waiting or abort.
type TimeoutHandler interface {
	// Poll is called periodically while an operation would otherwise block.
	// Returning false aborts the in-flight operation with
	// mkerrors.KindOperationTimedOut.
	Poll() bool
}

// NoTimeout never aborts; it's the default when a session sets no timeout
// factory.
type NoTimeout struct{}

func (NoTimeout) Poll() bool { return true }

func dialTLS(conn net.Conn, addr string, cfg *TLSConfig) (net.Conn, error) {
	serverName := cfg.ServerName
	if serverName == "" {
		if host, _, err := net.SplitHostPort(addr); err == nil {
			serverName = host
		} else {
			serverName = addr
		}
	}
	tlsConn := tls.Client(conn, &tls.Config{
		ServerName:         serverName,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})
	if err := tlsConn.HandshakeContext(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}
