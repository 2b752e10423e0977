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

// Package tree implements the MIME part tree: ContentHandler (a body's
// backing store plus its transfer-encoding), Body (contents + child
// parts), BodyPart (header + body) and Message (the root BodyPart).
// Grounded on original_source/src/contentHandler.hpp, body.hpp,
// bodyPart.hpp and message.hpp.
package tree

import (
	"bytes"
	"io"

	"github.com/go-vmime/mailkit/framework/buffer"
	"github.com/go-vmime/mailkit/mime/codec"
	"github.com/go-vmime/mailkit/platform"
)

// ContentHandler wraps a body's backing Buffer together with the
// content-transfer-encoding currently applied to it (original_source's
// contentHandler: "wraps a reference to data (which may be encoded), and
// adapts it so it can be used easily"). It supports both whole-body access
// and a RangeBuffer-style partial view of the encoded bytes (see Range).
type ContentHandler struct {
	buf      buffer.Buffer
	encoding codec.Name
}

// NewContentHandler wraps buf, whose bytes are already in the given
// content-transfer-encoding (e.g. base64 for an attachment).
func NewContentHandler(buf buffer.Buffer, encoding codec.Name) *ContentHandler {
	return &ContentHandler{buf: buf, encoding: encoding}
}

// NewContentHandlerFromReader buffers r in memory via platform.Host and
// wraps it, encoded as encoding.
func NewContentHandlerFromReader(host platform.Host, r io.Reader, encoding codec.Name) (*ContentHandler, error) {
	buf, err := host.NewMemoryBuffer(r)
	if err != nil {
		return nil, err
	}
	return NewContentHandler(buf, encoding), nil
}

func (c *ContentHandler) Encoding() codec.Name { return c.encoding }

// Len reports the length, in encoded bytes, of the backing store.
func (c *ContentHandler) Len() int { return c.buf.Len() }

// GenerateEncoded writes the content exactly as stored (still encoded) —
// the fast path used when re-serializing a part whose payload mailkit never
// needs to inspect, only relay.
func (c *ContentHandler) GenerateEncoded(w io.Writer) (int64, error) {
	r, err := c.buf.Open()
	if err != nil {
		return 0, err
	}
	defer r.Close()
	return io.Copy(w, r)
}

// Decoded writes the content-transfer-decoded payload to w.
func (c *ContentHandler) Decoded(w io.Writer) (int64, error) {
	cd, err := codec.ByName(c.encoding)
	if err != nil {
		return 0, err
	}
	r, err := c.buf.Open()
	if err != nil {
		return 0, err
	}
	defer r.Close()
	return cd.Decode(w, r)
}

// DecodedBytes decodes the whole payload into memory. Used by small leaf
// parts (the vast majority of text bodies); large attachments should
// prefer Decoded with a streaming writer instead.
func (c *ContentHandler) DecodedBytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := c.Decoded(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Range returns a ContentHandler viewing only [offset, offset+length) of
// the *encoded* backing store, without copying it — the RangeBuffer
// pattern original_source/src/contentHandler.hpp documents for partial
// fetch. The net engines do not call it: net/imap's partial fetch asks the
// server for BODY[]<offset.length> directly.
func (c *ContentHandler) Range(offset, length int) *ContentHandler {
	return &ContentHandler{buf: rangeBuffer{inner: c.buf, offset: offset, length: length}, encoding: c.encoding}
}

// rangeBuffer is a buffer.Buffer view over [offset, offset+length) of
// another Buffer, without ever materializing the parent's full contents.
type rangeBuffer struct {
	inner  buffer.Buffer
	offset int
	length int
}

func (r rangeBuffer) Open() (io.ReadCloser, error) {
	rc, err := r.inner.Open()
	if err != nil {
		return nil, err
	}
	if _, err := io.CopyN(io.Discard, rc, int64(r.offset)); err != nil && err != io.EOF {
		rc.Close()
		return nil, err
	}
	return limitedReadCloser{Reader: io.LimitReader(rc, int64(r.length)), closer: rc}, nil
}

func (r rangeBuffer) Len() int {
	remaining := r.inner.Len() - r.offset
	if remaining < 0 {
		remaining = 0
	}
	if r.length < remaining {
		return r.length
	}
	return remaining
}

// Remove is a no-op: a rangeBuffer doesn't own the underlying storage, so
// it never releases it — only the parent ContentHandler's Buffer does.
func (r rangeBuffer) Remove() error { return nil }

type limitedReadCloser struct {
	io.Reader
	closer io.Closer
}

func (l limitedReadCloser) Close() error { return l.closer.Close() }
