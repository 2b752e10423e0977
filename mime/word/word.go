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

// Package word implements RFC 2047 encoded-words: a run of text tagged with
// the charset it's encoded in, plus the "text" concatenation of several
// words that RFC 2822 unstructured header values decode into. Grounded on
// original_source/src/word.hpp (vmime's `word` component: a buffer plus its
// charset, with getConvertedText/getDecodedText accessors) and
// original_source/src/text.hpp for the word-sequence ("text") concept.
package word

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-vmime/mailkit/mime/charset"
	"github.com/go-vmime/mailkit/mime/codec"
	"github.com/go-vmime/mailkit/mkerrors"
)

// Encoding selects the RFC 2047 payload encoding: 'B' (base64) or 'Q'
// (quoted-printable-like, RFC 2047 §4.2 variant).
type Encoding byte

const (
	EncodingB Encoding = 'B'
	EncodingQ Encoding = 'Q'
)

// Word is a single run of text plus the charset its Buffer is encoded in
// (spec §3 "word — text plus charset").
type Word struct {
	Buffer  []byte
	Charset charset.Charset
}

// New builds a word, defaulting to the process locale charset, mirroring
// word.hpp's `word(const string& buffer)` constructor.
func New(buffer []byte) Word {
	return Word{Buffer: buffer, Charset: charset.Charset(DefaultCharset())}
}

// NewWithCharset builds a word tagged with an explicit charset.
func NewWithCharset(buffer []byte, cs charset.Charset) Word {
	return Word{Buffer: buffer, Charset: cs}
}

// DefaultCharsetFunc is overridden by callers that have a platform.Host
// available; it defaults to reporting UTF-8 so the package has no import
// cycle on platform.
var DefaultCharsetFunc = func() string { return string(charset.UTF8) }

// DefaultCharset resolves the fallback charset for words constructed
// without one.
func DefaultCharset() string { return DefaultCharsetFunc() }

// GetConvertedText returns Buffer transcoded into dest (word.hpp's
// `getConvertedText`).
func (w Word) GetConvertedText(dest charset.Charset) ([]byte, error) {
	return charset.Convert(w.Buffer, w.Charset, dest)
}

// GetDecodedText returns Buffer transcoded to UTF-8 as a Go string
// (word.hpp's wide-char `getDecodedText`, UTF-8 standing in for wstring).
func (w Word) GetDecodedText() (string, error) {
	out, err := w.GetConvertedText(charset.UTF8)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Text is a sequence of Words, the decoded form of an RFC 2822 unstructured
// header value once its encoded-words are split apart (original_source's
// `text` component).
type Text struct {
	Words []Word
}

// GetConvertedText concatenates every word's text, each transcoded to dest.
func (t Text) GetConvertedText(dest charset.Charset) (string, error) {
	var buf strings.Builder
	for _, w := range t.Words {
		out, err := w.GetConvertedText(dest)
		if err != nil {
			return "", err
		}
		buf.Write(out)
	}
	return buf.String(), nil
}

// String decodes every word to UTF-8 and concatenates them.
func (t Text) String() string {
	s, err := t.GetConvertedText(charset.UTF8)
	if err != nil {
		return ""
	}
	return s
}

// Encode renders w as an RFC 2047 encoded-word ("=?charset?enc?payload?=")
// if it contains any byte outside the 7-bit printable ASCII range, or
// returns the buffer unchanged otherwise.
func Encode(w Word, enc Encoding) string {
	if isASCIIPrintable(w.Buffer) {
		return string(w.Buffer)
	}

	var payload bytes.Buffer
	switch enc {
	case EncodingB:
		c, _ := codec.ByName(codec.Base64)
		_, _ = c.Encode(&payload, bytes.NewReader(w.Buffer))
	default:
		encodeQ(&payload, w.Buffer)
		enc = EncodingQ
	}

	// encoded-words must not contain CRLF; base64's line wrapper inserts
	// them for long payloads, so they're stripped here since RFC 2047
	// folding is the caller's (mime/header's) responsibility, not this
	// package's.
	flat := strings.ReplaceAll(strings.ReplaceAll(payload.String(), "\r", ""), "\n", "")

	return fmt.Sprintf("=?%s?%c?%s?=", w.Charset, enc, flat)
}

// ChooseEncoding picks B or Q for w per the density rule spec.md §4.5
// calls for: Q when fewer than 20% of Buffer's bytes would need a Q "=XX"
// escape, B otherwise — below that density Q's escapes stay cheaper than
// B's fixed per-byte base64 expansion, above it B wins.
func ChooseEncoding(w Word) Encoding {
	if len(w.Buffer) == 0 {
		return EncodingQ
	}
	var escapes int
	for _, c := range w.Buffer {
		if needsQEscape(c) {
			escapes++
		}
	}
	if float64(escapes)/float64(len(w.Buffer)) < 0.20 {
		return EncodingQ
	}
	return EncodingB
}

// needsQEscape reports whether c falls outside encodeQ's pass-through set
// (the same condition encodeQ's switch tests, duplicated here since
// ChooseEncoding must count without actually encoding).
func needsQEscape(c byte) bool {
	return c == '_' || c == '=' || c == '?' || c < 0x20 || c > 0x7e
}

func isASCIIPrintable(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			if c == '\t' {
				continue
			}
			return false
		}
	}
	return true
}

// encodeQ implements the RFC 2047 §4.2 "Q" encoding: like quoted-printable,
// but space becomes '_' and only a small additional set of characters must
// be escaped (encoded-word payloads have no line-length concerns).
func encodeQ(out *bytes.Buffer, in []byte) {
	for _, c := range in {
		switch {
		case c == ' ':
			out.WriteByte('_')
		case c == '_' || c == '=' || c == '?' || c < 0x20 || c > 0x7e:
			fmt.Fprintf(out, "=%02X", c)
		default:
			out.WriteByte(c)
		}
	}
}

// Decode parses a single RFC 2047 encoded-word of the form
// "=?charset?enc?payload?=" into a Word. Text not in that form is returned
// verbatim, tagged with the fallback charset.
func Decode(s string) (Word, error) {
	if !strings.HasPrefix(s, "=?") || !strings.HasSuffix(s, "?=") {
		return Word{Buffer: []byte(s), Charset: charset.Charset(DefaultCharset())}, nil
	}

	body := s[2 : len(s)-2]
	parts := strings.SplitN(body, "?", 3)
	if len(parts) != 3 {
		return Word{}, mkerrors.New(mkerrors.KindParse, "word.Decode",
			fmt.Errorf("malformed encoded-word %q", s), nil)
	}
	cs, encLetter, payload := parts[0], parts[1], parts[2]

	var raw []byte
	var err error
	switch strings.ToUpper(encLetter) {
	case "B":
		c, _ := codec.ByName(codec.Base64)
		var buf bytes.Buffer
		_, err = c.Decode(&buf, strings.NewReader(payload))
		raw = buf.Bytes()
	case "Q":
		raw, err = decodeQ(payload)
	default:
		return Word{}, mkerrors.New(mkerrors.KindParse, "word.Decode",
			fmt.Errorf("unknown encoded-word encoding %q", encLetter), nil)
	}
	if err != nil {
		return Word{}, mkerrors.New(mkerrors.KindParse, "word.Decode", err, nil)
	}

	return Word{Buffer: raw, Charset: charset.Charset(cs)}, nil
}

func decodeQ(s string) ([]byte, error) {
	var out bytes.Buffer
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '_':
			out.WriteByte(' ')
		case '=':
			if i+2 >= len(s) {
				return nil, fmt.Errorf("truncated =XX escape")
			}
			var b byte
			if _, err := fmt.Sscanf(s[i+1:i+3], "%02X", &b); err != nil {
				return nil, fmt.Errorf("invalid =XX escape: %w", err)
			}
			out.WriteByte(b)
			i += 2
		default:
			out.WriteByte(s[i])
		}
	}
	return out.Bytes(), nil
}

// DecodeText splits an unstructured header value into a Text, decoding any
// RFC 2047 encoded-words found in it and leaving literal runs of text
// (tagged with the fallback charset) in between, per RFC 2047 §5's
// "encoded-words may be followed/preceded by linear whitespace" grammar.
func DecodeText(s string) (Text, error) {
	var words []Word
	for len(s) > 0 {
		start := strings.Index(s, "=?")
		if start == -1 {
			words = append(words, Word{Buffer: []byte(s), Charset: charset.Charset(DefaultCharset())})
			break
		}
		if start > 0 {
			words = append(words, Word{Buffer: []byte(s[:start]), Charset: charset.Charset(DefaultCharset())})
		}
		s = s[start:]

		end := findEncodedWordEnd(s)
		if end == -1 {
			words = append(words, Word{Buffer: []byte(s), Charset: charset.Charset(DefaultCharset())})
			break
		}
		w, err := Decode(s[:end])
		if err != nil {
			return Text{}, err
		}
		words = append(words, w)
		s = s[end:]
	}
	return Text{Words: words}, nil
}

// findEncodedWordEnd locates the end of the encoded-word starting at s[0:]
// ("=?charset?enc?payload?="): charset and enc end at the first two '?'
// separators, then the payload runs up to the first "?=" after that.
func findEncodedWordEnd(s string) int {
	if !strings.HasPrefix(s, "=?") {
		return -1
	}
	first := strings.IndexByte(s[2:], '?')
	if first == -1 {
		return -1
	}
	first += 2
	second := strings.IndexByte(s[first+1:], '?')
	if second == -1 {
		return -1
	}
	second += first + 1

	rest := s[second+1:]
	end := strings.Index(rest, "?=")
	if end == -1 {
		return -1
	}
	return second + 1 + end + 2
}
