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
	"time"

	"github.com/go-vmime/mailkit/mime/address"
	"github.com/go-vmime/mailkit/mime/codec"
	"github.com/go-vmime/mailkit/mime/types"
	"github.com/go-vmime/mailkit/mime/word"
	"github.com/go-vmime/mailkit/mkerrors"
)

// These wrap Header.Find/Set with the typed parse/generate logic each
// well-known field needs, the Go-idiomatic stand-in for header.hpp's
// fieldsContainer::From()/To()/ContentType()-style dynamic_cast accessors.

func (h *Header) Mailbox(name string) (address.Mailbox, error) {
	f, ok := h.Find(name)
	if !ok {
		return address.Mailbox{}, mkerrors.New(mkerrors.KindNoSuchField, "header.Mailbox", nil,
			map[string]interface{}{"field": name})
	}
	return address.ParseMailbox(f.Body)
}

func (h *Header) SetMailbox(name string, m address.Mailbox) {
	h.Set(name, m.Generate())
}

func (h *Header) AddressList(name string) (*address.AddressList, error) {
	f, ok := h.Find(name)
	if !ok {
		return nil, mkerrors.New(mkerrors.KindNoSuchField, "header.AddressList", nil,
			map[string]interface{}{"field": name})
	}
	return address.ParseAddressList(f.Body)
}

func (h *Header) SetAddressList(name string, l *address.AddressList) {
	h.Set(name, l.Generate())
}

func (h *Header) Date() (time.Time, error) {
	f, ok := h.Find("date")
	if !ok {
		return time.Time{}, mkerrors.New(mkerrors.KindNoSuchField, "header.Date", nil, nil)
	}
	return types.ParseDateTime(f.Body)
}

func (h *Header) SetDate(t time.Time) {
	h.Set("Date", types.FormatDateTime(t))
}

func (h *Header) Text(name string) (word.Text, error) {
	f, ok := h.Find(name)
	if !ok {
		return word.Text{}, mkerrors.New(mkerrors.KindNoSuchField, "header.Text", nil,
			map[string]interface{}{"field": name})
	}
	return word.DecodeText(f.Body)
}

func (h *Header) SetText(name string, t word.Text) {
	var encoded string
	for _, w := range t.Words {
		encoded += word.Encode(w, word.ChooseEncoding(w))
	}
	h.Set(name, encoded)
}

func (h *Header) Subject() (string, error) {
	t, err := h.Text("subject")
	if err != nil {
		return "", err
	}
	return t.String(), nil
}

func (h *Header) SetSubject(s string) {
	h.SetText("Subject", word.Text{Words: []word.Word{word.New([]byte(s))}})
}

func (h *Header) ContentType() (types.MediaType, Value, error) {
	f, ok := h.Find("content-type")
	if !ok {
		return types.MediaType{}, Value{}, mkerrors.New(mkerrors.KindNoSuchField, "header.ContentType", nil, nil)
	}
	v, err := ParseValue(f.Body)
	if err != nil {
		return types.MediaType{}, Value{}, err
	}
	mt, err := types.ParseMediaType(v.Value)
	if err != nil {
		return types.MediaType{}, Value{}, err
	}
	return mt, v, nil
}

func (h *Header) SetContentType(mt types.MediaType, params map[string]string) {
	v := Value{Value: mt.String()}
	for k, val := range params {
		v.Set(k, val)
	}
	h.Set("Content-Type", v.Generate())
}

func (h *Header) ContentTransferEncoding() (codec.Name, error) {
	f, ok := h.Find("content-transfer-encoding")
	if !ok {
		return codec.SevenBit, nil
	}
	name := codec.Name(f.Body)
	if _, err := codec.ByName(name); err != nil {
		return "", err
	}
	return name, nil
}

func (h *Header) SetContentTransferEncoding(enc codec.Name) {
	h.Set("Content-Transfer-Encoding", string(enc))
}

// ContentDisposition returns the disposition type ("attachment", "inline")
// plus its parameters (filename, creation-date, ...).
func (h *Header) ContentDisposition() (string, Value, error) {
	f, ok := h.Find("content-disposition")
	if !ok {
		return "", Value{}, mkerrors.New(mkerrors.KindNoSuchField, "header.ContentDisposition", nil, nil)
	}
	v, err := ParseValue(f.Body)
	if err != nil {
		return "", Value{}, err
	}
	return v.Value, v, nil
}

func (h *Header) SetContentDisposition(disposition string, params map[string]string) {
	v := Value{Value: disposition}
	for k, val := range params {
		v.Set(k, val)
	}
	h.Set("Content-Disposition", v.Generate())
}

func (h *Header) MessageID() (types.MessageID, error) {
	f, ok := h.Find("message-id")
	if !ok {
		return types.MessageID{}, mkerrors.New(mkerrors.KindNoSuchField, "header.MessageID", nil, nil)
	}
	return types.ParseMessageID(f.Body)
}

func (h *Header) SetMessageID(id types.MessageID) {
	h.Set("Message-Id", id.String())
}

func (h *Header) ContentID() (types.MessageID, error) {
	f, ok := h.Find("content-id")
	if !ok {
		return types.MessageID{}, mkerrors.New(mkerrors.KindNoSuchField, "header.ContentID", nil, nil)
	}
	return types.ParseMessageID(f.Body)
}

func (h *Header) SetContentID(id types.MessageID) {
	h.Set("Content-Id", id.String())
}
