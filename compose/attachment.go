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

package compose

import (
	"io"

	"github.com/go-vmime/mailkit/mime/codec"
	"github.com/go-vmime/mailkit/mime/tree"
	"github.com/go-vmime/mailkit/mime/types"
	"github.com/go-vmime/mailkit/mime/word"
	"github.com/go-vmime/mailkit/platform"
)

// Attachment is a file attached to a composed message
// (original_source/src/attachment.hpp): a media type, optional description,
// a data source and the encoding it should be transferred with.
type Attachment struct {
	Type        types.MediaType
	Filename    string
	Description word.Text
	Data        io.Reader
	Encoding    codec.Name
}

// NewAttachment builds an Attachment for data already held in memory, with
// the encoding vmime's attachmentHelper defaults non-text data to.
func NewAttachment(filename string, mt types.MediaType, data io.Reader) *Attachment {
	return &Attachment{
		Type:     mt,
		Filename: filename,
		Data:     data,
		Encoding: codec.Base64,
	}
}

// buildBodyPart renders this attachment as a standalone MIME part
// (attachment::generateIn): Content-Type with a name parameter,
// Content-Disposition: attachment with a filename parameter, the chosen
// Content-Transfer-Encoding, and the data itself.
func (a *Attachment) buildBodyPart(host platform.Host) (*tree.BodyPart, error) {
	part := tree.NewBodyPart()
	part.Header.SetContentType(a.Type, map[string]string{"name": a.Filename})
	part.Header.SetContentDisposition("attachment", map[string]string{"filename": a.Filename})
	part.Header.SetContentTransferEncoding(a.Encoding)
	if a.Description.String() != "" {
		part.Header.SetText("Content-Description", a.Description)
	}

	ch, err := encodeContent(host, a.Data, a.Encoding)
	if err != nil {
		return nil, err
	}
	part.Body.Contents = ch

	return part, nil
}
