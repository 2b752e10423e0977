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
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-vmime/mailkit/mime/header"
	"github.com/go-vmime/mailkit/mkerrors"
	"github.com/go-vmime/mailkit/net"
)

// messageInfo is one entry of Folder.messages: the scan-order sequence
// table maildirFolder::scanFolder builds and keeps updated across rescans.
type messageInfo struct {
	id       string
	flags    net.Flags
	expunged bool
}

// Folder is a single maildir directory (or, for path "", the root
// container that only holds subfolders), grounded on
// original_source/src/net/maildir/maildirFolder.cpp.
type Folder struct {
	store *Store
	path  string

	mu       sync.Mutex
	open     bool
	mode     net.FolderMode
	messages []messageInfo
}

var _ net.Folder = (*Folder)(nil)
var _ net.Extractor = (*Folder)(nil)

func (f *Folder) Path() string { return f.path }

func (f *Folder) components() []string { return splitPath(f.path) }

func (f *Folder) isRoot() bool { return f.path == "" }

func (f *Folder) dir() string {
	return f.store.fmt.messageDir(f.components())
}

// Open scans cur/ and new/ for a non-root folder (scanFolder's initial
// pass); the root container has no cur/new/tmp of its own and opens
// trivially.
func (f *Folder) Open(ctx context.Context, mode net.FolderMode) error {
	if f.store == nil {
		return mkerrors.New(mkerrors.KindIllegalState, "maildir.Folder.Open", fmt.Errorf("store disconnected"), nil)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.isRoot() {
		if mode != net.ReadOnly {
			return mkerrors.New(mkerrors.KindOperationNotSupported, "maildir.Folder.Open", nil, nil)
		}
		f.open = true
		f.mode = mode
		f.messages = nil
		return nil
	}

	if !f.store.fmt.exists(f.components()) {
		return mkerrors.New(mkerrors.KindFolderNotFound, "maildir.Folder.Open", nil, map[string]interface{}{"path": f.path})
	}

	if _, _, _, err := f.scanFolderLocked(); err != nil {
		return err
	}

	f.open = true
	f.mode = mode
	return nil
}

func (f *Folder) Close(ctx context.Context, expunge bool) error {
	if f.store == nil {
		return mkerrors.New(mkerrors.KindIllegalState, "maildir.Folder.Close", fmt.Errorf("store disconnected"), nil)
	}
	if expunge {
		if err := f.Expunge(ctx); err != nil {
			return err
		}
	}

	f.mu.Lock()
	f.open = false
	f.mu.Unlock()

	f.store.UntrackFolder(f)
	return nil
}

func (f *Folder) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// Create makes the tmp/cur/new triad (and, under Courier, the
// "maildirfolder" marker) for this path (maildirFormat::create, dispatched
// through whichever layout the store detected).
func (f *Folder) Create(ctx context.Context, attrs net.CreateAttrs) error {
	if f.store == nil {
		return mkerrors.New(mkerrors.KindIllegalState, "maildir.Folder.Create", fmt.Errorf("store disconnected"), nil)
	}
	if f.isRoot() {
		return mkerrors.New(mkerrors.KindOperationNotSupported, "maildir.Folder.Create", nil, nil)
	}
	if err := f.store.fmt.create(f.components()); err != nil {
		return mkerrors.New(mkerrors.KindFilesystem, "maildir.Folder.Create", err, map[string]interface{}{"path": f.path})
	}
	f.store.DispatchFolder(net.FolderEvent{Type: net.FolderCreated, Path: f.path})
	return nil
}

// Destroy removes the folder's directory tree entirely
// (maildirFormat::destroyFolder), then invalidates every other live handle
// for the same path — it no longer exists on disk for them either.
func (f *Folder) Destroy(ctx context.Context) error {
	if f.store == nil {
		return mkerrors.New(mkerrors.KindIllegalState, "maildir.Folder.Destroy", fmt.Errorf("store disconnected"), nil)
	}
	if f.isRoot() {
		return mkerrors.New(mkerrors.KindOperationNotSupported, "maildir.Folder.Destroy", nil, nil)
	}
	if err := f.store.fmt.destroy(f.components()); err != nil {
		return mkerrors.New(mkerrors.KindFilesystem, "maildir.Folder.Destroy", err, map[string]interface{}{"path": f.path})
	}

	f.mu.Lock()
	f.open = false
	f.mu.Unlock()

	f.store.DispatchFolder(net.FolderEvent{Type: net.FolderDeleted, Path: f.path})
	f.store.Mirror(f.path, f, func(other net.Folder) {
		if o, ok := other.(*Folder); ok {
			o.mu.Lock()
			o.open = false
			o.mu.Unlock()
		}
	})
	return nil
}

// Rename moves the folder's backing directory and mirrors the new path onto
// every other live handle for the old path
// (maildirFolder::rename's sibling-propagation loop over store->m_folders).
func (f *Folder) Rename(ctx context.Context, newPath string) error {
	if f.store == nil {
		return mkerrors.New(mkerrors.KindIllegalState, "maildir.Folder.Rename", fmt.Errorf("store disconnected"), nil)
	}
	if f.isRoot() {
		return mkerrors.New(mkerrors.KindOperationNotSupported, "maildir.Folder.Rename", nil, nil)
	}
	newComponents := splitPath(newPath)
	for _, c := range newComponents {
		if err := validateFolderName(c); err != nil {
			return err
		}
	}

	if err := f.store.fmt.rename(f.components(), newComponents); err != nil {
		return mkerrors.New(mkerrors.KindFilesystem, "maildir.Folder.Rename", err,
			map[string]interface{}{"from": f.path, "to": newPath})
	}

	oldPath := f.path
	newPathJoined := strings.Join(newComponents, "/")

	f.mu.Lock()
	f.path = newPathJoined
	f.mu.Unlock()

	f.store.DispatchFolder(net.FolderEvent{Type: net.FolderRenamed, Path: oldPath, NewPath: newPathJoined})
	f.store.Mirror(oldPath, f, func(other net.Folder) {
		if o, ok := other.(*Folder); ok {
			o.mu.Lock()
			o.path = newPathJoined
			o.mu.Unlock()
		}
	})
	return nil
}

func (f *Folder) Exists(ctx context.Context) (bool, error) {
	if f.store == nil {
		return false, mkerrors.New(mkerrors.KindIllegalState, "maildir.Folder.Exists", fmt.Errorf("store disconnected"), nil)
	}
	return f.store.fmt.exists(f.components()), nil
}

func (f *Folder) GetFolder(ctx context.Context, name string) (net.Folder, error) {
	if f.store == nil {
		return nil, mkerrors.New(mkerrors.KindIllegalState, "maildir.Folder.GetFolder", fmt.Errorf("store disconnected"), nil)
	}
	child := name
	if f.path != "" {
		child = f.path + "/" + name
	}
	return f.store.GetFolder(ctx, child)
}

// GetFolders lists the direct (or full recursive) subfolder tree under this
// folder (maildirFolder::getFolders / format.listFolders).
func (f *Folder) GetFolders(ctx context.Context, recursive bool) ([]net.Folder, error) {
	if f.store == nil {
		return nil, mkerrors.New(mkerrors.KindIllegalState, "maildir.Folder.GetFolders", fmt.Errorf("store disconnected"), nil)
	}

	var out []net.Folder
	var walk func(components []string, path string) error
	walk = func(components []string, path string) error {
		names, err := f.store.fmt.childNames(components)
		if err != nil {
			return mkerrors.New(mkerrors.KindFilesystem, "maildir.Folder.GetFolders", err, nil)
		}
		sort.Strings(names)
		for _, name := range names {
			childPath := name
			if path != "" {
				childPath = path + "/" + name
			}
			child, err := f.store.GetFolder(ctx, childPath)
			if err != nil {
				return err
			}
			out = append(out, child)
			if recursive {
				if err := walk(append(append([]string{}, components...), name), childPath); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(f.components(), f.path); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *Folder) requireOpen(op string) error {
	if f.store == nil {
		return mkerrors.New(mkerrors.KindIllegalState, op, fmt.Errorf("store disconnected"), nil)
	}
	f.mu.Lock()
	open := f.open
	f.mu.Unlock()
	if !open {
		return mkerrors.New(mkerrors.KindIllegalState, op, fmt.Errorf("folder not open"), nil)
	}
	return nil
}

func (f *Folder) GetMessage(ctx context.Context, num int) (*net.Message, error) {
	if err := f.requireOpen("maildir.Folder.GetMessage"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if num < 1 || num > len(f.messages) {
		return nil, mkerrors.New(mkerrors.KindMessageNotFound, "maildir.Folder.GetMessage", nil, map[string]interface{}{"num": num})
	}
	return &net.Message{Folder: f, Num: num, UID: f.messages[num-1].id, Flags: f.messages[num-1].flags}, nil
}

// GetMessages rejects UID-variant sets outright: a maildir unique-id is an
// opaque "<time>.<pid>_<counter>.<hostname>" string, not an ordinal the way
// IMAP's UIDs are, so there is no range to resolve it against
// (maildirFolder::getMessageNumbersStartingOnUID throws operation_not_supported
// for the same reason — this is the firmer, whole-UIDSet-rejecting version of
// that, since Maildir has no UID ordering at all to fall back on).
func (f *Folder) GetMessages(ctx context.Context, set net.MessageSet) ([]*net.Message, error) {
	if err := f.requireOpen("maildir.Folder.GetMessages"); err != nil {
		return nil, err
	}
	if set.IsUID() {
		return nil, mkerrors.New(mkerrors.KindOperationNotSupported, "maildir.Folder.GetMessages",
			fmt.Errorf("maildir unique-ids are not ordinal, UID sets are not supported"), nil)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	count := len(f.messages)
	var out []*net.Message
	for n := 1; n <= count; n++ {
		if set.Empty() || set.Contains(n, count) {
			out = append(out, &net.Message{Folder: f, Num: n, UID: f.messages[n-1].id, Flags: f.messages[n-1].flags})
		}
	}
	return out, nil
}

func (f *Folder) GetMessageCount(ctx context.Context) (int, error) {
	if err := f.requireOpen("maildir.Folder.GetMessageCount"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages), nil
}

// DeleteMessages marks the selected messages locally deleted by setting
// FlagDeleted, same as IMAP's \Deleted convention — Expunge is what
// actually unlinks the files (maildirFolder::deleteMessages delegates to
// setMessageFlagsImpl(FLAG_DELETED, FLAG_MODE_ADD) in just this way).
func (f *Folder) DeleteMessages(ctx context.Context, set net.MessageSet) error {
	return f.SetMessageFlags(ctx, set, net.FlagDeleted, net.FlagsAdd)
}

// SetMessageFlags renames each selected message's file to reflect the new
// flag set, then mirrors the change onto every other live handle for this
// path (maildirFolder::setMessageFlagsImpl + its sibling fan-out).
func (f *Folder) SetMessageFlags(ctx context.Context, set net.MessageSet, flags net.Flags, mode net.FlagMode) error {
	if err := f.requireOpen("maildir.Folder.SetMessageFlags"); err != nil {
		return err
	}
	if set.IsUID() {
		return mkerrors.New(mkerrors.KindOperationNotSupported, "maildir.Folder.SetMessageFlags", nil, nil)
	}

	f.mu.Lock()
	count := len(f.messages)
	var nums []int
	for n := 1; n <= count; n++ {
		if set.Contains(n, count) {
			nums = append(nums, n)
		}
	}
	curPath := filepath.Join(f.dir(), curDir)
	for _, n := range nums {
		m := &f.messages[n-1]
		var newFlags net.Flags
		switch mode {
		case net.FlagsSet:
			newFlags = flags
		case net.FlagsAdd:
			newFlags = m.flags | flags
		case net.FlagsRemove:
			newFlags = m.flags &^ flags
		}
		if newFlags == m.flags {
			continue
		}
		oldName := buildFilename(m.id, m.flags, false)
		newName := buildFilename(m.id, newFlags, false)
		oldFull := filepath.Join(curPath, oldName)
		newFull := filepath.Join(curPath, newName)
		if err := os.Rename(oldFull, newFull); err != nil {
			_, oldErr := os.Stat(oldFull)
			_, newErr := os.Stat(newFull)
			if !(os.IsNotExist(oldErr) && newErr == nil) {
				// Unless the source is already gone and the destination
				// already carries the new flags (another handle got there
				// first — treated as idempotent success per spec.md), this
				// is a real failure.
				f.mu.Unlock()
				return mkerrors.New(mkerrors.KindFilesystem, "maildir.Folder.SetMessageFlags", err,
					map[string]interface{}{"id": m.id})
			}
		}
		m.flags = newFlags
	}
	f.mu.Unlock()

	if len(nums) == 0 {
		return nil
	}

	f.store.DispatchMessageChanged(net.MessageChangedEvent{Folder: f, Nums: nums})
	f.store.Mirror(f.path, f, func(other net.Folder) {
		o, ok := other.(*Folder)
		if !ok {
			return
		}
		o.mu.Lock()
		if _, _, _, err := o.scanFolderLocked(); err != nil {
			o.mu.Unlock()
			return
		}
		o.mu.Unlock()
		f.store.DispatchMessageChanged(net.MessageChangedEvent{Folder: other, Nums: nums})
	})
	return nil
}

// AddMessage writes rawMessage to tmp/, fsyncs it, then renames it into
// place: new/<id> if flags is exactly FlagRecent (the just-delivered,
// untouched-by-any-client state), cur/<id>:2,<flags> otherwise
// (maildirFolder::addMessage's reliable tmp-then-rename delivery, including
// its error-path tmp-file cleanup).
func (f *Folder) AddMessage(ctx context.Context, rawMessage []byte, flags net.Flags) error {
	if err := f.requireOpen("maildir.Folder.AddMessage"); err != nil {
		return err
	}

	id := generateID(f.store.Host)
	tmpPath := filepath.Join(f.dir(), tmpDir, id)

	tf, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return mkerrors.New(mkerrors.KindFilesystem, "maildir.Folder.AddMessage", err, nil)
	}
	if _, err := tf.Write(rawMessage); err != nil {
		tf.Close()
		os.Remove(tmpPath)
		return mkerrors.New(mkerrors.KindFilesystem, "maildir.Folder.AddMessage", err, nil)
	}
	if err := tf.Sync(); err != nil {
		tf.Close()
		os.Remove(tmpPath)
		return mkerrors.New(mkerrors.KindFilesystem, "maildir.Folder.AddMessage", err, nil)
	}
	if err := tf.Close(); err != nil {
		os.Remove(tmpPath)
		return mkerrors.New(mkerrors.KindFilesystem, "maildir.Folder.AddMessage", err, nil)
	}

	var destPath string
	if flags == net.FlagRecent {
		destPath = filepath.Join(f.dir(), newDir, id)
	} else {
		destPath = filepath.Join(f.dir(), curDir, buildFilename(id, flags, false))
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return mkerrors.New(mkerrors.KindFilesystem, "maildir.Folder.AddMessage", err, nil)
	}

	f.mu.Lock()
	_, added, _, err := f.scanFolderLocked()
	f.mu.Unlock()
	if err != nil {
		return err
	}

	if len(added) > 0 {
		f.store.DispatchMessageCount(net.MessageCountEvent{Folder: f, Type: net.MessageCountAdded, Nums: added})
		f.store.Mirror(f.path, f, func(other net.Folder) {
			o, ok := other.(*Folder)
			if !ok {
				return
			}
			o.mu.Lock()
			o.scanFolderLocked()
			o.mu.Unlock()
			f.store.DispatchMessageCount(net.MessageCountEvent{Folder: other, Type: net.MessageCountAdded, Nums: added})
		})
	}
	return nil
}

// CopyMessages extracts each selected message's raw bytes and re-delivers
// them into dest via AddMessage, preserving flags
// (maildirFolder::copyMessageImpl, simplified from vmime's hard-link
// fast-path since Go's os package has no portable link-or-copy helper to
// ground that optimization on — every copy goes through the same AddMessage
// tmp-then-rename path a cross-filesystem copy would need anyway).
func (f *Folder) CopyMessages(ctx context.Context, dest string, set net.MessageSet) error {
	if err := f.requireOpen("maildir.Folder.CopyMessages"); err != nil {
		return err
	}
	if set.IsUID() {
		return mkerrors.New(mkerrors.KindOperationNotSupported, "maildir.Folder.CopyMessages", nil, nil)
	}

	destFolder, err := f.store.GetFolder(ctx, dest)
	if err != nil {
		return err
	}
	df, ok := destFolder.(*Folder)
	if !ok {
		return mkerrors.New(mkerrors.KindOperationNotSupported, "maildir.Folder.CopyMessages", nil, nil)
	}
	wasOpen := df.IsOpen()
	if !wasOpen {
		if err := df.Open(ctx, net.ReadWrite); err != nil {
			return err
		}
		defer df.Close(ctx, false)
	}

	msgs, err := f.GetMessages(ctx, set)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		var buf bytes.Buffer
		if err := f.Extract(ctx, m, &buf); err != nil {
			return err
		}
		if err := df.AddMessage(ctx, buf.Bytes(), m.Flags); err != nil {
			return err
		}
	}
	return nil
}

// Status rescans cur/new and fires MessageCountAdded/MessageCountRemoved
// for whatever the rescan found changed, mirroring the result onto every
// other live handle sharing this path (maildirFolder::status, spec.md §5's
// propagation rule).
func (f *Folder) Status(ctx context.Context) (net.Status, error) {
	if err := f.requireOpen("maildir.Folder.Status"); err != nil {
		return net.Status{}, err
	}

	f.mu.Lock()
	added, _, removed, err := f.scanFolderLocked()
	count := len(f.messages)
	unseen := 0
	for _, m := range f.messages {
		if !m.expunged && m.flags&net.FlagSeen == 0 {
			unseen++
		}
	}
	f.mu.Unlock()
	if err != nil {
		return net.Status{}, err
	}

	if len(added) > 0 {
		f.store.DispatchMessageCount(net.MessageCountEvent{Folder: f, Type: net.MessageCountAdded, Nums: added})
	}
	if len(removed) > 0 {
		f.store.DispatchMessageCount(net.MessageCountEvent{Folder: f, Type: net.MessageCountRemoved, Nums: removed})
	}
	f.store.Mirror(f.path, f, func(other net.Folder) {
		o, ok := other.(*Folder)
		if !ok {
			return
		}
		o.mu.Lock()
		oadded, _, oremoved, oerr := o.scanFolderLocked()
		o.mu.Unlock()
		if oerr != nil {
			return
		}
		if len(oadded) > 0 {
			f.store.DispatchMessageCount(net.MessageCountEvent{Folder: other, Type: net.MessageCountAdded, Nums: oadded})
		}
		if len(oremoved) > 0 {
			f.store.DispatchMessageCount(net.MessageCountEvent{Folder: other, Type: net.MessageCountRemoved, Nums: oremoved})
		}
	})

	return net.Status{Count: count, Unseen: unseen}, nil
}

// Expunge unlinks every message marked locally deleted (FlagDeleted) or
// already flagged expunged by a rescan, renumbers the survivors, and fires
// one MessageCountRemoved event covering every sequence number that
// disappeared — mirrored the same way Status mirrors its own findings
// (maildirFolder::expunge).
func (f *Folder) Expunge(ctx context.Context) error {
	if err := f.requireOpen("maildir.Folder.Expunge"); err != nil {
		return err
	}

	f.mu.Lock()
	curPath := filepath.Join(f.dir(), curDir)
	var removed []int
	var survivors []messageInfo
	for i, m := range f.messages {
		if m.expunged || m.flags&net.FlagDeleted != 0 {
			if !m.expunged {
				os.Remove(filepath.Join(curPath, buildFilename(m.id, m.flags, false)))
			}
			removed = append(removed, i+1)
			continue
		}
		survivors = append(survivors, m)
	}
	f.messages = survivors
	f.mu.Unlock()

	if len(removed) == 0 {
		return nil
	}

	f.store.DispatchMessageCount(net.MessageCountEvent{Folder: f, Type: net.MessageCountRemoved, Nums: removed})
	f.store.Mirror(f.path, f, func(other net.Folder) {
		o, ok := other.(*Folder)
		if !ok {
			return
		}
		o.mu.Lock()
		o.scanFolderLocked()
		o.mu.Unlock()
		f.store.DispatchMessageCount(net.MessageCountEvent{Folder: other, Type: net.MessageCountRemoved, Nums: removed})
	})
	return nil
}

// FetchMessages populates the requested attributes by statting and,
// when header/envelope/structure data is requested, reading the message
// file (maildirMessage::fetch). AttrImportance has no backing data source,
// same documented simplification as net/imap's ENVELOPE fetch.
func (f *Folder) FetchMessages(ctx context.Context, msgs []*net.Message, attrs net.Attribute) error {
	if err := f.requireOpen("maildir.Folder.FetchMessages"); err != nil {
		return err
	}

	curPath := filepath.Join(f.dir(), curDir)
	for _, msg := range msgs {
		f.mu.Lock()
		if msg.Num < 1 || msg.Num > len(f.messages) {
			f.mu.Unlock()
			continue
		}
		m := f.messages[msg.Num-1]
		f.mu.Unlock()

		msg.UID = m.id
		msg.Flags = m.flags

		path := filepath.Join(curPath, buildFilename(m.id, m.flags, false))

		if attrs&net.AttrSize != 0 {
			if info, err := os.Stat(path); err == nil {
				msg.Size = info.Size()
			}
		}

		needsStructure := attrs&(net.AttrStructure|net.AttrContentInfo) != 0
		needsHeader := attrs&(net.AttrEnvelope|net.AttrFullHeader) != 0
		if !needsStructure && !needsHeader {
			continue
		}

		if needsStructure {
			raw, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			parsed, err := net.Parse(f.store.Host, raw)
			if err != nil {
				continue
			}
			msg.Structure = parsed.BodyPart
			msg.Header = parsed.Header
			continue
		}

		raw, err := readHeaderBytes(path)
		if err != nil {
			continue
		}
		h, err := header.Parse(raw)
		if err != nil {
			continue
		}
		msg.Header = h
	}
	return nil
}

func (f *Folder) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	f.store = nil
}

// Extract streams the message file verbatim — Maildir's one-file-per-message
// layout makes this a direct read, unlike POP3's RETR/IMAP's BODY[]
// (maildirMessage::extractImpl's skip-then-bounded-copy, simplified since a
// plain os.File already supports seeking to any offset).
func (f *Folder) Extract(ctx context.Context, msg *net.Message, w io.Writer) error {
	path, err := f.messagePath(msg)
	if err != nil {
		return err
	}
	rf, err := os.Open(path)
	if err != nil {
		return mkerrors.New(mkerrors.KindMessageNotFound, "maildir.Folder.Extract", err, map[string]interface{}{"uid": msg.UID})
	}
	defer rf.Close()
	_, err = io.Copy(w, rf)
	return err
}

// ExtractPartial streams [offset, offset+length) directly via Seek, the
// true byte-range fetch POP3 can only emulate.
func (f *Folder) ExtractPartial(ctx context.Context, msg *net.Message, offset, length int64, w io.Writer) error {
	path, err := f.messagePath(msg)
	if err != nil {
		return err
	}
	rf, err := os.Open(path)
	if err != nil {
		return mkerrors.New(mkerrors.KindMessageNotFound, "maildir.Folder.ExtractPartial", err, map[string]interface{}{"uid": msg.UID})
	}
	defer rf.Close()

	if _, err := rf.Seek(offset, io.SeekStart); err != nil {
		return mkerrors.New(mkerrors.KindFilesystem, "maildir.Folder.ExtractPartial", err, nil)
	}
	if length <= 0 {
		_, err = io.Copy(w, rf)
		return err
	}
	_, err = io.CopyN(w, rf, length)
	if err == io.EOF {
		return nil
	}
	return err
}

func (f *Folder) messagePath(msg *net.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg.Num < 1 || msg.Num > len(f.messages) {
		return "", mkerrors.New(mkerrors.KindMessageNotFound, "maildir.Folder.messagePath", nil, map[string]interface{}{"num": msg.Num})
	}
	m := f.messages[msg.Num-1]
	return filepath.Join(f.dir(), curDir, buildFilename(m.id, m.flags, false)), nil
}

// readHeaderBytes streams path in chunks, stopping as soon as a blank-line
// boundary ("\r\n\r\n" or "\n\n") appears, instead of reading the whole
// file — maildirMessage::fetch's header-only optimization for requests that
// don't need STRUCTURE.
func readHeaderBytes(path string) ([]byte, error) {
	rf, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer rf.Close()

	var buf bytes.Buffer
	chunk := make([]byte, 4096)
	for {
		n, rerr := rf.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			data := buf.Bytes()
			if idx := bytes.Index(data, []byte("\r\n\r\n")); idx != -1 {
				return data[:idx], nil
			}
			if idx := bytes.Index(data, []byte("\n\n")); idx != -1 {
				return data[:idx], nil
			}
		}
		if rerr == io.EOF {
			return buf.Bytes(), nil
		}
		if rerr != nil {
			return nil, rerr
		}
	}
}

// scanFolderLocked merges the cur/new directory listing against f.messages,
// moving new/ arrivals into cur/ with their flags stripped and matching
// surviving cur/ entries by id rather than position
// (maildirFolder::scanFolder). Caller must hold f.mu.
func (f *Folder) scanFolderLocked() (added, changed, removed []int, err error) {
	dir := f.dir()
	newPath := filepath.Join(dir, newDir)
	curPath := filepath.Join(dir, curDir)

	newEntries, rerr := os.ReadDir(newPath)
	if rerr != nil && !os.IsNotExist(rerr) {
		return nil, nil, nil, mkerrors.New(mkerrors.KindFilesystem, "maildir.Folder.scanFolder", rerr, nil)
	}
	for _, e := range newEntries {
		name := e.Name()
		if e.IsDir() || !isMessageFile(name) {
			continue
		}
		id := extractID(name)
		src := filepath.Join(newPath, name)
		dst := filepath.Join(curPath, buildFilename(id, 0, false))
		if err := os.Rename(src, dst); err != nil {
			return nil, nil, nil, mkerrors.New(mkerrors.KindFilesystem, "maildir.Folder.scanFolder", err, nil)
		}
	}

	curEntries, rerr := os.ReadDir(curPath)
	if rerr != nil && !os.IsNotExist(rerr) {
		return nil, nil, nil, mkerrors.New(mkerrors.KindFilesystem, "maildir.Folder.scanFolder", rerr, nil)
	}

	curFlags := make(map[string]net.Flags, len(curEntries))
	var curOrder []string
	for _, e := range curEntries {
		name := e.Name()
		if e.IsDir() || !isMessageFile(name) {
			continue
		}
		id := extractID(name)
		curFlags[id] = extractFlags(name)
		curOrder = append(curOrder, id)
	}

	matched := make(map[string]bool, len(curFlags))
	var result []messageInfo
	var changedIDs, removedIDs, addedIDs []string

	for _, m := range f.messages {
		flags, ok := curFlags[m.id]
		if !ok {
			if !m.expunged {
				removedIDs = append(removedIDs, m.id)
			}
			result = append(result, messageInfo{id: m.id, flags: m.flags, expunged: true})
			continue
		}
		matched[m.id] = true
		if flags != m.flags {
			changedIDs = append(changedIDs, m.id)
		}
		result = append(result, messageInfo{id: m.id, flags: flags})
	}

	for _, id := range curOrder {
		if matched[id] {
			continue
		}
		matched[id] = true
		addedIDs = append(addedIDs, id)
		result = append(result, messageInfo{id: id, flags: curFlags[id]})
	}

	f.messages = result

	index := make(map[string]int, len(result))
	for i, m := range result {
		index[m.id] = i + 1
	}
	for _, id := range addedIDs {
		added = append(added, index[id])
	}
	for _, id := range changedIDs {
		changed = append(changed, index[id])
	}
	for _, id := range removedIDs {
		removed = append(removed, index[id])
	}
	sort.Ints(added)
	sort.Ints(changed)
	sort.Ints(removed)
	return added, changed, removed, nil
}
