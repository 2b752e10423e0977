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

package pop3

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/go-vmime/mailkit/mkerrors"
	"github.com/go-vmime/mailkit/net"
)

// Folder is either the root (path "") or "INBOX" — POP3 has no subfolder
// hierarchy (POP3Folder::getType's two-case decision).
type Folder struct {
	store *Store
	path  string

	mu       sync.Mutex
	open     bool
	mode     net.FolderMode
	msgCount int
}

var _ net.Folder = (*Folder)(nil)
var _ net.Extractor = (*Folder)(nil)

func (f *Folder) Path() string { return f.path }

func (f *Folder) isInbox() bool { return strings.EqualFold(f.path, "INBOX") }

// Open sends STAT for INBOX to learn the message count; the root path
// opens trivially read-only (POP3Folder::open).
func (f *Folder) Open(ctx context.Context, mode net.FolderMode) error {
	if f.store == nil {
		return mkerrors.New(mkerrors.KindIllegalState, "pop3.Folder.Open", fmt.Errorf("store disconnected"), nil)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.path == "" {
		if mode != net.ReadOnly {
			return mkerrors.New(mkerrors.KindOperationNotSupported, "pop3.Folder.Open", nil, nil)
		}
		f.open = true
		f.mode = mode
		f.msgCount = 0
		return nil
	}

	if !f.isInbox() {
		return mkerrors.New(mkerrors.KindFolderNotFound, "pop3.Folder.Open", nil, map[string]interface{}{"path": f.path})
	}

	if err := f.store.c.send("STAT"); err != nil {
		return err
	}
	line, err := f.store.c.readStatusLine("STAT")
	if err != nil {
		return err
	}

	var count, size int
	if _, err := fmt.Sscanf(stripResponseCode(line), "%d %d", &count, &size); err != nil {
		return mkerrors.New(mkerrors.KindInvalidResponse, "pop3.Folder.Open", err, map[string]interface{}{"response": line})
	}

	f.open = true
	f.mode = mode
	f.msgCount = count
	return nil
}

// Close sends RSET unless expunge is requested (POP3 has no explicit
// expunge — deletions marked via DELE take effect at QUIT regardless, so
// expunge=true here just means "keep the DELEs", expunge=false means
// "undo them").
func (f *Folder) Close(ctx context.Context, expunge bool) error {
	if f.store == nil {
		return mkerrors.New(mkerrors.KindIllegalState, "pop3.Folder.Close", fmt.Errorf("store disconnected"), nil)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return mkerrors.New(mkerrors.KindIllegalState, "pop3.Folder.Close", fmt.Errorf("folder not open"), nil)
	}

	if !expunge && f.isInbox() {
		_ = f.store.c.send("RSET")
		_, _ = f.store.c.readLine()
	}

	f.open = false
	f.store.UntrackFolder(f)
	return nil
}

func (f *Folder) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *Folder) Create(ctx context.Context, attrs net.CreateAttrs) error {
	return mkerrors.New(mkerrors.KindOperationNotSupported, "pop3.Folder.Create", nil, nil)
}

func (f *Folder) Destroy(ctx context.Context) error {
	return mkerrors.New(mkerrors.KindOperationNotSupported, "pop3.Folder.Destroy", nil, nil)
}

func (f *Folder) Rename(ctx context.Context, newPath string) error {
	return mkerrors.New(mkerrors.KindOperationNotSupported, "pop3.Folder.Rename", nil, nil)
}

func (f *Folder) Exists(ctx context.Context) (bool, error) {
	return f.path == "" || f.isInbox(), nil
}

func (f *Folder) GetFolder(ctx context.Context, name string) (net.Folder, error) {
	if f.store == nil {
		return nil, mkerrors.New(mkerrors.KindIllegalState, "pop3.Folder.GetFolder", fmt.Errorf("store disconnected"), nil)
	}
	return f.store.GetFolder(ctx, name)
}

// GetFolders returns {INBOX} for the root, nothing for INBOX itself
// (POP3Folder::getFolders).
func (f *Folder) GetFolders(ctx context.Context, recursive bool) ([]net.Folder, error) {
	if f.store == nil {
		return nil, mkerrors.New(mkerrors.KindIllegalState, "pop3.Folder.GetFolders", fmt.Errorf("store disconnected"), nil)
	}
	if f.path != "" {
		return nil, nil
	}
	inbox, err := f.store.GetFolder(ctx, "INBOX")
	if err != nil {
		return nil, err
	}
	return []net.Folder{inbox}, nil
}

func (f *Folder) requireOpenInbox(op string) error {
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
	if err := f.requireOpenInbox("pop3.Folder.GetMessage"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	count := f.msgCount
	f.mu.Unlock()
	if num < 1 || num > count {
		return nil, mkerrors.New(mkerrors.KindMessageNotFound, "pop3.Folder.GetMessage", nil, map[string]interface{}{"num": num})
	}
	return &net.Message{Folder: f, Num: num}, nil
}

func (f *Folder) GetMessages(ctx context.Context, set net.MessageSet) ([]*net.Message, error) {
	if err := f.requireOpenInbox("pop3.Folder.GetMessages"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	count := f.msgCount
	f.mu.Unlock()

	var out []*net.Message
	for n := 1; n <= count; n++ {
		if set.Empty() || set.Contains(n, count) {
			out = append(out, &net.Message{Folder: f, Num: n})
		}
	}
	return out, nil
}

func (f *Folder) GetMessageCount(ctx context.Context) (int, error) {
	if err := f.requireOpenInbox("pop3.Folder.GetMessageCount"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.msgCount, nil
}

// DeleteMessages issues one DELE per message in set (POP3Folder::deleteMessages).
func (f *Folder) DeleteMessages(ctx context.Context, set net.MessageSet) error {
	if err := f.requireOpenInbox("pop3.Folder.DeleteMessages"); err != nil {
		return err
	}
	f.mu.Lock()
	count := f.msgCount
	f.mu.Unlock()

	var nums []int
	for n := 1; n <= count; n++ {
		if set.Contains(n, count) {
			nums = append(nums, n)
		}
	}
	if len(nums) == 0 {
		return mkerrors.New(mkerrors.KindInvalidArgument, "pop3.Folder.DeleteMessages", nil, nil)
	}

	for _, n := range nums {
		if err := f.store.c.send(fmt.Sprintf("DELE %d", n)); err != nil {
			return err
		}
		if _, err := f.store.c.readStatusLine("DELE"); err != nil {
			return err
		}
	}

	f.store.DispatchMessageChanged(net.MessageChangedEvent{Folder: f, Nums: nums})
	return nil
}

// SetMessageFlags is unsupported: POP3 has no flag storage beyond the
// implicit "deleted" state DeleteMessages already covers
// (POP3Folder::setMessageFlags).
func (f *Folder) SetMessageFlags(ctx context.Context, set net.MessageSet, flags net.Flags, mode net.FlagMode) error {
	return mkerrors.New(mkerrors.KindOperationNotSupported, "pop3.Folder.SetMessageFlags", nil, nil)
}

func (f *Folder) AddMessage(ctx context.Context, rawMessage []byte, flags net.Flags) error {
	return mkerrors.New(mkerrors.KindOperationNotSupported, "pop3.Folder.AddMessage", nil, nil)
}

func (f *Folder) CopyMessages(ctx context.Context, dest string, set net.MessageSet) error {
	return mkerrors.New(mkerrors.KindOperationNotSupported, "pop3.Folder.CopyMessages", nil, nil)
}

// Status re-issues STAT and, if the count grew, fires a MessageCountAdded
// event — mirrored onto every other live handle for this path
// (POP3Folder::status' sibling-folder notification fan-out).
func (f *Folder) Status(ctx context.Context) (net.Status, error) {
	if err := f.requireOpenInbox("pop3.Folder.Status"); err != nil {
		return net.Status{}, err
	}

	if err := f.store.c.send("STAT"); err != nil {
		return net.Status{}, err
	}
	line, err := f.store.c.readStatusLine("STAT")
	if err != nil {
		return net.Status{}, err
	}

	var count, size int
	if _, err := fmt.Sscanf(stripResponseCode(line), "%d %d", &count, &size); err != nil {
		return net.Status{}, mkerrors.New(mkerrors.KindInvalidResponse, "pop3.Folder.Status", err, nil)
	}

	f.mu.Lock()
	oldCount := f.msgCount
	f.msgCount = count
	f.mu.Unlock()

	if count > oldCount {
		nums := make([]int, 0, count-oldCount)
		for n := oldCount + 1; n <= count; n++ {
			nums = append(nums, n)
		}
		ev := net.MessageCountEvent{Folder: f, Type: net.MessageCountAdded, Nums: nums}
		f.store.DispatchMessageCount(ev)
		f.store.Mirror(f.path, f, func(other net.Folder) {
			if o, ok := other.(*Folder); ok {
				o.mu.Lock()
				o.msgCount = count
				o.mu.Unlock()
			}
			f.store.DispatchMessageCount(net.MessageCountEvent{Folder: other, Type: net.MessageCountAdded, Nums: nums})
		})
	}

	return net.Status{Count: count, Unseen: count}, nil
}

// Expunge is a no-op: deleted messages are purged by the server when the
// session ends regardless (POP3Folder::expunge's comment verbatim).
func (f *Folder) Expunge(ctx context.Context) error {
	return nil
}

// FetchMessages fills Size/UID via LIST/UIDL (POP3Folder::fetchMessages).
func (f *Folder) FetchMessages(ctx context.Context, msgs []*net.Message, attrs net.Attribute) error {
	if err := f.requireOpenInbox("pop3.Folder.FetchMessages"); err != nil {
		return err
	}

	if attrs&net.AttrSize != 0 {
		sizes, err := f.listAll()
		if err != nil {
			return err
		}
		for _, m := range msgs {
			if v, ok := sizes[m.Num]; ok {
				fmt.Sscanf(v, "%d", &m.Size)
			}
		}
	}

	if attrs&net.AttrUID != 0 {
		uids, err := f.uidlAll()
		if err != nil {
			return err
		}
		for _, m := range msgs {
			if v, ok := uids[m.Num]; ok {
				m.UID = v
			}
		}
	}

	return nil
}

func (f *Folder) listAll() (map[int]string, error) {
	if err := f.store.c.send("LIST"); err != nil {
		return nil, err
	}
	if _, err := f.store.c.readStatusLine("LIST"); err != nil {
		return nil, err
	}
	lines, err := f.store.c.readMultiLine()
	if err != nil {
		return nil, err
	}
	out := make(map[int]string, len(lines))
	for _, line := range lines {
		if n, v, ok := parseListOrUidlLine(line); ok {
			out[n] = v
		}
	}
	return out, nil
}

func (f *Folder) uidlAll() (map[int]string, error) {
	if err := f.store.c.send("UIDL"); err != nil {
		return nil, err
	}
	if _, err := f.store.c.readStatusLine("UIDL"); err != nil {
		return nil, err
	}
	lines, err := f.store.c.readMultiLine()
	if err != nil {
		return nil, err
	}
	out := make(map[int]string, len(lines))
	for _, line := range lines {
		if n, v, ok := parseListOrUidlLine(line); ok {
			out[n] = v
		}
	}
	return out, nil
}

// Invalidate detaches the folder from its store (spec.md §4.9 failure
// semantics); afterwards every operation that talks to the store fails with
// KindIllegalState through its store-disconnected check.
func (f *Folder) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	f.store = nil
}

// Extract retrieves the full message via RETR (POP3's only fetch verb);
// ExtractPartial emulates a partial fetch with TOP <num> 0, which only
// guarantees headers, a best-effort inverse of POP3's missing byte-range
// fetch (documented Open Question decision, see DESIGN.md).
func (f *Folder) Extract(ctx context.Context, msg *net.Message, w io.Writer) error {
	if err := f.requireOpenInbox("pop3.Folder.Extract"); err != nil {
		return err
	}
	if err := f.store.c.send(fmt.Sprintf("RETR %d", msg.Num)); err != nil {
		return err
	}
	if _, err := f.store.c.readStatusLine("RETR"); err != nil {
		return mkerrors.New(mkerrors.KindMessageNotFound, "pop3.Folder.Extract", err, map[string]interface{}{"num": msg.Num})
	}
	lines, err := f.store.c.readMultiLine()
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, strings.Join(lines, "\r\n")+"\r\n")
	return err
}

// ExtractPartial supports offset 0 only: it tries TOP <num> 0 (headers
// only) first and, if the server doesn't support TOP, falls back to
// RETR-then-truncate, per the decision recorded in DESIGN.md's Open
// Question log. Any other offset fails with KindOperationNotSupported,
// since POP3 has no true byte-range fetch.
func (f *Folder) ExtractPartial(ctx context.Context, msg *net.Message, offset, length int64, w io.Writer) error {
	if err := f.requireOpenInbox("pop3.Folder.ExtractPartial"); err != nil {
		return err
	}

	if offset != 0 {
		return mkerrors.New(mkerrors.KindOperationNotSupported, "pop3.Folder.ExtractPartial",
			fmt.Errorf("POP3 has no byte-range fetch, offset must be 0"), map[string]interface{}{"offset": offset})
	}

	if offset == 0 {
		if err := f.store.c.send(fmt.Sprintf("TOP %d 0", msg.Num)); err != nil {
			return err
		}
		if _, err := f.store.c.readStatusLine("TOP"); err == nil {
			lines, err := f.store.c.readMultiLine()
			if err != nil {
				return err
			}
			raw := strings.Join(lines, "\r\n") + "\r\n"
			return truncatingWrite(w, raw, length)
		}
		// TOP rejected: fall through to the RETR-and-truncate degraded path.
	}

	var buf strings.Builder
	if err := f.Extract(ctx, msg, &buf); err != nil {
		return err
	}
	raw := buf.String()
	if int64(offset) >= int64(len(raw)) {
		return nil
	}
	raw = raw[offset:]
	return truncatingWrite(w, raw, length)
}

func truncatingWrite(w io.Writer, raw string, length int64) error {
	if length > 0 && length < int64(len(raw)) {
		raw = raw[:length]
	}
	_, err := io.WriteString(w, raw)
	return err
}
