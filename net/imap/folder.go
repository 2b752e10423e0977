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

package imap

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/go-vmime/mailkit/mime/header"
	"github.com/go-vmime/mailkit/mkerrors"
	"github.com/go-vmime/mailkit/net"
)

// Folder is one IMAP mailbox (or, for path "", the unselectable root of the
// hierarchy), grounded on spec.md §4.11's SELECT/EXAMINE/FETCH/STORE/COPY/
// APPEND/hierarchy-separator paragraphs and mirroring net/pop3.Folder's
// structural conventions (mutex-guarded mutable state, store==nil meaning
// detached, event dispatch always through the owning store).
type Folder struct {
	store *Store
	path  string

	mu          sync.Mutex
	open        bool
	mode        net.FolderMode
	exists      int
	recent      int
	uidValidity uint32
	uidNext     uint32
}

var _ net.Folder = (*Folder)(nil)
var _ net.Extractor = (*Folder)(nil)

func (f *Folder) Path() string { return f.path }

func (f *Folder) isRoot() bool { return f.path == "" }

// Open issues SELECT (read-write) or EXAMINE (read-only), recording
// EXISTS/RECENT/UIDVALIDITY/UIDNEXT from the response
// (IMAPFolder::open's select/examine dispatch, as spec.md §4.11 describes
// it). A UIDVALIDITY change versus what this handle last saw discards any
// UID-keyed state it cached — here that's just uidValidity/uidNext
// themselves, since this engine keeps no separate UID->message cache.
func (f *Folder) Open(ctx context.Context, mode net.FolderMode) error {
	if f.store == nil {
		return mkerrors.New(mkerrors.KindIllegalState, "imap.Folder.Open", fmt.Errorf("store disconnected"), nil)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.isRoot() {
		if mode != net.ReadOnly {
			return mkerrors.New(mkerrors.KindOperationNotSupported, "imap.Folder.Open", nil, nil)
		}
		f.open = true
		f.mode = mode
		return nil
	}

	cmd := "SELECT"
	if mode == net.ReadOnly {
		cmd = "EXAMINE"
	}
	untagged, status, err := f.store.c.command(cmd + " " + quoteString(f.store.mailboxName(f.path)))
	if err != nil {
		return err
	}
	if err := checkOK("imap.Folder.Open", status); err != nil {
		return mkerrors.New(mkerrors.KindFolderNotFound, "imap.Folder.Open", err, map[string]interface{}{"path": f.path})
	}

	f.applySelectData(untagged)
	f.open = true
	f.mode = mode
	return nil
}

func (f *Folder) applySelectData(untagged []*untaggedResponse) {
	for _, u := range untagged {
		switch u.kind {
		case "EXISTS":
			f.exists = u.num
		case "RECENT":
			f.recent = u.num
		case "OK":
			if code, value, ok := parseResponseCode(u.text); ok {
				switch code {
				case "UIDVALIDITY":
					if n, err := strconv.ParseUint(value, 10, 32); err == nil {
						f.uidValidity = uint32(n)
					}
				case "UIDNEXT":
					if n, err := strconv.ParseUint(value, 10, 32); err == nil {
						f.uidNext = uint32(n)
					}
				}
			}
		}
	}
}

// Close sends CLOSE when expunge is requested — IMAP4rev1's only standard
// CLOSE command always implicitly expunges \Deleted messages (RFC 3501
// §6.4.2), so there is no protocol-level non-expunging CLOSE to send;
// expunge=false therefore just deselects locally without a round trip,
// rather than silently performing an expunge the caller didn't ask for.
func (f *Folder) Close(ctx context.Context, expunge bool) error {
	if f.store == nil {
		return mkerrors.New(mkerrors.KindIllegalState, "imap.Folder.Close", fmt.Errorf("store disconnected"), nil)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return mkerrors.New(mkerrors.KindIllegalState, "imap.Folder.Close", fmt.Errorf("folder not open"), nil)
	}

	if !f.isRoot() && expunge {
		_, status, err := f.store.c.command("CLOSE")
		if err != nil {
			return err
		}
		if err := checkOK("imap.Folder.Close", status); err != nil {
			return err
		}
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

// Create issues CREATE (IMAPFolder::create). attrs is accepted but not
// translated into a mailbox special-use hint: IMAP4rev1 proper has no
// standard way to declare "holds messages only" vs "holds subfolders only"
// at creation time (that's the CREATE-SPECIAL-USE/LIST-EXTENDED extension,
// out of scope) — the server decides what a created mailbox can contain.
func (f *Folder) Create(ctx context.Context, attrs net.CreateAttrs) error {
	if f.store == nil {
		return mkerrors.New(mkerrors.KindIllegalState, "imap.Folder.Create", fmt.Errorf("store disconnected"), nil)
	}
	_, status, err := f.store.c.command("CREATE " + quoteString(f.store.mailboxName(f.path)))
	if err != nil {
		return err
	}
	if err := checkOK("imap.Folder.Create", status); err != nil {
		return err
	}
	f.store.DispatchFolder(net.FolderEvent{Type: net.FolderCreated, Path: f.path})
	return nil
}

func (f *Folder) Destroy(ctx context.Context) error {
	if f.store == nil {
		return mkerrors.New(mkerrors.KindIllegalState, "imap.Folder.Destroy", fmt.Errorf("store disconnected"), nil)
	}
	_, status, err := f.store.c.command("DELETE " + quoteString(f.store.mailboxName(f.path)))
	if err != nil {
		return err
	}
	if err := checkOK("imap.Folder.Destroy", status); err != nil {
		return err
	}
	f.store.DispatchFolder(net.FolderEvent{Type: net.FolderDeleted, Path: f.path})
	return nil
}

func (f *Folder) Rename(ctx context.Context, newPath string) error {
	if f.store == nil {
		return mkerrors.New(mkerrors.KindIllegalState, "imap.Folder.Rename", fmt.Errorf("store disconnected"), nil)
	}
	oldName := f.store.mailboxName(f.path)
	newName := f.store.mailboxName(newPath)
	_, status, err := f.store.c.command("RENAME " + quoteString(oldName) + " " + quoteString(newName))
	if err != nil {
		return err
	}
	if err := checkOK("imap.Folder.Rename", status); err != nil {
		return err
	}
	oldPath := f.path
	f.mu.Lock()
	f.path = newPath
	f.mu.Unlock()
	f.store.DispatchFolder(net.FolderEvent{Type: net.FolderRenamed, Path: oldPath, NewPath: newPath})
	return nil
}

// Exists probes via STATUS MESSAGES, which every server implements and
// which (unlike SELECT) does not disturb any already-selected mailbox.
func (f *Folder) Exists(ctx context.Context) (bool, error) {
	if f.isRoot() {
		return true, nil
	}
	if f.store == nil {
		return false, mkerrors.New(mkerrors.KindIllegalState, "imap.Folder.Exists", fmt.Errorf("store disconnected"), nil)
	}
	_, status, err := f.store.c.command("STATUS " + quoteString(f.store.mailboxName(f.path)) + " (MESSAGES)")
	if err != nil {
		return false, err
	}
	return status.status == "OK", nil
}

func (f *Folder) GetFolder(ctx context.Context, name string) (net.Folder, error) {
	if f.store == nil {
		return nil, mkerrors.New(mkerrors.KindIllegalState, "imap.Folder.GetFolder", fmt.Errorf("store disconnected"), nil)
	}
	path := name
	if !f.isRoot() {
		path = f.path + "/" + name
	}
	return f.store.GetFolder(ctx, path)
}

// GetFolders issues LIST for this folder's immediate children (or, with
// recursive, every descendant), converting each returned mailbox name back
// to a slash-separated path (IMAPFolder::getFolders).
func (f *Folder) GetFolders(ctx context.Context, recursive bool) ([]net.Folder, error) {
	if f.store == nil {
		return nil, mkerrors.New(mkerrors.KindIllegalState, "imap.Folder.GetFolders", fmt.Errorf("store disconnected"), nil)
	}

	prefix := ""
	if !f.isRoot() {
		prefix = f.store.mailboxName(f.path) + string(f.store.hierSep)
	}
	wildcard := "%"
	if recursive {
		wildcard = "*"
	}

	untagged, status, err := f.store.c.command(`LIST ` + quoteString(prefix) + ` ` + quoteString(wildcard))
	if err != nil {
		return nil, err
	}
	if err := checkOK("imap.Folder.GetFolders", status); err != nil {
		return nil, err
	}

	var out []net.Folder
	for _, u := range untagged {
		if u.kind != "LIST" || len(u.fields) < 3 {
			continue
		}
		name, ok := asString(u.fields[2])
		if !ok {
			continue
		}
		child := &Folder{store: f.store, path: f.store.folderPath(name)}
		f.store.TrackFolder(child)
		out = append(out, child)
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
	if err := f.requireOpen("imap.Folder.GetMessage"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	count := f.exists
	f.mu.Unlock()
	if num < 1 || num > count {
		return nil, mkerrors.New(mkerrors.KindMessageNotFound, "imap.Folder.GetMessage", nil, map[string]interface{}{"num": num})
	}
	return &net.Message{Folder: f, Num: num}, nil
}

// GetMessages enumerates by sequence number, matching set against the
// folder's current EXISTS count. A UID-tagged set is accepted but resolved
// the same way sequence numbers are here: this method only ever walks
// 1..exists and tests set.Contains — a true UID-set resolution would need
// an extra "UID SEARCH" round trip to map UIDs to sequence numbers, which
// callers needing UID-addressed access should do directly against the
// protocol's UID-variant commands (DeleteMessages/SetMessageFlags/
// CopyMessages already send "UID ..." when set.IsUID()).
func (f *Folder) GetMessages(ctx context.Context, set net.MessageSet) ([]*net.Message, error) {
	if err := f.requireOpen("imap.Folder.GetMessages"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	count := f.exists
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
	if err := f.requireOpen("imap.Folder.GetMessageCount"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exists, nil
}

// flagWireNames maps net.Flags to RFC 3501 system flag names. FlagRecent is
// deliberately excluded: \Recent is server-assigned and cannot be set via
// STORE.
var flagWireNames = []struct {
	bit  net.Flags
	name string
}{
	{net.FlagSeen, `\Seen`},
	{net.FlagAnswered, `\Answered`},
	{net.FlagFlagged, `\Flagged`},
	{net.FlagDeleted, `\Deleted`},
	{net.FlagDraft, `\Draft`},
}

func flagsToWire(flags net.Flags) string {
	var names []string
	for _, m := range flagWireNames {
		if flags&m.bit != 0 {
			names = append(names, m.name)
		}
	}
	return strings.Join(names, " ")
}

func wireToFlags(fields []token) net.Flags {
	var flags net.Flags
	for _, t := range fields {
		name, ok := asString(t)
		if !ok {
			continue
		}
		for _, m := range flagWireNames {
			if strings.EqualFold(name, m.name) {
				flags |= m.bit
			}
		}
		if strings.EqualFold(name, `\Recent`) {
			flags |= net.FlagRecent
		}
	}
	return flags
}

// storeFlags issues STORE (or UID STORE), shared by DeleteMessages
// ("+FLAGS (\Deleted)") and SetMessageFlags.
func (f *Folder) storeFlags(op, setSpec string, isUID bool, item string) error {
	cmd := ""
	if isUID {
		cmd = "UID "
	}
	cmd += "STORE " + setSpec + " " + item
	_, status, err := f.store.c.command(cmd)
	if err != nil {
		return err
	}
	return checkOK(op, status)
}

// DeleteMessages marks set \Deleted (IMAPFolder::deleteMessages); an actual
// purge only happens on the next Close(ctx, true) or Expunge.
func (f *Folder) DeleteMessages(ctx context.Context, set net.MessageSet) error {
	if err := f.requireOpen("imap.Folder.DeleteMessages"); err != nil {
		return err
	}
	if err := f.storeFlags("imap.Folder.DeleteMessages", set.String(), set.IsUID(), `+FLAGS.SILENT (\Deleted)`); err != nil {
		return err
	}
	f.store.DispatchMessageChanged(net.MessageChangedEvent{Folder: f})
	return nil
}

// SetMessageFlags maps net.FlagMode to STORE's +FLAGS/-FLAGS/FLAGS forms
// (IMAPFolder::setMessageFlags).
func (f *Folder) SetMessageFlags(ctx context.Context, set net.MessageSet, flags net.Flags, mode net.FlagMode) error {
	if err := f.requireOpen("imap.Folder.SetMessageFlags"); err != nil {
		return err
	}
	var prefix string
	switch mode {
	case net.FlagsAdd:
		prefix = "+FLAGS.SILENT"
	case net.FlagsRemove:
		prefix = "-FLAGS.SILENT"
	default:
		prefix = "FLAGS.SILENT"
	}
	item := prefix + " (" + flagsToWire(flags) + ")"
	if err := f.storeFlags("imap.Folder.SetMessageFlags", set.String(), set.IsUID(), item); err != nil {
		return err
	}
	f.store.DispatchMessageChanged(net.MessageChangedEvent{Folder: f})
	return nil
}

// AddMessage implements the synchronizing-literal APPEND flow via
// conn.appendMessage (IMAPFolder::addMessage).
func (f *Folder) AddMessage(ctx context.Context, rawMessage []byte, flags net.Flags) error {
	if f.store == nil {
		return mkerrors.New(mkerrors.KindIllegalState, "imap.Folder.AddMessage", fmt.Errorf("store disconnected"), nil)
	}
	untagged, status, err := f.store.c.appendMessage(f.store.mailboxName(f.path), flagsToWire(flags), rawMessage)
	if err != nil {
		return err
	}
	if err := checkOK("imap.Folder.AddMessage", status); err != nil {
		return err
	}
	f.mu.Lock()
	f.applySelectData(untagged)
	f.mu.Unlock()
	f.store.DispatchMessageCount(net.MessageCountEvent{Folder: f, Type: net.MessageCountAdded})
	return nil
}

// CopyMessages issues COPY/UID COPY (IMAPFolder::copyMessages).
func (f *Folder) CopyMessages(ctx context.Context, dest string, set net.MessageSet) error {
	if err := f.requireOpen("imap.Folder.CopyMessages"); err != nil {
		return err
	}
	cmd := ""
	if set.IsUID() {
		cmd = "UID "
	}
	cmd += "COPY " + set.String() + " " + quoteString(f.store.mailboxName(dest))
	_, status, err := f.store.c.command(cmd)
	if err != nil {
		return err
	}
	return checkOK("imap.Folder.CopyMessages", status)
}

// Status re-issues STATUS (MESSAGES UNSEEN) without disturbing the current
// SELECTed mailbox, and mirrors a message-count change onto every other
// live handle for this path (IMAPFolder::status).
func (f *Folder) Status(ctx context.Context) (net.Status, error) {
	if f.store == nil {
		return net.Status{}, mkerrors.New(mkerrors.KindIllegalState, "imap.Folder.Status", fmt.Errorf("store disconnected"), nil)
	}

	untagged, status, err := f.store.c.command("STATUS " + quoteString(f.store.mailboxName(f.path)) + " (MESSAGES UNSEEN)")
	if err != nil {
		return net.Status{}, err
	}
	if err := checkOK("imap.Folder.Status", status); err != nil {
		return net.Status{}, err
	}

	var st net.Status
	for _, u := range untagged {
		if u.kind != "STATUS" || len(u.fields) < 2 {
			continue
		}
		items, ok := asList(u.fields[1])
		if !ok {
			continue
		}
		for i := 0; i+1 < len(items); i += 2 {
			name, _ := asString(items[i])
			valStr, _ := asString(items[i+1])
			val, _ := strconv.Atoi(valStr)
			switch strings.ToUpper(name) {
			case "MESSAGES":
				st.Count = val
			case "UNSEEN":
				st.Unseen = val
			}
		}
	}

	f.mu.Lock()
	oldCount := f.exists
	f.exists = st.Count
	f.mu.Unlock()

	if st.Count > oldCount {
		nums := make([]int, 0, st.Count-oldCount)
		for n := oldCount + 1; n <= st.Count; n++ {
			nums = append(nums, n)
		}
		f.store.DispatchMessageCount(net.MessageCountEvent{Folder: f, Type: net.MessageCountAdded, Nums: nums})
		f.store.Mirror(f.path, f, func(other net.Folder) {
			if o, ok := other.(*Folder); ok {
				o.mu.Lock()
				o.exists = st.Count
				o.mu.Unlock()
			}
			f.store.DispatchMessageCount(net.MessageCountEvent{Folder: other, Type: net.MessageCountAdded, Nums: nums})
		})
	}

	return st, nil
}

// Expunge issues EXPUNGE, purging every \Deleted message in the currently
// SELECTed mailbox (IMAPFolder::expunge).
func (f *Folder) Expunge(ctx context.Context) error {
	if err := f.requireOpen("imap.Folder.Expunge"); err != nil {
		return err
	}
	untagged, status, err := f.store.c.command("EXPUNGE")
	if err != nil {
		return err
	}
	if err := checkOK("imap.Folder.Expunge", status); err != nil {
		return err
	}

	var expunged []int
	for _, u := range untagged {
		if u.kind == "EXPUNGE" {
			expunged = append(expunged, u.num)
		}
	}
	if len(expunged) > 0 {
		f.mu.Lock()
		f.exists -= len(expunged)
		f.mu.Unlock()
		f.store.DispatchMessageCount(net.MessageCountEvent{Folder: f, Type: net.MessageCountRemoved, Nums: expunged})
	}
	return nil
}

// fetchItemsFor builds the FETCH item list for attrs. AttrContentInfo folds
// into BODYSTRUCTURE (IMAP has no separate wire item for "content info"
// distinct from full body structure); AttrImportance has no standard
// IMAP4rev1 FETCH item (it would need a server-side X-Priority/Importance
// header extension) and is silently not fetched.
func fetchItemsFor(attrs net.Attribute) []string {
	var items []string
	if attrs&net.AttrUID != 0 {
		items = append(items, "UID")
	}
	if attrs&net.AttrSize != 0 {
		items = append(items, "RFC822.SIZE")
	}
	if attrs&net.AttrFlags != 0 {
		items = append(items, "FLAGS")
	}
	if attrs&net.AttrEnvelope != 0 {
		items = append(items, "ENVELOPE")
	}
	if attrs&(net.AttrStructure|net.AttrContentInfo) != 0 {
		items = append(items, "BODYSTRUCTURE")
	}
	if attrs&net.AttrFullHeader != 0 {
		items = append(items, "BODY.PEEK[HEADER]")
	}
	return items
}

// fetchAttributeList unwraps the single parenthesized msg_att list a FETCH
// untagged response carries as u.fields[0].
func fetchAttributeList(u *untaggedResponse) []token {
	if len(u.fields) != 1 {
		return u.fields
	}
	list, ok := asList(u.fields[0])
	if !ok {
		return u.fields
	}
	return list
}

// FetchMessages issues one sequence-number FETCH for every requested
// attribute at once and scatters the results back onto msgs by sequence
// number (IMAPFolder::fetchMessages).
func (f *Folder) FetchMessages(ctx context.Context, msgs []*net.Message, attrs net.Attribute) error {
	if err := f.requireOpen("imap.Folder.FetchMessages"); err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	items := fetchItemsFor(attrs)
	if len(items) == 0 {
		return nil
	}

	nums := make([]string, len(msgs))
	byNum := make(map[int]*net.Message, len(msgs))
	for i, m := range msgs {
		nums[i] = strconv.Itoa(m.Num)
		byNum[m.Num] = m
	}

	cmd := "FETCH " + strings.Join(nums, ",") + " (" + strings.Join(items, " ") + ")"
	untagged, status, err := f.store.c.command(cmd)
	if err != nil {
		return err
	}
	if err := checkOK("imap.Folder.FetchMessages", status); err != nil {
		return err
	}

	for _, u := range untagged {
		if u.kind != "FETCH" {
			continue
		}
		msg, ok := byNum[u.num]
		if !ok {
			continue
		}
		applyFetchAttributes(msg, fetchAttributeList(u))
	}
	return nil
}

func applyFetchAttributes(msg *net.Message, attList []token) {
	for i := 0; i+1 < len(attList); i += 2 {
		name, ok := asString(attList[i])
		if !ok {
			continue
		}
		value := attList[i+1]
		switch strings.ToUpper(name) {
		case "UID":
			if s, ok := asString(value); ok {
				msg.UID = s
			}
		case "RFC822.SIZE":
			if s, ok := asString(value); ok {
				if n, err := strconv.ParseInt(s, 10, 64); err == nil {
					msg.Size = n
				}
			}
		case "FLAGS":
			if list, ok := asList(value); ok {
				msg.Flags = wireToFlags(list)
			}
		case "ENVELOPE":
			if list, ok := asList(value); ok {
				if env, err := parseEnvelope(list); err == nil {
					if msg.Header == nil {
						msg.Header = header.New()
					}
					env.toHeader(msg.Header)
				}
			}
		case "BODYSTRUCTURE", "BODY":
			if list, ok := asList(value); ok {
				if part, err := parseBodyStructure(list); err == nil {
					msg.Structure = part
				}
			}
		case "BODY.PEEK[HEADER]", "BODY[HEADER]", "RFC822.HEADER":
			if s, ok := asString(value); ok {
				if h, err := header.Parse([]byte(s)); err == nil {
					msg.Header = h
				}
			}
		}
	}
}

// Invalidate detaches the folder from its store.
func (f *Folder) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	f.store = nil
}

// Extract streams the full message via BODY[] (IMAPFolder::getMessage
// extract path), diverting the literal straight to w via conn.fetchBody
// instead of buffering it.
func (f *Folder) Extract(ctx context.Context, msg *net.Message, w io.Writer) error {
	if err := f.requireOpen("imap.Folder.Extract"); err != nil {
		return err
	}
	cmd := fmt.Sprintf("FETCH %d (BODY.PEEK[])", msg.Num)
	_, status, err := f.store.c.fetchBody(cmd, w)
	if err != nil {
		return err
	}
	if err := checkOK("imap.Folder.Extract", status); err != nil {
		return mkerrors.New(mkerrors.KindMessageNotFound, "imap.Folder.Extract", err, map[string]interface{}{"num": msg.Num})
	}
	return nil
}

// ExtractPartial streams BODY[]<offset.length> (RFC 3501 §6.4.5's partial
// fetch syntax — net.CapPartialFetch / spec.md's EXTRACT_PART, the one
// capability POP3 can only emulate and IMAP speaks natively).
func (f *Folder) ExtractPartial(ctx context.Context, msg *net.Message, offset, length int64, w io.Writer) error {
	if err := f.requireOpen("imap.Folder.ExtractPartial"); err != nil {
		return err
	}
	cmd := fmt.Sprintf("FETCH %d (BODY.PEEK[]<%d.%d>)", msg.Num, offset, length)
	_, status, err := f.store.c.fetchBody(cmd, w)
	if err != nil {
		return err
	}
	if err := checkOK("imap.Folder.ExtractPartial", status); err != nil {
		return mkerrors.New(mkerrors.KindMessageNotFound, "imap.Folder.ExtractPartial", err, map[string]interface{}{"num": msg.Num})
	}
	return nil
}
