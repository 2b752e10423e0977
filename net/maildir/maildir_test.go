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
	"context"
	"os"
	"path/filepath"
	"testing"

	mknet "github.com/go-vmime/mailkit/net"
)

func newTestStore(t *testing.T, root string) *Store {
	t.Helper()
	sess := mknet.NewSession()
	store := &Store{BaseStore: mknet.NewBaseStore(sess, &mknet.URL{Scheme: "maildir", Path: root}, mknet.StaticAuthenticator{})}
	if err := store.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return store
}

type countRecorder struct {
	events []mknet.MessageCountEvent
}

func (r *countRecorder) MessageCountChanged(ev mknet.MessageCountEvent) {
	r.events = append(r.events, ev)
}

// TestAddMessageDeliversViaTmpThenCur checks the reliable-delivery path:
// AddMessage must leave nothing behind in tmp/ and the message must land in
// cur/ with its flags encoded in the filename.
func TestAddMessageDeliversViaTmpThenCur(t *testing.T) {
	root := t.TempDir()
	store := newTestStore(t, root)

	folder, err := store.GetFolder(context.Background(), "INBOX")
	if err != nil {
		t.Fatalf("GetFolder: %v", err)
	}
	if err := folder.Create(context.Background(), mknet.CreateHoldsMessages); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := folder.Open(context.Background(), mknet.ReadWrite); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := folder.AddMessage(context.Background(), []byte("Subject: hi\r\n\r\nbody\r\n"), mknet.FlagSeen); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	tmpEntries, _ := os.ReadDir(filepath.Join(root, "INBOX", "tmp"))
	if len(tmpEntries) != 0 {
		t.Fatalf("expected tmp/ empty after delivery, got %d entries", len(tmpEntries))
	}
	curEntries, err := os.ReadDir(filepath.Join(root, "INBOX", "cur"))
	if err != nil || len(curEntries) != 1 {
		t.Fatalf("cur/ entries = %v, err = %v", curEntries, err)
	}
	if got := curEntries[0].Name(); !containsFlagLetter(got, 'S') {
		t.Fatalf("cur/ file name %q doesn't carry the Seen flag", got)
	}

	count, err := folder.GetMessageCount(context.Background())
	if err != nil || count != 1 {
		t.Fatalf("GetMessageCount = %d, %v", count, err)
	}
}

func containsFlagLetter(name string, letter byte) bool {
	for i := 0; i < len(name); i++ {
		if name[i] == letter {
			return true
		}
	}
	return false
}

// TestFlagUpdateRenameExpungeFiresRemoved exercises the flag-change ->
// rename -> expunge -> REMOVED-event sequence: setting \Deleted renames the
// file in cur/, and Expunge both unlinks it and fires MessageCountRemoved.
func TestFlagUpdateRenameExpungeFiresRemoved(t *testing.T) {
	root := t.TempDir()
	store := newTestStore(t, root)

	folder, err := store.GetFolder(context.Background(), "INBOX")
	if err != nil {
		t.Fatalf("GetFolder: %v", err)
	}
	if err := folder.Create(context.Background(), mknet.CreateHoldsMessages); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := folder.Open(context.Background(), mknet.ReadWrite); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := folder.AddMessage(context.Background(), []byte("Subject: a\r\n\r\nbody\r\n"), mknet.FlagRecent); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	rec := &countRecorder{}
	store.AddMessageCountListener(rec)

	if err := folder.DeleteMessages(context.Background(), mknet.SequenceNum(1)); err != nil {
		t.Fatalf("DeleteMessages: %v", err)
	}

	curEntries, err := os.ReadDir(filepath.Join(root, "INBOX", "cur"))
	if err != nil || len(curEntries) != 1 || !containsFlagLetter(curEntries[0].Name(), 'T') {
		t.Fatalf("expected renamed file carrying T flag, got %v (err %v)", curEntries, err)
	}

	if err := folder.Expunge(context.Background()); err != nil {
		t.Fatalf("Expunge: %v", err)
	}

	curEntries, _ = os.ReadDir(filepath.Join(root, "INBOX", "cur"))
	if len(curEntries) != 0 {
		t.Fatalf("expected cur/ empty after expunge, got %v", curEntries)
	}

	var sawRemoved bool
	for _, ev := range rec.events {
		if ev.Type == mknet.MessageCountRemoved {
			sawRemoved = true
		}
	}
	if !sawRemoved {
		t.Fatal("expected a MessageCountRemoved event after Expunge")
	}

	count, err := folder.GetMessageCount(context.Background())
	if err != nil || count != 0 {
		t.Fatalf("GetMessageCount after expunge = %d, %v", count, err)
	}
}

// TestDetectCourierThenKMailFallback is the S7-style scenario: a root
// carrying a dot-prefixed directory with a "maildirfolder" marker is
// detected as Courier; removing the marker and restructuring as a plain
// subdirectory falls back to KMail.
func TestDetectCourierThenKMailFallback(t *testing.T) {
	root := t.TempDir()

	courierDir := filepath.Join(root, ".Archive")
	if err := os.MkdirAll(courierDir, 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	marker, err := os.Create(filepath.Join(courierDir, markerFile))
	if err != nil {
		t.Fatalf("create marker: %v", err)
	}
	marker.Close()

	if _, ok := detect(root).(courierFormat); !ok {
		t.Fatalf("expected courierFormat detected, got %T", detect(root))
	}

	os.RemoveAll(root)
	if err := os.MkdirAll(root, 0o700); err != nil {
		t.Fatalf("recreate root: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(root, "Archive"), 0o700); err != nil {
		t.Fatalf("mkdir plain: %v", err)
	}

	if _, ok := detect(root).(kmailFormat); !ok {
		t.Fatalf("expected kmailFormat fallback, got %T", detect(root))
	}
}

// TestKMailFolderPathToFileSystemPath checks the nested ".A.directory"
// container scheme for a two-component path.
func TestKMailFolderPathToFileSystemPath(t *testing.T) {
	f := kmailFormat{root: "/srv/mail"}
	got := f.messageDir([]string{"A", "B"})
	want := filepath.Join("/srv/mail", ".A.directory", "B")
	if got != want {
		t.Fatalf("messageDir = %q, want %q", got, want)
	}
	got = f.messageDir([]string{"A"})
	want = filepath.Join("/srv/mail", "A")
	if got != want {
		t.Fatalf("messageDir (top-level) = %q, want %q", got, want)
	}
}

// TestCourierFolderPathToFileSystemPath checks the single dot-joined
// directory scheme.
func TestCourierFolderPathToFileSystemPath(t *testing.T) {
	f := courierFormat{root: "/srv/mail"}
	got := f.messageDir([]string{"A", "B", "C"})
	want := filepath.Join("/srv/mail", ".A.B.C")
	if got != want {
		t.Fatalf("messageDir = %q, want %q", got, want)
	}
}

func TestModifiedUTF7EscapesDotAndSlashAndAmpersand(t *testing.T) {
	for _, name := range []string{"Sent.Items", "a/b", "A&B", "café"} {
		enc := toModifiedUTF7(name)
		dec := fromModifiedUTF7(enc)
		if dec != name {
			t.Fatalf("round-trip %q -> %q -> %q", name, enc, dec)
		}
	}

	if got := toModifiedUTF7("a.b"); got != "a&Lg-b" {
		t.Fatalf("toModifiedUTF7(%q) = %q, want escaped dot", "a.b", got)
	}
}

func TestGetMessagesRejectsUIDSet(t *testing.T) {
	root := t.TempDir()
	store := newTestStore(t, root)

	folder, err := store.GetFolder(context.Background(), "INBOX")
	if err != nil {
		t.Fatalf("GetFolder: %v", err)
	}
	if err := folder.Create(context.Background(), mknet.CreateHoldsMessages); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := folder.Open(context.Background(), mknet.ReadOnly); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := folder.GetMessages(context.Background(), mknet.UID(1)); err == nil {
		t.Fatal("expected GetMessages to reject a UID set")
	}
}

func TestRenameFolderMirrorsPath(t *testing.T) {
	root := t.TempDir()
	store := newTestStore(t, root)

	a, err := store.GetFolder(context.Background(), "A")
	if err != nil {
		t.Fatalf("GetFolder A: %v", err)
	}
	if err := a.Create(context.Background(), mknet.CreateHoldsMessages); err != nil {
		t.Fatalf("Create: %v", err)
	}

	other, err := store.GetFolder(context.Background(), "A")
	if err != nil {
		t.Fatalf("GetFolder A (second handle): %v", err)
	}

	if err := a.Rename(context.Background(), "B"); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	if other.Path() != "B" {
		t.Fatalf("sibling handle path = %q, want mirrored to %q", other.Path(), "B")
	}
	if exists, _ := a.Exists(context.Background()); !exists {
		t.Fatal("renamed folder should exist at its new path")
	}
}
