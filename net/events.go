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

import "sync"

// MessageCountEventType is messageCountEvent's type tag
// (original_source/src/messaging/events.hpp's messageCountEvent::Type:
// TYPE_ADDED / TYPE_REMOVED).
type MessageCountEventType int

const (
	MessageCountAdded MessageCountEventType = iota
	MessageCountRemoved
)

// MessageCountEvent notifies listeners that messages were added (new mail,
// APPEND) or removed (expunge) from a folder.
type MessageCountEvent struct {
	Folder Folder
	Type   MessageCountEventType
	Nums   []int // sequence numbers affected, ascending
}

// MessageChangedEvent notifies listeners that flags changed on existing
// messages (original_source's messageChangedEvent, trimmed to the single
// TYPE_FLAGS case — spec.md has no other mutable message attribute).
type MessageChangedEvent struct {
	Folder Folder
	Nums   []int
}

// FolderEventType is folderEvent's type tag.
type FolderEventType int

const (
	FolderCreated FolderEventType = iota
	FolderDeleted
	FolderRenamed
)

// FolderEvent notifies listeners of folder lifecycle changes raised by one
// session that every other session sharing the same store should observe
// (spec.md §5's mirror-propagation rule).
type FolderEvent struct {
	Type    FolderEventType
	Path    string
	NewPath string // only set for FolderRenamed
}

// MessageCountListener, MessageChangedListener and FolderListener are the
// three listener interfaces original_source/src/messaging/events.hpp
// defines, invoked synchronously on the goroutine that detected the change
// (spec.md §4.9: "event dispatch is synchronous with the operation that
// caused it").
type MessageCountListener interface {
	MessageCountChanged(ev MessageCountEvent)
}

type MessageChangedListener interface {
	MessageChanged(ev MessageChangedEvent)
}

type FolderListener interface {
	FolderChanged(ev FolderEvent)
}

// EventSource is embedded by folders and stores that need to fan events out
// to an arbitrary number of listeners. Safe for concurrent registration and
// dispatch.
type EventSource struct {
	mu               sync.RWMutex
	countListeners   []MessageCountListener
	changedListeners []MessageChangedListener
	folderListeners  []FolderListener
}

func (s *EventSource) AddMessageCountListener(l MessageCountListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countListeners = append(s.countListeners, l)
}

func (s *EventSource) AddMessageChangedListener(l MessageChangedListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changedListeners = append(s.changedListeners, l)
}

func (s *EventSource) AddFolderListener(l FolderListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folderListeners = append(s.folderListeners, l)
}

func (s *EventSource) DispatchMessageCount(ev MessageCountEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.countListeners {
		l.MessageCountChanged(ev)
	}
}

func (s *EventSource) DispatchMessageChanged(ev MessageChangedEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.changedListeners {
		l.MessageChanged(ev)
	}
}

func (s *EventSource) DispatchFolder(ev FolderEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.folderListeners {
		l.FolderChanged(ev)
	}
}
