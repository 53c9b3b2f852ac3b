package reconcile

import (
	"sync"

	"github.com/boardsync/boardsync/internal/model"
)

// Snapshot is one immutable view of the notification set. Unread is kept in
// lockstep with the set: local mutations recompute it from the entries,
// while a poll replacement adopts the server's authoritative count (which
// may cover unread items outside the fetched window).
type Snapshot struct {
	Notifications []model.Notification
	Unread        int
	Version       uint64
}

// Store holds the canonical notification state. Every writer funnels through
// the single mutex so updates are applied atomically in completion order:
// the last write wins, with no version reconciliation beyond that.
type Store struct {
	mu   sync.Mutex
	snap Snapshot
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Snapshot returns a copy of the current view. The returned slice is owned
// by the caller.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.snap
	out.Notifications = make([]model.Notification, len(s.snap.Notifications))
	copy(out.Notifications, s.snap.Notifications)
	return out
}

// Unread returns the current unread count.
func (s *Store) Unread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Unread
}

// ReplaceFromPoll installs a full refresh: the fetched window replaces the
// view wholesale (no field-by-field merge) and the server's unread count is
// adopted as-is, since it is the source of truth.
func (s *Store) ReplaceFromPoll(list []model.Notification, unread int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]model.Notification, len(list))
	copy(next, list)
	s.snap.Notifications = next
	s.snap.Unread = unread
	s.snap.Version++
}

// MarkRead flips a single notification to read. The transition is one-way;
// marking an already-read or unknown entry is a no-op. Returns whether the
// flag actually changed.
func (s *Store) MarkRead(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.snap.Notifications {
		if s.snap.Notifications[i].ID != id {
			continue
		}
		if s.snap.Notifications[i].Read {
			return false
		}
		next := make([]model.Notification, len(s.snap.Notifications))
		copy(next, s.snap.Notifications)
		next[i].Read = true
		s.installLocked(next)
		return true
	}
	return false
}

// Upsert merges one push-delivered notification: replaced in place when the
// id is already present, otherwise prepended as the newest entry. Identity
// is unique per id; a duplicate push never creates a second entry.
func (s *Store) Upsert(n model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.snap.Notifications {
		if s.snap.Notifications[i].ID == n.ID {
			next := make([]model.Notification, len(s.snap.Notifications))
			copy(next, s.snap.Notifications)
			next[i] = n
			s.installLocked(next)
			return
		}
	}
	next := make([]model.Notification, 0, len(s.snap.Notifications)+1)
	next = append(next, n)
	next = append(next, s.snap.Notifications...)
	s.installLocked(next)
}

// installLocked swaps in a new set and recomputes the derived unread count
// from it. Recomputation (rather than incremental patching) keeps the count
// and the set from drifting apart. Callers must hold s.mu.
func (s *Store) installLocked(next []model.Notification) {
	unread := 0
	for i := range next {
		if !next[i].Read {
			unread++
		}
	}
	s.snap.Notifications = next
	s.snap.Unread = unread
	s.snap.Version++
}
