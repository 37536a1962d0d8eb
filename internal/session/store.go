// Package session holds the in-memory model of open and archived tabs.
//
// Every operation is a synchronous, atomic mutation guarded by the store
// lock. Invalid ids are ignored rather than reported, because callers race
// with user-driven tab closure.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/orbit/internal/domain"
)

// DedupWindow is the interval in which an identical user message is dropped.
const DedupWindow = 500 * time.Millisecond

// Store is the single source of truth for which tabs exist and which is active.
type Store struct {
	mu       sync.RWMutex
	tabs     map[string]*domain.Tab // active + archived, by id
	activeID string
	archive  []string // archived tab ids, most recent first

	groups     map[string]*domain.ThreadGroup
	groupOrder []string

	downloads    []domain.Download
	backdrop     string
	instructions string
	incognito    bool

	now   func() time.Time
	newID func() string

	subsMu  sync.Mutex
	subs    map[int]func(Change)
	nextSub int
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDs overrides uuid generation (tests).
func WithIDs(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// New creates a store holding a single empty active tab.
func New(opts ...Option) *Store {
	s := &Store{
		tabs:   make(map[string]*domain.Tab),
		groups: make(map[string]*domain.ThreadGroup),
		now:    time.Now,
		newID:  uuid.NewString,
		subs:   make(map[int]func(Change)),
	}
	for _, opt := range opts {
		opt(s)
	}
	t := s.CreateTab()
	s.tabs[t.ID] = t
	s.activeID = t.ID
	return s
}

// CreateTab allocates a fresh tab with no messages and a default BrowserState.
// The tab is not registered or activated; the caller decides.
func (s *Store) CreateTab() *domain.Tab {
	return &domain.Tab{
		ID:        s.newID(),
		Title:     domain.DefaultTitle,
		CreatedAt: s.now(),
		Messages:  []*domain.Message{},
	}
}

// ActivateNewTab replaces the active tab with a new empty one. The previous
// active tab is moved to the head of the archive when it holds a message,
// and dropped otherwise. It returns the new active tab id.
func (s *Store) ActivateNewTab() string {
	s.mu.Lock()
	s.retireActiveLocked()
	t := s.CreateTab()
	s.tabs[t.ID] = t
	s.activeID = t.ID
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeActive, TabID: t.ID})
	return t.ID
}

// RestoreTab moves an archived tab back to active, archiving the current
// active tab first when it holds a message.
func (s *Store) RestoreTab(id string) bool {
	s.mu.Lock()
	if !s.inArchiveLocked(id) {
		s.mu.Unlock()
		return false
	}
	s.removeFromArchiveLocked(id)
	s.retireActiveLocked()
	s.activeID = id
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeActive, TabID: id})
	return true
}

// retireActiveLocked archives or discards the active tab.
func (s *Store) retireActiveLocked() {
	cur, ok := s.tabs[s.activeID]
	s.activeID = ""
	if !ok {
		return
	}
	if len(cur.Messages) == 0 {
		delete(s.tabs, cur.ID)
		return
	}
	s.removeFromArchiveLocked(cur.ID)
	s.archive = append([]string{cur.ID}, s.archive...)
}

func (s *Store) inArchiveLocked(id string) bool {
	for _, a := range s.archive {
		if a == id {
			return true
		}
	}
	return false
}

func (s *Store) removeFromArchiveLocked(id string) {
	out := s.archive[:0]
	for _, a := range s.archive {
		if a != id {
			out = append(out, a)
		}
	}
	s.archive = out
}

// ─────────────────────────────────────────────────────────────────
// Reads (all return deep copies)
// ─────────────────────────────────────────────────────────────────

// ActiveTabID returns the id of the active tab.
func (s *Store) ActiveTabID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// ActiveTab returns a copy of the active tab.
func (s *Store) ActiveTab() *domain.Tab {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tabs[s.activeID].Clone()
}

// Tab returns a copy of any known tab, active or archived.
func (s *Store) Tab(id string) (*domain.Tab, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tabs[id]
	return t.Clone(), ok
}

// ArchivedTabs returns copies of archived tabs, most recent first.
func (s *Store) ArchivedTabs() []*domain.Tab {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Tab, 0, len(s.archive))
	for _, id := range s.archive {
		if t, ok := s.tabs[id]; ok {
			out = append(out, t.Clone())
		}
	}
	return out
}

// IsArchived reports whether the tab id is in the archive.
func (s *Store) IsArchived(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inArchiveLocked(id)
}
