package session

import (
	"github.com/MrSnakeDoc/orbit/internal/domain"
)

// Export copies the store's part of the session into a snapshot.
// History and bookmarks are owned by the index and filled in by the caller.
func (s *Store) Export() *domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := domain.EmptySnapshot()
	if t, ok := s.tabs[s.activeID]; ok {
		snap.Tabs = []*domain.Tab{t.Clone()}
		snap.ActiveTabID = t.ID
	}
	for _, id := range s.archive {
		if t, ok := s.tabs[id]; ok {
			snap.ArchivedTabs = append(snap.ArchivedTabs, t.Clone())
		}
	}
	for _, id := range s.groupOrder {
		snap.Groups = append(snap.Groups, *s.groups[id])
	}
	snap.Downloads = append([]domain.Download(nil), s.downloads...)
	snap.CustomBackdrop = s.backdrop
	snap.CustomInstructions = s.instructions
	snap.IsIncognito = s.incognito
	return snap
}

// Replace swaps the whole store state for the snapshot's. Nothing is merged.
//
// Tabs left streaming by an earlier process are frozen, empty archived tabs
// and duplicate ids are dropped, and a fresh active tab is created when the
// snapshot has none.
func (s *Store) Replace(snap *domain.Snapshot) {
	if snap == nil {
		snap = domain.EmptySnapshot()
	}

	s.mu.Lock()
	s.tabs = make(map[string]*domain.Tab)
	s.archive = nil
	s.activeID = ""

	for _, t := range snap.Tabs {
		if t == nil || t.ID == "" {
			continue
		}
		s.tabs[t.ID] = adopt(t)
	}
	if _, ok := s.tabs[snap.ActiveTabID]; ok {
		s.activeID = snap.ActiveTabID
	} else if len(snap.Tabs) > 0 && snap.Tabs[0] != nil {
		s.activeID = snap.Tabs[0].ID
	}
	// extra active tabs from a malformed snapshot go to the archive
	for id := range s.tabs {
		if id != s.activeID && len(s.tabs[id].Messages) > 0 {
			s.archive = append(s.archive, id)
		} else if id != s.activeID {
			delete(s.tabs, id)
		}
	}
	for _, t := range snap.ArchivedTabs {
		if t == nil || t.ID == "" || len(t.Messages) == 0 {
			continue
		}
		if _, dup := s.tabs[t.ID]; dup {
			continue
		}
		s.tabs[t.ID] = adopt(t)
		s.archive = append(s.archive, t.ID)
	}
	if s.activeID == "" {
		t := s.CreateTab()
		s.tabs[t.ID] = t
		s.activeID = t.ID
	}

	s.groups = make(map[string]*domain.ThreadGroup)
	s.groupOrder = nil
	for _, g := range snap.Groups {
		if g.ID == "" {
			continue
		}
		if _, dup := s.groups[g.ID]; dup {
			continue
		}
		g := g
		s.groups[g.ID] = &g
		s.groupOrder = append(s.groupOrder, g.ID)
	}
	for _, t := range s.tabs {
		if _, ok := s.groups[t.GroupID]; t.GroupID != "" && !ok {
			t.GroupID = ""
		}
	}

	s.downloads = append([]domain.Download(nil), snap.Downloads...)
	s.backdrop = snap.CustomBackdrop
	s.instructions = snap.CustomInstructions
	s.incognito = snap.IsIncognito
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeReplaced})
}

func adopt(t *domain.Tab) *domain.Tab {
	c := t.Clone()
	if c.Messages == nil {
		c.Messages = []*domain.Message{}
	}
	for _, m := range c.Messages {
		m.IsStreaming = false
	}
	b := &c.Browser
	if len(b.History) == 0 {
		b.CurrentIndex = 0
	} else if b.CurrentIndex < 0 || b.CurrentIndex >= len(b.History) {
		b.CurrentIndex = len(b.History) - 1
	}
	return c
}
