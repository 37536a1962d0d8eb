package session

import (
	"github.com/MrSnakeDoc/orbit/internal/domain"
)

// DeleteArchivedTab destroys an archived tab. The active tab is never affected.
func (s *Store) DeleteArchivedTab(id string) bool {
	s.mu.Lock()
	if !s.inArchiveLocked(id) {
		s.mu.Unlock()
		return false
	}
	s.removeFromArchiveLocked(id)
	delete(s.tabs, id)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeArchive, TabID: id})
	return true
}

// RenameArchivedTab sets the title of an archived tab.
func (s *Store) RenameArchivedTab(id, title string) bool {
	s.mu.Lock()
	if !s.inArchiveLocked(id) || title == "" {
		s.mu.Unlock()
		return false
	}
	s.tabs[id].Title = title
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeArchive, TabID: id})
	return true
}

// MoveTabToGroup files an archived tab under a group. An empty groupID
// moves it back to uncategorized. Unknown groups are ignored.
func (s *Store) MoveTabToGroup(id, groupID string) bool {
	s.mu.Lock()
	if !s.inArchiveLocked(id) {
		s.mu.Unlock()
		return false
	}
	if _, ok := s.groups[groupID]; groupID != "" && !ok {
		s.mu.Unlock()
		return false
	}
	s.tabs[id].GroupID = groupID
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeArchive, TabID: id})
	return true
}

// ─────────────────────────────────────────────────────────────────
// Thread groups
// ─────────────────────────────────────────────────────────────────

// CreateGroup registers a new thread group and returns its id.
func (s *Store) CreateGroup(name, color string) string {
	g := &domain.ThreadGroup{
		ID:        s.newID(),
		Name:      name,
		Color:     color,
		CreatedAt: s.now(),
	}
	s.mu.Lock()
	s.groups[g.ID] = g
	s.groupOrder = append(s.groupOrder, g.ID)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeGroup})
	return g.ID
}

// RenameGroup changes the name of a group.
func (s *Store) RenameGroup(id, name string) bool {
	s.mu.Lock()
	g, ok := s.groups[id]
	if !ok || name == "" {
		s.mu.Unlock()
		return false
	}
	g.Name = name
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeGroup})
	return true
}

// DeleteGroup removes a group. Its tabs fall back to uncategorized.
func (s *Store) DeleteGroup(id string) bool {
	s.mu.Lock()
	if _, ok := s.groups[id]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.groups, id)
	order := s.groupOrder[:0]
	for _, g := range s.groupOrder {
		if g != id {
			order = append(order, g)
		}
	}
	s.groupOrder = order
	for _, t := range s.tabs {
		if t.GroupID == id {
			t.GroupID = ""
		}
	}
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeGroup})
	return true
}

// Groups returns the thread groups in creation order.
func (s *Store) Groups() []domain.ThreadGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ThreadGroup, 0, len(s.groupOrder))
	for _, id := range s.groupOrder {
		out = append(out, *s.groups[id])
	}
	return out
}
