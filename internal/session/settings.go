package session

import (
	"github.com/MrSnakeDoc/orbit/internal/domain"
)

// SetIncognito toggles incognito mode for the session.
func (s *Store) SetIncognito(on bool) {
	s.mu.Lock()
	changed := s.incognito != on
	s.incognito = on
	s.mu.Unlock()
	if changed {
		s.notify(Change{Kind: ChangeSettings})
	}
}

// Incognito reports whether the session is in incognito mode.
func (s *Store) Incognito() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.incognito
}

// SetCustomBackdrop sets the new-tab backdrop reference.
func (s *Store) SetCustomBackdrop(backdrop string) {
	s.mu.Lock()
	s.backdrop = backdrop
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeSettings})
}

// CustomBackdrop returns the new-tab backdrop reference.
func (s *Store) CustomBackdrop() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backdrop
}

// SetCustomInstructions sets the user's free-text instructions for the model.
func (s *Store) SetCustomInstructions(text string) {
	s.mu.Lock()
	s.instructions = text
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeSettings})
}

// CustomInstructions returns the user's free-text instructions.
func (s *Store) CustomInstructions() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.instructions
}

// AddDownload records a file extracted from model output and returns its id.
func (s *Store) AddDownload(d domain.Download) string {
	if d.ID == "" {
		d.ID = s.newID()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now()
	}
	s.mu.Lock()
	s.downloads = append([]domain.Download{d}, s.downloads...)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeDownload})
	return d.ID
}

// RemoveDownload deletes a download entry.
func (s *Store) RemoveDownload(id string) bool {
	s.mu.Lock()
	idx := -1
	for i, d := range s.downloads {
		if d.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.downloads = append(s.downloads[:idx], s.downloads[idx+1:]...)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeDownload})
	return true
}

// Downloads returns the download entries, newest first.
func (s *Store) Downloads() []domain.Download {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Download(nil), s.downloads...)
}
