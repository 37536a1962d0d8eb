package session

import (
	"net/url"
)

// Navigate records a resolved navigation on the tab's BrowserState:
// forward history is truncated, finalURL appended, and the load key bumped.
// open is false when the page must open in a new top-level context instead.
func (s *Store) Navigate(tabID, displayURL, finalURL string, open bool) bool {
	s.mu.Lock()
	t, ok := s.tabs[tabID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	t.Browser.Push(finalURL)
	t.Browser.DisplayURL = displayURL
	t.Browser.IsOpen = open
	if len(t.Messages) == 0 {
		if u, err := url.Parse(finalURL); err == nil && u.Hostname() != "" {
			t.Title = u.Hostname()
		}
	}
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeBrowser, TabID: tabID})
	return true
}

// GoBack loads the previous history entry of the tab.
func (s *Store) GoBack(tabID string) bool { return s.step(tabID, -1) }

// GoForward loads the next history entry of the tab.
func (s *Store) GoForward(tabID string) bool { return s.step(tabID, 1) }

func (s *Store) step(tabID string, delta int) bool {
	s.mu.Lock()
	t, ok := s.tabs[tabID]
	if !ok || !t.Browser.Step(delta) {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeBrowser, TabID: tabID})
	return true
}

// Reload bumps the load key so the current page is fetched again.
func (s *Store) Reload(tabID string) bool {
	s.mu.Lock()
	t, ok := s.tabs[tabID]
	if !ok || t.Browser.URL == "" {
		s.mu.Unlock()
		return false
	}
	t.Browser.Key++
	t.Browser.IsOpen = true
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeBrowser, TabID: tabID})
	return true
}

// CloseBrowser hides the iframe overlay, keeping history.
func (s *Store) CloseBrowser(tabID string) bool {
	s.mu.Lock()
	t, ok := s.tabs[tabID]
	if !ok || !t.Browser.IsOpen {
		s.mu.Unlock()
		return false
	}
	t.Browser.IsOpen = false
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeBrowser, TabID: tabID})
	return true
}
