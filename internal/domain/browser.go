package domain

// BrowserState is the embedded-page navigation state owned by exactly one Tab.
//
// Invariant: 0 <= CurrentIndex < len(History) whenever History is non-empty.
type BrowserState struct {
	// URL is the currently loaded, normalized address.
	URL string `json:"url"`

	// DisplayURL is the raw address-bar text typed by the user.
	DisplayURL string `json:"displayUrl"`

	// History is the ordered list of URLs visited within this tab.
	History []string `json:"history"`

	// CurrentIndex points into History for back/forward.
	CurrentIndex int `json:"currentIndex"`

	// IsOpen reports whether the iframe overlay is showing.
	IsOpen bool `json:"isOpen"`

	// Key is bumped to force a fresh load on re-navigation to the same URL.
	Key int `json:"key"`
}

// Clone returns a deep copy of the state.
func (b BrowserState) Clone() BrowserState {
	b.History = append([]string(nil), b.History...)
	return b
}

// Push truncates forward history beyond CurrentIndex and appends url.
func (b *BrowserState) Push(url string) {
	if len(b.History) > 0 {
		b.History = b.History[:b.CurrentIndex+1]
	}
	b.History = append(b.History, url)
	b.CurrentIndex = len(b.History) - 1
	b.URL = url
	b.Key++
}

// CanGoBack reports whether a previous entry exists.
func (b *BrowserState) CanGoBack() bool {
	return len(b.History) > 0 && b.CurrentIndex > 0
}

// CanGoForward reports whether a next entry exists.
func (b *BrowserState) CanGoForward() bool {
	return len(b.History) > 0 && b.CurrentIndex < len(b.History)-1
}

// Step moves the history pointer by delta and loads that entry.
// It returns false when the move would leave the history bounds.
func (b *BrowserState) Step(delta int) bool {
	next := b.CurrentIndex + delta
	if len(b.History) == 0 || next < 0 || next >= len(b.History) {
		return false
	}
	b.CurrentIndex = next
	b.URL = b.History[next]
	b.DisplayURL = b.URL
	b.IsOpen = true
	b.Key++
	return true
}
