package domain

// SnapshotVersion is the current persisted snapshot layout.
const SnapshotVersion = 2

// Snapshot is the per-profile session state written to durable storage.
type Snapshot struct {
	Version int `json:"version"`

	// Tabs holds the active tab set (size 0 or 1).
	Tabs        []*Tab `json:"tabs,omitempty"`
	ActiveTabID string `json:"activeTabId,omitempty"`

	// ArchivedTabs is ordered most recently archived first.
	ArchivedTabs []*Tab `json:"archivedTabs,omitempty"`

	Groups        []ThreadGroup `json:"groups,omitempty"`
	Downloads     []Download    `json:"downloads,omitempty"`
	GlobalHistory []HistoryItem `json:"globalHistory,omitempty"`
	Bookmarks     []Bookmark    `json:"bookmarks,omitempty"`

	CustomBackdrop     string `json:"customBackdrop,omitempty"`
	CustomInstructions string `json:"customInstructions,omitempty"`
	IsIncognito        bool   `json:"isIncognito"`
}

// EmptySnapshot is the known-good default used when nothing usable is stored.
func EmptySnapshot() *Snapshot {
	return &Snapshot{Version: SnapshotVersion}
}
