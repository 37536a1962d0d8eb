package domain

import "time"

// HistoryLimit caps the global history log. Oldest entries are evicted first.
const HistoryLimit = 500

// QueryScheme marks a navigable string as a model query.
// It must never reach a real network layer.
const QueryScheme = "query://"

// HistoryType distinguishes page visits from model searches.
type HistoryType string

const (
	HistoryVisit  HistoryType = "visit"
	HistorySearch HistoryType = "search"
)

// HistoryItem is an immutable log entry.
type HistoryItem struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	URL       string      `json:"url"`
	Timestamp time.Time   `json:"timestamp"`
	Type      HistoryType `json:"type"`
}

// Bookmark is a starred shortcut to a navigable target.
type Bookmark struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Query     string    `json:"query"`
	CreatedAt time.Time `json:"createdAt"`
}

// Download is a file payload extracted from a finalized model message.
type Download struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	MimeType  string    `json:"mimeType"`
	Data      string    `json:"data"`
	TabID     string    `json:"tabId,omitempty"`
	MessageID string    `json:"messageId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
