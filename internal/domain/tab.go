package domain

import "time"

// Role identifies the author of a Message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Tab is one conversation thread or embedded-page container.
//
// A Tab exclusively owns its Messages and its BrowserState.
// It lives either as the active tab or inside the archive.
type Tab struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	// ID is an opaque unique token (uuid).
	ID string `json:"id"`

	// Title is derived from the first message or URL.
	// It may be replaced later by a generated title or a rename.
	Title string `json:"title"`

	// CreatedAt is the time the tab was allocated.
	CreatedAt time.Time `json:"createdAt"`

	// ─────────────────────────────
	// Content
	// ─────────────────────────────

	// Messages is append-only during the tab's life.
	Messages []*Message `json:"messages"`

	// Browser holds the embedded-page navigation state.
	Browser BrowserState `json:"browserState"`

	// ─────────────────────────────
	// Organisation
	// ─────────────────────────────

	// GroupID references a ThreadGroup. Empty means uncategorized.
	GroupID string `json:"groupId,omitempty"`
}

// IsEmpty reports whether the tab carries nothing worth archiving.
func (t *Tab) IsEmpty() bool {
	return len(t.Messages) == 0 && !t.Browser.IsOpen
}

// Message returns the message with the given id, or nil.
func (t *Tab) Message(id string) *Message {
	for _, m := range t.Messages {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// LastMessage returns the most recently appended message, or nil.
func (t *Tab) LastMessage() *Message {
	if len(t.Messages) == 0 {
		return nil
	}
	return t.Messages[len(t.Messages)-1]
}

// Clone returns a deep copy so readers never observe later mutations.
func (t *Tab) Clone() *Tab {
	if t == nil {
		return nil
	}
	c := *t
	c.Messages = make([]*Message, len(t.Messages))
	for i, m := range t.Messages {
		c.Messages[i] = m.Clone()
	}
	c.Browser = t.Browser.Clone()
	return &c
}

// ThreadGroup is a user-defined folder for archived tabs.
// Tabs reference a group by id; the group never owns them.
type ThreadGroup struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
