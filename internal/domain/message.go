package domain

import "time"

// Message is one turn in a Tab's thread.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// Attachments are binary payloads sent along with a user turn.
	Attachments []Attachment `json:"attachments,omitempty"`

	// Sources are citations attached progressively while streaming.
	// They only ever grow.
	Sources []Source `json:"sources,omitempty"`

	// GeneratedMedia is the terminal image/video result of a media request.
	GeneratedMedia *GeneratedMedia `json:"generatedMedia,omitempty"`

	// IsStreaming is true from creation until the pipeline signals completion or error.
	// Content is frozen once it turns false.
	IsStreaming bool `json:"isStreaming"`

	// IsError flags a message whose stream ended in failure.
	IsError bool `json:"isError,omitempty"`
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	if m.Attachments != nil {
		c.Attachments = make([]Attachment, len(m.Attachments))
		for i, a := range m.Attachments {
			c.Attachments[i] = a
			c.Attachments[i].Data = append([]byte(nil), a.Data...)
		}
	}
	if m.Sources != nil {
		c.Sources = append([]Source(nil), m.Sources...)
	}
	if m.GeneratedMedia != nil {
		gm := *m.GeneratedMedia
		c.GeneratedMedia = &gm
	}
	return &c
}

// Attachment describes a binary payload attached to a message.
type Attachment struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// Source is a citation returned by the model.
type Source struct {
	URI   string `json:"uri"`
	Title string `json:"title,omitempty"`
}

// Key is the unique citation key used for deduplication.
func (s Source) Key() string {
	if s.URI != "" {
		return s.URI
	}
	return s.Title
}

// MediaType distinguishes generated media kinds.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// GeneratedMedia is an image or video produced by a generation provider.
type GeneratedMedia struct {
	Type     MediaType `json:"type"`
	URI      string    `json:"uri"`
	MimeType string    `json:"mimeType"`
}

// MergeSources appends the sources of next not already present in current.
// Order of first appearance is kept and nothing is ever removed.
func MergeSources(current, next []Source) []Source {
	if len(next) == 0 {
		return current
	}
	seen := make(map[string]bool, len(current)+len(next))
	for _, s := range current {
		seen[s.Key()] = true
	}
	merged := current
	for _, s := range next {
		k := s.Key()
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		merged = append(merged, s)
	}
	return merged
}
