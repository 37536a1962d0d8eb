package session

import (
	"time"

	"github.com/MrSnakeDoc/orbit/internal/domain"
)

// AppendUserMessage appends a user turn to the tab. The first message of a
// tab also sets its title. Repeating the latest user turn within
// DedupWindow is a no-op, even when its response was already appended;
// ok is false and id is the existing message.
func (s *Store) AppendUserMessage(tabID, content string, attachments []domain.Attachment) (id string, ok bool) {
	s.mu.Lock()
	t, found := s.tabs[tabID]
	if !found {
		s.mu.Unlock()
		return "", false
	}
	now := s.now()
	if last := lastUserMessage(t); last != nil && isDuplicate(last, content, attachments, now) {
		s.mu.Unlock()
		return last.ID, false
	}

	msg := &domain.Message{
		ID:          s.newID(),
		Role:        domain.RoleUser,
		Content:     content,
		Timestamp:   now,
		Attachments: attachments,
	}
	if len(t.Messages) == 0 {
		t.Title = domain.DeriveTitle(content)
	}
	t.Messages = append(t.Messages, msg)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeMessage, TabID: tabID, MessageID: msg.ID})
	return msg.ID, true
}

func lastUserMessage(t *domain.Tab) *domain.Message {
	for i := len(t.Messages) - 1; i >= 0; i-- {
		if t.Messages[i].Role == domain.RoleUser {
			return t.Messages[i]
		}
	}
	return nil
}

func isDuplicate(last *domain.Message, content string, attachments []domain.Attachment, now time.Time) bool {
	if last.Role != domain.RoleUser || last.Content != content {
		return false
	}
	if len(last.Attachments) != len(attachments) {
		return false
	}
	for i := range attachments {
		if last.Attachments[i].Name != attachments[i].Name || len(last.Attachments[i].Data) != len(attachments[i].Data) {
			return false
		}
	}
	return now.Sub(last.Timestamp) < DedupWindow
}

// AppendPlaceholderResponse appends an empty streaming model message and
// returns its id. Any earlier message of the tab still streaming is frozen
// first, so at most one message per tab streams at a time.
func (s *Store) AppendPlaceholderResponse(tabID string) (string, bool) {
	s.mu.Lock()
	t, found := s.tabs[tabID]
	if !found {
		s.mu.Unlock()
		return "", false
	}
	for _, m := range t.Messages {
		m.IsStreaming = false
	}
	msg := &domain.Message{
		ID:          s.newID(),
		Role:        domain.RoleModel,
		Timestamp:   s.now(),
		IsStreaming: true,
	}
	t.Messages = append(t.Messages, msg)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeMessage, TabID: tabID, MessageID: msg.ID})
	return msg.ID, true
}

// ApplyStreamChunk appends delta to a streaming message and merges sources.
// Sources only ever grow. Chunks for a frozen or unknown message are dropped.
func (s *Store) ApplyStreamChunk(tabID, msgID, delta string, sources []domain.Source) bool {
	s.mu.Lock()
	m := s.streamingLocked(tabID, msgID)
	if m == nil {
		s.mu.Unlock()
		return false
	}
	m.Content += delta
	m.Sources = domain.MergeSources(m.Sources, sources)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeChunk, TabID: tabID, MessageID: msgID, Delta: delta})
	return true
}

// FinalizeStream freezes a streaming message.
func (s *Store) FinalizeStream(tabID, msgID string) bool {
	return s.finish(tabID, msgID, func(m *domain.Message) {})
}

// FailStream freezes a streaming message and appends a visible error
// annotation. Partial output is kept.
func (s *Store) FailStream(tabID, msgID, errText string) bool {
	return s.finish(tabID, msgID, func(m *domain.Message) {
		m.Content = AnnotateError(m.Content, errText)
		m.IsError = true
	})
}

// CompleteMedia attaches generated media and freezes the message.
func (s *Store) CompleteMedia(tabID, msgID string, media domain.GeneratedMedia) bool {
	return s.finish(tabID, msgID, func(m *domain.Message) {
		m.GeneratedMedia = &media
	})
}

func (s *Store) finish(tabID, msgID string, apply func(*domain.Message)) bool {
	s.mu.Lock()
	m := s.streamingLocked(tabID, msgID)
	if m == nil {
		s.mu.Unlock()
		return false
	}
	apply(m)
	m.IsStreaming = false
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeFinished, TabID: tabID, MessageID: msgID})
	return true
}

func (s *Store) streamingLocked(tabID, msgID string) *domain.Message {
	t, ok := s.tabs[tabID]
	if !ok {
		return nil
	}
	m := t.Message(msgID)
	if m == nil || !m.IsStreaming {
		return nil
	}
	return m
}

// AnnotateError appends the inline error marker to content.
func AnnotateError(content, errText string) string {
	note := "*[Error: " + errText + "]*"
	if content == "" {
		return note
	}
	return content + "\n\n" + note
}

// Message returns a copy of one message.
func (s *Store) Message(tabID, msgID string) (*domain.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tabs[tabID]
	if !ok {
		return nil, false
	}
	m := t.Message(msgID)
	return m.Clone(), m != nil
}

// SetTabTitle replaces the title of any known tab.
func (s *Store) SetTabTitle(tabID, title string) bool {
	s.mu.Lock()
	t, ok := s.tabs[tabID]
	if !ok || title == "" {
		s.mu.Unlock()
		return false
	}
	t.Title = title
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeTab, TabID: tabID})
	return true
}
