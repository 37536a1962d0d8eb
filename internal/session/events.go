package session

// ChangeKind classifies a store mutation.
type ChangeKind string

const (
	ChangeActive   ChangeKind = "active"
	ChangeTab      ChangeKind = "tab"
	ChangeMessage  ChangeKind = "message"
	ChangeChunk    ChangeKind = "chunk"
	ChangeFinished ChangeKind = "finished"
	ChangeBrowser  ChangeKind = "browser"
	ChangeArchive  ChangeKind = "archive"
	ChangeGroup    ChangeKind = "group"
	ChangeSettings ChangeKind = "settings"
	ChangeDownload ChangeKind = "download"
	ChangeReplaced ChangeKind = "replaced"
)

// Change describes one committed mutation.
type Change struct {
	Kind      ChangeKind `json:"kind"`
	TabID     string     `json:"tabId,omitempty"`
	MessageID string     `json:"messageId,omitempty"`

	// Delta is the appended text for ChangeChunk.
	Delta string `json:"delta,omitempty"`
}

// Subscribe registers fn to be called after every committed mutation.
// fn runs synchronously on the mutating goroutine, outside the store lock,
// and must not block. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Store) notify(c Change) {
	s.subsMu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}
