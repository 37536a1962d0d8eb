package persist

import (
	"encoding/json"
	"fmt"

	"github.com/MrSnakeDoc/orbit/internal/domain"
)

// legacySnapshot carries the fields older layouts used.
//
//	v0: no version field, history under "history"
//	v1: a single "activeTab" object instead of the "tabs" list
type legacySnapshot struct {
	domain.Snapshot
	History   []domain.HistoryItem `json:"history,omitempty"`
	ActiveTab *domain.Tab          `json:"activeTab,omitempty"`
}

// Encode serializes snap at the current version. In incognito the tabs,
// the active pointer, the archive and the global history are left out.
func Encode(snap *domain.Snapshot) ([]byte, error) {
	if snap == nil {
		snap = domain.EmptySnapshot()
	}
	out := *snap
	out.Version = domain.SnapshotVersion
	if out.IsIncognito {
		out.Tabs = nil
		out.ActiveTabID = ""
		out.ArchivedTabs = nil
		out.GlobalHistory = nil
	}

	data, err := json.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

// Decode parses and migrates a stored snapshot. Malformed input yields an
// empty snapshot together with the parse error, so callers can log and
// carry on.
func Decode(data []byte) (*domain.Snapshot, error) {
	var raw legacySnapshot
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.EmptySnapshot(), fmt.Errorf("failed to parse snapshot: %w", err)
	}

	snap := raw.Snapshot
	switch {
	case snap.Version <= 0:
		if len(snap.GlobalHistory) == 0 {
			snap.GlobalHistory = raw.History
		}
		fallthrough
	case snap.Version == 1:
		if len(snap.Tabs) == 0 && raw.ActiveTab != nil {
			snap.Tabs = []*domain.Tab{raw.ActiveTab}
			if snap.ActiveTabID == "" {
				snap.ActiveTabID = raw.ActiveTab.ID
			}
		}
	}
	snap.Version = domain.SnapshotVersion

	sanitize(&snap)
	return &snap, nil
}

// sanitize drops nil entries and caps the history log.
func sanitize(snap *domain.Snapshot) {
	snap.Tabs = dropNil(snap.Tabs)
	snap.ArchivedTabs = dropNil(snap.ArchivedTabs)
	if len(snap.GlobalHistory) > domain.HistoryLimit {
		snap.GlobalHistory = snap.GlobalHistory[:domain.HistoryLimit]
	}
}

func dropNil(tabs []*domain.Tab) []*domain.Tab {
	out := tabs[:0]
	for _, t := range tabs {
		if t != nil && t.ID != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
