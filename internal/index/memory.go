package index

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/orbit/internal/domain"
)

// MemoryIndex holds the global history log and the bookmark list.
// Both live independently of tab lifecycle.
type MemoryIndex struct {
	mu           sync.RWMutex
	history      []domain.HistoryItem        // newest first, capped
	bookmarks    map[string]*domain.Bookmark // ID -> Bookmark
	order        []string                    // bookmark ids, creation order
	lastModified time.Time

	now      func() time.Time
	newID    func() string
	onChange func()
}

// NewMemoryIndex creates an empty index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		bookmarks: make(map[string]*domain.Bookmark),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// OnChange registers a callback run after every mutation, outside the lock.
func (idx *MemoryIndex) OnChange(fn func()) {
	idx.mu.Lock()
	idx.onChange = fn
	idx.mu.Unlock()
}

func (idx *MemoryIndex) changed() {
	idx.mu.RLock()
	fn := idx.onChange
	idx.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// ─────────────────────────────────────────────────────────────────
// History
// ─────────────────────────────────────────────────────────────────

// RecordVisit logs a page visit with its final URL
func (idx *MemoryIndex) RecordVisit(title, url string) domain.HistoryItem {
	if title == "" {
		title = url
	}
	return idx.record(domain.HistoryItem{Title: title, URL: url, Type: domain.HistoryVisit})
}

// RecordSearch logs a model query under the query:// pseudo URL
func (idx *MemoryIndex) RecordSearch(query string) domain.HistoryItem {
	return idx.record(domain.HistoryItem{
		Title: query,
		URL:   domain.QueryScheme + query,
		Type:  domain.HistorySearch,
	})
}

func (idx *MemoryIndex) record(item domain.HistoryItem) domain.HistoryItem {
	idx.mu.Lock()
	item.ID = idx.newID()
	item.Timestamp = idx.now()
	idx.history = append([]domain.HistoryItem{item}, idx.history...)
	if len(idx.history) > domain.HistoryLimit {
		idx.history = idx.history[:domain.HistoryLimit]
	}
	idx.lastModified = item.Timestamp
	idx.mu.Unlock()

	idx.changed()
	return item
}

// History returns entries newest first. An empty kind returns every type;
// limit <= 0 returns everything.
func (idx *MemoryIndex) History(kind domain.HistoryType, limit int) []domain.HistoryItem {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]domain.HistoryItem, 0, len(idx.history))
	for _, h := range idx.history {
		if kind != "" && h.Type != kind {
			continue
		}
		out = append(out, h)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// SearchHistory returns entries whose title or url contains q, newest first.
func (idx *MemoryIndex) SearchHistory(q string) []domain.HistoryItem {
	q = strings.ToLower(strings.TrimSpace(q))
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []domain.HistoryItem
	for _, h := range idx.history {
		if q == "" || strings.Contains(strings.ToLower(h.Title), q) || strings.Contains(strings.ToLower(h.URL), q) {
			out = append(out, h)
		}
	}
	return out
}

// DeleteHistoryItem removes a single history entry
func (idx *MemoryIndex) DeleteHistoryItem(id string) bool {
	idx.mu.Lock()
	found := false
	for i, h := range idx.history {
		if h.ID == id {
			idx.history = append(idx.history[:i], idx.history[i+1:]...)
			found = true
			break
		}
	}
	if found {
		idx.lastModified = idx.now()
	}
	idx.mu.Unlock()

	if found {
		idx.changed()
	}
	return found
}

// ClearHistory drops the whole history log
func (idx *MemoryIndex) ClearHistory() {
	idx.mu.Lock()
	idx.history = nil
	idx.lastModified = idx.now()
	idx.mu.Unlock()

	idx.changed()
}

// HistoryCount returns the number of history entries
func (idx *MemoryIndex) HistoryCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.history)
}

// ─────────────────────────────────────────────────────────────────
// Bookmark methods
// ─────────────────────────────────────────────────────────────────

// AddBookmark stars a navigable target. A bookmark with the same query
// is updated in place.
func (idx *MemoryIndex) AddBookmark(title, query string) domain.Bookmark {
	idx.mu.Lock()
	for _, id := range idx.order {
		if b := idx.bookmarks[id]; b.Query == query {
			if title != "" {
				b.Title = title
			}
			out := *b
			idx.lastModified = idx.now()
			idx.mu.Unlock()
			idx.changed()
			return out
		}
	}
	if title == "" {
		title = query
	}
	b := &domain.Bookmark{ID: idx.newID(), Title: title, Query: query, CreatedAt: idx.now()}
	idx.bookmarks[b.ID] = b
	idx.order = append(idx.order, b.ID)
	idx.lastModified = b.CreatedAt
	idx.mu.Unlock()

	idx.changed()
	return *b
}

// GetBookmark retrieves a bookmark by ID
func (idx *MemoryIndex) GetBookmark(id string) (domain.Bookmark, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	b, ok := idx.bookmarks[id]
	if !ok {
		return domain.Bookmark{}, false
	}
	return *b, true
}

// GetAllBookmarks returns all bookmarks in creation order
func (idx *MemoryIndex) GetAllBookmarks() []domain.Bookmark {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]domain.Bookmark, 0, len(idx.order))
	for _, id := range idx.order {
		out = append(out, *idx.bookmarks[id])
	}
	return out
}

// DeleteBookmark removes a bookmark from the index
func (idx *MemoryIndex) DeleteBookmark(id string) bool {
	idx.mu.Lock()
	if _, ok := idx.bookmarks[id]; !ok {
		idx.mu.Unlock()
		return false
	}
	delete(idx.bookmarks, id)
	order := idx.order[:0]
	for _, o := range idx.order {
		if o != id {
			order = append(order, o)
		}
	}
	idx.order = order
	idx.lastModified = idx.now()
	idx.mu.Unlock()

	idx.changed()
	return true
}

// SearchBookmarks ranks bookmarks against q, best first
func (idx *MemoryIndex) SearchBookmarks(q string, limit int) []domain.Bookmark {
	all := idx.GetAllBookmarks()
	ptrs := make([]*domain.Bookmark, len(all))
	for i := range all {
		ptrs[i] = &all[i]
	}

	var out []domain.Bookmark
	for _, c := range domain.RankBookmarkCandidates(q, ptrs) {
		out = append(out, *c.Bookmark)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// BookmarkCount returns the number of bookmarks in the index
func (idx *MemoryIndex) BookmarkCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.bookmarks)
}

// ─────────────────────────────────────────────────────────────────
// Snapshot
// ─────────────────────────────────────────────────────────────────

// Replace swaps history and bookmarks for the given ones. History is
// expected newest first and is capped.
func (idx *MemoryIndex) Replace(history []domain.HistoryItem, bookmarks []domain.Bookmark) {
	idx.mu.Lock()
	idx.history = append([]domain.HistoryItem(nil), history...)
	if len(idx.history) > domain.HistoryLimit {
		idx.history = idx.history[:domain.HistoryLimit]
	}
	idx.bookmarks = make(map[string]*domain.Bookmark, len(bookmarks))
	idx.order = idx.order[:0]
	for _, b := range bookmarks {
		if b.ID == "" {
			continue
		}
		if _, dup := idx.bookmarks[b.ID]; dup {
			continue
		}
		b := b
		idx.bookmarks[b.ID] = &b
		idx.order = append(idx.order, b.ID)
	}
	idx.lastModified = idx.now()
	idx.mu.Unlock()

	idx.changed()
}

// Export copies history and bookmarks into snap.
func (idx *MemoryIndex) Export(snap *domain.Snapshot) {
	snap.GlobalHistory = idx.History("", 0)
	snap.Bookmarks = idx.GetAllBookmarks()
}

// GetLastModified returns the time of the last mutation
func (idx *MemoryIndex) GetLastModified() time.Time {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.lastModified
}
