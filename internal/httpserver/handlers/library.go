package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/orbit/internal/domain"
	"github.com/MrSnakeDoc/orbit/internal/httpserver/deps"
)

// History lists entries newest first. ?q= searches title and url,
// ?type=visit|search filters, ?limit= caps the result.
func History(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r, "limit", 0)
		if err != nil {
			writeErr(w, err)
			return
		}
		kind := domain.HistoryType(r.URL.Query().Get("type"))
		if kind != "" && kind != domain.HistoryVisit && kind != domain.HistorySearch {
			writeError(w, http.StatusBadRequest, "type must be visit or search")
			return
		}

		idx := d.Browser.Index()
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			writeJSON(w, http.StatusOK, idx.History(kind, limit))
			return
		}
		items := make([]domain.HistoryItem, 0)
		for _, h := range idx.SearchHistory(q) {
			if kind != "" && h.Type != kind {
				continue
			}
			items = append(items, h)
			if limit > 0 && len(items) == limit {
				break
			}
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func DeleteHistoryItem(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		done(w, d.Browser.Index().DeleteHistoryItem(chi.URLParam(r, "id")), "history item")
	}
}

func ClearHistory(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d.Browser.Index().ClearHistory()
		w.WriteHeader(http.StatusNoContent)
	}
}

// Bookmarks lists bookmarks, ranked against ?q= when given.
func Bookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r, "limit", 0)
		if err != nil {
			writeErr(w, err)
			return
		}
		idx := d.Browser.Index()
		if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
			writeJSON(w, http.StatusOK, orEmpty(idx.SearchBookmarks(q, limit)))
			return
		}
		writeJSON(w, http.StatusOK, orEmpty(idx.GetAllBookmarks()))
	}
}

type bookmarkRequest struct {
	Title string `json:"title"`
	Query string `json:"query"`
}

func AddBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bookmarkRequest
		if err := decode(r, &req); err != nil {
			writeErr(w, err)
			return
		}
		req.Query = strings.TrimSpace(req.Query)
		if req.Query == "" {
			writeError(w, http.StatusBadRequest, "query required")
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			req.Title = req.Query
		}
		writeJSON(w, http.StatusCreated, d.Browser.Index().AddBookmark(req.Title, req.Query))
	}
}

func DeleteBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		done(w, d.Browser.Index().DeleteBookmark(chi.URLParam(r, "id")), "bookmark")
	}
}

func Groups(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, orEmpty(d.Browser.Store().Groups()))
	}
}

type groupRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func CreateGroup(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req groupRequest
		if err := decode(r, &req); err != nil {
			writeErr(w, err)
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			writeError(w, http.StatusBadRequest, "name required")
			return
		}
		writeJSON(w, http.StatusCreated, idResponse{ID: d.Browser.Store().CreateGroup(req.Name, req.Color)})
	}
}

func RenameGroup(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req groupRequest
		if err := decode(r, &req); err != nil {
			writeErr(w, err)
			return
		}
		done(w, d.Browser.Store().RenameGroup(chi.URLParam(r, "id"), req.Name), "group")
	}
}

// DeleteGroup removes a group. Its tabs fall back to uncategorized.
func DeleteGroup(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		done(w, d.Browser.Store().DeleteGroup(chi.URLParam(r, "id")), "group")
	}
}

func Downloads(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, orEmpty(d.Browser.Store().Downloads()))
	}
}

func DeleteDownload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		done(w, d.Browser.Store().RemoveDownload(chi.URLParam(r, "id")), "download")
	}
}

// orEmpty keeps empty lists encoding as [] instead of null.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
