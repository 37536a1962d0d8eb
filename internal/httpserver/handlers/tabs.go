package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/orbit/internal/domain"
	"github.com/MrSnakeDoc/orbit/internal/httpserver/deps"
)

// Session returns the live session, incognito tabs included.
func Session(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Browser.Snapshot())
	}
}

type tabsResponse struct {
	ActiveTabID string        `json:"activeTabId"`
	Active      *domain.Tab   `json:"active"`
	Archived    []*domain.Tab `json:"archived"`
}

func Tabs(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := d.Browser.Store()
		writeJSON(w, http.StatusOK, tabsResponse{
			ActiveTabID: s.ActiveTabID(),
			Active:      s.ActiveTab(),
			Archived:    s.ArchivedTabs(),
		})
	}
}

type idResponse struct {
	ID string `json:"id"`
}

// NewTab archives the active tab when it has content and opens a fresh one.
func NewTab(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, idResponse{ID: d.Browser.Store().ActivateNewTab()})
	}
}

func GetTab(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := d.Browser.Store().Tab(chi.URLParam(r, "id"))
		if !ok {
			writeError(w, http.StatusNotFound, "tab not found")
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

// RestoreTab moves an archived tab back to the active slot.
func RestoreTab(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		done(w, d.Browser.Store().RestoreTab(chi.URLParam(r, "id")), "archived tab")
	}
}

// DeleteTab removes an archived tab, cancelling its request if one is in
// flight. The active tab is never touched.
func DeleteTab(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !d.Browser.Store().IsArchived(id) {
			done(w, false, "archived tab")
			return
		}
		d.Browser.Pipeline().Cancel(id)
		done(w, d.Browser.Store().DeleteArchivedTab(id), "archived tab")
	}
}

type patchTabRequest struct {
	Title   *string `json:"title"`
	GroupID *string `json:"groupId"`
}

// PatchTab renames a tab or moves it to a group. An empty groupId
// moves it back to uncategorized.
func PatchTab(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req patchTabRequest
		if err := decode(r, &req); err != nil {
			writeErr(w, err)
			return
		}
		s := d.Browser.Store()
		id := chi.URLParam(r, "id")
		if _, ok := s.Tab(id); !ok {
			writeError(w, http.StatusNotFound, "tab not found")
			return
		}

		if req.Title != nil {
			ok := false
			if s.IsArchived(id) {
				ok = s.RenameArchivedTab(id, *req.Title)
			} else {
				ok = s.SetTabTitle(id, *req.Title)
			}
			if !ok {
				writeError(w, http.StatusBadRequest, "title must not be empty")
				return
			}
		}
		if req.GroupID != nil {
			if !s.IsArchived(id) {
				writeError(w, http.StatusConflict, "only archived tabs can be grouped")
				return
			}
			if !s.MoveTabToGroup(id, *req.GroupID) {
				writeError(w, http.StatusNotFound, "group not found")
				return
			}
		}

		t, _ := s.Tab(id)
		writeJSON(w, http.StatusOK, t)
	}
}

// CancelTab stops the request in flight in a tab.
func CancelTab(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		done(w, d.Browser.Pipeline().Cancel(chi.URLParam(r, "id")), "request in flight")
	}
}

func GetMessage(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, ok := d.Browser.Store().Message(chi.URLParam(r, "id"), chi.URLParam(r, "msgID"))
		if !ok {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

// Step runs one embedded-browser navigation on a tab: back, forward,
// reload or close.
func Step(d deps.Deps, action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := d.Browser.Store()
		id := chi.URLParam(r, "id")
		if _, ok := s.Tab(id); !ok {
			writeError(w, http.StatusNotFound, "tab not found")
			return
		}
		var ok bool
		switch action {
		case "back":
			ok = s.GoBack(id)
		case "forward":
			ok = s.GoForward(id)
		case "reload":
			ok = s.Reload(id)
		case "close":
			ok = s.CloseBrowser(id)
		default:
			writeError(w, http.StatusNotFound, "unknown action")
			return
		}
		if !ok {
			writeError(w, http.StatusConflict, "cannot "+action+" in this tab")
			return
		}
		t, _ := s.Tab(id)
		writeJSON(w, http.StatusOK, t.Browser)
	}
}
