package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/orbit/internal/httpserver/deps"
)

type componentStatus struct {
	OK     bool     `json:"ok"`
	Mode   string   `json:"mode,omitempty"`
	Count  *int     `json:"count,omitempty"`
	Items  []string `json:"items,omitempty"`
	Impact string   `json:"impact,omitempty"`

	Details map[string]int `json:"details,omitempty"`
	Error  string   `json:"error,omitempty"`
}

type infraResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components"`
}

// Infra reports the state of every component the session depends on.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]componentStatus{
			"storage":   checkStorage(r, d),
			"providers": checkProviders(d),
			"catalogue": checkCatalogue(d),
			"session":   checkSession(d),
		}
		writeJSON(w, http.StatusOK, infraResponse{
			Status:     determineStatus(components),
			Components: components,
		})
	}
}

func determineStatus(components map[string]componentStatus) string {
	// Without a provider nothing can be answered
	if p, ok := components["providers"]; ok && !p.OK {
		return "critical"
	}
	// Storage down still serves requests, but nothing survives a restart
	if s, ok := components["storage"]; ok && !s.OK {
		return "degraded"
	}
	return "operational"
}

func checkStorage(r *http.Request, d deps.Deps) componentStatus {
	if err := ping(r.Context(), d); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   d.Storage,
			Impact: "sessions-not-persisted",
			Error:  err.Error(),
		}
	}
	return componentStatus{OK: true, Mode: d.Storage}
}

func checkProviders(d deps.Deps) componentStatus {
	n := len(d.Providers)
	if n == 0 {
		return componentStatus{OK: false, Count: &n, Impact: "requests-fail-missing-credentials"}
	}
	return componentStatus{OK: true, Count: &n, Items: d.Providers}
}

func checkCatalogue(d deps.Deps) componentStatus {
	n := len(d.Browser.Registry().Extensions())
	if d.ExtensionsFile == "" {
		return componentStatus{OK: true, Mode: "disabled", Count: &n}
	}
	return componentStatus{OK: true, Mode: "file", Count: &n, Items: []string{d.ExtensionsFile}}
}

func checkSession(d deps.Deps) componentStatus {
	s, idx := d.Browser.Store(), d.Browser.Index()
	mode := "normal"
	if s.Incognito() {
		mode = "incognito"
	}
	return componentStatus{
		OK:    true,
		Mode:  mode,
		Items: []string{d.Browser.Registry().ActiveID()},
		Details: map[string]int{
			"archived_tabs":        len(s.ArchivedTabs()),
			"history":              idx.HistoryCount(),
			"bookmarks":            idx.BookmarkCount(),
			"active_tab_streaming": boolInt(d.Browser.Pipeline().InFlight(s.ActiveTabID())),
		},
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
