package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/orbit/internal/domain"
	"github.com/MrSnakeDoc/orbit/internal/httpserver/deps"
	"github.com/MrSnakeDoc/orbit/internal/logger"
)

type profilesResponse struct {
	ActiveID string               `json:"activeId"`
	Profiles []domain.UserProfile `json:"profiles"`
}

func Profiles(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg := d.Browser.Registry()
		writeJSON(w, http.StatusOK, profilesResponse{
			ActiveID: reg.ActiveID(),
			Profiles: reg.Profiles(),
		})
	}
}

type createProfileRequest struct {
	Name string `json:"name"`
}

func CreateProfile(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createProfileRequest
		if err := decode(r, &req); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, d.Browser.Registry().CreateProfile(req.Name))
	}
}

type updateProfileRequest struct {
	Name                *string            `json:"name"`
	Theme               *string            `json:"theme"`
	EnabledExtensions   *[]string          `json:"enabledExtensions"`
	EnabledSidebarApps  *[]string          `json:"enabledSidebarApps"`
	CustomShortcuts     *[]domain.Shortcut `json:"customShortcuts"`
	PreferredModel      *string            `json:"preferredModel"`
	PreferredImageModel *string            `json:"preferredImageModel"`
}

func (u updateProfileRequest) apply(p *domain.UserProfile) {
	if u.Name != nil && *u.Name != "" {
		p.Name = *u.Name
	}
	if u.Theme != nil {
		p.Theme = *u.Theme
	}
	if u.EnabledExtensions != nil {
		p.EnabledExtensions = *u.EnabledExtensions
	}
	if u.EnabledSidebarApps != nil {
		p.EnabledSidebarApps = *u.EnabledSidebarApps
	}
	if u.CustomShortcuts != nil {
		p.CustomShortcuts = *u.CustomShortcuts
	}
	if u.PreferredModel != nil {
		p.PreferredModel = *u.PreferredModel
	}
	if u.PreferredImageModel != nil {
		p.PreferredImageModel = *u.PreferredImageModel
	}
}

// UpdateProfile patches profile fields. Unknown extension ids are dropped.
func UpdateProfile(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateProfileRequest
		if err := decode(r, &req); err != nil {
			writeErr(w, err)
			return
		}
		p, err := d.Browser.Registry().Update(chi.URLParam(r, "id"), req.apply)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func DeleteProfile(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := d.Browser.DeleteProfile(r.Context(), id); err != nil {
			writeErr(w, err)
			return
		}
		d.Logger.Info("profile deleted", logger.String("profile_id", id))
		w.WriteHeader(http.StatusNoContent)
	}
}

// ActivateProfile saves the current session and loads the target's.
func ActivateProfile(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := d.Browser.SwitchProfile(r.Context(), id); err != nil {
			d.Logger.Warn("profile switch failed", logger.String("profile_id", id), logger.Error(err))
			writeErr(w, err)
			return
		}
		p, _ := d.Browser.Registry().Profile(id)
		writeJSON(w, http.StatusOK, p)
	}
}

// ToggleExtension enables (PUT) or disables (DELETE) an extension for a profile.
func ToggleExtension(d deps.Deps, on bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg := d.Browser.Registry()
		id, ext := chi.URLParam(r, "id"), chi.URLParam(r, "extID")
		var err error
		if on {
			err = reg.EnableExtension(id, ext)
		} else {
			err = reg.DisableExtension(id, ext)
		}
		if err != nil {
			writeErr(w, err)
			return
		}
		p, _ := reg.Profile(id)
		writeJSON(w, http.StatusOK, p)
	}
}

type extensionResponse struct {
	domain.Extension
	Catalogue bool `json:"catalogue"`
}

func Extensions(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg := d.Browser.Registry()
		exts := reg.Extensions()
		out := make([]extensionResponse, 0, len(exts))
		for _, e := range exts {
			out = append(out, extensionResponse{Extension: e, Catalogue: reg.IsCatalogue(e.ID)})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// SaveExtension creates a user extension, or replaces the one named by
// the URL id.
func SaveExtension(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ext domain.Extension
		if err := decode(r, &ext); err != nil {
			writeErr(w, err)
			return
		}
		status := http.StatusCreated
		if id := chi.URLParam(r, "id"); id != "" {
			ext.ID = id
			status = http.StatusOK
		}
		saved, err := d.Browser.Registry().SaveExtension(ext)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, status, extensionResponse{Extension: saved})
	}
}

// DeleteExtension removes a user extension from the registry and every profile.
func DeleteExtension(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Browser.Registry().DeleteExtension(chi.URLParam(r, "id")); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
