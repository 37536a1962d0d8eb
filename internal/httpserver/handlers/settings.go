package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/orbit/internal/httpserver/deps"
	"github.com/MrSnakeDoc/orbit/internal/logger"
)

type settingsResponse struct {
	Incognito          bool   `json:"incognito"`
	CustomBackdrop     string `json:"customBackdrop"`
	CustomInstructions string `json:"customInstructions"`
}

type settingsRequest struct {
	Incognito          *bool   `json:"incognito"`
	CustomBackdrop     *string `json:"customBackdrop"`
	CustomInstructions *string `json:"customInstructions"`
}

func currentSettings(d deps.Deps) settingsResponse {
	s := d.Browser.Store()
	return settingsResponse{
		Incognito:          s.Incognito(),
		CustomBackdrop:     s.CustomBackdrop(),
		CustomInstructions: s.CustomInstructions(),
	}
}

func Settings(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, currentSettings(d))
	}
}

// UpdateSettings patches session settings. Incognito is applied first so
// the other fields land in the session that stays live.
func UpdateSettings(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req settingsRequest
		if err := decode(r, &req); err != nil {
			writeErr(w, err)
			return
		}
		if req.Incognito != nil {
			d.Browser.SetIncognito(*req.Incognito)
			d.Logger.Info("incognito toggled", logger.Bool("on", *req.Incognito))
		}
		s := d.Browser.Store()
		if req.CustomBackdrop != nil {
			s.SetCustomBackdrop(*req.CustomBackdrop)
		}
		if req.CustomInstructions != nil {
			s.SetCustomInstructions(*req.CustomInstructions)
		}
		writeJSON(w, http.StatusOK, currentSettings(d))
	}
}
