package api

import (
	"net/http"

	"github.com/kalambet/techperks/internal/settings"
)

// SettingsResponse never carries the full API key.
type SettingsResponse struct {
	Settings   settings.Settings `json:"settings"`
	Configured bool              `json:"configured"`
	Model      settings.Model    `json:"model"`
}

func settingsResponse(s *settings.Store) SettingsResponse {
	cur := s.Get()
	return SettingsResponse{
		Settings:   cur.Masked(),
		Configured: cur.Configured(),
		Model:      cur.Model(),
	}
}

func handleGetSettings(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, settingsResponse(deps.Settings))
	}
}

func handleUpdateSettings(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch settings.Patch
		if !decodeBody(w, r, maxRequestBodySize, &patch) {
			return
		}
		if _, err := deps.Settings.Update(r.Context(), patch); err != nil {
			failure(w, err, "failed to update settings")
			return
		}
		writeJSON(w, http.StatusOK, settingsResponse(deps.Settings))
	}
}

func handleModels(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"models":   settings.Models(),
			"selected": deps.Settings.ResolveModel(),
		})
	}
}
