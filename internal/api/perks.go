package api

import (
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/techperks/internal/perk"
)

func handleListPerks(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		perks := deps.Perks.List()

		if s := r.URL.Query().Get("status"); s != "" {
			status := perk.Status(s)
			if !slices.Contains(perk.Statuses, status) {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown status %q", s)
				return
			}
			perks = slices.DeleteFunc(perks, func(p perk.Perk) bool { return p.Status != status })
		}

		writeJSON(w, http.StatusOK, perks)
	}
}

func handleAddPerk(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in perk.Input
		if !decodeBody(w, r, maxRequestBodySize, &in) {
			return
		}

		p, err := deps.Perks.Add(r.Context(), in)
		if err != nil {
			failure(w, err, "failed to add perk")
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func handleGetPerk(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := deps.Perks.Get(chi.URLParam(r, "id"))
		if !ok {
			notFound(w, "perk")
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleUpdatePerk(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch perk.Patch
		if !decodeBody(w, r, maxRequestBodySize, &patch) {
			return
		}

		p, found, err := deps.Perks.Update(r.Context(), chi.URLParam(r, "id"), patch)
		respondMutation(w, p, found, err, "failed to update perk")
	}
}

func handleRemovePerk(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		removed, err := deps.Perks.Remove(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			failure(w, err, "failed to remove perk")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": removed})
	}
}

func handleClearPerks(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Perks.ClearAll(r.Context()); err != nil {
			failure(w, err, "failed to clear perks")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	}
}

func handleAddNote(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Note string `json:"note"`
		}
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}

		p, found, err := deps.Perks.AddNote(r.Context(), chi.URLParam(r, "id"), req.Note)
		respondMutation(w, p, found, err, "failed to add note")
	}
}

func handleRemoveNote(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "note index must be a number")
			return
		}

		p, found, err := deps.Perks.RemoveNote(r.Context(), chi.URLParam(r, "id"), index)
		respondMutation(w, p, found, err, "failed to remove note")
	}
}

func handleSetProgress(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var progress perk.Progress
		if !decodeBody(w, r, maxRequestBodySize, &progress) {
			return
		}

		p, found, err := deps.Perks.SetProgress(r.Context(), chi.URLParam(r, "id"), progress)
		respondMutation(w, p, found, err, "failed to set progress")
	}
}

func respondMutation(w http.ResponseWriter, p perk.Perk, found bool, err error, msg string) {
	if err != nil {
		failure(w, err, "%s", msg)
		return
	}
	if !found {
		notFound(w, "perk")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func handleDashboard(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Perks.Dashboard())
	}
}
