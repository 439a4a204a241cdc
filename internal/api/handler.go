package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/techperks/internal/ai"
	"github.com/kalambet/techperks/internal/ingest"
	"github.com/kalambet/techperks/internal/perk"
	"github.com/kalambet/techperks/internal/settings"
	"github.com/kalambet/techperks/internal/storage"
)

const (
	maxRequestBodySize = 1 << 20  // 1MB
	maxImportBodySize  = 10 << 20 // 10MB
)

// Gateway is the AI surface the handlers need. *ai.Gateway satisfies it.
type Gateway interface {
	IsConfigured() bool
	Model() settings.Model
	Chat(ctx context.Context, systemContext, message string) (string, error)
	ExtractStructuredData(ctx context.Context, text string) (ai.Extraction, error)
	SearchOffers(ctx context.Context, query string) ([]ai.SearchResult, error)
	GenerateSuggestions(ctx context.Context, perks []perk.Perk) ([]string, error)
	ValidatePerkStatus(ctx context.Context, p perk.Perk) (ai.StatusCheck, error)
	ValidateAll(ctx context.Context, perks []perk.Perk) ([]ai.StatusCheck, error)
	TestConnection(ctx context.Context) (string, error)
}

type AppDeps struct {
	Perks    *perk.Store
	Settings *settings.Store
	AI       Gateway
	History  *storage.Store
	Ingest   *ingest.Reader
	Token    string

	// AIRatePerMinute caps calls to /ai routes; 0 disables the limit.
	AIRatePerMinute int
}

// NewAppHandler returns the REST API. Everything except /health needs the
// bearer token.
func NewAppHandler(deps AppDeps) http.Handler {
	if deps.Ingest == nil {
		deps.Ingest = ingest.NewReader(nil, 0)
	}

	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/perks", handleListPerks(deps))
		r.Post("/perks", handleAddPerk(deps))
		r.Delete("/perks", handleClearPerks(deps))
		r.Get("/perks/{id}", handleGetPerk(deps))
		r.Patch("/perks/{id}", handleUpdatePerk(deps))
		r.Delete("/perks/{id}", handleRemovePerk(deps))
		r.Post("/perks/{id}/notes", handleAddNote(deps))
		r.Delete("/perks/{id}/notes/{index}", handleRemoveNote(deps))
		r.Put("/perks/{id}/progress", handleSetProgress(deps))
		r.Get("/dashboard", handleDashboard(deps))

		r.Get("/settings", handleGetSettings(deps))
		r.Patch("/settings", handleUpdateSettings(deps))
		r.Get("/models", handleModels(deps))

		r.Get("/export", handleExport(deps))
		r.Post("/import", handleImport(deps))
		r.Get("/demo-notice", handleGetDemoNotice(deps))
		r.Post("/demo-notice", handleDismissDemoNotice(deps))

		r.Route("/ai", func(r chi.Router) {
			r.Get("/history", handleChatHistory(deps))
			r.Delete("/history", handleClearChatHistory(deps))

			r.Group(func(r chi.Router) {
				r.Use(RateLimit(newLimiter(deps.AIRatePerMinute)))
				r.Post("/chat", handleChat(deps))
				r.Post("/extract", handleExtract(deps))
				r.Post("/search", handleSearch(deps))
				r.Post("/suggestions", handleSuggestions(deps))
				r.Post("/validate", handleValidate(deps))
				r.Post("/test", handleTestConnection(deps))
			})
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// decodeBody reads a JSON body into v, answering 400 itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

// failure maps a domain error onto a status and error type.
func failure(w http.ResponseWriter, err error, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, perk.ErrInvalid), errors.Is(err, settings.ErrInvalid),
		errors.Is(err, perk.ErrInvalidFormat), errors.Is(err, ingest.ErrUnsupportedURL),
		errors.Is(err, ingest.ErrNoText):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%s: %v", msg, err)
	case errors.Is(err, ai.ErrNotConfigured):
		httpError(w, http.StatusPreconditionFailed, "configuration_error", "%v", err)
	case errors.Is(err, ai.ErrRequestFailed):
		httpError(w, http.StatusBadGateway, "api_error", "%s: %v", msg, err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%s: %v", msg, err)
	}
}

func notFound(w http.ResponseWriter, what string) {
	httpError(w, http.StatusNotFound, "not_found", "%s not found", what)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
