package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/techperks/internal/ai"
	"github.com/kalambet/techperks/internal/ingest"
	"github.com/kalambet/techperks/internal/perk"
	"github.com/kalambet/techperks/internal/storage"
)

type ChatResponse struct {
	Reply string `json:"reply"`
	Model string `json:"model"`
}

func handleChat(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Message string `json:"message"`
		}
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}

		asked := time.Now().UTC()
		reply, err := deps.AI.Chat(r.Context(), ai.PortfolioContext(deps.Perks.List()), req.Message)
		if err != nil {
			failure(w, err, "chat failed")
			return
		}
		model := deps.AI.Model().ID

		saveChat(r.Context(), deps, storage.ChatMessage{CreatedAt: asked, Role: storage.RoleUser, Content: req.Message})
		saveChat(r.Context(), deps, storage.ChatMessage{Role: storage.RoleAssistant, Content: reply, Model: model})

		writeJSON(w, http.StatusOK, ChatResponse{Reply: reply, Model: model})
	}
}

// saveChat appends to the transcript. A failed write is logged, not returned:
// the user already has the reply.
func saveChat(ctx context.Context, deps AppDeps, m storage.ChatMessage) {
	if deps.History == nil {
		return
	}
	m.ID = uuid.NewString()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if err := deps.History.SaveChatMessage(ctx, m); err != nil {
		slog.Warn("failed to save chat message", "role", m.Role, "error", err)
	}
}

func handleChatHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 50, 500)

		messages := []storage.ChatMessage{}
		if deps.History != nil {
			got, err := deps.History.RecentChatMessages(r.Context(), limit)
			if err != nil {
				failure(w, err, "failed to read chat history")
				return
			}
			messages = append(messages, got...)
		}
		writeJSON(w, http.StatusOK, messages)
	}
}

func handleClearChatHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var n int64
		if deps.History != nil {
			var err error
			if n, err = deps.History.ClearChatMessages(r.Context()); err != nil {
				failure(w, err, "failed to clear chat history")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
	}
}

type ExtractRequest struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

type ExtractResponse struct {
	ai.Extraction
	Source string `json:"source"`
}

func handleExtract(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExtractRequest
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		if strings.TrimSpace(req.Text) == "" && strings.TrimSpace(req.URL) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "one of text or url is required")
			return
		}
		// Fail before fetching anything.
		if !deps.AI.IsConfigured() {
			failure(w, ai.ErrNotConfigured, "extraction failed")
			return
		}

		source := "text"
		if strings.TrimSpace(req.Text) == "" {
			source = "url"
		}
		text, err := deps.Ingest.Text(r.Context(), ingest.Source{Text: req.Text, URL: req.URL})
		if err != nil {
			if source == "url" && !errors.Is(err, ingest.ErrUnsupportedURL) && !errors.Is(err, ingest.ErrNoText) {
				httpError(w, http.StatusBadGateway, "api_error", "failed to read %s: %v", req.URL, err)
				return
			}
			failure(w, err, "failed to read %s", source)
			return
		}

		extraction, err := deps.AI.ExtractStructuredData(r.Context(), text)
		if err != nil {
			failure(w, err, "extraction failed")
			return
		}
		writeJSON(w, http.StatusOK, ExtractResponse{Extraction: extraction, Source: source})
	}
}

func handleSearch(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query string `json:"query"`
		}
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		if strings.TrimSpace(req.Query) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
			return
		}

		results, err := deps.AI.SearchOffers(r.Context(), req.Query)
		if err != nil {
			failure(w, err, "search failed")
			return
		}
		writeJSON(w, http.StatusOK, results)
	}
}

func handleSuggestions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		suggestions, err := deps.AI.GenerateSuggestions(r.Context(), deps.Perks.List())
		if err != nil {
			failure(w, err, "suggestions failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{"suggestions": suggestions})
	}
}

type ValidateRequest struct {
	// ID limits the check to one perk; empty checks all of them.
	ID string `json:"id"`
	// Apply writes findings back: an invalid offer becomes expired and any
	// updated fields are merged.
	Apply bool `json:"apply"`
}

type ValidateResponse struct {
	Checks  []ai.StatusCheck `json:"checks"`
	Updated []string         `json:"updated"`
}

func handleValidate(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ValidateRequest
		if r.ContentLength != 0 && !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}

		var checks []ai.StatusCheck
		if req.ID != "" {
			p, ok := deps.Perks.Get(req.ID)
			if !ok {
				notFound(w, "perk")
				return
			}
			check, err := deps.AI.ValidatePerkStatus(r.Context(), p)
			if err != nil {
				failure(w, err, "validation failed")
				return
			}
			checks = []ai.StatusCheck{check}
		} else {
			var err error
			if checks, err = deps.AI.ValidateAll(r.Context(), deps.Perks.List()); err != nil {
				failure(w, err, "validation failed")
				return
			}
		}

		resp := ValidateResponse{Checks: checks, Updated: []string{}}
		if resp.Checks == nil {
			resp.Checks = []ai.StatusCheck{}
		}
		if req.Apply {
			for _, c := range checks {
				patch := checkPatch(c)
				if patch.Empty() {
					continue
				}
				if _, found, err := deps.Perks.Update(r.Context(), c.PerkID, patch); err != nil {
					slog.Warn("failed to apply status check", "perk", c.PerkID, "error", err)
				} else if found {
					resp.Updated = append(resp.Updated, c.PerkID)
				}
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// checkPatch turns a status check into a perk update. Unparseable dates in
// the model's answer are ignored.
func checkPatch(c ai.StatusCheck) perk.Patch {
	var patch perk.Patch
	if !c.IsValid {
		expired := perk.StatusExpired
		patch.Status = &expired
	}
	if info := c.UpdatedInfo; info != nil {
		if info.Value != "" {
			patch.Value = &info.Value
		}
		if info.Description != "" {
			patch.Description = &info.Description
		}
		if info.Link != "" {
			patch.Link = &info.Link
		}
		if d, err := perk.ParseDate(info.ExpiryDate); err == nil && !d.IsZero() {
			patch.ExpiryDate = &d
		}
	}
	return patch
}

func handleTestConnection(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply, err := deps.AI.TestConnection(r.Context())
		if err != nil {
			failure(w, err, "connection test failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"message": reply,
			"model":   deps.AI.Model().ID,
		})
	}
}
