package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/techperks/internal/perk"
)

const (
	noSuggestionsFallback  = "Review your expiring perks and prioritize high-value ones"
	badSuggestionsFallback = "Review your portfolio for optimization opportunities"
	statusUnparsedMessage  = "Could not validate status"
	statusFailedMessage    = "Validation failed"
	statusCheckedMessage   = "Status checked"
)

// GenerateSuggestions asks for optimization advice over the whole portfolio.
// It always returns at least one suggestion unless the request itself fails.
func (g *Gateway) GenerateSuggestions(ctx context.Context, perks []perk.Perk) ([]string, error) {
	prompt, err := suggestionsPrompt(perks)
	if err != nil {
		return nil, err
	}
	raw, err := g.generate(ctx, prompt, genParams{temperature: 0.7, maxTokens: 1500})
	if err != nil {
		return nil, err
	}
	return parseSuggestions(raw), nil
}

func parseSuggestions(raw string) []string {
	arr, ok := arraySpan(raw)
	if !ok {
		return []string{noSuggestionsFallback}
	}
	var items []any
	if err := json.Unmarshal([]byte(arr), &items); err != nil {
		slog.Warn("failed to unmarshal suggestions", "error", err)
		return []string{badSuggestionsFallback}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		switch v := item.(type) {
		case string:
			s = v
		case nil:
			continue
		default:
			b, _ := json.Marshal(v)
			s = string(b)
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return []string{badSuggestionsFallback}
	}
	return out
}

// UpdatedInfo carries fields the model believes have changed for a perk.
type UpdatedInfo struct {
	Value       string `json:"value,omitempty"`
	ExpiryDate  string `json:"expiryDate,omitempty"`
	Description string `json:"description,omitempty"`
	Link        string `json:"link,omitempty"`
}

// StatusCheck is the outcome of checking whether an offer is still live.
type StatusCheck struct {
	PerkID      string       `json:"perkId"`
	IsValid     bool         `json:"isValid"`
	Message     string       `json:"message"`
	UpdatedInfo *UpdatedInfo `json:"updatedInfo,omitempty"`
}

// ValidatePerkStatus runs a grounded search to see whether p is still offered.
// Only an explicit false from the model marks the perk invalid.
func (g *Gateway) ValidatePerkStatus(ctx context.Context, p perk.Perk) (StatusCheck, error) {
	raw, err := g.generate(ctx, validationPrompt(p), genParams{temperature: 0.1, maxTokens: 1000, search: true})
	if err != nil {
		return StatusCheck{}, err
	}
	check := parseStatusCheck(raw)
	check.PerkID = p.ID
	return check, nil
}

func parseStatusCheck(raw string) StatusCheck {
	unparsed := StatusCheck{IsValid: true, Message: statusUnparsedMessage}
	obj, ok := objectSpan(raw)
	if !ok {
		return unparsed
	}
	var r fields
	if err := decodeLoose(obj, &r); err != nil {
		slog.Warn("failed to unmarshal status check", "error", err)
		return unparsed
	}
	valid, ok := r.boolean("isValid")
	check := StatusCheck{
		IsValid: !ok || valid,
		Message: r.str("message"),
	}
	if check.Message == "" {
		check.Message = statusCheckedMessage
	}
	if u := r.object("updatedInfo"); u != nil {
		info := UpdatedInfo{
			Value:       u.str("value"),
			ExpiryDate:  u.str("expiryDate"),
			Description: u.str("description"),
			Link:        u.str("link"),
		}
		if info != (UpdatedInfo{}) {
			check.UpdatedInfo = &info
		}
	}
	return check
}

// ValidateAll checks every perk with bounded concurrency. A failed check is
// reported in its entry rather than aborting the batch; results keep the
// input order.
func (g *Gateway) ValidateAll(ctx context.Context, perks []perk.Perk) ([]StatusCheck, error) {
	if !g.settings.IsConfigured() {
		return nil, ErrNotConfigured
	}

	results := make([]StatusCheck, len(perks))
	var eg errgroup.Group
	eg.SetLimit(g.validateN)
	for i, p := range perks {
		eg.Go(func() error {
			check, err := g.ValidatePerkStatus(ctx, p)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				slog.Warn("perk status check failed", "perk", p.ID, "error", err)
				check = StatusCheck{PerkID: p.ID, IsValid: true, Message: statusFailedMessage}
			}
			results[i] = check
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("validating perks: %w", err)
	}
	return results, nil
}
