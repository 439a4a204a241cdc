package ai

import (
	"context"
	"log/slog"
	"strings"
)

const (
	defaultConfidence = 0.5
	defaultCategory   = "Other"
	maxSearchResults  = 5
	degradedRunes     = 200
)

// Extraction is a best-effort perk draft read out of free text. Confidence 0
// means the model's answer could not be parsed.
type Extraction struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Provider    string  `json:"provider"`
	Value       string  `json:"value"`
	Category    string  `json:"category"`
	ExpiryDate  string  `json:"expiryDate"`
	Link        string  `json:"link"`
	Confidence  float64 `json:"confidence"`
}

// ExtractStructuredData asks the model to turn text into a perk draft. An
// unparseable answer yields a zero-confidence draft, never an error.
func (g *Gateway) ExtractStructuredData(ctx context.Context, text string) (Extraction, error) {
	raw, err := g.generate(ctx, extractionPrompt(text, g.now()), genParams{temperature: 0.1, maxTokens: 1000})
	if err != nil {
		return Extraction{}, err
	}
	return parseExtraction(raw, text), nil
}

func parseExtraction(raw, input string) Extraction {
	degraded := Extraction{Description: truncateRunes(input, degradedRunes)}

	obj, ok := objectSpan(raw)
	if !ok {
		slog.Warn("extraction response has no JSON object", "response", truncateRunes(raw, 200))
		return degraded
	}
	var r fields
	if err := decodeLoose(obj, &r); err != nil {
		slog.Warn("failed to unmarshal extraction", "error", err)
		return degraded
	}

	out := Extraction{
		Name:        r.str("name"),
		Description: r.str("description"),
		Provider:    r.str("provider"),
		Value:       r.str("value"),
		Category:    r.str("category"),
		ExpiryDate:  r.str("expiryDate"),
		Link:        r.str("link"),
		Confidence:  defaultConfidence,
	}
	if strings.TrimSpace(out.Category) == "" {
		out.Category = defaultCategory
	}
	if c, ok := r.num("confidence"); ok {
		out.Confidence = clamp01(c)
	}
	return out
}

// SearchResult is one offer found by SearchOffers.
type SearchResult struct {
	Title          string  `json:"title"`
	URL            string  `json:"url"`
	Snippet        string  `json:"snippet"`
	RelevanceScore float64 `json:"relevanceScore"`
}

// SearchOffers runs a grounded search for offers matching query. Finding
// nothing, or an unparseable answer, returns an empty slice.
func (g *Gateway) SearchOffers(ctx context.Context, query string) ([]SearchResult, error) {
	raw, err := g.generate(ctx, searchPrompt(query), genParams{temperature: 0.1, maxTokens: 1000, search: true})
	if err != nil {
		return nil, err
	}
	return parseSearchResults(raw), nil
}

func parseSearchResults(raw string) []SearchResult {
	results := []SearchResult{}
	arr, ok := arraySpan(raw)
	if !ok {
		return results
	}
	var parsed []any
	if err := decodeLoose(arr, &parsed); err != nil {
		slog.Warn("failed to unmarshal search results", "error", err)
		return results
	}
	for _, item := range parsed {
		if len(results) == maxSearchResults {
			break
		}
		r, err := asFields(item)
		if err != nil {
			slog.Warn("skipping search result", "error", err)
			continue
		}
		score := defaultConfidence
		if v, ok := r.num("relevanceScore"); ok {
			score = clamp01(v)
		}
		results = append(results, SearchResult{
			Title:          r.str("title"),
			URL:            r.str("url"),
			Snippet:        r.str("snippet"),
			RelevanceScore: score,
		})
	}
	return results
}
