package ai

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kalambet/techperks/internal/perk"
	"github.com/kalambet/techperks/internal/settings"
)

var ctx = context.Background()

type stubSettings struct {
	s settings.Settings
}

func (st stubSettings) Get() settings.Settings { return st.s }

func (st stubSettings) IsConfigured() bool { return strings.TrimSpace(st.s.APIKey) != "" }

func (st stubSettings) ResolveModel() settings.Model {
	if m, ok := settings.LookupModel(st.s.SelectedModel); ok {
		return m
	}
	m, _ := settings.LookupModel(settings.DefaultModelID)
	return m
}

func configured() stubSettings {
	s := settings.Defaults()
	s.APIKey = "test-key"
	return stubSettings{s: s}
}

// geminiRequest is the subset of the generateContent body the tests inspect.
type geminiRequest struct {
	Contents []struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
	Tools []map[string]any `json:"tools"`
}

func (r geminiRequest) prompt() string {
	var b strings.Builder
	for _, c := range r.Contents {
		for _, p := range c.Parts {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

type fakeGemini struct {
	mu       sync.Mutex
	requests []geminiRequest
	paths    []string
	keys     []string
	calls    atomic.Int32
}

func (f *fakeGemini) last(t *testing.T) (geminiRequest, string) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("no request reached the fake API")
	}
	return f.requests[len(f.requests)-1], f.paths[len(f.paths)-1]
}

// newFakeGemini serves generateContent with reply(prompt) as the model text.
func newFakeGemini(t *testing.T, reply func(prompt string) string) (*fakeGemini, *httptest.Server) {
	t.Helper()
	f := &fakeGemini{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.paths = append(f.paths, r.URL.Path)
		f.keys = append(f.keys, r.Header.Get("x-goog-api-key"))
		f.mu.Unlock()

		writeCandidate(w, reply(req.prompt()))
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func writeCandidate(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": text}},
				},
				"finishReason": "STOP",
			},
		},
	})
}

func newTestGateway(src SettingsSource, srv *httptest.Server) *Gateway {
	return New(src,
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithClock(func() time.Time { return time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC) }),
	)
}

func closeTo(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestUnconfiguredGatewayMakesNoRequest(t *testing.T) {
	f, srv := newFakeGemini(t, func(string) string { return "hi" })
	g := newTestGateway(stubSettings{s: settings.Defaults()}, srv)

	if _, err := g.Chat(ctx, "ctx", "hello"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Chat err = %v, want ErrNotConfigured", err)
	}
	if _, err := g.ExtractStructuredData(ctx, "text"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Extract err = %v, want ErrNotConfigured", err)
	}
	if _, err := g.SearchOffers(ctx, "q"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Search err = %v, want ErrNotConfigured", err)
	}
	if _, err := g.GenerateSuggestions(ctx, nil); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Suggestions err = %v, want ErrNotConfigured", err)
	}
	if _, err := g.ValidateAll(ctx, []perk.Perk{{ID: "a"}}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("ValidateAll err = %v, want ErrNotConfigured", err)
	}
	if _, err := g.TestConnection(ctx); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("TestConnection err = %v, want ErrNotConfigured", err)
	}
	if n := f.calls.Load(); n != 0 {
		t.Errorf("fake API received %d requests, want 0", n)
	}
}

func TestChat_SendsContextModelAndSettings(t *testing.T) {
	f, srv := newFakeGemini(t, func(string) string { return "## Try the credits" })
	src := configured()
	src.s.SelectedModel = "gemini-2.5-pro"
	src.s.Temperature = 0.3
	src.s.MaxTokens = 256
	g := newTestGateway(src, srv)

	got, err := g.Chat(ctx, "SYSTEM", "what should I learn?")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != "## Try the credits" {
		t.Errorf("reply = %q", got)
	}

	req, path := f.last(t)
	if req.prompt() != "SYSTEM\n\nUser: what should I learn?" {
		t.Errorf("prompt = %q", req.prompt())
	}
	if !strings.Contains(path, "gemini-2.5-pro:generateContent") {
		t.Errorf("path = %q, want selected model", path)
	}
	if !closeTo(req.GenerationConfig.Temperature, 0.3) {
		t.Errorf("temperature = %v, want 0.3", req.GenerationConfig.Temperature)
	}
	if req.GenerationConfig.MaxOutputTokens != 256 {
		t.Errorf("maxOutputTokens = %d, want 256", req.GenerationConfig.MaxOutputTokens)
	}
	if len(req.Tools) != 0 {
		t.Errorf("chat should not declare tools, got %v", req.Tools)
	}
}

// rotatingSettings returns the next state on every Get, as if a settings
// update landed between reads.
type rotatingSettings struct {
	states []settings.Settings
	reads  atomic.Int32
}

func (r *rotatingSettings) Get() settings.Settings {
	n := int(r.reads.Add(1)) - 1
	return r.states[n%len(r.states)]
}

func (r *rotatingSettings) IsConfigured() bool { return r.Get().Configured() }

func (r *rotatingSettings) ResolveModel() settings.Model { return r.Get().Model() }

func TestChat_UsesOneSettingsSnapshot(t *testing.T) {
	f, srv := newFakeGemini(t, func(string) string { return "ok" })
	src := &rotatingSettings{states: []settings.Settings{
		{APIKey: "key-a", SelectedModel: "gemini-2.5-pro", Temperature: 0.3, MaxTokens: 256},
		{APIKey: "key-b", SelectedModel: "gemini-2.0-flash", Temperature: 0.9, MaxTokens: 999},
	}}
	g := newTestGateway(src, srv)

	if _, err := g.Chat(ctx, "", "hi"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if n := src.reads.Load(); n != 1 {
		t.Errorf("settings read %d times, want 1", n)
	}
	req, path := f.last(t)
	if !strings.Contains(path, "gemini-2.5-pro:generateContent") {
		t.Errorf("path = %q, want first snapshot's model", path)
	}
	if !closeTo(req.GenerationConfig.Temperature, 0.3) || req.GenerationConfig.MaxOutputTokens != 256 {
		t.Errorf("generation config = %+v, want first snapshot's values", req.GenerationConfig)
	}
}

func TestChat_UnknownModelFallsBackToDefault(t *testing.T) {
	f, srv := newFakeGemini(t, func(string) string { return "ok" })
	src := configured()
	src.s.SelectedModel = "no-such-model"
	g := newTestGateway(src, srv)

	if _, err := g.Chat(ctx, "", "hi"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	_, path := f.last(t)
	if !strings.Contains(path, settings.DefaultModelID+":generateContent") {
		t.Errorf("path = %q, want default model", path)
	}
}

func TestChat_EmptyReplyUsesFallback(t *testing.T) {
	_, srv := newFakeGemini(t, func(string) string { return "  " })
	g := newTestGateway(configured(), srv)

	got, err := g.Chat(ctx, "", "hi")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != chatFallback {
		t.Errorf("reply = %q, want fallback", got)
	}
}

func TestUpstreamErrorIsRequestFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`))
	}))
	defer srv.Close()
	g := newTestGateway(configured(), srv)

	_, err := g.Chat(ctx, "", "hi")
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("err = %v, want ErrRequestFailed", err)
	}
	if !strings.Contains(err.Error(), "API key not valid") {
		t.Errorf("err = %q, want upstream message", err)
	}

	if _, err := g.ExtractStructuredData(ctx, "text"); !errors.Is(err, ErrRequestFailed) {
		t.Errorf("Extract err = %v, want ErrRequestFailed", err)
	}
}

func TestExtractStructuredData(t *testing.T) {
	f, srv := newFakeGemini(t, func(string) string {
		return "Here you go:\n```json\n" +
			`{"name":"Fly.io credits","description":"Hosting credits","provider":"Fly.io","value":"$250","expiryDate":"2025-12-31","link":"https://fly.io","confidence":1.7}` +
			"\n```"
	})
	g := newTestGateway(configured(), srv)

	got, err := g.ExtractStructuredData(ctx, "Fly.io gives $250")
	if err != nil {
		t.Fatalf("ExtractStructuredData: %v", err)
	}
	if got.Name != "Fly.io credits" || got.Provider != "Fly.io" || got.ExpiryDate != "2025-12-31" {
		t.Errorf("extraction = %+v", got)
	}
	if got.Category != "Other" {
		t.Errorf("Category = %q, want Other when missing", got.Category)
	}
	if got.Confidence != 1 {
		t.Errorf("Confidence = %v, want clamped to 1", got.Confidence)
	}

	req, _ := f.last(t)
	if !closeTo(req.GenerationConfig.Temperature, 0.1) || req.GenerationConfig.MaxOutputTokens != 1000 {
		t.Errorf("generation config = %+v", req.GenerationConfig)
	}
	if !strings.Contains(req.prompt(), "2025-06-10") {
		t.Error("prompt should carry today's date")
	}
}

func TestParseExtraction(t *testing.T) {
	long := strings.Repeat("é", 250)

	t.Run("no JSON degrades", func(t *testing.T) {
		got := parseExtraction("I could not find anything", long)
		if got.Confidence != 0 {
			t.Errorf("Confidence = %v, want 0", got.Confidence)
		}
		if n := len([]rune(got.Description)); n != 200 {
			t.Errorf("description has %d runes, want 200", n)
		}
		if got.Name != "" || got.Category != "" {
			t.Errorf("degraded result should leave other fields empty: %+v", got)
		}
	})

	t.Run("broken JSON degrades", func(t *testing.T) {
		got := parseExtraction(`{"name": "x",}`, "short input")
		if got.Confidence != 0 || got.Description != "short input" {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("missing confidence defaults", func(t *testing.T) {
		got := parseExtraction(`{"name":"x","category":"Database"}`, "")
		if got.Confidence != 0.5 {
			t.Errorf("Confidence = %v, want 0.5", got.Confidence)
		}
		if got.Category != "Database" {
			t.Errorf("Category = %q", got.Category)
		}
	})

	t.Run("explicit zero kept and negatives clamped", func(t *testing.T) {
		if got := parseExtraction(`{"confidence":0}`, ""); got.Confidence != 0 {
			t.Errorf("Confidence = %v, want 0", got.Confidence)
		}
		if got := parseExtraction(`{"confidence":-3}`, ""); got.Confidence != 0 {
			t.Errorf("Confidence = %v, want 0", got.Confidence)
		}
	})

	t.Run("mistyped fields are coerced", func(t *testing.T) {
		tests := []struct {
			name           string
			raw            string
			wantValue      string
			wantConfidence float64
		}{
			{"numeric value", `{"name":"AWS Activate","value":1000,"confidence":0.9}`, "1000", 0.9},
			{"string confidence", `{"name":"AWS Activate","value":"$1000","confidence":"0.8"}`, "$1000", 0.8},
			{"bool value", `{"name":"AWS Activate","value":true}`, "true", 0.5},
			{"junk confidence", `{"name":"AWS Activate","confidence":"high"}`, "", 0.5},
			{"object value", `{"name":"AWS Activate","value":{"usd":1000},"confidence":null}`, "", 0.5},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				got := parseExtraction(tc.raw, "input text")
				if got.Name != "AWS Activate" {
					t.Errorf("Name = %q, want fields kept", got.Name)
				}
				if got.Value != tc.wantValue {
					t.Errorf("Value = %q, want %q", got.Value, tc.wantValue)
				}
				if !closeTo(got.Confidence, tc.wantConfidence) {
					t.Errorf("Confidence = %v, want %v", got.Confidence, tc.wantConfidence)
				}
				if got.Description == "input text" {
					t.Error("valid JSON should not degrade to the input text")
				}
			})
		}
	})

	t.Run("trailing junk inside braces degrades", func(t *testing.T) {
		got := parseExtraction(`{"name":"a"} and {"name":"b"}`, "in")
		if got.Confidence != 0 || got.Description != "in" {
			t.Errorf("got %+v", got)
		}
	})
}

func TestSearchOffers(t *testing.T) {
	f, srv := newFakeGemini(t, func(string) string {
		return `Results: [
			{"title":"A","url":"https://a.dev","snippet":"a","relevanceScore":0.9},
			{"title":"B","url":"https://b.dev","snippet":"b"},
			{"title":"C","relevanceScore":4},
			{"title":"D"},{"title":"E"},{"title":"F"}
		]`
	})
	g := newTestGateway(configured(), srv)

	got, err := g.SearchOffers(ctx, "free database")
	if err != nil {
		t.Fatalf("SearchOffers: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d results, want 5", len(got))
	}
	if got[0].RelevanceScore != 0.9 || got[1].RelevanceScore != 0.5 || got[2].RelevanceScore != 1 {
		t.Errorf("scores = %v %v %v", got[0].RelevanceScore, got[1].RelevanceScore, got[2].RelevanceScore)
	}

	req, _ := f.last(t)
	if len(req.Tools) != 1 {
		t.Fatalf("tools = %v, want one search tool", req.Tools)
	}
	if _, ok := req.Tools[0]["googleSearch"]; !ok {
		t.Errorf("tool = %v, want googleSearch", req.Tools[0])
	}
	if !strings.Contains(req.prompt(), "free database") {
		t.Error("prompt should carry the query")
	}
}

func TestSearchOffers_UnparseableIsEmpty(t *testing.T) {
	_, srv := newFakeGemini(t, func(string) string { return "nothing today" })
	g := newTestGateway(configured(), srv)

	got, err := g.SearchOffers(ctx, "q")
	if err != nil {
		t.Fatalf("SearchOffers: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty non-nil slice", got)
	}
}

func TestParseSearchResults_MistypedFields(t *testing.T) {
	got := parseSearchResults(`[
		{"title":"A","url":"https://a.dev","snippet":"a","relevanceScore":0.9},
		{"title":"B","url":"https://b.dev","snippet":42,"relevanceScore":"0.7"},
		"not an object",
		{"title":"C","relevanceScore":"very"}
	]`)
	if len(got) != 3 {
		t.Fatalf("got %d results, want 3: %+v", len(got), got)
	}
	if got[1].Snippet != "42" || !closeTo(got[1].RelevanceScore, 0.7) {
		t.Errorf("second result = %+v", got[1])
	}
	if got[2].Title != "C" || got[2].RelevanceScore != 0.5 {
		t.Errorf("third result = %+v", got[2])
	}

	if got := parseSearchResults(`[{"title":"A"},]`); len(got) != 0 {
		t.Errorf("broken array gave %v, want empty", got)
	}
}

func TestGenerateSuggestions(t *testing.T) {
	f, srv := newFakeGemini(t, func(string) string {
		return `["Use AWS credits first","Finish the Copilot tutorial"]`
	})
	g := newTestGateway(configured(), srv)

	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	got, err := g.GenerateSuggestions(ctx, perk.Demo(now))
	if err != nil {
		t.Fatalf("GenerateSuggestions: %v", err)
	}
	if len(got) != 2 || got[0] != "Use AWS credits first" {
		t.Errorf("suggestions = %v", got)
	}

	req, _ := f.last(t)
	if !closeTo(req.GenerationConfig.Temperature, 0.7) || req.GenerationConfig.MaxOutputTokens != 1500 {
		t.Errorf("generation config = %+v", req.GenerationConfig)
	}
	if !strings.Contains(req.prompt(), `"progressCount": 2`) {
		t.Error("prompt should embed the portfolio summary")
	}
}

func TestParseSuggestions(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"no array", "just text", noSuggestionsFallback},
		{"broken array", `["a",]`, badSuggestionsFallback},
		{"empty array", `[]`, badSuggestionsFallback},
		{"strings", `["first","second"]`, "first"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := parseSuggestions(tc.raw)
			if len(got) == 0 || got[0] != tc.want {
				t.Errorf("parseSuggestions(%q) = %v, want first %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestParseStatusCheck(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantValid bool
		wantMsg   string
	}{
		{"no JSON", "unknown", true, statusUnparsedMessage},
		{"explicit false", `{"isValid":false,"message":"Offer ended"}`, false, "Offer ended"},
		{"missing isValid", `{"message":"Still there"}`, true, "Still there"},
		{"missing message", `{"isValid":true}`, true, statusCheckedMessage},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := parseStatusCheck(tc.raw)
			if got.IsValid != tc.wantValid || got.Message != tc.wantMsg {
				t.Errorf("parseStatusCheck(%q) = %+v", tc.raw, got)
			}
		})
	}

	got := parseStatusCheck(`{"isValid":true,"updatedInfo":{"value":"$2000"}}`)
	if got.UpdatedInfo == nil || got.UpdatedInfo.Value != "$2000" {
		t.Errorf("UpdatedInfo = %+v", got.UpdatedInfo)
	}

	got = parseStatusCheck(`{"isValid":"false","message":"Gone","updatedInfo":{"value":2000}}`)
	if got.IsValid || got.Message != "Gone" {
		t.Errorf("string isValid not honoured: %+v", got)
	}
	if got.UpdatedInfo == nil || got.UpdatedInfo.Value != "2000" {
		t.Errorf("numeric updated value lost: %+v", got.UpdatedInfo)
	}

	got = parseStatusCheck(`{"isValid":true,"updatedInfo":{}}`)
	if got.UpdatedInfo != nil {
		t.Errorf("empty updatedInfo should be dropped, got %+v", got.UpdatedInfo)
	}
}

func TestValidateAll_KeepsOrderAndIsolatesFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req geminiRequest
		json.NewDecoder(r.Body).Decode(&req)
		if strings.Contains(req.prompt(), "Name: Broken") {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"code":400,"message":"bad"}}`))
			return
		}
		writeCandidate(w, `{"isValid":false,"message":"ended"}`)
	}))
	defer srv.Close()

	g := New(configured(), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()), WithValidateConcurrency(2))
	perks := []perk.Perk{{ID: "a", Name: "One"}, {ID: "b", Name: "Broken"}, {ID: "c", Name: "Three"}}

	got, err := g.ValidateAll(ctx, perks)
	if err != nil {
		t.Fatalf("ValidateAll: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d checks, want 3", len(got))
	}
	for i, want := range []string{"a", "b", "c"} {
		if got[i].PerkID != want {
			t.Errorf("got[%d].PerkID = %q, want %q", i, got[i].PerkID, want)
		}
	}
	if got[1].Message != statusFailedMessage || !got[1].IsValid {
		t.Errorf("failed entry = %+v", got[1])
	}
	if got[0].IsValid || got[2].IsValid {
		t.Errorf("entries a and c should be invalid: %+v %+v", got[0], got[2])
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("requests = %d, want 3", n)
	}
}

func TestTestConnection(t *testing.T) {
	f, srv := newFakeGemini(t, func(string) string { return "Connection successful!\n" })
	g := newTestGateway(configured(), srv)

	got, err := g.TestConnection(ctx)
	if err != nil {
		t.Fatalf("TestConnection: %v", err)
	}
	if got != "Connection successful!" {
		t.Errorf("reply = %q", got)
	}
	req, _ := f.last(t)
	if req.GenerationConfig.MaxOutputTokens != 50 {
		t.Errorf("maxOutputTokens = %d, want 50", req.GenerationConfig.MaxOutputTokens)
	}
	f.mu.Lock()
	key := f.keys[0]
	f.mu.Unlock()
	if key != "test-key" {
		t.Errorf("api key header = %q, want test-key", key)
	}
}

func TestPortfolioContext(t *testing.T) {
	perks := []perk.Perk{
		{Name: "AWS", Status: perk.StatusUnused},
		{Name: "Copilot", Status: perk.StatusInProgress},
		{Name: "Atlas", Status: perk.StatusExpired},
		{Name: "Vercel", Status: perk.StatusCompleted},
	}
	got := PortfolioContext(perks)
	for _, want := range []string{
		"Total active perks: 3",
		"Unused perks: AWS",
		"In-progress perks: Copilot",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("context missing %q", want)
		}
	}

	empty := PortfolioContext(nil)
	if !strings.Contains(empty, "Unused perks: None") {
		t.Error("empty portfolio should list None")
	}
}
