package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/kalambet/techperks/internal/settings"
)

const (
	defaultTimeout             = 60 * time.Second
	defaultValidateConcurrency = 4
)

var (
	// ErrNotConfigured is returned by every operation while no API key is set.
	// No request is made in that case.
	ErrNotConfigured = errors.New("AI service not configured: set an API key in settings")

	// ErrRequestFailed wraps transport, SDK and non-2xx failures.
	ErrRequestFailed = errors.New("failed to get response")
)

// SettingsSource supplies the current AI settings. *settings.Store satisfies it.
type SettingsSource interface {
	Get() settings.Settings
	IsConfigured() bool
	ResolveModel() settings.Model
}

// Gateway talks to the Gemini API. A fresh SDK client is built per call from
// the current settings snapshot, so a key or model change applies to the
// next call without any reset.
type Gateway struct {
	settings   SettingsSource
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
	validateN  int
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithBaseURL points the gateway at a different API host (for testing).
func WithBaseURL(baseURL string) Option {
	return func(g *Gateway) {
		if baseURL != "" {
			g.baseURL = strings.TrimRight(baseURL, "/") + "/"
		}
	}
}

// WithHTTPClient replaces the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.httpClient = c }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithClock sets the time source used for "today" in prompts.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// WithValidateConcurrency caps how many status checks ValidateAll runs at once.
func WithValidateConcurrency(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.validateN = n
		}
	}
}

// New creates a Gateway reading its key and model from src.
func New(src SettingsSource, opts ...Option) *Gateway {
	g := &Gateway{
		settings:   src,
		httpClient: &http.Client{Timeout: defaultTimeout},
		now:        time.Now,
		validateN:  defaultValidateConcurrency,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IsConfigured reports whether an API key is set.
func (g *Gateway) IsConfigured() bool {
	return g.settings.IsConfigured()
}

// Model returns the model the next call will use.
func (g *Gateway) Model() settings.Model {
	return g.settings.ResolveModel()
}

type genParams struct {
	temperature float64
	maxTokens   int
	search      bool

	// fromSettings takes temperature and maxTokens from the settings
	// snapshot instead.
	fromSettings bool
}

// generate sends one prompt and returns the first candidate's text. A
// response without candidates yields "" and no error. Key, model and
// generation parameters all come from a single settings snapshot.
func (g *Gateway) generate(ctx context.Context, prompt string, p genParams) (string, error) {
	cfg := g.settings.Get()
	if !cfg.Configured() {
		return "", ErrNotConfigured
	}
	model := cfg.Model()
	if p.fromSettings {
		p.temperature = cfg.Temperature
		p.maxTokens = cfg.MaxTokens
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  g.httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: g.baseURL},
	})
	if err != nil {
		return "", fmt.Errorf("%w: creating client: %v", ErrRequestFailed, err)
	}

	temperature := float32(p.temperature)
	genCfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(p.maxTokens),
	}
	if p.search {
		genCfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	resp, err := client.Models.GenerateContent(ctx, model.ID, genai.Text(prompt), genCfg)
	if err != nil {
		return "", requestError(err)
	}
	return responseText(resp), nil
}

func requestError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return fmt.Errorf("%w: %s (HTTP %d)", ErrRequestFailed, apiErr.Message, apiErr.Code)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr.Message != "" {
		return fmt.Errorf("%w: %s (HTTP %d)", ErrRequestFailed, apiErrPtr.Message, apiErrPtr.Code)
	}
	return fmt.Errorf("%w: %w", ErrRequestFailed, err)
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

const (
	connectionPrompt = `Hello! Please respond with just "Connection successful!" to test this API key.`
	chatFallback     = "Sorry, I could not generate a response."
)

// Chat sends the user's message prefixed by the assistant context, using the
// configured temperature and token cap.
func (g *Gateway) Chat(ctx context.Context, systemContext, message string) (string, error) {
	text, err := g.generate(ctx, systemContext+"\n\nUser: "+message, genParams{fromSettings: true})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return chatFallback, nil
	}
	return text, nil
}

// TestConnection sends a trivial prompt and returns the model's reply.
func (g *Gateway) TestConnection(ctx context.Context) (string, error) {
	text, err := g.generate(ctx, connectionPrompt, genParams{temperature: 0.1, maxTokens: 50})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
