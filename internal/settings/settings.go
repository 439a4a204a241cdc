package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/kalambet/techperks/internal/storage"
	"github.com/kalambet/techperks/internal/validator"
)

// Key is the storage key of the persisted settings.
const Key = "ai-settings"

// ErrInvalid marks a rejected settings update.
var ErrInvalid = errors.New("invalid settings")

// Settings configures the AI gateway.
type Settings struct {
	APIKey        string  `json:"apiKey"`
	SelectedModel string  `json:"selectedModel"`
	Temperature   float64 `json:"temperature" validate:"gte=0,lte=1"`
	MaxTokens     int     `json:"maxTokens" validate:"gt=0"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		SelectedModel: DefaultModelID,
		Temperature:   0.7,
		MaxTokens:     1000,
	}
}

// Patch is a partial settings update; nil fields are left alone.
type Patch struct {
	APIKey        *string  `json:"apiKey,omitempty"`
	SelectedModel *string  `json:"selectedModel,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	MaxTokens     *int     `json:"maxTokens,omitempty"`
}

func (p Patch) apply(s Settings) Settings {
	if p.APIKey != nil {
		s.APIKey = strings.TrimSpace(*p.APIKey)
	}
	if p.SelectedModel != nil {
		s.SelectedModel = *p.SelectedModel
	}
	if p.Temperature != nil {
		s.Temperature = *p.Temperature
	}
	if p.MaxTokens != nil {
		s.MaxTokens = *p.MaxTokens
	}
	return s
}

// KV is the subset of storage.Store the settings store uses.
type KV interface {
	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error
}

// Store holds the process-wide settings and writes every change through
// to KV before making it visible.
type Store struct {
	kv KV

	mu       sync.RWMutex
	settings Settings
}

// NewStore returns a Store holding defaults until Load is called.
func NewStore(kv KV) *Store {
	return &Store{kv: kv, settings: Defaults()}
}

// Load reads saved settings and merges them over the defaults. Absent or
// unreadable data leaves the defaults in place, and out-of-range temperature
// or token values fall back to theirs. Only storage I/O errors are returned.
func (s *Store) Load(ctx context.Context) error {
	raw, err := s.kv.GetValue(ctx, Key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading settings: %w", err)
	}

	// Unmarshalling into a defaults-filled value is the shallow merge.
	merged := Defaults()
	if err := json.Unmarshal([]byte(raw), &merged); err != nil {
		slog.Warn("saved settings unreadable, using defaults", "error", err)
		merged = Defaults()
	}
	if err := validate.Struct(merged); err != nil {
		// Out-of-range generation parameters are reset; the key and model
		// selection are kept.
		slog.Warn("saved settings invalid, resetting generation parameters",
			"error", validator.Describe(err))
		reset := Defaults()
		reset.APIKey = merged.APIKey
		reset.SelectedModel = merged.SelectedModel
		merged = reset
	}

	s.mu.Lock()
	s.settings = merged
	s.mu.Unlock()
	return nil
}

// Get returns a snapshot of the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

var validate = validator.New()

// Update merges p, validates and persists the result.
func (s *Store) Update(ctx context.Context, p Patch) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := p.apply(s.settings)
	if err := validate.Struct(next); err != nil {
		return Settings{}, fmt.Errorf("%w: %s", ErrInvalid, validator.Describe(err))
	}

	data, err := json.Marshal(next)
	if err != nil {
		return Settings{}, fmt.Errorf("encoding settings: %w", err)
	}
	if err := s.kv.SetValue(ctx, Key, string(data)); err != nil {
		return Settings{}, fmt.Errorf("saving settings: %w", err)
	}
	s.settings = next
	return next, nil
}

// IsConfigured reports whether an API key is set.
func (s *Store) IsConfigured() bool {
	return s.Get().Configured()
}

// ResolveModel returns the selected model, or the default when the selection
// is unknown. It never returns an empty model.
func (s *Store) ResolveModel() Model {
	return s.Get().Model()
}

// Model resolves SelectedModel against the registry, falling back to the
// default model.
func (s Settings) Model() Model {
	if m, ok := LookupModel(s.SelectedModel); ok {
		return m
	}
	return defaultModel()
}

// Configured reports whether s carries an API key.
func (s Settings) Configured() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

// Masked returns the settings with the API key reduced to its last four
// characters, for display.
func (s Settings) Masked() Settings {
	s.APIKey = MaskKey(s.APIKey)
	return s
}

// MaskKey hides all but the last four characters of key.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	r := []rune(key)
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}
