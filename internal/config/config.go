package config

import (
	"log/slog"
	"strings"
	"time"
)

const appName = "techperks"

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Log     LogConfig
	Gemini  GeminiConfig
	AI      AIConfig
}

type ServerConfig struct {
	Port int

	// MCP serves the MCP tools over stdio next to the HTTP API.
	MCP bool
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type GeminiConfig struct {
	// BaseURL overrides the Gemini API endpoint. Empty means the SDK default.
	BaseURL string
	// Timeout is a Go duration string such as "60s".
	Timeout string
}

type AIConfig struct {
	RatePerMinute       int
	ValidateConcurrency int
}

const defaultGeminiTimeout = 60 * time.Second

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Gemini: GeminiConfig{
			Timeout: defaultGeminiTimeout.String(),
		},
		AI: AIConfig{
			RatePerMinute:       30,
			ValidateConcurrency: 4,
		},
	}
}

// Load reads configuration from the JSON file at
// $XDG_CONFIG_HOME/techperks/config.json, then applies PERKS_* environment
// overrides. Every key has a default, so a missing file is not an error.
//
// The Gemini API key is not part of this config: it is a user setting kept
// in the database and edited through the settings API.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// TimeoutDuration parses Timeout, falling back to the default on bad input.
func (g GeminiConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(g.Timeout)
	if err != nil || d <= 0 {
		slog.Warn("invalid gemini timeout, using default", "value", g.Timeout, "default", defaultGeminiTimeout)
		return defaultGeminiTimeout
	}
	return d
}

// SlogLevel maps Level onto a slog level. Unknown names mean info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(l.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
