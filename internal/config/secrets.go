package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	envAPIToken     = "PERKS_API_TOKEN"
	tokenAccount    = "api_token"
	secretsFileName = "secrets.json"
)

var errSecretNotFound = errors.New("secret not found")

// secretFile is a JSON map of service -> account -> value, readable only by
// the owner.
type secretFile struct {
	path string
}

func defaultSecretFile() secretFile {
	dir := xdgDir("XDG_DATA_HOME", ".local", "share")
	if dir == "" {
		dir = "."
	}
	return secretFile{path: filepath.Join(dir, appName, secretsFileName)}
}

func (f secretFile) read() (map[string]map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets file: %w", err)
	}
	var secrets map[string]map[string]string
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("parsing secrets file: %w", err)
	}
	if secrets == nil {
		secrets = map[string]map[string]string{}
	}
	return secrets, nil
}

func (f secretFile) Get(service, account string) (string, error) {
	secrets, err := f.read()
	if err != nil {
		return "", err
	}
	val, ok := secrets[service][account]
	if !ok || val == "" {
		return "", fmt.Errorf("%s/%s: %w", service, account, errSecretNotFound)
	}
	return val, nil
}

func (f secretFile) Set(service, account, value string) error {
	secrets, err := f.read()
	if err != nil {
		return err
	}
	if secrets[service] == nil {
		secrets[service] = make(map[string]string)
	}
	secrets[service][account] = value

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating secrets dir: %w", err)
	}
	out, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, out, 0o600)
}

// GetAPIToken returns the bearer token guarding the HTTP API. PERKS_API_TOKEN
// wins when set; otherwise the token is read from the secrets file and
// generated on first use.
func GetAPIToken() (string, error) {
	return apiToken(defaultSecretFile())
}

func apiToken(f secretFile) (string, error) {
	if tok := strings.TrimSpace(os.Getenv(envAPIToken)); tok != "" {
		return tok, nil
	}

	tok, err := f.Get(appName, tokenAccount)
	if err == nil {
		return tok, nil
	}
	if !errors.Is(err, errSecretNotFound) {
		return "", err
	}

	tok = uuid.NewString()
	if err := f.Set(appName, tokenAccount, tok); err != nil {
		return "", fmt.Errorf("storing API token: %w", err)
	}
	return tok, nil
}
