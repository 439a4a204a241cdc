package perk

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// ExportVersion is written into every export document.
const ExportVersion = "1.0"

// ErrInvalidFormat is returned for import documents without a perks array.
var ErrInvalidFormat = errors.New("invalid file format")

// Document is the export/import file layout.
type Document struct {
	Perks      []Perk `json:"perks"`
	ExportDate string `json:"exportDate"`
	Version    string `json:"version"`
}

// Export wraps perks in an export document stamped with now.
func Export(now time.Time, perks []Perk) Document {
	if perks == nil {
		perks = []Perk{}
	}
	return Document{
		Perks:      perks,
		ExportDate: now.UTC().Format(time.RFC3339),
		Version:    ExportVersion,
	}
}

// DecodeImport reads an export document. The top level must be an object
// whose "perks" member is an array; anything else is ErrInvalidFormat.
// Individual perks are checked later by Store.Replace.
func DecodeImport(r io.Reader) ([]Perk, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading import: %w", err)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, ErrInvalidFormat
	}
	raw, ok := top["perks"]
	if !ok {
		return nil, ErrInvalidFormat
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, ErrInvalidFormat
	}

	var perks []Perk
	if err := json.Unmarshal(raw, &perks); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return perks, nil
}
