package perk

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestExport(t *testing.T) {
	doc := Export(noon, nil)
	if doc.Version != "1.0" {
		t.Errorf("Version = %q, want 1.0", doc.Version)
	}
	if doc.ExportDate != "2025-06-10T12:00:00Z" {
		t.Errorf("ExportDate = %q", doc.ExportDate)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"perks":[]`) {
		t.Errorf("empty export should carry an empty array, got %s", data)
	}
}

func TestDecodeImport_AcceptsExport(t *testing.T) {
	data, err := json.Marshal(Export(noon, Demo(noon)))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	perks, err := DecodeImport(strings.NewReader(string(data)))
	if err != nil {
		t.Fatalf("DecodeImport: %v", err)
	}
	if len(perks) != 5 {
		t.Fatalf("len = %d, want 5", len(perks))
	}
	if perks[1].ExpiryDate != DateOf(noon).AddDays(5) {
		t.Errorf("ExpiryDate = %v", perks[1].ExpiryDate)
	}
}

func TestDecodeImport_RejectsBadShapes(t *testing.T) {
	tests := map[string]string{
		"not json":      `{{`,
		"array":         `[]`,
		"no perks":      `{"version":"1.0"}`,
		"perks object":  `{"perks":{"a":1}}`,
		"perks string":  `{"perks":"nope"}`,
		"perks null":    `{"perks":null}`,
		"bad perk type": `{"perks":[{"name":42}]}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeImport(strings.NewReader(body))
			if !errors.Is(err, ErrInvalidFormat) {
				t.Errorf("err = %v, want ErrInvalidFormat", err)
			}
		})
	}
}

func TestDecodeImport_EmptyArrayIsValid(t *testing.T) {
	perks, err := DecodeImport(strings.NewReader(`{"perks":[],"version":"1.0"}`))
	if err != nil {
		t.Fatalf("DecodeImport: %v", err)
	}
	if len(perks) != 0 {
		t.Errorf("len = %d, want 0", len(perks))
	}
}
