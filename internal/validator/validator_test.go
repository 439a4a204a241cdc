package validator

import (
	"errors"
	"testing"
)

func TestNotblank(t *testing.T) {
	v := New()

	type item struct {
		Name string `json:"name" validate:"notblank"`
	}

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"plain", "valid", false},
		{"padded", "  valid  ", false},
		{"spaces", "   ", true},
		{"tabs", "\t\t", true},
		{"newlines", "\n\n", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(item{Name: tt.input})
			if (err != nil) != tt.wantErr {
				t.Errorf("Struct(%q) err = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestDescribe_UsesJSONFieldNames(t *testing.T) {
	v := New()

	type item struct {
		Name   string  `json:"name" validate:"required,notblank"`
		Status string  `json:"status" validate:"oneof=a b"`
		Temp   float64 `json:"temperature" validate:"gte=0,lte=1"`
	}

	tests := []struct {
		name string
		in   item
		want string
	}{
		{"required", item{Status: "a"}, "name is required"},
		{"blank", item{Name: "  ", Status: "a"}, "name cannot be blank"},
		{"oneof", item{Name: "x", Status: "c"}, "status must be one of: a b"},
		{"lte", item{Name: "x", Status: "a", Temp: 2}, "temperature must be at most 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.in)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if got := Describe(err); got != tt.want {
				t.Errorf("Describe = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDescribe_PassesThroughOtherErrors(t *testing.T) {
	if got := Describe(errors.New("boom")); got != "boom" {
		t.Errorf("Describe = %q, want boom", got)
	}
}
