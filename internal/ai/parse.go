package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// objectSpan returns the text from the first '{' to the last '}'.
func objectSpan(s string) (string, bool) {
	return span(s, "{", "}")
}

// arraySpan returns the text from the first '[' to the last ']'.
func arraySpan(s string) (string, bool) {
	return span(s, "[", "]")
}

func span(s, open, close string) (string, bool) {
	start := strings.Index(s, open)
	end := strings.LastIndex(s, close)
	if start < 0 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

// decodeLoose unmarshals s into v keeping numbers as json.Number, so model
// output can be coerced field by field instead of failing on a type mismatch.
func decodeLoose(s string, v any) error {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

// fields is a decoded JSON object from a model reply.
type fields map[string]any

// str returns the value at key as text. Numbers and booleans are rendered as
// they appeared; objects, arrays and null give "".
func (f fields) str(key string) string {
	switch v := f[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

// num returns the value at key as a float. Numeric strings are accepted.
func (f fields) num(key string) (float64, bool) {
	switch v := f[key].(type) {
	case json.Number:
		n, err := v.Float64()
		return n, err == nil
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return n, err == nil
	}
	return 0, false
}

// boolean returns the value at key as a bool. "true" and "false" strings are
// accepted.
func (f fields) boolean(key string) (bool, bool) {
	switch v := f[key].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return b, err == nil
	}
	return false, false
}

// object returns the nested object at key, or nil.
func (f fields) object(key string) fields {
	if m, ok := f[key].(map[string]any); ok {
		return fields(m)
	}
	return nil
}

func asFields(v any) (fields, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected JSON object, got %T", v)
	}
	return fields(m), nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// truncateRunes returns at most n runes of s.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
