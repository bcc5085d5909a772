// internal/defaults/defaults.go
// Package defaults pre-fills the evaluation form from the static defaults
// document published next to the evaluation page.
package defaults

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/mwiater/llmevaluator/internal/evaluation"
	"github.com/mwiater/llmevaluator/internal/logging"
)

// scalar accepts the shapes a form value can take in the document.
var scalar = map[string]any{"type": []string{"string", "number", "boolean", "null"}}

// fieldSchemas describe each form field the document may carry. A field
// that does not conform is skipped on its own.
var fieldSchemas = map[string]map[string]any{
	evaluation.FieldModel:          {"type": []string{"string", "null"}},
	evaluation.FieldTemperature:    scalar,
	evaluation.FieldMaxNewTokens:   scalar,
	evaluation.FieldPrompt:         scalar,
	evaluation.FieldCriteria:       scalar,
	evaluation.FieldExpectedResult: scalar,
	evaluation.FieldIterations:     scalar,
}

// documentSchema describes the defaults document as a whole. Every field is
// optional and unknown fields are allowed.
var documentSchema = map[string]any{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type":    "object",
}

// Fetcher returns the raw defaults document.
type Fetcher interface {
	FetchDefaults(ctx context.Context) ([]byte, error)
}

// File reads the defaults document from a local path.
type File string

// FetchDefaults implements Fetcher.
func (f File) FetchDefaults(context.Context) ([]byte, error) {
	return os.ReadFile(string(f))
}

// Validate checks that raw is a JSON object.
func Validate(raw []byte) error {
	return validate(documentSchema, gojsonschema.NewBytesLoader(raw))
}

// validateField checks one field value against its schema.
func validateField(name string, raw json.RawMessage) error {
	return validate(fieldSchemas[name], gojsonschema.NewBytesLoader(raw))
}

func validate(schema map[string]any, doc gojsonschema.JSONLoader) error {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), doc)
	if err != nil {
		return fmt.Errorf("defaults: invalid JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var errs []string
	for _, desc := range result.Errors() {
		errs = append(errs, desc.String())
	}
	return fmt.Errorf("defaults: schema validation failed: %s", strings.Join(errs, ", "))
}

// Parse validates raw and returns the form values it sets. Fields that are
// absent or null are omitted; numbers are rendered without trailing zeros.
// A field of the wrong type is logged and skipped while the rest apply.
func Parse(raw []byte) (map[string]string, error) {
	if err := Validate(raw); err != nil {
		return nil, err
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("defaults: %w", err)
	}

	values := make(map[string]string)
	for _, name := range evaluation.FieldNames {
		value, ok := doc[name]
		if !ok {
			continue
		}
		if err := validateField(name, value); err != nil {
			logging.LogError(fmt.Sprintf("defaults: skipping field %s", name), err)
			continue
		}
		text, present, err := formValue(value)
		if err != nil {
			return nil, fmt.Errorf("defaults: field %s: %w", name, err)
		}
		if present {
			values[name] = text
		}
	}
	return values, nil
}

func formValue(raw json.RawMessage) (string, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	switch string(trimmed) {
	case "null":
		return "", false, nil
	case "true", "false":
		return string(trimmed), true, nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", false, err
		}
		return s, true, nil
	}
	var f float64
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return "", false, err
	}
	return evaluation.FormatFloat(f), true, nil
}

// Fetch retrieves and parses the document from src.
func Fetch(ctx context.Context, src Fetcher) (map[string]string, error) {
	raw, err := src.FetchDefaults(ctx)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Load fetches the document and applies it to form. Any failure is logged
// and leaves form at its current values. It reports whether defaults were
// applied.
func Load(ctx context.Context, src Fetcher, form *evaluation.Form) bool {
	values, err := Fetch(ctx, src)
	if err != nil {
		logging.LogError("Error loading defaults", err)
		return false
	}
	Apply(form, values)
	return true
}

// Apply writes values into form and logs which fields were set.
func Apply(form *evaluation.Form, values map[string]string) {
	form.Apply(values)

	applied := make([]string, 0, len(values))
	for name := range values {
		applied = append(applied, name)
	}
	sort.Strings(applied)
	logging.LogEvent("defaults applied: %s", strings.Join(applied, ","))
}
