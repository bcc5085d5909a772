// internal/evaluation/form.go
package evaluation

import (
	"fmt"
	"strconv"
	"strings"
)

// StaticDefaults are the values the form starts with before any defaults
// document is applied.
var StaticDefaults = map[string]string{
	FieldModel:          "gpt_3.5",
	FieldTemperature:    "0.5",
	FieldMaxNewTokens:   "100",
	FieldPrompt:         "",
	FieldCriteria:       "",
	FieldExpectedResult: "",
	FieldIterations:     "1",
}

// clearableFields are emptied by the clear-fields action.
var clearableFields = []string{FieldPrompt, FieldCriteria, FieldExpectedResult}

// Form is the editable state behind the evaluation form.
type Form struct {
	values map[string]string
}

// NewForm returns a form holding the static defaults.
func NewForm() *Form {
	values := make(map[string]string, len(FieldNames))
	for _, name := range FieldNames {
		values[name] = StaticDefaults[name]
	}
	return &Form{values: values}
}

// IsField reports whether name is one of the form fields.
func IsField(name string) bool {
	for _, n := range FieldNames {
		if n == name {
			return true
		}
	}
	return false
}

// Get returns the current value of a field.
func (f *Form) Get(name string) string {
	return f.values[name]
}

// Set updates a field value.
func (f *Form) Set(name, value string) error {
	if !IsField(name) {
		return fmt.Errorf("unknown form field %q", name)
	}
	f.values[name] = value
	return nil
}

// Apply overwrites the fields present in values. Unknown keys are ignored
// and returned so callers can log them.
func (f *Form) Apply(values map[string]string) []string {
	var ignored []string
	for name, value := range values {
		if !IsField(name) {
			ignored = append(ignored, name)
			continue
		}
		f.values[name] = value
	}
	return ignored
}

// ClearFields empties prompt, criteria and expected_result and leaves every
// other field untouched.
func (f *Form) ClearFields() {
	for _, name := range clearableFields {
		f.values[name] = ""
	}
}

// Request snapshots the form into a Request.
func (f *Form) Request() Request {
	return Request{
		Model:          f.values[FieldModel],
		Temperature:    f.values[FieldTemperature],
		MaxNewTokens:   f.values[FieldMaxNewTokens],
		Prompt:         f.values[FieldPrompt],
		Criteria:       f.values[FieldCriteria],
		ExpectedResult: f.values[FieldExpectedResult],
		Iterations:     f.values[FieldIterations],
	}
}

// Iterations parses the iterations field; unparsable input yields 0.
func (f *Form) Iterations() int {
	return ParseIterations(f.values[FieldIterations])
}

// ParseIterations parses an iterations value, returning 0 when it is not a
// positive integer.
func ParseIterations(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
