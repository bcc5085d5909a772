// internal/evaluation/types.go
// Package evaluation defines the payloads exchanged with the evaluation
// service and the form state they are built from.
package evaluation

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/url"
	"strconv"
)

// Form field names, in the order the evaluation page lays them out.
const (
	FieldModel          = "model"
	FieldTemperature    = "temperature"
	FieldMaxNewTokens   = "max_new_tokens"
	FieldPrompt         = "prompt"
	FieldCriteria       = "criteria"
	FieldExpectedResult = "expected_result"
	FieldIterations     = "iterations"
)

// FieldNames lists every form field in display order.
var FieldNames = []string{
	FieldModel,
	FieldTemperature,
	FieldMaxNewTokens,
	FieldPrompt,
	FieldCriteria,
	FieldExpectedResult,
	FieldIterations,
}

// Request is a snapshot of the form at submit time. Values are sent exactly
// as entered; the server owns validation.
type Request struct {
	Model          string `json:"model"`
	Temperature    string `json:"temperature"`
	MaxNewTokens   string `json:"max_new_tokens"`
	Prompt         string `json:"prompt"`
	Criteria       string `json:"criteria"`
	ExpectedResult string `json:"expected_result"`
	Iterations     string `json:"iterations"`
}

// fields returns name/value pairs in FieldNames order.
func (r Request) fields() [][2]string {
	return [][2]string{
		{FieldModel, r.Model},
		{FieldTemperature, r.Temperature},
		{FieldMaxNewTokens, r.MaxNewTokens},
		{FieldPrompt, r.Prompt},
		{FieldCriteria, r.Criteria},
		{FieldExpectedResult, r.ExpectedResult},
		{FieldIterations, r.Iterations},
	}
}

// Values encodes the request as an application/x-www-form-urlencoded body.
func (r Request) Values() url.Values {
	values := url.Values{}
	for _, kv := range r.fields() {
		values.Set(kv[0], kv[1])
	}
	return values
}

// WriteMultipart writes every field into mw as a form field.
func (r Request) WriteMultipart(mw *multipart.Writer) error {
	for _, kv := range r.fields() {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return err
		}
	}
	return nil
}

// Event is one decoded data: line. Every field is optional because the
// server streams partial progress.
type Event struct {
	Iteration  *int    `json:"iteration,omitempty"`
	Prediction *string `json:"prediction,omitempty"`
	Score      Number  `json:"score"`
	Reason     *string `json:"reason,omitempty"`
}

// PredictionText returns the prediction or "N/A" when the server sent none.
func (e Event) PredictionText() string {
	return textOrNA(e.Prediction)
}

// ReasonText returns the reason or "N/A" when the server sent none.
func (e Event) ReasonText() string {
	return textOrNA(e.Reason)
}

// IterationText returns the iteration number as text.
func (e Event) IterationText() string {
	if e.Iteration == nil {
		return "N/A"
	}
	return strconv.Itoa(*e.Iteration)
}

// Summary is the terminal payload of an evaluation.
type Summary struct {
	EvalResults  []Event `json:"eval_results"`
	Temperature  Number  `json:"temperature"`
	AvgScore     Number  `json:"avg_score"`
	FinalVerdict *string `json:"final_verdict"`
}

// FinalVerdictText returns the verdict or "N/A" when the server sent none.
func (s Summary) FinalVerdictText() string {
	return textOrNA(s.FinalVerdict)
}

func textOrNA(s *string) string {
	if s == nil {
		return "N/A"
	}
	return *s
}

// Number holds a JSON value that is usually numeric but may arrive as a
// string or null. The text form is what gets rendered.
type Number struct {
	text  string
	valid bool
}

// NewNumber builds a Number from a float.
func NewNumber(v float64) Number {
	return Number{text: FormatFloat(v), valid: true}
}

// UnmarshalJSON accepts numbers, strings, booleans and null.
func (n *Number) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*n = Number{}
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*n = Number{text: s, valid: true}
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return err
		}
		*n = Number{text: strconv.FormatBool(b), valid: true}
		return nil
	}
	var f float64
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return err
	}
	*n = NewNumber(f)
	return nil
}

// MarshalJSON writes numeric text as a number and anything else as a string.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.valid {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseFloat(n.text, 64); err == nil {
		return []byte(n.text), nil
	}
	return json.Marshal(n.text)
}

// String returns the rendered text, "N/A" for null.
func (n Number) String() string {
	if !n.valid {
		return "N/A"
	}
	return n.text
}

// FormatFloat renders f without trailing zeros (0.7, 7.5, 8).
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
