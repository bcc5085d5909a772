// internal/stream/stream.go
// Package stream decodes the evaluation service's data: line progress stream.
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mwiater/llmevaluator/internal/evaluation"
)

const dataPrefix = "data:"

// ErrMalformedSummary is returned when the stream closes without a final
// data: payload that decodes as an evaluation summary.
var ErrMalformedSummary = errors.New("stream: final payload is not a valid evaluation summary")

// Kind distinguishes the events a Reader yields.
type Kind int

const (
	// KindIteration carries one per-iteration result.
	KindIteration Kind = iota
	// KindSummary carries the terminal summary.
	KindSummary
	// KindError carries a terminal error.
	KindError
)

// Event is a single decoded unit of the stream.
type Event struct {
	Kind      Kind
	Iteration evaluation.Event
	Summary   evaluation.Summary
	Err       error
}

// Reader pulls events from a data: line stream. Bytes are consumed
// incrementally, so events surface as soon as their line is complete.
type Reader struct {
	br       *bufio.Reader
	last     string
	haveLast bool
	done     bool
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// Next returns the next event. Iteration events are yielded for every data:
// line that decodes as an object with an iteration; other lines are skipped.
// When the underlying reader reaches EOF the latest data: payload is decoded
// as the summary and returned, after which Next returns io.EOF.
func (r *Reader) Next() (Event, error) {
	if r.done {
		return Event{}, io.EOF
	}
	for {
		line, err := r.br.ReadString('\n')
		if line != "" {
			if ev, ok := r.consumeLine(line); ok {
				return ev, nil
			}
		}
		if err != nil {
			r.done = true
			if errors.Is(err, io.EOF) {
				return r.finish()
			}
			return Event{}, fmt.Errorf("stream: read: %w", err)
		}
	}
}

func (r *Reader) consumeLine(line string) (Event, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, dataPrefix) {
		return Event{}, false
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	r.last = payload
	r.haveLast = true

	var ev evaluation.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, false
	}
	if ev.Iteration == nil {
		return Event{}, false
	}
	return Event{Kind: KindIteration, Iteration: ev}, true
}

func (r *Reader) finish() (Event, error) {
	if !r.haveLast {
		return Event{}, fmt.Errorf("%w: no data lines received", ErrMalformedSummary)
	}
	summary, err := DecodeSummary([]byte(r.last))
	if err != nil {
		return Event{}, err
	}
	return Event{Kind: KindSummary, Summary: summary}, nil
}

// DecodeSummary decodes a single summary payload. The payload must be a JSON
// object carrying an eval_results array; anything else, including an
// iteration event left over from a stream cut short, is rejected.
func DecodeSummary(payload []byte) (evaluation.Summary, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return evaluation.Summary{}, fmt.Errorf("%w: %v", ErrMalformedSummary, err)
	}
	results, ok := raw["eval_results"]
	if !ok {
		return evaluation.Summary{}, fmt.Errorf("%w: missing eval_results", ErrMalformedSummary)
	}
	var list []json.RawMessage
	if err := json.Unmarshal(results, &list); err != nil || list == nil {
		return evaluation.Summary{}, fmt.Errorf("%w: eval_results is not an array", ErrMalformedSummary)
	}
	var summary evaluation.Summary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return evaluation.Summary{}, fmt.Errorf("%w: %v", ErrMalformedSummary, err)
	}
	return summary, nil
}

// Events runs a Reader over body in its own goroutine and delivers events on
// the returned channel. Reads are strictly sequential. The channel is closed
// after the summary or an error event, or once ctx is cancelled.
func Events(ctx context.Context, body io.Reader) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		reader := NewReader(body)
		for {
			ev, err := reader.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				ev = Event{Kind: KindError, Err: err}
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
			if ev.Kind != KindIteration {
				return
			}
		}
	}()
	return out
}
