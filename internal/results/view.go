// internal/results/view.go
// Package results holds the state of the results area: the evaluation table,
// the status line shown while work is in flight, the summary paragraphs, and
// whether the export control is available.
package results

import (
	"errors"
	"fmt"
	"time"

	"github.com/mwiater/llmevaluator/internal/evaluation"
	"github.com/mwiater/llmevaluator/internal/stream"
)

// Messages rendered into the results area.
const (
	MsgProcessingInputs = "Processing inputs..."
	MsgFinalEvaluation  = "Performing final evaluation..."
	MsgProcessingError  = "Error processing results. Please try again."
	MsgRequestError     = "Error occurred. Please try again."
)

// Columns are the fixed table columns.
var Columns = []string{"Date", "Temperature", "Iteration", "Prediction", "Score", "Reason"}

// DateLayout formats the Date column.
const DateLayout = "2006-01-02"

// View is the results area state for one submission at a time.
type View struct {
	now func() time.Time

	total      int
	rows       [][]string
	paragraphs []string
	seen       map[int]struct{}
	status     string
	busy       bool
	exportable bool
}

// NewView returns an idle, empty view.
func NewView() *View {
	return &View{now: time.Now, seen: make(map[int]struct{})}
}

// SetClock replaces the clock used for the Date column.
func (v *View) SetClock(now func() time.Time) {
	v.now = now
}

// Begin resets the view for a new submission expecting total iterations.
// The seen-iteration set is recreated here.
func (v *View) Begin(total int) {
	v.total = total
	v.rows = nil
	v.paragraphs = nil
	v.seen = make(map[int]struct{})
	v.status = MsgProcessingInputs
	v.busy = true
	v.exportable = false
}

// ApplyEvent appends a row for an iteration that has not been rendered yet
// and updates the progress line. It reports whether a row was appended.
func (v *View) ApplyEvent(ev evaluation.Event, temperature string) bool {
	if ev.Iteration == nil {
		return false
	}
	n := *ev.Iteration
	if !v.appendRow(ev, temperature) {
		return false
	}
	v.status = ProgressMessage(n, v.total)
	return true
}

// ProgressMessage is the status shown after iteration n of total completes.
// Any n not strictly below total is treated as the last iteration.
func ProgressMessage(n, total int) string {
	if n < total {
		return fmt.Sprintf("Processing iteration %d of %d...", n+1, total)
	}
	return MsgFinalEvaluation
}

// ApplySummary appends rows for summary results not seen during streaming,
// then the average score and verdict paragraphs, and enables export.
func (v *View) ApplySummary(s evaluation.Summary) {
	temperature := s.Temperature.String()
	for _, ev := range s.EvalResults {
		v.appendRow(ev, temperature)
	}
	v.paragraphs = append(v.paragraphs,
		fmt.Sprintf("Average Score: %s", s.AvgScore.String()),
		fmt.Sprintf("Final Verdict: %s", s.FinalVerdictText()),
	)
	v.status = ""
	v.busy = false
	v.exportable = true
}

// FailureMessage maps an error from a submission to the message shown in the
// results area. An unreadable final payload is a processing error; anything
// else is a request error.
func FailureMessage(err error) string {
	if errors.Is(err, stream.ErrMalformedSummary) {
		return MsgProcessingError
	}
	return MsgRequestError
}

// Fail replaces the whole results area with message.
func (v *View) Fail(message string) {
	v.rows = nil
	v.paragraphs = nil
	v.status = message
	v.busy = false
	v.exportable = false
}

func (v *View) appendRow(ev evaluation.Event, temperature string) bool {
	if ev.Iteration == nil {
		return false
	}
	if _, ok := v.seen[*ev.Iteration]; ok {
		return false
	}
	v.seen[*ev.Iteration] = struct{}{}
	v.rows = append(v.rows, []string{
		v.now().Format(DateLayout),
		temperature,
		ev.IterationText(),
		ev.PredictionText(),
		ev.Score.String(),
		ev.ReasonText(),
	})
	return true
}

// Rows returns the header followed by every body row, as rendered text. The
// table is only present once a row exists or export is enabled.
func (v *View) Rows() [][]string {
	if !v.HasTable() {
		return nil
	}
	out := make([][]string, 0, len(v.rows)+1)
	out = append(out, append([]string(nil), Columns...))
	for _, row := range v.rows {
		out = append(out, append([]string(nil), row...))
	}
	return out
}

// BodyRows returns the number of body rows.
func (v *View) BodyRows() int { return len(v.rows) }

// HasTable reports whether the table is part of the results area.
func (v *View) HasTable() bool { return len(v.rows) > 0 || v.exportable }

// Paragraphs returns the trailing summary paragraphs.
func (v *View) Paragraphs() []string { return append([]string(nil), v.paragraphs...) }

// Status returns the status line, empty when idle.
func (v *View) Status() string { return v.status }

// Busy reports whether a request is in flight and a spinner should show.
func (v *View) Busy() bool { return v.busy }

// Exportable reports whether the export control is shown.
func (v *View) Exportable() bool { return v.exportable }

