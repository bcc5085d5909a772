package tui

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mwiater/llmevaluator/internal/appconfig"
	"github.com/mwiater/llmevaluator/internal/evaluation"
	"github.com/mwiater/llmevaluator/internal/export"
	"github.com/mwiater/llmevaluator/internal/results"
	"github.com/mwiater/llmevaluator/internal/stream"
)

// fakeService is a canned evaluation service.
type fakeService struct {
	body      string
	streamErr error
	upload    []byte
	uploadErr error

	gotRequest evaluation.Request
	gotFile    string
}

func (s *fakeService) EvaluateStream(ctx context.Context, submission string, req evaluation.Request) (io.ReadCloser, error) {
	s.gotRequest = req
	if s.streamErr != nil {
		return nil, s.streamErr
	}
	return io.NopCloser(strings.NewReader(s.body)), nil
}

func (s *fakeService) UploadCSV(ctx context.Context, filename string, file io.Reader) ([]byte, error) {
	s.gotFile = filename
	if _, err := io.ReadAll(file); err != nil {
		return nil, err
	}
	return s.upload, s.uploadErr
}

const threeIterations = `data: {"iteration": 1, "prediction": "a", "score": 7, "reason": "ok"}
data: {"iteration": 2, "prediction": "b", "score": 8, "reason": "ok"}
data: {"iteration": 3, "prediction": "c", "score": 7.5, "reason": "ok"}
data: {"eval_results": [], "temperature": 0.5, "avg_score": 7.5, "final_verdict": "Pass"}
`

func newTestModel(t *testing.T, svc Service) *model {
	t.Helper()
	cfg := &appconfig.Config{ExportDir: t.TempDir(), Models: []string{"gpt_3.5", "gpt_4"}}
	m := initialModel(context.Background(), cfg, svc, nil)
	_, _ = m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return m
}

// runSubmission submits the form and drives the stream command chain until it ends.
func runSubmission(t *testing.T, m *model, svc Service) {
	t.Helper()
	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if m.submission == "" {
		t.Fatalf("expected a submission id after ctrl+s")
	}
	msg := startStreamCmd(context.Background(), svc, m.submission, m.form.Request())()
	for steps := 0; msg != nil; steps++ {
		if steps > 100 {
			t.Fatalf("stream chain did not terminate")
		}
		_, cmd := m.Update(msg)
		if cmd == nil {
			return
		}
		msg = cmd()
	}
}

func TestSubmitStreamsRowsAndSummary(t *testing.T) {
	svc := &fakeService{body: threeIterations}
	m := newTestModel(t, svc)
	m.form.Set(evaluation.FieldIterations, "3")
	m.syncFields()

	runSubmission(t, m, svc)

	if got := m.results.BodyRows(); got != 3 {
		t.Fatalf("expected 3 body rows, got %d", got)
	}
	paragraphs := m.results.Paragraphs()
	if len(paragraphs) != 2 || paragraphs[0] != "Average Score: 7.5" || paragraphs[1] != "Final Verdict: Pass" {
		t.Fatalf("unexpected paragraphs: %v", paragraphs)
	}
	if !m.results.Exportable() || m.results.Busy() {
		t.Fatalf("expected idle exportable view")
	}
	if m.cancel != nil {
		t.Fatalf("expected submission context released after summary")
	}
	if svc.gotRequest.Iterations != "3" || svc.gotRequest.Model != "gpt_3.5" {
		t.Fatalf("unexpected request: %+v", svc.gotRequest)
	}
	if !strings.Contains(m.View(), "Final Verdict: Pass") {
		t.Fatalf("expected summary in view")
	}
}

func TestMalformedSummaryShowsProcessingError(t *testing.T) {
	svc := &fakeService{body: "data: {\"iteration\": 1, \"score\": 3}\ndata: not json\n"}
	m := newTestModel(t, svc)

	runSubmission(t, m, svc)

	if m.results.Status() != results.MsgProcessingError {
		t.Fatalf("expected processing error, got %q", m.results.Status())
	}
	if m.results.HasTable() || m.results.Exportable() {
		t.Fatalf("expected no table and no export control")
	}
}

func TestStreamCutShortShowsProcessingError(t *testing.T) {
	svc := &fakeService{body: "data: {\"iteration\": 1, \"score\": 7}\n\ndata: {\"iteration\": 2, \"score\": 8}\n"}
	m := newTestModel(t, svc)
	m.form.Set(evaluation.FieldIterations, "3")
	m.syncFields()

	runSubmission(t, m, svc)

	if m.results.Status() != results.MsgProcessingError {
		t.Fatalf("expected processing error, got %q", m.results.Status())
	}
	if m.results.Exportable() || len(m.results.Paragraphs()) != 0 {
		t.Fatalf("expected no summary and no export control")
	}
	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlE})
	if _, err := os.Stat(filepath.Join(m.config.ExportDir, export.FileName)); !os.IsNotExist(err) {
		t.Fatalf("expected no export file, got %v", err)
	}
}

func TestRequestFailureShowsRequestError(t *testing.T) {
	svc := &fakeService{streamErr: errors.New("connection refused")}
	m := newTestModel(t, svc)

	runSubmission(t, m, svc)

	if m.results.Status() != results.MsgRequestError {
		t.Fatalf("expected request error, got %q", m.results.Status())
	}
	if m.cancel != nil {
		t.Fatalf("expected cancel to be released")
	}
}

func TestStaleSubmissionMessagesAreDropped(t *testing.T) {
	svc := &fakeService{}
	m := newTestModel(t, svc)

	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	first := m.submission
	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if m.submission == first {
		t.Fatalf("expected a new submission id")
	}

	one := 1
	_, cmd := m.Update(streamEventMsg{id: first, ok: true, ev: stream.Event{
		Kind:      stream.KindIteration,
		Iteration: evaluation.Event{Iteration: &one},
	}})
	if cmd != nil || m.results.BodyRows() != 0 {
		t.Fatalf("expected stale event to be ignored")
	}
	_, _ = m.Update(streamFailedMsg{id: first, err: errors.New("boom")})
	if m.results.Status() != results.MsgProcessingInputs {
		t.Fatalf("stale failure changed status to %q", m.results.Status())
	}
}

func TestClearFieldsKey(t *testing.T) {
	m := newTestModel(t, &fakeService{})
	for name, v := range map[string]string{
		evaluation.FieldPrompt:         "p",
		evaluation.FieldCriteria:       "c",
		evaluation.FieldExpectedResult: "e",
		evaluation.FieldTemperature:    "0.9",
	} {
		m.form.Set(name, v)
	}
	m.syncFields()

	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlL})

	for _, f := range m.fields {
		want := m.form.Get(f.name)
		if f.value() != want {
			t.Fatalf("widget %s = %q, form = %q", f.name, f.value(), want)
		}
	}
	if m.form.Get(evaluation.FieldPrompt) != "" || m.form.Get(evaluation.FieldTemperature) != "0.9" {
		t.Fatalf("unexpected form after clear: prompt=%q temperature=%q",
			m.form.Get(evaluation.FieldPrompt), m.form.Get(evaluation.FieldTemperature))
	}
}

func TestTypingUpdatesForm(t *testing.T) {
	m := newTestModel(t, &fakeService{})
	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.focusedField().name != evaluation.FieldTemperature {
		t.Fatalf("expected temperature focused, got %s", m.focusedField().name)
	}
	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("5")})
	if got := m.form.Get(evaluation.FieldTemperature); got != "0.55" {
		t.Fatalf("expected typed value in form, got %q", got)
	}
	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.focusedField().name != evaluation.FieldIterations {
		t.Fatalf("expected focus to wrap to iterations, got %s", m.focusedField().name)
	}
}

func TestModelPicker(t *testing.T) {
	m := newTestModel(t, &fakeService{})

	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !m.picking {
		t.Fatalf("expected picker to open on the model field")
	}
	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.picking {
		t.Fatalf("expected picker to close")
	}
	if got := m.form.Get(evaluation.FieldModel); got != "gpt_4" {
		t.Fatalf("expected gpt_4 selected, got %q", got)
	}
	if m.fields[0].value() != "gpt_4" {
		t.Fatalf("expected model widget synced, got %q", m.fields[0].value())
	}
}

func TestDefaultsLoadedMsg(t *testing.T) {
	m := newTestModel(t, &fakeService{})

	_, _ = m.Update(defaultsLoadedMsg{values: map[string]string{evaluation.FieldTemperature: "0.7"}})
	if m.form.Get(evaluation.FieldTemperature) != "0.7" || m.fields[1].value() != "0.7" {
		t.Fatalf("expected defaults applied to form and widget")
	}

	_, _ = m.Update(defaultsLoadedMsg{err: errors.New("404")})
	if m.form.Get(evaluation.FieldModel) != "gpt_3.5" {
		t.Fatalf("expected static default model kept")
	}
}

func TestExportKey(t *testing.T) {
	svc := &fakeService{body: threeIterations}
	m := newTestModel(t, svc)

	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlE})
	if m.notice != "" {
		t.Fatalf("expected export to be refused before results exist")
	}

	runSubmission(t, m, svc)
	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlE})

	path := filepath.Join(m.config.ExportDir, export.FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.HasPrefix(string(data), `"Date","Temperature","Iteration"`) {
		t.Fatalf("unexpected export: %s", data)
	}
	if !strings.Contains(m.notice, path) {
		t.Fatalf("expected notice to name %s, got %q", path, m.notice)
	}
}

func TestBatchUpload(t *testing.T) {
	svc := &fakeService{upload: []byte("a,b\n1,2\n")}
	m := newTestModel(t, svc)
	src := filepath.Join(t.TempDir(), "batch.csv")
	if err := os.WriteFile(src, []byte("prompt\nhi\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	if m.tab != tabBatch {
		t.Fatalf("expected batch tab")
	}
	m.uploadPath.SetValue(src)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if !m.uploading || cmd == nil {
		t.Fatalf("expected upload in flight")
	}
	if !strings.Contains(m.View(), "Uploading...") {
		t.Fatalf("expected spinner text in view")
	}

	msg := uploadCmd(context.Background(), svc, src, m.config.ExportDir)()
	_, _ = m.Update(msg)
	if m.uploading {
		t.Fatalf("expected upload finished")
	}
	data, err := os.ReadFile(filepath.Join(m.config.ExportDir, export.FileName))
	if err != nil || string(data) != "a,b\n1,2\n" {
		t.Fatalf("expected response saved verbatim, got %q (%v)", data, err)
	}
	if svc.gotFile != src {
		t.Fatalf("unexpected uploaded file %q", svc.gotFile)
	}
}

func TestBatchUploadErrorIsLoggedOnly(t *testing.T) {
	svc := &fakeService{uploadErr: errors.New("500")}
	m := newTestModel(t, svc)
	m.uploading = true

	_, _ = m.Update(uploadDoneMsg{err: errors.New("500")})
	if m.uploading || m.notice != "" || m.results.Status() != "" {
		t.Fatalf("expected upload error to leave the view untouched")
	}
}

func TestQuit(t *testing.T) {
	m := newTestModel(t, &fakeService{})
	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if m.cancel != nil {
		t.Fatal("expected in-flight submission cancelled on quit")
	}
}
