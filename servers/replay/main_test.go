// servers/replay/main_test.go
package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mwiater/llmevaluator/internal/appconfig"
	"github.com/mwiater/llmevaluator/internal/client"
	"github.com/mwiater/llmevaluator/internal/defaults"
	"github.com/mwiater/llmevaluator/internal/evaluation"
	"github.com/mwiater/llmevaluator/internal/stream"
)

const scenarioYAML = `
delay_ms: 0
final_verdict: Pass
defaults:
  temperature: 0.7
iterations:
  - prediction: "a"
    score: 7
    reason: "ok"
  - prediction: "b"
    score: 8
    reason: "ok"
`

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	return path
}

func newTestServer(t *testing.T, content string) (*httptest.Server, *client.Client) {
	t.Helper()
	sc, err := loadScenario(writeScenario(t, content))
	if err != nil {
		t.Fatalf("loadScenario: %v", err)
	}
	srv := httptest.NewServer((&Server{scenario: sc}).routes())
	t.Cleanup(srv.Close)
	return srv, client.New(&appconfig.Config{Server: srv.URL})
}

func TestLoadScenarioDefaults(t *testing.T) {
	sc, err := loadScenario(writeScenario(t, scenarioYAML))
	if err != nil {
		t.Fatalf("loadScenario: %v", err)
	}
	if sc.Host != "127.0.0.1" || sc.Port != 5000 {
		t.Fatalf("expected default address, got %s:%d", sc.Host, sc.Port)
	}
	if avg := sc.average(); avg == nil || *avg != 7.5 {
		t.Fatalf("expected computed average 7.5, got %v", avg)
	}
}

func TestLoadScenarioRejectsInvalid(t *testing.T) {
	if _, err := loadScenario(writeScenario(t, "iterations: []\n")); err == nil {
		t.Fatal("expected error for a scenario without iterations")
	}
	if _, err := loadScenario(writeScenario(t, scenarioYAML+"failure: sometimes\n")); err == nil {
		t.Fatal("expected error for an unknown failure mode")
	}
}

func TestStreamDecodesWithClient(t *testing.T) {
	_, c := newTestServer(t, scenarioYAML)
	req := evaluation.NewForm().Request()

	body, err := c.EvaluateStream(context.Background(), "test", req)
	if err != nil {
		t.Fatalf("EvaluateStream: %v", err)
	}
	defer body.Close()

	var kinds []stream.Kind
	var last stream.Event
	for ev := range stream.Events(context.Background(), body) {
		kinds = append(kinds, ev.Kind)
		last = ev
	}
	if len(kinds) != 3 || kinds[2] != stream.KindSummary {
		t.Fatalf("expected two iterations and a summary, got %v", kinds)
	}
	if got := last.Summary.Temperature.String(); got != "0.5" {
		t.Fatalf("expected requested temperature echoed, got %s", got)
	}
	if got := last.Summary.FinalVerdictText(); got != "Pass" {
		t.Fatalf("expected verdict Pass, got %s", got)
	}
}

func TestMalformedSummaryFailure(t *testing.T) {
	_, c := newTestServer(t, scenarioYAML+"failure: malformed_summary\n")

	body, err := c.EvaluateStream(context.Background(), "test", evaluation.NewForm().Request())
	if err != nil {
		t.Fatalf("EvaluateStream: %v", err)
	}
	defer body.Close()

	r := stream.NewReader(body)
	for {
		_, err = r.Next()
		if err != nil {
			break
		}
	}
	if !errors.Is(err, stream.ErrMalformedSummary) {
		t.Fatalf("expected ErrMalformedSummary, got %v", err)
	}
}

func TestStatusFailure(t *testing.T) {
	_, c := newTestServer(t, scenarioYAML+"failure: status\n")

	_, err := c.EvaluateStream(context.Background(), "test", evaluation.NewForm().Request())
	var statusErr *client.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusInternalServerError {
		t.Fatalf("expected StatusError 500, got %v", err)
	}
}

func TestEvaluateAndDefaults(t *testing.T) {
	_, c := newTestServer(t, scenarioYAML)

	summary, err := c.Evaluate(context.Background(), "test", evaluation.NewForm().Request())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(summary.EvalResults) != 2 || summary.AvgScore.String() != "7.5" {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	values, err := defaults.Fetch(context.Background(), c)
	if err != nil {
		t.Fatalf("defaults.Fetch: %v", err)
	}
	if values[evaluation.FieldTemperature] != "0.7" {
		t.Fatalf("expected defaults temperature 0.7, got %v", values)
	}
}

func TestUploadAnswersPerRow(t *testing.T) {
	_, c := newTestServer(t, scenarioYAML)

	data, err := c.UploadCSV(context.Background(), "batch.csv", strings.NewReader("prompt\nfirst\nsecond\n"))
	if err != nil {
		t.Fatalf("UploadCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 || lines[2] != `"2","second","Pass"` {
		t.Fatalf("unexpected upload response: %q", data)
	}
}
