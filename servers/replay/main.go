// main.go
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.yaml.in/yaml/v3"
)

// Scenario is the canned evaluation run the server replays for every request.
type Scenario struct {
	Host        string         `yaml:"host"`
	Port        int            `yaml:"port"`
	DelayMS     int            `yaml:"delay_ms"`
	Temperature *float64       `yaml:"temperature"`
	Iterations  []Result       `yaml:"iterations"`
	AvgScore    *float64       `yaml:"avg_score"`
	Verdict     *string        `yaml:"final_verdict"`
	Defaults    map[string]any `yaml:"defaults"`

	// Failure injects a fault: "status" answers 500, "malformed_summary"
	// ends the stream with a payload that is not JSON.
	Failure string `yaml:"failure"`
}

// Result is one replayed evaluation iteration.
type Result struct {
	Prediction *string  `yaml:"prediction" json:"prediction"`
	Score      *float64 `yaml:"score" json:"score"`
	Reason     *string  `yaml:"reason" json:"reason"`
}

type iterationEvent struct {
	Iteration int `json:"iteration"`
	Result
}

type summaryPayload struct {
	EvalResults []iterationEvent `json:"eval_results"`
	Temperature any              `json:"temperature"`
	AvgScore    *float64         `json:"avg_score"`
	Verdict     *string          `json:"final_verdict"`
}

type Server struct {
	mu       sync.Mutex
	scenario *Scenario
}

func main() {
	path := flag.String("scenario", "servers/replay/scenario.yml", "path to the scenario YAML")
	flag.Parse()

	scenario, err := loadScenario(*path)
	if err != nil {
		log.Fatalf("scenario error: %v", err)
	}

	s := &Server{scenario: scenario}
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", scenario.Host, scenario.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("replay scenario: iterations=%d delay_ms=%d failure=%q", len(scenario.Iterations), scenario.DelayMS, scenario.Failure)
	log.Printf("listening on %s", srv.Addr)
	log.Fatal(srv.ListenAndServe())
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /static/js/defaults.json", s.handleDefaults)
	mux.HandleFunc("POST /evaluate_stream", s.handleStream)
	mux.HandleFunc("POST /evaluate", s.handleEvaluate)
	mux.HandleFunc("POST /upload_csv", s.handleUpload)
	return mux
}

func (s *Server) handleDefaults(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.scenario.Defaults)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	// One run at a time keeps the replayed output readable.
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	log.Printf("evaluate_stream request from %s: model=%s iterations=%s", r.RemoteAddr, r.PostForm.Get("model"), r.PostForm.Get("iterations"))
	if s.scenario.Failure == "status" {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "injected failure"})
		return
	}

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	events := s.scenario.events()
	for _, ev := range events {
		select {
		case <-r.Context().Done():
			log.Printf("evaluate_stream client went away")
			return
		case <-time.After(time.Duration(s.scenario.DelayMS) * time.Millisecond):
		}
		writeData(w, ev)
		if flusher != nil {
			flusher.Flush()
		}
	}

	if s.scenario.Failure == "malformed_summary" {
		fmt.Fprint(w, "data: {not json")
		return
	}
	writeData(w, s.scenario.summary(r.PostForm.Get("temperature"), events))
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	log.Printf("evaluate request from %s: model=%s", r.RemoteAddr, r.FormValue("model"))
	if s.scenario.Failure == "status" {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "injected failure"})
		return
	}
	writeJSON(w, http.StatusOK, s.scenario.summary(r.FormValue("temperature"), s.scenario.events()))
}

// handleUpload answers a batch file with one result row per input row.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	log.Printf("upload_csv request from %s: file=%s bytes=%d", r.RemoteAddr, header.Filename, len(data))

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	var b strings.Builder
	b.WriteString(`"Row","Input","Final Verdict"` + "\n")
	for i, line := range lines[1:] {
		fmt.Fprintf(&b, "\"%d\",\"%s\",\"%s\"\n", i+1, strings.ReplaceAll(line, `"`, `""`), s.scenario.verdict())
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=evaluation_results.csv")
	_, _ = w.Write([]byte(b.String()))
}

func (sc *Scenario) events() []iterationEvent {
	out := make([]iterationEvent, len(sc.Iterations))
	for i, it := range sc.Iterations {
		out[i] = iterationEvent{Iteration: i + 1, Result: it}
	}
	return out
}

func (sc *Scenario) summary(requested string, events []iterationEvent) summaryPayload {
	var temperature any
	if sc.Temperature != nil {
		temperature = *sc.Temperature
	} else if v, err := strconv.ParseFloat(requested, 64); err == nil {
		temperature = v
	}
	return summaryPayload{EvalResults: events, Temperature: temperature, AvgScore: sc.average(), Verdict: sc.Verdict}
}

func (sc *Scenario) average() *float64 {
	if sc.AvgScore != nil {
		return sc.AvgScore
	}
	var sum float64
	var n int
	for _, it := range sc.Iterations {
		if it.Score != nil {
			sum += *it.Score
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

func (sc *Scenario) verdict() string {
	if sc.Verdict == nil {
		return "N/A"
	}
	return *sc.Verdict
}

func loadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	switch sc.Failure {
	case "", "status", "malformed_summary":
	default:
		return nil, fmt.Errorf("invalid failure %q (expected \"status\" or \"malformed_summary\")", sc.Failure)
	}
	if len(sc.Iterations) == 0 {
		return nil, errors.New("scenario needs at least one iteration")
	}
	if sc.Host == "" {
		sc.Host = "127.0.0.1"
	}
	if sc.Port == 0 {
		sc.Port = 5000
	}
	if sc.Defaults == nil {
		sc.Defaults = map[string]any{}
	}
	return &sc, nil
}

func writeData(w io.Writer, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("encode event: %v", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n", data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
