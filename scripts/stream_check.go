// scripts/stream_check.go
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mwiater/llmevaluator/internal/appconfig"
	"github.com/mwiater/llmevaluator/internal/client"
	"github.com/mwiater/llmevaluator/internal/defaults"
	"github.com/mwiater/llmevaluator/internal/evaluation"
	"github.com/mwiater/llmevaluator/internal/stream"
)

func main() {
	configPath := flag.String("config", appconfig.DefaultConfigPath, "Path to config JSON or YAML")
	serverURL := flag.String("url", "", "Override evaluation service URL")
	iterations := flag.String("iterations", "2", "Iterations to request")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall timeout")
	flag.Parse()

	cfg, err := resolveConfig(*configPath, *serverURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c := client.New(&cfg)
	fmt.Printf("Target service: %s\n\n", c.BaseURL())

	form := evaluation.NewForm()
	if err := checkDefaults(ctx, c, form); err != nil {
		fmt.Fprintf(os.Stderr, "defaults check failed: %v\n", err)
	}

	_ = form.Set(evaluation.FieldIterations, *iterations)
	_ = form.Set(evaluation.FieldPrompt, "What is the capital of France?")
	_ = form.Set(evaluation.FieldCriteria, "Answer names the correct city.")
	_ = form.Set(evaluation.FieldExpectedResult, "Paris")

	if err := checkStream(ctx, c, form.Request()); err != nil {
		fmt.Fprintf(os.Stderr, "stream check failed: %v\n", err)
		os.Exit(1)
	}
}

func resolveConfig(configPath, overrideURL string) (appconfig.Config, error) {
	if overrideURL != "" {
		return appconfig.Config{Server: overrideURL}, nil
	}
	return appconfig.Load(configPath)
}

func checkDefaults(ctx context.Context, c *client.Client, form *evaluation.Form) error {
	fmt.Printf("== /%s ==\n", appconfig.DefaultsDocumentPath)
	raw, err := c.FetchDefaults(ctx)
	if err != nil {
		return err
	}
	fmt.Println("Raw:")
	fmt.Println(indentJSON(raw))

	values, err := defaults.Parse(raw)
	if err != nil {
		fmt.Printf("Parse: %v\n\n", err)
		return nil
	}
	form.Apply(values)
	fmt.Printf("Applied fields: %d\n\n", len(values))
	return nil
}

func checkStream(ctx context.Context, c *client.Client, req evaluation.Request) error {
	fmt.Println("== /evaluate_stream ==")
	id := evaluation.NewSubmissionID()
	start := time.Now()

	body, err := c.EvaluateStream(ctx, id, req)
	if err != nil {
		return err
	}
	defer body.Close()

	var raw bytes.Buffer
	r := stream.NewReader(io.TeeReader(body, &raw))
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fmt.Println("Raw:")
			fmt.Println(strings.TrimSpace(raw.String()))
			return err
		}
		elapsed := time.Since(start).Round(time.Millisecond)
		switch ev.Kind {
		case stream.KindIteration:
			fmt.Printf("%8s iteration=%s score=%s prediction=%q\n", elapsed, ev.Iteration.IterationText(), ev.Iteration.Score, ev.Iteration.PredictionText())
		case stream.KindSummary:
			fmt.Printf("%8s summary results=%d avg_score=%s verdict=%q\n", elapsed, len(ev.Summary.EvalResults), ev.Summary.AvgScore, ev.Summary.FinalVerdictText())
		}
	}
	fmt.Printf("Stream bytes: %d\n\n", raw.Len())
	return nil
}

func indentJSON(body []byte) string {
	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "  "); err != nil {
		return string(body)
	}
	return out.String()
}
