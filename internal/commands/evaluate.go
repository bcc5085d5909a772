// internal/commands/evaluate.go
package llmevaluator

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mwiater/llmevaluator/internal/client"
	"github.com/mwiater/llmevaluator/internal/defaults"
	"github.com/mwiater/llmevaluator/internal/evaluation"
	"github.com/mwiater/llmevaluator/internal/export"
	"github.com/mwiater/llmevaluator/internal/logging"
	"github.com/mwiater/llmevaluator/internal/results"
	"github.com/mwiater/llmevaluator/internal/stream"
)

// evaluateOptions holds the local flags of the evaluate command.
type evaluateOptions struct {
	noStream     bool
	export       bool
	skipDefaults bool
	plain        bool
}

var evaluateOpts evaluateOptions

// fieldFlags maps form fields to their flag names.
var fieldFlags = map[string]string{
	evaluation.FieldModel:          "model",
	evaluation.FieldTemperature:    "temperature",
	evaluation.FieldMaxNewTokens:   "max-new-tokens",
	evaluation.FieldPrompt:         "prompt",
	evaluation.FieldCriteria:       "criteria",
	evaluation.FieldExpectedResult: "expected-result",
	evaluation.FieldIterations:     "iterations",
}

var (
	progressColor = color.New(color.FgCyan)
	successColor  = color.New(color.FgGreen)
	failureColor  = color.New(color.FgRed, color.Bold)
)

// evaluateCmd submits one evaluation without the interactive interface.
var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Run one evaluation and print the results table",
	Long: `The 'evaluate' command fills the form from the defaults document, applies
the field flags given on the command line, submits the request and prints each
iteration as it streams in. With --export the finished table is written to
evaluation_results.csv in the export directory.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		form, err := buildForm(cmd, evaluateOpts.skipDefaults)
		if err != nil {
			return err
		}
		return runEvaluate(cmd.Context(), cmd.OutOrStdout(), form, evaluateOpts)
	},
}

func init() {
	for _, name := range evaluation.FieldNames {
		evaluateCmd.Flags().String(fieldFlags[name], evaluation.StaticDefaults[name], fmt.Sprintf("form field %q", name))
	}
	evaluateCmd.Flags().BoolVar(&evaluateOpts.noStream, "no-stream", false, "use the non-streaming /evaluate endpoint")
	evaluateCmd.Flags().BoolVar(&evaluateOpts.export, "export", false, "write evaluation_results.csv when the run finishes")
	evaluateCmd.Flags().BoolVar(&evaluateOpts.skipDefaults, "skip-defaults", false, "do not load the defaults document")
	evaluateCmd.Flags().BoolVar(&evaluateOpts.plain, "plain", false, "print tab separated text instead of a drawn table")

	rootCmd.AddCommand(evaluateCmd)
}

// buildForm starts from the static defaults, applies the defaults document
// unless skipped, then applies every field flag set on the command line.
func buildForm(cmd *cobra.Command, skipDefaults bool) (*evaluation.Form, error) {
	cfg := GetConfig()
	form := evaluation.NewForm()
	if !skipDefaults {
		defaults.Load(cmd.Context(), defaultsSource(cfg, newClient(cfg)), form)
	}
	for _, name := range evaluation.FieldNames {
		flag := fieldFlags[name]
		if !cmd.Flags().Changed(flag) {
			continue
		}
		value, err := cmd.Flags().GetString(flag)
		if err != nil {
			return nil, err
		}
		if err := form.Set(name, value); err != nil {
			return nil, err
		}
	}
	return form, nil
}

// runEvaluate submits the form and renders the results area to out.
func runEvaluate(ctx context.Context, out io.Writer, form *evaluation.Form, opts evaluateOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := GetConfig()
	svc := newClient(cfg)
	req := form.Request()
	id := evaluation.NewSubmissionID()

	view := results.NewView()
	view.Begin(form.Iterations())
	progressColor.Fprintln(out, view.Status())
	logging.LogEvent("submission %s started: model=%s iterations=%s", id, req.Model, req.Iterations)

	var err error
	if opts.noStream {
		err = evaluateOnce(ctx, svc, id, req, view)
	} else {
		err = evaluateStream(ctx, out, svc, id, req, view)
	}
	if err != nil {
		logging.LogError(fmt.Sprintf("submission %s", id), err)
		view.Fail(results.FailureMessage(err))
		failureColor.Fprintln(out, view.Status())
		return err
	}

	printResults(out, view, opts.plain)

	if opts.export {
		path, err := export.WriteFile(cfg.ExportDirectory(), view)
		if err != nil {
			return err
		}
		logging.LogEvent("results exported: %s", path)
		successColor.Fprintf(out, "Exported %s\n", path)
	}
	return nil
}

func evaluateOnce(ctx context.Context, svc *client.Client, id string, req evaluation.Request, view *results.View) error {
	summary, err := svc.Evaluate(ctx, id, req)
	if err != nil {
		return err
	}
	view.ApplySummary(summary)
	return nil
}

func evaluateStream(ctx context.Context, out io.Writer, svc *client.Client, id string, req evaluation.Request, view *results.View) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	body, err := svc.EvaluateStream(ctx, id, req)
	if err != nil {
		return err
	}
	defer body.Close()

	for ev := range stream.Events(ctx, body) {
		switch ev.Kind {
		case stream.KindIteration:
			if view.ApplyEvent(ev.Iteration, req.Temperature) {
				progressColor.Fprintf(out, "iteration %s: score %s\n", ev.Iteration.IterationText(), ev.Iteration.Score)
				progressColor.Fprintln(out, view.Status())
			}
		case stream.KindSummary:
			view.ApplySummary(ev.Summary)
			logging.LogEvent("submission %s finished: avg_score=%s verdict=%s", id, ev.Summary.AvgScore, ev.Summary.FinalVerdictText())
		case stream.KindError:
			return ev.Err
		}
	}
	if view.Busy() {
		if err := ctx.Err(); err != nil {
			return err
		}
		return errors.New("evaluation stream ended without a summary")
	}
	return nil
}

func printResults(out io.Writer, view *results.View, plain bool) {
	if plain || color.NoColor {
		fmt.Fprintln(out, view.Text())
		return
	}
	fmt.Fprintln(out, view.Render("", 0))
}
