package llmevaluator

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mwiater/llmevaluator/internal/logging"
)

// resetFlags restores every flag in the command tree to its default value.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func writeTempConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// useConfig points the command tree at path for the duration of the test.
func useConfig(t *testing.T, path string) {
	t.Helper()
	prevCfgFile := cfgFile
	resetFlags(rootCmd)
	viper.Reset()
	bindConfig()
	cfgFile = path
	viper.SetConfigFile(path)
	t.Cleanup(func() {
		cfgFile = prevCfgFile
		resetFlags(rootCmd)
		viper.Reset()
		bindConfig()
		evaluateOpts = evaluateOptions{}
		currentConfig = nil
	})
	t.Cleanup(func() { _ = logging.Close() })
}

// execute runs the root command with args and returns everything it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs([]string{}) })
	_, err := rootCmd.ExecuteC()
	return buf.String(), err
}

func TestPersistentPreRunEUsesFlagValues(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "llmevaluator.log")
	configPath := writeTempConfig(t, "config.json", `{"server": "http://from-config:5000", "exportDir": "from-config"}`)
	useConfig(t, configPath)

	_ = rootCmd.PersistentFlags().Set("debug", "true")
	_ = rootCmd.PersistentFlags().Set("server", "http://from-flag:9000/")
	_ = rootCmd.PersistentFlags().Set("timeout", "12")
	_ = rootCmd.PersistentFlags().Set("logFile", logPath)

	if err := rootCmd.PersistentPreRunE(rootCmd, []string{}); err != nil {
		t.Fatalf("PersistentPreRunE error: %v", err)
	}

	if currentConfig == nil || currentConfig.ConfigPath != configPath {
		t.Fatalf("expected config loaded with path %s", configPath)
	}
	if !currentConfig.Debug {
		t.Fatalf("expected flag values to flow into config: %+v", currentConfig)
	}
	if got := currentConfig.ServerURL(); got != "http://from-flag:9000" {
		t.Fatalf("expected server flag to override config, got %s", got)
	}
	if currentConfig.TimeoutSeconds != 12 {
		t.Fatalf("expected timeout 12, got %d", currentConfig.TimeoutSeconds)
	}
	if currentConfig.ExportDir != "from-config" {
		t.Fatalf("expected exportDir from config file, got %q", currentConfig.ExportDir)
	}
}

func TestPersistentPreRunEReadsYAML(t *testing.T) {
	configPath := writeTempConfig(t, "config.yaml", "server: http://yaml-host:5000\nmodels:\n  - alpha\n  - beta\n")
	useConfig(t, configPath)
	_ = rootCmd.PersistentFlags().Set("logFile", filepath.Join(t.TempDir(), "log.txt"))

	if err := rootCmd.PersistentPreRunE(rootCmd, []string{}); err != nil {
		t.Fatalf("PersistentPreRunE error: %v", err)
	}
	if got := currentConfig.ServerURL(); got != "http://yaml-host:5000" {
		t.Fatalf("expected YAML server, got %s", got)
	}
	if got := strings.Join(currentConfig.ModelChoices(), ","); got != "alpha,beta" {
		t.Fatalf("expected YAML models, got %s", got)
	}
}

func TestPersistentPreRunEMissingConfigUsesDefaults(t *testing.T) {
	useConfig(t, filepath.Join(t.TempDir(), "missing.json"))
	_ = rootCmd.PersistentFlags().Set("logFile", filepath.Join(t.TempDir(), "log.txt"))

	if err := rootCmd.PersistentPreRunE(rootCmd, []string{}); err != nil {
		t.Fatalf("expected missing config to be tolerated, got %v", err)
	}
	if got := currentConfig.ServerURL(); got != "http://127.0.0.1:5000" {
		t.Fatalf("expected default server, got %s", got)
	}
	if got := currentConfig.RequestTimeout().Seconds(); got != 600 {
		t.Fatalf("expected default timeout, got %v", got)
	}
}

func TestShowConfigCommandOutput(t *testing.T) {
	configPath := writeTempConfig(t, "config.json", "{}")
	useConfig(t, configPath)

	out, err := execute(t, "--logFile", filepath.Join(t.TempDir(), "log.txt"), "--debug", "show", "config")
	if err != nil {
		t.Fatalf("ExecuteC error: %v", err)
	}

	if !strings.Contains(out, "Config file: "+configPath) {
		t.Fatalf("expected config file path in output, got %s", out)
	}
	if !strings.Contains(out, "Debug:           true") {
		t.Fatalf("expected debug in output, got %s", out)
	}
}

func TestListCommands(t *testing.T) {
	useConfig(t, writeTempConfig(t, "config.json", "{}"))

	out, err := execute(t, "--logFile", filepath.Join(t.TempDir(), "log.txt"), "list", "commands")
	if err != nil {
		t.Fatalf("ExecuteC error: %v", err)
	}
	for _, want := range []string{"llmevaluator evaluate", "llmevaluator upload", "llmevaluator show config"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in listing, got %s", want, out)
		}
	}
}
