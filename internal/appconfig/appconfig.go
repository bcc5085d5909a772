// internal/appconfig/appconfig.go
// Package appconfig manages loading and interpreting application configuration.
package appconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

const (
	// DefaultConfigPath is the default path to the application's configuration file.
	DefaultConfigPath = "config/config.json"
	// DefaultServerURL is the evaluation service used when no server is configured.
	DefaultServerURL = "http://127.0.0.1:5000"
	// DefaultsDocumentPath is the defaults document served next to the web page.
	DefaultsDocumentPath = "static/js/defaults.json"
	// defaultRequestTimeout is the default timeout for HTTP requests.
	defaultRequestTimeout = 600 * time.Second
)

// DefaultModels mirrors the model choices offered by the evaluation page.
var DefaultModels = []string{
	"gpt_3.5",
	"gpt_4",
	"gpt_4o",
	"llama_3_8b",
	"llama_3_70b",
	"claude_3_sonnet",
	"claude_3_haiku",
	"claude_3_opus",
	"claude_v2.1_200k",
	"amazon_titan_text_g1",
}

// Config represents the top-level application configuration.
type Config struct {
	Server         string   `json:"server" yaml:"server" mapstructure:"server"`
	TimeoutSeconds int      `json:"timeout,omitempty" yaml:"timeout,omitempty" mapstructure:"timeout"`
	LogFile        string   `json:"logFile,omitempty" yaml:"logFile,omitempty" mapstructure:"logFile"`
	ExportDir      string   `json:"exportDir,omitempty" yaml:"exportDir,omitempty" mapstructure:"exportDir"`
	DefaultsFile   string   `json:"defaultsFile,omitempty" yaml:"defaultsFile,omitempty" mapstructure:"defaultsFile"`
	Models         []string `json:"models,omitempty" yaml:"models,omitempty" mapstructure:"models"`
	Debug          bool     `json:"debug" yaml:"debug" mapstructure:"debug"`
	NoColor        bool     `json:"noColor" yaml:"noColor" mapstructure:"noColor"`
	ConfigPath     string   `json:"-" yaml:"-" mapstructure:"-"`
}

// RequestTimeout returns the timeout duration for HTTP requests, falling back to the default if not specified.
func (c Config) RequestTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return defaultRequestTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ServerURL returns the configured base URL without a trailing slash.
func (c Config) ServerURL() string {
	server := strings.TrimSpace(c.Server)
	if server == "" {
		server = DefaultServerURL
	}
	return strings.TrimRight(server, "/")
}

// LogFilePath returns the path to the application log file, applying a default if not set.
func (c Config) LogFilePath() string {
	if path := c.LogFile; strings.TrimSpace(path) != "" {
		return path
	}
	return "llmevaluator.log"
}

// ExportDirectory returns the directory CSV files are written to.
func (c Config) ExportDirectory() string {
	if dir := strings.TrimSpace(c.ExportDir); dir != "" {
		return dir
	}
	return "."
}

// ModelChoices returns the configured model list or the built-in choices.
func (c Config) ModelChoices() []string {
	var out []string
	for _, m := range c.Models {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), DefaultModels...)
	}
	return out
}

// Load reads the application configuration from the specified path.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	config, err := loadFromPath(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("no configuration file found at %q", path)
		}
		return Config{}, fmt.Errorf("could not read config file %q: %w", path, err)
	}
	config.ConfigPath = path
	return config, nil
}

// loadFromPath is a helper function that loads the configuration from a specific file path.
// Files ending in .yaml or .yml are decoded as YAML, everything else as JSON.
func loadFromPath(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var config Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, err
		}
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			return Config{}, err
		}
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = int(defaultRequestTimeout.Seconds())
	}
	if strings.TrimSpace(config.Server) == "" {
		config.Server = DefaultServerURL
	}

	return config, nil
}
