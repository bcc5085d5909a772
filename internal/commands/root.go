// internal/commands/root.go
package llmevaluator

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mwiater/llmevaluator/internal/appconfig"
	"github.com/mwiater/llmevaluator/internal/client"
	"github.com/mwiater/llmevaluator/internal/defaults"
	"github.com/mwiater/llmevaluator/internal/logging"
)

var (
	cfgFile       string
	currentConfig *appconfig.Config
	appVersion    = "dev"
	appCommit     = "none"
	appDate       = "unknown"
)

// rootCmd represents the base command. Without a subcommand it opens the TUI.
var rootCmd = &cobra.Command{
	Use:   "llmevaluator",
	Short: "llmevaluator: terminal client for the LLM evaluation service",
	Long: `llmevaluator submits evaluation requests to an evaluation service, follows
the streamed progress of each iteration, renders the results table and exports
it as evaluation_results.csv. Run without a subcommand to open the interactive
interface.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureConfigLoaded(); err != nil {
			return err
		}

		for _, name := range []string{"debug", "noColor"} {
			if !cmd.Flags().Changed(name) {
				_ = cmd.Flags().Set(name, strconv.FormatBool(viper.GetBool(name)))
			}
		}

		var cfg appconfig.Config
		if err := viper.Unmarshal(&cfg); err != nil {
			return fmt.Errorf("unmarshal config: %w", err)
		}
		cfg.ConfigPath = cfgFile
		currentConfig = &cfg

		if cfg.NoColor {
			color.NoColor = true
		}

		interactive := !cmd.HasParent() || cmd.Name() == "tui"
		if err := logging.Init(currentConfig.LogFilePath(), cfg.Debug && !interactive); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", appVersion, appCommit, appDate)

	defer logging.Close()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", appconfig.DefaultConfigPath, "config file (JSON or YAML)")

	rootCmd.PersistentFlags().String("server", appconfig.DefaultServerURL, "base URL of the evaluation service")
	rootCmd.PersistentFlags().Int("timeout", 600, "request timeout in seconds")
	rootCmd.PersistentFlags().String("logFile", "", "path to the log file")
	rootCmd.PersistentFlags().String("exportDir", "", "directory evaluation_results.csv is written to")
	rootCmd.PersistentFlags().String("defaultsFile", "", "read form defaults from this file instead of the server")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug output")
	rootCmd.PersistentFlags().Bool("noColor", false, "disable colored output")

	bindConfig()
}

// bindConfig registers defaults and binds the persistent flags to viper keys.
func bindConfig() {
	viper.SetDefault("server", appconfig.DefaultServerURL)
	viper.SetDefault("timeout", 600)
	for _, name := range []string{"server", "timeout", "logFile", "exportDir", "defaultsFile", "debug", "noColor"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	viper.SetEnvPrefix("LLMEVALUATOR")
	viper.AutomaticEnv()
}

// ensureConfigLoaded reads the config file. A missing file is not an error.
func ensureConfigLoaded() error {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to load config: %w", err)
	}
	return nil
}

// GetConfig returns the loaded application configuration for other packages.
func GetConfig() *appconfig.Config {
	if currentConfig == nil {
		return &appconfig.Config{Server: appconfig.DefaultServerURL}
	}
	return currentConfig
}

// DebugEnabled returns true if debug mode is enabled.
func DebugEnabled() bool { return viper.GetBool("debug") }

// SetVersionInfo allows the main package to inject build-time variables.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// newClient builds the evaluation service client for cfg.
func newClient(cfg *appconfig.Config) *client.Client {
	return client.New(cfg)
}

// defaultsSource returns where form defaults are read from: the configured
// local file, or the server's defaults document.
func defaultsSource(cfg *appconfig.Config, svc *client.Client) defaults.Fetcher {
	if cfg.DefaultsFile != "" {
		return defaults.File(cfg.DefaultsFile)
	}
	return svc
}
