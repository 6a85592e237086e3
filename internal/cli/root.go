// Package cli implements the supportdesk command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tOgg1/supportdesk/internal/api"
	"github.com/tOgg1/supportdesk/internal/config"
	"github.com/tOgg1/supportdesk/internal/logging"
	"github.com/tOgg1/supportdesk/internal/metrics"
)

var (
	cfgFile     string
	flagAPIURL  string
	flagToken   string
	flagLocale  string
	flagTheme   string
	flagLevel   string
	flagVerbose bool
	flagJSON    bool

	appConfig *config.Config
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "supportdesk [conversation-id]",
	Short: "Support dashboard for student conversations",
	Long: `supportdesk lets an operator follow a student's chat with the assistant
in real time and step in with replies.

Run without arguments for the interactive dashboard, or pass a conversation id
to open it directly. Use "supportdesk watch" when no terminal is attached.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd.Context(), args)
	},
}

func init() {
	// Assigned here rather than in the literal to avoid an initialization cycle
	// (setup -> initLogging -> rootCmd).
	rootCmd.PersistentPreRunE = setup

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ~/.config/supportdesk/config.yaml)")
	flags.StringVar(&flagAPIURL, "api-url", "", "backend origin, e.g. https://desk.example.com")
	flags.StringVar(&flagToken, "token", "", "operator bearer token")
	flags.StringVar(&flagLocale, "locale", "", "role labels and dates: it|en")
	flags.StringVar(&flagTheme, "theme", "", "theme: default|high-contrast")
	flags.StringVar(&flagLevel, "log-level", "", "log level: debug|info|warn|error")
	flags.BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	flags.BoolVar(&flagJSON, "json", false, "JSON output")
}

// Execute runs the root command.
func Execute(version string) error {
	rootCmd.Version = version
	defer closeLogging()
	return rootCmd.ExecuteContext(context.Background())
}

// GetConfig returns the loaded configuration, or nil before setup ran.
func GetConfig() *config.Config {
	return appConfig
}

// IsVerbose reports whether --verbose was given.
func IsVerbose() bool {
	return flagVerbose
}

// IsJSONOutput reports whether --json was given.
func IsJSONOutput() bool {
	return flagJSON
}

func setup(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader()
	if cfgFile != "" {
		loader.SetConfigFile(cfgFile)
	}
	overrides := map[string]string{
		"api-url":   "api.base_url",
		"token":     "api.token",
		"locale":    "ui.locale",
		"theme":     "ui.theme",
		"log-level": "logging.level",
	}
	for flag, key := range overrides {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			loader.Set(key, f.Value.String())
		}
	}
	if flagVerbose {
		loader.Set("logging.level", "debug")
	}

	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	appConfig = cfg

	if err := initLogging(cmd, cfg); err != nil {
		return err
	}
	if used := loader.ConfigFileUsed(); used != "" {
		logging.Logger.Debug().Str("path", used).Msg("config loaded")
	}
	checkToken(cfg.API.Token)
	startMetrics(cmd.Context(), cfg.Metrics.Addr)
	return nil
}

// initLogging sends logs to the log file for the TUI, which owns the
// terminal, and to stderr otherwise.
func initLogging(cmd *cobra.Command, cfg *config.Config) error {
	logCfg := logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	}
	if cmd == rootCmd {
		logCfg.File = cfg.Logging.File
	}
	closer, err := logging.Init(logCfg)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	logCloser = closer
	return nil
}

func closeLogging() {
	if logCloser != nil {
		_ = logCloser.Close()
		logCloser = nil
	}
}

func checkToken(token string) {
	info, err := api.InspectToken(token, time.Now())
	switch {
	case errors.Is(err, api.ErrTokenExpired):
		logging.Logger.Warn().Time("expired_at", info.ExpiresAt).Msg("api token has expired; requests will be rejected")
	case err != nil:
		logging.Logger.Debug().Err(err).Msg("could not read api token claims")
	case info.JWT:
		logging.Logger.Debug().Str("subject", info.Subject).Time("expires_at", info.ExpiresAt).Msg("api token")
	}
}

func startMetrics(ctx context.Context, addr string) {
	if addr == "" {
		return
	}
	go func() {
		if err := metrics.Serve(ctx, addr); err != nil {
			logging.Logger.Warn().Err(err).Str("addr", addr).Msg("metrics endpoint stopped")
		}
	}()
	logging.Logger.Info().Str("addr", addr).Msg("serving metrics")
}
