package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/germanamz/claudeproxy/pkg/config"
	"github.com/germanamz/claudeproxy/pkg/engine"
	"github.com/germanamz/claudeproxy/pkg/logging"
	"github.com/spf13/cobra"
)

var rootFlags struct {
	configPath string
	envPath    string
	logLevel   string
	logFormat  string
}

var rootCmd = &cobra.Command{
	Use:   "claudeproxy",
	Short: "Expose the Anthropic Messages API as an MCP tool and REST endpoints",
	Long: `claudeproxy forwards (model, prompt, max_tokens) requests to the Anthropic
Messages API and returns the reply text. The same call_claude tool is served
over MCP stdio, MCP SSE / streamable HTTP, and a REST tool envelope; a plain
completion API is also available.

The API key is read from ANTHROPIC_API_KEY (a .env file is loaded first).
Without it the servers still start and every call reports a configuration
error.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "claudeproxy:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootFlags.configPath, "config", "c", "", "YAML config file (optional)")
	rootCmd.PersistentFlags().StringVar(&rootFlags.envPath, "env", ".env", "dotenv file loaded before the config")
	rootCmd.PersistentFlags().StringVar(&rootFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&rootFlags.logFormat, "log-format", "", "override log format (json, console)")
}

// loadConfig resolves configuration: .env, then defaults, YAML and
// environment, then flag overrides.
func loadConfig() (config.Config, error) {
	if err := config.LoadDotEnv(rootFlags.envPath); err != nil {
		return config.Config{}, err
	}

	cfg, err := config.Load(rootFlags.configPath)
	if err != nil {
		return config.Config{}, err
	}

	if rootFlags.logLevel != "" {
		cfg.Log.Level = rootFlags.logLevel
	}
	if rootFlags.logFormat != "" {
		cfg.Log.Format = rootFlags.logFormat
	}

	return cfg, nil
}

// newEngine builds the logger and the engine from cfg. The returned closer
// releases the log file, if any.
func newEngine(cfg config.Config) (*engine.Engine, io.Closer, error) {
	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	logging.SetGlobal(logger)

	e, err := engine.New(cfg, logger, nil)
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}

	return e, closer, nil
}

// runEngine loads configuration, lets adjust modify it, builds an engine
// and passes it to run.
func runEngine(cmd *cobra.Command, adjust func(*config.Config), run func(context.Context, *engine.Engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if adjust != nil {
		adjust(&cfg)
	}

	e, closer, err := newEngine(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	return run(cmd.Context(), e)
}
