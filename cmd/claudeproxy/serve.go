package main

import (
	"context"
	"os"

	"github.com/germanamz/claudeproxy/pkg/config"
	"github.com/germanamz/claudeproxy/pkg/engine"
	"github.com/spf13/cobra"
)

var serveFlags struct {
	restAddr     string
	completeAddr string
	sseAddr      string
}

var stdioCmd = &cobra.Command{
	Use:   "stdio",
	Short: "Serve the call_claude tool over MCP stdio",
	Long: `Serve MCP over stdin/stdout. Logs always go to stderr because stdout
carries the protocol.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runEngine(cmd, forceStderr, func(ctx context.Context, e *engine.Engine) error {
			return e.ServeStdio(ctx, os.Stdin, os.Stdout)
		})
	},
}

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Serve the REST tool envelope",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runEngine(cmd, overrideAddrs, func(ctx context.Context, e *engine.Engine) error {
			if err := e.Config().ValidateListeners(config.ListenerREST); err != nil {
				return err
			}

			return e.ServeREST(ctx, e.Config().REST.Addr)
		})
	},
}

var completeCmd = &cobra.Command{
	Use:   "complete-api",
	Short: "Serve POST /v1/complete",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runEngine(cmd, overrideAddrs, func(ctx context.Context, e *engine.Engine) error {
			if err := e.Config().ValidateListeners(config.ListenerComplete); err != nil {
				return err
			}

			return e.ServeComplete(ctx, e.Config().Complete.Addr)
		})
	},
}

var sseCmd = &cobra.Command{
	Use:   "sse",
	Short: "Serve MCP over SSE (/sse) and streamable HTTP (/mcp)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runEngine(cmd, overrideAddrs, func(ctx context.Context, e *engine.Engine) error {
			if err := e.Config().ValidateListeners(config.ListenerSSE); err != nil {
				return err
			}

			return e.ServeSSE(ctx, e.Config().SSE.Addr)
		})
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST, completion and SSE front ends together",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runEngine(cmd, overrideAddrs, func(ctx context.Context, e *engine.Engine) error {
			return e.ServeAll(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(stdioCmd, restCmd, completeCmd, sseCmd, serveCmd)

	restCmd.Flags().StringVar(&serveFlags.restAddr, "addr", "", "override listen address")
	completeCmd.Flags().StringVar(&serveFlags.completeAddr, "addr", "", "override listen address")
	sseCmd.Flags().StringVar(&serveFlags.sseAddr, "addr", "", "override listen address")

	serveCmd.Flags().StringVar(&serveFlags.restAddr, "rest-addr", "", "override REST listen address")
	serveCmd.Flags().StringVar(&serveFlags.completeAddr, "complete-addr", "", "override completion API listen address")
	serveCmd.Flags().StringVar(&serveFlags.sseAddr, "sse-addr", "", "override SSE listen address")
}

func forceStderr(cfg *config.Config) {
	if cfg.Log.Output == "" || cfg.Log.Output == "stdout" {
		cfg.Log.Output = "stderr"
	}
}

func overrideAddrs(cfg *config.Config) {
	if serveFlags.restAddr != "" {
		cfg.REST.Addr = serveFlags.restAddr
	}
	if serveFlags.completeAddr != "" {
		cfg.Complete.Addr = serveFlags.completeAddr
	}
	if serveFlags.sseAddr != "" {
		cfg.SSE.Addr = serveFlags.sseAddr
	}
}
