package main

import (
	"context"
	"time"

	"github.com/germanamz/claudeproxy/pkg/smoke"
	"github.com/spf13/cobra"
)

var smokeFlags struct {
	url       string
	sse       bool
	model     string
	prompt    string
	maxTokens int
	timeout   time.Duration
}

var smokeCmd = &cobra.Command{
	Use:   "smoke",
	Short: "Run scripted checks against a running front end",
	Long: `Check a running REST tool envelope (default) or, with --sse, an MCP SSE
endpoint. Every step prints PASS or FAIL; the command fails if any step
failed. The call_claude step needs the target server to have an API key.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), smokeFlags.timeout)
		defer cancel()

		opts := smoke.Options{
			Model:     smokeFlags.model,
			Prompt:    smokeFlags.prompt,
			MaxTokens: smokeFlags.maxTokens,
		}

		var report smoke.Report
		if smokeFlags.sse {
			url := smokeFlags.url
			if !cmd.Flags().Changed("url") {
				url = "http://localhost:8082/sse"
			}
			report = smoke.SSE(ctx, url, opts)
		} else {
			report = smoke.REST(ctx, smokeFlags.url, opts)
		}

		if _, err := report.WriteTo(cmd.OutOrStdout()); err != nil {
			return err
		}

		return report.Err()
	},
}

func init() {
	rootCmd.AddCommand(smokeCmd)

	smokeCmd.Flags().StringVar(&smokeFlags.url, "url", "http://localhost:8080", "base URL of the REST server, or the SSE endpoint with --sse")
	smokeCmd.Flags().BoolVar(&smokeFlags.sse, "sse", false, "check an MCP SSE endpoint instead of REST")
	smokeCmd.Flags().StringVar(&smokeFlags.model, "model", smoke.DefaultModel, "model used for the call_claude step")
	smokeCmd.Flags().StringVar(&smokeFlags.prompt, "prompt", "", "prompt used for the call_claude step")
	smokeCmd.Flags().IntVar(&smokeFlags.maxTokens, "max-tokens", 100, "max_tokens used for the call_claude step")
	smokeCmd.Flags().DurationVar(&smokeFlags.timeout, "timeout", 2*time.Minute, "overall timeout")
}
