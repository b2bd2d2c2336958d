package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/germanamz/claudeproxy/pkg/completion"
	"github.com/germanamz/claudeproxy/pkg/engine"
	"github.com/spf13/cobra"
)

var askFlags struct {
	model     string
	maxTokens int
	usage     bool
}

var askCmd = &cobra.Command{
	Use:   "ask [flags] PROMPT...",
	Short: "Run one completion and print the reply",
	Example: `  claudeproxy ask --model claude-3-5-sonnet-20241022 "What is the capital of France?"
  claudeproxy ask --model claude-3-5-haiku-20241022 --max-tokens 64 --usage Hi`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEngine(cmd, nil, func(ctx context.Context, e *engine.Engine) error {
			res, err := e.Completer().Complete(ctx, completion.Request{
				Model:     askFlags.model,
				Prompt:    strings.Join(args, " "),
				MaxTokens: askFlags.maxTokens,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Text)
			if askFlags.usage {
				fmt.Fprintf(cmd.ErrOrStderr(), "tokens: %d in, %d out (stop: %s)\n",
					res.Usage.InputTokens, res.Usage.OutputTokens, res.StopReason)
			}

			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVarP(&askFlags.model, "model", "m", "", "Claude model to use (required)")
	askCmd.Flags().IntVar(&askFlags.maxTokens, "max-tokens", 0, fmt.Sprintf("reply token budget (default %d)", completion.DefaultMaxTokens))
	askCmd.Flags().BoolVar(&askFlags.usage, "usage", false, "print token usage to stderr")
	_ = askCmd.MarkFlagRequired("model")
}
