package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/csvinsights/internal/ai"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect known models or check the configured LLM",
	Example: `  csvinsights models show
  csvinsights models check
  csvinsights models check --provider ollama --model llama3`,
}

var modelsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show known models and their context windows",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, m := range ai.KnownModels() {
			fmt.Fprintf(out, "- %s (context %d tokens)\n", m.Name, m.ContextTokens)
		}
		return nil
	},
}

var modelsCheckTimeout int

var modelsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the configured LLM is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(c, true)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		ctx := cmd.Context()
		if modelsCheckTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(modelsCheckTimeout)*time.Second)
			defer cancel()
		}
		r := newRequester(c, log)
		status := r.Check(ctx)
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %s\n", r.Provider(), c.LLMModel, status)
		if status != "healthy" {
			return fmt.Errorf("llm check failed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsShowCmd)
	modelsCmd.AddCommand(modelsCheckCmd)
	modelsCheckCmd.Flags().IntVar(&modelsCheckTimeout, "timeout", 15, "check timeout in seconds (0 = none)")
}
