// Package main is the pipeline CLI's entry point and command
// registration hub, split the way codeNERD's cmd/nerd is split across
// main.go plus cmd_*.go files — here across main.go, cmd_run.go,
// cmd_mcp.go.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"agentpipe/internal/logging"
)

var (
	verbose   bool
	workspace string
	apiKey    string
	provider  string
	model     string
	endpoint  string
	timeout   time.Duration
	configPath string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "pipeline - autonomous Architect/Coder/Tester/Debugger code-generation workflow",
	Long: `pipeline drives one requirements string through a fixed agent
state machine: Architect designs a file structure, Coder writes it,
Tester runs pytest against it, and Debugger repairs failures in a
bounded retry loop.

Run without arguments to execute one workflow against stdin.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ws := workspace
		if ws == "" {
			ws, _ = os.Getwd()
		}
		if err := logging.Initialize(ws, verbose); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to initialize file logging: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runWorkflow,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace directory (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "LLM provider API key (or set MCP_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "LLM provider: openai | gemini (default from config)")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "model name (or set MCP_MODEL)")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "provider endpoint URL (or set MCP_ENDPOINT)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "per-stage execution timeout")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.Flags().Bool("ui", false, "render the result through the bubbletea stub view instead of plain text")

	rootCmd.AddCommand(runCmd, mcpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
