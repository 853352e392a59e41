package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"agentpipe/cmd/pipeline/ui"
	"agentpipe/internal/config"
	"agentpipe/internal/llmrpc"
	"agentpipe/internal/orchestrator"
	"agentpipe/internal/sandbox"
	"agentpipe/internal/telemetry"
	"agentpipe/internal/usage"
)

var runCmd = &cobra.Command{
	Use:   "run [requirements]",
	Short: "run one Architect/Coder/Tester/Debugger workflow",
	Long: `run executes the full pipeline against a requirements string,
read from the first positional argument or from stdin when omitted.`,
	RunE: runWorkflow,
}

func init() {
	runCmd.Flags().Bool("ui", false, "render the result through the bubbletea stub view instead of plain text")
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	requirements, err := readRequirements(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyFlagOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return &orchestrator.ConfigError{Reason: err.Error()}
	}

	client, err := buildClient(cfg)
	if err != nil {
		return err
	}

	ws := workspace
	if ws == "" {
		ws = cfg.Execution.WorkspaceDir
	}
	sb, err := sandbox.New(ws)
	if err != nil {
		return fmt.Errorf("initializing sandbox: %w", err)
	}
	tracker, err := usage.NewTracker(ws)
	if err != nil {
		return fmt.Errorf("initializing usage tracker: %w", err)
	}

	opts := orchestrator.DefaultOptions()
	opts.MaxDebugAttempts = cfg.Execution.MaxDebugAttempts
	opts.EnableRateLimiting = cfg.Execution.EnableRateLimiting
	if timeout > 0 {
		opts.StageTimeout = timeout
	}

	o := orchestrator.New(client, sb, tracker, opts)
	result := o.Run(cmd.Context(), requirements)

	if transcript, terr := telemetry.Open(ws); terr == nil {
		if err := transcript.Append(requirements, result); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to append transcript: %v\n", err)
		}
	}

	showUI, _ := cmd.Flags().GetBool("ui")
	if showUI {
		if err := ui.Render(result); err != nil {
			return err
		}
	} else {
		printResult(cmd.OutOrStdout(), result)
	}

	if result.FinalStatus != orchestrator.StatusSuccess {
		return fmt.Errorf("pipeline run %s finished as %s: %s", result.RunID, result.FinalStatus, result.Error)
	}
	return nil
}

func readRequirements(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading requirements from stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("no requirements given: pass an argument or pipe text to stdin")
	}
	return text, nil
}

func applyFlagOverrides(cfg *config.Config) {
	if apiKey != "" {
		cfg.LLM.APIKey = apiKey
	}
	if provider != "" {
		cfg.LLM.Provider = provider
	}
	if model != "" {
		cfg.LLM.Model = model
	}
	if endpoint != "" {
		cfg.LLM.Endpoint = endpoint
	}
}

func buildClient(cfg *config.Config) (llmrpc.Client, error) {
	switch cfg.LLM.Provider {
	case "gemini":
		return &llmrpc.GeminiClient{BaseURL: cfg.LLM.Endpoint, APIKey: cfg.LLM.APIKey, HTTP: http.DefaultClient}, nil
	case "openai", "":
		return &llmrpc.OpenAIClient{BaseURL: cfg.LLM.Endpoint, APIKey: cfg.LLM.APIKey, Model: cfg.LLM.Model, HTTP: http.DefaultClient}, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLM.Provider)
	}
}

func printResult(w io.Writer, result orchestrator.RunResult) {
	fmt.Fprintf(w, "run:    %s\n", result.RunID)
	fmt.Fprintf(w, "status: %s\n", result.FinalStatus)
	if result.Error != "" {
		fmt.Fprintf(w, "error:  %s\n", result.Error)
	}
	if result.TestPackage != nil {
		fmt.Fprintf(w, "tests:  %d passed, %d failed\n", result.TestPackage.Analysis.PassedCount, result.TestPackage.Analysis.FailedCount)
	}
	if result.DebuggerRan {
		fmt.Fprintf(w, "debugger: %d attempt(s)\n", len(result.DebugResult.Attempts))
	}
	fmt.Fprintf(w, "elapsed: %s\n", result.FinishedAt.Sub(result.StartedAt))
}
