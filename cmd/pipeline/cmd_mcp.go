package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"agentpipe/internal/agents/architect"
	"agentpipe/internal/agents/coder"
	"agentpipe/internal/agents/role"
	"agentpipe/internal/agents/tester"
	"agentpipe/internal/config"
	"agentpipe/internal/llmrpc"
	"agentpipe/internal/mcp"
	"agentpipe/internal/sandbox"
)

var mcpAgentFlag string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "serve one agent as an MCP JSON-RPC 2.0 server over stdio",
	Long: `mcp exposes a single agent (architect, coder, or tester) as a
JSON-RPC 2.0 server reading requests from stdin and writing responses
to stdout, for drivers other than the in-process Orchestrator. It is
not part of the core pipeline run.`,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpAgentFlag, "agent", "architect", "agent to serve: architect | coder | tester")
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyFlagOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	client, err := buildClient(cfg)
	if err != nil {
		return err
	}

	r, err := resolveRole(cfg, client)
	if err != nil {
		return err
	}

	server := mcp.NewServer(r)
	return server.Serve(cmd.Context(), os.Stdin, os.Stdout)
}

func resolveRole(cfg *config.Config, client llmrpc.Client) (role.Role, error) {
	switch mcpAgentFlag {
	case "architect":
		return architect.New(client), nil
	case "coder":
		return coder.New(client), nil
	case "tester":
		ws := workspace
		if ws == "" {
			ws = cfg.Execution.WorkspaceDir
		}
		sb, err := sandbox.New(ws)
		if err != nil {
			return nil, fmt.Errorf("initializing sandbox for mcp tester: %w", err)
		}
		return tester.New(client, sb), nil
	default:
		return nil, fmt.Errorf("unknown --agent %q: want architect, coder, or tester", mcpAgentFlag)
	}
}
