// Package mcp exposes one agents/role.Role as a JSON-RPC 2.0 server
// over stdio, newline-delimited the way codeNERD's StdioTransport
// reads a subprocess's stdout with a bufio.Scanner. It speaks the
// optional RPC surface's method set (initialize,
// notifications/initialized, tools/list, tools/call) and wraps exactly
// one Role per Server, mirroring its single tool. The core Orchestrator
// never goes through this package; it exists only so an external MCP
// client can drive one agent standalone.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"agentpipe/internal/agents/role"
	"agentpipe/internal/logging"
)

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type toolSchema struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type toolsListResult struct {
	Tools []toolSchema `json:"tools"`
}

type toolCallParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolCallResult struct {
	Content []contentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type initializeResult struct {
	ProtocolVersion string `json:"protocolVersion"`
	ServerInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"serverInfo"`
}

// toolNames maps each concrete role's Name() to its RPC tool verb:
// Architect -> create_architecture, Coder -> generate_code, Tester ->
// generate_tests, Debugger -> fix_code. A role outside this set is
// served under its own Name() unchanged.
var toolNames = map[string]string{
	"architect": "create_architecture",
	"coder":     "generate_code",
	"tester":    "generate_tests",
	"debugger":  "fix_code",
}

// Server dispatches tools/call for one wrapped Role over stdio. The
// single tool it advertises takes an "input" argument (the role's
// Prompt.User content) and an optional "system" argument (the role's
// Prompt.System content) and returns the role's raw Invoke text as a
// single text content item — callers that need the parsed artifact run
// it through internal/artifact.Parser themselves, same as the
// in-process Orchestrator does after every role.Invoke.
type Server struct {
	role     role.Role
	toolName string
	mu       sync.Mutex // serializes writes to out
}

// NewServer wraps r for stdio dispatch.
func NewServer(r role.Role) *Server {
	name, ok := toolNames[r.Name()]
	if !ok {
		name = r.Name()
	}
	return &Server{role: r, toolName: name}
}

// Serve reads newline-delimited JSON-RPC requests from in and writes
// newline-delimited responses to out until in is exhausted or ctx is
// canceled.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		s.handleLine(ctx, line, out)
	}
	return scanner.Err()
}

func (s *Server) handleLine(ctx context.Context, line []byte, out io.Writer) {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		s.write(out, response{JSONRPC: "2.0", Error: &rpcError{Code: -32700, Message: "parse error: " + err.Error()}})
		return
	}

	switch req.Method {
	case "initialize":
		s.handleInitialize(req, out)
	case "notifications/initialized":
		// Notification: no response expected or sent.
	case "tools/list":
		s.handleToolsList(req, out)
	case "tools/call":
		s.handleToolsCall(ctx, req, out)
	default:
		s.write(out, response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32601, Message: fmt.Sprintf("unknown method %q", req.Method)}})
	}
}

func (s *Server) handleInitialize(req request, out io.Writer) {
	var res initializeResult
	res.ProtocolVersion = "2024-11-05"
	res.ServerInfo.Name = "pipeline-" + s.role.Name()
	res.ServerInfo.Version = "1.0.0"
	result, _ := json.Marshal(res)
	s.write(out, response{JSONRPC: "2.0", ID: req.ID, Result: result})
}

func (s *Server) handleToolsList(req request, out io.Writer) {
	result, _ := json.Marshal(toolsListResult{Tools: []toolSchema{{
		Name:        s.toolName,
		Description: fmt.Sprintf("invoke the %s agent", s.role.Name()),
	}}})
	s.write(out, response{JSONRPC: "2.0", ID: req.ID, Result: result})
}

func (s *Server) handleToolsCall(ctx context.Context, req request, out io.Writer) {
	var params toolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.write(out, response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32602, Message: "invalid params: " + err.Error()}})
		return
	}
	if params.Name != s.toolName {
		s.write(out, response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32602, Message: fmt.Sprintf("unknown tool %q", params.Name)}})
		return
	}

	text, err := s.role.Invoke(ctx, role.Prompt{System: params.Arguments["system"], User: params.Arguments["input"]})
	if err != nil {
		logging.Get(logging.CategoryOrchestrator).Warn("mcp: %s invoke failed: %v", s.role.Name(), err)
		result, _ := json.Marshal(toolCallResult{Content: []contentItem{{Type: "text", Text: err.Error()}}, IsError: true})
		s.write(out, response{JSONRPC: "2.0", ID: req.ID, Result: result})
		return
	}

	result, _ := json.Marshal(toolCallResult{Content: []contentItem{{Type: "text", Text: text}}})
	s.write(out, response{JSONRPC: "2.0", ID: req.ID, Result: result})
}

func (s *Server) write(out io.Writer, resp response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	data = append(data, '\n')
	_, _ = out.Write(data)
}
