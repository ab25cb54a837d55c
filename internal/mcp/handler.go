// Package mcp implements the Model Context Protocol methods on top of the
// JSON-RPC router.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lawmcp/server/internal/jsonrpc"
	"lawmcp/server/internal/observability"
	"lawmcp/server/internal/tools"
)

const (
	serverName    = "lawmcp"
	serverVersion = "0.3.0"
)

const instructions = "Tools for working with Japanese law: search_law finds laws by " +
	"title keyword, fetch_law retrieves full text or a single article, summarize_law " +
	"reports a law's structure, and check_law_consistency scores two provisions for " +
	"textual agreement."

// Handler owns the MCP method set. It depends only on the tool registry
// interface surface, never on a concrete tool implementation.
type Handler struct {
	registry *tools.Registry
}

func NewHandler(registry *tools.Registry) *Handler {
	return &Handler{registry: registry}
}

// RegisterMethods installs every MCP method on the router. Called once at
// startup, before any transport starts reading.
func (h *Handler) RegisterMethods(r *jsonrpc.Router) {
	r.Register("initialize", h.handleInitialize)
	r.Register("notifications/initialized", h.handleInitialized)
	r.Register("ping", h.handlePing)
	r.Register("tools/list", h.handleToolsList)
	r.Register("tools/call", h.handleToolCall)
}

func (h *Handler) handleInitialize(ctx context.Context, params map[string]any) (any, error) {
	return &InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: ServerCapabilities{
			Tools: &ToolsCapability{},
		},
		ServerInfo: ServerInfo{
			Name:    serverName,
			Version: serverVersion,
		},
		Instructions: instructions,
	}, nil
}

func (h *Handler) handleInitialized(ctx context.Context, params map[string]any) (any, error) {
	return nil, nil
}

func (h *Handler) handlePing(ctx context.Context, params map[string]any) (any, error) {
	return map[string]any{}, nil
}

func (h *Handler) handleToolsList(ctx context.Context, params map[string]any) (any, error) {
	return &ToolsListResult{Tools: h.registry.List()}, nil
}

func (h *Handler) handleToolCall(ctx context.Context, params map[string]any) (any, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("invalid params")
	}
	var call ToolCallParams
	if err := json.Unmarshal(raw, &call); err != nil {
		return nil, fmt.Errorf("invalid params structure")
	}
	if call.Name == "" {
		return nil, fmt.Errorf("tool name is required")
	}

	tool, ok := h.registry.Get(call.Name)
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", call.Name)
	}

	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}

	start := time.Now()
	text, err := tool.Handler(ctx, args)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		observability.LogToolCall(call.Name, elapsed, "error", err.Error())
		// Tool failures are results, not RPC errors.
		return errorResult(err.Error()), nil
	}
	observability.LogToolCall(call.Name, elapsed, "ok", "")
	return textResult(text), nil
}
