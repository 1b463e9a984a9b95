// Package mcp serves the Model Context Protocol methods on /mcp.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"slices"

	"fitgate/internal/jsonrpc"
	"fitgate/internal/tools"
	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
)

// LatestProtocolVersion is answered to clients asking for a version this
// server does not implement.
const LatestProtocolVersion = "2025-06-18"

var supportedVersions = []string{LatestProtocolVersion, "2025-03-26", "2024-11-05"}

// SupportedVersions lists protocol versions, newest first.
func SupportedVersions() []string {
	return slices.Clone(supportedVersions)
}

// NegotiateVersion echoes the requested version when supported.
func NegotiateVersion(requested string) string {
	if slices.Contains(supportedVersions, requested) {
		return requested
	}
	return LatestProtocolVersion
}

type Tools interface {
	List(p tools.Policy) []tools.Tool
	Call(ctx context.Context, auth id.AuthContext, p tools.Policy, name string, args json.RawMessage) (any, error)
}

type Policies interface {
	For(ctx context.Context, tenantID id.TenantID, protocol tools.Protocol) (tools.Policy, error)
}

type ServerInfo struct {
	Name    string `json:"name"`
	Title   string `json:"title,omitempty"`
	Version string `json:"version"`
}

type Server struct {
	tools    Tools
	policies Policies
	info     ServerInfo
	logger   *slog.Logger
}

func New(tools Tools, policies Policies, info ServerInfo, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{tools: tools, policies: policies, info: info, logger: logger}
}

// Register installs the MCP method table on d.
func (s *Server) Register(d *jsonrpc.Dispatcher) {
	d.Handle("initialize", jsonrpc.Method{ReadOnly: true, Handler: s.initialize})
	d.Handle("notifications/initialized", jsonrpc.Method{ReadOnly: true, Handler: noop})
	d.Handle("notifications/cancelled", jsonrpc.Method{ReadOnly: true, Handler: noop})
	d.Handle("ping", jsonrpc.Method{ReadOnly: true, Handler: noop})
	d.Handle("tools/list", jsonrpc.Method{ReadOnly: true, Handler: s.listTools})
	// Suspension is enforced per tool by the registry.
	d.Handle("tools/call", jsonrpc.Method{ReadOnly: true, Handler: s.callTool})
}

type initializeParams struct {
	ProtocolVersion string          `json:"protocolVersion"`
	Capabilities    json.RawMessage `json:"capabilities,omitempty"`
	ClientInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version,omitempty"`
	} `json:"clientInfo"`
}

type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
	Instructions    string       `json:"instructions,omitempty"`
}

type Capabilities struct {
	Tools ToolsCapability `json:"tools"`
}

type ToolsCapability struct {
	ListChanged bool `json:"listChanged"`
}

func (s *Server) initialize(ctx context.Context, auth id.AuthContext, params json.RawMessage) (any, error) {
	p, err := jsonrpc.DecodeParams[initializeParams](params)
	if err != nil {
		return nil, err
	}
	version := NegotiateVersion(p.ProtocolVersion)
	s.logger.InfoContext(ctx, "mcp session initialized",
		"tenant_id", auth.TenantID,
		"client_name", p.ClientInfo.Name,
		"requested_version", p.ProtocolVersion,
		"protocol_version", version,
	)
	return InitializeResult{
		ProtocolVersion: version,
		Capabilities:    Capabilities{Tools: ToolsCapability{}},
		ServerInfo:      s.info,
		Instructions:    "Fitness data tools. Agent clients pass athlete_id; users read their own data.",
	}, nil
}

type ListToolsResult struct {
	Tools []tools.Tool `json:"tools"`
}

func (s *Server) listTools(ctx context.Context, auth id.AuthContext, _ json.RawMessage) (any, error) {
	p, err := s.policies.For(ctx, auth.TenantID, tools.ProtocolMCP)
	if err != nil {
		return nil, err
	}
	return ListToolsResult{Tools: s.tools.List(p)}, nil
}

type callToolParams struct {
	Name      string          `json:"name" validate:"required"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallToolResult carries the tool output twice: as structured JSON and as
// a text block for clients that only read content.
type CallToolResult struct {
	Content           []Content       `json:"content"`
	StructuredContent json.RawMessage `json:"structuredContent,omitempty"`
	IsError           bool            `json:"isError,omitempty"`
}

func (s *Server) callTool(ctx context.Context, auth id.AuthContext, params json.RawMessage) (any, error) {
	p, err := jsonrpc.DecodeParams[callToolParams](params)
	if err != nil {
		return nil, err
	}
	policy, err := s.policies.For(ctx, auth.TenantID, tools.ProtocolMCP)
	if err != nil {
		return nil, err
	}
	result, err := s.tools.Call(ctx, auth, policy, p.Name, p.Arguments)
	if err != nil {
		return nil, err
	}
	return ToolResult(result)
}

// ToolResult wraps a tool's return value in the MCP result shape.
func ToolResult(result any) (*CallToolResult, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode tool result")
	}
	out := &CallToolResult{Content: []Content{{Type: "text", Text: string(raw)}}}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '{' {
		out.StructuredContent = raw
	}
	return out, nil
}

func noop(context.Context, id.AuthContext, json.RawMessage) (any, error) {
	return struct{}{}, nil
}
