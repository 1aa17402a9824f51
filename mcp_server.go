package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPServer exposes the same status snapshot as status_server.go, but as
// MCP tools — a second machine-readable transport for agent-driven
// operators rather than dashboards.
type MCPServer struct {
	source StatusSource

	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

func NewMCPServer(source StatusSource) *MCPServer {
	m := &MCPServer{source: source}

	m.mcpServer = server.NewMCPServer(
		"radio-watchdog",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	m.registerTools()
	m.httpServer = server.NewStreamableHTTPServer(m.mcpServer)

	return m
}

func (m *MCPServer) Handler() *server.StreamableHTTPServer {
	return m.httpServer
}

func (m *MCPServer) registerTools() {
	m.mcpServer.AddTool(
		mcp.NewTool("get_channel_status",
			mcp.WithDescription("Get per-stream cmd_health, audio_health, uptime, and volume for every channel, or a single channel if named. Use this to see whether a monitored program's streams are alive and producing audio."),
			mcp.WithString("channel",
				mcp.Description("Specific channel name, or leave empty for all channels"),
			),
		),
		m.handleGetChannelStatus,
	)

	m.mcpServer.AddTool(
		mcp.NewTool("get_comparison_results",
			mcp.WithDescription("Get the latest within-channel similarity (with temporal offset) and cross-channel divergence results. A within-channel result with is_error=true means streams that should match have diverged; a cross-channel result with is_error=true means two different channels may be carrying the same program."),
		),
		m.handleGetComparisonResults,
	)

	m.mcpServer.AddTool(
		mcp.NewTool("get_alerts",
			mcp.WithDescription("Get the current alert table: every monitored condition's id, message, failing_since, and last_sent_at. Use this to see what's currently failing and for how long."),
		),
		m.handleGetAlerts,
	)
}

func (m *MCPServer) handleGetChannelStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	channel := request.GetString("channel", "")

	snapshot := m.source.Snapshot()
	if channel != "" {
		rows, ok := snapshot.Channels[channel]
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown channel %q", channel)), nil
		}
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}

	data, err := json.MarshalIndent(snapshot.Channels, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (m *MCPServer) handleGetComparisonResults(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snapshot := m.source.Snapshot()
	data, err := json.MarshalIndent(snapshot.Comparisons, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (m *MCPServer) handleGetAlerts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snapshot := m.source.Snapshot()
	data, err := json.MarshalIndent(snapshot.Alerts, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
