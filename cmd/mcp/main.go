// Package mcp implements the `brofiler mcp` subcommand, an MCP (Model Context
// Protocol) server over stdio transport. Agents can spawn this process to
// parse broctl output, render node.cfg stanzas and query a running monitor.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/saveenergy/brofiler/internal/netstats"
	"github.com/saveenergy/brofiler/internal/nodecfg"
	"github.com/saveenergy/brofiler/pkg/client"
	"github.com/saveenergy/brofiler/pkg/types"
)

const defaultMonitorURL = "http://127.0.0.1:9470"

// Run starts the MCP stdio server. Blocks until stdin closes or signal received.
func Run(version string) int {
	s := server.NewMCPServer(
		"brofiler",
		version,
		server.WithToolCapabilities(true),
	)

	handlers := map[string]server.ToolHandlerFunc{
		"parse_netstats": handleParseNetstats,
		"format_node":    handleFormatNode,
		"monitor_status": handleMonitorStatus,
	}
	for _, tool := range ToolDefinitions() {
		s.AddTool(tool, handlers[tool.Name])
	}

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "brofiler mcp: error: %v\n", err)
		return 1
	}
	return 0
}

// ToolDefinitions lists every tool the server registers.
func ToolDefinitions() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool("parse_netstats",
			mcp.WithDescription("Parse raw `broctl netstats` output into per-device packet counters with success rate, loss rate and a consistency flag (received + dropped == link)."),
			mcp.WithString("output",
				mcp.Required(),
				mcp.Description("Raw netstats text, one `name: timestamp recvd=N dropped=N link=N` line per device"),
			),
		),
		mcp.NewTool("format_node",
			mcp.WithDescription("Render the node.cfg stanza for a cluster node without writing it. Workers and standalone nodes require an interface."),
			mcp.WithString("name", mcp.Required(), mcp.Description("Node name, e.g. worker-1")),
			mcp.WithString("role", mcp.Required(), mcp.Description("manager, proxy, worker or standalone")),
			mcp.WithString("host", mcp.Required(), mcp.Description("Host address of the node")),
			mcp.WithString("interface", mcp.Description("Interface to sniff (workers and standalone only)")),
		),
		mcp.NewTool("monitor_status",
			mcp.WithDescription("Query a running brofiler monitor: session state, last cycle report, rolling loss and capture quality grade (A-F) with concerns."),
			mcp.WithString("server_url",
				mcp.Description("Monitor URL (default: "+defaultMonitorURL+")"),
			),
			mcp.WithString("api_key",
				mcp.Description("Optional API key configured on the monitor"),
			),
		),
	}
}

// --- Tool Handlers ---

type parsedSample struct {
	types.DeviceStatSample
	SuccessRate float64 `json:"success_rate"`
	LossRate    float64 `json:"loss_rate"`
	Consistent  bool    `json:"consistent"`
}

func handleParseNetstats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	output, err := req.RequireString("output")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	samples, err := netstats.ParseDevices(output)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Parse failed: %v", err)), nil
	}

	result := make([]parsedSample, 0, len(samples))
	for _, s := range samples {
		result = append(result, parsedSample{
			DeviceStatSample: s,
			SuccessRate:      s.SuccessRate(),
			LossRate:         s.LossRate(),
			Consistent:       s.Confirm(),
		})
	}
	return jsonResult(map[string]any{"devices": result, "count": len(result)})
}

func handleFormatNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d, err := types.NewDeviceDescriptor(
		req.GetString("name", ""),
		types.Role(req.GetString("role", "")),
		req.GetString("host", ""),
		req.GetString("interface", ""),
	)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(nodecfg.Format(d)), nil
}

type monitorStatus struct {
	ServerURL  string                   `json:"server_url"`
	Status     *types.StatusResponse    `json:"status"`
	Diagnostic *client.DiagnosticResult `json:"diagnostic"`
}

func handleMonitorStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	serverURL := req.GetString("server_url", defaultMonitorURL)

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	c := clientFromRequest(serverURL, req)
	status, err := c.Status(queryCtx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Status query failed: %v", err)), nil
	}
	diag, err := c.Diagnostic(queryCtx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Diagnostic query failed: %v", err)), nil
	}
	return jsonResult(monitorStatus{ServerURL: c.ServerURL(), Status: status, Diagnostic: diag})
}

func clientFromRequest(serverURL string, req mcp.CallToolRequest) *client.Client {
	if key := strings.TrimSpace(req.GetString("api_key", "")); key != "" {
		return client.New(serverURL, client.WithAPIKey(key))
	}
	return client.New(serverURL)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("JSON encoding failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
