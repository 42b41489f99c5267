package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/forensor/forensor/internal/adapters/outbound/config"
	"github.com/forensor/forensor/internal/adapters/outbound/corpus"
	"github.com/forensor/forensor/internal/adapters/outbound/gitlog"
	"github.com/forensor/forensor/internal/adapters/outbound/interpreter"
	"github.com/forensor/forensor/internal/adapters/outbound/memory"
	"github.com/forensor/forensor/internal/adapters/outbound/tui"
	"github.com/forensor/forensor/internal/application"
)

// registerTools registers all Forensor MCP tools on the given server.
func registerTools(s *server.MCPServer, projectPath string) {
	// 1. forensor_scan
	s.AddTool(
		mcplib.NewTool("forensor_scan",
			mcplib.WithDescription("Run the rot, guilt, exposure, and cost scanners over the repository and return the raw evidence bundle. Deterministic, no model involved."),
			mcplib.WithString("path", mcplib.Description("Repository to scan (defaults to the server's project path)")),
			mcplib.WithString("format", mcplib.Description("Output format: json or text (default: json)")),
		),
		handleScan(projectPath),
	)

	// 2. forensor_audit
	s.AddTool(
		mcplib.NewTool("forensor_audit",
			mcplib.WithDescription("Run the full audit: scan the repository, have the model interpret the evidence, and validate the analysis against the gate. Requires ANTHROPIC_API_KEY."),
			mcplib.WithString("path", mcplib.Description("Repository to audit (defaults to the server's project path)")),
			mcplib.WithString("format", mcplib.Description("Output format: json or text (default: json)")),
		),
		handleAudit(projectPath),
	)
}

// newScanService creates the standard scan pipeline over real adapters.
func newScanService() *application.ScanService {
	return application.NewScanService(config.New(), corpus.New(), gitlog.New())
}

func handleScan(projectPath string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		path := requestPath(request, projectPath)

		bundle, err := newScanService().Scan(ctx, path)
		if err != nil {
			return errorResult(fmt.Sprintf("scan failed: %v", err)), nil
		}

		if format, _ := request.GetArguments()["format"].(string); format == "text" {
			return textResult(tui.RenderBundle(bundle)), nil
		}
		return jsonResult(bundle)
	}
}

func handleAudit(projectPath string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		path := requestPath(request, projectPath)

		interp, err := interpreter.New(interpreter.Config{})
		if err != nil {
			return errorResult(err.Error()), nil
		}

		svc := application.NewAuditService(
			config.New(),
			newScanService(),
			interp,
			memory.New(path),
		)

		result, err := svc.Audit(ctx, path)
		if err != nil {
			return errorResult(fmt.Sprintf("audit failed: %v", err)), nil
		}

		if format, _ := request.GetArguments()["format"].(string); format == "text" {
			return textResult(tui.RenderOutcome(result)), nil
		}
		return jsonResult(result)
	}
}

// requestPath resolves the optional path argument, falling back to the path
// the server was started with.
func requestPath(request mcplib.CallToolRequest, projectPath string) string {
	if p, ok := request.GetArguments()["path"].(string); ok && p != "" {
		return p
	}
	return projectPath
}

// jsonResult marshals v to JSON and returns it as a text content result.
func jsonResult(v interface{}) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(string(data))},
	}, nil
}

// textResult returns a plain text content result.
func textResult(text string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(text)},
	}
}

// errorResult returns a tool result that indicates an error occurred.
func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(msg)},
		IsError: true,
	}
}
