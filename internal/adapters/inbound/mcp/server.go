package mcp

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewForensorMCPServer creates a new MCP server with all Forensor tools and
// resources registered. The projectPath is the root directory of the
// repository to audit.
func NewForensorMCPServer(projectPath string) *server.MCPServer {
	s := server.NewMCPServer(
		"forensor",
		"0.1.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	registerTools(s, projectPath)
	registerResources(s, projectPath)

	return s
}
