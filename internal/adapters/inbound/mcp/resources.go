package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/forensor/forensor/internal/adapters/outbound/config"
	"github.com/forensor/forensor/internal/adapters/outbound/memory"
	"github.com/forensor/forensor/internal/domain"
)

// registerResources registers all Forensor MCP resources on the given server.
func registerResources(s *server.MCPServer, projectPath string) {
	// 1. forensor://records - past audit records
	s.AddResource(
		mcplib.NewResource(
			"forensor://records",
			"Audit Records",
			mcplib.WithResourceDescription("Most recent audit records for the project, oldest first"),
			mcplib.WithMIMEType("application/json"),
		),
		handleRecordsResource(projectPath),
	)

	// 2. forensor://learning - gate learning aggregate
	s.AddResource(
		mcplib.NewResource(
			"forensor://learning",
			"Learning Aggregate",
			mcplib.WithResourceDescription("Accumulated pass counts that feed the validation gate's adaptive threshold"),
			mcplib.WithMIMEType("application/json"),
		),
		handleLearningResource(projectPath),
	)

	// 3. forensor://config - resolved configuration
	s.AddResource(
		mcplib.NewResource(
			"forensor://config",
			"Resolved Configuration",
			mcplib.WithResourceDescription("Effective audit configuration after merging .forensor.yaml over the defaults"),
			mcplib.WithMIMEType("application/json"),
		),
		handleConfigResource(projectPath),
	)
}

func handleRecordsResource(projectPath string) server.ResourceHandlerFunc {
	return func(_ context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
		recs, err := memory.New(projectPath).Records()
		if err != nil {
			return nil, fmt.Errorf("loading records: %w", err)
		}
		if recs == nil {
			recs = []domain.ScanRecord{}
		}
		return jsonResource("forensor://records", recs)
	}
}

func handleLearningResource(projectPath string) server.ResourceHandlerFunc {
	return func(_ context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
		agg, err := memory.New(projectPath).Learning()
		if err != nil {
			return nil, fmt.Errorf("loading learning aggregate: %w", err)
		}
		return jsonResource("forensor://learning", agg)
	}
}

func handleConfigResource(projectPath string) server.ResourceHandlerFunc {
	return func(_ context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
		cfg, err := config.New().Load(projectPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return jsonResource("forensor://config", cfg)
	}
}

func jsonResource(uri string, v any) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling resource: %w", err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
