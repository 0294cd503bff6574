package mcp

import (
	"context"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"pkt.systems/sapadt/deploy"
)

func (s *Server) registerDeployTools() {
	s.add(mcpgo.NewTool(toolDeployStatus,
		mcpgo.WithDescription(toolDescription(toolDeployStatus)),
		mcpgo.WithString("config", mcpgo.Description("Deployment YAML path; defaults to the server's configured file")),
		mcpgo.WithString("repo", mcpgo.Description("Only this repository")),
		mcpgo.WithReadOnlyHintAnnotation(true),
	), s.handleDeployStatus)
}

func (s *Server) handleDeployStatus(ctx context.Context, req mcpgo.CallToolRequest) (any, error) {
	path := req.GetString("config", s.cfg.DeployConfigPath)
	if path == "" {
		return nil, argError(toolDeployStatus, "argument %q is required when the server has no deployment file", "config")
	}
	cfg, err := deploy.Load(path)
	if err != nil {
		return nil, err
	}
	return deploy.Status(ctx, s.sess, cfg, req.GetString("repo", ""))
}
