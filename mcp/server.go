package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"pkt.systems/pslog"
	"pkt.systems/sapadt/adt"
	"pkt.systems/sapadt/bw"
	"pkt.systems/sapadt/internal/loggingutil"
	"pkt.systems/sapadt/internal/version"
)

// Config controls the tool server.
type Config struct {
	// Name is reported in the initialize response.
	Name string
	// DeployConfigPath is the deployment file deploy_status reads when the
	// call names none.
	DeployConfigPath string
	// PollTimeout bounds asynchronous server operations such as activation.
	PollTimeout time.Duration
}

// Session is the HTTP session the tools run against. The BW operations use
// a subset of it.
type Session interface {
	adt.Session
}

// NewServerRequest wraps constructor inputs.
type NewServerRequest struct {
	Config  Config
	Session Session
	Logger  pslog.Logger
}

// Server is the MCP tool server.
type Server struct {
	cfg     Config
	sess    Session
	logger  pslog.Logger
	mcp     *mcpserver.MCPServer
	started time.Time

	bwOnce sync.Once
	bwSess bw.Session
}

type toolHandler func(ctx context.Context, req mcpgo.CallToolRequest) (any, error)

func applyDefaults(cfg *Config) {
	if cfg.Name == "" {
		cfg.Name = "sapadt"
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = adt.DefaultPollTimeout
	}
}

// NewServer registers every tool on a fresh MCP server.
func NewServer(req NewServerRequest) (*Server, error) {
	if req.Session == nil {
		return nil, errors.New("mcp: session is required")
	}
	cfg := req.Config
	applyDefaults(&cfg)
	s := &Server{
		cfg:     cfg,
		sess:    req.Session,
		logger:  loggingutil.WithSubsystem(loggingutil.EnsureLogger(req.Logger), "mcp"),
		started: time.Now(),
	}
	s.mcp = mcpserver.NewMCPServer(
		cfg.Name,
		version.Current(),
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
		mcpserver.WithInstructions(serverInstructions),
	)
	s.registerADTTools()
	s.registerBWTools()
	s.registerBWEditTools()
	s.registerDeployTools()
	return s, nil
}

// bwSession returns the session for BW reads. The service document is read once
// per server; systems without one keep the built-in paths.
func (s *Server) bwSession(ctx context.Context) bw.Session {
	s.bwOnce.Do(func() {
		s.bwSess = bw.Discovered(ctx, s.sess)
	})
	return s.bwSess
}

// MCP returns the underlying server, for in-process message handling.
func (s *Server) MCP() *mcpserver.MCPServer { return s.mcp }

// Serve runs the stdio transport until in is exhausted or ctx ends.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("mcp.serve.start", "tools", len(toolOrder))
	err := mcpserver.NewStdioServer(s.mcp).Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		s.logger.Error("mcp.serve.error", "error", err)
		return err
	}
	s.logger.Info("mcp.serve.stop", "uptime", time.Since(s.started))
	return nil
}

func (s *Server) add(tool mcpgo.Tool, h toolHandler) {
	s.mcp.AddTool(tool, s.guard(tool.Name, h))
}

// guard turns errors and panics into isError results and renders values as
// JSON text.
func (s *Server) guard(name string, h toolHandler) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpgo.CallToolRequest) (res *mcpgo.CallToolResult, err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("mcp.tool.panic", "tool", name, "panic", fmt.Sprint(r))
				res, err = toolErrorResult(fmt.Errorf("tool %s panicked: %v", name, r)), nil
			}
		}()
		out, herr := h(ctx, req)
		if herr != nil {
			s.logger.Warn("mcp.tool.error", "tool", name, "error", herr, "elapsed", time.Since(start))
			return toolErrorResult(herr), nil
		}
		s.logger.Debug("mcp.tool.done", "tool", name, "elapsed", time.Since(start))
		if text, ok := out.(string); ok {
			return mcpgo.NewToolResultText(text), nil
		}
		data, merr := json.MarshalIndent(out, "", "  ")
		if merr != nil {
			return toolErrorResult(fmt.Errorf("encode %s result: %w", name, merr)), nil
		}
		return mcpgo.NewToolResultText(string(data)), nil
	}
}

const serverInstructions = "Tools for SAP ABAP development (adt_*), SAP BW modeling (bw_*) and abapGit deployments (deploy_*). " +
	"Object URIs are ADT paths such as /sap/bc/adt/oo/classes/zcl_demo; source URIs end in /source/main. " +
	"Failed calls return isError with a JSON error record; branch on its category."
