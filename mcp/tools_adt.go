package mcp

import (
	"context"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"pkt.systems/sapadt/adt"
	"pkt.systems/sapadt/ident"
	"pkt.systems/sapadt/workflow"
	"pkt.systems/sapadt/xmlcodec"
)

func (s *Server) registerADTTools() {
	s.add(mcpgo.NewTool(toolADTDiscover,
		mcpgo.WithDescription(toolDescription(toolADTDiscover)),
		mcpgo.WithReadOnlyHintAnnotation(true),
	), s.handleDiscover)

	s.add(mcpgo.NewTool(toolADTSearch,
		mcpgo.WithDescription(toolDescription(toolADTSearch)),
		mcpgo.WithString("query", mcpgo.Required(), mcpgo.Description("Name pattern, e.g. ZCL_*")),
		mcpgo.WithString("type", mcpgo.Description("Object type filter, e.g. CLAS/OC")),
		mcpgo.WithNumber("max", mcpgo.Description("Maximum results (default 100)")),
		mcpgo.WithReadOnlyHintAnnotation(true),
	), s.handleSearch)

	s.add(mcpgo.NewTool(toolADTReadSource,
		mcpgo.WithDescription(toolDescription(toolADTReadSource)),
		mcpgo.WithString("uri", mcpgo.Required(), mcpgo.Description("Source URI")),
		mcpgo.WithString("version", mcpgo.Description("active (default) or inactive")),
		mcpgo.WithReadOnlyHintAnnotation(true),
	), s.handleReadSource)

	s.add(mcpgo.NewTool(toolADTWriteSource,
		mcpgo.WithDescription(toolDescription(toolADTWriteSource)),
		mcpgo.WithString("uri", mcpgo.Required(), mcpgo.Description("Source URI ending in /source/<include>")),
		mcpgo.WithString("source", mcpgo.Required(), mcpgo.Description("Complete new source text")),
		mcpgo.WithString("transport", mcpgo.Description("Transport request number")),
		mcpgo.WithBoolean("activate", mcpgo.Description("Activate the object after writing")),
		mcpgo.WithDestructiveHintAnnotation(true),
	), s.handleWriteSource)

	s.add(mcpgo.NewTool(toolADTCheckSyntax,
		mcpgo.WithDescription(toolDescription(toolADTCheckSyntax)),
		mcpgo.WithString("uri", mcpgo.Required(), mcpgo.Description("Object or source URI")),
		mcpgo.WithString("version", mcpgo.Description("active or inactive (default)")),
		mcpgo.WithReadOnlyHintAnnotation(true),
	), s.handleCheckSyntax)

	s.add(mcpgo.NewTool(toolADTActivate,
		mcpgo.WithDescription(toolDescription(toolADTActivate)),
		mcpgo.WithString("uri", mcpgo.Description("Object URI; omit to activate all inactive objects")),
		mcpgo.WithString("type", mcpgo.Description("Object type, e.g. CLAS/OC")),
		mcpgo.WithString("name", mcpgo.Description("Object name")),
	), s.handleActivate)

	s.add(mcpgo.NewTool(toolADTObjectStructure,
		mcpgo.WithDescription(toolDescription(toolADTObjectStructure)),
		mcpgo.WithString("uri", mcpgo.Required(), mcpgo.Description("Object URI")),
		mcpgo.WithReadOnlyHintAnnotation(true),
	), s.handleObjectStructure)

	s.add(mcpgo.NewTool(toolADTCreateObject,
		mcpgo.WithDescription(toolDescription(toolADTCreateObject)),
		mcpgo.WithString("type", mcpgo.Required(), mcpgo.Description("Object type, e.g. PROG/P")),
		mcpgo.WithString("name", mcpgo.Required(), mcpgo.Description("Object name")),
		mcpgo.WithString("package", mcpgo.Required(), mcpgo.Description("Target package")),
		mcpgo.WithString("description", mcpgo.Description("Short description")),
		mcpgo.WithString("transport", mcpgo.Description("Transport request number")),
	), s.handleCreateObject)

	s.add(mcpgo.NewTool(toolADTDeleteObject,
		mcpgo.WithDescription(toolDescription(toolADTDeleteObject)),
		mcpgo.WithString("uri", mcpgo.Required(), mcpgo.Description("Object URI")),
		mcpgo.WithString("transport", mcpgo.Description("Transport request number")),
		mcpgo.WithDestructiveHintAnnotation(true),
	), s.handleDeleteObject)

	s.add(mcpgo.NewTool(toolADTRunUnitTests,
		mcpgo.WithDescription(toolDescription(toolADTRunUnitTests)),
		mcpgo.WithString("uri", mcpgo.Required(), mcpgo.Description("Object URI")),
	), s.handleRunUnitTests)

	s.add(mcpgo.NewTool(toolADTListTransports,
		mcpgo.WithDescription(toolDescription(toolADTListTransports)),
		mcpgo.WithString("user", mcpgo.Description("Owner filter")),
		mcpgo.WithReadOnlyHintAnnotation(true),
	), s.handleListTransports)

	s.add(mcpgo.NewTool(toolADTPackageExists,
		mcpgo.WithDescription(toolDescription(toolADTPackageExists)),
		mcpgo.WithString("package", mcpgo.Required(), mcpgo.Description("Package name")),
		mcpgo.WithReadOnlyHintAnnotation(true),
	), s.handlePackageExists)
}

func (s *Server) handleDiscover(ctx context.Context, _ mcpgo.CallToolRequest) (any, error) {
	return adt.Discover(ctx, s.sess)
}

func (s *Server) handleSearch(ctx context.Context, req mcpgo.CallToolRequest) (any, error) {
	query, err := requireString(toolADTSearch, req, "query")
	if err != nil {
		return nil, err
	}
	return adt.SearchObjects(ctx, s.sess, query, req.GetString("type", ""), intArg(req, "max", 100))
}

func (s *Server) handleReadSource(ctx context.Context, req mcpgo.CallToolRequest) (any, error) {
	uri, err := requireURI(toolADTReadSource, req, "uri")
	if err != nil {
		return nil, err
	}
	return adt.ReadSource(ctx, s.sess, uri, req.GetString("version", "active"))
}

type writeSourceResult struct {
	URI        string                `json:"uri"`
	Written    bool                  `json:"written"`
	Activation *adt.ActivationResult `json:"activation,omitempty"`
}

func (s *Server) handleWriteSource(ctx context.Context, req mcpgo.CallToolRequest) (any, error) {
	uri, err := requireURI(toolADTWriteSource, req, "uri")
	if err != nil {
		return nil, err
	}
	source, err := requireString(toolADTWriteSource, req, "source")
	if err != nil {
		return nil, err
	}
	if err := workflow.WriteSourceWithAutoLock(ctx, s.sess, uri, source, req.GetString("transport", "")); err != nil {
		return nil, err
	}
	out := writeSourceResult{URI: uri.String(), Written: true}
	if boolArg(req, "activate", false) {
		objectURI, err := workflow.ObjectURIFromSource(uri)
		if err != nil {
			return nil, err
		}
		res, err := adt.ActivateObject(ctx, s.sess, objectURI.String(), "", "", s.cfg.PollTimeout)
		if err != nil {
			return nil, err
		}
		out.Activation = &res
	}
	return out, nil
}

func (s *Server) handleCheckSyntax(ctx context.Context, req mcpgo.CallToolRequest) (any, error) {
	uri, err := requireURI(toolADTCheckSyntax, req, "uri")
	if err != nil {
		return nil, err
	}
	msgs, err := adt.CheckSyntax(ctx, s.sess, uri, req.GetString("version", "inactive"))
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []adt.CheckMessage{}
	}
	return msgs, nil
}

func (s *Server) handleActivate(ctx context.Context, req mcpgo.CallToolRequest) (any, error) {
	uri := req.GetString("uri", "")
	if uri == "" {
		return adt.ActivatePending(ctx, s.sess, s.cfg.PollTimeout)
	}
	return adt.ActivateObject(ctx, s.sess, uri, req.GetString("type", ""), req.GetString("name", ""), s.cfg.PollTimeout)
}

func (s *Server) handleObjectStructure(ctx context.Context, req mcpgo.CallToolRequest) (any, error) {
	uri, err := requireURI(toolADTObjectStructure, req, "uri")
	if err != nil {
		return nil, err
	}
	return adt.GetObjectStructure(ctx, s.sess, uri)
}

func (s *Server) handleCreateObject(ctx context.Context, req mcpgo.CallToolRequest) (any, error) {
	var create adt.ObjectCreate
	var err error
	if create.Type, err = requireString(toolADTCreateObject, req, "type"); err != nil {
		return nil, err
	}
	if create.Name, err = requireString(toolADTCreateObject, req, "name"); err != nil {
		return nil, err
	}
	if create.Package, err = requireString(toolADTCreateObject, req, "package"); err != nil {
		return nil, err
	}
	create.Description = req.GetString("description", create.Name)
	uri, err := adt.CreateObject(ctx, s.sess, create, req.GetString("transport", ""))
	if err != nil {
		return nil, err
	}
	return map[string]string{"uri": uri.String()}, nil
}

func (s *Server) handleDeleteObject(ctx context.Context, req mcpgo.CallToolRequest) (any, error) {
	uri, err := requireURI(toolADTDeleteObject, req, "uri")
	if err != nil {
		return nil, err
	}
	if err := workflow.DeleteObjectWithAutoLock(ctx, s.sess, uri, req.GetString("transport", "")); err != nil {
		return nil, err
	}
	return map[string]any{"uri": uri.String(), "deleted": true}, nil
}

func (s *Server) handleRunUnitTests(ctx context.Context, req mcpgo.CallToolRequest) (any, error) {
	uri, err := requireURI(toolADTRunUnitTests, req, "uri")
	if err != nil {
		return nil, err
	}
	return adt.RunUnitTests(ctx, s.sess, uri, xmlcodec.DefaultUnitTestOptions())
}

func (s *Server) handleListTransports(ctx context.Context, req mcpgo.CallToolRequest) (any, error) {
	trs, err := adt.ListTransports(ctx, s.sess, req.GetString("user", ""))
	if err != nil {
		return nil, err
	}
	if trs == nil {
		trs = []adt.Transport{}
	}
	return trs, nil
}

func (s *Server) handlePackageExists(ctx context.Context, req mcpgo.CallToolRequest) (any, error) {
	raw, err := requireString(toolADTPackageExists, req, "package")
	if err != nil {
		return nil, err
	}
	name, err := ident.NewPackageName(raw)
	if err != nil {
		return nil, err
	}
	exists, err := adt.PackageExists(ctx, s.sess, name)
	if err != nil {
		return nil, err
	}
	return map[string]any{"package": name.String(), "exists": exists}, nil
}
