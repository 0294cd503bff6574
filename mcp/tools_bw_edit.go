package mcp

import (
	"context"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"pkt.systems/sapadt/adt"
	"pkt.systems/sapadt/bw"
	"pkt.systems/sapadt/workflow"
)

func (s *Server) registerBWEditTools() {
	s.add(mcpgo.NewTool(toolADTReadTable,
		mcpgo.WithDescription(toolDescription(toolADTReadTable)),
		mcpgo.WithString("name", mcpgo.Required(), mcpgo.Description("Table name")),
		mcpgo.WithReadOnlyHintAnnotation(true),
	), s.handleReadTable)

	s.add(mcpgo.NewTool(toolADTReadCDS,
		mcpgo.WithDescription(toolDescription(toolADTReadCDS)),
		mcpgo.WithString("name", mcpgo.Required(), mcpgo.Description("CDS view (DDL source) name")),
		mcpgo.WithReadOnlyHintAnnotation(true),
	), s.handleReadCDS)

	s.add(mcpgo.NewTool(toolADTRunClass,
		mcpgo.WithDescription(toolDescription(toolADTRunClass)),
		mcpgo.WithString("class", mcpgo.Required(), mcpgo.Description("Class name or ADT URI")),
	), s.handleRunClass)

	s.add(mcpgo.NewTool(toolBWDiscover,
		mcpgo.WithDescription(toolDescription(toolBWDiscover)),
		mcpgo.WithReadOnlyHintAnnotation(true),
	), s.handleBWDiscover)

	s.add(mcpgo.NewTool(toolBWDBInfo,
		mcpgo.WithDescription(toolDescription(toolBWDBInfo)),
		mcpgo.WithReadOnlyHintAnnotation(true),
	), s.handleBWDBInfo)

	s.add(mcpgo.NewTool(toolBWReadDataFlow,
		mcpgo.WithDescription(toolDescription(toolBWReadDataFlow)),
		mcpgo.WithString("name", mcpgo.Required(), mcpgo.Description("Data flow name")),
		mcpgo.WithString("version", mcpgo.Description("a (active, default), m or d")),
		mcpgo.WithReadOnlyHintAnnotation(true),
	), s.handleBWReadDataFlow)

	s.add(mcpgo.NewTool(toolBWSaveObject,
		mcpgo.WithDescription(toolDescription(toolBWSaveObject)),
		mcpgo.WithString("type", mcpgo.Required(), mcpgo.Description("Object type, e.g. ADSO, TRFN")),
		mcpgo.WithString("name", mcpgo.Required(), mcpgo.Description("Object name")),
		mcpgo.WithString("content", mcpgo.Required(), mcpgo.Description("Complete object XML")),
		mcpgo.WithString("transport", mcpgo.Description("Transport request number")),
		mcpgo.WithString("content_type", mcpgo.Description("Media type of the XML (default: the type's)")),
		mcpgo.WithDestructiveHintAnnotation(true),
	), s.handleBWSaveObject)

	s.add(mcpgo.NewTool(toolBWDeleteObject,
		mcpgo.WithDescription(toolDescription(toolBWDeleteObject)),
		mcpgo.WithString("type", mcpgo.Required(), mcpgo.Description("Object type")),
		mcpgo.WithString("name", mcpgo.Required(), mcpgo.Description("Object name")),
		mcpgo.WithString("transport", mcpgo.Description("Transport request number")),
		mcpgo.WithDestructiveHintAnnotation(true),
	), s.handleBWDeleteObject)

	s.add(mcpgo.NewTool(toolBWActivate,
		mcpgo.WithDescription(toolDescription(toolBWActivate)),
		mcpgo.WithArray("objects", mcpgo.Required(),
			mcpgo.Description("Objects to activate as {type, name, version}"),
			mcpgo.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"type":    map[string]any{"type": "string"},
					"name":    map[string]any{"type": "string"},
					"version": map[string]any{"type": "string"},
				},
				"required": []string{"type", "name"},
			})),
		mcpgo.WithString("mode", mcpgo.Description("activate (default), validate, simulate or background")),
		mcpgo.WithString("transport", mcpgo.Description("Transport request number")),
		mcpgo.WithBoolean("force", mcpgo.Description("Activate even with warnings")),
		mcpgo.WithBoolean("exec_checks", mcpgo.Description("Run the object checks")),
	), s.handleBWActivate)
}

func (s *Server) handleReadTable(ctx context.Context, req mcpgo.CallToolRequest) (any, error) {
	name, err := requireString(toolADTReadTable, req, "name")
	if err != nil {
		return nil, err
	}
	return adt.GetTableDefinition(ctx, s.sess, name)
}

func (s *Server) handleReadCDS(ctx context.Context, req mcpgo.CallToolRequest) (any, error) {
	name, err := requireString(toolADTReadCDS, req, "name")
	if err != nil {
		return nil, err
	}
	src, err := adt.GetCDSSource(ctx, s.sess, name)
	if err != nil {
		return nil, err
	}
	return map[string]any{"name": strings.ToUpper(name), "source": src}, nil
}

func (s *Server) handleRunClass(ctx context.Context, req mcpgo.CallToolRequest) (any, error) {
	class, err := requireString(toolADTRunClass, req, "class")
	if err != nil {
		return nil, err
	}
	return adt.RunClass(ctx, s.sess, class)
}

func (s *Server) handleBWDiscover(ctx context.Context, _ mcpgo.CallToolRequest) (any, error) {
	d, err := bw.Discover(ctx, s.sess)
	if err != nil {
		return nil, err
	}
	if d.Services == nil {
		d.Services = []bw.Service{}
	}
	return d.Services, nil
}

func (s *Server) handleBWDBInfo(ctx context.Context, _ mcpgo.CallToolRequest) (any, error) {
	return bw.GetDBInfo(ctx, s.sess)
}

func (s *Server) handleBWReadDataFlow(ctx context.Context, req mcpgo.CallToolRequest) (any, error) {
	name, err := requireString(toolBWReadDataFlow, req, "name")
	if err != nil {
		return nil, err
	}
	return bw.ReadDataFlow(ctx, s.bwSession(ctx), name, req.GetString("version", bw.DefaultVersion))
}

func (s *Server) handleBWSaveObject(ctx context.Context, req mcpgo.CallToolRequest) (any, error) {
	objectType, err := requireString(toolBWSaveObject, req, "type")
	if err != nil {
		return nil, err
	}
	name, err := requireString(toolBWSaveObject, req, "name")
	if err != nil {
		return nil, err
	}
	content, err := requireString(toolBWSaveObject, req, "content")
	if err != nil {
		return nil, err
	}
	opts := bw.SaveOptions{
		ObjectType:  strings.ToUpper(objectType),
		Name:        strings.ToUpper(name),
		Content:     content,
		Transport:   req.GetString("transport", ""),
		ContentType: req.GetString("content_type", ""),
	}
	if err := workflow.SaveBWObjectWithAutoLock(ctx, s.sess, opts); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "type": opts.ObjectType, "name": opts.Name, "bytes": len(content)}, nil
}

func (s *Server) handleBWDeleteObject(ctx context.Context, req mcpgo.CallToolRequest) (any, error) {
	objectType, err := requireString(toolBWDeleteObject, req, "type")
	if err != nil {
		return nil, err
	}
	name, err := requireString(toolBWDeleteObject, req, "name")
	if err != nil {
		return nil, err
	}
	objectType, name = strings.ToUpper(objectType), strings.ToUpper(name)
	if err := workflow.DeleteBWObjectWithAutoLock(ctx, s.sess, objectType, name, req.GetString("transport", "")); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "type": objectType, "name": name}, nil
}

func activationObjectsArg(req mcpgo.CallToolRequest) ([]bw.ActivationObject, error) {
	raw, ok := req.GetArguments()["objects"].([]any)
	if !ok || len(raw) == 0 {
		return nil, argError(toolBWActivate, "argument %q must be a non-empty array", "objects")
	}
	objs := make([]bw.ActivationObject, 0, len(raw))
	for i, item := range raw {
		m, _ := item.(map[string]any)
		objectType, _ := m["type"].(string)
		name, _ := m["name"].(string)
		if objectType == "" || name == "" {
			return nil, argError(toolBWActivate, "objects[%d] needs type and name", i)
		}
		version, _ := m["version"].(string)
		if version == "" {
			version = "M"
		}
		objs = append(objs, bw.ActivationObject{
			Type:    strings.ToUpper(objectType),
			Name:    strings.ToUpper(name),
			Version: strings.ToUpper(version),
		})
	}
	return objs, nil
}

func (s *Server) handleBWActivate(ctx context.Context, req mcpgo.CallToolRequest) (any, error) {
	objs, err := activationObjectsArg(req)
	if err != nil {
		return nil, err
	}
	mode, err := bw.ParseActivationMode(req.GetString("mode", ""))
	if err != nil {
		return nil, err
	}
	return bw.Activate(ctx, s.sess, bw.ActivateOptions{
		Objects:    objs,
		Mode:       mode,
		Transport:  req.GetString("transport", ""),
		Force:      boolArg(req, "force", false),
		ExecChecks: boolArg(req, "exec_checks", false),
	})
}
