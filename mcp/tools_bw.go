package mcp

import (
	"context"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"pkt.systems/sapadt/bw"
	"pkt.systems/sapadt/graph"
)

func (s *Server) registerBWTools() {
	s.add(mcpgo.NewTool(toolBWSearch,
		mcpgo.WithDescription(toolDescription(toolBWSearch)),
		mcpgo.WithString("query", mcpgo.Required(), mcpgo.Description("Search term, wildcards allowed")),
		mcpgo.WithNumber("max", mcpgo.Description("Maximum results (default 100)")),
		mcpgo.WithString("type", mcpgo.Description("Object type, e.g. ADSO, DTPA, TRFN")),
		mcpgo.WithString("subtype", mcpgo.Description("Object subtype")),
		mcpgo.WithString("status", mcpgo.Description("Object status")),
		mcpgo.WithString("version", mcpgo.Description("Object version (A, M, D)")),
		mcpgo.WithString("changed_by", mcpgo.Description("Last changed by user")),
		mcpgo.WithString("depends_on_name", mcpgo.Description("Only objects depending on this object")),
		mcpgo.WithString("depends_on_type", mcpgo.Description("Type of depends_on_name")),
		mcpgo.WithBoolean("search_desc", mcpgo.Description("Also match descriptions")),
		mcpgo.WithReadOnlyHintAnnotation(true),
	), s.handleBWSearch)

	s.add(mcpgo.NewTool(toolBWXref,
		mcpgo.WithDescription(toolDescription(toolBWXref)),
		mcpgo.WithString("type", mcpgo.Required(), mcpgo.Description("Object type")),
		mcpgo.WithString("name", mcpgo.Required(), mcpgo.Description("Object name")),
		mcpgo.WithString("version", mcpgo.Description("Object version")),
		mcpgo.WithString("association", mcpgo.Description("Association code filter")),
		mcpgo.WithString("associated_type", mcpgo.Description("Associated object type filter")),
		mcpgo.WithNumber("max", mcpgo.Description("Maximum results")),
		mcpgo.WithReadOnlyHintAnnotation(true),
	), s.handleBWXref)

	s.add(mcpgo.NewTool(toolBWReadDTP,
		mcpgo.WithDescription(toolDescription(toolBWReadDTP)),
		mcpgo.WithString("name", mcpgo.Required(), mcpgo.Description("DTP name")),
		mcpgo.WithString("version", mcpgo.Description("a (active, default), m or d")),
		mcpgo.WithReadOnlyHintAnnotation(true),
	), s.handleBWReadDTP)

	s.add(mcpgo.NewTool(toolBWLineage,
		mcpgo.WithDescription(toolDescription(toolBWLineage)),
		mcpgo.WithString("dtp", mcpgo.Required(), mcpgo.Description("Root DTP name")),
		mcpgo.WithString("version", mcpgo.Description("Object version (default a)")),
		mcpgo.WithNumber("max_depth", mcpgo.Description("Upstream DTP hops to follow (default 5)")),
		mcpgo.WithBoolean("include_xref", mcpgo.Description("Follow ADSO sources through cross references (default true)")),
		mcpgo.WithString("trfn", mcpgo.Description("Transformation of the root DTP, skips the search")),
		mcpgo.WithBoolean("mermaid", mcpgo.Description("Also return a Mermaid flowchart")),
		mcpgo.WithReadOnlyHintAnnotation(true),
	), s.handleBWLineage)

	s.add(mcpgo.NewTool(toolBWQueryGraph,
		mcpgo.WithDescription(toolDescription(toolBWQueryGraph)),
		mcpgo.WithString("name", mcpgo.Required(), mcpgo.Description("Query or component name")),
		mcpgo.WithString("type", mcpgo.Description("Component type (default QUERY)")),
		mcpgo.WithString("version", mcpgo.Description("Object version (default a)")),
		mcpgo.WithNumber("max_depth", mcpgo.Description("Component nesting depth")),
		mcpgo.WithString("focus_role", mcpgo.Description("Role that is never reduced")),
		mcpgo.WithNumber("max_nodes_per_role", mcpgo.Description("Collapse roles above this size (0 keeps all)")),
		mcpgo.WithBoolean("upstream", mcpgo.Description("Plan and merge upstream lineage of the InfoProvider")),
		mcpgo.WithBoolean("mermaid", mcpgo.Description("Also return a Mermaid flowchart")),
		mcpgo.WithReadOnlyHintAnnotation(true),
	), s.handleBWQueryGraph)

	s.add(mcpgo.NewTool(toolBWPlanUpstream,
		mcpgo.WithDescription(toolDescription(toolBWPlanUpstream)),
		mcpgo.WithString("info_provider", mcpgo.Required(), mcpgo.Description("InfoProvider name")),
		mcpgo.WithString("provider_type", mcpgo.Description("InfoProvider type, e.g. ADSO")),
		mcpgo.WithReadOnlyHintAnnotation(true),
	), s.handleBWPlanUpstream)

	s.add(mcpgo.NewTool(toolBWListJobs,
		mcpgo.WithDescription(toolDescription(toolBWListJobs)),
		mcpgo.WithReadOnlyHintAnnotation(true),
	), s.handleBWListJobs)

	s.add(mcpgo.NewTool(toolBWJobStatus,
		mcpgo.WithDescription(toolDescription(toolBWJobStatus)),
		mcpgo.WithString("guid", mcpgo.Required(), mcpgo.Description("Job GUID")),
		mcpgo.WithReadOnlyHintAnnotation(true),
	), s.handleBWJobStatus)

	s.add(mcpgo.NewTool(toolBWListLocks,
		mcpgo.WithDescription(toolDescription(toolBWListLocks)),
		mcpgo.WithString("user", mcpgo.Description("Lock owner")),
		mcpgo.WithString("search", mcpgo.Description("Search string")),
		mcpgo.WithNumber("max", mcpgo.Description("Maximum rows (default 100)")),
		mcpgo.WithReadOnlyHintAnnotation(true),
	), s.handleBWListLocks)
}

func (s *Server) handleBWSearch(ctx context.Context, req mcpgo.CallToolRequest) (any, error) {
	query, err := requireString(toolBWSearch, req, "query")
	if err != nil {
		return nil, err
	}
	res, err := bw.SearchObjects(ctx, s.bwSession(ctx), bw.SearchOptions{
		Query:               query,
		MaxResults:          intArg(req, "max", bw.DefaultSearchMax),
		ObjectType:          req.GetString("type", ""),
		ObjectSubType:       req.GetString("subtype", ""),
		ObjectStatus:        req.GetString("status", ""),
		ObjectVersion:       req.GetString("version", ""),
		ChangedBy:           req.GetString("changed_by", ""),
		DependsOnObjectName: req.GetString("depends_on_name", ""),
		DependsOnObjectType: req.GetString("depends_on_type", ""),
		SearchInDescription: boolArg(req, "search_desc", false),
	})
	if err != nil {
		return nil, err
	}
	if res.Items == nil {
		res.Items = []bw.SearchItem{}
	}
	return res, nil
}

func (s *Server) handleBWXref(ctx context.Context, req mcpgo.CallToolRequest) (any, error) {
	objectType, err := requireString(toolBWXref, req, "type")
	if err != nil {
		return nil, err
	}
	name, err := requireString(toolBWXref, req, "name")
	if err != nil {
		return nil, err
	}
	refs, err := bw.GetXref(ctx, s.sess, bw.XrefOptions{
		ObjectType:           objectType,
		ObjectName:           name,
		ObjectVersion:        req.GetString("version", ""),
		Association:          req.GetString("association", ""),
		AssociatedObjectType: req.GetString("associated_type", ""),
		MaxResults:           intArg(req, "max", 0),
	})
	if err != nil {
		return nil, err
	}
	if refs == nil {
		refs = []bw.XrefEntry{}
	}
	return refs, nil
}

func (s *Server) handleBWReadDTP(ctx context.Context, req mcpgo.CallToolRequest) (any, error) {
	name, err := requireString(toolBWReadDTP, req, "name")
	if err != nil {
		return nil, err
	}
	return bw.ReadDTP(ctx, s.bwSession(ctx), name, req.GetString("version", bw.DefaultVersion))
}

type graphResult struct {
	Graph   graph.Graph `json:"graph"`
	Plan    *graph.Plan `json:"upstream_plan,omitempty"`
	Mermaid string      `json:"mermaid,omitempty"`
}

func (s *Server) handleBWLineage(ctx context.Context, req mcpgo.CallToolRequest) (any, error) {
	dtp, err := requireString(toolBWLineage, req, "dtp")
	if err != nil {
		return nil, err
	}
	g, err := graph.Lineage(ctx, graph.NewAPI(s.bwSession(ctx)), graph.LineageOptions{
		DTP:         dtp,
		Version:     req.GetString("version", bw.DefaultVersion),
		MaxDepth:    intArg(req, "max_depth", 0),
		IncludeXref: boolArg(req, "include_xref", true),
		TRFN:        req.GetString("trfn", ""),
	})
	if err != nil {
		return nil, err
	}
	out := graphResult{Graph: g}
	if boolArg(req, "mermaid", false) {
		out.Mermaid = graph.Mermaid(g, graph.MermaidOptions{Direction: "LR"})
	}
	return out, nil
}

func (s *Server) handleBWQueryGraph(ctx context.Context, req mcpgo.CallToolRequest) (any, error) {
	name, err := requireString(toolBWQueryGraph, req, "name")
	if err != nil {
		return nil, err
	}
	exp, err := graph.ExportQuery(ctx, graph.NewAPI(s.bwSession(ctx)), graph.QueryExportOptions{
		Query: graph.QueryOptions{
			Name:     name,
			Type:     req.GetString("type", ""),
			Version:  req.GetString("version", bw.DefaultVersion),
			MaxDepth: intArg(req, "max_depth", 0),
		},
		Reduce: graph.ReduceOptions{
			FocusRole:       req.GetString("focus_role", ""),
			MaxNodesPerRole: intArg(req, "max_nodes_per_role", 0),
		},
		Upstream:    boolArg(req, "upstream", false),
		IncludeXref: true,
	})
	if err != nil {
		return nil, err
	}
	out := graphResult{Graph: exp.Graph, Plan: exp.Plan}
	if boolArg(req, "mermaid", false) {
		out.Mermaid = graph.Mermaid(exp.Graph, graph.MermaidOptions{})
	}
	return out, nil
}

func (s *Server) handleBWPlanUpstream(ctx context.Context, req mcpgo.CallToolRequest) (any, error) {
	provider, err := requireString(toolBWPlanUpstream, req, "info_provider")
	if err != nil {
		return nil, err
	}
	return graph.PlanUpstream(ctx, graph.NewAPI(s.bwSession(ctx)), graph.PlannerOptions{
		InfoProvider: provider,
		ProviderType: req.GetString("provider_type", ""),
	})
}

func (s *Server) handleBWListJobs(ctx context.Context, _ mcpgo.CallToolRequest) (any, error) {
	jobs, err := bw.ListJobs(ctx, s.sess)
	if err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []bw.Job{}
	}
	return jobs, nil
}

func (s *Server) handleBWJobStatus(ctx context.Context, req mcpgo.CallToolRequest) (any, error) {
	guid, err := requireString(toolBWJobStatus, req, "guid")
	if err != nil {
		return nil, err
	}
	return bw.GetJobStatus(ctx, s.sess, guid)
}

func (s *Server) handleBWListLocks(ctx context.Context, req mcpgo.CallToolRequest) (any, error) {
	locks, err := bw.ListLocks(ctx, s.sess, req.GetString("user", ""), req.GetString("search", ""), intArg(req, "max", 100))
	if err != nil {
		return nil, err
	}
	if locks == nil {
		locks = []bw.Lock{}
	}
	return locks, nil
}
