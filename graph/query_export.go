package graph

import (
	"context"
)

// QueryExportOptions configure ExportQuery.
type QueryExportOptions struct {
	Query  QueryOptions
	Reduce ReduceOptions
	// Upstream plans the DTPs loading the query's InfoProvider and, when
	// exactly one is found, merges its lineage into the graph.
	Upstream     bool
	LineageDepth int
	Planner      PlannerOptions
	IncludeXref  bool
}

// QueryExport is a query graph with its optional upstream plan.
type QueryExport struct {
	Graph Graph `json:"graph"`
	Plan  *Plan `json:"upstream_plan,omitempty"`
}

// ExportQuery assembles the query graph, reduces it and, when asked,
// stitches in the upstream lineage. An ambiguous or empty plan leaves the
// graph as the reduced query graph; the plan's warnings are carried over.
func ExportQuery(ctx context.Context, api API, opts QueryExportOptions) (QueryExport, error) {
	g, err := QueryGraph(ctx, api, opts.Query)
	if err != nil {
		return QueryExport{}, err
	}
	g = Reduce(g, opts.Reduce)
	out := QueryExport{Graph: g}
	if !opts.Upstream {
		return out, nil
	}
	root, _ := g.Node(g.RootID)
	popts := opts.Planner
	popts.InfoProvider = root.Attributes["info_provider"]
	popts.ProviderType = root.Attributes["info_provider_type"]
	plan, err := PlanUpstream(ctx, api, popts)
	if err != nil {
		return QueryExport{}, err
	}
	out.Plan = &plan
	if plan.SelectedDTP == "" {
		out.Graph.Warnings = append(out.Graph.Warnings, plan.Warnings...)
		return out, nil
	}
	lin, err := Lineage(ctx, api, LineageOptions{
		DTP:         plan.SelectedDTP,
		Version:     opts.Query.Version,
		MaxDepth:    opts.LineageDepth,
		IncludeXref: opts.IncludeXref,
	})
	if err != nil {
		out.Graph.Warnings = append(out.Graph.Warnings, "upstream lineage "+plan.SelectedDTP+": "+err.Error())
		return out, nil
	}
	merged, err := Merge(g, lin)
	if err != nil {
		return QueryExport{}, err
	}
	merged.Warnings = append(merged.Warnings, plan.Warnings...)
	out.Graph = merged
	return out, nil
}
