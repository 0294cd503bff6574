package graph

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/internal/clock"
)

// ExportContract names the infoarea export document.
const ExportContract = "bw.infoarea.export"

// Export defaults.
const (
	DefaultExportDepth       = 10
	DefaultExportConcurrency = 4
)

// ExportOptions configure ExportInfoarea.
type ExportOptions struct {
	Version  string
	MaxDepth int
	// Types restricts exported objects to these types; empty exports all.
	Types []string
	// IncludeLineage assembles a lineage graph per DTP and folds it into the
	// dataflow graph. Cross references are not followed.
	IncludeLineage bool
	// IncludeQueries assembles a query graph per QUERY.
	IncludeQueries bool
	// Concurrency bounds detail reads in flight.
	Concurrency int
	Clock       clock.Clock
}

// ExportedField is a field of an exported object.
type ExportedField struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	DataType    string `json:"data_type,omitempty"`
	InfoObject  string `json:"info_object,omitempty"`
	Segment     string `json:"segment_id,omitempty"`
	Length      int    `json:"length,omitempty"`
	Decimals    int    `json:"decimals,omitempty"`
	Key         bool   `json:"key"`
}

// ObjectRef names an object by type and name.
type ObjectRef struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ExportedObject is one object found in the infoarea.
type ExportedObject struct {
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Subtype     string          `json:"subtype,omitempty"`
	Status      string          `json:"status,omitempty"`
	Description string          `json:"description,omitempty"`
	Package     string          `json:"package_name,omitempty"`
	URI         string          `json:"uri,omitempty"`
	Fields      []ExportedField `json:"fields,omitempty"`
	Source      *ObjectRef      `json:"source,omitempty"`
	Target      *ObjectRef      `json:"target,omitempty"`
	Lineage     *Graph          `json:"lineage,omitempty"`
	Query       *Graph          `json:"query_graph,omitempty"`
}

// InfoareaExport is the export document.
type InfoareaExport struct {
	SchemaVersion string           `json:"schema_version"`
	Contract      string           `json:"contract"`
	RunID         string           `json:"run_id"`
	Infoarea      string           `json:"infoarea"`
	ExportedAt    string           `json:"exported_at"`
	Objects       []ExportedObject `json:"objects"`
	DataflowNodes []Node           `json:"dataflow_nodes"`
	DataflowEdges []Edge           `json:"dataflow_edges"`
	Warnings      []string         `json:"warnings"`
	Provenance    []Provenance     `json:"provenance"`
}

// Dataflow returns the dataflow part of the export as a graph.
func (x InfoareaExport) Dataflow() Graph {
	return Graph{
		SchemaVersion: x.SchemaVersion,
		Kind:          KindDataflow,
		Nodes:         x.DataflowNodes,
		Edges:         x.DataflowEdges,
		Warnings:      x.Warnings,
		Provenance:    x.Provenance,
	}
}

type areaEntry struct {
	objectType string
	name       string
	depth      int
}

// ExportInfoarea walks the InfoArea tree breadth first, collecting every
// object below it, then reads the details of ADSOs, DataSources,
// transformations, DTPs and queries concurrently. DTPs and transformations
// contribute source and target edges to the dataflow graph. Read failures
// become warnings; only cancellation aborts the export.
func ExportInfoarea(ctx context.Context, api API, name string, opts ExportOptions) (InfoareaExport, error) {
	const op = "ExportInfoarea"
	if strings.TrimSpace(name) == "" {
		return InfoareaExport{}, adterr.New(op, "", adterr.Internal, "infoarea name must not be empty")
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultExportDepth
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultExportConcurrency
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	ver := normVersion(opts.Version)
	b := NewBuilder(KindDataflow)
	x := InfoareaExport{
		SchemaVersion: SchemaVersion,
		Contract:      ExportContract,
		RunID:         uuid.NewString(),
		Infoarea:      name,
		ExportedAt:    opts.Clock.Now().UTC().Format(time.RFC3339),
	}

	queue := []areaEntry{{objectType: "AREA", name: name}}
	visited := map[string]bool{"AREA|" + name: true}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return InfoareaExport{}, adterr.Newf(op, "", adterr.Timeout, "export cancelled: %v", err)
		}
		cur := queue[0]
		queue = queue[1:]
		endpoint := "/sap/bw/modeling/repo/infoproviderstructure/" + cur.objectType + "/" + cur.name
		children, err := api.Nodes(ctx, cur.objectType, cur.name)
		if err != nil {
			b.Record("BwGetNodes", endpoint, StatusPartial)
			b.Warn("GetNodes %s: %v", cur.name, err)
			continue
		}
		b.Record("BwGetNodes", endpoint, StatusOK)
		for _, n := range children {
			if isContainer(n.Type) {
				key := n.Type + "|" + firstNonEmpty(n.URI, n.Name)
				if cur.depth+1 <= opts.MaxDepth && !visited[key] {
					visited[key] = true
					queue = append(queue, areaEntry{objectType: n.Type, name: n.Name, depth: cur.depth + 1})
				}
				continue
			}
			if !typeSelected(n.Type, opts.Types) {
				continue
			}
			x.Objects = append(x.Objects, ExportedObject{
				Name:        n.Name,
				Type:        n.Type,
				Subtype:     n.Subtype,
				Status:      n.Status,
				Description: n.Description,
				URI:         n.URI,
			})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i := range x.Objects {
		obj := &x.Objects[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return adterr.Newf(op, "", adterr.Timeout, "export cancelled: %v", err)
			}
			exportDetail(gctx, api, b, ver, opts, obj)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return InfoareaExport{}, err
	}

	flow, err := b.Build()
	if err != nil {
		return InfoareaExport{}, err
	}
	x.DataflowNodes = flow.Nodes
	x.DataflowEdges = flow.Edges
	// Detail reads finish in any order.
	x.Warnings = flow.Warnings
	sort.Strings(x.Warnings)
	x.Provenance = flow.Provenance
	sort.SliceStable(x.Provenance, func(i, j int) bool {
		a, c := x.Provenance[i], x.Provenance[j]
		if a.Endpoint != c.Endpoint {
			return a.Endpoint < c.Endpoint
		}
		return a.Operation < c.Operation
	})
	if x.Objects == nil {
		x.Objects = []ExportedObject{}
	}
	return x, nil
}

func exportDetail(ctx context.Context, api API, b *Builder, ver string, opts ExportOptions, obj *ExportedObject) {
	switch strings.ToUpper(obj.Type) {
	case "ADSO":
		endpoint := "/sap/bw/modeling/adso/" + strings.ToLower(obj.Name) + "/" + ver
		d, err := api.ReadADSO(ctx, obj.Name, ver)
		if err != nil {
			b.Record("BwReadADSO", endpoint, StatusPartial)
			b.Warn("ADSO %s: %v", obj.Name, err)
			return
		}
		b.Record("BwReadADSO", endpoint, StatusOK)
		obj.Description = firstNonEmpty(d.Description, obj.Description)
		obj.Package = d.Package
		for _, f := range d.Fields {
			obj.Fields = append(obj.Fields, ExportedField{
				Name: f.Name, Description: f.Description, DataType: f.DataType, InfoObject: f.InfoObject,
				Length: f.Length, Decimals: f.Decimals, Key: f.Key,
			})
		}
		b.AddNode(Node{Type: "ADSO", Name: obj.Name, Role: "provider", URI: obj.URI, Version: ver})

	case "RSDS":
		sys := sourceSystemFromURI(obj.URI)
		endpoint := "/sap/bw/modeling/rsds/" + strings.ToLower(obj.Name) + "/" + sys + "/" + ver
		if sys == "" {
			b.Record("BwReadRSDS", endpoint, StatusSkipped)
			b.Warn("RSDS %s: source system unknown", obj.Name)
			return
		}
		d, err := api.ReadRSDS(ctx, obj.Name, sys, ver)
		if err != nil {
			b.Record("BwReadRSDS", endpoint, StatusPartial)
			b.Warn("RSDS %s: %v", obj.Name, err)
			return
		}
		b.Record("BwReadRSDS", endpoint, StatusOK)
		obj.Description = firstNonEmpty(d.Description, obj.Description)
		obj.Package = d.Package
		for _, f := range d.Fields {
			obj.Fields = append(obj.Fields, ExportedField{
				Name: f.Name, Description: f.Description, DataType: f.DataType, Segment: f.Segment,
				Length: f.Length, Decimals: f.Decimals, Key: f.Key,
			})
		}
		b.AddNode(Node{Type: "RSDS", Name: obj.Name, Role: "source", URI: obj.URI, Version: ver,
			Attributes: attrs("source_system", sys)})

	case "TRFN":
		endpoint := "/sap/bw/modeling/trfn/" + strings.ToLower(obj.Name) + "/" + ver
		d, err := api.ReadTransformation(ctx, obj.Name, ver)
		if err != nil {
			b.Record("BwReadTransformation", endpoint, StatusPartial)
			b.Warn("TRFN %s: %v", obj.Name, err)
			return
		}
		b.Record("BwReadTransformation", endpoint, StatusOK)
		obj.Description = firstNonEmpty(d.Description, obj.Description)
		obj.Source = &ObjectRef{Name: d.SourceName, Type: d.SourceType}
		obj.Target = &ObjectRef{Name: d.TargetName, Type: d.TargetType}
		flowEdges(b, "TRFN", obj.Name, "transformation", ver, d.SourceName, d.SourceType, d.TargetName, d.TargetType, "trfn")

	case "DTPA":
		endpoint := "/sap/bw/modeling/dtpa/" + strings.ToLower(obj.Name) + "/" + ver
		d, err := api.ReadDTP(ctx, obj.Name, ver)
		if err != nil {
			b.Record("BwReadDTP", endpoint, StatusPartial)
			b.Warn("DTPA %s: %v", obj.Name, err)
			return
		}
		b.Record("BwReadDTP", endpoint, StatusOK)
		obj.Description = firstNonEmpty(d.Description, obj.Description)
		obj.Source = &ObjectRef{Name: d.SourceName, Type: d.SourceType}
		obj.Target = &ObjectRef{Name: d.TargetName, Type: d.TargetType}
		flowEdges(b, "DTPA", obj.Name, "dtp", ver, d.SourceName, d.SourceType, d.TargetName, d.TargetType, "dtp")
		if !opts.IncludeLineage {
			return
		}
		lg, err := Lineage(ctx, api, LineageOptions{DTP: obj.Name, Version: ver})
		if err != nil {
			b.Warn("DTPA lineage %s: %v", obj.Name, err)
			return
		}
		obj.Lineage = &lg
		for _, w := range lg.Warnings {
			b.Warn("DTPA lineage %s: %s", obj.Name, w)
		}
		for _, n := range lg.Nodes {
			b.AddNode(n)
		}
		for _, e := range lg.Edges {
			if _, err := b.AddEdge(e); err != nil {
				b.Warn("DTPA lineage %s: %v", obj.Name, err)
			}
		}

	case "QUERY", "ELEM":
		endpoint := "/sap/bw/modeling/query/" + strings.ToLower(obj.Name) + "/" + ver
		if !opts.IncludeQueries {
			b.Record("QueryGraph", endpoint, StatusSkipped)
			return
		}
		qg, err := QueryGraph(ctx, api, QueryOptions{Name: obj.Name, Version: ver})
		if err != nil {
			b.Record("QueryGraph", endpoint, StatusPartial)
			b.Warn("QUERY %s: %v", obj.Name, err)
			return
		}
		b.Record("QueryGraph", endpoint, StatusOK)
		obj.Query = &qg
		if root, ok := qg.Node(qg.RootID); ok {
			obj.Description = firstNonEmpty(root.Attributes["description"], obj.Description)
			if p := root.Attributes["info_provider"]; p != "" {
				obj.Target = &ObjectRef{Name: p, Type: root.Attributes["info_provider_type"]}
			}
		}

	default:
		b.Record("BwGetNodes", obj.URI, StatusSkipped)
	}
}

// flowEdges adds a process node between its source and target.
func flowEdges(b *Builder, objType, name, role, ver, srcName, srcType, tgtName, tgtType, prefix string) {
	id := b.AddNode(Node{Type: objType, Name: name, Role: role, Version: ver})
	if srcName != "" {
		src := b.AddNode(Node{Type: objectType(srcType), Name: srcName})
		if _, err := b.AddEdge(Edge{From: src, To: id, Type: prefix + "_source"}); err != nil {
			b.Warn("%s %s: %v", objType, name, err)
		}
	}
	if tgtName != "" {
		tgt := b.AddNode(Node{Type: objectType(tgtType), Name: tgtName})
		if _, err := b.AddEdge(Edge{From: id, To: tgt, Type: prefix + "_target"}); err != nil {
			b.Warn("%s %s: %v", objType, name, err)
		}
	}
}

func isContainer(t string) bool {
	return strings.EqualFold(t, "AREA") || strings.EqualFold(t, "semanticalFolder")
}

func typeSelected(t string, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if strings.EqualFold(f, t) {
			return true
		}
	}
	return false
}

// sourceSystemFromURI extracts the source system from
// /sap/bw/modeling/rsds/<name>/<logsys>/<version>.
func sourceSystemFromURI(uri string) string {
	parts := strings.FieldsFunc(uri, func(r rune) bool { return r == '/' })
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "rsds" {
			return parts[i+2]
		}
	}
	return ""
}
