package graph

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/bw"
)

// SummaryPrefix starts the id of every node produced by Reduce.
const SummaryPrefix = "SUMMARY:"

// QueryOptions configure QueryGraph.
type QueryOptions struct {
	Name string
	// Type is the component type of the root, QUERY by default.
	Type     string
	Version  string
	MaxDepth int
}

var componentTypes = map[string]bool{
	"QUERY":     true,
	"VARIABLE":  true,
	"RKF":       true,
	"CKF":       true,
	"FILTER":    true,
	"STRUCTURE": true,
}

type queryAssembler struct {
	api      API
	ver      string
	maxDepth int
	b        *Builder
}

// QueryGraph reads a query component and, recursively, the variables, key
// figures, filters and structures it references. Dimensions and filter
// fields become leaves. Reaching a component a second time adds a back_ref
// edge instead of reading it again.
func QueryGraph(ctx context.Context, api API, opts QueryOptions) (Graph, error) {
	const op = "QueryGraph"
	if strings.TrimSpace(opts.Name) == "" {
		return Graph{}, adterr.New(op, "", adterr.Internal, "query name must not be empty")
	}
	rootType := strings.ToUpper(strings.TrimSpace(opts.Type))
	if rootType == "" {
		rootType = "QUERY"
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	q := &queryAssembler{api: api, ver: normVersion(opts.Version), maxDepth: opts.MaxDepth, b: NewBuilder(KindQuery)}

	root, err := api.ReadQueryComponent(ctx, rootType, opts.Name, q.ver)
	if err != nil {
		return Graph{}, err
	}
	q.b.Record("BwReadQueryComponent", queryEndpoint(opts.Name, q.ver), StatusOK)
	rootID := q.b.AddNode(Node{
		ID:      NodeID(rootType, firstNonEmpty(root.Name, opts.Name)),
		Type:    rootType,
		Name:    firstNonEmpty(root.Name, opts.Name),
		Role:    "root",
		Version: q.ver,
		Attributes: attrs(
			"description", root.Description,
			"info_provider", root.InfoProvider,
			"info_provider_type", root.ProviderType,
		),
	})
	if err := q.b.SetRoot(rootID); err != nil {
		return Graph{}, err
	}
	if err := q.expand(ctx, rootID, root, 0); err != nil {
		return Graph{}, err
	}
	if len(root.References) == 0 {
		q.b.Warn("no references discovered for %s %s", rootType, opts.Name)
	}
	return q.b.Build()
}

func (q *queryAssembler) expand(ctx context.Context, parentID string, c bw.QueryComponent, depth int) error {
	for _, ref := range c.References {
		if ref.Name == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return adterr.Newf("QueryGraph", "", adterr.Timeout, "query graph cancelled: %v", err)
		}
		refType := strings.ToUpper(strings.TrimSpace(ref.Type))
		if refType == "" {
			refType = "REFERENCE"
		}
		id := NodeID(refType, ref.Name)
		edge := Edge{From: parentID, To: id, Type: "uses_" + strings.ToLower(refType), Role: ref.Role}
		if q.b.HasNode(id) {
			edge.ID = EdgeID(edge.Type, parentID, id)
			if !q.b.HasEdge(edge.ID) {
				edge.Role = "back_ref"
				edge.Attributes = attrs("ref_role", ref.Role)
				if _, err := q.b.AddEdge(edge); err != nil {
					return err
				}
			}
			continue
		}
		q.b.AddNode(Node{ID: id, Type: refType, Name: ref.Name, Role: refType, Version: q.ver})
		if _, err := q.b.AddEdge(edge); err != nil {
			return err
		}
		if !componentTypes[refType] {
			continue
		}
		if depth+1 >= q.maxDepth {
			q.b.Warn("depth bound %d reached at %s", q.maxDepth, id)
			continue
		}
		child, err := q.api.ReadQueryComponent(ctx, refType, ref.Name, q.ver)
		if err != nil {
			q.b.Record("BwReadQueryComponent", queryEndpoint(ref.Name, q.ver), StatusPartial)
			q.b.Warn("%s %s: %v", refType, ref.Name, err)
			continue
		}
		q.b.Record("BwReadQueryComponent", queryEndpoint(ref.Name, q.ver), StatusOK)
		q.b.AddNode(Node{ID: id, Attributes: attrs(
			"description", child.Description,
			"info_provider", child.InfoProvider,
		)})
		if err := q.expand(ctx, id, child, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func queryEndpoint(name, ver string) string {
	return "/sap/bw/modeling/query/" + strings.ToLower(name) + "/" + ver
}

// ReduceOptions configure Reduce.
type ReduceOptions struct {
	// FocusRole is never reduced.
	FocusRole string
	// MaxNodesPerRole caps every other role; zero disables reduction.
	MaxNodesPerRole int
}

// Reduce collapses crowded roles. For every role except the focus role and
// the root that holds more than MaxNodesPerRole nodes, the first
// MaxNodesPerRole by name are kept and the rest fold into one
// SUMMARY:<role> node carrying omitted_count and omitted_ids. Edges of the
// omitted nodes are rewired to the summary.
func Reduce(g Graph, opts ReduceOptions) Graph {
	if opts.MaxNodesPerRole <= 0 {
		return g
	}
	byRole := make(map[string][]Node)
	for _, n := range g.Nodes {
		if n.ID == g.RootID || n.Role == "" || strings.HasPrefix(n.ID, SummaryPrefix) {
			continue
		}
		role := strings.ToLower(n.Role)
		if opts.FocusRole != "" && role == strings.ToLower(opts.FocusRole) {
			continue
		}
		byRole[role] = append(byRole[role], n)
	}
	replaced := make(map[string]string)
	var summaries []Node
	roles := make([]string, 0, len(byRole))
	for role := range byRole {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		nodes := byRole[role]
		if len(nodes) <= opts.MaxNodesPerRole {
			continue
		}
		sort.Slice(nodes, func(i, j int) bool {
			if nodes[i].Name != nodes[j].Name {
				return nodes[i].Name < nodes[j].Name
			}
			return nodes[i].ID < nodes[j].ID
		})
		omitted := nodes[opts.MaxNodesPerRole:]
		id := SummaryPrefix + role
		ids := make([]string, 0, len(omitted))
		for _, n := range omitted {
			ids = append(ids, n.ID)
			replaced[n.ID] = id
		}
		summaries = append(summaries, Node{
			ID:   id,
			Type: "SUMMARY",
			Name: "+" + strconv.Itoa(len(omitted)) + " more " + role,
			Role: role,
			Attributes: map[string]string{
				"omitted_count": strconv.Itoa(len(omitted)),
				"omitted_ids":   strings.Join(ids, ","),
			},
		})
	}
	if len(summaries) == 0 {
		return g
	}

	out := Graph{
		SchemaVersion: g.SchemaVersion,
		Kind:          g.Kind,
		RootID:        g.RootID,
		Warnings:      append([]string{}, g.Warnings...),
		Provenance:    append([]Provenance{}, g.Provenance...),
	}
	for _, n := range g.Nodes {
		if _, gone := replaced[n.ID]; !gone {
			out.Nodes = append(out.Nodes, n)
		}
	}
	out.Nodes = append(out.Nodes, summaries...)
	seen := make(map[string]bool)
	for _, e := range g.Edges {
		from, to := e.From, e.To
		if r, ok := replaced[from]; ok {
			from = r
		}
		if r, ok := replaced[to]; ok {
			to = r
		}
		if from == to {
			continue
		}
		if from != e.From || to != e.To {
			e.ID = EdgeID(e.Type, from, to)
			e.From, e.To = from, to
		}
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		out.Edges = append(out.Edges, e)
	}
	sortGraph(&out)
	return out
}

// Merge unions a query graph with a lineage graph. Nodes merge by id with
// the query's values taking precedence, edges by source, type and target.
// The query root stays the root. When the lineage contains the query's
// InfoProvider it is linked from the root with a reads_from edge.
func Merge(query, lineage Graph) (Graph, error) {
	b := NewBuilder(KindMerged)
	for _, n := range query.Nodes {
		b.AddNode(n)
	}
	for _, n := range lineage.Nodes {
		b.AddNode(n)
	}
	for _, src := range [][]Edge{query.Edges, lineage.Edges} {
		for _, e := range src {
			e.ID = EdgeID(e.Type, e.From, e.To)
			if _, err := b.AddEdge(e); err != nil {
				return Graph{}, err
			}
		}
	}
	if query.RootID != "" {
		if err := b.SetRoot(query.RootID); err != nil {
			return Graph{}, err
		}
		if root, ok := query.Node(query.RootID); ok {
			provider := root.Attributes["info_provider"]
			providerType := root.Attributes["info_provider_type"]
			if provider != "" && providerType != "" {
				pid := NodeID(providerType, provider)
				if b.HasNode(pid) {
					if _, err := b.AddEdge(Edge{From: query.RootID, To: pid, Type: "reads_from", Role: "provider"}); err != nil {
						return Graph{}, err
					}
				}
			}
		}
	}
	for _, w := range query.Warnings {
		b.Warn("%s", w)
	}
	for _, w := range lineage.Warnings {
		b.Warn("lineage: %s", w)
	}
	for _, p := range append(append([]Provenance{}, query.Provenance...), lineage.Provenance...) {
		b.Record(p.Operation, p.Endpoint, p.Status)
	}
	return b.Build()
}
