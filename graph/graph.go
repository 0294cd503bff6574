// Package graph assembles BW dataflow and query graphs: DTP lineage, query
// component graphs with reduction and merging, the upstream DTP planner,
// Mermaid rendering and the infoarea export.
//
// Every assembler shares one Builder, which keeps the graph invariants:
// unique node ids, edges between existing nodes, an existing root and, for
// lineage graphs, no cycles. Output is sorted so reruns diff cleanly.
package graph

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"pkt.systems/sapadt/adterr"
)

// SchemaVersion is the version of the serialised graph shape.
const SchemaVersion = "1.0"

// Graph kinds.
const (
	KindLineage  = "lineage"
	KindQuery    = "query"
	KindMerged   = "merged"
	KindDataflow = "dataflow"
)

// Provenance statuses.
const (
	StatusOK      = "ok"
	StatusSkipped = "skipped"
	StatusPartial = "partial"
)

// Node is a graph vertex.
type Node struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Name       string            `json:"name"`
	Role       string            `json:"role,omitempty"`
	URI        string            `json:"uri,omitempty"`
	Version    string            `json:"version,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Edge is a directed graph edge.
type Edge struct {
	ID         string            `json:"id"`
	From       string            `json:"from"`
	To         string            `json:"to"`
	Type       string            `json:"type"`
	Role       string            `json:"role,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Provenance records one server call made while assembling a graph.
type Provenance struct {
	Operation string `json:"operation"`
	Endpoint  string `json:"endpoint"`
	Status    string `json:"status"`
}

// Graph is an assembled graph. encoding/json writes attribute maps with
// sorted keys, so serialisation is deterministic.
type Graph struct {
	SchemaVersion string       `json:"schema_version"`
	Kind          string       `json:"kind,omitempty"`
	RootID        string       `json:"root_id,omitempty"`
	Nodes         []Node       `json:"nodes"`
	Edges         []Edge       `json:"edges"`
	Warnings      []string     `json:"warnings"`
	Provenance    []Provenance `json:"provenance"`
}

// Node returns the node with id.
func (g Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// NodeID is the default id of an object node.
func NodeID(objectType, name string) string {
	return strings.ToLower(objectType + ":" + name)
}

// EdgeID is the id of an edge.
func EdgeID(edgeType, from, to string) string {
	return edgeType + ":" + from + "->" + to
}

// Builder accumulates nodes and edges. It is safe for concurrent use.
type Builder struct {
	mu         sync.Mutex
	kind       string
	root       string
	nodes      map[string]*Node
	edges      map[string]*Edge
	out        map[string][]string
	warnings   []string
	provenance []Provenance
}

// NewBuilder returns an empty builder for a graph of kind. Lineage builders
// reject edges that would close a cycle.
func NewBuilder(kind string) *Builder {
	return &Builder{
		kind:  kind,
		nodes: make(map[string]*Node),
		edges: make(map[string]*Edge),
		out:   make(map[string][]string),
	}
}

// AddNode inserts n, or merges it into the node with the same id. Merging is
// first-writer-wins per attribute; a conflicting value adds a warning.
func (b *Builder) AddNode(n Node) string {
	if n.ID == "" {
		n.ID = NodeID(n.Type, n.Name)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	existing, ok := b.nodes[n.ID]
	if !ok {
		cp := n
		cp.Attributes = copyAttrs(n.Attributes)
		b.nodes[n.ID] = &cp
		return n.ID
	}
	if existing.Role == "" {
		existing.Role = n.Role
	}
	if existing.URI == "" {
		existing.URI = n.URI
	}
	if existing.Version == "" {
		existing.Version = n.Version
	}
	existing.Attributes = b.mergeAttrs("node "+n.ID, existing.Attributes, n.Attributes)
	return n.ID
}

// HasNode reports whether id has been added.
func (b *Builder) HasNode(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.nodes[id]
	return ok
}

// HasEdge reports whether an edge with id has been added.
func (b *Builder) HasEdge(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.edges[id]
	return ok
}

// AddEdge inserts e. Both endpoints must exist. A repeated edge merges its
// attributes like AddNode.
func (b *Builder) AddEdge(e Edge) (string, error) {
	if e.ID == "" {
		e.ID = EdgeID(e.Type, e.From, e.To)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.nodes[e.From]; !ok {
		return "", adterr.Newf("graph.AddEdge", e.ID, adterr.Internal, "edge %s: unknown source node %q", e.ID, e.From)
	}
	if _, ok := b.nodes[e.To]; !ok {
		return "", adterr.Newf("graph.AddEdge", e.ID, adterr.Internal, "edge %s: unknown target node %q", e.ID, e.To)
	}
	if existing, ok := b.edges[e.ID]; ok {
		existing.Attributes = b.mergeAttrs("edge "+e.ID, existing.Attributes, e.Attributes)
		return e.ID, nil
	}
	if b.kind == KindLineage && b.reachable(e.To, e.From) {
		return "", adterr.Newf("graph.AddEdge", e.ID, adterr.Internal, "edge %s would close a cycle", e.ID)
	}
	cp := e
	cp.Attributes = copyAttrs(e.Attributes)
	b.edges[e.ID] = &cp
	b.out[e.From] = append(b.out[e.From], e.To)
	return e.ID, nil
}

func (b *Builder) reachable(from, to string) bool {
	if from == to {
		return true
	}
	seen := map[string]bool{from: true}
	stack := []string{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range b.out[cur] {
			if next == to {
				return true
			}
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

// SetRoot marks id as the graph root. The node must exist.
func (b *Builder) SetRoot(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.nodes[id]; !ok {
		return adterr.Newf("graph.SetRoot", id, adterr.Internal, "root node %q does not exist", id)
	}
	b.root = id
	return nil
}

// Warn appends a warning.
func (b *Builder) Warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	b.mu.Lock()
	b.warnings = append(b.warnings, msg)
	b.mu.Unlock()
}

// Record appends a provenance entry.
func (b *Builder) Record(operation, endpoint, status string) {
	b.mu.Lock()
	b.provenance = append(b.provenance, Provenance{Operation: operation, Endpoint: endpoint, Status: status})
	b.mu.Unlock()
}

// Build returns the sorted graph and checks it with Validate.
func (b *Builder) Build() (Graph, error) {
	b.mu.Lock()
	g := Graph{
		SchemaVersion: SchemaVersion,
		Kind:          b.kind,
		RootID:        b.root,
		Nodes:         make([]Node, 0, len(b.nodes)),
		Edges:         make([]Edge, 0, len(b.edges)),
		Warnings:      append([]string{}, b.warnings...),
		Provenance:    append([]Provenance{}, b.provenance...),
	}
	for _, n := range b.nodes {
		cp := *n
		cp.Attributes = copyAttrs(n.Attributes)
		g.Nodes = append(g.Nodes, cp)
	}
	for _, e := range b.edges {
		cp := *e
		cp.Attributes = copyAttrs(e.Attributes)
		g.Edges = append(g.Edges, cp)
	}
	b.mu.Unlock()
	sortGraph(&g)
	if err := Validate(g); err != nil {
		return Graph{}, err
	}
	return g, nil
}

// mergeAttrs must be called with b.mu held.
func (b *Builder) mergeAttrs(owner string, dst, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for _, k := range sortedKeys(src) {
		v := src[k]
		cur, ok := dst[k]
		switch {
		case !ok:
			dst[k] = v
		case cur != v && v != "":
			if cur == "" {
				dst[k] = v
				continue
			}
			b.warnings = append(b.warnings, fmt.Sprintf("%s: attribute %s kept %q, ignored %q", owner, k, cur, v))
		}
	}
	return dst
}

// Validate checks the graph invariants.
func Validate(g Graph) error {
	const op = "graph.Validate"
	ids := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			return adterr.New(op, "", adterr.Internal, "node with empty id")
		}
		if ids[n.ID] {
			return adterr.Newf(op, n.ID, adterr.Internal, "duplicate node id %q", n.ID)
		}
		ids[n.ID] = true
	}
	edges := make(map[string]bool, len(g.Edges))
	out := make(map[string][]string)
	for _, e := range g.Edges {
		if edges[e.ID] {
			return adterr.Newf(op, e.ID, adterr.Internal, "duplicate edge id %q", e.ID)
		}
		edges[e.ID] = true
		if !ids[e.From] || !ids[e.To] {
			return adterr.Newf(op, e.ID, adterr.Internal, "edge %s references a missing node", e.ID)
		}
		out[e.From] = append(out[e.From], e.To)
	}
	if g.RootID != "" && !ids[g.RootID] {
		return adterr.Newf(op, g.RootID, adterr.Internal, "root %q is not a node", g.RootID)
	}
	if g.Kind == KindLineage {
		if cycle := findCycle(g.Nodes, out); cycle != "" {
			return adterr.Newf(op, cycle, adterr.Internal, "lineage graph has a cycle through %q", cycle)
		}
	}
	return nil
}

func findCycle(nodes []Node, out map[string][]string) string {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(nodes))
	var visit func(string) string
	visit = func(id string) string {
		color[id] = grey
		for _, next := range out[id] {
			switch color[next] {
			case grey:
				return next
			case white:
				if c := visit(next); c != "" {
					return c
				}
			}
		}
		color[id] = black
		return ""
	}
	for _, n := range nodes {
		if color[n.ID] == white {
			if c := visit(n.ID); c != "" {
				return c
			}
		}
	}
	return ""
}

func sortGraph(g *Graph) {
	sort.Slice(g.Nodes, func(i, j int) bool { return g.Nodes[i].ID < g.Nodes[j].ID })
	sort.Slice(g.Edges, func(i, j int) bool { return g.Edges[i].ID < g.Edges[j].ID })
}

func copyAttrs(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if v == "" {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// attrs builds an attribute map from key/value pairs, skipping empty values.
func attrs(kv ...string) map[string]string {
	m := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			m[kv[i]] = kv[i+1]
		}
	}
	return m
}
