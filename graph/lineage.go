package graph

import (
	"context"
	"strings"

	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/bw"
)

// Lineage defaults.
const (
	DefaultMaxDepth = 5
	DefaultMaxXref  = 100
	trfnSearchMax   = 20
)

const (
	searchEndpoint = "/sap/bw/modeling/repo/is/bwsearch"
	xrefEndpoint   = "/sap/bw/modeling/repo/is/xref"
)

// LineageOptions configure Lineage.
type LineageOptions struct {
	// DTP is the root data transfer process.
	DTP     string
	Version string
	// MaxDepth bounds how many DTP hops upstream of the root are followed.
	MaxDepth int
	// IncludeXref looks up the users of ADSO sources and follows the DTPs
	// that load them.
	IncludeXref bool
	// TRFN names the root's transformation and skips the search for it.
	TRFN    string
	MaxXref int
}

type frontierEntry struct {
	kind  string
	id    string
	name  string
	depth int
	// expectTarget is set for DTPs found through xref: they only belong to
	// the lineage when they load this node.
	expectTarget string
}

type lineage struct {
	api  API
	opts LineageOptions
	ver  string
	b    *Builder
}

// Lineage walks upstream from a DTP breadth first. Each DTP contributes its
// source, target and transformation with field mappings; ADSO sources are
// expanded through cross references when enabled. Failed reads other than
// the root's become warnings and partial provenance.
func Lineage(ctx context.Context, api API, opts LineageOptions) (Graph, error) {
	const op = "Lineage"
	if strings.TrimSpace(opts.DTP) == "" {
		return Graph{}, adterr.New(op, "", adterr.Internal, "DTP name must not be empty")
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.MaxXref <= 0 {
		opts.MaxXref = DefaultMaxXref
	}
	l := &lineage{api: api, opts: opts, ver: normVersion(opts.Version), b: NewBuilder(KindLineage)}

	queue := []frontierEntry{{kind: "DTPA", id: NodeID("DTPA", opts.DTP), name: opts.DTP}}
	visited := make(map[string]bool)
	pending := 0
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return Graph{}, adterr.Newf(op, "", adterr.Timeout, "lineage cancelled: %v", err)
		}
		e := queue[0]
		queue = queue[1:]
		key := e.kind + "|" + e.id
		if visited[key] {
			continue
		}
		visited[key] = true

		var next []frontierEntry
		switch e.kind {
		case "DTPA":
			var err error
			next, err = l.dtp(ctx, e)
			if err != nil {
				return Graph{}, err
			}
		case "ADSO":
			next = l.xref(ctx, e)
		}
		for _, n := range next {
			if n.depth > opts.MaxDepth {
				if !visited[n.kind+"|"+n.id] {
					pending++
				}
				continue
			}
			queue = append(queue, n)
		}
	}
	if pending > 0 {
		l.b.Warn("depth bound %d reached; %d frontier entries not expanded", opts.MaxDepth, pending)
	}
	return l.b.Build()
}

func (l *lineage) dtp(ctx context.Context, e frontierEntry) ([]frontierEntry, error) {
	endpoint := bw.ObjectPath("dtpa", e.name, l.ver)
	d, err := l.api.ReadDTP(ctx, e.name, l.ver)
	if err != nil {
		if e.depth == 0 {
			return nil, err
		}
		l.b.Record("BwReadDTP", endpoint, StatusPartial)
		l.b.Warn("DTP %s: %v", e.name, err)
		return nil, nil
	}
	srcType, tgtType := objectType(d.SourceType), objectType(d.TargetType)
	if e.expectTarget != "" && NodeID(tgtType, d.TargetName) != e.expectTarget {
		// Reads from the node rather than loading it.
		l.b.Record("BwReadDTP", endpoint, StatusOK)
		return nil, nil
	}
	complete := d.SourceName != "" && d.TargetName != ""
	status := StatusOK
	if !complete {
		status = StatusPartial
		l.b.Warn("DTP %s has no source or target", e.name)
	}
	l.b.Record("BwReadDTP", endpoint, status)

	dtpID := l.b.AddNode(Node{
		ID:         e.id,
		Type:       "DTPA",
		Name:       firstNonEmpty(d.Name, e.name),
		Role:       "dtp",
		URI:        endpoint,
		Version:    l.ver,
		Attributes: attrs("description", d.Description, "request_selection_mode", d.RequestSelectionMode),
	})
	if e.depth == 0 {
		if err := l.b.SetRoot(dtpID); err != nil {
			return nil, err
		}
	}
	if !complete {
		return nil, nil
	}
	srcID := l.b.AddNode(Node{Type: srcType, Name: d.SourceName, Role: "source", Version: l.ver,
		Attributes: attrs("source_system", d.SourceSystem)})
	tgtID := l.b.AddNode(Node{Type: tgtType, Name: d.TargetName, Role: "target", Version: l.ver})
	l.edge(Edge{From: srcID, To: dtpID, Type: "dtp_source"})
	l.edge(Edge{From: dtpID, To: tgtID, Type: "dtp_target"})

	if srcType == "RSDS" {
		l.rsdsFields(ctx, d, srcID)
	}
	l.transformation(ctx, e, d, srcID, tgtID)

	if srcType == "ADSO" {
		return []frontierEntry{{kind: "ADSO", id: srcID, name: d.SourceName, depth: e.depth}}, nil
	}
	return nil, nil
}

func (l *lineage) rsdsFields(ctx context.Context, d bw.DTPDetail, srcID string) {
	endpoint := "/sap/bw/modeling/rsds/" + d.SourceName + "/" + d.SourceSystem + "/" + l.ver
	if d.SourceSystem == "" {
		l.b.Record("BwReadRSDS", endpoint, StatusSkipped)
		return
	}
	rsds, err := l.api.ReadRSDS(ctx, d.SourceName, d.SourceSystem, l.ver)
	if err != nil {
		l.b.Record("BwReadRSDS", endpoint, StatusPartial)
		l.b.Warn("DataSource %s: %v", d.SourceName, err)
		return
	}
	l.b.Record("BwReadRSDS", endpoint, StatusOK)
	for _, f := range rsds.Fields {
		id := l.b.AddNode(Node{
			ID:      fieldID("RSDS", d.SourceName, f.Name),
			Type:    "RSDS_FIELD",
			Name:    f.Name,
			Role:    "source_field",
			Version: l.ver,
			Attributes: attrs(
				"data_type", f.DataType,
				"segment", f.Segment,
				"key", boolAttr(f.Key),
			),
		})
		l.edge(Edge{From: srcID, To: id, Type: "contains_field"})
	}
}

func (l *lineage) transformation(ctx context.Context, e frontierEntry, d bw.DTPDetail, srcID, tgtID string) {
	name := ""
	if e.depth == 0 {
		name = l.opts.TRFN
	}
	if name == "" {
		name = l.findTransformation(ctx, d)
		if name == "" {
			return
		}
	}
	endpoint := bw.ObjectPath("trfn", name, l.ver)
	t, err := l.api.ReadTransformation(ctx, name, l.ver)
	if err != nil {
		l.b.Record("BwReadTransformation", endpoint, StatusPartial)
		l.b.Warn("transformation %s: %v", name, err)
		return
	}
	l.b.Record("BwReadTransformation", endpoint, StatusOK)

	trfnID := l.b.AddNode(Node{Type: "TRFN", Name: firstNonEmpty(t.Name, name), Role: "transformation", URI: endpoint,
		Version: l.ver, Attributes: attrs("description", t.Description, "hana_runtime", boolAttr(t.HANARuntime))})
	l.edge(Edge{From: srcID, To: trfnID, Type: "trfn_source"})
	l.edge(Edge{From: trfnID, To: tgtID, Type: "trfn_target"})

	srcType, srcName := objectType(firstNonEmpty(t.SourceType, d.SourceType)), firstNonEmpty(t.SourceName, d.SourceName)
	tgtType, tgtName := objectType(firstNonEmpty(t.TargetType, d.TargetType)), firstNonEmpty(t.TargetName, d.TargetName)
	field := func(objType, objName, name, role string, f *bw.TRFNField) string {
		n := Node{ID: fieldID(objType, objName, name), Type: objType + "_FIELD", Name: name, Role: role, Version: l.ver}
		if f != nil {
			n.Attributes = attrs("field_type", f.Type, "aggregation", f.Aggregation, "key", boolAttr(f.Key))
		}
		return l.b.AddNode(n)
	}
	for i := range t.SourceFields {
		field(srcType, srcName, t.SourceFields[i].Name, "source_field", &t.SourceFields[i])
	}
	for i := range t.TargetFields {
		field(tgtType, tgtName, t.TargetFields[i].Name, "target_field", &t.TargetFields[i])
	}
	for _, r := range t.Rules {
		kind := r.Kind()
		ruleAttrs := attrs("rule_kind", kind, "rule_type", r.RuleType, "formula", r.Formula, "constant", r.Constant, "rule_id", r.ID)
		for _, target := range r.TargetFields {
			tid := field(tgtType, tgtName, target, "target_field", nil)
			if len(r.SourceFields) == 0 {
				l.edge(Edge{From: trfnID, To: tid, Type: "field_derivation", Attributes: ruleAttrs})
				continue
			}
			for _, source := range r.SourceFields {
				sid := field(srcType, srcName, source, "source_field", nil)
				l.edge(Edge{From: sid, To: tid, Type: "field_mapping", Attributes: ruleAttrs})
			}
		}
	}
}

func (l *lineage) findTransformation(ctx context.Context, d bw.DTPDetail) string {
	endpoint := searchEndpoint + "?objectType=TRFN"
	res, err := l.api.Search(ctx, bw.SearchOptions{
		Query:               "*",
		ObjectType:          "TRFN",
		MaxResults:          trfnSearchMax,
		DependsOnObjectName: d.TargetName,
		DependsOnObjectType: d.TargetType,
	})
	if err != nil {
		l.b.Record("BwSearchObjects", endpoint, StatusPartial)
		l.b.Warn("transformation search for %s: %v", d.TargetName, err)
		return ""
	}
	l.b.Record("BwSearchObjects", endpoint, StatusOK)
	var names []string
	for _, it := range res.Items {
		if it.Name != "" {
			names = append(names, it.Name)
		}
	}
	switch len(names) {
	case 0:
		l.b.Warn("no transformation found for target %s of DTP %s", d.TargetName, d.Name)
		return ""
	case 1:
		return names[0]
	default:
		l.b.Warn("%d transformations depend on %s; using %s", len(names), d.TargetName, names[0])
		return names[0]
	}
}

func (l *lineage) xref(ctx context.Context, e frontierEntry) []frontierEntry {
	if !l.opts.IncludeXref {
		l.b.Record("BwGetXref", xrefEndpoint+"?objectName="+e.name, StatusSkipped)
		return nil
	}
	items, err := l.api.Xref(ctx, bw.XrefOptions{
		ObjectType:    "ADSO",
		ObjectName:    e.name,
		ObjectVersion: "A",
		MaxResults:    l.opts.MaxXref,
	})
	endpoint := xrefEndpoint + "?objectName=" + e.name
	if err != nil {
		l.b.Record("BwGetXref", endpoint, StatusPartial)
		l.b.Warn("cross references of %s: %v", e.name, err)
		return nil
	}
	l.b.Record("BwGetXref", endpoint, StatusOK)
	var next []frontierEntry
	for _, x := range items {
		if x.Name == "" {
			continue
		}
		xType := objectType(x.Type)
		xid := NodeID(xType, x.Name)
		if xid == e.id {
			continue
		}
		if xType == "DTPA" {
			next = append(next, frontierEntry{kind: "DTPA", id: xid, name: x.Name, depth: e.depth + 1, expectTarget: e.id})
			continue
		}
		l.b.AddNode(Node{
			ID:         xid,
			Type:       xType,
			Name:       x.Name,
			Role:       "xref_object",
			URI:        x.URI,
			Version:    x.Version,
			Attributes: attrs("description", x.Description, "status", x.Status),
		})
		l.edge(Edge{From: xid, To: e.id, Type: "uses",
			Attributes: attrs("association_type", x.AssociationType, "association_label", x.AssociationLabel)})
	}
	return next
}

// edge adds e and turns a rejected edge into a warning.
func (l *lineage) edge(e Edge) {
	if _, err := l.b.AddEdge(e); err != nil {
		l.b.Warn("%v", err)
	}
}

func fieldID(objType, objName, field string) string {
	return strings.ToLower("field:" + objType + ":" + objName + ":" + field)
}

func objectType(t string) string {
	t = strings.ToUpper(strings.TrimSpace(t))
	if t == "" {
		return "OBJECT"
	}
	return t
}

func normVersion(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "a", "m", "d":
		return v
	default:
		return bw.DefaultVersion
	}
}

func boolAttr(b bool) string {
	if b {
		return "true"
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
