package graph

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/bw"
	"pkt.systems/sapadt/internal/clock"
)

type fakeAPI struct {
	mu      sync.Mutex
	dtps    map[string]bw.DTPDetail
	trfns   map[string]bw.TRFNDetail
	rsds    map[string]bw.RSDSDetail
	adsos   map[string]bw.ADSODetail
	queries map[string]bw.QueryComponent
	// search results keyed by objectType|dependsOnName|dependsOnType
	search   map[string]bw.SearchResult
	xref     map[string][]bw.XrefEntry
	nodes    map[string][]bw.SearchItem
	searches []bw.SearchOptions
}

var errMissing = adterr.New("fake", "", adterr.NotFound, "not found")

func (f *fakeAPI) ReadDTP(_ context.Context, name, _ string) (bw.DTPDetail, error) {
	if d, ok := f.dtps[name]; ok {
		return d, nil
	}
	return bw.DTPDetail{}, errMissing
}

func (f *fakeAPI) ReadTransformation(_ context.Context, name, _ string) (bw.TRFNDetail, error) {
	if t, ok := f.trfns[name]; ok {
		return t, nil
	}
	return bw.TRFNDetail{}, errMissing
}

func (f *fakeAPI) ReadRSDS(_ context.Context, name, _, _ string) (bw.RSDSDetail, error) {
	if r, ok := f.rsds[name]; ok {
		return r, nil
	}
	return bw.RSDSDetail{}, errMissing
}

func (f *fakeAPI) ReadADSO(_ context.Context, name, _ string) (bw.ADSODetail, error) {
	if a, ok := f.adsos[name]; ok {
		return a, nil
	}
	return bw.ADSODetail{}, errMissing
}

func (f *fakeAPI) ReadQueryComponent(_ context.Context, componentType, name, _ string) (bw.QueryComponent, error) {
	if q, ok := f.queries[componentType+"|"+name]; ok {
		return q, nil
	}
	return bw.QueryComponent{}, errMissing
}

func (f *fakeAPI) Search(_ context.Context, opts bw.SearchOptions) (bw.SearchResult, error) {
	f.mu.Lock()
	f.searches = append(f.searches, opts)
	f.mu.Unlock()
	return f.search[opts.ObjectType+"|"+opts.DependsOnObjectName+"|"+opts.DependsOnObjectType], nil
}

func (f *fakeAPI) Xref(_ context.Context, opts bw.XrefOptions) ([]bw.XrefEntry, error) {
	return f.xref[opts.ObjectName], nil
}

func (f *fakeAPI) Nodes(_ context.Context, objectType, name string) ([]bw.SearchItem, error) {
	items, ok := f.nodes[objectType+"|"+name]
	if !ok {
		return nil, errMissing
	}
	return items, nil
}

func lineageFixture() *fakeAPI {
	return &fakeAPI{
		dtps: map[string]bw.DTPDetail{
			"DTP_ROOT": {Name: "DTP_ROOT", SourceName: "ZSRC", SourceType: "ADSO", TargetName: "ZCUBE", TargetType: "ADSO"},
			"DTP_UP":   {Name: "DTP_UP", SourceName: "ZDS", SourceType: "RSDS", SourceSystem: "LOGSYS", TargetName: "ZSRC", TargetType: "ADSO"},
			"DTP_SIDE": {Name: "DTP_SIDE", SourceName: "ZSRC", SourceType: "ADSO", TargetName: "ZOTHER", TargetType: "ADSO"},
		},
		trfns: map[string]bw.TRFNDetail{
			"TRFN_1": {
				Name: "TRFN_1", SourceName: "ZSRC", SourceType: "ADSO", TargetName: "ZCUBE", TargetType: "ADSO",
				SourceFields: []bw.TRFNField{{Name: "F1"}},
				TargetFields: []bw.TRFNField{{Name: "G1"}, {Name: "G2"}},
				Rules: []bw.TRFNRule{
					{ID: "1", SourceFields: []string{"F1"}, TargetFields: []string{"G1"}},
					{ID: "2", TargetFields: []string{"G2"}, Constant: "X"},
				},
			},
		},
		rsds: map[string]bw.RSDSDetail{
			"ZDS": {Name: "ZDS", SourceSystem: "LOGSYS", Fields: []bw.RSDSField{{Name: "FLD1", DataType: "CHAR"}}},
		},
		search: map[string]bw.SearchResult{
			"TRFN|ZCUBE|ADSO": {Items: []bw.SearchItem{{Name: "TRFN_1", Type: "TRFN"}}},
		},
		xref: map[string][]bw.XrefEntry{
			"ZSRC": {
				{Name: "DTP_ROOT", Type: "DTPA"},
				{Name: "DTP_UP", Type: "DTPA"},
				{Name: "DTP_SIDE", Type: "DTPA"},
				{Name: "Q1", Type: "ELEM", AssociationType: "002"},
			},
		},
	}
}

func hasEdge(g Graph, id string) (Edge, bool) {
	for _, e := range g.Edges {
		if e.ID == id {
			return e, true
		}
	}
	return Edge{}, false
}

func TestLineageWalksUpstream(t *testing.T) {
	api := lineageFixture()
	g, err := Lineage(context.Background(), api, LineageOptions{DTP: "DTP_ROOT", IncludeXref: true})
	if err != nil {
		t.Fatalf("lineage: %v", err)
	}
	if g.RootID != "dtpa:dtp_root" || g.Kind != KindLineage {
		t.Fatalf("root %q kind %q", g.RootID, g.Kind)
	}
	for _, id := range []string{
		"dtp_source:adso:zsrc->dtpa:dtp_root",
		"dtp_target:dtpa:dtp_root->adso:zcube",
		"trfn_source:adso:zsrc->trfn:trfn_1",
		"trfn_target:trfn:trfn_1->adso:zcube",
		"dtp_target:dtpa:dtp_up->adso:zsrc",
		"dtp_source:rsds:zds->dtpa:dtp_up",
		"contains_field:rsds:zds->field:rsds:zds:fld1",
		"uses:elem:q1->adso:zsrc",
	} {
		if _, ok := hasEdge(g, id); !ok {
			t.Fatalf("missing edge %s", id)
		}
	}
	mapping, ok := hasEdge(g, "field_mapping:field:adso:zsrc:f1->field:adso:zcube:g1")
	if !ok || mapping.Attributes["rule_kind"] != "direct" {
		t.Fatalf("field mapping %+v", mapping)
	}
	derived, ok := hasEdge(g, "field_derivation:trfn:trfn_1->field:adso:zcube:g2")
	if !ok || derived.Attributes["rule_kind"] != "constant" || derived.Attributes["constant"] != "X" {
		t.Fatalf("field derivation %+v", derived)
	}
	if _, ok := g.Node("dtpa:dtp_side"); ok {
		t.Fatalf("DTP loading another target must not join the lineage")
	}
	if err := Validate(g); err != nil {
		t.Fatalf("validate: %v", err)
	}
	for i := 1; i < len(g.Nodes); i++ {
		if g.Nodes[i-1].ID >= g.Nodes[i].ID {
			t.Fatalf("nodes not sorted at %d", i)
		}
	}
}

func TestLineageWithoutXrefRecordsSkipped(t *testing.T) {
	g, err := Lineage(context.Background(), lineageFixture(), LineageOptions{DTP: "DTP_ROOT", TRFN: "TRFN_1"})
	if err != nil {
		t.Fatalf("lineage: %v", err)
	}
	if _, ok := g.Node("dtpa:dtp_up"); ok {
		t.Fatalf("xref followed while disabled")
	}
	skipped := false
	for _, p := range g.Provenance {
		if p.Operation == "BwGetXref" && p.Status == StatusSkipped {
			skipped = true
		}
		if p.Operation == "BwSearchObjects" {
			t.Fatalf("explicit transformation still searched")
		}
	}
	if !skipped {
		t.Fatalf("xref provenance missing: %+v", g.Provenance)
	}
}

func TestLineageDepthBoundWarns(t *testing.T) {
	api := lineageFixture()
	g, err := Lineage(context.Background(), api, LineageOptions{DTP: "DTP_ROOT", IncludeXref: true, MaxDepth: 1})
	if err != nil {
		t.Fatalf("lineage: %v", err)
	}
	if _, ok := g.Node("dtpa:dtp_up"); !ok {
		t.Fatalf("depth 1 DTP missing")
	}
	api.dtps["DTP_UP"] = bw.DTPDetail{Name: "DTP_UP", SourceName: "ZUP", SourceType: "ADSO", TargetName: "ZSRC", TargetType: "ADSO"}
	api.xref["ZUP"] = []bw.XrefEntry{{Name: "DTP_TOP", Type: "DTPA"}}
	g, err = Lineage(context.Background(), api, LineageOptions{DTP: "DTP_ROOT", IncludeXref: true, MaxDepth: 1})
	if err != nil {
		t.Fatalf("lineage: %v", err)
	}
	found := false
	for _, w := range g.Warnings {
		if strings.Contains(w, "depth bound 1 reached; 1 frontier entries not expanded") {
			found = true
		}
	}
	if !found {
		t.Fatalf("warnings %v", g.Warnings)
	}
}

func TestLineageRootFailureIsReturned(t *testing.T) {
	_, err := Lineage(context.Background(), lineageFixture(), LineageOptions{DTP: "NOPE"})
	if !adterr.Is(err, adterr.NotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	_, err = Lineage(context.Background(), lineageFixture(), LineageOptions{})
	if !adterr.Is(err, adterr.Internal) {
		t.Fatalf("expected internal, got %v", err)
	}
}

func TestBuilderInvariants(t *testing.T) {
	b := NewBuilder(KindLineage)
	a := b.AddNode(Node{Type: "ADSO", Name: "A", Attributes: map[string]string{"k": "1"}})
	b.AddNode(Node{Type: "ADSO", Name: "A", Attributes: map[string]string{"k": "2", "j": "x"}})
	c := b.AddNode(Node{Type: "ADSO", Name: "C"})
	if _, err := b.AddEdge(Edge{From: a, To: "adso:missing", Type: "x"}); !adterr.Is(err, adterr.Internal) {
		t.Fatalf("missing endpoint accepted: %v", err)
	}
	if _, err := b.AddEdge(Edge{From: a, To: c, Type: "flows"}); err != nil {
		t.Fatalf("add edge: %v", err)
	}
	if _, err := b.AddEdge(Edge{From: c, To: a, Type: "flows"}); !adterr.Is(err, adterr.Internal) {
		t.Fatalf("cycle accepted: %v", err)
	}
	if err := b.SetRoot("adso:zz"); err == nil {
		t.Fatalf("unknown root accepted")
	}
	if err := b.SetRoot(a); err != nil {
		t.Fatalf("set root: %v", err)
	}
	g, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	n, _ := g.Node("adso:a")
	if n.Attributes["k"] != "1" || n.Attributes["j"] != "x" {
		t.Fatalf("merged attributes %v", n.Attributes)
	}
	if len(g.Warnings) != 1 || !strings.Contains(g.Warnings[0], `kept "1", ignored "2"`) {
		t.Fatalf("warnings %v", g.Warnings)
	}

	g.Edges = append(g.Edges, Edge{ID: "back", From: c, To: a, Type: "flows"})
	if err := Validate(g); !adterr.Is(err, adterr.Internal) {
		t.Fatalf("cycle not detected: %v", err)
	}
	g.Kind = KindQuery
	if err := Validate(g); err != nil {
		t.Fatalf("query graphs may cycle: %v", err)
	}
}

func queryFixture() *fakeAPI {
	return &fakeAPI{
		queries: map[string]bw.QueryComponent{
			"QUERY|ZQ": {Name: "ZQ", InfoProvider: "ZCUBE", ProviderType: "ADSO", References: []bw.QueryRef{
				{Name: "A", Type: "VARIABLE", Role: "filter"},
				{Name: "C", Type: "VARIABLE"},
				{Name: "B", Type: "VARIABLE"},
				{Name: "K", Type: "RKF", Role: "columns"},
				{Name: "0MATERIAL", Type: "DIMENSION", Role: "rows"},
			}},
			"VARIABLE|A": {Name: "A"},
			"VARIABLE|B": {Name: "B"},
			"RKF|K":      {Name: "K", References: []bw.QueryRef{{Name: "A", Type: "VARIABLE"}}},
		},
	}
}

func TestQueryGraphRecursesAndMarksBackRefs(t *testing.T) {
	g, err := QueryGraph(context.Background(), queryFixture(), QueryOptions{Name: "ZQ"})
	if err != nil {
		t.Fatalf("query graph: %v", err)
	}
	root, ok := g.Node("query:zq")
	if !ok || g.RootID != "query:zq" || root.Attributes["info_provider"] != "ZCUBE" {
		t.Fatalf("root %+v", root)
	}
	e, ok := hasEdge(g, "uses_variable:query:zq->variable:a")
	if !ok || e.Role != "filter" {
		t.Fatalf("variable edge %+v", e)
	}
	back, ok := hasEdge(g, "uses_variable:rkf:k->variable:a")
	if !ok || back.Role != "back_ref" {
		t.Fatalf("back ref %+v", back)
	}
	if _, ok := hasEdge(g, "uses_dimension:query:zq->dimension:0material"); !ok {
		t.Fatalf("dimension leaf missing")
	}
	partial := false
	for _, p := range g.Provenance {
		if p.Status == StatusPartial && strings.Contains(p.Endpoint, "/c/") {
			partial = true
		}
	}
	if !partial || len(g.Warnings) == 0 {
		t.Fatalf("failed read of C not recorded: %+v %v", g.Provenance, g.Warnings)
	}
}

func TestReduceCollapsesCrowdedRoles(t *testing.T) {
	g, err := QueryGraph(context.Background(), queryFixture(), QueryOptions{Name: "ZQ"})
	if err != nil {
		t.Fatalf("query graph: %v", err)
	}
	if same := Reduce(g, ReduceOptions{MaxNodesPerRole: 0}); len(same.Nodes) != len(g.Nodes) {
		t.Fatalf("zero cap changed the graph")
	}
	r := Reduce(g, ReduceOptions{FocusRole: "DIMENSION", MaxNodesPerRole: 2})
	for _, id := range []string{"variable:a", "variable:b", "dimension:0material", "rkf:k"} {
		if _, ok := r.Node(id); !ok {
			t.Fatalf("node %s dropped", id)
		}
	}
	if _, ok := r.Node("variable:c"); ok {
		t.Fatalf("variable:c kept")
	}
	s, ok := r.Node("SUMMARY:variable")
	if !ok {
		t.Fatalf("summary node missing: %+v", r.Nodes)
	}
	if s.Attributes["omitted_count"] != "1" || !strings.Contains(s.Attributes["omitted_ids"], "variable:c") {
		t.Fatalf("summary attributes %v", s.Attributes)
	}
	if _, ok := hasEdge(r, "uses_variable:query:zq->SUMMARY:variable"); !ok {
		t.Fatalf("edge not rewired: %+v", r.Edges)
	}
	if err := Validate(r); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestMergeLinksProvider(t *testing.T) {
	q, err := QueryGraph(context.Background(), queryFixture(), QueryOptions{Name: "ZQ"})
	if err != nil {
		t.Fatalf("query graph: %v", err)
	}
	l, err := Lineage(context.Background(), lineageFixture(), LineageOptions{DTP: "DTP_ROOT"})
	if err != nil {
		t.Fatalf("lineage: %v", err)
	}
	m, err := Merge(q, l)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if m.RootID != q.RootID || m.Kind != KindMerged {
		t.Fatalf("root %q kind %q", m.RootID, m.Kind)
	}
	if len(m.Nodes) != len(q.Nodes)+len(l.Nodes) {
		t.Fatalf("nodes %d, want %d", len(m.Nodes), len(q.Nodes)+len(l.Nodes))
	}
	if _, ok := hasEdge(m, "reads_from:query:zq->adso:zcube"); !ok {
		t.Fatalf("provider bridge missing")
	}
}

func TestPlanUpstreamDiscardsMismatchedTargets(t *testing.T) {
	api := &fakeAPI{
		dtps: map[string]bw.DTPDetail{
			"D1": {Name: "D1", TargetName: "ZCUBE", TargetType: "CUBE"},
			"D2": {Name: "D2", TargetName: "ZOTHER", TargetType: "CUBE"},
		},
		search: map[string]bw.SearchResult{
			"DTPA|ZCUBE|CUBE": {Items: []bw.SearchItem{{Name: "D2", Type: "DTPA"}, {Name: "D1", Type: "DTPA"}}},
		},
	}
	plan, err := PlanUpstream(context.Background(), api, PlannerOptions{InfoProvider: "ZCUBE", ProviderType: "CUBE"})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan.Candidates) != 1 || plan.Candidates[0].Name != "D1" {
		t.Fatalf("candidates %+v", plan.Candidates)
	}
	if plan.Ambiguous || plan.SelectedDTP != "D1" || !plan.Complete {
		t.Fatalf("plan %+v", plan)
	}
	found := false
	for _, w := range plan.Warnings {
		if strings.Contains(w, "D2") {
			found = true
		}
	}
	if !found {
		t.Fatalf("no warning about D2: %v", plan.Warnings)
	}
}

func TestPlanUpstreamIncompleteFeed(t *testing.T) {
	api := &fakeAPI{
		dtps: map[string]bw.DTPDetail{"D1": {Name: "D1", TargetName: "ZCUBE"}},
		search: map[string]bw.SearchResult{
			"DTPA|ZCUBE|": {Items: []bw.SearchItem{{Name: "D1"}}, FeedIncomplete: true},
		},
	}
	plan, err := PlanUpstream(context.Background(), api, PlannerOptions{InfoProvider: "ZCUBE", ProviderType: "ADSO"})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	var sizes []int
	for _, s := range api.searches {
		if s.DependsOnObjectType == "" {
			sizes = append(sizes, s.MaxResults)
		}
	}
	if len(sizes) != 4 || sizes[0] != 200 || sizes[3] != 1600 {
		t.Fatalf("page sizes %v", sizes)
	}
	if plan.Complete {
		t.Fatalf("plan complete with an incomplete feed")
	}
	want := "Search feed remains incomplete at maxSize=1600"
	found := false
	for _, w := range plan.Warnings {
		if w == want {
			found = true
		}
	}
	if !found {
		t.Fatalf("warnings %v", plan.Warnings)
	}
	if len(plan.Evidence) != 2 || plan.Candidates[0].Evidence != EvidenceNameOnly {
		t.Fatalf("evidence %v %+v", plan.Evidence, plan.Candidates)
	}
}

func TestPlanUpstreamWithoutProvider(t *testing.T) {
	plan, err := PlanUpstream(context.Background(), &fakeAPI{}, PlannerOptions{})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan.Warnings) != 1 || plan.SelectedDTP != "" {
		t.Fatalf("plan %+v", plan)
	}
}

func TestMermaid(t *testing.T) {
	b := NewBuilder(KindLineage)
	d := b.AddNode(Node{Type: "DTPA", Name: "D", Role: "dtp"})
	c := b.AddNode(Node{Type: "ADSO", Name: "ZCUBE", Role: "target", Attributes: map[string]string{"x": "y"}})
	if _, err := b.AddEdge(Edge{From: d, To: c, Type: "dtp_target"}); err != nil {
		t.Fatalf("edge: %v", err)
	}
	if err := b.SetRoot(d); err != nil {
		t.Fatalf("root: %v", err)
	}
	g, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	out := Mermaid(g, MermaidOptions{})
	for _, want := range []string{
		"graph TD\n",
		"  subgraph root\n    n1[\"DTPA D\"]\n  end\n",
		"  subgraph target\n    n0[\"ADSO ZCUBE\"]\n  end\n",
		"  n1 -- \"dtp_target\" --> n0\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("mermaid output missing %q:\n%s", want, out)
		}
	}
	if lr := Mermaid(g, MermaidOptions{Direction: "lr"}); !strings.HasPrefix(lr, "graph LR\n") {
		t.Fatalf("direction ignored:\n%s", lr)
	}
}

func TestExportInfoarea(t *testing.T) {
	api := lineageFixture()
	api.nodes = map[string][]bw.SearchItem{
		"AREA|ZAREA": {
			{Name: "ZSUB", Type: "AREA"},
			{Name: "ZCUBE", Type: "ADSO"},
			{Name: "DTP_ROOT", Type: "DTPA"},
		},
		"AREA|ZSUB": {
			{Name: "TRFN_MISSING", Type: "TRFN"},
			{Name: "0MATERIAL", Type: "IOBJ"},
			{Name: "ZAREA", Type: "AREA"},
		},
	}
	api.adsos = map[string]bw.ADSODetail{"ZCUBE": {Name: "ZCUBE", Package: "ZPKG", Fields: []bw.ADSOField{{Name: "G1", Key: true}}}}
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	x, err := ExportInfoarea(context.Background(), api, "ZAREA", ExportOptions{Concurrency: 2, Clock: clock.NewManual(start), IncludeLineage: true})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if x.Contract != ExportContract || x.SchemaVersion != SchemaVersion || x.ExportedAt != "2026-01-02T03:04:05Z" {
		t.Fatalf("header %+v", x)
	}
	if _, err := uuid.Parse(x.RunID); err != nil {
		t.Fatalf("run id %q: %v", x.RunID, err)
	}
	var names []string
	for _, o := range x.Objects {
		names = append(names, o.Name)
	}
	if strings.Join(names, ",") != "ZCUBE,DTP_ROOT,TRFN_MISSING,0MATERIAL" {
		t.Fatalf("objects %v", names)
	}
	if x.Objects[0].Package != "ZPKG" || len(x.Objects[0].Fields) != 1 {
		t.Fatalf("adso detail %+v", x.Objects[0])
	}
	if x.Objects[1].Target == nil || x.Objects[1].Target.Name != "ZCUBE" || x.Objects[1].Lineage == nil {
		t.Fatalf("dtp detail %+v", x.Objects[1])
	}
	flow := x.Dataflow()
	if _, ok := hasEdge(flow, "dtp_target:dtpa:dtp_root->adso:zcube"); !ok {
		t.Fatalf("dataflow edges %+v", x.DataflowEdges)
	}
	warned := false
	for _, w := range x.Warnings {
		if strings.HasPrefix(w, "TRFN TRFN_MISSING:") {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("warnings %v", x.Warnings)
	}

	if _, err := ExportInfoarea(context.Background(), api, " ", ExportOptions{}); !adterr.Is(err, adterr.Internal) {
		t.Fatalf("empty name: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ExportInfoarea(ctx, api, "ZAREA", ExportOptions{}); !errors.Is(err, context.Canceled) && !adterr.Is(err, adterr.Timeout) {
		t.Fatalf("cancelled export: %v", err)
	}
}

func TestExportQueryStitchesUpstream(t *testing.T) {
	api := lineageFixture()
	api.queries = queryFixture().queries
	api.search["DTPA|ZCUBE|ADSO"] = bw.SearchResult{Items: []bw.SearchItem{{Name: "DTP_ROOT", Type: "DTPA"}}}

	out, err := ExportQuery(context.Background(), api, QueryExportOptions{
		Query:    QueryOptions{Name: "ZQ"},
		Reduce:   ReduceOptions{MaxNodesPerRole: 1, FocusRole: "rkf"},
		Upstream: true,
	})
	if err != nil {
		t.Fatalf("export query: %v", err)
	}
	if out.Plan == nil || out.Plan.SelectedDTP != "DTP_ROOT" {
		t.Fatalf("plan %+v", out.Plan)
	}
	if out.Graph.Kind != KindMerged || out.Graph.RootID != "query:zq" {
		t.Fatalf("kind %q root %q", out.Graph.Kind, out.Graph.RootID)
	}
	if _, ok := hasEdge(out.Graph, "reads_from:query:zq->adso:zcube"); !ok {
		t.Fatalf("provider bridge missing")
	}
	if _, ok := out.Graph.Node(SummaryPrefix + "variable"); !ok {
		t.Fatalf("reduction not applied")
	}
}

func TestExportQueryAmbiguousPlanKeepsQueryGraph(t *testing.T) {
	api := queryFixture()
	api.search = map[string]bw.SearchResult{}
	out, err := ExportQuery(context.Background(), api, QueryExportOptions{Query: QueryOptions{Name: "ZQ"}, Upstream: true})
	if err != nil {
		t.Fatalf("export query: %v", err)
	}
	if out.Graph.Kind == KindMerged {
		t.Fatalf("graph merged without a selected DTP")
	}
	found := false
	for _, w := range out.Graph.Warnings {
		if w == "No upstream DTP candidates discovered" {
			found = true
		}
	}
	if !found {
		t.Fatalf("warnings %v", out.Graph.Warnings)
	}
}
