package router

import (
	"bytes"
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestParseFlagsAndPositionals(t *testing.T) {
	inv := Parse([]string{"--host", "sap01", "source", "write", "/sap/bc/adt/x", "--activate", "--file", "a.abap", "--transport=NPLK900001", "extra"})
	if inv.Group != "source" || inv.Action != "write" {
		t.Fatalf("group/action: %q %q", inv.Group, inv.Action)
	}
	if !reflect.DeepEqual(inv.Positional, []string{"/sap/bc/adt/x", "extra"}) {
		t.Fatalf("positional: %v", inv.Positional)
	}
	want := map[string]string{"host": "sap01", "activate": "true", "file": "a.abap", "transport": "NPLK900001"}
	if !reflect.DeepEqual(inv.Flags, want) {
		t.Fatalf("flags: %v", inv.Flags)
	}
	if got := inv.FlagArgs(); !reflect.DeepEqual(got, []string{"--host=sap01", "--activate=true", "--file=a.abap", "--transport=NPLK900001"}) {
		t.Fatalf("flag args: %v", got)
	}
}

func TestParseBoolWhitelistNeverConsumes(t *testing.T) {
	for name := range boolFlags {
		inv := Parse([]string{"bw", "search", "--" + name, "ZSALES"})
		if !inv.Bool(name) {
			t.Fatalf("%s: not set", name)
		}
		if len(inv.Positional) != 1 || inv.Positional[0] != "ZSALES" {
			t.Fatalf("%s consumed next token: %v", name, inv.Positional)
		}
	}
	inv := Parse([]string{"bw", "search", "--max", "--json"})
	if v, _ := inv.Flag("max"); v != "true" {
		t.Fatalf("flag before flag: %q", v)
	}
	inv = Parse([]string{"bw", "search", "--", "--literal"})
	if len(inv.Positional) != 1 || inv.Positional[0] != "--literal" {
		t.Fatalf("terminator: %v", inv.Positional)
	}
}

type recorder struct {
	calls []Invocation
}

func (r *recorder) handler(code int) Handler {
	return func(_ context.Context, inv Invocation) int {
		r.calls = append(r.calls, inv)
		return code
	}
}

func newTestRouter(rec *recorder) *Router {
	r := New("sapadt")
	r.Register("source", "read", rec.handler(0))
	r.Register("source", "write", rec.handler(7))
	r.Describe("source", "", "Read and write ABAP source")
	r.Describe("source", "read", "Print source code")
	r.SetDefault("source", "read")
	r.Register("transport", "list", rec.handler(0))
	return r
}

func TestRunDefaultActionFallback(t *testing.T) {
	rec := &recorder{}
	r := newTestRouter(rec)
	var out, errOut bytes.Buffer
	code := r.Run(context.Background(), []string{"source", "/sap/bc/adt/programs/programs/zx/source/main", "--version", "inactive"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("code %d: %s", code, errOut.String())
	}
	if len(rec.calls) != 1 {
		t.Fatalf("calls: %d", len(rec.calls))
	}
	inv := rec.calls[0]
	if inv.Action != "read" || inv.Positional[0] != "/sap/bc/adt/programs/programs/zx/source/main" {
		t.Fatalf("rewritten invocation: %+v", inv)
	}
	if v, _ := inv.Flag("version"); v != "inactive" {
		t.Fatalf("version flag: %q", v)
	}
}

func TestRunReturnsHandlerCode(t *testing.T) {
	rec := &recorder{}
	r := newTestRouter(rec)
	var out, errOut bytes.Buffer
	if code := r.Run(context.Background(), []string{"source", "write", "/x"}, &out, &errOut); code != 7 {
		t.Fatalf("code: %d", code)
	}
}

func TestRunRoutingErrors(t *testing.T) {
	rec := &recorder{}
	r := newTestRouter(rec)
	cases := []struct {
		args []string
		want string
	}{
		{nil, "missing command group"},
		{[]string{"nope"}, `unknown command group "nope"`},
		{[]string{"transport", "frobnicate"}, `unknown command "transport frobnicate"`},
	}
	for _, tc := range cases {
		var out, errOut bytes.Buffer
		if code := r.Run(context.Background(), tc.args, &out, &errOut); code != 1 {
			t.Fatalf("%v: code %d", tc.args, code)
		}
		if !strings.Contains(errOut.String(), tc.want) {
			t.Fatalf("%v: stderr %q", tc.args, errOut.String())
		}
	}
	if len(rec.calls) != 0 {
		t.Fatalf("handler ran on routing error")
	}
}

func TestRunJSONRoutingError(t *testing.T) {
	r := newTestRouter(&recorder{})
	var out, errOut bytes.Buffer
	if code := r.Run(context.Background(), []string{"nope", "--json"}, &out, &errOut); code != 1 {
		t.Fatalf("code: %d", code)
	}
	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(errOut.Bytes()), &rec); err != nil {
		t.Fatalf("unmarshal %q: %v", errOut.String(), err)
	}
	if !strings.Contains(rec["message"].(string), "nope") {
		t.Fatalf("record: %v", rec)
	}
}

func TestRunHelp(t *testing.T) {
	rec := &recorder{}
	r := newTestRouter(rec)

	var out, errOut bytes.Buffer
	if code := r.Run(context.Background(), []string{"--help"}, &out, &errOut); code != 0 {
		t.Fatalf("global help code: %d", code)
	}
	if !strings.Contains(out.String(), "transport") || !strings.Contains(out.String(), "read - Print source code") {
		t.Fatalf("global help: %q", out.String())
	}

	out.Reset()
	if code := r.Run(context.Background(), []string{"source", "-h"}, &out, &errOut); code != 0 {
		t.Fatalf("group help code: %d", code)
	}
	if !strings.Contains(out.String(), "sapadt source - Read and write ABAP source") || !strings.Contains(out.String(), "runs 'sapadt source read <args>'") {
		t.Fatalf("group help: %q", out.String())
	}

	out.Reset()
	if code := r.Run(context.Background(), []string{"transport"}, &out, &errOut); code != 0 {
		t.Fatalf("bare group code: %d", code)
	}
	if !strings.Contains(out.String(), "list") {
		t.Fatalf("bare group help: %q", out.String())
	}

	if code := r.Run(context.Background(), []string{"source", "write", "--help"}, &out, &errOut); code != 7 {
		t.Fatalf("action help should reach handler, code %d", code)
	}
	if len(rec.calls) != 1 || !rec.calls[0].Bool("help") {
		t.Fatalf("handler calls: %+v", rec.calls)
	}
}

func TestAddBoolFlagsKeepsPositional(t *testing.T) {
	rec := &recorder{}
	r := New("sapadt")
	r.Register("bw", "lineage", rec.handler(0))
	r.AddBoolFlags("mermaid")
	var out, errOut bytes.Buffer
	if code := r.Run(context.Background(), []string{"bw", "lineage", "--mermaid", "DTP_X"}, &out, &errOut); code != 0 {
		t.Fatalf("code %d: %s", code, errOut.String())
	}
	inv := rec.calls[0]
	if len(inv.Positional) != 1 || inv.Positional[0] != "DTP_X" || !inv.Bool("mermaid") {
		t.Fatalf("invocation: %+v", inv)
	}
	if got := Parse([]string{"bw", "lineage", "--mermaid", "DTP_X"}); got.Flags["mermaid"] != "DTP_X" {
		t.Fatalf("package Parse should not know router flags: %+v", got)
	}
}
