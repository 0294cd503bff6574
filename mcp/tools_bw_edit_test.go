package mcp

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
)

const bwServiceDoc = `<app:service xmlns:app="http://www.w3.org/2007/app" xmlns:atom="http://www.w3.org/2005/Atom" xmlns:adtcomp="http://www.sap.com/adt/compatibility">
<app:workspace><atom:title>BW Modeling</atom:title>
<app:collection href="/sap/bw/modeling/dmod">
  <atom:title>Data Flow</atom:title>
  <app:accept>application/vnd.sap.bw.modeling.dmod-v1_0_0+xml</app:accept>
  <atom:category term="dmod" scheme="http://www.sap.com/bw/modeling/dmod"/>
</app:collection>
</app:workspace></app:service>`

func TestBWDiscoverTool(t *testing.T) {
	s, f := newTestServer(t, Config{})
	f.handle(http.MethodGet, "/sap/bw/modeling/discovery", reply(http.StatusOK, "application/atomsvc+xml", bwServiceDoc))
	text, isErr := callTool(t, s, toolBWDiscover, nil)
	if isErr {
		t.Fatalf("discover: %s", text)
	}
	var out []map[string]any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		t.Fatalf("decode %q: %v", text, err)
	}
	if len(out) != 1 || out[0]["term"] != "dmod" || out[0]["href"] != "/sap/bw/modeling/dmod" {
		t.Fatalf("services: %v", out)
	}
}

func TestBWDiscoverToolWithoutBW(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	text, isErr := callTool(t, s, toolBWDiscover, nil)
	if !isErr || !strings.Contains(text, `"category":"NotFound"`) {
		t.Fatalf("expected not found record: %v %s", isErr, text)
	}
}

func TestBWSaveObjectTool(t *testing.T) {
	s, f := newTestServer(t, Config{})
	var stateful []string
	f.handle(http.MethodPost, "/sap/bw/modeling/trfn/ZTR_SALES", func(w http.ResponseWriter, r *http.Request) {
		stateful = append(stateful, r.Header.Get("X-Sap-Adt-Sessiontype"))
		if r.URL.Query().Get("action") == "lock" {
			_, _ = io.WriteString(w, `<LOCK_HANDLE>H9</LOCK_HANDLE><CORRNR>NPLK900003</CORRNR>`)
		}
	})
	var put string
	f.handle(http.MethodPut, "/sap/bw/modeling/trfn/ZTR_SALES", func(w http.ResponseWriter, r *http.Request) {
		put = r.URL.RawQuery
		w.WriteHeader(http.StatusNoContent)
	})
	text, isErr := callTool(t, s, toolBWSaveObject, map[string]any{"type": "trfn", "name": "ztr_sales", "content": "<trfn/>"})
	if isErr {
		t.Fatalf("save: %s", text)
	}
	if put != "lockHandle=H9&corrNr=NPLK900003" {
		t.Fatalf("put query %q", put)
	}
	if len(stateful) != 2 || stateful[0] != "stateful" || stateful[1] != "stateful" {
		t.Fatalf("lock calls not stateful: %v", stateful)
	}
	text, isErr = callTool(t, s, toolBWSaveObject, map[string]any{"type": "trfn", "name": "ztr_sales"})
	if !isErr || !strings.Contains(text, "content") {
		t.Fatalf("missing content accepted: %s", text)
	}
}

func TestBWActivateToolValidatesObjects(t *testing.T) {
	s, f := newTestServer(t, Config{})
	var query string
	f.handle(http.MethodPost, "/sap/bw/modeling/activation", func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		_, _ = io.WriteString(w, `<bwActivation:massACT xmlns:bwActivation="http://www.sap.com/bw/massact"/>`)
	})
	text, isErr := callTool(t, s, toolBWActivate, map[string]any{
		"objects": []any{map[string]any{"type": "adso", "name": "zsales"}},
		"mode":    "simulate",
	})
	if isErr {
		t.Fatalf("activate: %s", text)
	}
	if !strings.Contains(query, "simu=true") {
		t.Fatalf("query %q", query)
	}
	text, isErr = callTool(t, s, toolBWActivate, map[string]any{"objects": []any{map[string]any{"type": "adso"}}})
	if !isErr || !strings.Contains(text, "objects[0]") {
		t.Fatalf("incomplete object accepted: %s", text)
	}
	if text, isErr = callTool(t, s, toolBWActivate, map[string]any{"objects": []any{}, "mode": "later"}); !isErr {
		t.Fatalf("empty objects accepted: %s", text)
	}
}

func TestRunClassTool(t *testing.T) {
	s, f := newTestServer(t, Config{})
	f.handle(http.MethodPost, "/sap/bc/adt/oo/classrun/ZCL_HELLO", reply(http.StatusOK, "text/plain", "Hello\n"))
	text, isErr := callTool(t, s, toolADTRunClass, map[string]any{"class": "ZCL_HELLO"})
	if isErr {
		t.Fatalf("run: %s", text)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["class"] != "ZCL_HELLO" || out["output"] != "Hello\n" {
		t.Fatalf("result %v", out)
	}
}
