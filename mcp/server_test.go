package mcp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"pkt.systems/sapadt/client"
)

type fakeSAP struct {
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	requests []string
}

func newTestServer(t *testing.T, cfg Config) (*Server, *fakeSAP) {
	t.Helper()
	f := &fakeSAP{handlers: make(map[string]http.HandlerFunc)}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	sess, err := client.New(srv.URL, client.WithCredentials("DEVELOPER", "pw"), client.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	s, err := NewServer(NewServerRequest{Config: cfg, Session: sess})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return s, f
}

func (f *fakeSAP) handle(method, path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method+" "+path] = h
}

func (f *fakeSAP) serve(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Csrf-Token") == "Fetch" {
		w.Header().Set("X-Csrf-Token", "TOKEN")
		w.WriteHeader(http.StatusOK)
		return
	}
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	h := f.handlers[r.Method+" "+r.URL.Path]
	f.mu.Unlock()
	if h == nil {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

func reply(status int, contentType, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

// rpc sends one raw JSON-RPC message and decodes the response generically.
func rpc(t *testing.T, s *Server, raw string) map[string]any {
	t.Helper()
	msg := s.MCP().HandleMessage(context.Background(), json.RawMessage(raw))
	if msg == nil {
		return nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal response %s: %v", data, err)
	}
	return out
}

func callTool(t *testing.T, s *Server, name string, args map[string]any) (text string, isError bool) {
	t.Helper()
	params, err := json.Marshal(map[string]any{"name": name, "arguments": args})
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	resp := rpc(t, s, `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":`+string(params)+`}`)
	result, ok := resp["result"].(map[string]any)
	if !ok {
		t.Fatalf("tools/call %s: no result in %v", name, resp)
	}
	content, _ := result["content"].([]any)
	if len(content) != 1 {
		t.Fatalf("tools/call %s: content %v", name, content)
	}
	item, _ := content[0].(map[string]any)
	isErr, _ := result["isError"].(bool)
	return item["text"].(string), isErr
}

func initialize(t *testing.T, s *Server) {
	t.Helper()
	resp := rpc(t, s, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"0"}}}`)
	result, ok := resp["result"].(map[string]any)
	if !ok {
		t.Fatalf("initialize: %v", resp)
	}
	info, _ := result["serverInfo"].(map[string]any)
	if info["name"] != "sapadt" {
		t.Fatalf("server info: %v", info)
	}
}

func TestToolsListCoversEveryTool(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	initialize(t, s)
	resp := rpc(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	result, _ := resp["result"].(map[string]any)
	tools, _ := result["tools"].([]any)
	got := make(map[string]bool, len(tools))
	for _, raw := range tools {
		tool := raw.(map[string]any)
		name := tool["name"].(string)
		got[name] = true
		if desc, _ := tool["description"].(string); desc == "" {
			t.Fatalf("tool %s has no description", name)
		}
	}
	for _, name := range toolOrder {
		if !got[name] {
			t.Fatalf("tool %s missing from tools/list", name)
		}
	}
	if len(got) != len(toolOrder) {
		t.Fatalf("tools/list returned %d tools, want %d", len(got), len(toolOrder))
	}
}

func TestToolDescriptionsAreComplete(t *testing.T) {
	for _, name := range toolOrder {
		spec, ok := toolContracts[name]
		if !ok || spec.Purpose == "" || spec.Effects == "" {
			t.Fatalf("tool %s: incomplete contract %+v", name, spec)
		}
	}
}

func TestProtocolErrors(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	initialize(t, s)
	cases := []struct {
		raw  string
		code float64
	}{
		{`{"jsonrpc":"2.0","id":3,"method":"does/not/exist"}`, -32601},
		{`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"no_such_tool","arguments":{}}}`, -32602},
		{`{not json`, -32700},
	}
	for _, tc := range cases {
		resp := rpc(t, s, tc.raw)
		errObj, ok := resp["error"].(map[string]any)
		if !ok {
			t.Fatalf("%s: expected error, got %v", tc.raw, resp)
		}
		if errObj["code"] != tc.code {
			t.Fatalf("%s: code %v, want %v", tc.raw, errObj["code"], tc.code)
		}
	}
}

func TestNotificationHasNoReply(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	if resp := rpc(t, s, `{"jsonrpc":"2.0","method":"notifications/initialized"}`); resp != nil {
		t.Fatalf("notification answered: %v", resp)
	}
}

func TestReadSourceReturnsText(t *testing.T) {
	s, f := newTestServer(t, Config{})
	f.handle(http.MethodGet, "/sap/bc/adt/programs/programs/zhello/source/main", reply(http.StatusOK, "text/plain", "REPORT zhello.\nWRITE 'hi'."))
	text, isErr := callTool(t, s, toolADTReadSource, map[string]any{"uri": "/sap/bc/adt/programs/programs/zhello/source/main"})
	if isErr {
		t.Fatalf("read source failed: %s", text)
	}
	if text != "REPORT zhello.\nWRITE 'hi'." {
		t.Fatalf("source: %q", text)
	}
}

func TestToolErrorsRenderRecords(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	text, isErr := callTool(t, s, toolADTReadSource, map[string]any{"uri": "/sap/bc/adt/programs/programs/zmissing/source/main"})
	if !isErr {
		t.Fatalf("expected isError for 404")
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(text), &rec); err != nil {
		t.Fatalf("error text is not JSON %q: %v", text, err)
	}
	if rec["category"] != "NotFound" || rec["http_status"] != float64(404) {
		t.Fatalf("record: %v", rec)
	}

	text, isErr = callTool(t, s, toolADTSearch, map[string]any{})
	if !isErr || !strings.Contains(text, `"category":"Internal"`) || !strings.Contains(text, "query") {
		t.Fatalf("missing argument: %v %s", isErr, text)
	}
}

func TestGuardRecoversPanics(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	h := s.guard("boom", func(context.Context, mcpgo.CallToolRequest) (any, error) {
		panic("kaboom")
	})
	res, err := h(context.Background(), mcpgo.CallToolRequest{})
	if err != nil {
		t.Fatalf("guard returned error: %v", err)
	}
	if !res.IsError {
		t.Fatalf("panic not reported as isError")
	}
	text := res.Content[0].(mcpgo.TextContent).Text
	if !strings.Contains(text, "kaboom") {
		t.Fatalf("panic text: %q", text)
	}
}

func TestPackageExistsTool(t *testing.T) {
	s, f := newTestServer(t, Config{})
	f.handle(http.MethodGet, "/sap/bc/adt/packages/ZDEMO", reply(http.StatusOK, "application/xml",
		`<pak:package xmlns:pak="http://www.sap.com/adt/packages" xmlns:adtcore="http://www.sap.com/adt/core" adtcore:name="ZDEMO" adtcore:description="Demo"/>`))
	text, isErr := callTool(t, s, toolADTPackageExists, map[string]any{"package": "ZDEMO"})
	if isErr {
		t.Fatalf("package exists: %s", text)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["exists"] != true || out["package"] != "ZDEMO" {
		t.Fatalf("result: %v", out)
	}
	text, isErr = callTool(t, s, toolADTPackageExists, map[string]any{"package": "ZNOPE"})
	if isErr || !strings.Contains(text, `"exists": false`) {
		t.Fatalf("missing package: %v %s", isErr, text)
	}
}

func TestDeployStatusTool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deploy.yaml")
	yaml := "repos:\n  - name: core\n    url: https://github.com/acme/core.git\n    package: ZCORE\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	s, f := newTestServer(t, Config{DeployConfigPath: path})
	f.handle(http.MethodGet, "/sap/bc/adt/abapgit/repos", reply(http.StatusOK, "application/xml",
		`<abapgitrepo:repositories xmlns:abapgitrepo="http://www.sap.com/adt/abapgit/repositories">`+
			`<abapgitrepo:repository><abapgitrepo:key>000001</abapgitrepo:key><abapgitrepo:package>ZCORE</abapgitrepo:package>`+
			`<abapgitrepo:url>https://github.com/acme/core</abapgitrepo:url><abapgitrepo:branchName>refs/heads/main</abapgitrepo:branchName>`+
			`<abapgitrepo:status>A</abapgitrepo:status></abapgitrepo:repository></abapgitrepo:repositories>`))
	text, isErr := callTool(t, s, toolDeployStatus, nil)
	if isErr {
		t.Fatalf("deploy status: %s", text)
	}
	var out []map[string]any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		t.Fatalf("decode %q: %v", text, err)
	}
	if len(out) != 1 || out[0]["linked"] != true {
		t.Fatalf("status: %v", out)
	}
}
