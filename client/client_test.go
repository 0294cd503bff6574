package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/ident"
	"pkt.systems/sapadt/internal/clock"
	"pkt.systems/sapadt/xmlcodec"
)

func newTestSession(t *testing.T, srv *httptest.Server, opts ...Option) *Session {
	t.Helper()
	all := append([]Option{WithCredentials("DEVELOPER", "secret"), WithHTTPClient(srv.Client())}, opts...)
	sess, err := New(srv.URL, all...)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

func TestNewRejectsInvalidBaseURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://host", "not a url", "http://"} {
		if _, err := New(raw); !adterr.Is(err, adterr.Internal) {
			t.Fatalf("New(%q): expected internal error, got %v", raw, err)
		}
	}
}

func TestRequestHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	sc, err := ident.NewSAPClient("100")
	if err != nil {
		t.Fatalf("sap client: %v", err)
	}
	sess := newTestSession(t, srv, WithSAPClient(sc), WithLanguage("DE"))
	ctx := WithCorrelationID(context.Background(), "cid-123")
	resp, err := sess.Get(ctx, "/sap/bc/adt/discovery", map[string]string{"accept": "application/atomsvc+xml"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !resp.OK() {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if user, pass, ok := (&http.Request{Header: got}).BasicAuth(); !ok || user != "DEVELOPER" || pass != "secret" {
		t.Fatalf("unexpected basic auth %q/%q ok=%v", user, pass, ok)
	}
	checks := map[string]string{
		"sap-client":       "100",
		"Accept-Language":  "de",
		"Accept":           "application/atomsvc+xml",
		"X-Correlation-Id": "cid-123",
	}
	for k, want := range checks {
		if v := got.Get(k); v != want {
			t.Fatalf("header %s: want %q, got %q", k, want, v)
		}
	}
	if !strings.HasPrefix(got.Get("User-Agent"), "sapadt/") {
		t.Fatalf("unexpected user agent %q", got.Get("User-Agent"))
	}
	if got.Get("X-Csrf-Token") != "" {
		t.Fatalf("GET must not carry a token")
	}
}

func TestNonSuccessReturnedAsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer srv.Close()
	sess := newTestSession(t, srv)
	resp, err := sess.Get(context.Background(), "/nope", nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound || resp.OK() {
		t.Fatalf("expected 404 response, got %d", resp.StatusCode)
	}
}

func TestRedirectNotFollowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/elsewhere", http.StatusFound)
			return
		}
		t.Errorf("redirect followed to %s", r.URL.Path)
	}))
	defer srv.Close()
	sess := newTestSession(t, srv)
	resp, err := sess.Get(context.Background(), "/start", nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != http.StatusFound || resp.Location() != "/elsewhere" {
		t.Fatalf("unexpected redirect response %d %q", resp.StatusCode, resp.Location())
	}
}

func TestConnectionFailureIsConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	sess, err := New(url)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, err = sess.Get(context.Background(), "/x", nil)
	if !adterr.Is(err, adterr.Connection) {
		t.Fatalf("expected connection error, got %v", err)
	}
}

func TestRequestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)
	sess := newTestSession(t, srv, WithHTTPTimeout(50*time.Millisecond))
	_, err := sess.Get(context.Background(), "/slow", nil)
	if !adterr.Is(err, adterr.Timeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestCSRFRefreshOnRequired(t *testing.T) {
	var tokenFetches, posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == DefaultCSRFPath:
			if r.Header.Get("X-Csrf-Token") != "Fetch" {
				t.Errorf("token fetch without Fetch header")
			}
			n := tokenFetches.Add(1)
			if n == 1 {
				w.Header().Set("X-Csrf-Token", "T1")
			} else {
				w.Header().Set("X-Csrf-Token", "T2")
			}
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPost && r.URL.Path == "/sap/bc/adt/activation":
			posts.Add(1)
			if r.Header.Get("X-Csrf-Token") == "T1" {
				w.Header().Set("X-Csrf-Token", "Required")
				w.WriteHeader(http.StatusForbidden)
				return
			}
			if r.Header.Get("X-Csrf-Token") != "T2" {
				t.Errorf("unexpected token %q", r.Header.Get("X-Csrf-Token"))
			}
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()
	sess := newTestSession(t, srv)
	resp, err := sess.Post(context.Background(), "/sap/bc/adt/activation", "<x/>", "application/xml", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if posts.Load() != 2 || tokenFetches.Load() != 2 {
		t.Fatalf("expected 2 posts and 2 token fetches, got %d and %d", posts.Load(), tokenFetches.Load())
	}
	if sess.CSRFToken() != "T2" {
		t.Fatalf("expected cached T2, got %q", sess.CSRFToken())
	}
}

func TestSecondCSRFRequiredIsTerminal(t *testing.T) {
	var tokenFetches, posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			tokenFetches.Add(1)
			w.Header().Set("X-Csrf-Token", "T")
			return
		}
		posts.Add(1)
		w.Header().Set("X-Csrf-Token", "Required")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("CSRF token validation failed"))
	}))
	defer srv.Close()
	sess := newTestSession(t, srv)
	_, err := sess.Put(context.Background(), "/sap/bc/adt/oo/classes/zcl_a/source/main", "x", "text/plain", nil)
	if !adterr.Is(err, adterr.CsrfToken) {
		t.Fatalf("expected csrf error, got %v", err)
	}
	if posts.Load() != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", posts.Load())
	}
	if tokenFetches.Load() != 2 {
		t.Fatalf("expected 2 token fetches, got %d", tokenFetches.Load())
	}
}

func TestForbiddenWithoutRequiredNotRetried(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Header().Set("X-Csrf-Token", "T1")
			return
		}
		posts.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("no authorization for S_ADT_RES"))
	}))
	defer srv.Close()
	sess := newTestSession(t, srv)
	_, err := sess.Post(context.Background(), "/sap/bc/adt/packages", "", "", nil)
	if !adterr.Is(err, adterr.CsrfToken) {
		t.Fatalf("expected csrf error, got %v", err)
	}
	e := err.(*adterr.Error)
	if e.SAPError == nil || !strings.Contains(*e.SAPError, "S_ADT_RES") {
		t.Fatalf("expected body preserved, got %+v", e)
	}
	if posts.Load() != 1 {
		t.Fatalf("expected a single post, got %d", posts.Load())
	}
}

func TestCSRFFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	sess := newTestSession(t, srv)
	if _, err := sess.Delete(context.Background(), "/x", nil); !adterr.Is(err, adterr.CsrfToken) {
		t.Fatalf("expected csrf error for missing token, got %v", err)
	}
}

func TestStatefulHeaderAndContextID(t *testing.T) {
	var mu sync.Mutex
	var sessionTypes []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		sessionTypes = append(sessionTypes, r.Header.Get("X-sap-adt-sessiontype"))
		mu.Unlock()
		http.SetCookie(w, &http.Cookie{Name: "sap-contextid", Value: "CTX42", Path: "/"})
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	sess := newTestSession(t, srv)
	ctx := context.Background()
	if _, err := sess.Get(ctx, "/a", nil); err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess.ContextID() != "" {
		t.Fatalf("context id tracked while stateless")
	}
	sess.SetStateful(true)
	if !sess.IsStateful() {
		t.Fatalf("expected stateful")
	}
	if _, err := sess.Get(ctx, "/b", nil); err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess.ContextID() != "CTX42" {
		t.Fatalf("expected context id CTX42, got %q", sess.ContextID())
	}
	sess.SetStateful(false)
	if sess.ContextID() != "" {
		t.Fatalf("context id kept after leaving stateful mode")
	}
	if len(sess.Cookies()) == 0 {
		t.Fatalf("cookies dropped when leaving stateful mode")
	}
	mu.Lock()
	defer mu.Unlock()
	if sessionTypes[0] != "" || sessionTypes[1] != "stateful" {
		t.Fatalf("unexpected session type headers %v", sessionTypes)
	}
}

func TestCookiesReplayed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			http.SetCookie(w, &http.Cookie{Name: "SAP_SESSIONID_A4H_001", Value: "abc", Path: "/"})
			return
		}
		c, err := r.Cookie("SAP_SESSIONID_A4H_001")
		if err != nil || c.Value != "abc" {
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()
	sess := newTestSession(t, srv)
	ctx := context.Background()
	if _, err := sess.Get(ctx, "/login", nil); err != nil {
		t.Fatalf("login: %v", err)
	}
	resp, err := sess.Get(ctx, "/next", nil)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cookie not replayed, status %d", resp.StatusCode)
	}
}

func pollServer(t *testing.T, states []string) *httptest.Server {
	t.Helper()
	var calls atomic.Int32
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1)) - 1
		if n >= len(states) {
			n = len(states) - 1
		}
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(`<status state="` + states[n] + `"/>`))
	}))
}

func drivePoll(t *testing.T, clk *clock.Manual, interval time.Duration, done <-chan struct{}) {
	t.Helper()
	go func() {
		for clk.WaitForTimer(done) {
			clk.Advance(interval)
		}
	}()
}

func TestPollUntilComplete(t *testing.T) {
	srv := pollServer(t, []string{"running", "running", "completed"})
	defer srv.Close()
	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	sess := newTestSession(t, srv, WithClock(clk), WithPollInterval(2*time.Second))
	done := make(chan struct{})
	defer close(done)
	drivePoll(t, clk, 2*time.Second, done)
	res, err := sess.PollUntilComplete(context.Background(), "/sap/bc/adt/activation/runs/1", time.Minute)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if res.Status != xmlcodec.PollCompleted {
		t.Fatalf("expected completed, got %v", res.Status)
	}
	if res.Elapsed != 4*time.Second {
		t.Fatalf("expected elapsed 4s, got %s", res.Elapsed)
	}
}

func TestPollStatusCodeDecidesState(t *testing.T) {
	const result = `<activation><total>1</total><activated>1</activated><failed>0</failed></activation>`
	replies := []struct {
		status int
		body   string
	}{
		{http.StatusAccepted, `<status state="running"/>`},
		{http.StatusAccepted, ""},
		{http.StatusOK, result},
	}
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1)) - 1
		if n >= len(replies) {
			t.Errorf("poll continued after completion")
			n = len(replies) - 1
		}
		w.WriteHeader(replies[n].status)
		_, _ = w.Write([]byte(replies[n].body))
	}))
	defer srv.Close()
	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	sess := newTestSession(t, srv, WithClock(clk), WithPollInterval(2*time.Second))
	done := make(chan struct{})
	defer close(done)
	drivePoll(t, clk, 2*time.Second, done)
	res, err := sess.PollUntilComplete(context.Background(), "/status/42", time.Minute)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if res.Status != xmlcodec.PollCompleted || string(res.Body) != result {
		t.Fatalf("expected completed result body, got %v %q", res.Status, res.Body)
	}
	if calls.Load() != 3 || res.Elapsed != 4*time.Second {
		t.Fatalf("expected 3 polls over 4s, got %d over %s", calls.Load(), res.Elapsed)
	}
}

func TestPollOtherSuccessStatusFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	sess := newTestSession(t, srv)
	res, err := sess.PollUntilComplete(context.Background(), "/run", time.Minute)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if res.Status != xmlcodec.PollFailed {
		t.Fatalf("expected failed for 204, got %v", res.Status)
	}
}

func TestPollFailedIsResult(t *testing.T) {
	srv := pollServer(t, []string{"failed"})
	defer srv.Close()
	sess := newTestSession(t, srv)
	res, err := sess.PollUntilComplete(context.Background(), "/run", time.Minute)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if res.Status != xmlcodec.PollFailed || len(res.Body) == 0 {
		t.Fatalf("expected failed result with body, got %+v", res)
	}
}

func TestPollTimeout(t *testing.T) {
	srv := pollServer(t, []string{"running"})
	defer srv.Close()
	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	sess := newTestSession(t, srv, WithClock(clk), WithPollInterval(time.Second))
	done := make(chan struct{})
	defer close(done)
	drivePoll(t, clk, time.Second, done)
	res, err := sess.PollUntilComplete(context.Background(), "/run", 3*time.Second)
	if !adterr.Is(err, adterr.Timeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if res.Elapsed < 3*time.Second {
		t.Fatalf("returned before the timeout: %s", res.Elapsed)
	}
}

func TestPollCancelled(t *testing.T) {
	srv := pollServer(t, []string{"running"})
	defer srv.Close()
	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	sess := newTestSession(t, srv, WithClock(clk))
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		clk.WaitForTimer(nil)
		cancel()
	}()
	res, err := sess.PollUntilComplete(ctx, "/run", time.Hour)
	if !adterr.Is(err, adterr.Timeout) {
		t.Fatalf("expected timeout category on cancel, got %v", err)
	}
	if res.Status != xmlcodec.PollFailed {
		t.Fatalf("expected failed status on cancel, got %v", res.Status)
	}
}

func TestPollHTTPErrorStopsImmediately(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()
	sess := newTestSession(t, srv)
	_, err := sess.PollUntilComplete(context.Background(), "/run", time.Minute)
	if !adterr.Is(err, adterr.NotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSessionPersistenceRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "SAP_SESSIONID", Value: "s1", Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: "sap-contextid", Value: "C1", Path: "/"})
		w.Header().Set("X-Csrf-Token", "TOKEN")
	}))
	defer srv.Close()
	sess := newTestSession(t, srv)
	sess.SetStateful(true)
	if _, err := sess.FetchCSRFToken(context.Background()); err != nil {
		t.Fatalf("fetch token: %v", err)
	}
	path := filepath.Join(t.TempDir(), "session.json")
	if err := sess.SaveSession(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600, got %v", info.Mode().Perm())
	}

	restored := newTestSession(t, srv)
	if err := restored.LoadSession(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if restored.CSRFToken() != "TOKEN" || !restored.IsStateful() || restored.ContextID() != "C1" {
		t.Fatalf("restored session mismatch: token=%q stateful=%v ctx=%q",
			restored.CSRFToken(), restored.IsStateful(), restored.ContextID())
	}
	want, got := sess.Cookies(), restored.Cookies()
	if len(want) != len(got) {
		t.Fatalf("cookie count mismatch: %d vs %d", len(want), len(got))
	}
	for i := range want {
		if want[i].Name != got[i].Name || want[i].Value != got[i].Value || want[i].Path != got[i].Path {
			t.Fatalf("cookie %d mismatch: %+v vs %+v", i, want[i], got[i])
		}
	}
}

func TestLoadSessionReplacesCookies(t *testing.T) {
	var sent atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/stale" {
			http.SetCookie(w, &http.Cookie{Name: "STALE", Value: "old", Path: "/"})
			return
		}
		var names []string
		for _, c := range r.Cookies() {
			names = append(names, c.Name+"="+c.Value)
		}
		sent.Store(strings.Join(names, ";"))
	}))
	defer srv.Close()
	sess := newTestSession(t, srv)
	if _, err := sess.Get(context.Background(), "/stale", nil); err != nil {
		t.Fatalf("get: %v", err)
	}
	path := filepath.Join(t.TempDir(), "session.json")
	file := `{"version":1,"csrf_token":"T","cookies":[{"name":"SAP_SESSIONID","value":"s1","path":"/"}]}`
	if err := os.WriteFile(path, []byte(file), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := sess.LoadSession(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	cookies := sess.Cookies()
	if len(cookies) != 1 || cookies[0].Name != "SAP_SESSIONID" {
		t.Fatalf("expected only the restored cookie, got %+v", cookies)
	}
	if _, err := sess.Get(context.Background(), "/check", nil); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got, _ := sent.Load().(string); got != "SAP_SESSIONID=s1" {
		t.Fatalf("stale cookie replayed: %q", got)
	}
}

func TestLoadSessionVersions(t *testing.T) {
	dir := t.TempDir()
	sess, err := New("https://sap.example.com")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := sess.LoadSession(filepath.Join(dir, "missing.json")); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}
	legacy := filepath.Join(dir, "legacy.json")
	if err := os.WriteFile(legacy, []byte(`{"csrf_token":"OLD"}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := sess.LoadSession(legacy); err != nil {
		t.Fatalf("load legacy: %v", err)
	}
	if sess.CSRFToken() != "OLD" {
		t.Fatalf("expected OLD token, got %q", sess.CSRFToken())
	}
	future := filepath.Join(dir, "future.json")
	if err := os.WriteFile(future, []byte(`{"version":2,"csrf_token":"NEW"}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := sess.LoadSession(future); !adterr.Is(err, adterr.Internal) {
		t.Fatalf("expected unsupported version error, got %v", err)
	}
	if sess.CSRFToken() != "OLD" {
		t.Fatalf("rejected file must not change the session")
	}
}

func TestNormalizeCorrelationID(t *testing.T) {
	if _, ok := NormalizeCorrelationID("  "); ok {
		t.Fatalf("blank id accepted")
	}
	if _, ok := NormalizeCorrelationID(strings.Repeat("a", MaxCorrelationIDLength+1)); ok {
		t.Fatalf("oversized id accepted")
	}
	if id, ok := NormalizeCorrelationID(" abc "); !ok || id != "abc" {
		t.Fatalf("unexpected normalize result %q %v", id, ok)
	}
	if GenerateCorrelationID() == GenerateCorrelationID() {
		t.Fatalf("generated ids collide")
	}
}
