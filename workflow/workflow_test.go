package workflow

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"pkt.systems/pslog"

	"pkt.systems/sapadt/adt"
	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/client"
	"pkt.systems/sapadt/ident"
	"pkt.systems/sapadt/internal/loggingutil"
)

const lockReply = `<asx:abap xmlns:asx="http://www.sap.com/abapxml" version="1.0"><asx:values><DATA>
<LOCK_HANDLE>H1</LOCK_HANDLE><CORRNR>NPLK900007</CORRNR><CORRUSER>DEVELOPER</CORRUSER>
</DATA></asx:values></asx:abap>`

type lockServer struct {
	mu          sync.Mutex
	calls       []string
	statefulHdr []string
	unlockCode  int
	putCode     int
}

func (l *lockServer) record(r *http.Request) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, r.Method+" "+r.URL.RequestURI())
	l.statefulHdr = append(l.statefulHdr, r.Header.Get("X-Sap-Adt-Sessiontype"))
}

func (l *lockServer) recorded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *lockServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Csrf-Token") == "Fetch" {
		w.Header().Set("X-Csrf-Token", "TOKEN")
		return
	}
	_, _ = io.Copy(io.Discard, r.Body)
	l.record(r)
	switch {
	case r.Method == http.MethodPost && r.URL.Query().Get("_action") == "LOCK":
		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, lockReply)
	case r.Method == http.MethodPost && r.URL.Query().Get("_action") == "UNLOCK":
		code := l.unlockCode
		if code == 0 {
			code = http.StatusOK
		}
		w.WriteHeader(code)
	case r.Method == http.MethodPost && r.URL.Query().Get("action") == "lock":
		w.Header().Set("timestamp", "20260101120000")
		_, _ = io.WriteString(w, lockReply)
	case r.Method == http.MethodPost && r.URL.Query().Get("action") == "unlock":
		code := l.unlockCode
		if code == 0 {
			code = http.StatusOK
		}
		w.WriteHeader(code)
	case r.Method == http.MethodPut:
		code := l.putCode
		if code == 0 {
			code = http.StatusOK
		}
		w.WriteHeader(code)
	case r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func newLockSession(t *testing.T, l *lockServer, opts ...client.Option) *client.Session {
	t.Helper()
	srv := httptest.NewServer(l)
	t.Cleanup(srv.Close)
	opts = append([]client.Option{client.WithCredentials("DEVELOPER", "pw"), client.WithHTTPClient(srv.Client())}, opts...)
	sess, err := client.New(srv.URL, opts...)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return sess
}

func mustURI(t *testing.T, raw string) ident.ObjectURI {
	t.Helper()
	uri, err := ident.NewObjectURI(raw)
	if err != nil {
		t.Fatalf("object uri: %v", err)
	}
	return uri
}

func TestWriteSourceWithAutoLock(t *testing.T) {
	l := &lockServer{}
	sess := newLockSession(t, l)
	uri := mustURI(t, "/sap/bc/adt/oo/classes/zcl_a/source/main")
	if err := WriteSourceWithAutoLock(context.Background(), sess, uri, "REPORT X.", ""); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := []string{
		"POST /sap/bc/adt/oo/classes/zcl_a?_action=LOCK&accessMode=MODIFY",
		"PUT /sap/bc/adt/oo/classes/zcl_a/source/main?lockHandle=H1&corrNr=NPLK900007",
		"POST /sap/bc/adt/oo/classes/zcl_a?_action=UNLOCK&lockHandle=H1",
	}
	got := l.recorded()
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("calls:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
	for i, h := range l.statefulHdr {
		if h != "stateful" {
			t.Fatalf("call %d not stateful: %q", i, h)
		}
	}
	if sess.IsStateful() {
		t.Fatalf("stateful flag not restored")
	}
}

func TestWriteSourceExplicitTransport(t *testing.T) {
	l := &lockServer{}
	sess := newLockSession(t, l)
	uri := mustURI(t, "/sap/bc/adt/programs/programs/zprog/source/main")
	if err := WriteSourceWithAutoLock(context.Background(), sess, uri, "REPORT zprog.", "NPLK900099"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := l.recorded()[1]; !strings.HasSuffix(got, "corrNr=NPLK900099") {
		t.Fatalf("put %q", got)
	}
}

func TestWriteSourceRequiresSourceSegment(t *testing.T) {
	l := &lockServer{}
	sess := newLockSession(t, l)
	err := WriteSourceWithAutoLock(context.Background(), sess, mustURI(t, "/sap/bc/adt/oo/classes/zcl_a"), "X", "")
	if !adterr.Is(err, adterr.Internal) {
		t.Fatalf("expected internal error, got %v", err)
	}
	if n := len(l.recorded()); n != 0 {
		t.Fatalf("expected no requests, got %d", n)
	}
}

func TestWithLockKeepsBodyResultWhenUnlockFails(t *testing.T) {
	l := &lockServer{unlockCode: http.StatusInternalServerError}
	var buf bytes.Buffer
	logger := loggingutil.New(context.Background(), &buf, loggingutil.FormatJSON, pslog.DebugLevel)
	sess := newLockSession(t, l, client.WithLogger(logger))
	uri := mustURI(t, "/sap/bc/adt/oo/classes/zcl_a")

	if err := WithLock(context.Background(), sess, uri, func(context.Context, adt.LockResult) error { return nil }); err != nil {
		t.Fatalf("body succeeded, got %v", err)
	}
	if !strings.Contains(buf.String(), "workflow.unlock.failed") {
		t.Fatalf("unlock failure not logged: %s", buf.String())
	}

	bodyErr := errors.New("body failed")
	err := WithLock(context.Background(), sess, uri, func(context.Context, adt.LockResult) error { return bodyErr })
	if !errors.Is(err, bodyErr) {
		t.Fatalf("expected body error, got %v", err)
	}
}

func TestWithLockUnlocksOnCancelAndPanic(t *testing.T) {
	l := &lockServer{}
	sess := newLockSession(t, l)
	uri := mustURI(t, "/sap/bc/adt/oo/classes/zcl_a")

	ctx, cancel := context.WithCancel(context.Background())
	err := WithLock(ctx, sess, uri, func(ctx context.Context, _ adt.LockResult) error {
		cancel()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	calls := l.recorded()
	if last := calls[len(calls)-1]; !strings.Contains(last, "_action=UNLOCK") {
		t.Fatalf("cancelled body did not unlock: %v", calls)
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic")
			}
		}()
		_ = WithLock(context.Background(), sess, uri, func(context.Context, adt.LockResult) error {
			panic("boom")
		})
	}()
	calls = l.recorded()
	if last := calls[len(calls)-1]; !strings.Contains(last, "_action=UNLOCK") {
		t.Fatalf("panicking body did not unlock: %v", calls)
	}
	if sess.IsStateful() {
		t.Fatalf("stateful flag not restored after panic")
	}
}

func TestWithLockRestoresPriorStatefulFlag(t *testing.T) {
	l := &lockServer{}
	sess := newLockSession(t, l)
	sess.SetStateful(true)
	uri := mustURI(t, "/sap/bc/adt/oo/classes/zcl_a")
	if err := WithLock(context.Background(), sess, uri, func(context.Context, adt.LockResult) error { return nil }); err != nil {
		t.Fatalf("with lock: %v", err)
	}
	if !sess.IsStateful() {
		t.Fatalf("previously stateful session was switched off")
	}
}

func TestDeleteObjectWithAutoLock(t *testing.T) {
	l := &lockServer{}
	sess := newLockSession(t, l)
	uri := mustURI(t, "/sap/bc/adt/oo/classes/zcl_a")
	if err := DeleteObjectWithAutoLock(context.Background(), sess, uri, ""); err != nil {
		t.Fatalf("delete: %v", err)
	}
	calls := l.recorded()
	if len(calls) != 3 || !strings.HasPrefix(calls[1], "DELETE /sap/bc/adt/oo/classes/zcl_a?lockHandle=H1") {
		t.Fatalf("calls %v", calls)
	}
}
