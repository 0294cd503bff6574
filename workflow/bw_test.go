package workflow

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"pkt.systems/pslog"

	"pkt.systems/sapadt/bw"
	"pkt.systems/sapadt/client"
	"pkt.systems/sapadt/internal/loggingutil"
)

func TestSaveBWObjectWithAutoLock(t *testing.T) {
	l := &lockServer{}
	sess := newLockSession(t, l)
	err := SaveBWObjectWithAutoLock(context.Background(), sess, bw.SaveOptions{
		ObjectType: "ADSO",
		Name:       "ZSALES",
		Content:    "<adso/>",
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	want := []string{
		"POST /sap/bw/modeling/adso/ZSALES?action=lock",
		"PUT /sap/bw/modeling/adso/ZSALES?lockHandle=H1&corrNr=NPLK900007&timestamp=20260101120000",
		"POST /sap/bw/modeling/adso/ZSALES?action=unlock",
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

func TestSaveBWObjectUnlocksAfterFailedWrite(t *testing.T) {
	l := &lockServer{putCode: http.StatusBadRequest}
	sess := newLockSession(t, l)
	err := SaveBWObjectWithAutoLock(context.Background(), sess, bw.SaveOptions{ObjectType: "trfn", Name: "ZTR", Content: "<trfn/>", Transport: "NPLK900099"})
	if err == nil {
		t.Fatalf("expected save error")
	}
	calls := l.recorded()
	if len(calls) != 3 || !strings.Contains(calls[1], "corrNr=NPLK900099") || !strings.HasSuffix(calls[2], "action=unlock") {
		t.Fatalf("calls %v", calls)
	}
}

func TestDeleteBWObjectWithAutoLock(t *testing.T) {
	l := &lockServer{}
	sess := newLockSession(t, l)
	if err := DeleteBWObjectWithAutoLock(context.Background(), sess, "ADSO", "ZSALES", ""); err != nil {
		t.Fatalf("delete: %v", err)
	}
	calls := l.recorded()
	if len(calls) != 3 || calls[1] != "DELETE /sap/bw/modeling/adso/ZSALES?lockHandle=H1&corrNr=NPLK900007" {
		t.Fatalf("calls %v", calls)
	}
}

func TestWithBWLockKeepsBodyResultWhenUnlockFails(t *testing.T) {
	l := &lockServer{unlockCode: http.StatusInternalServerError}
	var buf bytes.Buffer
	logger := loggingutil.New(context.Background(), &buf, loggingutil.FormatJSON, pslog.DebugLevel)
	sess := newLockSession(t, l, client.WithLogger(logger))
	bodyErr := errors.New("body failed")
	err := WithBWLock(context.Background(), sess, "ADSO", "ZSALES", "", func(context.Context, bw.LockResult) error { return bodyErr })
	if !errors.Is(err, bodyErr) {
		t.Fatalf("expected body error, got %v", err)
	}
	if !strings.Contains(buf.String(), "workflow.bw.unlock.failed") {
		t.Fatalf("unlock failure not logged: %s", buf.String())
	}
}
