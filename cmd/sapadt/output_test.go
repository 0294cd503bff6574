package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/bw"
)

func TestWritePlainTable(t *testing.T) {
	var buf bytes.Buffer
	err := writePlainTable(&buf, []string{"NAME", "TYPE", "URI"}, [][]string{
		{"ZCL_LONGER_NAME", "CLAS/OC", "/sap/bc/adt/oo/classes/zcl_longer_name"},
		{"ZP", "PROG/P"},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	want := "NAME             TYPE     URI\n" +
		"---------------  -------  --------------------------------------\n" +
		"ZCL_LONGER_NAME  CLAS/OC  /sap/bc/adt/oo/classes/zcl_longer_name\n" +
		"ZP               PROG/P   \n"
	if buf.String() != want {
		t.Fatalf("table:\n%q\nwant:\n%q", buf.String(), want)
	}
}

func TestTableJSONKeysByHeader(t *testing.T) {
	var out bytes.Buffer
	p := newPrinter(&out, &bytes.Buffer{}, true, false, false)
	if err := p.table([]string{"NAME", "TYPE"}, [][]string{{"ZA", "CLAS/OC"}}); err != nil {
		t.Fatalf("table: %v", err)
	}
	var recs []map[string]string
	if err := json.Unmarshal(out.Bytes(), &recs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(recs) != 1 || recs[0]["NAME"] != "ZA" || recs[0]["TYPE"] != "CLAS/OC" {
		t.Fatalf("records %+v", recs)
	}
}

func TestSuccessQuietAndJSON(t *testing.T) {
	var out bytes.Buffer
	quiet := newPrinter(&out, &bytes.Buffer{}, false, false, true)
	if err := quiet.success("done", nil); err != nil {
		t.Fatalf("success: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("quiet printed %q", out.String())
	}
	jp := newPrinter(&out, &bytes.Buffer{}, true, false, false)
	if err := jp.success("done", map[string]any{"uri": "/sap/bc/adt/x"}); err != nil {
		t.Fatalf("success: %v", err)
	}
	var rec map[string]any
	if err := json.Unmarshal(out.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["success"] != true || rec["message"] != "done" || rec["uri"] != "/sap/bc/adt/x" {
		t.Fatalf("record %+v", rec)
	}
}

func TestPrintErrorText(t *testing.T) {
	var errOut bytes.Buffer
	p := newPrinter(&bytes.Buffer{}, &errOut, false, false, false)
	p.printError(adterr.New("LockObject", "/sap/bc/adt/oo/classes/zcl_a", adterr.LockConflict, "object is locked by OTHER"))
	got := errOut.String()
	if !strings.HasPrefix(got, "Error: LockObject\n") || !strings.Contains(got, "  object is locked by OTHER\n") {
		t.Fatalf("error text %q", got)
	}

	errOut.Reset()
	p.printError(errors.New("--file is required"))
	if errOut.String() != "Error: --file is required\n" {
		t.Fatalf("plain error %q", errOut.String())
	}
}

func TestHumanHelpers(t *testing.T) {
	if got := humanCount(1, "object"); got != "1 object" {
		t.Fatalf("humanCount(1) = %q", got)
	}
	if got := humanCount(12345, "row"); got != "12,345 rows" {
		t.Fatalf("humanCount(12345) = %q", got)
	}
	if got := humanBytes(2048); got != "2.0kB" {
		t.Fatalf("humanBytes = %q", got)
	}
	if got := humanDuration(1234567 * time.Microsecond); got != "1.2s" {
		t.Fatalf("humanDuration = %q", got)
	}
	if got := humanDuration(1500 * time.Microsecond); got != "2ms" {
		t.Fatalf("humanDuration = %q", got)
	}
}

func TestCollectMode(t *testing.T) {
	cases := map[string]string{
		"":          bw.CollectModeNecessary,
		"necessary": bw.CollectModeNecessary,
		"Complete":  bw.CollectModeComplete,
		"dataflow":  bw.CollectModeDataflow,
		"3":         bw.CollectModeDataflow,
	}
	for in, want := range cases {
		got, err := collectMode(in)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if got != want {
			t.Fatalf("%q: want %q, got %q", in, want, got)
		}
	}
	if _, err := collectMode("everything"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestPrintRowsColumns(t *testing.T) {
	a := newTestApp("")
	a.out = newPrinter(a.stdout, a.stderr, false, false, false)
	err := a.printRows([]bw.Row{
		{"_element": "entry", "name": "IA_SALES", "description": "Sales", "_text": "x"},
		{"_element": "entry", "name": "IA_FIN"},
	})
	if err != nil {
		t.Fatalf("print rows: %v", err)
	}
	lines := strings.Split(a.stdout.(*bytes.Buffer).String(), "\n")
	if fields := strings.Fields(lines[0]); strings.Join(fields, " ") != "DESCRIPTION NAME TEXT" {
		t.Fatalf("headers %q", lines[0])
	}
	if !strings.Contains(lines[3], "IA_FIN") {
		t.Fatalf("rows:\n%s", strings.Join(lines, "\n"))
	}
}

func TestObjectNameFromURI(t *testing.T) {
	uri := mustObjectURI(t, "/sap/bc/adt/oo/classes/zcl_demo")
	if got := objectNameFromURI(uri); got != "ZCL_DEMO" {
		t.Fatalf("name %q", got)
	}
	src := mustObjectURI(t, "/sap/bc/adt/functions/groups/zfg/includes/lzfgtop/source/main")
	if got := objectNameFromSourceURI(src); got != "LZFGTOP" {
		t.Fatalf("include name %q", got)
	}
}

func TestWatchFilePushesWrites(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "zdemo.abap")
	if err := os.WriteFile(file, []byte("v0"), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan struct{})
	seen := make(chan string, 16)
	errCh := make(chan error, 1)
	go func() {
		errCh <- watchFile(ctx, file, done, func(content string) error {
			seen <- content
			return nil
		})
	}()

	// The watcher registers asynchronously; keep writing until it reports.
	deadline := time.After(4 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
wait:
	for {
		select {
		case content := <-seen:
			if content == "v1" {
				break wait
			}
		case <-tick.C:
			if err := os.WriteFile(file, []byte("v1"), 0o600); err != nil {
				t.Fatalf("write: %v", err)
			}
		case <-deadline:
			t.Fatalf("no change reported")
		}
	}
	close(done)
	if err := <-errCh; err != nil {
		t.Fatalf("watch: %v", err)
	}
}

func TestWatchFileStopsOnPushError(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "zdemo.abap")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	boom := errors.New("boom")
	errCh := make(chan error, 1)
	go func() {
		errCh <- watchFile(ctx, file, make(chan struct{}), func(string) error { return boom })
	}()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case err := <-errCh:
			if !errors.Is(err, boom) {
				t.Fatalf("expected push error, got %v", err)
			}
			return
		case <-tick.C:
			if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
				t.Fatalf("write: %v", err)
			}
		case <-ctx.Done():
			t.Fatalf("watcher did not stop")
		}
	}
}
