package adt

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"pkt.systems/sapadt/adterr"
)

func TestGetTableDefinition(t *testing.T) {
	f, sess := newFakeADT(t)
	f.handle(http.MethodGet, "/sap/bc/adt/ddic/tables/zsales_hdr", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "application/vnd.sap.adt.tables.v2+xml" {
			t.Errorf("accept %q", got)
		}
		xmlReply(http.StatusOK, `<tabl:table xmlns:tabl="http://www.sap.com/dictionary/table" xmlns:adtcore="http://www.sap.com/adt/core"
    adtcore:name="ZSALES_HDR" adtcore:description="Sales header" tabl:deliveryClass="A">
  <tabl:field adtcore:name="MANDT" tabl:type="CLNT" tabl:keyField="true"/>
  <tabl:field adtcore:name="VBELN" tabl:type="CHAR(10)" adtcore:description="Document" tabl:keyField="true"/>
  <tabl:field adtcore:name="NETWR" tabl:type="CURR(15,2)"/>
</tabl:table>`)(w, r)
	})
	info, err := GetTableDefinition(context.Background(), sess, "ZSALES_HDR")
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	if info.Name != "ZSALES_HDR" || info.Description != "Sales header" || info.DeliveryClass != "A" {
		t.Fatalf("table %+v", info)
	}
	if len(info.Fields) != 3 || !info.Fields[1].Key || info.Fields[2].Key || info.Fields[1].Type != "CHAR(10)" {
		t.Fatalf("fields %+v", info.Fields)
	}
}

func TestGetTableDefinitionNotFound(t *testing.T) {
	_, sess := newFakeADT(t)
	_, err := GetTableDefinition(context.Background(), sess, "zmissing")
	if !adterr.Is(err, adterr.NotFound) || !strings.Contains(err.Error(), "Table ZMISSING not found") {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := GetTableDefinition(context.Background(), sess, " "); !adterr.Is(err, adterr.Internal) {
		t.Fatalf("empty name: %v", err)
	}
}

func TestGetCDSSource(t *testing.T) {
	f, sess := newFakeADT(t)
	const ddl = "@AbapCatalog.sqlViewName: 'ZVSALES'\ndefine view ZI_Sales as select from zsales_hdr { key vbeln }"
	f.handle(http.MethodGet, "/sap/bc/adt/ddic/ddl/sources/zi_sales/source/main", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, ddl)
	})
	src, err := GetCDSSource(context.Background(), sess, "ZI_SALES")
	if err != nil {
		t.Fatalf("cds: %v", err)
	}
	if src != ddl {
		t.Fatalf("source %q", src)
	}
	if _, err := GetCDSSource(context.Background(), sess, "ZI_MISSING"); !adterr.Is(err, adterr.NotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRunClass(t *testing.T) {
	f, sess := newFakeADT(t)
	f.handle(http.MethodPost, "/sap/bc/adt/oo/classrun/ZCL_RUNNER", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "text/plain" {
			t.Errorf("accept %q", got)
		}
		_, _ = io.WriteString(w, "Hello from ABAP\n")
	})
	f.handle(http.MethodPost, "/sap/bc/adt/oo/classrun//DMO/CL_RUN", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	ctx := context.Background()
	res, err := RunClass(ctx, sess, "ZCL_RUNNER")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Class != "ZCL_RUNNER" || res.Output != "Hello from ABAP\n" {
		t.Fatalf("result %+v", res)
	}
	if _, err := RunClass(ctx, sess, "/sap/bc/adt/oo/classes/ZCL_RUNNER"); err != nil {
		t.Fatalf("run by uri: %v", err)
	}
	if _, err := RunClass(ctx, sess, "/DMO/CL_RUN"); err != nil {
		t.Fatalf("run namespaced: %v", err)
	}
	calls := f.calls()
	want := []string{
		"POST /sap/bc/adt/oo/classrun/ZCL_RUNNER",
		"POST /sap/bc/adt/oo/classrun/ZCL_RUNNER",
		"POST /sap/bc/adt/oo/classrun/%2FDMO%2FCL_RUN",
	}
	if strings.Join(calls, "\n") != strings.Join(want, "\n") {
		t.Fatalf("calls %v", calls)
	}
	if _, err := RunClass(ctx, sess, "ZCL_MISSING"); !adterr.Is(err, adterr.NotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
