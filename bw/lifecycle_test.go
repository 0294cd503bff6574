package bw

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/client"
)

func (s *stubSession) replyHeader(path string, status int, body string, header http.Header) {
	s.responses[path] = append(s.responses[path], &client.Response{StatusCode: status, Header: header, Body: []byte(body)})
}

func TestLockSaveUnlockObject(t *testing.T) {
	s := newStub()
	path := "/sap/bw/modeling/adso/ZSALES"
	s.replyHeader(path, http.StatusOK,
		`<?xml version="1.0" encoding="utf-8"?><LOCK_HANDLE>H1</LOCK_HANDLE><CORRNR>K900001</CORRNR><CORRTEXT>Sales model</CORRTEXT><CORRUSER>DEVELOPER</CORRUSER><IS_LOCAL></IS_LOCAL>`,
		http.Header{"Timestamp": {"20260101120000"}, "Development-Class": {"ZBW_SALES"}})
	s.reply(path, http.StatusNoContent, "")
	s.reply(path, http.StatusOK, "")
	ctx := context.Background()

	lock, err := LockObject(ctx, s, "ADSO", "ZSALES", "")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	want := LockResult{Handle: "H1", Transport: "K900001", TransportText: "Sales model", TransportUser: "DEVELOPER", Timestamp: "20260101120000", Package: "ZBW_SALES"}
	if lock != want {
		t.Fatalf("lock %+v", lock)
	}
	c := s.calls[0]
	if c.method != http.MethodPost || c.path != path+"?action=lock" {
		t.Fatalf("lock call %+v", c)
	}
	if _, ok := c.headers["activity_context"]; ok {
		t.Fatalf("CHAN must not send activity_context")
	}

	err = SaveObject(ctx, s, SaveOptions{
		ObjectType: "ADSO",
		Name:       "ZSALES",
		Content:    `<adso/>`,
		Handle:     lock.Handle,
		Transport:  lock.Transport,
		Timestamp:  lock.Timestamp,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	c = s.calls[1]
	if c.method != http.MethodPut || c.path != path+"?lockHandle=H1&corrNr=K900001&timestamp=20260101120000" {
		t.Fatalf("save call %+v", c)
	}
	if c.ctype != AcceptFor("adso") || c.body != `<adso/>` {
		t.Fatalf("save content %q %q", c.ctype, c.body)
	}

	if err := UnlockObject(ctx, s, "ADSO", "ZSALES"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if c := s.calls[2]; c.method != http.MethodPost || c.path != path+"?action=unlock" {
		t.Fatalf("unlock call %+v", c)
	}
}

func TestLockObjectActivityAndConflict(t *testing.T) {
	s := newStub()
	path := "/sap/bw/modeling/trfn/ZTR_SALES"
	s.reply(path, http.StatusLocked, "")
	_, err := LockObject(context.Background(), s, "trfn", "ZTR_SALES", "actv")
	if !adterr.Is(err, adterr.LockConflict) {
		t.Fatalf("expected lock conflict, got %v", err)
	}
	if got := s.calls[0].headers["activity_context"]; got != ActivityActivate {
		t.Fatalf("activity_context %q", got)
	}

	s = newStub()
	s.reply(path, http.StatusOK, `<CORRNR>K900001</CORRNR>`)
	if _, err := LockObject(context.Background(), s, "trfn", "ZTR_SALES", ""); !adterr.Is(err, adterr.LockConflict) {
		t.Fatalf("missing handle: %v", err)
	}
}

func TestSaveAndDeleteRequireHandle(t *testing.T) {
	s := newStub()
	ctx := context.Background()
	if err := SaveObject(ctx, s, SaveOptions{ObjectType: "adso", Name: "ZSALES", Content: "<adso/>"}); !adterr.Is(err, adterr.Internal) {
		t.Fatalf("save without handle: %v", err)
	}
	if err := DeleteObject(ctx, s, "adso", "ZSALES", "", ""); !adterr.Is(err, adterr.Internal) {
		t.Fatalf("delete without handle: %v", err)
	}
	if len(s.calls) != 0 {
		t.Fatalf("no request expected, got %d", len(s.calls))
	}
}

func TestDeleteObject(t *testing.T) {
	s := newStub()
	path := "/sap/bw/modeling/adso/ZSALES"
	s.reply(path, http.StatusOK, "")
	if err := DeleteObject(context.Background(), s, "ADSO", "ZSALES", "H1", "K900001"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if c := s.calls[0]; c.method != http.MethodDelete || c.path != path+"?lockHandle=H1&corrNr=K900001" {
		t.Fatalf("delete call %+v", c)
	}

	s = newStub()
	s.reply(path, http.StatusForbidden, "")
	if err := DeleteObject(context.Background(), s, "ADSO", "ZSALES", "H1", ""); err == nil {
		t.Fatalf("expected error on 403")
	}
}

func TestActivateBackgroundReturnsJob(t *testing.T) {
	s := newStub()
	s.replyHeader(activationPath, http.StatusAccepted, "", http.Header{"Location": {"/sap/bw/modeling/jobs/0050569A1B2C1FE0A1B2C3D4E5F60708"}})
	res, err := Activate(context.Background(), s, ActivateOptions{
		Objects:   []ActivationObject{{Name: "ZSALES", Type: "ADSO", Version: "M"}},
		Mode:      ModeBackground,
		Transport: "K900001",
	})
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if !res.Success || res.JobGUID != "0050569A1B2C1FE0A1B2C3D4E5F60708" {
		t.Fatalf("result %+v", res)
	}
	c := s.calls[0]
	if c.path != activationPath+"?mode=activate&asjob=true&corrnum=K900001" {
		t.Fatalf("path %q", c.path)
	}
	if c.ctype != activationContentType || !strings.Contains(c.body, `objectName="ZSALES"`) {
		t.Fatalf("request %q %q", c.ctype, c.body)
	}
}

func TestActivateReportsErrors(t *testing.T) {
	s := newStub()
	s.reply(activationPath, http.StatusOK, `<bwActivation:objects xmlns:bwActivation="http://www.sap.com/bw/massact">
  <object objectName="ZSALES" objectType="ADSO"><message severity="E">Field 0CALDAY is not active</message></object>
  <message severity="W">Check the log</message>
</bwActivation:objects>`)
	res, err := Activate(context.Background(), s, ActivateOptions{
		Objects:      []ActivationObject{{Name: "ZSALES", Type: "ADSO"}},
		Mode:         ModeValidate,
		Sort:         true,
		OnlyInactive: false,
	})
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if s.calls[0].path != activationPath+"?mode=validate&sort=true&onlyina=false" {
		t.Fatalf("path %q", s.calls[0].path)
	}
	if res.Success || len(res.Messages) != 2 {
		t.Fatalf("result %+v", res)
	}
	errs := res.Errors()
	if len(errs) != 1 || errs[0].ObjectName != "ZSALES" || errs[0].Text != "Field 0CALDAY is not active" {
		t.Fatalf("errors %+v", errs)
	}
}

func TestActivateModes(t *testing.T) {
	cases := map[ActivationMode]string{
		ModeActivate: "?mode=activate&simu=false",
		ModeSimulate: "?mode=activate&simu=true",
		"":           "?mode=activate&simu=false",
	}
	for mode, query := range cases {
		if got := activationURL(ActivateOptions{Mode: mode}); got != activationPath+query {
			t.Fatalf("%q: %q", mode, got)
		}
	}
	if _, err := ParseActivationMode("deploy"); err == nil {
		t.Fatalf("expected unknown mode error")
	}
	if m, err := ParseActivationMode("Background"); err != nil || m != ModeBackground {
		t.Fatalf("parse background: %v %q", err, m)
	}
	s := newStub()
	if _, err := Activate(context.Background(), s, ActivateOptions{}); !adterr.Is(err, adterr.Internal) || len(s.calls) != 0 {
		t.Fatalf("empty activation: %v", err)
	}
}

func TestReadDataFlow(t *testing.T) {
	s := newStub()
	s.reply("/sap/bw/modeling/dmod/zdf_sales/a", http.StatusOK, `<dmod:dataFlow xmlns:dmod="http://www.sap.com/bw/modeling/dmod" description="Sales flow">
  <nodes><node id="N1" name="ZDS_SALES" type="RSDS"/><node id="N2" name="ZSALES" type="ADSO"/></nodes>
  <connections><connection from="N1" to="N2" type="TRFN"/></connections>
</dmod:dataFlow>`)
	df, err := ReadDataFlow(context.Background(), s, "ZDF_SALES", "")
	if err != nil {
		t.Fatalf("read dataflow: %v", err)
	}
	if df.Description != "Sales flow" || len(df.Nodes) != 2 || len(df.Connections) != 1 {
		t.Fatalf("dataflow %+v", df)
	}
	if df.Connections[0].From != "N1" || df.Connections[0].To != "N2" {
		t.Fatalf("connection %+v", df.Connections[0])
	}
	if s.calls[0].headers["Accept"] != "application/vnd.sap.bw.modeling.dmod-v1_0_0+xml" {
		t.Fatalf("accept %q", s.calls[0].headers["Accept"])
	}

	_, err = ReadDataFlow(context.Background(), newStub(), "ZDF_MISSING", "")
	if !adterr.Is(err, adterr.NotFound) || !strings.Contains(err.Error(), "DMOD ZDF_MISSING") {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetDBInfo(t *testing.T) {
	s := newStub()
	s.reply(dbInfoPath, http.StatusOK, `<feed xmlns="http://www.w3.org/2005/Atom"><entry><content type="application/xml">
  <dbInfo dbHost="hana01" dbPort="30015" dbSchema="SAPHANADB" dbType="HDB"/>
</content></entry></feed>`)
	info, err := GetDBInfo(context.Background(), s)
	if err != nil {
		t.Fatalf("dbinfo: %v", err)
	}
	if info.Host != "hana01" || info.Port != "30015" || info.Schema != "SAPHANADB" || info.DatabaseType != "HDB" {
		t.Fatalf("dbinfo %+v", info)
	}
	if s.calls[0].headers["Accept"] != "application/atom+xml" {
		t.Fatalf("accept %q", s.calls[0].headers["Accept"])
	}
}
