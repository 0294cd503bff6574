package bw

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"pkt.systems/sapadt/adterr"
)

const bwDiscoveryDoc = `<app:service xmlns:app="http://www.w3.org/2007/app" xmlns:atom="http://www.w3.org/2005/Atom" xmlns:adtcomp="http://www.sap.com/adt/compatibility">
  <app:workspace>
    <atom:title>BW Modeling</atom:title>
    <app:collection href="/sap/bw/modeling/adso">
      <atom:title>DataStore Object (advanced)</atom:title>
      <app:accept>application/vnd.sap.bw.modeling.adso+xml</app:accept>
      <app:accept>application/vnd.sap.bw.modeling.adso-v1_3_0+xml</app:accept>
      <atom:category term="adso" scheme="http://www.sap.com/bw/modeling/adso"/>
      <adtcomp:templateLinks>
        <adtcomp:templateLink rel="http://www.sap.com/bw/modeling/relations:adso" template="/sap/bw/modeling/adso/{adsonm}/{version}{?objectType}"/>
      </adtcomp:templateLinks>
    </app:collection>
    <app:collection href="/sap/bw/modeling/trfn">
      <atom:title>Transformation</atom:title>
      <atom:category term="trfn" scheme="http://www.sap.com/bw/modeling/trfn"/>
      <adtcomp:templateLinks>
        <adtcomp:templateLink template="/sap/bw/modeling/trfn/{trfn-name}/{version}"/>
      </adtcomp:templateLinks>
    </app:collection>
    <app:collection href="/sap/bw/modeling/repo/is/bwsearch">
      <atom:title>Search</atom:title>
      <atom:category term="bwSearch" scheme="http://www.sap.com/bw/modeling/repo"/>
      <adtcomp:templateLinks>
        <adtcomp:templateLink template="https://bw.example:44300/sap/bw/modeling/repo/is/bwsearch{?searchTerm,maxSize}"/>
      </adtcomp:templateLinks>
    </app:collection>
    <app:collection href="/sap/bw/modeling/dmod">
      <atom:title>Data Flow</atom:title>
      <atom:category term="dmod" scheme="http://www.sap.com/bw/modeling/dmod"/>
    </app:collection>
  </app:workspace>
</app:service>`

func discovered(t *testing.T) Discovery {
	t.Helper()
	s := newStub()
	s.reply(DiscoveryPath, http.StatusOK, bwDiscoveryDoc)
	d, err := Discover(context.Background(), s)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if s.calls[0].headers["Accept"] != "application/atomsvc+xml" {
		t.Fatalf("accept %q", s.calls[0].headers["Accept"])
	}
	return d
}

func TestResolveEndpoint(t *testing.T) {
	d := discovered(t)
	tmpl, err := ResolveEndpoint(d, ObjectScheme("ADSO"), "adso")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if tmpl != "/sap/bw/modeling/adso/{adsonm}/{version}{?objectType}" {
		t.Fatalf("template %q", tmpl)
	}
	href, err := ResolveEndpoint(d, ObjectScheme("dmod"), "dmod")
	if err != nil {
		t.Fatalf("resolve href: %v", err)
	}
	if href != "/sap/bw/modeling/dmod" {
		t.Fatalf("href %q", href)
	}
	if _, err := ResolveEndpoint(d, ObjectScheme("adso"), "ADSO"); !adterr.Is(err, adterr.NotFound) {
		t.Fatalf("term must match exactly, got %v", err)
	}
	if _, err := ResolveEndpoint(d, ObjectScheme("hcpr"), "hcpr"); !adterr.Is(err, adterr.NotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResolveContentTypePrefersVersioned(t *testing.T) {
	d := discovered(t)
	if got := ResolveContentType(d, "ADSO"); got != "application/vnd.sap.bw.modeling.adso-v1_3_0+xml" {
		t.Fatalf("content type %q", got)
	}
	if got := ResolveContentType(d, "hcpr"); got != "" {
		t.Fatalf("unknown type %q", got)
	}
}

func TestReadObjectUsesDiscoveredTemplate(t *testing.T) {
	d := discovered(t)
	s := newStub()
	s.reply("/sap/bw/modeling/adso/zsales/m", http.StatusOK, `<adso/>`)
	if _, err := ReadObject(context.Background(), WithDiscovery(s, d), "ADSO", "ZSALES", "M", ""); err != nil {
		t.Fatalf("read: %v", err)
	}
	c := s.calls[0]
	if c.path != "/sap/bw/modeling/adso/zsales/m?objectType=adso" {
		t.Fatalf("path %q", c.path)
	}
	if c.headers["Accept"] != "application/vnd.sap.bw.modeling.adso-v1_3_0+xml" {
		t.Fatalf("accept %q", c.headers["Accept"])
	}
}

func TestReadObjectFallsBackOnUnusableTemplate(t *testing.T) {
	d := discovered(t)
	s := newStub()
	s.reply("/sap/bw/modeling/trfn/ztr_sales/a", http.StatusOK, `<trfn/>`)
	s.reply("/sap/bw/modeling/hcpr/zcp_sales/a", http.StatusOK, `<hcpr/>`)
	ds := WithDiscovery(s, d)
	ctx := context.Background()
	// {trfn-name} has no binding, which would leave an empty segment.
	if _, err := ReadObject(ctx, ds, "TRFN", "ZTR_SALES", "", ""); err != nil {
		t.Fatalf("read trfn: %v", err)
	}
	if s.calls[0].path != "/sap/bw/modeling/trfn/ztr_sales/a" {
		t.Fatalf("trfn path %q", s.calls[0].path)
	}
	if _, err := ReadObject(ctx, ds, "HCPR", "ZCP_SALES", "", ""); err != nil {
		t.Fatalf("read hcpr: %v", err)
	}
	if s.calls[1].path != "/sap/bw/modeling/hcpr/zcp_sales/a" || s.calls[1].headers["Accept"] != AcceptFor("hcpr") {
		t.Fatalf("hcpr call %+v", s.calls[1])
	}
}

func TestSearchUsesDiscoveredEndpoint(t *testing.T) {
	d := discovered(t)
	s := newStub()
	s.reply(searchPath, http.StatusOK, `<feed/>`)
	if _, err := SearchObjects(context.Background(), WithDiscovery(s, d), SearchOptions{Query: "ZSALES*"}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if got := s.calls[0].path; got != searchPath+"?searchTerm=ZSALES%2A&maxSize=100" {
		t.Fatalf("search path %q", got)
	}
}

func TestDiscoveredWithoutServiceDocument(t *testing.T) {
	s := newStub()
	ds := Discovered(context.Background(), s)
	if ds != Session(s) {
		t.Fatalf("expected the plain session when discovery fails")
	}
	s.reply("/sap/bw/modeling/adso/zsales/a", http.StatusOK, `<adso/>`)
	if _, err := ReadObject(context.Background(), ds, "adso", "zsales", "", ""); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasSuffix(s.calls[1].path, "/adso/zsales/a") {
		t.Fatalf("path %q", s.calls[1].path)
	}
}
