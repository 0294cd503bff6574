package adt

import (
	"context"
	"net/http"
	"strings"

	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/ident"
	"pkt.systems/sapadt/internal/urlutil"
	"pkt.systems/sapadt/xmlcodec"
)

const (
	unitTestPath = "/sap/bc/adt/abapunit/testruns"
	atcPath      = "/sap/bc/adt/atc"
)

// DefaultATCVariant is the check variant used when none is given.
const DefaultATCVariant = "DEFAULT"

// RunUnitTests executes the ABAP Unit tests of uri.
func RunUnitTests(ctx context.Context, s Session, uri ident.ObjectURI, opts UnitTestOptions) (UnitTestResult, error) {
	const op = "RunUnitTests"
	body, err := xmlcodec.BuildUnitTestRun(uri.String(), opts)
	if err != nil {
		return UnitTestResult{}, adterr.Wrap(op, unitTestPath, adterr.CheckError, err)
	}
	resp, err := s.Post(ctx, unitTestPath, body, "application/*", map[string]string{"Accept": "application/*"})
	if err != nil {
		return UnitTestResult{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return UnitTestResult{}, httpError(op, uri.String(), resp)
	}
	res, err := xmlcodec.ParseUnitTestResult(resp.Body)
	if err != nil {
		return UnitTestResult{}, adterr.Newf(op, unitTestPath, adterr.CheckError, "unreadable test run result: %v", err)
	}
	return res, nil
}

// RunATC creates a worklist for variant, runs the checks on uri and returns
// the findings.
func RunATC(ctx context.Context, s Session, uri ident.ObjectURI, variant string, maxVerdicts int) ([]ATCFinding, error) {
	const op = "RunATC"
	if strings.TrimSpace(variant) == "" {
		variant = DefaultATCVariant
	}
	worklistPath := urlutil.JoinQuery(atcPath+"/worklists", "checkVariant", variant)
	resp, err := s.Post(ctx, worklistPath, "", "application/xml", map[string]string{"Accept": "text/plain"})
	if err != nil {
		return nil, err
	}
	if !statusIn(resp, http.StatusOK, http.StatusCreated) {
		return nil, httpError(op, worklistPath, resp)
	}
	worklist := strings.TrimSpace(string(resp.Body))
	if worklist == "" {
		return nil, adterr.New(op, worklistPath, adterr.CheckError, "empty ATC worklist id")
	}

	body, err := xmlcodec.BuildATCRun(uri.String(), maxVerdicts)
	if err != nil {
		return nil, adterr.Wrap(op, atcPath, adterr.CheckError, err)
	}
	runPath := urlutil.JoinQuery(atcPath+"/runs", "worklistId", worklist)
	resp, err = s.Post(ctx, runPath, body, "application/xml", map[string]string{"Accept": "application/xml"})
	if err != nil {
		return nil, err
	}
	if !statusIn(resp, http.StatusOK, http.StatusCreated) {
		return nil, httpError(op, runPath, resp)
	}

	resultPath := atcPath + "/worklists/" + urlutil.Encode(worklist)
	resp, err = s.Get(ctx, resultPath, map[string]string{"Accept": "application/atc.worklist.v1+xml"})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpError(op, resultPath, resp)
	}
	findings, err := xmlcodec.ParseATCWorklist(resp.Body)
	if err != nil {
		return nil, adterr.Newf(op, resultPath, adterr.CheckError, "unreadable ATC worklist: %v", err)
	}
	return findings, nil
}
