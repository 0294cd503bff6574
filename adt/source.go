package adt

import (
	"context"
	"net/http"

	"pkt.systems/sapadt/ident"
	"pkt.systems/sapadt/internal/urlutil"
	"pkt.systems/sapadt/xmlcodec"
)

const checkRunPath = "/sap/bc/adt/checkruns?reporters=abapCheckRun"

// ReadSource returns the source text at uri. version may be empty, active or
// inactive.
func ReadSource(ctx context.Context, s Session, uri ident.ObjectURI, version string) (string, error) {
	path := urlutil.JoinQuery(uri.String(), "version", version)
	resp, err := s.Get(ctx, path, map[string]string{"Accept": "text/plain"})
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", httpError("ReadSource", uri.String(), resp)
	}
	return string(resp.Body), nil
}

// WriteSource replaces the source at uri. The object must be locked with
// handle; transport may be empty for local objects.
func WriteSource(ctx context.Context, s Session, uri ident.ObjectURI, source string, handle ident.LockHandle, transport string) error {
	path := urlutil.JoinQuery(uri.String(), "lockHandle", handle.String(), "corrNr", transport)
	resp, err := s.Put(ctx, path, source, "text/plain; charset=utf-8", nil)
	if err != nil {
		return err
	}
	if !statusIn(resp, http.StatusOK, http.StatusNoContent) {
		return httpError("WriteSource", uri.String(), resp)
	}
	return nil
}

// CheckSyntax runs the ABAP check reporter on uri.
func CheckSyntax(ctx context.Context, s Session, uri ident.ObjectURI, version string) ([]CheckMessage, error) {
	body, err := xmlcodec.BuildCheckRun(uri.String(), version)
	if err != nil {
		return nil, err
	}
	resp, err := s.Post(ctx, checkRunPath, body, "application/*", map[string]string{
		"Accept": "application/vnd.sap.adt.checkmessages+xml",
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpError("CheckSyntax", checkRunPath, resp)
	}
	return xmlcodec.ParseCheckMessages(resp.Body)
}
