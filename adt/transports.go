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
	transportRequestsPath = "/sap/bc/adt/cts/transportrequests"
	transportsPath        = "/sap/bc/adt/cts/transports"
)

// ListTransports returns the modifiable requests of user with their tasks.
func ListTransports(ctx context.Context, s Session, user string) ([]Transport, error) {
	user = strings.ToUpper(strings.TrimSpace(user))
	if user == "" {
		return nil, adterr.New("ListTransports", transportRequestsPath, adterr.Internal, "user is required")
	}
	path := urlutil.JoinQuery(transportRequestsPath, "user", user, "targets", "true")
	resp, err := s.Get(ctx, path, map[string]string{
		"Accept": "application/vnd.sap.adt.transportorganizertree.v1+xml",
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpError("ListTransports", path, resp)
	}
	return xmlcodec.ParseTransports(resp.Body)
}

// CreateTransport opens a workbench request for pkg and returns its number.
func CreateTransport(ctx context.Context, s Session, description, pkg string) (string, error) {
	const op = "CreateTransport"
	body, err := xmlcodec.BuildTransportCreate(description, pkg)
	if err != nil {
		return "", err
	}
	resp, err := s.Post(ctx, transportsPath, body,
		"application/vnd.sap.as+xml; charset=UTF-8; dataname=com.sap.adt.CreateCorrectionRequest",
		map[string]string{"Accept": "text/plain"})
	if err != nil {
		return "", err
	}
	if !statusIn(resp, http.StatusOK, http.StatusCreated) {
		return "", httpError(op, transportsPath, resp)
	}
	number := strings.TrimSpace(string(resp.Body))
	if i := strings.LastIndexByte(number, '/'); i >= 0 {
		number = number[i+1:]
	}
	if number == "" {
		return "", adterr.New(op, transportsPath, adterr.TransportError, "empty transport number in response")
	}
	return number, nil
}

// ReleaseTransport starts the release job of a request.
func ReleaseTransport(ctx context.Context, s Session, number string) error {
	id, err := ident.NewTransportID(strings.ToUpper(strings.TrimSpace(number)))
	if err != nil {
		return err
	}
	path := transportRequestsPath + "/" + id.String() + "/newreleasejobs"
	resp, err := s.Post(ctx, path, "", "application/xml", nil)
	if err != nil {
		return err
	}
	if !statusIn(resp, http.StatusOK, http.StatusNoContent) {
		e := adterr.FromResponse("ReleaseTransport", path, resp.StatusCode, resp.Body)
		if e.Category == adterr.Internal {
			e.Category = adterr.TransportError
		}
		return e
	}
	return nil
}
