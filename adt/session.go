// Package adt implements the ABAP Development Tools operations: discovery,
// packages, abapGit, activation, source, locking, objects, search,
// transports, ABAP Unit and ATC.
//
// Every function takes the Session it needs as its first argument after the
// context, so a *client.Session or a test double can be supplied. Non-2xx
// responses are converted with adterr.FromResponse.
package adt

import (
	"context"
	"net/http"
	"time"

	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/client"
	"pkt.systems/sapadt/xmlcodec"
)

// DefaultPollTimeout bounds asynchronous server operations when callers
// pass zero.
const DefaultPollTimeout = 10 * time.Minute

// Session is the capability set the operations need.
type Session interface {
	Get(ctx context.Context, path string, headers map[string]string) (*client.Response, error)
	Post(ctx context.Context, path, body, contentType string, headers map[string]string) (*client.Response, error)
	Put(ctx context.Context, path, body, contentType string, headers map[string]string) (*client.Response, error)
	Delete(ctx context.Context, path string, headers map[string]string) (*client.Response, error)
	SetStateful(on bool)
	IsStateful() bool
	FetchCSRFToken(ctx context.Context) (string, error)
	PollUntilComplete(ctx context.Context, location string, timeout time.Duration) (client.PollResult, error)
}

var _ Session = (*client.Session)(nil)

// Record types shared with the codec.
type (
	DiscoveryInfo     = xmlcodec.Discovery
	PackageInfo       = xmlcodec.PackageInfo
	PackageCreate     = xmlcodec.PackageCreate
	Repo              = xmlcodec.Repo
	InactiveObject    = xmlcodec.InactiveObject
	ActivationResult  = xmlcodec.ActivationResult
	ActivationMessage = xmlcodec.ActivationMessage
	LockResult        = xmlcodec.LockResult
	CheckMessage      = xmlcodec.CheckMessage
	ObjectStructure   = xmlcodec.ObjectStructure
	ObjectCreate      = xmlcodec.ObjectCreate
	SearchResult      = xmlcodec.SearchResult
	Transport         = xmlcodec.Transport
	UnitTestResult    = xmlcodec.UnitTestResult
	UnitTestOptions   = xmlcodec.UnitTestOptions
	ATCFinding        = xmlcodec.ATCFinding
)

func statusIn(resp *client.Response, codes ...int) bool {
	for _, c := range codes {
		if resp.StatusCode == c {
			return true
		}
	}
	return false
}

func httpError(op, endpoint string, resp *client.Response) error {
	return adterr.FromResponse(op, endpoint, resp.StatusCode, resp.Body)
}

func pollTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultPollTimeout
	}
	return d
}

// awaitAccepted polls the Location of a 202 response and returns the body of
// the completed operation.
func awaitAccepted(ctx context.Context, s Session, op, endpoint string, resp *client.Response, timeout time.Duration) ([]byte, error) {
	location := resp.Header.Get("Location")
	if location == "" {
		return nil, adterr.Newf(op, endpoint, adterr.Internal, "HTTP %d response without Location header", http.StatusAccepted)
	}
	res, err := s.PollUntilComplete(ctx, location, pollTimeout(timeout))
	if err != nil {
		return nil, err
	}
	switch res.Status {
	case xmlcodec.PollFailed:
		msg := "asynchronous operation failed"
		if st, err := xmlcodec.ParsePollStatus(res.Body); err == nil && st.Description != "" {
			msg += ": " + st.Description
		}
		return nil, adterr.New(op, endpoint, adterr.Internal, msg)
	case xmlcodec.PollRunning:
		return nil, adterr.New(op, endpoint, adterr.Timeout, "asynchronous operation did not complete in time")
	}
	return res.Body, nil
}
