// Package bw implements the BW/4HANA modelling operations: service
// discovery, repository search, cross references, typed object reads, the
// object edit lifecycle and activation, structure nodes, background jobs,
// the lock table, transport collection and value help.
package bw

import (
	"context"
	"net/http"
	"strings"

	"pkt.systems/pslog"

	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/client"
	"pkt.systems/sapadt/internal/loggingutil"
	"pkt.systems/sapadt/xmlcodec"
)

const modelingBase = "/sap/bw/modeling/"

// DefaultVersion is the object version read when callers pass none.
const DefaultVersion = "a"

// Session is the subset of the HTTP session the BW operations use.
type Session interface {
	Get(ctx context.Context, path string, headers map[string]string) (*client.Response, error)
	Post(ctx context.Context, path, body, contentType string, headers map[string]string) (*client.Response, error)
	Put(ctx context.Context, path, body, contentType string, headers map[string]string) (*client.Response, error)
	Delete(ctx context.Context, path string, headers map[string]string) (*client.Response, error)
}

var _ Session = (*client.Session)(nil)

// Record types shared with the codec.
type (
	SearchItem       = xmlcodec.BWSearchItem
	XrefEntry        = xmlcodec.XrefEntry
	DTPDetail        = xmlcodec.DTPDetail
	TRFNDetail       = xmlcodec.TRFNDetail
	ADSODetail       = xmlcodec.ADSODetail
	RSDSDetail       = xmlcodec.RSDSDetail
	QueryComponent   = xmlcodec.QueryComponent
	Job              = xmlcodec.Job
	JobProgress      = xmlcodec.JobProgress
	JobStep          = xmlcodec.JobStep
	JobMessage       = xmlcodec.JobMessage
	Lock             = xmlcodec.BWLock
	TransportCollect = xmlcodec.TransportCollect
	Row              = xmlcodec.Row
	Discovery        = xmlcodec.Discovery
	Service          = xmlcodec.Service
	LockResult       = xmlcodec.BWLockResult
	ActivationObject = xmlcodec.BWActivationObject
	ActivationResult = xmlcodec.BWActivationResult
	DataFlow         = xmlcodec.DataFlow
	DBInfo           = xmlcodec.DBInfo
)

func loggerFor(s Session) pslog.Base {
	if l, ok := s.(interface{ Logger() pslog.Base }); ok {
		return loggingutil.FromBase(l.Logger(), "bw")
	}
	return pslog.NoopLogger()
}

func httpError(op, endpoint string, resp *client.Response) *adterr.Error {
	return adterr.FromResponse(op, endpoint, resp.StatusCode, resp.Body)
}

func statusIn(resp *client.Response, codes ...int) bool {
	for _, c := range codes {
		if resp.StatusCode == c {
			return true
		}
	}
	return false
}

func version(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return DefaultVersion
	}
	return v
}

func required(op, what, value string) error {
	if strings.TrimSpace(value) == "" {
		return adterr.Newf(op, "", adterr.Internal, "%s must not be empty", what)
	}
	return nil
}

// getXML issues a GET and returns the body of a 200 response.
func getXML(ctx context.Context, s Session, op, path, accept string) ([]byte, error) {
	resp, err := s.Get(ctx, path, map[string]string{"Accept": accept})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpError(op, path, resp)
	}
	return resp.Body, nil
}
