package client

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/xmlcodec"
)

// PollResult is the terminal state of a long-running operation.
type PollResult struct {
	Status  xmlcodec.PollState
	Body    []byte
	Elapsed time.Duration
}

// PollUntilComplete GETs location every poll interval until the operation
// ends. The HTTP status decides first: 200 is Completed and its body is the
// operation result, 202 is Running, and any other 2xx is Failed. A state
// attribute or element in the body overrides that verdict; bodies without one,
// including empty bodies, never do. It returns a Timeout error once timeout
// has elapsed without a terminal state, and a Failed result together with a
// Timeout error when ctx is cancelled. A non-2xx response ends polling
// immediately.
func (s *Session) PollUntilComplete(ctx context.Context, location string, timeout time.Duration) (PollResult, error) {
	const op = "PollUntilComplete"
	if location == "" {
		return PollResult{}, adterr.New(op, "", adterr.Internal, "poll location required")
	}
	start := s.clock.Now()
	headers := map[string]string{"Accept": "application/xml, application/vnd.sap.adt.backgroundrun.v1+xml, */*"}
	for attempt := 1; ; attempt++ {
		resp, err := s.Get(ctx, location, headers)
		if err != nil {
			if ctx.Err() != nil {
				return s.cancelled(ctx, op, location, start, attempt)
			}
			return PollResult{}, err
		}
		if !resp.OK() {
			return PollResult{}, adterr.FromResponse(op, location, resp.StatusCode, resp.Body)
		}
		state := pollState(resp)
		elapsed := s.clock.Since(start)
		s.logTraceCtx(ctx, "client.poll.tick", "location", location, "attempt", attempt, "status", resp.StatusCode, "state", state.String(), "elapsed", elapsed)
		if state != xmlcodec.PollRunning {
			s.metrics.recordPoll(ctx, state.String(), elapsed, attempt)
			return PollResult{Status: state, Body: resp.Body, Elapsed: elapsed}, nil
		}
		if elapsed >= timeout {
			s.metrics.recordPoll(ctx, "timeout", elapsed, attempt)
			s.logDebugCtx(ctx, "client.poll.timeout", "location", location, "elapsed", elapsed, "timeout", timeout)
			return PollResult{Status: xmlcodec.PollRunning, Elapsed: elapsed},
				adterr.Newf(op, location, adterr.Timeout, "operation did not complete within %s", timeout)
		}
		select {
		case <-ctx.Done():
			return s.cancelled(ctx, op, location, start, attempt)
		case <-s.clock.After(s.pollInterval):
		}
	}
}

// pollState maps a successful poll response onto a state. Bodies that are
// not status documents are payload, so parse failures are ignored.
func pollState(resp *Response) xmlcodec.PollState {
	state := xmlcodec.PollFailed
	switch resp.StatusCode {
	case http.StatusOK:
		state = xmlcodec.PollCompleted
	case http.StatusAccepted:
		state = xmlcodec.PollRunning
	}
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return state
	}
	if status, err := xmlcodec.ParsePollStatus(resp.Body); err == nil && status.Explicit {
		return status.State
	}
	return state
}

func (s *Session) cancelled(ctx context.Context, op, location string, start time.Time, attempt int) (PollResult, error) {
	elapsed := s.clock.Since(start)
	s.metrics.recordPoll(ctx, "cancelled", elapsed, attempt)
	return PollResult{Status: xmlcodec.PollFailed, Elapsed: elapsed},
		adterr.Newf(op, location, adterr.Timeout, "polling cancelled: %v", ctx.Err())
}
