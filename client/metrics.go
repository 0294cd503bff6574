package client

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"pkt.systems/pslog"
)

type sessionMetrics struct {
	requests     metric.Int64Counter
	pollDuration metric.Int64Histogram
	pollAttempts metric.Int64Histogram
}

func newSessionMetrics(logger pslog.Base) *sessionMetrics {
	meter := otel.Meter("pkt.systems/sapadt/client")
	m := &sessionMetrics{}
	var err error

	m.requests, err = meter.Int64Counter(
		"sapadt.http.requests",
		metric.WithDescription("HTTP requests issued to the SAP system"),
	)
	logMetricInitError(logger, "sapadt.http.requests", err)

	m.pollDuration, err = meter.Int64Histogram(
		"sapadt.poll.duration_ms",
		metric.WithDescription("Time spent polling a long-running operation"),
		metric.WithUnit("ms"),
	)
	logMetricInitError(logger, "sapadt.poll.duration_ms", err)

	m.pollAttempts, err = meter.Int64Histogram(
		"sapadt.poll.attempts",
		metric.WithDescription("Status requests per polled operation"),
	)
	logMetricInitError(logger, "sapadt.poll.attempts", err)

	return m
}

func (m *sessionMetrics) recordRequest(ctx context.Context, method string, status int) {
	if m == nil || m.requests == nil {
		return
	}
	m.requests.Add(metricContext(ctx), 1, metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.status_class", statusClass(status)),
	))
}

func (m *sessionMetrics) recordPoll(ctx context.Context, outcome string, elapsed time.Duration, attempts int) {
	if m == nil {
		return
	}
	ctx = metricContext(ctx)
	attrs := metric.WithAttributes(attribute.String("sapadt.poll.outcome", outcome))
	if m.pollDuration != nil {
		m.pollDuration.Record(ctx, elapsed.Milliseconds(), attrs)
	}
	if m.pollAttempts != nil {
		m.pollAttempts.Record(ctx, int64(attempts), attrs)
	}
}

func metricContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func logMetricInitError(logger pslog.Base, name string, err error) {
	if err == nil || logger == nil {
		return
	}
	logger.Warn("telemetry.metric.init_failed", "name", name, "error", err)
}
