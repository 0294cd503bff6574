package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

func TestResolveOTLPTarget(t *testing.T) {
	cases := []struct {
		raw  string
		want otlpTarget
	}{
		{"collector", otlpTarget{protocol: "grpc", endpoint: "collector:4317", insecure: true}},
		{"collector:9999", otlpTarget{protocol: "grpc", endpoint: "collector:9999", insecure: true}},
		{"grpc://collector", otlpTarget{protocol: "grpc", endpoint: "collector:4317", insecure: true}},
		{"grpcs://collector:4443", otlpTarget{protocol: "grpc", endpoint: "collector:4443"}},
		{"http://collector/v1/traces/", otlpTarget{protocol: "http", endpoint: "collector:4318", path: "/v1/traces", insecure: true}},
		{"https://collector:443", otlpTarget{protocol: "http", endpoint: "collector:443"}},
	}
	for _, tc := range cases {
		got, err := resolveOTLPTarget(tc.raw)
		if err != nil {
			t.Fatalf("resolve %q: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("resolve %q: got %+v want %+v", tc.raw, got, tc.want)
		}
	}
	for _, bad := range []string{"", "ftp://collector", "http://"} {
		if _, err := resolveOTLPTarget(bad); err == nil {
			t.Fatalf("resolve %q: expected error", bad)
		}
	}
}

func TestSetupDisabled(t *testing.T) {
	b, err := Setup(context.Background(), Config{}, nil)
	if err != nil || b != nil {
		t.Fatalf("disabled setup: %v %v", b, err)
	}
	if err := b.Shutdown(context.Background()); err != nil {
		t.Fatalf("nil shutdown: %v", err)
	}
}

func TestShutdownWritesTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sapadt.prom")
	b, err := Setup(context.Background(), Config{MetricsTextfile: path}, nil)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	counter, err := otel.Meter("telemetry_test").Int64Counter("sapadt.test.events")
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	counter.Add(context.Background(), 3, metric.WithAttributes())
	if err := b.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), "sapadt") || !strings.Contains(string(data), "events") {
		t.Fatalf("textfile missing counter:\n%s", data)
	}
}
