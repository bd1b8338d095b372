package otel

import (
	"context"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" api-key = abc ,broken,=x, tenant=proplend ")
	if len(got) != 2 || got["api-key"] != "abc" || got["tenant"] != "proplend" {
		t.Fatalf("unexpected headers: %v", got)
	}
}

func TestFromEnvOverlays(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_TRACES_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "api-key=abc,tenant=proplend")
	cfg, err := FromEnv(Config{ServiceName: "ledgerd", Endpoint: "localhost:4318", Headers: map[string]string{"x-base": "1"}})
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.Endpoint != "collector:4318" || !cfg.Traces || cfg.ServiceName != "ledgerd" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Headers["api-key"] != "abc" || cfg.Headers["tenant"] != "proplend" || cfg.Headers["x-base"] != "1" {
		t.Fatalf("unexpected headers: %v", cfg.Headers)
	}
}

func TestInitRequiresServiceName(t *testing.T) {
	if _, err := Init(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error without service name")
	}
}

func TestInitWithoutExporters(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "ledgerd"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
