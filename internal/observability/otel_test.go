package observability

import (
	"testing"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/platform/envutil"
)

func TestOtelConfigFromClampsRatio(t *testing.T) {
	env := map[string]string{
		"OTEL_ENABLED":               "true",
		"OTEL_SAMPLER_RATIO":         "4",
		"OTEL_EXPORTER_OTLP_HEADERS": "x-api-key=abc, bad ,=empty",
	}
	cfg := OtelConfigFrom(envutil.Source{Lookup: func(k string) string { return env[k] }})
	if !cfg.Enabled {
		t.Fatalf("Enabled: want=true")
	}
	if cfg.SampleRatio != 1 {
		t.Fatalf("SampleRatio: want=1 got=%v", cfg.SampleRatio)
	}
	if len(cfg.Headers) != 1 || cfg.Headers["x-api-key"] != "abc" {
		t.Fatalf("Headers: got=%v", cfg.Headers)
	}
	if cfg.ServiceName != "teachingkg" {
		t.Fatalf("ServiceName: got=%q", cfg.ServiceName)
	}
}
