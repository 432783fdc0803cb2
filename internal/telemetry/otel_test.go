package telemetry

import (
	"context"
	"strings"
	"testing"
)

func TestSetupDisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{ServiceName: "travelmatch", SampleRatio: 1})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown failed: %v", err)
	}
}

func TestSetupWithEndpoint(t *testing.T) {
	// The exporter connects lazily, so an unreachable endpoint is fine here.
	shutdown, err := Setup(context.Background(), Config{
		ServiceName: "travelmatch",
		Endpoint:    "http://127.0.0.1:4318",
		SampleRatio: 0.5,
	})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}

func TestSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{ratio: 1, want: "AlwaysOnSampler"},
		{ratio: 0.25, want: "TraceIDRatioBased{0.25}"},
		{ratio: 0, want: "AlwaysOffSampler"},
	}

	for _, tt := range tests {
		desc := Sampler(tt.ratio).Description()
		if !strings.HasPrefix(desc, "ParentBased{") {
			t.Errorf("Sampler(%v) = %q, want parent-based", tt.ratio, desc)
		}
		if !strings.Contains(desc, "root:"+tt.want) {
			t.Errorf("Sampler(%v) = %q, want root %s", tt.ratio, desc, tt.want)
		}
	}
}
