package telemetry_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/petasbytes/recall-agent/internal/telemetry"
)

func TestSetupTracing_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := telemetry.SetupTracing(context.Background(), "svc", "", zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupTracing_InstallsProvider(t *testing.T) {
	// The exporter connects lazily, so no collector is needed.
	shutdown, err := telemetry.SetupTracing(context.Background(), "svc", "127.0.0.1:4318", zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}
