package telemetry_test

import (
	"testing"

	"github.com/petasbytes/recall-agent/internal/telemetry"
)

func TestCurrent_ZeroValueWritesNothing(t *testing.T) {
	t.Cleanup(telemetry.Configure(telemetry.Settings{}))

	if telemetry.ObserveEnabled() || telemetry.PersistPayloadsEnabled() {
		t.Fatalf("zero settings should disable all artifacts: %+v", telemetry.Current())
	}
	if got := telemetry.ArtifactsDir(); got != telemetry.DefaultDir {
		t.Fatalf("expected default dir %q, got %q", telemetry.DefaultDir, got)
	}
}

func TestConfigure_RestoreReinstallsPrevious(t *testing.T) {
	t.Cleanup(telemetry.Configure(telemetry.Settings{Observe: true, Dir: "outer"}))

	restore := telemetry.Configure(telemetry.Settings{PersistPayloads: true, Dir: "inner"})
	if got := telemetry.Current(); got.Observe || !got.PersistPayloads || got.Dir != "inner" {
		t.Fatalf("inner settings not installed: %+v", got)
	}

	restore()
	if got := telemetry.Current(); !got.Observe || got.PersistPayloads || got.Dir != "outer" {
		t.Fatalf("outer settings not restored: %+v", got)
	}
}
