package telemetry

import "sync/atomic"

// DefaultDir is where artifacts go when Settings.Dir is empty.
const DefaultDir = ".agent"

// Settings gates the on-disk diagnostics. The zero value writes nothing.
type Settings struct {
	// Observe appends one JSON line per event to <Dir>/events.jsonl.
	Observe bool
	// PersistPayloads writes raw model requests and responses under <Dir>/payloads.
	PersistPayloads bool
	Dir             string
}

var current atomic.Pointer[Settings]

// Configure installs s for the whole process and returns a func that puts
// the previous settings back.
func Configure(s Settings) (restore func()) {
	if s.Dir == "" {
		s.Dir = DefaultDir
	}
	prev := current.Swap(&s)
	return func() { current.Store(prev) }
}

// Current returns the installed settings.
func Current() Settings {
	if s := current.Load(); s != nil {
		return *s
	}
	return Settings{Dir: DefaultDir}
}

func ObserveEnabled() bool { return Current().Observe }

func PersistPayloadsEnabled() bool { return Current().PersistPayloads }

func ArtifactsDir() string { return Current().Dir }
