// Package timeline holds one conversation's message history in the canonical
// shape and serves every other shape on demand.
//
// Messages live in a single ordered arena. Why a message is present (its
// provenance) is tracked in a side index keyed by message id, so the stored
// shape never carries it.
package timeline

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/petasbytes/recall-agent/internal/errs"
	"github.com/petasbytes/recall-agent/internal/message"
	"github.com/petasbytes/recall-agent/internal/metrics"
)

// Source records why a message is in the timeline.
type Source string

const (
	SourceUser     Source = "user"
	SourceResponse Source = "response"
	SourceMemory   Source = "memory"
	SourceContext  Source = "context"
)

func (s Source) valid() bool {
	switch s {
	case SourceUser, SourceResponse, SourceMemory, SourceContext:
		return true
	}
	return false
}

// unsaved reports whether messages with this provenance still need a write.
func (s Source) unsaved() bool {
	return s == SourceUser || s == SourceResponse
}

// tick is the minimum spacing between two timestamps in one timeline.
const tick = time.Millisecond

// Timeline is the ordered, deduplicated history of one conversation. It is
// safe for concurrent use; the write queue drains it from its own goroutine.
type Timeline struct {
	mu sync.Mutex

	threadID   string
	resourceID string

	messages   []*message.Message
	provenance map[string]Source
	// aliases maps the id of a message merged into another to the
	// fingerprint of the parts it contributed.
	aliases map[string]uint64

	system   []message.CoreMessage
	tagged   map[string][]message.CoreMessage
	tagOrder []string

	lastCreatedAt time.Time

	newID func() string
	now   func() time.Time
}

type Option func(*Timeline)

// WithIdentity binds the timeline to a thread and resource. Inserted messages
// declaring a different identity are rejected.
func WithIdentity(threadID, resourceID string) Option {
	return func(t *Timeline) {
		t.threadID = threadID
		t.resourceID = resourceID
	}
}

// WithIDGenerator overrides how message ids are minted.
func WithIDGenerator(fn func() string) Option {
	return func(t *Timeline) {
		if fn != nil {
			t.newID = fn
		}
	}
}

// WithClock overrides the wall clock used for timestamps.
func WithClock(fn func() time.Time) Option {
	return func(t *Timeline) {
		if fn != nil {
			t.now = fn
		}
	}
}

func New(opts ...Option) *Timeline {
	t := &Timeline{
		provenance: make(map[string]Source),
		aliases:    make(map[string]uint64),
		tagged:     make(map[string][]message.CoreMessage),
		newID:      uuid.NewString,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Identity returns the bound thread and resource ids.
func (t *Timeline) Identity() (threadID, resourceID string) {
	return t.threadID, t.resourceID
}

// Len returns the number of messages in the timeline.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

// MessageByID returns a copy of the stored message with id.
func (t *Timeline) MessageByID(id string) (*message.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i := t.indexOf(id); i >= 0 {
		return t.messages[i].Clone(), true
	}
	return nil, false
}

// SourceOf returns the current provenance of the message with id. Drained
// messages report false.
func (t *Timeline) SourceOf(id string) (Source, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.provenance[id]
	return s, ok
}

func (t *Timeline) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, m := range t.messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func (t *Timeline) latest() *message.Message {
	if len(t.messages) == 0 {
		return nil
	}
	return t.messages[len(t.messages)-1]
}

func (t *Timeline) sortLocked() {
	sort.SliceStable(t.messages, func(i, j int) bool {
		return t.messages[i].CreatedAt.Before(t.messages[j].CreatedAt)
	})
}

// stamp assigns a creation time. An explicit time is trusted for the first
// message and for memory; anything else lands at least one tick after the
// latest time seen.
func (t *Timeline) stamp(source Source, explicit time.Time) time.Time {
	if !explicit.IsZero() && t.lastCreatedAt.IsZero() && len(t.messages) == 0 {
		t.lastCreatedAt = explicit
		return explicit
	}
	if !explicit.IsZero() && source == SourceMemory {
		return explicit
	}
	candidate := explicit
	if candidate.IsZero() {
		candidate = t.now().Truncate(tick)
	}
	last := t.lastCreatedAt
	for _, m := range t.messages {
		if m.CreatedAt.After(last) {
			last = m.CreatedAt
		}
	}
	if !candidate.After(last) {
		candidate = last.Add(tick)
	}
	t.lastCreatedAt = candidate
	return candidate
}

// DrainUnsaved returns copies of the messages that still need persisting and
// clears their unsaved marks.
func (t *Timeline) DrainUnsaved() []*message.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*message.Message
	for _, m := range t.messages {
		if s, ok := t.provenance[m.ID]; ok && s.unsaved() {
			out = append(out, m.Clone())
			delete(t.provenance, m.ID)
		}
	}
	return out
}

// EarliestUnsavedTimestamp reports the creation time of the oldest unsaved
// message.
func (t *Timeline) EarliestUnsavedTimestamp() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var (
		earliest time.Time
		found    bool
	)
	for _, m := range t.messages {
		if s, ok := t.provenance[m.ID]; ok && s.unsaved() {
			if !found || m.CreatedAt.Before(earliest) {
				earliest = m.CreatedAt
				found = true
			}
		}
	}
	return earliest, found
}

func observe(kind string) {
	metrics.TimelineEvents.WithLabelValues(kind).Inc()
}

func invalidSource(s Source) error {
	return errs.InvalidMessage("unknown message source %q", s)
}
