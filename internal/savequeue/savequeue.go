// Package savequeue persists a timeline's unsaved tail with per-conversation
// debouncing and strictly ordered writes.
//
// Each conversation id owns two independent entries: a debounce timer and the
// tail of a write chain. A job on the chain waits for its predecessor, so
// writes for one conversation run one at a time in submission order while
// different conversations proceed concurrently.
package savequeue

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/petasbytes/recall-agent/internal/errs"
	"github.com/petasbytes/recall-agent/internal/message"
	"github.com/petasbytes/recall-agent/internal/metrics"
	"github.com/petasbytes/recall-agent/internal/telemetry"
	"github.com/petasbytes/recall-agent/memory"
)

const (
	DefaultDebounce     = 100 * time.Millisecond
	DefaultMaxStaleness = time.Second
)

// Unsaved is the part of a timeline the queue drains.
type Unsaved interface {
	DrainUnsaved() []*message.Message
	EarliestUnsavedTimestamp() (time.Time, bool)
}

// Saver writes messages to durable storage.
type Saver interface {
	SaveMessages(ctx context.Context, msgs []*message.Message, cfg memory.ThreadConfig) error
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, msgs []*message.Message, cfg memory.ThreadConfig) error

func (f SaverFunc) SaveMessages(ctx context.Context, msgs []*message.Message, cfg memory.ThreadConfig) error {
	return f(ctx, msgs, cfg)
}

type job struct {
	done chan struct{}
	err  error
}

// Manager coalesces saves per conversation.
type Manager struct {
	saver        Saver
	log          zerolog.Logger
	debounce     time.Duration
	maxStaleness time.Duration
	now          func() time.Time

	mu     sync.Mutex
	timers map[string]*time.Timer
	chains map[string]*job
}

type Option func(*Manager)

func WithDebounce(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.debounce = d
		}
	}
}

func WithMaxStaleness(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.maxStaleness = d
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

func WithClock(fn func() time.Time) Option {
	return func(m *Manager) {
		if fn != nil {
			m.now = fn
		}
	}
}

func New(saver Saver, opts ...Option) *Manager {
	m := &Manager{
		saver:        saver,
		log:          zerolog.Nop(),
		debounce:     DefaultDebounce,
		maxStaleness: DefaultMaxStaleness,
		now:          time.Now,
		timers:       make(map[string]*time.Timer),
		chains:       make(map[string]*job),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Schedule arranges for src's unsaved tail to be written. When the oldest
// unsaved message is older than the staleness ceiling the write happens now
// and Schedule returns its outcome; otherwise the conversation's debounce
// timer is (re)started and Schedule returns nil.
func (m *Manager) Schedule(ctx context.Context, src Unsaved, threadID string, cfg memory.ThreadConfig) error {
	if earliest, ok := src.EarliestUnsavedTimestamp(); ok && m.now().Sub(earliest) > m.maxStaleness {
		metrics.QueueSchedules.WithLabelValues("stale").Inc()
		m.log.Debug().Str("thread_id", threadID).Time("earliest_unsaved", earliest).Msg("unsaved messages past staleness ceiling; flushing")
		return m.Flush(ctx, src, threadID, cfg)
	}
	metrics.QueueSchedules.WithLabelValues("debounced").Inc()

	detached := context.WithoutCancel(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[threadID]; ok {
		t.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(m.debounce, func() {
		m.mu.Lock()
		if m.timers[threadID] != timer {
			// superseded or cancelled by a flush
			m.mu.Unlock()
			return
		}
		delete(m.timers, threadID)
		m.mu.Unlock()
		m.enqueue(detached, src, threadID, cfg)
	})
	m.timers[threadID] = timer
	return nil
}

// Flush cancels any pending debounce for the conversation, enqueues a write
// and waits for it. The write itself is not cancelled when ctx ends; Flush
// just stops waiting.
func (m *Manager) Flush(ctx context.Context, src Unsaved, threadID string, cfg memory.ThreadConfig) error {
	m.mu.Lock()
	if t, ok := m.timers[threadID]; ok {
		t.Stop()
		delete(m.timers, threadID)
	}
	m.mu.Unlock()

	j := m.enqueue(context.WithoutCancel(ctx), src, threadID, cfg)
	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every write enqueued so far for threadID has finished.
func (m *Manager) Wait(ctx context.Context, threadID string) error {
	m.mu.Lock()
	j := m.chains[threadID]
	m.mu.Unlock()
	if j == nil {
		return nil
	}
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats reports how many debounce timers and write chains are live.
func (m *Manager) Stats() (timers, chains int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers), len(m.chains)
}

func (m *Manager) enqueue(ctx context.Context, src Unsaved, threadID string, cfg memory.ThreadConfig) *job {
	j := &job{done: make(chan struct{})}

	m.mu.Lock()
	prev := m.chains[threadID]
	m.chains[threadID] = j
	if prev == nil {
		metrics.ActiveChains.Inc()
	}
	m.mu.Unlock()

	go func() {
		if prev != nil {
			<-prev.done
		}
		j.err = m.persist(ctx, src, threadID, cfg)
		close(j.done)

		m.mu.Lock()
		if m.chains[threadID] == j {
			delete(m.chains, threadID)
			metrics.ActiveChains.Dec()
		}
		m.mu.Unlock()
	}()
	return j
}

// persist drains src and writes the result. Failures are logged here and
// returned to whoever waits on the job; the chain itself keeps going.
func (m *Manager) persist(ctx context.Context, src Unsaved, threadID string, cfg memory.ThreadConfig) error {
	msgs := src.DrainUnsaved()
	if len(msgs) == 0 {
		metrics.QueueWritesTotal.WithLabelValues("empty").Inc()
		return nil
	}

	start := time.Now()
	err := m.saver.SaveMessages(ctx, msgs, cfg)
	metrics.QueueWriteDuration.Observe(time.Since(start).Seconds())

	fields := metrics.CountFeatures(msgs).Fields()
	fields["thread_id"] = threadID
	fields["duration_ms"] = time.Since(start).Milliseconds()

	if err != nil {
		metrics.QueueWritesTotal.WithLabelValues("error").Inc()
		m.log.Error().Err(err).Str("thread_id", threadID).Int("messages", len(msgs)).Msg("failed to persist messages")
		fields["error"] = "persist error"
		telemetry.Emit("messages_persisted", fields)
		return errs.PersistenceFailure(threadID, err)
	}
	metrics.QueueWritesTotal.WithLabelValues("ok").Inc()
	metrics.QueueMessagesPersisted.Add(float64(len(msgs)))
	fields["error"] = nil
	telemetry.Emit("messages_persisted", fields)
	m.log.Debug().Str("thread_id", threadID).Int("messages", len(msgs)).Msg("persisted messages")
	return nil
}
