package savequeue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petasbytes/recall-agent/internal/errs"
	"github.com/petasbytes/recall-agent/internal/message"
	"github.com/petasbytes/recall-agent/internal/savequeue"
	"github.com/petasbytes/recall-agent/internal/timeline"
	"github.com/petasbytes/recall-agent/memory"
)

type write struct {
	thread string
	texts  []string
}

type recordingSaver struct {
	mu     sync.Mutex
	writes []write
	// hook runs before a write is recorded; it may block or fail.
	hook func(ctx context.Context, msgs []*message.Message) error
}

func (s *recordingSaver) SaveMessages(ctx context.Context, msgs []*message.Message, _ memory.ThreadConfig) error {
	if s.hook != nil {
		if err := s.hook(ctx, msgs); err != nil {
			return err
		}
	}
	w := write{}
	for _, m := range msgs {
		w.thread = m.ThreadID
		w.texts = append(w.texts, m.Text())
	}
	s.mu.Lock()
	s.writes = append(s.writes, w)
	s.mu.Unlock()
	return nil
}

func (s *recordingSaver) snapshot() []write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]write(nil), s.writes...)
}

func newTimeline(thread string) *timeline.Timeline {
	return timeline.New(timeline.WithIdentity(thread, "R"))
}

var cfg = memory.ThreadConfig{}

func TestSchedule_BurstCoalescesIntoOneWrite(t *testing.T) {
	saver := &recordingSaver{}
	q := savequeue.New(saver, savequeue.WithDebounce(100*time.Millisecond))
	tl := newTimeline("T")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, tl.Add(string(rune('a'+i)), timeline.SourceUser))
		require.NoError(t, q.Schedule(ctx, tl, "T", cfg))
		time.Sleep(10 * time.Millisecond)
	}
	assert.Empty(t, saver.snapshot(), "write fired inside the debounce window")

	require.Eventually(t, func() bool { return len(saver.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(200 * time.Millisecond)

	writes := saver.snapshot()
	require.Len(t, writes, 1)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, writes[0].texts)
}

func TestSchedule_StaleTailFlushesImmediately(t *testing.T) {
	saver := &recordingSaver{}
	q := savequeue.New(saver, savequeue.WithDebounce(time.Hour))
	past := time.Now().Add(-1500 * time.Millisecond)
	tl := timeline.New(timeline.WithIdentity("T", "R"), timeline.WithClock(func() time.Time { return past }))
	require.NoError(t, tl.Add("old", timeline.SourceUser))

	require.NoError(t, q.Schedule(context.Background(), tl, "T", cfg))

	writes := saver.snapshot()
	require.Len(t, writes, 1)
	assert.Equal(t, []string{"old"}, writes[0].texts)
	timers, _ := q.Stats()
	assert.Zero(t, timers)
}

func TestFlush_CancelsPendingDebounce(t *testing.T) {
	saver := &recordingSaver{}
	q := savequeue.New(saver, savequeue.WithDebounce(50*time.Millisecond))
	tl := newTimeline("T")
	ctx := context.Background()

	require.NoError(t, tl.Add("x", timeline.SourceUser))
	require.NoError(t, q.Schedule(ctx, tl, "T", cfg))
	require.NoError(t, q.Flush(ctx, tl, "T", cfg))
	require.Len(t, saver.snapshot(), 1)

	time.Sleep(150 * time.Millisecond)
	assert.Len(t, saver.snapshot(), 1)
}

func TestFlush_EmptyTailIsNoOp(t *testing.T) {
	saver := &recordingSaver{}
	q := savequeue.New(saver)
	require.NoError(t, q.Flush(context.Background(), newTimeline("T"), "T", cfg))
	assert.Empty(t, saver.snapshot())
}

func TestFlush_SameConversationWritesInSubmissionOrder(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	saver := &recordingSaver{}
	saver.hook = func(_ context.Context, msgs []*message.Message) error {
		if msgs[0].Text() == "one" {
			once.Do(func() { close(started) })
			<-release
		}
		return nil
	}
	q := savequeue.New(saver)
	tl := newTimeline("T")
	ctx := context.Background()

	require.NoError(t, tl.Add("one", timeline.SourceUser))
	first := make(chan error, 1)
	go func() { first <- q.Flush(ctx, tl, "T", cfg) }()
	<-started

	require.NoError(t, tl.Add("two", timeline.SourceUser))
	second := make(chan error, 1)
	go func() { second <- q.Flush(ctx, tl, "T", cfg) }()

	select {
	case <-second:
		t.Fatal("second flush finished before the first write completed")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	require.NoError(t, <-first)
	require.NoError(t, <-second)

	writes := saver.snapshot()
	require.Len(t, writes, 2)
	assert.Equal(t, []string{"one"}, writes[0].texts)
	assert.Equal(t, []string{"two"}, writes[1].texts)
}

func TestFlush_DifferentConversationsDoNotBlock(t *testing.T) {
	release := make(chan struct{})
	saver := &recordingSaver{}
	saver.hook = func(_ context.Context, msgs []*message.Message) error {
		if msgs[0].ThreadID == "A" {
			<-release
		}
		return nil
	}
	q := savequeue.New(saver)
	ctx := context.Background()
	a, b := newTimeline("A"), newTimeline("B")
	require.NoError(t, a.Add("for a", timeline.SourceUser))
	require.NoError(t, b.Add("for b", timeline.SourceUser))

	doneA := make(chan error, 1)
	go func() { doneA <- q.Flush(ctx, a, "A", cfg) }()

	done := make(chan error, 1)
	go func() { done <- q.Flush(ctx, b, "B", cfg) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("flush for B blocked behind A")
	}
	close(release)
	require.NoError(t, <-doneA)
}

func TestFlush_FailureIsReturnedButChainContinues(t *testing.T) {
	boom := errors.New("disk full")
	calls := 0
	saver := &recordingSaver{}
	saver.hook = func(context.Context, []*message.Message) error {
		calls++
		if calls == 1 {
			return boom
		}
		return nil
	}
	q := savequeue.New(saver)
	tl := newTimeline("T")
	ctx := context.Background()

	require.NoError(t, tl.Add("lost", timeline.SourceUser))
	err := q.Flush(ctx, tl, "T", cfg)
	require.ErrorIs(t, err, errs.ErrPersistenceFailure)
	require.ErrorIs(t, err, boom)

	require.NoError(t, tl.Add("kept", timeline.SourceUser))
	require.NoError(t, q.Flush(ctx, tl, "T", cfg))
	writes := saver.snapshot()
	require.Len(t, writes, 1)
	assert.Equal(t, []string{"kept"}, writes[0].texts)
}

func TestChainsAreRetiredWhenIdle(t *testing.T) {
	q := savequeue.New(&recordingSaver{})
	tl := newTimeline("T")
	require.NoError(t, tl.Add("x", timeline.SourceUser))
	require.NoError(t, q.Flush(context.Background(), tl, "T", cfg))

	require.Eventually(t, func() bool {
		timers, chains := q.Stats()
		return timers == 0 && chains == 0
	}, time.Second, 5*time.Millisecond)
	assert.NoError(t, q.Wait(context.Background(), "T"))
}

func TestFlush_ContextCancelStopsWaitingOnly(t *testing.T) {
	release := make(chan struct{})
	saver := &recordingSaver{}
	saver.hook = func(context.Context, []*message.Message) error {
		<-release
		return nil
	}
	q := savequeue.New(saver)
	tl := newTimeline("T")
	require.NoError(t, tl.Add("slow", timeline.SourceUser))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Flush(ctx, tl, "T", cfg), context.DeadlineExceeded)

	close(release)
	require.NoError(t, q.Wait(context.Background(), "T"))
	assert.Len(t, saver.snapshot(), 1)
}
