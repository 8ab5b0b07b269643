package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"

	"github.com/petasbytes/recall-agent/internal/errs"
	"github.com/petasbytes/recall-agent/internal/message"
)

const defaultThreadCacheSize = 256

// Store is the pebble-backed durable memory.
type Store struct {
	db         *pebble.DB
	threads    *lru.Cache
	defaults   ThreadConfig
	processors []Processor
	log        zerolog.Logger
	now        func() time.Time
	cacheSize  int

	// serializes read-modify-write paths (message upserts, metadata updates)
	mu sync.Mutex
}

type Option func(*Store)

// WithDefaults sets the thread config used when a request passes none.
func WithDefaults(cfg ThreadConfig) Option {
	return func(s *Store) { s.defaults = cfg }
}

// WithProcessors installs post-processors applied by ProcessMessages, in order.
func WithProcessors(ps ...Processor) Option {
	return func(s *Store) { s.processors = append(s.processors, ps...) }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

func WithThreadCacheSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.cacheSize = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens (or creates) a pebble database at path.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		defaults:  DefaultThreadConfig(),
		log:       zerolog.Nop(),
		now:       time.Now,
		cacheSize: defaultThreadCacheSize,
	}
	for _, o := range opts {
		o(s)
	}
	cache, err := lru.New(s.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("thread cache: %w", err)
	}
	s.threads = cache

	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		s.log.Error().Err(err).Str("path", path).Msg("pebble open failed")
		return nil, err
	}
	s.db = db
	s.log.Debug().Str("path", path).Msg("pebble opened")
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// GetThreadByID returns the thread, or nil when it does not exist.
func (s *Store) GetThreadByID(ctx context.Context, id string) (*Thread, error) {
	if v, ok := s.threads.Get(id); ok {
		return v.(*Thread).Clone(), nil
	}
	var th Thread
	found, err := s.getJSON(threadKey(id), &th)
	if err != nil || !found {
		return nil, err
	}
	s.threads.Add(id, th.Clone())
	return &th, nil
}

// CreateThread stores a new thread record, replacing any existing one with
// the same id. An empty title gets the "New Thread <time>" placeholder.
func (s *Store) CreateThread(ctx context.Context, id, resourceID, title string, metadata map[string]any) (*Thread, error) {
	if id == "" {
		return nil, errs.InvalidMessage("thread id is required")
	}
	if resourceID == "" {
		return nil, errs.MissingResourceID(id)
	}
	now := s.now().UTC()
	if title == "" {
		title = DefaultTitle(now)
	}
	th := &Thread{
		ID:         id,
		ResourceID: resourceID,
		Title:      title,
		Metadata:   metadata,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.putThread(th); err != nil {
		return nil, err
	}
	return th.Clone(), nil
}

// SaveThread writes th and bumps its UpdatedAt.
func (s *Store) SaveThread(ctx context.Context, th *Thread) (*Thread, error) {
	if th == nil || th.ID == "" {
		return nil, errs.InvalidMessage("thread id is required")
	}
	out := th.Clone()
	out.UpdatedAt = s.now().UTC()
	if out.CreatedAt.IsZero() {
		out.CreatedAt = out.UpdatedAt
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.putThread(out); err != nil {
		return nil, err
	}
	return out.Clone(), nil
}

func (s *Store) putThread(th *Thread) error {
	b, err := json.Marshal(th)
	if err != nil {
		return fmt.Errorf("marshal thread %s: %w", th.ID, err)
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(threadKey(th.ID), b, nil); err != nil {
		return err
	}
	if th.ResourceID != "" {
		if err := batch.Set(resourceThreadKey(th.ResourceID, th.ID), nil, nil); err != nil {
			return err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		s.log.Error().Err(err).Str("thread_id", th.ID).Msg("save thread failed")
		return err
	}
	s.threads.Add(th.ID, th.Clone())
	return nil
}

// ListThreads returns the resource's threads, most recently updated first.
func (s *Store) ListThreads(ctx context.Context, resourceID string) ([]*Thread, error) {
	ids, err := s.resourceThreadIDs(resourceID)
	if err != nil {
		return nil, err
	}
	out := make([]*Thread, 0, len(ids))
	for _, id := range ids {
		th, err := s.GetThreadByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if th != nil {
			out = append(out, th)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *Store) resourceThreadIDs(resourceID string) ([]string, error) {
	prefix := resourceThreadPrefix(resourceID)
	var ids []string
	err := s.scan(prefix, func(k, _ []byte) error {
		ids = append(ids, string(k[len(prefix):]))
		return nil
	})
	return ids, err
}

// SaveMessages upserts msgs by id. A message saved again after its
// creation time moved replaces the earlier record.
func (s *Store) SaveMessages(ctx context.Context, msgs []*message.Message, cfg ThreadConfig) error {
	if len(msgs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.db.NewBatch()
	defer batch.Close()

	touched := map[string]bool{}
	written := map[string][]byte{}
	for _, m := range msgs {
		if m == nil {
			continue
		}
		if m.ID == "" || m.ThreadID == "" {
			return errs.InvalidMessage("message %q has no id or thread id", m.ID)
		}
		key := messageKey(m.ThreadID, m.CreatedAt, m.ID)
		old, found := written[m.ID]
		if !found {
			var err error
			if old, found, err = s.get(messageIndexKey(m.ID)); err != nil {
				return err
			}
		}
		if found && string(old) != string(key) {
			if err := batch.Delete(old, nil); err != nil {
				return err
			}
		}
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal message %s: %w", m.ID, err)
		}
		if err := batch.Set(key, b, nil); err != nil {
			return err
		}
		if err := batch.Set(messageIndexKey(m.ID), key, nil); err != nil {
			return err
		}
		written[m.ID] = key
		touched[m.ThreadID] = true
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		s.log.Error().Err(err).Int("messages", len(msgs)).Msg("save messages failed")
		return err
	}

	for threadID := range touched {
		s.touchThread(threadID)
	}
	s.log.Debug().Int("messages", len(msgs)).Msg("messages saved")
	return nil
}

// touchThread bumps UpdatedAt on an existing thread. Caller holds s.mu.
func (s *Store) touchThread(threadID string) {
	var th Thread
	found, err := s.getJSON(threadKey(threadID), &th)
	if err != nil || !found {
		return
	}
	th.UpdatedAt = s.now().UTC()
	if err := s.putThread(&th); err != nil {
		s.log.Warn().Err(err).Str("thread_id", threadID).Msg("thread touch failed")
	}
}

// Messages returns every stored message of the thread in creation order.
func (s *Store) Messages(ctx context.Context, threadID string) ([]*message.Message, error) {
	var out []*message.Message
	err := s.scan(threadMessagePrefix(threadID), func(_, v []byte) error {
		var m message.Message
		if err := json.Unmarshal(v, &m); err != nil {
			return fmt.Errorf("decode message in thread %s: %w", threadID, err)
		}
		out = append(out, &m)
		return nil
	})
	return out, err
}

// MessageByID looks a message up through the id index.
func (s *Store) MessageByID(ctx context.Context, id string) (*message.Message, error) {
	key, found, err := s.get(messageIndexKey(id))
	if err != nil || !found {
		return nil, err
	}
	var m message.Message
	found, err = s.getJSON(key, &m)
	if err != nil || !found {
		return nil, err
	}
	return &m, nil
}

// MergedThreadConfig overlays override on the store defaults.
func (s *Store) MergedThreadConfig(override ThreadConfig) ThreadConfig {
	return s.defaults.Merge(override)
}

// ProcessMessages runs the configured processors over remembered history.
func (s *Store) ProcessMessages(remembered, newMessages []*message.Message, systemText string) []*message.Message {
	out := remembered
	for _, p := range s.processors {
		out = p.Process(out, newMessages, systemText)
	}
	return out
}

func (s *Store) get(key []byte) ([]byte, bool, error) {
	v, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()
	return append([]byte(nil), v...), true, nil
}

func (s *Store) getJSON(key []byte, dst any) (bool, error) {
	b, found, err := s.get(key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) scan(prefix string, fn func(k, v []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}
