package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// ClearMemories deletes stored history. With a thread id only that thread
// (record, resource index entry and messages) goes; without one every thread
// of the resource goes, along with its important memory notes.
func (s *Store) ClearMemories(ctx context.Context, resourceID, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	threadIDs := []string{threadID}
	if threadID == "" {
		ids, err := s.resourceThreadIDs(resourceID)
		if err != nil {
			return err
		}
		threadIDs = ids
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	messages := 0
	for _, id := range threadIDs {
		prefix := threadMessagePrefix(id)
		err := s.scan(prefix, func(_, v []byte) error {
			var m struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(v, &m); err != nil {
				return fmt.Errorf("decode message in thread %s: %w", id, err)
			}
			messages++
			return batch.Delete(messageIndexKey(m.ID), nil)
		})
		if err != nil {
			return err
		}
		if err := batch.DeleteRange([]byte(prefix), upperBound(prefix), nil); err != nil {
			return err
		}
		if err := batch.Delete(threadKey(id), nil); err != nil {
			return err
		}
		if err := batch.Delete(resourceThreadKey(resourceID, id), nil); err != nil {
			return err
		}
	}
	if threadID == "" {
		prefix := importantResourcePrefix(resourceID)
		if err := batch.DeleteRange([]byte(prefix), upperBound(prefix), nil); err != nil {
			return err
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		s.log.Error().Err(err).Str("resource_id", resourceID).Str("thread_id", threadID).Msg("clear memories failed")
		return err
	}
	for _, id := range threadIDs {
		s.threads.Remove(id)
	}
	s.log.Info().
		Str("resource_id", resourceID).
		Str("thread_id", threadID).
		Int("threads", len(threadIDs)).
		Int("messages", messages).
		Msg("memories cleared")
	return nil
}
