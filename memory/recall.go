package memory

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/petasbytes/recall-agent/internal/errs"
	"github.com/petasbytes/recall-agent/internal/message"
)

// SearchHit is one lexical recall match.
type SearchHit struct {
	Message *message.Message
	Score   int
}

// RememberMessages returns the history to place before new input: the
// thread's last cfg.LastMessages messages plus, when searchText is set, the
// top cfg.SemanticRecall.TopK matches (with cfg.SemanticRecall.MessageRange
// neighbours each). Matches from other threads of the resource keep their
// own ThreadID. The result is in creation order without duplicates.
func (s *Store) RememberMessages(ctx context.Context, threadID, resourceID string, cfg ThreadConfig, searchText string) ([]*message.Message, RecallMeta, error) {
	var meta RecallMeta

	threadMsgs, err := s.Messages(ctx, threadID)
	if err != nil {
		return nil, meta, err
	}

	picked := map[string]*message.Message{}
	if n := cfg.LastMessages; n > 0 {
		start := len(threadMsgs) - n
		if start < 0 {
			start = 0
		}
		for _, m := range threadMsgs[start:] {
			picked[m.ID] = m
		}
		meta.Recent = len(threadMsgs) - start
	}

	sr := cfg.SemanticRecall
	if sr.TopK > 0 && strings.TrimSpace(searchText) != "" {
		byThread := map[string][]*message.Message{threadID: threadMsgs}
		if sr.Scope != ScopeThread {
			if resourceID == "" {
				return nil, meta, errs.MissingResourceID(threadID)
			}
			ids, err := s.resourceThreadIDs(resourceID)
			if err != nil {
				return nil, meta, err
			}
			for _, id := range ids {
				if _, ok := byThread[id]; ok {
					continue
				}
				msgs, err := s.Messages(ctx, id)
				if err != nil {
					return nil, meta, err
				}
				byThread[id] = msgs
			}
		}

		hits := rank(byThread, searchText, func(m *message.Message) bool {
			_, seen := picked[m.ID]
			return seen
		})
		if len(hits) > sr.TopK {
			hits = hits[:sr.TopK]
		}
		for _, h := range hits {
			siblings := byThread[h.Message.ThreadID]
			i := indexOf(siblings, h.Message.ID)
			lo, hi := i-sr.MessageRange, i+sr.MessageRange
			if lo < 0 {
				lo = 0
			}
			if hi >= len(siblings) {
				hi = len(siblings) - 1
			}
			for _, m := range siblings[lo : hi+1] {
				if _, ok := picked[m.ID]; !ok {
					picked[m.ID] = m
					meta.Semantic++
				}
			}
			meta.Recalled = append(meta.Recalled, h.Message.ID)
		}
	}

	out := make([]*message.Message, 0, len(picked))
	for _, m := range picked {
		out = append(out, m)
	}
	sortByCreation(out)
	s.log.Debug().
		Str("thread_id", threadID).
		Int("recent", meta.Recent).
		Int("semantic", meta.Semantic).
		Msg("messages remembered")
	return out, meta, nil
}

// Search ranks the resource's messages against query.
func (s *Store) Search(ctx context.Context, resourceID, query string, limit int) ([]SearchHit, error) {
	ids, err := s.resourceThreadIDs(resourceID)
	if err != nil {
		return nil, err
	}
	byThread := make(map[string][]*message.Message, len(ids))
	for _, id := range ids {
		msgs, err := s.Messages(ctx, id)
		if err != nil {
			return nil, err
		}
		byThread[id] = msgs
	}
	hits := rank(byThread, query, nil)
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// rank scores every message by the number of distinct query terms its text
// contains. Zero scores are dropped; ties go to the newer message.
func rank(byThread map[string][]*message.Message, query string, skip func(*message.Message) bool) []SearchHit {
	terms := terms(query)
	if len(terms) == 0 {
		return nil
	}
	var hits []SearchHit
	for _, msgs := range byThread {
		for _, m := range msgs {
			if skip != nil && skip(m) {
				continue
			}
			have := map[string]struct{}{}
			for _, t := range tokenize(m.Text()) {
				have[t] = struct{}{}
			}
			score := 0
			for t := range terms {
				if _, ok := have[t]; ok {
					score++
				}
			}
			if score > 0 {
				hits = append(hits, SearchHit{Message: m, Score: score})
			}
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if !hits[i].Message.CreatedAt.Equal(hits[j].Message.CreatedAt) {
			return hits[i].Message.CreatedAt.After(hits[j].Message.CreatedAt)
		}
		return hits[i].Message.ID < hits[j].Message.ID
	})
	return hits
}

func terms(query string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, t := range tokenize(query) {
		if len([]rune(t)) > 1 {
			out[t] = struct{}{}
		}
	}
	return out
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func indexOf(msgs []*message.Message, id string) int {
	for i, m := range msgs {
		if m.ID == id {
			return i
		}
	}
	return 0
}

func sortByCreation(msgs []*message.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
}
