package windowing

import (
	"github.com/petasbytes/recall-agent/internal/message"
)

// TokenLimiter trims remembered history, oldest first, so that remembered
// messages, the new messages and the system text together fit Limit.
// It implements the memory store's Processor contract.
type TokenLimiter struct {
	Limit   int
	Counter TokenCounter
}

// NewTokenLimiter returns a limiter using the heuristic counter.
func NewTokenLimiter(limit int) *TokenLimiter {
	return &TokenLimiter{Limit: limit, Counter: HeuristicCounter{}}
}

// Process keeps the newest suffix of remembered that fits. New messages are
// never dropped; when they alone exceed the limit nothing is remembered.
func (l *TokenLimiter) Process(remembered, newMessages []*message.Message, systemText string) []*message.Message {
	if l == nil || l.Limit <= 0 || len(remembered) == 0 {
		return remembered
	}
	counter := l.Counter
	if counter == nil {
		counter = HeuristicCounter{}
	}

	budget := l.Limit - HeuristicCounter{}.CountText(systemText)
	for _, m := range newMessages {
		budget -= l.cost(counter, m)
	}

	start := len(remembered)
	for i := len(remembered) - 1; i >= 0; i-- {
		c := l.cost(counter, remembered[i])
		if c > budget {
			break
		}
		budget -= c
		start = i
	}
	if start > 0 {
		vlogf("limiter: dropped=%d kept=%d limit=%d", start, len(remembered)-start, l.Limit)
	}
	return remembered[start:]
}

func (l *TokenLimiter) cost(c TokenCounter, m *message.Message) int {
	total := 0
	for _, cm := range message.ToCore([]*message.Message{m}) {
		total += c.CountMessage(cm)
	}
	return total
}
