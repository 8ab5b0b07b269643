package windowing

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/petasbytes/recall-agent/internal/message"
)

// TokenCounter estimates input-token cost for messages or groups.
type TokenCounter interface {
	CountMessage(m message.CoreMessage) int
	CountGroup(g Group, all []message.CoreMessage) int
}

// HeuristicCounter is the default deterministic estimator.
// Rules:
// - string content and text/reasoning parts: rune count of the text
// - tool-result parts: runes of the result (JSON strings are unquoted first)
// - everything else counts the per-part overhead only.
type HeuristicCounter struct{}

// Fixed per-part overhead for deterministic counts; changing this requires updating the guard test.
const blockOverhead = 4

func (HeuristicCounter) CountMessage(m message.CoreMessage) int {
	if m.Content.IsString() {
		return utf8.RuneCountInString(m.Content.Text) + blockOverhead
	}
	total := 0
	for _, p := range m.Content.Parts {
		total += countPart(p)
	}
	return total
}

func (h HeuristicCounter) CountGroup(g Group, all []message.CoreMessage) int {
	total := 0
	for i := g.Start; i < g.End && i < len(all); i++ {
		total += h.CountMessage(all[i])
	}
	return total
}

// CountText estimates a bare string, such as assembled system text.
func (HeuristicCounter) CountText(s string) int {
	if s == "" {
		return 0
	}
	return utf8.RuneCountInString(s) + blockOverhead
}

func countPart(p message.CorePart) int {
	switch p.Type {
	case message.CoreText, message.CoreReasoning:
		return utf8.RuneCountInString(p.Text) + blockOverhead
	case message.CoreToolResult:
		if len(p.Result) == 0 {
			return blockOverhead
		}
		var s string
		if err := json.Unmarshal(p.Result, &s); err == nil {
			return utf8.RuneCountInString(s) + blockOverhead
		}
		return utf8.RuneCount(p.Result) + blockOverhead
	}
	// tool calls, images, files and redacted reasoning count overhead only.
	return blockOverhead
}
