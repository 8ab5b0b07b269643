package windowing

import (
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/petasbytes/recall-agent/internal/message"
)

// GroupKind denotes the atomic unit type when preparing a send window.
type GroupKind int

const (
	GroupSingleton GroupKind = iota
	GroupPair
)

// Group describes a contiguous span of messages [Start, End) in the original slice.
// Kind indicates whether it is a singleton or a validated pair.
type Group struct {
	Kind  GroupKind
	Start int // inclusive index into msgs
	End   int // exclusive index into msgs
}

// GroupBlocks groups messages into atomic units that preserve tool-call pairs.
// Invariants:
// - A pair is exactly two adjacent messages: assistant(tool-call+...) then tool(tool-result...).
// - In the result message, all tool-result parts must come first; text (if any) comes after.
// - Parallel completeness: all tool-call ids in the assistant must appear as tool-result
// ids in the following message's leading tool-result segment.
// - tool-result parts with isError=true are treated the same for grouping.
func GroupBlocks(msgs []message.CoreMessage) []Group {
	groups := make([]Group, 0, len(msgs))
	for i := 0; i < len(msgs); {
		m := msgs[i]
		if m.Role == message.RoleAssistant {
			callIDs := collectToolCallIDs(m)
			if len(callIDs) > 0 {
				if i+1 < len(msgs) && carriesResults(msgs[i+1]) {
					valid, resultIDs := leadingToolResultIDsAndOrderingValid(msgs[i+1])
					if valid && coversAll(resultIDs, callIDs) && noExtraResults(resultIDs, callIDs) {
						groups = append(groups, Group{Kind: GroupPair, Start: i, End: i + 2})
						i += 2
						continue
					}
					// Reason-coded verbose logs (see SetVerbose)
					reason := ""
					switch {
					case !valid:
						reason = "ordering_invalid"
					case !coversAll(resultIDs, callIDs):
						reason = "missing_results"
					case !noExtraResults(resultIDs, callIDs):
						reason = "extra_results"
					default:
						reason = "unknown"
					}
					vlogf("exclude pair: reason=%s idx=%d", reason, i)
				} else {
					vlogf("exclude pair: reason=not_followed_by_results idx=%d", i)
				}
			}
		}
		groups = append(groups, Group{Kind: GroupSingleton, Start: i, End: i + 1})
		i++
	}
	return groups
}

// carriesResults reports whether m may hold tool results: a tool message, or
// a user message in the provider's layout.
func carriesResults(m message.CoreMessage) bool {
	return m.Role == message.RoleTool || m.Role == message.RoleUser
}

// collectToolCallIDs returns the set of tool-call ids present in an assistant message.
func collectToolCallIDs(m message.CoreMessage) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, p := range m.Content.Parts {
		if p.Type == message.CoreToolCall && p.ToolCallID != "" {
			ids[p.ToolCallID] = struct{}{}
		}
	}
	return ids
}

// leadingToolResultIDsAndOrderingValid inspects a result message and returns:
// - valid=false if any non-result part appears before a tool-result
// - resultIDs: the ids of tool-result parts in the leading segment.
func leadingToolResultIDsAndOrderingValid(m message.CoreMessage) (valid bool, resultIDs map[string]struct{}) {
	resultIDs = make(map[string]struct{})
	if m.Content.IsString() {
		return true, resultIDs
	}
	seenNonResult := false
	for _, p := range m.Content.Parts {
		if p.Type == message.CoreToolResult {
			if seenNonResult {
				return false, resultIDs
			}
			if p.ToolCallID != "" {
				resultIDs[p.ToolCallID] = struct{}{}
			}
			continue
		}
		seenNonResult = true
	}
	return true, resultIDs
}

// coversAll checks that every id in required is present in have.
func coversAll(have, required map[string]struct{}) bool {
	for id := range required {
		if _, ok := have[id]; !ok {
			return false
		}
	}
	return true
}

// noExtraResults enforces that the result message carries nothing the
// assistant turn did not ask for.
func noExtraResults(have, allowed map[string]struct{}) bool {
	for id := range have {
		if _, ok := allowed[id]; !ok {
			return false
		}
	}
	return true
}

var verbose atomic.Bool

// SetVerbose turns the reason-coded grouping logs on or off.
func SetVerbose(on bool) { verbose.Store(on) }

func vlogf(format string, args ...any) {
	if verbose.Load() {
		log.Info().Str("component", "windowing").Msgf(format, args...)
	}
}
