package windowing_test

import (
	"encoding/json"

	"github.com/petasbytes/recall-agent/internal/message"
	"github.com/petasbytes/recall-agent/internal/windowing"
)

// Text part constructor
func T(text string) message.CorePart {
	return message.CorePart{Type: message.CoreText, Text: text}
}

// Tool-call part constructor
func TC(id string) message.CorePart {
	return message.CorePart{Type: message.CoreToolCall, ToolCallID: id, ToolName: "lookup", Args: json.RawMessage(`{}`)}
}

// Tool-result (no payload), with optional error flag - used by grouping tests where payload length is irrelevant
func TR(id string, isErr bool) message.CorePart {
	return message.CorePart{Type: message.CoreToolResult, ToolCallID: id, ToolName: "lookup", IsError: isErr}
}

// Tool-result (string payload) constructor - preferred in counter tests for deterministic sizing
func TRString(id, s string) message.CorePart {
	b, _ := json.Marshal(s)
	return message.CorePart{Type: message.CoreToolResult, ToolCallID: id, ToolName: "lookup", Result: b}
}

// Assistant message constructor
func Asst(parts ...message.CorePart) message.CoreMessage {
	return message.CoreMessage{Role: message.RoleAssistant, Content: message.PartsContent(parts...)}
}

// Tool message constructor
func Tool(parts ...message.CorePart) message.CoreMessage {
	return message.CoreMessage{Role: message.RoleTool, Content: message.PartsContent(parts...)}
}

// User message constructor
func User(parts ...message.CorePart) message.CoreMessage {
	return message.CoreMessage{Role: message.RoleUser, Content: message.PartsContent(parts...)}
}

// UserText returns a user message with plain string content.
func UserText(s string) message.CoreMessage {
	return message.CoreMessage{Role: message.RoleUser, Content: message.TextContent(s)}
}

// Intervening returns a message that simply breaks adjacency between
// assistant(tool-call) and the expected next tool(tool-result).
func Intervening(text string) message.CoreMessage {
	return Asst(T(text))
}

// groupsEqual is a small utility used by grouping tests.
func groupsEqual(got, want []windowing.Group) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i].Kind != want[i].Kind || got[i].Start != want[i].Start || got[i].End != want[i].End {
			return false
		}
	}
	return true
}
