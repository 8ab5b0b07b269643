package message

import (
	"bytes"
	"encoding/json"
	"strings"
)

type CorePartType string

const (
	CoreText              CorePartType = "text"
	CoreImage             CorePartType = "image"
	CoreFile              CorePartType = "file"
	CoreReasoning         CorePartType = "reasoning"
	CoreRedactedReasoning CorePartType = "redacted-reasoning"
	CoreToolCall          CorePartType = "tool-call"
	CoreToolResult        CorePartType = "tool-result"
)

// CorePart is one element of a CoreMessage's content list.
//
// Image and file payloads travel as strings (base64 or URL). In-process
// producers may set Binary instead; the adapters encode it to base64.
type CorePart struct {
	Type       CorePartType    `json:"type"`
	Text       string          `json:"text,omitempty"`
	Signature  string          `json:"signature,omitempty"`
	Image      string          `json:"image,omitempty"`
	Data       string          `json:"data,omitempty"`
	Binary     []byte          `json:"-"`
	MimeType   string          `json:"mimeType,omitempty"`
	Filename   string          `json:"filename,omitempty"`
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	Args       json.RawMessage `json:"args,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	IsError    bool            `json:"isError,omitempty"`
}

// CoreContent is either a plain string or an ordered list of parts. It
// encodes as a JSON string when Parts is nil.
type CoreContent struct {
	Text  string
	Parts []CorePart
}

// TextContent returns string content.
func TextContent(s string) CoreContent { return CoreContent{Text: s} }

// PartsContent returns list content.
func PartsContent(parts ...CorePart) CoreContent {
	if parts == nil {
		parts = []CorePart{}
	}
	return CoreContent{Parts: parts}
}

// IsString reports whether c is plain string content.
func (c CoreContent) IsString() bool { return c.Parts == nil }

// Empty reports whether c carries neither text nor parts.
func (c CoreContent) Empty() bool { return c.Text == "" && len(c.Parts) == 0 }

// String returns the concatenated text of c.
func (c CoreContent) String() string {
	if c.IsString() {
		return c.Text
	}
	var b strings.Builder
	for _, p := range c.Parts {
		if p.Type == CoreText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

func (c CoreContent) MarshalJSON() ([]byte, error) {
	if c.IsString() {
		return json.Marshal(c.Text)
	}
	return json.Marshal(c.Parts)
}

func (c *CoreContent) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*c = CoreContent{}
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = CoreContent{Text: s}
		return nil
	default:
		var parts []CorePart
		if err := json.Unmarshal(b, &parts); err != nil {
			return err
		}
		if parts == nil {
			parts = []CorePart{}
		}
		*c = CoreContent{Parts: parts}
		return nil
	}
}

// CoreMessage is the role/content pair sent to and received from the model.
// ID is optional; model responses carry one, prompts usually do not.
type CoreMessage struct {
	ID      string      `json:"id,omitempty"`
	Role    Role        `json:"role"`
	Content CoreContent `json:"content"`
}

// IsToolTurn reports whether c is a tool result message or an assistant
// message that issues tool calls.
func (c CoreMessage) IsToolTurn() bool {
	if c.Role == RoleTool {
		return true
	}
	if c.Role != RoleAssistant || c.Content.IsString() {
		return false
	}
	for _, p := range c.Content.Parts {
		if p.Type == CoreToolCall {
			return true
		}
	}
	return false
}
