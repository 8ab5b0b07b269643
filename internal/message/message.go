// Package message defines the canonical conversation message and the pure
// adapters between it and the wire shapes producers and consumers expect.
//
// Shapes:
//   - Message: the canonical, versioned storage shape (content.format == 2).
//   - LegacyMessage: one role + scalar/array content per step, tool results as separate tool messages.
//   - CoreMessage: role/content pairs exchanged with the language model.
//   - UIMessage: parts plus flattened attachments and tool invocations for end users.
package message

import (
	"encoding/json"
	"strings"
	"time"
)

// FormatVersion is the content envelope version written by this package.
const FormatVersion = 2

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

type PartType string

const (
	PartText              PartType = "text"
	PartFile              PartType = "file"
	PartReasoning         PartType = "reasoning"
	PartToolInvocation    PartType = "tool-invocation"
	PartRedactedReasoning PartType = "redacted-reasoning"
	PartStepStart         PartType = "step-start"
)

// ToolState is the lifecycle state of a tool invocation part.
type ToolState string

const (
	ToolStateCall        ToolState = "call"
	ToolStatePartialCall ToolState = "partial-call"
	ToolStateResult      ToolState = "result"
)

// ToolInvocation is one logical tool call. The call and its result share a
// ToolCallID and are merged by that key.
type ToolInvocation struct {
	State      ToolState       `json:"state"`
	Step       int             `json:"step,omitempty"`
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Args       json.RawMessage `json:"args,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
}

// Open reports whether the invocation still waits for a result.
func (ti ToolInvocation) Open() bool {
	return ti.State == ToolStateCall || ti.State == ToolStatePartialCall
}

// Part is a typed fragment of message content. Which fields are meaningful
// depends on Type:
//   - text: Text
//   - reasoning: Text, Signature
//   - redacted-reasoning: Data
//   - file: Data (base64 or URL), MimeType
//   - tool-invocation: ToolInvocation
//   - step-start: none
type Part struct {
	Type           PartType        `json:"type"`
	Text           string          `json:"text,omitempty"`
	Signature      string          `json:"signature,omitempty"`
	Data           string          `json:"data,omitempty"`
	MimeType       string          `json:"mimeType,omitempty"`
	ToolInvocation *ToolInvocation `json:"toolInvocation,omitempty"`
}

// Attachment is a file reference kept on the flattened projections.
type Attachment struct {
	Name        string `json:"name,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	URL         string `json:"url"`
}

// Content is the versioned envelope of a canonical message. Content,
// ToolInvocations and Attachments are flattened copies kept for older
// consumers; Parts is authoritative.
type Content struct {
	Format          int              `json:"format"`
	Parts           []Part           `json:"parts"`
	Content         string           `json:"content,omitempty"`
	ToolInvocations []ToolInvocation `json:"toolInvocations,omitempty"`
	Attachments     []Attachment     `json:"experimental_attachments,omitempty"`
	Metadata        map[string]any   `json:"metadata,omitempty"`
}

// Message is the canonical conversation message.
type Message struct {
	ID         string    `json:"id"`
	Role       Role      `json:"role"`
	CreatedAt  time.Time `json:"createdAt"`
	ThreadID   string    `json:"threadId,omitempty"`
	ResourceID string    `json:"resourceId,omitempty"`
	Content    Content   `json:"content"`
}

// Clone returns a deep copy of m.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	out := *m
	out.Content.Parts = cloneParts(m.Content.Parts)
	if m.Content.ToolInvocations != nil {
		out.Content.ToolInvocations = make([]ToolInvocation, len(m.Content.ToolInvocations))
		for i, ti := range m.Content.ToolInvocations {
			out.Content.ToolInvocations[i] = ti.clone()
		}
	}
	if m.Content.Attachments != nil {
		out.Content.Attachments = append([]Attachment(nil), m.Content.Attachments...)
	}
	if m.Content.Metadata != nil {
		out.Content.Metadata = make(map[string]any, len(m.Content.Metadata))
		for k, v := range m.Content.Metadata {
			out.Content.Metadata[k] = v
		}
	}
	return &out
}

func (ti ToolInvocation) clone() ToolInvocation {
	out := ti
	if ti.Args != nil {
		out.Args = append(json.RawMessage(nil), ti.Args...)
	}
	if ti.Result != nil {
		out.Result = append(json.RawMessage(nil), ti.Result...)
	}
	return out
}

func cloneParts(parts []Part) []Part {
	if parts == nil {
		return nil
	}
	out := make([]Part, len(parts))
	for i, p := range parts {
		out[i] = p
		if p.ToolInvocation != nil {
			ti := p.ToolInvocation.clone()
			out[i].ToolInvocation = &ti
		}
	}
	return out
}

// Text concatenates every text part of m.
func (m *Message) Text() string {
	var b strings.Builder
	for _, p := range m.Content.Parts {
		if p.Type == PartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// ContentParts returns the parts of m that are not step markers.
func (m *Message) ContentParts() []Part {
	out := make([]Part, 0, len(m.Content.Parts))
	for _, p := range m.Content.Parts {
		if p.Type != PartStepStart {
			out = append(out, p)
		}
	}
	return out
}

// SingleToolResult returns the invocation when m consists of exactly one
// resolved tool-invocation part.
func (m *Message) SingleToolResult() (*ToolInvocation, bool) {
	if m.Role != RoleAssistant {
		return nil, false
	}
	parts := m.ContentParts()
	if len(parts) != 1 || parts[0].Type != PartToolInvocation || parts[0].ToolInvocation == nil {
		return nil, false
	}
	if parts[0].ToolInvocation.State != ToolStateResult {
		return nil, false
	}
	return parts[0].ToolInvocation, true
}

// UsedTool reports whether any tool-invocation part in msgs names tool.
func UsedTool(msgs []*Message, tool string) bool {
	for _, m := range msgs {
		for _, p := range m.Content.Parts {
			if p.Type == PartToolInvocation && p.ToolInvocation != nil && p.ToolInvocation.ToolName == tool {
				return true
			}
		}
	}
	return false
}

// NormalizeRole folds tool messages into the assistant role used by the
// canonical shape.
func NormalizeRole(r Role) Role {
	if r == RoleTool {
		return RoleAssistant
	}
	return r
}
