package message

import "time"

// LegacyType classifies a legacy message by what its content carries.
type LegacyType string

const (
	LegacyText       LegacyType = "text"
	LegacyToolCall   LegacyType = "tool-call"
	LegacyToolResult LegacyType = "tool-result"
)

// LegacyMessage is the older storage shape: one envelope per step, with tool
// results split out into separate tool-role messages.
type LegacyMessage struct {
	ID         string      `json:"id"`
	Role       Role        `json:"role"`
	CreatedAt  time.Time   `json:"createdAt"`
	ThreadID   string      `json:"threadId,omitempty"`
	ResourceID string      `json:"resourceId,omitempty"`
	Type       LegacyType  `json:"type"`
	Content    CoreContent `json:"content"`
}

// UIMessage is the multi-part shape served to end-user interfaces.
type UIMessage struct {
	ID              string           `json:"id,omitempty"`
	Role            Role             `json:"role"`
	CreatedAt       *time.Time       `json:"createdAt,omitempty"`
	Content         string           `json:"content"`
	Parts           []Part           `json:"parts"`
	ToolInvocations []ToolInvocation `json:"toolInvocations,omitempty"`
	Attachments     []Attachment     `json:"experimental_attachments,omitempty"`
}
