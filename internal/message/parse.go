package message

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/petasbytes/recall-agent/internal/errs"
)

var emptyArgs = json.RawMessage(`{}`)
var emptyResult = json.RawMessage(`""`)

// The From* adapters normalize one wire shape into a canonical Message. They
// never assign ids or timestamps the producer did not supply; the timeline
// owns that.

// FromStorage validates a message already in the canonical shape.
func FromStorage(m Message) (*Message, error) {
	if err := checkRole(m.Role); err != nil {
		return nil, err
	}
	if len(m.Content.Parts) == 0 && m.Content.Content == "" {
		return nil, errs.InvalidMessage("%s message %q has neither content nor parts", m.Role, m.ID)
	}
	out := m.Clone()
	out.Role = NormalizeRole(out.Role)
	if out.Content.Format == 0 {
		out.Content.Format = FormatVersion
	}
	if len(out.Content.Parts) == 0 {
		out.Content.Parts = []Part{{Type: PartText, Text: out.Content.Content}}
	}
	return out, nil
}

// FromLegacy converts a legacy message, keeping its declared identity and time.
func FromLegacy(lm LegacyMessage) (*Message, error) {
	return FromLegacyStep(lm, 0)
}

// FromLegacyStep converts a legacy message that sits at position step of its
// sequence. Legacy messages carry one model step each, so the position is
// the step number of every tool invocation they hold.
func FromLegacyStep(lm LegacyMessage, step int) (*Message, error) {
	m, err := FromCore(CoreMessage{ID: lm.ID, Role: lm.Role, Content: lm.Content})
	if err != nil {
		return nil, err
	}
	m.CreatedAt = lm.CreatedAt
	m.ThreadID = lm.ThreadID
	m.ResourceID = lm.ResourceID
	for i := range m.Content.Parts {
		if ti := m.Content.Parts[i].ToolInvocation; ti != nil {
			ti.Step = step
		}
	}
	for i := range m.Content.ToolInvocations {
		m.Content.ToolInvocations[i].Step = step
	}
	return m, nil
}

// FromCore converts a role/content pair. Tool-role messages become assistant
// messages whose parts are resolved tool invocations.
func FromCore(cm CoreMessage) (*Message, error) {
	if err := checkRole(cm.Role); err != nil {
		return nil, err
	}
	if cm.Content.Empty() {
		return nil, errs.InvalidMessage("%s message has empty content", cm.Role)
	}
	m := &Message{
		ID:      cm.ID,
		Role:    NormalizeRole(cm.Role),
		Content: Content{Format: FormatVersion},
	}
	if cm.Content.IsString() {
		m.Content.Parts = []Part{{Type: PartText, Text: cm.Content.Text}}
		m.Content.Content = cm.Content.Text
		return m, nil
	}
	parts := make([]Part, 0, len(cm.Content.Parts))
	for _, cp := range cm.Content.Parts {
		switch cp.Type {
		case CoreText:
			parts = append(parts, Part{Type: PartText, Text: cp.Text})
		case CoreToolCall:
			args := cp.Args
			if len(args) == 0 {
				args = emptyArgs
			}
			parts = append(parts, Part{Type: PartToolInvocation, ToolInvocation: &ToolInvocation{
				State:      ToolStateCall,
				ToolCallID: cp.ToolCallID,
				ToolName:   cp.ToolName,
				Args:       append(json.RawMessage(nil), args...),
			}})
		case CoreToolResult:
			result := cp.Result
			if len(result) == 0 {
				result = emptyResult
			}
			// args stay empty; merging onto the call part keeps the call's args
			ti := ToolInvocation{
				State:      ToolStateResult,
				ToolCallID: cp.ToolCallID,
				ToolName:   cp.ToolName,
				Args:       emptyArgs,
				Result:     append(json.RawMessage(nil), result...),
			}
			parts = append(parts, Part{Type: PartToolInvocation, ToolInvocation: &ti})
			m.Content.ToolInvocations = append(m.Content.ToolInvocations, ti.clone())
		case CoreReasoning:
			parts = append(parts, Part{Type: PartReasoning, Text: cp.Text, Signature: cp.Signature})
		case CoreRedactedReasoning:
			parts = append(parts, Part{Type: PartRedactedReasoning, Data: cp.Data})
		case CoreImage:
			data := cp.Image
			if data == "" && cp.Binary != nil {
				data = base64.StdEncoding.EncodeToString(cp.Binary)
			}
			parts = append(parts, Part{Type: PartFile, Data: data, MimeType: cp.MimeType})
		case CoreFile:
			data := cp.Data
			if data == "" && cp.Binary != nil {
				data = base64.StdEncoding.EncodeToString(cp.Binary)
			}
			parts = append(parts, Part{Type: PartFile, Data: data, MimeType: cp.MimeType})
		default:
			return nil, errs.InvalidMessage("unsupported content part type %q", cp.Type)
		}
	}
	m.Content.Parts = parts
	return m, nil
}

// FromUI converts a multi-part UI message.
func FromUI(um UIMessage) (*Message, error) {
	if err := checkRole(um.Role); err != nil {
		return nil, err
	}
	if len(um.Parts) == 0 && um.Content == "" {
		return nil, errs.InvalidMessage("%s message %q has neither content nor parts", um.Role, um.ID)
	}
	m := &Message{
		ID:   um.ID,
		Role: NormalizeRole(um.Role),
		Content: Content{
			Format: FormatVersion,
			Parts:  cloneParts(um.Parts),
		},
	}
	if um.CreatedAt != nil {
		m.CreatedAt = *um.CreatedAt
	}
	if len(m.Content.Parts) == 0 {
		m.Content.Parts = []Part{{Type: PartText, Text: um.Content}}
	}
	for _, ti := range um.ToolInvocations {
		m.Content.ToolInvocations = append(m.Content.ToolInvocations, ti.clone())
	}
	if len(um.Attachments) > 0 {
		m.Content.Attachments = append([]Attachment(nil), um.Attachments...)
	}
	return m, nil
}

func checkRole(r Role) error {
	switch r {
	case RoleUser, RoleAssistant, RoleTool:
		return nil
	case "":
		return errs.InvalidMessage("message has no role")
	default:
		return errs.InvalidMessage("unsupported message role %q", r)
	}
}

func isImage(mime string) bool {
	return strings.HasPrefix(mime, "image/")
}
