package message

import "encoding/json"

// ToUI renders m for end-user consumption. Unresolved tool calls are hidden
// and file parts move to attachments.
func ToUI(m *Message) UIMessage {
	attachments := append([]Attachment(nil), m.Content.Attachments...)
	contentString := m.Content.Content
	parts := make([]Part, 0, len(m.Content.Parts))
	for _, p := range m.Content.Parts {
		switch {
		case p.Type == PartText && m.Content.Content == "":
			contentString = p.Text
			parts = append(parts, p)
		case p.Type == PartFile:
			attachments = append(attachments, Attachment{ContentType: p.MimeType, URL: p.Data})
		case p.Type == PartToolInvocation && p.ToolInvocation != nil && p.ToolInvocation.Open():
			continue
		default:
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 && len(attachments) > 0 {
		parts = append(parts, Part{Type: PartText, Text: ""})
	}
	createdAt := m.CreatedAt
	out := UIMessage{
		ID:        m.ID,
		Role:      m.Role,
		CreatedAt: &createdAt,
		Content:   contentString,
		Parts:     cloneParts(parts),
	}
	if m.Role == RoleAssistant {
		for _, ti := range m.Content.ToolInvocations {
			if ti.State == ToolStateResult {
				out.ToolInvocations = append(out.ToolInvocations, ti.clone())
			}
		}
	} else if len(attachments) > 0 {
		out.Attachments = attachments
	}
	return out
}

// ToCore renders msgs as model-ready role/content pairs. Tool calls that never
// received a result cannot be replayed to a model, so they are dropped, and a
// message left without content is omitted.
func ToCore(msgs []*Message) []CoreMessage {
	out := make([]CoreMessage, 0, len(msgs))
	for _, m := range msgs {
		parts := sanitize(m.Content.Parts)
		if len(parts) == 0 && len(m.Content.Attachments) == 0 {
			continue
		}
		switch m.Role {
		case RoleUser:
			out = append(out, CoreMessage{ID: m.ID, Role: RoleUser, Content: userContent(parts, m.Content.Attachments)})
		case RoleAssistant:
			for _, s := range splitSteps(parts) {
				if content := s.coreParts(); len(content) > 0 {
					out = append(out, CoreMessage{ID: m.ID, Role: RoleAssistant, Content: PartsContent(content...)})
				}
				if results := s.resultParts(); len(results) > 0 {
					out = append(out, CoreMessage{ID: m.ID, Role: RoleTool, Content: PartsContent(results...)})
				}
			}
		}
	}
	return out
}

// ToLegacy renders msgs in the legacy per-step shape. Consecutive messages of
// the same role are combined unless an assistant message ends with a tool call.
func ToLegacy(msgs []*Message) []LegacyMessage {
	var out []LegacyMessage
	push := func(lm LegacyMessage) {
		if n := len(out); n > 0 {
			prev := &out[n-1]
			if prev.Role == lm.Role && !prev.Content.IsString() && !lm.Content.IsString() &&
				(lm.Role != RoleAssistant || !endsWithToolCall(prev.Content)) {
				prev.Content.Parts = append(prev.Content.Parts, lm.Content.Parts...)
				return
			}
		}
		out = append(out, lm)
	}
	for _, m := range msgs {
		base := LegacyMessage{ID: m.ID, CreatedAt: m.CreatedAt, ThreadID: m.ThreadID, ResourceID: m.ResourceID}
		parts := m.ContentParts()
		switch m.Role {
		case RoleUser:
			lm := base
			lm.Role, lm.Type = RoleUser, LegacyText
			content := userContent(parts, m.Content.Attachments)
			if !content.IsString() && len(content.Parts) == 1 && content.Parts[0].Type == CoreText && m.Content.Content != "" {
				content = TextContent(m.Content.Content)
			}
			lm.Content = content
			push(lm)
		case RoleAssistant:
			for _, s := range splitSteps(parts) {
				content := s.coreParts()
				lm := base
				lm.Role, lm.Type = RoleAssistant, LegacyText
				if len(s.invocations) > 0 {
					lm.Type = LegacyToolCall
				}
				if len(content) == 1 && content[0].Type == CoreText && m.Content.Content != "" {
					lm.Content = TextContent(m.Content.Content)
				} else {
					lm.Content = PartsContent(content...)
				}
				push(lm)
				if results := s.resultParts(); len(results) > 0 {
					tm := base
					tm.Role, tm.Type = RoleTool, LegacyToolResult
					tm.Content = PartsContent(results...)
					push(tm)
				}
			}
		}
	}
	return out
}

// step is one model step of an assistant message: its visible parts plus the
// tool invocations issued in it.
type step struct {
	parts       []Part
	invocations []ToolInvocation
}

// splitSteps cuts assistant parts into steps. A step ends when text follows a
// tool invocation, when an invocation belongs to a different step number, or
// when a step marker follows invocations.
func splitSteps(parts []Part) []step {
	var (
		steps     []step
		cur       step
		blockStep = -1
	)
	flush := func() {
		if len(cur.parts) > 0 {
			steps = append(steps, cur)
		}
		cur = step{}
		blockStep = -1
	}
	for _, p := range parts {
		switch p.Type {
		case PartStepStart:
			if len(cur.invocations) > 0 {
				flush()
			}
		case PartText:
			if len(cur.invocations) > 0 {
				flush()
			}
			cur.parts = append(cur.parts, p)
		case PartFile, PartReasoning, PartRedactedReasoning:
			cur.parts = append(cur.parts, p)
		case PartToolInvocation:
			if p.ToolInvocation == nil {
				continue
			}
			if blockStep >= 0 && p.ToolInvocation.Step != blockStep {
				flush()
			}
			blockStep = p.ToolInvocation.Step
			cur.parts = append(cur.parts, p)
			cur.invocations = append(cur.invocations, *p.ToolInvocation)
		}
	}
	flush()
	return steps
}

func (s step) coreParts() []CorePart {
	out := make([]CorePart, 0, len(s.parts))
	for _, p := range s.parts {
		switch p.Type {
		case PartText:
			out = append(out, CorePart{Type: CoreText, Text: p.Text})
		case PartFile:
			out = append(out, fileToCore(p.Data, p.MimeType))
		case PartReasoning:
			out = append(out, CorePart{Type: CoreReasoning, Text: p.Text, Signature: p.Signature})
		case PartRedactedReasoning:
			out = append(out, CorePart{Type: CoreRedactedReasoning, Data: p.Data})
		case PartToolInvocation:
			args := p.ToolInvocation.Args
			if len(args) == 0 {
				args = emptyArgs
			}
			out = append(out, CorePart{
				Type:       CoreToolCall,
				ToolCallID: p.ToolInvocation.ToolCallID,
				ToolName:   p.ToolInvocation.ToolName,
				Args:       append(json.RawMessage(nil), args...),
			})
		}
	}
	return out
}

func (s step) resultParts() []CorePart {
	var out []CorePart
	for _, ti := range s.invocations {
		if ti.State != ToolStateResult {
			continue
		}
		out = append(out, CorePart{
			Type:       CoreToolResult,
			ToolCallID: ti.ToolCallID,
			ToolName:   ti.ToolName,
			Result:     append(json.RawMessage(nil), ti.Result...),
		})
	}
	return out
}

func userContent(parts []Part, attachments []Attachment) CoreContent {
	allText := len(attachments) == 0
	for _, p := range parts {
		if p.Type != PartText && p.Type != PartStepStart {
			allText = false
			break
		}
	}
	if allText {
		var text string
		for _, p := range parts {
			text += p.Text
		}
		return TextContent(text)
	}
	out := make([]CorePart, 0, len(parts)+len(attachments))
	for _, p := range parts {
		switch p.Type {
		case PartText:
			out = append(out, CorePart{Type: CoreText, Text: p.Text})
		case PartFile:
			out = append(out, fileToCore(p.Data, p.MimeType))
		}
	}
	for _, a := range attachments {
		out = append(out, fileToCore(a.URL, a.ContentType))
	}
	return PartsContent(out...)
}

func fileToCore(data, mime string) CorePart {
	if isImage(mime) {
		return CorePart{Type: CoreImage, Image: data, MimeType: mime}
	}
	return CorePart{Type: CoreFile, Data: data, MimeType: mime}
}

func sanitize(parts []Part) []Part {
	out := make([]Part, 0, len(parts))
	for _, p := range parts {
		if p.Type == PartStepStart {
			out = append(out, p)
			continue
		}
		if p.Type == PartToolInvocation && (p.ToolInvocation == nil || p.ToolInvocation.Open()) {
			continue
		}
		out = append(out, p)
	}
	for _, p := range out {
		if p.Type != PartStepStart {
			return out
		}
	}
	return nil
}

func endsWithToolCall(c CoreContent) bool {
	if c.IsString() || len(c.Parts) == 0 {
		return false
	}
	return c.Parts[len(c.Parts)-1].Type == CoreToolCall
}
