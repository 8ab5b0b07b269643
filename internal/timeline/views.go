package timeline

import (
	"time"

	"github.com/petasbytes/recall-agent/internal/message"
)

// View is a snapshot of a subset of the timeline. Its renderings never touch
// timeline state.
type View struct {
	msgs []*message.Message
}

// Storage returns the canonical messages.
func (v View) Storage() []*message.Message { return v.msgs }

// Legacy renders the view in the legacy per-step shape.
func (v View) Legacy() []message.LegacyMessage { return message.ToLegacy(v.msgs) }

// Core renders the view as model-ready role/content pairs.
func (v View) Core() []message.CoreMessage { return message.ToCore(v.msgs) }

// UI renders the view for end users.
func (v View) UI() []message.UIMessage {
	out := make([]message.UIMessage, 0, len(v.msgs))
	for _, m := range v.msgs {
		out = append(out, message.ToUI(m))
	}
	return out
}

// Len returns the number of messages in the view.
func (v View) Len() int { return len(v.msgs) }

// All is the full history.
func (t *Timeline) All() View { return t.view(nil) }

// Remembered holds messages recalled from memory.
func (t *Timeline) Remembered() View { return t.view(sourceIs(SourceMemory)) }

// Input holds unsaved caller input.
func (t *Timeline) Input() View { return t.view(sourceIs(SourceUser)) }

// Response holds unsaved model output.
func (t *Timeline) Response() View { return t.view(sourceIs(SourceResponse)) }

// Context holds caller-supplied context messages.
func (t *Timeline) Context() View { return t.view(sourceIs(SourceContext)) }

func sourceIs(want Source) func(Source, bool) bool {
	return func(s Source, ok bool) bool { return ok && s == want }
}

func (t *Timeline) view(keep func(Source, bool) bool) View {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*message.Message, 0, len(t.messages))
	for _, m := range t.messages {
		if keep != nil {
			s, ok := t.provenance[m.ID]
			if !keep(s, ok) {
				continue
			}
		}
		out = append(out, m.Clone())
	}
	return View{msgs: out}
}

// Prompt returns the system messages (untagged first, then tagged in the order
// tags were first seen) followed by the history in core shape. Leading tool
// turns are trimmed so a prompt never opens with an orphaned tool exchange.
func (t *Timeline) Prompt() []message.CoreMessage {
	core := t.All().Core()
	for len(core) > 0 && core[0].IsToolTurn() {
		core = core[1:]
	}
	t.mu.Lock()
	out := make([]message.CoreMessage, 0, len(t.system)+len(core)+len(t.tagOrder))
	out = append(out, t.system...)
	for _, tag := range t.tagOrder {
		out = append(out, t.tagged[tag]...)
	}
	t.mu.Unlock()
	return append(out, core...)
}

// LatestUserContent concatenates the text parts of the last user message.
func (t *Timeline) LatestUserContent() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.messages) - 1; i >= 0; i-- {
		if m := t.messages[i]; m.Role == message.RoleUser {
			return m.Text(), true
		}
	}
	return "", false
}

// AddSystem adds system instructions. input may be a string, a CoreMessage or
// a slice of either. A non-empty tag files the message under that topic.
// Messages whose content already exists under the same tag are ignored.
func (t *Timeline) AddSystem(input any, tag string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch v := input.(type) {
	case string:
		t.addSystemLocked(message.CoreMessage{Role: message.RoleSystem, Content: message.TextContent(v)}, tag)
	case message.CoreMessage:
		v.Role = message.RoleSystem
		t.addSystemLocked(v, tag)
	case []string:
		for _, s := range v {
			t.addSystemLocked(message.CoreMessage{Role: message.RoleSystem, Content: message.TextContent(s)}, tag)
		}
	case []message.CoreMessage:
		for _, m := range v {
			m.Role = message.RoleSystem
			t.addSystemLocked(m, tag)
		}
	}
}

func (t *Timeline) addSystemLocked(m message.CoreMessage, tag string) {
	if m.Content.Empty() {
		return
	}
	fp := message.ContentFingerprint(m.Content)
	if tag == "" {
		for _, existing := range t.system {
			if message.ContentFingerprint(existing.Content) == fp {
				return
			}
		}
		t.system = append(t.system, m)
		return
	}
	list, seen := t.tagged[tag]
	for _, existing := range list {
		if message.ContentFingerprint(existing.Content) == fp {
			return
		}
	}
	if !seen {
		t.tagOrder = append(t.tagOrder, tag)
	}
	t.tagged[tag] = append(list, m)
}

// SystemMessages returns the untagged system messages, or those filed under
// tag when tag is non-empty.
func (t *Timeline) SystemMessages(tag string) []message.CoreMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tag == "" {
		return append([]message.CoreMessage(nil), t.system...)
	}
	return append([]message.CoreMessage(nil), t.tagged[tag]...)
}

func maxTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
