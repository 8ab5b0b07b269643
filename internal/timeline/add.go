package timeline

import (
	"github.com/petasbytes/recall-agent/internal/errs"
	"github.com/petasbytes/recall-agent/internal/message"
)

// Add ingests input with the given provenance. Input may be a string (a user
// turn), any of the message shapes by value or pointer, or a slice of them.
// Elements are applied in order; the first failure stops ingestion.
func (t *Timeline) Add(input any, source Source) error {
	if !source.valid() {
		return invalidSource(source)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.addAny(input, source)
}

// AddJSON ingests raw JSON holding one message or an array of messages in any
// supported shape.
func (t *Timeline) AddJSON(raw []byte, source Source) error {
	if !source.valid() {
		return invalidSource(source)
	}
	vals, err := message.DecodeJSON(raw)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return addEach(t, vals, source)
}

func (t *Timeline) addAny(input any, source Source) error {
	switch v := input.(type) {
	case nil:
		return nil
	case []any:
		return addEach(t, v, source)
	case []string:
		return addEach(t, v, source)
	case []message.CoreMessage:
		return addEach(t, v, source)
	case []message.Message:
		return addEach(t, v, source)
	case []*message.Message:
		return addEach(t, v, source)
	case []message.UIMessage:
		return addEach(t, v, source)
	case []message.LegacyMessage:
		return addEach(t, v, source)
	}
	m, err := t.normalize(input)
	if err != nil || m == nil {
		return err
	}
	return t.addOne(m, source)
}

// addEach applies items in order. A legacy message's position in items is
// its step number.
func addEach[T any](t *Timeline, items []T, source Source) error {
	for i, it := range items {
		var err error
		switch v := any(it).(type) {
		case message.LegacyMessage:
			err = t.addLegacy(v, i, source)
		case *message.LegacyMessage:
			if v != nil {
				err = t.addLegacy(*v, i, source)
			}
		default:
			err = t.addAny(it, source)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *Timeline) addLegacy(lm message.LegacyMessage, step int, source Source) error {
	if lm.Role == message.RoleSystem {
		return errs.InvalidMessage("system messages must use the role/content shape")
	}
	m, err := message.FromLegacyStep(lm, step)
	if err != nil {
		return err
	}
	return t.addOne(m, source)
}

// normalize converts one input into a canonical message. System input is
// routed to the system store and yields nil.
func (t *Timeline) normalize(input any) (*message.Message, error) {
	switch v := input.(type) {
	case string:
		return message.FromCore(message.CoreMessage{Role: message.RoleUser, Content: message.TextContent(v)})
	case message.CoreMessage:
		if v.Role == message.RoleSystem {
			t.addSystemLocked(v, "")
			return nil, nil
		}
		return message.FromCore(v)
	case *message.CoreMessage:
		if v == nil {
			return nil, nil
		}
		return t.normalize(*v)
	case message.Message:
		if v.Role == message.RoleSystem {
			return nil, errs.InvalidMessage("system messages must use the role/content shape")
		}
		return message.FromStorage(v)
	case *message.Message:
		if v == nil {
			return nil, nil
		}
		return t.normalize(*v)
	case message.LegacyMessage:
		if v.Role == message.RoleSystem {
			return nil, errs.InvalidMessage("system messages must use the role/content shape")
		}
		return message.FromLegacy(v)
	case *message.LegacyMessage:
		if v == nil {
			return nil, nil
		}
		return t.normalize(*v)
	case message.UIMessage:
		if v.Role == message.RoleSystem {
			return nil, errs.InvalidMessage("system messages must use the role/content shape")
		}
		return message.FromUI(v)
	case *message.UIMessage:
		if v == nil {
			return nil, nil
		}
		return t.normalize(*v)
	default:
		return nil, errs.InvalidMessage("unsupported message input %T", input)
	}
}

func (t *Timeline) checkIdentity(m *message.Message, source Source) error {
	if source == SourceMemory {
		return nil
	}
	if m.ThreadID != "" && t.threadID != "" && m.ThreadID != t.threadID {
		return errs.ThreadMismatch("threadId", t.threadID, m.ThreadID)
	}
	if m.ResourceID != "" && t.resourceID != "" && m.ResourceID != t.resourceID {
		return errs.ThreadMismatch("resourceId", t.resourceID, m.ResourceID)
	}
	return nil
}

func (t *Timeline) addOne(m *message.Message, source Source) error {
	if err := t.checkIdentity(m, source); err != nil {
		return err
	}
	if m.ThreadID == "" {
		m.ThreadID = t.threadID
	}
	if m.ResourceID == "" {
		m.ResourceID = t.resourceID
	}
	explicit := m.CreatedAt
	if m.ID == "" {
		m.ID = t.newID()
	}

	latest := t.latest()

	if ti, ok := m.SingleToolResult(); ok {
		if latest == nil || latest.Role != message.RoleAssistant || !resolveCall(latest, ti) {
			observe("result_dropped")
			return nil
		}
		latest.CreatedAt = maxTime(latest.CreatedAt, t.stamp(source, explicit))
		t.remark(latest, source)
		t.aliases[m.ID] = message.Fingerprint(m.Content.Parts)
		t.sortLocked()
		observe("result_resolved")
		return nil
	}

	if source == SourceMemory {
		for _, existing := range t.messages {
			if message.SameContent(existing, m) {
				observe("memory_dedup")
				return nil
			}
		}
	}

	idx := t.indexOf(m.ID)
	if idx >= 0 {
		if message.Equal(t.messages[idx], m) {
			return nil
		}
		if explicit.IsZero() {
			m.CreatedAt = t.messages[idx].CreatedAt
		} else {
			m.CreatedAt = t.stamp(source, explicit)
		}
		prependStepStart(m)
		t.messages[idx] = m
		t.provenance[m.ID] = source
		t.sortLocked()
		observe("replaced")
		return nil
	}
	if fp, ok := t.aliases[m.ID]; ok && fp == message.Fingerprint(m.Content.Parts) {
		return nil
	}

	m.CreatedAt = t.stamp(source, explicit)

	if t.shouldAppend(latest, m, source) {
		t.appendParts(latest, m)
		t.remark(latest, source)
		if m.ID != latest.ID {
			t.aliases[m.ID] = message.Fingerprint(m.Content.Parts)
		}
		t.sortLocked()
		observe("appended")
		return nil
	}

	prependStepStart(m)
	t.messages = append(t.messages, m)
	t.provenance[m.ID] = source
	t.sortLocked()
	observe("inserted")
	return nil
}

// shouldAppend decides whether m continues the latest assistant turn instead
// of starting a new message. A tool call joins only a tail that ends in an
// open call of the same step; other parts join a tail of the same type.
func (t *Timeline) shouldAppend(latest, m *message.Message, source Source) bool {
	if latest == nil || latest.Role != message.RoleAssistant || m.Role != message.RoleAssistant {
		return false
	}
	if latest.ThreadID != m.ThreadID || source == SourceMemory {
		return false
	}
	if s, ok := t.provenance[latest.ID]; ok && s == SourceMemory {
		return false
	}
	first, ok := firstContentType(m)
	if !ok {
		return false
	}
	if first == message.PartToolInvocation {
		tail, ok := lastInvocation(latest)
		next, _ := firstInvocation(m)
		if next != nil && next.State == message.ToolStateResult {
			return hasCall(latest, next.ToolCallID)
		}
		return ok && tail.Open() && next != nil && next.Step == tail.Step
	}
	last, _ := lastContentType(latest)
	return first == last
}

func (t *Timeline) appendParts(latest, m *message.Message) {
	for _, p := range m.Content.Parts {
		if p.Type == message.PartToolInvocation && p.ToolInvocation != nil && p.ToolInvocation.State == message.ToolStateResult {
			if resolveCall(latest, p.ToolInvocation) {
				continue
			}
			latest.Content.Parts = append(latest.Content.Parts, p)
			continue
		}
		if p.Type == message.PartStepStart {
			continue
		}
		latest.Content.Parts = append(latest.Content.Parts, p)
	}
	latest.CreatedAt = maxTime(latest.CreatedAt, m.CreatedAt)
	if m.Content.Content != "" {
		latest.Content.Content = m.Content.Content
	}
	if len(m.Content.Attachments) > 0 {
		latest.Content.Attachments = append(latest.Content.Attachments, m.Content.Attachments...)
	}
}

// remark records that a message changed because of new input, so a merged
// tail that was already saved gets written again.
func (t *Timeline) remark(m *message.Message, source Source) {
	if prev, ok := t.provenance[m.ID]; ok && prev == SourceMemory {
		return
	}
	if source.unsaved() {
		t.provenance[m.ID] = source
	}
}

// resolveCall marks the newest invocation in m with the same call id as
// resolved. It reports whether a matching invocation was found.
func resolveCall(m *message.Message, res *message.ToolInvocation) bool {
	for i := len(m.Content.Parts) - 1; i >= 0; i-- {
		p := &m.Content.Parts[i]
		if p.Type != message.PartToolInvocation || p.ToolInvocation == nil || p.ToolInvocation.ToolCallID != res.ToolCallID {
			continue
		}
		resolved := *p.ToolInvocation
		resolved.State = message.ToolStateResult
		resolved.Result = append([]byte(nil), res.Result...)
		if resolved.ToolName == "" {
			resolved.ToolName = res.ToolName
		}
		p.ToolInvocation = &resolved
		upsertInvocation(m, resolved)
		return true
	}
	return false
}

func upsertInvocation(m *message.Message, ti message.ToolInvocation) {
	for i := range m.Content.ToolInvocations {
		if m.Content.ToolInvocations[i].ToolCallID == ti.ToolCallID {
			m.Content.ToolInvocations[i] = ti
			return
		}
	}
	m.Content.ToolInvocations = append(m.Content.ToolInvocations, ti)
}

func prependStepStart(m *message.Message) {
	if m.Role != message.RoleAssistant {
		return
	}
	if len(m.Content.Parts) > 0 && m.Content.Parts[0].Type == message.PartStepStart {
		return
	}
	m.Content.Parts = append([]message.Part{{Type: message.PartStepStart}}, m.Content.Parts...)
}

func firstContentType(m *message.Message) (message.PartType, bool) {
	for _, p := range m.Content.Parts {
		if p.Type != message.PartStepStart {
			return p.Type, true
		}
	}
	return "", false
}

func lastContentType(m *message.Message) (message.PartType, bool) {
	for i := len(m.Content.Parts) - 1; i >= 0; i-- {
		if p := m.Content.Parts[i]; p.Type != message.PartStepStart {
			return p.Type, true
		}
	}
	return "", false
}

// lastInvocation returns the tool invocation ending m's content, if any.
func lastInvocation(m *message.Message) (*message.ToolInvocation, bool) {
	for i := len(m.Content.Parts) - 1; i >= 0; i-- {
		p := m.Content.Parts[i]
		if p.Type == message.PartStepStart {
			continue
		}
		if p.Type == message.PartToolInvocation && p.ToolInvocation != nil {
			return p.ToolInvocation, true
		}
		return nil, false
	}
	return nil, false
}

func firstInvocation(m *message.Message) (*message.ToolInvocation, bool) {
	for _, p := range m.Content.Parts {
		if p.Type == message.PartToolInvocation && p.ToolInvocation != nil {
			return p.ToolInvocation, true
		}
	}
	return nil, false
}

func hasCall(m *message.Message, id string) bool {
	for _, p := range m.Content.Parts {
		if p.ToolInvocation != nil && p.ToolInvocation.ToolCallID == id {
			return true
		}
	}
	return false
}
