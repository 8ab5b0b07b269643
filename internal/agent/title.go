package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/petasbytes/recall-agent/internal/message"
)

const defaultTitleInstructions = `- you will generate a short title based on the first message a user begins a conversation with
- ensure it is not more than 80 characters long
- the title should be a summary of the user's message
- do not use quotes or colons
- the entire text you return will be used as the title`

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// retitle replaces the placeholder title with one generated from the most
// recent user message. Failures are logged and leave the title unchanged.
func (a *Agent) retitle(ctx context.Context, r *runState) {
	var last *message.Message
	for _, m := range r.input {
		if m.Role == message.RoleUser {
			last = m
		}
	}
	if last == nil {
		return
	}
	title, err := a.GenerateTitle(ctx, last, r.cfg.Threads.TitleInstructions)
	if err != nil {
		r.log.Warn().Err(err).Msg("title generation failed")
		return
	}
	if title == "" {
		return
	}
	th := r.thread.Clone()
	th.Title = title
	saved, err := a.memory.SaveThread(ctx, th)
	if err != nil {
		r.log.Warn().Err(err).Msg("saving generated title failed")
		return
	}
	r.thread = saved
	r.title = title
}

// GenerateTitle asks the model for a thread title summarising m. An empty
// instructions string selects the default title prompt.
func (a *Agent) GenerateTitle(ctx context.Context, m *message.Message, instructions string) (string, error) {
	if instructions == "" {
		instructions = defaultTitleInstructions
	}
	content, err := titleContent(m)
	if err != nil {
		return "", err
	}
	resp, err := a.model.Generate(ctx, ModelRequest{
		RunID:    a.newID(),
		ThreadID: m.ThreadID,
		Messages: []message.CoreMessage{
			{Role: message.RoleSystem, Content: message.TextContent(instructions)},
			{Role: message.RoleUser, Content: message.TextContent(content)},
		},
		MaxSteps: 1,
	})
	if err != nil {
		return "", fmt.Errorf("generate title: %w", err)
	}
	if resp == nil {
		return "", nil
	}
	return strings.TrimSpace(thinkBlock.ReplaceAllString(resp.Text, "")), nil
}

type titlePart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// titleContent renders the message parts as JSON, summarising file parts.
func titleContent(m *message.Message) (string, error) {
	var parts []titlePart
	for _, p := range m.Content.Parts {
		switch p.Type {
		case message.PartText:
			parts = append(parts, titlePart{Type: "text", Text: p.Text})
		case message.PartFile:
			data := p.Data
			if r := []rune(data); len(r) > 100 {
				data = string(r[:100])
			}
			parts = append(parts, titlePart{Type: "text", Text: fmt.Sprintf("User added %s file: %s", p.MimeType, data)})
		}
	}
	b, err := json.Marshal(parts)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
