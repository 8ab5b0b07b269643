package runner

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/petasbytes/recall-agent/internal/message"
)

var emptyInput = json.RawMessage(`{}`)

// toolCall is a tool_use block from a response.
type toolCall struct {
	id    string
	name  string
	input json.RawMessage
}

// toParams renders core messages as API turns. Tool messages become user
// turns carrying tool_result blocks.
func toParams(msgs []message.CoreMessage) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		blocks := toBlocks(m.Content)
		if len(blocks) == 0 {
			continue
		}
		switch m.Role {
		case message.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		case message.RoleUser, message.RoleTool:
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out
}

func toBlocks(c message.CoreContent) []anthropic.ContentBlockParamUnion {
	if c.IsString() {
		if c.Text == "" {
			return nil
		}
		return []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(c.Text)}
	}
	out := make([]anthropic.ContentBlockParamUnion, 0, len(c.Parts))
	for _, p := range c.Parts {
		switch p.Type {
		case message.CoreText:
			if p.Text != "" {
				out = append(out, anthropic.NewTextBlock(p.Text))
			}
		case message.CoreImage:
			out = append(out, imageBlock(payload(p.Image, p.Binary), p.MimeType))
		case message.CoreFile:
			out = append(out, fileBlock(payload(p.Data, p.Binary), p.MimeType))
		case message.CoreReasoning:
			out = append(out, anthropic.NewThinkingBlock(p.Signature, p.Text))
		case message.CoreRedactedReasoning:
			out = append(out, anthropic.NewRedactedThinkingBlock(p.Data))
		case message.CoreToolCall:
			input := p.Args
			if len(input) == 0 {
				input = emptyInput
			}
			out = append(out, anthropic.NewToolUseBlock(p.ToolCallID, input, p.ToolName))
		case message.CoreToolResult:
			out = append(out, anthropic.NewToolResultBlock(p.ToolCallID, resultText(p.Result), p.IsError))
		}
	}
	return out
}

func payload(data string, binary []byte) string {
	if data == "" && binary != nil {
		return base64.StdEncoding.EncodeToString(binary)
	}
	return data
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

func imageBlock(data, mime string) anthropic.ContentBlockParamUnion {
	if isURL(data) {
		return anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: data})
	}
	if mime == "" {
		mime = "image/png"
	}
	return anthropic.NewImageBlockBase64(mime, data)
}

// fileBlock sends images as images, PDFs and plain text as documents, and
// anything else as a text note.
func fileBlock(data, mime string) anthropic.ContentBlockParamUnion {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return imageBlock(data, mime)
	case mime == "application/pdf" && !isURL(data):
		return anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{Data: data})
	case strings.HasPrefix(mime, "text/") && !isURL(data):
		if b, err := base64.StdEncoding.DecodeString(data); err == nil {
			data = string(b)
		}
		return anthropic.NewDocumentBlock(anthropic.PlainTextSourceParam{Data: data})
	default:
		return anthropic.NewTextBlock("[attached " + mime + " file: " + data + "]")
	}
}

// resultText unquotes JSON string results and passes anything else through
// as raw JSON.
func resultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// fromContent converts response blocks into core parts. It also returns the
// text of the response and the tool calls it requested.
func fromContent(blocks []anthropic.ContentBlockUnion) ([]message.CorePart, string, []toolCall) {
	var (
		parts []message.CorePart
		text  strings.Builder
		calls []toolCall
	)
	for _, block := range blocks {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			parts = append(parts, message.CorePart{Type: message.CoreText, Text: v.Text})
			text.WriteString(v.Text)
		case anthropic.ThinkingBlock:
			parts = append(parts, message.CorePart{Type: message.CoreReasoning, Text: v.Thinking, Signature: v.Signature})
		case anthropic.RedactedThinkingBlock:
			parts = append(parts, message.CorePart{Type: message.CoreRedactedReasoning, Data: v.Data})
		case anthropic.ToolUseBlock:
			// pass the raw JSON input through to the tool implementation
			input := json.RawMessage(v.JSON.Input.Raw())
			if len(input) == 0 {
				input = emptyInput
			}
			parts = append(parts, message.CorePart{Type: message.CoreToolCall, ToolCallID: v.ID, ToolName: v.Name, Args: input})
			calls = append(calls, toolCall{id: v.ID, name: v.Name, input: input})
		}
	}
	return parts, text.String(), calls
}
