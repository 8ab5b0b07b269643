package windowing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/petasbytes/recall-agent/internal/message"
	"github.com/petasbytes/recall-agent/internal/windowing"
)

func textMsg(id string, role message.Role, text string) *message.Message {
	return &message.Message{
		ID:   id,
		Role: role,
		Content: message.Content{
			Format: message.FormatVersion,
			Parts:  []message.Part{{Type: message.PartText, Text: text}},
		},
	}
}

func ids(msgs []*message.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func TestTokenLimiter_KeepsNewestSuffix(t *testing.T) {
	remembered := []*message.Message{
		textMsg("a", message.RoleUser, "aaaaaaaaaa"),      // 14
		textMsg("b", message.RoleAssistant, "bbbbbbbbbb"), // 14
		textMsg("c", message.RoleUser, "cccccc"),          // 10
	}
	newMsgs := []*message.Message{textMsg("n", message.RoleUser, "nn")} // 6

	// 6 (new) + 10 (c) + 14 (b) = 30; a would push it to 44.
	got := windowing.NewTokenLimiter(30).Process(remembered, newMsgs, "")

	assert.Equal(t, []string{"b", "c"}, ids(got))
}

func TestTokenLimiter_SystemTextConsumesBudget(t *testing.T) {
	remembered := []*message.Message{
		textMsg("a", message.RoleUser, "aaaaaa"),      // 10
		textMsg("b", message.RoleAssistant, "bbbbbb"), // 10
	}
	// system "ssssss" = 10, leaving 10 for history.
	got := windowing.NewTokenLimiter(20).Process(remembered, nil, "ssssss")

	assert.Equal(t, []string{"b"}, ids(got))
}

func TestTokenLimiter_NewMessagesOverLimitDropAllHistory(t *testing.T) {
	remembered := []*message.Message{textMsg("a", message.RoleUser, "a")}
	newMsgs := []*message.Message{textMsg("n", message.RoleUser, "nnnnnnnnnnnnnnnnnnnn")}

	got := windowing.NewTokenLimiter(10).Process(remembered, newMsgs, "")

	assert.Empty(t, got)
}

func TestTokenLimiter_DisabledPassesThrough(t *testing.T) {
	remembered := []*message.Message{textMsg("a", message.RoleUser, "a")}

	assert.Equal(t, remembered, windowing.NewTokenLimiter(0).Process(remembered, nil, "sys"))
	var nilLimiter *windowing.TokenLimiter
	assert.Equal(t, remembered, nilLimiter.Process(remembered, nil, "sys"))
}
