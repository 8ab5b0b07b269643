package metrics_test

import (
	"testing"

	"github.com/petasbytes/recall-agent/internal/message"
	"github.com/petasbytes/recall-agent/internal/metrics"
)

func TestCountFeatures(t *testing.T) {
	msgs := []*message.Message{
		{Role: message.RoleUser, Content: message.Content{Parts: []message.Part{{Type: message.PartText, Text: "héllo world"}}}},
		{Role: message.RoleAssistant, Content: message.Content{Parts: []message.Part{
			{Type: message.PartStepStart},
			{Type: message.PartText, Text: "hi"},
			{Type: message.PartToolInvocation, ToolInvocation: &message.ToolInvocation{ToolCallID: "t1"}},
		}}},
	}

	f := metrics.CountFeatures(msgs)
	want := metrics.Features{Messages: 2, Parts: 3, Bytes: 14, Runes: 13, Words: 3}
	if f != want {
		t.Fatalf("unexpected features: got %+v want %+v", f, want)
	}
}

func TestCountFeatures_Empty(t *testing.T) {
	if f := metrics.CountFeatures(nil); f != (metrics.Features{}) {
		t.Fatalf("expected zero features, got %+v", f)
	}
	fields := metrics.CountFeatures(nil).Fields()
	if fields["messages"] != 0 {
		t.Fatalf("unexpected fields: %v", fields)
	}
}
