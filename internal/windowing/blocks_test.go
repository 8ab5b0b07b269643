package windowing_test

import (
	"testing"

	"github.com/petasbytes/recall-agent/internal/message"
	"github.com/petasbytes/recall-agent/internal/windowing"
)

func TestGroupBlocks_Invariants(t *testing.T) {
	single := func(i int) windowing.Group {
		return windowing.Group{Kind: windowing.GroupSingleton, Start: i, End: i + 1}
	}
	tests := []struct {
		name string
		msgs []message.CoreMessage
		want []windowing.Group
	}{
		{
			name: "valid pair: one tool",
			msgs: []message.CoreMessage{
				Asst(TC("t1")),
				Tool(TR("t1", false)),
			},
			want: []windowing.Group{{Kind: windowing.GroupPair, Start: 0, End: 2}},
		},
		{
			name: "provider layout: user message with leading results and trailing text",
			msgs: []message.CoreMessage{
				Asst(TC("t1"), TC("t2")),
				User(TR("t2", false), TR("t1", false), T("done")),
			},
			want: []windowing.Group{{Kind: windowing.GroupPair, Start: 0, End: 2}},
		},
		{
			name: "invalid ordering: text before result",
			msgs: []message.CoreMessage{
				Asst(TC("t1")),
				User(T("oops"), TR("t1", false)),
			},
			want: []windowing.Group{single(0), single(1)},
		},
		{
			name: "parallel completeness missing (2 tools)",
			msgs: []message.CoreMessage{
				Asst(TC("t1"), TC("t2")),
				Tool(TR("t1", false)),
			},
			want: []windowing.Group{single(0), single(1)},
		},
		{
			name: "intervening message invalidates adjacency",
			msgs: []message.CoreMessage{
				Asst(TC("t1")),
				Intervening("note"),
				Tool(TR("t1", false)),
			},
			want: []windowing.Group{single(0), single(1), single(2)},
		},
		{
			name: "error tool-result treated same as non-error",
			msgs: []message.CoreMessage{
				Asst(TC("t1")),
				Tool(TR("t1", true)),
			},
			want: []windowing.Group{{Kind: windowing.GroupPair, Start: 0, End: 2}},
		},
		{
			name: "extra results: strict exclusion",
			msgs: []message.CoreMessage{
				Asst(TC("t1")),
				Tool(TR("t1", false), TR("t_extra", false)),
			},
			want: []windowing.Group{single(0), single(1)},
		},
		{
			name: "assistant with tool-call not followed by anything",
			msgs: []message.CoreMessage{Asst(TC("t1"))},
			want: []windowing.Group{single(0)},
		},
		{
			name: "no tools in assistant: both singletons",
			msgs: []message.CoreMessage{
				Asst(T("hello")),
				UserText("world"),
			},
			want: []windowing.Group{single(0), single(1)},
		},
		{
			name: "user string content after tool-call",
			msgs: []message.CoreMessage{
				Asst(TC("t1")),
				UserText("just text"),
			},
			want: []windowing.Group{single(0), single(1)},
		},
		{
			name: "result has irrelevant ID",
			msgs: []message.CoreMessage{
				Asst(TC("t1")),
				Tool(TR("tX", false)),
			},
			want: []windowing.Group{single(0), single(1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := windowing.GroupBlocks(tt.msgs)
			if !groupsEqual(got, tt.want) {
				t.Fatalf("unexpected groups. got=%v want=%v", got, tt.want)
			}
		})
	}
}
