package windowing_test

import (
	"testing"

	"github.com/petasbytes/recall-agent/internal/message"
	"github.com/petasbytes/recall-agent/internal/windowing"
)

func TestPrepareSendWindow_BudgetRespected_OrderPreserved(t *testing.T) {
	// Oldest -> newest
	msgs := []message.CoreMessage{
		User(T("old")),           // G0: 3 + 4 = 7
		Asst(TC("a")),            // G1: 4
		Tool(TRString("a", "r")), //     1 + 4 = 5
		User(T("tail")),          // G2: 4 + 4 = 8
	}
	budget := 17 // G2(8) + G1(9) = 17

	window, stats := windowing.PrepareSendWindow(msgs, budget, windowing.HeuristicCounter{})

	if stats.Budget != budget || stats.Total != 17 || stats.IncludedGroups != 2 || stats.OverBudgetNewest {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(window) != 3 {
		t.Fatalf("unexpected window length: got %d want=3", len(window))
	}
	if window[0].Role != message.RoleAssistant || window[1].Role != message.RoleTool || window[2].Role != message.RoleUser {
		t.Fatalf("unexpected roles order in window: %+v", window)
	}
}

func TestPrepareSendWindow_NewestGroupOverBudget(t *testing.T) {
	msgs := []message.CoreMessage{
		User(T("old")),                // G0: 7
		Asst(TC("a")),                 // G1 part: 4
		Tool(TRString("a", "xxxxxx")), // G1 part: 6 + 4 = 10 => G1 total 14 (newest)
	}
	budget := 10

	window, stats := windowing.PrepareSendWindow(msgs, budget, windowing.HeuristicCounter{})

	if len(window) != 0 {
		t.Fatalf("expected empty window; got=%d", len(window))
	}
	if !stats.OverBudgetNewest || stats.IncludedGroups != 0 || stats.SkippedGroups == 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestPrepareSendWindow_NoCapacityBudget_WithGroups(t *testing.T) {
	msgs := []message.CoreMessage{User(T("x"))}
	window, stats := windowing.PrepareSendWindow(msgs, 0, windowing.HeuristicCounter{})

	if len(window) != 0 || !stats.OverBudgetNewest || stats.SkippedGroups != 1 || stats.IncludedGroups != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestPrepareSendWindow_EmptyMsgs(t *testing.T) {
	window, stats := windowing.PrepareSendWindow(nil, 123, windowing.HeuristicCounter{})
	if window != nil || stats.Budget != 123 || stats.Total != 0 || stats.OverBudgetNewest {
		t.Fatalf("unexpected result: window=%v stats=%+v", window, stats)
	}
}

func TestPrepareSendWindow_AllFitIncludingOldest(t *testing.T) {
	// G0: 6+4=10, G1: 3+4=7, G2: 3+4=7 => 24
	msgs := []message.CoreMessage{
		User(T("oldest")),
		User(T("mid")),
		User(T("new")),
	}

	window, stats := windowing.PrepareSendWindow(msgs, 24, windowing.HeuristicCounter{})

	if stats.OverBudgetNewest || stats.IncludedGroups != 3 || stats.SkippedGroups != 0 || stats.Total != 24 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(window) != len(msgs) {
		t.Fatalf("window size: got=%d want=%d", len(window), len(msgs))
	}
}

func TestPrepareSendWindow_ExactlyOneOlderAlsoFits(t *testing.T) {
	// G0: 1+4=5, G1: 4+4=8, G2: 2+4=6 (newest); budget 14 keeps G1+G2.
	msgs := []message.CoreMessage{
		User(T("a")),
		User(T("bbbb")),
		User(T("cc")),
	}
	counter := windowing.HeuristicCounter{}

	window, stats := windowing.PrepareSendWindow(msgs, 14, counter)

	if stats.IncludedGroups != 2 || stats.SkippedGroups != 1 {
		t.Fatalf("IncludedGroups/SkippedGroups mismatch: got inc=%d skip=%d", stats.IncludedGroups, stats.SkippedGroups)
	}
	if len(window) != 2 || window[0].Content.String() != "bbbb" {
		t.Fatalf("unexpected window: %+v", window)
	}

	gotCost := 0
	for _, m := range window {
		gotCost += counter.CountMessage(m)
	}
	if gotCost != 14 {
		t.Fatalf("total cost mismatch: got=%d want=14", gotCost)
	}
}

func TestPrepareSendWindow_DropsOrphanedLeadingResult(t *testing.T) {
	// The assistant call (t1) and its result are not a valid pair because
	// the result message also carries an unknown id; the window cut lands on
	// the orphaned tool message, which must not open the window.
	msgs := []message.CoreMessage{
		User(T("zzzzzzzzzzzzzzzzzzzz")),
		Asst(TC("t1")),
		Tool(TR("t1", false), TR("tX", false)),
		User(T("q")),
	}
	// tool(8) + user(5) = 13 fits; adding the assistant singleton (4) would be 17.
	window, stats := windowing.PrepareSendWindow(msgs, 13, windowing.HeuristicCounter{})

	if len(window) != 1 || window[0].Role != message.RoleUser {
		t.Fatalf("unexpected window: %+v", window)
	}
	if stats.IncludedGroups != 1 || stats.Total != 5 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
