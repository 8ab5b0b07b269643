package tools_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petasbytes/recall-agent/tools"
)

func def(name, desc string) tools.ToolDefinition {
	return tools.ToolDefinition{Name: name, Description: desc}
}

func TestMerge_LaterSetWinsKeepsPosition(t *testing.T) {
	assigned := []tools.ToolDefinition{def("search", "assigned"), def("calc", "assigned")}
	memoryTools := []tools.ToolDefinition{def("updateWorkingMemory", "memory")}
	client := []tools.ToolDefinition{def("search", "client")}

	got := tools.Merge(assigned, memoryTools, client)

	require.Len(t, got, 3)
	assert.Equal(t, []string{"search", "calc", "updateWorkingMemory"}, tools.Names(got))
	assert.Equal(t, "client", got[0].Description)
}

func TestMerge_SkipsUnnamed(t *testing.T) {
	got := tools.Merge([]tools.ToolDefinition{def("", "x"), def("a", "y")})
	assert.Equal(t, []string{"a"}, tools.Names(got))
}

func TestFind(t *testing.T) {
	defs := []tools.ToolDefinition{def("a", ""), def("b", "bee")}

	d, ok := tools.Find(defs, "b")
	require.True(t, ok)
	assert.Equal(t, "bee", d.Description)

	_, ok = tools.Find(defs, "zzz")
	assert.False(t, ok)
}

func TestFromWorkflow(t *testing.T) {
	var gotRunID string
	w := tools.Workflow{
		Name: "lookup",
		Run: func(ctx context.Context, runID string, input json.RawMessage) (any, error) {
			gotRunID = runID
			return map[string]string{"echo": string(input)}, nil
		},
	}
	d := tools.FromWorkflow(w)

	assert.Equal(t, "workflow-lookup", d.Name)
	assert.Equal(t, "Run the lookup workflow.", d.Description)

	out, err := d.Execute(context.Background(), json.RawMessage(`{"q":1}`), tools.ExecContext{})
	require.NoError(t, err)
	res, ok := out.(tools.WorkflowResult)
	require.True(t, ok)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, gotRunID, res.RunID)
	assert.Equal(t, map[string]string{"echo": `{"q":1}`}, res.Result)
}

func TestFromWorkflow_ErrorWrapped(t *testing.T) {
	boom := errors.New("boom")
	d := tools.FromWorkflow(tools.Workflow{
		Name: "w",
		Run: func(context.Context, string, json.RawMessage) (any, error) {
			return nil, boom
		},
	})
	_, err := d.Execute(context.Background(), nil, tools.ExecContext{})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "workflow w")
}
