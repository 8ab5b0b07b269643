package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"
)

// WorkflowPrefix is prepended to a workflow's name when it is exposed as a tool.
const WorkflowPrefix = "workflow-"

// Workflow is a named multi-step routine the agent can invoke like a tool.
type Workflow struct {
	Name        string
	Description string
	InputSchema anthropic.ToolInputSchemaParam
	Run         func(ctx context.Context, runID string, input json.RawMessage) (any, error)
}

// WorkflowResult is what the model sees after a workflow tool call.
type WorkflowResult struct {
	RunID  string `json:"runId"`
	Result any    `json:"result"`
}

// FromWorkflow exposes w as a tool. Each call starts a fresh workflow run.
func FromWorkflow(w Workflow) ToolDefinition {
	desc := w.Description
	if desc == "" {
		desc = fmt.Sprintf("Run the %s workflow.", w.Name)
	}
	return ToolDefinition{
		Name:        WorkflowPrefix + w.Name,
		Description: desc,
		InputSchema: w.InputSchema,
		Execute: func(ctx context.Context, input json.RawMessage, _ ExecContext) (any, error) {
			if w.Run == nil {
				return nil, fmt.Errorf("workflow %s has no run function", w.Name)
			}
			runID := uuid.NewString()
			out, err := w.Run(ctx, runID, input)
			if err != nil {
				return nil, fmt.Errorf("workflow %s: %w", w.Name, err)
			}
			return WorkflowResult{RunID: runID, Result: out}, nil
		},
	}
}

// FromWorkflows converts every workflow.
func FromWorkflows(ws []Workflow) []ToolDefinition {
	out := make([]ToolDefinition, 0, len(ws))
	for _, w := range ws {
		out = append(out, FromWorkflow(w))
	}
	return out
}
