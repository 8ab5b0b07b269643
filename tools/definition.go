package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/invopop/jsonschema"
)

// ExecContext carries the request identity into a tool call.
type ExecContext struct {
	ThreadID   string
	ResourceID string
	RunID      string
	ToolCallID string
}

// ExecuteFunc runs a tool with the raw JSON input produced by the model.
// The returned value is sent back to the model as the tool result.
type ExecuteFunc func(ctx context.Context, input json.RawMessage, ec ExecContext) (any, error)

type ToolDefinition struct {
	Name        string                         `json:"name"`
	Description string                         `json:"description"`
	InputSchema anthropic.ToolInputSchemaParam `json:"input_schema"`
	Execute     ExecuteFunc                    `json:"-"`
}

// Param renders d as an Anthropic tool parameter.
func (d ToolDefinition) Param() anthropic.ToolUnionParam {
	return anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
		Name:        d.Name,
		Description: anthropic.String(d.Description),
		InputSchema: d.InputSchema,
	}}
}

// GenerateSchema reflects T into the input schema the Messages API expects.
func GenerateSchema[T any]() anthropic.ToolInputSchemaParam {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	return anthropic.ToolInputSchemaParam{
		Properties: schema.Properties,
		Required:   schema.Required,
	}
}

// Decode unmarshals a tool input into T, wrapping errors with the tool name.
func Decode[T any](name string, input json.RawMessage) (T, error) {
	var in T
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return in, fmt.Errorf("%s: invalid input: %w", name, err)
	}
	return in, nil
}

// ResultText renders a tool result as the string content of a tool_result block.
func ResultText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case json.RawMessage:
		return string(t)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
