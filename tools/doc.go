// Package tools defines the tool contract exposed to the language model.
//
// Includes:
//   - ToolDefinition: name, description, JSON input schema, Execute handler.
//   - GenerateSchema[T](): derive JSON Schema from Go structs.
//   - Merge: combine assigned, memory, caller-supplied and workflow tool sets.
//   - FromWorkflow: expose a workflow as a callable tool.
//   - Invariants: tool_use and its corresponding tool_result remain adjacent within a turn
package tools
