// Package runner is the language-model collaborator: it sends prompts to the
// Anthropic Messages API and runs the multi-step tool loop.
//
// Invariant:
//   - tool_use and the corresponding tool_result are kept adjacent within a turn
//     to preserve execution context and simplify follow-up reasoning.
//
// Flow:
//
//	user(text) -> assistant(tool_use) -> user(tool_result) -> assistant(text)
//
// Every call is preceded by a budgeted, pair-safe window over the
// conversation (see internal/windowing).
package runner
