package runner

import (
	"context"
	"encoding/json"
	"time"

	"github.com/petasbytes/recall-agent/internal/agent"
	"github.com/petasbytes/recall-agent/internal/message"
	"github.com/petasbytes/recall-agent/internal/metrics"
	"github.com/petasbytes/recall-agent/internal/telemetry"
	"github.com/petasbytes/recall-agent/tools"
)

// execTool runs one requested tool and returns its tool-result part. Tool
// failures go back to the model as error results, never up the stack.
func (r *Runner) execTool(ctx context.Context, req agent.ModelRequest, c toolCall) message.CorePart {
	// Helper to emit a tool_exec event
	emit := func(durationMs int64, outputSize int, errStr string) {
		fields := map[string]any{
			"tool_name":   c.name,
			"duration_ms": durationMs,
			"input_size":  len(c.input),
			"output_size": outputSize,
			"run_id":      req.RunID,
			"thread_id":   req.ThreadID,
		}
		if errStr != "" {
			fields["error"] = errStr
		} else {
			fields["error"] = nil
		}
		telemetry.Emit("tool_exec", fields)
	}
	failed := func(text string) message.CorePart {
		b, _ := json.Marshal(text)
		return message.CorePart{Type: message.CoreToolResult, ToolCallID: c.id, ToolName: c.name, Result: b, IsError: true}
	}

	start := time.Now()
	def, ok := tools.Find(req.Tools, c.name)
	if !ok || def.Execute == nil {
		emit(time.Since(start).Milliseconds(), 0, "tool not found")
		metrics.ToolCallsTotal.WithLabelValues(c.name, "not_found").Inc()
		return failed("tool not found")
	}

	res, err := def.Execute(ctx, c.input, tools.ExecContext{
		ThreadID:   req.ThreadID,
		ResourceID: req.ResourceID,
		RunID:      req.RunID,
		ToolCallID: c.id,
	})
	var raw []byte
	if err == nil {
		raw, err = json.Marshal(res)
	}
	if err != nil {
		// a generic error string keeps raw payloads out of telemetry
		emit(time.Since(start).Milliseconds(), 0, "tool error")
		metrics.ToolCallsTotal.WithLabelValues(c.name, "error").Inc()
		r.log.Debug().Err(err).Str("tool", c.name).Msg("tool failed")
		return failed(err.Error())
	}
	emit(time.Since(start).Milliseconds(), len(tools.ResultText(res)), "")
	metrics.ToolCallsTotal.WithLabelValues(c.name, "ok").Inc()
	return message.CorePart{Type: message.CoreToolResult, ToolCallID: c.id, ToolName: c.name, Result: raw}
}
