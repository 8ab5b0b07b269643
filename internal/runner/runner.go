package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/petasbytes/recall-agent/internal/agent"
	"github.com/petasbytes/recall-agent/internal/message"
	"github.com/petasbytes/recall-agent/internal/metrics"
	"github.com/petasbytes/recall-agent/internal/telemetry"
	"github.com/petasbytes/recall-agent/internal/windowing"
)

const (
	DefaultTokenBudget = 8000
	DefaultMaxTokens   = 1024
)

// Runner is the language-model collaborator backed by the Anthropic
// Messages API.
type Runner struct {
	client    *anthropic.Client
	model     anthropic.Model
	tiers     map[string]anthropic.Model
	budget    int
	maxTokens int64
	counter   windowing.TokenCounter
	log       zerolog.Logger
	newID     func() string
}

type Option func(*Runner)

func WithModel(m anthropic.Model) Option {
	return func(r *Runner) {
		if m != "" {
			r.model = m
		}
	}
}

// WithTokenBudget bounds the estimated size of every request window.
func WithTokenBudget(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.budget = n
		}
	}
}

func WithMaxTokens(n int64) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxTokens = n
		}
	}
}

func WithCounter(c windowing.TokenCounter) Option {
	return func(r *Runner) {
		if c != nil {
			r.counter = c
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithIDGenerator overrides how response message ids are minted.
func WithIDGenerator(fn func() string) Option {
	return func(r *Runner) {
		if fn != nil {
			r.newID = fn
		}
	}
}

func New(client *anthropic.Client, model anthropic.Model, opts ...Option) *Runner {
	r := &Runner{
		client:    client,
		model:     model,
		budget:    DefaultTokenBudget,
		maxTokens: DefaultMaxTokens,
		counter:   windowing.HeuristicCounter{},
		log:       zerolog.Nop(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) Name() string { return string(r.model) }

// Generate runs up to req.MaxSteps model calls. A step whose response asks
// for tools executes them and feeds the results into the next call.
func (r *Runner) Generate(ctx context.Context, req agent.ModelRequest) (*agent.ModelResponse, error) {
	maxSteps := req.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 1
	}
	ctx = withSelection(ctx, r.model)
	system, conv := splitSystem(req.Messages)
	toolParams := make([]anthropic.ToolUnionParam, 0, len(req.Tools))
	for _, t := range req.Tools {
		toolParams = append(toolParams, t.Param())
	}

	out := &agent.ModelResponse{}
	for step := 0; step < maxSteps; step++ {
		msg, err := r.send(ctx, req, step, system, conv, toolParams)
		if err != nil {
			return nil, err
		}

		parts, text, calls := fromContent(msg.Content)
		var stepMsgs []message.CoreMessage
		if len(parts) > 0 {
			stepMsgs = append(stepMsgs, message.CoreMessage{ID: r.newID(), Role: message.RoleAssistant, Content: message.PartsContent(parts...)})
		}
		var results []message.CorePart
		for _, c := range calls {
			results = append(results, r.execTool(ctx, req, c))
		}
		if len(results) > 0 {
			stepMsgs = append(stepMsgs, message.CoreMessage{ID: r.newID(), Role: message.RoleTool, Content: message.PartsContent(results...)})
		}

		finish := string(msg.StopReason)
		usage := agent.Usage{InputTokens: msg.Usage.InputTokens, OutputTokens: msg.Usage.OutputTokens}
		metrics.ModelStepsTotal.WithLabelValues(finish).Inc()
		metrics.TokensTotal.WithLabelValues("input").Add(float64(usage.InputTokens))
		metrics.TokensTotal.WithLabelValues("output").Add(float64(usage.OutputTokens))

		out.Messages = append(out.Messages, stepMsgs...)
		out.Text = text
		out.FinishReason = finish
		out.Steps = step + 1
		out.Usage.Add(usage)

		r.log.Debug().
			Str("run_id", req.RunID).
			Int("step", step).
			Str("finish_reason", finish).
			Int("tool_calls", len(calls)).
			Msg("model step finished")

		if req.OnStepFinish != nil {
			sr := agent.StepResult{Index: step, Messages: stepMsgs, Text: text, FinishReason: finish, Usage: usage}
			if err := req.OnStepFinish(ctx, sr); err != nil {
				return nil, err
			}
		}
		if len(results) == 0 || msg.StopReason != anthropic.StopReasonToolUse {
			break
		}
		conv = append(conv, stepMsgs...)
	}
	return out, nil
}

// send windows conv to the token budget and makes one API call.
func (r *Runner) send(ctx context.Context, req agent.ModelRequest, step int, system string, conv []message.CoreMessage, toolParams []anthropic.ToolUnionParam) (*anthropic.Message, error) {
	model := r.modelFor(ctx)
	window, stats := windowing.PrepareSendWindow(conv, r.budget, r.counter)
	telemetry.Emit("window_prepared", map[string]any{
		"run_id":             req.RunID,
		"thread_id":          req.ThreadID,
		"step":               step,
		"model":              string(model),
		"budget":             stats.Budget,
		"total_estimated":    stats.Total,
		"included_groups":    stats.IncludedGroups,
		"skipped_groups":     stats.SkippedGroups,
		"over_budget_newest": stats.OverBudgetNewest,
	})

	// The newest group is the turn being answered and is never truncated.
	if stats.OverBudgetNewest {
		return nil, fmt.Errorf("windowing: newest group exceeds token budget %d; raise AGT_TOKEN_BUDGET", r.budget)
	}

	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: r.maxTokens,
		Messages:  toParams(window),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(toolParams) > 0 {
		params.Tools = toolParams
	}

	if telemetry.PersistPayloadsEnabled() {
		if b, err := json.Marshal(params); err == nil {
			telemetry.PersistPayload(req.RunID, step, "request", b)
		}
	}
	msg, err := r.client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}
	telemetry.PersistPayload(req.RunID, step, "response", []byte(msg.RawJSON()))
	return msg, nil
}

// splitSystem separates system messages, joined into one prompt, from the
// conversation.
func splitSystem(msgs []message.CoreMessage) (string, []message.CoreMessage) {
	var system []string
	conv := make([]message.CoreMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == message.RoleSystem {
			if s := m.Content.String(); s != "" {
				system = append(system, s)
			}
			continue
		}
		conv = append(conv, m)
	}
	return strings.Join(system, "\n\n"), conv
}

var _ agent.Model = (*Runner)(nil)
