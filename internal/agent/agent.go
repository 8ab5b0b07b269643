package agent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/petasbytes/recall-agent/internal/message"
	"github.com/petasbytes/recall-agent/internal/metrics"
	"github.com/petasbytes/recall-agent/internal/savequeue"
	"github.com/petasbytes/recall-agent/internal/telemetry"
	"github.com/petasbytes/recall-agent/memory"
	"github.com/petasbytes/recall-agent/tools"
)

const (
	DefaultMaxSteps = 5

	modeGenerate = "generate"
	modeStream   = "stream"
)

// Agent binds a model to instructions, tools and an optional memory.
type Agent struct {
	name         string
	instructions string
	model        Model

	memory     Memory
	queue      *savequeue.Manager
	tools      []tools.ToolDefinition
	workflows  []tools.Workflow
	evaluators []Evaluator
	memCfg     memory.ThreadConfig
	maxSteps   int

	log    zerolog.Logger
	tracer trace.Tracer
	newID  func() string
	now    func() time.Time
}

type Option func(*Agent)

// WithMemory enables durable history. Without a queue option the agent builds
// a save queue with default timings over m.
func WithMemory(m Memory) Option {
	return func(a *Agent) { a.memory = m }
}

func WithQueue(q *savequeue.Manager) Option {
	return func(a *Agent) { a.queue = q }
}

func WithTools(defs ...tools.ToolDefinition) Option {
	return func(a *Agent) { a.tools = append(a.tools, defs...) }
}

// WithWorkflows exposes workflows to the model as "workflow-<name>" tools.
func WithWorkflows(ws ...tools.Workflow) Option {
	return func(a *Agent) { a.workflows = append(a.workflows, ws...) }
}

func WithEvaluators(es ...Evaluator) Option {
	return func(a *Agent) { a.evaluators = append(a.evaluators, es...) }
}

// WithMemoryConfig sets agent-level memory behaviour. Request options are
// overlaid on it, and the store defaults fill what both leave zero.
func WithMemoryConfig(cfg memory.ThreadConfig) Option {
	return func(a *Agent) { a.memCfg = cfg }
}

func WithMaxSteps(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxSteps = n
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(a *Agent) { a.log = l }
}

func WithTracer(t trace.Tracer) Option {
	return func(a *Agent) {
		if t != nil {
			a.tracer = t
		}
	}
}

// WithIDGenerator overrides how run and message ids are minted.
func WithIDGenerator(fn func() string) Option {
	return func(a *Agent) {
		if fn != nil {
			a.newID = fn
		}
	}
}

func WithClock(fn func() time.Time) Option {
	return func(a *Agent) {
		if fn != nil {
			a.now = fn
		}
	}
}

// New returns an agent. model is required.
func New(name, instructions string, model Model, opts ...Option) *Agent {
	a := &Agent{
		name:         name,
		instructions: instructions,
		model:        model,
		maxSteps:     DefaultMaxSteps,
		log:          zerolog.Nop(),
		tracer:       otel.Tracer("github.com/petasbytes/recall-agent/internal/agent"),
		newID:        uuid.NewString,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.memory != nil && a.queue == nil {
		a.queue = savequeue.New(a.memory, savequeue.WithLogger(a.log))
	}
	return a
}

func (a *Agent) Name() string { return a.name }

// Options are per-request settings.
type Options struct {
	ThreadID   string
	ResourceID string
	// RunID is minted when empty.
	RunID string
	// Context holds messages added with provenance "context": visible to
	// the model, never persisted.
	Context any
	// Toolsets and ClientTools are merged over the agent's tools; later
	// definitions replace earlier ones with the same name.
	Toolsets    [][]tools.ToolDefinition
	ClientTools []tools.ToolDefinition
	// Memory overrides the agent's memory configuration for this request.
	Memory         memory.ThreadConfig
	ThreadMetadata map[string]any
	// SavePerStep schedules a debounced save after every model step. Only
	// Stream honours it.
	SavePerStep  bool
	MaxSteps     int
	Instructions string
	OnStepFinish StepFunc
}

// Result is the outcome of a request.
type Result struct {
	RunID        string
	ThreadID     string
	ResourceID   string
	Text         string
	Object       json.RawMessage
	Messages     []message.CoreMessage
	Usage        Usage
	FinishReason string
	Steps        int
	// Title is set when this request generated the thread title.
	Title  string
	Thread *memory.Thread
	// UI is the full conversation as seen by this request, in UI shape.
	UI []message.UIMessage
}

// Generate runs one request to completion.
func (a *Agent) Generate(ctx context.Context, input any, opts Options) (*Result, error) {
	return a.run(ctx, modeGenerate, input, opts)
}

// Stream runs one request and reports every model step through
// opts.OnStepFinish as it finishes. With opts.SavePerStep each step is also
// appended to the timeline and a debounced save is scheduled.
func (a *Agent) Stream(ctx context.Context, input any, opts Options) (*Result, error) {
	return a.run(ctx, modeStream, input, opts)
}

func (a *Agent) run(ctx context.Context, mode string, input any, opts Options) (res *Result, err error) {
	start := a.now()
	if opts.RunID == "" {
		opts.RunID = a.newID()
	}
	ctx = telemetry.WithRunID(ctx, opts.RunID)
	if opts.ThreadID != "" {
		ctx = telemetry.WithThreadID(ctx, opts.ThreadID)
	}
	ctx, span := a.tracer.Start(ctx, "agent."+mode, trace.WithAttributes(
		attribute.String("agent.name", a.name),
		attribute.String("run.id", opts.RunID),
		attribute.String("thread.id", opts.ThreadID),
		attribute.String("resource.id", opts.ResourceID),
	))
	log := a.log.With().Str("run_id", opts.RunID).Str("thread_id", opts.ThreadID).Str("mode", mode).Logger()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.AgentRequestsTotal.WithLabelValues(mode, status).Inc()
		metrics.AgentRequestDuration.WithLabelValues(mode).Observe(a.now().Sub(start).Seconds())
		span.End()
	}()

	r, err := a.before(ctx, input, opts)
	if err != nil {
		log.Debug().Err(err).Msg("pre-phase failed")
		return nil, err
	}
	r.log = log
	log.Debug().Int("prompt_messages", len(r.prompt)).Int("tools", len(r.tools)).Bool("stateless", r.stateless).Msg("pre-phase done")

	resp, err := a.call(ctx, r, opts, mode == modeStream && opts.SavePerStep)
	if err != nil {
		log.Debug().Err(err).Msg("model call failed")
		return nil, err
	}

	if err := a.after(ctx, r, resp); err != nil {
		log.Debug().Err(err).Msg("post-phase failed")
		return nil, err
	}
	log.Debug().Int("steps", resp.Steps).Str("finish_reason", resp.FinishReason).Msg("request done")

	return &Result{
		RunID:        r.id,
		ThreadID:     r.threadID,
		ResourceID:   r.resourceID,
		Text:         resp.Text,
		Object:       resp.Object,
		Messages:     resp.Messages,
		Usage:        resp.Usage,
		FinishReason: resp.FinishReason,
		Steps:        resp.Steps,
		Title:        r.title,
		Thread:       r.thread,
		UI:           r.tl.All().UI(),
	}, nil
}
