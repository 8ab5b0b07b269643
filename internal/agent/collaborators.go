package agent

import (
	"context"
	"encoding/json"

	"github.com/petasbytes/recall-agent/internal/message"
	"github.com/petasbytes/recall-agent/memory"
	"github.com/petasbytes/recall-agent/tools"
)

// Memory is the durable store the orchestrator reads history from and
// persists to. *memory.Store implements it.
type Memory interface {
	GetThreadByID(ctx context.Context, id string) (*memory.Thread, error)
	CreateThread(ctx context.Context, id, resourceID, title string, metadata map[string]any) (*memory.Thread, error)
	SaveThread(ctx context.Context, th *memory.Thread) (*memory.Thread, error)
	SaveMessages(ctx context.Context, msgs []*message.Message, cfg memory.ThreadConfig) error
	RememberMessages(ctx context.Context, threadID, resourceID string, cfg memory.ThreadConfig, searchText string) ([]*message.Message, memory.RecallMeta, error)
	GetSystemMessage(ctx context.Context, threadID, resourceID string, cfg memory.ThreadConfig) (string, error)
	MergedThreadConfig(override memory.ThreadConfig) memory.ThreadConfig
	ProcessMessages(remembered, newMessages []*message.Message, systemText string) []*message.Message
}

// ToolProvider is implemented by memories that expose tools to the model.
type ToolProvider interface {
	Tools() []tools.ToolDefinition
}

// Usage counts model tokens.
type Usage struct {
	InputTokens  int64 `json:"inputTokens"`
	OutputTokens int64 `json:"outputTokens"`
}

func (u *Usage) Add(o Usage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
}

// StepResult is one model step: the assistant message and, when tools ran,
// the tool message holding their results.
type StepResult struct {
	Index        int                   `json:"index"`
	Messages     []message.CoreMessage `json:"messages"`
	Text         string                `json:"text"`
	FinishReason string                `json:"finishReason"`
	Usage        Usage                 `json:"usage"`
}

// StepFunc observes a finished step. A returned error aborts generation.
type StepFunc func(ctx context.Context, step StepResult) error

// ModelRequest is what the orchestrator hands the language model.
type ModelRequest struct {
	RunID      string
	ThreadID   string
	ResourceID string
	// Messages is the prompt projection: system messages first.
	Messages []message.CoreMessage
	Tools    []tools.ToolDefinition
	MaxSteps int
	// OnStepFinish is called after each step, before the next one starts.
	OnStepFinish StepFunc
}

// ModelResponse is the full output of a model run.
type ModelResponse struct {
	// Messages holds every step's response messages in order.
	Messages []message.CoreMessage
	// Text is the final step's text.
	Text string
	// Object is set by models that return structured output.
	Object       json.RawMessage
	Usage        Usage
	FinishReason string
	Steps        int
}

// Model is the language model collaborator.
type Model interface {
	Name() string
	Generate(ctx context.Context, req ModelRequest) (*ModelResponse, error)
}

// EvalInput is what an evaluator scores.
type EvalInput struct {
	Input        string
	Output       string
	RunID        string
	AgentName    string
	Instructions string
}

// Evaluator scores a finished generation. Failures are logged only.
type Evaluator interface {
	Name() string
	Evaluate(ctx context.Context, in EvalInput) error
}
