package memory

import (
	"time"

	"github.com/petasbytes/recall-agent/internal/message"
)

// DefaultTitlePrefix marks a thread whose title was never generated.
const DefaultTitlePrefix = "New Thread"

// DefaultTitle returns the placeholder title for a thread created at t.
func DefaultTitle(t time.Time) string {
	return DefaultTitlePrefix + " " + t.UTC().Format(time.RFC3339)
}

// Thread is one conversation owned by a resource (end user).
type Thread struct {
	ID         string         `json:"id"`
	ResourceID string         `json:"resourceId"`
	Title      string         `json:"title"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// Clone returns a copy of th with its own metadata map.
func (th *Thread) Clone() *Thread {
	if th == nil {
		return nil
	}
	out := *th
	if th.Metadata != nil {
		out.Metadata = make(map[string]any, len(th.Metadata))
		for k, v := range th.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// RecallScope limits semantic recall to the current thread or to every
// thread of the resource.
type RecallScope string

const (
	ScopeThread   RecallScope = "thread"
	ScopeResource RecallScope = "resource"
)

// SemanticRecall configures similarity-based recall. A zero TopK disables it.
type SemanticRecall struct {
	TopK         int         `yaml:"topK" json:"topK"`
	MessageRange int         `yaml:"messageRange" json:"messageRange"`
	Scope        RecallScope `yaml:"scope" json:"scope"`
}

// WorkingMemory configures the per-thread scratchpad the model may update.
type WorkingMemory struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Template string `yaml:"template" json:"template"`
}

// ThreadOptions configures thread housekeeping.
type ThreadOptions struct {
	GenerateTitle     bool   `yaml:"generateTitle" json:"generateTitle"`
	TitleInstructions string `yaml:"titleInstructions" json:"titleInstructions"`
}

// ThreadConfig is the memory behaviour for one request. Zero fields in an
// override fall back to the store defaults.
type ThreadConfig struct {
	LastMessages   int            `yaml:"lastMessages" json:"lastMessages"`
	SemanticRecall SemanticRecall `yaml:"semanticRecall" json:"semanticRecall"`
	WorkingMemory  WorkingMemory  `yaml:"workingMemory" json:"workingMemory"`
	Threads        ThreadOptions  `yaml:"threads" json:"threads"`
}

// DefaultThreadConfig mirrors what a store uses when nothing is configured.
func DefaultThreadConfig() ThreadConfig {
	return ThreadConfig{
		LastMessages: 40,
		SemanticRecall: SemanticRecall{
			TopK:         3,
			MessageRange: 2,
			Scope:        ScopeResource,
		},
		Threads: ThreadOptions{GenerateTitle: true},
	}
}

// Merge overlays the non-zero fields of override onto c.
func (c ThreadConfig) Merge(override ThreadConfig) ThreadConfig {
	out := c
	if override.LastMessages != 0 {
		out.LastMessages = override.LastMessages
	}
	if override.SemanticRecall.TopK != 0 {
		out.SemanticRecall.TopK = override.SemanticRecall.TopK
	}
	if override.SemanticRecall.MessageRange != 0 {
		out.SemanticRecall.MessageRange = override.SemanticRecall.MessageRange
	}
	if override.SemanticRecall.Scope != "" {
		out.SemanticRecall.Scope = override.SemanticRecall.Scope
	}
	if override.WorkingMemory.Enabled {
		out.WorkingMemory.Enabled = true
	}
	if override.WorkingMemory.Template != "" {
		out.WorkingMemory.Template = override.WorkingMemory.Template
	}
	if override.Threads.GenerateTitle {
		out.Threads.GenerateTitle = true
	}
	if override.Threads.TitleInstructions != "" {
		out.Threads.TitleInstructions = override.Threads.TitleInstructions
	}
	return out
}

// RecallMeta describes what RememberMessages returned.
type RecallMeta struct {
	Recent   int      `json:"recent"`
	Semantic int      `json:"semantic"`
	Recalled []string `json:"recalled"`
}

// Processor post-processes remembered history before it reaches the prompt.
// It must not alter newMessages.
type Processor interface {
	Process(remembered, newMessages []*message.Message, systemText string) []*message.Message
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(remembered, newMessages []*message.Message, systemText string) []*message.Message

func (f ProcessorFunc) Process(remembered, newMessages []*message.Message, systemText string) []*message.Message {
	return f(remembered, newMessages, systemText)
}
