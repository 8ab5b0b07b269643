package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/petasbytes/recall-agent/tools"
)

// ModelSwitchTool is the name of the tool that changes the model used for
// the remaining steps of a request.
const ModelSwitchTool = "model_switch"

// Model tiers the switch tool accepts.
const (
	TierPrimary   = "primary"
	TierAdvanced  = "advanced"
	TierEfficient = "efficient"
	TierReasoning = "reasoning"
)

type ModelSwitchInput struct {
	ModelType string `json:"modelType" jsonschema:"enum=primary,enum=advanced,enum=efficient,enum=reasoning" jsonschema_description:"Model type to switch to."`
	Reason    string `json:"reason,omitempty" jsonschema_description:"Reason for switching models."`
}

type ModelSwitchResult struct {
	CurrentModel string `json:"currentModel"`
	Switched     bool   `json:"switched"`
	Reason       string `json:"reason"`
}

// WithTiers names the models behind the non-primary tiers. Empty entries
// fall back to the runner's model.
func WithTiers(tiers map[string]anthropic.Model) Option {
	return func(r *Runner) {
		for k, v := range tiers {
			if v == "" || k == TierPrimary {
				continue
			}
			if r.tiers == nil {
				r.tiers = make(map[string]anthropic.Model)
			}
			r.tiers[k] = v
		}
	}
}

// selection is the model in effect for one Generate call.
type selection struct {
	mu    sync.Mutex
	model anthropic.Model
}

func (s *selection) get() anthropic.Model {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

func (s *selection) set(m anthropic.Model) {
	s.mu.Lock()
	s.model = m
	s.mu.Unlock()
}

type selectionKey struct{}

func withSelection(ctx context.Context, m anthropic.Model) context.Context {
	return context.WithValue(ctx, selectionKey{}, &selection{model: m})
}

// modelFor returns the model selected for the request carried by ctx.
func (r *Runner) modelFor(ctx context.Context) anthropic.Model {
	if s, ok := ctx.Value(selectionKey{}).(*selection); ok {
		return s.get()
	}
	return r.model
}

func (r *Runner) tier(name string) (anthropic.Model, bool) {
	switch name {
	case TierPrimary:
		return r.model, true
	case TierAdvanced, TierEfficient, TierReasoning:
		if m, ok := r.tiers[name]; ok {
			return m, true
		}
		return r.model, true
	}
	return "", false
}

// SwitchTool lets the model move the rest of its request onto another tier.
// The choice lasts until Generate returns.
func (r *Runner) SwitchTool() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        ModelSwitchTool,
		Description: "Switch between different AI models for different tasks",
		InputSchema: tools.GenerateSchema[ModelSwitchInput](),
		Execute:     r.execSwitch,
	}
}

func (r *Runner) execSwitch(ctx context.Context, input json.RawMessage, ec tools.ExecContext) (any, error) {
	in, err := tools.Decode[ModelSwitchInput](ModelSwitchTool, input)
	if err != nil {
		return nil, err
	}
	m, ok := r.tier(in.ModelType)
	if !ok {
		return nil, fmt.Errorf("%s: unknown model type %q", ModelSwitchTool, in.ModelType)
	}
	sel, ok := ctx.Value(selectionKey{}).(*selection)
	if !ok {
		return ModelSwitchResult{CurrentModel: string(r.model), Reason: "no request in progress"}, nil
	}
	prev := sel.get()
	sel.set(m)
	reason := in.Reason
	if reason == "" {
		reason = fmt.Sprintf("Switched to %s model for better performance", in.ModelType)
	}
	r.log.Info().
		Str("run_id", ec.RunID).
		Str("from", string(prev)).
		Str("to", string(m)).
		Str("tier", in.ModelType).
		Msg("model switched")
	return ModelSwitchResult{CurrentModel: string(m), Switched: prev != m, Reason: reason}, nil
}
