package agent

import (
	"context"
	"errors"

	"github.com/petasbytes/recall-agent/internal/errs"
	"github.com/petasbytes/recall-agent/internal/timeline"
)

func (a *Agent) call(ctx context.Context, r *runState, opts Options, savePerStep bool) (*ModelResponse, error) {
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = a.maxSteps
	}
	req := ModelRequest{
		RunID:        r.id,
		ThreadID:     r.threadID,
		ResourceID:   r.resourceID,
		Messages:     r.prompt,
		Tools:        r.tools,
		MaxSteps:     maxSteps,
		OnStepFinish: a.stepHandler(r, opts.OnStepFinish, savePerStep && !r.stateless),
	}
	resp, err := a.model.Generate(ctx, req)
	if err != nil {
		if errors.Is(err, errs.ErrCallbackFailure) {
			return nil, err
		}
		return nil, errs.ModelCallFailure(a.model.Name(), r.id, r.threadID, err)
	}
	if resp == nil {
		resp = &ModelResponse{}
	}
	return resp, nil
}

// stepHandler appends each finished step to the timeline and schedules a
// debounced save when save is set, then calls the caller's callback.
func (a *Agent) stepHandler(r *runState, user StepFunc, save bool) StepFunc {
	if !save && user == nil {
		return nil
	}
	return func(ctx context.Context, step StepResult) error {
		if save && len(step.Messages) > 0 {
			if err := r.tl.Add(step.Messages, timeline.SourceResponse); err != nil {
				return err
			}
			r.stepMessages += len(step.Messages)
			if err := a.queue.Schedule(ctx, r.tl, r.threadID, r.cfg); err != nil {
				// the terminal flush retries whatever this write left behind
				r.log.Warn().Err(err).Int("step", step.Index).Msg("per-step save failed")
			}
		}
		if user == nil {
			return nil
		}
		if err := user(ctx, step); err != nil {
			return errs.CallbackFailure("onStepFinish", r.id, err)
		}
		return nil
	}
}
