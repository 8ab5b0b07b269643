package agent

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/petasbytes/recall-agent/internal/message"
	"github.com/petasbytes/recall-agent/internal/timeline"
	"github.com/petasbytes/recall-agent/memory"
)

func (a *Agent) after(ctx context.Context, r *runState, resp *ModelResponse) (err error) {
	if r.stateless {
		if err := a.addResponse(r, resp); err != nil {
			return err
		}
		a.evaluate(ctx, r, resp)
		return nil
	}

	defer func() {
		if err == nil {
			return
		}
		if ferr := a.queue.Flush(context.WithoutCancel(ctx), r.tl, r.threadID, r.cfg); ferr != nil {
			r.log.Error().Err(ferr).Msg("flush after failed post-phase")
		}
	}()

	if usedTool(resp.Messages, memory.UpdateWorkingMemoryTool) {
		th, err := a.memory.GetThreadByID(ctx, r.threadID)
		if err != nil {
			return err
		}
		if th != nil {
			r.thread = th
		}
	}

	if err := a.addResponse(r, resp); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.queue.Flush(gctx, r.tl, r.threadID, r.cfg)
	})
	if r.thread != nil && r.cfg.Threads.GenerateTitle && strings.HasPrefix(r.thread.Title, memory.DefaultTitlePrefix) {
		g.Go(func() error {
			a.retitle(gctx, r)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	a.evaluate(ctx, r, resp)
	return nil
}

// addResponse appends the response messages not already added by per-step
// saves. Structured output with no messages becomes an assistant text turn.
func (a *Agent) addResponse(r *runState, resp *ModelResponse) error {
	msgs := resp.Messages
	if r.stepMessages < len(msgs) {
		msgs = msgs[r.stepMessages:]
	} else {
		msgs = nil
	}
	if len(resp.Messages) == 0 && len(resp.Object) > 0 {
		msgs = []message.CoreMessage{{
			Role:    message.RoleAssistant,
			Content: message.TextContent(string(resp.Object)),
		}}
	}
	return r.tl.Add(msgs, timeline.SourceResponse)
}

func (a *Agent) evaluate(ctx context.Context, r *runState, resp *ModelResponse) {
	if len(a.evaluators) == 0 {
		return
	}
	var inputs []string
	for _, m := range r.input {
		if m.Role == message.RoleUser {
			inputs = append(inputs, m.Text())
		}
	}
	in := EvalInput{
		Input:        strings.Join(inputs, "\n"),
		Output:       resp.Text,
		RunID:        r.id,
		AgentName:    a.name,
		Instructions: r.instructions,
	}
	for _, e := range a.evaluators {
		if err := e.Evaluate(ctx, in); err != nil {
			r.log.Warn().Err(err).Str("evaluator", e.Name()).Msg("evaluation failed")
		}
	}
}

func usedTool(msgs []message.CoreMessage, name string) bool {
	for _, m := range msgs {
		if m.Content.IsString() {
			continue
		}
		for _, p := range m.Content.Parts {
			if (p.Type == message.CoreToolCall || p.Type == message.CoreToolResult) && p.ToolName == name {
				return true
			}
		}
	}
	return false
}
