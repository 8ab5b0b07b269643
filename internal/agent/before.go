package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/petasbytes/recall-agent/internal/errs"
	"github.com/petasbytes/recall-agent/internal/message"
	"github.com/petasbytes/recall-agent/internal/telemetry"
	"github.com/petasbytes/recall-agent/internal/timeline"
	"github.com/petasbytes/recall-agent/memory"
	"github.com/petasbytes/recall-agent/tools"
)

// memoryTag files memory-derived system messages apart from instructions.
const memoryTag = "memory"

// runState is what one request carries between its phases.
type runState struct {
	id           string
	threadID     string
	resourceID   string
	instructions string
	stateless    bool

	tl     *timeline.Timeline
	thread *memory.Thread
	cfg    memory.ThreadConfig
	tools  []tools.ToolDefinition
	prompt []message.CoreMessage

	// input is the request's user input as added to the timeline. Saves drain
	// the timeline's input view, so later phases read this copy instead.
	input []*message.Message

	// stepMessages counts response messages already added by per-step saves.
	stepMessages int
	title        string
	log          zerolog.Logger
}

func (a *Agent) newTimeline(threadID, resourceID string) *timeline.Timeline {
	return timeline.New(
		timeline.WithIdentity(threadID, resourceID),
		timeline.WithIDGenerator(a.newID),
		timeline.WithClock(a.now),
	)
}

func (a *Agent) before(ctx context.Context, input any, opts Options) (*runState, error) {
	r := &runState{
		id:           opts.RunID,
		threadID:     opts.ThreadID,
		resourceID:   opts.ResourceID,
		instructions: opts.Instructions,
		log:          a.log,
	}
	if r.instructions == "" {
		r.instructions = a.instructions
	}
	r.stateless = a.memory == nil || (r.threadID == "" && r.resourceID == "")
	r.tools = a.resolveTools(r.stateless, opts)

	r.tl = a.newTimeline(r.threadID, r.resourceID)
	r.tl.AddSystem(r.instructions, "")
	if err := r.tl.Add(opts.Context, timeline.SourceContext); err != nil {
		return nil, err
	}

	if r.stateless {
		if err := r.tl.Add(input, timeline.SourceUser); err != nil {
			return nil, err
		}
		r.input = r.tl.Input().Storage()
		r.prompt = r.tl.Prompt()
		emitPrompt(r)
		return r, nil
	}

	if r.threadID == "" || r.resourceID == "" {
		return nil, errs.MissingResourceID(r.threadID)
	}
	r.cfg = a.memory.MergedThreadConfig(a.memCfg.Merge(opts.Memory))

	thread, err := a.loadThread(ctx, r.threadID, r.resourceID, opts.ThreadMetadata)
	if err != nil {
		return nil, err
	}
	r.thread = thread

	// The search text comes from the new input only, so parse it on its own
	// before history is merged in.
	scratch := a.newTimeline(r.threadID, r.resourceID)
	if err := scratch.Add(input, timeline.SourceUser); err != nil {
		return nil, err
	}
	searchText, _ := scratch.LatestUserContent()

	var (
		remembered []*message.Message
		meta       memory.RecallMeta
		memSystem  string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		remembered, meta, err = a.memory.RememberMessages(gctx, r.threadID, r.resourceID, r.cfg, searchText)
		return err
	})
	g.Go(func() error {
		var err error
		memSystem, err = a.memory.GetSystemMessage(gctx, r.threadID, r.resourceID, r.cfg)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var same, other []*message.Message
	for _, m := range remembered {
		if m.ThreadID == "" || m.ThreadID == r.threadID {
			same = append(same, m)
		} else {
			other = append(other, m)
		}
	}
	if len(other) > 0 {
		block, err := rememberedBlock(other)
		if err != nil {
			return nil, err
		}
		memSystem += block
	}
	r.tl.AddSystem(memSystem, memoryTag)

	if err := r.tl.Add(same, timeline.SourceMemory); err != nil {
		return nil, err
	}
	if err := r.tl.Add(input, timeline.SourceUser); err != nil {
		return nil, err
	}
	r.input = r.tl.Input().Storage()

	processed := a.memory.ProcessMessages(r.tl.Remembered().Storage(), r.input, systemText(r.tl))

	// The prompt is built from a separate timeline so trimming never touches
	// what gets persisted.
	pt := a.newTimeline(r.threadID, r.resourceID)
	pt.AddSystem(r.instructions, "")
	pt.AddSystem(memSystem, memoryTag)
	if err := pt.Add(r.tl.Context().Storage(), timeline.SourceContext); err != nil {
		return nil, err
	}
	if err := pt.Add(processed, timeline.SourceMemory); err != nil {
		return nil, err
	}
	if err := pt.Add(r.input, timeline.SourceUser); err != nil {
		return nil, err
	}
	r.prompt = pt.Prompt()

	r.log.Debug().
		Int("recent", meta.Recent).
		Int("semantic", meta.Semantic).
		Int("cross_thread", len(other)).
		Int("remembered", len(remembered)).
		Int("kept", len(processed)).
		Msg("memory recalled")
	emitPrompt(r)
	return r, nil
}

// loadThread returns the thread, creating it when absent and replacing its
// metadata when the caller supplied different metadata.
func (a *Agent) loadThread(ctx context.Context, threadID, resourceID string, metadata map[string]any) (*memory.Thread, error) {
	th, err := a.memory.GetThreadByID(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if th == nil {
		return a.memory.CreateThread(ctx, threadID, resourceID, "", metadata)
	}
	if metadata != nil && !reflect.DeepEqual(th.Metadata, metadata) {
		th.Metadata = metadata
		return a.memory.SaveThread(ctx, th)
	}
	return th, nil
}

// resolveTools merges, in increasing precedence: agent tools, memory tools,
// workflows, request toolsets and client tools.
func (a *Agent) resolveTools(stateless bool, opts Options) []tools.ToolDefinition {
	sets := [][]tools.ToolDefinition{a.tools}
	if tp, ok := a.memory.(ToolProvider); ok && !stateless {
		sets = append(sets, tp.Tools())
	}
	sets = append(sets, tools.FromWorkflows(a.workflows))
	sets = append(sets, opts.Toolsets...)
	sets = append(sets, opts.ClientTools)
	return tools.Merge(sets...)
}

func rememberedBlock(msgs []*message.Message) (string, error) {
	b, err := json.Marshal(message.ToLegacy(msgs))
	if err != nil {
		return "", fmt.Errorf("encode remembered messages: %w", err)
	}
	return "\nThe following messages were remembered from a different conversation:\n" +
		"<remembered_from_other_conversation>\n" + string(b) + "\n<end_remembered_from_other_conversation>", nil
}

// systemText joins the instructions and the memory system block.
func systemText(tl *timeline.Timeline) string {
	var parts []string
	for _, m := range append(tl.SystemMessages(""), tl.SystemMessages(memoryTag)...) {
		parts = append(parts, m.Content.String())
	}
	return strings.Join(parts, "\n")
}

func emitPrompt(r *runState) {
	telemetry.Emit("prompt_prepared", map[string]any{
		"run_id":    r.id,
		"thread_id": r.threadID,
		"messages":  len(r.prompt),
		"tools":     tools.Names(r.tools),
		"stateless": r.stateless,
	})
}
