package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"

	"github.com/petasbytes/recall-agent/internal/errs"
)

// WorkingMemoryKey is the thread metadata key holding working memory.
const WorkingMemoryKey = "workingMemory"

const defaultWorkingMemoryTemplate = `# User Information
- **First Name**:
- **Last Name**:
- **Location**:
- **Interests**:
`

const workingMemoryInstructions = `WORKING_MEMORY_SYSTEM_INSTRUCTION:
Keep track of anything about the user or the conversation that may matter later by calling the %s tool with the complete, updated memory in Markdown.

Guidelines:
- Update the memory as soon as something relevant is learned or changes.
- Always send the whole memory, not a diff.
- Do not mention the memory system to the user.

<working_memory_data>
%s
</working_memory_data>`

// ImportantMemory is a note the model chose to keep for the resource.
type ImportantMemory struct {
	ID         string    `json:"id"`
	ResourceID string    `json:"resourceId"`
	ThreadID   string    `json:"threadId"`
	Content    string    `json:"content"`
	Tags       []string  `json:"tags,omitempty"`
	SavedAt    time.Time `json:"savedAt"`
}

// WorkingMemory returns the thread's working memory, falling back to the
// configured template.
func (s *Store) WorkingMemory(ctx context.Context, threadID string, cfg ThreadConfig) (string, error) {
	th, err := s.GetThreadByID(ctx, threadID)
	if err != nil {
		return "", err
	}
	if th != nil {
		if wm, ok := th.Metadata[WorkingMemoryKey].(string); ok && wm != "" {
			return wm, nil
		}
	}
	if cfg.WorkingMemory.Template != "" {
		return cfg.WorkingMemory.Template, nil
	}
	return defaultWorkingMemoryTemplate, nil
}

// GetSystemMessage renders the working memory instructions, or "" when
// working memory is disabled.
func (s *Store) GetSystemMessage(ctx context.Context, threadID, resourceID string, cfg ThreadConfig) (string, error) {
	if !cfg.WorkingMemory.Enabled {
		return "", nil
	}
	wm, err := s.WorkingMemory(ctx, threadID, cfg)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(workingMemoryInstructions, UpdateWorkingMemoryTool, strings.TrimSpace(wm)), nil
}

// UpdateWorkingMemory replaces the thread's working memory.
func (s *Store) UpdateWorkingMemory(ctx context.Context, threadID, text string) error {
	th, err := s.GetThreadByID(ctx, threadID)
	if err != nil {
		return err
	}
	if th == nil {
		return fmt.Errorf("thread %s not found", threadID)
	}
	if th.Metadata == nil {
		th.Metadata = map[string]any{}
	}
	th.Metadata[WorkingMemoryKey] = text
	_, err = s.SaveThread(ctx, th)
	return err
}

// SaveImportantMemory stores a note for the resource.
func (s *Store) SaveImportantMemory(ctx context.Context, resourceID, threadID, content string, tags []string) (*ImportantMemory, error) {
	if resourceID == "" {
		return nil, errs.MissingResourceID(threadID)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("memory content is empty")
	}
	im := &ImportantMemory{
		ID:         uuid.NewString(),
		ResourceID: resourceID,
		ThreadID:   threadID,
		Content:    content,
		Tags:       tags,
		SavedAt:    s.now().UTC(),
	}
	b, err := json.Marshal(im)
	if err != nil {
		return nil, err
	}
	if err := s.db.Set(importantKey(resourceID, im.SavedAt, im.ID), b, pebble.Sync); err != nil {
		s.log.Error().Err(err).Str("resource_id", resourceID).Msg("save important memory failed")
		return nil, err
	}
	return im, nil
}

// ImportantMemories returns up to limit notes for the resource, newest first.
func (s *Store) ImportantMemories(ctx context.Context, resourceID string, limit int) ([]ImportantMemory, error) {
	var out []ImportantMemory
	err := s.scan(importantResourcePrefix(resourceID), func(_, v []byte) error {
		var im ImportantMemory
		if err := json.Unmarshal(v, &im); err != nil {
			return err
		}
		out = append(out, im)
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
