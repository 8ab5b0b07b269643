package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/petasbytes/recall-agent/tools"
)

// Names of the tools the store exposes to the model.
const (
	UpdateWorkingMemoryTool = "updateWorkingMemory"
	MemorySearchTool        = "memory_search"
	SaveImportantTool       = "save_important_memory"
	UserMemoriesTool        = "get_user_memories"
)

type UpdateWorkingMemoryInput struct {
	Memory string `json:"memory" jsonschema_description:"The complete working memory in Markdown."`
}

type MemorySearchInput struct {
	Query string `json:"query" jsonschema_description:"Search query to find relevant memories."`
	Limit int    `json:"limit,omitempty" jsonschema_description:"Maximum number of results to return (default 5)."`
}

type SaveImportantMemoryInput struct {
	Memory string   `json:"memory" jsonschema_description:"Important information to save."`
	Tags   []string `json:"tags,omitempty" jsonschema_description:"Tags for categorizing the memory."`
}

type UserMemoriesInput struct {
	Limit int `json:"limit,omitempty" jsonschema_description:"Maximum number of memories to retrieve (default 10)."`
}

// SearchResult is what memory_search returns per match.
type SearchResult struct {
	ThreadID  string    `json:"threadId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Score     int       `json:"score"`
}

// Tools returns the memory-backed tools. They read the thread and resource
// from the ExecContext of each call.
func (s *Store) Tools() []tools.ToolDefinition {
	return []tools.ToolDefinition{
		{
			Name:        UpdateWorkingMemoryTool,
			Description: "Update the working memory for this conversation. Send the complete memory, not a diff.",
			InputSchema: tools.GenerateSchema[UpdateWorkingMemoryInput](),
			Execute:     s.execUpdateWorkingMemory,
		},
		{
			Name:        MemorySearchTool,
			Description: "Search conversation history and memories for relevant information",
			InputSchema: tools.GenerateSchema[MemorySearchInput](),
			Execute:     s.execSearch,
		},
		{
			Name:        SaveImportantTool,
			Description: "Save important information to long-term memory",
			InputSchema: tools.GenerateSchema[SaveImportantMemoryInput](),
			Execute:     s.execSaveImportant,
		},
		{
			Name:        UserMemoriesTool,
			Description: "Retrieve the user's important memories",
			InputSchema: tools.GenerateSchema[UserMemoriesInput](),
			Execute:     s.execUserMemories,
		},
	}
}

func (s *Store) execUpdateWorkingMemory(ctx context.Context, input json.RawMessage, ec tools.ExecContext) (any, error) {
	in, err := tools.Decode[UpdateWorkingMemoryInput](UpdateWorkingMemoryTool, input)
	if err != nil {
		return nil, err
	}
	if err := s.UpdateWorkingMemory(ctx, ec.ThreadID, in.Memory); err != nil {
		return nil, err
	}
	return map[string]any{"success": true}, nil
}

func (s *Store) execSearch(ctx context.Context, input json.RawMessage, ec tools.ExecContext) (any, error) {
	in, err := tools.Decode[MemorySearchInput](MemorySearchTool, input)
	if err != nil {
		return nil, err
	}
	limit := in.Limit
	if limit <= 0 {
		limit = 5
	}
	hits, err := s.Search(ctx, ec.ResourceID, in.Query, limit)
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, SearchResult{
			ThreadID:  h.Message.ThreadID,
			Role:      string(h.Message.Role),
			Content:   h.Message.Text(),
			CreatedAt: h.Message.CreatedAt,
			Score:     h.Score,
		})
	}
	return map[string]any{
		"results": results,
		"message": fmt.Sprintf("Found %d related memories for query: %q", len(results), in.Query),
	}, nil
}

func (s *Store) execSaveImportant(ctx context.Context, input json.RawMessage, ec tools.ExecContext) (any, error) {
	in, err := tools.Decode[SaveImportantMemoryInput](SaveImportantTool, input)
	if err != nil {
		return nil, err
	}
	im, err := s.SaveImportantMemory(ctx, ec.ResourceID, ec.ThreadID, in.Memory, in.Tags)
	if err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "id": im.ID}, nil
}

func (s *Store) execUserMemories(ctx context.Context, input json.RawMessage, ec tools.ExecContext) (any, error) {
	in, err := tools.Decode[UserMemoriesInput](UserMemoriesTool, input)
	if err != nil {
		return nil, err
	}
	limit := in.Limit
	if limit <= 0 {
		limit = 10
	}
	mems, err := s.ImportantMemories(ctx, ec.ResourceID, limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"memories": mems,
		"message":  fmt.Sprintf("Retrieved %d important memories for user", len(mems)),
	}, nil
}
