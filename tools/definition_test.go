package tools_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petasbytes/recall-agent/tools"
)

type searchInput struct {
	Query string `json:"query" jsonschema_description:"Text to look for."`
	Limit int    `json:"limit,omitempty"`
}

func TestGenerateSchema(t *testing.T) {
	schema := tools.GenerateSchema[searchInput]()

	b, err := json.Marshal(schema.Properties)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"query"`)
	assert.Contains(t, string(b), "Text to look for.")
	assert.Equal(t, []string{"query"}, schema.Required)
}

func TestDecode(t *testing.T) {
	in, err := tools.Decode[searchInput]("search", json.RawMessage(`{"query":"go"}`))
	require.NoError(t, err)
	assert.Equal(t, "go", in.Query)

	in, err = tools.Decode[searchInput]("search", nil)
	require.NoError(t, err)
	assert.Empty(t, in.Query)

	_, err = tools.Decode[searchInput]("search", json.RawMessage(`{"query":`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search: invalid input")
}

func TestResultText(t *testing.T) {
	assert.Equal(t, "", tools.ResultText(nil))
	assert.Equal(t, "plain", tools.ResultText("plain"))
	assert.Equal(t, `{"a":1}`, tools.ResultText(json.RawMessage(`{"a":1}`)))
	assert.Equal(t, `{"ok":true}`, tools.ResultText(map[string]bool{"ok": true}))
}
