package server

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codescope-mcp/internal/protocol"
)

func nopHandler(_ context.Context, _ json.RawMessage) (interface{}, *protocol.Error) {
	return nil, nil
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, tool := range []Tool{
		searchTool(), symbolsTool(), filesTool(), showTool(), treeTool(),
		callersTool(), calleesTool(), usageTool(), statusTool(),
	} {
		require.NoError(t, r.Register(tool, nopHandler))
	}
	return r
}

func TestRegistry_Register(t *testing.T) {
	t.Run("duplicate name is rejected", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(searchTool(), nopHandler))
		assert.Error(t, r.Register(searchTool(), nopHandler))
	})

	t.Run("descriptors preserve registration order", func(t *testing.T) {
		r := newTestRegistry(t)
		descriptors := r.Descriptors()
		require.Len(t, descriptors, 9)
		assert.Equal(t, "search", descriptors[0].Name)
		assert.Equal(t, "tree", descriptors[4].Name)
		assert.Equal(t, "status", descriptors[8].Name)
	})
}

func TestRegistry_Resolve(t *testing.T) {
	r := newTestRegistry(t)

	_, ok := r.Resolve("search")
	assert.True(t, ok)

	_, ok = r.Resolve("no_such_tool")
	assert.False(t, ok)
}

func TestRegistry_Validate(t *testing.T) {
	r := newTestRegistry(t)

	cases := []struct {
		name     string
		tool     string
		args     string
		wantCode int // 0 means valid
	}{
		{"search with query", "search", `{"query":"auth handler"}`, 0},
		{"search with all params", "search", `{"query":"q","limit":5,"filters":{"kinds":["function"],"path":"internal/*"}}`, 0},
		{"search missing query", "search", `{"limit":5}`, protocol.CodeInvalidParams},
		{"search wrong query type", "search", `{"query":12}`, protocol.CodeInvalidParams},
		{"search limit too large", "search", `{"query":"q","limit":1000}`, protocol.CodeInvalidParams},
		{"search unknown field", "search", `{"query":"q","bogus":true}`, protocol.CodeInvalidParams},
		{"search bad kind enum", "search", `{"query":"q","filters":{"kinds":["sandwich"]}}`, protocol.CodeInvalidParams},
		{"symbols no params", "symbols", `{}`, 0},
		{"symbols nil params", "symbols", ``, 0},
		{"symbols kind filter", "symbols", `{"kind":"function","file":"main.go"}`, 0},
		{"files glob", "files", `{"glob":"*.go"}`, 0},
		{"show by id", "show", `{"id":12}`, 0},
		{"show by file and name", "show", `{"file":"main.go","name":"main"}`, 0},
		{"show missing both addressings", "show", `{}`, protocol.CodeInvalidParams},
		{"show file without name", "show", `{"file":"main.go"}`, protocol.CodeInvalidParams},
		{"show both addressings", "show", `{"id":1,"file":"main.go","name":"main"}`, protocol.CodeInvalidParams},
		{"tree with path", "tree", `{"path":"."}`, 0},
		{"tree missing path", "tree", `{"depth":2}`, protocol.CodeInvalidParams},
		{"tree zero depth", "tree", `{"path":".","depth":0}`, protocol.CodeInvalidParams},
		{"callers with id", "callers", `{"id":3}`, 0},
		{"callers missing id", "callers", `{}`, protocol.CodeInvalidParams},
		{"usage string id", "usage", `{"id":"3"}`, protocol.CodeInvalidParams},
		{"status no params", "status", `{}`, 0},
		{"unknown tool", "frobnicate", `{}`, protocol.CodeMethodNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			perr := r.Validate(tc.tool, json.RawMessage(tc.args))
			if tc.wantCode == 0 {
				assert.Nil(t, perr)
			} else {
				require.NotNil(t, perr)
				assert.Equal(t, tc.wantCode, perr.Code)
			}
		})
	}
}
