package server

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dshills/codescope-mcp/internal/index"
	"github.com/dshills/codescope-mcp/internal/protocol"
	"github.com/dshills/codescope-mcp/pkg/types"
)

// toolsCallParams is the payload of tools/call.
type toolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// toolsListResult is the payload of the tools/list response.
type toolsListResult struct {
	Tools []Tool `json:"tools"`
}

// contentBlock is one MCP content item.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// toolsCallResult is the payload of a tools/call response.
type toolsCallResult struct {
	Content []contentBlock `json:"content"`
}

// toolResult wraps a domain value as MCP text content.
func toolResult(v interface{}) (interface{}, *protocol.Error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, protocol.NewError(protocol.CodeInternalError, "failed to serialize result")
	}
	return toolsCallResult{Content: []contentBlock{{Type: "text", Text: string(data)}}}, nil
}

// provider returns the index provider for the current session.
func (s *Server) indexProvider() (index.Provider, *protocol.Error) {
	p := s.currentProvider()
	if p == nil {
		return nil, protocol.NewError(protocol.CodeInternalError, "index provider not available")
	}
	return p, nil
}

// mapProviderError translates index faults into the wire error taxonomy.
// Backend detail is logged, never sent to the peer.
func (s *Server) mapProviderError(op string, err error) *protocol.Error {
	switch {
	case errors.Is(err, index.ErrNotFound):
		return protocol.NewError(protocol.CodeNotFound, "not found in index")
	case errors.Is(err, index.ErrNotIndexed):
		return protocol.NewError(protocol.CodeNotIndexed,
			"project not indexed; run 'codescope index' and retry")
	case errors.Is(err, index.ErrUnavailable):
		s.logger.Error("index unavailable", "op", op, "error", err)
		return protocol.NewError(protocol.CodeInternalError,
			"index unavailable; re-run 'codescope index' to rebuild it")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return protocol.NewError(protocol.CodeInternalError, "request cancelled")
	default:
		s.logger.Error("index query failed", "op", op, "error", err)
		return protocol.NewError(protocol.CodeInternalError, "internal error")
	}
}

// searchArgs mirrors the search tool schema.
type searchArgs struct {
	Query   string `json:"query"`
	Limit   int    `json:"limit"`
	Filters struct {
		Kinds []types.SymbolKind `json:"kinds"`
		Path  string             `json:"path"`
	} `json:"filters"`
}

// handleSearch handles the search tool invocation
func (s *Server) handleSearch(ctx context.Context, args json.RawMessage) (interface{}, *protocol.Error) {
	provider, perr := s.indexProvider()
	if perr != nil {
		return nil, perr
	}

	var a searchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, protocol.Errorf(protocol.CodeInvalidParams, "invalid search arguments: %v", err)
	}
	if a.Limit == 0 {
		a.Limit = 10
	}

	results, err := provider.Search(ctx, index.SearchQuery{
		Query:    a.Query,
		Limit:    a.Limit,
		Kinds:    a.Filters.Kinds,
		PathGlob: a.Filters.Path,
	})
	if err != nil {
		return nil, s.mapProviderError("search", err)
	}
	if results == nil {
		results = []types.SearchResult{}
	}
	return toolResult(map[string]interface{}{
		"results": results,
		"total":   len(results),
	})
}

// symbolsArgs mirrors the symbols tool schema.
type symbolsArgs struct {
	Name string           `json:"name"`
	Kind types.SymbolKind `json:"kind"`
	File string           `json:"file"`
}

// handleSymbols handles the symbols tool invocation
func (s *Server) handleSymbols(ctx context.Context, args json.RawMessage) (interface{}, *protocol.Error) {
	provider, perr := s.indexProvider()
	if perr != nil {
		return nil, perr
	}

	var a symbolsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, protocol.Errorf(protocol.CodeInvalidParams, "invalid symbols arguments: %v", err)
	}

	symbols, err := provider.Symbols(ctx, index.SymbolFilter{Name: a.Name, Kind: a.Kind, File: a.File})
	if err != nil {
		return nil, s.mapProviderError("symbols", err)
	}
	if symbols == nil {
		symbols = []types.Symbol{}
	}
	return toolResult(map[string]interface{}{
		"symbols": symbols,
		"total":   len(symbols),
	})
}

// filesArgs mirrors the files tool schema.
type filesArgs struct {
	Prefix string `json:"prefix"`
	Glob   string `json:"glob"`
}

// handleFiles handles the files tool invocation
func (s *Server) handleFiles(ctx context.Context, args json.RawMessage) (interface{}, *protocol.Error) {
	provider, perr := s.indexProvider()
	if perr != nil {
		return nil, perr
	}

	var a filesArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, protocol.Errorf(protocol.CodeInvalidParams, "invalid files arguments: %v", err)
	}

	files, err := provider.Files(ctx, index.FileFilter{Prefix: a.Prefix, Glob: a.Glob})
	if err != nil {
		return nil, s.mapProviderError("files", err)
	}
	if files == nil {
		files = []types.FileRecord{}
	}
	return toolResult(map[string]interface{}{
		"files": files,
		"total": len(files),
	})
}

// showArgs mirrors the show tool schema.
type showArgs struct {
	ID   int64  `json:"id"`
	File string `json:"file"`
	Name string `json:"name"`
}

// handleShow handles the show tool invocation
func (s *Server) handleShow(ctx context.Context, args json.RawMessage) (interface{}, *protocol.Error) {
	provider, perr := s.indexProvider()
	if perr != nil {
		return nil, perr
	}

	var a showArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, protocol.Errorf(protocol.CodeInvalidParams, "invalid show arguments: %v", err)
	}

	detail, err := provider.Show(ctx, index.ShowQuery{ID: a.ID, File: a.File, Name: a.Name})
	if err != nil {
		return nil, s.mapProviderError("show", err)
	}
	return toolResult(detail)
}

// treeArgs mirrors the tree tool schema.
type treeArgs struct {
	Path  string `json:"path"`
	Depth int    `json:"depth"`
}

// handleTree handles the tree tool invocation
func (s *Server) handleTree(ctx context.Context, args json.RawMessage) (interface{}, *protocol.Error) {
	provider, perr := s.indexProvider()
	if perr != nil {
		return nil, perr
	}

	var a treeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, protocol.Errorf(protocol.CodeInvalidParams, "invalid tree arguments: %v", err)
	}

	tree, err := provider.Tree(ctx, a.Path, a.Depth)
	if err != nil {
		return nil, s.mapProviderError("tree", err)
	}
	return toolResult(tree)
}

// symbolIDArgs is shared by callers, callees, and usage.
type symbolIDArgs struct {
	ID int64 `json:"id"`
}

// handleCallers handles the callers tool invocation
func (s *Server) handleCallers(ctx context.Context, args json.RawMessage) (interface{}, *protocol.Error) {
	return s.handleReferences(ctx, args, "callers")
}

// handleCallees handles the callees tool invocation
func (s *Server) handleCallees(ctx context.Context, args json.RawMessage) (interface{}, *protocol.Error) {
	return s.handleReferences(ctx, args, "callees")
}

func (s *Server) handleReferences(ctx context.Context, args json.RawMessage, direction string) (interface{}, *protocol.Error) {
	provider, perr := s.indexProvider()
	if perr != nil {
		return nil, perr
	}

	var a symbolIDArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, protocol.Errorf(protocol.CodeInvalidParams, "invalid %s arguments: %v", direction, err)
	}

	var symbols []types.Symbol
	var err error
	if direction == "callers" {
		symbols, err = provider.Callers(ctx, a.ID)
	} else {
		symbols, err = provider.Callees(ctx, a.ID)
	}
	if err != nil {
		return nil, s.mapProviderError(direction, err)
	}
	if symbols == nil {
		symbols = []types.Symbol{}
	}
	return toolResult(map[string]interface{}{
		direction: symbols,
		"total":   len(symbols),
	})
}

// handleUsage handles the usage tool invocation
func (s *Server) handleUsage(ctx context.Context, args json.RawMessage) (interface{}, *protocol.Error) {
	provider, perr := s.indexProvider()
	if perr != nil {
		return nil, perr
	}

	var a symbolIDArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, protocol.Errorf(protocol.CodeInvalidParams, "invalid usage arguments: %v", err)
	}

	usage, err := provider.Usage(ctx, a.ID)
	if err != nil {
		return nil, s.mapProviderError("usage", err)
	}
	return toolResult(usage)
}

// handleStatus handles the status tool invocation
func (s *Server) handleStatus(ctx context.Context, _ json.RawMessage) (interface{}, *protocol.Error) {
	provider, perr := s.indexProvider()
	if perr != nil {
		return nil, perr
	}

	status, err := provider.Status(ctx)
	if err != nil {
		return nil, s.mapProviderError("status", err)
	}
	return toolResult(status)
}
