package server

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/dshills/codescope-mcp/internal/index"
	"github.com/dshills/codescope-mcp/internal/protocol"
)

// maxCompletions caps a completion/complete value list.
const maxCompletions = 20

// completionParams is the payload of completion/complete.
type completionParams struct {
	Ref struct {
		Type string `json:"type"`
		Name string `json:"name,omitempty"`
		URI  string `json:"uri,omitempty"`
	} `json:"ref"`
	Argument struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"argument"`
}

type completionValues struct {
	Values  []string `json:"values"`
	HasMore bool     `json:"hasMore"`
}

type completionResult struct {
	Completion completionValues `json:"completion"`
}

// completionComplete autocompletes prompt and resource arguments from the
// index: file paths for path-like arguments, symbol names for symbol-like
// ones. Arguments it does not recognize complete to nothing.
func (s *Server) completionComplete(ctx context.Context, params json.RawMessage) (interface{}, *protocol.Error) {
	var p completionParams
	if len(params) == 0 {
		return nil, protocol.NewError(protocol.CodeInvalidParams, "missing params")
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, protocol.Errorf(protocol.CodeInvalidParams, "invalid completion/complete parameters: %v", err)
	}
	if p.Ref.Type == "" {
		return nil, protocol.NewError(protocol.CodeInvalidParams, "missing ref parameter")
	}

	provider, perr := s.indexProvider()
	if perr != nil {
		return nil, perr
	}

	var values []string
	var err error
	switch {
	case p.Ref.Type == "ref/resource", p.Argument.Name == "file_path":
		values, err = completeFilePaths(ctx, provider, p.Argument.Value)
	case p.Argument.Name == "symbol_name", p.Argument.Name == "target":
		values, err = completeSymbolNames(ctx, provider, p.Argument.Value)
	case p.Argument.Name == "direction":
		values = filterStatic([]string{"callers", "callees", "both"}, p.Argument.Value)
	}
	if err != nil {
		return nil, s.mapProviderError("completion/complete", err)
	}
	if values == nil {
		values = []string{}
	}
	return completionResult{Completion: completionValues{Values: values, HasMore: false}}, nil
}

func completeFilePaths(ctx context.Context, provider index.Provider, value string) ([]string, error) {
	files, err := provider.Files(ctx, index.FileFilter{})
	if err != nil {
		return nil, err
	}
	var values []string
	for _, f := range files {
		if !strings.Contains(f.Path, value) {
			continue
		}
		values = append(values, f.Path)
		if len(values) == maxCompletions {
			break
		}
	}
	return values, nil
}

func completeSymbolNames(ctx context.Context, provider index.Provider, value string) ([]string, error) {
	if value == "" {
		return nil, nil
	}
	symbols, err := provider.Symbols(ctx, index.SymbolFilter{Name: value})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(symbols))
	var values []string
	for _, sym := range symbols {
		if _, dup := seen[sym.Name]; dup {
			continue
		}
		seen[sym.Name] = struct{}{}
		values = append(values, sym.Name)
		if len(values) == maxCompletions {
			break
		}
	}
	return values, nil
}

func filterStatic(options []string, value string) []string {
	var values []string
	for _, o := range options {
		if strings.Contains(o, value) {
			values = append(values, o)
		}
	}
	return values
}
