package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dshills/codescope-mcp/internal/index"
	"github.com/dshills/codescope-mcp/internal/protocol"
)

const (
	resourceScheme    = "codescope://"
	resourceStatus    = resourceScheme + "status"
	resourceTree      = resourceScheme + "tree"
	resourceFileRoot  = resourceScheme + "file/"
	resourceSymPrefix = resourceScheme + "symbol/"

	// maxFileResources caps per-file resources in resources/list
	maxFileResources = 100
)

// resource describes one readable resource.
type resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// resourceContent is one entry of a resources/read result.
type resourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
}

type resourcesListResult struct {
	Resources []resource `json:"resources"`
}

type resourcesReadResult struct {
	Contents []resourceContent `json:"contents"`
}

// resourcesList advertises the index-backed resources: status, tree, and one
// entry per indexed file (capped).
func (s *Server) resourcesList(ctx context.Context) (interface{}, *protocol.Error) {
	provider, perr := s.indexProvider()
	if perr != nil {
		return nil, perr
	}

	resources := []resource{
		{URI: resourceStatus, Name: "Index Status", Description: "Current index statistics", MimeType: "application/json"},
		{URI: resourceTree, Name: "Project Tree", Description: "Hierarchical view of all indexed files", MimeType: "application/json"},
	}

	files, err := provider.Files(ctx, index.FileFilter{})
	if err != nil {
		// The fixed resources are still valid without a file listing.
		s.logger.Warn("file listing for resources failed", "error", err)
		return resourcesListResult{Resources: resources}, nil
	}
	for i, f := range files {
		if i >= maxFileResources {
			break
		}
		name := f.Path
		if idx := strings.LastIndex(f.Path, "/"); idx >= 0 {
			name = f.Path[idx+1:]
		}
		resources = append(resources, resource{
			URI:         resourceFileRoot + f.Path,
			Name:        name,
			Description: fmt.Sprintf("%s file with %d symbols", f.Language, f.SymbolCount),
			MimeType:    "application/json",
		})
	}
	return resourcesListResult{Resources: resources}, nil
}

// resourcesReadParams is the payload of resources/read.
type resourcesReadParams struct {
	URI string `json:"uri"`
}

// resourcesRead serves one resource by URI.
func (s *Server) resourcesRead(ctx context.Context, params json.RawMessage) (interface{}, *protocol.Error) {
	var p resourcesReadParams
	if len(params) == 0 {
		return nil, protocol.NewError(protocol.CodeInvalidParams, "missing params")
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, protocol.Errorf(protocol.CodeInvalidParams, "invalid resources/read parameters: %v", err)
	}
	if p.URI == "" {
		return nil, protocol.NewError(protocol.CodeInvalidParams, "missing uri parameter")
	}

	provider, perr := s.indexProvider()
	if perr != nil {
		return nil, perr
	}

	var payload interface{}
	var err error
	switch {
	case p.URI == resourceStatus:
		payload, err = provider.Status(ctx)
	case p.URI == resourceTree:
		payload, err = provider.Tree(ctx, ".", 0)
	case strings.HasPrefix(p.URI, resourceFileRoot):
		payload, err = s.readFileResource(ctx, provider, strings.TrimPrefix(p.URI, resourceFileRoot))
	case strings.HasPrefix(p.URI, resourceSymPrefix):
		payload, err = s.readSymbolResource(ctx, provider, strings.TrimPrefix(p.URI, resourceSymPrefix))
	default:
		return nil, protocol.Errorf(protocol.CodeInvalidParams, "unknown resource uri: %s", p.URI)
	}
	if err != nil {
		return nil, s.mapProviderError("resources/read", err)
	}

	text, merr := json.MarshalIndent(payload, "", "  ")
	if merr != nil {
		return nil, protocol.NewError(protocol.CodeInternalError, "failed to serialize resource")
	}
	return resourcesReadResult{Contents: []resourceContent{{
		URI:      p.URI,
		MimeType: "application/json",
		Text:     string(text),
	}}}, nil
}

// readFileResource returns a file's record plus its symbols.
func (s *Server) readFileResource(ctx context.Context, provider index.Provider, path string) (interface{}, error) {
	files, err := provider.Files(ctx, index.FileFilter{Prefix: path})
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if f.Path != path {
			continue
		}
		symbols, err := provider.Symbols(ctx, index.SymbolFilter{File: path})
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"file": f, "symbols": symbols}, nil
	}
	return nil, index.ErrNotFound
}

// readSymbolResource returns a symbol's detail plus its usage.
func (s *Server) readSymbolResource(ctx context.Context, provider index.Provider, rawID string) (interface{}, error) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return nil, index.ErrNotFound
	}
	detail, err := provider.Show(ctx, index.ShowQuery{ID: id})
	if err != nil {
		return nil, err
	}
	usage, err := provider.Usage(ctx, id)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"symbol": detail, "usage": usage}, nil
}
