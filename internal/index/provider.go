package index

import (
	"context"
	"errors"

	"github.com/dshills/codescope-mcp/pkg/types"
)

// Provider faults. Everything else a Provider returns is treated as a
// backend error whose detail stays on the server side.
var (
	// ErrNotIndexed is returned when the project has no index yet
	ErrNotIndexed = errors.New("project not indexed")
	// ErrNotFound is returned when a requested entity doesn't exist in the index
	ErrNotFound = errors.New("not found")
	// ErrUnavailable is returned when the index exists but cannot be queried
	ErrUnavailable = errors.New("index unavailable")
)

// SearchQuery contains parameters for a relevance-ranked search
type SearchQuery struct {
	Query    string
	Limit    int
	Kinds    []types.SymbolKind // Optional filter by symbol kind
	PathGlob string             // Optional glob over file paths
}

// SymbolFilter narrows a symbol listing
type SymbolFilter struct {
	Name string // Substring match on symbol name
	Kind types.SymbolKind
	File string // Exact file path scope
}

// FileFilter narrows a file listing
type FileFilter struct {
	Prefix string
	Glob   string
}

// ShowQuery identifies a single symbol either by ID or by (File, Name)
type ShowQuery struct {
	ID   int64
	File string
	Name string
}

// ByID reports whether the query addresses the symbol by identifier.
func (q ShowQuery) ByID() bool { return q.ID != 0 }

// Provider is the read-only query interface to the external indexer.
// Implementations must honor context cancellation on every call.
type Provider interface {
	// Search returns matches ordered by descending relevance.
	Search(ctx context.Context, q SearchQuery) ([]types.SearchResult, error)
	// Symbols lists symbol records matching the filter, ordered by file and line.
	Symbols(ctx context.Context, f SymbolFilter) ([]types.Symbol, error)
	// Files lists indexed file records matching the filter, ordered by path.
	Files(ctx context.Context, f FileFilter) ([]types.FileRecord, error)
	// Show returns the detail record for one symbol, or ErrNotFound.
	Show(ctx context.Context, q ShowQuery) (*types.SymbolDetail, error)
	// Tree returns the structure rooted at path, pruned to depth levels
	// (depth <= 0 means unlimited).
	Tree(ctx context.Context, path string, depth int) (*types.TreeNode, error)
	// Callers returns symbols that reference the given symbol.
	Callers(ctx context.Context, id int64) ([]types.Symbol, error)
	// Callees returns symbols the given symbol references.
	Callees(ctx context.Context, id int64) ([]types.Symbol, error)
	// Usage returns reference statistics for the given symbol.
	Usage(ctx context.Context, id int64) (*types.UsageStats, error)
	// Status returns index statistics.
	Status(ctx context.Context) (*types.IndexStatus, error)

	Close() error
}
