package types

import "time"

// SearchResult represents a single search match with relevance information
type SearchResult struct {
	Rank           int     `json:"rank"` // Position in result set (1-based)
	RelevanceScore float64 `json:"relevance_score"`
	Symbol         Symbol  `json:"symbol"`
	Snippet        string  `json:"snippet,omitempty"`
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.Rank < 1 {
		return ErrInvalidRank
	}
	if sr.RelevanceScore < 0 || sr.RelevanceScore > 1 {
		return ErrInvalidRelevanceScore
	}
	return sr.Symbol.Validate()
}

// FileRecord contains metadata for an indexed source file
type FileRecord struct {
	Path        string `json:"path"` // Relative to project root
	Language    string `json:"language,omitempty"`
	SizeBytes   int64  `json:"size_bytes"`
	SymbolCount int    `json:"symbol_count"`
}

// TreeNode is one node of the project structure tree. Kind is "dir", "file",
// or "symbol"; Children is nil for leaves.
type TreeNode struct {
	Name     string      `json:"name"`
	Path     string      `json:"path"`
	Kind     string      `json:"kind"`
	Symbol   SymbolKind  `json:"symbol_kind,omitempty"`
	Children []*TreeNode `json:"children,omitempty"`
}

// UsageStats describes how a symbol is used across the index
type UsageStats struct {
	Symbol         Symbol   `json:"symbol"`
	ReferenceCount int      `json:"reference_count"`
	Callers        []Symbol `json:"callers"`
	Callees        []Symbol `json:"callees"`
}

// IndexStatus contains statistics about the queried index
type IndexStatus struct {
	Indexed       bool      `json:"indexed"`
	ProjectPath   string    `json:"project_path"`
	FilesCount    int       `json:"files_count"`
	SymbolsCount  int       `json:"symbols_count"`
	IndexSizeMB   float64   `json:"index_size_mb"`
	LastIndexedAt time.Time `json:"last_indexed_at,omitzero"`
}
