package types

import "errors"

// Domain errors for type validation
var (
	ErrEmptySymbolName   = errors.New("symbol name is required")
	ErrInvalidSymbolKind = errors.New("invalid symbol kind")
	ErrMissingFilePath   = errors.New("file path is required")
	ErrInvalidPosition   = errors.New("invalid position: line numbers must be positive and ordered")

	ErrInvalidRank           = errors.New("rank must be >= 1")
	ErrInvalidRelevanceScore = errors.New("relevance score must be between 0 and 1")
)
