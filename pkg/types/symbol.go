package types

// SymbolKind represents the type of code symbol
type SymbolKind string

const (
	KindFunction  SymbolKind = "function"
	KindMethod    SymbolKind = "method"
	KindStruct    SymbolKind = "struct"
	KindClass     SymbolKind = "class"
	KindInterface SymbolKind = "interface"
	KindType      SymbolKind = "type"
	KindConst     SymbolKind = "const"
	KindVar       SymbolKind = "var"
	KindField     SymbolKind = "field"
	KindModule    SymbolKind = "module"
)

// ValidKind reports whether k is one of the known symbol kinds.
func ValidKind(k SymbolKind) bool {
	switch k {
	case KindFunction, KindMethod, KindStruct, KindClass, KindInterface,
		KindType, KindConst, KindVar, KindField, KindModule:
		return true
	default:
		return false
	}
}

// Symbol is a code symbol record as stored in the index
type Symbol struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Kind      SymbolKind `json:"kind"`
	FilePath  string     `json:"file_path"` // Relative to project root
	Package   string     `json:"package,omitempty"`
	Signature string     `json:"signature,omitempty"`
	StartLine int        `json:"start_line"`
	EndLine   int        `json:"end_line"`
}

// SymbolDetail extends Symbol with the full documentation and body excerpt
// returned by detail lookups
type SymbolDetail struct {
	Symbol
	DocComment string `json:"doc_comment,omitempty"`
	Snippet    string `json:"snippet,omitempty"`
}

// Validate performs basic validation of the symbol record
func (s *Symbol) Validate() error {
	if s.Name == "" {
		return ErrEmptySymbolName
	}
	if !ValidKind(s.Kind) {
		return ErrInvalidSymbolKind
	}
	if s.FilePath == "" {
		return ErrMissingFilePath
	}
	if s.StartLine <= 0 || s.EndLine < s.StartLine {
		return ErrInvalidPosition
	}
	return nil
}
