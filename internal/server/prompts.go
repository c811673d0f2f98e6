package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/codescope-mcp/internal/index"
	"github.com/dshills/codescope-mcp/internal/protocol"
	"github.com/dshills/codescope-mcp/pkg/types"
)

// promptArgument describes one argument accepted by a prompt.
type promptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// promptDescriptor describes one prompt as advertised by prompts/list.
type promptDescriptor struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Arguments   []promptArgument `json:"arguments"`
}

type promptsListResult struct {
	Prompts []promptDescriptor `json:"prompts"`
}

// promptMessage is one conversation message of a prompts/get result.
type promptMessage struct {
	Role    string       `json:"role"`
	Content contentBlock `json:"content"`
}

type promptsGetResult struct {
	Description string          `json:"description"`
	Messages    []promptMessage `json:"messages"`
}

// promptCatalogue is the fixed set of index-backed prompts.
func promptCatalogue() []promptDescriptor {
	return []promptDescriptor{
		{
			Name:        "explain_symbol",
			Description: "Explain what a symbol does and how it's used in the codebase",
			Arguments: []promptArgument{
				{Name: "symbol_name", Description: "Name of the symbol to explain", Required: true},
			},
		},
		{
			Name:        "find_similar",
			Description: "Find similar code patterns or implementations in the codebase",
			Arguments: []promptArgument{
				{Name: "description", Description: "Description of the code pattern to find", Required: true},
			},
		},
		{
			Name:        "analyze_dependencies",
			Description: "Analyze the dependency graph of a symbol",
			Arguments: []promptArgument{
				{Name: "target", Description: "Symbol name to analyze", Required: true},
				{Name: "direction", Description: "Direction to analyze: 'callers' (who uses this), 'callees' (what this uses), or 'both'", Required: false},
			},
		},
		{
			Name:        "summarize_file",
			Description: "Generate a summary of a file's purpose and contents",
			Arguments: []promptArgument{
				{Name: "file_path", Description: "Path to the file to summarize (relative to project root)", Required: true},
			},
		},
		{
			Name:        "refactor_suggestions",
			Description: "Suggest refactoring opportunities for a symbol",
			Arguments: []promptArgument{
				{Name: "target", Description: "Symbol name to analyze", Required: true},
			},
		},
		{
			Name:        "architecture_overview",
			Description: "Generate an overview of the project architecture based on indexed symbols",
			Arguments:   []promptArgument{},
		},
	}
}

// promptsList advertises the prompt catalogue.
func (s *Server) promptsList(_ context.Context) (interface{}, *protocol.Error) {
	return promptsListResult{Prompts: promptCatalogue()}, nil
}

// promptsGetParams is the payload of prompts/get.
type promptsGetParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments"`
}

// promptsGet assembles one prompt's messages from index content.
func (s *Server) promptsGet(ctx context.Context, params json.RawMessage) (interface{}, *protocol.Error) {
	var p promptsGetParams
	if len(params) == 0 {
		return nil, protocol.NewError(protocol.CodeInvalidParams, "missing params")
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, protocol.Errorf(protocol.CodeInvalidParams, "invalid prompts/get parameters: %v", err)
	}
	if p.Name == "" {
		return nil, protocol.NewError(protocol.CodeInvalidParams, "missing prompt name")
	}

	provider, perr := s.indexProvider()
	if perr != nil {
		return nil, perr
	}

	arg := func(key string) string { return p.Arguments[key] }

	var desc, text string
	var err error
	switch p.Name {
	case "explain_symbol":
		desc = "Explanation of symbol purpose and usage"
		text, err = explainSymbolPrompt(ctx, provider, arg("symbol_name"))
	case "find_similar":
		desc = "Search for similar code patterns"
		text = fmt.Sprintf(
			"Find code in this codebase that is similar to or implements: %s\n\nUse the 'search' tool to find relevant symbols, then analyze them.",
			arg("description"))
	case "analyze_dependencies":
		desc = "Dependency graph analysis"
		text, err = analyzeDependenciesPrompt(ctx, provider, arg("target"), arg("direction"))
	case "summarize_file":
		desc = "File purpose and content summary"
		text, err = summarizeFilePrompt(ctx, provider, arg("file_path"))
	case "refactor_suggestions":
		desc = "Refactoring recommendations"
		text, err = refactorSuggestionsPrompt(ctx, provider, arg("target"))
	case "architecture_overview":
		desc = "Project architecture overview"
		text, err = architectureOverviewPrompt(ctx, provider)
	default:
		return nil, protocol.Errorf(protocol.CodeInvalidParams, "unknown prompt: %s", p.Name)
	}
	if err != nil {
		return nil, s.mapProviderError("prompts/get", err)
	}

	return promptsGetResult{
		Description: desc,
		Messages: []promptMessage{
			{Role: "user", Content: contentBlock{Type: "text", Text: text}},
		},
	}, nil
}

// explainSymbolPrompt gathers detail and usage for up to three symbols
// sharing the requested name.
func explainSymbolPrompt(ctx context.Context, provider index.Provider, name string) (string, error) {
	symbols, err := provider.Symbols(ctx, index.SymbolFilter{Name: name})
	if err != nil {
		return "", err
	}

	var sections []string
	for i, sym := range symbols {
		if i >= 3 {
			break
		}
		detail, err := provider.Show(ctx, index.ShowQuery{ID: sym.ID})
		if err != nil {
			return "", err
		}
		usage, err := provider.Usage(ctx, sym.ID)
		if err != nil {
			return "", err
		}
		sections = append(sections, fmt.Sprintf(
			"Symbol: %s (%s)\nFile: %s\nSignature: %s\nDoc: %s\nCallers: %s\nCallees: %s",
			sym.Name, sym.Kind, sym.FilePath,
			orNA(detail.Signature), orNA(detail.DocComment),
			symbolNames(usage.Callers), symbolNames(usage.Callees)))
	}

	body := fmt.Sprintf("No symbol found with name: %s", name)
	if len(sections) > 0 {
		body = strings.Join(sections, "\n\n---\n\n")
	}
	return fmt.Sprintf(
		"Please explain what '%s' does and how it's used in this codebase.\n\nContext from code index:\n%s",
		name, body), nil
}

// analyzeDependenciesPrompt builds the call-graph context for one symbol.
func analyzeDependenciesPrompt(ctx context.Context, provider index.Provider, target, direction string) (string, error) {
	if direction == "" {
		direction = "both"
	}
	symbols, err := provider.Symbols(ctx, index.SymbolFilter{Name: target})
	if err != nil {
		return "", err
	}

	info := "No symbol found"
	if len(symbols) > 0 {
		sym := symbols[0]
		callerText, calleeText := "N/A", "N/A"
		var callerCount, calleeCount int
		if direction != "callees" {
			callers, err := provider.Callers(ctx, sym.ID)
			if err != nil {
				return "", err
			}
			callerCount, callerText = len(callers), symbolList(callers)
		}
		if direction != "callers" {
			callees, err := provider.Callees(ctx, sym.ID)
			if err != nil {
				return "", err
			}
			calleeCount, calleeText = len(callees), symbolList(callees)
		}
		info = fmt.Sprintf(
			"Symbol: %s (%s)\nFile: %s\nCallers (%d):\n%s\n\nCallees (%d):\n%s",
			sym.Name, sym.Kind, sym.FilePath,
			callerCount, callerText, calleeCount, calleeText)
	}
	return fmt.Sprintf(
		"Analyze the dependency graph for '%s' (direction: %s).\n\nDependency Information:\n%s",
		target, direction, info), nil
}

// summarizeFilePrompt lists the indexed symbols of one file. The summary is
// built from the index, not the working tree, so it stays consistent with
// every other operation.
func summarizeFilePrompt(ctx context.Context, provider index.Provider, path string) (string, error) {
	language := "unknown"
	files, err := provider.Files(ctx, index.FileFilter{Prefix: path})
	if err != nil {
		return "", err
	}
	for _, f := range files {
		if f.Path == path {
			language = f.Language
			break
		}
	}

	symbols, err := provider.Symbols(ctx, index.SymbolFilter{File: path})
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		lines = append(lines, fmt.Sprintf("- %s (%s): %s", sym.Name, sym.Kind, orNA(sym.Signature)))
	}
	summary := "[no indexed symbols]"
	if len(lines) > 0 {
		summary = strings.Join(lines, "\n")
	}
	return fmt.Sprintf(
		"Please summarize the purpose and contents of this file.\n\nFile: %s\nLanguage: %s\n\nSymbols:\n%s",
		path, language, summary), nil
}

// refactorSuggestionsPrompt builds usage context for one symbol.
func refactorSuggestionsPrompt(ctx context.Context, provider index.Provider, target string) (string, error) {
	symbols, err := provider.Symbols(ctx, index.SymbolFilter{Name: target})
	if err != nil {
		return "", err
	}

	body := "No symbol found. Try the 'search' tool."
	if len(symbols) > 0 {
		sym := symbols[0]
		usage, err := provider.Usage(ctx, sym.ID)
		if err != nil {
			return "", err
		}
		body = fmt.Sprintf(
			"Symbol: %s (%s)\nFile: %s\nReferences: %d\nCallers: %d\nCallees: %d",
			sym.Name, sym.Kind, sym.FilePath,
			usage.ReferenceCount, len(usage.Callers), len(usage.Callees))
	}
	return fmt.Sprintf("Suggest refactoring opportunities for '%s'.\n\nContext:\n%s", target, body), nil
}

// architectureOverviewPrompt summarizes the index: totals plus a per-language
// file breakdown.
func architectureOverviewPrompt(ctx context.Context, provider index.Provider) (string, error) {
	status, err := provider.Status(ctx)
	if err != nil {
		return "", err
	}
	files, err := provider.Files(ctx, index.FileFilter{})
	if err != nil {
		return "", err
	}

	byLanguage := make(map[string]int)
	for _, f := range files {
		lang := f.Language
		if lang == "" {
			lang = "unknown"
		}
		byLanguage[lang]++
	}
	languages := make([]string, 0, len(byLanguage))
	for lang := range byLanguage {
		languages = append(languages, lang)
	}
	sort.Strings(languages)
	lines := make([]string, 0, len(languages))
	for _, lang := range languages {
		lines = append(lines, fmt.Sprintf("- %s: %d files", lang, byLanguage[lang]))
	}

	return fmt.Sprintf(
		"Generate an architecture overview for this project based on the indexed structure.\n\nProject Statistics:\n- Total files: %d\n- Total symbols: %d\n\nFiles by language:\n%s",
		status.FilesCount, status.SymbolsCount, strings.Join(lines, "\n")), nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func symbolNames(symbols []types.Symbol) string {
	names := make([]string, 0, len(symbols))
	for _, s := range symbols {
		names = append(names, s.Name)
	}
	return strings.Join(names, ", ")
}

func symbolList(symbols []types.Symbol) string {
	if len(symbols) == 0 {
		return "N/A"
	}
	lines := make([]string, 0, len(symbols))
	for _, s := range symbols {
		lines = append(lines, fmt.Sprintf("  - %s (%s)", s.Name, s.FilePath))
	}
	return strings.Join(lines, "\n")
}
