package server

var symbolKindEnum = []string{
	"function", "method", "struct", "class", "interface",
	"type", "const", "var", "field", "module",
}

// searchTool returns the tool definition for search
func searchTool() Tool {
	return Tool{
		Name:        "search",
		Description: "Search indexed code with a natural language or keyword query. Returns symbols ranked by relevance.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"minLength":   1,
					"description": "Search query (natural language or keywords)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"filters": map[string]interface{}{
					"type":        "object",
					"description": "Optional filters to narrow search",
					"properties": map[string]interface{}{
						"kinds": map[string]interface{}{
							"type":        "array",
							"description": "Filter by symbol kind",
							"items": map[string]interface{}{
								"type": "string",
								"enum": symbolKindEnum,
							},
						},
						"path": map[string]interface{}{
							"type":        "string",
							"description": "Glob pattern for file paths (e.g., 'internal/*')",
						},
					},
					"additionalProperties": false,
				},
			},
			"required":             []string{"query"},
			"additionalProperties": false,
		},
	}
}

// symbolsTool returns the tool definition for symbols
func symbolsTool() Tool {
	return Tool{
		Name:        "symbols",
		Description: "List indexed symbols, optionally filtered by name, kind, or file.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Substring to match against symbol names",
				},
				"kind": map[string]interface{}{
					"type":        "string",
					"description": "Filter by symbol kind",
					"enum":        symbolKindEnum,
				},
				"file": map[string]interface{}{
					"type":        "string",
					"description": "Restrict to symbols defined in this file (path relative to project root)",
				},
			},
			"additionalProperties": false,
		},
	}
}

// filesTool returns the tool definition for files
func filesTool() Tool {
	return Tool{
		Name:        "files",
		Description: "List indexed file paths, optionally filtered by prefix or glob pattern.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"prefix": map[string]interface{}{
					"type":        "string",
					"description": "Path prefix to match (relative to project root)",
				},
				"glob": map[string]interface{}{
					"type":        "string",
					"description": "Glob pattern for file paths (e.g., '*.go')",
				},
			},
			"additionalProperties": false,
		},
	}
}

// showTool returns the tool definition for show
func showTool() Tool {
	return Tool{
		Name:        "show",
		Description: "Show detailed information about one symbol, addressed by id or by (file, name).",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "integer",
					"description": "Symbol ID (from search or symbols results)",
					"minimum":     1,
				},
				"file": map[string]interface{}{
					"type":        "string",
					"description": "File path relative to project root",
				},
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Symbol name within the file",
				},
			},
			"oneOf": []interface{}{
				map[string]interface{}{"required": []string{"id"}},
				map[string]interface{}{"required": []string{"file", "name"}},
			},
			"additionalProperties": false,
		},
	}
}

// treeTool returns the tool definition for tree
func treeTool() Tool {
	return Tool{
		Name:        "tree",
		Description: "Show the project structure as a nested tree of directories and files.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Subtree root relative to the project root ('.' for the whole project)",
				},
				"depth": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum tree depth",
					"minimum":     1,
				},
			},
			"required":             []string{"path"},
			"additionalProperties": false,
		},
	}
}

// symbolIDSchema is shared by the reference-navigation tools.
func symbolIDSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"id": map[string]interface{}{
				"type":        "integer",
				"description": "Symbol ID",
				"minimum":     1,
			},
		},
		"required":             []string{"id"},
		"additionalProperties": false,
	}
}

// callersTool returns the tool definition for callers
func callersTool() Tool {
	return Tool{
		Name:        "callers",
		Description: "Find all symbols that call or reference a given symbol.",
		InputSchema: symbolIDSchema(),
	}
}

// calleesTool returns the tool definition for callees
func calleesTool() Tool {
	return Tool{
		Name:        "callees",
		Description: "Find all symbols that a given symbol calls or references.",
		InputSchema: symbolIDSchema(),
	}
}

// usageTool returns the tool definition for usage
func usageTool() Tool {
	return Tool{
		Name:        "usage",
		Description: "Get usage statistics for a symbol: reference count, callers, and callees.",
		InputSchema: symbolIDSchema(),
	}
}

// statusTool returns the tool definition for status
func statusTool() Tool {
	return Tool{
		Name:        "status",
		Description: "Get index status: file and symbol counts, size, and last index time.",
		InputSchema: map[string]interface{}{
			"type":                 "object",
			"properties":           map[string]interface{}{},
			"additionalProperties": false,
		},
	}
}
