package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/puppetdoc-mcp/pkg/types"
)

// statementKinds lists the kinds accepted by the search_docs kind filter
var statementKinds = []string{
	string(types.KindClass),
	string(types.KindDefinedType),
	string(types.KindFunction),
	string(types.KindPlan),
	string(types.KindDataTypeAlias),
}

// indexModuleTool returns the tool definition for index_module
func indexModuleTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_module",
		Description: "Index the documented declarations of a Puppet module so they can be searched",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Absolute path to the Puppet module root (must contain manifests/, functions/, types/ or plans/)",
				},
				"force_reindex": map[string]any{
					"type":        "boolean",
					"description": "If true, re-parse all files ignoring content hashes (full rebuild)",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}

// searchDocsTool returns the tool definition for search_docs
func searchDocsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_docs",
		Description: "Search declaration names and docstrings of an indexed Puppet module",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Absolute path to the indexed Puppet module",
				},
				"query": map[string]any{
					"type":        "string",
					"description": "Keywords to match; a trailing * matches a prefix",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"filters": map[string]any{
					"type":        "object",
					"description": "Optional filters to narrow search",
					"properties": map[string]any{
						"kinds": map[string]any{
							"type":        "array",
							"description": "Filter by declaration kind",
							"items": map[string]any{
								"type": "string",
								"enum": statementKinds,
							},
						},
						"file_pattern": map[string]any{
							"type":        "string",
							"description": "Glob pattern for file paths relative to the module root (e.g., 'manifests/*')",
						},
						"min_relevance": map[string]any{
							"type":        "number",
							"description": "Minimum relevance score threshold (0.0-1.0)",
							"minimum":     0.0,
							"maximum":     1.0,
						},
					},
				},
			},
			Required: []string{"path", "query"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Query indexing status and statistics for a Puppet module",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Absolute path to the Puppet module",
				},
			},
			Required: []string{"path"},
		},
	}
}

// parseSourceTool returns the tool definition for parse_source
func parseSourceTool() mcp.Tool {
	return mcp.Tool{
		Name:        "parse_source",
		Description: "Parse Puppet source text and return its documented declarations without indexing",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"source": map[string]any{
					"type":        "string",
					"description": "Puppet manifest source text",
				},
				"file": map[string]any{
					"type":        "string",
					"description": "Path of the source relative to a module root; paths under plans/ are plan files",
					"default":     defaultSourceFile,
				},
				"runtime_version": map[string]any{
					"type":        "string",
					"description": "Puppet version to parse against (semantic version); defaults to the server runtime",
				},
			},
			Required: []string{"source"},
		},
	}
}
