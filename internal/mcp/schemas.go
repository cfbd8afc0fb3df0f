package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/ideactx-mcp/internal/embedder"
	"github.com/dshills/ideactx-mcp/pkg/types"
)

// Tool names
const (
	ToolSearchSymbol = "search_java_symbol"
	ToolSearchClass  = "search_java_class"
	ToolHealthCheck  = "health_check"
	ToolIndexSymbols = "index_symbols"
)

// searchToolProperties is shared by search_java_symbol and its alias
func searchToolProperties() map[string]interface{} {
	return map[string]interface{}{
		"query": map[string]interface{}{
			"type":        "string",
			"description": "Natural language or identifier query, e.g. 'which endpoints handle visit records'",
		},
		"limit": map[string]interface{}{
			"type":        "integer",
			"description": "Maximum number of ranked candidates per stage (1-20)",
			"default":     types.DefaultLimit,
			"minimum":     1,
			"maximum":     types.MaxLimit,
		},
		"moduleFilter": map[string]interface{}{
			"type":        "string",
			"description": "Only return symbols from this module",
		},
		"moduleHint": map[string]interface{}{
			"type":        "string",
			"description": "Prefer symbols from this module without excluding others",
		},
		"preferredLevels": map[string]interface{}{
			"type":        "array",
			"description": "Vector index levels to query, in priority order",
			"maxItems":    types.MaxPreferredLevels,
			"items": map[string]interface{}{
				"type": "string",
				"enum": []string{string(types.LevelModule), string(types.LevelClass), string(types.LevelMethod)},
			},
		},
		"maxContextTokens": map[string]interface{}{
			"type":        "integer",
			"description": "Token budget for delivered results",
			"default":     types.DefaultTokenLimit,
			"minimum":     types.MinTokenLimit,
			"maximum":     types.MaxTokenLimit,
		},
		"scenarioId": map[string]interface{}{
			"type":        "string",
			"description": "Replay a recorded scenario when fixture mode is enabled",
		},
	}
}

// searchJavaSymbolTool returns the tool definition for search_java_symbol
func searchJavaSymbolTool() mcp.Tool {
	return mcp.Tool{
		Name: ToolSearchSymbol,
		Description: "Search PSI-enriched Java modules, classes and methods through the staged pipeline " +
			"(IDE bridge exact match, then module/class/method vector stages). Returns module hits plus " +
			"context-budgeted results with hierarchy and relation metadata.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: searchToolProperties(),
			Required:   []string{"query"},
		},
	}
}

// searchJavaClassTool returns the deprecated alias of search_java_symbol
func searchJavaClassTool() mcp.Tool {
	tool := searchJavaSymbolTool()
	tool.Name = ToolSearchClass
	tool.Description = "[Deprecated] Alias of search_java_symbol. Prefer passing preferredLevels, moduleHint " +
		"and maxContextTokens for staged control."
	return tool
}

// healthCheckTool returns the tool definition for health_check
func healthCheckTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolHealthCheck,
		Description: "Report IDE bridge, vector index, embedder, rerank and fixture status to verify wiring",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// indexSymbolsTool returns the tool definition for index_symbols
func indexSymbolsTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolIndexSymbols,
		Description: "Embed a symbol dump exported by the IDE bridge into the local vector index",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to a JSON symbol dump (array or {\"symbols\": [...]})",
				},
				"batch_size": map[string]interface{}{
					"type":        "integer",
					"description": "Texts per embedding request",
					"default":     embedder.DefaultBatchSize,
					"minimum":     1,
					"maximum":     embedder.MaxBatchSize,
				},
				"workers": map[string]interface{}{
					"type":        "integer",
					"description": "Concurrent embedding batches (0 uses the CPU count)",
					"default":     0,
					"minimum":     0,
				},
				"skip_module_entries": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, do not synthesize module-level entries",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}
