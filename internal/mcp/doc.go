// Package mcp implements the Model Context Protocol (MCP) server for ideactx.
//
// The MCP server exposes these tools to AI coding assistants:
//   - search_java_symbol: Staged search over Java modules, classes and methods
//   - search_java_class: Deprecated alias of search_java_symbol
//   - health_check: Report bridge, vector index, embedder, rerank and fixture status
//   - index_symbols: Embed an IDE bridge symbol dump (only with a vector index)
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The same tools are also served over the streamable HTTP transport when the
// HTTP API mounts StreamableHTTP.
//
// # Basic Usage
//
// The MCP server is typically started via the serve command:
//
//	ideactx serve
//
// It then listens on stdin for MCP protocol messages and writes responses to stdout.
//
// # Tool: search_java_symbol
//
//	Request:
//	{
//	  "name": "search_java_symbol",
//	  "arguments": {
//	    "query": "which endpoints handle visit records",
//	    "limit": 5,
//	    "moduleHint": "spring-petclinic-visits-service",
//	    "preferredLevels": ["method", "class"],
//	    "maxContextTokens": 6000
//	  }
//	}
//
//	Response (abridged):
//	{
//	  "requestId": "4f0c...",
//	  "query": "which endpoints handle visit records",
//	  "requestedLimit": 5,
//	  "moduleFilter": null,
//	  "moduleHint": "spring-petclinic-visits-service",
//	  "fallbackUsed": false,
//	  "rerankUsed": false,
//	  "totalCandidates": 3,
//	  "deliveredCount": 3,
//	  "omittedCount": 0,
//	  "stages": [{"name": "method", "hitCount": 4, "kinds": ["METHOD"], "levels": ["method"]}],
//	  "moduleCandidates": [],
//	  "deliveredResults": [{"fqn": "...VisitResource#create", "estimatedTokens": 32, ...}],
//	  "contextBudget": {"maxTokens": 6000, "usedTokens": 96, "omittedCount": 0, "truncated": false},
//	  "debug": {"strategy": {"profile": "balanced", "profileId": "entity-endpoints", ...}}
//	}
//
// The result carries the payload both as structured content and as indented
// JSON text for clients that only read text.
//
// # Tool: health_check
//
// Takes no arguments and returns a health.Report:
//
//	{
//	  "ok": true,
//	  "status": "ok",
//	  "bridge": {"url": "http://127.0.0.1:63000", "reachable": true, "status": "ok", "symbolCount": 1834},
//	  "vector": {"enabled": true, "reachable": true, "symbolCount": 2210, ...},
//	  "embedder": {"provider": "ollama", "model": "manutic/nomic-embed-code"},
//	  "rerankEnabled": false,
//	  "fixture": {"enabled": false, "scenarios": 0}
//	}
//
// # Error Handling
//
// Handlers return *MCPError values:
//
//	{
//	  "error": {
//	    "code": -32602,
//	    "message": "invalid request: limit must be <= 20",
//	    "data": {"fields": [{"field": "limit", "rule": "max", "param": "20", "reason": "limit must be <= 20"}]}
//	  }
//	}
//
// Error codes:
//   - -32602: Invalid params (missing or out-of-range arguments)
//   - -32603: Internal error
//   - -32002: Indexing in progress
//   - -32003: Vector index unavailable
//
// Backend failures during search are not errors: the pipeline degrades to
// fewer hits or the built-in fallback dataset and reports fallbackUsed.
//
// # Logging
//
// The MCP server logs to stderr (stdout is reserved for MCP protocol).
// Set the level with IDEACTX_LOG_LEVEL or --log-level.
package mcp
