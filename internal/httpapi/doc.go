// Package httpapi exposes the search pipeline over plain HTTP with gin.
//
// Routes:
//
//	POST /api/search    body: search_java_symbol arguments, reply: search payload
//	POST /api/strategy  body: search arguments, reply: derived strategy
//	GET  /healthz       health report; 503 when degraded
//	GET  /metrics       Prometheus exposition
//	ANY  /mcp           MCP streamable HTTP transport, when mounted
//
// Validation failures reply 400 with per-field details:
//
//	{"error": "invalid search request: limit must be <= 20",
//	 "fields": [{"field": "limit", "rule": "max", "param": "20", "reason": "limit must be <= 20"}]}
package httpapi
