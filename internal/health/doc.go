// Package health reports whether the search backends are wired and reachable:
// the IDE bridge, the local vector index, the embedding provider, the
// reranker and fixture replay. The same report backs the MCP health_check
// tool, the HTTP /healthz route and the health command.
package health
