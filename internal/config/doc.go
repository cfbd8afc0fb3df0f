// Package config assembles the process configuration from environment
// variables. Each backend package owns its own variables (bridge, embedder,
// rerank, fixture); this package composes them and adds the process-wide
// settings: database path, project root, rules override, log level and the
// HTTP listen address.
package config
