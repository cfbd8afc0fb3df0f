// Package strategy derives the per-request retrieval strategy: complexity
// tier, scenario, entity and module hints, the selected profile and the
// per-stage limits. It also builds the stage-specific vector query text.
package strategy
