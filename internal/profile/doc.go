// Package profile owns the retrieval profile registry and the rule tables
// used to route queries, plus the stage filtering, merging and grouping
// steps driven by a profile.
//
// The registry is loaded from an embedded defaults.yaml. An optional
// override file can replace rule sections or individual profiles by id:
//
//	reg, err := profile.Load(os.Getenv("IDEACTX_RULES_FILE"))
//	p := reg.ForScenario(types.ScenarioEntityImpact)
//
// A Registry is immutable after Load and safe for concurrent use.
package profile
