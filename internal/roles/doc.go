// Package roles classifies symbol hits into structural roles such as
// REST_CONTROLLER, REPOSITORY or ENTITY.
//
// Classification is a pure function of the hit. Three ordered rule tables
// contribute roles, and all matching rules apply:
//
//   - the upstream metadata role, mapped through an alias table
//   - AnnotationRules, matched as suffixes of normalized annotation names
//   - NameRules, predicates over the FQN, simple name, path and kind
//
// A hit that matches nothing is classified OTHER. Each table entry is
// exported so it can be tested on its own.
package roles
