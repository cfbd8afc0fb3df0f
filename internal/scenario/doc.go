// Package scenario reshapes merged results for recognized query scenarios.
//
//   - entity-endpoints correlates controllers with their HTTP endpoints,
//     drawing on method hits, controller source files and metadata
//   - entity-impact buckets matching types by role (entities, repositories,
//     controllers, DTOs, tests, other)
//   - all-beans expands module hits into one hit per Spring bean
//   - bean-post-processor keeps non-test spring-context hits
//
// When the retrieved hits are not enough, the entity scenarios fall back to
// scanning the project tree for entity-named Java files. The scan honours
// .gitignore and the configured skip directories.
package scenario
