// Package pipeline orchestrates a code-search request from strategy to
// budgeted result set.
//
// A request flows through these steps:
//
//  1. Derive the strategy (tier, scenario, hints, profile, per-level limits).
//  2. Replay a recorded fixture when the request names a known scenario id.
//  3. Targeted queries try the exact-match backend first and return its
//     hits directly when there are any.
//  4. Otherwise one vector stage per preferred level runs concurrently.
//     The entity-impact profile tops up a short class stage with an
//     exact-match lookup for the entity.
//  5. Profile filters, stage merge, grouping and scenario specialization.
//  6. Role and structural boosts, then the optional external reranker.
//  7. The context budget allocator packs the result under the token limit.
//     When nothing is delivered the built-in fallback dataset is used.
//
// Backend failures never surface as errors. Search only fails for invalid
// requests (types.ErrInvalidRequest).
package pipeline
