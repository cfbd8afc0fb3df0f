// Package ranker scores symbol hits.
//
// Rank computes a base relevance in [0,1] from token overlap, reference
// counts, recency, module preference and a small set of domain rules.
// Boost reorders already ranked hits using profile role boosts, call graph
// fan-in/fan-out and, for impact analysis, infrastructure and structural
// signals. Boost never rewrites Score.
package ranker
