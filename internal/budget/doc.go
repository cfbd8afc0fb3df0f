// Package budget packs ranked hits into a bounded token budget.
//
// Costs are estimated from summary length. The depth strategy charges every
// hit in full; the breadth strategy charges the first few hits in full and
// previews the rest at a fraction of their cost.
package budget
