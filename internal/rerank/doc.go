// Package rerank implements the optional second-pass reordering of ranked
// hits through a Jina-compatible rerank endpoint.
//
// Reranking is best-effort: it is skipped when disabled, and any transport
// or decoding failure leaves the ranked order untouched.
package rerank
