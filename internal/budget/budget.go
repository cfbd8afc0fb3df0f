package budget

import (
	"github.com/dshills/ideactx-mcp/internal/ranker"
	"github.com/dshills/ideactx-mcp/pkg/types"
)

// Breadth strategy parameters
const (
	DetailedCount  = 5
	minPreviewCost = 5
	previewDivisor = 4

	PreviewDetailed = "detailed"
	PreviewMinimal  = "minimal"
)

// Allocate packs hits in order under limit tokens. The first hit that does
// not fit ends the walk; it and everything after it are counted as omitted.
// The limit is clamped to the supported range and input hits are not modified.
func Allocate(hits []types.SymbolHit, strategy types.BudgetStrategy, limit int) types.ContextBudgetReport {
	limit = types.ClampTokenLimit(limit)
	report := types.ContextBudgetReport{
		Delivered:  []types.SymbolHit{},
		TokenLimit: limit,
	}
	for i := range hits {
		hit := hits[i]
		cost := Cost(&hit, strategy, i)
		if report.UsedTokens+cost > limit {
			report.Truncated = true
			report.OmittedCount = len(hits) - i
			break
		}
		if strategy == types.BudgetBreadth {
			hit = hit.Clone()
			hit.Meta().PreviewLevel = previewLevel(i)
		}
		report.UsedTokens += cost
		report.Delivered = append(report.Delivered, hit)
	}
	return report
}

// Cost is the token charge of the hit at position index under strategy
func Cost(hit *types.SymbolHit, strategy types.BudgetStrategy, index int) int {
	cost := ranker.EstimateTokens(hit)
	if strategy == types.BudgetBreadth && index >= DetailedCount {
		cost = max(minPreviewCost, cost/previewDivisor)
	}
	return cost
}

func previewLevel(index int) string {
	if index < DetailedCount {
		return PreviewDetailed
	}
	return PreviewMinimal
}
