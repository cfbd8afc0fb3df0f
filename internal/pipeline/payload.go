package pipeline

import (
	"slices"

	"github.com/dshills/ideactx-mcp/internal/ranker"
	"github.com/dshills/ideactx-mcp/pkg/types"
)

// maxModuleCandidates caps the module hits listed in a payload
const maxModuleCandidates = 5

// StageSummary describes one retrieval stage without its hits
type StageSummary struct {
	Name     types.StageName    `json:"name"`
	HitCount int                `json:"hitCount"`
	Kinds    []types.SymbolKind `json:"kinds"`
	Levels   []string           `json:"levels"`
}

// ModuleStats are the aggregate counts carried by module-level hits
type ModuleStats struct {
	ClassCount   *int `json:"classCount,omitempty"`
	PackageCount *int `json:"packageCount,omitempty"`
	SpringBeans  *int `json:"springBeans,omitempty"`
}

// ModuleCandidate is a module hit with its aggregate stats
type ModuleCandidate struct {
	types.SymbolHit
	EstimatedTokens int          `json:"estimatedTokens"`
	Stats           *ModuleStats `json:"stats,omitempty"`
}

// DeliveredHit is a budgeted result with its token estimate
type DeliveredHit struct {
	types.SymbolHit
	EstimatedTokens int `json:"estimatedTokens"`
}

// BudgetSummary is the token accounting shown to clients
type BudgetSummary struct {
	MaxTokens    int  `json:"maxTokens"`
	UsedTokens   int  `json:"usedTokens"`
	OmittedCount int  `json:"omittedCount"`
	Truncated    bool `json:"truncated"`
}

// StrategyDebug exposes the derived strategy for troubleshooting
type StrategyDebug struct {
	Profile         types.Tier     `json:"profile"`
	Reason          string         `json:"reason"`
	PreferredLevels []types.Level  `json:"preferredLevels"`
	ModuleLimit     int            `json:"moduleLimit"`
	ClassLimit      int            `json:"classLimit"`
	MethodLimit     int            `json:"methodLimit"`
	ModuleFilter    *string        `json:"moduleFilter"`
	ModuleHint      *string        `json:"moduleHint"`
	Scenario        types.Scenario `json:"scenario,omitempty"`
	EntityHint      string         `json:"entityHint,omitempty"`
	ProfileID       string         `json:"profileId"`
}

// Payload is the client-facing summary of a search response
type Payload struct {
	RequestID        string            `json:"requestId"`
	Query            string            `json:"query"`
	RequestedLimit   int               `json:"requestedLimit"`
	ModuleFilter     *string           `json:"moduleFilter"`
	ModuleHint       *string           `json:"moduleHint"`
	PreferredLevels  []types.Level     `json:"preferredLevels"`
	FallbackUsed     bool              `json:"fallbackUsed"`
	RerankUsed       bool              `json:"rerankUsed"`
	TotalCandidates  int               `json:"totalCandidates"`
	DeliveredCount   int               `json:"deliveredCount"`
	OmittedCount     int               `json:"omittedCount"`
	Stages           []StageSummary    `json:"stages"`
	ModuleCandidates []ModuleCandidate `json:"moduleCandidates"`
	DeliveredResults []DeliveredHit    `json:"deliveredResults"`
	ContextBudget    BudgetSummary     `json:"contextBudget"`
	Debug            struct {
		Strategy StrategyDebug `json:"strategy"`
	} `json:"debug"`
}

// NewPayload summarizes resp for the request described by args. Request
// values the caller left out are reported from the derived strategy.
func NewPayload(args types.SearchArgs, resp *types.SearchResponse) *Payload {
	s := resp.Strategy
	p := &Payload{
		RequestID:       resp.RequestID,
		Query:           args.Query,
		RequestedLimit:  types.DefaultLimit,
		ModuleFilter:    args.ModuleFilter,
		ModuleHint:      args.ModuleHint,
		PreferredLevels: s.PreferredLevels,
		FallbackUsed:    resp.FallbackUsed,
		RerankUsed:      resp.RerankUsed,
		TotalCandidates: resp.TotalCandidates(),
		DeliveredCount:  len(resp.ContextBudget.Delivered),
		OmittedCount:    resp.ContextBudget.OmittedCount,
		Stages:          make([]StageSummary, 0, len(resp.Stages)),
		ContextBudget: BudgetSummary{
			MaxTokens:    resp.ContextBudget.TokenLimit,
			UsedTokens:   resp.ContextBudget.UsedTokens,
			OmittedCount: resp.ContextBudget.OmittedCount,
			Truncated:    resp.ContextBudget.Truncated,
		},
	}
	if args.Limit != nil {
		p.RequestedLimit = *args.Limit
	}
	if len(args.PreferredLevels) > 0 {
		p.PreferredLevels = make([]types.Level, len(args.PreferredLevels))
		for i, l := range args.PreferredLevels {
			p.PreferredLevels[i] = types.Level(l)
		}
	}
	if p.ModuleHint == nil && s.ModuleHint != "" {
		p.ModuleHint = &s.ModuleHint
	}

	for _, st := range resp.Stages {
		p.Stages = append(p.Stages, summarizeStage(st))
	}

	modules := resp.ModuleResults
	if len(modules) > maxModuleCandidates {
		modules = modules[:maxModuleCandidates]
	}
	p.ModuleCandidates = make([]ModuleCandidate, 0, len(modules))
	for i := range modules {
		p.ModuleCandidates = append(p.ModuleCandidates, ModuleCandidate{
			SymbolHit:       modules[i],
			EstimatedTokens: ranker.EstimateTokens(&modules[i]),
			Stats:           moduleStats(modules[i].Metadata),
		})
	}

	delivered := resp.ContextBudget.Delivered
	p.DeliveredResults = make([]DeliveredHit, 0, len(delivered))
	for i := range delivered {
		p.DeliveredResults = append(p.DeliveredResults, DeliveredHit{
			SymbolHit:       delivered[i],
			EstimatedTokens: ranker.EstimateTokens(&delivered[i]),
		})
	}

	p.Debug.Strategy = StrategyDebug{
		Profile:         s.Tier,
		Reason:          s.Reason,
		PreferredLevels: s.PreferredLevels,
		ModuleLimit:     s.ModuleLimit,
		ClassLimit:      s.ClassLimit,
		MethodLimit:     s.MethodLimit,
		ModuleFilter:    optional(s.ModuleFilter),
		ModuleHint:      optional(s.ModuleHint),
		Scenario:        s.Scenario,
		EntityHint:      s.EntityHint,
	}
	if s.Profile != nil {
		p.Debug.Strategy.ProfileID = s.Profile.ID
	}
	return p
}

func summarizeStage(st types.Stage) StageSummary {
	out := StageSummary{
		Name:     st.Name,
		HitCount: len(st.Hits),
		Kinds:    []types.SymbolKind{},
		Levels:   []string{},
	}
	for i := range st.Hits {
		h := &st.Hits[i]
		if !slices.Contains(out.Kinds, h.Kind) {
			out.Kinds = append(out.Kinds, h.Kind)
		}
		lvl := string(h.IndexLevel)
		if lvl == "" {
			lvl = "unknown"
		}
		if !slices.Contains(out.Levels, lvl) {
			out.Levels = append(out.Levels, lvl)
		}
	}
	return out
}

func moduleStats(meta *types.Metadata) *ModuleStats {
	if meta == nil {
		return nil
	}
	stats := &ModuleStats{
		ClassCount:   extraInt(meta.Extra, "classCount", "classes"),
		PackageCount: extraInt(meta.Extra, "packageCount"),
	}
	if len(meta.SpringBeans) > 0 {
		stats.SpringBeans = types.IntPtr(len(meta.SpringBeans))
	}
	if stats.ClassCount == nil && stats.PackageCount == nil && stats.SpringBeans == nil {
		return nil
	}
	return stats
}

// extraInt returns the first numeric value among keys. Decoded JSON numbers
// arrive as float64.
func extraInt(extra map[string]any, keys ...string) *int {
	for _, k := range keys {
		switch v := extra[k].(type) {
		case int:
			return types.IntPtr(v)
		case float64:
			return types.IntPtr(int(v))
		}
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
