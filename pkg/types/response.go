package types

// StageName identifies where a group of hits came from
type StageName string

const (
	StageExact    StageName = "exact"
	StageModule   StageName = "module"
	StageClass    StageName = "class"
	StageMethod   StageName = "method"
	StageFallback StageName = "fallback"
)

// StageForLevel maps a vector level to its stage name
func StageForLevel(level Level) StageName {
	switch level {
	case LevelModule:
		return StageModule
	case LevelMethod:
		return StageMethod
	default:
		return StageClass
	}
}

// Stage is an append-only provenance record of one retrieval step
type Stage struct {
	Name StageName   `json:"name"`
	Hits []SymbolHit `json:"hits"`
}

// Tier is the complexity classification of a query
type Tier string

const (
	TierTargeted Tier = "targeted"
	TierBalanced Tier = "balanced"
	TierDeep     Tier = "deep"
)

// Strategy is derived once per request and read-only afterwards
type Strategy struct {
	Tier            Tier     `json:"profile"`
	Reason          string   `json:"reason"`
	PreferredLevels []Level  `json:"preferredLevels"`
	ModuleLimit     int      `json:"moduleLimit"`
	ClassLimit      int      `json:"classLimit"`
	MethodLimit     int      `json:"methodLimit"`
	ModuleFilter    string   `json:"moduleFilter,omitempty"`
	ModuleHint      string   `json:"moduleHint,omitempty"`
	Scenario        Scenario `json:"scenario,omitempty"`
	EntityHint      string   `json:"entityHint,omitempty"`
	Profile         *Profile `json:"profileConfig"`
}

// Limit returns the configured limit for a vector level
func (s *Strategy) Limit(level Level) int {
	switch level {
	case LevelModule:
		return s.ModuleLimit
	case LevelMethod:
		return s.MethodLimit
	default:
		return s.ClassLimit
	}
}

// ContextBudgetReport describes how the token budget was spent
type ContextBudgetReport struct {
	Delivered    []SymbolHit `json:"delivered"`
	UsedTokens   int         `json:"usedTokens"`
	TokenLimit   int         `json:"tokenLimit"`
	OmittedCount int         `json:"omittedCount"`
	Truncated    bool        `json:"truncated"`
}

// SearchResponse is the pipeline outcome for one request
type SearchResponse struct {
	RequestID     string              `json:"requestId,omitempty"`
	FinalResults  []SymbolHit         `json:"finalResults"`
	ModuleResults []SymbolHit         `json:"moduleResults,omitempty"`
	MethodResults []SymbolHit         `json:"methodResults,omitempty"`
	FallbackUsed  bool                `json:"fallbackUsed"`
	Stages        []Stage             `json:"stages"`
	Strategy      Strategy            `json:"strategy"`
	ContextBudget ContextBudgetReport `json:"contextBudget"`
	RerankUsed    bool                `json:"rerankUsed,omitempty"`
}

// TotalCandidates is the number of hits considered by the budget allocator
func (r *SearchResponse) TotalCandidates() int {
	return len(r.ContextBudget.Delivered) + r.ContextBudget.OmittedCount
}

// VectorQuery is one vector stage request
type VectorQuery struct {
	Query        string
	Level        Level
	Limit        int
	ModuleFilter string
	ModuleHint   string
}
