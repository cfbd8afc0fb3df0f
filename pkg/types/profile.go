package types

import "regexp"

// Scenario is a recognized query intent
type Scenario string

const (
	ScenarioNone              Scenario = ""
	ScenarioSpringBootEntry   Scenario = "spring_boot_entry"
	ScenarioDiscoveryDeps     Scenario = "discovery_deps"
	ScenarioEntityEndpoints   Scenario = "entity_endpoints"
	ScenarioEntityImpact      Scenario = "entity_impact"
	ScenarioImpactAnalysis    Scenario = "impact_analysis"
	ScenarioBeanPostProcessor Scenario = "bean_post_processor"
	ScenarioAllBeans          Scenario = "all_beans"
)

// Profile ids with scenario-specific behavior
const (
	ProfileEntrypoints       = "entrypoints"
	ProfileDiscoveryDeps     = "discovery-deps"
	ProfileEntityEndpoints   = "entity-endpoints"
	ProfileEntityImpact      = "entity-impact"
	ProfileImpactAnalysis    = "impact-analysis"
	ProfileBeanPostProcessor = "bean-post-processor"
	ProfileAllBeans          = "all-beans"
	ProfileGeneric           = "generic"
)

// Grouping controls how merged hits are collapsed
type Grouping string

const (
	GroupingNone     Grouping = "none"
	GroupingByModule Grouping = "byModule"
	GroupingByRole   Grouping = "byRole"
)

// BudgetStrategy controls how the token budget is spent
type BudgetStrategy string

const (
	BudgetDepth   BudgetStrategy = "depth"
	BudgetBreadth BudgetStrategy = "breadth"
)

// FilterType selects what a profile filter inspects
type FilterType string

const (
	FilterRole   FilterType = "role"
	FilterModule FilterType = "module"
	FilterText   FilterType = "text"
)

// MatchMode applies to role filters
type MatchMode string

const (
	MatchAny MatchMode = "any"
	MatchAll MatchMode = "all"
)

// Filter is one profile filter rule
type Filter struct {
	Type     FilterType `yaml:"type" json:"type"`
	Roles    []Role     `yaml:"roles,omitempty" json:"roles,omitempty"`
	Match    MatchMode  `yaml:"match,omitempty" json:"match,omitempty"`
	Pattern  string     `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Optional bool       `yaml:"optional,omitempty" json:"optional,omitempty"`

	// Regexp is compiled from Pattern when the registry loads
	Regexp *regexp.Regexp `yaml:"-" json:"-"`
}

// Profile is an immutable retrieval profile selected per scenario
type Profile struct {
	ID              string           `yaml:"id" json:"id"`
	Scenario        Scenario         `yaml:"scenario,omitempty" json:"scenario,omitempty"`
	PreferredLevels []Level          `yaml:"preferredLevels" json:"preferredLevels"`
	Filters         []Filter         `yaml:"filters,omitempty" json:"filters,omitempty"`
	Grouping        Grouping         `yaml:"grouping,omitempty" json:"grouping,omitempty"`
	BudgetStrategy  BudgetStrategy   `yaml:"budgetStrategy" json:"budgetStrategy"`
	RoleBoosts      map[Role]float64 `yaml:"roleBoosts,omitempty" json:"roleBoosts,omitempty"`
	ModuleFilter    string           `yaml:"moduleFilter,omitempty" json:"moduleFilter,omitempty"`
}
