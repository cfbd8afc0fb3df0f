package profile

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/dshills/ideactx-mcp/pkg/types"
)

// ScenarioRule detects a scenario from the lowercased query.
// When holds alternatives; each alternative is a list of keyword groups that
// must all match, and a group matches if any keyword is a substring.
type ScenarioRule struct {
	Scenario      types.Scenario `yaml:"scenario"`
	When          [][][]string   `yaml:"when"`
	StageKeywords []string       `yaml:"stageKeywords,omitempty"`
}

// Matches reports whether the rule fires for the lowercased query
func (r ScenarioRule) Matches(lower string) bool {
	for _, alt := range r.When {
		if len(alt) > 0 && allGroupsMatch(lower, alt) {
			return true
		}
	}
	return false
}

func allGroupsMatch(lower string, groups [][]string) bool {
	for _, group := range groups {
		if !slices.ContainsFunc(group, func(kw string) bool {
			return strings.Contains(lower, strings.ToLower(kw))
		}) {
			return false
		}
	}
	return true
}

// ModuleHint maps query keywords to a module name
type ModuleHint struct {
	Module   string   `yaml:"module"`
	Keywords []string `yaml:"keywords"`
}

// ImpactBucket is one group of the entity-impact aggregation
type ImpactBucket struct {
	Name  string     `yaml:"name"`
	Role  types.Role `yaml:"role,omitempty"`
	Label string     `yaml:"label"`
}

// ImpactRules configure entity-impact grouping and the source-tree fallback
type ImpactRules struct {
	Buckets         []ImpactBucket `yaml:"buckets"`
	EntityPathHints []string       `yaml:"entityPathHints"`
	ScanLimit       int            `yaml:"scanLimit"`
}

// Rules are the query heuristics shared by strategy derivation and
// scenario specialization
type Rules struct {
	ComplexKeywords    []string       `yaml:"complexKeywords"`
	Scenarios          []ScenarioRule `yaml:"scenarios"`
	EntityPatterns     []string       `yaml:"entityPatterns"`
	ModuleHints        []ModuleHint   `yaml:"moduleHints"`
	Impact             ImpactRules    `yaml:"impact"`
	ControllerSuffixes []string       `yaml:"controllerSuffixes"`
	ScanSkipDirs       []string       `yaml:"scanSkipDirs"`

	entityRegexps []*regexp.Regexp
}

// DetectScenario returns the first matching scenario or ScenarioNone
func (r *Rules) DetectScenario(query string) types.Scenario {
	lower := strings.ToLower(query)
	for _, rule := range r.Scenarios {
		if rule.Matches(lower) {
			return rule.Scenario
		}
	}
	return types.ScenarioNone
}

// HasComplexKeyword reports whether the query carries a call-chain or impact keyword
func (r *Rules) HasComplexKeyword(query string) bool {
	lower := strings.ToLower(query)
	return slices.ContainsFunc(r.ComplexKeywords, func(kw string) bool {
		return strings.Contains(lower, kw)
	})
}

// StageKeywords returns the extra stage query words for a scenario
func (r *Rules) StageKeywords(s types.Scenario) []string {
	if s == types.ScenarioNone {
		return nil
	}
	for _, rule := range r.Scenarios {
		if rule.Scenario == s {
			return rule.StageKeywords
		}
	}
	return nil
}

// InferModuleHint returns the first module whose keywords appear in the query
func (r *Rules) InferModuleHint(query string) string {
	lower := strings.ToLower(query)
	for _, h := range r.ModuleHints {
		for _, kw := range h.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return h.Module
			}
		}
	}
	return ""
}

// EntityRegexps returns the compiled entity phrase patterns in order
func (r *Rules) EntityRegexps() []*regexp.Regexp {
	return r.entityRegexps
}

// IsControllerName reports whether a lowercased simple or file name ends with a controller suffix
func (r *Rules) IsControllerName(lowerName string) bool {
	lowerName = strings.TrimSuffix(lowerName, ".java")
	return slices.ContainsFunc(r.ControllerSuffixes, func(sfx string) bool {
		return strings.HasSuffix(lowerName, sfx)
	})
}

func (r *Rules) compile() error {
	r.entityRegexps = r.entityRegexps[:0]
	for _, pat := range r.EntityPatterns {
		re, err := regexp.Compile("(?i)" + pat)
		if err != nil {
			return fmt.Errorf("entity pattern %q: %w", pat, err)
		}
		if re.SubexpIndex("entity") < 0 {
			return fmt.Errorf("entity pattern %q: missing named group \"entity\"", pat)
		}
		r.entityRegexps = append(r.entityRegexps, re)
	}
	for _, rule := range r.Scenarios {
		if rule.Scenario == types.ScenarioNone {
			return fmt.Errorf("scenario rule without scenario")
		}
	}
	for i := range r.ComplexKeywords {
		r.ComplexKeywords[i] = strings.ToLower(r.ComplexKeywords[i])
	}
	if len(r.Impact.Buckets) == 0 {
		return fmt.Errorf("impact buckets must not be empty")
	}
	if r.Impact.ScanLimit <= 0 {
		r.Impact.ScanLimit = 30
	}
	return nil
}
