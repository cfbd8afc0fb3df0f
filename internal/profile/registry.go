package profile

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/dshills/ideactx-mcp/pkg/types"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrUnknownProfile is returned when a profile id is not registered
var ErrUnknownProfile = errors.New("unknown profile")

// document is the on-disk shape of defaults.yaml and override files
type document struct {
	Profiles []types.Profile `yaml:"profiles"`
	Rules    *Rules          `yaml:"rules"`
}

// Registry holds the immutable profile table and query rules.
// It is safe for concurrent use after Load returns.
type Registry struct {
	profiles   []*types.Profile
	byID       map[string]*types.Profile
	byScenario map[types.Scenario]*types.Profile
	rules      *Rules
}

var (
	defaultRegistry    *Registry
	defaultRegistryErr error
	defaultOnce        sync.Once
)

// Default returns the registry built from the embedded defaults only.
// The result is cached.
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		defaultRegistry, defaultRegistryErr = Load("")
	})
	return defaultRegistry, defaultRegistryErr
}

// Load builds a registry from the embedded defaults and, when overridePath
// is non-empty, an override YAML file. Override profiles replace defaults
// with the same id; non-empty override rule sections replace defaults.
func Load(overridePath string) (*Registry, error) {
	var base document
	if err := yaml.Unmarshal(defaultsYAML, &base); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if overridePath != "" {
		data, err := os.ReadFile(overridePath)
		if err != nil {
			return nil, fmt.Errorf("reading rules file: %w", err)
		}
		var override document
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("parsing rules file %s: %w", overridePath, err)
		}
		base.Profiles = mergeProfiles(base.Profiles, override.Profiles)
		base.Rules = mergeRules(base.Rules, override.Rules)
	}

	reg, err := newRegistry(base)
	if err != nil {
		return nil, err
	}
	slog.Debug("profile registry loaded",
		slog.Int("profiles", len(reg.profiles)),
		slog.Int("scenario_rules", len(reg.rules.Scenarios)),
		slog.String("override", overridePath),
	)
	return reg, nil
}

func newRegistry(doc document) (*Registry, error) {
	if doc.Rules == nil {
		return nil, fmt.Errorf("registry: missing rules section")
	}
	if err := doc.Rules.compile(); err != nil {
		return nil, fmt.Errorf("registry rules: %w", err)
	}
	reg := &Registry{
		byID:       make(map[string]*types.Profile),
		byScenario: make(map[types.Scenario]*types.Profile),
		rules:      doc.Rules,
	}
	for i := range doc.Profiles {
		p := doc.Profiles[i]
		if err := compileProfile(&p); err != nil {
			return nil, err
		}
		if _, dup := reg.byID[p.ID]; dup {
			return nil, fmt.Errorf("registry: duplicate profile %q", p.ID)
		}
		reg.profiles = append(reg.profiles, &p)
		reg.byID[p.ID] = &p
		if p.Scenario != types.ScenarioNone {
			if _, taken := reg.byScenario[p.Scenario]; !taken {
				reg.byScenario[p.Scenario] = &p
			}
		}
	}
	if _, ok := reg.byID[types.ProfileGeneric]; !ok {
		return nil, fmt.Errorf("registry: %w %q is required", ErrUnknownProfile, types.ProfileGeneric)
	}
	return reg, nil
}

func compileProfile(p *types.Profile) error {
	if p.ID == "" {
		return fmt.Errorf("profile without id")
	}
	if len(p.PreferredLevels) == 0 {
		return fmt.Errorf("profile %s: preferredLevels must not be empty", p.ID)
	}
	for _, lvl := range p.PreferredLevels {
		if !lvl.Valid() {
			return fmt.Errorf("profile %s: invalid level %q", p.ID, lvl)
		}
	}
	if p.Grouping == "" {
		p.Grouping = types.GroupingNone
	}
	switch p.Grouping {
	case types.GroupingNone, types.GroupingByModule, types.GroupingByRole:
	default:
		return fmt.Errorf("profile %s: invalid grouping %q", p.ID, p.Grouping)
	}
	if p.BudgetStrategy == "" {
		p.BudgetStrategy = types.BudgetDepth
	}
	if p.BudgetStrategy != types.BudgetDepth && p.BudgetStrategy != types.BudgetBreadth {
		return fmt.Errorf("profile %s: invalid budget strategy %q", p.ID, p.BudgetStrategy)
	}
	for r := range p.RoleBoosts {
		if !r.Valid() {
			return fmt.Errorf("profile %s: invalid boost role %q", p.ID, r)
		}
	}
	for i := range p.Filters {
		f := &p.Filters[i]
		switch f.Type {
		case types.FilterRole:
			if len(f.Roles) == 0 {
				return fmt.Errorf("profile %s: role filter without roles", p.ID)
			}
			if f.Match == "" {
				f.Match = types.MatchAny
			}
		case types.FilterModule, types.FilterText:
			re, err := regexp.Compile(f.Pattern)
			if err != nil {
				return fmt.Errorf("profile %s: filter pattern: %w", p.ID, err)
			}
			f.Regexp = re
		default:
			return fmt.Errorf("profile %s: invalid filter type %q", p.ID, f.Type)
		}
	}
	return nil
}

func mergeProfiles(base, override []types.Profile) []types.Profile {
	out := append([]types.Profile(nil), base...)
	for _, o := range override {
		replaced := false
		for i := range out {
			if out[i].ID == o.ID {
				out[i] = o
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, o)
		}
	}
	return out
}

func mergeRules(base, override *Rules) *Rules {
	if override == nil {
		return base
	}
	if base == nil {
		return override
	}
	merged := *base
	if len(override.ComplexKeywords) > 0 {
		merged.ComplexKeywords = override.ComplexKeywords
	}
	if len(override.Scenarios) > 0 {
		merged.Scenarios = override.Scenarios
	}
	if len(override.EntityPatterns) > 0 {
		merged.EntityPatterns = override.EntityPatterns
	}
	if len(override.ModuleHints) > 0 {
		merged.ModuleHints = override.ModuleHints
	}
	if len(override.Impact.Buckets) > 0 {
		merged.Impact.Buckets = override.Impact.Buckets
	}
	if len(override.Impact.EntityPathHints) > 0 {
		merged.Impact.EntityPathHints = override.Impact.EntityPathHints
	}
	if override.Impact.ScanLimit > 0 {
		merged.Impact.ScanLimit = override.Impact.ScanLimit
	}
	if len(override.ControllerSuffixes) > 0 {
		merged.ControllerSuffixes = override.ControllerSuffixes
	}
	if len(override.ScanSkipDirs) > 0 {
		merged.ScanSkipDirs = override.ScanSkipDirs
	}
	return &merged
}

// Rules returns the query heuristics
func (r *Registry) Rules() *Rules {
	return r.rules
}

// Get returns the profile with the given id
func (r *Registry) Get(id string) (*types.Profile, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProfile, id)
	}
	return p, nil
}

// ForScenario returns the profile registered for a scenario, or the generic profile
func (r *Registry) ForScenario(s types.Scenario) *types.Profile {
	if p, ok := r.byScenario[s]; ok {
		return p
	}
	return r.byID[types.ProfileGeneric]
}

// Profiles returns all profiles in declaration order
func (r *Registry) Profiles() []*types.Profile {
	return append([]*types.Profile(nil), r.profiles...)
}
