package types

import (
	"encoding/json"
	"strings"
)

// SymbolKind is the structural kind of an indexed Java symbol
type SymbolKind string

const (
	KindClass      SymbolKind = "CLASS"
	KindInterface  SymbolKind = "INTERFACE"
	KindMethod     SymbolKind = "METHOD"
	KindModule     SymbolKind = "MODULE"
	KindRepository SymbolKind = "REPOSITORY"
)

// Level is the retrieval granularity of a vector stage
type Level string

const (
	LevelModule Level = "module"
	LevelClass  Level = "class"
	LevelMethod Level = "method"
)

// Valid reports whether l is one of the known levels
func (l Level) Valid() bool {
	switch l {
	case LevelModule, LevelClass, LevelMethod:
		return true
	}
	return false
}

// LevelForKind maps a symbol kind to the level it is indexed at
func LevelForKind(kind SymbolKind) Level {
	switch kind {
	case KindModule, KindRepository:
		return LevelModule
	case KindMethod:
		return LevelMethod
	default:
		return LevelClass
	}
}

// Relations captures call graph edges exported by the IDE bridge
type Relations struct {
	Calls      []string `json:"calls,omitempty"`
	CalledBy   []string `json:"calledBy,omitempty"`
	References []string `json:"references,omitempty"`
}

// Hierarchy captures type inheritance
type Hierarchy struct {
	SuperClass string   `json:"superClass,omitempty"`
	Interfaces []string `json:"interfaces,omitempty"`
}

// SpringInfo holds Spring container facts about a symbol
type SpringInfo struct {
	IsSpringBean          bool     `json:"isSpringBean,omitempty"`
	BeanType              string   `json:"beanType,omitempty"`
	BeanName              string   `json:"beanName,omitempty"`
	AutoWiredDependencies []string `json:"autoWiredDependencies,omitempty"`
	Annotations           []string `json:"annotations,omitempty"`
}

// ScoreHints carries upstream ranking signals. Nil fields mean unknown.
type ScoreHints struct {
	References       *int `json:"references,omitempty"`
	LastModifiedDays *int `json:"lastModifiedDays,omitempty"`
}

// SymbolHit is a single retrieval result flowing through the pipeline
type SymbolHit struct {
	// Identification
	FQN         string     `json:"fqn"`
	Kind        SymbolKind `json:"kind"`
	Module      string     `json:"module"`
	ModulePath  string     `json:"modulePath,omitempty"`
	RepoName    string     `json:"repoName,omitempty"`
	PackageName string     `json:"packageName,omitempty"`
	IndexLevel  Level      `json:"indexLevel,omitempty"`

	// Content
	Summary    string      `json:"summary"`
	Relations  *Relations  `json:"relations,omitempty"`
	Hierarchy  *Hierarchy  `json:"hierarchy,omitempty"`
	SpringInfo *SpringInfo `json:"springInfo,omitempty"`
	ScoreHints *ScoreHints `json:"scoreHints,omitempty"`
	Metadata   *Metadata   `json:"metadata,omitempty"`

	// Scoring
	Score float64 `json:"score"`
	Roles RoleSet `json:"roles,omitempty"`
}

// Validate checks the minimal shape every upstream hit must have
func (h *SymbolHit) Validate() error {
	if h.FQN == "" {
		return ErrMissingFQN
	}
	switch h.Kind {
	case KindClass, KindInterface, KindMethod, KindModule, KindRepository:
	default:
		return ErrInvalidKind
	}
	if h.Module == "" {
		return ErrMissingModule
	}
	return nil
}

// SimpleName returns the last dotted segment of the FQN
func (h *SymbolHit) SimpleName() string {
	name := h.FQN
	if idx := strings.LastIndex(name, "#"); idx >= 0 {
		name = name[idx+1:]
	}
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}

// Meta returns the hit metadata, allocating it on first use
func (h *SymbolHit) Meta() *Metadata {
	if h.Metadata == nil {
		h.Metadata = &Metadata{}
	}
	return h.Metadata
}

// Text is the lowercased "fqn summary metadata" string used for substring matching
func (h *SymbolHit) Text() string {
	meta := "{}"
	if h.Metadata != nil {
		if b, err := json.Marshal(h.Metadata); err == nil {
			meta = string(b)
		}
	}
	return strings.ToLower(h.FQN + " " + h.Summary + " " + meta)
}

// Clone returns a deep copy safe for independent mutation
func (h SymbolHit) Clone() SymbolHit {
	out := h
	if h.Relations != nil {
		r := *h.Relations
		out.Relations = &r
	}
	if h.Hierarchy != nil {
		hh := *h.Hierarchy
		out.Hierarchy = &hh
	}
	if h.SpringInfo != nil {
		s := *h.SpringInfo
		out.SpringInfo = &s
	}
	if h.ScoreHints != nil {
		sh := *h.ScoreHints
		out.ScoreHints = &sh
	}
	if h.Metadata != nil {
		out.Metadata = h.Metadata.Clone()
	}
	out.Roles = append(RoleSet(nil), h.Roles...)
	return out
}

// CloneHits deep-copies a slice of hits
func CloneHits(hits []SymbolHit) []SymbolHit {
	if hits == nil {
		return nil
	}
	out := make([]SymbolHit, len(hits))
	for i := range hits {
		out[i] = hits[i].Clone()
	}
	return out
}

// IntPtr is a convenience for building ScoreHints literals
func IntPtr(v int) *int {
	return &v
}
