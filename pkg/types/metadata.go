package types

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"strings"
)

// StringList decodes from either a JSON string or an array of strings
type StringList []string

// UnmarshalJSON accepts "a", ["a","b"] and arrays of scalars
func (s *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*s = nil
		} else {
			*s = StringList{single}
		}
		return nil
	}
	var list []any
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("string list: %w", err)
	}
	out := make(StringList, 0, len(list))
	for _, v := range list {
		switch t := v.(type) {
		case string:
			out = append(out, t)
		case nil:
		default:
			out = append(out, fmt.Sprint(t))
		}
	}
	*s = out
	return nil
}

// ModuleCount is one entry of a module spread summary
type ModuleCount struct {
	Module string `json:"module"`
	Count  int    `json:"count"`
}

// ModuleSummary describes which modules call into or are called by a symbol
type ModuleSummary struct {
	Callers []ModuleCount `json:"callers,omitempty"`
	Callees []ModuleCount `json:"callees,omitempty"`
}

// EndpointDescriptor is one HTTP endpoint correlated to a controller
type EndpointDescriptor struct {
	Controller string `json:"controller,omitempty"`
	Module     string `json:"module,omitempty"`
	Name       string `json:"name"`
	FQN        string `json:"fqn,omitempty"`
	HTTPVerb   string `json:"httpVerb,omitempty"`
	HTTPPath   string `json:"httpPath,omitempty"`
	Summary    string `json:"summary,omitempty"`
}

// Key identifies an endpoint for deduplication
func (e EndpointDescriptor) Key() string {
	return e.Controller + "|" + e.Name + "|" + e.HTTPVerb + "|" + e.HTTPPath
}

// ImpactMember is one symbol inside an entity-impact group
type ImpactMember struct {
	FQN      string  `json:"fqn"`
	Module   string  `json:"module,omitempty"`
	FilePath string  `json:"filePath,omitempty"`
	Roles    RoleSet `json:"roles,omitempty"`
}

// Metadata is the typed metadata bag attached to a hit.
// Keys the pipeline never interprets are preserved in Extra.
type Metadata struct {
	FilePath          string                `json:"filePath,omitempty"`
	Role              string                `json:"role,omitempty"`
	Annotations       StringList            `json:"annotations,omitempty"`
	EnclosingClass    string                `json:"enclosingClass,omitempty"`
	ParentFQN         string                `json:"parentFqn,omitempty"`
	ControllerFQN     string                `json:"controllerFqn,omitempty"`
	ClassFQN          string                `json:"classFqn,omitempty"`
	MethodName        string                `json:"methodName,omitempty"`
	Methods           StringList            `json:"methods,omitempty"`
	MethodAnnotations map[string]StringList `json:"methodAnnotations,omitempty"`
	SpringBeans       StringList            `json:"springBeans,omitempty"`
	CallersCount      *int                  `json:"callersCount,omitempty"`
	CalleesCount      *int                  `json:"calleesCount,omitempty"`
	ModuleSummary     *ModuleSummary        `json:"moduleSummary,omitempty"`
	Library           string                `json:"library,omitempty"`
	LibraryRole       string                `json:"libraryRole,omitempty"`

	// Set by the pipeline
	PreviewLevel string               `json:"previewLevel,omitempty"`
	Endpoints    []EndpointDescriptor `json:"endpoints,omitempty"`
	Endpoint     *EndpointDescriptor  `json:"endpoint,omitempty"`
	Impact       []ImpactMember       `json:"impactMembers,omitempty"`
	GroupedRole  Role                 `json:"groupedRole,omitempty"`
	GroupSize    int                  `json:"groupSize,omitempty"`
	Members      []string             `json:"members,omitempty"`
	SourceModule string               `json:"sourceModule,omitempty"`
	Derived      bool                 `json:"derived,omitempty"`
	Synthetic    bool                 `json:"synthetic,omitempty"`

	Extra map[string]any `json:"-"`
}

type metadataAlias Metadata

var knownMetadataKeys = func() map[string]struct{} {
	keys := make(map[string]struct{})
	t := reflect.TypeOf(metadataAlias{})
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		name, _, _ := strings.Cut(tag, ",")
		if name != "" && name != "-" {
			keys[name] = struct{}{}
		}
	}
	return keys
}()

// UnmarshalJSON decodes known keys into typed fields and keeps the rest in Extra
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var alias metadataAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	for k, v := range raw {
		if _, known := knownMetadataKeys[k]; known {
			continue
		}
		if alias.Extra == nil {
			alias.Extra = make(map[string]any)
		}
		alias.Extra[k] = v
	}
	*m = Metadata(alias)
	return nil
}

// MarshalJSON writes typed fields and merges Extra without overriding them
func (m Metadata) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(metadataAlias(m))
	if err != nil {
		return nil, err
	}
	if len(m.Extra) == 0 {
		return base, nil
	}
	var merged map[string]any
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range m.Extra {
		if _, exists := merged[k]; !exists {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// Callers returns the caller count or 0
func (m *Metadata) Callers() int {
	if m == nil || m.CallersCount == nil {
		return 0
	}
	return *m.CallersCount
}

// Callees returns the callee count or 0
func (m *Metadata) Callees() int {
	if m == nil || m.CalleesCount == nil {
		return 0
	}
	return *m.CalleesCount
}

// Clone deep-copies the metadata
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	out := *m
	out.Annotations = append(StringList(nil), m.Annotations...)
	out.Methods = append(StringList(nil), m.Methods...)
	out.SpringBeans = append(StringList(nil), m.SpringBeans...)
	if m.MethodAnnotations != nil {
		out.MethodAnnotations = make(map[string]StringList, len(m.MethodAnnotations))
		for k, v := range m.MethodAnnotations {
			out.MethodAnnotations[k] = append(StringList(nil), v...)
		}
	}
	if m.ModuleSummary != nil {
		ms := ModuleSummary{
			Callers: append([]ModuleCount(nil), m.ModuleSummary.Callers...),
			Callees: append([]ModuleCount(nil), m.ModuleSummary.Callees...),
		}
		out.ModuleSummary = &ms
	}
	out.Endpoints = append([]EndpointDescriptor(nil), m.Endpoints...)
	if m.Endpoint != nil {
		ep := *m.Endpoint
		out.Endpoint = &ep
	}
	if m.Impact != nil {
		out.Impact = make([]ImpactMember, len(m.Impact))
		for i, im := range m.Impact {
			im.Roles = append(RoleSet(nil), im.Roles...)
			out.Impact[i] = im
		}
	}
	out.Members = append([]string(nil), m.Members...)
	if m.Extra != nil {
		out.Extra = maps.Clone(m.Extra)
	}
	return &out
}
