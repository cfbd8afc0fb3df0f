package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Request bounds
const (
	DefaultLimit       = 5
	MaxLimit           = 20
	DefaultTokenLimit  = 9000
	MinTokenLimit      = 1000
	MaxTokenLimit      = 20000
	MaxPreferredLevels = 3
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// SearchArgs is the wire form of a search request. Pointer fields distinguish
// "absent" from "present but empty".
type SearchArgs struct {
	Query            string   `json:"query" validate:"required,min=1"`
	Limit            *int     `json:"limit,omitempty" validate:"omitnil,min=1,max=20"`
	ModuleFilter     *string  `json:"moduleFilter,omitempty" validate:"omitnil,min=1"`
	ModuleHint       *string  `json:"moduleHint,omitempty" validate:"omitnil,min=1"`
	PreferredLevels  []string `json:"preferredLevels,omitempty" validate:"omitempty,max=3,dive,oneof=module class method"`
	MaxContextTokens *int     `json:"maxContextTokens,omitempty" validate:"omitnil,min=1000,max=20000"`
	ScenarioID       *string  `json:"scenarioId,omitempty" validate:"omitnil,min=1"`
}

// Request validates the wire arguments and converts them to a SearchRequest
func (a SearchArgs) Request() (SearchRequest, error) {
	if err := validate.Struct(a); err != nil {
		return SearchRequest{}, wrapValidation(err)
	}
	req := SearchRequest{Query: a.Query}
	if a.Limit != nil {
		req.Limit = *a.Limit
	}
	if a.ModuleFilter != nil {
		req.ModuleFilter = *a.ModuleFilter
	}
	if a.ModuleHint != nil {
		req.ModuleHint = *a.ModuleHint
	}
	for _, l := range a.PreferredLevels {
		req.PreferredLevels = append(req.PreferredLevels, Level(l))
	}
	if a.MaxContextTokens != nil {
		req.MaxContextTokens = *a.MaxContextTokens
	}
	if a.ScenarioID != nil {
		req.ScenarioID = *a.ScenarioID
	}
	return req, nil
}

// SearchRequest is a validated search request. Zero values mean "not supplied".
type SearchRequest struct {
	Query            string  `json:"query" validate:"required"`
	Limit            int     `json:"limit,omitempty" validate:"min=0,max=20"`
	ModuleFilter     string  `json:"moduleFilter,omitempty"`
	ModuleHint       string  `json:"moduleHint,omitempty"`
	PreferredLevels  []Level `json:"preferredLevels,omitempty" validate:"max=3,dive,oneof=module class method"`
	MaxContextTokens int     `json:"maxContextTokens,omitempty" validate:"omitempty,min=1000,max=20000"`
	ScenarioID       string  `json:"scenarioId,omitempty"`
}

// Validate checks request bounds
func (r SearchRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return fmt.Errorf("%w: query cannot be empty", ErrInvalidRequest)
	}
	if err := validate.Struct(r); err != nil {
		return wrapValidation(err)
	}
	return nil
}

// LimitOr returns the requested limit or def when none was given
func (r SearchRequest) LimitOr(def int) int {
	if r.Limit > 0 {
		return r.Limit
	}
	return def
}

// TokenLimit returns the clamped token budget
func (r SearchRequest) TokenLimit() int {
	return ClampTokenLimit(r.MaxContextTokens)
}

// ClampTokenLimit clamps n into [MinTokenLimit, MaxTokenLimit], defaulting when n <= 0
func ClampTokenLimit(n int) int {
	if n <= 0 {
		n = DefaultTokenLimit
	}
	return min(max(n, MinTokenLimit), MaxTokenLimit)
}

// FieldError describes one invalid request field
type FieldError struct {
	Field  string `json:"field"`
	Rule   string `json:"rule"`
	Param  string `json:"param,omitempty"`
	Reason string `json:"reason"`
}

// ValidationError carries per-field details and unwraps to ErrInvalidRequest
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Reason
	}
	return fmt.Sprintf("%s: %s", ErrInvalidRequest, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidRequest
}

func wrapValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		field := jsonFieldName(fe.Field())
		out.Fields = append(out.Fields, FieldError{
			Field:  field,
			Rule:   fe.Tag(),
			Param:  fe.Param(),
			Reason: describeRule(field, fe.Tag(), fe.Param()),
		})
	}
	return out
}

func jsonFieldName(name string) string {
	if name == "" {
		return name
	}
	if name == "ScenarioID" {
		return "scenarioId"
	}
	if i := strings.IndexByte(name, '['); i > 0 {
		return jsonFieldName(name[:i]) + name[i:]
	}
	return strings.ToLower(name[:1]) + name[1:]
}

func describeRule(field, tag, param string) string {
	switch tag {
	case "required":
		return field + " is required"
	case "min":
		if strings.HasPrefix(field, "query") || field == "moduleFilter" || field == "moduleHint" || field == "scenarioId" {
			return field + " cannot be empty"
		}
		return fmt.Sprintf("%s must be >= %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be <= %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, param)
	default:
		return fmt.Sprintf("%s failed %s", field, tag)
	}
}
