// Package params holds the report-parameter model: the typed schema projected
// from a reportParameters script, default resolution for fresh form instances,
// and the coercion and validation applied to submitted values.
package params

import (
	"regexp"
	"strings"

	"github.com/leapstack-labs/reportdsl/pkg/dsl"
)

// Type is a parameter value type.
type Type string

// Type constants.
const (
	TypeDate     Type = "Date"
	TypeDateTime Type = "DateTime"
	TypeString   Type = "String"
	TypeInteger  Type = "Integer"
	TypeBoolean  Type = "Boolean"
)

// Types lists the recognized parameter types.
var Types = []Type{TypeDate, TypeDateTime, TypeString, TypeInteger, TypeBoolean}

// ParseType maps a type token from a script or a form to a Type.
// Tokens are matched case-insensitively and may carry a java.time/java.lang prefix.
func ParseType(token string) (Type, bool) {
	name := strings.TrimSpace(token)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	switch strings.ToLower(name) {
	case "date", "localdate":
		return TypeDate, true
	case "datetime", "localdatetime", "timestamp":
		return TypeDateTime, true
	case "string", "text":
		return TypeString, true
	case "integer", "int", "long", "biginteger":
		return TypeInteger, true
	case "boolean", "bool":
		return TypeBoolean, true
	default:
		return "", false
	}
}

// IsTemporal reports whether values of t are ISO date or datetime strings.
func (t Type) IsTemporal() bool {
	return t == TypeDate || t == TypeDateTime
}

// Control is the UI widget used to edit a parameter.
type Control string

// Control constants. Scripts may name other controls; they pass through unchanged.
const (
	ControlDate     Control = "date"
	ControlDateTime Control = "datetime"
	ControlSelect   Control = "select"
	ControlInput    Control = "input"
	ControlTextarea Control = "textarea"
	ControlCheckbox Control = "checkbox"
)

// ParameterSpec is one declared input parameter.
type ParameterSpec struct {
	ID          string         `json:"id"`
	Type        Type           `json:"type"`
	Label       string         `json:"label"`
	Description string         `json:"description,omitempty"`
	Default     *Operand       `json:"defaultValue,omitempty"`
	Constraints Constraints    `json:"constraints"`
	UI          UI             `json:"ui"`
	Extra       map[string]any `json:"extra,omitempty"`
	Pos         dsl.Position   `json:"-"`
}

// DisplayName returns the label, or the id when no label was declared.
func (s *ParameterSpec) DisplayName() string {
	if s.Label != "" {
		return s.Label
	}
	return s.ID
}

// Constraints are the validation rules declared for a parameter.
type Constraints struct {
	Required  bool           `json:"required"`
	Min       *Operand       `json:"min,omitempty"`
	Max       *Operand       `json:"max,omitempty"`
	MaxLength int            `json:"maxLength,omitempty"` // 0 means unbounded
	Pattern   string         `json:"pattern,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`

	pattern *regexp.Regexp
}

// UI holds rendering hints for a parameter's form control.
type UI struct {
	Control Control        `json:"control"`
	Format  string         `json:"format,omitempty"`
	Options *Options       `json:"options,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// Options populate a select control, either statically or from a query.
type Options struct {
	Items []Option `json:"items,omitempty"`
	Query string   `json:"query,omitempty"`
}

// IsQuery reports whether the options come from a SQL query.
func (o *Options) IsQuery() bool {
	return o != nil && o.Query != ""
}

// Option is one selectable value.
type Option struct {
	Value any    `json:"value"`
	Label string `json:"label"`
}
