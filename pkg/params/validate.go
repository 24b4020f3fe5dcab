package params

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/araddon/dateparse"
)

// Validation rule names, in evaluation order.
const (
	RuleType      = "type"
	RuleRequired  = "required"
	RulePattern   = "pattern"
	RuleMaxLength = "maxLength"
	RuleMin       = "min"
	RuleMax       = "max"
)

// ValidationError is a single field failure.
type ValidationError struct {
	ParameterID string `json:"parameterId"`
	Rule        string `json:"rule"`
	Message     string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.ParameterID, e.Message)
}

// Validator checks coerced values against their parameter constraints.
// Now supplies the reference time for bounds such as LocalDate.now().
type Validator struct {
	Now func() time.Time
}

func (v Validator) now() time.Time {
	if v.Now == nil {
		return time.Now()
	}
	return v.Now()
}

// Validate applies the parameter's rules to value in order (required, pattern,
// maxLength, min/max) and returns the first failure, or nil. Cross-field
// bounds are resolved against siblings.
func Validate(spec *ParameterSpec, value any, siblings map[string]any) *ValidationError {
	return Validator{}.Validate(spec, value, siblings)
}

// Validate is the Validator form of the package-level Validate.
func (v Validator) Validate(spec *ParameterSpec, value any, siblings map[string]any) *ValidationError {
	c := &spec.Constraints
	name := spec.DisplayName()

	if isEmpty(value) {
		if c.Required {
			return &ValidationError{ParameterID: spec.ID, Rule: RuleRequired, Message: name + " is required"}
		}
		return nil
	}

	if s, ok := value.(string); ok {
		if c.Pattern != "" && !c.matches(s) {
			return &ValidationError{
				ParameterID: spec.ID,
				Rule:        RulePattern,
				Message:     fmt.Sprintf("%s must match the pattern %s", name, c.Pattern),
			}
		}
		if c.MaxLength > 0 && utf8.RuneCountInString(s) > c.MaxLength {
			return &ValidationError{
				ParameterID: spec.ID,
				Rule:        RuleMaxLength,
				Message:     fmt.Sprintf("%s must be at most %d characters", name, c.MaxLength),
			}
		}
	}

	now := v.now()
	if bound, ok := c.Min.Resolve(now, siblings); ok {
		if cmp, ok := compare(spec.Type, value, bound); ok && cmp < 0 {
			return &ValidationError{
				ParameterID: spec.ID,
				Rule:        RuleMin,
				Message:     fmt.Sprintf("%s must be %s %v", name, lowerWord(spec.Type), bound),
			}
		}
	}
	if bound, ok := c.Max.Resolve(now, siblings); ok {
		if cmp, ok := compare(spec.Type, value, bound); ok && cmp > 0 {
			return &ValidationError{
				ParameterID: spec.ID,
				Rule:        RuleMax,
				Message:     fmt.Sprintf("%s must be %s %v", name, upperWord(spec.Type), bound),
			}
		}
	}
	return nil
}

func (c *Constraints) matches(s string) bool {
	re := c.pattern
	if re == nil {
		// Hand-built specs carry only the source pattern.
		var err error
		if re, err = compilePattern(c.Pattern); err != nil {
			return false
		}
	}
	return re.MatchString(s)
}

func lowerWord(t Type) string {
	if t.IsTemporal() {
		return "on or after"
	}
	return "at least"
}

func upperWord(t Type) string {
	if t.IsTemporal() {
		return "on or before"
	}
	return "at most"
}

// compare orders value against bound for the parameter type. It reports
// false when the pair is not comparable, in which case the bound is skipped.
func compare(t Type, value, bound any) (int, bool) {
	switch {
	case t == TypeInteger:
		a, ok := toInt64(value)
		if !ok {
			return 0, false
		}
		b, ok := toInt64(bound)
		if !ok {
			return 0, false
		}
		return cmpInt(a, b), true

	case t.IsTemporal():
		a, ok := toTime(value)
		if !ok {
			return 0, false
		}
		b, ok := toTime(bound)
		if !ok {
			return 0, false
		}
		return a.Compare(b), true

	default:
		return 0, false
	}
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func toInt64(v any) (int64, bool) {
	n, err := coerceInteger(v)
	if err != nil || n == nil {
		return 0, false
	}
	return n.(int64), true
}

func toTime(v any) (time.Time, bool) {
	switch v := v.(type) {
	case time.Time:
		return v, true
	case string:
		t, err := dateparse.ParseIn(v, time.UTC)
		return t, err == nil
	default:
		return time.Time{}, false
	}
}

func isEmpty(v any) bool {
	switch v := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	default:
		return false
	}
}

// Result is the outcome of validating a whole submission.
type Result struct {
	Values map[string]any    `json:"values"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// OK reports whether every field passed.
func (r *Result) OK() bool {
	return len(r.Errors) == 0
}

// Err joins the field failures into one error, or returns nil.
func (r *Result) Err() error {
	if r.OK() {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i := range r.Errors {
		errs[i] = &r.Errors[i]
	}
	return errors.Join(errs...)
}

// ValidateAll coerces every raw value and validates each field against the
// coerced values of its siblings. Fields fail independently; errors follow
// declaration order.
func ValidateAll(specs []ParameterSpec, raw map[string]any) Result {
	return Validator{}.ValidateAll(specs, raw)
}

// ValidateAll is the Validator form of the package-level ValidateAll.
func (v Validator) ValidateAll(specs []ParameterSpec, raw map[string]any) Result {
	res := Result{Values: make(map[string]any, len(specs))}
	failed := make(map[string]bool)

	for i := range specs {
		spec := &specs[i]
		value, err := Coerce(string(spec.Type), raw[spec.ID])
		if err != nil {
			failed[spec.ID] = true
			res.Errors = append(res.Errors, ValidationError{
				ParameterID: spec.ID,
				Rule:        RuleType,
				Message:     fmt.Sprintf("%s: %v", spec.DisplayName(), err),
			})
			continue
		}
		res.Values[spec.ID] = value
	}

	var fieldErrs []ValidationError
	for i := range specs {
		spec := &specs[i]
		if failed[spec.ID] {
			continue
		}
		if verr := v.Validate(spec, res.Values[spec.ID], res.Values); verr != nil {
			fieldErrs = append(fieldErrs, *verr)
		}
	}
	res.Errors = orderErrors(specs, append(res.Errors, fieldErrs...))
	return res
}

func orderErrors(specs []ParameterSpec, errs []ValidationError) []ValidationError {
	if len(errs) < 2 {
		return errs
	}
	ordered := make([]ValidationError, 0, len(errs))
	for _, spec := range specs {
		for _, e := range errs {
			if e.ParameterID == spec.ID {
				ordered = append(ordered, e)
			}
		}
	}
	return ordered
}
