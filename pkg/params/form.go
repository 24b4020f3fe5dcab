package params

import "time"

// Form is one fresh instance of the parameter-entry form. Defaults are
// resolved when the form is created, so "today" is the day the form opened.
type Form struct {
	Fields    []FormField `json:"fields"`
	CreatedAt time.Time   `json:"createdAt"`
}

// FormField pairs a parameter spec with its initial value.
type FormField struct {
	ParameterSpec
	Value any `json:"value"`
}

// NewForm resolves every default at time now, in declaration order, so a
// default may reference the resolved default of an earlier parameter.
func NewForm(specs []ParameterSpec, now time.Time) *Form {
	form := &Form{Fields: make([]FormField, 0, len(specs)), CreatedAt: now}
	values := make(map[string]any, len(specs))
	for _, spec := range specs {
		var value any
		if v, ok := spec.Default.Resolve(now, values); ok {
			value = v
			if coerced, err := Coerce(string(spec.Type), v); err == nil {
				value = coerced
			}
		}
		values[spec.ID] = value
		form.Fields = append(form.Fields, FormField{ParameterSpec: spec, Value: value})
	}
	return form
}

// Values returns the initial values keyed by parameter id.
func (f *Form) Values() map[string]any {
	out := make(map[string]any, len(f.Fields))
	for _, field := range f.Fields {
		out[field.ID] = field.Value
	}
	return out
}

// Specs returns the form's parameter specs in order.
func (f *Form) Specs() []ParameterSpec {
	out := make([]ParameterSpec, len(f.Fields))
	for i, field := range f.Fields {
		out[i] = field.ParameterSpec
	}
	return out
}

// Submit merges submitted raw values over the form's initial values and
// validates the result with the form's creation time as "now".
func (f *Form) Submit(raw map[string]any) Result {
	merged := f.Values()
	for k, v := range raw {
		merged[k] = v
	}
	created := f.CreatedAt
	return Validator{Now: func() time.Time { return created }}.ValidateAll(f.Specs(), merged)
}
