package params

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/leapstack-labs/reportdsl/pkg/dsl"
)

// field is one named setting gathered from keyword arguments, a map literal,
// a call expression or a nested block.
type field struct {
	name  string
	value dsl.Value
	stmt  *dsl.Statement
	pos   dsl.Position
}

// Project converts a parsed reportParameters script into parameter specs in
// declaration order. An empty script declares no parameters.
func Project(tree *dsl.Tree) ([]ParameterSpec, error) {
	root, err := tree.DialectRoot(dsl.DialectParameters)
	if err != nil || root == nil {
		return nil, err
	}

	stmts := root.Body.All("parameter")

	// References may point forward, so collect every id first.
	ids := make(map[string]bool, len(stmts))
	for _, st := range stmts {
		if id, ok := parameterID(st); ok {
			ids[id] = true
		}
	}

	specs := make([]ParameterSpec, 0, len(stmts))
	seen := make(map[string]bool, len(stmts))
	for _, st := range stmts {
		spec, err := projectParameter(st, ids)
		if err != nil {
			return nil, err
		}
		if seen[spec.ID] {
			return nil, semanticf(st.Pos, "duplicate parameter id %q", spec.ID)
		}
		seen[spec.ID] = true
		specs = append(specs, spec)
	}
	return specs, nil
}

// ProjectScript parses and projects script text in one step.
func ProjectScript(script string) ([]ParameterSpec, error) {
	tree, err := dsl.Parse(script)
	if err != nil {
		return nil, err
	}
	return Project(tree)
}

func semanticf(pos dsl.Position, format string, args ...any) error {
	return dsl.Semanticf(dsl.DialectParameters, pos, format, args...)
}

func parameterID(st *dsl.Statement) (string, bool) {
	for _, f := range statementFields(st) {
		if f.name == "id" {
			return dsl.AsString(f.value)
		}
	}
	return "", false
}

// statementFields returns keyword arguments, positional calls such as
// constraints(required: true), and body statements, in source order.
func statementFields(st *dsl.Statement) []field {
	var out []field
	for _, kw := range st.Kwargs {
		out = append(out, field{name: kw.Name, value: kw.Value, pos: kw.Pos})
	}
	for _, arg := range st.Args {
		if call, ok := arg.(*dsl.Expr); ok && len(call.Chain) == 1 && call.Chain[0].Invoked {
			out = append(out, field{name: call.Root(), value: call, pos: call.Pos()})
		}
	}
	if st.Body != nil {
		for _, child := range st.Body.Statements {
			out = append(out, field{name: child.Name, value: child.Value(), stmt: child, pos: child.Pos})
		}
	}
	return out
}

// nestedFields expands a constraints or ui setting into its entries.
func nestedFields(f field) []field {
	if f.stmt != nil {
		return statementFields(f.stmt)
	}
	var out []field
	switch v := f.value.(type) {
	case *dsl.Map:
		for _, e := range v.Entries {
			out = append(out, field{name: e.Name, value: e.Value, pos: e.Pos})
		}
	case *dsl.Expr:
		for _, kw := range v.Chain[0].Kwargs {
			out = append(out, field{name: kw.Name, value: kw.Value, pos: kw.Pos})
		}
	}
	return out
}

func projectParameter(st *dsl.Statement, ids map[string]bool) (ParameterSpec, error) {
	spec := ParameterSpec{Pos: st.Pos}
	var typeToken string
	var typePos dsl.Position
	var defaultValue dsl.Value
	var constraints, ui []field

	for _, f := range statementFields(st) {
		switch f.name {
		case "id":
			id, ok := dsl.AsString(f.value)
			if !ok || id == "" {
				return spec, semanticf(f.pos, "parameter 'id' must be a non-empty string")
			}
			spec.ID = id
		case "type":
			typeToken, typePos = typeName(f.value), f.pos
		case "label":
			spec.Label, _ = dsl.AsString(f.value)
		case "description":
			spec.Description, _ = dsl.AsString(f.value)
		case "defaultValue", "default":
			defaultValue = f.value
		case "constraints":
			constraints = append(constraints, nestedFields(f)...)
		case "ui":
			ui = append(ui, nestedFields(f)...)
		default:
			if spec.Extra == nil {
				spec.Extra = make(map[string]any)
			}
			spec.Extra[f.name] = fieldInterface(f)
		}
	}

	if spec.ID == "" {
		return spec, semanticf(st.Pos, "parameter is missing 'id'")
	}
	if typeToken == "" {
		return spec, semanticf(st.Pos, "parameter %q is missing 'type'", spec.ID)
	}
	typ, ok := ParseType(typeToken)
	if !ok {
		return spec, semanticf(typePos, "parameter %q has unknown type %q (expected one of %s)", spec.ID, typeToken, typeList())
	}
	spec.Type = typ
	spec.Default = operand(defaultValue, typ, ids)

	if err := applyConstraints(&spec, constraints, ids); err != nil {
		return spec, err
	}
	applyUI(&spec, ui)
	return spec, nil
}

func typeName(v dsl.Value) string {
	if s, ok := dsl.AsString(v); ok {
		return s
	}
	if e, ok := v.(*dsl.Expr); ok {
		return e.Source()
	}
	return ""
}

func typeList() string {
	names := make([]string, len(Types))
	for i, t := range Types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// operand classifies a default or bound. A string literal naming another
// parameter is a reference when it cannot be a literal of the declared type.
func operand(v dsl.Value, typ Type, ids map[string]bool) *Operand {
	if s, ok := v.(*dsl.String); ok && ids[s.Value] && typ != TypeString {
		if _, err := Coerce(string(typ), s.Value); err != nil {
			return &Operand{Expr: &Expression{Kind: ExprRef, Source: s.Source(), Ref: s.Value}}
		}
	}
	return classify(v, ids)
}

func applyConstraints(spec *ParameterSpec, fields []field, ids map[string]bool) error {
	c := &spec.Constraints
	for _, f := range fields {
		switch f.name {
		case "required":
			c.Required, _ = dsl.AsBool(f.value)
		case "min":
			c.Min = operand(f.value, spec.Type, ids)
		case "max":
			c.Max = operand(f.value, spec.Type, ids)
		case "maxLength":
			n, ok := dsl.AsInt(f.value)
			if !ok || n < 0 {
				return semanticf(f.pos, "parameter %q: maxLength must be a non-negative integer", spec.ID)
			}
			c.MaxLength = n
		case "pattern":
			p, ok := dsl.AsString(f.value)
			if !ok {
				return semanticf(f.pos, "parameter %q: pattern must be a string", spec.ID)
			}
			re, err := compilePattern(p)
			if err != nil {
				return semanticf(f.pos, "parameter %q: invalid pattern %q: %v", spec.ID, p, err)
			}
			c.Pattern, c.pattern = p, re
		default:
			if c.Extra == nil {
				c.Extra = make(map[string]any)
			}
			c.Extra[f.name] = fieldInterface(f)
		}
	}
	return nil
}

func applyUI(spec *ParameterSpec, fields []field) {
	u := &spec.UI
	for _, f := range fields {
		switch f.name {
		case "control":
			s, _ := dsl.AsString(f.value)
			u.Control = Control(s)
		case "format":
			u.Format, _ = dsl.AsString(f.value)
		case "options":
			u.Options = projectOptions(f.value)
		default:
			if u.Extra == nil {
				u.Extra = make(map[string]any)
			}
			u.Extra[f.name] = fieldInterface(f)
		}
	}
	if u.Control == "" {
		u.Control = defaultControl(spec.Type, u.Options)
	}
}

func defaultControl(t Type, opts *Options) Control {
	switch {
	case opts != nil:
		return ControlSelect
	case t == TypeDate:
		return ControlDate
	case t == TypeDateTime:
		return ControlDateTime
	case t == TypeBoolean:
		return ControlCheckbox
	default:
		return ControlInput
	}
}

// projectOptions accepts a SQL string, a list of values, a list of
// [value: .., label: ..] maps, or a map of value to label.
func projectOptions(v dsl.Value) *Options {
	switch v := v.(type) {
	case *dsl.String:
		return &Options{Query: strings.TrimSpace(v.Value)}
	case *dsl.List:
		opts := &Options{Items: make([]Option, 0, len(v.Items))}
		for _, item := range v.Items {
			opts.Items = append(opts.Items, listOption(item))
		}
		return opts
	case *dsl.Map:
		opts := &Options{Items: make([]Option, 0, len(v.Entries))}
		for _, e := range v.Entries {
			opts.Items = append(opts.Items, Option{Value: e.Name, Label: fmt.Sprint(dsl.Interface(e.Value))})
		}
		return opts
	default:
		return nil
	}
}

func listOption(item dsl.Value) Option {
	m, ok := item.(*dsl.Map)
	if !ok {
		value := dsl.Interface(item)
		return Option{Value: value, Label: fmt.Sprint(value)}
	}
	var opt Option
	if v, ok := m.Get("value"); ok {
		opt.Value = dsl.Interface(v)
	}
	if l, ok := m.Get("label"); ok {
		opt.Label = fmt.Sprint(dsl.Interface(l))
	} else {
		opt.Label = fmt.Sprint(opt.Value)
	}
	return opt
}

func fieldInterface(f field) any {
	if f.stmt != nil {
		return dsl.StatementInterface(f.stmt)
	}
	return dsl.Interface(f.value)
}

// compilePattern anchors p so it must match the whole value.
func compilePattern(p string) (*regexp.Regexp, error) {
	return regexp.Compile(`^(?:` + p + `)$`)
}
