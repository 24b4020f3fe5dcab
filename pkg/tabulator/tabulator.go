// Package tabulator projects a tabulator script into a typed table definition.
//
//	tabulator {
//	    layoutOptions {
//	        layout 'fitColumns'
//	        height '400px'
//	    }
//	    columns {
//	        column { title 'Region'; field 'region'; headerFilter 'input' }
//	        column(title: 'Revenue', field: 'revenue', hozAlign: 'right',
//	               formatter: 'money', formatterParams: [precision: 2])
//	    }
//	    callbacks {
//	        rowClick 'openDetails', params: [target: 'orders']
//	    }
//	}
package tabulator

import (
	"strings"

	"github.com/leapstack-labs/reportdsl/pkg/dsl"
)

// Config is a projected table definition.
type Config struct {
	LayoutOptions LayoutOptions  `json:"layoutOptions"`
	Columns       []Column       `json:"columns"`
	Data          string         `json:"data,omitempty"`
	Callbacks     []Callback     `json:"callbacks,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
}

// LayoutOptions configure the table as a whole.
type LayoutOptions struct {
	Layout           string         `json:"layout,omitempty"`
	Height           any            `json:"height,omitempty"`
	Width            any            `json:"width,omitempty"`
	MinHeight        any            `json:"minHeight,omitempty"`
	MaxHeight        any            `json:"maxHeight,omitempty"`
	RenderVertical   string         `json:"renderVertical,omitempty"`
	RenderHorizontal string         `json:"renderHorizontal,omitempty"`
	Extra            map[string]any `json:"extra,omitempty"`
}

// Column is one column definition. Columns may nest to form column groups.
type Column struct {
	Title        string         `json:"title,omitempty"`
	Field        string         `json:"field,omitempty"`
	HozAlign     string         `json:"hozAlign,omitempty"`
	VertAlign    string         `json:"vertAlign,omitempty"`
	Width        any            `json:"width,omitempty"`
	MinWidth     any            `json:"minWidth,omitempty"`
	MaxWidth     any            `json:"maxWidth,omitempty"`
	Sorter       string         `json:"sorter,omitempty"`
	Formatter    *Handler       `json:"formatter,omitempty"`
	Editor       *Handler       `json:"editor,omitempty"`
	HeaderFilter *Handler       `json:"headerFilter,omitempty"`
	Validators   []string       `json:"validators,omitempty"`
	Columns      []Column       `json:"columns,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// Handler names a formatter, editor or header filter and its parameters.
// Kind is either a built-in name or the verbatim source of a closure.
type Handler struct {
	Kind   string         `json:"kind"`
	Params map[string]any `json:"params,omitempty"`
}

// Callback binds a named handler to a table event.
type Callback struct {
	Event   string         `json:"event"`
	Handler string         `json:"handler"`
	Params  map[string]any `json:"params,omitempty"`
}

// Recognized enum values.
var (
	Layouts          = []string{"fitData", "fitColumns", "fitDataFill", "fitDataStretch", "fitDataTable"}
	HozAligns        = []string{"left", "center", "right"}
	VertAligns       = []string{"top", "middle", "bottom"}
	Sorters          = []string{"string", "number", "alphanum", "boolean", "exists", "date", "time", "datetime", "array"}
	RenderModes      = []string{"virtual", "basic"}
	Events           = []string{"rowClick", "rowDblClick", "rowContext", "cellClick", "cellDblClick", "cellEdited", "dataLoaded", "dataProcessed", "dataFiltered", "dataSorted", "tableBuilt", "rowSelected", "rowDeselected", "rowSelectionChanged"}
	layoutOptionKeys = map[string]bool{"layout": true, "height": true, "width": true, "minHeight": true, "maxHeight": true, "renderVertical": true, "renderHorizontal": true}
)

// Project converts a parsed tabulator script into a Config.
// An empty script yields a nil Config: the table is not configured.
func Project(tree *dsl.Tree) (*Config, error) {
	root, err := tree.DialectRoot(dsl.DialectTabulator)
	if err != nil || root == nil {
		return nil, err
	}

	cfg := &Config{Columns: []Column{}}
	for _, f := range root.Fields() {
		switch {
		case f.Name == "layoutOptions":
			if err := projectLayout(&cfg.LayoutOptions, nested(f)); err != nil {
				return nil, err
			}
		case layoutOptionKeys[f.Name]:
			if err := projectLayout(&cfg.LayoutOptions, []dsl.Field{f}); err != nil {
				return nil, err
			}
		case f.Name == "columns":
			for _, st := range columnStatements(f) {
				col, err := projectColumn(st)
				if err != nil {
					return nil, err
				}
				cfg.Columns = append(cfg.Columns, col)
			}
		case f.Name == "column":
			col, err := projectColumn(columnStatement(f))
			if err != nil {
				return nil, err
			}
			cfg.Columns = append(cfg.Columns, col)
		case f.Name == "data":
			cfg.Data = dsl.Expression(f)
		case f.Name == "callbacks":
			for _, cb := range nested(f) {
				callback, err := projectCallback(cb)
				if err != nil {
					return nil, err
				}
				cfg.Callbacks = append(cfg.Callbacks, callback)
			}
		case contains(Events, f.Name):
			callback, err := projectCallback(f)
			if err != nil {
				return nil, err
			}
			cfg.Callbacks = append(cfg.Callbacks, callback)
		default:
			cfg.Extra = setExtra(cfg.Extra, f)
		}
	}
	return cfg, nil
}

// ProjectScript parses and projects script text in one step.
func ProjectScript(script string) (*Config, error) {
	tree, err := dsl.Parse(script)
	if err != nil {
		return nil, err
	}
	return Project(tree)
}

func semanticf(pos dsl.Position, format string, args ...any) error {
	return dsl.Semanticf(dsl.DialectTabulator, pos, format, args...)
}

func projectLayout(lo *LayoutOptions, fields []dsl.Field) error {
	for _, f := range fields {
		switch f.Name {
		case "layout":
			v, err := enum(f, Layouts)
			if err != nil {
				return err
			}
			lo.Layout = v
		case "height":
			lo.Height = dsl.Interface(f.Value)
		case "width":
			lo.Width = dsl.Interface(f.Value)
		case "minHeight":
			lo.MinHeight = dsl.Interface(f.Value)
		case "maxHeight":
			lo.MaxHeight = dsl.Interface(f.Value)
		case "renderVertical":
			v, err := enum(f, RenderModes)
			if err != nil {
				return err
			}
			lo.RenderVertical = v
		case "renderHorizontal":
			v, err := enum(f, RenderModes)
			if err != nil {
				return err
			}
			lo.RenderHorizontal = v
		default:
			lo.Extra = setExtra(lo.Extra, f)
		}
	}
	return nil
}

// columnStatements returns the column entries of a columns block, or the
// maps of a columns list literal wrapped as statements.
func columnStatements(f dsl.Field) []*dsl.Statement {
	if f.Stmt != nil && f.Stmt.Body != nil {
		return f.Stmt.Body.All("column")
	}
	list, ok := f.Value.(*dsl.List)
	if !ok {
		return nil
	}
	var out []*dsl.Statement
	for _, item := range list.Items {
		if m, ok := item.(*dsl.Map); ok {
			out = append(out, &dsl.Statement{Name: "column", Kwargs: m.Entries, Pos: m.Pos()})
		}
	}
	return out
}

// columnStatement returns the statement behind a single column field.
func columnStatement(f dsl.Field) *dsl.Statement {
	if f.Stmt != nil {
		return f.Stmt
	}
	st := &dsl.Statement{Name: "column", Pos: f.Pos}
	if m, ok := f.Value.(*dsl.Map); ok {
		st.Kwargs = m.Entries
	}
	return st
}

func projectColumn(st *dsl.Statement) (Column, error) {
	col := Column{}
	params := map[string]map[string]any{}
	for _, f := range st.Fields() {
		var err error
		switch f.Name {
		case "title":
			col.Title, _ = dsl.AsString(f.Value)
		case "field":
			col.Field, _ = dsl.AsString(f.Value)
		case "hozAlign":
			col.HozAlign, err = enum(f, HozAligns)
		case "vertAlign":
			col.VertAlign, err = enum(f, VertAligns)
		case "width":
			col.Width = dsl.Interface(f.Value)
		case "minWidth":
			col.MinWidth = dsl.Interface(f.Value)
		case "maxWidth":
			col.MaxWidth = dsl.Interface(f.Value)
		case "sorter":
			col.Sorter, err = enumOrClosure(f, Sorters)
		case "formatter":
			col.Formatter = handler(f)
		case "editor":
			col.Editor = handler(f)
		case "headerFilter":
			col.HeaderFilter = handler(f)
		case "formatterParams", "editorParams", "headerFilterParams":
			params[strings.TrimSuffix(f.Name, "Params")] = paramsOf(f)
		case "validator", "validators":
			col.Validators, _ = dsl.AsStrings(f.Value)
		case "columns":
			for _, child := range columnStatements(f) {
				sub, err := projectColumn(child)
				if err != nil {
					return col, err
				}
				col.Columns = append(col.Columns, sub)
			}
		case "column":
			sub, err := projectColumn(columnStatement(f))
			if err != nil {
				return col, err
			}
			col.Columns = append(col.Columns, sub)
		default:
			col.Extra = setExtra(col.Extra, f)
		}
		if err != nil {
			return col, err
		}
	}

	attach := func(h *Handler, p map[string]any, name string) *Handler {
		if p == nil {
			return h
		}
		if h == nil {
			col.Extra = setValue(col.Extra, name+"Params", p)
			return nil
		}
		h.Params = p
		return h
	}
	col.Formatter = attach(col.Formatter, params["formatter"], "formatter")
	col.Editor = attach(col.Editor, params["editor"], "editor")
	col.HeaderFilter = attach(col.HeaderFilter, params["headerFilter"], "headerFilter")
	return col, nil
}

// handler reads 'formatter "money"', 'formatter "money", precision: 2',
// 'formatter { cell -> ... }', 'formatter { it.toUpperCase() }' or
// 'editor true'. A closure's Kind is its source text.
func handler(f dsl.Field) *Handler {
	if f.Value == nil {
		return nil
	}
	h := &Handler{}
	v := f.Value
	if list, ok := v.(*dsl.List); ok && len(list.Items) > 0 {
		if m, ok := list.Items[len(list.Items)-1].(*dsl.Map); ok {
			h.Params = dsl.Interface(m).(map[string]any)
		}
		v = list.Items[0]
	}
	h.Kind = opaque(v)
	return h
}

func paramsOf(f dsl.Field) map[string]any {
	if f.Stmt != nil && f.Stmt.Body != nil {
		return dsl.StatementInterface(f.Stmt).(map[string]any)
	}
	if m, ok := dsl.Interface(f.Value).(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// projectCallback reads 'rowClick "handlerName", params: [..]' or
// 'rowClick(handler: "handlerName", params: [..])'.
func projectCallback(f dsl.Field) (Callback, error) {
	cb := Callback{Event: f.Name}
	if f.Stmt != nil {
		if len(f.Stmt.Args) > 0 {
			cb.Handler = opaque(f.Stmt.Args[0])
		}
		for _, kw := range f.Stmt.Kwargs {
			switch kw.Name {
			case "handler":
				cb.Handler = opaque(kw.Value)
			case "params":
				cb.Params, _ = dsl.Interface(kw.Value).(map[string]any)
			}
		}
	} else {
		cb.Handler = opaque(f.Value)
	}
	if cb.Handler == "" {
		return cb, semanticf(f.Pos, "callback %q has no handler", f.Name)
	}
	return cb, nil
}

func nested(f dsl.Field) []dsl.Field {
	if f.Stmt != nil {
		return f.Stmt.Fields()
	}
	m, ok := f.Value.(*dsl.Map)
	if !ok {
		return nil
	}
	out := make([]dsl.Field, 0, len(m.Entries))
	for _, e := range m.Entries {
		out = append(out, dsl.Field{Name: e.Name, Value: e.Value, Pos: e.Pos})
	}
	return out
}

func enum(f dsl.Field, allowed []string) (string, error) {
	s, ok := dsl.AsString(f.Value)
	if !ok || !contains(allowed, s) {
		return "", semanticf(f.Pos, "invalid %s %s (expected one of %s)", f.Name, describe(f.Value), strings.Join(allowed, ", "))
	}
	return s, nil
}

// enumOrClosure accepts a recognized token or a custom closure.
func enumOrClosure(f dsl.Field, allowed []string) (string, error) {
	if c, ok := f.Value.(*dsl.Closure); ok {
		return c.Source(), nil
	}
	return enum(f, allowed)
}

func describe(v dsl.Value) string {
	if v == nil {
		return "(no value)"
	}
	return v.Source()
}

// opaque returns string literals by value and anything else as source text.
func opaque(v dsl.Value) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(*dsl.String); ok {
		return s.Value
	}
	return v.Source()
}

func setExtra(extra map[string]any, f dsl.Field) map[string]any {
	if f.Stmt != nil {
		return setValue(extra, f.Name, dsl.StatementInterface(f.Stmt))
	}
	return setValue(extra, f.Name, dsl.Interface(f.Value))
}

func setValue(extra map[string]any, key string, v any) map[string]any {
	if extra == nil {
		extra = make(map[string]any)
	}
	extra[key] = v
	return extra
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
