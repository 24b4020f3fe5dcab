// Package chart projects a chart script into a typed chart definition.
//
//	chart {
//	    type 'bar'
//	    labelField 'month'
//	    series {
//	        series { field 'revenue'; label 'Revenue'; color '#4e79a7' }
//	        series { field 'target'; label 'Target'; type 'line'; yAxisID 'y2' }
//	    }
//	    options {
//	        responsive true
//	        plugins { title { display true; text 'Monthly revenue' } }
//	    }
//	}
package chart

import (
	"slices"
	"strings"

	"github.com/leapstack-labs/reportdsl/pkg/dsl"
)

// Config is a projected chart definition.
type Config struct {
	Type       string         `json:"type"`
	LabelField string         `json:"labelField,omitempty"`
	Series     []Series       `json:"series"`
	Options    map[string]any `json:"options,omitempty"`
	Data       string         `json:"data,omitempty"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// Series is one dataset of the chart.
type Series struct {
	Field           string         `json:"field"`
	Label           string         `json:"label,omitempty"`
	Color           string         `json:"color,omitempty"`
	BackgroundColor any            `json:"backgroundColor,omitempty"`
	BorderColor     any            `json:"borderColor,omitempty"`
	Type            string         `json:"type,omitempty"`
	YAxisID         string         `json:"yAxisID,omitempty"`
	XAxisID         string         `json:"xAxisID,omitempty"`
	Fill            any            `json:"fill,omitempty"`
	Tension         any            `json:"tension,omitempty"`
	BorderWidth     any            `json:"borderWidth,omitempty"`
	Stack           string         `json:"stack,omitempty"`
	Order           *int           `json:"order,omitempty"`
	Hidden          bool           `json:"hidden,omitempty"`
	Extra           map[string]any `json:"extra,omitempty"`
}

// Types are the recognized chart and series types.
var Types = []string{"bar", "line", "pie", "doughnut", "radar", "polarArea", "bubble", "scatter", "area"}

// DefaultType is used when a chart script does not name a type.
const DefaultType = "bar"

// seriesContainers are the block names that hold series entries.
var seriesContainers = []string{"series", "datasets"}

// Project converts a parsed chart script into a Config.
// An empty script yields a nil Config: the chart is not configured.
func Project(tree *dsl.Tree) (*Config, error) {
	root, err := tree.DialectRoot(dsl.DialectChart)
	if err != nil || root == nil {
		return nil, err
	}

	cfg := &Config{Type: DefaultType, Series: []Series{}}
	for _, f := range root.Fields() {
		switch {
		case f.Name == "type":
			t, err := chartType(f)
			if err != nil {
				return nil, err
			}
			cfg.Type = t
		case f.Name == "labelField" || f.Name == "labels":
			if s, ok := dsl.AsString(f.Value); ok {
				cfg.LabelField = s
				continue
			}
			// Literal category labels are passed through for the renderer.
			cfg.Extra = setExtra(cfg.Extra, f)
		case slices.Contains(seriesContainers, f.Name) || f.Name == "dataset":
			entries, err := seriesEntries(f)
			if err != nil {
				return nil, err
			}
			cfg.Series = append(cfg.Series, entries...)
		case f.Name == "options":
			cfg.Options = mergeOptions(cfg.Options, f)
		case f.Name == "data":
			cfg.Data = dsl.Expression(f)
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
	return dsl.Semanticf(dsl.DialectChart, pos, format, args...)
}

func chartType(f dsl.Field) (string, error) {
	s, ok := dsl.AsString(f.Value)
	if !ok || !slices.Contains(Types, s) {
		src := "(no value)"
		if f.Value != nil {
			src = f.Value.Source()
		}
		return "", semanticf(f.Pos, "invalid chart type %s (expected one of %s)", src, strings.Join(Types, ", "))
	}
	return s, nil
}

// seriesEntries reads a series field. It may be a container block
// ('series { series {..} series {..} }'), a single series block
// ('series { field 'a' }'), a call ('series(field: 'a')') or a list of maps.
func seriesEntries(f dsl.Field) ([]Series, error) {
	var stmts []*dsl.Statement
	switch {
	case f.Stmt != nil && f.Stmt.Body != nil && isContainer(f.Stmt.Body):
		for _, st := range f.Stmt.Body.Statements {
			if slices.Contains(seriesContainers, st.Name) || st.Name == "dataset" {
				stmts = append(stmts, st)
			}
		}
	case f.Stmt != nil && (f.Stmt.Body != nil || len(f.Stmt.Kwargs) > 0):
		stmts = append(stmts, f.Stmt)
	default:
		if list, ok := f.Value.(*dsl.List); ok {
			for _, item := range list.Items {
				if m, ok := item.(*dsl.Map); ok {
					stmts = append(stmts, &dsl.Statement{Name: "series", Kwargs: m.Entries, Pos: m.Pos()})
				}
			}
		} else if m, ok := f.Value.(*dsl.Map); ok {
			stmts = append(stmts, &dsl.Statement{Name: "series", Kwargs: m.Entries, Pos: m.Pos()})
		}
	}

	out := make([]Series, 0, len(stmts))
	for _, st := range stmts {
		s, err := projectSeries(st)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// isContainer reports whether a block lists series entries rather than
// describing a single series.
func isContainer(b *dsl.Block) bool {
	for _, st := range b.Statements {
		if (slices.Contains(seriesContainers, st.Name) || st.Name == "dataset") && (st.Body != nil || len(st.Kwargs) > 0) {
			return true
		}
	}
	return false
}

func projectSeries(st *dsl.Statement) (Series, error) {
	s := Series{}
	for _, f := range st.Fields() {
		switch f.Name {
		case "field", "dataField":
			s.Field, _ = dsl.AsString(f.Value)
		case "label":
			s.Label, _ = dsl.AsString(f.Value)
		case "color":
			s.Color, _ = dsl.AsString(f.Value)
		case "backgroundColor":
			s.BackgroundColor = dsl.Interface(f.Value)
		case "borderColor":
			s.BorderColor = dsl.Interface(f.Value)
		case "type":
			t, err := chartType(f)
			if err != nil {
				return s, err
			}
			s.Type = t
		case "yAxisID":
			s.YAxisID, _ = dsl.AsString(f.Value)
		case "xAxisID":
			s.XAxisID, _ = dsl.AsString(f.Value)
		case "fill":
			s.Fill = dsl.Interface(f.Value)
		case "tension":
			s.Tension = dsl.Interface(f.Value)
		case "borderWidth":
			s.BorderWidth = dsl.Interface(f.Value)
		case "stack":
			s.Stack, _ = dsl.AsString(f.Value)
		case "order":
			if n, ok := dsl.AsInt(f.Value); ok {
				s.Order = &n
			}
		case "hidden":
			s.Hidden, _ = dsl.AsBool(f.Value)
		default:
			if s.Extra == nil {
				s.Extra = make(map[string]any)
			}
			s.Extra[f.Name] = fieldInterface(f)
		}
	}
	if s.Field == "" {
		return s, semanticf(st.Pos, "series is missing 'field'")
	}
	return s, nil
}

// mergeOptions folds an options block or map into the existing options.
// Nested maps merge key by key; the later value wins on conflicts.
func mergeOptions(dst map[string]any, f dsl.Field) map[string]any {
	src, ok := fieldInterface(f).(map[string]any)
	if !ok {
		return dst
	}
	if dst == nil {
		return src
	}
	return deepMerge(dst, src)
}

func deepMerge(dst, src map[string]any) map[string]any {
	for k, v := range src {
		if sm, ok := v.(map[string]any); ok {
			if dm, ok := dst[k].(map[string]any); ok {
				dst[k] = deepMerge(dm, sm)
				continue
			}
		}
		dst[k] = v
	}
	return dst
}

func setExtra(extra map[string]any, f dsl.Field) map[string]any {
	if extra == nil {
		extra = make(map[string]any)
	}
	extra[f.Name] = fieldInterface(f)
	return extra
}

func fieldInterface(f dsl.Field) any {
	if f.Stmt != nil {
		return dsl.StatementInterface(f.Stmt)
	}
	return dsl.Interface(f.Value)
}
