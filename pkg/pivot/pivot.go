// Package pivot projects a pivotTable script into a typed pivot-table definition.
// Aggregator, renderer and sort-order names follow the pivottable.js vocabulary.
package pivot

import (
	"strings"

	"github.com/leapstack-labs/reportdsl/pkg/dsl"
)

// Config is a projected pivot table.
type Config struct {
	Rows           []string            `json:"rows"`
	Cols           []string            `json:"cols"`
	Vals           []string            `json:"vals"`
	AggregatorName string              `json:"aggregatorName"`
	RendererName   string              `json:"rendererName"`
	RowOrder       string              `json:"rowOrder"`
	ColOrder       string              `json:"colOrder"`
	ValueFilter    map[string][]string `json:"valueFilter,omitempty"`
	Options        map[string]any      `json:"options,omitempty"`
	Data           string              `json:"data,omitempty"`
	Extra          map[string]any      `json:"extra,omitempty"`
}

// Recognized vocabularies.
var (
	Aggregators = []string{
		"Count", "Count Unique Values", "List Unique Values", "Sum", "Integer Sum",
		"Average", "Median", "Sample Variance", "Sample Standard Deviation",
		"Minimum", "Maximum", "First", "Last", "Sum over Sum",
		"80% Upper Bound", "80% Lower Bound",
		"Sum as Fraction of Total", "Sum as Fraction of Rows", "Sum as Fraction of Columns",
		"Count as Fraction of Total", "Count as Fraction of Rows", "Count as Fraction of Columns",
	}
	Renderers = []string{
		"Table", "Table Barchart", "Heatmap", "Row Heatmap", "Col Heatmap",
		"Line Chart", "Bar Chart", "Stacked Bar Chart", "Area Chart", "Scatter Chart",
		"Horizontal Bar Chart", "Horizontal Stacked Bar Chart", "Multiple Pie Chart",
		"TSV Export",
	}
	SortOrders = []string{"key_a_to_z", "value_a_to_z", "value_z_to_a"}
)

// Defaults applied when a script leaves a setting out.
const (
	DefaultAggregator = "Count"
	DefaultRenderer   = "Table"
	DefaultOrder      = "key_a_to_z"
)

// optionKeys are pivottable.js options collected into Options when written
// at the top level of the block.
var optionKeys = map[string]bool{
	"menuLimit":             true,
	"unusedAttrsVertical":   true,
	"autoSortUnusedAttrs":   true,
	"hiddenAttributes":      true,
	"hiddenFromAggregators": true,
	"hiddenFromDragDrop":    true,
	"sorters":               true,
	"derivedAttributes":     true,
	"rendererOptions":       true,
}

// Project converts a parsed pivotTable script into a Config.
// An empty script yields a nil Config: the pivot table is not configured.
func Project(tree *dsl.Tree) (*Config, error) {
	root, err := tree.DialectRoot(dsl.DialectPivot)
	if err != nil || root == nil {
		return nil, err
	}

	cfg := &Config{
		Rows:           []string{},
		Cols:           []string{},
		Vals:           []string{},
		AggregatorName: DefaultAggregator,
		RendererName:   DefaultRenderer,
		RowOrder:       DefaultOrder,
		ColOrder:       DefaultOrder,
	}

	for _, f := range root.Fields() {
		var err error
		switch f.Name {
		case "rows":
			cfg.Rows, err = names(f)
		case "cols", "columns":
			cfg.Cols, err = names(f)
		case "vals", "values":
			cfg.Vals, err = names(f)
		case "aggregatorName", "aggregator":
			cfg.AggregatorName, err = vocabulary(f, Aggregators)
		case "rendererName", "renderer":
			cfg.RendererName, err = vocabulary(f, Renderers)
		case "rowOrder":
			cfg.RowOrder, err = vocabulary(f, SortOrders)
		case "colOrder":
			cfg.ColOrder, err = vocabulary(f, SortOrders)
		case "valueFilter":
			err = valueFilter(cfg, f)
		case "options":
			for _, opt := range nested(f) {
				cfg.Options = set(cfg.Options, opt.Name, fieldInterface(opt))
			}
		case "data":
			cfg.Data = dsl.Expression(f)
		default:
			if optionKeys[f.Name] {
				cfg.Options = set(cfg.Options, f.Name, fieldInterface(f))
			} else {
				cfg.Extra = set(cfg.Extra, f.Name, fieldInterface(f))
			}
		}
		if err != nil {
			return nil, err
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
	return dsl.Semanticf(dsl.DialectPivot, pos, format, args...)
}

func names(f dsl.Field) ([]string, error) {
	if f.Value == nil {
		return []string{}, nil
	}
	out, ok := dsl.AsStrings(f.Value)
	if !ok {
		return nil, semanticf(f.Pos, "%s must be a list of field names, got %s", f.Name, f.Value.Source())
	}
	return out, nil
}

// vocabulary matches a name case-insensitively and returns its canonical spelling.
func vocabulary(f dsl.Field, allowed []string) (string, error) {
	s, _ := dsl.AsString(f.Value)
	for _, a := range allowed {
		if strings.EqualFold(a, s) {
			return a, nil
		}
	}
	src := "(no value)"
	if f.Value != nil {
		src = f.Value.Source()
	}
	return "", semanticf(f.Pos, "unknown %s %s (expected one of %s)", f.Name, src, strings.Join(allowed, ", "))
}

// valueFilter reads per-field exclusion lists from a map literal
// ('valueFilter([region: ['North']])'), keyword arguments
// ('valueFilter region: ['North']') or a block ('valueFilter { region 'North', 'South' }').
func valueFilter(cfg *Config, f dsl.Field) error {
	for _, entry := range nested(f) {
		excluded, ok := dsl.AsStrings(entry.Value)
		if !ok {
			return semanticf(entry.Pos, "valueFilter for %q must list the excluded values", entry.Name)
		}
		if cfg.ValueFilter == nil {
			cfg.ValueFilter = make(map[string][]string)
		}
		cfg.ValueFilter[entry.Name] = excluded
	}
	return nil
}

// nested expands a block, keyword arguments or a single map argument into fields.
func nested(f dsl.Field) []dsl.Field {
	var out []dsl.Field
	if f.Stmt != nil {
		out = f.Stmt.Fields()
		for _, arg := range f.Stmt.Args {
			out = append(out, mapFields(arg)...)
		}
		return out
	}
	return mapFields(f.Value)
}

func mapFields(v dsl.Value) []dsl.Field {
	m, ok := v.(*dsl.Map)
	if !ok {
		return nil
	}
	out := make([]dsl.Field, 0, len(m.Entries))
	for _, e := range m.Entries {
		out = append(out, dsl.Field{Name: e.Name, Value: e.Value, Pos: e.Pos})
	}
	return out
}

func fieldInterface(f dsl.Field) any {
	if f.Stmt != nil {
		return dsl.StatementInterface(f.Stmt)
	}
	return dsl.Interface(f.Value)
}

func set(m map[string]any, key string, v any) map[string]any {
	if m == nil {
		m = make(map[string]any)
	}
	m[key] = v
	return m
}
