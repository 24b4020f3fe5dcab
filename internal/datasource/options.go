package datasource

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/reportdsl/pkg/params"
)

// NamedQuerier runs a query with named parameters.
type NamedQuerier interface {
	QueryNamed(ctx context.Context, query string, values map[string]any) ([]string, []map[string]any, error)
}

// LoadOptions fills the items of every query-backed select control. The first
// column is the option value and the second, when present, its label. Queries
// may reference other parameters by name, which bind from values.
//
// Specs are updated in place; static options are left alone.
func LoadOptions(ctx context.Context, q NamedQuerier, specs []params.ParameterSpec, values map[string]any) error {
	for i := range specs {
		opts := specs[i].UI.Options
		if !opts.IsQuery() {
			continue
		}
		columns, rows, err := q.QueryNamed(ctx, opts.Query, values)
		if err != nil {
			return fmt.Errorf("options for %q: %w", specs[i].ID, err)
		}
		if len(columns) == 0 {
			return fmt.Errorf("options for %q: query returned no columns", specs[i].ID)
		}
		items := make([]params.Option, 0, len(rows))
		for _, row := range rows {
			value := row[columns[0]]
			label := fmt.Sprint(value)
			if len(columns) > 1 && row[columns[1]] != nil {
				label = fmt.Sprint(row[columns[1]])
			}
			items = append(items, params.Option{Value: value, Label: label})
		}
		opts.Items = items
	}
	return nil
}
