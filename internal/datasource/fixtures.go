package datasource

import (
	"context"
	"fmt"
	"sort"

	"github.com/leapstack-labs/reportdsl/pkg/adapter"
)

// CSVLoader is implemented by adapters that can load CSV files into tables.
type CSVLoader interface {
	LoadCSV(ctx context.Context, tableName, filePath string) error
}

// LoadFixtures loads each table=path CSV file into a, in table-name order,
// so previews can run against sample data.
func LoadFixtures(ctx context.Context, a adapter.Adapter, fixtures map[string]string) error {
	if len(fixtures) == 0 {
		return nil
	}
	loader, ok := a.(CSVLoader)
	if !ok {
		return fmt.Errorf("%s adapter cannot load CSV fixtures", a.DialectName())
	}
	tables := make([]string, 0, len(fixtures))
	for t := range fixtures {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		if err := loader.LoadCSV(ctx, t, fixtures[t]); err != nil {
			return fmt.Errorf("fixture %s: %w", t, err)
		}
	}
	return nil
}
