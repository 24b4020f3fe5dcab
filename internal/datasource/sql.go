package datasource

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/reportdsl/pkg/adapter"
	"github.com/leapstack-labs/reportdsl/pkg/preview"
)

// SQLExecutor runs preview SQL against a connected adapter.
type SQLExecutor struct {
	adapter adapter.Adapter
	limit   int
	logger  *slog.Logger
}

// SQLConfig holds SQLExecutor configuration.
type SQLConfig struct {
	// Adapter is a connected database adapter (required)
	Adapter adapter.Adapter
	// Limit caps the rows read into memory; zero reads everything.
	// Rows past the limit are still counted for TotalRows.
	Limit int
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// NewSQLExecutor creates an executor over a connected adapter.
func NewSQLExecutor(cfg SQLConfig) *SQLExecutor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLExecutor{adapter: cfg.Adapter, limit: cfg.Limit, logger: logger}
}

// Open creates and connects the adapter named by cfg.Type.
func Open(ctx context.Context, cfg adapter.Config, logger *slog.Logger) (adapter.Adapter, error) {
	a, err := adapter.NewAdapter(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := a.Connect(ctx, cfg); err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Type, err)
	}
	return a, nil
}

// Execute binds values into ds.Query and runs it.
func (e *SQLExecutor) Execute(ctx context.Context, ds preview.DataSource, values map[string]any) (*preview.Result, error) {
	if ds.Query == "" {
		return nil, fmt.Errorf("data source %q has no query", ds.Name)
	}
	columns, rows, total, err := e.run(ctx, ds.Query, values, e.limit)
	if err != nil {
		return nil, err
	}
	return &preview.Result{ReportColumnNames: columns, ReportData: rows, TotalRows: total}, nil
}

// QueryNamed runs a query with named parameters and returns every row.
func (e *SQLExecutor) QueryNamed(ctx context.Context, query string, values map[string]any) ([]string, []map[string]any, error) {
	columns, rows, _, err := e.run(ctx, query, values, 0)
	return columns, rows, err
}

// Query runs a query with positional '?' arguments, rewriting them to the
// adapter's placeholder style. It backs the Starlark query() builtin.
func (e *SQLExecutor) Query(ctx context.Context, query string, args ...any) ([]string, []map[string]any, error) {
	rows, err := e.adapter.Query(ctx, positional(query, e.adapter.Placeholder), args...)
	if err != nil {
		return nil, nil, err
	}
	table, err := adapter.Collect(rows, 0)
	if err != nil {
		return nil, nil, err
	}
	return table.Columns, table.Rows, nil
}

// DialectName names the SQL dialect of the underlying adapter.
func (e *SQLExecutor) DialectName() string {
	return e.adapter.DialectName()
}

// Close closes the underlying adapter.
func (e *SQLExecutor) Close() error {
	return e.adapter.Close()
}

func (e *SQLExecutor) run(ctx context.Context, query string, values map[string]any, limit int) ([]string, []map[string]any, int, error) {
	bound, args, err := BindNamed(query, values, e.adapter.Placeholder)
	if err != nil {
		return nil, nil, 0, err
	}
	e.logger.Debug("running preview query", slog.String("dialect", e.adapter.DialectName()), slog.Int("args", len(args)))

	rows, err := e.adapter.Query(ctx, bound, args...)
	if err != nil {
		return nil, nil, 0, err
	}
	table, err := adapter.Collect(rows, limit)
	if err != nil {
		return nil, nil, 0, err
	}
	return table.Columns, table.Rows, table.Total, nil
}

// positional rewrites '?' markers outside quotes to the adapter's style.
func positional(query string, placeholder func(n int) string) string {
	if placeholder(1) == "?" {
		return query
	}
	var out []byte
	n := 0
	for i := 0; i < len(query); {
		c := query[i]
		switch c {
		case '\'', '"':
			end := skipQuoted(query, i, c)
			out = append(out, query[i:end]...)
			i = end
		case '?':
			n++
			out = append(out, placeholder(n)...)
			i++
		default:
			out = append(out, c)
			i++
		}
	}
	return string(out)
}
