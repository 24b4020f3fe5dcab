package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// PlaceholderStyle selects how bind markers are written.
type PlaceholderStyle int

// Placeholder styles.
const (
	PlaceholderQuestion PlaceholderStyle = iota // ?
	PlaceholderDollar                           // $1, $2, ...
)

// BaseSQLAdapter provides the database/sql plumbing shared by adapters.
// Embed it in concrete adapters to get Close, Exec, Query and Placeholder.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger
	Style  PlaceholderStyle
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		return b.DB.Close()
	}
	return nil
}

// Exec executes a statement that doesn't return rows.
func (b *BaseSQLAdapter) Exec(ctx context.Context, sqlStr string, args ...any) error {
	if b.DB == nil {
		return fmt.Errorf("database connection not established")
	}
	if _, err := b.DB.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Query executes a statement that returns rows.
func (b *BaseSQLAdapter) Query(ctx context.Context, sqlStr string, args ...any) (*Rows, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	if b.Logger != nil {
		b.Logger.Debug("executing query", slog.Int("args", len(args)))
	}
	//nolint:rowserrcheck // rows.Err() is checked by Collect
	rows, err := b.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return &Rows{Rows: rows}, nil
}

// Placeholder returns the bind marker for the n-th argument.
func (b *BaseSQLAdapter) Placeholder(n int) string {
	if b.Style == PlaceholderDollar {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// Table is a fully read query result.
type Table struct {
	Columns []string
	Rows    []map[string]any
	// Total counts every row the query produced, including rows dropped by the limit.
	Total int
}

// Collect reads rows into a Table and closes them. At most limit rows are
// kept when limit > 0; the remaining rows are still counted.
func Collect(rows *Rows, limit int) (*Table, error) {
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	table := &Table{Columns: columns, Rows: []map[string]any{}}
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		table.Total++
		if limit > 0 && len(table.Rows) >= limit {
			continue
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalize(values[i])
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return table, nil
}

// normalize turns driver values into JSON-friendly ones.
func normalize(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.RFC3339)
	default:
		return v
	}
}
