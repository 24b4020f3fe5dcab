package starlark

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leapstack-labs/reportdsl/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionContext_Run(t *testing.T) {
	tests := []struct {
		name        string
		params      map[string]any
		src         string
		wantColumns []string
		wantRows    []map[string]any
	}{
		{
			name: "literal rows keep insertion order of keys",
			src: `
rows = [
    {"region": "North", "total": 10},
    {"region": "South", "total": 20},
]
`,
			wantColumns: []string{"region", "total"},
			wantRows: []map[string]any{
				{"region": "North", "total": int64(10)},
				{"region": "South", "total": int64(20)},
			},
		},
		{
			name:   "params drive a top-level loop",
			params: map[string]any{"count": int64(3), "label": "day"},
			src: `
rows = []
for i in range(params["count"]):
    rows.append({"n": i + 1, "label": params["label"]})
columns = ["label", "n"]
`,
			wantColumns: []string{"label", "n"},
			wantRows: []map[string]any{
				{"n": int64(1), "label": "day"},
				{"n": int64(2), "label": "day"},
				{"n": int64(3), "label": "day"},
			},
		},
		{
			name:        "empty rows",
			src:         `rows = []`,
			wantColumns: []string{},
			wantRows:    []map[string]any{},
		},
		{
			name:        "target is visible",
			src:         `rows = [{"db": target.type}]`,
			wantColumns: []string{"db"},
			wantRows:    []map[string]any{{"db": "duckdb"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ec := &ExecutionContext{
				Params: tt.params,
				Target: &TargetInfo{Type: "duckdb"},
				Logger: testutil.NewTestLogger(t),
			}
			out, err := ec.Run(context.Background(), "source.star", tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.wantColumns, out.Columns)
			assert.Equal(t, tt.wantRows, out.Rows)
		})
	}
}

func TestExecutionContext_RunErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		wantLine int
		wantMsg  string
	}{
		{name: "missing rows", src: `x = 1`, wantMsg: "script must assign 'rows'"},
		{name: "rows not a list", src: `rows = "abc"`, wantMsg: "'rows' must be a list of dicts, got string"},
		{name: "row not a dict", src: `rows = [1]`, wantMsg: "rows[0] must be a dict, got int"},
		{name: "bad columns", src: "rows = []\ncolumns = [1]", wantMsg: "'columns' must be a list of strings"},
		{name: "runtime error has line", src: "x = 1\nrows = [{}][5]", wantLine: 2, wantMsg: "out of range"},
		{name: "syntax error", src: "rows = [\n"},
		{name: "query undefined without backend", src: "x = 1\nrows = query('SELECT 1')", wantLine: 2, wantMsg: "undefined: query"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ec := &ExecutionContext{}
			_, err := ec.Run(context.Background(), "source.star", tt.src)
			require.Error(t, err)

			var scriptErr *ScriptError
			require.True(t, errors.As(err, &scriptErr), "want *ScriptError, got %T", err)
			assert.Equal(t, "source.star", scriptErr.File)
			if tt.wantLine > 0 {
				assert.Equal(t, tt.wantLine, scriptErr.Line)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, scriptErr.Message, tt.wantMsg)
			}
		})
	}
}

func TestExecutionContext_Query(t *testing.T) {
	var gotSQL string
	var gotArgs []any
	query := func(_ context.Context, sql string, args ...any) ([]string, []map[string]any, error) {
		gotSQL = sql
		gotArgs = args
		return []string{"region", "total"}, []map[string]any{
			{"region": "North", "total": 12.5},
		}, nil
	}

	ec := &ExecutionContext{
		Params: map[string]any{"from": "2024-03-01"},
		Query:  query,
	}
	out, err := ec.Run(context.Background(), "sales.star", `rows = query("SELECT region, total FROM sales WHERE day >= ?", params["from"])`)
	require.NoError(t, err)

	assert.Equal(t, "SELECT region, total FROM sales WHERE day >= ?", gotSQL)
	assert.Equal(t, []any{"2024-03-01"}, gotArgs)
	assert.Equal(t, []string{"region", "total"}, out.Columns)
	assert.Equal(t, []map[string]any{{"region": "North", "total": 12.5}}, out.Rows)
}

func TestExecutionContext_QueryError(t *testing.T) {
	query := func(context.Context, string, ...any) ([]string, []map[string]any, error) {
		return nil, nil, errors.New("relation \"sales\" does not exist")
	}
	ec := &ExecutionContext{Query: query}
	_, err := ec.Run(context.Background(), "sales.star", "\nrows = query('SELECT * FROM sales')")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relation \"sales\" does not exist")
	assert.Contains(t, err.Error(), "sales.star:2")
}

func TestExecutionContext_Cancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	ec := &ExecutionContext{MaxSteps: 1 << 62}
	_, err := ec.Run(ctx, "loop.star", "while True:\n    pass\nrows = []")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecutionContext_StepLimit(t *testing.T) {
	ec := &ExecutionContext{MaxSteps: 1000}
	_, err := ec.Run(context.Background(), "loop.star", "while True:\n    pass\nrows = []")
	require.Error(t, err)

	var scriptErr *ScriptError
	require.True(t, errors.As(err, &scriptErr))
	assert.Contains(t, scriptErr.Message, "too many steps")
}
