package tabulator

import (
	"testing"

	"github.com/leapstack-labs/reportdsl/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ordersTable = `
tabulator {
    layoutOptions {
        layout 'fitColumns'
        height '400px'
        renderVertical 'virtual'
        movableColumns true
    }
    columns {
        column {
            title 'Region'
            field 'region'
            headerFilter 'input'
            frozen true
        }
        column(title: 'Revenue', field: 'revenue', hozAlign: 'right', sorter: 'number',
               formatter: 'money', formatterParams: [precision: 2, symbol: '$'])
        column {
            title 'Margin'
            field 'margin'
            formatter { cell -> cell.getValue() + '%' }
            validator 'required'
        }
        column {
            title 'Period'
            columns {
                column { title 'Year'; field 'year'; width 80 }
                column { title 'Month'; field 'month' }
            }
        }
    }
    data 'reportData.findAll { it.revenue > 0 }'
    callbacks {
        rowClick 'openDetails', params: [target: 'orders']
    }
    pagination true
}
`

func TestProject_OrdersTable(t *testing.T) {
	cfg, err := ProjectScript(ordersTable)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "fitColumns", cfg.LayoutOptions.Layout)
	assert.Equal(t, "400px", cfg.LayoutOptions.Height)
	assert.Equal(t, "virtual", cfg.LayoutOptions.RenderVertical)
	assert.Equal(t, map[string]any{"movableColumns": true}, cfg.LayoutOptions.Extra)

	require.Len(t, cfg.Columns, 4)
	var fields []string
	for _, c := range cfg.Columns {
		fields = append(fields, c.Field)
	}
	assert.Equal(t, []string{"region", "revenue", "margin", ""}, fields)

	region := cfg.Columns[0]
	assert.Equal(t, &Handler{Kind: "input"}, region.HeaderFilter)
	assert.Equal(t, map[string]any{"frozen": true}, region.Extra)

	revenue := cfg.Columns[1]
	assert.Equal(t, "right", revenue.HozAlign)
	assert.Equal(t, "number", revenue.Sorter)
	assert.Equal(t, &Handler{Kind: "money", Params: map[string]any{"precision": int64(2), "symbol": "$"}}, revenue.Formatter)

	margin := cfg.Columns[2]
	require.NotNil(t, margin.Formatter)
	assert.Equal(t, "{ cell -> cell.getValue() + '%' }", margin.Formatter.Kind)
	assert.Equal(t, []string{"required"}, margin.Validators)

	period := cfg.Columns[3]
	assert.Equal(t, "Period", period.Title)
	require.Len(t, period.Columns, 2)
	assert.Equal(t, "year", period.Columns[0].Field)
	assert.Equal(t, int64(80), period.Columns[0].Width)

	assert.Equal(t, "reportData.findAll { it.revenue > 0 }", cfg.Data)
	assert.Equal(t, []Callback{{Event: "rowClick", Handler: "openDetails", Params: map[string]any{"target": "orders"}}}, cfg.Callbacks)
	assert.Equal(t, map[string]any{"pagination": true}, cfg.Extra)
}

func TestProject_EmptyScriptIsNotConfigured(t *testing.T) {
	for _, input := range []string{"", "   \n  ", "/* later */"} {
		cfg, err := ProjectScript(input)
		require.NoError(t, err)
		assert.Nil(t, cfg, "input %q", input)
	}
}

func TestProject_TopLevelShortcuts(t *testing.T) {
	cfg, err := ProjectScript(`tabulator {
    layout 'fitData'
    column { field 'a' }
    column(field: 'b')
    dataLoaded 'refreshTotals'
}`)
	require.NoError(t, err)
	assert.Equal(t, "fitData", cfg.LayoutOptions.Layout)
	require.Len(t, cfg.Columns, 2)
	assert.Equal(t, "a", cfg.Columns[0].Field)
	assert.Equal(t, "b", cfg.Columns[1].Field)
	assert.Equal(t, []Callback{{Event: "dataLoaded", Handler: "refreshTotals"}}, cfg.Callbacks)
}

func TestProject_ColumnsListLiteral(t *testing.T) {
	cfg, err := ProjectScript(`tabulator {
    columns = [[title: 'A', field: 'a'], [title: 'B', field: 'b', hozAlign: 'center']]
}`)
	require.NoError(t, err)
	require.Len(t, cfg.Columns, 2)
	assert.Equal(t, "center", cfg.Columns[1].HozAlign)
}

func TestProject_LastWriteWins(t *testing.T) {
	cfg, err := ProjectScript(`tabulator {
    layout 'fitData'
    layout 'fitColumns'
    column(title: 'Old', field: 'x') { title 'New' }
}`)
	require.NoError(t, err)
	assert.Equal(t, "fitColumns", cfg.LayoutOptions.Layout)
	assert.Equal(t, "New", cfg.Columns[0].Title)
}

func TestProject_UnknownColumnKeysPassThrough(t *testing.T) {
	cfg, err := ProjectScript(`tabulator {
    columns { column { field 'a'; tooltip true; cssClass 'highlight' } }
}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"tooltip": true, "cssClass": "highlight"}, cfg.Columns[0].Extra)
}

func TestProject_ParamsWithoutHandlerPassThrough(t *testing.T) {
	cfg, err := ProjectScript(`tabulator {
    column { field 'a'; editorParams([values: ['x', 'y']]) }
}`)
	require.NoError(t, err)
	assert.Nil(t, cfg.Columns[0].Editor)
	assert.Equal(t, map[string]any{"editorParams": map[string]any{"values": []any{"x", "y"}}}, cfg.Columns[0].Extra)
}

func TestProject_SemanticErrors(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		wantMsg string
	}{
		{"bad layout", `tabulator { layout 'stretchy' }`, "invalid layout 'stretchy'"},
		{"bad alignment", `tabulator { column { field 'a'; hozAlign 'middle' } }`, "invalid hozAlign 'middle'"},
		{"bad sorter", `tabulator { column(field: 'a', sorter: 'fuzzy') }`, "invalid sorter 'fuzzy'"},
		{"callback without handler", `tabulator { callbacks { rowClick } }`, `callback "rowClick" has no handler`},
		{"wrong dialect", `chart { type 'bar' }`, "missing top-level 'tabulator { ... }' block"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ProjectScript(tt.script)
			var semErr *dsl.SemanticError
			require.ErrorAs(t, err, &semErr)
			assert.Equal(t, dsl.DialectTabulator, semErr.Dialect)
			assert.Contains(t, semErr.Message, tt.wantMsg)
		})
	}
}

func TestProject_UnterminatedBlock(t *testing.T) {
	_, err := ProjectScript("tabulator {\n  columns {\n")
	var synErr *dsl.SyntaxError
	require.ErrorAs(t, err, &synErr)
}

func TestProject_DataExpressions(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"quoted", `data 'reportData'`, "reportData"},
		{"symbol", `data reportData`, "reportData"},
		{"assignment", `data = reportData.take(10)`, "reportData.take(10)"},
		{"closure with parameter", `data reportData.findAll { r -> r.amount > 0 }`, "reportData.findAll { r -> r.amount > 0 }"},
		{"implicit it", `data reportData.collect { it }`, "reportData.collect { it }"},
		{"comparison body", `data reportData.findAll { it.amount > 0 }`, "reportData.findAll { it.amount > 0 }"},
		{"chained", `data reportData.findAll { it.ok }.sort { it.region }`, "reportData.findAll { it.ok }.sort { it.region }"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ProjectScript("tabulator {\n    " + tt.line + "\n    layout 'fitData'\n}")
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Data)
			assert.Equal(t, "fitData", cfg.LayoutOptions.Layout)
		})
	}
}

func TestProject_ClosureHandlers(t *testing.T) {
	cfg, err := ProjectScript(`tabulator {
    column {
        field 'name'
        formatter { cell.getValue() }
        formatterParams(precision: 2)
        editor { "<b>" + it }
        headerFilter { value, row -> row.name == value }
        sorter { a, b -> a.length() - b.length() }
    }
}`)
	require.NoError(t, err)
	require.Len(t, cfg.Columns, 1)

	col := cfg.Columns[0]
	assert.Equal(t, &Handler{Kind: "{ cell.getValue() }", Params: map[string]any{"precision": int64(2)}}, col.Formatter)
	assert.Equal(t, &Handler{Kind: `{ "<b>" + it }`}, col.Editor)
	assert.Equal(t, &Handler{Kind: "{ value, row -> row.name == value }"}, col.HeaderFilter)
	assert.Equal(t, "{ a, b -> a.length() - b.length() }", col.Sorter)
	assert.Empty(t, col.Extra)
}

func TestProject_Deterministic(t *testing.T) {
	a, err := ProjectScript(ordersTable)
	require.NoError(t, err)
	b, err := ProjectScript(ordersTable)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
