package params

import (
	"encoding/json"
	"testing"

	"github.com/leapstack-labs/reportdsl/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const salesParameters = `
reportParameters {
    parameter(
        id: 'startDate',
        type: LocalDate,
        label: 'Start Date',
        description: 'First day of the period',
        defaultValue: LocalDate.now().minusDays(30),
        constraints: [required: true, max: endDate],
        ui: [control: 'date', format: 'yyyy-MM-dd']
    )
    parameter(id: 'endDate', type: LocalDate, label: 'End Date',
              defaultValue: LocalDate.now(),
              constraints: [required: true, min: startDate])
    parameter(id: 'customer', type: String, constraints(maxLength: 20, pattern: '[A-Z]+'))
    parameter(id: 'region', type: String) {
        ui {
            control 'select'
            options "SELECT code, name FROM regions ORDER BY name"
        }
    }
    parameter(id: 'topN', type: Integer, defaultValue: 10) {
        constraints(min: 1, max: 100)
    }
    parameter(id: 'includeReturns', type: Boolean, defaultValue: false, group: 'advanced')
}
`

func TestProject_SalesParameters(t *testing.T) {
	specs, err := ProjectScript(salesParameters)
	require.NoError(t, err)
	require.Len(t, specs, 6)

	var ids []string
	for _, s := range specs {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"startDate", "endDate", "customer", "region", "topN", "includeReturns"}, ids)

	start := specs[0]
	assert.Equal(t, TypeDate, start.Type)
	assert.Equal(t, "Start Date", start.Label)
	assert.Equal(t, "First day of the period", start.Description)
	require.NotNil(t, start.Default)
	require.NotNil(t, start.Default.Expr)
	assert.Equal(t, ExprToday, start.Default.Expr.Kind)
	assert.Equal(t, []DateStep{{Unit: "days", N: -30}}, start.Default.Expr.Steps)
	assert.True(t, start.Constraints.Required)
	require.NotNil(t, start.Constraints.Max)
	assert.Equal(t, ExprRef, start.Constraints.Max.Expr.Kind, "forward reference")
	assert.Equal(t, "endDate", start.Constraints.Max.Expr.Ref)
	assert.Equal(t, ControlDate, start.UI.Control)
	assert.Equal(t, "yyyy-MM-dd", start.UI.Format)

	end := specs[1]
	require.NotNil(t, end.Constraints.Min)
	assert.Equal(t, "startDate", end.Constraints.Min.Expr.Ref)

	customer := specs[2]
	assert.Equal(t, 20, customer.Constraints.MaxLength)
	assert.Equal(t, "[A-Z]+", customer.Constraints.Pattern)
	assert.Equal(t, ControlInput, customer.UI.Control)

	region := specs[3]
	assert.Equal(t, ControlSelect, region.UI.Control)
	require.NotNil(t, region.UI.Options)
	assert.True(t, region.UI.Options.IsQuery())
	assert.Equal(t, "SELECT code, name FROM regions ORDER BY name", region.UI.Options.Query)

	topN := specs[4]
	assert.Equal(t, TypeInteger, topN.Type)
	assert.Equal(t, int64(10), topN.Default.Literal)
	assert.Equal(t, int64(1), topN.Constraints.Min.Literal)
	assert.Equal(t, int64(100), topN.Constraints.Max.Literal)

	flag := specs[5]
	assert.Equal(t, ControlCheckbox, flag.UI.Control)
	assert.Equal(t, map[string]any{"group": "advanced"}, flag.Extra)
}

func TestProject_EmptyScript(t *testing.T) {
	specs, err := ProjectScript("  // no parameters yet\n")
	require.NoError(t, err)
	assert.Empty(t, specs)

	specs, err = ProjectScript("reportParameters { }")
	require.NoError(t, err)
	assert.Empty(t, specs)
}

func TestProject_StaticOptions(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []Option
	}{
		{
			name:   "plain values",
			script: `reportParameters { parameter(id: 'c', type: String, ui: [options: ['EUR', 'USD']]) }`,
			want:   []Option{{Value: "EUR", Label: "EUR"}, {Value: "USD", Label: "USD"}},
		},
		{
			name:   "value label maps",
			script: `reportParameters { parameter(id: 'c', type: Integer, ui: [options: [[value: 1, label: 'One'], [value: 2]]]) }`,
			want:   []Option{{Value: int64(1), Label: "One"}, {Value: int64(2), Label: "2"}},
		},
		{
			name:   "value to label map",
			script: `reportParameters { parameter(id: 'c', type: String, ui: [options: [EU: 'Europe', US: 'United States']]) }`,
			want:   []Option{{Value: "EU", Label: "Europe"}, {Value: "US", Label: "United States"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			specs, err := ProjectScript(tt.script)
			require.NoError(t, err)
			require.Len(t, specs, 1)
			require.NotNil(t, specs[0].UI.Options)
			assert.False(t, specs[0].UI.Options.IsQuery())
			assert.Equal(t, tt.want, specs[0].UI.Options.Items)
			assert.Equal(t, ControlSelect, specs[0].UI.Control)
		})
	}
}

func TestProject_TypeAliases(t *testing.T) {
	tests := map[string]Type{
		"LocalDate":               TypeDate,
		"'Date'":                  TypeDate,
		"java.time.LocalDateTime": TypeDateTime,
		"String":                  TypeString,
		"Long":                    TypeInteger,
		"'Integer'":               TypeInteger,
		"Boolean":                 TypeBoolean,
	}
	for token, want := range tests {
		specs, err := ProjectScript("reportParameters { parameter(id: 'p', type: " + token + ") }")
		require.NoError(t, err, token)
		assert.Equal(t, want, specs[0].Type, token)
	}
}

func TestProject_StringReference(t *testing.T) {
	specs, err := ProjectScript(`reportParameters {
    parameter(id: 'from', type: LocalDate)
    parameter(id: 'to', type: LocalDate, constraints: [min: 'from', max: '2030-12-31'])
}`)
	require.NoError(t, err)

	c := specs[1].Constraints
	require.NotNil(t, c.Min.Expr)
	assert.Equal(t, ExprRef, c.Min.Expr.Kind)
	assert.Equal(t, "from", c.Min.Expr.Ref)
	assert.Equal(t, "2030-12-31", c.Max.Literal)
}

func TestProject_SemanticErrors(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		wantMsg string
	}{
		{"missing id", `reportParameters { parameter(type: String) }`, "parameter is missing 'id'"},
		{"missing type", `reportParameters { parameter(id: 'a') }`, `parameter "a" is missing 'type'`},
		{"unknown type", `reportParameters { parameter(id: 'a', type: Currency) }`, `parameter "a" has unknown type "Currency"`},
		{"duplicate id", `reportParameters {
    parameter(id: 'a', type: String)
    parameter(id: 'a', type: Integer)
}`, `duplicate parameter id "a"`},
		{"bad pattern", `reportParameters { parameter(id: 'a', type: String, constraints: [pattern: '([a-z']) }`, `invalid pattern`},
		{"bad maxLength", `reportParameters { parameter(id: 'a', type: String, constraints: [maxLength: 'ten']) }`, "maxLength must be a non-negative integer"},
		{"wrong dialect", `chart { type 'bar' }`, "missing top-level 'reportParameters { ... }' block"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ProjectScript(tt.script)
			require.Error(t, err)

			var semErr *dsl.SemanticError
			require.ErrorAs(t, err, &semErr)
			assert.Equal(t, dsl.DialectParameters, semErr.Dialect)
			assert.Contains(t, semErr.Message, tt.wantMsg)
		})
	}
}

func TestProject_SyntaxErrorPassesThrough(t *testing.T) {
	_, err := ProjectScript("reportParameters {\n  parameter(id: 'a', type: String)\n")
	var synErr *dsl.SyntaxError
	require.ErrorAs(t, err, &synErr)
	assert.Equal(t, 1, synErr.Line())
}

func TestProject_Deterministic(t *testing.T) {
	a, err := ProjectScript(salesParameters)
	require.NoError(t, err)
	b, err := ProjectScript(salesParameters)
	require.NoError(t, err)

	aJSON, err := json.Marshal(a)
	require.NoError(t, err)
	bJSON, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, string(aJSON), string(bJSON))
}
