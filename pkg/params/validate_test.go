package params

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)

func fixedValidator() Validator {
	return Validator{Now: func() time.Time { return fixedNow }}
}

func mustProject(t *testing.T, script string) []ParameterSpec {
	t.Helper()
	specs, err := ProjectScript(script)
	require.NoError(t, err)
	return specs
}

func TestValidate_CrossFieldBound(t *testing.T) {
	specs := mustProject(t, `reportParameters {
    parameter(id: 'startDate', type: LocalDate)
    parameter(id: 'endDate', type: LocalDate, constraints(min: startDate))
}`)
	siblings := map[string]any{"startDate": "2024-01-10"}

	verr := Validate(&specs[1], "2024-01-01", siblings)
	require.NotNil(t, verr)
	assert.Equal(t, "endDate", verr.ParameterID)
	assert.Equal(t, RuleMin, verr.Rule)
	assert.Equal(t, "endDate must be on or after 2024-01-10", verr.Message)

	assert.Nil(t, Validate(&specs[1], "2024-01-10", siblings))
	assert.Nil(t, Validate(&specs[1], "2024-02-01", siblings))

	// Without a sibling value the bound cannot be resolved and is skipped.
	assert.Nil(t, Validate(&specs[1], "2024-01-01", map[string]any{}))
}

func TestValidate_RuleOrder(t *testing.T) {
	specs := mustProject(t, `reportParameters {
    parameter(id: 'code', type: String, label: 'Code',
              constraints: [required: true, pattern: '[A-Z]{3}', maxLength: 2])
}`)
	spec := &specs[0]

	tests := []struct {
		name     string
		value    any
		wantRule string
	}{
		{"empty reports only required", "", RuleRequired},
		{"whitespace is empty", "   ", RuleRequired},
		{"nil is empty", nil, RuleRequired},
		{"pattern before maxLength", "abcd", RulePattern},
		{"pattern must match fully", "ABCD", RulePattern},
		{"maxLength after pattern passes", "ABC", RuleMaxLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := fixedValidator().Validate(spec, tt.value, nil)
			require.NotNil(t, verr)
			assert.Equal(t, tt.wantRule, verr.Rule)
		})
	}
}

func TestValidate_OptionalEmptySkipsRules(t *testing.T) {
	specs := mustProject(t, `reportParameters {
    parameter(id: 'code', type: String, constraints: [pattern: '[A-Z]+'])
}`)
	assert.Nil(t, Validate(&specs[0], "", nil))
}

func TestValidate_MaxLengthCountsRunes(t *testing.T) {
	specs := mustProject(t, `reportParameters {
    parameter(id: 'city', type: String, constraints: [maxLength: 6])
}`)
	assert.Nil(t, Validate(&specs[0], "Zürich", nil))
	assert.NotNil(t, Validate(&specs[0], "Zürich!", nil))
}

func TestValidate_IntegerBounds(t *testing.T) {
	specs := mustProject(t, `reportParameters {
    parameter(id: 'topN', type: Integer, label: 'Top N', constraints: [min: 1, max: 100])
}`)
	spec := &specs[0]

	verr := Validate(spec, int64(0), nil)
	require.NotNil(t, verr)
	assert.Equal(t, RuleMin, verr.Rule)
	assert.Equal(t, "Top N must be at least 1", verr.Message)

	verr = Validate(spec, int64(101), nil)
	require.NotNil(t, verr)
	assert.Equal(t, RuleMax, verr.Rule)
	assert.Equal(t, "Top N must be at most 100", verr.Message)

	assert.Nil(t, Validate(spec, int64(100), nil))
}

func TestValidate_DateExpressionBounds(t *testing.T) {
	specs := mustProject(t, `reportParameters {
    parameter(id: 'asOf', type: LocalDate,
              constraints: [min: LocalDate.now().minusYears(1), max: LocalDate.now()])
}`)
	v := fixedValidator()

	assert.Nil(t, v.Validate(&specs[0], "2024-03-15", nil))
	assert.Nil(t, v.Validate(&specs[0], "2023-03-15", nil))

	verr := v.Validate(&specs[0], "2024-03-16", nil)
	require.NotNil(t, verr)
	assert.Equal(t, RuleMax, verr.Rule)

	verr = v.Validate(&specs[0], "2023-03-14", nil)
	require.NotNil(t, verr)
	assert.Equal(t, RuleMin, verr.Rule)
}

func TestValidate_OpaqueBoundIsSkipped(t *testing.T) {
	specs := mustProject(t, `reportParameters {
    parameter(id: 'asOf', type: LocalDate, constraints: [min: Calendar.getInstance().getTime()])
}`)
	require.Equal(t, ExprOpaque, specs[0].Constraints.Min.Expr.Kind)
	assert.Nil(t, Validate(&specs[0], "1900-01-01", nil))
}

func TestValidateAll(t *testing.T) {
	specs := mustProject(t, `reportParameters {
    parameter(id: 'startDate', type: LocalDate, constraints: [required: true])
    parameter(id: 'endDate', type: LocalDate, constraints: [required: true, min: startDate])
    parameter(id: 'topN', type: Integer)
    parameter(id: 'customer', type: String, constraints: [required: true])
    parameter(id: 'flag', type: Boolean)
}`)

	res := fixedValidator().ValidateAll(specs, map[string]any{
		"startDate": "2024-01-10",
		"endDate":   "2024-01-01",
		"topN":      "abc",
		"flag":      "yes",
	})

	assert.False(t, res.OK())
	require.Len(t, res.Errors, 3)
	assert.Equal(t, ValidationError{ParameterID: "endDate", Rule: RuleMin, Message: "endDate must be on or after 2024-01-10"}, res.Errors[0])
	assert.Equal(t, "topN", res.Errors[1].ParameterID)
	assert.Equal(t, RuleType, res.Errors[1].Rule)
	assert.Equal(t, "customer", res.Errors[2].ParameterID)
	assert.Equal(t, RuleRequired, res.Errors[2].Rule)

	assert.Equal(t, "2024-01-10", res.Values["startDate"])
	assert.Equal(t, true, res.Values["flag"])
	assert.NotContains(t, res.Values, "topN")

	err := res.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "customer: customer is required")
}

func TestValidateAll_Success(t *testing.T) {
	specs := mustProject(t, `reportParameters {
    parameter(id: 'topN', type: Integer, constraints: [required: true, min: 1])
}`)
	res := ValidateAll(specs, map[string]any{"topN": "5"})
	assert.True(t, res.OK())
	assert.NoError(t, res.Err())
	assert.Equal(t, map[string]any{"topN": int64(5)}, res.Values)
}
