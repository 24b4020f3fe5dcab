package params

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		name  string
		typ   string
		raw   any
		want  any
		isErr bool
	}{
		{"integer", "Integer", "42", int64(42), false},
		{"integer with spaces", "Integer", " 7 ", int64(7), false},
		{"negative integer", "Long", "-3", int64(-3), false},
		{"integer from float", "Integer", float64(5), int64(5), false},
		{"integer not numeric", "Integer", "abc", nil, true},
		{"integer with fraction", "Integer", "1.5", nil, true},
		{"integer empty", "Integer", "", nil, false},
		{"boolean true", "Boolean", "true", true, false},
		{"boolean yes", "Boolean", "Yes", true, false},
		{"boolean on", "Boolean", "on", true, false},
		{"boolean false", "Boolean", "false", false, false},
		{"boolean zero", "Boolean", "0", false, false},
		{"boolean empty", "Boolean", "", false, false},
		{"boolean native", "Boolean", true, true, false},
		{"date passthrough", "LocalDate", "2024-05-01", "2024-05-01", false},
		{"datetime passthrough", "LocalDateTime", "2024-05-01T10:30:00", "2024-05-01T10:30:00", false},
		{"date from time", "Date", time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), "2024-05-01", false},
		{"date garbage", "LocalDate", "next tuesday", nil, true},
		{"date empty", "LocalDate", "", nil, false},
		{"string passthrough", "String", " keep  spacing ", " keep  spacing ", false},
		{"unknown type passthrough", "Currency", "12.50 EUR", "12.50 EUR", false},
		{"nil", "Integer", nil, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.typ, tt.raw)
			if tt.isErr {
				require.Error(t, err)
				var coerceErr *CoercionError
				require.ErrorAs(t, err, &coerceErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoercionError_Message(t *testing.T) {
	_, err := Coerce("Integer", "abc")
	require.Error(t, err)
	assert.Equal(t, `cannot convert "abc" to Integer: invalid syntax`, err.Error())
}
