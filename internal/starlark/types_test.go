package starlark

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestGoToStarlark(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    string
		wantErr string
	}{
		{name: "nil", input: nil, want: "None"},
		{name: "string", input: "EU", want: `"EU"`},
		{name: "int", input: 42, want: "42"},
		{name: "int32", input: int32(-7), want: "-7"},
		{name: "int64", input: int64(123456789), want: "123456789"},
		{name: "float64", input: 2.5, want: "2.5"},
		{name: "bool", input: true, want: "True"},
		{name: "time", input: time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC), want: `"2024-03-15T09:00:00Z"`},
		{name: "strings", input: []string{"EU", "US"}, want: `["EU", "US"]`},
		{name: "empty strings", input: []string{}, want: "[]"},
		{name: "mixed list", input: []any{"x", 1, nil}, want: `["x", 1, None]`},
		{name: "params sorted", input: map[string]any{"to": "2024-03-31", "from": "2024-03-01"}, want: `{"from": "2024-03-01", "to": "2024-03-31"}`},
		{name: "rows", input: []map[string]any{{"n": 1}, {"n": 2}}, want: `[{"n": 1}, {"n": 2}]`},
		{name: "unsupported", input: struct{}{}, wantErr: "unsupported type: struct {}"},
		{name: "unsupported nested", input: map[string]any{"bad": []int{1}}, wantErr: `dict key "bad": unsupported type: []int`},
		{name: "unsupported in list", input: []any{"ok", uint8(1)}, wantErr: "list index 1: unsupported type: uint8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GoToStarlark(tt.input)
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestToGo(t *testing.T) {
	huge := starlark.MakeBigInt(new(big.Int).Lsh(big.NewInt(1), 70))

	tests := []struct {
		name    string
		input   starlark.Value
		want    any
		wantErr string
	}{
		{name: "none", input: starlark.None, want: nil},
		{name: "string", input: starlark.String("EU"), want: "EU"},
		{name: "bytes", input: starlark.Bytes("raw"), want: "raw"},
		{name: "int", input: starlark.MakeInt(42), want: int64(42)},
		{name: "huge int", input: huge, want: "1180591620717411303424"},
		{name: "float", input: starlark.Float(0.5), want: 0.5},
		{name: "bool", input: starlark.False, want: false},
		{name: "list", input: starlark.NewList([]starlark.Value{starlark.String("a"), starlark.None}), want: []any{"a", nil}},
		{name: "tuple", input: starlark.Tuple{starlark.String("a"), starlark.MakeInt(1)}, want: []any{"a", int64(1)}},
		{
			name:  "row",
			input: dictOf(t, "region", starlark.String("North"), "total", starlark.Float(2.5)),
			want:  map[string]any{"region": "North", "total": 2.5},
		},
		{name: "set falls back to its string form", input: starlark.NewSet(0), want: "set([])"},
		{name: "non-string key", input: dictOf(t, "", starlark.None), wantErr: "dict key must be string, got int"},
		{
			name:    "error inside list",
			input:   starlark.NewList([]starlark.Value{dictOf(t, "", starlark.None)}),
			wantErr: "list index 0: dict key must be string, got int",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToGo(tt.input)
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	in := map[string]any{"region": "EU", "topN": int64(5), "ratio": 0.25, "tags": []any{"a", "b"}, "none": nil}

	sv, err := GoToStarlark(in)
	require.NoError(t, err)
	out, err := ToGo(sv)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestTargetInfo_ToStarlark(t *testing.T) {
	target := &TargetInfo{Type: "postgres", Schema: "public", Database: "reports"}

	val, ok := target.ToStarlark().(starlark.HasAttrs)
	require.True(t, ok, "target should expose attributes")

	for attr, want := range map[string]string{"type": "postgres", "schema": "public", "database": "reports"} {
		got, err := val.Attr(attr)
		require.NoError(t, err)
		assert.Equal(t, starlark.String(want), got, attr)
	}
	assert.ElementsMatch(t, []string{"type", "schema", "database"}, val.AttrNames())
}

// dictOf builds a dict from alternating keys and values. An empty key is
// stored as an int to exercise key validation.
func dictOf(t *testing.T, kv ...any) *starlark.Dict {
	t.Helper()
	d := starlark.NewDict(len(kv) / 2)
	for i := 0; i+1 < len(kv); i += 2 {
		var key starlark.Value = starlark.String(kv[i].(string))
		if kv[i] == "" {
			key = starlark.MakeInt(1)
		}
		require.NoError(t, d.SetKey(key, kv[i+1].(starlark.Value)))
	}
	return d
}
