// Package starlark runs Starlark data-source scripts for report previews.
//
// A script sees the submitted parameter values as the "params" dict and the
// configured database as "target". It must assign "rows", a list of dicts,
// and may assign "columns", a list of strings:
//
//	rows = query("SELECT region, SUM(amount) AS total FROM sales WHERE day >= ? GROUP BY 1", params["from"])
//	columns = ["region", "total"]
package starlark

import (
	"fmt"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// TargetInfo describes the database a script's query() calls run against.
// Exposed as the "target" global. Credentials are never exposed.
type TargetInfo struct {
	Type     string // "duckdb", "postgres", "sqlite"
	Schema   string
	Database string
}

// ToStarlark converts TargetInfo to a Starlark struct value.
func (t *TargetInfo) ToStarlark() starlark.Value {
	return starlarkstruct.FromStringDict(starlark.String("target"), starlark.StringDict{
		"type":     starlark.String(t.Type),
		"schema":   starlark.String(t.Schema),
		"database": starlark.String(t.Database),
	})
}

// GoToStarlark converts a parameter or row value to a Starlark value. Maps
// become dicts with sorted keys; time.Time becomes an RFC 3339 string.
func GoToStarlark(v any) (starlark.Value, error) {
	switch val := v.(type) {
	case nil:
		return starlark.None, nil
	case string:
		return starlark.String(val), nil
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int32:
		return starlark.MakeInt64(int64(val)), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float32:
		return starlark.Float(val), nil
	case float64:
		return starlark.Float(val), nil
	case time.Time:
		return starlark.String(val.Format(time.RFC3339)), nil
	case []string:
		return listOf(val)
	case []any:
		return listOf(val)
	case []map[string]any:
		return listOf(val)
	case map[string]any:
		return newDict(val)
	}
	return nil, fmt.Errorf("unsupported type: %T", v)
}

func listOf[T any](items []T) (*starlark.List, error) {
	elems := make([]starlark.Value, len(items))
	for i, item := range items {
		sv, err := GoToStarlark(item)
		if err != nil {
			return nil, fmt.Errorf("list index %d: %w", i, err)
		}
		elems[i] = sv
	}
	return starlark.NewList(elems), nil
}

func newDict(m map[string]any) (*starlark.Dict, error) {
	dict := starlark.NewDict(len(m))
	for _, k := range sortedKeys(m) {
		sv, err := GoToStarlark(m[k])
		if err != nil {
			return nil, fmt.Errorf("dict key %q: %w", k, err)
		}
		if err := dict.SetKey(starlark.String(k), sv); err != nil {
			return nil, err
		}
	}
	return dict, nil
}

// ToGo converts a script result back to Go: string, int64, float64, bool,
// []any, map[string]any or nil. Integers too large for int64 and values of
// any other type come back as their Starlark string form.
func ToGo(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.String:
		return string(val), nil
	case starlark.Bytes:
		return string(val), nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Float:
		return float64(val), nil
	case starlark.Int:
		if i64, ok := val.Int64(); ok {
			return i64, nil
		}
		return val.String(), nil
	case *starlark.Dict:
		out := make(map[string]any, val.Len())
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string, got %s", item[0].Type())
			}
			gv, err := ToGo(item[1])
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", string(key), err)
			}
			out[string(key)] = gv
		}
		return out, nil
	case starlark.Indexable:
		// lists, tuples and ranges
		out := make([]any, val.Len())
		for i := range out {
			gv, err := ToGo(val.Index(i))
			if err != nil {
				return nil, fmt.Errorf("%s index %d: %w", val.Type(), i, err)
			}
			out[i] = gv
		}
		return out, nil
	}
	return v.String(), nil
}

// dictKeys returns the keys of a dict in insertion order.
func dictKeys(d *starlark.Dict) []string {
	keys := make([]string, 0, d.Len())
	for _, k := range d.Keys() {
		if s, ok := k.(starlark.String); ok {
			keys = append(keys, string(s))
		}
	}
	return keys
}
