package starlark

import (
	"context"
	"fmt"
	"sort"

	"go.starlark.net/starlark"
)

// QueryFunc runs SQL with positional args and returns the rows as maps plus
// the column order.
type QueryFunc func(ctx context.Context, sql string, args ...any) (columns []string, rows []map[string]any, err error)

// ParamsToStarlark converts submitted parameter values to the "params" dict.
func ParamsToStarlark(values map[string]any) (starlark.Value, error) {
	if values == nil {
		return starlark.NewDict(0), nil
	}
	return GoToStarlark(values)
}

// queryBuiltin exposes fn as query(sql, *args). Each result row is a dict
// whose keys follow the column order.
func queryBuiltin(ctx context.Context, fn QueryFunc) *starlark.Builtin {
	return starlark.NewBuiltin("query", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(kwargs) > 0 {
			return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
		}
		if len(args) == 0 {
			return nil, fmt.Errorf("%s: missing sql argument", b.Name())
		}
		sqlText, ok := starlark.AsString(args[0])
		if !ok {
			return nil, fmt.Errorf("%s: sql must be a string, got %s", b.Name(), args[0].Type())
		}
		bound := make([]any, 0, len(args)-1)
		for i, a := range args[1:] {
			v, err := ToGo(a)
			if err != nil {
				return nil, fmt.Errorf("%s: argument %d: %w", b.Name(), i+1, err)
			}
			bound = append(bound, v)
		}

		columns, rows, err := fn(ctx, sqlText, bound...)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}

		out := make([]starlark.Value, 0, len(rows))
		for _, row := range rows {
			dict := starlark.NewDict(len(columns))
			for _, col := range columns {
				v, err := GoToStarlark(row[col])
				if err != nil {
					v = starlark.String(fmt.Sprint(row[col]))
				}
				if err := dict.SetKey(starlark.String(col), v); err != nil {
					return nil, err
				}
			}
			out = append(out, dict)
		}
		return starlark.NewList(out), nil
	})
}

// Predeclared returns the globals visible to a data-source script:
// params, target and, when a query function is available, query.
func Predeclared(ctx context.Context, params starlark.Value, target *TargetInfo, query QueryFunc) starlark.StringDict {
	globals := starlark.StringDict{
		"params": params,
	}
	if target != nil {
		globals["target"] = target.ToStarlark()
	}
	if query != nil {
		globals["query"] = queryBuiltin(ctx, query)
	}
	return globals
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
