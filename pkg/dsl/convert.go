package dsl

import "strings"

// Interface converts a value into plain Go data for passthrough fields:
// string, int64, float64, bool, nil, []any and map[string]any.
// Symbols yield their name; expressions and closures yield their source text.
func Interface(v Value) any {
	switch v := v.(type) {
	case nil:
		return nil
	case *String:
		return v.Value
	case *Number:
		if v.IsInt {
			return v.Int
		}
		return v.Float
	case *Bool:
		return v.Value
	case *Null:
		return nil
	case *Symbol:
		return v.Name
	case *List:
		out := make([]any, len(v.Items))
		for i, item := range v.Items {
			out[i] = Interface(item)
		}
		return out
	case *Map:
		out := make(map[string]any, len(v.Entries))
		for _, e := range v.Entries {
			out[e.Name] = Interface(e.Value)
		}
		return out
	default:
		return v.Source()
	}
}

// StatementInterface converts a statement into plain Go data. A statement with
// a body becomes a map built from its keyword arguments and body statements;
// otherwise the collapsed argument value is converted. A bare flag statement
// such as 'responsive' yields true.
func StatementInterface(st *Statement) any {
	if st.Body == nil {
		if v := st.Value(); v != nil {
			return Interface(v)
		}
		return true
	}
	out := make(map[string]any, len(st.Kwargs)+len(st.Body.Statements))
	for _, kw := range st.Kwargs {
		out[kw.Name] = Interface(kw.Value)
	}
	for _, child := range st.Body.Statements {
		setPath(out, child.Name, StatementInterface(child))
	}
	return out
}

// BlockInterface converts every statement of a block into one map.
// Dotted names create nested maps; repeated names keep the last value.
func BlockInterface(b *Block) map[string]any {
	out := make(map[string]any)
	if b == nil {
		return out
	}
	for _, st := range b.Statements {
		setPath(out, st.Name, StatementInterface(st))
	}
	return out
}

func setPath(m map[string]any, path string, v any) {
	for {
		key, rest, nested := strings.Cut(path, ".")
		if !nested {
			m[key] = v
			return
		}
		next, ok := m[key].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[key] = next
		}
		m, path = next, rest
	}
}

// AsString returns the text of a string literal or symbol.
func AsString(v Value) (string, bool) {
	switch v := v.(type) {
	case *String:
		return v.Value, true
	case *Symbol:
		return v.Name, true
	default:
		return "", false
	}
}

// AsStrings flattens a string, symbol or list of them into a slice.
func AsStrings(v Value) ([]string, bool) {
	if s, ok := AsString(v); ok {
		return []string{s}, true
	}
	list, ok := v.(*List)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(list.Items))
	for _, item := range list.Items {
		s, ok := AsString(item)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// AsBool returns the value of a boolean literal.
func AsBool(v Value) (bool, bool) {
	b, ok := v.(*Bool)
	if !ok {
		return false, false
	}
	return b.Value, true
}

// AsInt returns the value of an integral number literal.
func AsInt(v Value) (int, bool) {
	n, ok := v.(*Number)
	if !ok || !n.IsInt {
		return 0, false
	}
	return int(n.Int), true
}

// Expression returns a setting that holds an expression for the renderer,
// such as a data source. A lone string literal yields its text; anything else
// yields the arguments exactly as written, trailing closures included.
func Expression(f Field) string {
	if s, ok := f.Value.(*String); ok {
		return s.Value
	}
	if f.Stmt != nil && f.Stmt.ArgSource() != "" {
		return f.Stmt.ArgSource()
	}
	if f.Value == nil {
		return ""
	}
	return f.Value.Source()
}
