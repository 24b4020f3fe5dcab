// Package datasource executes report data sources for previews: SQL against
// a configured adapter, Starlark scripts, or a remote backend.
package datasource

import (
	"fmt"
	"sort"
	"strings"
)

// UnboundParameterError is returned when a query names a parameter that has
// no submitted value.
type UnboundParameterError struct {
	Name      string
	Available []string
}

func (e *UnboundParameterError) Error() string {
	return fmt.Sprintf("query references unknown parameter %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// BindNamed rewrites :name and ${name} references in query into driver
// placeholders and returns the matching arguments in order. Slice values
// expand to a comma-separated placeholder list for IN clauses; an empty
// slice binds a single NULL.
//
// Quoted strings, quoted identifiers, comments and :: casts are copied
// unchanged. Values are never interpolated into the SQL text.
func BindNamed(query string, values map[string]any, placeholder func(n int) string) (string, []any, error) {
	var (
		out  strings.Builder
		args []any
	)
	out.Grow(len(query))

	bind := func(name string) error {
		v, ok := values[name]
		if !ok {
			return &UnboundParameterError{Name: name, Available: names(values)}
		}
		items, isList := expand(v)
		if !isList {
			args = append(args, v)
			out.WriteString(placeholder(len(args)))
			return nil
		}
		if len(items) == 0 {
			items = []any{nil}
		}
		for i, item := range items {
			if i > 0 {
				out.WriteString(", ")
			}
			args = append(args, item)
			out.WriteString(placeholder(len(args)))
		}
		return nil
	}

	for i := 0; i < len(query); {
		c := query[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end := skipQuoted(query, i, c)
			out.WriteString(query[i:end])
			i = end

		case c == '-' && strings.HasPrefix(query[i:], "--"):
			end := strings.IndexByte(query[i:], '\n')
			if end < 0 {
				end = len(query) - i
			}
			out.WriteString(query[i : i+end])
			i += end

		case c == '/' && strings.HasPrefix(query[i:], "/*"):
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				end = len(query) - i
			} else {
				end += 4
			}
			out.WriteString(query[i : i+end])
			i += end

		case c == ':' && strings.HasPrefix(query[i:], "::"):
			out.WriteString("::")
			i += 2

		case c == ':' && i+1 < len(query) && isIdentStart(query[i+1]):
			// A colon after an identifier character is part of a token like
			// a time literal or array slice, not a parameter.
			if i > 0 && isIdentPart(query[i-1]) {
				out.WriteByte(c)
				i++
				continue
			}
			j := i + 1
			for j < len(query) && isIdentPart(query[j]) {
				j++
			}
			if err := bind(query[i+1 : j]); err != nil {
				return "", nil, err
			}
			i = j

		case c == '$' && strings.HasPrefix(query[i:], "${"):
			end := strings.IndexByte(query[i:], '}')
			if end < 0 {
				return "", nil, fmt.Errorf("unterminated parameter reference at offset %d", i)
			}
			name := strings.TrimSpace(query[i+2 : i+end])
			if name == "" {
				return "", nil, fmt.Errorf("empty parameter reference at offset %d", i)
			}
			if err := bind(name); err != nil {
				return "", nil, err
			}
			i += end + 1

		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String(), args, nil
}

// skipQuoted returns the index just past the quoted run starting at i.
// A doubled quote character is an escaped quote.
func skipQuoted(s string, i int, q byte) int {
	for j := i + 1; j < len(s); j++ {
		if s[j] != q {
			continue
		}
		if j+1 < len(s) && s[j+1] == q {
			j++
			continue
		}
		return j + 1
	}
	return len(s)
}

func expand(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out, true
	case []int64:
		out := make([]any, len(x))
		for i, n := range x {
			out[i] = n
		}
		return out, true
	default:
		return nil, false
	}
}

func names(values map[string]any) []string {
	out := make([]string, 0, len(values))
	for k := range values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
