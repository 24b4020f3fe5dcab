// Package dsl parses the declarative report-configuration scripts shared by the
// parameters, tabulator, chart and pivot-table dialects.
//
// # Grammar
//
//	script     → statement*
//	statement  → name ( '=' value
//	                  | '(' args? ')' block?
//	                  | args block?          // arguments start on the name's line
//	                  | block
//	                  | ε ) ';'?
//	block      → '{' statement* '}'    // a closure after a ClosureKeys name
//	args       → arg (',' arg)*
//	arg        → key ':' value | value
//	value      → string | number | true | false | null
//	           | '[' ']' | '[' ':' ']' | '[' args ','? ']'
//	           | chain | closure
//	chain      → 'new'? ident call? ( '.' ident call? )*
//	call       → '(' args? ')' closure? | closure   // not after a lone identifier
//	closure    → '{' ... '}'                       // kept verbatim
//
// Parsing produces a Tree: an ordered, lossless record of every statement. The
// tree never evaluates anything. Date arithmetic, references to other parameters
// and data expressions are kept as Symbol or Expr values for the dialect
// projectors to interpret when the value is needed.
package dsl

import (
	"fmt"
	"strings"
)

// Position tracks source location for error reporting.
type Position struct {
	Line   int `json:"line"`   // 1-based line number
	Column int `json:"column"` // 1-based column number
	Offset int `json:"offset"` // 0-based byte offset
}

// IsValid returns true if the position is valid (line > 0).
func (p Position) IsValid() bool {
	return p.Line > 0
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Dialect names one of the script vocabularies sharing the grammar.
type Dialect string

// Dialect constants. The value is the name of the dialect's top-level block.
const (
	DialectParameters Dialect = "reportParameters"
	DialectTabulator  Dialect = "tabulator"
	DialectChart      Dialect = "chart"
	DialectPivot      Dialect = "pivotTable"
)

// Dialects lists every known dialect in detection order.
var Dialects = []Dialect{DialectParameters, DialectTabulator, DialectChart, DialectPivot}

// ParseDialect maps a user-facing dialect name to a Dialect.
// It accepts the block name as well as short aliases used on the command line.
func ParseDialect(name string) (Dialect, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "reportparameters", "parameters", "params":
		return DialectParameters, true
	case "tabulator", "table":
		return DialectTabulator, true
	case "chart":
		return DialectChart, true
	case "pivottable", "pivot", "pivot-table":
		return DialectPivot, true
	default:
		return "", false
	}
}

// Value is the interface for all argument values in a tree.
type Value interface {
	Pos() Position
	// Source returns the value's exact source text.
	Source() string
	value() // marker method to restrict implementation
}

// valueBase provides common position and source handling for all values.
type valueBase struct {
	pos Position
	raw string
}

func (v *valueBase) Pos() Position  { return v.pos }
func (v *valueBase) Source() string { return v.raw }
func (v *valueBase) value()         {}

// String is a quoted string literal (single, double or triple quoted).
type String struct {
	valueBase
	Value string
}

// Number is a numeric literal. IsInt reports whether it has no fraction or exponent.
type Number struct {
	valueBase
	Int   int64
	Float float64
	IsInt bool
}

// Bool is a true or false literal.
type Bool struct {
	valueBase
	Value bool
}

// Null is the null literal.
type Null struct {
	valueBase
}

// Symbol is a bare identifier such as a type name, an enum token or a
// reference to another declaration.
type Symbol struct {
	valueBase
	Name string
}

// List is a '[a, b, c]' literal.
type List struct {
	valueBase
	Items []Value
}

// Map is a '[key: value, ...]' literal. Entries keep source order.
type Map struct {
	valueBase
	Entries []KeywordArg
}

// Get returns the last entry with the given key.
func (m *Map) Get(key string) (Value, bool) {
	for i := len(m.Entries) - 1; i >= 0; i-- {
		if m.Entries[i].Name == key {
			return m.Entries[i].Value, true
		}
	}
	return nil, false
}

// Expr is a symbolic expression: a dotted chain of names with optional calls,
// e.g. LocalDate.now().minusDays(30) or constraints(min: startDate).
type Expr struct {
	valueBase
	New   bool   // prefixed with 'new'
	Chain []Call // at least one element
}

// Root returns the first name of the chain.
func (e *Expr) Root() string {
	return e.Chain[0].Name
}

// Closure is a '{ ... }' value kept verbatim, such as a formatter function.
type Closure struct {
	valueBase
	Body string
}

// Call is one segment of an Expr chain.
type Call struct {
	Name    string
	Invoked bool // followed by an argument list
	Args    []Value
	Kwargs  []KeywordArg
}

// KeywordArg is a 'name: value' pair.
type KeywordArg struct {
	Name  string
	Value Value
	Pos   Position
}

// Statement is a single entry of a block: a call, an assignment or a nested block.
type Statement struct {
	Name   string
	Args   []Value      // positional arguments in order
	Kwargs []KeywordArg // keyword arguments in order
	Body   *Block       // non-nil when the statement carries a { ... } block
	Pos    Position
	src    string
}

// ArgSource returns the statement's arguments as written, from the first
// argument to the end of the last one.
func (s *Statement) ArgSource() string {
	return s.src
}

// IsBlock reports whether the statement carries a nested block.
func (s *Statement) IsBlock() bool {
	return s.Body != nil
}

// Kwarg returns the last keyword argument with the given name.
func (s *Statement) Kwarg(name string) (Value, bool) {
	for i := len(s.Kwargs) - 1; i >= 0; i-- {
		if s.Kwargs[i].Name == name {
			return s.Kwargs[i].Value, true
		}
	}
	return nil, false
}

// Value collapses the statement's arguments into a single value:
// one positional argument is returned as is, several become a List,
// keyword-only arguments become a Map. A collapsed value's Source is the
// argument text as written. A statement without arguments yields nil.
func (s *Statement) Value() Value {
	base := valueBase{pos: s.Pos, raw: s.src}
	switch {
	case len(s.Args) == 1 && len(s.Kwargs) == 0:
		return s.Args[0]
	case len(s.Args) > 1 && len(s.Kwargs) == 0:
		return &List{valueBase: base, Items: s.Args}
	case len(s.Args) == 0 && len(s.Kwargs) > 0:
		return &Map{valueBase: base, Entries: s.Kwargs}
	case len(s.Args) > 0:
		items := make([]Value, 0, len(s.Args)+1)
		items = append(items, s.Args...)
		items = append(items, &Map{valueBase: valueBase{pos: s.Kwargs[0].Pos}, Entries: s.Kwargs})
		return &List{valueBase: base, Items: items}
	default:
		return nil
	}
}

// Field is one named setting of a statement, from either a keyword argument
// or a statement of its body.
type Field struct {
	Name  string
	Value Value      // nil for a body statement without arguments
	Stmt  *Statement // set when the field comes from the body
	Pos   Position
}

// Fields returns the statement's keyword arguments followed by its body
// statements, in source order. Consumers that assign fields in order get
// last-write-wins semantics, with the body overriding keyword arguments.
func (s *Statement) Fields() []Field {
	fields := make([]Field, 0, len(s.Kwargs))
	for _, kw := range s.Kwargs {
		fields = append(fields, Field{Name: kw.Name, Value: kw.Value, Pos: kw.Pos})
	}
	if s.Body != nil {
		for _, st := range s.Body.Statements {
			fields = append(fields, Field{Name: st.Name, Value: st.Value(), Stmt: st, Pos: st.Pos})
		}
	}
	return fields
}

// Block is an ordered sequence of statements.
//
// A block keeps every statement, including repeats. Setting-style lookups
// (Last) apply last-write-wins; block-typed repeats such as column or series
// are read in order with All.
type Block struct {
	Statements []*Statement
	Pos        Position
}

// All returns every statement with the given name in source order.
func (b *Block) All(name string) []*Statement {
	if b == nil {
		return nil
	}
	var out []*Statement
	for _, st := range b.Statements {
		if st.Name == name {
			out = append(out, st)
		}
	}
	return out
}

// Last returns the last statement with the given name.
func (b *Block) Last(name string) (*Statement, bool) {
	if b == nil {
		return nil, false
	}
	for i := len(b.Statements) - 1; i >= 0; i-- {
		if b.Statements[i].Name == name {
			return b.Statements[i], true
		}
	}
	return nil, false
}

// Names returns the distinct statement names in order of first appearance.
func (b *Block) Names() []string {
	if b == nil {
		return nil
	}
	seen := make(map[string]bool, len(b.Statements))
	var names []string
	for _, st := range b.Statements {
		if !seen[st.Name] {
			seen[st.Name] = true
			names = append(names, st.Name)
		}
	}
	return names
}

// Tree is the result of parsing one script.
type Tree struct {
	Root *Block // top-level statements
	Src  string // source text the tree was parsed from
}

// IsEmpty reports whether the script contained no statements at all
// (empty, whitespace or comments only).
func (t *Tree) IsEmpty() bool {
	return t == nil || t.Root == nil || len(t.Root.Statements) == 0
}

// Block returns the body of the last top-level block statement named name.
func (t *Tree) Block(name string) (*Statement, bool) {
	if t.IsEmpty() {
		return nil, false
	}
	for i := len(t.Root.Statements) - 1; i >= 0; i-- {
		st := t.Root.Statements[i]
		if st.Name == name && st.Body != nil {
			return st, true
		}
	}
	return nil, false
}

// DetectDialect returns the dialect of the first recognized top-level block.
func (t *Tree) DetectDialect() (Dialect, bool) {
	if t.IsEmpty() {
		return "", false
	}
	for _, st := range t.Root.Statements {
		if st.Body == nil {
			continue
		}
		for _, d := range Dialects {
			if st.Name == string(d) {
				return d, true
			}
		}
	}
	return "", false
}

// DialectRoot returns the top-level block for dialect d.
// An empty tree yields (nil, nil): the script is not configured.
// A non-empty tree without the block yields a SemanticError.
func (t *Tree) DialectRoot(d Dialect) (*Statement, error) {
	if t.IsEmpty() {
		return nil, nil
	}
	st, ok := t.Block(string(d))
	if !ok {
		return nil, Semanticf(d, t.Root.Statements[0].Pos, "missing top-level '%s { ... }' block", d)
	}
	return st, nil
}
