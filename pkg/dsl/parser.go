package dsl

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser is a recursive descent parser over the token stream of one script.
type Parser struct {
	src    string
	tokens []Token
	pos    int
}

// Parse parses script text into a Tree.
// Whitespace-only and comment-only scripts produce an empty tree, not an error.
func Parse(script string) (*Tree, error) {
	tokens, err := tokenize(script)
	if err != nil {
		return nil, err
	}

	p := &Parser{src: script, tokens: tokens}
	root := &Block{Pos: Position{Line: 1, Column: 1}}
	for !p.check(TokenEOF) {
		if p.peek().is(TokenPunct, "}") {
			return nil, p.unexpected("statement")
		}
		st, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		root.Statements = append(root.Statements, st)
	}
	return &Tree{Root: root, Src: script}, nil
}

// ---------- Token helpers ----------

func (p *Parser) peek() Token {
	return p.tokens[p.pos]
}

func (p *Parser) peekAt(n int) Token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

func (p *Parser) previous() Token {
	return p.tokens[p.pos-1]
}

func (p *Parser) advance() Token {
	t := p.tokens[p.pos]
	if t.Kind != TokenEOF {
		p.pos++
	}
	return t
}

func (p *Parser) check(kind TokenKind) bool {
	return p.peek().Kind == kind
}

func (p *Parser) checkPunct(value string) bool {
	return p.peek().is(TokenPunct, value)
}

func (p *Parser) matchPunct(value string) bool {
	if p.checkPunct(value) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) unexpected(expected string) *SyntaxError {
	t := p.peek()
	return &SyntaxError{Pos: t.Pos, Message: fmt.Sprintf(ErrUnexpectedToken, t.describe(), expected)}
}

// ---------- Statements ----------

// parseStatement parses one statement of a block.
func (p *Parser) parseStatement() (*Statement, error) {
	start := p.peek()
	if start.Kind != TokenIdent {
		return nil, p.unexpected("statement")
	}
	name := p.parseDottedName()
	st := &Statement{Name: name, Pos: start.Pos}

	switch {
	case p.matchPunct("="):
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		st.Args = []Value{v}

	case p.checkPunct("("):
		open := p.advance()
		args, kwargs, err := p.parseArgs(")", open, name)
		if err != nil {
			return nil, err
		}
		st.Args, st.Kwargs = args, kwargs
		if err := p.parseOptionalBody(st); err != nil {
			return nil, err
		}

	case p.checkPunct("{"):
		if err := p.parseOptionalBody(st); err != nil {
			return nil, err
		}

	case p.startsCommandArgs(p.previous()):
		args, kwargs, err := p.parseCommandArgs()
		if err != nil {
			return nil, err
		}
		st.Args, st.Kwargs = args, kwargs
		if err := p.parseOptionalBody(st); err != nil {
			return nil, err
		}
	}

	st.src = p.argSource(st)
	for p.matchPunct(";") {
	}
	return st, nil
}

// argSource returns the source text from the first argument of st to the end
// of its last one.
func (p *Parser) argSource(st *Statement) string {
	start, end := -1, -1
	span := func(from int, v Value) {
		if start < 0 || from < start {
			start = from
		}
		if to := v.Pos().Offset + len(v.Source()); to > end {
			end = to
		}
	}
	for _, v := range st.Args {
		span(v.Pos().Offset, v)
	}
	for _, kw := range st.Kwargs {
		span(kw.Pos.Offset, kw.Value)
	}
	if start < 0 {
		return ""
	}
	return p.src[start:end]
}

// parseDottedName reads ident ('.' ident)*.
func (p *Parser) parseDottedName() string {
	parts := []string{p.advance().Value}
	for p.checkPunct(".") && p.peekAt(1).Kind == TokenIdent {
		p.advance()
		parts = append(parts, p.advance().Value)
	}
	return strings.Join(parts, ".")
}

// startsCommandArgs reports whether the next token begins an argument list
// written without parentheses. Such arguments must start on the line of the
// statement name; anything on a later line is a new statement.
func (p *Parser) startsCommandArgs(nameTok Token) bool {
	t := p.peek()
	if t.Pos.Line != nameTok.Pos.Line {
		return false
	}
	switch t.Kind {
	case TokenString, TokenNumber, TokenIdent:
		return true
	case TokenPunct:
		return t.Value == "["
	default:
		return false
	}
}

func (p *Parser) parseOptionalBody(st *Statement) error {
	if !p.checkPunct("{") {
		return nil
	}
	if p.closureAhead() || ClosureKeys[lastSegment(st.Name)] {
		v, err := p.parseClosure()
		if err != nil {
			return err
		}
		st.Args = append(st.Args, v)
		return nil
	}
	body, err := p.parseBlock(st.Name)
	if err != nil {
		return err
	}
	st.Body = body
	return nil
}

// ClosureKeys names settings whose '{ ... }' is always a closure, even when it
// declares no parameters ('formatter { it.toUpperCase() }').
var ClosureKeys = map[string]bool{
	"formatter":           true,
	"titleFormatter":      true,
	"editor":              true,
	"headerFilter":        true,
	"headerFilterFunc":    true,
	"sorter":              true,
	"mutator":             true,
	"accessor":            true,
	"topCalcFormatter":    true,
	"bottomCalcFormatter": true,
}

func lastSegment(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// closureAhead reports whether the '{' at the current position opens a
// closure with a parameter list ('{ cell -> ...', '{ a, b -> ...', '{ -> ...').
func (p *Parser) closureAhead() bool {
	i := 1
	for {
		t := p.peekAt(i)
		switch {
		case t.is(TokenOperator, "->"):
			return true
		case t.Kind == TokenIdent:
			i++
			if p.peekAt(i).is(TokenPunct, ",") {
				i++
			}
		default:
			return false
		}
	}
}

// parseBlock parses '{' statement* '}'.
func (p *Parser) parseBlock(name string) (*Block, error) {
	open := p.advance()
	block := &Block{Pos: open.Pos}
	for {
		switch {
		case p.check(TokenEOF):
			return nil, &SyntaxError{Pos: open.Pos, Message: fmt.Sprintf(ErrUnterminatedBlock, name)}
		case p.matchPunct("}"):
			return block, nil
		case p.matchPunct(";"):
			continue
		}
		st, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		block.Statements = append(block.Statements, st)
	}
}

// ---------- Arguments ----------

// parseCommandArgs parses arguments without parentheses: arg (',' arg)*.
// A trailing comma continues the list onto the next line.
func (p *Parser) parseCommandArgs() ([]Value, []KeywordArg, error) {
	var args []Value
	var kwargs []KeywordArg
	for {
		v, kw, err := p.parseArg()
		if err != nil {
			return nil, nil, err
		}
		if kw != nil {
			kwargs = append(kwargs, *kw)
		} else {
			args = append(args, v)
		}
		if !p.matchPunct(",") {
			return args, kwargs, nil
		}
	}
}

// parseArgs parses a delimited argument list after its opening token.
func (p *Parser) parseArgs(closer string, open Token, name string) ([]Value, []KeywordArg, error) {
	var args []Value
	var kwargs []KeywordArg
	for {
		if p.matchPunct(closer) {
			return args, kwargs, nil
		}
		if p.check(TokenEOF) {
			return nil, nil, &SyntaxError{Pos: open.Pos, Message: fmt.Sprintf(ErrUnterminatedCall, name)}
		}
		v, kw, err := p.parseArg()
		if err != nil {
			return nil, nil, err
		}
		if kw != nil {
			kwargs = append(kwargs, *kw)
		} else {
			args = append(args, v)
		}
		if !p.matchPunct(",") && !p.checkPunct(closer) {
			if p.check(TokenEOF) {
				return nil, nil, &SyntaxError{Pos: open.Pos, Message: fmt.Sprintf(ErrUnterminatedCall, name)}
			}
			return nil, nil, p.unexpected(fmt.Sprintf("',' or '%s'", closer))
		}
	}
}

// parseArg parses 'key: value' or a positional value.
func (p *Parser) parseArg() (Value, *KeywordArg, error) {
	t := p.peek()
	if isKeyToken(t) && p.peekAt(1).is(TokenPunct, ":") {
		p.advance()
		p.advance()
		v, err := p.parseValue()
		if err != nil {
			return nil, nil, err
		}
		return nil, &KeywordArg{Name: t.Value, Value: v, Pos: t.Pos}, nil
	}
	v, err := p.parseValue()
	return v, nil, err
}

func isKeyToken(t Token) bool {
	return t.Kind == TokenIdent || t.Kind == TokenString || t.Kind == TokenNumber
}

// ---------- Values ----------

func (p *Parser) parseValue() (Value, error) {
	t := p.peek()
	switch t.Kind {
	case TokenString:
		p.advance()
		return &String{valueBase: valueBase{pos: t.Pos, raw: t.Raw}, Value: t.Value}, nil

	case TokenNumber:
		p.advance()
		return parseNumber(t)

	case TokenIdent:
		switch t.Value {
		case "true", "false":
			p.advance()
			return &Bool{valueBase: valueBase{pos: t.Pos, raw: t.Raw}, Value: t.Value == "true"}, nil
		case "null":
			p.advance()
			return &Null{valueBase: valueBase{pos: t.Pos, raw: t.Raw}}, nil
		}
		return p.parseChain()

	case TokenPunct:
		switch t.Value {
		case "[":
			return p.parseCollection()
		case "{":
			return p.parseClosure()
		}
	}
	return nil, p.unexpected("value")
}

func parseNumber(t Token) (Value, error) {
	text := strings.TrimRight(t.Value, "LlGgDdFf")
	n := &Number{valueBase: valueBase{pos: t.Pos, raw: t.Raw}}
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		n.Int, n.Float, n.IsInt = i, float64(i), true
		return n, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, &SyntaxError{Pos: t.Pos, Message: fmt.Sprintf("invalid number %q", t.Raw)}
	}
	n.Float = f
	return n, nil
}

// parseChain parses 'new'? ident call? ('.' ident call?)*.
// A '{ ... }' on the same line after a method segment is a trailing closure
// argument ('rows.findAll { it.amount > 0 }'). A lone identifier is a
// Symbol; anything longer is an Expr.
func (p *Parser) parseChain() (Value, error) {
	first := p.peek()
	expr := &Expr{valueBase: valueBase{pos: first.Pos}}
	if first.Value == "new" && p.peekAt(1).Kind == TokenIdent {
		p.advance()
		expr.New = true
	}

	for {
		nameTok := p.peek()
		if nameTok.Kind != TokenIdent {
			return nil, p.unexpected("identifier")
		}
		p.advance()
		call := Call{Name: nameTok.Value}
		if p.checkPunct("(") {
			open := p.advance()
			args, kwargs, err := p.parseArgs(")", open, nameTok.Value)
			if err != nil {
				return nil, err
			}
			call.Invoked, call.Args, call.Kwargs = true, args, kwargs
		}
		if p.trailingClosure(len(expr.Chain) > 0 || call.Invoked || expr.New) {
			v, err := p.parseClosure()
			if err != nil {
				return nil, err
			}
			call.Invoked = true
			call.Args = append(call.Args, v)
		}
		expr.Chain = append(expr.Chain, call)

		if !p.checkPunct(".") || p.peekAt(1).Kind != TokenIdent {
			break
		}
		p.advance()
	}

	expr.raw = p.src[first.Pos.Offset:p.previous().End()]
	if !expr.New && len(expr.Chain) == 1 && !expr.Chain[0].Invoked {
		return &Symbol{valueBase: expr.valueBase, Name: expr.Chain[0].Name}, nil
	}
	return expr, nil
}

// trailingClosure reports whether a '{' attached to the previous token follows.
// A bare identifier never takes one: 'name {' opens a block.
func (p *Parser) trailingClosure(method bool) bool {
	return method && p.checkPunct("{") && p.peek().Pos.Line == p.previous().Pos.Line
}

// parseCollection parses '[' ... ']' into a List or Map.
func (p *Parser) parseCollection() (Value, error) {
	open := p.advance()
	base := valueBase{pos: open.Pos}

	if p.checkPunct(":") && p.peekAt(1).is(TokenPunct, "]") {
		p.advance()
		p.advance()
		base.raw = p.src[open.Pos.Offset:p.previous().End()]
		return &Map{valueBase: base}, nil
	}

	var items []Value
	var entries []KeywordArg
	for {
		if p.matchPunct("]") {
			break
		}
		if p.check(TokenEOF) {
			return nil, &SyntaxError{Pos: open.Pos, Message: ErrUnterminatedList}
		}
		v, kw, err := p.parseArg()
		if err != nil {
			return nil, err
		}
		if kw != nil {
			entries = append(entries, *kw)
		} else {
			items = append(items, v)
		}
		if len(items) > 0 && len(entries) > 0 {
			return nil, &SyntaxError{Pos: open.Pos, Message: ErrMixedMapList}
		}
		if !p.matchPunct(",") && !p.checkPunct("]") {
			if p.check(TokenEOF) {
				return nil, &SyntaxError{Pos: open.Pos, Message: ErrUnterminatedList}
			}
			return nil, p.unexpected("',' or ']'")
		}
	}

	base.raw = p.src[open.Pos.Offset:p.previous().End()]
	if len(entries) > 0 {
		return &Map{valueBase: base, Entries: entries}, nil
	}
	return &List{valueBase: base, Items: items}, nil
}

// parseClosure captures a '{ ... }' value verbatim. Closure bodies are code
// for the renderer, never parsed or evaluated here.
func (p *Parser) parseClosure() (Value, error) {
	open := p.advance()
	depth := 1
	for depth > 0 {
		t := p.advance()
		switch {
		case t.Kind == TokenEOF:
			return nil, &SyntaxError{Pos: open.Pos, Message: fmt.Sprintf(ErrUnterminatedBlock, "closure")}
		case t.is(TokenPunct, "{"):
			depth++
		case t.is(TokenPunct, "}"):
			depth--
		}
	}
	end := p.previous()
	return &Closure{
		valueBase: valueBase{pos: open.Pos, raw: p.src[open.Pos.Offset:end.End()]},
		Body:      strings.TrimSpace(p.src[open.End():end.Pos.Offset]),
	}, nil
}
