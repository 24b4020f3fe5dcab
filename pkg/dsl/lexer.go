package dsl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// scriptLexer tokenizes the shared surface grammar of all dialects.
// Rule order matters: the first rule that matches at a position wins.
var scriptLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `//[^\n]*|/\*[\s\S]*?\*/`},
	{Name: "OpenComment", Pattern: `/\*`},
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
	{Name: "TripleString", Pattern: `'''[\s\S]*?'''|"""[\s\S]*?"""`},
	{Name: "String", Pattern: `'(?:[^'\\\n]|\\.)*'|"(?:[^"\\\n]|\\.)*"`},
	{Name: "Number", Pattern: `-?[0-9]+(?:\.[0-9]+)?(?:[eE][+-]?[0-9]+)?[LlGgDdFf]?`},
	{Name: "Ident", Pattern: `[a-zA-Z_$][a-zA-Z0-9_$]*`},
	{Name: "Punct", Pattern: `[{}()\[\],:.;]`},
	{Name: "Operator", Pattern: `->|==|=~|!=|<=|>=|&&|\|\||[-+*/%<>!?&|^~]`},
	{Name: "Assign", Pattern: `=`},
	{Name: "Invalid", Pattern: `.`},
})

// TokenKind classifies a token.
type TokenKind int

// TokenKind constants.
const (
	TokenEOF TokenKind = iota
	TokenIdent
	TokenString
	TokenNumber
	TokenPunct
	TokenOperator
	TokenInvalid
)

func (k TokenKind) String() string {
	switch k {
	case TokenEOF:
		return "end of script"
	case TokenIdent:
		return "identifier"
	case TokenString:
		return "string"
	case TokenNumber:
		return "number"
	case TokenPunct:
		return "punctuation"
	case TokenOperator:
		return "operator"
	case TokenInvalid:
		return "invalid character"
	default:
		return "unknown"
	}
}

// Token is one lexical token with its source position.
// For strings, Value holds the decoded content and Raw the quoted source.
type Token struct {
	Kind  TokenKind
	Value string
	Raw   string
	Pos   Position
}

// End returns the byte offset just past the token.
func (t Token) End() int {
	return t.Pos.Offset + len(t.Raw)
}

func (t Token) is(kind TokenKind, value string) bool {
	return t.Kind == kind && t.Value == value
}

func (t Token) describe() string {
	switch t.Kind {
	case TokenEOF:
		return "end of script"
	case TokenString:
		return "string " + t.Raw
	default:
		return "'" + t.Raw + "'"
	}
}

// tokenize converts script text into tokens, dropping whitespace and comments.
func tokenize(src string) ([]Token, error) {
	lex, err := scriptLexer.LexString("", src)
	if err != nil {
		return nil, lexError(err)
	}

	symbols := scriptLexer.Symbols()
	commentSym := symbols["Comment"]
	wsSym := symbols["Whitespace"]
	tripleSym := symbols["TripleString"]
	stringSym := symbols["String"]
	numberSym := symbols["Number"]
	identSym := symbols["Ident"]
	punctSym := symbols["Punct"]
	operatorSym := symbols["Operator"]
	assignSym := symbols["Assign"]
	openCommentSym := symbols["OpenComment"]

	var tokens []Token
	for {
		t, err := lex.Next()
		if err != nil {
			return nil, lexError(err)
		}

		pos := Position{Line: t.Pos.Line, Column: t.Pos.Column, Offset: t.Pos.Offset}
		if t.EOF() {
			tokens = append(tokens, Token{Kind: TokenEOF, Pos: pos})
			return tokens, nil
		}

		switch t.Type {
		case wsSym, commentSym:
			continue
		case tripleSym:
			tokens = append(tokens, Token{Kind: TokenString, Value: t.Value[3 : len(t.Value)-3], Raw: t.Value, Pos: pos})
		case stringSym:
			tokens = append(tokens, Token{Kind: TokenString, Value: unquote(t.Value), Raw: t.Value, Pos: pos})
		case numberSym:
			tokens = append(tokens, Token{Kind: TokenNumber, Value: t.Value, Raw: t.Value, Pos: pos})
		case identSym:
			tokens = append(tokens, Token{Kind: TokenIdent, Value: t.Value, Raw: t.Value, Pos: pos})
		case punctSym, assignSym:
			tokens = append(tokens, Token{Kind: TokenPunct, Value: t.Value, Raw: t.Value, Pos: pos})
		case operatorSym:
			tokens = append(tokens, Token{Kind: TokenOperator, Value: t.Value, Raw: t.Value, Pos: pos})
		case openCommentSym:
			return nil, &SyntaxError{Pos: pos, Message: ErrUnterminatedComment}
		default:
			return nil, &SyntaxError{Pos: pos, Message: invalidTokenMessage(t.Value)}
		}
	}
}

// lexError converts a lexer failure into a SyntaxError at the failing position.
func lexError(err error) *SyntaxError {
	var lexErr *lexer.Error
	if errors.As(err, &lexErr) {
		return &SyntaxError{
			Pos:     Position{Line: lexErr.Pos.Line, Column: lexErr.Pos.Column, Offset: lexErr.Pos.Offset},
			Message: lexErr.Msg,
		}
	}
	return &SyntaxError{Pos: Position{Line: 1, Column: 1}, Message: err.Error()}
}

// invalidTokenMessage explains a character no rule accepted. A lone quote
// means the closing delimiter never arrived.
func invalidTokenMessage(value string) string {
	switch value {
	case "'", `"`:
		return ErrUnterminatedString
	default:
		return fmt.Sprintf(ErrUnexpectedChar, value)
	}
}

// unquote decodes a single- or double-quoted string literal.
// Unknown escapes keep the escaped character; GString ${...} is left verbatim.
func unquote(raw string) string {
	body := raw[1 : len(raw)-1]
	if !strings.ContainsRune(body, '\\') {
		return body
	}

	var b strings.Builder
	b.Grow(len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 >= len(body) {
			b.WriteByte(c)
			continue
		}
		i++
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		default:
			b.WriteByte(body[i])
		}
	}
	return b.String()
}
