package dsl

import "fmt"

// SyntaxError reports malformed script text: an unterminated block, string or
// comment, or a token that cannot start the construct being parsed.
type SyntaxError struct {
	Pos     Position
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// Line returns the 1-based line the error was detected on.
func (e *SyntaxError) Line() int { return e.Pos.Line }

// SemanticError reports a structurally valid script that a dialect projector
// cannot turn into a configuration (missing required fields, unknown enum tokens).
type SemanticError struct {
	Pos     Position
	Dialect Dialect
	Message string
}

func (e *SemanticError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: line %d: %s", e.Dialect, e.Pos.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Dialect, e.Message)
}

// Semanticf builds a SemanticError for the given dialect.
func Semanticf(d Dialect, pos Position, format string, args ...any) *SemanticError {
	return &SemanticError{Pos: pos, Dialect: d, Message: fmt.Sprintf(format, args...)}
}

// Common error messages
const (
	ErrUnexpectedToken     = "unexpected %s, expected %s"
	ErrUnterminatedString  = "unterminated string literal"
	ErrUnterminatedComment = "unterminated block comment"
	ErrUnterminatedBlock   = "unterminated block %q (missing '}')"
	ErrUnterminatedCall    = "unterminated argument list for %q (missing ')')"
	ErrUnterminatedList    = "unterminated list or map literal (missing ']')"
	ErrUnexpectedChar      = "unexpected character %q"
	ErrMixedMapList        = "list literal mixes keyed and positional entries"
)
