package compiler

import (
	"fmt"

	"github.com/chazu/jbasic/vm"
)

// ---------------------------------------------------------------------------
// Lexemes produced by the Lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a lexeme.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenInteger    // 42
	TokenFloat      // 3.14, 1e10
	TokenString     // 'hello', "hello", `hello`
	TokenIdentifier // A, count_2, PRINT, AND

	// Operators and punctuation
	TokenOperator  // = == + - , && ...
	TokenLParen    // (
	TokenRParen    // )
	TokenDelimiter // ; or newline
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenInteger:    "INTEGER",
	TokenFloat:      "FLOAT",
	TokenString:     "STRING",
	TokenIdentifier: "IDENTIFIER",
	TokenOperator:   "OPERATOR",
	TokenLParen:     "(",
	TokenRParen:     ")",
	TokenDelimiter:  "DELIMITER",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Position is a location in the source.
type Position struct {
	Offset int
	Line   int // 1-based
	Column int // 1-based
}

// VM converts p to the position carried by interpreter tokens and errors.
func (p Position) VM() vm.Position {
	return vm.Position{Line: p.Line, Column: p.Column}
}

// Token represents a lexeme.
type Token struct {
	Type    TokenType
	Literal string   // the raw text, or the message of an error
	Value   string   // string contents without quotes
	Pos     Position // start position
	Err     error    // sentinel for TokenError
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Error converts an error lexeme into an interpreter error.
func (t Token) Error() *vm.Error {
	return vm.NewError(t.Err, t.Pos.VM(), "%s", t.Literal)
}
