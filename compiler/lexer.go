package compiler

import (
	"strings"
	"unicode/utf8"

	"github.com/chazu/jbasic/vm"
)

// ---------------------------------------------------------------------------
// Lexer: tokenizer for jbasic source
// ---------------------------------------------------------------------------

// Lexer tokenizes jbasic source code.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // line of ch (1-based)
	col     int  // column of ch (1-based)
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	l.col++
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = len(l.input)
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

func (l *Lexer) position() Position {
	return Position{Offset: l.pos, Line: l.line, Column: l.col}
}

func (l *Lexer) errorf(pos Position, err error, msg string) Token {
	return Token{Type: TokenError, Literal: msg, Pos: pos, Err: err}
}

// NextToken returns the next token. After an error token the lexer resumes
// at the following character.
func (l *Lexer) NextToken() Token {
	for {
		l.skipBlanks()
		pos := l.position()

		switch {
		case l.ch == 0:
			return Token{Type: TokenEOF, Pos: pos}

		case l.ch == ';' || l.ch == '\n':
			lit := string(l.ch)
			l.readChar()
			return Token{Type: TokenDelimiter, Literal: lit, Pos: pos}

		case l.ch == '(':
			l.readChar()
			return Token{Type: TokenLParen, Literal: "(", Pos: pos}

		case l.ch == ')':
			l.readChar()
			return Token{Type: TokenRParen, Literal: ")", Pos: pos}

		case l.ch == '\'' || l.ch == '"' || l.ch == '`':
			return l.readString()

		case isDigit(l.ch):
			return l.readNumber()

		case l.ch == '.' && isDigit(l.peekChar()):
			return l.readNumber()

		case isLetter(l.ch):
			tok := l.readIdentifier()
			if strings.EqualFold(tok.Literal, "REM") {
				l.skipLine()
				continue
			}
			return tok

		case l.ch < utf8.RuneSelf && vm.IsOperatorChar(byte(l.ch)):
			return l.readOperator()
		}

		ch := l.ch
		l.readChar()
		return l.errorf(pos, vm.ErrUnknownToken, "unexpected character "+quoteRune(ch))
	}
}

// skipBlanks skips spaces, tabs and carriage returns. Newlines are
// delimiters and are kept.
func (l *Lexer) skipBlanks() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\f' || l.ch == '\v' {
		l.readChar()
	}
}

// skipLine skips to the end of the line, leaving the newline.
func (l *Lexer) skipLine() {
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
}

// readNumber reads an integer or a float. A float has a fraction, an
// exponent, or both.
func (l *Lexer) readNumber() Token {
	pos := l.position()
	start := l.pos
	isFloat := false

	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		isFloat = true
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			isFloat = true
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			if !isDigit(l.ch) {
				return l.errorf(pos, vm.ErrUnknownToken, "malformed exponent in "+l.input[start:l.pos])
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}

	lit := l.input[start:l.pos]
	if isFloat {
		return Token{Type: TokenFloat, Literal: lit, Pos: pos}
	}
	return Token{Type: TokenInteger, Literal: lit, Pos: pos}
}

// readString reads a literal delimited by ', " or `. The closing quote must
// match the opening one and there are no escapes.
func (l *Lexer) readString() Token {
	pos := l.position()
	quote := l.ch
	start := l.pos
	l.readChar()
	bodyStart := l.pos
	for l.ch != quote {
		if l.ch == 0 {
			return l.errorf(pos, vm.ErrUnmatchedQuote, "string starting with "+quoteRune(quote)+" is never closed")
		}
		l.readChar()
	}
	body := l.input[bodyStart:l.pos]
	l.readChar()
	return Token{Type: TokenString, Literal: l.input[start:l.pos], Value: body, Pos: pos}
}

// readIdentifier reads a name: a letter or underscore followed by letters,
// digits and underscores.
func (l *Lexer) readIdentifier() Token {
	pos := l.position()
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return Token{Type: TokenIdentifier, Literal: l.input[start:l.pos], Pos: pos}
}

// readOperator reads the longest run of operator characters that names an
// operator, trying two characters before one.
func (l *Lexer) readOperator() Token {
	pos := l.position()
	first := l.ch
	if next := l.peekChar(); next < utf8.RuneSelf && vm.IsOperatorChar(byte(next)) {
		pair := string(first) + string(next)
		if vm.LookupOperator(pair) != nil {
			l.readChar()
			l.readChar()
			return Token{Type: TokenOperator, Literal: pair, Pos: pos}
		}
	}
	l.readChar()
	single := string(first)
	if vm.LookupOperator(single) == nil {
		return l.errorf(pos, vm.ErrUnknownToken, "unknown operator "+single)
	}
	return Token{Type: TokenOperator, Literal: single, Pos: pos}
}

// Tokenize returns all lexemes of input, ending with EOF.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
	}
	return tokens
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

func isLetter(ch rune) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}

func quoteRune(ch rune) string {
	return "'" + string(ch) + "'"
}
