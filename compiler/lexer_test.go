package compiler

import (
	"errors"
	"testing"

	"github.com/chazu/jbasic/vm"
)

func TestLexerBasicTokens(t *testing.T) {
	input := "( ) ; \n"
	expected := []struct {
		typ TokenType
		lit string
	}{
		{TokenLParen, "("},
		{TokenRParen, ")"},
		{TokenDelimiter, ";"},
		{TokenDelimiter, "\n"},
		{TokenEOF, ""},
	}

	l := NewLexer(input)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp.typ {
			t.Errorf("token[%d] type = %v, want %v", i, tok.Type, exp.typ)
		}
		if tok.Literal != exp.lit {
			t.Errorf("token[%d] literal = %q, want %q", i, tok.Literal, exp.lit)
		}
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
		want  string
	}{
		{"42", TokenInteger, "42"},
		{"0", TokenInteger, "0"},
		{"3.14", TokenFloat, "3.14"},
		{".5", TokenFloat, ".5"},
		{"1e10", TokenFloat, "1e10"},
		{"1.5e-3", TokenFloat, "1.5e-3"},
		{"2.0E+5", TokenFloat, "2.0E+5"},
	}

	for _, tc := range tests {
		l := NewLexer(tc.input)
		tok := l.NextToken()
		if tok.Type != tc.typ {
			t.Errorf("Lexer(%q): type = %v, want %v", tc.input, tok.Type, tc.typ)
		}
		if tok.Literal != tc.want {
			t.Errorf("Lexer(%q): literal = %q, want %q", tc.input, tok.Literal, tc.want)
		}
	}
}

func TestLexerStrings(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`'hello'`, "hello"},
		{`"it's"`, "it's"},
		{"`say \"hi\"`", `say "hi"`},
		{`''`, ""},
	}

	for _, tc := range tests {
		tok := NewLexer(tc.input).NextToken()
		if tok.Type != TokenString {
			t.Errorf("Lexer(%q): type = %v, want STRING", tc.input, tok.Type)
			continue
		}
		if tok.Value != tc.want {
			t.Errorf("Lexer(%q): value = %q, want %q", tc.input, tok.Value, tc.want)
		}
	}
}

func TestLexerUnterminatedString(t *testing.T) {
	tok := NewLexer(`'oops`).NextToken()
	if tok.Type != TokenError {
		t.Fatalf("type = %v, want ERROR", tok.Type)
	}
	if !errors.Is(tok.Error(), vm.ErrUnmatchedQuote) {
		t.Errorf("error = %v, want ErrUnmatchedQuote", tok.Error())
	}
}

func TestLexerOperators(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"==", []string{"=="}},
		{"!=", []string{"!="}},
		{"<=>=", []string{"<=", ">="}},
		{"&&||", []string{"&&", "||"}},
		{"=-", []string{"=", "-"}},
		{"--", []string{"-", "-"}},
		{"!!", []string{"!", "!"}},
		{",", []string{","}},
	}

	for _, tc := range tests {
		l := NewLexer(tc.input)
		for i, want := range tc.want {
			tok := l.NextToken()
			if tok.Type != TokenOperator || tok.Literal != want {
				t.Errorf("Lexer(%q)[%d] = %v, want OPERATOR(%q)", tc.input, i, tok, want)
			}
		}
		if tok := l.NextToken(); tok.Type != TokenEOF {
			t.Errorf("Lexer(%q): trailing %v", tc.input, tok)
		}
	}
}

func TestLexerUnknownOperator(t *testing.T) {
	tok := NewLexer("&").NextToken()
	if tok.Type != TokenError || !errors.Is(tok.Error(), vm.ErrUnknownToken) {
		t.Errorf("got %v, want unknown token error", tok)
	}
	tok = NewLexer("#").NextToken()
	if tok.Type != TokenError || !errors.Is(tok.Error(), vm.ErrUnknownToken) {
		t.Errorf("got %v, want unknown token error", tok)
	}
}

func TestLexerIdentifiers(t *testing.T) {
	tokens := Tokenize("count_2 _x PRINT and")
	want := []string{"count_2", "_x", "PRINT", "and"}
	for i, w := range want {
		if tokens[i].Type != TokenIdentifier || tokens[i].Literal != w {
			t.Errorf("token[%d] = %v, want IDENTIFIER(%q)", i, tokens[i], w)
		}
	}
}

func TestLexerRemarks(t *testing.T) {
	tokens := Tokenize("A = 1 REM set A (\nrem whole line\nB")
	var got []string
	for _, tok := range tokens {
		got = append(got, tok.Literal)
	}
	want := []string{"A", "=", "1", "\n", "\n", "B", ""}
	if len(got) != len(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLexerPositions(t *testing.T) {
	tokens := Tokenize("A = 1\n  PRINT A")
	tests := []struct {
		idx  int
		line int
		col  int
	}{
		{0, 1, 1}, // A
		{1, 1, 3}, // =
		{2, 1, 5}, // 1
		{3, 1, 6}, // newline
		{4, 2, 3}, // PRINT
		{5, 2, 9}, // A
	}
	for _, tc := range tests {
		pos := tokens[tc.idx].Pos
		if pos.Line != tc.line || pos.Column != tc.col {
			t.Errorf("token[%d] %v at %d:%d, want %d:%d", tc.idx, tokens[tc.idx], pos.Line, pos.Column, tc.line, tc.col)
		}
	}
}
