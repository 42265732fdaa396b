package vm

import "fmt"

// ---------------------------------------------------------------------------
// Tokens
// ---------------------------------------------------------------------------

// TokenKind tags the variant held by a Token.
type TokenKind uint8

const (
	TokenDelimiter TokenKind = iota
	TokenSymbol
	TokenKeyword
	TokenOperator
	TokenNumber
	TokenString
	TokenParen
	TokenTuple
	TokenResource
)

var tokenKindNames = map[TokenKind]string{
	TokenDelimiter: "DELIMITER",
	TokenSymbol:    "SYMBOL",
	TokenKeyword:   "KEYWORD",
	TokenOperator:  "OPERATOR",
	TokenNumber:    "NUMBER",
	TokenString:    "STRING",
	TokenParen:     "PAREN",
	TokenTuple:     "TUPLE",
	TokenResource:  "RESOURCE",
}

// String returns the name of the token kind.
func (k TokenKind) String() string {
	if name, ok := tokenKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Token is one node of an arena list. Only the fields matching Kind are
// meaningful. Paren and Tuple tokens own the list reachable from Children;
// Resource tokens own one reference to Res.
type Token struct {
	Kind     TokenKind
	Sym      *Symbol
	Kw       *Keyword
	Op       *Operator
	Num      Number
	Text     *Text
	Res      *Resource
	Children Handle
	Pos      Position

	// resolved is the arity chosen for Op during evaluation.
	resolved *Operator

	l, r Handle
	gen  uint32
	live bool
}

// Operator returns the active descriptor of an operator token: the
// fallback chosen by arity resolution, or the lexed descriptor.
func (t *Token) Operator() *Operator {
	if t.resolved != nil {
		return t.resolved
	}
	return t.Op
}

// IsOperand reports whether t denotes a value without being an operator.
func (t *Token) IsOperand() bool {
	switch t.Kind {
	case TokenSymbol, TokenNumber, TokenString, TokenParen, TokenTuple, TokenResource:
		return true
	}
	return false
}

// IsContainer reports whether t owns a child list.
func (t *Token) IsContainer() bool {
	return t.Kind == TokenParen || t.Kind == TokenTuple
}

// isBoundary reports whether t ends an instruction.
func (t *Token) isBoundary() bool {
	return t.Kind == TokenDelimiter || t.Kind == TokenKeyword
}

// canBe reports whether t, as lexed, may act with the given arity.
func (t *Token) canBe(a Arity) bool {
	if t.Kind != TokenOperator {
		return false
	}
	if t.Operator().Arity == a || t.Op.Arity == a {
		return true
	}
	return t.Op.Fallback != nil && t.Op.Fallback.Arity == a
}

// DelimiterToken returns an instruction separator.
func DelimiterToken(pos Position) Token {
	return Token{Kind: TokenDelimiter, Pos: pos}
}

// SymbolToken returns a reference to s.
func SymbolToken(s *Symbol, pos Position) Token {
	return Token{Kind: TokenSymbol, Sym: s, Pos: pos}
}

// KeywordToken returns a reference to kw.
func KeywordToken(kw *Keyword, pos Position) Token {
	return Token{Kind: TokenKeyword, Kw: kw, Pos: pos}
}

// OperatorToken returns a reference to op.
func OperatorToken(op *Operator, pos Position) Token {
	return Token{Kind: TokenOperator, Op: op, Pos: pos}
}

// NumberToken returns a numeric literal.
func NumberToken(n Number) Token {
	return Token{Kind: TokenNumber, Num: n}
}

// StringToken returns a string literal.
func StringToken(t *Text) Token {
	return Token{Kind: TokenString, Text: t}
}

// ParenToken returns a parenthesis group owning the list at children.
func ParenToken(children Handle, pos Position) Token {
	return Token{Kind: TokenParen, Children: children, Pos: pos}
}

// TupleToken returns a tuple owning the list at children.
func TupleToken(children Handle) Token {
	return Token{Kind: TokenTuple, Children: children}
}

// ResourceToken returns a token that takes over one reference to r.
// The caller's reference is transferred, not duplicated.
func ResourceToken(r *Resource) Token {
	return Token{Kind: TokenResource, Res: r}
}
