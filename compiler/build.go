package compiler

import (
	"errors"
	"strconv"

	"github.com/chazu/jbasic/vm"
)

// ---------------------------------------------------------------------------
// Builder: lexemes to token lists
// ---------------------------------------------------------------------------

// Build tokenizes src into a new token list in e's arena and returns the
// list head, or Nil for a program with no tokens. Parenthesis groups are
// nested as they are read. On error nothing is left in the arena.
func Build(e *vm.Env, src string) (vm.Handle, error) {
	b := &builder{env: e, lex: NewLexer(src)}
	head, err := b.build()
	if err != nil {
		b.discard()
		return vm.Nil, err
	}
	return head, nil
}

// list is a token list under construction.
type list struct {
	head, tail vm.Handle
	open       Position // position of the '(' that opened it
}

type builder struct {
	env   *vm.Env
	lex   *Lexer
	cur   list
	stack []list
}

func (b *builder) build() (vm.Handle, error) {
	for {
		lx := b.lex.NextToken()
		switch lx.Type {
		case TokenEOF:
			if len(b.stack) > 0 {
				return vm.Nil, vm.NewError(vm.ErrUnmatchedParen, b.cur.open.VM(), "( is never closed")
			}
			return b.cur.head, nil

		case TokenError:
			return vm.Nil, lx.Error()

		case TokenLParen:
			b.stack = append(b.stack, b.cur)
			b.cur = list{open: lx.Pos}

		case TokenRParen:
			if len(b.stack) == 0 {
				return vm.Nil, vm.NewError(vm.ErrUnmatchedParen, lx.Pos.VM(), ") without (")
			}
			children, open := b.cur.head, b.cur.open
			b.cur = b.stack[len(b.stack)-1]
			b.stack = b.stack[:len(b.stack)-1]
			if err := b.append(vm.ParenToken(children, open.VM())); err != nil {
				// The group was never linked; its children go with it.
				b.env.Arena.DestroyList(children)
				return vm.Nil, err
			}

		case TokenDelimiter:
			if len(b.stack) > 0 {
				return vm.Nil, vm.NewError(vm.ErrUnmatchedParen, b.cur.open.VM(), "( is not closed before end of instruction")
			}
			if err := b.append(vm.DelimiterToken(lx.Pos.VM())); err != nil {
				return vm.Nil, err
			}

		default:
			tok, err := b.convert(lx)
			if err != nil {
				return vm.Nil, err
			}
			if err := b.append(tok); err != nil {
				return vm.Nil, err
			}
		}
	}
}

// append links tok at the end of the current list.
func (b *builder) append(tok vm.Token) error {
	h, err := b.env.Arena.InsertAfter(b.cur.tail, tok)
	if err != nil {
		return err
	}
	if b.cur.head.IsNil() {
		b.cur.head = h
	}
	b.cur.tail = h
	return nil
}

// convert turns a literal, name or operator lexeme into a token.
func (b *builder) convert(lx Token) (vm.Token, error) {
	pos := lx.Pos.VM()
	switch lx.Type {
	case TokenInteger:
		n, err := strconv.ParseInt(lx.Literal, 10, 64)
		if err != nil {
			return vm.Token{}, numberError(err, pos, lx.Literal)
		}
		tok := vm.NumberToken(vm.IntNumber(n))
		tok.Pos = pos
		return tok, nil

	case TokenFloat:
		f, err := strconv.ParseFloat(lx.Literal, 64)
		if err != nil {
			return vm.Token{}, numberError(err, pos, lx.Literal)
		}
		tok := vm.NumberToken(vm.FloatNumber(f))
		tok.Pos = pos
		return tok, nil

	case TokenString:
		text, err := b.env.Texts.Intern(lx.Value)
		if err != nil {
			return vm.Token{}, err
		}
		tok := vm.StringToken(text)
		tok.Pos = pos
		return tok, nil

	case TokenOperator:
		op := vm.LookupOperator(lx.Literal)
		if op == nil {
			return vm.Token{}, vm.NewError(vm.ErrUnknownToken, pos, "unknown operator %s", lx.Literal)
		}
		return vm.OperatorToken(op, pos), nil

	case TokenIdentifier:
		return b.name(lx.Literal, pos)
	}
	return vm.Token{}, vm.NewError(vm.ErrUnknownToken, pos, "unexpected %s", lx)
}

// name resolves an identifier: word operators first, then keywords, then
// symbols, which are created on first use.
func (b *builder) name(s string, pos vm.Position) (vm.Token, error) {
	if op := vm.LookupOperator(s); op != nil && op.IsWord() {
		return vm.OperatorToken(op, pos), nil
	}
	if kw := vm.LookupKeyword(s); kw != nil {
		return vm.KeywordToken(kw, pos), nil
	}
	sym, _, err := b.env.Symbols.Create(s)
	if err != nil {
		var ierr *vm.Error
		if errors.As(err, &ierr) && !ierr.Pos.IsValid() {
			ierr.Pos = pos
		}
		return vm.Token{}, err
	}
	return vm.SymbolToken(sym, pos), nil
}

// discard destroys every list still under construction.
func (b *builder) discard() {
	a := b.env.Arena
	a.DestroyList(b.cur.head)
	for _, l := range b.stack {
		a.DestroyList(l.head)
	}
	b.cur, b.stack = list{}, nil
}

func numberError(err error, pos vm.Position, lit string) error {
	if errors.Is(err, strconv.ErrRange) {
		return vm.NewError(vm.ErrCastFailed, pos, "number %s is out of range", lit)
	}
	return vm.NewError(vm.ErrUnknownToken, pos, "malformed number %s", lit)
}
