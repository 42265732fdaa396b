package compiler

import (
	"github.com/chazu/jbasic/vm"
)

// Check reports the problems in src that can be found without running it:
// lexical errors, unbalanced parentheses and blocks that are never
// closed. Unlike Build it keeps going after an error and needs no
// environment.
func Check(src string) []error {
	var errs []error
	var parens []Position
	var blocks []Token

	for _, lx := range Tokenize(src) {
		switch lx.Type {
		case TokenError:
			errs = append(errs, lx.Error())

		case TokenLParen:
			parens = append(parens, lx.Pos)

		case TokenRParen:
			if len(parens) == 0 {
				errs = append(errs, vm.NewError(vm.ErrUnmatchedParen, lx.Pos.VM(), ") without ("))
				continue
			}
			parens = parens[:len(parens)-1]

		case TokenDelimiter, TokenEOF:
			for _, p := range parens {
				errs = append(errs, vm.NewError(vm.ErrUnmatchedParen, p.VM(), "( is not closed before end of instruction"))
			}
			parens = parens[:0]

		case TokenIdentifier:
			kw := vm.LookupKeyword(lx.Literal)
			if kw == nil {
				continue
			}
			switch level := kw.Resolve().Level; {
			case level > 0:
				blocks = append(blocks, lx)
			case level < 0 && len(blocks) > 0:
				blocks = blocks[:len(blocks)-1]
			}
		}
	}

	for _, open := range blocks {
		errs = append(errs, vm.NewError(vm.ErrMissingEnd, open.Pos.VM(), "%s is never closed", vm.LookupKeyword(open.Literal).Resolve().Str))
	}
	return errs
}
