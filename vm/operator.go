package vm

import (
	"math"
	"strings"
)

// ---------------------------------------------------------------------------
// Operator descriptors
// ---------------------------------------------------------------------------

// Arity is the arity and associativity of an operator. The declaration
// order is also the evaluation order between categories of equal level.
type Arity uint8

const (
	Postfix Arity = iota
	Prefix
	BinaryLR
	BinaryRL
)

// IsUnary reports whether a takes a single operand.
func (a Arity) IsUnary() bool {
	return a == Postfix || a == Prefix
}

// OpHandler computes an operator. lhs and rhs are the operand slots (Nil
// for the absent side of a unary operator); the result must be written
// into res, the operator's own slot.
type OpHandler func(e *Env, res, lhs, rhs Handle) error

// Operator is an immutable operator descriptor.
type Operator struct {
	Str   string
	Level int
	Arity Arity
	// EvalArgs resolves operands to values before Handler runs.
	EvalArgs bool
	// Fallback is the descriptor used when adjacency shows that one of
	// the operands required by Arity is absent.
	Fallback *Operator
	Handler  OpHandler
}

// IsWord reports whether the operator is spelled with letters.
func (op *Operator) IsWord() bool {
	return op.Str != "" && isLetter(op.Str[0])
}

// MaxEvalOperators is the size of the evaluation buffer: the most operators
// a single range may contain.
const MaxEvalOperators = 64

// CallLevel is the precedence of the call operator, above every table entry.
const CallLevel = 7

// callOperator describes a parenthesis group applied to the operand on its
// left. The evaluator dispatches calls itself.
var callOperator = &Operator{Str: "()", Level: CallLevel, Arity: Postfix}

var opNegate = &Operator{Str: "-", Level: 6, Arity: Prefix, EvalArgs: true, Handler: opNeg}

var operators = []*Operator{
	{Str: "=", Level: 0, Arity: BinaryRL, Handler: opAssign},
	{Str: ",", Level: 1, Arity: BinaryLR, Handler: opComma},
	{Str: "&&", Level: 2, Arity: BinaryLR, Handler: logical(true)},
	{Str: "AND", Level: 2, Arity: BinaryLR, Handler: logical(true)},
	{Str: "||", Level: 2, Arity: BinaryLR, Handler: logical(false)},
	{Str: "OR", Level: 2, Arity: BinaryLR, Handler: logical(false)},
	{Str: "==", Level: 3, Arity: BinaryLR, EvalArgs: true, Handler: comparison(func(c int) bool { return c == 0 })},
	{Str: "!=", Level: 3, Arity: BinaryLR, EvalArgs: true, Handler: comparison(func(c int) bool { return c != 0 })},
	{Str: "<", Level: 3, Arity: BinaryLR, EvalArgs: true, Handler: comparison(func(c int) bool { return c < 0 })},
	{Str: ">", Level: 3, Arity: BinaryLR, EvalArgs: true, Handler: comparison(func(c int) bool { return c > 0 })},
	{Str: "<=", Level: 3, Arity: BinaryLR, EvalArgs: true, Handler: comparison(func(c int) bool { return c <= 0 })},
	{Str: ">=", Level: 3, Arity: BinaryLR, EvalArgs: true, Handler: comparison(func(c int) bool { return c >= 0 })},
	{Str: "+", Level: 4, Arity: BinaryLR, EvalArgs: true, Handler: arithmetic(
		addInt,
		func(x, y float64) float64 { return x + y })},
	{Str: "-", Level: 4, Arity: BinaryLR, EvalArgs: true, Fallback: opNegate, Handler: arithmetic(
		subInt,
		func(x, y float64) float64 { return x - y })},
	{Str: "*", Level: 5, Arity: BinaryLR, EvalArgs: true, Handler: arithmetic(
		mulInt,
		func(x, y float64) float64 { return x * y })},
	{Str: "/", Level: 5, Arity: BinaryLR, EvalArgs: true, Handler: arithmetic(
		func(x, y int64) (int64, error) {
			if y == 0 {
				return 0, ErrDivisionByZero
			}
			if x == math.MinInt64 && y == -1 {
				return 0, intOverflow()
			}
			return x / y, nil
		},
		func(x, y float64) float64 { return x / y })},
	{Str: "%", Level: 5, Arity: BinaryLR, EvalArgs: true, Handler: arithmetic(
		func(x, y int64) (int64, error) {
			if y == 0 {
				return 0, ErrDivisionByZero
			}
			return x % y, nil
		},
		math.Mod)},
	{Str: "!", Level: 6, Arity: Prefix, EvalArgs: true, Handler: opNot},
	{Str: "NOT", Level: 6, Arity: Prefix, EvalArgs: true, Handler: opNot},
}

// Operators returns the operator table in declaration order.
func Operators() []*Operator {
	out := make([]*Operator, len(operators))
	copy(out, operators)
	return out
}

// LookupOperator returns the operator spelled s. Word operators match
// without regard to case.
func LookupOperator(s string) *Operator {
	for _, op := range operators {
		if op.Str == s || (op.IsWord() && strings.EqualFold(op.Str, s)) {
			return op
		}
	}
	return nil
}

// IsOperatorChar reports whether c can appear in a symbolic operator.
func IsOperatorChar(c byte) bool {
	return strings.IndexByte("=<>!,&|+-*/%", c) >= 0
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}
