package vm

import (
	"errors"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// ErrorKind classifies an interpreter error.
type ErrorKind int

const (
	// KindSyntax errors come from the lexer boundary.
	KindSyntax ErrorKind = iota
	// KindStructural errors abort the current evaluation or run.
	KindStructural
	// KindCapacity errors report an exhausted fixed-size pool.
	KindCapacity
	// KindType errors report a value of the wrong shape.
	KindType
)

var errorKindNames = map[ErrorKind]string{
	KindSyntax:     "syntax",
	KindStructural: "structural",
	KindCapacity:   "capacity",
	KindType:       "type",
}

// String returns the category name.
func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Syntax errors.
var (
	ErrUnmatchedQuote = errors.New("unmatched quote")
	ErrUnmatchedParen = errors.New("unmatched parenthesis")
	ErrUnknownToken   = errors.New("unrecognized token")
)

// Structural errors.
var (
	ErrOperandMissing   = errors.New("operand missing")
	ErrMissingOperator  = errors.New("missing operator")
	ErrTooManyOperators = errors.New("too many operators")
	ErrMissingEnd       = errors.New("missing END")
	ErrStepBudget       = errors.New("step budget exceeded")
)

// Capacity errors.
var (
	ErrPoolEmpty        = errors.New("token pool empty")
	ErrTextOverflow     = errors.New("text pool overflow")
	ErrSymbolOverflow   = errors.New("symbol table overflow")
	ErrResourceOverflow = errors.New("resource manager overflow")
)

// Type errors.
var (
	ErrCastFailed          = errors.New("cast failed")
	ErrBadAssign           = errors.New("bad assignment")
	ErrBadCompare          = errors.New("bad comparison")
	ErrNotCallable         = errors.New("not callable")
	ErrBadIndex            = errors.New("bad index")
	ErrNotScalar           = errors.New("cannot evaluate non-scalar value")
	ErrUninitializedSymbol = errors.New("uninitialized symbol")
	ErrDivisionByZero      = errors.New("division by zero")
	ErrBadArgument         = errors.New("bad argument")
)

var sentinelKinds = map[error]ErrorKind{
	ErrUnmatchedQuote: KindSyntax,
	ErrUnmatchedParen: KindSyntax,
	ErrUnknownToken:   KindSyntax,

	ErrOperandMissing:   KindStructural,
	ErrMissingOperator:  KindStructural,
	ErrTooManyOperators: KindStructural,
	ErrMissingEnd:       KindStructural,
	ErrStepBudget:       KindStructural,

	ErrPoolEmpty:        KindCapacity,
	ErrTextOverflow:     KindCapacity,
	ErrSymbolOverflow:   KindCapacity,
	ErrResourceOverflow: KindCapacity,

	ErrCastFailed:          KindType,
	ErrBadAssign:           KindType,
	ErrBadCompare:          KindType,
	ErrNotCallable:         KindType,
	ErrBadIndex:            KindType,
	ErrNotScalar:           KindType,
	ErrUninitializedSymbol: KindType,
	ErrDivisionByZero:      KindType,
	ErrBadArgument:         KindType,
}

// Position is a source location. Line and Column are 1-based; the zero
// Position means the location is unknown.
type Position struct {
	Line   int
	Column int
}

// IsValid reports whether the position refers to a source location.
func (p Position) IsValid() bool {
	return p.Line > 0
}

// String formats the position as line:column.
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Error is the structured error returned by every fallible interpreter
// operation. Err is always one of the package sentinels, so callers can
// test with errors.Is.
type Error struct {
	Kind ErrorKind
	Err  error
	Msg  string
	Pos  Position
}

// NewError builds an Error around one of the package sentinels.
func NewError(err error, pos Position, format string, args ...any) *Error {
	e := &Error{
		Kind: sentinelKinds[err],
		Err:  err,
		Pos:  pos,
	}
	if format != "" {
		e.Msg = fmt.Sprintf(format, args...)
	}
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Pos.IsValid() {
		b.WriteString(e.Pos.String())
		b.WriteString(": ")
	}
	b.WriteString(e.Err.Error())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the category of err. The second result is false when err
// did not originate in the interpreter.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	for sentinel, kind := range sentinelKinds {
		if errors.Is(err, sentinel) {
			return kind, true
		}
	}
	return 0, false
}

// PositionOf returns the source position carried by err, if any.
func PositionOf(err error) (Position, bool) {
	var e *Error
	if errors.As(err, &e) && e.Pos.IsValid() {
		return e.Pos, true
	}
	return Position{}, false
}
