package vm

import (
	"cmp"
	"math"
	"strings"
)

// ---------------------------------------------------------------------------
// Operator handlers
// ---------------------------------------------------------------------------

// arithmetic builds a handler for a binary numeric operator. Operands are
// promoted to the larger kind; Bool arithmetic is done on Ints.
func arithmetic(fi func(x, y int64) (int64, error), ff func(x, y float64) float64) OpHandler {
	return func(e *Env, res, lhs, rhs Handle) error {
		x, err := e.NumberOf(lhs)
		if err != nil {
			return err
		}
		y, err := e.NumberOf(rhs)
		if err != nil {
			return err
		}
		kind := max(promote(x.Kind, y.Kind), Int)
		var n Number
		if kind == Float {
			n = FloatNumber(ff(x.Cast(Float).F, y.Cast(Float).F))
		} else {
			i, err := fi(x.Cast(Int).I, y.Cast(Int).I)
			if err != nil {
				return err
			}
			n = IntNumber(i)
		}
		e.Arena.Set(res, NumberToken(n))
		return nil
	}
}

// intOverflow reports an Int result outside the 64-bit range. The
// evaluator fills in the position.
func intOverflow() error {
	return NewError(ErrCastFailed, Position{}, "integer overflow")
}

func addInt(x, y int64) (int64, error) {
	r := x + y
	if (x^r)&(y^r) < 0 {
		return 0, intOverflow()
	}
	return r, nil
}

func subInt(x, y int64) (int64, error) {
	r := x - y
	if (x^y)&(x^r) < 0 {
		return 0, intOverflow()
	}
	return r, nil
}

func mulInt(x, y int64) (int64, error) {
	if x == 0 || y == 0 {
		return 0, nil
	}
	r := x * y
	if r/y != x || (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
		return 0, intOverflow()
	}
	return r, nil
}

func opNeg(e *Env, res, _, rhs Handle) error {
	x, err := e.NumberOf(rhs)
	if err != nil {
		return err
	}
	if x.Kind == Float {
		x.F = -x.F
	} else {
		if x.I == math.MinInt64 {
			return intOverflow()
		}
		x = IntNumber(-x.I)
	}
	e.Arena.Set(res, NumberToken(x))
	return nil
}

func opNot(e *Env, res, _, rhs Handle) error {
	x, err := e.NumberOf(rhs)
	if err != nil {
		return err
	}
	e.Arena.Set(res, NumberToken(BoolNumber(!x.Truth())))
	return nil
}

// comparison builds a handler that tests the three-way comparison of its
// operands.
func comparison(test func(c int) bool) OpHandler {
	return func(e *Env, res, lhs, rhs Handle) error {
		c, err := e.compare(lhs, rhs)
		if err != nil {
			return err
		}
		e.Arena.Set(res, NumberToken(BoolNumber(test(c))))
		return nil
	}
}

// compare orders two numbers or two strings.
func (e *Env) compare(lhs, rhs Handle) (int, error) {
	xs, lstr := e.textOf(lhs)
	ys, rstr := e.textOf(rhs)
	switch {
	case lstr && rstr:
		return strings.Compare(xs, ys), nil
	case lstr || rstr:
		return 0, NewError(ErrBadCompare, Position{}, "cannot compare %s with %s", e.describe(lhs), e.describe(rhs))
	}
	x, err := e.NumberOf(lhs)
	if err != nil {
		return 0, err
	}
	y, err := e.NumberOf(rhs)
	if err != nil {
		return 0, err
	}
	if promote(x.Kind, y.Kind) == Float {
		return cmp.Compare(x.Cast(Float).F, y.Cast(Float).F), nil
	}
	return cmp.Compare(x.I, y.I), nil
}

// logical builds a short-circuit handler. The right operand is only
// evaluated when the left one does not decide the result.
func logical(and bool) OpHandler {
	return func(e *Env, res, lhs, rhs Handle) error {
		x, err := e.NumberOf(lhs)
		if err != nil {
			return err
		}
		result := x.Truth()
		if result == and {
			y, err := e.NumberOf(rhs)
			if err != nil {
				return err
			}
			result = y.Truth()
		}
		e.Arena.Set(res, NumberToken(BoolNumber(result)))
		return nil
	}
}

// opComma builds tuples. Operands keep their identity, so a tuple of
// symbols can be assigned to.
func opComma(e *Env, res, lhs, rhs Handle) error {
	a := e.Arena
	if err := e.evalParen(lhs); err != nil {
		return err
	}
	if err := e.evalParen(rhs); err != nil {
		return err
	}
	lt, rt := a.Get(lhs), a.Get(rhs)

	switch {
	case lt.Kind == TokenTuple && rt.Kind == TokenTuple:
		lt.Children = a.Concat(lt.Children, rt.Children)
		rt.Children = Nil
		a.Move(res, lhs)
	case lt.Kind == TokenTuple:
		n, err := a.PushBack(lt.Children, Token{})
		if err != nil {
			return err
		}
		if lt.Children.IsNil() {
			lt.Children = n
		}
		a.Move(n, rhs)
		a.Move(res, lhs)
	case rt.Kind == TokenTuple:
		n, err := a.PushFront(rt.Children, Token{})
		if err != nil {
			return err
		}
		rt.Children = n
		a.Move(n, lhs)
		a.Move(res, rhs)
	default:
		first, err := a.InsertAfter(Nil, Token{})
		if err != nil {
			return err
		}
		second, err := a.InsertAfter(first, Token{})
		if err != nil {
			a.Release(first)
			return err
		}
		a.Move(first, lhs)
		a.Move(second, rhs)
		a.Set(res, TupleToken(first))
	}
	return nil
}

// opAssign binds the right operand to the symbol (or tuple of symbols) on
// the left. The result is the assigned value.
func opAssign(e *Env, res, lhs, rhs Handle) error {
	if err := e.evalParen(lhs); err != nil {
		return err
	}
	if err := e.evalParen(rhs); err != nil {
		return err
	}
	if err := e.assign(lhs, rhs); err != nil {
		return err
	}
	e.Arena.Move(res, rhs)
	return nil
}

// assign binds rhs to lhs. Two tuples are assigned element by element up
// to the shorter length.
func (e *Env) assign(lhs, rhs Handle) error {
	a := e.Arena
	lt, rt := a.Get(lhs), a.Get(rhs)
	if lt.Kind == TokenTuple && rt.Kind == TokenTuple {
		l, r := a.Begin(lt.Children), a.Begin(rt.Children)
		for !l.IsNil() && !r.IsNil() {
			if err := e.assign(l, r); err != nil {
				return err
			}
			l, r = a.Right(l), a.Right(r)
		}
		return nil
	}
	if lt.Kind != TokenSymbol {
		return NewError(ErrBadAssign, lt.Pos, "cannot assign to %s", e.describe(lhs))
	}
	return e.Assign(lt.Sym, rhs)
}

// Assign binds the value of the token at h to sym. Numbers and strings are
// stored as values; a symbol or resource token has its resource deep-copied.
func (e *Env) Assign(sym *Symbol, h Handle) error {
	t := e.Arena.Get(h)
	var src *Resource
	switch t.Kind {
	case TokenNumber:
		src = &Resource{Kind: ResNumber, Num: t.Num}
	case TokenString:
		src = &Resource{Kind: ResString, Text: t.Text}
	case TokenSymbol:
		if t.Sym.Res == nil {
			return NewError(ErrUninitializedSymbol, t.Pos, "%s", t.Sym)
		}
		src = t.Sym.Res
	case TokenResource:
		src = t.Res
	case TokenTuple, TokenParen:
		return NewError(ErrBadAssign, t.Pos, "cannot assign a tuple to %s", sym)
	default:
		return NewError(ErrBadAssign, t.Pos, "cannot assign %s to %s", e.describe(h), sym)
	}
	return e.bind(sym, src)
}

// bind stores a copy of src in sym's resource. A resource held only by sym
// is overwritten in place; a shared one is released and replaced.
func (e *Env) bind(sym *Symbol, src *Resource) error {
	dst := sym.Res
	if dst == src {
		return nil
	}
	if dst == nil || dst.RefCount != 1 {
		r, err := e.Resources.Create(src.Kind)
		if err != nil {
			return err
		}
		e.Resources.RemoveRef(dst)
		sym.Res = r
		dst = r
	}
	e.Resources.Copy(dst, src)
	return nil
}

// ---------------------------------------------------------------------------
// Conversions
// ---------------------------------------------------------------------------

// NumberOf reads the token at h as a number. Parenthesis groups are
// evaluated on demand and symbols are dereferenced.
func (e *Env) NumberOf(h Handle) (Number, error) {
	a := e.Arena
	t := a.Get(h)
	switch t.Kind {
	case TokenNumber:
		return t.Num, nil
	case TokenParen:
		if err := e.evalParen(h); err != nil {
			return Number{}, err
		}
		return e.NumberOf(h)
	case TokenTuple:
		if !t.Children.IsNil() && a.Len(t.Children) == 1 {
			return e.NumberOf(a.Begin(t.Children))
		}
	case TokenSymbol:
		if t.Sym.Res == nil {
			return Number{}, NewError(ErrUninitializedSymbol, t.Pos, "%s", t.Sym)
		}
		return resourceNumber(t.Sym.Res, t.Pos)
	case TokenResource:
		return resourceNumber(t.Res, t.Pos)
	}
	return Number{}, NewError(ErrCastFailed, t.Pos, "%s is not a number", e.describe(h))
}

func resourceNumber(r *Resource, pos Position) (Number, error) {
	switch r.Kind {
	case ResNumber:
		return r.Num, nil
	case ResString:
		return Number{}, NewError(ErrCastFailed, pos, "string is not a number")
	}
	return Number{}, NewError(ErrNotScalar, pos, "%s", r.Kind)
}

// textOf reads the token at h as a string, if it is one.
func (e *Env) textOf(h Handle) (string, bool) {
	t := e.Arena.Get(h)
	switch t.Kind {
	case TokenString:
		return t.Text.String(), true
	case TokenSymbol:
		if t.Sym.Res != nil && t.Sym.Res.Kind == ResString {
			return t.Sym.Res.Text.String(), true
		}
	case TokenResource:
		if t.Res.Kind == ResString {
			return t.Res.Text.String(), true
		}
	}
	return "", false
}

// TruthOf reads the token at h as a condition.
func (e *Env) TruthOf(h Handle) (bool, error) {
	if h.IsNil() {
		return false, NewError(ErrOperandMissing, Position{}, "empty condition")
	}
	n, err := e.NumberOf(h)
	if err != nil {
		return false, err
	}
	return n.Truth(), nil
}
