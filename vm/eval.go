package vm

import (
	"cmp"
	"slices"
)

// ---------------------------------------------------------------------------
// Evaluator
//
// Eval reduces a range of a token list to a single token in place. Operator
// arity is resolved from adjacency, operators are ordered by level,
// category and position, and each one writes its result into its own slot
// while its operand slots are released.
// ---------------------------------------------------------------------------

// evalRange is bounded by the tokens just outside it. Either bound may be
// Nil at the edge of a list. Neither bound is modified during evaluation.
type evalRange struct {
	before Handle
	end    Handle
}

func (rg evalRange) contains(h Handle) bool {
	return !h.IsNil() && h != rg.before && h != rg.end
}

// evalEntry is one operator scheduled for evaluation.
type evalEntry struct {
	h    Handle
	op   *Operator
	pos  int
	call bool
}

// Eval evaluates the range [begin, end) of a list and returns the single
// token it collapses to, or Nil for an empty range. Tokens outside the
// range are not touched.
func (e *Env) Eval(begin, end Handle) (Handle, error) {
	if begin.IsNil() || begin == end {
		return Nil, nil
	}
	a := e.Arena
	rg := evalRange{before: a.Left(begin), end: end}

	e.resolveArity(rg, begin)

	var buf [MaxEvalOperators]evalEntry
	entries, err := e.collect(rg, begin, buf[:0])
	if err != nil {
		return Nil, err
	}
	sortEntries(entries)

	// anchor is always a live token inside the range.
	anchor := begin
	for _, ent := range entries {
		if !a.Valid(ent.h) {
			continue
		}
		t := a.Get(ent.h)
		switch {
		case ent.call && t.Kind == TokenParen:
			err = e.evalCall(rg, ent.h)
		case !ent.call && t.Kind == TokenOperator:
			err = e.evalOperator(rg, ent.h)
		default:
			// Consumed earlier as an attached unary operator.
			continue
		}
		if err != nil {
			return Nil, err
		}
		anchor = ent.h
	}

	first := a.Begin(anchor)
	if !rg.before.IsNil() {
		first = a.Right(rg.before)
	}
	if next := a.Right(first); rg.contains(next) {
		return Nil, NewError(ErrMissingOperator, a.Get(next).Pos, "unexpected %s", e.describe(next))
	}
	// A lone group, as in "(1 + 2)", still has to be reduced.
	if err := e.evalParen(first); err != nil {
		return Nil, err
	}
	return first, nil
}

// resolveArity rebinds binary operators that lack an operand on one side to
// their fallback descriptor when the fallback takes the operand present.
func (e *Env) resolveArity(rg evalRange, begin Handle) {
	a := e.Arena
	for h := begin; rg.contains(h); h = a.Right(h) {
		t := a.Get(h)
		if t.Kind != TokenOperator {
			continue
		}
		t.resolved = nil
		fb := t.Op.Fallback
		if fb == nil || t.Op.Arity.IsUnary() {
			continue
		}
		hasLeft, hasRight := e.hasLeft(rg, h), e.hasRight(rg, h)
		switch {
		case !hasLeft && hasRight && fb.Arity == Prefix:
			t.resolved = fb
		case hasLeft && !hasRight && fb.Arity == Postfix:
			t.resolved = fb
		}
	}
}

// hasLeft reports whether the operator at h has something on its left that
// yields a value: an operand or a postfix operator.
func (e *Env) hasLeft(rg evalRange, h Handle) bool {
	l := e.Arena.Left(h)
	if !rg.contains(l) {
		return false
	}
	t := e.Arena.Get(l)
	return t.IsOperand() || t.canBe(Postfix)
}

// hasRight reports whether the operator at h has something on its right
// that yields a value: an operand or a prefix operator.
func (e *Env) hasRight(rg evalRange, h Handle) bool {
	r := e.Arena.Right(h)
	if !rg.contains(r) {
		return false
	}
	t := e.Arena.Get(r)
	return t.IsOperand() || t.canBe(Prefix)
}

// collect gathers the operators of the range, including parenthesis groups
// that follow an operand and therefore act as calls.
func (e *Env) collect(rg evalRange, begin Handle, entries []evalEntry) ([]evalEntry, error) {
	a := e.Arena
	pos := 0
	for h := begin; rg.contains(h); h = a.Right(h) {
		t := a.Get(h)
		var ent evalEntry
		switch {
		case t.Kind == TokenOperator:
			ent = evalEntry{h: h, op: t.Operator(), pos: pos}
		case t.Kind == TokenParen && rg.contains(t.l) && a.Get(t.l).IsOperand():
			ent = evalEntry{h: h, op: callOperator, pos: pos, call: true}
		default:
			pos++
			continue
		}
		if len(entries) == MaxEvalOperators {
			return nil, NewError(ErrTooManyOperators, t.Pos, "more than %d in one expression", MaxEvalOperators)
		}
		entries = append(entries, ent)
		pos++
	}
	return entries, nil
}

// sortEntries orders operators by level (highest first), then category,
// then position: left to right for postfix and left-associative operators,
// right to left for prefix and right-associative ones.
func sortEntries(entries []evalEntry) {
	slices.SortFunc(entries, func(x, y evalEntry) int {
		if c := cmp.Compare(y.op.Level, x.op.Level); c != 0 {
			return c
		}
		if c := cmp.Compare(x.op.Arity, y.op.Arity); c != 0 {
			return c
		}
		if x.op.Arity == Prefix || x.op.Arity == BinaryRL {
			return cmp.Compare(y.pos, x.pos)
		}
		return cmp.Compare(x.pos, y.pos)
	})
}

// evalOperator applies the operator at h to its neighbours, writes the
// result into h and releases the operand slots.
func (e *Env) evalOperator(rg evalRange, h Handle) error {
	a := e.Arena
	t := a.Get(h)
	op := t.Operator()
	pos := t.Pos

	var lhs, rhs Handle
	if op.Arity != Prefix {
		if !e.hasLeft(rg, h) {
			return NewError(ErrOperandMissing, pos, "%q needs a left operand", op.Str)
		}
		lhs = t.l
	}
	if op.Arity != Postfix {
		if !e.hasRight(rg, h) {
			return NewError(ErrOperandMissing, pos, "%q needs a right operand", op.Str)
		}
		rhs = t.r
	}

	if !lhs.IsNil() {
		if err := e.prepareOperand(rg, lhs, Postfix, op.EvalArgs); err != nil {
			return err
		}
	}
	if !rhs.IsNil() {
		if err := e.prepareOperand(rg, rhs, Prefix, op.EvalArgs); err != nil {
			return err
		}
	}

	if err := op.Handler(e, h, lhs, rhs); err != nil {
		return e.located(err, pos)
	}

	if !lhs.IsNil() {
		a.unlink(lhs)
		a.Release(lhs)
	}
	if !rhs.IsNil() {
		a.unlink(rhs)
		a.Release(rhs)
	}
	return nil
}

// prepareOperand evaluates a unary operator sitting where an operand is
// expected, then resolves the operand to a value when evalArgs is set.
func (e *Env) prepareOperand(rg evalRange, h Handle, attached Arity, evalArgs bool) error {
	t := e.Arena.Get(h)
	if t.Kind == TokenOperator {
		if t.Operator().Arity != attached {
			return NewError(ErrOperandMissing, t.Pos, "unexpected operator %q", t.Operator().Str)
		}
		if err := e.evalOperator(rg, h); err != nil {
			return err
		}
	}
	if !evalArgs {
		return nil
	}
	return e.resolveValue(h)
}

// resolveValue reduces the operand at h in place: a parenthesis group is
// evaluated, a one-element tuple is unwrapped and a symbol bound to a
// number or string is replaced by its value. Unbound and non-scalar
// symbols are left for the handler to reject.
func (e *Env) resolveValue(h Handle) error {
	a := e.Arena
	t := a.Get(h)
	switch t.Kind {
	case TokenParen:
		if err := e.evalParen(h); err != nil {
			return err
		}
		return e.resolveValue(h)
	case TokenTuple:
		c := t.Children
		if !c.IsNil() && a.Len(c) == 1 {
			a.Move(h, a.Begin(c))
			return e.resolveValue(h)
		}
	case TokenSymbol:
		res := t.Sym.Res
		if res == nil {
			return nil
		}
		switch res.Kind {
		case ResNumber:
			a.Set(h, NumberToken(res.Num))
		case ResString:
			a.Set(h, StringToken(res.Text))
		}
	}
	return nil
}

// evalParen evaluates the list owned by the parenthesis group at h and
// replaces the group with the result. An empty group becomes an empty
// tuple.
func (e *Env) evalParen(h Handle) error {
	a := e.Arena
	t := a.Get(h)
	if t.Kind != TokenParen {
		return nil
	}
	if t.Children.IsNil() {
		a.Set(h, TupleToken(Nil))
		return nil
	}
	res, err := e.Eval(a.Begin(t.Children), Nil)
	if err != nil {
		return err
	}
	// The old head may have been consumed; res is now the whole list.
	a.Get(h).Children = res
	if res.IsNil() {
		a.Set(h, TupleToken(Nil))
		return nil
	}
	a.Move(h, res)
	return nil
}

// located attaches pos to an error that lacks a position.
func (e *Env) located(err error, pos Position) error {
	if ierr, ok := err.(*Error); ok {
		if !ierr.Pos.IsValid() {
			ierr.Pos = pos
		}
		return ierr
	}
	if _, ok := sentinelKinds[err]; ok {
		return NewError(err, pos, "")
	}
	return err
}

// describe names the token at h for diagnostics.
func (e *Env) describe(h Handle) string {
	t := e.Arena.Get(h)
	switch t.Kind {
	case TokenSymbol:
		return "symbol " + t.Sym.String()
	case TokenNumber:
		return "number " + t.Num.String()
	case TokenString:
		return "string " + t.Text.String()
	case TokenOperator:
		return "operator " + t.Operator().Str
	case TokenKeyword:
		return "keyword " + t.Kw.Str
	}
	return t.Kind.String()
}
