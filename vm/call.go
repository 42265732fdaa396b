package vm

// ---------------------------------------------------------------------------
// Call operator
// ---------------------------------------------------------------------------

// evalCall applies the callee on the left of the parenthesis group at h to
// the group's value. The result replaces the group and the callee slot is
// released.
func (e *Env) evalCall(rg evalRange, h Handle) error {
	a := e.Arena
	pos := a.Get(h).Pos
	callee := a.Left(h)
	if !rg.contains(callee) || !a.Get(callee).IsOperand() {
		return NewError(ErrOperandMissing, pos, "call without callee")
	}

	if err := e.evalParen(h); err != nil {
		return err
	}
	if err := e.evalParen(callee); err != nil {
		return err
	}

	c := a.Get(callee)
	var err error
	switch c.Kind {
	case TokenSymbol:
		if c.Sym.Res == nil {
			return NewError(ErrUninitializedSymbol, c.Pos, "%s", c.Sym)
		}
		err = e.callResource(c.Sym.Res, h)
	case TokenResource:
		err = e.callResource(c.Res, h)
	case TokenTuple:
		err = e.indexTuple(callee, h)
	default:
		err = NewError(ErrNotCallable, c.Pos, "%s", e.describe(callee))
	}
	if err != nil {
		return e.located(err, pos)
	}

	a.unlink(callee)
	a.Release(callee)
	return nil
}

// callResource dispatches a call on the kind of res. args holds the
// evaluated argument group and receives the result.
func (e *Env) callResource(res *Resource, args Handle) error {
	switch res.Kind {
	case ResNative:
		tok, err := res.Fn(e, args)
		if err != nil {
			return err
		}
		e.Arena.Set(args, tok)
		return nil
	case ResIntArray, ResFloatArray:
		i, err := e.index(args, res.Len())
		if err != nil {
			return err
		}
		if res.Kind == ResIntArray {
			e.Arena.Set(args, NumberToken(IntNumber(res.Ints[i])))
		} else {
			e.Arena.Set(args, NumberToken(FloatNumber(res.Floats[i])))
		}
		return nil
	}
	return NewError(ErrNotCallable, Position{}, "%s resource", res.Kind)
}

// indexTuple replaces args with a copy of the selected element of the
// tuple at callee.
func (e *Env) indexTuple(callee, args Handle) error {
	a := e.Arena
	children := a.Get(callee).Children
	n := 0
	if !children.IsNil() {
		n = a.Len(children)
	}
	i, err := e.index(args, n)
	if err != nil {
		return err
	}
	elem := a.Begin(children)
	for ; i > 0; i-- {
		elem = a.Right(elem)
	}
	return a.Copy(args, elem)
}

// index reads a 0-based Int index from args and checks it against n.
func (e *Env) index(args Handle, n int) (int, error) {
	num, err := e.NumberOf(args)
	if err != nil {
		return 0, err
	}
	if num.Kind != Int {
		return 0, NewError(ErrBadIndex, Position{}, "index must be an Int, got %s", num.Kind)
	}
	if num.I < 0 || num.I >= int64(n) {
		return 0, NewError(ErrBadIndex, Position{}, "index %d out of range [0, %d)", num.I, n)
	}
	return int(num.I), nil
}
