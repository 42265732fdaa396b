package vm

// ---------------------------------------------------------------------------
// Native functions
// ---------------------------------------------------------------------------

// NativeFunc implements a function callable from scripts. args is the
// evaluated argument group: a single token, a tuple of arguments, or an
// empty tuple. The returned token becomes the call's result; ownership of
// any children or resource reference it carries passes to the caller.
type NativeFunc func(e *Env, args Handle) (Token, error)

// RegisterNative binds name to fn. An existing binding of name is
// released.
func (e *Env) RegisterNative(name string, fn NativeFunc) (*Symbol, error) {
	sym, _, err := e.Symbols.Create(name)
	if err != nil {
		return nil, err
	}
	r, err := e.Resources.Create(ResNative)
	if err != nil {
		return nil, err
	}
	r.Fn = fn
	r.Name = sym.String()
	e.Resources.RemoveRef(sym.Res)
	sym.Res = r
	return sym, nil
}

// Natives returns the symbols bound to native functions.
func (e *Env) Natives() []*Symbol {
	var out []*Symbol
	for _, s := range e.Symbols.All() {
		if s.Res != nil && s.Res.Kind == ResNative {
			out = append(out, s)
		}
	}
	return out
}

// Args splits a call's argument group into its arguments.
func (e *Env) Args(args Handle) []Handle {
	if args.IsNil() {
		return nil
	}
	a := e.Arena
	t := a.Get(args)
	if t.Kind != TokenTuple {
		return []Handle{args}
	}
	var out []Handle
	for c := a.Begin(t.Children); !c.IsNil(); c = a.Right(c) {
		out = append(out, c)
	}
	return out
}

// IntArg reads an argument as an Int.
func (e *Env) IntArg(h Handle) (int64, error) {
	n, err := e.NumberOf(h)
	if err != nil {
		return 0, err
	}
	return n.Cast(Int).I, nil
}

// StringArg reads an argument as a string.
func (e *Env) StringArg(h Handle) (string, error) {
	if s, ok := e.textOf(h); ok {
		return s, nil
	}
	return "", NewError(ErrBadArgument, e.Arena.Get(h).Pos, "%s is not a string", e.describe(h))
}

// ResourceArg returns the resource behind a symbol or resource argument.
func (e *Env) ResourceArg(h Handle) (*Resource, error) {
	t := e.Arena.Get(h)
	switch t.Kind {
	case TokenSymbol:
		if t.Sym.Res == nil {
			return nil, NewError(ErrUninitializedSymbol, t.Pos, "%s", t.Sym)
		}
		return t.Sym.Res, nil
	case TokenResource:
		return t.Res, nil
	}
	return nil, NewError(ErrBadArgument, t.Pos, "%s is not a resource", e.describe(h))
}

// NewArray creates a zeroed array resource of length n. The caller owns
// the returned reference.
func (e *Env) NewArray(kind ResourceKind, n int64) (*Resource, error) {
	if kind != ResIntArray && kind != ResFloatArray {
		return nil, NewError(ErrBadArgument, Position{}, "%s is not an array kind", kind)
	}
	if n < 0 {
		return nil, NewError(ErrBadArgument, Position{}, "negative array length %d", n)
	}
	if n > int64(e.arrayLen) {
		return nil, NewError(ErrBadArgument, Position{}, "array length %d exceeds the limit of %d", n, e.arrayLen)
	}
	r, err := e.Resources.Create(kind)
	if err != nil {
		return nil, err
	}
	if kind == ResIntArray {
		r.Ints = make([]int64, n)
	} else {
		r.Floats = make([]float64, n)
	}
	return r, nil
}
