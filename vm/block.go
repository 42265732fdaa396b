package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Block dispatcher
//
// Programs are run straight from the token list. Every instruction is
// evaluated on a disposable copy, so the program list is never consumed
// and loop bodies can be run any number of times.
// ---------------------------------------------------------------------------

// RunBlock executes the instructions in [begin, end).
func (e *Env) RunBlock(begin, end Handle) error {
	a := e.Arena
	for cur := begin; !cur.IsNil() && cur != end; {
		if err := e.checkContext(); err != nil {
			return err
		}
		t := a.Get(cur)
		switch t.Kind {
		case TokenDelimiter:
			cur = t.r
			continue
		case TokenKeyword:
			kw := t.Kw.Resolve()
			if kw.Handler == nil {
				cur = t.r
				continue
			}
			next, err := kw.Handler(e, cur, end)
			if err != nil {
				return err
			}
			cur = next
			continue
		}

		_, scratch, next, err := e.evalInstruction(cur, end)
		if err != nil {
			return err
		}
		a.DestroyList(scratch)
		cur = next
	}
	return nil
}

// evalInstruction evaluates a copy of the instruction starting at begin,
// which runs up to the next delimiter or keyword. It returns the result,
// the scratch list owning it (to be destroyed by the caller) and the token
// that ended the instruction.
func (e *Env) evalInstruction(begin, end Handle) (res, scratch, next Handle, err error) {
	a := e.Arena
	next = begin
	for !next.IsNil() && next != end && !a.Get(next).isBoundary() {
		next = a.Right(next)
	}

	// The scratch list starts with a delimiter so it stays reachable even
	// when evaluation fails halfway.
	scratch, err = a.InsertAfter(Nil, DelimiterToken(Position{}))
	if err != nil {
		return Nil, Nil, next, err
	}
	body, err := a.CopyRange(begin, next)
	if err != nil {
		a.DestroyList(scratch)
		return Nil, Nil, next, err
	}
	a.Concat(scratch, body)

	res, err = e.Eval(a.Right(scratch), Nil)
	if err != nil {
		a.DestroyList(scratch)
		return Nil, Nil, next, err
	}
	return res, scratch, next, nil
}

// FindBlockEnd returns the keyword closing the block opened at begin.
func (e *Env) FindBlockEnd(begin Handle) (Handle, error) {
	a := e.Arena
	level := 1
	for cur := a.Right(begin); !cur.IsNil(); cur = a.Right(cur) {
		t := a.Get(cur)
		if t.Kind != TokenKeyword {
			continue
		}
		level += t.Kw.Resolve().Level
		if level == 0 {
			return cur, nil
		}
	}
	t := a.Get(begin)
	name := "block"
	if t.Kind == TokenKeyword {
		name = t.Kw.Str
	}
	return Nil, NewError(ErrMissingEnd, t.Pos, "%s is never closed", name)
}

// findElse returns the ELSE belonging to the IF at begin, or Nil. The scan
// stops once the level drops below the IF's own.
func (e *Env) findElse(begin, end Handle) Handle {
	a := e.Arena
	level := 0
	for cur := a.Right(begin); !cur.IsNil() && cur != end; cur = a.Right(cur) {
		t := a.Get(cur)
		if t.Kind != TokenKeyword {
			continue
		}
		kw := t.Kw.Resolve()
		if kw.ID == KwElse && level == 0 {
			return cur
		}
		level += kw.Level
		if level < 0 {
			return Nil
		}
	}
	return Nil
}

// condition evaluates the instruction after the keyword at kw as a truth
// value and returns the token where the condition ended.
func (e *Env) condition(kw, end Handle) (bool, Handle, error) {
	res, scratch, next, err := e.evalInstruction(e.Arena.Right(kw), end)
	if err != nil {
		return false, next, err
	}
	defer e.Arena.DestroyList(scratch)
	if res.IsNil() {
		return false, next, NewError(ErrOperandMissing, e.Arena.Get(kw).Pos, "%s without condition", e.Arena.Get(kw).Kw.Str)
	}
	ok, err := e.TruthOf(res)
	return ok, next, err
}

func runIf(e *Env, kw, _ Handle) (Handle, error) {
	blockEnd, err := e.FindBlockEnd(kw)
	if err != nil {
		return Nil, err
	}
	ok, body, err := e.condition(kw, blockEnd)
	if err != nil {
		return Nil, err
	}
	elseH := e.findElse(kw, blockEnd)
	switch {
	case ok && elseH.IsNil():
		err = e.RunBlock(body, blockEnd)
	case ok:
		err = e.RunBlock(body, elseH)
	case !elseH.IsNil():
		err = e.RunBlock(e.Arena.Right(elseH), blockEnd)
	}
	if err != nil {
		return Nil, err
	}
	return e.Arena.Right(blockEnd), nil
}

func runWhile(e *Env, kw, _ Handle) (Handle, error) {
	blockEnd, err := e.FindBlockEnd(kw)
	if err != nil {
		return Nil, err
	}
	pos := e.Arena.Get(kw).Pos
	for {
		ok, body, err := e.condition(kw, blockEnd)
		if err != nil {
			return Nil, err
		}
		if !ok {
			break
		}
		if err := e.step(pos); err != nil {
			return Nil, err
		}
		if err := e.RunBlock(body, blockEnd); err != nil {
			return Nil, err
		}
	}
	return e.Arena.Right(blockEnd), nil
}

func runPrint(e *Env, kw, end Handle) (Handle, error) {
	res, scratch, next, err := e.evalInstruction(e.Arena.Right(kw), end)
	if err != nil {
		return Nil, err
	}
	defer e.Arena.DestroyList(scratch)

	line, err := e.formatPrint(res)
	if err != nil {
		return Nil, e.located(err, e.Arena.Get(kw).Pos)
	}
	if _, err := fmt.Fprintln(e.out, line); err != nil {
		return Nil, fmt.Errorf("print: %w", err)
	}
	return next, nil
}

// formatPrint renders a PRINT result. Tuple elements are tab-separated.
func (e *Env) formatPrint(h Handle) (string, error) {
	if h.IsNil() {
		return "", nil
	}
	a := e.Arena
	t := a.Get(h)
	if t.Kind != TokenTuple {
		v, err := e.ValueOf(h)
		if err != nil {
			return "", err
		}
		return v.String(), nil
	}
	var parts []string
	for c := a.Begin(t.Children); !c.IsNil(); c = a.Right(c) {
		v, err := e.ValueOf(c)
		if err != nil {
			return "", err
		}
		parts = append(parts, v.String())
	}
	return strings.Join(parts, "\t"), nil
}
