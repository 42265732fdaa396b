// Package stdlib provides the standard native functions of jbasic.
package stdlib

import (
	"errors"
	"fmt"
	"io"

	"github.com/tliron/commonlog"

	"github.com/chazu/jbasic/vm"
)

var log = commonlog.GetLogger("jbasic.stdlib")

type native struct {
	name string
	fn   vm.NativeFunc
}

var natives = []native{
	{"HWTEST", hwTest},
	{"GETCHAR", getChar},
	{"PUTCHAR", putChar},
	{"DIM", dim(vm.ResIntArray)},
	{"FDIM", dim(vm.ResFloatArray)},
	{"LEN", length},
	{"SET", set},
}

// Names returns the names Register binds, in registration order.
func Names() []string {
	out := make([]string, len(natives))
	for i, n := range natives {
		out[i] = n.name
	}
	return out
}

// Register binds every standard native in e.
func Register(e *vm.Env) error {
	for _, n := range natives {
		if _, err := e.RegisterNative(n.name, n.fn); err != nil {
			return fmt.Errorf("registering %s: %w", n.name, err)
		}
	}
	log.Debugf("registered %d natives", len(natives))
	return nil
}

func arity(e *vm.Env, name string, args vm.Handle, n int) ([]vm.Handle, error) {
	got := e.Args(args)
	if len(got) != n {
		return nil, vm.NewError(vm.ErrBadArgument, vm.Position{}, "%s takes %d arguments, got %d", name, n, len(got))
	}
	return got, nil
}

func empty() vm.Token {
	return vm.TupleToken(vm.Nil)
}

func hwTest(e *vm.Env, args vm.Handle) (vm.Token, error) {
	if _, err := arity(e, "HWTEST", args, 0); err != nil {
		return vm.Token{}, err
	}
	if _, err := fmt.Fprintln(e.Output(), "Hello world!"); err != nil {
		return vm.Token{}, err
	}
	return empty(), nil
}

// getChar returns the next input byte, or -1 at end of input.
func getChar(e *vm.Env, args vm.Handle) (vm.Token, error) {
	if _, err := arity(e, "GETCHAR", args, 0); err != nil {
		return vm.Token{}, err
	}
	b, err := e.Input().ReadByte()
	if errors.Is(err, io.EOF) {
		return vm.NumberToken(vm.IntNumber(-1)), nil
	}
	if err != nil {
		return vm.Token{}, err
	}
	return vm.NumberToken(vm.IntNumber(int64(b))), nil
}

func putChar(e *vm.Env, args vm.Handle) (vm.Token, error) {
	in, err := arity(e, "PUTCHAR", args, 1)
	if err != nil {
		return vm.Token{}, err
	}
	c, err := e.IntArg(in[0])
	if err != nil {
		return vm.Token{}, err
	}
	if c < 0 || c > 255 {
		return vm.Token{}, vm.NewError(vm.ErrBadArgument, vm.Position{}, "PUTCHAR(%d) is not a byte", c)
	}
	if _, err := e.Output().Write([]byte{byte(c)}); err != nil {
		return vm.Token{}, err
	}
	return vm.NumberToken(vm.IntNumber(c)), nil
}

func dim(kind vm.ResourceKind) vm.NativeFunc {
	return func(e *vm.Env, args vm.Handle) (vm.Token, error) {
		in, err := arity(e, "DIM", args, 1)
		if err != nil {
			return vm.Token{}, err
		}
		n, err := e.IntArg(in[0])
		if err != nil {
			return vm.Token{}, err
		}
		r, err := e.NewArray(kind, n)
		if err != nil {
			return vm.Token{}, err
		}
		return vm.ResourceToken(r), nil
	}
}

// length counts the elements of a tuple or array, or the bytes of a
// string. Several arguments count as one tuple.
func length(e *vm.Env, args vm.Handle) (vm.Token, error) {
	t := e.Arena.Get(args)
	var n int
	switch t.Kind {
	case vm.TokenTuple:
		n = len(e.Args(args))
	case vm.TokenString:
		n = len(t.Text.String())
	default:
		r, err := e.ResourceArg(args)
		if err != nil {
			return vm.Token{}, err
		}
		if r.Kind == vm.ResNumber || r.Kind == vm.ResNative {
			return vm.Token{}, vm.NewError(vm.ErrBadArgument, vm.Position{}, "LEN of %s", r.Kind)
		}
		n = r.Len()
	}
	return vm.NumberToken(vm.IntNumber(int64(n))), nil
}

// set stores v at index i of the array bound to a, converting v to the
// array's element type.
func set(e *vm.Env, args vm.Handle) (vm.Token, error) {
	in, err := arity(e, "SET", args, 3)
	if err != nil {
		return vm.Token{}, err
	}
	r, err := e.ResourceArg(in[0])
	if err != nil {
		return vm.Token{}, err
	}
	if r.Kind != vm.ResIntArray && r.Kind != vm.ResFloatArray {
		return vm.Token{}, vm.NewError(vm.ErrBadArgument, vm.Position{}, "SET on %s", r.Kind)
	}
	i, err := e.IntArg(in[1])
	if err != nil {
		return vm.Token{}, err
	}
	if i < 0 || i >= int64(r.Len()) {
		return vm.Token{}, vm.NewError(vm.ErrBadIndex, vm.Position{}, "index %d out of range [0, %d)", i, r.Len())
	}
	v, err := e.NumberOf(in[2])
	if err != nil {
		return vm.Token{}, err
	}
	if r.Kind == vm.ResIntArray {
		v = v.Cast(vm.Int)
		r.Ints[i] = v.I
	} else {
		v = v.Cast(vm.Float)
		r.Floats[i] = v.F
	}
	return vm.NumberToken(v), nil
}
