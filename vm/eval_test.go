package vm_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/chazu/jbasic/compiler"
	"github.com/chazu/jbasic/lib/stdlib"
	"github.com/chazu/jbasic/vm"
)

func load(t *testing.T, cfg vm.Config, src string) (*vm.Env, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	cfg.Output = out
	if cfg.Input == nil {
		cfg.Input = strings.NewReader("")
	}
	e, err := vm.NewEnv(cfg)
	if err != nil {
		t.Fatalf("NewEnv: %v", err)
	}
	t.Cleanup(e.Close)
	if err := stdlib.Register(e); err != nil {
		t.Fatalf("Register: %v", err)
	}
	head, err := compiler.Build(e, src)
	if err != nil {
		t.Fatalf("Build(%q): %v", src, err)
	}
	e.AppendProgram(head)
	return e, out
}

func TestEvalPrograms(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"precedence", "PRINT 2 + 3 * 4", "14\n"},
		{"parens", "PRINT (2 + 3) * 4", "20\n"},
		{"lone group", "PRINT (1 + 2)", "3\n"},
		{"chained assignment", "A = B = 5\nPRINT A, B", "5\t5\n"},
		{"binary minus then negation", "PRINT 3 - -2", "5\n"},
		{"negation chain", "A = 7\nPRINT -------(A * 2)", "-14\n"},
		{"even negation chain", "PRINT --4", "4\n"},
		{"float promotion", "PRINT 1 + 2.5 * 4", "11.0\n"},
		{"int division", "PRINT 7 / 2, 7 % 3", "3\t1\n"},
		{"float modulo", "PRINT 7.5 % 2", "1.5\n"},
		{"bool arithmetic", "PRINT (1 < 2) + 1", "2\n"},
		{"comparison", "PRINT 1 < 2, 2 <= 1, 3 == 3.0, 'a' != 'b'", "TRUE\tFALSE\tTRUE\tTRUE\n"},
		{"string compare", "S = 'abc'\nPRINT S < 'abd', S == 'abc'", "TRUE\tTRUE\n"},
		{"word operators", "PRINT 1 AND 0, 1 or 0, not 0", "FALSE\tTRUE\tTRUE\n"},
		{"short circuit and", "PRINT 0 && (Q + 1)", "FALSE\n"},
		{"short circuit or", "PRINT 1 || (Q + 1)", "TRUE\n"},
		{"tuple index", "PRINT (1, 2, 3)(1)", "2\n"},
		{"tuple assignment", "A, B = 1, 2\nPRINT B, A", "2\t1\n"},
		{"nested tuples flatten", "PRINT (1, 2), (3, 4)", "1\t2\t3\t4\n"},
		{"string print", "PRINT 'x', 1.5", "x\t1.5\n"},
		{"empty print", "PRINT", "\n"},
		{"case insensitive names", "count = 2\nPRINT COUNT * Count", "4\n"},
		{"semicolons", "A = 1; B = 2; PRINT A + B", "3\n"},
		{"remarks", "REM nothing here\nPRINT 1 REM trailing", "1\n"},
		{"assignment result", "PRINT A = 3", "3\n"},
		{
			"while loop",
			"I = 0\nWHILE I < 3 DO\nPRINT I\nI = I + 1\nENDWHILE",
			"0\n1\n2\n",
		},
		{
			"nested if else",
			"A = 5\nIF A > 3 THEN\n IF A > 10 THEN\n  PRINT 'big'\n ELSE\n  PRINT 'medium'\n ENDIF\nELSE\n PRINT 'small'\nENDIF\nPRINT 'done'",
			"medium\ndone\n",
		},
		{
			"if false without else",
			"IF 0\nPRINT 'no'\nEND\nPRINT 'yes'",
			"yes\n",
		},
		{
			"nested loops",
			"I = 0\nWHILE I < 2\nJ = 0\nWHILE J < 2\nPRINT I, J\nJ = J + 1\nENDWHILE\nI = I + 1\nENDWHILE",
			"0\t0\n0\t1\n1\t0\n1\t1\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e, out := load(t, vm.Config{}, tc.src)
			if err := e.Run(); err != nil {
				t.Fatalf("Run: %v", err)
			}
			if got := out.String(); got != tc.want {
				t.Errorf("output = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestEvalErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
		kind vm.ErrorKind
	}{
		{"missing operator", "PRINT 1 2", vm.ErrMissingOperator, vm.KindStructural},
		{"operand missing", "PRINT 1 +", vm.ErrOperandMissing, vm.KindStructural},
		{"too many operators", "PRINT 1" + strings.Repeat(" + 1", vm.MaxEvalOperators+1), vm.ErrTooManyOperators, vm.KindStructural},
		{"missing end", "WHILE 1\nPRINT 1", vm.ErrMissingEnd, vm.KindStructural},
		{"uninitialized", "PRINT Q + 1", vm.ErrUninitializedSymbol, vm.KindType},
		{"short circuit evaluates when needed", "PRINT 1 && Q", vm.ErrUninitializedSymbol, vm.KindType},
		{"division by zero", "PRINT 1 / 0", vm.ErrDivisionByZero, vm.KindType},
		{"modulo by zero", "PRINT 1 % 0", vm.ErrDivisionByZero, vm.KindType},
		{"bad compare", "PRINT 'a' < 1", vm.ErrBadCompare, vm.KindType},
		{"bad assign", "1 = 2", vm.ErrBadAssign, vm.KindType},
		{"tuple into symbol", "A = (1, 2)", vm.ErrBadAssign, vm.KindType},
		{"not callable", "A = 1\nA(0)", vm.ErrNotCallable, vm.KindType},
		{"bad index", "PRINT (1, 2)(2)", vm.ErrBadIndex, vm.KindType},
		{"float index", "PRINT (1, 2)(0.5)", vm.ErrBadIndex, vm.KindType},
		{"string arithmetic", "PRINT 'a' + 1", vm.ErrCastFailed, vm.KindType},
		{"add overflow", "PRINT 9223372036854775807 + 1", vm.ErrCastFailed, vm.KindType},
		{"sub overflow", "PRINT -9223372036854775807 - 2", vm.ErrCastFailed, vm.KindType},
		{"mul overflow", "PRINT 4611686018427387904 * 2", vm.ErrCastFailed, vm.KindType},
		{"div overflow", "A = -9223372036854775807 - 1\nPRINT A / -1", vm.ErrCastFailed, vm.KindType},
		{"neg overflow", "A = -9223372036854775807 - 1\nPRINT -A", vm.ErrCastFailed, vm.KindType},
		{"array arithmetic", "A = DIM(2)\nPRINT A + 1", vm.ErrNotScalar, vm.KindType},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e, _ := load(t, vm.Config{}, tc.src)
			err := e.Run()
			if !errors.Is(err, tc.want) {
				t.Fatalf("Run error = %v, want %v", err, tc.want)
			}
			if kind, ok := vm.KindOf(err); !ok || kind != tc.kind {
				t.Errorf("kind = %v, want %v", kind, tc.kind)
			}
			if _, ok := vm.PositionOf(err); !ok {
				t.Errorf("error %v carries no position", err)
			}
			if e.LastError() != err {
				t.Errorf("LastError = %v", e.LastError())
			}
		})
	}
}

func TestStepBudget(t *testing.T) {
	e, _ := load(t, vm.Config{MaxSteps: 10}, "WHILE 1\nENDWHILE")
	err := e.Run()
	if !errors.Is(err, vm.ErrStepBudget) {
		t.Fatalf("Run error = %v, want ErrStepBudget", err)
	}
	if e.Steps() != 11 {
		t.Errorf("Steps = %d, want 11", e.Steps())
	}

	// The budget is per run and bounded loops fit in it.
	e, out := load(t, vm.Config{MaxSteps: 3}, "I = 0\nWHILE I < 3\nI = I + 1\nENDWHILE\nPRINT I")
	if err := e.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.String() != "3\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunIsRepeatable(t *testing.T) {
	e, out := load(t, vm.Config{}, "I = 0\nWHILE I < 2\nPRINT I\nI = I + 1\nENDWHILE")
	used := e.Arena.Stats().Used
	for range 2 {
		if err := e.Run(); err != nil {
			t.Fatalf("Run: %v", err)
		}
	}
	if got := out.String(); got != "0\n1\n0\n1\n" {
		t.Errorf("output = %q", got)
	}
	if after := e.Arena.Stats().Used; after != used {
		t.Errorf("arena used %d after runs, %d before", after, used)
	}
}

func TestRefcountConservation(t *testing.T) {
	src := "A = DIM(3)\nB = A\nC = 5\nS = 'x'\nB = 7\nT = A\nSET(T, 0, 1)"
	e, _ := load(t, vm.Config{}, src)
	if err := e.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	bound := 0
	for _, sym := range e.Symbols.All() {
		if sym.Res == nil {
			continue
		}
		bound++
		if sym.Res.RefCount != 1 {
			t.Errorf("%s has refcount %d, want 1", sym, sym.Res.RefCount)
		}
	}
	if live := e.Resources.Live(); live != bound {
		t.Errorf("live resources = %d, bound symbols = %d", live, bound)
	}

	e.Resources.SweepNow()
	if e.Resources.Len() != bound {
		t.Errorf("after sweep Len = %d, want %d", e.Resources.Len(), bound)
	}
	a, _ := e.ValueOf(symbolToken(t, e, "A"))
	tv, _ := e.ValueOf(symbolToken(t, e, "T"))
	if a.Ints[0] != 0 || tv.Ints[0] != 1 {
		t.Errorf("A = %v, T = %v: assignment shared storage", a, tv)
	}
}

// symbolToken appends a token naming sym to a scratch list.
func symbolToken(t *testing.T, e *vm.Env, name string) vm.Handle {
	t.Helper()
	sym := e.Symbols.Lookup(name)
	if sym == nil {
		t.Fatalf("no symbol %s", name)
	}
	h, err := e.Arena.InsertAfter(vm.Nil, vm.SymbolToken(sym, vm.Position{}))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { e.Arena.DestroyList(h) })
	return h
}

func TestRunContextCancelled(t *testing.T) {
	e, out := load(t, vm.Config{}, "PRINT 1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.RunContext(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("RunContext error = %v, want context.Canceled", err)
	}
	if out.Len() != 0 {
		t.Errorf("output = %q after cancelled run", out.String())
	}
}

func TestEvalInPlace(t *testing.T) {
	e, _ := load(t, vm.Config{}, "")
	head, err := compiler.Build(e, "(1 + 2) * 3, 4")
	if err != nil {
		t.Fatal(err)
	}
	res, err := e.Eval(head, vm.Nil)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	defer e.Arena.DestroyList(res)
	v, err := e.ValueOf(res)
	if err != nil {
		t.Fatal(err)
	}
	if v.String() != "{9, 4}" {
		t.Errorf("value = %s, want {9, 4}", v)
	}
	if e.Arena.Len(res) != 1 {
		t.Errorf("list has %d tokens after Eval, want 1", e.Arena.Len(res))
	}
}
