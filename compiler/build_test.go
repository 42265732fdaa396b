package compiler

import (
	"errors"
	"testing"

	"github.com/chazu/jbasic/vm"
)

func newTestEnv(t *testing.T, cfg vm.Config) *vm.Env {
	t.Helper()
	e, err := vm.NewEnv(cfg)
	if err != nil {
		t.Fatalf("NewEnv: %v", err)
	}
	return e
}

func kinds(e *vm.Env, head vm.Handle) []vm.TokenKind {
	var out []vm.TokenKind
	for h := head; !h.IsNil(); h = e.Arena.Right(h) {
		out = append(out, e.Arena.Get(h).Kind)
	}
	return out
}

func TestBuildNestsParens(t *testing.T) {
	e := newTestEnv(t, vm.Config{})
	head, err := Build(e, "A = (1 + (2))")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	got := kinds(e, head)
	want := []vm.TokenKind{vm.TokenSymbol, vm.TokenOperator, vm.TokenParen}
	if len(got) != len(want) {
		t.Fatalf("top level = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("top[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	group := e.Arena.Get(e.Arena.End(head))
	inner := kinds(e, group.Children)
	wantInner := []vm.TokenKind{vm.TokenNumber, vm.TokenOperator, vm.TokenParen}
	if len(inner) != len(wantInner) {
		t.Fatalf("group = %v, want %v", inner, wantInner)
	}
	for i := range wantInner {
		if inner[i] != wantInner[i] {
			t.Errorf("group[%d] = %v, want %v", i, inner[i], wantInner[i])
		}
	}
}

func TestBuildNames(t *testing.T) {
	e := newTestEnv(t, vm.Config{})
	head, err := Build(e, "while x and NOT y endwhile")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	a := e.Arena
	var toks []*vm.Token
	for h := head; !h.IsNil(); h = a.Right(h) {
		toks = append(toks, a.Get(h))
	}
	if len(toks) != 6 {
		t.Fatalf("got %d tokens, want 6", len(toks))
	}
	if toks[0].Kind != vm.TokenKeyword || toks[0].Kw.Resolve().ID != vm.KwWhile {
		t.Errorf("token 0 = %v, want WHILE", toks[0].Kind)
	}
	if toks[2].Kind != vm.TokenOperator || toks[2].Op.Str != "AND" {
		t.Errorf("token 2 = %v, want operator AND", toks[2].Kind)
	}
	if toks[3].Kind != vm.TokenOperator || toks[3].Op.Str != "NOT" {
		t.Errorf("token 3 = %v, want operator NOT", toks[3].Kind)
	}
	if toks[5].Kind != vm.TokenKeyword || toks[5].Kw.Resolve().ID != vm.KwEnd {
		t.Errorf("token 5 = %v, want END", toks[5].Kind)
	}
	if e.Symbols.Lookup("X") != toks[1].Sym {
		t.Errorf("x and X resolve to different symbols")
	}
}

func TestBuildLiterals(t *testing.T) {
	e := newTestEnv(t, vm.Config{})
	head, err := Build(e, `7 2.5 "hi"`)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	a := e.Arena
	n := a.Get(head)
	if n.Num != vm.IntNumber(7) {
		t.Errorf("first = %v, want Int 7", n.Num)
	}
	f := a.Get(a.Right(head))
	if f.Num != vm.FloatNumber(2.5) {
		t.Errorf("second = %v, want Float 2.5", f.Num)
	}
	s := a.Get(a.End(head))
	if s.Kind != vm.TokenString || s.Text.String() != "hi" {
		t.Errorf("third = %v, want string hi", s.Kind)
	}
	if p := s.Pos; p.Line != 1 || p.Column != 7 {
		t.Errorf("string at %v, want 1:7", p)
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		src  string
		want error
	}{
		{"(1 + 2", vm.ErrUnmatchedParen},
		{"1 + 2)", vm.ErrUnmatchedParen},
		{"(1 +\n2)", vm.ErrUnmatchedParen},
		{"PRINT 'abc", vm.ErrUnmatchedQuote},
		{"A = 1 # 2", vm.ErrUnknownToken},
		{"99999999999999999999", vm.ErrCastFailed},
	}

	for _, tc := range tests {
		e := newTestEnv(t, vm.Config{})
		before := e.Arena.Stats().Used
		_, err := Build(e, tc.src)
		if !errors.Is(err, tc.want) {
			t.Errorf("Build(%q) error = %v, want %v", tc.src, err, tc.want)
		}
		if kind, ok := vm.KindOf(err); ok && tc.want != vm.ErrCastFailed && kind != vm.KindSyntax {
			t.Errorf("Build(%q) kind = %v, want syntax", tc.src, kind)
		}
		if used := e.Arena.Stats().Used; used != before {
			t.Errorf("Build(%q) leaked %d tokens", tc.src, used-before)
		}
	}
}

func TestBuildPoolEmpty(t *testing.T) {
	e := newTestEnv(t, vm.Config{Tokens: 4})
	_, err := Build(e, "A = B + C * D")
	if !errors.Is(err, vm.ErrPoolEmpty) {
		t.Fatalf("error = %v, want ErrPoolEmpty", err)
	}
	if used := e.Arena.Stats().Used; used != 1 {
		t.Errorf("used = %d after failure, want only the program head", used)
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		src  string
		want []error
	}{
		{"A = 1\nPRINT A", nil},
		{"IF A THEN\nPRINT 1\nENDIF", nil},
		{"WHILE A DO\nPRINT (1", []error{vm.ErrUnmatchedParen, vm.ErrMissingEnd}},
		{"PRINT 'x\nB = )", []error{vm.ErrUnmatchedQuote}},
		{"A = )\nIF B", []error{vm.ErrUnmatchedParen, vm.ErrMissingEnd}},
	}

	for _, tc := range tests {
		errs := Check(tc.src)
		if len(errs) != len(tc.want) {
			t.Errorf("Check(%q) = %v, want %d errors", tc.src, errs, len(tc.want))
			continue
		}
		for i, want := range tc.want {
			if !errors.Is(errs[i], want) {
				t.Errorf("Check(%q)[%d] = %v, want %v", tc.src, i, errs[i], want)
			}
		}
	}
}
