package vm

import (
	"errors"
	"testing"
)

func newTestArena(capacity int) *Arena {
	return NewArena(capacity, NewResourceManager(16))
}

func listOf(t *testing.T, a *Arena, vals ...int64) Handle {
	t.Helper()
	var head, tail Handle
	for _, v := range vals {
		h, err := a.InsertAfter(tail, NumberToken(IntNumber(v)))
		if err != nil {
			t.Fatalf("InsertAfter: %v", err)
		}
		if head.IsNil() {
			head = h
		}
		tail = h
	}
	return head
}

func values(a *Arena, h Handle) []int64 {
	var out []int64
	for cur := a.Begin(h); !cur.IsNil(); cur = a.Right(cur) {
		out = append(out, a.Get(cur).Num.I)
	}
	return out
}

func equalInts(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestArenaPoolEmpty(t *testing.T) {
	a := newTestArena(2)
	if _, err := a.Acquire(); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Acquire(); err != nil {
		t.Fatal(err)
	}
	_, err := a.Acquire()
	if !errors.Is(err, ErrPoolEmpty) {
		t.Fatalf("third Acquire error = %v, want ErrPoolEmpty", err)
	}
	if kind, _ := KindOf(err); kind != KindCapacity {
		t.Errorf("kind = %v, want capacity", kind)
	}
	if s := a.Stats(); s.Used != 2 || s.Free != 0 || s.Capacity != 2 {
		t.Errorf("stats = %+v", s)
	}
}

func TestArenaStaleHandles(t *testing.T) {
	a := newTestArena(1)
	h, _ := a.Acquire()
	a.Release(h)
	if a.Valid(h) {
		t.Fatal("released handle is still valid")
	}
	h2, err := a.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	if a.Valid(h) {
		t.Error("old handle became valid after slot reuse")
	}
	if !a.Valid(h2) {
		t.Error("new handle is not valid")
	}
	defer func() {
		if recover() == nil {
			t.Error("Get on a stale handle did not panic")
		}
	}()
	a.Get(h)
}

func TestArenaListPrimitives(t *testing.T) {
	a := newTestArena(16)
	first := listOf(t, a, 1, 2)
	second := listOf(t, a, 3, 4)

	head := a.Concat(a.End(first), second)
	if got := values(a, head); !equalInts(got, []int64{1, 2, 3, 4}) {
		t.Fatalf("Concat = %v", got)
	}
	if a.Len(a.End(head)) != 4 {
		t.Errorf("Len = %d, want 4", a.Len(head))
	}

	if _, err := a.PushFront(head, NumberToken(IntNumber(0))); err != nil {
		t.Fatal(err)
	}
	if _, err := a.PushBack(head, NumberToken(IntNumber(5))); err != nil {
		t.Fatal(err)
	}
	head = a.Begin(head)
	if got := values(a, head); !equalInts(got, []int64{0, 1, 2, 3, 4, 5}) {
		t.Fatalf("after push = %v", got)
	}

	// Remove the head: the handle moves to the new head.
	cur := head
	a.UnlinkRelease(&cur)
	if got := values(a, cur); !equalInts(got, []int64{1, 2, 3, 4, 5}) {
		t.Errorf("after UnlinkRelease = %v", got)
	}

	a.DestroyList(cur)
	if used := a.Stats().Used; used != 0 {
		t.Errorf("used = %d after DestroyList, want 0", used)
	}
}

func TestArenaCopyRangeIsDeep(t *testing.T) {
	res := NewResourceManager(4)
	a := NewArena(16, res)

	inner := listOf(t, a, 7, 8)
	r, _ := res.Create(ResIntArray)
	head, _ := a.InsertAfter(Nil, ParenToken(inner, Position{Line: 1, Column: 1}))
	if _, err := a.InsertAfter(head, ResourceToken(r)); err != nil {
		t.Fatal(err)
	}

	cp, err := a.CopyRange(head, Nil)
	if err != nil {
		t.Fatalf("CopyRange: %v", err)
	}
	if r.RefCount != 2 {
		t.Errorf("refcount = %d after copy, want 2", r.RefCount)
	}
	orig, dup := a.Get(head), a.Get(cp)
	if orig.Children == dup.Children {
		t.Fatal("copy shares the child list")
	}
	if got := values(a, dup.Children); !equalInts(got, []int64{7, 8}) {
		t.Errorf("copied children = %v", got)
	}

	used := a.Stats().Used
	a.DestroyList(cp)
	if r.RefCount != 1 {
		t.Errorf("refcount = %d after destroying copy, want 1", r.RefCount)
	}
	if a.Stats().Used != used-4 {
		t.Errorf("destroying the copy freed %d slots, want 4", used-a.Stats().Used)
	}
}

func TestArenaCopyRangeFailureLeavesNothing(t *testing.T) {
	a := newTestArena(5)
	head := listOf(t, a, 1, 2, 3)
	if _, err := a.CopyRange(head, Nil); !errors.Is(err, ErrPoolEmpty) {
		t.Fatalf("CopyRange error = %v, want ErrPoolEmpty", err)
	}
	if used := a.Stats().Used; used != 3 {
		t.Errorf("used = %d after failed copy, want 3", used)
	}
}

func TestArenaMoveIntoOwner(t *testing.T) {
	a := newTestArena(8)
	inner := listOf(t, a, 42)
	group, _ := a.InsertAfter(Nil, ParenToken(inner, Position{}))

	a.Move(group, inner)
	g := a.Get(group)
	if g.Kind != TokenNumber || g.Num.I != 42 {
		t.Fatalf("group = %v %v, want number 42", g.Kind, g.Num)
	}
	if a.Valid(inner) {
		t.Error("moved child slot was not released")
	}
	if used := a.Stats().Used; used != 1 {
		t.Errorf("used = %d, want 1", used)
	}
}
