package vm

import "fmt"

// ---------------------------------------------------------------------------
// Arena: fixed-capacity token storage
// ---------------------------------------------------------------------------

// Handle is a generation-checked reference to an arena slot. The zero
// Handle is Nil. A handle becomes stale once its slot is released, and
// stays stale even after the slot is reused.
type Handle struct {
	idx int32 // slot index + 1
	gen uint32
}

// Nil is the handle that refers to no token.
var Nil Handle

// IsNil reports whether h refers to no token.
func (h Handle) IsNil() bool {
	return h.idx == 0
}

func (h Handle) String() string {
	if h.IsNil() {
		return "nil"
	}
	return fmt.Sprintf("#%d.%d", h.idx-1, h.gen)
}

// ArenaStats describes arena occupancy.
type ArenaStats struct {
	Capacity int `cbor:"capacity"`
	Used     int `cbor:"used"`
	Free     int `cbor:"free"`
}

// Arena is a fixed pool of token slots linked into doubly-linked lists.
// A slot is either on the free stack or in exactly one list. The pool never
// grows: acquiring from an empty free stack fails with ErrPoolEmpty.
type Arena struct {
	slots []Token
	free  []int32
	res   *ResourceManager
}

// NewArena creates an arena with capacity slots. Resource tokens released
// by the arena drop their reference through res.
func NewArena(capacity int, res *ResourceManager) *Arena {
	a := &Arena{
		slots: make([]Token, capacity),
		free:  make([]int32, capacity),
		res:   res,
	}
	// Lowest slots are handed out first.
	for i := range capacity {
		a.free[i] = int32(capacity - 1 - i)
	}
	return a
}

// Acquire takes a slot from the free stack. The returned token is an empty
// delimiter with no links.
func (a *Arena) Acquire() (Handle, error) {
	n := len(a.free)
	if n == 0 {
		log.Warningf("token arena exhausted (capacity %d)", len(a.slots))
		return Nil, NewError(ErrPoolEmpty, Position{}, "capacity %d", len(a.slots))
	}
	i := a.free[n-1]
	a.free = a.free[:n-1]
	t := &a.slots[i]
	*t = Token{gen: t.gen, live: true}
	return Handle{idx: i + 1, gen: t.gen}, nil
}

// Release destroys the payload of h and returns its slot to the free stack.
// The caller is responsible for unlinking h first.
func (a *Arena) Release(h Handle) {
	a.empty(h)
	t := a.Get(h)
	t.live = false
	t.gen++
	t.l, t.r = Nil, Nil
	a.free = append(a.free, h.idx-1)
}

// Valid reports whether h refers to a live slot of the current generation.
func (a *Arena) Valid(h Handle) bool {
	if h.idx <= 0 || int(h.idx) > len(a.slots) {
		return false
	}
	t := &a.slots[h.idx-1]
	return t.live && t.gen == h.gen
}

// Get returns the token at h. It panics on a stale handle, which always
// indicates an interpreter bug.
func (a *Arena) Get(h Handle) *Token {
	if !a.Valid(h) {
		panic(fmt.Sprintf("vm: stale token handle %v", h))
	}
	return &a.slots[h.idx-1]
}

// Left returns the left neighbour of h.
func (a *Arena) Left(h Handle) Handle {
	return a.Get(h).l
}

// Right returns the right neighbour of h.
func (a *Arena) Right(h Handle) Handle {
	return a.Get(h).r
}

// Stats reports arena occupancy.
func (a *Arena) Stats() ArenaStats {
	return ArenaStats{
		Capacity: len(a.slots),
		Used:     len(a.slots) - len(a.free),
		Free:     len(a.free),
	}
}

// ---------------------------------------------------------------------------
// List primitives
// ---------------------------------------------------------------------------

// Begin returns the first token of the list containing h.
func (a *Arena) Begin(h Handle) Handle {
	if h.IsNil() {
		return Nil
	}
	for l := a.Get(h).l; !l.IsNil(); l = a.Get(h).l {
		h = l
	}
	return h
}

// End returns the last token of the list containing h.
func (a *Arena) End(h Handle) Handle {
	if h.IsNil() {
		return Nil
	}
	for r := a.Get(h).r; !r.IsNil(); r = a.Get(h).r {
		h = r
	}
	return h
}

// Len returns the number of tokens in the list containing h.
func (a *Arena) Len(h Handle) int {
	n := 0
	for cur := a.Begin(h); !cur.IsNil(); cur = a.Get(cur).r {
		n++
	}
	return n
}

// InsertAfter stores tok in a new slot linked right after at. With a Nil
// at the token starts a new list.
func (a *Arena) InsertAfter(at Handle, tok Token) (Handle, error) {
	h, err := a.Acquire()
	if err != nil {
		return Nil, err
	}
	a.put(h, tok)
	if at.IsNil() {
		return h, nil
	}
	t, n := a.Get(at), a.Get(h)
	n.l, n.r = at, t.r
	if !t.r.IsNil() {
		a.Get(t.r).l = h
	}
	t.r = h
	return h, nil
}

// InsertBefore stores tok in a new slot linked right before at. With a Nil
// at the token starts a new list.
func (a *Arena) InsertBefore(at Handle, tok Token) (Handle, error) {
	h, err := a.Acquire()
	if err != nil {
		return Nil, err
	}
	a.put(h, tok)
	if at.IsNil() {
		return h, nil
	}
	t, n := a.Get(at), a.Get(h)
	n.l, n.r = t.l, at
	if !t.l.IsNil() {
		a.Get(t.l).r = h
	}
	t.l = h
	return h, nil
}

// PushBack appends tok to the list containing list.
func (a *Arena) PushBack(list Handle, tok Token) (Handle, error) {
	return a.InsertAfter(a.End(list), tok)
}

// PushFront prepends tok to the list containing list.
func (a *Arena) PushFront(list Handle, tok Token) (Handle, error) {
	return a.InsertBefore(a.Begin(list), tok)
}

// Concat links the list containing second after the list containing first
// and returns the head of the combined list. No tokens are copied.
func (a *Arena) Concat(first, second Handle) Handle {
	if first.IsNil() {
		return a.Begin(second)
	}
	if second.IsNil() {
		return a.Begin(first)
	}
	tail, head := a.End(first), a.Begin(second)
	a.Get(tail).r = head
	a.Get(head).l = tail
	return a.Begin(first)
}

// unlink detaches h from its list and relinks its neighbours.
func (a *Arena) unlink(h Handle) {
	t := a.Get(h)
	if !t.l.IsNil() {
		a.Get(t.l).r = t.r
	}
	if !t.r.IsNil() {
		a.Get(t.r).l = t.l
	}
	t.l, t.r = Nil, Nil
}

// UnlinkRelease removes *h from its list and releases it. *h moves to the
// left neighbour, or the right one at the head of the list, or Nil when
// the list is now empty.
func (a *Arena) UnlinkRelease(h *Handle) {
	cur := *h
	t := a.Get(cur)
	next := t.l
	if next.IsNil() {
		next = t.r
	}
	a.unlink(cur)
	a.Release(cur)
	*h = next
}

// DestroyList releases every token of the list containing h, including the
// lists owned by container tokens.
func (a *Arena) DestroyList(h Handle) {
	if h.IsNil() {
		return
	}
	for cur := a.Begin(h); !cur.IsNil(); {
		next := a.Get(cur).r
		a.Release(cur)
		cur = next
	}
}

// ---------------------------------------------------------------------------
// Payload operations
// ---------------------------------------------------------------------------

// put overwrites the payload of h with tok, keeping the links.
func (a *Arena) put(h Handle, tok Token) {
	t := a.Get(h)
	if !tok.Pos.IsValid() {
		tok.Pos = t.Pos
	}
	tok.l, tok.r, tok.gen, tok.live = t.l, t.r, t.gen, true
	*t = tok
}

// empty destroys whatever h owns and leaves an empty delimiter in place.
func (a *Arena) empty(h Handle) {
	t := a.Get(h)
	switch t.Kind {
	case TokenParen, TokenTuple:
		a.DestroyList(t.Children)
	case TokenResource:
		a.res.RemoveRef(t.Res)
	}
	*t = Token{Pos: t.Pos, l: t.l, r: t.r, gen: t.gen, live: true}
}

// dispose destroys what a detached token value owns.
func (a *Arena) dispose(tok Token) {
	switch tok.Kind {
	case TokenParen, TokenTuple:
		a.DestroyList(tok.Children)
	case TokenResource:
		a.res.RemoveRef(tok.Res)
	}
}

// Set replaces the payload of h with tok. The old payload is destroyed and
// ownership of tok's children or reference passes to h.
func (a *Arena) Set(h Handle, tok Token) {
	a.empty(h)
	a.put(h, tok)
}

// Move transfers the payload of src into dst. src is left as an empty
// delimiter. src may be part of the list owned by dst.
func (a *Arena) Move(dst, src Handle) {
	if dst == src {
		return
	}
	s := a.Get(src)
	tok := *s
	*s = Token{Pos: s.Pos, l: s.l, r: s.r, gen: s.gen, live: true}
	a.empty(dst)
	a.put(dst, tok)
}

// Copy deep-copies the payload of src into dst.
func (a *Arena) Copy(dst, src Handle) error {
	if dst == src {
		return nil
	}
	tok, err := a.clone(src)
	if err != nil {
		return err
	}
	a.Set(dst, tok)
	return nil
}

// clone returns a detached deep copy of the payload at h. Child lists are
// copied into new slots and resource references are added.
func (a *Arena) clone(h Handle) (Token, error) {
	tok := *a.Get(h)
	tok.l, tok.r = Nil, Nil
	tok.resolved = nil
	switch tok.Kind {
	case TokenParen, TokenTuple:
		children, err := a.CopyRange(a.Begin(tok.Children), Nil)
		if err != nil {
			return Token{}, err
		}
		tok.Children = children
	case TokenResource:
		a.res.AddRef(tok.Res)
	}
	return tok, nil
}

// CopyRange deep-copies the tokens in [begin, end) into a new list and
// returns its head. On failure nothing is left allocated.
func (a *Arena) CopyRange(begin, end Handle) (Handle, error) {
	var head, tail Handle
	for cur := begin; !cur.IsNil() && cur != end; cur = a.Get(cur).r {
		tok, err := a.clone(cur)
		if err != nil {
			a.DestroyList(head)
			return Nil, err
		}
		n, err := a.InsertAfter(tail, tok)
		if err != nil {
			a.dispose(tok)
			a.DestroyList(head)
			return Nil, err
		}
		if head.IsNil() {
			head = n
		}
		tail = n
	}
	return head, nil
}
