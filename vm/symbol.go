package vm

import (
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// ---------------------------------------------------------------------------
// SymbolTable: names bound to resources
// ---------------------------------------------------------------------------

// Symbol is a named slot that may be bound to a resource. A bound symbol
// holds one reference to Res.
type Symbol struct {
	Name *Text
	Res  *Resource

	slot int
}

func (s *Symbol) String() string {
	return s.Name.String()
}

// IsScalar reports whether s evaluates directly to a literal: it is unbound
// or bound to a number or string.
func (s *Symbol) IsScalar() bool {
	return s.Res == nil || s.Res.IsScalar()
}

// SymbolTable holds a fixed number of symbols. Names are compared without
// regard to case. Symbols live until the table is cleared.
type SymbolTable struct {
	storage []Symbol
	used    *bitset.BitSet
	free    []int
	texts   *TextPool
}

// NewSymbolTable creates a table of the given capacity that interns names
// in texts.
func NewSymbolTable(capacity int, texts *TextPool) *SymbolTable {
	st := &SymbolTable{
		storage: make([]Symbol, capacity),
		used:    bitset.New(uint(capacity)),
		free:    make([]int, capacity),
		texts:   texts,
	}
	for i := range capacity {
		st.free[i] = capacity - 1 - i
	}
	return st
}

// Create returns the symbol called name, allocating it if needed. When the
// symbol already exists it is returned with collision set; the caller
// decides whether that matters.
func (st *SymbolTable) Create(name string) (sym *Symbol, collision bool, err error) {
	if s := st.Lookup(name); s != nil {
		return s, true, nil
	}
	if len(st.free) == 0 {
		return nil, false, NewError(ErrSymbolOverflow, Position{}, "cannot create %q (capacity %d)", name, len(st.storage))
	}
	text, err := st.texts.Intern(name)
	if err != nil {
		return nil, false, err
	}
	slot := st.free[len(st.free)-1]
	st.free = st.free[:len(st.free)-1]
	st.storage[slot] = Symbol{Name: text, slot: slot}
	st.used.Set(uint(slot))
	return &st.storage[slot], false, nil
}

// Lookup scans the live symbols for name.
func (st *SymbolTable) Lookup(name string) *Symbol {
	for i, ok := st.used.NextSet(0); ok; i, ok = st.used.NextSet(i + 1) {
		if strings.EqualFold(st.storage[i].Name.Str, name) {
			return &st.storage[i]
		}
	}
	return nil
}

// Len returns the number of live symbols.
func (st *SymbolTable) Len() int {
	return int(st.used.Count())
}

// Cap returns the table capacity.
func (st *SymbolTable) Cap() int {
	return len(st.storage)
}

// All returns the live symbols in slot order.
func (st *SymbolTable) All() []*Symbol {
	syms := make([]*Symbol, 0, st.Len())
	for i, ok := st.used.NextSet(0); ok; i, ok = st.used.NextSet(i + 1) {
		syms = append(syms, &st.storage[i])
	}
	return syms
}

// Clear unbinds every symbol through res and empties the table.
func (st *SymbolTable) Clear(res *ResourceManager) {
	for _, s := range st.All() {
		res.RemoveRef(s.Res)
		st.storage[s.slot] = Symbol{}
	}
	st.used.ClearAll()
	st.free = st.free[:0]
	for i := len(st.storage) - 1; i >= 0; i-- {
		st.free = append(st.free, i)
	}
}
