package vm

// ---------------------------------------------------------------------------
// TextPool: interned string storage
// ---------------------------------------------------------------------------

// Text is one interned string. Two tokens referring to the same content
// share the same *Text.
type Text struct {
	Str string
}

func (t *Text) String() string {
	if t == nil {
		return ""
	}
	return t.Str
}

// TextPool deduplicates the strings used for symbol names and string
// literals. It holds at most capacity distinct strings.
type TextPool struct {
	byContent map[string]*Text
	capacity  int
}

// NewTextPool creates a pool that holds up to capacity strings.
func NewTextPool(capacity int) *TextPool {
	return &TextPool{
		byContent: make(map[string]*Text, capacity),
		capacity:  capacity,
	}
}

// Intern returns the shared Text for s, creating it if needed.
func (p *TextPool) Intern(s string) (*Text, error) {
	if t, ok := p.byContent[s]; ok {
		return t, nil
	}
	if len(p.byContent) >= p.capacity {
		return nil, NewError(ErrTextOverflow, Position{}, "capacity %d", p.capacity)
	}
	t := &Text{Str: s}
	p.byContent[s] = t
	return t, nil
}

// Lookup returns the interned Text for s, or nil.
func (p *TextPool) Lookup(s string) *Text {
	return p.byContent[s]
}

// Len returns the number of interned strings.
func (p *TextPool) Len() int {
	return len(p.byContent)
}

// Cap returns the pool capacity.
func (p *TextPool) Cap() int {
	return p.capacity
}

// Clear drops every interned string.
func (p *TextPool) Clear() {
	clear(p.byContent)
}
