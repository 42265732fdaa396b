package vm

import (
	"fmt"
	"slices"
)

// ---------------------------------------------------------------------------
// Resources: reference-counted runtime values
// ---------------------------------------------------------------------------

// ResourceKind tags the payload of a Resource.
type ResourceKind uint8

const (
	ResNumber ResourceKind = iota
	ResIntArray
	ResFloatArray
	ResString
	ResNative
)

var resourceKindNames = map[ResourceKind]string{
	ResNumber:     "NUMBER",
	ResIntArray:   "INT_ARRAY",
	ResFloatArray: "FLOAT_ARRAY",
	ResString:     "STRING",
	ResNative:     "NATIVE",
}

func (k ResourceKind) String() string {
	if name, ok := resourceKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ResourceKind(%d)", int(k))
}

// Resource is a runtime value owned by the ResourceManager. Symbols and
// resource tokens hold references to it; it is reclaimed by a sweep once
// RefCount drops to zero.
type Resource struct {
	Kind     ResourceKind
	RefCount int
	Num      Number
	Ints     []int64
	Floats   []float64
	Text     *Text
	Fn       NativeFunc
	Name     string // native function name

	index int
}

// Index returns the position of r in the manager's dense array, or -1
// once r has been deleted.
func (r *Resource) Index() int {
	return r.index
}

// IsScalar reports whether r evaluates directly to a literal value.
func (r *Resource) IsScalar() bool {
	return r.Kind == ResNumber || r.Kind == ResString
}

// Len returns the element count of an array or string resource.
func (r *Resource) Len() int {
	switch r.Kind {
	case ResIntArray:
		return len(r.Ints)
	case ResFloatArray:
		return len(r.Floats)
	case ResString:
		return len(r.Text.String())
	}
	return 0
}

// ResourceStats summarizes the manager and its sweeps.
type ResourceStats struct {
	Capacity  int `cbor:"capacity"`
	Len       int `cbor:"len"`
	Live      int `cbor:"live"`
	Sweeps    int `cbor:"sweeps"`
	Collected int `cbor:"collected"`
}

// ResourceManager stores resources in a dense array of fixed capacity.
// Deletion swaps the last entry into the freed position, so every entry's
// index always equals its position.
type ResourceManager struct {
	entries   []*Resource
	capacity  int
	sweeps    int
	collected int
}

// NewResourceManager creates a manager holding up to capacity resources.
func NewResourceManager(capacity int) *ResourceManager {
	return &ResourceManager{
		entries:  make([]*Resource, 0, capacity),
		capacity: capacity,
	}
}

// Create allocates a resource of the given kind with a refcount of 1.
// When the manager is full it sweeps once and retries; if that frees
// nothing the call fails with ErrResourceOverflow.
func (m *ResourceManager) Create(kind ResourceKind) (*Resource, error) {
	if len(m.entries) >= m.capacity {
		m.SweepNow()
		if len(m.entries) >= m.capacity {
			return nil, NewError(ErrResourceOverflow, Position{}, "capacity %d", m.capacity)
		}
	}
	r := &Resource{Kind: kind, RefCount: 1, index: len(m.entries)}
	m.entries = append(m.entries, r)
	return r, nil
}

// AddRef records one more holder of r.
func (m *ResourceManager) AddRef(r *Resource) {
	if r != nil {
		r.RefCount++
	}
}

// RemoveRef drops one holder of r. The count never goes below zero, and
// the resource stays in place until the next sweep.
func (m *ResourceManager) RemoveRef(r *Resource) {
	if r != nil && r.RefCount > 0 {
		r.RefCount--
	}
}

// Copy overwrites dst's payload with a deep copy of src's. dst keeps its
// own refcount and index.
func (m *ResourceManager) Copy(dst, src *Resource) {
	if dst == src {
		return
	}
	dst.Kind = src.Kind
	dst.Num = src.Num
	dst.Ints = slices.Clone(src.Ints)
	dst.Floats = slices.Clone(src.Floats)
	dst.Text = src.Text
	dst.Fn = src.Fn
	dst.Name = src.Name
}

// Delete removes r from the manager regardless of its refcount.
func (m *ResourceManager) Delete(r *Resource) {
	i := r.index
	if i < 0 || i >= len(m.entries) || m.entries[i] != r {
		return
	}
	r.Ints, r.Floats = nil, nil
	last := len(m.entries) - 1
	m.entries[i] = m.entries[last]
	m.entries[i].index = i
	m.entries[last] = nil
	m.entries = m.entries[:last]
	r.index = -1
}

// SweepNow deletes every resource whose refcount is zero and returns how
// many were collected.
func (m *ResourceManager) SweepNow() int {
	before := len(m.entries)
	collected := 0
	for i := 0; i < len(m.entries); {
		if m.entries[i].RefCount == 0 {
			// The last entry moves into i; look at i again.
			m.Delete(m.entries[i])
			collected++
			continue
		}
		i++
	}
	m.sweeps++
	m.collected += collected
	log.Infof("resource sweep collected %d of %d entries", collected, before)
	return collected
}

// Len returns the number of stored resources, garbage included.
func (m *ResourceManager) Len() int {
	return len(m.entries)
}

// Live returns the number of resources with a nonzero refcount.
func (m *ResourceManager) Live() int {
	n := 0
	for _, r := range m.entries {
		if r.RefCount > 0 {
			n++
		}
	}
	return n
}

// At returns the resource stored at index i.
func (m *ResourceManager) At(i int) *Resource {
	return m.entries[i]
}

// Stats reports occupancy and sweep counters.
func (m *ResourceManager) Stats() ResourceStats {
	return ResourceStats{
		Capacity:  m.capacity,
		Len:       len(m.entries),
		Live:      m.Live(),
		Sweeps:    m.sweeps,
		Collected: m.collected,
	}
}

// Clear deletes every resource.
func (m *ResourceManager) Clear() {
	for _, r := range m.entries {
		r.index = -1
	}
	clear(m.entries)
	m.entries = m.entries[:0]
}
