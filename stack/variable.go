package stack

import "fmt"

// Variable is a symbolic handle to a span of contiguous stack slots. It has
// no runtime representation: the VM only ever sees depth-addressed
// instructions computed from the model. The zero value is the null variable.
type Variable struct {
	ID   uint32
	Size uint32
}

// Null returns the null variable.
func Null() Variable {
	return Variable{}
}

// IsNull reports whether the variable is the null variable.
func (v Variable) IsNull() bool {
	return v.ID == 0
}

func (v Variable) String() string {
	return fmt.Sprintf("var(id=%d size=%d)", v.ID, v.Size)
}

type varMeta struct {
	size  uint32
	label string
	value string // best-effort static value, "" when unknowable
}

// Registry allocates globally unique variable identities and stores their
// metadata. One registry is shared by a tracker and every branch cloned from
// it, so identities remain unique across branches and are never reused, even
// after a variable is dropped.
type Registry struct {
	counter uint32
	meta    map[uint32]*varMeta
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{meta: make(map[uint32]*varMeta)}
}

// Allocate registers a new variable of the given size. The size is immutable
// for the lifetime of the identity.
func (r *Registry) Allocate(size uint32, label string) (Variable, error) {
	if size < 1 {
		return Null(), fmt.Errorf("%w: variable size must be >= 1, got %d", ErrInvalidSize, size)
	}
	r.counter++
	r.meta[r.counter] = &varMeta{size: size, label: label}
	return Variable{ID: r.counter, Size: size}, nil
}

// Label returns the display label of the identity, or "unknown" for ids the
// registry has never seen.
func (r *Registry) Label(id uint32) string {
	if m, ok := r.meta[id]; ok {
		return m.label
	}
	return "unknown"
}

// SetLabel updates the display label. Labels are presentation metadata; the
// identity and size never change.
func (r *Registry) SetLabel(id uint32, label string) {
	if m, ok := r.meta[id]; ok {
		m.label = label
	}
}

// SizeOf returns the slot count of the identity, or zero if unknown.
func (r *Registry) SizeOf(id uint32) uint32 {
	if m, ok := r.meta[id]; ok {
		return m.size
	}
	return 0
}

// Value returns the best-effort static value of the identity, or the empty
// string when the value cannot be known without executing the program.
func (r *Registry) Value(id uint32) string {
	if m, ok := r.meta[id]; ok {
		return m.value
	}
	return ""
}

// SetValue records the best-effort static value for display.
func (r *Registry) SetValue(id uint32, value string) {
	if m, ok := r.meta[id]; ok {
		m.value = value
	}
}
