package stack

import "fmt"

// Model tracks which variables are live on the main and alt stacks, bottom
// to top. It stores identities only; depths are always recomputed from the
// sequence so they can never disagree with its current order.
type Model struct {
	reg  *Registry
	main []uint32
	alt  []uint32
}

// NewModel creates an empty model backed by the given registry.
func NewModel(reg *Registry) *Model {
	return &Model{reg: reg}
}

// Clone deep-copies the sequences. The registry is shared: branch models
// must keep allocating from the same id space.
func (m *Model) Clone() *Model {
	clone := &Model{reg: m.reg}
	clone.main = append([]uint32(nil), m.main...)
	clone.alt = append([]uint32(nil), m.alt...)
	return clone
}

// Push appends an id to the top of the main stack.
func (m *Model) Push(id uint32) {
	m.main = append(m.main, id)
}

// PushAlt appends an id to the top of the alt stack.
func (m *Model) PushAlt(id uint32) {
	m.alt = append(m.alt, id)
}

func position(reg *Registry, seq []uint32, id uint32) (uint32, error) {
	depth := uint32(0)
	for i := len(seq) - 1; i >= 0; i-- {
		if seq[i] == id {
			return depth, nil
		}
		depth += reg.SizeOf(seq[i])
	}
	return 0, fmt.Errorf("%w: id %d", ErrVariableNotFound, id)
}

// PositionOf returns the depth of the variable's topmost slot on the main
// stack: the sum of the sizes of every variable strictly above it.
func (m *Model) PositionOf(id uint32) (uint32, error) {
	return position(m.reg, m.main, id)
}

// AltPositionOf returns the depth of the variable's topmost slot on the alt
// stack.
func (m *Model) AltPositionOf(id uint32) (uint32, error) {
	return position(m.reg, m.alt, id)
}

func remove(seq []uint32, id uint32) ([]uint32, bool) {
	for i, v := range seq {
		if v == id {
			return append(seq[:i], seq[i+1:]...), true
		}
	}
	return seq, false
}

// Remove deletes the id from the main stack.
func (m *Model) Remove(id uint32) error {
	seq, ok := remove(m.main, id)
	if !ok {
		return fmt.Errorf("%w: id %d", ErrVariableNotFound, id)
	}
	m.main = seq
	return nil
}

// ToAlt moves the id from the main sequence to the top of the alt sequence.
func (m *Model) ToAlt(id uint32) error {
	if err := m.Remove(id); err != nil {
		return err
	}
	m.alt = append(m.alt, id)
	return nil
}

// FromAlt moves the id from the alt sequence to the top of the main
// sequence.
func (m *Model) FromAlt(id uint32) error {
	seq, ok := remove(m.alt, id)
	if !ok {
		return fmt.Errorf("%w: id %d", ErrVariableNotFound, id)
	}
	m.alt = seq
	m.main = append(m.main, id)
	return nil
}

// Contains reports whether the id is live on the main stack.
func (m *Model) Contains(id uint32) bool {
	for _, v := range m.main {
		if v == id {
			return true
		}
	}
	return false
}

// Top returns the id on top of the main stack.
func (m *Model) Top() (uint32, bool) {
	if len(m.main) == 0 {
		return 0, false
	}
	return m.main[len(m.main)-1], true
}

// AltTop returns the id on top of the alt stack.
func (m *Model) AltTop() (uint32, bool) {
	if len(m.alt) == 0 {
		return 0, false
	}
	return m.alt[len(m.alt)-1], true
}

// Main returns the main sequence ids, bottom to top.
func (m *Model) Main() []uint32 {
	return append([]uint32(nil), m.main...)
}

// Alt returns the alt sequence ids, bottom to top.
func (m *Model) Alt() []uint32 {
	return append([]uint32(nil), m.alt...)
}

func shape(reg *Registry, seq []uint32) []uint32 {
	sizes := make([]uint32, len(seq))
	for i, id := range seq {
		sizes[i] = reg.SizeOf(id)
	}
	return sizes
}

// MainShape returns the ordered size sequence of the main stack, bottom to
// top. Branch merging compares shapes, not identities.
func (m *Model) MainShape() []uint32 {
	return shape(m.reg, m.main)
}

// AltShape returns the ordered size sequence of the alt stack, bottom to
// top.
func (m *Model) AltShape() []uint32 {
	return shape(m.reg, m.alt)
}

// TotalSize returns the slot count of the main stack.
func (m *Model) TotalSize() uint32 {
	total := uint32(0)
	for _, id := range m.main {
		total += m.reg.SizeOf(id)
	}
	return total
}

// insertAt splices an id into the main sequence at index i (bottom-based).
func (m *Model) insertAt(i int, id uint32) {
	m.main = append(m.main, 0)
	copy(m.main[i+1:], m.main[i:])
	m.main[i] = id
}

// indexOf returns the bottom-based index of the id in the main sequence.
func (m *Model) indexOf(id uint32) (int, bool) {
	for i, v := range m.main {
		if v == id {
			return i, true
		}
	}
	return 0, false
}
