// Package stack implements the symbolic stack model and its
// position-tracking code generator. Callers build programs for a
// depth-addressed script VM by referring to variables; the tracker computes
// the duplicate/relocate/discard instructions that reproduce the intended
// effect and records every intermediate stack shape.
package stack

import (
	"encoding/hex"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"

	"github.com/scriptkit/scriptstack/history"
	"github.com/scriptkit/scriptstack/script"
	"github.com/scriptkit/scriptstack/vm"
)

// Tracker generates depth-addressed instructions against a symbolic stack
// model. Construction is strictly sequential: every operation is only
// meaningful relative to the shape left by the previous one, so a Tracker
// must not be shared between goroutines.
//
// The first generation-time error (a missing variable, an invalid size)
// latches: the model's invariants cannot be trusted past that point, so all
// subsequent operations become no-ops returning the same error.
type Tracker struct {
	id      uuid.UUID
	reg     *Registry
	model   *Model
	code    script.Script
	rec     *history.Recorder
	logger  zerolog.Logger
	maxSize uint32
	err     error

	// Branch bookkeeping: instructions inherited from the parent context at
	// OpenBranch time. Zero for a root tracker.
	branchBase int
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger attaches a logger; emitted instructions are traced at trace
// level.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// New creates an empty tracker with its own registry and recorder.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		id:     uuid.Must(uuid.NewV4()),
		reg:    NewRegistry(),
		rec:    history.NewRecorder(),
		logger: zerolog.Nop(),
	}
	t.model = NewModel(t.reg)
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ID returns the tracker's debug identity. Branch contexts get their own.
func (t *Tracker) ID() uuid.UUID {
	return t.id
}

// Err returns the latched generation error, if any.
func (t *Tracker) Err() error {
	return t.err
}

// fail latches the first fatal error and returns it.
func (t *Tracker) fail(err error) error {
	if t.err == nil {
		t.err = err
	}
	return err
}

// Script returns a copy of the instructions generated so far.
func (t *Tracker) Script() script.Script {
	return append(script.Script(nil), t.code...)
}

// Recorder exposes the history log for replay and inspection.
func (t *Tracker) Recorder() *history.Recorder {
	return t.rec
}

// MaxStackSize returns the largest slot count the main stack reached.
func (t *Tracker) MaxStackSize() uint32 {
	return t.maxSize
}

func (t *Tracker) snapshotSeq(ids []uint32) []history.VarSnapshot {
	snaps := make([]history.VarSnapshot, len(ids))
	for i, id := range ids {
		snaps[i] = history.VarSnapshot{
			ID:    id,
			Size:  t.reg.SizeOf(id),
			Label: t.reg.Label(id),
			Value: t.reg.Value(id),
		}
	}
	return snaps
}

// emit appends instructions and records one log entry per instruction,
// each carrying the stack shapes that result from the whole step.
func (t *Tracker) emit(ins script.Script) {
	if len(ins) == 0 {
		return
	}
	t.code = append(t.code, ins...)
	main := t.snapshotSeq(t.model.Main())
	alt := t.snapshotSeq(t.model.Alt())
	for _, in := range ins {
		t.logger.Trace().Str("instr", in.String()).Msg("emit")
		t.rec.Append(history.Record{Instr: in, Main: main, Alt: alt})
	}
}

// push appends a variable to the model top and tracks the stack high-water
// mark.
func (t *Tracker) push(v Variable) {
	t.model.Push(v.ID)
	if total := t.model.TotalSize(); total > t.maxSize {
		t.maxSize = total
	}
}

// positionOf returns the depth of the variable, latching on a missing id.
func (t *Tracker) positionOf(v Variable) (uint32, error) {
	depth, err := t.model.PositionOf(v.ID)
	if err != nil {
		return 0, t.fail(err)
	}
	return depth, nil
}

// PositionOf returns the current depth of the variable's topmost slot.
func (t *Tracker) PositionOf(v Variable) (uint32, error) {
	if t.err != nil {
		return 0, t.err
	}
	return t.positionOf(v)
}

// LabelOf returns the variable's display label.
func (t *Tracker) LabelOf(v Variable) string {
	return t.reg.Label(v.ID)
}

// Rename updates the variable's display label.
func (t *Tracker) Rename(v Variable, label string) {
	t.reg.SetLabel(v.ID, label)
}

// Define registers a variable for content assumed to already be on the
// stack (witness data, for example). No instruction is emitted.
func (t *Tracker) Define(size uint32, label string) (Variable, error) {
	if t.err != nil {
		return Null(), t.err
	}
	v, err := t.reg.Allocate(size, label)
	if err != nil {
		return Null(), t.fail(err)
	}
	t.push(v)
	return v, nil
}

// Var emits an arbitrary instruction sequence that is declared to leave one
// new variable of the given size on top of the stack.
func (t *Tracker) Var(size uint32, s script.Script, label string) (Variable, error) {
	if t.err != nil {
		return Null(), t.err
	}
	v, err := t.reg.Allocate(size, label)
	if err != nil {
		return Null(), t.fail(err)
	}
	t.push(v)
	t.emit(s)
	return v, nil
}

// Number pushes a one-slot numeric literal.
func (t *Tracker) Number(n int64) Variable {
	v, _ := t.Var(1, script.Script{script.Num(n)}, fmt.Sprintf("number(0x%x)", n))
	if !v.IsNull() {
		t.reg.SetValue(v.ID, fmt.Sprintf("%d", n))
	}
	return v
}

// Byte pushes a byte as two nibble slots.
func (t *Tracker) Byte(b byte) Variable {
	v, _ := t.Var(2, script.ByteToNibbles(b), fmt.Sprintf("byte(0x%02x)", b))
	if !v.IsNull() {
		t.reg.SetValue(v.ID, fmt.Sprintf("0x%02x", b))
	}
	return v
}

// NumberU32 pushes a 32-bit number as eight nibble slots, most significant
// first.
func (t *Tracker) NumberU32(n uint32) Variable {
	v, _ := t.Var(8, script.NumberToNibbles(n), fmt.Sprintf("number_u32(0x%x)", n))
	if !v.IsNull() {
		t.reg.SetValue(v.ID, fmt.Sprintf("0x%08x", n))
	}
	return v
}

// NumberU32Bytes pushes a 32-bit number as four byte slots, most
// significant first.
func (t *Tracker) NumberU32Bytes(n uint32) Variable {
	v, _ := t.Var(4, script.NumberToBytes(n), fmt.Sprintf("number_u32_u8(0x%x)", n))
	if !v.IsNull() {
		t.reg.SetValue(v.ID, fmt.Sprintf("0x%08x", n))
	}
	return v
}

// HexStr pushes raw bytes given as a hex string, as a single slot.
func (t *Tracker) HexStr(s string) (Variable, error) {
	if t.err != nil {
		return Null(), t.err
	}
	data, err := hex.DecodeString(s)
	if err != nil {
		return Null(), t.fail(fmt.Errorf("invalid hex literal %q: %w", s, err))
	}
	v, err := t.Var(1, script.Script{script.Bytes(data)}, "hexdata")
	if err != nil {
		return Null(), err
	}
	t.reg.SetValue(v.ID, "0x"+s)
	return v, nil
}

// Copy duplicates the variable onto the top of the stack and returns the
// new identity. Multi-slot variables are duplicated slot by slot, deepest
// slot first; see script.CopyFrom for the depth-drift rule.
func (t *Tracker) Copy(v Variable) (Variable, error) {
	if t.err != nil {
		return Null(), t.err
	}
	depth, err := t.positionOf(v)
	if err != nil {
		return Null(), err
	}
	size := t.reg.SizeOf(v.ID)
	cp, err := t.reg.Allocate(size, fmt.Sprintf("copy(%s)", t.reg.Label(v.ID)))
	if err != nil {
		return Null(), t.fail(err)
	}
	t.reg.SetValue(cp.ID, t.reg.Value(v.ID))
	t.push(cp)
	t.emit(script.CopyFrom(depth, size))
	return cp, nil
}

// MoveToTop relocates the variable to the top of the stack, slot by slot,
// preserving its identity. A variable already on top needs no instructions.
func (t *Tracker) MoveToTop(v Variable) error {
	if t.err != nil {
		return t.err
	}
	depth, err := t.positionOf(v)
	if err != nil {
		return err
	}
	if depth == 0 {
		return nil
	}
	size := t.reg.SizeOf(v.ID)
	if err := t.model.Remove(v.ID); err != nil {
		return t.fail(err)
	}
	t.push(v)
	t.emit(script.MoveFrom(depth, size))
	return nil
}

// MoveSub relocates the slot suffix [fromSlot, size) of the variable to the
// top of the stack. Slots are indexed from the variable's deepest slot.
// Identities are immutable, so the relocation produces new variables: the
// moved suffix, and (when fromSlot > 0) a re-registered remainder replacing
// the original in place. The original identity is retired.
func (t *Tracker) MoveSub(v Variable, fromSlot uint32) (moved, rest Variable, err error) {
	if t.err != nil {
		return Null(), Null(), t.err
	}
	depth, err := t.positionOf(v)
	if err != nil {
		return Null(), Null(), err
	}
	size := t.reg.SizeOf(v.ID)
	if fromSlot >= size {
		return Null(), Null(), t.fail(fmt.Errorf(
			"%w: cannot move slots [%d:] of %d-slot variable %d", ErrInvalidSize, fromSlot, size, v.ID))
	}
	label := t.reg.Label(v.ID)
	idx, _ := t.model.indexOf(v.ID)
	if err := t.model.Remove(v.ID); err != nil {
		return Null(), Null(), t.fail(err)
	}
	if fromSlot > 0 {
		rest, err = t.reg.Allocate(fromSlot, label)
		if err != nil {
			return Null(), Null(), t.fail(err)
		}
		t.model.insertAt(idx, rest.ID)
	}
	moved, err = t.reg.Allocate(size-fromSlot, fmt.Sprintf("%s[%d:]", label, fromSlot))
	if err != nil {
		return Null(), Null(), t.fail(err)
	}
	t.push(moved)
	// Every roll removes its slot from the old position, so the remaining
	// slots of the suffix sit at the same corrected depth each time.
	t.emit(script.MoveFrom(depth, size-fromSlot))
	return moved, rest, nil
}

// CopySub duplicates the single slot at the given index (counted from the
// variable's deepest slot) onto the top of the stack as a new one-slot
// variable.
func (t *Tracker) CopySub(v Variable, slot uint32) (Variable, error) {
	if t.err != nil {
		return Null(), t.err
	}
	depth, err := t.positionOf(v)
	if err != nil {
		return Null(), err
	}
	size := t.reg.SizeOf(v.ID)
	if slot >= size {
		return Null(), t.fail(fmt.Errorf(
			"%w: no slot %d in %d-slot variable %d", ErrInvalidSize, slot, size, v.ID))
	}
	cp, err := t.reg.Allocate(1, fmt.Sprintf("%s[%d]", t.reg.Label(v.ID), slot))
	if err != nil {
		return Null(), t.fail(err)
	}
	t.push(cp)
	t.emit(script.CopyFrom(depth+size-1-slot, 1))
	return cp, nil
}

// Drop discards the variable. If it is not on top it is first relocated,
// then one discard per slot removes it.
func (t *Tracker) Drop(v Variable) error {
	if t.err != nil {
		return t.err
	}
	if err := t.MoveToTop(v); err != nil {
		return err
	}
	size := t.reg.SizeOf(v.ID)
	if err := t.model.Remove(v.ID); err != nil {
		return t.fail(err)
	}
	t.emit(script.DropCount(size))
	return nil
}

// ToAltStack transfers the variable to the alt stack, relocating it to the
// top of the main stack first if needed. Identity is preserved.
func (t *Tracker) ToAltStack(v Variable) error {
	if t.err != nil {
		return t.err
	}
	if err := t.MoveToTop(v); err != nil {
		return err
	}
	size := t.reg.SizeOf(v.ID)
	if err := t.model.ToAlt(v.ID); err != nil {
		return t.fail(err)
	}
	t.emit(script.ToAlt(size))
	return nil
}

// FromAltStack transfers the variable back to the main stack. The alt stack
// has no relocation instructions, so the variable must be on top of it.
func (t *Tracker) FromAltStack(v Variable) error {
	if t.err != nil {
		return t.err
	}
	top, ok := t.model.AltTop()
	if !ok || top != v.ID {
		return t.fail(fmt.Errorf("%w: id %d is not on top of the alt stack", ErrVariableNotFound, v.ID))
	}
	size := t.reg.SizeOf(v.ID)
	if err := t.model.FromAlt(v.ID); err != nil {
		return t.fail(err)
	}
	t.push(v)
	t.emit(script.FromAlt(size))
	return nil
}

// ToAltStackCount transfers the top count variables to the alt stack.
func (t *Tracker) ToAltStackCount(count int) ([]Variable, error) {
	var moved []Variable
	for i := 0; i < count; i++ {
		id, ok := t.model.Top()
		if !ok {
			return moved, t.fail(fmt.Errorf("%w: main stack is empty", ErrVariableNotFound))
		}
		v := Variable{ID: id, Size: t.reg.SizeOf(id)}
		if err := t.ToAltStack(v); err != nil {
			return moved, err
		}
		moved = append(moved, v)
	}
	return moved, nil
}

// FromAltStackCount transfers the top count variables back from the alt
// stack.
func (t *Tracker) FromAltStackCount(count int) ([]Variable, error) {
	var moved []Variable
	for i := 0; i < count; i++ {
		id, ok := t.model.AltTop()
		if !ok {
			return moved, t.fail(fmt.Errorf("%w: alt stack is empty", ErrVariableNotFound))
		}
		v := Variable{ID: id, Size: t.reg.SizeOf(id)}
		if err := t.FromAltStack(v); err != nil {
			return moved, err
		}
		moved = append(moved, v)
	}
	return moved, nil
}

// FromAltStackJoined transfers count variables back from the alt stack and
// joins them into one variable with the given label.
func (t *Tracker) FromAltStackJoined(count int, label string) (Variable, error) {
	if count < 2 {
		return Null(), t.fail(fmt.Errorf("%w: joining requires at least 2 variables, got %d", ErrInvalidSize, count))
	}
	vars, err := t.FromAltStackCount(count)
	if err != nil {
		return Null(), err
	}
	joined, err := t.JoinCount(vars[0], count-1)
	if err != nil {
		return Null(), err
	}
	t.Rename(joined, label)
	return joined, nil
}

// Join merges the variable with the one immediately above it into a single
// new variable spanning both. No instructions are emitted: the slots are
// already adjacent.
func (t *Tracker) Join(v Variable) (Variable, error) {
	if t.err != nil {
		return Null(), t.err
	}
	idx, ok := t.model.indexOf(v.ID)
	if !ok {
		return Null(), t.fail(fmt.Errorf("%w: id %d", ErrVariableNotFound, v.ID))
	}
	above := t.model.Main()
	if idx+1 >= len(above) {
		return Null(), t.fail(fmt.Errorf("%w: id %d is on top of the stack, nothing to join", ErrVariableNotFound, v.ID))
	}
	next := above[idx+1]
	size := t.reg.SizeOf(v.ID) + t.reg.SizeOf(next)
	joined, err := t.reg.Allocate(size, t.reg.Label(v.ID))
	if err != nil {
		return Null(), t.fail(err)
	}
	t.reg.SetValue(joined.ID, t.reg.Value(v.ID))
	if err := t.model.Remove(next); err != nil {
		return Null(), t.fail(err)
	}
	if err := t.model.Remove(v.ID); err != nil {
		return Null(), t.fail(err)
	}
	t.model.insertAt(idx, joined.ID)
	return joined, nil
}

// JoinCount joins the variable with the count variables above it.
func (t *Tracker) JoinCount(v Variable, count int) (Variable, error) {
	joined := v
	for i := 0; i < count; i++ {
		var err error
		joined, err = t.Join(joined)
		if err != nil {
			return Null(), err
		}
	}
	return joined, nil
}

// Explode splits the variable, which must be on top of the stack, into one
// new variable per slot. No instructions are emitted.
func (t *Tracker) Explode(v Variable) ([]Variable, error) {
	if t.err != nil {
		return nil, t.err
	}
	top, ok := t.model.Top()
	if !ok || top != v.ID {
		return nil, t.fail(fmt.Errorf("%w: id %d is not on top of the stack", ErrVariableNotFound, v.ID))
	}
	size := t.reg.SizeOf(v.ID)
	label := t.reg.Label(v.ID)
	if err := t.model.Remove(v.ID); err != nil {
		return nil, t.fail(err)
	}
	parts := make([]Variable, 0, size)
	for i := uint32(0); i < size; i++ {
		part, err := t.reg.Allocate(1, fmt.Sprintf("%s[%d]", label, i))
		if err != nil {
			return nil, t.fail(err)
		}
		t.push(part)
		parts = append(parts, part)
	}
	return parts, nil
}

// Equals compares two variables of equal size slot by slot with
// OP_EQUALVERIFY. Consumed variables are relocated slot by slot and
// destroyed; otherwise slots are copied and the variable survives.
func (t *Tracker) Equals(a Variable, consumeA bool, b Variable, consumeB bool) error {
	if t.err != nil {
		return t.err
	}
	sizeA, sizeB := t.reg.SizeOf(a.ID), t.reg.SizeOf(b.ID)
	if sizeA != sizeB {
		return t.fail(fmt.Errorf("%w: cannot compare %d-slot variable %d with %d-slot variable %d",
			ErrInvalidSize, sizeA, a.ID, sizeB, b.ID))
	}
	if a.ID == b.ID {
		return t.fail(fmt.Errorf("%w: comparing variable %d with itself", ErrInvalidSize, a.ID))
	}
	for i := sizeA; i > 0; i-- {
		if consumeA {
			_, rest, err := t.MoveSub(a, i-1)
			if err != nil {
				return err
			}
			a = rest
		} else {
			if _, err := t.CopySub(a, i-1); err != nil {
				return err
			}
		}
		if consumeB {
			_, rest, err := t.MoveSub(b, i-1)
			if err != nil {
				return err
			}
			b = rest
		} else {
			if _, err := t.CopySub(b, i-1); err != nil {
				return err
			}
		}
		if err := t.OpEqualVerify(); err != nil {
			return err
		}
	}
	return nil
}

// GetValueFromTable consumes the index variable on top of the stack and
// pushes the addressed entry of the table variable via OP_PICK.
func (t *Tracker) GetValueFromTable(table Variable, offset uint32) (Variable, error) {
	if t.err != nil {
		return Null(), t.err
	}
	depth, err := t.positionOf(table)
	if err != nil {
		return Null(), err
	}
	t.Number(int64(depth - 1 + offset))
	if _, err := t.OpAdd(); err != nil {
		return Null(), err
	}
	v, err := t.OpPick()
	if err != nil {
		return Null(), err
	}
	t.Rename(v, fmt.Sprintf("from(%s)", t.reg.Label(table.ID)))
	return v, nil
}

// Output declares one variable produced by a custom instruction sequence.
type Output struct {
	Size  uint32
	Label string
}

// CustomEx emits an arbitrary instruction sequence with a declared stack
// effect: it consumes the given number of top variables, produces the
// declared outputs, and moves toAlt one-slot values to the alt stack.
func (t *Tracker) CustomEx(s script.Script, consumes uint32, outputs []Output, toAlt uint32) ([]Variable, error) {
	if t.err != nil {
		return nil, t.err
	}
	for i := uint32(0); i < consumes; i++ {
		id, ok := t.model.Top()
		if !ok {
			return nil, t.fail(fmt.Errorf("%w: instruction consumes more variables than the stack holds", ErrVariableNotFound))
		}
		if err := t.model.Remove(id); err != nil {
			return nil, t.fail(err)
		}
	}
	if len(outputs) > 0 {
		ret := make([]Variable, 0, len(outputs))
		for _, out := range outputs {
			v, err := t.reg.Allocate(out.Size, out.Label)
			if err != nil {
				return nil, t.fail(err)
			}
			t.push(v)
			ret = append(ret, v)
		}
		t.emit(s)
		return ret, nil
	}
	for i := uint32(0); i < toAlt; i++ {
		v, err := t.reg.Allocate(1, "altstack")
		if err != nil {
			return nil, t.fail(err)
		}
		t.model.PushAlt(v.ID)
	}
	t.emit(s)
	return nil, nil
}

// Custom emits an arbitrary instruction sequence producing at most one
// one-slot output.
func (t *Tracker) Custom(s script.Script, consumes uint32, output bool, toAlt uint32, label string) (Variable, error) {
	var outputs []Output
	if output {
		outputs = append(outputs, Output{Size: 1, Label: label})
	}
	ret, err := t.CustomEx(s, consumes, outputs, toAlt)
	if err != nil {
		return Null(), err
	}
	if len(ret) == 0 {
		return Null(), nil
	}
	return ret[0], nil
}

// SetBreakpoint names the current position in the history log.
func (t *Tracker) SetBreakpoint(name string) {
	t.rec.SetBreakpoint(name)
}

// Render produces the fixed-format report of the current stack shapes.
// Rendering never mutates the log or the model.
func (t *Tracker) Render() string {
	return history.Format(t.snapshotSeq(t.model.Main()), t.snapshotSeq(t.model.Alt()))
}

// Run hands the generated instruction sequence to the script VM and returns
// its verdict unchanged. A failing script is a normal result, not an error.
func (t *Tracker) Run() vm.Result {
	if t.err != nil {
		return vm.Result{Error: true, ErrMsg: t.err.Error()}
	}
	return vm.Run(t.code)
}
