package stack

import (
	"fmt"

	"github.com/scriptkit/scriptstack/op"
	"github.com/scriptkit/scriptstack/script"
)

// Native opcode wrappers. Each wrapper declares how many top variables the
// opcode consumes and how many it produces; the tracker removes the
// consumed variables from the model and registers the produced ones. Every
// consumed variable must be a single slot, because the opcodes themselves
// operate on slots.

// nativeOp emits a single opcode that consumes the given number of one-slot
// variables and optionally produces one one-slot result.
func (t *Tracker) nativeOp(c op.Code, consumes uint32, output bool, label string) (Variable, error) {
	if t.err != nil {
		return Null(), t.err
	}
	main := t.model.Main()
	if uint32(len(main)) < consumes {
		return Null(), t.fail(fmt.Errorf("%w: %s consumes %d variables, stack holds %d",
			ErrVariableNotFound, c, consumes, len(main)))
	}
	for i := uint32(0); i < consumes; i++ {
		id := main[len(main)-1-int(i)]
		if size := t.reg.SizeOf(id); size != 1 {
			return Null(), t.fail(fmt.Errorf("%w: %s consumes one-slot variables, id %d spans %d slots",
				ErrInvalidSize, c, id, size))
		}
	}
	return t.Custom(script.Script{script.Opcode(c)}, consumes, output, 0, label)
}

// pop removes and returns the top variable, latching on an empty stack.
func (t *Tracker) pop() (Variable, error) {
	id, ok := t.model.Top()
	if !ok {
		return Null(), t.fail(fmt.Errorf("%w: main stack is empty", ErrVariableNotFound))
	}
	if err := t.model.Remove(id); err != nil {
		return Null(), t.fail(err)
	}
	return Variable{ID: id, Size: t.reg.SizeOf(id)}, nil
}

// popSlots removes the top n variables, verifying each is one slot.
func (t *Tracker) popSlots(c op.Code, n int) ([]Variable, error) {
	vars := make([]Variable, 0, n)
	for i := 0; i < n; i++ {
		v, err := t.pop()
		if err != nil {
			return nil, err
		}
		if v.Size != 1 {
			return nil, t.fail(fmt.Errorf("%w: %s requires one-slot variables, id %d spans %d slots",
				ErrInvalidSize, c, v.ID, v.Size))
		}
		vars = append(vars, v)
	}
	return vars, nil
}

func (t *Tracker) OpNegate() (Variable, error) { return t.nativeOp(op.Negate, 1, true, "OP_NEGATE()") }
func (t *Tracker) OpAbs() (Variable, error)    { return t.nativeOp(op.Abs, 1, true, "OP_ABS()") }
func (t *Tracker) OpAdd() (Variable, error)    { return t.nativeOp(op.Add, 2, true, "OP_ADD()") }
func (t *Tracker) OpSub() (Variable, error)    { return t.nativeOp(op.Sub, 2, true, "OP_SUB()") }
func (t *Tracker) OpMin() (Variable, error)    { return t.nativeOp(op.Min, 2, true, "OP_MIN()") }
func (t *Tracker) OpMax() (Variable, error)    { return t.nativeOp(op.Max, 2, true, "OP_MAX()") }
func (t *Tracker) OpWithin() (Variable, error) { return t.nativeOp(op.Within, 3, true, "OP_WITHIN()") }
func (t *Tracker) Op1Add() (Variable, error)   { return t.nativeOp(op.Add1, 1, true, "OP_1ADD()") }
func (t *Tracker) Op1Sub() (Variable, error)   { return t.nativeOp(op.Sub1, 1, true, "OP_1SUB()") }
func (t *Tracker) OpNot() (Variable, error)    { return t.nativeOp(op.Not, 1, true, "OP_NOT()") }

func (t *Tracker) OpBoolAnd() (Variable, error) {
	return t.nativeOp(op.BoolAnd, 2, true, "OP_BOOLAND()")
}

func (t *Tracker) OpBoolOr() (Variable, error) {
	return t.nativeOp(op.BoolOr, 2, true, "OP_BOOLOR()")
}

func (t *Tracker) OpEqual() (Variable, error) {
	return t.nativeOp(op.Equal, 2, true, "OP_EQUAL()")
}

func (t *Tracker) OpNumEqual() (Variable, error) {
	return t.nativeOp(op.NumEqual, 2, true, "OP_NUMEQUAL()")
}

func (t *Tracker) OpNumNotEqual() (Variable, error) {
	return t.nativeOp(op.NumNotEqual, 2, true, "OP_NUMNOTEQUAL()")
}

func (t *Tracker) OpLessThan() (Variable, error) {
	return t.nativeOp(op.LessThan, 2, true, "OP_LESSTHAN()")
}

func (t *Tracker) OpLessThanOrEqual() (Variable, error) {
	return t.nativeOp(op.LessThanOrEqual, 2, true, "OP_LESSTHANOREQUAL()")
}

func (t *Tracker) OpGreaterThan() (Variable, error) {
	return t.nativeOp(op.GreaterThan, 2, true, "OP_GREATERTHAN()")
}

func (t *Tracker) OpGreaterThanOrEqual() (Variable, error) {
	return t.nativeOp(op.GreaterThanOrEqual, 2, true, "OP_GREATERTHANOREQUAL()")
}

func (t *Tracker) OpNumEqualVerify() error {
	_, err := t.nativeOp(op.NumEqualVerify, 2, false, "OP_NUMEQUALVERIFY()")
	return err
}

func (t *Tracker) Op0NotEqual() (Variable, error) {
	return t.nativeOp(op.NotEqual0, 1, true, "OP_0NOTEQUAL()")
}

// OpPick consumes the index on top of the stack and pushes a copy of the
// addressed slot.
func (t *Tracker) OpPick() (Variable, error) {
	return t.nativeOp(op.Pick, 1, true, "OP_PICK()")
}

// OpRoll would consume a position on the stack that the model cannot
// resolve statically, so it cannot be generated; use MoveToTop instead.
func (t *Tracker) OpRoll() (Variable, error) {
	return Null(), t.fail(fmt.Errorf(
		"%w: OP_ROLL consumes a statically unresolvable stack position; use MoveToTop", ErrInvalidSize))
}

// OpIfDup cannot be generated: whether it pushes a value depends on the
// runtime value, so its effect on the stack depth is unknowable before
// execution.
func (t *Tracker) OpIfDup() (Variable, error) {
	return Null(), t.fail(fmt.Errorf(
		"%w: OP_IFDUP has a value-dependent stack effect", ErrInvalidSize))
}

func (t *Tracker) OpVerify() error {
	_, err := t.nativeOp(op.Verify, 1, false, "OP_VERIFY()")
	return err
}

func (t *Tracker) OpEqualVerify() error {
	_, err := t.nativeOp(op.EqualVerify, 2, false, "OP_EQUALVERIFY()")
	return err
}

func (t *Tracker) hashOp(c op.Code, name string) (Variable, error) {
	if t.err != nil {
		return Null(), t.err
	}
	label := name + "()"
	if id, ok := t.model.Top(); ok {
		label = fmt.Sprintf("%s(%s)", name, t.reg.Label(id))
	}
	return t.nativeOp(c, 1, true, label)
}

func (t *Tracker) OpSha256() (Variable, error)    { return t.hashOp(op.Sha256, "sha256") }
func (t *Tracker) OpHash160() (Variable, error)   { return t.hashOp(op.Hash160, "hash160") }
func (t *Tracker) OpHash256() (Variable, error)   { return t.hashOp(op.Hash256, "hash256") }
func (t *Tracker) OpRipemd160() (Variable, error) { return t.hashOp(op.Ripemd160, "ripemd160") }

func (t *Tracker) OpTrue() (Variable, error) {
	v, err := t.nativeOp(op.True, 0, true, "OP_TRUE")
	if err == nil {
		t.reg.SetValue(v.ID, "1")
	}
	return v, err
}

func (t *Tracker) OpNop() error {
	_, err := t.nativeOp(op.Nop, 0, false, "OP_NOP")
	return err
}

func (t *Tracker) OpDrop() error {
	_, err := t.nativeOp(op.Drop, 1, false, "OP_DROP")
	return err
}

func (t *Tracker) Op2Drop() error {
	_, err := t.nativeOp(op.Drop2, 2, false, "OP_2DROP")
	return err
}

func (t *Tracker) OpDepth() (Variable, error) {
	return t.nativeOp(op.Depth, 0, true, "OP_DEPTH")
}

func (t *Tracker) OpDup() (Variable, error) {
	return t.nativeOp(op.Dup, 0, true, "OP_DUP")
}

func (t *Tracker) Op2Dup() (Variable, Variable, error) {
	x, err := t.Define(1, "OP_2DUP")
	if err != nil {
		return Null(), Null(), err
	}
	y, err := t.nativeOp(op.Dup2, 0, true, "OP_2DUP")
	if err != nil {
		return Null(), Null(), err
	}
	return x, y, nil
}

func (t *Tracker) Op3Dup() (Variable, Variable, Variable, error) {
	x, err := t.Define(1, "OP_3DUP")
	if err != nil {
		return Null(), Null(), Null(), err
	}
	y, err := t.Define(1, "OP_3DUP")
	if err != nil {
		return Null(), Null(), Null(), err
	}
	z, err := t.nativeOp(op.Dup3, 0, true, "OP_3DUP")
	if err != nil {
		return Null(), Null(), Null(), err
	}
	return x, y, z, nil
}

// OpSwap exchanges the top two variables. Pure reorder: nothing is
// consumed or produced.
func (t *Tracker) OpSwap() error {
	if t.err != nil {
		return t.err
	}
	vars, err := t.popSlots(op.Swap, 2)
	if err != nil {
		return err
	}
	t.push(vars[0])
	t.push(vars[1])
	_, err = t.nativeOp(op.Swap, 0, false, "OP_SWAP")
	return err
}

func (t *Tracker) Op2Swap() error {
	if t.err != nil {
		return t.err
	}
	vars, err := t.popSlots(op.Swap2, 4)
	if err != nil {
		return err
	}
	d, c, b, a := vars[0], vars[1], vars[2], vars[3]
	t.push(c)
	t.push(d)
	t.push(a)
	t.push(b)
	_, err = t.nativeOp(op.Swap2, 0, false, "OP_2SWAP")
	return err
}

func (t *Tracker) OpRot() error {
	if t.err != nil {
		return t.err
	}
	vars, err := t.popSlots(op.Rot, 3)
	if err != nil {
		return err
	}
	x, y, z := vars[0], vars[1], vars[2]
	t.push(y)
	t.push(x)
	t.push(z)
	_, err = t.nativeOp(op.Rot, 0, false, "OP_ROT")
	return err
}

func (t *Tracker) Op2Rot() error {
	if t.err != nil {
		return t.err
	}
	vars, err := t.popSlots(op.Rot2, 6)
	if err != nil {
		return err
	}
	f, e, d, c, b, a := vars[0], vars[1], vars[2], vars[3], vars[4], vars[5]
	t.push(c)
	t.push(d)
	t.push(e)
	t.push(f)
	t.push(a)
	t.push(b)
	_, err = t.nativeOp(op.Rot2, 0, false, "OP_2ROT")
	return err
}

func (t *Tracker) OpNip() error {
	if t.err != nil {
		return t.err
	}
	vars, err := t.popSlots(op.Nip, 2)
	if err != nil {
		return err
	}
	t.push(vars[0])
	_, err = t.nativeOp(op.Nip, 0, false, "OP_NIP")
	return err
}

// OpTuck duplicates the top slot below the second one; the duplicate is a
// new variable.
func (t *Tracker) OpTuck() (Variable, error) {
	if t.err != nil {
		return Null(), t.err
	}
	vars, err := t.popSlots(op.Tuck, 2)
	if err != nil {
		return Null(), err
	}
	x, y := vars[0], vars[1]
	dup, err := t.reg.Allocate(1, "OP_TUCK()")
	if err != nil {
		return Null(), t.fail(err)
	}
	t.push(dup)
	t.push(y)
	t.push(x)
	t.emit(script.Script{script.Opcode(op.Tuck)})
	return dup, nil
}

// OpOver copies the second variable from the top.
func (t *Tracker) OpOver() (Variable, error) {
	if t.err != nil {
		return Null(), t.err
	}
	label := "OP_OVER"
	main := t.model.Main()
	if len(main) >= 2 {
		label = t.reg.Label(main[len(main)-2])
	}
	return t.nativeOp(op.Over, 0, true, label)
}

// Op2Over copies the third and fourth variables from the top.
func (t *Tracker) Op2Over() (Variable, Variable, error) {
	if t.err != nil {
		return Null(), Null(), t.err
	}
	labelX, labelY := "OP_2OVER", "OP_2OVER"
	main := t.model.Main()
	if len(main) >= 4 {
		labelX = t.reg.Label(main[len(main)-4])
		labelY = t.reg.Label(main[len(main)-3])
	}
	x, err := t.Define(1, labelX)
	if err != nil {
		return Null(), Null(), err
	}
	y, err := t.nativeOp(op.Over2, 0, true, labelY)
	if err != nil {
		return Null(), Null(), err
	}
	return x, y, nil
}
