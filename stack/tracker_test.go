package stack

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scriptkit/scriptstack/history"
	"github.com/scriptkit/scriptstack/op"
	"github.com/scriptkit/scriptstack/script"
)

// multiSlot pushes one variable whose slots hold first, first+1, ...
func multiSlot(t *testing.T, tr *Tracker, size uint32, first int64) Variable {
	t.Helper()
	var s script.Script
	for i := int64(0); i < int64(size); i++ {
		s = append(s, script.Num(first+i))
	}
	v, err := tr.Var(size, s, fmt.Sprintf("multi(%d)", first))
	require.NoError(t, err)
	return v
}

func nums(values ...int64) [][]byte {
	out := make([][]byte, len(values))
	for i, v := range values {
		out[i] = script.PutNum(v)
	}
	return out
}

func TestMoveToTopPosition(t *testing.T) {
	tr := New()
	a := tr.Number(1)
	tr.Number(2)
	tr.Number(3)

	pos, err := tr.PositionOf(a)
	require.NoError(t, err)
	require.Equal(t, uint32(2), pos)

	require.NoError(t, tr.MoveToTop(a))
	pos, err = tr.PositionOf(a)
	require.NoError(t, err)
	require.Equal(t, uint32(0), pos)
}

func TestMoveToTopOfTopIsFree(t *testing.T) {
	tr := New()
	tr.Number(1)
	b := tr.Number(2)
	before := len(tr.Script())
	require.NoError(t, tr.MoveToTop(b))
	require.Len(t, tr.Script(), before)
}

func TestMoveDriftConstants(t *testing.T) {
	for size := uint32(1); size <= 4; size++ {
		for fillers := 0; fillers <= 3; fillers++ {
			t.Run(fmt.Sprintf("size=%d,depth=%d", size, fillers), func(t *testing.T) {
				tr := New()
				v := multiSlot(t, tr, size, 10)
				for i := 0; i < fillers; i++ {
					tr.Number(99)
				}
				before := len(tr.Script())
				require.NoError(t, tr.MoveToTop(v))

				if fillers == 0 {
					require.Len(t, tr.Script(), before)
					return
				}
				// Per-slot relocation uses the same constant operand every
				// time; the rolls themselves absorb the drift.
				moves := tr.Script()[before:]
				require.Len(t, moves, int(2*size))
				operand := int64(fillers) + int64(size) - 1
				for i := uint32(0); i < size; i++ {
					n, ok := moves[2*i].SmallNum()
					require.True(t, ok)
					require.Equal(t, operand, n)
					require.Equal(t, op.Roll, moves[2*i+1].Op)
				}

				res := tr.Run()
				require.False(t, res.Error, res.ErrMsg)
				want := [][]byte{}
				for i := 0; i < fillers; i++ {
					want = append(want, script.PutNum(99))
				}
				for i := int64(0); i < int64(size); i++ {
					want = append(want, script.PutNum(10+i))
				}
				require.Equal(t, want, res.Stack)
			})
		}
	}
}

func TestCopyDriftConstants(t *testing.T) {
	for size := uint32(1); size <= 4; size++ {
		t.Run(fmt.Sprintf("size=%d", size), func(t *testing.T) {
			tr := New()
			v := multiSlot(t, tr, size, 10)
			tr.Number(99)

			before := len(tr.Script())
			cp, err := tr.Copy(v)
			require.NoError(t, err)
			require.Equal(t, size, cp.Size)
			require.NotEqual(t, v.ID, cp.ID)

			copies := tr.Script()[before:]
			require.Len(t, copies, int(2*size))
			operand := int64(size) // depth 1 + size - 1
			for i := uint32(0); i < size; i++ {
				n, ok := copies[2*i].SmallNum()
				require.True(t, ok)
				require.Equal(t, operand, n)
				require.Equal(t, op.Pick, copies[2*i+1].Op)
			}

			// The copy sits on top, the source keeps its place.
			pos, err := tr.PositionOf(cp)
			require.NoError(t, err)
			require.Equal(t, uint32(0), pos)
			pos, err = tr.PositionOf(v)
			require.NoError(t, err)
			require.Equal(t, size+1, pos)

			res := tr.Run()
			require.False(t, res.Error, res.ErrMsg)
			want := [][]byte{}
			for i := int64(0); i < int64(size); i++ {
				want = append(want, script.PutNum(10+i))
			}
			want = append(want, script.PutNum(99))
			for i := int64(0); i < int64(size); i++ {
				want = append(want, script.PutNum(10+i))
			}
			require.Equal(t, want, res.Stack)
		})
	}
}

func TestDropThenUseLatches(t *testing.T) {
	tr := New()
	v := tr.Number(1)
	tr.Number(2)
	require.NoError(t, tr.Drop(v))

	err := tr.MoveToTop(v)
	require.ErrorIs(t, err, ErrVariableNotFound)
	require.ErrorIs(t, tr.Err(), ErrVariableNotFound)

	// Every later operation is a no-op returning the latched error.
	w := tr.Number(3)
	require.True(t, w.IsNull())
	require.ErrorIs(t, tr.OpDrop(), ErrVariableNotFound)

	res := tr.Run()
	require.True(t, res.Error)
	require.Contains(t, res.ErrMsg, "variable not found")
}

func TestRenderIdempotent(t *testing.T) {
	tr := New()
	tr.Number(1)
	tr.Byte(0xab)

	first := tr.Render()
	second := tr.Render()
	require.Equal(t, first, second)
	require.Contains(t, first, "number(0x1)")
	require.Contains(t, first, "byte(0xab)")
	require.Contains(t, first, "STACK:")
}

func TestBreakpointJump(t *testing.T) {
	tr := New()
	tr.Number(1)
	tr.SetBreakpoint("after-one")
	tr.Number(2)
	tr.Number(3)

	cur := history.NewCursor(tr.Recorder())
	cur.End()
	pos, err := cur.JumpTo("after-one")
	require.NoError(t, err)
	require.Equal(t, 1, pos)

	_, err = cur.JumpTo("missing")
	require.ErrorIs(t, err, history.ErrBreakpointNotFound)
	require.Equal(t, 1, cur.Pos())
}

func TestReferenceProgram(t *testing.T) {
	tr := New()
	one := tr.Number(1)
	ten := tr.Number(10)

	_, err := tr.Copy(ten)
	require.NoError(t, err)
	require.NoError(t, tr.MoveToTop(ten))
	require.NoError(t, tr.OpEqualVerify())
	require.NoError(t, tr.Drop(one))
	_, err = tr.OpTrue()
	require.NoError(t, err)

	res := tr.Run()
	require.False(t, res.Error, res.ErrMsg)
	require.True(t, res.Success)
}

func TestAltStackRoundTrip(t *testing.T) {
	tr := New()
	a := tr.Number(1)
	b := tr.Number(2)

	require.NoError(t, tr.ToAltStack(a))
	pos, err := tr.PositionOf(b)
	require.NoError(t, err)
	require.Equal(t, uint32(0), pos)

	require.NoError(t, tr.ToAltStack(b))
	require.NoError(t, tr.FromAltStack(b))
	require.NoError(t, tr.FromAltStack(a))

	res := tr.Run()
	require.False(t, res.Error, res.ErrMsg)
	require.Equal(t, nums(2, 1), res.Stack)
	require.Empty(t, res.AltStack)
}

func TestFromAltStackRequiresAltTop(t *testing.T) {
	tr := New()
	a := tr.Number(1)
	b := tr.Number(2)
	require.NoError(t, tr.ToAltStack(a))
	require.NoError(t, tr.ToAltStack(b))

	err := tr.FromAltStack(a)
	require.ErrorIs(t, err, ErrVariableNotFound)
}

func TestToAltStackCountRoundTrip(t *testing.T) {
	tr := New()
	tr.Number(1)
	b := tr.Number(2)
	c := tr.Number(3)

	moved, err := tr.ToAltStackCount(2)
	require.NoError(t, err)
	require.Equal(t, []Variable{c, b}, moved)

	back, err := tr.FromAltStackCount(2)
	require.NoError(t, err)
	require.Equal(t, []Variable{b, c}, back)

	res := tr.Run()
	require.False(t, res.Error, res.ErrMsg)
	require.Equal(t, nums(1, 2, 3), res.Stack)
	require.Empty(t, res.AltStack)
}

func TestToAltStackCountEmptyMain(t *testing.T) {
	tr := New()
	tr.Number(1)

	_, err := tr.ToAltStackCount(2)
	require.ErrorIs(t, err, ErrVariableNotFound)
}

func TestFromAltStackJoined(t *testing.T) {
	tr := New()
	tr.Number(1)
	tr.Number(2)
	tr.Number(3)

	_, err := tr.ToAltStackCount(2)
	require.NoError(t, err)

	joined, err := tr.FromAltStackJoined(2, "pair")
	require.NoError(t, err)
	require.Equal(t, uint32(2), joined.Size)
	require.Equal(t, "pair", tr.reg.Label(joined.ID))

	pos, err := tr.PositionOf(joined)
	require.NoError(t, err)
	require.Equal(t, uint32(0), pos)

	res := tr.Run()
	require.False(t, res.Error, res.ErrMsg)
	require.Equal(t, nums(1, 2, 3), res.Stack)
	require.Empty(t, res.AltStack)
}

func TestFromAltStackJoinedRequiresTwo(t *testing.T) {
	tr := New()
	a := tr.Number(1)
	require.NoError(t, tr.ToAltStack(a))

	_, err := tr.FromAltStackJoined(1, "lonely")
	require.ErrorIs(t, err, ErrInvalidSize)
}

func TestMoveSubSuffix(t *testing.T) {
	tr := New()
	x := tr.NumberU32(0x12345678)
	tr.Number(15)

	moved, rest, err := tr.MoveSub(x, 6)
	require.NoError(t, err)
	require.Equal(t, uint32(2), moved.Size)
	require.Equal(t, uint32(6), rest.Size)

	pos, err := tr.PositionOf(moved)
	require.NoError(t, err)
	require.Equal(t, uint32(0), pos)
	pos, err = tr.PositionOf(rest)
	require.NoError(t, err)
	require.Equal(t, uint32(3), pos)

	res := tr.Run()
	require.False(t, res.Error, res.ErrMsg)
	require.Equal(t, nums(1, 2, 3, 4, 5, 6, 15, 7, 8), res.Stack)
}

func TestMoveSubWholeVariable(t *testing.T) {
	tr := New()
	x := tr.NumberU32(0x00000012)
	tr.Number(9)

	moved, rest, err := tr.MoveSub(x, 0)
	require.NoError(t, err)
	require.True(t, rest.IsNull())
	require.Equal(t, uint32(8), moved.Size)

	res := tr.Run()
	require.False(t, res.Error, res.ErrMsg)
	require.Equal(t, nums(9, 0, 0, 0, 0, 0, 0, 1, 2), res.Stack)
}

func TestMoveSubOutOfRange(t *testing.T) {
	tr := New()
	x := tr.Byte(0x12)
	_, _, err := tr.MoveSub(x, 2)
	require.ErrorIs(t, err, ErrInvalidSize)
	require.ErrorIs(t, tr.Err(), ErrInvalidSize)
}

func TestCopySubSlot(t *testing.T) {
	tr := New()
	x := tr.NumberU32(0x12345678)

	cp, err := tr.CopySub(x, 1)
	require.NoError(t, err)
	require.Equal(t, uint32(1), cp.Size)

	res := tr.Run()
	require.False(t, res.Error, res.ErrMsg)
	require.Equal(t, nums(1, 2, 3, 4, 5, 6, 7, 8, 2), res.Stack)
}

func TestJoin(t *testing.T) {
	tr := New()
	a := tr.Number(1)
	tr.Number(2)
	before := len(tr.Script())

	joined, err := tr.Join(a)
	require.NoError(t, err)
	require.Equal(t, uint32(2), joined.Size)
	require.Len(t, tr.Script(), before)

	pos, err := tr.PositionOf(joined)
	require.NoError(t, err)
	require.Equal(t, uint32(0), pos)
}

func TestJoinTopFails(t *testing.T) {
	tr := New()
	tr.Number(1)
	b := tr.Number(2)
	_, err := tr.Join(b)
	require.ErrorIs(t, err, ErrVariableNotFound)
}

func TestExplode(t *testing.T) {
	tr := New()
	v := tr.Byte(0x2a)

	parts, err := tr.Explode(v)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	require.Equal(t, "byte(0x2a)[0]", tr.LabelOf(parts[0]))
	require.Equal(t, "byte(0x2a)[1]", tr.LabelOf(parts[1]))

	pos, err := tr.PositionOf(parts[1])
	require.NoError(t, err)
	require.Equal(t, uint32(0), pos)
	pos, err = tr.PositionOf(parts[0])
	require.NoError(t, err)
	require.Equal(t, uint32(1), pos)
}

func TestExplodeRequiresTop(t *testing.T) {
	tr := New()
	v := tr.Byte(0x2a)
	tr.Number(1)
	_, err := tr.Explode(v)
	require.ErrorIs(t, err, ErrVariableNotFound)
}

func TestEqualsConsuming(t *testing.T) {
	tr := New()
	a := tr.NumberU32(0x1234)
	b := tr.NumberU32(0x1234)
	require.NoError(t, tr.Equals(a, true, b, true))
	_, err := tr.OpTrue()
	require.NoError(t, err)

	res := tr.Run()
	require.False(t, res.Error, res.ErrMsg)
	require.True(t, res.Success)
}

func TestEqualsPreserving(t *testing.T) {
	tr := New()
	a := tr.Byte(0x55)
	b := tr.Byte(0x55)
	require.NoError(t, tr.Equals(a, false, b, false))

	// Both variables survive the comparison.
	require.NoError(t, tr.Drop(b))
	require.NoError(t, tr.Drop(a))
	_, err := tr.OpTrue()
	require.NoError(t, err)

	res := tr.Run()
	require.False(t, res.Error, res.ErrMsg)
	require.True(t, res.Success)
}

func TestEqualsMismatchFailsAtRuntime(t *testing.T) {
	tr := New()
	a := tr.Byte(0x55)
	b := tr.Byte(0x56)
	require.NoError(t, tr.Equals(a, true, b, true))

	res := tr.Run()
	require.True(t, res.Error)
	require.Contains(t, res.ErrMsg, "OP_EQUALVERIFY")
}

func TestEqualsSizeMismatch(t *testing.T) {
	tr := New()
	a := tr.Number(1)
	b := tr.Byte(0x01)
	err := tr.Equals(a, true, b, true)
	require.ErrorIs(t, err, ErrInvalidSize)
}

func TestGetValueFromTable(t *testing.T) {
	tr := New()
	table := multiSlot(t, tr, 4, 10)
	tr.Number(2)

	v, err := tr.GetValueFromTable(table, 0)
	require.NoError(t, err)
	require.Equal(t, "from(multi(10))", tr.LabelOf(v))

	res := tr.Run()
	require.False(t, res.Error, res.ErrMsg)
	require.Equal(t, nums(10, 11, 12, 13, 11), res.Stack)
}

func TestCustom(t *testing.T) {
	tr := New()
	tr.Number(1)
	tr.Number(2)

	sum, err := tr.Custom(script.Script{script.Opcode(op.Add)}, 2, true, 0, "sum")
	require.NoError(t, err)
	pos, err := tr.PositionOf(sum)
	require.NoError(t, err)
	require.Equal(t, uint32(0), pos)

	res := tr.Run()
	require.False(t, res.Error, res.ErrMsg)
	require.Equal(t, nums(3), res.Stack)
}

func TestCustomExOutputs(t *testing.T) {
	tr := New()
	tr.Number(5)

	outs, err := tr.CustomEx(
		script.Script{script.Opcode(op.Dup), script.Opcode(op.Dup)},
		1,
		[]Output{{Size: 1, Label: "x"}, {Size: 2, Label: "y"}},
		0,
	)
	require.NoError(t, err)
	require.Len(t, outs, 2)
	require.Equal(t, uint32(2), outs[1].Size)

	res := tr.Run()
	require.False(t, res.Error, res.ErrMsg)
	require.Equal(t, nums(5, 5, 5), res.Stack)
}

func TestNumberU32Nibbles(t *testing.T) {
	tr := New()
	tr.NumberU32(0xdeadbeaf)
	res := tr.Run()
	require.False(t, res.Error, res.ErrMsg)
	require.Equal(t, nums(13, 14, 10, 13, 11, 14, 10, 15), res.Stack)
}

func TestHexStr(t *testing.T) {
	tr := New()
	v, err := tr.HexStr("cafe01")
	require.NoError(t, err)
	require.Equal(t, uint32(1), v.Size)

	res := tr.Run()
	require.False(t, res.Error, res.ErrMsg)
	require.Equal(t, [][]byte{{0xca, 0xfe, 0x01}}, res.Stack)

	_, err = tr.HexStr("zz")
	require.Error(t, err)
	require.Error(t, tr.Err())
}

func TestMaxStackSize(t *testing.T) {
	tr := New()
	tr.NumberU32(1)
	v := tr.Number(2)
	require.Equal(t, uint32(9), tr.MaxStackSize())
	require.NoError(t, tr.Drop(v))
	require.Equal(t, uint32(9), tr.MaxStackSize())
}

func TestDefineEmitsNothing(t *testing.T) {
	tr := New()
	v, err := tr.Define(3, "witness")
	require.NoError(t, err)
	require.Equal(t, uint32(3), v.Size)
	require.Empty(t, tr.Script())

	pos, err := tr.PositionOf(v)
	require.NoError(t, err)
	require.Equal(t, uint32(0), pos)
}

func TestVerifyNEqualSpans(t *testing.T) {
	tr := New()
	multiSlot(t, tr, 2, 5)
	multiSlot(t, tr, 2, 5)

	_, err := tr.Custom(script.VerifyN(2), 2, false, 0, "")
	require.NoError(t, err)
	_, err = tr.OpTrue()
	require.NoError(t, err)

	res := tr.Run()
	require.False(t, res.Error, res.ErrMsg)
	require.True(t, res.Success)
}

func TestVerifyNMismatchFailsAtRuntime(t *testing.T) {
	tr := New()
	multiSlot(t, tr, 2, 5)
	multiSlot(t, tr, 2, 7)

	_, err := tr.Custom(script.VerifyN(2), 2, false, 0, "")
	require.NoError(t, err)

	res := tr.Run()
	require.True(t, res.Error)
	require.Equal(t, "OP_EQUALVERIFY", res.LastOpcode)
}

func TestNumberU32Bytes(t *testing.T) {
	tr := New()
	v := tr.NumberU32Bytes(0x01020304)
	require.Equal(t, uint32(4), v.Size)
	require.Equal(t, "number_u32_u8(0x1020304)", tr.reg.Label(v.ID))

	res := tr.Run()
	require.False(t, res.Error, res.ErrMsg)
	require.Equal(t, nums(1, 2, 3, 4), res.Stack)
}

func TestAllocateZeroSize(t *testing.T) {
	tr := New()
	_, err := tr.Define(0, "empty")
	require.ErrorIs(t, err, ErrInvalidSize)
}

func TestHistoryPerInstruction(t *testing.T) {
	tr := New()
	a := tr.Number(1)
	tr.Number(2)
	require.NoError(t, tr.MoveToTop(a))

	require.Equal(t, len(tr.Script()), tr.Recorder().Len())

	last := tr.Recorder().Record(tr.Recorder().Len() - 1)
	require.Len(t, last.Main, 2)
	require.Equal(t, a.ID, last.Main[1].ID)
}
