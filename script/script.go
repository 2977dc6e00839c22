// Package script represents ordered instruction sequences for the script VM
// and the low-level generation helpers used by the stack tracker.
package script

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/scriptkit/scriptstack/op"
)

// Instruction is one opcode together with its operand, if any. Only
// op.PushData instructions carry a Data operand; every other opcode is fully
// described by its code. The exact binary encoding of an instruction is the
// responsibility of the external encoder, not this package.
type Instruction struct {
	Op   op.Code
	Data []byte
}

// Opcode returns an Instruction with no operand.
func Opcode(c op.Code) Instruction {
	return Instruction{Op: c}
}

// Num returns an Instruction that pushes the number n. Values 0 through 16
// use the dedicated small-number opcodes; anything else becomes a data push
// of the minimally-encoded number.
func Num(n int64) Instruction {
	if n >= 0 && n <= 16 {
		return Instruction{Op: op.ForSmallNum(n)}
	}
	return Instruction{Op: op.PushData, Data: PutNum(n)}
}

// Bytes returns an Instruction that pushes raw data.
func Bytes(data []byte) Instruction {
	return Instruction{Op: op.PushData, Data: data}
}

// String renders the instruction in asm form, e.g. "OP_ROLL" or "0x0102".
func (in Instruction) String() string {
	if in.Op == op.PushData {
		if len(in.Data) == 0 {
			return "OP_0"
		}
		if n, err := ParseNum(in.Data, maxNumLen); err == nil {
			return fmt.Sprintf("%d", n)
		}
		return "0x" + hex.EncodeToString(in.Data)
	}
	return in.Op.String()
}

// PushValue returns the value this instruction pushes onto the stack and
// whether the instruction is a push at all.
func (in Instruction) PushValue() ([]byte, bool) {
	switch {
	case in.Op == op.PushData:
		return in.Data, true
	case in.Op.IsSmallNum():
		return PutNum(in.Op.SmallNum()), true
	}
	return nil, false
}

// SmallNum reports the numeric value of the instruction when it pushes a
// number in the range 0 through 16, in any encoding.
func (in Instruction) SmallNum() (int64, bool) {
	if in.Op.IsSmallNum() {
		return in.Op.SmallNum(), true
	}
	if in.Op == op.PushData && len(in.Data) == 0 {
		return 0, true
	}
	return 0, false
}

// Script is an ordered instruction sequence, ready for an external encoder
// or the reference interpreter.
type Script []Instruction

// String renders the script in asm form, one instruction per space-separated
// token.
func (s Script) String() string {
	parts := make([]string, len(s))
	for i, in := range s {
		parts[i] = in.String()
	}
	return strings.Join(parts, " ")
}

// MoveFrom produces the instructions that relocate size slots starting at
// the given depth to the top of the stack, lowest slot first. Each OP_ROLL
// removes the slot from its old position, so the remaining slots drift one
// position shallower per emitted roll; the constant operand depth+size-1
// already accounts for that drift.
func MoveFrom(depth, size uint32) Script {
	var s Script
	for i := uint32(0); i < size; i++ {
		s = append(s, Num(int64(depth+size-1)), Opcode(op.Roll))
	}
	return s
}

// CopyFrom produces the instructions that duplicate size slots starting at
// the given depth onto the top of the stack, deepest slot first. Every
// OP_PICK pushes one new slot, moving the source one position deeper while
// the next slot to copy sits one position shallower, so the operand is the
// same constant depth+size-1 for each pick.
func CopyFrom(depth, size uint32) Script {
	var s Script
	for i := uint32(0); i < size; i++ {
		s = append(s, Num(int64(depth+size-1)), Opcode(op.Pick))
	}
	return s
}

// DropCount produces the instructions that discard n slots from the top of
// the stack, pairing OP_2DROP where possible.
func DropCount(n uint32) Script {
	var s Script
	for i := uint32(0); i < n/2; i++ {
		s = append(s, Opcode(op.Drop2))
	}
	if n&1 == 1 {
		s = append(s, Opcode(op.Drop))
	}
	return s
}

// ToAlt produces n OP_TOALTSTACK instructions.
func ToAlt(n uint32) Script {
	var s Script
	for i := uint32(0); i < n; i++ {
		s = append(s, Opcode(op.ToAltStack))
	}
	return s
}

// FromAlt produces n OP_FROMALTSTACK instructions.
func FromAlt(n uint32) Script {
	var s Script
	for i := uint32(0); i < n; i++ {
		s = append(s, Opcode(op.FromAltStack))
	}
	return s
}

// NumberToNibbles pushes the eight nibbles of a 32-bit number, most
// significant first.
func NumberToNibbles(n uint32) Script {
	var s Script
	for i := 7; i >= 0; i-- {
		s = append(s, Num(int64((n>>(uint(i)*4))&0xf)))
	}
	return s
}

// NumberToBytes pushes the four bytes of a 32-bit number, most significant
// first.
func NumberToBytes(n uint32) Script {
	var s Script
	for i := 3; i >= 0; i-- {
		s = append(s, Num(int64((n>>(uint(i)*8))&0xff)))
	}
	return s
}

// ByteToNibbles pushes the two nibbles of a byte, most significant first.
func ByteToNibbles(b byte) Script {
	return Script{Num(int64(b >> 4)), Num(int64(b & 0xf))}
}

// VerifyN produces the instructions that compare two n-slot spans sitting
// adjacent on top of the stack, consuming both. Slot i of the deeper span is
// rolled up next to its counterpart and checked with OP_EQUALVERIFY.
func VerifyN(n uint32) Script {
	var s Script
	for i := uint32(0); i < n; i++ {
		s = append(s, Num(int64(n-i)), Opcode(op.Roll), Opcode(op.EqualVerify))
	}
	return s
}
