// Package op defines the opcodes of the script virtual machine targeted by
// the stack tracker and code generator.
package op

// Code is a one-byte opcode that indicates an operation to execute.
type Code uint8

const (
	// Constants
	False Code = 0x00 // pushes an empty byte string (numeric zero)
	Num1  Code = 0x51
	Num2  Code = 0x52
	Num3  Code = 0x53
	Num4  Code = 0x54
	Num5  Code = 0x55
	Num6  Code = 0x56
	Num7  Code = 0x57
	Num8  Code = 0x58
	Num9  Code = 0x59
	Num10 Code = 0x5a
	Num11 Code = 0x5b
	Num12 Code = 0x5c
	Num13 Code = 0x5d
	Num14 Code = 0x5e
	Num15 Code = 0x5f
	Num16 Code = 0x60
	True  Code = Num1

	// PushData pushes the instruction's byte operand. The binary encoding of
	// variable-length pushes belongs to the external encoder, so a single
	// logical opcode is enough here.
	PushData Code = 0x01

	// Flow control
	Nop    Code = 0x61
	If     Code = 0x63
	Else   Code = 0x67
	EndIf  Code = 0x68
	Verify Code = 0x69

	// Stack
	ToAltStack   Code = 0x6b
	FromAltStack Code = 0x6c
	Drop2        Code = 0x6d
	Dup2         Code = 0x6e
	Dup3         Code = 0x6f
	Over2        Code = 0x70
	Rot2         Code = 0x71
	Swap2        Code = 0x72
	IfDup        Code = 0x73
	Depth        Code = 0x74
	Drop         Code = 0x75
	Dup          Code = 0x76
	Nip          Code = 0x77
	Over         Code = 0x78
	Pick         Code = 0x79
	Roll         Code = 0x7a
	Rot          Code = 0x7b
	Swap         Code = 0x7c
	Tuck         Code = 0x7d

	// Comparison
	Equal       Code = 0x87
	EqualVerify Code = 0x88

	// Arithmetic
	Add1               Code = 0x8b
	Sub1               Code = 0x8c
	Negate             Code = 0x8f
	Abs                Code = 0x90
	Not                Code = 0x91
	NotEqual0          Code = 0x92
	Add                Code = 0x93
	Sub                Code = 0x94
	BoolAnd            Code = 0x9a
	BoolOr             Code = 0x9b
	NumEqual           Code = 0x9c
	NumEqualVerify     Code = 0x9d
	NumNotEqual        Code = 0x9e
	LessThan           Code = 0x9f
	GreaterThan        Code = 0xa0
	LessThanOrEqual    Code = 0xa1
	GreaterThanOrEqual Code = 0xa2
	Min                Code = 0xa3
	Max                Code = 0xa4
	Within             Code = 0xa5

	// Crypto
	Ripemd160 Code = 0xa6
	Sha256    Code = 0xa8
	Hash160   Code = 0xa9
	Hash256   Code = 0xaa
)

// Info contains information about an opcode.
type Info struct {
	Code Code
	Name string
}

var infos = make([]Info, 256)

func init() {
	type opInfo struct {
		op   Code
		name string
	}
	ops := []opInfo{
		{False, "OP_0"},
		{PushData, "OP_PUSHDATA"},
		{Num1, "OP_1"},
		{Num2, "OP_2"},
		{Num3, "OP_3"},
		{Num4, "OP_4"},
		{Num5, "OP_5"},
		{Num6, "OP_6"},
		{Num7, "OP_7"},
		{Num8, "OP_8"},
		{Num9, "OP_9"},
		{Num10, "OP_10"},
		{Num11, "OP_11"},
		{Num12, "OP_12"},
		{Num13, "OP_13"},
		{Num14, "OP_14"},
		{Num15, "OP_15"},
		{Num16, "OP_16"},
		{Nop, "OP_NOP"},
		{If, "OP_IF"},
		{Else, "OP_ELSE"},
		{EndIf, "OP_ENDIF"},
		{Verify, "OP_VERIFY"},
		{ToAltStack, "OP_TOALTSTACK"},
		{FromAltStack, "OP_FROMALTSTACK"},
		{Drop2, "OP_2DROP"},
		{Dup2, "OP_2DUP"},
		{Dup3, "OP_3DUP"},
		{Over2, "OP_2OVER"},
		{Rot2, "OP_2ROT"},
		{Swap2, "OP_2SWAP"},
		{IfDup, "OP_IFDUP"},
		{Depth, "OP_DEPTH"},
		{Drop, "OP_DROP"},
		{Dup, "OP_DUP"},
		{Nip, "OP_NIP"},
		{Over, "OP_OVER"},
		{Pick, "OP_PICK"},
		{Roll, "OP_ROLL"},
		{Rot, "OP_ROT"},
		{Swap, "OP_SWAP"},
		{Tuck, "OP_TUCK"},
		{Equal, "OP_EQUAL"},
		{EqualVerify, "OP_EQUALVERIFY"},
		{Add1, "OP_1ADD"},
		{Sub1, "OP_1SUB"},
		{Negate, "OP_NEGATE"},
		{Abs, "OP_ABS"},
		{Not, "OP_NOT"},
		{NotEqual0, "OP_0NOTEQUAL"},
		{Add, "OP_ADD"},
		{Sub, "OP_SUB"},
		{BoolAnd, "OP_BOOLAND"},
		{BoolOr, "OP_BOOLOR"},
		{NumEqual, "OP_NUMEQUAL"},
		{NumEqualVerify, "OP_NUMEQUALVERIFY"},
		{NumNotEqual, "OP_NUMNOTEQUAL"},
		{LessThan, "OP_LESSTHAN"},
		{GreaterThan, "OP_GREATERTHAN"},
		{LessThanOrEqual, "OP_LESSTHANOREQUAL"},
		{GreaterThanOrEqual, "OP_GREATERTHANOREQUAL"},
		{Min, "OP_MIN"},
		{Max, "OP_MAX"},
		{Within, "OP_WITHIN"},
		{Ripemd160, "OP_RIPEMD160"},
		{Sha256, "OP_SHA256"},
		{Hash160, "OP_HASH160"},
		{Hash256, "OP_HASH256"},
	}
	for _, o := range ops {
		infos[o.op] = Info{Code: o.op, Name: o.name}
	}
}

// GetInfo returns information about the given opcode.
func GetInfo(c Code) Info {
	return infos[c]
}

// String returns the canonical name of the opcode, e.g. "OP_DUP".
func (c Code) String() string {
	info := infos[c]
	if info.Name == "" {
		return "OP_UNKNOWN"
	}
	return info.Name
}

// IsSmallNum reports whether the opcode pushes a small number constant
// (OP_0 through OP_16).
func (c Code) IsSmallNum() bool {
	return c == False || (c >= Num1 && c <= Num16)
}

// SmallNum returns the value pushed by a small number opcode. The result is
// meaningful only when IsSmallNum reports true.
func (c Code) SmallNum() int64 {
	if c == False {
		return 0
	}
	return int64(c - Num1 + 1)
}

// ForSmallNum returns the opcode that pushes the value n, which must be in
// the range 0 through 16.
func ForSmallNum(n int64) Code {
	if n == 0 {
		return False
	}
	return Num1 + Code(n-1)
}
