// Package optimize applies peephole transformations to generated scripts.
// The transformations never change what the script computes, only how many
// instructions it spends doing it.
package optimize

import (
	"bytes"

	"github.com/scriptkit/scriptstack/op"
	"github.com/scriptkit/scriptstack/script"
)

// Optimize returns a shorter script with identical semantics. Two kinds of
// rewrites are applied until none fires:
//
//   - adjacent pairs: a digit push feeding OP_PICK or OP_ROLL becomes the
//     dedicated opcode (OP_DUP, OP_OVER, OP_SWAP, OP_ROT), a zero-depth
//     OP_ROLL disappears, and OP_TOALTSTACK directly followed by
//     OP_FROMALTSTACK cancels out
//   - runs of an identical push are compressed into OP_DUP/OP_2DUP/OP_3DUP
//     chains
//
// The input script is not modified.
func Optimize(s script.Script) script.Script {
	ins := append(script.Script{}, s...)
	i := 0
	for i < len(ins) {
		if i > 0 {
			if repl, removeBoth, ok := pairTransform(ins[i-1], ins[i]); ok {
				if removeBoth {
					ins = append(ins[:i-1], ins[i+1:]...)
					i--
				} else {
					ins[i-1] = repl
					ins = append(ins[:i], ins[i+1:]...)
				}
				continue
			}
		}
		if _, ok := ins[i].SmallNum(); ok {
			count := countAhead(ins, i)
			i += compressRun(&ins, i, count)
		}
		i++
	}
	return ins
}

// pairTransform inspects two adjacent instructions. It reports either a
// replacement for the pair or that both should be removed.
func pairTransform(prev, cur script.Instruction) (repl script.Instruction, removeBoth, ok bool) {
	if cur.Op == op.FromAltStack && prev.Op == op.ToAltStack {
		return script.Instruction{}, true, true
	}
	d, isDigit := prev.SmallNum()
	if !isDigit {
		return script.Instruction{}, false, false
	}
	switch {
	case cur.Op == op.Pick && d == 0:
		return script.Opcode(op.Dup), false, true
	case cur.Op == op.Pick && d == 1:
		return script.Opcode(op.Over), false, true
	case cur.Op == op.Roll && d == 0:
		return script.Instruction{}, true, true
	case cur.Op == op.Roll && d == 1:
		return script.Opcode(op.Swap), false, true
	case cur.Op == op.Roll && d == 2:
		return script.Opcode(op.Rot), false, true
	}
	return script.Instruction{}, false, false
}

func sameInstruction(a, b script.Instruction) bool {
	return a.Op == b.Op && bytes.Equal(a.Data, b.Data)
}

// countAhead counts how many instructions directly after i repeat
// instruction i.
func countAhead(ins script.Script, i int) int {
	count := 0
	for j := i + 1; j < len(ins) && sameInstruction(ins[i], ins[j]); j++ {
		count++
	}
	return count
}

// dupChains maps a repeat count to the OP_DUP/OP_2DUP/OP_3DUP sequence that
// reproduces that many copies of the top element.
var dupChains = map[int][]op.Code{
	3:  {op.Dup, op.Dup2},
	4:  {op.Dup, op.Dup, op.Dup2},
	5:  {op.Dup, op.Dup2, op.Dup2},
	6:  {op.Dup, op.Dup2, op.Dup3},
	7:  {op.Dup, op.Dup2, op.Dup2, op.Dup2},
	8:  {op.Dup, op.Dup2, op.Dup2, op.Dup3},
	9:  {op.Dup, op.Dup2, op.Dup3, op.Dup3},
	10: {op.Dup, op.Dup2, op.Dup2, op.Dup2, op.Dup3},
	11: {op.Dup, op.Dup2, op.Dup2, op.Dup3, op.Dup3},
	12: {op.Dup, op.Dup2, op.Dup3, op.Dup3, op.Dup3},
	13: {op.Dup, op.Dup2, op.Dup2, op.Dup2, op.Dup3, op.Dup3},
	14: {op.Dup, op.Dup2, op.Dup2, op.Dup3, op.Dup3, op.Dup3},
	15: {op.Dup, op.Dup2, op.Dup3, op.Dup3, op.Dup3, op.Dup3},
}

// compressRun rewrites the count repeats following the push at i into a dup
// chain and returns how many instructions the chain occupies. Runs with no
// table entry are left alone.
func compressRun(ins *script.Script, i, count int) int {
	chain, ok := dupChains[count]
	if !ok {
		return 0
	}
	s := *ins
	for _, c := range chain {
		i++
		s[i] = script.Opcode(c)
	}
	*ins = append(s[:i+1], s[i+1+count-len(chain):]...)
	return len(chain)
}
