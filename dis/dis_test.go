package dis

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scriptkit/scriptstack/history"
	"github.com/scriptkit/scriptstack/op"
	"github.com/scriptkit/scriptstack/script"
)

func TestDisassemble(t *testing.T) {
	s := script.Script{
		script.Num(1000),
		script.Num(3),
		script.Opcode(op.Roll),
	}
	rows := Disassemble(s)
	require.Len(t, rows, 3)
	require.Equal(t, Instruction{Offset: 0, Opcode: "OP_PUSHDATA", Operands: "e803", Info: "1000"}, rows[0])
	require.Equal(t, Instruction{Offset: 1, Opcode: "OP_3", Info: "3"}, rows[1])
	require.Equal(t, Instruction{Offset: 2, Opcode: "OP_ROLL"}, rows[2])
}

func TestMarkBreakpoints(t *testing.T) {
	rows := Disassemble(script.Script{
		script.Num(1),
		script.Opcode(op.Dup),
	})
	MarkBreakpoints(rows, []history.Breakpoint{
		{Name: "after-dup", Index: 1},
		{Name: "end", Index: 5},
	})
	require.Equal(t, "<after-dup> <end>", rows[1].Info)
}

func TestPrint(t *testing.T) {
	rows := Disassemble(script.Script{
		script.Num(2),
		script.Num(3),
		script.Opcode(op.Add),
	})
	var buf bytes.Buffer
	Print(rows, &buf)
	out := buf.String()
	require.Contains(t, out, "| OFFSET |")
	require.Contains(t, out, "OP_ADD")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, len(rows)+4)
	for _, l := range lines {
		require.Equal(t, len(lines[0]), len(l))
	}
}
