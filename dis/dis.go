// Package dis provides a human-readable disassembly of generated scripts.
package dis

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/scriptkit/scriptstack/history"
	"github.com/scriptkit/scriptstack/op"
	"github.com/scriptkit/scriptstack/script"
)

// Instruction is one disassembled row.
type Instruction struct {
	Offset   int
	Opcode   string
	Operands string
	Info     string
}

// Disassemble converts a script into printable rows. Push instructions show
// their operand bytes and, when the bytes parse as a script number, the
// decoded value in the info column.
func Disassemble(s script.Script) []Instruction {
	rows := make([]Instruction, len(s))
	for i, in := range s {
		row := Instruction{Offset: i, Opcode: in.Op.String()}
		if in.Op == op.PushData {
			row.Operands = hex.EncodeToString(in.Data)
			if n, err := script.ParseStackNum(in.Data); err == nil {
				row.Info = fmt.Sprintf("%d", n)
			}
		} else if n, ok := in.SmallNum(); ok {
			row.Info = fmt.Sprintf("%d", n)
		}
		rows[i] = row
	}
	return rows
}

// MarkBreakpoints writes each breakpoint's name into the info column of the
// instruction it targets. A breakpoint set past the end of the script is
// shown on the last row.
func MarkBreakpoints(rows []Instruction, bps []history.Breakpoint) {
	for _, bp := range bps {
		i := bp.Index
		if i >= len(rows) {
			i = len(rows) - 1
		}
		if i < 0 {
			continue
		}
		if rows[i].Info != "" {
			rows[i].Info += " "
		}
		rows[i].Info += "<" + bp.Name + ">"
	}
}

// Print renders the rows as an aligned table.
func Print(rows []Instruction, w io.Writer) {
	headers := []string{"OFFSET", "OPCODE", "OPERANDS", "INFO"}
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	cells := make([][4]string, len(rows))
	for i, r := range rows {
		cells[i] = [4]string{fmt.Sprintf("%d", r.Offset), r.Opcode, r.Operands, r.Info}
		for j, c := range cells[i] {
			if len(c) > widths[j] {
				widths[j] = len(c)
			}
		}
	}
	var sep strings.Builder
	sep.WriteByte('+')
	for _, wd := range widths {
		sep.WriteString(strings.Repeat("-", wd+2))
		sep.WriteByte('+')
	}
	line := sep.String()

	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "|%s|%s|%s|%s|\n",
		center(headers[0], widths[0]), center(headers[1], widths[1]),
		center(headers[2], widths[2]), center(headers[3], widths[3]))
	fmt.Fprintln(w, line)
	for _, c := range cells {
		fmt.Fprintf(w, "| %*s | %-*s | %*s | %-*s |\n",
			widths[0], c[0], widths[1], c[1], widths[2], c[2], widths[3], c[3])
	}
	fmt.Fprintln(w, line)
}

func center(s string, width int) string {
	pad := width + 2 - len(s)
	left := pad / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", pad-left)
}
