// Package debug pairs the tracker's symbolic history with real values from
// the reference interpreter, producing an annotated view of the stack after
// any instruction.
package debug

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/scriptkit/scriptstack/history"
	"github.com/scriptkit/scriptstack/script"
	"github.com/scriptkit/scriptstack/vm"
)

// Row is one tracked variable with the concrete slot values it held at a
// given step, hex encoded and space separated.
type Row struct {
	ID     uint32
	Size   uint32
	Label  string
	Values string
}

// StepView is the annotated state after executing a step: the interpreter
// verdict plus the symbolic rows for both stacks.
type StepView struct {
	Step       int
	Error      bool
	ErrMsg     string
	Success    bool
	LastOpcode string
	Main       []Row
	Alt        []Row
}

// ExecuteStep runs the first step+1 instructions of the script and joins the
// interpreter's concrete stacks with the recorder's snapshot for that step.
// The step index is clamped to the recorded history.
func ExecuteStep(s script.Script, rec *history.Recorder, step int) StepView {
	if rec.Len() == 0 {
		return StepView{Step: -1}
	}
	if step < 0 {
		step = 0
	}
	if step >= rec.Len() {
		step = rec.Len() - 1
	}
	res := vm.RunPrefix(s, step+1)
	snap := rec.Record(step)
	return StepView{
		Step:       step,
		Error:      res.Error,
		ErrMsg:     res.ErrMsg,
		Success:    res.Success,
		LastOpcode: res.LastOpcode,
		Main:       annotate(snap.Main, res.Stack),
		Alt:        annotate(snap.Alt, res.AltStack),
	}
}

// annotate groups the interpreter's raw slots under the variables the model
// says own them, walking both bottom to top. When execution stopped early
// the slot counts can disagree; rows beyond the available slots stay empty.
func annotate(vars []history.VarSnapshot, slots [][]byte) []Row {
	rows := make([]Row, 0, len(vars))
	next := 0
	for _, v := range vars {
		row := Row{ID: v.ID, Size: v.Size, Label: v.Label}
		parts := make([]string, 0, v.Size)
		for i := uint32(0); i < v.Size && next < len(slots); i++ {
			parts = append(parts, encodeSlot(slots[next]))
			next++
		}
		row.Values = strings.Join(parts, " ")
		rows = append(rows, row)
	}
	return rows
}

// encodeSlot renders one stack element; the empty byte string is the VM's
// numeric zero.
func encodeSlot(v []byte) string {
	if len(v) == 0 {
		return "0x00"
	}
	return "0x" + hex.EncodeToString(v)
}

var (
	labelColor = color.New(color.FgCyan)
	valueColor = color.New(color.FgYellow)
	errColor   = color.New(color.FgRed, color.Bold)
	okColor    = color.New(color.FgGreen, color.Bold)
)

// Format renders the step view for a terminal. Colors follow the global
// color.NoColor setting.
func (v StepView) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Step: %d | %s\n", v.Step, v.LastOpcode)
	switch {
	case v.Error:
		fmt.Fprintf(&b, "%s %s\n", errColor.Sprint("ERROR:"), v.ErrMsg)
	case v.Success:
		fmt.Fprintf(&b, "%s\n", okColor.Sprint("SUCCESS"))
	}
	b.WriteString("======= STACK: ======\n")
	writeRows(&b, v.Main)
	b.WriteString("==== ALT-STACK: ====\n")
	writeRows(&b, v.Alt)
	return b.String()
}

func writeRows(b *strings.Builder, rows []Row) {
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		fmt.Fprintf(b, "id: %-7d | size: %-7d | %s | %s\n",
			r.ID, r.Size, labelColor.Sprintf("%-20s", r.Label), valueColor.Sprint(r.Values))
	}
}
