// Package history records one immutable snapshot per generated instruction
// and provides the replay machinery built on the resulting log. Nothing in
// this package mutates the live stack model: the log is an append-only
// record that any presentation layer can step over.
package history

import (
	"errors"
	"fmt"
	"strings"

	"github.com/scriptkit/scriptstack/script"
)

// ErrBreakpointNotFound indicates a lookup of a breakpoint name that was
// never set. This is a local, recoverable condition.
var ErrBreakpointNotFound = errors.New("breakpoint not found")

// VarSnapshot is the recorded state of one live variable: identity, slot
// count, display label and best-effort static value ("?" when the value
// cannot be known without executing the program).
type VarSnapshot struct {
	ID    uint32
	Size  uint32
	Label string
	Value string
}

// Record captures one generation step: the instruction emitted and the
// resulting stack shapes, bottom to top. Records are immutable once
// appended.
type Record struct {
	Instr script.Instruction
	Main  []VarSnapshot
	Alt   []VarSnapshot
}

// Breakpoint is a named alias for a position in the log. Names are not
// required to be unique across a run; setting a name again moves it.
type Breakpoint struct {
	Name  string
	Index int
}

// Recorder owns the append-only instruction log and the named breakpoints
// of one generation context.
type Recorder struct {
	records     []Record
	breakpoints []Breakpoint
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Clone copies the log and breakpoints. Records are immutable, so the
// backing entries are shared safely by value.
func (r *Recorder) Clone() *Recorder {
	clone := &Recorder{}
	clone.records = append([]Record(nil), r.records...)
	clone.breakpoints = append([]Breakpoint(nil), r.breakpoints...)
	return clone
}

// Append adds a record to the log.
func (r *Recorder) Append(rec Record) {
	r.records = append(r.records, rec)
}

// Len returns the number of records in the log.
func (r *Recorder) Len() int {
	return len(r.records)
}

// Record returns the record at the given index.
func (r *Recorder) Record(index int) Record {
	return r.records[index]
}

// SetBreakpoint records the current log length under the given name. Using
// a name again moves the breakpoint: last write wins.
func (r *Recorder) SetBreakpoint(name string) {
	for i, bp := range r.breakpoints {
		if bp.Name == name {
			r.breakpoints = append(r.breakpoints[:i], r.breakpoints[i+1:]...)
			break
		}
	}
	r.breakpoints = append(r.breakpoints, Breakpoint{Name: name, Index: len(r.records)})
}

// Breakpoints returns the breakpoints ordered by position.
func (r *Recorder) Breakpoints() []Breakpoint {
	return append([]Breakpoint(nil), r.breakpoints...)
}

// Lookup returns the log index recorded under the given name.
func (r *Recorder) Lookup(name string) (int, error) {
	for _, bp := range r.breakpoints {
		if bp.Name == name {
			return bp.Index, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrBreakpointNotFound, name)
}

// NextBreakpoint returns the first breakpoint positioned strictly after
// from.
func (r *Recorder) NextBreakpoint(from int) (Breakpoint, bool) {
	for _, bp := range r.breakpoints {
		if bp.Index > from {
			return bp, true
		}
	}
	return Breakpoint{}, false
}

// PrevBreakpoint returns the last breakpoint positioned strictly before
// from.
func (r *Recorder) PrevBreakpoint(from int) (Breakpoint, bool) {
	var (
		ret   Breakpoint
		found bool
	)
	for _, bp := range r.breakpoints {
		if bp.Index < from {
			ret, found = bp, true
		}
		if bp.Index > from {
			break
		}
	}
	return ret, found
}

// MergeFrom appends the records and breakpoints the other recorder
// accumulated past the given index. Used when a branch context is folded
// back into its parent; offset shifts the adopted breakpoint positions to
// account for records this log gained since the branch was opened.
func (r *Recorder) MergeFrom(other *Recorder, from, offset int) {
	if from < len(other.records) {
		r.records = append(r.records, other.records[from:]...)
	}
	for _, bp := range other.breakpoints {
		// Index == from marks the position before the other log's first own
		// record; it is adopted too.
		if bp.Index >= from {
			r.breakpoints = append(r.breakpoints, Breakpoint{Name: bp.Name, Index: bp.Index + offset})
		}
	}
}

// trim discards all records after the given index along with any
// breakpoints that no longer point into the log.
func (r *Recorder) trim(index int) {
	if index+1 >= len(r.records) {
		return
	}
	r.records = r.records[:index+1]
	kept := r.breakpoints[:0]
	for _, bp := range r.breakpoints {
		if bp.Index <= len(r.records) {
			kept = append(kept, bp)
		}
	}
	r.breakpoints = kept
}

// Render produces the fixed-format report for the record at the given
// index: one row per live variable, most recent first, main stack then alt
// stack. An out-of-range index renders the empty report. Rendering has no
// side effects and is idempotent.
func (r *Recorder) Render(index int) string {
	if index < 0 || index >= len(r.records) {
		return Format(nil, nil)
	}
	rec := r.records[index]
	return Format(rec.Main, rec.Alt)
}

// RenderLatest renders the report for the latest record, or an empty-stack
// report when nothing has been emitted yet.
func (r *Recorder) RenderLatest() string {
	if len(r.records) == 0 {
		return Format(nil, nil)
	}
	return r.Render(len(r.records) - 1)
}

// Format renders the fixed-width report for the given snapshots, which are
// ordered bottom to top as recorded. Rows come out most recent first.
func Format(main, alt []VarSnapshot) string {
	var b strings.Builder
	b.WriteString("======= STACK: ======\n")
	writeRows(&b, main)
	b.WriteString("==== ALT-STACK: ====\n")
	writeRows(&b, alt)
	return b.String()
}

func writeRows(b *strings.Builder, vars []VarSnapshot) {
	for i := len(vars) - 1; i >= 0; i-- {
		b.WriteString(FormatRow(vars[i]))
		b.WriteByte('\n')
	}
}

// FormatRow renders one report row with fixed-width columns.
func FormatRow(v VarSnapshot) string {
	value := v.Value
	if value == "" {
		value = "?"
	}
	return fmt.Sprintf("id: %-7d | size: %-7d | %-20s | %s", v.ID, v.Size, v.Label, value)
}
