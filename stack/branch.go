package stack

import (
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/scriptkit/scriptstack/op"
	"github.com/scriptkit/scriptstack/script"
)

// OpenBranch clones the tracker into two independent contexts for the arms
// of a conditional and emits the OP_IF that consumes the condition variable
// on top of the stack. The contexts share the parent's id space but have no
// other interaction until Merge; ids created in one arm are invisible to
// the other.
//
// Each branch inherits the parent's instruction prefix and history so that
// per-branch debugging works standing alone. This access is best-effort:
// id numbering is not symmetric between arms.
func (t *Tracker) OpenBranch() (ifTrue, ifFalse *Tracker, err error) {
	if t.err != nil {
		return nil, nil, t.err
	}
	id, ok := t.model.Top()
	if !ok {
		return nil, nil, t.fail(fmt.Errorf("%w: no condition variable on the stack", ErrVariableNotFound))
	}
	if size := t.reg.SizeOf(id); size != 1 {
		return nil, nil, t.fail(fmt.Errorf(
			"%w: condition variable %d spans %d slots, OP_IF consumes one", ErrInvalidSize, id, size))
	}
	if err := t.model.Remove(id); err != nil {
		return nil, nil, t.fail(err)
	}

	clone := func() *Tracker {
		b := &Tracker{
			id:         uuid.Must(uuid.NewV4()),
			reg:        t.reg,
			model:      t.model.Clone(),
			code:       append(script.Script(nil), t.code...),
			rec:        t.rec.Clone(),
			logger:     t.logger,
			maxSize:    t.maxSize,
			branchBase: len(t.code),
		}
		// A stand-in OP_DROP occupies the index where the parent holds the
		// OP_IF: it has the same model effect (the condition is consumed)
		// and keeps instruction indices aligned with the parent stream.
		b.emit(script.Script{script.Opcode(op.Drop)})
		return b
	}
	ifTrue = clone()
	ifFalse = clone()
	t.emit(script.Script{script.Opcode(op.If)})
	return ifTrue, ifFalse, nil
}

// Merge verifies that both arms left identical stack shapes and folds them
// back into one continuation. The generated program brackets the two
// instruction streams with OP_ELSE and OP_ENDIF; the merged model adopts
// the true arm's variable identities by convention.
//
// Arms whose ordered size sequences differ cannot be merged. This is a
// permanent limitation of conditional generation: no reconciliation is
// attempted and the merge fails with ErrBranchShapeMismatch.
func (t *Tracker) Merge(ifTrue, ifFalse *Tracker) error {
	if t.err != nil {
		return t.err
	}
	if err := ifTrue.err; err != nil {
		return t.fail(fmt.Errorf("true branch failed: %w", err))
	}
	if err := ifFalse.err; err != nil {
		return t.fail(fmt.Errorf("false branch failed: %w", err))
	}

	var merr *multierror.Error
	merr = multierror.Append(merr, compareShapes("main", ifTrue.model.MainShape(), ifFalse.model.MainShape()))
	merr = multierror.Append(merr, compareShapes("alt", ifTrue.model.AltShape(), ifFalse.model.AltShape()))
	if err := merr.ErrorOrNil(); err != nil {
		return t.fail(fmt.Errorf("%w: %v", ErrBranchShapeMismatch, err))
	}

	skip := ifTrue.branchBase + 1
	t.code = append(t.code, ifTrue.code[skip:]...)
	t.rec.MergeFrom(ifTrue.rec, skip, 0)
	t.model = ifTrue.model
	if ifTrue.maxSize > t.maxSize {
		t.maxSize = ifTrue.maxSize
	}
	if ifFalse.maxSize > t.maxSize {
		t.maxSize = ifFalse.maxSize
	}
	t.emit(script.Script{script.Opcode(op.Else)})

	offset := t.rec.Len() - skip
	t.code = append(t.code, ifFalse.code[skip:]...)
	t.rec.MergeFrom(ifFalse.rec, skip, offset)
	t.emit(script.Script{script.Opcode(op.EndIf)})
	return nil
}

// compareShapes returns an error describing the first divergence between
// two ordered size sequences, or nil when they match.
func compareShapes(name string, a, b []uint32) error {
	if len(a) != len(b) {
		return fmt.Errorf("%s stack: true arm holds %d variables, false arm holds %d", name, len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			return fmt.Errorf("%s stack position %d: true arm size %d, false arm size %d", name, i, a[i], b[i])
		}
	}
	return nil
}
