// Package vm is the executor boundary: a reference interpreter for the
// instruction sequences the tracker generates. Execution is deterministic
// and synchronous, and a failing script is reported as an ordinary result
// value, never as an error to the caller.
package vm

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ripemd160"

	"github.com/scriptkit/scriptstack/op"
	"github.com/scriptkit/scriptstack/script"
)

// Result is the verdict of one execution. Success means the program ran to
// completion and left exactly one truthy element on the stack. Error covers
// execution faults (stack underflow, failed verify, malformed numbers);
// those also leave Success false.
type Result struct {
	Success    bool
	Error      bool
	ErrMsg     string
	LastOpcode string
	Stack      [][]byte
	AltStack   [][]byte
}

// Option configures the interpreter.
type Option func(*machine)

// WithLogger attaches a logger; every executed instruction is traced at
// trace level.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *machine) {
		m.logger = logger
	}
}

// Run executes the full instruction sequence.
func Run(s script.Script, opts ...Option) Result {
	return RunPrefix(s, len(s), opts...)
}

// RunPrefix executes the first n instructions. Success is only reported
// when the prefix covers the whole program; a partial run returns the
// intermediate stacks for inspection.
func RunPrefix(s script.Script, n int, opts ...Option) Result {
	m := &machine{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(m)
	}
	if n > len(s) {
		n = len(s)
	}
	var execErr error
	for i := 0; i < n; i++ {
		m.lastOp = s[i].String()
		m.logger.Trace().Int("ip", i).Str("instr", m.lastOp).Int("depth", len(m.stack)).Msg("exec")
		if err := m.step(s[i]); err != nil {
			execErr = err
			break
		}
	}
	if execErr == nil && n == len(s) && len(m.conds) > 0 {
		execErr = fmt.Errorf("unbalanced conditional: %d open OP_IF", len(m.conds))
	}
	res := Result{
		LastOpcode: m.lastOp,
		Stack:      m.stack,
		AltStack:   m.alt,
	}
	if execErr != nil {
		res.Error = true
		res.ErrMsg = execErr.Error()
		return res
	}
	res.Success = n == len(s) && len(m.stack) == 1 && castToBool(m.stack[0])
	return res
}

// machine holds the execution state of one run.
type machine struct {
	stack  [][]byte
	alt    [][]byte
	conds  []int // 1 executing, 0 skipped arm, -1 nested in a skipped arm
	lastOp string
	logger zerolog.Logger
}

func (m *machine) executing() bool {
	for _, c := range m.conds {
		if c != 1 {
			return false
		}
	}
	return true
}

func (m *machine) push(v []byte) {
	m.stack = append(m.stack, v)
}

func (m *machine) pop() ([]byte, error) {
	if len(m.stack) == 0 {
		return nil, fmt.Errorf("stack underflow")
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v, nil
}

func (m *machine) peek(depth int) ([]byte, error) {
	if depth < 0 || depth >= len(m.stack) {
		return nil, fmt.Errorf("invalid stack depth %d, stack holds %d", depth, len(m.stack))
	}
	return m.stack[len(m.stack)-1-depth], nil
}

func (m *machine) popNum() (int64, error) {
	v, err := m.pop()
	if err != nil {
		return 0, err
	}
	return script.ParseStackNum(v)
}

// castToBool applies the VM truthiness rule: any nonzero byte makes the
// value true, except a trailing sign byte 0x80 alone (negative zero).
func castToBool(v []byte) bool {
	for i, b := range v {
		if b != 0 {
			if i == len(v)-1 && b == 0x80 {
				return false
			}
			return true
		}
	}
	return false
}

func (m *machine) step(in script.Instruction) error {
	// Conditional opcodes are processed even while skipping; everything
	// else in a skipped arm is ignored.
	switch in.Op {
	case op.If:
		if !m.executing() {
			m.conds = append(m.conds, -1)
			return nil
		}
		v, err := m.pop()
		if err != nil {
			return err
		}
		if castToBool(v) {
			m.conds = append(m.conds, 1)
		} else {
			m.conds = append(m.conds, 0)
		}
		return nil
	case op.Else:
		if len(m.conds) == 0 {
			return fmt.Errorf("OP_ELSE without OP_IF")
		}
		switch m.conds[len(m.conds)-1] {
		case 1:
			m.conds[len(m.conds)-1] = 0
		case 0:
			m.conds[len(m.conds)-1] = 1
		}
		return nil
	case op.EndIf:
		if len(m.conds) == 0 {
			return fmt.Errorf("OP_ENDIF without OP_IF")
		}
		m.conds = m.conds[:len(m.conds)-1]
		return nil
	}
	if !m.executing() {
		return nil
	}

	if v, ok := in.PushValue(); ok {
		m.push(v)
		return nil
	}

	switch in.Op {
	case op.Nop:
		return nil

	case op.Verify:
		v, err := m.pop()
		if err != nil {
			return err
		}
		if !castToBool(v) {
			return fmt.Errorf("OP_VERIFY failed")
		}
		return nil

	case op.ToAltStack:
		v, err := m.pop()
		if err != nil {
			return err
		}
		m.alt = append(m.alt, v)
		return nil

	case op.FromAltStack:
		if len(m.alt) == 0 {
			return fmt.Errorf("alt stack underflow")
		}
		v := m.alt[len(m.alt)-1]
		m.alt = m.alt[:len(m.alt)-1]
		m.push(v)
		return nil

	case op.Drop:
		_, err := m.pop()
		return err

	case op.Drop2:
		if _, err := m.pop(); err != nil {
			return err
		}
		_, err := m.pop()
		return err

	case op.Dup:
		v, err := m.peek(0)
		if err != nil {
			return err
		}
		m.push(v)
		return nil

	case op.Dup2:
		return m.dupN(2)

	case op.Dup3:
		return m.dupN(3)

	case op.IfDup:
		v, err := m.peek(0)
		if err != nil {
			return err
		}
		if castToBool(v) {
			m.push(v)
		}
		return nil

	case op.Depth:
		m.push(script.PutNum(int64(len(m.stack))))
		return nil

	case op.Nip:
		x, err := m.pop()
		if err != nil {
			return err
		}
		if _, err := m.pop(); err != nil {
			return err
		}
		m.push(x)
		return nil

	case op.Over:
		v, err := m.peek(1)
		if err != nil {
			return err
		}
		m.push(v)
		return nil

	case op.Over2:
		a, err := m.peek(3)
		if err != nil {
			return err
		}
		b, err := m.peek(2)
		if err != nil {
			return err
		}
		m.push(a)
		m.push(b)
		return nil

	case op.Pick:
		n, err := m.popNum()
		if err != nil {
			return err
		}
		v, err := m.peek(int(n))
		if err != nil {
			return err
		}
		m.push(v)
		return nil

	case op.Roll:
		n, err := m.popNum()
		if err != nil {
			return err
		}
		idx := len(m.stack) - 1 - int(n)
		if n < 0 || idx < 0 {
			return fmt.Errorf("invalid stack depth %d, stack holds %d", n, len(m.stack))
		}
		v := m.stack[idx]
		m.stack = append(m.stack[:idx], m.stack[idx+1:]...)
		m.push(v)
		return nil

	case op.Rot:
		return m.reorder(3, []int{1, 2, 0})

	case op.Rot2:
		return m.reorder(6, []int{2, 3, 4, 5, 0, 1})

	case op.Swap:
		return m.reorder(2, []int{1, 0})

	case op.Swap2:
		return m.reorder(4, []int{2, 3, 0, 1})

	case op.Tuck:
		x, err := m.pop()
		if err != nil {
			return err
		}
		y, err := m.pop()
		if err != nil {
			return err
		}
		m.push(x)
		m.push(y)
		m.push(x)
		return nil

	case op.Equal, op.EqualVerify:
		x, err := m.pop()
		if err != nil {
			return err
		}
		y, err := m.pop()
		if err != nil {
			return err
		}
		eq := bytes.Equal(x, y)
		if in.Op == op.EqualVerify {
			if !eq {
				return fmt.Errorf("OP_EQUALVERIFY failed: %x != %x", y, x)
			}
			return nil
		}
		m.push(boolBytes(eq))
		return nil

	case op.Add1, op.Sub1, op.Negate, op.Abs, op.Not, op.NotEqual0:
		n, err := m.popNum()
		if err != nil {
			return err
		}
		switch in.Op {
		case op.Add1:
			n++
		case op.Sub1:
			n--
		case op.Negate:
			n = -n
		case op.Abs:
			if n < 0 {
				n = -n
			}
		case op.Not:
			n = b2i(n == 0)
		case op.NotEqual0:
			n = b2i(n != 0)
		}
		m.push(script.PutNum(n))
		return nil

	case op.Add, op.Sub, op.BoolAnd, op.BoolOr, op.NumEqual, op.NumEqualVerify,
		op.NumNotEqual, op.LessThan, op.GreaterThan, op.LessThanOrEqual,
		op.GreaterThanOrEqual, op.Min, op.Max:
		y, err := m.popNum()
		if err != nil {
			return err
		}
		x, err := m.popNum()
		if err != nil {
			return err
		}
		var n int64
		switch in.Op {
		case op.Add:
			n = x + y
		case op.Sub:
			n = x - y
		case op.BoolAnd:
			n = b2i(x != 0 && y != 0)
		case op.BoolOr:
			n = b2i(x != 0 || y != 0)
		case op.NumEqual:
			n = b2i(x == y)
		case op.NumEqualVerify:
			if x != y {
				return fmt.Errorf("OP_NUMEQUALVERIFY failed: %d != %d", x, y)
			}
			return nil
		case op.NumNotEqual:
			n = b2i(x != y)
		case op.LessThan:
			n = b2i(x < y)
		case op.GreaterThan:
			n = b2i(x > y)
		case op.LessThanOrEqual:
			n = b2i(x <= y)
		case op.GreaterThanOrEqual:
			n = b2i(x >= y)
		case op.Min:
			n = x
			if y < x {
				n = y
			}
		case op.Max:
			n = x
			if y > x {
				n = y
			}
		}
		m.push(script.PutNum(n))
		return nil

	case op.Within:
		max, err := m.popNum()
		if err != nil {
			return err
		}
		min, err := m.popNum()
		if err != nil {
			return err
		}
		x, err := m.popNum()
		if err != nil {
			return err
		}
		m.push(boolBytes(min <= x && x < max))
		return nil

	case op.Sha256, op.Hash256, op.Hash160, op.Ripemd160:
		v, err := m.pop()
		if err != nil {
			return err
		}
		m.push(hash(in.Op, v))
		return nil
	}

	return fmt.Errorf("unknown opcode 0x%02x", uint8(in.Op))
}

// dupN duplicates the top n elements as a block.
func (m *machine) dupN(n int) error {
	if len(m.stack) < n {
		return fmt.Errorf("stack underflow")
	}
	base := len(m.stack) - n
	for i := 0; i < n; i++ {
		m.push(m.stack[base+i])
	}
	return nil
}

// reorder pops n elements and pushes them back permuted; perm indexes the
// popped elements bottom to top.
func (m *machine) reorder(n int, perm []int) error {
	if len(m.stack) < n {
		return fmt.Errorf("stack underflow")
	}
	base := len(m.stack) - n
	popped := append([][]byte(nil), m.stack[base:]...)
	m.stack = m.stack[:base]
	for _, i := range perm {
		m.push(popped[i])
	}
	return nil
}

func hash(c op.Code, v []byte) []byte {
	switch c {
	case op.Sha256:
		h := sha256.Sum256(v)
		return h[:]
	case op.Hash256:
		h := sha256.Sum256(v)
		h = sha256.Sum256(h[:])
		return h[:]
	case op.Ripemd160:
		h := ripemd160.New()
		h.Write(v)
		return h.Sum(nil)
	case op.Hash160:
		h := sha256.Sum256(v)
		r := ripemd160.New()
		r.Write(h[:])
		return r.Sum(nil)
	}
	return nil
}

func boolBytes(b bool) []byte {
	return script.PutNum(b2i(b))
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
