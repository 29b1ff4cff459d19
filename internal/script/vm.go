package script

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/keato/btcnode/internal/metrics"
)

// State is one of the three VM termination states.
type State int

const (
	Running State = iota
	HaltedValid
	HaltedInvalid
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case HaltedValid:
		return "halted_valid"
	case HaltedInvalid:
		return "halted_invalid"
	default:
		return "unknown"
	}
}

// Context is one script evaluation: a program, its data stack, and the
// current validity flag. Stack underflow is not a Go panic — it halts the
// program invalid instead.
type Context struct {
	Program []Element
	Stack   [][]byte
	Valid   bool

	pc    int
	state State
}

// NewContext prepares a context ready to Run the given program.
func NewContext(program []Element) *Context {
	return &Context{
		Program: program,
		Valid:   true,
		state:   Running,
	}
}

// Run executes the program to completion, returning the terminal state.
func (c *Context) Run() State {
	for c.state == Running {
		c.step()
	}
	metrics.ScriptHalts.WithLabelValues(c.state.String()).Inc()
	return c.state
}

func (c *Context) pop() ([]byte, bool) {
	if len(c.Stack) == 0 {
		return nil, false
	}
	top := c.Stack[len(c.Stack)-1]
	c.Stack = c.Stack[:len(c.Stack)-1]
	return top, true
}

func (c *Context) push(b []byte) {
	c.Stack = append(c.Stack, b)
}

func (c *Context) top() ([]byte, bool) {
	if len(c.Stack) == 0 {
		return nil, false
	}
	return c.Stack[len(c.Stack)-1], true
}

func (c *Context) fail() {
	c.Valid = false
	c.state = HaltedInvalid
}

func (c *Context) step() {
	if c.pc >= len(c.Program) {
		if c.Valid {
			c.state = HaltedValid
		} else {
			c.state = HaltedInvalid
		}
		return
	}

	elem := c.Program[c.pc]

	if elem.Op == OpElse {
		// Only reached by a true-branch falling through; never "executed".
		c.pc = elem.elseJump
		return
	}

	switch {
	case elem.isPush():
		c.push(elem.Data)
		c.pc++

	case elem.Op == OpNop, elem.Op == OpEndIf:
		c.pc++

	case elem.Op == OpIf:
		top, ok := c.pop()
		if !ok {
			c.fail()
			return
		}
		if isTruthy(top) {
			c.pc = elem.next
		} else {
			c.pc = elem.nextElse
		}

	case elem.Op == OpNotIf:
		top, ok := c.pop()
		if !ok {
			c.fail()
			return
		}
		if isTruthy(top) {
			c.pc = elem.nextElse
		} else {
			c.pc = elem.next
		}

	case elem.Op == OpVerify:
		top, ok := c.top()
		if !ok {
			c.fail()
			return
		}
		if !isTruthy(top) {
			c.fail()
			return
		}
		c.pc++

	case elem.Op == OpReturn:
		c.fail()

	case elem.Op == OpIfDup:
		top, ok := c.top()
		if !ok {
			c.fail()
			return
		}
		if isTruthy(top) {
			dup := append([]byte(nil), top...)
			c.push(dup)
		}
		c.pc++

	case elem.Op == OpDup:
		top, ok := c.top()
		if !ok {
			c.fail()
			return
		}
		c.push(append([]byte(nil), top...))
		c.pc++

	case elem.Op == OpEqualVerify:
		a, ok1 := c.pop()
		b, ok2 := c.pop()
		if !ok1 || !ok2 {
			c.fail()
			return
		}
		if !bytesEqual(a, b) {
			c.fail()
			return
		}
		c.pc++

	case elem.Op == OpHash160:
		top, ok := c.pop()
		if !ok {
			c.fail()
			return
		}
		c.push(btcutil.Hash160(top))
		c.pc++

	case elem.Op == OpHash256:
		top, ok := c.pop()
		if !ok {
			c.fail()
			return
		}
		h := chainhash.DoubleHashB(top)
		c.push(h)
		c.pc++

	default:
		panic(fmt.Sprintf("script: element at pc %d has no execution rule for opcode 0x%02x", c.pc, byte(elem.Op)))
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
