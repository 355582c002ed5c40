package vm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("invmc.vm")

// ---------------------------------------------------------------------------
// Machine: InVM execution engine
// ---------------------------------------------------------------------------

const (
	// MemorySize is the number of addressable slots.
	MemorySize = 1 << 16
	// MaxStack is the stack depth limit.
	MaxStack = 1 << 16
	// DefaultStepLimit bounds a run unless Machine.StepLimit says otherwise.
	DefaultStepLimit = 10_000_000
)

var (
	ErrUnsetRegister = errors.New("read of uninitialized register")
	ErrDivideByZero  = errors.New("division by zero")
	ErrEmptyStack    = errors.New("pop of empty stack")
	ErrStackOverflow = errors.New("stack overflow")
	ErrBadAddress    = errors.New("address out of range")
	ErrCrash         = errors.New("program crashed")
	ErrStepLimit     = errors.New("step limit exceeded")
)

// Fault is a runtime error tied to the instruction that raised it.
type Fault struct {
	PC   int
	Line int
	Err  error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("line %d (pc %d): %v", f.Line, f.PC, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// Value is one printed value.
type Value struct {
	N    int32
	Type PrintType
}

func (v Value) String() string {
	if v.Type == PrintBool {
		return strconv.FormatBool(v.N != 0)
	}
	return strconv.Itoa(int(v.N))
}

// Machine executes one Program. Registers start unset, memory starts at
// zero.
type Machine struct {
	// StepLimit caps the number of executed instructions; zero means
	// DefaultStepLimit.
	StepLimit int
	// Out, when set, receives every printed value on its own line.
	Out io.Writer

	prog   *Program
	regs   [NumRegisters]int32
	set    [NumRegisters]bool
	mem    []int32
	stack  []int32
	pc     int
	steps  int
	output []Value
}

// NewMachine creates a machine for prog.
func NewMachine(prog *Program) *Machine {
	return &Machine{
		prog: prog,
		mem:  make([]int32, MemorySize),
	}
}

// Output returns the values printed so far.
func (m *Machine) Output() []Value {
	return m.output
}

// Steps returns how many instructions the last run executed.
func (m *Machine) Steps() int {
	return m.steps
}

// Memory returns the value at addr.
func (m *Machine) Memory(addr int) int32 {
	if addr < 0 || addr >= len(m.mem) {
		return 0
	}
	return m.mem[addr]
}

// Register returns the value of r and whether it has been written.
func (m *Machine) Register(r Register) (int32, bool) {
	return m.regs[r], m.set[r]
}

// Run executes from the first instruction until the program falls off its
// end. It stops early on a fault, on cancellation of ctx, or when the step
// limit is reached.
func (m *Machine) Run(ctx context.Context) error {
	limit := m.StepLimit
	if limit <= 0 {
		limit = DefaultStepLimit
	}
	m.pc = 0
	m.steps = 0
	log.Debugf("run: %d instruction(s)", len(m.prog.Instructions))

	for m.pc < len(m.prog.Instructions) {
		if m.steps&1023 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if m.steps >= limit {
			return m.fault(ErrStepLimit)
		}
		m.steps++
		if err := m.step(); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) fault(err error) error {
	f := &Fault{PC: m.pc, Err: err}
	if m.pc < len(m.prog.Instructions) {
		f.Line = m.prog.Instructions[m.pc].Line
	}
	log.Errorf("fault: %s", f)
	return f
}

// step executes the instruction at pc.
func (m *Machine) step() error {
	in := &m.prog.Instructions[m.pc]
	next := m.pc + 1

	switch in.Op {
	case OpSET:
		v, err := m.load(in.Src)
		if err != nil {
			return m.fault(err)
		}
		if err := m.store(in.Dst, v); err != nil {
			return m.fault(err)
		}

	case OpADD, OpSUB, OpMULT, OpDIV:
		src, err := m.load(in.Src)
		if err != nil {
			return m.fault(err)
		}
		dst, err := m.load(in.Dst)
		if err != nil {
			return m.fault(err)
		}
		var v int32
		switch in.Op {
		case OpADD:
			v = dst + src
		case OpSUB:
			v = dst - src
		case OpMULT:
			v = dst * src
		case OpDIV:
			if src == 0 {
				return m.fault(ErrDivideByZero)
			}
			v = dst / src
		}
		if err := m.store(in.Dst, v); err != nil {
			return m.fault(err)
		}

	case OpGOTO:
		next = in.Target

	case OpGOIF:
		v, err := m.load(in.Src)
		if err != nil {
			return m.fault(err)
		}
		if in.Cond.Holds(v) {
			next = in.Target
		}

	case OpPRINT:
		v, err := m.load(in.Src)
		if err != nil {
			return m.fault(err)
		}
		val := Value{N: v, Type: in.Print}
		m.output = append(m.output, val)
		if m.Out != nil {
			fmt.Fprintln(m.Out, val)
		}

	case OpPUSH:
		v, err := m.load(in.Src)
		if err != nil {
			return m.fault(err)
		}
		if len(m.stack) >= MaxStack {
			return m.fault(ErrStackOverflow)
		}
		m.stack = append(m.stack, v)

	case OpPOP:
		if len(m.stack) == 0 {
			return m.fault(ErrEmptyStack)
		}
		v := m.stack[len(m.stack)-1]
		m.stack = m.stack[:len(m.stack)-1]
		if err := m.store(in.Dst, v); err != nil {
			return m.fault(err)
		}

	case OpCRASH:
		return m.fault(ErrCrash)

	default:
		return m.fault(fmt.Errorf("unknown opcode %s", in.Op))
	}

	m.pc = next
	return nil
}

func (m *Machine) register(r Register) (int32, error) {
	if !m.set[r] {
		return 0, fmt.Errorf("%w %s", ErrUnsetRegister, r)
	}
	return m.regs[r], nil
}

func (m *Machine) address(o Operand) (int, error) {
	addr := int(o.Value)
	if o.Mode == ModeIndirect {
		v, err := m.register(o.Reg)
		if err != nil {
			return 0, err
		}
		addr = int(v)
	}
	if addr < 0 || addr >= len(m.mem) {
		return 0, fmt.Errorf("%w: %d", ErrBadAddress, addr)
	}
	return addr, nil
}

func (m *Machine) load(o Operand) (int32, error) {
	switch o.Mode {
	case ModeImmediate:
		return o.Value, nil
	case ModeRegister:
		return m.register(o.Reg)
	}
	addr, err := m.address(o)
	if err != nil {
		return 0, err
	}
	return m.mem[addr], nil
}

func (m *Machine) store(o Operand, v int32) error {
	switch o.Mode {
	case ModeImmediate:
		return fmt.Errorf("store to immediate %s", o)
	case ModeRegister:
		m.regs[o.Reg] = v
		m.set[o.Reg] = true
		return nil
	}
	addr, err := m.address(o)
	if err != nil {
		return err
	}
	m.mem[addr] = v
	return nil
}

// ---------------------------------------------------------------------------
// Convenience
// ---------------------------------------------------------------------------

// Execute assembles text and runs it with the default step limit, returning
// the printed values.
func Execute(ctx context.Context, text string) ([]Value, error) {
	prog, err := Assemble(text)
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}
	m := NewMachine(prog)
	if err := m.Run(ctx); err != nil {
		return m.Output(), err
	}
	return m.Output(), nil
}
