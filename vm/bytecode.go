package vm

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single InVM instruction.
type Opcode byte

const (
	OpSET   Opcode = iota // SET dst src
	OpADD                 // ADD src dst: dst := dst + src
	OpSUB                 // SUB src dst: dst := dst - src
	OpMULT                // MULT src dst: dst := dst * src
	OpDIV                 // DIV src dst: dst := dst / src
	OpGOTO                // GOTO label
	OpGOIF                // GOIF cmp src label
	OpPRINT               // PRINT src int|bool
	OpPUSH                // PUSH src
	OpPOP                 // POP dst
	OpCRASH               // CRASH
)

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name     string
	Operands int  // operand fields in assembly text
	Label    bool // takes a label reference
}

// opcodeTable maps opcodes to their metadata.
var opcodeTable = map[Opcode]OpcodeInfo{
	OpSET:   {"SET", 2, false},
	OpADD:   {"ADD", 2, false},
	OpSUB:   {"SUB", 2, false},
	OpMULT:  {"MULT", 2, false},
	OpDIV:   {"DIV", 2, false},
	OpGOTO:  {"GOTO", 1, true},
	OpGOIF:  {"GOIF", 3, true},
	OpPRINT: {"PRINT", 2, false},
	OpPUSH:  {"PUSH", 1, false},
	OpPOP:   {"POP", 1, false},
	OpCRASH: {"CRASH", 0, false},
}

// mnemonics is the reverse of opcodeTable.
var mnemonics = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeTable))
	for op, info := range opcodeTable {
		m[info.Name] = op
	}
	return m
}()

// Info returns metadata for the opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op))}
}

func (op Opcode) String() string {
	return op.Info().Name
}

// ---------------------------------------------------------------------------
// Registers, operands and conditions
// ---------------------------------------------------------------------------

// Register indexes the two-entry register file.
type Register int

const (
	FUND1 Register = iota
	FUND2
)

// NumRegisters is the size of the register file.
const NumRegisters = 2

func (r Register) String() string {
	switch r {
	case FUND1:
		return "FUND1"
	case FUND2:
		return "FUND2"
	}
	return fmt.Sprintf("R%d", int(r))
}

func parseRegister(s string) (Register, bool) {
	switch s {
	case "FUND1":
		return FUND1, true
	case "FUND2":
		return FUND2, true
	}
	return 0, false
}

// Mode says how an operand is resolved.
type Mode int

const (
	ModeImmediate Mode = iota // 42
	ModeRegister              // FUND1
	ModeAddress               // *42, memory at a fixed address
	ModeIndirect              // *FUND1, memory at the address held in a register
)

// Operand is a source or destination of an instruction.
type Operand struct {
	Mode  Mode
	Reg   Register // ModeRegister, ModeIndirect
	Value int32    // ModeImmediate value or ModeAddress address
}

// Writable reports whether the operand can be a destination.
func (o Operand) Writable() bool {
	return o.Mode != ModeImmediate
}

func (o Operand) String() string {
	switch o.Mode {
	case ModeRegister:
		return o.Reg.String()
	case ModeAddress:
		return "*" + strconv.Itoa(int(o.Value))
	case ModeIndirect:
		return "*" + o.Reg.String()
	}
	return strconv.Itoa(int(o.Value))
}

// Condition is the comparison GOIF applies between its operand and zero.
type Condition int

const (
	CondEQ Condition = iota // ==
	CondNE                  // !=
	CondLT                  // <
	CondGT                  // >
	CondLE                  // <=
	CondGE                  // >=
)

var conditionNames = [...]string{"==", "!=", "<", ">", "<=", ">="}

func (c Condition) String() string {
	if int(c) >= 0 && int(c) < len(conditionNames) {
		return conditionNames[c]
	}
	return fmt.Sprintf("Condition(%d)", int(c))
}

func parseCondition(s string) (Condition, bool) {
	for i, name := range conditionNames {
		if name == s {
			return Condition(i), true
		}
	}
	return 0, false
}

// Holds reports whether v compares true against zero.
func (c Condition) Holds(v int32) bool {
	switch c {
	case CondEQ:
		return v == 0
	case CondNE:
		return v != 0
	case CondLT:
		return v < 0
	case CondGT:
		return v > 0
	case CondLE:
		return v <= 0
	case CondGE:
		return v >= 0
	}
	return false
}

// PrintType is the rendering tag of a PRINT instruction.
type PrintType int

const (
	PrintInt PrintType = iota
	PrintBool
)

func (t PrintType) String() string {
	if t == PrintBool {
		return "bool"
	}
	return "int"
}

// ---------------------------------------------------------------------------
// Instructions
// ---------------------------------------------------------------------------

// Instruction is one assembled instruction. Labels are resolved to Target,
// the index of the instruction that follows the label definition.
type Instruction struct {
	Op     Opcode
	Dst    Operand // SET, arithmetic, POP
	Src    Operand // SET, arithmetic, GOIF, PRINT, PUSH
	Cond   Condition
	Label  string
	Target int
	Print  PrintType
	Line   int // 1-based source line
}

func (in Instruction) String() string {
	switch in.Op {
	case OpSET:
		return fmt.Sprintf("SET %s %s", in.Dst, in.Src)
	case OpADD, OpSUB, OpMULT, OpDIV:
		return fmt.Sprintf("%s %s %s", in.Op, in.Src, in.Dst)
	case OpGOTO:
		return "GOTO " + in.Label
	case OpGOIF:
		return fmt.Sprintf("GOIF %s %s %s", in.Cond, in.Src, in.Label)
	case OpPRINT:
		return fmt.Sprintf("PRINT %s %s", in.Src, in.Print)
	case OpPUSH:
		return "PUSH " + in.Src.String()
	case OpPOP:
		return "POP " + in.Dst.String()
	}
	return in.Op.String()
}

// Program is an assembled instruction stream.
type Program struct {
	Instructions []Instruction
	Labels       map[string]int
}

// Disassemble renders the program back to text, one instruction per line,
// with label definitions in place.
func (p *Program) Disassemble() string {
	at := make(map[int][]string)
	for name, idx := range p.Labels {
		at[idx] = append(at[idx], name)
	}
	var sb strings.Builder
	for i := 0; i <= len(p.Instructions); i++ {
		names := at[i]
		sort.Strings(names)
		for _, name := range names {
			sb.WriteString(name)
			sb.WriteString(":\n")
		}
		if i < len(p.Instructions) {
			sb.WriteString(p.Instructions[i].String())
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
