package vm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Assembler: InVM text to Program
// ---------------------------------------------------------------------------

var (
	ErrSyntax         = errors.New("syntax error")
	ErrDuplicateLabel = errors.New("duplicate label")
	ErrUndefinedLabel = errors.New("undefined label")
)

// Assemble parses InVM assembly text. Each line holds at most one
// instruction, optionally preceded by label definitions (`name:`). Text
// after `;` or `#` is a comment. Label references may carry a leading `$`.
//
// Every problem in the text is reported; the returned error joins them.
func Assemble(text string) (*Program, error) {
	a := &assembler{
		prog: &Program{Labels: make(map[string]int)},
	}
	for i, line := range strings.Split(text, "\n") {
		a.line = i + 1
		a.assembleLine(stripComment(line))
	}
	a.resolve()
	if len(a.errs) > 0 {
		return nil, errors.Join(a.errs...)
	}
	return a.prog, nil
}

type assembler struct {
	prog *Program
	line int
	errs []error
}

func (a *assembler) errorf(sentinel error, format string, args ...interface{}) {
	a.errs = append(a.errs, fmt.Errorf("line %d: %w: %s", a.line, sentinel, fmt.Sprintf(format, args...)))
}

func stripComment(line string) string {
	if i := strings.IndexAny(line, ";#"); i >= 0 {
		line = line[:i]
	}
	return line
}

func (a *assembler) assembleLine(line string) {
	fields := strings.Fields(line)
	for len(fields) > 0 && strings.HasSuffix(fields[0], ":") {
		a.defineLabel(strings.TrimSuffix(fields[0], ":"))
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return
	}

	op, ok := mnemonics[fields[0]]
	if !ok {
		a.errorf(ErrSyntax, "unknown instruction %q", fields[0])
		return
	}
	in := Instruction{Op: op, Line: a.line}
	args := fields[1:]
	want := op.Info().Operands
	if len(args) != want {
		a.errorf(ErrSyntax, "%s takes %d operand(s), got %d", op, want, len(args))
		return
	}

	var err error
	switch op {
	case OpSET:
		if in.Dst, err = parseDestination(args[0]); err == nil {
			in.Src, err = parseSource(args[1])
		}
	case OpADD, OpSUB, OpMULT, OpDIV:
		if in.Src, err = parseSource(args[0]); err == nil {
			in.Dst, err = parseDestination(args[1])
		}
	case OpGOTO:
		in.Label, err = parseLabelRef(args[0])
	case OpGOIF:
		cond, ok := parseCondition(args[0])
		if !ok {
			err = fmt.Errorf("unknown condition %q", args[0])
			break
		}
		in.Cond = cond
		if in.Src, err = parseSource(args[1]); err == nil {
			in.Label, err = parseLabelRef(args[2])
		}
	case OpPRINT:
		if in.Src, err = parseSource(args[0]); err == nil {
			switch args[1] {
			case "int":
				in.Print = PrintInt
			case "bool":
				in.Print = PrintBool
			default:
				err = fmt.Errorf("unknown print type %q", args[1])
			}
		}
	case OpPUSH:
		in.Src, err = parseSource(args[0])
	case OpPOP:
		in.Dst, err = parseDestination(args[0])
	}
	if err != nil {
		a.errorf(ErrSyntax, "%s: %v", op, err)
		return
	}
	a.prog.Instructions = append(a.prog.Instructions, in)
}

func (a *assembler) defineLabel(name string) {
	if !validLabel(name) {
		a.errorf(ErrSyntax, "invalid label name %q", name)
		return
	}
	if _, dup := a.prog.Labels[name]; dup {
		a.errorf(ErrDuplicateLabel, "%s", name)
		return
	}
	a.prog.Labels[name] = len(a.prog.Instructions)
}

// resolve binds every label reference to its target index.
func (a *assembler) resolve() {
	for i := range a.prog.Instructions {
		in := &a.prog.Instructions[i]
		if !in.Op.Info().Label {
			continue
		}
		target, ok := a.prog.Labels[in.Label]
		if !ok {
			a.line = in.Line
			a.errorf(ErrUndefinedLabel, "%s", in.Label)
			continue
		}
		in.Target = target
	}
}

// ---------------------------------------------------------------------------
// Operand parsing
// ---------------------------------------------------------------------------

func parseSource(s string) (Operand, error) {
	if strings.HasPrefix(s, "*") {
		return parseAddress(s[1:])
	}
	if r, ok := parseRegister(s); ok {
		return Operand{Mode: ModeRegister, Reg: r}, nil
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return Operand{}, fmt.Errorf("bad operand %q", s)
	}
	return Operand{Mode: ModeImmediate, Value: int32(n)}, nil
}

func parseDestination(s string) (Operand, error) {
	o, err := parseSource(s)
	if err != nil {
		return o, err
	}
	if !o.Writable() {
		return o, fmt.Errorf("cannot write to immediate %s", s)
	}
	return o, nil
}

func parseAddress(s string) (Operand, error) {
	if r, ok := parseRegister(s); ok {
		return Operand{Mode: ModeIndirect, Reg: r}, nil
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil || n < 0 {
		return Operand{}, fmt.Errorf("bad address *%s", s)
	}
	return Operand{Mode: ModeAddress, Value: int32(n)}, nil
}

func parseLabelRef(s string) (string, error) {
	s = strings.TrimPrefix(s, "$")
	if !validLabel(s) {
		return "", fmt.Errorf("bad label %q", s)
	}
	return s, nil
}

func validLabel(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
