package compiler

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// ---------------------------------------------------------------------------
// Codegen: lower a checked AST to InVM assembly text
// ---------------------------------------------------------------------------

// ErrCodegen reports that lowering met an inconsistency (an unresolvable name
// or an unhandled node) that semantic checking should have ruled out.
var ErrCodegen = errors.New("code generation inconsistency")

// Register names one of the two scratch registers of the target machine.
type Register int

const (
	Fund1 Register = iota
	Fund2
)

// NumRegisters is the size of the scratch register file.
const NumRegisters = 2

func (r Register) String() string {
	switch r {
	case Fund1:
		return "FUND1"
	case Fund2:
		return "FUND2"
	}
	return fmt.Sprintf("Register(%d)", int(r))
}

// Header is the comment line every generated program starts with.
const Header = "; generated InVM code"

// noSlot is returned by expression lowering when the value could not be
// produced.
const noSlot = -1

// arithMnemonics maps arithmetic operators to InVM instructions. InVM
// arithmetic is `OP src dst`, meaning dst := dst op src.
var arithMnemonics = map[Op]string{
	OpAdd: "ADD",
	OpSub: "SUB",
	OpMul: "MULT",
	OpDiv: "DIV",
}

// relConditions maps relational operators to the GOIF comparison applied to
// left-right.
var relConditions = map[Op]string{
	OpLess:    "<",
	OpGreater: ">",
	OpEqual:   "==",
}

// Generator lowers a program to a single linear instruction stream. Slots
// for temporaries start right after the declared variables; temporaries and
// labels are numbered monotonically and never reused within one run.
type Generator struct {
	diagnostics
	symbols *SymbolTable

	out       *bufio.Writer
	writeErr  error
	nextTemp  int
	nextLabel int
}

// NewGenerator creates a generator resolving names against symbols, which
// must have been populated by a Checker.
func NewGenerator(symbols *SymbolTable) *Generator {
	return &Generator{
		diagnostics: diagnostics{stage: "codegen"},
		symbols:     symbols,
	}
}

// Generate lowers root and writes the program to w. Inconsistencies are
// reported and lowering continues; instructions already written stay
// written.
func (g *Generator) Generate(root *Node, w io.Writer) error {
	g.reset()
	g.out = bufio.NewWriter(w)
	g.writeErr = nil
	g.nextTemp = g.symbols.Len()
	g.nextLabel = 0

	g.emit("%s", Header)
	g.genStmt(root)

	if err := g.out.Flush(); err != nil && g.writeErr == nil {
		g.writeErr = err
	}
	g.out = nil
	if g.writeErr != nil {
		return fmt.Errorf("codegen: write output: %w", g.writeErr)
	}
	if n := g.Count(); n > 0 {
		return fmt.Errorf("%w: %d problem(s)", ErrCodegen, n)
	}
	return nil
}

// GenerateFile lowers root into the file at path, creating or truncating it.
func (g *Generator) GenerateFile(root *Node, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		log.Errorf("codegen: cannot open output %s: %v", path, err)
		return fmt.Errorf("codegen: open output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("codegen: close output: %w", cerr)
		}
	}()
	return g.Generate(root, f)
}

// TempCount returns how many temporary slots the last run allocated.
func (g *Generator) TempCount() int {
	return g.nextTemp - g.symbols.Len()
}

// LabelCount returns how many labels the last run minted.
func (g *Generator) LabelCount() int {
	return g.nextLabel
}

// ---------------------------------------------------------------------------
// Emission helpers
// ---------------------------------------------------------------------------

func (g *Generator) emit(format string, args ...interface{}) {
	if g.writeErr != nil {
		return
	}
	if _, err := fmt.Fprintf(g.out, format+"\n", args...); err != nil {
		g.writeErr = err
	}
}

func slotRef(slot int) string {
	return "*" + strconv.Itoa(slot)
}

func (g *Generator) set(dst, src string) {
	g.emit("SET %s %s", dst, src)
}

func (g *Generator) arith(mnemonic, src, dst string) {
	g.emit("%s %s %s", mnemonic, src, dst)
}

func (g *Generator) jump(label string) {
	g.emit("GOTO %s", label)
}

func (g *Generator) branch(cond string, r Register, label string) {
	g.emit("GOIF %s %s %s", cond, r, label)
}

func (g *Generator) label(name string) {
	g.emit("%s:", name)
}

func (g *Generator) newTemp() int {
	t := g.nextTemp
	g.nextTemp++
	return t
}

func (g *Generator) newLabel(prefix string) string {
	g.nextLabel++
	return prefix + strconv.Itoa(g.nextLabel)
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (g *Generator) genStmt(s *Node) {
	if s == nil {
		return
	}
	switch s.Kind {
	case KindBlock:
		for _, st := range s.Stmts {
			if st == nil {
				continue
			}
			g.genStmt(st)
		}

	case KindDecl:
		slot := g.genExpr(s.Left)
		sym, ok := g.symbols.Lookup(s.Name)
		if !ok {
			g.reportAt(s.Pos, "declaration of %q has no symbol", s.Name)
			return
		}
		if slot == noSlot {
			return
		}
		g.set(slotRef(sym.Slot), slotRef(slot))

	case KindPrint:
		slot := g.genExpr(s.Left)
		if slot == noSlot {
			return
		}
		t := InferType(s.Left, g.symbols)
		if t == TypeUnknown {
			t = s.Left.Type
		}
		tag := "int"
		switch t {
		case TypeBool:
			tag = "bool"
		case TypeInt:
		default:
			g.reportAt(s.Pos, "print of expression with unknown type")
		}
		g.set(Fund1.String(), slotRef(slot))
		g.emit("PRINT %s %s", Fund1, tag)

	case KindInc, KindDec:
		sym, ok := g.symbols.Lookup(s.Name)
		if !ok {
			g.reportAt(s.Pos, "%s of unknown variable %q", lowerKind(s.Kind), s.Name)
			return
		}
		mnemonic := "ADD"
		if s.Kind == KindDec {
			mnemonic = "SUB"
		}
		g.set(Fund1.String(), slotRef(sym.Slot))
		g.arith(mnemonic, "1", Fund1.String())
		g.set(slotRef(sym.Slot), Fund1.String())

	case KindIf:
		g.genIf(s)

	case KindWhile:
		g.genWhile(s)

	case KindEmpty:

	default:
		g.reportAt(s.Pos, "unhandled statement kind %s", s.Kind)
	}
}

// genIf lowers
//
//	GOIF == FUND1 else_N   (ifend_N when there is no else)
//	then_N:  <then>  GOTO ifend_N
//	else_N:  <else>
//	ifend_N:
func (g *Generator) genIf(s *Node) {
	cond := g.genExpr(s.Left)
	if cond == noSlot {
		return
	}
	thenLabel := g.newLabel("then_")
	var elseLabel string
	if s.Next != nil {
		elseLabel = g.newLabel("else_")
	}
	endLabel := g.newLabel("ifend_")

	skip := endLabel
	if s.Next != nil {
		skip = elseLabel
	}
	g.set(Fund1.String(), slotRef(cond))
	g.branch("==", Fund1, skip)
	g.label(thenLabel)
	g.genStmt(s.Right)
	if s.Next != nil {
		g.jump(endLabel)
		g.label(elseLabel)
		g.genStmt(s.Next)
	}
	g.label(endLabel)
}

func (g *Generator) genWhile(s *Node) {
	startLabel := g.newLabel("while_start_")
	endLabel := g.newLabel("while_end_")

	g.label(startLabel)
	cond := g.genExpr(s.Left)
	if cond == noSlot {
		g.label(endLabel)
		return
	}
	g.set(Fund1.String(), slotRef(cond))
	g.branch("==", Fund1, endLabel)
	g.genStmt(s.Right)
	g.jump(startLabel)
	g.label(endLabel)
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// genExpr lowers e and returns the slot holding its value, or noSlot.
func (g *Generator) genExpr(e *Node) int {
	if e == nil {
		g.reportAt(Position{}, "missing expression")
		return noSlot
	}
	switch e.Kind {
	case KindNumber:
		t := g.newTemp()
		g.set(slotRef(t), strconv.Itoa(e.Number))
		return t

	case KindBoolean:
		t := g.newTemp()
		g.set(slotRef(t), boolLiteral(e.Bool))
		return t

	case KindIdentifier:
		sym, ok := g.symbols.Lookup(e.Name)
		if !ok {
			g.reportAt(e.Pos, "unknown identifier %q", e.Name)
			return noSlot
		}
		return sym.Slot

	case KindUnaryOp:
		return g.genUnary(e)

	case KindBinaryOp:
		return g.genBinary(e)
	}
	g.reportAt(e.Pos, "unhandled expression kind %s", e.Kind)
	return noSlot
}

func (g *Generator) genUnary(e *Node) int {
	switch e.Op {
	case OpNot:
		s := g.genExpr(e.Left)
		if s == noSlot {
			return noSlot
		}
		out := g.newTemp()
		g.set(Fund1.String(), slotRef(s))
		g.boolDiamond("==", out, "not_true_", "not_end_")
		return out

	case OpNeg:
		s := g.genExpr(e.Left)
		if s == noSlot {
			return noSlot
		}
		out := g.newTemp()
		g.set(Fund1.String(), "0")
		g.set(Fund2.String(), slotRef(s))
		g.arith("SUB", Fund2.String(), Fund1.String())
		g.set(slotRef(out), Fund1.String())
		return out
	}
	g.reportAt(e.Pos, "unhandled unary operator %s", e.Op)
	return noSlot
}

func (g *Generator) genBinary(e *Node) int {
	switch {
	case e.Op.IsArithmetic():
		l := g.genExpr(e.Left)
		r := g.genExpr(e.Right)
		if l == noSlot || r == noSlot {
			return noSlot
		}
		out := g.newTemp()
		g.set(Fund1.String(), slotRef(l))
		g.set(Fund2.String(), slotRef(r))
		g.arith(arithMnemonics[e.Op], Fund2.String(), Fund1.String())
		g.set(slotRef(out), Fund1.String())
		return out

	case e.Op.IsRelational():
		l := g.genExpr(e.Left)
		r := g.genExpr(e.Right)
		if l == noSlot || r == noSlot {
			return noSlot
		}
		out := g.newTemp()
		g.set(Fund1.String(), slotRef(l))
		g.set(Fund2.String(), slotRef(r))
		if e.Op == OpEqual {
			g.arith("SUB", Fund2.String(), Fund1.String())
		} else {
			g.signedDifference()
		}
		g.boolDiamond(relConditions[e.Op], out, "rel_true_", "rel_end_")
		return out

	case e.Op == OpAnd:
		return g.genAnd(e)

	case e.Op == OpOr:
		return g.genOr(e)
	}
	g.reportAt(e.Pos, "unhandled binary operator %s", e.Op)
	return noSlot
}

// signedDifference leaves in FUND1 a value whose sign matches left-right for
// the operands in FUND1 and FUND2. Operands of opposite sign never reach the
// subtraction, so the comparison holds across the whole int32 range:
//
//	GOIF < FUND1 lneg_N
//	GOIF >= FUND2 same_M
//	SET FUND1 1
//	GOTO test_K
//	lneg_N:
//	GOIF < FUND2 same_M
//	GOTO test_K
//	same_M:
//	SUB FUND2 FUND1
//	test_K:
//
// On the lneg_N path with a non-negative right operand FUND1 still holds the
// negative left operand.
func (g *Generator) signedDifference() {
	negLabel := g.newLabel("rel_lneg_")
	sameLabel := g.newLabel("rel_same_")
	testLabel := g.newLabel("rel_test_")
	g.branch("<", Fund1, negLabel)
	g.branch(">=", Fund2, sameLabel)
	g.set(Fund1.String(), "1")
	g.jump(testLabel)
	g.label(negLabel)
	g.branch("<", Fund2, sameLabel)
	g.jump(testLabel)
	g.label(sameLabel)
	g.arith("SUB", Fund2.String(), Fund1.String())
	g.label(testLabel)
}

// boolDiamond materializes a 0/1 into slot out from a comparison of FUND1
// against zero:
//
//	GOIF cond FUND1 true_N
//	SET *out 0
//	GOTO end_M
//	true_N:
//	SET *out 1
//	end_M:
func (g *Generator) boolDiamond(cond string, out int, truePrefix, endPrefix string) {
	trueLabel := g.newLabel(truePrefix)
	endLabel := g.newLabel(endPrefix)
	g.branch(cond, Fund1, trueLabel)
	g.set(slotRef(out), "0")
	g.jump(endLabel)
	g.label(trueLabel)
	g.set(slotRef(out), "1")
	g.label(endLabel)
}

// genAnd lowers a short-circuit AND. When the left operand is false the
// right operand is never evaluated; a literal false left operand means the
// right operand is not lowered at all.
func (g *Generator) genAnd(e *Node) int {
	if e.Left != nil && e.Left.Kind == KindBoolean && !e.Left.Bool {
		out := g.newTemp()
		g.set(slotRef(out), "0")
		return out
	}
	l := g.genExpr(e.Left)
	if l == noSlot {
		return noSlot
	}
	out := g.newTemp()
	falseLabel := g.newLabel("and_false_")
	endLabel := g.newLabel("and_end_")

	g.set(Fund1.String(), slotRef(l))
	g.branch("==", Fund1, falseLabel)
	r := g.genExpr(e.Right)
	if r != noSlot {
		g.set(Fund2.String(), slotRef(r))
		g.set(slotRef(out), Fund2.String())
	}
	g.jump(endLabel)
	g.label(falseLabel)
	g.set(slotRef(out), "0")
	g.label(endLabel)
	if r == noSlot {
		return noSlot
	}
	return out
}

// genOr lowers a short-circuit OR, the mirror image of genAnd.
func (g *Generator) genOr(e *Node) int {
	if e.Left != nil && e.Left.Kind == KindBoolean && e.Left.Bool {
		out := g.newTemp()
		g.set(slotRef(out), "1")
		return out
	}
	l := g.genExpr(e.Left)
	if l == noSlot {
		return noSlot
	}
	out := g.newTemp()
	rhsLabel := g.newLabel("or_rhs_")
	endLabel := g.newLabel("or_end_")

	g.set(Fund1.String(), slotRef(l))
	g.branch("==", Fund1, rhsLabel)
	g.set(slotRef(out), "1")
	g.jump(endLabel)
	g.label(rhsLabel)
	r := g.genExpr(e.Right)
	if r != noSlot {
		g.set(Fund2.String(), slotRef(r))
		g.set(slotRef(out), Fund2.String())
	}
	g.label(endLabel)
	if r == noSlot {
		return noSlot
	}
	return out
}

func boolLiteral(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
