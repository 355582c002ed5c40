package compiler

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/invmc/vm"
)

// generate checks root and lowers it, failing the test on any error.
func generate(t *testing.T, root *Node) string {
	t.Helper()
	u := NewUnit(t.Name())
	var buf bytes.Buffer
	if err := u.Compile(root, &buf); err != nil {
		t.Fatalf("Compile: %v (%v)", err, u.Errors())
	}
	return buf.String()
}

func lines(s string) []string {
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

func TestCodegenDeclAndPrint(t *testing.T) {
	got := generate(t, NewBlock(
		NewDecl("x", NewNumber(5)),
		NewPrint(NewIdent("x")),
	))
	want := `; generated InVM code
SET *1 5
SET *0 *1
SET FUND1 *0
PRINT FUND1 int
`
	if got != want {
		t.Errorf("output =\n%s\nwant\n%s", got, want)
	}
}

func TestCodegenRelationalPrint(t *testing.T) {
	got := generate(t, NewBlock(
		NewPrint(NewBinary(OpGreater, NewNumber(3), NewNumber(2))),
	))
	want := `; generated InVM code
SET *0 3
SET *1 2
SET FUND1 *0
SET FUND2 *1
GOIF < FUND1 rel_lneg_1
GOIF >= FUND2 rel_same_2
SET FUND1 1
GOTO rel_test_3
rel_lneg_1:
GOIF < FUND2 rel_same_2
GOTO rel_test_3
rel_same_2:
SUB FUND2 FUND1
rel_test_3:
GOIF > FUND1 rel_true_4
SET *2 0
GOTO rel_end_5
rel_true_4:
SET *2 1
rel_end_5:
SET FUND1 *2
PRINT FUND1 bool
`
	if got != want {
		t.Errorf("output =\n%s\nwant\n%s", got, want)
	}
}

func TestCodegenArithmeticOperandOrder(t *testing.T) {
	got := generate(t, NewBlock(
		NewPrint(NewBinary(OpSub, NewNumber(10), NewNumber(4))),
	))
	// FUND1 holds the left operand and is the destination.
	for _, want := range []string{"SET FUND1 *0", "SET FUND2 *1", "SUB FUND2 FUND1", "SET *2 FUND1"} {
		if !strings.Contains(got, want+"\n") {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestCodegenTempsFollowVariables(t *testing.T) {
	root := NewBlock(
		NewDecl("a", NewNumber(1)),
		NewDecl("b", NewNumber(2)),
		NewDecl("c", NewBinary(OpAdd, NewIdent("a"), NewIdent("b"))),
	)
	got := generate(t, root)
	// Three variables own slots 0..2; the first temporary is slot 3.
	if !strings.Contains(got, "SET *3 1\nSET *0 *3\n") {
		t.Errorf("first temporary does not follow the variables:\n%s", got)
	}
	if !strings.Contains(got, "SET *5 FUND1\nSET *2 *5\n") {
		t.Errorf("sum not stored through temporary 5:\n%s", got)
	}
}

func TestCodegenIfElseLayout(t *testing.T) {
	got := generate(t, NewBlock(
		NewIf(NewBool(true), NewBlock(NewPrint(NewNumber(1))), NewBlock(NewPrint(NewNumber(2)))),
	))
	l := lines(got)
	idx := func(s string) int {
		for i, line := range l {
			if line == s {
				return i
			}
		}
		t.Fatalf("line %q not found in\n%s", s, got)
		return -1
	}
	branch := idx("GOIF == FUND1 else_2")
	then := idx("then_1:")
	skip := idx("GOTO ifend_3")
	els := idx("else_2:")
	end := idx("ifend_3:")
	if !(branch < then && then < skip && skip < els && els < end) {
		t.Errorf("if layout out of order:\n%s", got)
	}
}

func TestCodegenIfWithoutElse(t *testing.T) {
	got := generate(t, NewBlock(
		NewIf(NewBool(false), NewBlock(NewPrint(NewNumber(1))), nil),
	))
	if !strings.Contains(got, "GOIF == FUND1 ifend_2\n") {
		t.Errorf("false condition does not skip to ifend:\n%s", got)
	}
	if strings.Contains(got, "else_") || strings.Contains(got, "GOTO") {
		t.Errorf("if without else emitted an else path:\n%s", got)
	}
}

func TestCodegenWhileLayout(t *testing.T) {
	got := generate(t, NewBlock(
		NewDecl("i", NewNumber(0)),
		NewWhile(NewBinary(OpLess, NewIdent("i"), NewNumber(3)), NewBlock(NewInc("i"))),
	))
	for _, want := range []string{
		"while_start_1:",
		"GOIF == FUND1 while_end_2",
		"ADD 1 FUND1",
		"GOTO while_start_1",
		"while_end_2:",
	} {
		if strings.Count(got, want+"\n") != 1 {
			t.Errorf("want exactly one %q in:\n%s", want, got)
		}
	}
	l := lines(got)
	if l[len(l)-1] != "while_end_2:" || l[len(l)-2] != "GOTO while_start_1" {
		t.Errorf("loop does not close with jump back and end label:\n%s", got)
	}
}

func TestCodegenShortCircuitLiteral(t *testing.T) {
	rhs := NewBinary(OpGreater, NewBinary(OpDiv, NewNumber(1), NewNumber(7)), NewNumber(0))
	and := generate(t, NewBlock(NewPrint(NewBinary(OpAnd, NewBool(false), rhs))))
	if strings.Contains(and, "DIV") || strings.Contains(and, "rel_") {
		t.Errorf("false AND lowered its right operand:\n%s", and)
	}

	rhs = NewBinary(OpGreater, NewBinary(OpDiv, NewNumber(1), NewNumber(7)), NewNumber(0))
	or := generate(t, NewBlock(NewPrint(NewBinary(OpOr, NewBool(true), rhs))))
	if strings.Contains(or, "DIV") || strings.Contains(or, "rel_") {
		t.Errorf("true OR lowered its right operand:\n%s", or)
	}
	if !strings.Contains(or, "SET *0 1\n") {
		t.Errorf("true OR does not store 1:\n%s", or)
	}
}

func TestCodegenLogicalSharedResultSlot(t *testing.T) {
	got := generate(t, NewBlock(
		NewDecl("a", NewBool(true)),
		NewDecl("b", NewBool(false)),
		NewPrint(NewBinary(OpAnd, NewIdent("a"), NewIdent("b"))),
	))
	// Both paths write the same slot before converging.
	if !strings.Contains(got, "SET FUND2 *1\nSET *4 FUND2\nGOTO and_end_2\nand_false_1:\nSET *4 0\nand_end_2:\n") {
		t.Errorf("AND paths do not share one result slot:\n%s", got)
	}
}

func TestCodegenLabelsAssemble(t *testing.T) {
	root, err := Parse(`
a := 1
b := a > 0 and not (a == 2) or false
if b { print a } else { print -a }
if a < 0 { dec a }
while a < 4 { inc a; if a == 3 { print a } }
`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := generate(t, root)
	if _, err := vm.Assemble(got); err != nil {
		t.Errorf("generated code does not assemble: %v\n%s", err, got)
	}
}

func TestCodegenIdempotent(t *testing.T) {
	root := NewBlock(
		NewDecl("i", NewNumber(0)),
		NewWhile(NewBinary(OpLess, NewIdent("i"), NewNumber(3)), NewBlock(NewInc("i"))),
		NewPrint(NewUnary(OpNot, NewBinary(OpEqual, NewIdent("i"), NewNumber(3)))),
	)
	u := NewUnit("twice")
	var first, second bytes.Buffer
	if err := u.Compile(root, &first); err != nil {
		t.Fatalf("first Compile: %v", err)
	}
	if err := u.Compile(root, &second); err != nil {
		t.Fatalf("second Compile: %v", err)
	}
	if first.String() != second.String() {
		t.Errorf("outputs differ:\n%s\n---\n%s", first.String(), second.String())
	}
}

func TestCodegenInconsistentTree(t *testing.T) {
	// Generating without checking leaves the name unresolved.
	g := NewGenerator(NewSymbolTable())
	var buf bytes.Buffer
	err := g.Generate(NewBlock(NewPrint(NewIdent("ghost"))), &buf)
	if !errors.Is(err, ErrCodegen) {
		t.Fatalf("Generate error = %v, want ErrCodegen", err)
	}
	if !strings.HasPrefix(buf.String(), Header+"\n") {
		t.Errorf("header not written before the problem: %q", buf.String())
	}
	if g.Count() != 1 {
		t.Errorf("Count() = %d, want 1: %v", g.Count(), g.Errors())
	}
}

func TestGenerateFile(t *testing.T) {
	root := NewBlock(NewDecl("x", NewNumber(5)), NewPrint(NewIdent("x")))
	u := NewUnit("file")
	path := filepath.Join(t.TempDir(), "out.invm")
	if err := u.CompileFile(root, path); err != nil {
		t.Fatalf("CompileFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.HasPrefix(string(data), Header) || !strings.Contains(string(data), "PRINT FUND1 int") {
		t.Errorf("file contents = %q", data)
	}
}

func TestGenerateFileUnopenable(t *testing.T) {
	u := NewUnit("file")
	path := filepath.Join(t.TempDir(), "missing", "dir", "out.invm")
	err := u.CompileFile(NewBlock(NewPrint(NewNumber(1))), path)
	if err == nil {
		t.Fatal("CompileFile into a missing directory succeeded")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want it to wrap os.ErrNotExist", err)
	}
}

func TestRegisterString(t *testing.T) {
	if Fund1.String() != "FUND1" || Fund2.String() != "FUND2" {
		t.Errorf("register names = %s, %s", Fund1, Fund2)
	}
}
