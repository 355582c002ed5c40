package compiler

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ---------------------------------------------------------------------------
// Compilation unit: all per-program compiler state in one place
// ---------------------------------------------------------------------------

var (
	// ErrValidation is returned when the tree is structurally malformed.
	ErrValidation = errors.New("malformed syntax tree")
	// ErrSemantic is returned when semantic checking reported errors.
	ErrSemantic = errors.New("semantic errors")
)

// Unit owns the symbol table and stage state for one compilation unit.
// Units share nothing, so separate units may compile concurrently; a single
// Unit must not.
type Unit struct {
	Name    string
	Symbols *SymbolTable

	validator *Validator
	checker   *Checker
	generator *Generator
}

// NewUnit creates a compilation unit. The name only labels log output.
func NewUnit(name string) *Unit {
	symbols := NewSymbolTable()
	return &Unit{
		Name:      name,
		Symbols:   symbols,
		validator: NewValidator(),
		checker:   NewChecker(symbols),
		generator: NewGenerator(symbols),
	}
}

// BeginUnit clears every piece of state left by a previous compilation: the
// symbol table, the diagnostics of all stages, and the slot and label
// counters.
func (u *Unit) BeginUnit() {
	u.Symbols.Reset()
	u.validator.reset()
	u.checker.reset()
	u.generator.reset()
	u.generator.nextTemp = 0
	u.generator.nextLabel = 0
	log.Debugf("unit %s: begin", u.Name)
}

// Validate runs the structural validator.
func (u *Unit) Validate(root *Node) int {
	return u.validator.Validate(root)
}

// Check runs the semantic checker, filling u.Symbols.
func (u *Unit) Check(root *Node) int {
	return u.checker.Check(root)
}

// Generate lowers an already checked tree to w.
func (u *Unit) Generate(root *Node, w io.Writer) error {
	return u.generator.Generate(root, w)
}

// Compile runs validation, checking and generation in order. Code is only
// generated for a tree with no structural or semantic errors.
func (u *Unit) Compile(root *Node, w io.Writer) error {
	u.BeginUnit()
	if n := u.Validate(root); n > 0 {
		return fmt.Errorf("%s: %w: %d error(s)", u.Name, ErrValidation, n)
	}
	if n := u.Check(root); n > 0 {
		return fmt.Errorf("%s: %w: %d error(s)", u.Name, ErrSemantic, n)
	}
	if err := u.Generate(root, w); err != nil {
		return fmt.Errorf("%s: %w", u.Name, err)
	}
	log.Debugf("unit %s: %d variable(s), %d temporaries, %d labels",
		u.Name, u.Symbols.Len(), u.generator.TempCount(), u.generator.LabelCount())
	return nil
}

// CompileFile is Compile writing to the file at path. The file is only
// created once the tree has passed validation and checking.
func (u *Unit) CompileFile(root *Node, path string) error {
	u.BeginUnit()
	if n := u.Validate(root); n > 0 {
		return fmt.Errorf("%s: %w: %d error(s)", u.Name, ErrValidation, n)
	}
	if n := u.Check(root); n > 0 {
		return fmt.Errorf("%s: %w: %d error(s)", u.Name, ErrSemantic, n)
	}
	if err := u.generator.GenerateFile(root, path); err != nil {
		return fmt.Errorf("%s: %w", u.Name, err)
	}
	return nil
}

// Analyze validates and checks root without generating code, leaving the
// symbol table populated. Checking is skipped for a malformed tree.
func (u *Unit) Analyze(root *Node) []Diagnostic {
	u.BeginUnit()
	if u.Validate(root) == 0 {
		u.Check(root)
	}
	return u.Diagnostics()
}

// Diagnostics returns the diagnostics of every stage, in stage order.
func (u *Unit) Diagnostics() []Diagnostic {
	var out []Diagnostic
	out = append(out, u.validator.Diagnostics()...)
	out = append(out, u.checker.Diagnostics()...)
	out = append(out, u.generator.Diagnostics()...)
	return out
}

// Errors returns Diagnostics as strings.
func (u *Unit) Errors() []string {
	diags := u.Diagnostics()
	out := make([]string, len(diags))
	for i, d := range diags {
		out[i] = d.String()
	}
	return out
}

// ---------------------------------------------------------------------------
// Compile helpers for external use
// ---------------------------------------------------------------------------

// CompileProgram compiles root in a fresh unit and returns the program text.
func CompileProgram(root *Node) (string, error) {
	var sb strings.Builder
	u := NewUnit("program")
	if err := u.Compile(root, &sb); err != nil {
		return "", fmt.Errorf("%w: %s", err, strings.Join(u.Errors(), "; "))
	}
	return sb.String(), nil
}

// CompileSource parses source text and compiles it in a fresh unit.
func CompileSource(source string) (string, error) {
	root, err := Parse(source)
	if err != nil {
		return "", err
	}
	return CompileProgram(root)
}
