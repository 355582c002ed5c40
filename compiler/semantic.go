package compiler

import "errors"

// ---------------------------------------------------------------------------
// Semantic checker: type inference and declaration checks
// ---------------------------------------------------------------------------

// Checker walks a program once, in source order, declaring variables into
// its symbol table and reporting every statement-level problem it finds. It
// never stops at the first error.
type Checker struct {
	diagnostics
	symbols *SymbolTable
}

// NewChecker creates a checker that populates symbols.
func NewChecker(symbols *SymbolTable) *Checker {
	return &Checker{
		diagnostics: diagnostics{stage: "semantic"},
		symbols:     symbols,
	}
}

// Symbols returns the table the checker populates.
func (c *Checker) Symbols() *SymbolTable {
	return c.symbols
}

// Check resets the symbol table, checks the program rooted at root and
// returns the number of semantic errors. The root must be a Block.
//
// Statements nested in if/while bodies and inner blocks are checked too,
// declaring into the same flat table in the order they appear.
func (c *Checker) Check(root *Node) int {
	c.reset()
	c.symbols.Reset()
	if root == nil {
		return 0
	}
	if root.Kind != KindBlock {
		c.reportAt(root.Pos, "program root must be a block, got %s", root.Kind)
		return c.Count()
	}
	c.checkStatements(root.Stmts)
	return c.Count()
}

func (c *Checker) checkStatements(stmts []*Node) {
	for _, s := range stmts {
		c.checkStmt(s)
	}
}

// checkBody checks the then/else/loop body of a control statement, which is
// normally a Block but may be a single statement.
func (c *Checker) checkBody(n *Node) {
	if n == nil {
		return
	}
	if n.Kind == KindBlock {
		c.checkStatements(n.Stmts)
		return
	}
	c.checkStmt(n)
}

func (c *Checker) checkStmt(s *Node) {
	if s == nil {
		return
	}
	switch s.Kind {
	case KindDecl:
		t := InferType(s.Left, c.symbols)
		if t == TypeUnknown {
			c.reportAt(s.Pos, "cannot infer initializer type for %q", s.Name)
			return
		}
		c.checkOperands(s.Left)
		s.Left.Type = t
		if _, err := c.symbols.InsertAt(s.Name, t, s.Pos); err != nil {
			if errors.Is(err, ErrDuplicateSymbol) {
				c.reportAt(s.Pos, "duplicate declaration of %q", s.Name)
			} else {
				c.reportAt(s.Pos, "%v", err)
			}
		}

	case KindPrint:
		t := InferType(s.Left, c.symbols)
		if t == TypeUnknown {
			c.reportAt(s.Pos, "print of expression with unknown type")
			return
		}
		c.checkOperands(s.Left)
		s.Left.Type = t

	case KindInc, KindDec:
		sym, ok := c.symbols.Lookup(s.Name)
		if !ok {
			c.reportAt(s.Pos, "use of undeclared variable %q", s.Name)
		} else if sym.Type != TypeInt {
			c.reportAt(s.Pos, "%s applied to non-integer variable %q (%s)",
				lowerKind(s.Kind), s.Name, sym.Type)
		}

	case KindIf, KindWhile:
		t := InferType(s.Left, c.symbols)
		if t != TypeBool {
			c.reportAt(s.Pos, "%s condition is not boolean (got %s)", lowerKind(s.Kind), t)
		} else {
			c.checkOperands(s.Left)
			s.Left.Type = t
		}
		c.checkBody(s.Right)
		if s.Kind == KindIf {
			c.checkBody(s.Next)
		}

	case KindBlock:
		c.checkStatements(s.Stmts)

	case KindEmpty:
		// nothing to check

	default:
		c.reportAt(s.Pos, "%s is not a statement", s.Kind)
	}
}

// checkOperands verifies the operands of every operator inside e. The type
// of e itself is the caller's concern; this catches undeclared names and
// int/bool mix-ups below the top of the expression, which have no implicit
// coercion.
func (c *Checker) checkOperands(e *Node) {
	if e == nil {
		return
	}
	switch e.Kind {
	case KindBinaryOp:
		c.checkOperands(e.Left)
		c.checkOperands(e.Right)
		lt := c.operandType(e.Left)
		rt := c.operandType(e.Right)
		switch {
		case e.Op.IsArithmetic(), e.Op == OpLess, e.Op == OpGreater:
			c.expectOperand(e, e.Left, lt, TypeInt)
			c.expectOperand(e, e.Right, rt, TypeInt)
		case e.Op.IsLogical():
			c.expectOperand(e, e.Left, lt, TypeBool)
			c.expectOperand(e, e.Right, rt, TypeBool)
		case e.Op == OpEqual:
			if lt != TypeUnknown && rt != TypeUnknown && lt != rt {
				c.reportAt(e.Pos, "operator %s compares %s with %s", e.Op, lt, rt)
			}
		}
		e.Type = InferType(e, c.symbols)

	case KindUnaryOp:
		c.checkOperands(e.Left)
		t := c.operandType(e.Left)
		switch e.Op {
		case OpNot:
			c.expectOperand(e, e.Left, t, TypeBool)
		case OpNeg:
			c.expectOperand(e, e.Left, t, TypeInt)
		}
		e.Type = InferType(e, c.symbols)

	case KindIdentifier:
		if sym, ok := c.symbols.Lookup(e.Name); ok {
			e.Type = sym.Type
		}
	}
}

// operandType infers the type of an operand, reporting operands whose type
// cannot be known.
func (c *Checker) operandType(e *Node) Type {
	t := InferType(e, c.symbols)
	if t != TypeUnknown {
		return t
	}
	if e != nil && e.Kind == KindIdentifier {
		c.reportAt(e.Pos, "use of undeclared variable %q", e.Name)
	} else if e != nil {
		c.reportAt(e.Pos, "cannot infer type of %s operand", e.Kind)
	}
	return TypeUnknown
}

func (c *Checker) expectOperand(op, operand *Node, got, want Type) {
	if got == TypeUnknown || got == want {
		return
	}
	pos := operand.Pos
	if !pos.IsValid() {
		pos = op.Pos
	}
	c.reportAt(pos, "operator %s expects %s operand, got %s", op.Op, want, got)
}

// ---------------------------------------------------------------------------
// Type inference
// ---------------------------------------------------------------------------

// InferType computes the static type of expression e against symbols. It
// does not modify the tree.
func InferType(e *Node, symbols *SymbolTable) Type {
	if e == nil {
		return TypeUnknown
	}
	switch e.Kind {
	case KindNumber:
		return TypeInt
	case KindBoolean:
		return TypeBool
	case KindIdentifier:
		if sym, ok := symbols.Lookup(e.Name); ok {
			return sym.Type
		}
		return TypeUnknown
	case KindUnaryOp:
		switch e.Op {
		case OpNot:
			return TypeBool
		case OpNeg:
			return TypeInt
		}
	case KindBinaryOp:
		switch {
		case e.Op.IsArithmetic():
			return TypeInt
		case e.Op.IsRelational(), e.Op.IsLogical():
			return TypeBool
		}
	}
	return TypeUnknown
}

func lowerKind(k Kind) string {
	switch k {
	case KindInc:
		return "inc"
	case KindDec:
		return "dec"
	case KindIf:
		return "if"
	case KindWhile:
		return "while"
	}
	return k.String()
}
