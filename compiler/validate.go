package compiler

import "math"

// ---------------------------------------------------------------------------
// Validator: structural checks on a tree before semantic analysis
// ---------------------------------------------------------------------------

// Validator checks that a tree is structurally well formed: every kind has
// its required children, operators match their node kind, and no node is
// re-entered along a single descent path.
type Validator struct {
	diagnostics
}

// NewValidator creates a validator.
func NewValidator() *Validator {
	return &Validator{diagnostics: diagnostics{stage: "validate"}}
}

// Validate checks the tree rooted at root and returns the number of
// structural errors found. A nil root is an empty program.
func (v *Validator) Validate(root *Node) int {
	v.reset()
	v.visit(root, nil)
	return v.Count()
}

// Validate is a convenience wrapper around a fresh Validator.
func Validate(root *Node) int {
	return NewValidator().Validate(root)
}

// visit validates n. path holds the ancestors of n on the current descent
// path only; siblings each get their own extension of it.
func (v *Validator) visit(n *Node, path []*Node) {
	if n == nil {
		return
	}
	for _, anc := range path {
		if anc == n {
			v.reportAt(n.Pos, "cycle detected at %s node", n.Kind)
			return
		}
	}
	// Full slice expression forces a copy on append, so sibling descents
	// never share a backing array.
	path = append(path[:len(path):len(path)], n)

	switch n.Kind {
	case KindDecl:
		if n.Name == "" {
			v.reportAt(n.Pos, "declaration missing name")
		}
		if n.Left == nil {
			v.reportAt(n.Pos, "declaration %q missing initializer", n.Name)
		} else {
			v.visit(n.Left, path)
		}

	case KindPrint:
		v.require(n, n.Left, "print missing expression", path)

	case KindIf:
		v.require(n, n.Left, "if missing condition", path)
		v.require(n, n.Right, "if missing then-block", path)
		v.visit(n.Next, path)

	case KindWhile:
		v.require(n, n.Left, "while missing condition", path)
		v.require(n, n.Right, "while missing body", path)

	case KindBinaryOp:
		if !n.Op.IsBinary() {
			v.reportAt(n.Pos, "binary node carries non-binary operator %s", n.Op)
		}
		if n.Left == nil || n.Right == nil {
			v.reportAt(n.Pos, "binary %s missing operand", n.Op)
		} else {
			v.visit(n.Left, path)
			v.visit(n.Right, path)
		}

	case KindUnaryOp:
		if !n.Op.IsUnary() {
			v.reportAt(n.Pos, "unary node carries non-unary operator %s", n.Op)
		}
		v.require(n, n.Left, "unary "+n.Op.String()+" missing operand", path)

	case KindBlock:
		for i, s := range n.Stmts {
			if s == nil {
				v.reportAt(n.Pos, "block statement %d is nil", i)
				continue
			}
			v.visit(s, path)
		}

	case KindNumber:
		if n.Number < math.MinInt32 || n.Number > math.MaxInt32 {
			v.reportAt(n.Pos, "integer literal %d out of range", n.Number)
		}

	case KindIdentifier, KindBoolean, KindInc, KindDec, KindEmpty:
		// leaves

	default:
		v.reportAt(n.Pos, "unknown node kind %s", n.Kind)
	}
}

// require reports msg when child is missing, and descends into it otherwise.
func (v *Validator) require(parent, child *Node, msg string, path []*Node) {
	if child == nil {
		v.reportAt(parent.Pos, "%s", msg)
		return
	}
	v.visit(child, path)
}
