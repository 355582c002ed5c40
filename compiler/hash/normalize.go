package hash

import (
	"errors"
	"fmt"

	"github.com/chazu/invmc/compiler"
)

// ---------------------------------------------------------------------------
// AST Normalization: compiler AST → frozen hashing AST
//
// Walks the compiler's working AST in source order and produces the frozen
// hashing AST. Variables are numbered by declaration order, the same order
// the checker assigns slots in, so names never reach the hash.
// ---------------------------------------------------------------------------

var (
	ErrCycle       = errors.New("cyclic syntax tree")
	ErrUnknownNode = errors.New("unknown node")
)

// normalizer holds state for the normalization walk.
type normalizer struct {
	decls  map[string]uint32 // variable name → declaration index
	onPath map[*compiler.Node]bool
}

// Normalize transforms a program tree into a frozen hashing AST. Missing
// children normalize to nil. Unknown kinds and operators, and cycles, are
// errors.
func Normalize(root *compiler.Node) (HNode, error) {
	n := &normalizer{
		decls:  make(map[string]uint32),
		onPath: make(map[*compiler.Node]bool),
	}
	return n.normalize(root)
}

func (n *normalizer) normalize(node *compiler.Node) (HNode, error) {
	if node == nil {
		return nil, nil
	}
	if n.onPath[node] {
		return nil, fmt.Errorf("%w at %s node", ErrCycle, node.Kind)
	}
	n.onPath[node] = true
	defer delete(n.onPath, node)

	switch node.Kind {
	case compiler.KindNumber:
		return &HIntLiteral{Value: int64(node.Number)}, nil
	case compiler.KindBoolean:
		return &HBoolLiteral{Value: node.Bool}, nil
	case compiler.KindIdentifier:
		return n.resolveVariable(node.Name), nil

	case compiler.KindBinaryOp:
		code, ok := opCodes[node.Op]
		if !ok || !node.Op.IsBinary() {
			return nil, fmt.Errorf("%w: binary operator %s", ErrUnknownNode, node.Op)
		}
		left, err := n.normalize(node.Left)
		if err != nil {
			return nil, err
		}
		right, err := n.normalize(node.Right)
		if err != nil {
			return nil, err
		}
		return &HBinaryOp{Op: code, Left: left, Right: right}, nil

	case compiler.KindUnaryOp:
		code, ok := opCodes[node.Op]
		if !ok || !node.Op.IsUnary() {
			return nil, fmt.Errorf("%w: unary operator %s", ErrUnknownNode, node.Op)
		}
		operand, err := n.normalize(node.Left)
		if err != nil {
			return nil, err
		}
		return &HUnaryOp{Op: code, Operand: operand}, nil

	case compiler.KindDecl:
		// The initializer is normalized before the name is declared, so
		// `x := x + 1` refers to an earlier x (or a free x).
		init, err := n.normalize(node.Left)
		if err != nil {
			return nil, err
		}
		idx, ok := n.decls[node.Name]
		if !ok {
			idx = uint32(len(n.decls))
			n.decls[node.Name] = idx
		}
		return &HDecl{Index: idx, Init: init}, nil

	case compiler.KindPrint:
		expr, err := n.normalize(node.Left)
		if err != nil {
			return nil, err
		}
		return &HPrint{Expr: expr}, nil

	case compiler.KindInc:
		return &HInc{Var: n.resolveVariable(node.Name)}, nil
	case compiler.KindDec:
		return &HDec{Var: n.resolveVariable(node.Name)}, nil

	case compiler.KindIf:
		kids, err := n.normalizeAll(node.Left, node.Right, node.Next)
		if err != nil {
			return nil, err
		}
		return &HIf{Cond: kids[0], Then: kids[1], Else: kids[2]}, nil

	case compiler.KindWhile:
		kids, err := n.normalizeAll(node.Left, node.Right)
		if err != nil {
			return nil, err
		}
		return &HWhile{Cond: kids[0], Body: kids[1]}, nil

	case compiler.KindBlock:
		stmts, err := n.normalizeAll(node.Stmts...)
		if err != nil {
			return nil, err
		}
		return &HBlock{Stmts: stmts}, nil

	case compiler.KindEmpty:
		return &HEmpty{}, nil
	}
	return nil, fmt.Errorf("%w: kind %s", ErrUnknownNode, node.Kind)
}

func (n *normalizer) normalizeAll(nodes ...*compiler.Node) ([]HNode, error) {
	out := make([]HNode, len(nodes))
	for i, node := range nodes {
		h, err := n.normalize(node)
		if err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}

// resolveVariable maps a name to its declaration index, or to a free
// reference when no declaration has been seen yet.
func (n *normalizer) resolveVariable(name string) HNode {
	if idx, ok := n.decls[name]; ok {
		return &HVarRef{Index: idx}
	}
	return &HFreeRef{Name: name}
}
