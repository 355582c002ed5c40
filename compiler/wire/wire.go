// Package wire is the CBOR interchange form of a program tree. It lets an
// external front end hand a syntax tree to the code generator without
// going through source text.
package wire

import (
	"errors"
	"fmt"

	"github.com/chazu/invmc/compiler"
	"github.com/fxamacker/cbor/v2"
)

// Version is written into every encoded program.
const Version = 1

var (
	ErrVersion    = errors.New("unsupported wire version")
	ErrBlockCount = errors.New("block statement count mismatch")
	ErrCycle      = errors.New("cyclic syntax tree")
)

// Program is the top-level wire envelope.
type Program struct {
	Version int   `cbor:"1,keyasint"`
	Root    *Node `cbor:"2,keyasint"`
}

// Node mirrors compiler.Node with string-tagged kinds and operators.
type Node struct {
	Kind   string  `cbor:"1,keyasint"`
	Name   string  `cbor:"2,keyasint,omitempty"`
	Number int     `cbor:"3,keyasint,omitempty"`
	Bool   bool    `cbor:"4,keyasint,omitempty"`
	Op     string  `cbor:"5,keyasint,omitempty"`
	Left   *Node   `cbor:"6,keyasint,omitempty"`
	Right  *Node   `cbor:"7,keyasint,omitempty"`
	Next   *Node   `cbor:"8,keyasint,omitempty"`
	Count  int     `cbor:"9,keyasint,omitempty"`
	Stmts  []*Node `cbor:"10,keyasint,omitempty"`
	Line   int     `cbor:"11,keyasint,omitempty"`
	Column int     `cbor:"12,keyasint,omitempty"`
}

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

// maxNestedLevels is the deepest CBOR nesting accepted on decode. Every
// operator in an expression chain adds one level.
const maxNestedLevels = 65535

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em

	dm, err := cbor.DecOptions{MaxNestedLevels: maxNestedLevels}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR dec mode: %v", err))
	}
	cborDecMode = dm
}

// MarshalProgram serializes a program tree to canonical CBOR bytes.
func MarshalProgram(root *compiler.Node) ([]byte, error) {
	w, err := toWire(root, make(map[*compiler.Node]bool))
	if err != nil {
		return nil, fmt.Errorf("wire: marshal program: %w", err)
	}
	return cborEncMode.Marshal(&Program{Version: Version, Root: w})
}

// UnmarshalProgram deserializes a program tree from CBOR bytes. Unknown
// kinds and operators decode to KindInvalid and OpInvalid so that the
// validator can report them with the rest of the tree's problems.
func UnmarshalProgram(data []byte) (*compiler.Node, error) {
	var p Program
	if err := cborDecMode.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("wire: unmarshal program: %w", err)
	}
	if p.Version != Version {
		return nil, fmt.Errorf("wire: %w %d", ErrVersion, p.Version)
	}
	root, err := fromWire(p.Root)
	if err != nil {
		return nil, fmt.Errorf("wire: unmarshal program: %w", err)
	}
	return root, nil
}

func toWire(n *compiler.Node, onPath map[*compiler.Node]bool) (*Node, error) {
	if n == nil {
		return nil, nil
	}
	if onPath[n] {
		return nil, fmt.Errorf("%w at %s node", ErrCycle, n.Kind)
	}
	onPath[n] = true
	defer delete(onPath, n)

	w := &Node{
		Kind:   n.Kind.String(),
		Name:   n.Name,
		Number: n.Number,
		Bool:   n.Bool,
		Line:   n.Pos.Line,
		Column: n.Pos.Column,
	}
	if n.Kind == compiler.KindBinaryOp || n.Kind == compiler.KindUnaryOp {
		w.Op = n.Op.String()
	}
	var err error
	if w.Left, err = toWire(n.Left, onPath); err != nil {
		return nil, err
	}
	if w.Right, err = toWire(n.Right, onPath); err != nil {
		return nil, err
	}
	if w.Next, err = toWire(n.Next, onPath); err != nil {
		return nil, err
	}
	if n.Kind == compiler.KindBlock {
		w.Count = len(n.Stmts)
		w.Stmts = make([]*Node, len(n.Stmts))
		for i, st := range n.Stmts {
			if w.Stmts[i], err = toWire(st, onPath); err != nil {
				return nil, err
			}
		}
	}
	return w, nil
}

func fromWire(w *Node) (*compiler.Node, error) {
	if w == nil {
		return nil, nil
	}
	n := &compiler.Node{
		Kind:   compiler.ParseKind(w.Kind),
		Name:   w.Name,
		Number: w.Number,
		Bool:   w.Bool,
		Pos:    compiler.Position{Line: w.Line, Column: w.Column},
	}
	switch n.Kind {
	case compiler.KindNumber:
		n.Type = compiler.TypeInt
	case compiler.KindBoolean:
		n.Type = compiler.TypeBool
	case compiler.KindBinaryOp, compiler.KindUnaryOp:
		n.Op = compiler.ParseOp(w.Op)
	}

	var err error
	if n.Left, err = fromWire(w.Left); err != nil {
		return nil, err
	}
	if n.Right, err = fromWire(w.Right); err != nil {
		return nil, err
	}
	if n.Next, err = fromWire(w.Next); err != nil {
		return nil, err
	}
	if n.Kind == compiler.KindBlock {
		if w.Count < 0 || w.Count != len(w.Stmts) {
			return nil, fmt.Errorf("%w: declared %d, got %d", ErrBlockCount, w.Count, len(w.Stmts))
		}
		n.Stmts = make([]*compiler.Node, len(w.Stmts))
		for i, st := range w.Stmts {
			if n.Stmts[i], err = fromWire(st); err != nil {
				return nil, err
			}
		}
	}
	return n, nil
}
