package compiler

import "fmt"

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for the men language
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// IsValid reports whether the position came from source text.
func (p Position) IsValid() bool { return p.Line > 0 }

func (p Position) String() string {
	if !p.IsValid() {
		return "-"
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Kind discriminates AST nodes. The zero value is not a valid kind.
type Kind int

const (
	KindInvalid Kind = iota
	KindDecl
	KindPrint
	KindInc
	KindDec
	KindIf
	KindWhile
	KindBlock
	KindBinaryOp
	KindUnaryOp
	KindIdentifier
	KindNumber
	KindBoolean
	KindEmpty
)

var kindNames = map[Kind]string{
	KindInvalid:    "Invalid",
	KindDecl:       "Decl",
	KindPrint:      "Print",
	KindInc:        "Inc",
	KindDec:        "Dec",
	KindIf:         "If",
	KindWhile:      "While",
	KindBlock:      "Block",
	KindBinaryOp:   "BinaryOp",
	KindUnaryOp:    "UnaryOp",
	KindIdentifier: "Identifier",
	KindNumber:     "Number",
	KindBoolean:    "Boolean",
	KindEmpty:      "Empty",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a kind name back to its Kind. Unknown names yield
// KindInvalid so the validator can report them.
func ParseKind(name string) Kind {
	for k, n := range kindNames {
		if n == name && k != KindInvalid {
			return k
		}
	}
	return KindInvalid
}

// IsStatement reports whether nodes of this kind appear in statement position.
func (k Kind) IsStatement() bool {
	switch k {
	case KindDecl, KindPrint, KindInc, KindDec, KindIf, KindWhile, KindBlock, KindEmpty:
		return true
	}
	return false
}

// Node is a single AST node. Which fields are meaningful depends on Kind:
//
//	Decl        Name, Left (initializer)
//	Print       Left (expression)
//	Inc, Dec    Name
//	If          Left (condition), Right (then), Next (else, optional)
//	While       Left (condition), Right (body)
//	Block       Stmts
//	BinaryOp    Op, Left, Right
//	UnaryOp     Op, Left
//	Identifier  Name
//	Number      Number
//	Boolean     Bool
//
// A tree owns its children exclusively; the same *Node must not be linked
// from two places.
type Node struct {
	Kind   Kind
	Name   string
	Number int
	Bool   bool
	Op     Op

	Left  *Node
	Right *Node
	Next  *Node
	Stmts []*Node

	// Type is the inferred type, set by literal constructors and the checker.
	Type Type
	Pos  Position
}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// NewIdent creates an identifier reference.
func NewIdent(name string) *Node {
	return &Node{Kind: KindIdentifier, Name: name}
}

// NewNumber creates an integer literal.
func NewNumber(n int) *Node {
	return &Node{Kind: KindNumber, Number: n, Type: TypeInt}
}

// NewBool creates a boolean literal.
func NewBool(b bool) *Node {
	return &Node{Kind: KindBoolean, Bool: b, Type: TypeBool}
}

// NewBinary creates a binary operation.
func NewBinary(op Op, left, right *Node) *Node {
	return &Node{Kind: KindBinaryOp, Op: op, Left: left, Right: right}
}

// NewUnary creates a unary operation.
func NewUnary(op Op, operand *Node) *Node {
	return &Node{Kind: KindUnaryOp, Op: op, Left: operand}
}

// NewDecl creates a declaration `name := init`.
func NewDecl(name string, init *Node) *Node {
	return &Node{Kind: KindDecl, Name: name, Left: init}
}

// NewPrint creates a print statement.
func NewPrint(expr *Node) *Node {
	return &Node{Kind: KindPrint, Left: expr}
}

// NewInc creates an increment statement.
func NewInc(name string) *Node {
	return &Node{Kind: KindInc, Name: name}
}

// NewDec creates a decrement statement.
func NewDec(name string) *Node {
	return &Node{Kind: KindDec, Name: name}
}

// NewIf creates a conditional. elseBlock may be nil.
func NewIf(cond, thenBlock, elseBlock *Node) *Node {
	return &Node{Kind: KindIf, Left: cond, Right: thenBlock, Next: elseBlock}
}

// NewWhile creates a loop.
func NewWhile(cond, body *Node) *Node {
	return &Node{Kind: KindWhile, Left: cond, Right: body}
}

// NewBlock creates a statement sequence.
func NewBlock(stmts ...*Node) *Node {
	return &Node{Kind: KindBlock, Stmts: stmts}
}

// NewEmpty creates an empty statement.
func NewEmpty() *Node {
	return &Node{Kind: KindEmpty}
}

// At sets the node position and returns the node, for use by parsers.
func (n *Node) At(pos Position) *Node {
	n.Pos = pos
	return n
}

// ---------------------------------------------------------------------------
// Release
// ---------------------------------------------------------------------------

// Release tears the tree down in post-order, dropping names, children and
// statement slices so nothing remains reachable from n. Nodes already visited
// are skipped, which keeps a malformed (cyclic) tree from looping forever.
func (n *Node) Release() {
	n.release(make(map[*Node]bool))
}

func (n *Node) release(seen map[*Node]bool) {
	if n == nil || seen[n] {
		return
	}
	seen[n] = true
	n.Left.release(seen)
	n.Right.release(seen)
	n.Next.release(seen)
	for _, s := range n.Stmts {
		s.release(seen)
	}
	n.Name = ""
	n.Left, n.Right, n.Next = nil, nil, nil
	n.Stmts = nil
}

// Children returns the non-nil direct children of n in evaluation order.
func (n *Node) Children() []*Node {
	var out []*Node
	for _, c := range []*Node{n.Left, n.Right, n.Next} {
		if c != nil {
			out = append(out, c)
		}
	}
	for _, s := range n.Stmts {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}
