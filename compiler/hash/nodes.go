package hash

// ---------------------------------------------------------------------------
// Frozen hashing AST types.
//
// These are stripped-down parallels of compiler/ast.go with no position or
// type annotations, and declaration indices instead of variable names. Two
// programs that differ only in variable names produce identical hashing
// ASTs.
// ---------------------------------------------------------------------------

// HNode is the interface implemented by all hashing AST nodes.
type HNode interface {
	hnode() // marker method
}

// ---------------------------------------------------------------------------
// Literal nodes
// ---------------------------------------------------------------------------

type HIntLiteral struct{ Value int64 }
type HBoolLiteral struct{ Value bool }

func (*HIntLiteral) hnode()  {}
func (*HBoolLiteral) hnode() {}

// ---------------------------------------------------------------------------
// Variable reference nodes
// ---------------------------------------------------------------------------

// HVarRef references a variable by the position of its declaration in
// source order (0 = first declared variable).
type HVarRef struct {
	Index uint32
}

// HFreeRef references a name with no declaration before the use. Such a
// program does not check, but still hashes.
type HFreeRef struct {
	Name string
}

func (*HVarRef) hnode()  {}
func (*HFreeRef) hnode() {}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

type HBinaryOp struct {
	Op    byte // frozen operator code
	Left  HNode
	Right HNode
}

type HUnaryOp struct {
	Op      byte
	Operand HNode
}

func (*HBinaryOp) hnode() {}
func (*HUnaryOp) hnode()  {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// HDecl declares the variable with the given index.
type HDecl struct {
	Index uint32
	Init  HNode
}

type HPrint struct{ Expr HNode }

// HInc and HDec carry an HVarRef or HFreeRef.
type HInc struct{ Var HNode }
type HDec struct{ Var HNode }

// HIf has a nil Else when there is no else branch.
type HIf struct {
	Cond HNode
	Then HNode
	Else HNode
}

type HWhile struct {
	Cond HNode
	Body HNode
}

type HBlock struct{ Stmts []HNode }
type HEmpty struct{}

func (*HDecl) hnode()  {}
func (*HPrint) hnode() {}
func (*HInc) hnode()   {}
func (*HDec) hnode()   {}
func (*HIf) hnode()    {}
func (*HWhile) hnode() {}
func (*HBlock) hnode() {}
func (*HEmpty) hnode() {}
