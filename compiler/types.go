package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Types and operators
// ---------------------------------------------------------------------------

// Type is a static type of the language. The zero value is TypeUnknown.
type Type int

const (
	TypeUnknown Type = iota
	TypeInt
	TypeBool
)

var typeNames = map[Type]string{
	TypeUnknown: "unknown",
	TypeInt:     "int",
	TypeBool:    "bool",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Op is the closed set of unary and binary operators.
type Op int

const (
	OpInvalid Op = iota

	// Binary arithmetic
	OpAdd
	OpSub
	OpMul
	OpDiv

	// Binary relational
	OpLess
	OpGreater
	OpEqual

	// Binary logical
	OpAnd
	OpOr

	// Unary
	OpNot
	OpNeg
)

var opNames = map[Op]string{
	OpInvalid: "<invalid>",
	OpAdd:     "+",
	OpSub:     "-",
	OpMul:     "*",
	OpDiv:     "/",
	OpLess:    "<",
	OpGreater: ">",
	OpEqual:   "==",
	OpAnd:     "AND",
	OpOr:      "OR",
	OpNot:     "not",
	OpNeg:     "u-",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// opAliases lists accepted spellings at the text and wire boundaries.
var opAliases = map[string]Op{
	"+":   OpAdd,
	"-":   OpSub,
	"*":   OpMul,
	"/":   OpDiv,
	"<":   OpLess,
	">":   OpGreater,
	"==":  OpEqual,
	"=":   OpEqual,
	"AND": OpAnd,
	"and": OpAnd,
	"OR":  OpOr,
	"or":  OpOr,
	"not": OpNot,
	"nao": OpNot,
	"!":   OpNot,
	"u-":  OpNeg,
	"neg": OpNeg,
}

// ParseOp maps an operator spelling to its Op, or OpInvalid.
func ParseOp(s string) Op {
	return opAliases[s]
}

// IsBinary reports whether o is a binary operator.
func (o Op) IsBinary() bool {
	return o >= OpAdd && o <= OpOr
}

// IsUnary reports whether o is a unary operator.
func (o Op) IsUnary() bool {
	return o == OpNot || o == OpNeg
}

// IsArithmetic reports whether o is + - * or /.
func (o Op) IsArithmetic() bool {
	return o >= OpAdd && o <= OpDiv
}

// IsRelational reports whether o is < > or ==.
func (o Op) IsRelational() bool {
	return o >= OpLess && o <= OpEqual
}

// IsLogical reports whether o is AND or OR.
func (o Op) IsLogical() bool {
	return o == OpAnd || o == OpOr
}
