package hash

import "github.com/chazu/invmc/compiler"

// ---------------------------------------------------------------------------
// Frozen tag bytes for the hashing AST serialization format.
//
// IMPORTANT: These tags are FROZEN. Once assigned, a tag byte must never
// change meaning. Adding new tags is fine; changing existing ones breaks
// all previously computed content hashes (and every build cache entry keyed
// by them).
// ---------------------------------------------------------------------------

// HashVersion is the version prefix for the serialization format.
// Bumping this invalidates all existing content hashes.
const HashVersion byte = 1

// AST node type tags. Each tag uniquely identifies a node kind in the
// serialized byte stream.
const (
	TagReservedZero byte = 0x00 // version prefix / reserved

	// Literal values
	TagIntLiteral  byte = 0x01
	TagBoolLiteral byte = 0x02

	// Variable references
	TagVarRef  byte = 0x03
	TagFreeRef byte = 0x04

	// Absent optional child (an if without else)
	TagAbsent byte = 0x0F

	// Expressions
	TagBinaryOp byte = 0x10
	TagUnaryOp  byte = 0x11

	// Statements / structure
	TagDecl  byte = 0x20
	TagPrint byte = 0x21
	TagInc   byte = 0x22
	TagDec   byte = 0x23
	TagIf    byte = 0x24
	TagWhile byte = 0x25
	TagBlock byte = 0x26
	TagEmpty byte = 0x27

	// Reserved 0xFE-0xFF
)

// allTags lists every defined tag for uniqueness verification in tests.
var allTags = []byte{
	TagReservedZero,
	TagIntLiteral, TagBoolLiteral,
	TagVarRef, TagFreeRef,
	TagAbsent,
	TagBinaryOp, TagUnaryOp,
	TagDecl, TagPrint, TagInc, TagDec, TagIf, TagWhile, TagBlock, TagEmpty,
}

// Operator codes, frozen like the tags. They are independent of the
// numbering of compiler.Op, which is free to change.
var opCodes = map[compiler.Op]byte{
	compiler.OpAdd:     0x01,
	compiler.OpSub:     0x02,
	compiler.OpMul:     0x03,
	compiler.OpDiv:     0x04,
	compiler.OpLess:    0x05,
	compiler.OpGreater: 0x06,
	compiler.OpEqual:   0x07,
	compiler.OpAnd:     0x08,
	compiler.OpOr:      0x09,
	compiler.OpNot:     0x0A,
	compiler.OpNeg:     0x0B,
}
