package hash

import (
	"encoding/binary"
)

// ---------------------------------------------------------------------------
// Deterministic binary serialization of the frozen hashing AST.
//
// Encoding conventions:
//   - First byte: HashVersion (0x01)
//   - Integers: big-endian fixed-width (int64=8B, uint32=4B)
//   - Strings: uint32 big-endian length + UTF-8 bytes
//   - Booleans: single byte (0/1)
//   - Child nodes: serialized inline (flat); a nil child is TagAbsent
// ---------------------------------------------------------------------------

// Serialize produces a deterministic byte serialization of an HNode tree.
// The returned bytes are suitable for hashing with SHA-256.
func Serialize(node HNode) []byte {
	s := &serializer{buf: make([]byte, 0, 256)}
	s.writeByte(HashVersion)
	s.serializeNode(node)
	return s.buf
}

type serializer struct {
	buf []byte
}

func (s *serializer) writeByte(b byte) {
	s.buf = append(s.buf, b)
}

func (s *serializer) writeUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeInt64(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeString(v string) {
	s.writeUint32(uint32(len(v)))
	s.buf = append(s.buf, v...)
}

func (s *serializer) writeBool(v bool) {
	if v {
		s.writeByte(1)
	} else {
		s.writeByte(0)
	}
}

func (s *serializer) serializeNode(node HNode) {
	switch n := node.(type) {
	case nil:
		s.writeByte(TagAbsent)

	case *HIntLiteral:
		s.writeByte(TagIntLiteral)
		s.writeInt64(n.Value)

	case *HBoolLiteral:
		s.writeByte(TagBoolLiteral)
		s.writeBool(n.Value)

	case *HVarRef:
		s.writeByte(TagVarRef)
		s.writeUint32(n.Index)

	case *HFreeRef:
		s.writeByte(TagFreeRef)
		s.writeString(n.Name)

	case *HBinaryOp:
		s.writeByte(TagBinaryOp)
		s.writeByte(n.Op)
		s.serializeNode(n.Left)
		s.serializeNode(n.Right)

	case *HUnaryOp:
		s.writeByte(TagUnaryOp)
		s.writeByte(n.Op)
		s.serializeNode(n.Operand)

	case *HDecl:
		s.writeByte(TagDecl)
		s.writeUint32(n.Index)
		s.serializeNode(n.Init)

	case *HPrint:
		s.writeByte(TagPrint)
		s.serializeNode(n.Expr)

	case *HInc:
		s.writeByte(TagInc)
		s.serializeNode(n.Var)

	case *HDec:
		s.writeByte(TagDec)
		s.serializeNode(n.Var)

	case *HIf:
		s.writeByte(TagIf)
		s.serializeNode(n.Cond)
		s.serializeNode(n.Then)
		s.serializeNode(n.Else)

	case *HWhile:
		s.writeByte(TagWhile)
		s.serializeNode(n.Cond)
		s.serializeNode(n.Body)

	case *HBlock:
		s.writeByte(TagBlock)
		s.writeUint32(uint32(len(n.Stmts)))
		for _, st := range n.Stmts {
			s.serializeNode(st)
		}

	case *HEmpty:
		s.writeByte(TagEmpty)
	}
}
