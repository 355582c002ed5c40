package compiler

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes an indented, human-readable rendering of the tree to w. It is
// a debugging aid only; no later stage reads it.
func Dump(w io.Writer, n *Node) {
	d := &dumper{w: w, onPath: make(map[*Node]bool)}
	d.node(n, 0)
}

// DumpString returns the Dump rendering as a string.
func DumpString(n *Node) string {
	var sb strings.Builder
	Dump(&sb, n)
	return sb.String()
}

type dumper struct {
	w      io.Writer
	onPath map[*Node]bool
}

func (d *dumper) line(indent int, format string, args ...interface{}) {
	fmt.Fprintf(d.w, "%s%s\n", strings.Repeat(" ", indent), fmt.Sprintf(format, args...))
}

func (d *dumper) child(indent int, label string, n *Node) {
	d.line(indent, "%s:", label)
	d.node(n, indent+2)
}

func (d *dumper) node(n *Node, indent int) {
	if n == nil {
		d.line(indent, "(nil)")
		return
	}
	if d.onPath[n] {
		d.line(indent, "(cycle to %s %p)", n.Kind, n)
		return
	}
	d.onPath[n] = true
	defer delete(d.onPath, n)

	header := n.Kind.String()
	if n.Type != TypeUnknown {
		header += " : " + n.Type.String()
	}
	if n.Pos.IsValid() {
		header += " @" + n.Pos.String()
	}

	switch n.Kind {
	case KindNumber:
		d.line(indent, "%s %d", header, n.Number)
	case KindBoolean:
		d.line(indent, "%s %t", header, n.Bool)
	case KindIdentifier, KindInc, KindDec:
		d.line(indent, "%s %s", header, n.Name)
	case KindBinaryOp:
		d.line(indent, "%s '%s'", header, n.Op)
		d.child(indent+2, "left", n.Left)
		d.child(indent+2, "right", n.Right)
	case KindUnaryOp:
		d.line(indent, "%s '%s'", header, n.Op)
		d.child(indent+2, "operand", n.Left)
	case KindDecl:
		d.line(indent, "%s %s", header, n.Name)
		d.child(indent+2, "init", n.Left)
	case KindPrint:
		d.line(indent, "%s", header)
		d.child(indent+2, "expr", n.Left)
	case KindIf:
		d.line(indent, "%s", header)
		d.child(indent+2, "cond", n.Left)
		d.child(indent+2, "then", n.Right)
		if n.Next != nil {
			d.child(indent+2, "else", n.Next)
		}
	case KindWhile:
		d.line(indent, "%s", header)
		d.child(indent+2, "cond", n.Left)
		d.child(indent+2, "body", n.Right)
	case KindBlock:
		d.line(indent, "%s (%d statements)", header, len(n.Stmts))
		for i, s := range n.Stmts {
			d.child(indent+2, fmt.Sprintf("stmt[%d]", i), s)
		}
	default:
		d.line(indent, "%s", header)
	}
}
