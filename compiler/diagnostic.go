package compiler

import (
	"fmt"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("invmc.compiler")

// Diagnostic is a positioned message produced by one of the compiler stages.
type Diagnostic struct {
	Pos     Position
	Stage   string // "parse", "validate", "semantic" or "codegen"
	Message string
}

func (d Diagnostic) String() string {
	if d.Pos.IsValid() {
		return fmt.Sprintf("line %d, column %d: %s", d.Pos.Line, d.Pos.Column, d.Message)
	}
	return d.Message
}

// diagnostics accumulates messages for one stage and mirrors each one to the
// compiler logger. The generated program never carries them.
type diagnostics struct {
	stage string
	list  []Diagnostic
}

func (d *diagnostics) reportAt(pos Position, format string, args ...interface{}) {
	diag := Diagnostic{Pos: pos, Stage: d.stage, Message: fmt.Sprintf(format, args...)}
	d.list = append(d.list, diag)
	log.Errorf("%s: %s", d.stage, diag)
}

func (d *diagnostics) reset() {
	d.list = nil
}

// Count returns the number of recorded diagnostics.
func (d *diagnostics) Count() int {
	return len(d.list)
}

// Diagnostics returns the recorded diagnostics in report order.
func (d *diagnostics) Diagnostics() []Diagnostic {
	return d.list
}

// Errors returns the recorded diagnostics as strings.
func (d *diagnostics) Errors() []string {
	out := make([]string, len(d.list))
	for i, diag := range d.list {
		out[i] = diag.String()
	}
	return out
}
