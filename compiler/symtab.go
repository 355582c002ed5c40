package compiler

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Symbol table: declared variables and their storage slots
// ---------------------------------------------------------------------------

// ErrDuplicateSymbol is returned by Insert when the name is already declared.
var ErrDuplicateSymbol = errors.New("duplicate declaration")

// Symbol is a declared variable.
type Symbol struct {
	Name string
	Slot int  // zero-based storage slot, in declaration order
	Type Type // TypeInt or TypeBool
	Pos  Position
}

// SymbolTable maps names to slots for one compilation unit. The language has
// no nested scopes, so the table is a flat, append-only list; slots are never
// reused or compacted.
type SymbolTable struct {
	symbols  []*Symbol
	nextSlot int
}

// NewSymbolTable creates an empty symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{}
}

// Reset drops every entry and restarts slot allocation at zero.
func (t *SymbolTable) Reset() {
	t.symbols = nil
	t.nextSlot = 0
}

// Insert declares name with type typ and returns its slot.
func (t *SymbolTable) Insert(name string, typ Type) (int, error) {
	return t.InsertAt(name, typ, Position{})
}

// InsertAt is Insert with the declaration position recorded.
func (t *SymbolTable) InsertAt(name string, typ Type, pos Position) (int, error) {
	if name == "" {
		return -1, fmt.Errorf("declare: empty name")
	}
	if _, ok := t.Lookup(name); ok {
		return -1, fmt.Errorf("%w: %s", ErrDuplicateSymbol, name)
	}
	sym := &Symbol{Name: name, Slot: t.nextSlot, Type: typ, Pos: pos}
	t.nextSlot++
	t.symbols = append(t.symbols, sym)
	return sym.Slot, nil
}

// Lookup returns the symbol for name. Tables are small, so a linear scan is
// enough.
func (t *SymbolTable) Lookup(name string) (*Symbol, bool) {
	for _, sym := range t.symbols {
		if sym.Name == name {
			return sym, true
		}
	}
	return nil, false
}

// Len returns the number of declared symbols, which is also the first slot
// not owned by a variable.
func (t *SymbolTable) Len() int {
	return t.nextSlot
}

// Symbols returns the symbols in declaration order.
func (t *SymbolTable) Symbols() []Symbol {
	out := make([]Symbol, len(t.symbols))
	for i, sym := range t.symbols {
		out[i] = *sym
	}
	return out
}
