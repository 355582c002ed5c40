package hash_test

import (
	"testing"

	"github.com/chazu/invmc/compiler"
	"github.com/chazu/invmc/compiler/hash"
)

func mustHash(t *testing.T, src string) [32]byte {
	t.Helper()
	root, err := compiler.Parse(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	h, err := hash.HashProgram(root)
	if err != nil {
		t.Fatalf("HashProgram: %v", err)
	}
	return h
}

func TestHashProgram_EndToEnd_NonZero(t *testing.T) {
	h := mustHash(t, "x := 1\nprint x + 2")
	var zero [32]byte
	if h == zero {
		t.Error("hash should be non-zero for a valid program")
	}
}

func TestHashProgram_EndToEnd_Deterministic(t *testing.T) {
	src := "i := 0\nwhile i < 3 { inc i }\nprint i"
	if mustHash(t, src) != mustHash(t, src) {
		t.Error("same source should produce same hash")
	}
}

func TestHashProgram_EndToEnd_RenamingInvariant(t *testing.T) {
	a := mustHash(t, "count := 0\nwhile count < 3 { inc count }\nprint count")
	b := mustHash(t, "n := 0\nwhile n < 3 { inc n }\nprint n")
	if a != b {
		t.Error("programs differing only in names should share a hash")
	}
}

func TestHashProgram_EndToEnd_LayoutInvariant(t *testing.T) {
	a := mustHash(t, "x := 1; print x")
	b := mustHash(t, "\n\n  x   :=   1   # set\n\n   print x\n")
	if a != b {
		t.Error("whitespace and comments should not affect the hash")
	}
}

func TestHashProgram_EndToEnd_Sensitive(t *testing.T) {
	base := mustHash(t, "x := 1\nprint x + 2")
	variants := []string{
		"x := 1\nprint x - 2",
		"x := 1\nprint x + 3",
		"x := 1\nprint 2 + x",
		"x := 1\ny := 2\nprint x + 2",
		"x := 1\nprint y + 2",
		"x := 1\nprint x + 2\nprint x",
	}
	for _, v := range variants {
		if mustHash(t, v) == base {
			t.Errorf("%q hashes the same as the base program", v)
		}
	}
}

func TestHashHex(t *testing.T) {
	root, err := compiler.Parse("print 1")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	s, err := hash.HashHex(root)
	if err != nil {
		t.Fatalf("HashHex: %v", err)
	}
	if len(s) != 64 {
		t.Errorf("len(HashHex) = %d, want 64", len(s))
	}
}
