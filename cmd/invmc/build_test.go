package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/invmc/cache"
	"github.com/chazu/invmc/compiler"
	"github.com/chazu/invmc/compiler/hash"
	"github.com/chazu/invmc/manifest"
)

func newTestBuilder(t *testing.T, opts options) (*builder, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	return &builder{
		manifest: manifest.Default(t.TempDir()),
		out:      &out,
		errOut:   &errOut,
		opts:     opts,
	}, &out, &errOut
}

func writeSource(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBuild_WritesAssemblyNextToSource(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "five.men", "x := 5\nprint x")
	b, _, _ := newTestBuilder(t, options{})

	if err := b.build(context.Background(), src); err != nil {
		t.Fatalf("build: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "five.invm"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := "; generated InVM code\nSET *1 5\nSET *0 *1\nSET FUND1 *0\nPRINT FUND1 int\n"
	if string(data) != want {
		t.Errorf("output:\n%s\nwant:\n%s", data, want)
	}
}

func TestBuild_Run(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "loop.men", "i := 0\nwhile i < 3 { inc i }\nprint i\nprint i == 3")
	b, out, _ := newTestBuilder(t, options{run: true, output: filepath.Join(dir, "out.invm")})

	if err := b.build(context.Background(), src); err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := out.String(); got != "3\ntrue\n" {
		t.Errorf("run output = %q, want %q", got, "3\ntrue\n")
	}
	if _, err := os.Stat(filepath.Join(dir, "out.invm")); err != nil {
		t.Errorf("-o output missing: %v", err)
	}
}

func TestBuild_CheckReportsDiagnostics(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "bad.men", "x := 1\ninc y")
	b, _, errOut := newTestBuilder(t, options{check: true})

	err := b.build(context.Background(), src)
	if err == nil {
		t.Fatal("expected check failure")
	}
	if !strings.Contains(errOut.String(), `undeclared variable "y"`) {
		t.Errorf("diagnostics = %q", errOut.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "bad.invm")); !os.IsNotExist(err) {
		t.Error("-check must not write an output file")
	}
}

func TestBuild_SemanticErrorWritesNothing(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "bad.men", "print 1 + true")
	b, _, errOut := newTestBuilder(t, options{})

	if err := b.build(context.Background(), src); err == nil {
		t.Fatal("expected compile failure")
	}
	if errOut.Len() == 0 {
		t.Error("expected diagnostics on the error stream")
	}
	if _, err := os.Stat(filepath.Join(dir, "bad.invm")); !os.IsNotExist(err) {
		t.Error("failed compile must not write an output file")
	}
}

func TestBuild_EmitASTRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "p.men", "n := 2\nif n > 1 { print n * n } else { print 0 }")
	treePath := filepath.Join(dir, "p.cbor")

	b, _, _ := newTestBuilder(t, options{check: true, emitAST: treePath})
	if err := b.build(context.Background(), src); err != nil {
		t.Fatalf("emit: %v", err)
	}

	b, out, _ := newTestBuilder(t, options{astInput: true, run: true, output: filepath.Join(dir, "p.invm")})
	if err := b.build(context.Background(), treePath); err != nil {
		t.Fatalf("build from tree: %v", err)
	}
	if got := out.String(); got != "4\n" {
		t.Errorf("run output = %q, want %q", got, "4\n")
	}
}

func TestBuild_Dump(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "d.men", "print true")
	b, out, _ := newTestBuilder(t, options{dump: true, check: true})

	if err := b.build(context.Background(), src); err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(out.String(), "Print") {
		t.Errorf("dump output = %q", out.String())
	}
}

func TestBuild_UsesCache(t *testing.T) {
	dir := t.TempDir()
	c, err := cache.Open(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	defer c.Close()

	src := writeSource(t, dir, "c.men", "x := 1\nprint x")
	b, _, _ := newTestBuilder(t, options{})
	b.cache = c

	ctx := context.Background()
	if err := b.build(ctx, src); err != nil {
		t.Fatalf("build: %v", err)
	}
	if n, err := c.Len(ctx); err != nil || n != 1 {
		t.Fatalf("cache entries = %d, %v; want 1", n, err)
	}

	// A renamed program shares the hash and is served from the cache.
	root, err := loadTree(writeSource(t, dir, "r.men", "y := 1\nprint y"), false)
	if err != nil {
		t.Fatalf("loadTree: %v", err)
	}
	key, err := hash.HashProgram(root)
	if err != nil {
		t.Fatalf("HashProgram: %v", err)
	}
	if err := c.Put(ctx, key, "; sentinel\n"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	asm, err := b.compile(ctx, "r.men", root)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if asm != "; sentinel\n" {
		t.Errorf("compile = %q, want cached entry", asm)
	}
}

func TestBuild_MalformedTreeBypassesCache(t *testing.T) {
	dir := t.TempDir()
	c, err := cache.Open(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	defer c.Close()

	b, _, errOut := newTestBuilder(t, options{})
	b.cache = c
	ctx := context.Background()

	// Unnamed declarations normalize to the same indices as named ones.
	valid := compiler.NewBlock(
		compiler.NewDecl("x", compiler.NewNumber(1)),
		compiler.NewPrint(compiler.NewIdent("x")),
	)
	malformed := compiler.NewBlock(
		compiler.NewDecl("", compiler.NewNumber(1)),
		compiler.NewPrint(compiler.NewIdent("")),
	)
	key, err := hash.HashProgram(valid)
	if err != nil {
		t.Fatalf("HashProgram: %v", err)
	}
	if other, err := hash.HashProgram(malformed); err != nil || other != key {
		t.Fatalf("malformed tree hash = %x, %v; want the valid tree's key", other, err)
	}
	if err := c.Put(ctx, key, "; cached\n"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	asm, err := b.compile(ctx, "m.ast", malformed)
	if !errors.Is(err, compiler.ErrValidation) {
		t.Fatalf("compile = %q, %v; want ErrValidation", asm, err)
	}
	if !strings.Contains(errOut.String(), "missing name") {
		t.Errorf("diagnostics = %q", errOut.String())
	}

	// An undeclared name is caught by the checker before the cache as well.
	undeclared := compiler.NewBlock(
		compiler.NewDecl("x", compiler.NewNumber(1)),
		compiler.NewPrint(compiler.NewIdent("y")),
	)
	if _, err := b.compile(ctx, "u.ast", undeclared); !errors.Is(err, compiler.ErrSemantic) {
		t.Errorf("compile error = %v, want ErrSemantic", err)
	}
}

func TestLoadTree_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := loadTree(filepath.Join(dir, "missing.men"), false); err == nil {
		t.Error("expected error for missing file")
	}
	bad := writeSource(t, dir, "bad.men", "x := ")
	if _, err := loadTree(bad, false); err == nil {
		t.Error("expected parse error")
	}
	if _, err := loadTree(bad, true); err == nil {
		t.Error("expected decode error for non-CBOR input")
	}
}

func TestBuild_Examples(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"countdown.men", "5\n4\n3\n2\n1\ntrue\n"},
		{"triangle.men", "55\n"},
		{"logic.men", "true\n1\n1\ntrue\n"},
	}
	for _, tc := range tests {
		t.Run(tc.file, func(t *testing.T) {
			b, out, errOut := newTestBuilder(t, options{
				run:    true,
				output: filepath.Join(t.TempDir(), "out.invm"),
			})
			if err := b.build(context.Background(), filepath.Join("..", "..", "examples", tc.file)); err != nil {
				t.Fatalf("build: %v\n%s", err, errOut)
			}
			if got := out.String(); got != tc.want {
				t.Errorf("output = %q, want %q", got, tc.want)
			}
		})
	}
}
