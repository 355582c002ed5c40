package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/invmc/cache"
	"github.com/chazu/invmc/compiler"
	"github.com/chazu/invmc/compiler/hash"
	"github.com/chazu/invmc/compiler/wire"
	"github.com/chazu/invmc/manifest"
	"github.com/chazu/invmc/vm"
)

var log = commonlog.GetLogger("invmc.cli")

type options struct {
	output   string
	emitAST  string
	astInput bool
	dump     bool
	check    bool
	run      bool
	verbose  bool
}

// builder runs the per-file pipeline: load, optional dump and tree export,
// check or compile (through the cache), write, optional run.
type builder struct {
	manifest *manifest.Manifest
	cache    *cache.Cache // nil when caching is off
	out      io.Writer
	errOut   io.Writer
	opts     options
}

func (b *builder) build(ctx context.Context, path string) error {
	root, err := loadTree(path, b.opts.astInput)
	if err != nil {
		return err
	}

	if b.opts.dump {
		compiler.Dump(b.out, root)
	}

	if b.opts.emitAST != "" {
		data, err := wire.MarshalProgram(root)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := os.WriteFile(b.opts.emitAST, data, 0o644); err != nil {
			return fmt.Errorf("cannot write %s: %w", b.opts.emitAST, err)
		}
	}

	if b.opts.check {
		u := compiler.NewUnit(path)
		diags := u.Analyze(root)
		b.report(path, diags)
		if len(diags) > 0 {
			return fmt.Errorf("%s: %d error(s)", path, len(diags))
		}
		if b.opts.verbose {
			fmt.Fprintf(b.out, "%s: ok (%d variables)\n", path, u.Symbols.Len())
		}
		return nil
	}

	asm, err := b.compile(ctx, path, root)
	if err != nil {
		return err
	}

	outPath := b.opts.output
	if outPath == "" {
		outPath = b.manifest.OutputPath(path)
	}
	if err := os.WriteFile(outPath, []byte(asm), 0o644); err != nil {
		return fmt.Errorf("cannot write %s: %w", outPath, err)
	}
	if b.opts.verbose {
		fmt.Fprintf(b.out, "%s -> %s\n", path, outPath)
	}

	if b.opts.run {
		return b.execute(ctx, path, asm)
	}
	return nil
}

// loadTree reads path as source text, or as a CBOR tree when astInput is set.
func loadTree(path string, astInput bool) (*compiler.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if astInput {
		root, err := wire.UnmarshalProgram(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return root, nil
	}
	root, err := compiler.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return root, nil
}

// compile generates the program for root. The tree is validated and checked
// first; only a clean tree consults the build cache by its content hash.
func (b *builder) compile(ctx context.Context, path string, root *compiler.Node) (string, error) {
	u := compiler.NewUnit(path)
	u.BeginUnit()
	if n := u.Validate(root); n > 0 {
		b.report(path, u.Diagnostics())
		return "", fmt.Errorf("%s: %w: %d error(s)", path, compiler.ErrValidation, n)
	}
	if n := u.Check(root); n > 0 {
		b.report(path, u.Diagnostics())
		return "", fmt.Errorf("%s: %w: %d error(s)", path, compiler.ErrSemantic, n)
	}

	var key [32]byte
	cacheable := false
	if b.cache != nil {
		var err error
		if key, err = hash.HashProgram(root); err != nil {
			log.Warningf("%s: not cached: %v", path, err)
		} else {
			cacheable = true
			asm, err := b.cache.Get(ctx, key)
			if err == nil {
				log.Debugf("%s: cache hit", path)
				return asm, nil
			}
			if !errors.Is(err, cache.ErrMiss) {
				log.Warningf("%s: %v", path, err)
			}
		}
	}

	var sb strings.Builder
	if err := u.Generate(root, &sb); err != nil {
		b.report(path, u.Diagnostics())
		return "", fmt.Errorf("%s: %w", path, err)
	}
	asm := sb.String()

	if cacheable {
		if err := b.cache.Put(ctx, key, asm); err != nil {
			log.Warningf("%s: %v", path, err)
		}
	}
	return asm, nil
}

func (b *builder) execute(ctx context.Context, path, asm string) error {
	prog, err := vm.Assemble(asm)
	if err != nil {
		return fmt.Errorf("%s: assemble: %w", path, err)
	}
	m := vm.NewMachine(prog)
	m.StepLimit = b.manifest.Run.StepLimit
	m.Out = b.out
	if err := m.Run(ctx); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if b.opts.verbose {
		fmt.Fprintf(b.out, "%s: %d steps\n", path, m.Steps())
	}
	return nil
}

func (b *builder) report(path string, diags []compiler.Diagnostic) {
	for _, d := range diags {
		fmt.Fprintf(b.errOut, "%s: %s\n", path, d)
	}
}
