// invmc compiles men programs to InVM assembly.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/invmc/cache"
	"github.com/chazu/invmc/manifest"
	"github.com/chazu/invmc/server"
)

func main() {
	output := flag.String("o", "", "Output file (default: <source>.invm, or the [build] output directory)")
	astInput := flag.Bool("ast", false, "Read inputs as CBOR syntax trees instead of source text")
	emitAST := flag.String("emit-ast", "", "Write the syntax tree as CBOR to this file")
	dump := flag.Bool("dump", false, "Print the syntax tree")
	check := flag.Bool("check", false, "Validate and check only, without generating code")
	run := flag.Bool("run", false, "Execute the generated program on the reference machine")
	lsp := flag.Bool("lsp", false, "Start the language server on stdio")
	verbose := flag.Bool("v", false, "Verbose output")
	noCache := flag.Bool("no-cache", false, "Bypass the build cache")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: invmc [options] [files...]\n\n")
		fmt.Fprintf(os.Stderr, "Compiles .men programs to InVM assembly (.invm).\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  invmc prog.men                # Write prog.invm\n")
		fmt.Fprintf(os.Stderr, "  invmc -run prog.men           # Compile and execute\n")
		fmt.Fprintf(os.Stderr, "  invmc -check -dump prog.men   # Show the tree and report errors\n")
		fmt.Fprintf(os.Stderr, "  invmc -ast -o out.invm t.cbor # Compile a tree produced elsewhere\n")
		fmt.Fprintf(os.Stderr, "  invmc -lsp                    # Serve editors over stdio\n")
	}
	flag.Parse()

	m, err := manifest.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if m == nil {
		cwd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		m = manifest.Default(cwd)
	}

	verbosity := m.Log.Verbosity
	if *verbose && verbosity < 2 {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	if *lsp {
		if err := server.NewLSP().Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	paths := flag.Args()
	if len(paths) == 0 && m.EntryPath() != "" {
		paths = []string{m.EntryPath()}
	}
	if len(paths) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if len(paths) > 1 && (*output != "" || *emitAST != "") {
		fmt.Fprintf(os.Stderr, "Error: -o and -emit-ast take a single input\n")
		os.Exit(2)
	}

	b := &builder{
		manifest: m,
		out:      os.Stdout,
		errOut:   os.Stderr,
		opts: options{
			output:   *output,
			emitAST:  *emitAST,
			astInput: *astInput,
			dump:     *dump,
			check:    *check,
			run:      *run,
			verbose:  *verbose,
		},
	}

	if !*noCache && !m.Build.NoCache && !*check {
		c, err := cache.Open(m.CachePath())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: build cache disabled: %v\n", err)
		} else {
			defer c.Close()
			b.cache = c
		}
	}

	ctx := context.Background()
	failed := false
	for _, path := range paths {
		if err := b.build(ctx, path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			failed = true
		}
	}
	if failed {
		if b.cache != nil {
			b.cache.Close()
		}
		os.Exit(1)
	}
}
