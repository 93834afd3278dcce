// Command bf runs Brainfuck programs, grounded on cmd/nova's flag-based
// stage-dump CLI structure.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ulikunitz/xz"
	"golang.org/x/term"

	"github.com/tangzhangming/bf/internal/engine"
	"github.com/tangzhangming/bf/internal/ir"
	"github.com/tangzhangming/bf/internal/jit"
	"github.com/tangzhangming/bf/internal/lexer"
	"github.com/tangzhangming/bf/internal/optimizer"
	"github.com/tangzhangming/bf/internal/repl"
)

func main() {
	os.Exit(run())
}

func run() int {
	file := flag.String("file", "", "path to a Brainfuck source file")
	mode := flag.String("mode", "jit", "execution backend: jit or interpreter")
	verbose := flag.Bool("verbose", false, "print stage timings and rewrite counts")
	optimize := flag.Bool("optimize", true, "run the peephole optimizer before execution")
	showTokens := flag.Bool("tokens", false, "print the token stream and exit")
	showIR := flag.Bool("ir", false, "print the folded IR and exit")
	showOptIR := flag.Bool("optimized-ir", false, "print the optimized IR and exit")
	forceRepl := flag.Bool("repl", false, "force the REPL even when stdin isn't a terminal")
	useCache := flag.Bool("cache", false, "enable the in-process compiled-code cache")
	dumpTrace := flag.String("dump-trace", "", "write an xz-compressed trace of the optimized IR to this file")
	flag.Parse()

	var execMode engine.Mode
	switch *mode {
	case "jit":
		execMode = engine.ModeJIT
	case "interpreter":
		execMode = engine.ModeInterpreter
	default:
		fmt.Fprintf(os.Stderr, "bf: invalid --mode %q (want jit or interpreter)\n", *mode)
		return 2
	}

	if *forceRepl || (*file == "" && term.IsTerminal(int(os.Stdin.Fd()))) {
		return runRepl(execMode, *optimize, *useCache)
	}

	source, err := readSource(*file)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bf:", err)
		return 1
	}

	if *showTokens || *showIR || *showOptIR {
		return dumpStages(source, *showTokens, *showIR, *showOptIR)
	}

	var cache *jit.Cache
	if *useCache {
		cache = jit.NewCache()
	}

	opts := engine.Options{Mode: execMode, Optimize: *optimize, Verbose: *verbose, Cache: cache}
	stats, err := engine.Run(source, os.Stdout, os.Stdin, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bf:", err)
		return 1
	}

	if *verbose {
		printStats(stats)
	}
	if *dumpTrace != "" {
		if err := writeTrace(*dumpTrace, source, *optimize); err != nil {
			fmt.Fprintln(os.Stderr, "bf: writing trace:", err)
			return 1
		}
	}
	return 0
}

func readSource(path string) (string, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		return string(data), err
	}

	// No --file and stdin isn't a terminal (otherwise run() would have
	// already entered the REPL): read the whole piped program at once,
	// the same branch original_source/src/main.rs takes for piped input.
	data, err := io.ReadAll(os.Stdin)
	return string(data), err
}

func runRepl(mode engine.Mode, optimize, cache bool) int {
	cfg := repl.DefaultConfig()
	cfg.Mode = mode
	cfg.Optimize = optimize
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "cache" {
			cfg.Cache = cache
		}
	})

	r, err := repl.New(cfg, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bf:", err)
		return 1
	}
	defer r.Close()

	r.Run()
	return 0
}

func dumpStages(source string, showTokens, showIR, showOptIR bool) int {
	tokens := lexer.Scan(source)
	if showTokens {
		for _, t := range tokens {
			fmt.Printf("%s ", t.Kind)
		}
		fmt.Println()
	}

	ops, err := ir.Fold(tokens)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bf:", err)
		return 1
	}
	if showIR {
		for _, op := range ops {
			fmt.Printf("%s(%d)\n", op.Kind, op.Arg)
		}
	}

	if showOptIR {
		for _, op := range optimizer.Optimize(ops) {
			fmt.Printf("%s offset=%d scale=%d\n", op.Kind, op.Offset, op.Scale)
		}
	}
	return 0
}

func printStats(s engine.RunStats) {
	fmt.Fprintf(os.Stderr, "run %s: tokens=%d ir=%d optimized=%d (reset=%d add=%d scaled-add=%d)\n",
		s.RunID, s.TokenCount, s.IRCount, s.OptimizedCount,
		s.ResetToZeroCount, s.AddAndZeroCount, s.ScaleAddCount)
	fmt.Fprintf(os.Stderr, "fold=%s optimize=%s exec=%s result=%d\n",
		s.FoldDuration, s.OptimizeDuration, s.ExecDuration, s.Result)
}

func writeTrace(path, source string, optimize bool) error {
	tokens := lexer.Scan(source)
	ops, err := ir.Fold(tokens)
	if err != nil {
		return err
	}
	var optimized []optimizer.Op
	if optimize {
		optimized = optimizer.Optimize(ops)
	} else {
		optimized = optimizer.Noop(ops)
	}

	var buf bytes.Buffer
	for i, op := range optimized {
		fmt.Fprintf(&buf, "%04d %s offset=%d scale=%d\n", i, op.Kind, op.Offset, op.Scale)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := xz.NewWriter(f)
	if err != nil {
		return err
	}
	defer w.Close()

	_, err = w.Write(buf.Bytes())
	return err
}
