// Package engine wires Scan -> Fold -> Optimize -> {Interpret, JIT} into
// one call and collects the statistics --verbose surfaces, the way
// cmd/nova's main.go orchestrates its own tokenize/parse/compile/run
// stages behind a handful of flags.
package engine

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/tangzhangming/bf/internal/diagnostics"
	"github.com/tangzhangming/bf/internal/interp"
	"github.com/tangzhangming/bf/internal/ir"
	"github.com/tangzhangming/bf/internal/jit"
	"github.com/tangzhangming/bf/internal/lexer"
	"github.com/tangzhangming/bf/internal/optimizer"
	"github.com/tangzhangming/bf/internal/tape"
	"github.com/tangzhangming/bf/internal/token"
)

// Mode selects the execution backend.
type Mode string

const (
	ModeInterpreter Mode = "interpreter"
	ModeJIT         Mode = "jit"
)

// Options configures one run of the pipeline.
type Options struct {
	Mode     Mode
	Optimize bool
	IgnoreIO bool
	Verbose  bool
	Cache    *jit.Cache // optional; only consulted/populated when Mode == ModeJIT
	Tape     *tape.Tape // optional; a fresh tape is used when nil — pass one to share tape state across repeated Run calls (e.g. the REPL)
}

// RunStats carries the observational counters --verbose prints. They
// never influence execution semantics.
type RunStats struct {
	RunID            string
	TokenCount       int
	IRCount          int
	OptimizedCount   int
	ResetToZeroCount int
	AddAndZeroCount  int
	ScaleAddCount    int
	FoldDuration     time.Duration
	OptimizeDuration time.Duration
	ExecDuration     time.Duration
	Result           byte
}

// Run executes source end to end and returns the collected stats. The
// final cell value (also returned by both backends individually) is
// available as stats.Result.
func Run(source string, out io.Writer, in io.Reader, opts Options) (RunStats, error) {
	stats := RunStats{RunID: uuid.NewString()}

	tokens := lexer.Scan(source)
	stats.TokenCount = len(tokens)

	foldStart := time.Now()
	ops, err := ir.Fold(tokens)
	stats.FoldDuration = time.Since(foldStart)
	if err != nil {
		var unmatched *ir.UnmatchedLoopError
		if asUnmatched(err, &unmatched) {
			d := diagnostics.FromUnmatchedLoop(unmatched.Index)
			r := diagnostics.Reporter{Source: source}
			return stats, fmt.Errorf("%s", r.Render(d))
		}
		return stats, err
	}
	stats.IRCount = len(ops)

	optStart := time.Now()
	var optimized []optimizer.Op
	if opts.Optimize {
		optimized = optimizer.Optimize(ops)
	} else {
		optimized = optimizer.Noop(ops)
	}
	stats.OptimizeDuration = time.Since(optStart)
	stats.OptimizedCount = len(optimized)
	for _, op := range optimized {
		switch op.Kind {
		case optimizer.ResetToZero:
			stats.ResetToZeroCount++
		case optimizer.AddAndZero:
			stats.AddAndZeroCount++
		case optimizer.ScaledAddAndZero:
			stats.ScaleAddCount++
		}
	}

	execStart := time.Now()
	result, err := execute(optimized, out, in, opts)
	stats.ExecDuration = time.Since(execStart)
	stats.Result = result
	return stats, err
}

func execute(optimized []optimizer.Op, out io.Writer, in io.Reader, opts Options) (byte, error) {
	switch opts.Mode {
	case ModeJIT:
		return executeJIT(optimized, out, in, opts)
	default:
		i := interp.New(in, out, opts.Tape)
		i.IgnoreIO = opts.IgnoreIO
		return i.Run(optimized)
	}
}

func executeJIT(optimized []optimizer.Op, out io.Writer, in io.Reader, opts Options) (byte, error) {
	var prog *jit.CompiledProgram
	var hash uint64

	if opts.Cache != nil {
		hash = jit.HashOps(optimized)
		if cached, ok := opts.Cache.Get(hash); ok {
			prog = cached
		}
	}

	if prog == nil {
		compiled, err := jit.Compile(optimized)
		if err != nil {
			return 0, err
		}
		prog = compiled
		if opts.Cache != nil {
			opts.Cache.Put(hash, prog)
		} else {
			defer prog.Release()
		}
	}

	t := opts.Tape
	if t == nil {
		t = tape.New()
	}
	return prog.Run(t, in, out, opts.IgnoreIO), nil
}

// asUnmatched is a small errors.As wrapper kept local to avoid pulling in
// the standard errors package's reflection-heavy generic surface for a
// single call site.
func asUnmatched(err error, target **ir.UnmatchedLoopError) bool {
	if u, ok := err.(*ir.UnmatchedLoopError); ok {
		*target = u
		return true
	}
	return false
}
