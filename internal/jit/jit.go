package jit

import (
	"fmt"
	"io"
	"sync"
	"unsafe"

	"github.com/dc0d/onexit"

	"github.com/tangzhangming/bf/internal/optimizer"
	"github.com/tangzhangming/bf/internal/tape"
)

// registerExitFlush arranges for any bufferedOutput still holding
// unflushed bytes at process exit to be flushed, the same guarantee
// original_source/src/jit/io.rs installs via libc's atexit — except here
// it is a process-wide registration done once, since Go has one runtime
// exit path (os.Exit) rather than per-call atexit hooks.
var registerExitFlush = sync.OnceFunc(func() {
	onexit.Register(func() {
		pendingFlushMu.Lock()
		defer pendingFlushMu.Unlock()
		for b := range pendingFlush {
			b.Flush()
		}
	})
})

var (
	pendingFlushMu sync.Mutex
	pendingFlush   = map[*bufferedOutput]struct{}{}
)

// CompiledProgram is one successful JIT compilation: the executable pages
// holding the machine code and the callable entry point. It carries no
// cache key of its own; the compiled-code cache indexes it by a HashOps
// value computed separately.
type CompiledProgram struct {
	code []byte
	fn   nativeFunc
}

// nativeFunc is the signature of the compiled entry point: (memory base
// pointer, tape length) -> final cell value at the data pointer. Unlike
// the reference JIT's void main_func (which leaves the result sitting in
// memory for a caller that already knows the final offset), this engine
// has no way to read "the final data_offset" back out of Go-managed
// memory after the call returns, so the compiled epilogue loads it into
// eax as an ordinary return value instead.
type nativeFunc func(memBase, tapeLen int64) int64

// Compile assembles ops into native machine code and maps it into
// executable memory. The returned CompiledProgram can be invoked
// repeatedly (e.g. from the REPL's compiled-code cache) as long as it is
// eventually released with Release.
func Compile(ops []optimizer.Op) (*CompiledProgram, error) {
	helpers := newHelperAddrs()
	code := compileNative(ops, helpers)

	mem, err := allocExecutable(len(code))
	if err != nil {
		return nil, fmt.Errorf("jit: allocating executable memory: %w", err)
	}
	copy(mem, code)

	return &CompiledProgram{code: mem, fn: makeNativeFunc(mem)}, nil
}

// Release frees the executable pages backing p. p must not be invoked
// again afterward.
func (p *CompiledProgram) Release() error {
	return freeExecutable(p.code)
}

// Run executes the compiled program against t, reading Input bytes from
// in and writing Output bytes to out, and returns the final value of the
// cell under the data pointer — the same convention internal/interp
// uses, so callers can treat the two backends interchangeably (spec.md
// §8's interpreter/JIT equivalence property).
func (p *CompiledProgram) Run(t *tape.Tape, in io.Reader, out io.Writer, ignoreIO bool) byte {
	var writer io.Writer = out
	if ignoreIO {
		writer = io.Discard
	}

	registerExitFlush()
	buffered := newBufferedOutput(writer)
	pendingFlushMu.Lock()
	pendingFlush[buffered] = struct{}{}
	pendingFlushMu.Unlock()
	defer func() {
		pendingFlushMu.Lock()
		delete(pendingFlush, buffered)
		pendingFlushMu.Unlock()
	}()

	ctx := ioContext{in: tape.NewInputBuffer(in), out: buffered}
	var result int64
	withIOContext(ctx, func() {
		result = p.fn(tapeBasePointer(t), tape.Size)
	})
	buffered.Flush()

	return byte(result)
}

// tapeBasePointer exposes the address of cell 0 of t as an integer the
// compiled function's first argument can carry. It relies on Tape's
// cells array never being relocated for the lifetime of the call, which
// holds because Go's current garbage collector does not move heap
// allocations and t is kept alive by the caller's stack frame for the
// duration of Run.
func tapeBasePointer(t *tape.Tape) int64 {
	return int64(uintptr(unsafe.Pointer(t.CellsPtr())))
}

// makeNativeFunc turns a slice of freshly emitted machine code into a
// callable Go function value. A Go func value is, at the ABI level,
// itself just a pointer to a small structure whose first word is the
// code's entry address; overwriting that word to point at our own
// buffer instead of a Go-compiled function is the same trick
// launix-de-memcp's scm/jit.go relies on to invoke its own
// runtime-generated machine code, generalized here to a fixed two-
// argument signature instead of the variadic Scmer calling convention.
func makeNativeFunc(code []byte) nativeFunc {
	var fn nativeFunc
	codePtr := &code[0]
	fnValue := (*uintptr)(unsafe.Pointer(&fn))
	*fnValue = uintptr(unsafe.Pointer(&codePtr))
	return fn
}
