package jit

import (
	"bufio"
	"io"
	"reflect"

	"github.com/jtolds/gls"
	"github.com/tangzhangming/bf/internal/tape"
)

// outputFlushThreshold is the character count at which bufferedOutput
// flushes even without a newline, matching original_source's
// FLUSH_THRESHOLD in src/jit/io.rs::io_output.
const outputFlushThreshold = 80

// bufferedOutput mirrors io.rs's thread-local (BufWriter, char_count) pair:
// every newline forces an immediate flush (for interactive behavior), and
// any run of outputFlushThreshold characters without one also flushes.
type bufferedOutput struct {
	w     *bufio.Writer
	count int
}

func newBufferedOutput(w io.Writer) *bufferedOutput {
	return &bufferedOutput{w: bufio.NewWriterSize(w, 4096)}
}

func (b *bufferedOutput) WriteByte(value byte) error {
	if err := b.w.WriteByte(value); err != nil {
		return err
	}
	if value == '\n' {
		b.count = 0
		return b.w.Flush()
	}
	b.count++
	if b.count >= outputFlushThreshold {
		b.count = 0
		return b.w.Flush()
	}
	return nil
}

func (b *bufferedOutput) Flush() error { return b.w.Flush() }

// helperAddrs holds the addresses of the two Go functions emitted machine
// code calls into for I/O, obtained once per compilation the same way
// nova's JIT bridge resolves its own runtime helpers: by taking a Go
// function value's program counter with reflect, not by linking against
// a C symbol table.
type helperAddrs struct {
	input  uintptr
	output uintptr
}

func newHelperAddrs() helperAddrs {
	return helperAddrs{
		input:  getFuncPtr(ioInputHelper),
		output: getFuncPtr(ioOutputHelper),
	}
}

func getFuncPtr(fn interface{}) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

// ioContext is the ambient input/output pair the bridge helpers reach for
// when called from JIT-emitted code. The emitted code only ever passes a
// cell value in or out — it has no way to hand the helpers a Go pointer
// (smuggling one through an integer argument is exactly the unsafe trick
// the reference implementation relies on, and Go's garbage collector
// makes it unsound here) — so the helpers instead look up the active
// context by the calling goroutine's identity via jtolds/gls, the same
// mechanism launix-de-memcp's storage layer uses to carry per-goroutine
// context across call boundaries it doesn't own.
type ioContext struct {
	in  *tape.InputBuffer
	out *bufferedOutput
}

var glsMgr = gls.NewContextManager()

// withIOContext runs fn with ctx installed as the active I/O context for
// the current goroutine, for the duration of one compiled-program
// invocation.
func withIOContext(ctx ioContext, fn func()) {
	glsMgr.SetValues(gls.Values{ioContextKey: ctx}, fn)
}

type contextKey int

const ioContextKey contextKey = 0

func currentIOContext() ioContext {
	v, ok := glsMgr.GetValue(ioContextKey)
	if !ok {
		panic("jit: ioInputHelper/ioOutputHelper called outside withIOContext")
	}
	return v.(ioContext)
}

// ioInputHelper is called (indirectly, by address) from compiled code to
// satisfy an Input operation. Declared //go:noinline so it has a stable
// address to take with reflect.
//
//go:noinline
func ioInputHelper() int64 {
	ctx := currentIOContext()
	b, err := ctx.in.Next()
	if err != nil {
		return 0
	}
	return int64(b)
}

// ioOutputHelper is called from compiled code to satisfy an Output
// operation; its argument is the current cell's value.
//
//go:noinline
func ioOutputHelper(value int64) int64 {
	ctx := currentIOContext()
	ctx.out.WriteByte(byte(value))
	return 0
}
