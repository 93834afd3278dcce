package interp

import (
	"bytes"
	"strings"
	"testing"

	"github.com/tangzhangming/bf/internal/ir"
	"github.com/tangzhangming/bf/internal/lexer"
	"github.com/tangzhangming/bf/internal/optimizer"
)

func runSource(t *testing.T, source, stdin string, optimize bool) (string, byte) {
	t.Helper()
	tokens := lexer.Scan(source)
	ops, err := ir.Fold(tokens)
	if err != nil {
		t.Fatalf("ir.Fold: %v", err)
	}
	var optimized []optimizer.Op
	if optimize {
		optimized = optimizer.Optimize(ops)
	} else {
		optimized = optimizer.Noop(ops)
	}

	var out bytes.Buffer
	i := New(strings.NewReader(stdin), &out, nil)
	result, err := i.Run(optimized)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out.String(), result
}

func TestHelloWorld(t *testing.T) {
	const src = "++++++++[>++++[>++>+++>+++>+<<<<-]>+>+>->>+[<]<-]>>.>---.+++++++..+++.>>.<-.<.+++.------.--------.>>+.>++."
	out, _ := runSource(t, src, "", true)
	if out != "Hello World!\n" {
		t.Fatalf("got %q, want %q", out, "Hello World!\n")
	}
}

func TestEchoInput(t *testing.T) {
	out, _ := runSource(t, ",.,.,.", "abc", true)
	if out != "abc" {
		t.Fatalf("got %q, want %q", out, "abc")
	}
}

func TestResultIsFinalCellValue(t *testing.T) {
	_, result := runSource(t, "+++", "", true)
	if result != 3 {
		t.Fatalf("result = %d, want 3", result)
	}
}

func TestLoopSkippedWhenCellZero(t *testing.T) {
	_, result := runSource(t, "[+++]", "", true)
	if result != 0 {
		t.Fatalf("result = %d, want 0 (loop body never runs)", result)
	}
}

func TestCellWrapsModulo256(t *testing.T) {
	_, result := runSource(t, strings.Repeat("+", 256), "", true)
	if result != 0 {
		t.Fatalf("result = %d, want 0 (256 increments wrap)", result)
	}
}

func TestPointerWrapsToroidally(t *testing.T) {
	_, result := runSource(t, "<+", "", true)
	if result != 1 {
		t.Fatalf("result = %d, want 1 (moving left from cell 0 wraps to the last cell)", result)
	}
}

// Optimized and unoptimized execution must agree on every observable
// result: stdout and the final cell value.
func TestOptimizerPreservesSemantics(t *testing.T) {
	programs := []string{
		"++++++++[>++++++++<-]>.",
		"+++[->++<]>.",
		"[-]+",
		"++++[->+++<]>[->+<]<.",
	}
	for _, src := range programs {
		optOut, optResult := runSource(t, src, "", true)
		plainOut, plainResult := runSource(t, src, "", false)
		if optOut != plainOut || optResult != plainResult {
			t.Errorf("%q: optimized=(%q,%d) unoptimized=(%q,%d)", src, optOut, optResult, plainOut, plainResult)
		}
	}
}

func TestIgnoreIOSkipsOutput(t *testing.T) {
	tokens := lexer.Scan("+.")
	ops, err := ir.Fold(tokens)
	if err != nil {
		t.Fatalf("ir.Fold: %v", err)
	}
	var out bytes.Buffer
	i := New(strings.NewReader(""), &out, nil)
	i.IgnoreIO = true
	if _, err := i.Run(optimizer.Noop(ops)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("IgnoreIO: out = %q, want empty", out.String())
	}
}
