//go:build amd64

package jit

import (
	"bytes"
	"strings"
	"testing"

	"github.com/tangzhangming/bf/internal/interp"
	"github.com/tangzhangming/bf/internal/ir"
	"github.com/tangzhangming/bf/internal/lexer"
	"github.com/tangzhangming/bf/internal/optimizer"
	"github.com/tangzhangming/bf/internal/tape"
)

func compileAndRun(t *testing.T, source, stdin string) (string, byte) {
	t.Helper()
	ops, err := ir.Fold(lexer.Scan(source))
	if err != nil {
		t.Fatalf("ir.Fold: %v", err)
	}
	optimized := optimizer.Optimize(ops)

	prog, err := Compile(optimized)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer prog.Release()

	var out bytes.Buffer
	result := prog.Run(tape.New(), strings.NewReader(stdin), &out, false)
	return out.String(), result
}

func interpretRun(t *testing.T, source, stdin string) (string, byte) {
	t.Helper()
	ops, err := ir.Fold(lexer.Scan(source))
	if err != nil {
		t.Fatalf("ir.Fold: %v", err)
	}
	optimized := optimizer.Optimize(ops)

	var out bytes.Buffer
	i := interp.New(strings.NewReader(stdin), &out, nil)
	result, err := i.Run(optimized)
	if err != nil {
		t.Fatalf("interp.Run: %v", err)
	}
	return out.String(), result
}

// The JIT and the tree-walking interpreter must agree on every observable
// result for the same program, spec.md §8's interpreter/JIT equivalence
// property.
func TestJITMatchesInterpreter(t *testing.T) {
	programs := []struct {
		name  string
		src   string
		stdin string
	}{
		{"hello-world", "++++++++[>++++[>++>+++>+++>+<<<<-]>+>+>->>+[<]<-]>>.>---.+++++++..+++.>>.<-.<.+++.------.--------.>>+.>++.", ""},
		{"echo", ",.,.,.", "xyz"},
		{"reset-to-zero", "+++++[-]+", ""},
		{"add-and-zero", "+++[->+<]>.", ""},
		{"scaled-add-and-zero", "+++++[->+++<]>.", ""},
		{"cell-wrap", strings.Repeat("+", 300), ""},
		{"pointer-wrap", "<+", ""},
		{"nested-loops", "+++[>++[>+<-]<-]>>.", ""},
	}

	for _, p := range programs {
		t.Run(p.name, func(t *testing.T) {
			jitOut, jitResult := compileAndRun(t, p.src, p.stdin)
			interpOut, interpResult := interpretRun(t, p.src, p.stdin)
			if jitOut != interpOut {
				t.Errorf("stdout mismatch: jit=%q interp=%q", jitOut, interpOut)
			}
			if jitResult != interpResult {
				t.Errorf("result mismatch: jit=%d interp=%d", jitResult, interpResult)
			}
		})
	}
}

func TestCacheReusesCompiledProgram(t *testing.T) {
	ops, err := ir.Fold(lexer.Scan("+++"))
	if err != nil {
		t.Fatalf("ir.Fold: %v", err)
	}
	optimized := optimizer.Optimize(ops)

	cache := NewCache()
	hash := HashOps(optimized)
	if _, ok := cache.Get(hash); ok {
		t.Fatal("empty cache returned a hit")
	}

	prog, err := Compile(optimized)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	cache.Put(hash, prog)

	got, ok := cache.Get(hash)
	if !ok || got != prog {
		t.Fatal("Get after Put did not return the same program")
	}
}

func TestHashOpsStableForEqualPrograms(t *testing.T) {
	a, err := ir.Fold(lexer.Scan("+++[-]"))
	if err != nil {
		t.Fatalf("ir.Fold: %v", err)
	}
	b, err := ir.Fold(lexer.Scan("+++[-]"))
	if err != nil {
		t.Fatalf("ir.Fold: %v", err)
	}
	if HashOps(optimizer.Optimize(a)) != HashOps(optimizer.Optimize(b)) {
		t.Error("identical programs hashed differently")
	}
}
