package jit

import (
	"testing"

	"github.com/tangzhangming/bf/internal/ir"
	"github.com/tangzhangming/bf/internal/lexer"
	"github.com/tangzhangming/bf/internal/optimizer"
)

func fold(t *testing.T, src string) []optimizer.Op {
	t.Helper()
	ops, err := ir.Fold(lexer.Scan(src))
	if err != nil {
		t.Fatalf("ir.Fold(%q): %v", src, err)
	}
	return optimizer.Noop(ops)
}

func TestBlockLayoutCoversEveryLoopOp(t *testing.T) {
	ops := fold(t, "+[-]+[->+<]")
	w := NewWriter()
	bl := buildBlockLayout(w, ops)

	for i, op := range ops {
		if isLoopOp(op) && !bl.hasBlock(i) {
			t.Errorf("loop op at %d has no block", i)
		}
	}
}

func TestBlockLayoutCoversSuccessorOfEveryLoopOp(t *testing.T) {
	ops := fold(t, "+[-]+[->+<]")
	w := NewWriter()
	bl := buildBlockLayout(w, ops)

	for i, op := range ops {
		if !isLoopOp(op) {
			continue
		}
		next := i + 1
		if next >= len(ops) {
			continue
		}
		if !bl.hasBlock(next) {
			t.Errorf("successor of loop op at %d (index %d) has no block", i, next)
		}
	}
}

func TestLabelForPastEndReturnsExit(t *testing.T) {
	ops := fold(t, "+[-]")
	w := NewWriter()
	bl := buildBlockLayout(w, ops)

	if got := bl.labelFor(len(ops), len(ops)); got != bl.exit {
		t.Errorf("labelFor(n, n) = %d, want exit label %d", got, bl.exit)
	}
}
