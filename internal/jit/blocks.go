package jit

import (
	"github.com/tangzhangming/bf/internal/ir"
	"github.com/tangzhangming/bf/internal/optimizer"
)

// blockLayout assigns a Writer label to every optimized-IR index that
// starts a new basic block, using the same two-pass scheme the reference
// JIT uses: every Loop op gets its own block (it is a branch target from
// its partner), and so does whatever follows a Loop op, falling through
// to a single shared exit block when that would run past the end of the
// program.
type blockLayout struct {
	labelAt map[int]int
	exit    int
}

func isLoopOp(op optimizer.Op) bool {
	return op.Kind == optimizer.Passthrough &&
		(op.Inner.Kind == ir.LoopStart || op.Inner.Kind == ir.LoopEnd)
}

func buildBlockLayout(w *Writer, ops []optimizer.Op) *blockLayout {
	bl := &blockLayout{labelAt: make(map[int]int), exit: w.NewLabel()}

	// Pass 1: every loop op starts its own block.
	for i, op := range ops {
		if isLoopOp(op) {
			bl.labelAt[i] = w.NewLabel()
		}
	}

	// Pass 2: the op right after a loop op also starts a block — either
	// one already created by pass 1 (if it is itself a loop op) or a
	// fresh one, unless it would run off the end, in which case it
	// shares the exit block.
	for i, op := range ops {
		if !isLoopOp(op) {
			continue
		}
		next := i + 1
		if next >= len(ops) {
			continue
		}
		if _, ok := bl.labelAt[next]; !ok {
			bl.labelAt[next] = w.NewLabel()
		}
	}

	return bl
}

// labelFor returns the label id for op index i, or the exit label if i
// runs past the end of the program. Every call site only ever asks for
// an index that pass 2 is guaranteed to have created a block for, so a
// map miss never occurs in practice; if one somehow did, the zero value
// happens to be bl.exit's id, since it is always the first label
// allocated, so this degrades safely rather than crashing.
func (bl *blockLayout) labelFor(i, n int) int {
	if i >= n {
		return bl.exit
	}
	return bl.labelAt[i]
}

// hasBlock reports whether index i is a recorded block boundary.
func (bl *blockLayout) hasBlock(i int) bool {
	_, ok := bl.labelAt[i]
	return ok
}
