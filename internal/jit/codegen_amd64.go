//go:build amd64

package jit

import (
	"github.com/tangzhangming/bf/internal/ir"
	"github.com/tangzhangming/bf/internal/optimizer"
	"github.com/tangzhangming/bf/internal/tape"
)

// Register assignment for the compiled function, fixed rather than
// allocated (the engine has exactly two live values plus two fixed
// parameters, so there's nothing for a general allocator to do):
//
//	R14  memory base pointer   (moved out of RDI at entry so RDI is free for call args)
//	R15  tape length           (moved out of RSI at entry, same reason)
//	RBX  data offset           (the "data_offset" SSA variable)
//	R12  data pointer          (R14 + RBX, recomputed after every Move)
//	RDI  scratch / call argument
//	RAX  scratch / call return value
//
// R14, R15, RBX and R12 are all callee-saved under the System V AMD64
// ABI, so they survive calls into the __io_input/__io_output bridge
// helpers without extra spilling.
const (
	regRAX = 0
	regRDX = 2
	regRBX = 3
	regRSI = 6
	regRDI = 7
	regR12 = 12
	regR14 = 14
	regR15 = 15
)

// emitPrologue saves the callee-saved registers this function uses, loads
// the two incoming arguments (memory base, tape length) into R14/R15, and
// initializes data_offset = 0, data_ptr = memory base.
func emitPrologue(w *Writer) {
	w.Emit(0x53)       // push rbx
	w.Emit(0x41, 0x54) // push r12
	w.Emit(0x41, 0x56) // push r14
	w.Emit(0x41, 0x57) // push r15
	w.Emit(0x48, 0x83, 0xEC, 0x08) // sub rsp, 8 (realign to 16 before any call)

	w.Emit(0x49, 0x89, 0xFE) // mov r14, rdi  (memory base)
	w.Emit(0x49, 0x89, 0xF7) // mov r15, rsi  (tape length)
	w.Emit(0x31, 0xDB)       // xor ebx, ebx  (data_offset = 0)
	emitRecomputeDataPtr(w)  // r12 = r14 + rbx
}

// emitEpilogue loads the final cell value (at the data pointer) into eax
// as the function's return value, undoes emitPrologue, and returns.
func emitEpilogue(w *Writer) {
	emitLoadCellToAL(w)             // movzx eax, byte [r12] — the return value
	w.Emit(0x48, 0x83, 0xC4, 0x08) // add rsp, 8
	w.Emit(0x41, 0x5F)             // pop r15
	w.Emit(0x41, 0x5E)             // pop r14
	w.Emit(0x41, 0x5C)             // pop r12
	w.Emit(0x5B)                   // pop rbx
	w.Emit(0xC3)                   // ret
}

// emitRecomputeDataPtr emits `lea r12, [r14 + rbx]`.
func emitRecomputeDataPtr(w *Writer) {
	w.Emit(0x4D, 0x8D, 0x24, 0x1E)
}

// emitLoadCellToAL emits `movzx eax, byte [r12]`, leaving the current
// cell's value zero-extended in eax/rax.
func emitLoadCellToAL(w *Writer) {
	w.Emit(0x41, 0x0F, 0xB6, 0x04, 0x24)
}

// emitDataOp emits the Data op: add the cell at the data pointer by a
// constant, wrapping modulo 256 the same way an 8-bit add naturally does.
func emitDataOp(w *Writer, amount int64) {
	w.Emit(0x41, 0x80, 0x04, 0x24, byte(int8(amount))) // add byte [r12], imm8
}

// emitMoveOp emits the Move op: advance data_offset by amount using
// Euclidean-modulo wraparound against the tape length in r15, then
// recompute data_ptr. This is the branchless srem+select pattern the
// reference JIT lowers to, translated into a compare-and-add.
//
// A folded run of `>`/`<` can in principle carry an amount that does not
// fit in the 32-bit immediate le32 encodes (int32(v) would silently wrap
// it). That can never change the result, though: data_offset is always
// reduced modulo tape.Size at runtime by the idiv below, and
// (rbx+amount) mod Size == (rbx + amount mod Size) mod Size, so reducing
// amount mod tape.Size first — here, in Go's full-width int64 arithmetic,
// before it ever reaches le32 — always fits comfortably in int32 and
// reproduces the exact same final data_offset.
func emitMoveOp(w *Writer, amount int64) {
	amount %= tape.Size
	w.Emit(0x48, 0x81, 0xC3, le32(amount)...) // add rbx, imm32
	w.Emit(0x48, 0x89, 0xD8)                  // mov rax, rbx
	w.Emit(0x48, 0x99)                        // cqo (sign-extend rax into rdx:rax)
	w.Emit(0x49, 0xF7, 0xFF)                  // idiv r15       -> remainder in rdx
	w.Emit(0x48, 0x85, 0xD2)                  // test rdx, rdx

	skip := w.NewLabel()
	w.Emit(0x0F, 0x89) // jns rel32
	w.EmitRel32Fixup(skip)

	w.Emit(0x4C, 0x01, 0xFA) // add rdx, r15

	w.MarkLabel(skip)
	w.Emit(0x48, 0x89, 0xD3) // mov rbx, rdx
	emitRecomputeDataPtr(w)
}

// emitResetToZero emits `mov byte [r12], 0`.
func emitResetToZero(w *Writer) {
	w.Emit(0x41, 0xC6, 0x04, 0x24, 0x00)
}

// emitAddAndZero emits the unit-scale AddAndZero idiom: target[offset] +=
// current cell, current cell = 0.
func emitAddAndZero(w *Writer, offset int64) {
	w.Emit(0x41, 0x8A, 0x0C, 0x24)                  // mov cl, [r12]
	w.Emit(0x41, 0x00, 0x8C, 0x24, le32(offset)...) // add [r12+disp32], cl
	emitResetToZero(w)
}

// emitScaledAddAndZero emits target[offset] += current*scale (truncated
// to a byte, same as repeated mod-256 addition would produce), current
// cell = 0.
func emitScaledAddAndZero(w *Writer, offset, scale int64) {
	w.Emit(0x41, 0x0F, 0xB6, 0x04, 0x24)             // movzx eax, byte [r12]
	w.Emit(0x69, 0xC0, le32(scale)...)               // imul eax, eax, imm32
	w.Emit(0x41, 0x00, 0x84, 0x24, le32(offset)...) // add [r12+disp32], al
	emitResetToZero(w)
}

// emitInput emits a call to the __io_input bridge helper and stores its
// result byte into the current cell.
func emitInput(w *Writer, addr uintptr) {
	w.Emit(0x48, 0xB8) // mov rax, imm64
	w.Emit(le64(addr)...)
	w.Emit(0xFF, 0xD0) // call rax
	w.Emit(0x41, 0x88, 0x04, 0x24) // mov [r12], al
}

// emitOutput emits a call to the __io_output bridge helper with the
// current cell's value as its argument.
func emitOutput(w *Writer, addr uintptr) {
	w.Emit(0x41, 0x0F, 0xB6, 0x3C, 0x24) // movzx edi, byte [r12]
	w.Emit(0x48, 0xB8)                   // mov rax, imm64
	w.Emit(le64(addr)...)
	w.Emit(0xFF, 0xD0) // call rax
}

// emitLoopStart emits the two-way branch on the current cell's value:
// jump to the loop body's exit block if zero, fall into (well, jump to,
// since this function is block-boundary-driven rather than layout-linear)
// the successor block otherwise.
func emitLoopStart(w *Writer, zeroTarget, nonZeroTarget int) {
	emitLoadCellToAL(w)
	w.Emit(0x85, 0xC0) // test eax, eax
	w.Emit(0x0F, 0x84) // je rel32
	w.EmitRel32Fixup(zeroTarget)
	w.Emit(0xE9) // jmp rel32
	w.EmitRel32Fixup(nonZeroTarget)
}

// emitLoopEnd emits the unconditional jump back to the loop's start
// block. The original bytecode-level test ("loop again if nonzero") was
// already performed by the LoopStart at the top of the block; LoopEnd
// always re-enters it to re-test.
func emitLoopEnd(w *Writer, target int) {
	w.Emit(0xE9) // jmp rel32
	w.EmitRel32Fixup(target)
}

// emitUnconditionalJump emits `jmp rel32` to the given label, used to
// fall from one basic block into the next one discovered by the block
// layout.
func emitUnconditionalJump(w *Writer, target int) {
	w.Emit(0xE9)
	w.EmitRel32Fixup(target)
}

func le32(v int64) []byte {
	x := int32(v)
	return []byte{byte(x), byte(x >> 8), byte(x >> 16), byte(x >> 24)}
}

func le64(v uintptr) []byte {
	x := uint64(v)
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(x >> (8 * i))
	}
	return b
}

// emitFunctionBody walks ops in order, emitting a jump whenever execution
// crosses into a new basic block (skipping the redundant jump right after
// a Loop op has already branched explicitly — the skipNextJump flag
// mirrors the reference JIT's bookkeeping of the same name) and the
// per-op machine code otherwise.
func emitFunctionBody(w *Writer, ops []optimizer.Op, bl *blockLayout, helpers helperAddrs) {
	currentBlock := -1
	skipNextJump := false

	for i, op := range ops {
		if bl.hasBlock(i) && i != currentBlock {
			if !skipNextJump {
				emitUnconditionalJump(w, bl.labelAt[i])
			} else {
				skipNextJump = false
			}
			w.MarkLabel(bl.labelAt[i])
			currentBlock = i
		}

		switch op.Kind {
		case optimizer.ResetToZero:
			emitResetToZero(w)
		case optimizer.AddAndZero:
			emitAddAndZero(w, op.Offset)
		case optimizer.ScaledAddAndZero:
			emitScaledAddAndZero(w, op.Offset, op.Scale)
		case optimizer.Passthrough:
			switch op.Inner.Kind {
			case ir.Data:
				emitDataOp(w, op.Inner.Arg)
			case ir.Move:
				emitMoveOp(w, op.Inner.Arg)
			case ir.Input:
				emitInput(w, helpers.input)
			case ir.Output:
				emitOutput(w, helpers.output)
			case ir.LoopStart:
				jumpIdx := int(op.Inner.Arg)
				zeroTarget := bl.labelFor(jumpIdx+1, len(ops))
				nonZeroTarget := bl.labelFor(i+1, len(ops))
				emitLoopStart(w, zeroTarget, nonZeroTarget)
				skipNextJump = true
			case ir.LoopEnd:
				jumpIdx := int(op.Inner.Arg)
				emitLoopEnd(w, bl.labelAt[jumpIdx])
				skipNextJump = true
			}
		}
	}

	if !skipNextJump {
		emitUnconditionalJump(w, bl.exit)
	}
	w.MarkLabel(bl.exit)
}

// compileNative assembles the full function body for the current
// architecture: prologue, per-op code driven by the block layout, and
// epilogue.
func compileNative(ops []optimizer.Op, helpers helperAddrs) []byte {
	w := NewWriter()
	bl := buildBlockLayout(w, ops)

	emitPrologue(w)
	emitFunctionBody(w, ops, bl, helpers)
	emitEpilogue(w)

	w.ResolveFixups()
	return w.Code
}
