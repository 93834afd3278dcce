//go:build arm64

package jit

import (
	"fmt"

	"github.com/tangzhangming/bf/internal/optimizer"
)

// arm64 support mirrors the amd64 backend's signature but isn't
// implemented yet — the register-assignment and Euclidean-modulo
// lowering both need a different instruction encoder (no idiv rel32
// machinery to port directly, ARM64 integer division already traps
// differently on zero and its conditional-branch range is PC-relative in
// word units, not bytes). compileNative panics with errArm64Unimplemented
// on this platform, and Compile does not recover it, so no machine code is
// ever produced here.
func compileNative(ops []optimizer.Op, helpers helperAddrs) []byte {
	panic(errArm64Unimplemented)
}

var errArm64Unimplemented = fmt.Errorf("jit: arm64 backend not implemented, use internal/interp")

// TODO(arm64): port emitMoveOp's Euclidean-modulo sequence to SDIV/MSUB.
// TODO(arm64): port the prologue/epilogue register save list (x19-x28 are
// callee-saved under AAPCS64, analogous to RBX/R12/R14/R15 here).
// TODO(arm64): port emitLoopStart/emitLoopEnd to CBZ/B with the 26-bit
// branch-offset encoding's tighter range, since a program with more than
// ~128 MiB (32M instructions) of emitted code can't use a direct B either way.
