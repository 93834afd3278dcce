// Package optimizer implements the peephole pass that sits between the IR
// folder and the two execution backends. It recognizes two idioms that a
// naive loop-by-loop interpretation would otherwise spend many iterations
// on: the "clear cell" idiom ([-] / [+]) and the "add-and-zero" idiom
// ([->+<] and its generalizations), replacing each matched window with a
// single constant-time operation.
package optimizer

import "github.com/tangzhangming/bf/internal/ir"

// Kind identifies the shape of one optimized operation.
type Kind uint8

const (
	Passthrough      Kind = iota // Inner carries the original ir.Op unchanged
	ResetToZero                  // set the current cell to 0
	AddAndZero                   // target[Offset] += current; current = 0 (unit scale)
	ScaledAddAndZero             // target[Offset] += current * Scale; current = 0
)

func (k Kind) String() string {
	switch k {
	case Passthrough:
		return "Passthrough"
	case ResetToZero:
		return "ResetToZero"
	case AddAndZero:
		return "AddAndZero"
	case ScaledAddAndZero:
		return "ScaledAddAndZero"
	default:
		return "?"
	}
}

// Op is one optimized instruction. Loop ops (carried inside Passthrough)
// still address other ops by IR index the same way ir.Op does; Optimize
// keeps those indices consistent as it collapses windows.
type Op struct {
	Kind   Kind
	Inner  ir.Op // valid when Kind == Passthrough
	Offset int64 // AddAndZero / ScaledAddAndZero: cell offset from the current cell (wrapped by the interpreter, applied unwrapped by the JIT)
	Scale  int64 // ScaledAddAndZero only; AddAndZero always behaves as Scale == 1
}

// Noop wraps every IR op as a Passthrough, performing no rewrites. This is
// what `--optimize=false` hands to the backends, mirroring the identity
// optimizer the reference implementation falls back to.
func Noop(ops []ir.Op) []Op {
	out := make([]Op, len(ops))
	for i, op := range ops {
		out[i] = Op{Kind: Passthrough, Inner: op}
	}
	return out
}

// Optimize runs the peephole passes in order: ResetToZero first, then the
// add-and-zero pass, each over the sequence the previous pass produced.
// Passes never compose their matches mid-stream — a pass's rewrites are
// only visible to the pass that runs after it, never to itself.
func Optimize(ops []ir.Op) []Op {
	current := Noop(ops)
	current = optimizeResetToZero(current)
	current = optimizeAddAndZero(current)
	return current
}

// indexMap starts as the identity permutation and is shifted as windows
// collapse, so that a surviving Loop op's partner index can be translated
// from "index in the pre-pass sequence" to "index in the post-pass
// sequence" once the whole pass is done.
func identityIndexMap(n int) []int {
	m := make([]int, n)
	for i := range m {
		m[i] = i
	}
	return m
}

func shiftIndices(indexMap []int, from int, shift int) {
	for i := from; i < len(indexMap); i++ {
		indexMap[i] += shift
	}
}

func remapLoops(ops []Op, indexMap []int) {
	for i := range ops {
		if ops[i].Kind != Passthrough {
			continue
		}
		switch ops[i].Inner.Kind {
		case ir.LoopStart, ir.LoopEnd:
			ops[i].Inner.Arg = int64(indexMap[ops[i].Inner.Arg])
		}
	}
}

// isLoopOp reports whether op is a Passthrough wrapping the given ir.Kind.
func isLoopOp(op Op, kind ir.Kind) bool {
	return op.Kind == Passthrough && op.Inner.Kind == kind
}

func isDataOp(op Op) (int64, bool) {
	if op.Kind == Passthrough && op.Inner.Kind == ir.Data {
		return op.Inner.Arg, true
	}
	return 0, false
}

func isMoveOp(op Op) (int64, bool) {
	if op.Kind == Passthrough && op.Inner.Kind == ir.Move {
		return op.Inner.Arg, true
	}
	return 0, false
}

// optimizeResetToZero rewrites [+] and [-] (a loop whose entire body is a
// single Data op of +1 or -1) into ResetToZero.
func optimizeResetToZero(ops []Op) []Op {
	out := make([]Op, 0, len(ops))
	indexMap := identityIndexMap(len(ops))

	i := 0
	for i < len(ops) {
		if i+2 < len(ops) && isLoopOp(ops[i], ir.LoopStart) {
			if amount, ok := isDataOp(ops[i+1]); ok && (amount == 1 || amount == -1) && isLoopOp(ops[i+2], ir.LoopEnd) {
				out = append(out, Op{Kind: ResetToZero})
				shiftIndices(indexMap, i+3, -2)
				i += 3
				continue
			}
		}
		out = append(out, ops[i])
		i++
	}

	remapLoops(out, indexMap)
	return out
}

// optimizeAddAndZero rewrites the six-op window
//
//	[ -1  move(m)  k  move(-m) ]
//
// (decrement current cell by exactly 1, move by m, add k to the cell
// there, move back, close the loop) into AddAndZero when k == 1 and
// ScaledAddAndZero when k != 1. See DESIGN.md for why the source
// decrement must be exactly -1 for this rewrite to be sound.
func optimizeAddAndZero(ops []Op) []Op {
	out := make([]Op, 0, len(ops))
	indexMap := identityIndexMap(len(ops))

	i := 0
	for i < len(ops) {
		if i+5 < len(ops) && isLoopOp(ops[i], ir.LoopStart) && isLoopOp(ops[i+5], ir.LoopEnd) {
			dec, decOK := isDataOp(ops[i+1])
			m1, m1OK := isMoveOp(ops[i+2])
			k, kOK := isDataOp(ops[i+3])
			m2, m2OK := isMoveOp(ops[i+4])
			if decOK && m1OK && kOK && m2OK && dec == -1 && m2 == -m1 && m1 != 0 {
				if k == 1 {
					out = append(out, Op{Kind: AddAndZero, Offset: m1})
				} else {
					out = append(out, Op{Kind: ScaledAddAndZero, Offset: m1, Scale: k})
				}
				shiftIndices(indexMap, i+6, -5)
				i += 6
				continue
			}
		}
		out = append(out, ops[i])
		i++
	}

	remapLoops(out, indexMap)
	return out
}
