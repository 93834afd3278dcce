// Package ir folds a token stream into the engine's intermediate
// representation: runs of +/- and >/< collapse into single Data/Move
// operations, and each loop bracket is resolved to the IR index of its
// partner bracket.
package ir

import (
	"fmt"

	"github.com/tangzhangming/bf/internal/token"
)

// Kind identifies the shape of one IR operation.
type Kind uint8

const (
	Data      Kind = iota // Arg is the net cell delta (mod-256 wraparound applied at run time)
	Move                  // Arg is the net pointer delta (Euclidean modulo applied at run time)
	Input                 // read one byte into the current cell
	Output                // write the current cell
	LoopStart             // Arg is the IR index of the matching LoopEnd
	LoopEnd               // Arg is the IR index of the matching LoopStart
)

func (k Kind) String() string {
	switch k {
	case Data:
		return "Data"
	case Move:
		return "Move"
	case Input:
		return "Input"
	case Output:
		return "Output"
	case LoopStart:
		return "LoopStart"
	case LoopEnd:
		return "LoopEnd"
	default:
		return "?"
	}
}

// Op is one folded intermediate-representation operation.
type Op struct {
	Kind Kind
	Arg  int64
}

// UnmatchedLoopError reports a `[` or `]` with no partner. Index is the
// token's byte offset in the original source text (token.Token.Pos), not
// its position in the token stream, so a diagnostics.Reporter can point
// directly at it even when the source contains comment bytes the lexer
// dropped.
type UnmatchedLoopError struct {
	Index int
}

func (e *UnmatchedLoopError) Error() string {
	return fmt.Sprintf("unmatched loop at source offset %d", e.Index)
}

// Fold converts a token stream into IR, folding consecutive Data/Move
// tokens and resolving every loop bracket to its partner's IR index.
//
// The resolution happens in two passes, mirroring the algorithm this
// engine is grounded on: while folding, a loop token is recorded against
// the *token* index of its partner (found by a depth-counted scan); once
// folding finishes, every recorded token index is rewritten to the IR
// index that token ultimately produced. A LoopStart's partner is a later
// token, so its IR index is not known until folding has reached it.
func Fold(tokens []token.Token) ([]Op, error) {
	ops := make([]Op, 0, len(tokens))
	// tokenToIR[i] is the IR index of the op that absorbed, or was
	// created for, token i — i.e. len(ops)-1 immediately after token i
	// was processed.
	tokenToIR := make([]int, len(tokens))

	for i, tok := range tokens {
		switch tok.Kind {
		case token.MoveRight:
			if n := len(ops); n > 0 && ops[n-1].Kind == Move {
				ops[n-1].Arg++
			} else {
				ops = append(ops, Op{Kind: Move, Arg: 1})
			}
		case token.MoveLeft:
			if n := len(ops); n > 0 && ops[n-1].Kind == Move {
				ops[n-1].Arg--
			} else {
				ops = append(ops, Op{Kind: Move, Arg: -1})
			}
		case token.Increment:
			if n := len(ops); n > 0 && ops[n-1].Kind == Data {
				ops[n-1].Arg++
			} else {
				ops = append(ops, Op{Kind: Data, Arg: 1})
			}
		case token.Decrement:
			if n := len(ops); n > 0 && ops[n-1].Kind == Data {
				ops[n-1].Arg--
			} else {
				ops = append(ops, Op{Kind: Data, Arg: -1})
			}
		case token.Output:
			ops = append(ops, Op{Kind: Output})
		case token.Input:
			ops = append(ops, Op{Kind: Input})
		case token.LoopStart:
			partner, err := matchForward(tokens, i)
			if err != nil {
				return nil, &UnmatchedLoopError{Index: tok.Pos}
			}
			ops = append(ops, Op{Kind: LoopStart, Arg: int64(partner)})
		case token.LoopEnd:
			partner, err := matchBackward(tokens, i)
			if err != nil {
				return nil, &UnmatchedLoopError{Index: tok.Pos}
			}
			ops = append(ops, Op{Kind: LoopEnd, Arg: int64(partner)})
		}

		tokenToIR[i] = len(ops) - 1
	}

	for idx := range ops {
		if ops[idx].Kind == LoopStart || ops[idx].Kind == LoopEnd {
			ops[idx].Arg = int64(tokenToIR[ops[idx].Arg])
		}
	}

	return ops, nil
}

// errNoPartner signals a bracket with no match to its caller, which
// reports the failure using the offending token's own position.
var errNoPartner = fmt.Errorf("no matching bracket")

// matchForward scans forward from a LoopStart at index i, tracking nested
// depth, and returns the token index of its matching LoopEnd.
func matchForward(tokens []token.Token, i int) (int, error) {
	depth := 0
	for j := i + 1; j < len(tokens); j++ {
		switch tokens[j].Kind {
		case token.LoopStart:
			depth++
		case token.LoopEnd:
			if depth == 0 {
				return j, nil
			}
			depth--
		}
	}
	return 0, errNoPartner
}

// matchBackward scans backward from a LoopEnd at index i, tracking nested
// depth, and returns the token index of its matching LoopStart.
func matchBackward(tokens []token.Token, i int) (int, error) {
	depth := 0
	for j := i - 1; j >= 0; j-- {
		switch tokens[j].Kind {
		case token.LoopEnd:
			depth++
		case token.LoopStart:
			if depth == 0 {
				return j, nil
			}
			depth--
		}
	}
	return 0, errNoPartner
}
