// Package interp is the direct-dispatch tree-walking backend: it executes
// optimized IR one instruction at a time against a Tape, with no code
// generation involved.
package interp

import (
	"io"

	"github.com/tangzhangming/bf/internal/ir"
	"github.com/tangzhangming/bf/internal/optimizer"
	"github.com/tangzhangming/bf/internal/tape"
)

// Interpreter holds the mutable state one Run call needs: the tape, the
// input source, and where output bytes go.
type Interpreter struct {
	Tape     *tape.Tape
	Input    *tape.InputBuffer
	Out      io.Writer
	IgnoreIO bool
}

// New builds an Interpreter reading from in and writing to out. If t is
// nil a fresh tape is allocated; passing an existing tape lets a caller
// (e.g. the REPL) share state across repeated Run calls.
func New(in io.Reader, out io.Writer, t *tape.Tape) *Interpreter {
	if t == nil {
		t = tape.New()
	}
	return &Interpreter{
		Tape:  t,
		Input: tape.NewInputBuffer(in),
		Out:   out,
	}
}

// Run executes ops to completion and returns the final value of the cell
// under the data pointer, the same convention the reference interpreter
// uses to report a result with no explicit "return" operator in the
// language.
func (in *Interpreter) Run(ops []optimizer.Op) (byte, error) {
	ip := 0
	for ip < len(ops) {
		op := ops[ip]
		switch op.Kind {
		case optimizer.ResetToZero:
			in.Tape.Set(0)
		case optimizer.AddAndZero:
			source := in.Tape.Get()
			in.Tape.AddAt(op.Offset, source)
			in.Tape.Set(0)
		case optimizer.ScaledAddAndZero:
			source := in.Tape.Get()
			in.Tape.AddAt(op.Offset, byte(int8(source)*int8(op.Scale)))
			in.Tape.Set(0)
		case optimizer.Passthrough:
			switch op.Inner.Kind {
			case ir.Data:
				in.Tape.Add(int8(op.Inner.Arg))
			case ir.Move:
				in.Tape.Move(int(op.Inner.Arg))
			case ir.Input:
				if !in.IgnoreIO {
					b, err := in.Input.Next()
					if err != nil {
						return 0, err
					}
					in.Tape.Set(b)
				}
			case ir.Output:
				if !in.IgnoreIO {
					if _, err := in.Out.Write([]byte{in.Tape.Get()}); err != nil {
						return 0, err
					}
				}
			case ir.LoopStart:
				if in.Tape.Get() == 0 {
					ip = int(op.Inner.Arg) + 1
					continue
				}
			case ir.LoopEnd:
				if in.Tape.Get() != 0 {
					ip = int(op.Inner.Arg)
					continue
				}
			}
		}
		ip++
	}
	return in.Tape.Get(), nil
}
