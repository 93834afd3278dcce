package ir

import (
	"testing"

	"github.com/tangzhangming/bf/internal/lexer"
)

func TestFoldCollapsesRuns(t *testing.T) {
	ops, err := Fold(lexer.Scan("+++>><"))
	if err != nil {
		t.Fatalf("Fold: %v", err)
	}
	want := []Op{
		{Kind: Data, Arg: 3},
		{Kind: Move, Arg: 1},
	}
	if len(ops) != len(want) {
		t.Fatalf("got %d ops, want %d: %v", len(ops), len(want), ops)
	}
	for i, op := range ops {
		if op != want[i] {
			t.Errorf("ops[%d] = %+v, want %+v", i, op, want[i])
		}
	}
}

func TestFoldResolvesLoopPartners(t *testing.T) {
	ops, err := Fold(lexer.Scan("+[->+<]"))
	if err != nil {
		t.Fatalf("Fold: %v", err)
	}

	var start, end int = -1, -1
	for i, op := range ops {
		switch op.Kind {
		case LoopStart:
			start = i
		case LoopEnd:
			end = i
		}
	}
	if start == -1 || end == -1 {
		t.Fatalf("expected a LoopStart and LoopEnd, got %v", ops)
	}
	if ops[start].Arg != int64(end) {
		t.Errorf("LoopStart.Arg = %d, want %d (its LoopEnd's index)", ops[start].Arg, end)
	}
	if ops[end].Arg != int64(start) {
		t.Errorf("LoopEnd.Arg = %d, want %d (its LoopStart's index)", ops[end].Arg, start)
	}
}

func TestFoldNestedLoops(t *testing.T) {
	ops, err := Fold(lexer.Scan("[[-]+]"))
	if err != nil {
		t.Fatalf("Fold: %v", err)
	}
	// indices: 0=outer LoopStart, 1=inner LoopStart, 2=Data(-1), 3=inner LoopEnd, 4=Data(1), 5=outer LoopEnd
	if ops[0].Arg != 5 || ops[5].Arg != 0 {
		t.Errorf("outer loop mismatched: start.Arg=%d end.Arg=%d", ops[0].Arg, ops[5].Arg)
	}
	if ops[1].Arg != 3 || ops[3].Arg != 1 {
		t.Errorf("inner loop mismatched: start.Arg=%d end.Arg=%d", ops[1].Arg, ops[3].Arg)
	}
}

func TestFoldUnmatchedLoopStart(t *testing.T) {
	_, err := Fold(lexer.Scan("[+"))
	var unmatched *UnmatchedLoopError
	if !asUnmatched(err, &unmatched) {
		t.Fatalf("Fold(\"[+\") error = %v, want *UnmatchedLoopError", err)
	}
	if unmatched.Index != 0 {
		t.Errorf("UnmatchedLoopError.Index = %d, want 0", unmatched.Index)
	}
}

func TestFoldUnmatchedLoopEnd(t *testing.T) {
	_, err := Fold(lexer.Scan("+]"))
	var unmatched *UnmatchedLoopError
	if !asUnmatched(err, &unmatched) {
		t.Fatalf("Fold(\"+]\") error = %v, want *UnmatchedLoopError", err)
	}
	if unmatched.Index != 1 {
		t.Errorf("UnmatchedLoopError.Index = %d, want 1", unmatched.Index)
	}
}

func TestFoldLeadingUnbalancedLoopEnd(t *testing.T) {
	if _, err := Fold(lexer.Scan("]")); err == nil {
		t.Fatal("Fold(\"]\") expected an error, got nil")
	}
}

func asUnmatched(err error, target **UnmatchedLoopError) bool {
	u, ok := err.(*UnmatchedLoopError)
	if ok {
		*target = u
	}
	return ok
}
