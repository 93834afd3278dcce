package lexer

import (
	"testing"

	"github.com/tangzhangming/bf/internal/token"
)

func TestScanBasicOperators(t *testing.T) {
	tokens := Scan("+-><.,[]")
	want := []token.Kind{
		token.Increment, token.Decrement, token.MoveRight, token.MoveLeft,
		token.Output, token.Input, token.LoopStart, token.LoopEnd,
	}
	if len(tokens) != len(want) {
		t.Fatalf("token count = %d, want %d", len(tokens), len(want))
	}
	for i, tok := range tokens {
		if tok.Kind != want[i] {
			t.Errorf("token[%d] = %s, want %s", i, tok.Kind, want[i])
		}
	}
}

func TestScanDropsComments(t *testing.T) {
	tokens := Scan("hello + world - \n")
	want := []token.Kind{token.Increment, token.Decrement}
	if len(tokens) != len(want) {
		t.Fatalf("token count = %d, want %d", len(tokens), len(want))
	}
	for i, tok := range tokens {
		if tok.Kind != want[i] {
			t.Errorf("token[%d] = %s, want %s", i, tok.Kind, want[i])
		}
	}
}

func TestScanPositionsTrackByteOffset(t *testing.T) {
	tokens := Scan("a+b-")
	if tokens[0].Pos != 1 {
		t.Errorf("first token Pos = %d, want 1", tokens[0].Pos)
	}
	if tokens[1].Pos != 3 {
		t.Errorf("second token Pos = %d, want 3", tokens[1].Pos)
	}
}

func TestScanEmpty(t *testing.T) {
	if tokens := Scan(""); len(tokens) != 0 {
		t.Errorf("Scan(\"\") = %v, want empty", tokens)
	}
}
