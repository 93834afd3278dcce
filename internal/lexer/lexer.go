// Package lexer scans Brainfuck source text into a token stream. Scanning
// never fails: any byte that is not one of the eight operators is treated
// as a comment character and silently dropped, matching the original
// tokenizer's filter-based approach.
package lexer

import "github.com/tangzhangming/bf/internal/token"

// Scan walks source once, left to right, emitting one Token per recognized
// operator byte. The returned slice is pre-sized to len(source) since that
// is the tightest cheap upper bound on the number of tokens.
func Scan(source string) []token.Token {
	tokens := make([]token.Token, 0, len(source))
	for i := 0; i < len(source); i++ {
		kind, ok := token.KindOf(source[i])
		if !ok {
			continue
		}
		tokens = append(tokens, token.Token{Kind: kind, Pos: i})
	}
	return tokens
}
