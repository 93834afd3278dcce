package diagnostics

import (
	"fmt"
	"strings"
)

// Diagnostic is one reported problem: a code, a message, and the byte
// offset in the source text of the token that caused it.
type Diagnostic struct {
	Code    Code
	Level   Level
	Message string
	Index   int
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s: [%s] %s (offset %d)", d.Level, d.Code, d.Message, d.Index)
}

// FromUnmatchedLoop builds the Diagnostic for an *ir.UnmatchedLoopError.
// It takes the raw index rather than the typed error to avoid an import
// cycle between internal/ir and internal/diagnostics.
func FromUnmatchedLoop(index int) *Diagnostic {
	return &Diagnostic{
		Code:    UnmatchedLoop,
		Level:   LevelError,
		Message: "unmatched loop bracket",
		Index:   index,
	}
}

// Reporter renders diagnostics against the original source text, with a
// caret under the offending character.
type Reporter struct {
	Source string
}

// Render returns a multi-line string: the diagnostic's message, the
// source text around the token, and a caret pointing at it. Brainfuck
// source has no meaningful line structure for the engine itself, but a
// human reading a dump still benefits from seeing the neighborhood of the
// failing bracket, so Render shows a fixed-width window around Index
// instead of a line (there may be no newlines in the source at all).
func (r *Reporter) Render(d *Diagnostic) string {
	const window = 20
	start := d.Index - window
	if start < 0 {
		start = 0
	}
	end := d.Index + window
	if end > len(r.Source) {
		end = len(r.Source)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", d.Error())
	if start < len(r.Source) {
		fmt.Fprintf(&b, "  %s\n", r.Source[start:end])
		fmt.Fprintf(&b, "  %s^\n", strings.Repeat(" ", d.Index-start))
	}
	return b.String()
}
