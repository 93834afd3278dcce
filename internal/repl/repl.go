// Package repl is an interactive read-eval-print loop for the engine,
// built on readline for line editing and history (the way
// launix-de-memcp's scm/prompt.go upgrades past a bare bufio.Reader) with
// bracket-depth multi-line continuation in the style of
// tangzhangming-nova's internal/repl.
package repl

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/tangzhangming/bf/internal/engine"
	"github.com/tangzhangming/bf/internal/jit"
	"github.com/tangzhangming/bf/internal/tape"
)

const (
	promptPrimary  = "\033[32mbf>\033[0m "
	promptContinue = "\033[32m...\033[0m "
	promptResult   = "\033[31m=\033[0m "
)

// Config configures one REPL session.
type Config struct {
	Mode     engine.Mode
	Optimize bool
	Cache    bool
	HistFile string
}

// DefaultConfig mirrors nova's REPL defaults: JIT enabled, optimizer on.
func DefaultConfig() Config {
	return Config{Mode: engine.ModeJIT, Optimize: true, Cache: true, HistFile: ".bf-history.tmp"}
}

// REPL is one interactive session's state.
type REPL struct {
	cfg     Config
	rl      *readline.Instance
	out     io.Writer
	tape    *tape.Tape
	cache   *jit.Cache
	history []string
}

// New builds a REPL; call Run to start the read-eval-print loop.
func New(cfg Config, out io.Writer) (*REPL, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            promptPrimary,
		HistoryFile:       cfg.HistFile,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return nil, err
	}

	r := &REPL{cfg: cfg, rl: rl, out: out, tape: tape.New()}
	if cfg.Cache {
		r.cache = jit.NewCache()
	}
	return r, nil
}

// Close releases the underlying readline instance.
func (r *REPL) Close() error { return r.rl.Close() }

// Run reads lines until EOF or an interrupt on an empty buffer, executing
// each complete (bracket-balanced) snippet as it's entered.
func (r *REPL) Run() {
	defer r.rl.Close()
	r.rl.CaptureExitSignal()

	var buffer strings.Builder

	for {
		line, err := r.rl.Readline()
		switch {
		case err == readline.ErrInterrupt:
			if buffer.Len() == 0 {
				return
			}
			buffer.Reset()
			r.rl.SetPrompt(promptPrimary)
			continue
		case err == io.EOF:
			return
		case err != nil:
			fmt.Fprintln(r.out, "error:", err)
			return
		}

		if strings.HasPrefix(strings.TrimSpace(line), ":") && buffer.Len() == 0 {
			if r.handleCommand(strings.TrimSpace(line)) {
				return
			}
			continue
		}

		buffer.WriteString(line)
		buffer.WriteByte('\n')

		if needsMoreInput(buffer.String()) {
			r.rl.SetPrompt(promptContinue)
			continue
		}

		snippet := buffer.String()
		buffer.Reset()
		r.rl.SetPrompt(promptPrimary)
		if strings.TrimSpace(snippet) == "" {
			continue
		}
		r.history = append(r.history, snippet)
		r.execute(snippet)
	}
}

func (r *REPL) execute(snippet string) {
	opts := engine.Options{Mode: r.cfg.Mode, Optimize: r.cfg.Optimize, Cache: r.cache, Tape: r.tape}
	stats, err := engine.Run(snippet, r.out, os.Stdin, opts)
	if err != nil {
		fmt.Fprintln(r.out, "error:", err)
		return
	}
	fmt.Fprintf(r.out, "\n%s%d\n", promptResult, stats.Result)
}

// needsMoreInput reports whether input has unbalanced '[' / ']' — the
// Brainfuck-domain specialization of nova's REPL bracket-depth check,
// which also tracks '{'/'('/string state that this language doesn't have.
func needsMoreInput(input string) bool {
	depth := 0
	for _, c := range input {
		switch c {
		case '[':
			depth++
		case ']':
			depth--
		}
	}
	return depth > 0
}

func (r *REPL) handleCommand(line string) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case ":help", ":h", ":?":
		r.printHelp()
	case ":quit", ":q", ":exit":
		return true
	case ":reset":
		r.tape = tape.New()
		fmt.Fprintln(r.out, "tape reset")
	case ":tape":
		r.printTape(fields[1:])
	case ":history":
		for i, h := range r.history {
			fmt.Fprintf(r.out, "%4d  %s\n", i+1, strings.TrimSpace(h))
		}
	case ":load":
		if len(fields) < 2 {
			fmt.Fprintln(r.out, "usage: :load <file>")
			return false
		}
		data, err := os.ReadFile(fields[1])
		if err != nil {
			fmt.Fprintln(r.out, "error:", err)
			return false
		}
		r.execute(string(data))
	default:
		fmt.Fprintln(r.out, "unknown command:", fields[0])
	}
	return false
}

func (r *REPL) printHelp() {
	fmt.Fprintln(r.out, ":help            show this message")
	fmt.Fprintln(r.out, ":quit            exit the REPL")
	fmt.Fprintln(r.out, ":reset           clear the tape")
	fmt.Fprintln(r.out, ":tape [n]        show n cells around the data pointer (default 8)")
	fmt.Fprintln(r.out, ":history         list executed snippets")
	fmt.Fprintln(r.out, ":load <file>     execute a file")
}

func (r *REPL) printTape(args []string) {
	n := 8
	if len(args) > 0 {
		fmt.Sscanf(args[0], "%d", &n)
	}
	pos := r.tape.Pos()
	for i := -n; i <= n; i++ {
		idx := pos + i
		marker := "  "
		if i == 0 {
			marker = "->"
		}
		fmt.Fprintf(r.out, "%s [%d] = %d\n", marker, idx, cellAt(r.tape, idx))
	}
}

func cellAt(t *tape.Tape, idx int) byte {
	// :tape is read-only introspection, not a debugger — it reads
	// through the tape's own wrap-around addressing rather than exposing
	// unchecked access outside internal/tape.
	saved := t.Pos()
	t.Move(idx - saved)
	v := t.Get()
	t.Move(saved - t.Pos())
	return v
}
