// Package repl is the interactive calculator shell.
package repl

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"

	"github.com/sambeau/pratt/internal/diag"
	"github.com/sambeau/pratt/internal/optable"
	"github.com/sambeau/pratt/pkg/pratt/calc"
	"github.com/sambeau/pratt/pkg/pratt/parser"
	"github.com/sambeau/pratt/pkg/pratt/registry"
)

const continuationPrompt = ".. "

const logo = `
█▀█ █▀█ ▄▀█ ▀█▀ ▀█▀
█▀▀ █▀▄ █▀█ ░█░ ░█░ `

// Config wires a session to its surroundings.
type Config struct {
	// Registry returns the registry to parse with. It is called for every
	// input so a hot-reloaded registry takes effect immediately.
	Registry func() *registry.Registry
	// Reload rebuilds the registry from configuration; nil disables :reload.
	Reload        func() error
	ParserOptions []parser.Option
	Locale        string // number formatting, see calc.Format
	Color         bool
}

// Session evaluates input lines. It holds the variable environment and any
// partially entered expression.
type Session struct {
	cfg   Config
	env   *calc.Environment
	out   io.Writer
	diag  *diag.Printer
	tree  bool
	input strings.Builder
}

// NewSession returns a session writing results to out.
func NewSession(cfg Config, out io.Writer) *Session {
	return &Session{
		cfg:  cfg,
		env:  calc.NewEnvironment(),
		out:  out,
		diag: &diag.Printer{Out: out, Color: cfg.Color},
	}
}

// Pending reports whether an expression is waiting for more lines.
func (s *Session) Pending() bool {
	return s.input.Len() > 0
}

// Reset discards any partially entered expression.
func (s *Session) Reset() {
	s.input.Reset()
}

// Handle processes one line of input. It returns the complete expression
// once one has been evaluated (for history), and quit when the user asked to
// leave.
func (s *Session) Handle(line string) (entry string, quit bool) {
	trimmed := strings.TrimSpace(line)

	if !s.Pending() {
		switch {
		case trimmed == "exit" || trimmed == "quit":
			return "", true
		case strings.HasPrefix(trimmed, ":"):
			s.command(trimmed)
			return "", false
		case trimmed == "":
			return "", false
		}
	}

	if s.Pending() {
		s.input.WriteString("\n")
	}
	s.input.WriteString(line)

	src := s.input.String()
	if needsMoreInput(src) {
		return "", false
	}
	s.input.Reset()

	s.eval(src)
	return src, false
}

func (s *Session) eval(src string) {
	node, err := calc.Parse(src, s.cfg.Registry(), s.cfg.ParserOptions...)
	if err != nil {
		s.diag.Error(src, err)
		return
	}
	if s.tree {
		fmt.Fprintln(s.out, node.String())
		return
	}

	result, err := calc.Eval(node, s.env)
	if err != nil {
		s.diag.Error(src, err)
		return
	}
	s.env.Set("ans", result)
	fmt.Fprintln(s.out, calc.Format(result, s.cfg.Locale))
}

func (s *Session) command(cmd string) {
	switch cmd {
	case ":help", ":h", ":?":
		fmt.Fprintln(s.out, "REPL Commands:")
		fmt.Fprintln(s.out, "  :help, :h, :?   Show this help")
		fmt.Fprintln(s.out, "  :tree           Toggle printing the parse tree instead of the value")
		fmt.Fprintln(s.out, "  :ops            List the operators")
		fmt.Fprintln(s.out, "  :env            Show names in scope")
		fmt.Fprintln(s.out, "  :reload         Reload the operator table from the configuration")
		fmt.Fprintln(s.out, "  exit, quit      Exit the REPL")
		fmt.Fprintln(s.out, "")
		fmt.Fprintln(s.out, "The last result is available as 'ans'.")

	case ":tree":
		s.tree = !s.tree
		if s.tree {
			fmt.Fprintln(s.out, "Tree mode ON")
		} else {
			fmt.Fprintln(s.out, "Tree mode OFF")
		}

	case ":ops":
		optable.WriteTable(s.out, s.cfg.Registry())

	case ":env":
		for _, name := range s.env.Names() {
			v, _ := s.env.Get(name)
			fmt.Fprintf(s.out, "  %s = %s\n", name, calc.Format(v, s.cfg.Locale))
		}

	case ":reload":
		if s.cfg.Reload == nil {
			fmt.Fprintln(s.out, "Reload is not available (no configuration file)")
			return
		}
		if err := s.cfg.Reload(); err != nil {
			s.diag.Error("", err)
			fmt.Fprintln(s.out, "Keeping the previous operator table")
			return
		}
		fmt.Fprintf(s.out, "Reloaded %d operators\n", len(s.cfg.Registry().Tokens()))

	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type :help for commands)\n", cmd)
	}
}

// Completions returns words starting with the last word of line: registered
// symbols and names in scope.
func (s *Session) Completions(line string) []string {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	if last := line[len(line)-1]; last == ' ' || last == '\t' {
		return nil
	}

	words := strings.Fields(line)
	lastWord := words[len(words)-1]
	head := line[:len(line)-len(lastWord)]

	candidates := append(s.env.Names(), s.cfg.Registry().Tokens()...)
	sort.Strings(candidates)

	var matches []string
	prev := ""
	for _, c := range candidates {
		if c != prev && strings.HasPrefix(c, lastWord) {
			matches = append(matches, head+c)
		}
		prev = c
	}
	return matches
}

// needsMoreInput reports unclosed parentheses outside string literals.
func needsMoreInput(input string) bool {
	depth := 0
	inString := false
	escapeNext := false

	for _, ch := range input {
		if escapeNext {
			escapeNext = false
			continue
		}
		if inString {
			switch ch {
			case '\\':
				escapeNext = true
			case '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '(':
			depth++
		case ')':
			depth--
		}
	}
	return depth > 0
}

// Options configures Start.
type Options struct {
	Prompt  string
	History string // history file; empty disables history
	Version string
}

// Start runs the interactive loop until the user exits.
func Start(session *Session, out io.Writer, opts Options) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(session.Completions)

	history := expandHome(opts.History)
	if history != "" {
		if f, err := os.Open(history); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
		defer func() {
			if f, err := os.Create(history); err == nil {
				line.WriteHistory(f)
				f.Close()
			}
		}()
	}

	prompt := opts.Prompt
	if prompt == "" {
		prompt = ">> "
	}

	fmt.Fprintf(out, "%s", logo)
	fmt.Fprintln(out, "v", opts.Version)
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Type 'exit' or Ctrl+D to quit")
	fmt.Fprintln(out, "Use Tab for completion, ↑↓ for history")
	fmt.Fprintln(out, "Type ':help' for REPL commands")
	fmt.Fprintln(out, "")

	for {
		p := prompt
		if session.Pending() {
			p = continuationPrompt
		}
		input, err := line.Prompt(p)
		if err != nil {
			if err == liner.ErrPromptAborted {
				if session.Pending() {
					fmt.Fprintln(out, "^C (cleared)")
				} else {
					fmt.Fprintln(out, "^C")
				}
				session.Reset()
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(out, "\nGoodbye!")
				return
			}
			fmt.Fprintf(out, "Error reading input: %v\n", err)
			continue
		}

		entry, quit := session.Handle(input)
		if quit {
			fmt.Fprintln(out, "Goodbye!")
			return
		}
		if entry != "" {
			line.AppendHistory(entry)
		}
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
