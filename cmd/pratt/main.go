package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/sambeau/pratt/config"
	"github.com/sambeau/pratt/internal/diag"
	"github.com/sambeau/pratt/internal/logging"
	"github.com/sambeau/pratt/internal/optable"
	"github.com/sambeau/pratt/pkg/pratt/calc"
	perrors "github.com/sambeau/pratt/pkg/pratt/errors"
	"github.com/sambeau/pratt/pkg/pratt/repl"
	"github.com/sambeau/pratt/pkg/pratt/watch"
)

// Version information, set at build time via -ldflags
var (
	Version = "dev"     // -X main.Version=$(git describe --tags --always)
	Commit  = "unknown" // -X main.Commit=$(git rev-parse --short HEAD)
)

// exitCode is returned once diagnostics have been printed; main exits with
// it without printing anything further.
type exitCode int

func (e exitCode) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

func main() {
	ctx := context.Background()
	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr, os.Getenv); err != nil {
		var code exitCode
		if errors.As(err, &code) {
			os.Exit(int(code))
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main entry point, designed for testability (Mat Ryer pattern)
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, getenv func(string) string) error {
	if len(args) > 0 && args[0] == "operators" {
		return runOperators(args[1:], stdout, stderr, getenv)
	}

	flags := flag.NewFlagSet("pratt", flag.ContinueOnError)
	flags.SetOutput(io.Discard)

	var (
		configPath  = flags.String("config", "", "Path to config file")
		evalCode    = flags.String("e", "", "Evaluate an expression")
		showTree    = flags.Bool("tree", false, "Print the parse tree instead of the value")
		checkMode   = flags.Bool("check", false, "Parse every line of the given files")
		watchMode   = flags.Bool("watch", false, "Reload the operator table when the config file changes")
		noColor     = flags.Bool("no-color", false, "Disable coloured diagnostics")
		showVersion = flags.Bool("version", false, "Show version")
		showHelp    = flags.Bool("help", false, "Show help")
	)
	flags.StringVar(evalCode, "eval", "", "Alias for -e")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(stdout)
			return nil
		}
		printUsage(stderr)
		return err
	}

	if *showHelp {
		printUsage(stdout)
		return nil
	}
	if *showVersion {
		fmt.Fprintf(stdout, "pratt version %s (%s)\n", Version, Commit)
		return nil
	}

	env, err := setup(*configPath, stdout, stderr, getenv, *watchMode)
	if err != nil {
		return err
	}
	defer env.close()
	env.diag.Color = !*noColor && stderr == io.Writer(os.Stderr) && !color.NoColor

	switch {
	case *evalCode != "":
		return evalInline(env, *evalCode, *showTree, stdout)

	case *checkMode:
		files := flags.Args()
		if len(files) == 0 {
			fmt.Fprintln(stderr, "Error: --check requires at least one file (use - for stdin)")
			return exitCode(2)
		}
		return checkFiles(env, files, stdin, stderr)

	case flags.NArg() > 0:
		printUsage(stderr)
		return fmt.Errorf("unexpected argument: %s", flags.Arg(0))
	}

	if *watchMode {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := env.reloader.Watch(ctx); err != nil {
				fmt.Fprintf(stderr, "warning: %v\n", err)
			}
		}()
	}

	cfg := env.reloader.Current().Config
	var reload func() error
	if env.reloader.Current().Path != "" {
		reload = func() error {
			_, err := env.reloader.Reload()
			return err
		}
	}
	session := repl.NewSession(repl.Config{
		Registry:      env.reloader.Registry,
		Reload:        reload,
		ParserOptions: calc.Options(cfg, env.logger),
		Locale:        cfg.REPL.Locale,
		Color:         env.diag.Color,
	}, stdout)
	repl.Start(session, stdout, repl.Options{
		Prompt:  cfg.REPL.Prompt,
		History: cfg.REPL.History,
		Version: Version,
	})
	return nil
}

// cliEnv is what every mode needs: the loaded grammar, a logger and a
// diagnostics printer.
type cliEnv struct {
	reloader *watch.Reloader
	logger   *slog.Logger
	diag     *diag.Printer
	close    func() error
}

func setup(configPath string, stdout, stderr io.Writer, getenv func(string) string, announce bool) (*cliEnv, error) {
	cfg, path, err := config.LoadWithPath(configPath, getenv)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, closeLog, err := logging.New(cfg.Logging, stdout, stderr)
	if err != nil {
		return nil, fmt.Errorf("setting up logging: %w", err)
	}

	printer := &diag.Printer{Out: stderr}
	opts := []watch.Option{watch.WithLogger(logger.With(slog.String("component", "config")))}
	if announce {
		opts = append(opts, watch.OnReload(func(st *watch.State, err error) {
			if err != nil {
				printer.Error("", err)
				printer.Hint("keeping the previous operator table")
				return
			}
			fmt.Fprintf(stderr, "config reloaded: %d operators\n", len(st.Registry.Tokens()))
		}))
	}

	reloader, err := watch.New(path, getenv, opts...)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("building grammar: %w", err)
	}

	return &cliEnv{reloader: reloader, logger: logger, diag: printer, close: closeLog}, nil
}

// evalInline parses and evaluates one expression given on the command line.
func evalInline(env *cliEnv, src string, tree bool, stdout io.Writer) error {
	cfg := env.reloader.Current().Config
	node, err := calc.Parse(src, env.reloader.Registry(), calc.Options(cfg, env.logger)...)
	if err != nil {
		env.diag.Error(src, err)
		return exitCode(1)
	}
	if tree {
		fmt.Fprintln(stdout, node.String())
		return nil
	}

	result, err := calc.Eval(node, calc.NewEnvironment())
	if err != nil {
		env.diag.Error(src, err)
		return exitCode(1)
	}
	fmt.Fprintln(stdout, calc.Format(result, cfg.REPL.Locale))
	return nil
}

// checkFiles parses every non-blank line of each file that does not start
// with '#'. A file named "-" is read from stdin.
func checkFiles(env *cliEnv, files []string, stdin io.Reader, stderr io.Writer) error {
	cfg := env.reloader.Current().Config
	reg := env.reloader.Registry()
	opts := calc.Options(cfg, env.logger)

	failed := false
	for _, filename := range files {
		var content []byte
		var err error
		if filename == "-" {
			content, err = io.ReadAll(stdin)
		} else {
			content, err = os.ReadFile(filename)
		}
		if err != nil {
			fmt.Fprintf(stderr, "Error reading %s: %v\n", filename, err)
			return exitCode(2)
		}

		source := string(content)
		for i, line := range strings.Split(source, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "#") {
				continue
			}
			if _, err := calc.Parse(line, reg, opts...); err != nil {
				env.diag.Error(source, atLine(err, filename, i+1))
				failed = true
			}
		}
	}

	if failed {
		return exitCode(1)
	}
	return nil
}

// atLine moves a single-line parse error to its line in the file.
func atLine(err error, filename string, lineNum int) error {
	var pe *perrors.ParseError
	if !errors.As(err, &pe) {
		return fmt.Errorf("%s:%d: %w", filename, lineNum, err)
	}
	moved := pe.WithFile(filename)
	if moved.Span.Start.Line > 0 {
		moved.Span.Start.Line += lineNum - 1
		moved.Span.End.Line += lineNum - 1
	}
	return moved
}

func runOperators(args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	flags := flag.NewFlagSet("pratt operators", flag.ContinueOnError)
	flags.SetOutput(io.Discard)

	var (
		configPath = flags.String("config", "", "Path to config file")
		asJSON     = flags.Bool("json", false, "Print JSON")
	)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(stdout)
			return nil
		}
		printUsage(stderr)
		return err
	}

	env, err := setup(*configPath, stdout, stderr, getenv, false)
	if err != nil {
		return err
	}
	defer env.close()

	if *asJSON {
		return optable.WriteJSON(stdout, env.reloader.Registry())
	}
	optable.WriteTable(stdout, env.reloader.Registry())
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `pratt - An extensible operator-precedence calculator

Usage:
  pratt [options]                  Start the REPL
  pratt -e EXPR [--tree]           Evaluate an expression (or print its tree)
  pratt --check FILE...            Parse every line of the files
  pratt operators [--json]         List the operator table

Options:
  --config PATH      Path to config file (default: auto-detect)
  -e, --eval EXPR    Evaluate an expression
  --tree             Print the parse tree instead of the value
  --check            Check syntax of each non-blank line; '#' starts a comment line
  --watch            Reload the operator table when the config file changes
  --no-color         Disable coloured diagnostics
  --version          Show version
  --help             Show this help

Config Resolution:
  1. --config flag
  2. PRATT_CONFIG environment variable
  3. ./pratt.yaml
  4. ~/.config/pratt/pratt.yaml
  5. built-in operator table

Examples:
  pratt -e '1 + 2 * 3'              7
  pratt -e '2 ^ 3 ^ 2' --tree       (2 ^ (3 ^ 2))
  pratt -e 'sqrt 16 + 9'            13
  pratt --check formulas.txt
  pratt --config ops.yaml --watch

`)
}
