package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/leapstack-labs/semql/pkg/dialect"
	"github.com/leapstack-labs/semql/pkg/transform"
)

const (
	replPrompt     = "semql> "
	replContPrompt = "   ...> "
)

// lineReader is the input of the REPL: readline on a terminal, a plain
// scanner otherwise.
type lineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
	Close() error
}

type scanReader struct {
	sc *bufio.Scanner
}

func (r *scanReader) Readline() (string, error) {
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.sc.Text(), nil
}

func (r *scanReader) SetPrompt(string) {}

func (r *scanReader) Close() error { return nil }

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Rewrite queries interactively",
		Long: `Start an interactive shell that rewrites each query against the configured
manifest. Statements end with a semicolon and may span several lines.

Type .help for the dot commands.`,
		Args: cobra.NoArgs,
		RunE: runREPL,
	}
	return cmd
}

type repl struct {
	cc   *CommandContext
	am   *transform.AnalyzedModel
	sess *transform.Session
	out  io.Writer
	err  io.Writer
}

func runREPL(cmd *cobra.Command, _ []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	am, cleanup, err := cc.Analyze(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	sess, err := cc.Session()
	if err != nil {
		return err
	}

	rp := &repl{cc: cc, am: am, sess: sess, out: cmd.OutOrStdout(), err: cmd.ErrOrStderr()}

	rl, err := rp.newReader(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(rp.out, "semql REPL (manifest: %s, dialect: %s)\n", cc.Cfg.Manifest, sess.Dialect().Name)
	_, _ = fmt.Fprintln(rp.out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(rp.out)

	return rp.loop(ctx, rl)
}

func (rp *repl) newReader(in io.Reader) (lineReader, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return readline.NewEx(&readline.Config{
			Prompt:          replPrompt,
			HistoryFile:     filepath.Join(rp.cc.Cfg.ProjectRoot, ".semql", "repl_history"),
			AutoComplete:    rp.completer(),
			InterruptPrompt: "^C",
			EOFPrompt:       ".quit",
		})
	}
	return &scanReader{sc: bufio.NewScanner(in)}, nil
}

func (rp *repl) loop(ctx context.Context, rl lineReader) error {
	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buf.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if buf.Len() == 0 && strings.HasPrefix(line, ".") {
			if quit := rp.dotCommand(line); quit {
				return nil
			}
			continue
		}

		buf.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			buf.WriteString("\n")
			rl.SetPrompt(replContPrompt)
			continue
		}
		rl.SetPrompt(replPrompt)

		query := trimQuery(buf.String())
		buf.Reset()

		got, err := transform.Transform(ctx, rp.sess, rp.am, nil, query)
		if err != nil {
			_, _ = fmt.Fprintf(rp.err, "Error: %v\n", err)
		} else {
			_, _ = fmt.Fprintln(rp.out, got)
		}
		_, _ = fmt.Fprintln(rp.out)
	}
}

// dotCommand runs a dot command and reports whether the REPL should exit.
func (rp *repl) dotCommand(line string) bool {
	parts := strings.Fields(line)
	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(rp.out)

	case ".models":
		for _, ds := range describeManifest(rp.am).Datasets {
			_, _ = fmt.Fprintf(rp.out, "%s (%s)\n", ds.Name, ds.Kind)
		}

	case ".describe":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(rp.err, "Usage: .describe <dataset>")
			break
		}
		rp.describe(parts[1])

	case ".lineage":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(rp.err, "Usage: .lineage <dataset.column>")
			break
		}
		rp.lineage(parts[1])

	case ".functions":
		for _, f := range rp.sess.Functions() {
			_, _ = fmt.Fprintf(rp.out, "%s %s %s\n", f.Name, f.FunctionType, f.ReturnType)
		}

	case ".register":
		if len(parts) < 3 {
			_, _ = fmt.Fprintln(rp.err, "Usage: .register <name> <scalar|aggregate|window> [return type]")
			break
		}
		rp.register(parts[1], parts[2], strings.Join(parts[3:], " "))

	case ".clear":
		_, _ = fmt.Fprint(rp.out, "\033[H\033[2J")

	default:
		_, _ = fmt.Fprintf(rp.err, "Unknown command: %s (type .help for commands)\n", parts[0])
	}
	return false
}

func (rp *repl) describe(name string) {
	for _, ds := range describeManifest(rp.am).Datasets {
		if ds.Name != name {
			continue
		}
		for _, c := range ds.Columns {
			_, _ = fmt.Fprintf(rp.out, "  %-24s %-12s %s\n", c.Name, c.Type, c.Kind)
		}
		return
	}
	_, _ = fmt.Fprintf(rp.err, "Error: dataset not found: %s\n", name)
}

func (rp *repl) lineage(target string) {
	dataset, column, _ := strings.Cut(target, ".")
	col, ok := rp.am.Lineage.Column(rp.am.Index.QualifiedColumnName(dataset, column))
	if !ok {
		_, _ = fmt.Fprintf(rp.err, "Error: column not found: %s\n", target)
		return
	}
	out := newLineageOutput(rp.am.Lineage, col)
	_, _ = fmt.Fprintf(rp.out, "%s (%s)\n", out.Column, out.Kind)
	_, _ = fmt.Fprintf(rp.out, "  refs:       %s\n", joinOrNone(out.Refs))
	_, _ = fmt.Fprintf(rp.out, "  sources:    %s\n", joinOrNone(out.Sources))
	_, _ = fmt.Fprintf(rp.out, "  dependents: %s\n", joinOrNone(out.Dependents))
}

func (rp *repl) register(name, kind, returnType string) {
	ft, ok := dialect.ParseFunctionType(kind)
	if !ok {
		_, _ = fmt.Fprintf(rp.err, "Error: unknown function type %q\n", kind)
		return
	}
	err := rp.sess.RegisterFunctions(transform.RemoteFunction{Name: name, FunctionType: ft, ReturnType: returnType})
	if err != nil {
		_, _ = fmt.Fprintf(rp.err, "Error: %v\n", err)
		return
	}
	_, _ = fmt.Fprintf(rp.out, "registered %s\n", name)
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help                          Show this help message
  .models                        List models and metrics
  .describe <dataset>            Show the columns of a model or metric
  .lineage <dataset.column>      Show the lineage of a column
  .functions                     List registered remote functions
  .register <name> <type> [ret]  Register a remote function for this session
  .clear                         Clear the screen
  .quit / .exit                  Exit the REPL

Tips:
  - Statements must end with a semicolon (;)
  - Use arrow keys to navigate history
  - Tab completion works for dataset names`
	_, _ = fmt.Fprintln(w, help)
}

// completer completes dot commands and dataset names.
func (rp *repl) completer() *readline.PrefixCompleter {
	var datasets []readline.PrefixCompleterInterface
	for _, ds := range describeManifest(rp.am).Datasets {
		datasets = append(datasets, readline.PcItem(ds.Name))
	}

	items := []readline.PrefixCompleterInterface{
		readline.PcItem(".help"),
		readline.PcItem(".models"),
		readline.PcItem(".describe", datasets...),
		readline.PcItem(".lineage"),
		readline.PcItem(".functions"),
		readline.PcItem(".register"),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	}
	items = append(items, datasets...)
	return readline.NewPrefixCompleter(items...)
}
