package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/semql/internal/cli/output"
	"github.com/leapstack-labs/semql/internal/state"
	"github.com/leapstack-labs/semql/pkg/transform"
)

// TransformOptions holds options for the transform command.
type TransformOptions struct {
	Files       []string
	Concurrency int
}

// NewTransformCommand creates the transform command.
func NewTransformCommand() *cobra.Command {
	opts := &TransformOptions{}

	cmd := &cobra.Command{
		Use:     "transform [sql...]",
		Aliases: []string{"dry-plan"},
		Short:   "Rewrite SQL against the model into physical SQL",
		Long: `Rewrite queries written against the semantic model into SQL that runs
against the physical sources. Relationship columns become joins and
calculated columns are inlined.

Queries come from the arguments, from --file, or from stdin when neither is
given. Every query is planned independently; one failure does not stop the
others.`,
		Example: `  # Rewrite one query
  semql transform "select customer_name from orders"

  # Rewrite the queries of several files
  semql transform -f q1.sql -f q2.sql

  # Read from stdin
  echo "select * from orders" | semql transform

  # Output as JSON
  semql transform "select * from orders" -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransform(cmd, args, opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Files, "file", "f", nil, "Read a query from file (repeatable)")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 4, "Max queries planned at once (0 = unlimited)")

	return cmd
}

func runTransform(cmd *cobra.Command, args []string, opts *TransformOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	reqs, err := transformRequests(cmd.InOrStdin(), args, opts.Files)
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

	start := time.Now()
	results, err := transform.TransformAll(ctx, sess, am, reqs, opts.Concurrency)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	if err := cc.recordResults(ctx, am, reqs, results, elapsed); err != nil {
		cc.Logger.Warn("failed to record history", "error", err)
	}

	renderTransformResults(cc.Renderer, results)

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	switch {
	case failed == 0:
		return nil
	case len(results) == 1:
		return results[0].Err
	default:
		return fmt.Errorf("%d of %d transforms failed", failed, len(results))
	}
}

// transformRequests collects the queries of args and files, or of stdin
// when there are none.
func transformRequests(stdin io.Reader, args, files []string) ([]transform.Request, error) {
	var reqs []transform.Request
	for i, sql := range args {
		reqs = append(reqs, transform.Request{Name: fmt.Sprintf("#%d", i+1), SQL: sql})
	}
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read query: %w", err)
		}
		reqs = append(reqs, transform.Request{Name: path, SQL: trimQuery(string(data))})
	}
	if len(reqs) > 0 {
		return reqs, nil
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	sql := trimQuery(string(data))
	if sql == "" {
		return nil, fmt.Errorf("no query given (pass SQL as an argument, with --file, or on stdin)")
	}
	return []transform.Request{{Name: "stdin", SQL: sql}}, nil
}

func trimQuery(s string) string {
	return strings.TrimSuffix(strings.TrimSpace(s), ";")
}

func renderTransformResults(r *output.Renderer, results []transform.Result) {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		out := make([]output.TransformOutput, 0, len(results))
		for _, res := range results {
			o := output.TransformOutput{Name: res.Name, SQL: res.SQL}
			if res.Err != nil {
				o.Error = res.Err.Error()
			}
			out = append(out, o)
		}
		if len(out) == 1 {
			_ = r.JSON(out[0])
			return
		}
		_ = r.JSON(out)

	case output.ModeMarkdown:
		for _, res := range results {
			if len(results) > 1 {
				r.Println(output.FormatHeader(2, res.Name))
				r.Println("")
			}
			if res.Err != nil {
				r.Println(output.FormatCodeBlock("text", res.Err.Error()))
			} else {
				r.Println(output.FormatCodeBlock("sql", res.SQL))
			}
			r.Println("")
		}

	default:
		for _, res := range results {
			if len(results) > 1 {
				status := "success"
				if res.Err != nil {
					status = "failed"
				}
				r.StatusLine(res.Name, status, "")
			}
			if res.Err != nil {
				r.Error(res.Err.Error())
				continue
			}
			r.Println(res.SQL)
		}
	}
}

// recordResults stores results in the history when it is enabled.
func (c *CommandContext) recordResults(ctx context.Context, am *transform.AnalyzedModel, reqs []transform.Request, results []transform.Result, elapsed time.Duration) error {
	store, err := c.OpenHistory()
	if err != nil || store == nil {
		return err
	}
	defer func() { _ = store.Close() }()

	per := elapsed / time.Duration(max(len(results), 1))
	for i, res := range results {
		rec := &state.Record{
			ManifestHash: am.Hash(),
			SQL:          reqs[i].SQL,
			Rewritten:    res.SQL,
			Duration:     per,
		}
		if res.Err != nil {
			rec.Error = res.Err.Error()
		}
		if err := store.Record(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
