package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/semql/internal/cli/output"
	"github.com/leapstack-labs/semql/pkg/lineage"
	"github.com/leapstack-labs/semql/pkg/mdl"
)

// NewLineageCommand creates the lineage command.
func NewLineageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lineage <dataset.column>",
		Short: "Show lineage for a column",
		Long: `Display how a model or metric column is computed: the columns it references,
the relationships it traverses, the physical columns it reads and the columns
that depend on it.`,
		Example: `  # Show the lineage of a calculated column
  semql lineage orders.customer_name

  # Output as JSON
  semql lineage orders.customer_name -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLineage(cmd, args[0])
		},
	}
	return cmd
}

func runLineage(cmd *cobra.Command, target string) error {
	dataset, column, ok := strings.Cut(target, ".")
	if !ok || dataset == "" || column == "" {
		return fmt.Errorf("expected <dataset.column>, got %q", target)
	}

	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	am, cleanup, err := cc.Analyze(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	col, ok := am.Lineage.Column(am.Index.QualifiedColumnName(dataset, column))
	if !ok {
		return fmt.Errorf("column not found: %s", target)
	}
	out := newLineageOutput(am.Lineage, col)

	r := cc.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		lineageMarkdown(r, out)
	default:
		lineageText(r, out)
	}
	return nil
}

func newLineageOutput(l *lineage.Lineage, col *lineage.ColumnLineage) output.LineageOutput {
	out := output.LineageOutput{
		Column:       col.Name.Short(),
		Kind:         string(col.Kind),
		Refs:         shortNames(col.Refs),
		Dependencies: shortNames(col.Dependencies),
		Sources:      []string{},
		Hops:         []output.HopInfo{},
		Dependents:   shortNames(l.Dependents(col.Name)),
	}
	for _, src := range col.Sources {
		out.Sources = append(out.Sources, src.String())
	}
	for _, h := range col.Path {
		out.Hops = append(out.Hops, output.HopInfo{
			Relationship: h.Relationship,
			From:         h.From,
			To:           h.To,
			Column:       h.Column,
			JoinType:     string(h.JoinType),
		})
	}
	return out
}

func shortNames(qs []mdl.QualifiedName) []string {
	out := make([]string, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.Short())
	}
	return out
}

func lineageText(r *output.Renderer, out output.LineageOutput) {
	s := r.Styles()
	r.Println(s.Header1.Render("Lineage for: " + out.Column))
	r.Println(s.Muted.Render("kind: " + out.Kind))
	r.Println("")

	section := func(title string, items []string) {
		r.Printf("%s (%d):\n", title, len(items))
		for _, item := range items {
			r.Printf("  - %s\n", item)
		}
	}
	section("References", out.Refs)
	section("Physical sources", out.Sources)
	r.Printf("Relationships (%d):\n", len(out.Hops))
	for _, h := range out.Hops {
		r.Printf("  - %s: %s -> %s (%s)\n", h.Relationship, h.From, h.To, h.JoinType)
	}
	section("Dependents", out.Dependents)
}

func lineageMarkdown(r *output.Renderer, out output.LineageOutput) {
	r.Println(output.FormatHeader(1, "Lineage: "+out.Column))
	r.Println("")
	r.Println(output.FormatKeyValue("Kind", out.Kind))
	r.Println(output.FormatKeyValue("References", joinOrNone(out.Refs)))
	r.Println(output.FormatKeyValue("Physical sources", joinOrNone(out.Sources)))
	r.Println(output.FormatKeyValue("Dependents", joinOrNone(out.Dependents)))
	if len(out.Hops) == 0 {
		return
	}
	r.Println("")
	rows := make([][]string, 0, len(out.Hops))
	for _, h := range out.Hops {
		rows = append(rows, []string{h.Relationship, h.From, h.To, h.Column, h.JoinType})
	}
	r.Table([]string{"Relationship", "From", "To", "Column", "Join type"}, rows)
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
