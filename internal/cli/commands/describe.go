package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/semql/internal/cli/output"
	"github.com/leapstack-labs/semql/pkg/mdl"
	"github.com/leapstack-labs/semql/pkg/transform"
)

// NewDescribeCommand creates the describe command.
func NewDescribeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "describe [dataset]",
		Aliases: []string{"models"},
		Short:   "Describe the semantic model",
		Long: `Summarize the manifest: its models and metrics with their columns, the
relationships between them, and its views. With a dataset name only that
model or metric is shown.`,
		Example: `  # Describe the whole manifest
  semql describe

  # Describe one model
  semql describe orders -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return runDescribe(cmd, name)
		},
	}
	return cmd
}

func runDescribe(cmd *cobra.Command, name string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	am, cleanup, err := cc.Analyze(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	out := describeManifest(am)
	if name != "" {
		var found []output.DatasetInfo
		for _, ds := range out.Datasets {
			if ds.Name == name {
				found = append(found, ds)
			}
		}
		if len(found) == 0 {
			return fmt.Errorf("dataset not found: %s", name)
		}
		out.Datasets = found
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		if name != "" {
			return r.JSON(out.Datasets[0])
		}
		return r.JSON(out)
	}

	if name == "" {
		r.Header(1, fmt.Sprintf("%s.%s", out.Catalog, out.Schema))
		r.Muted("hash: " + out.Hash)
		r.Println("")
	}
	for _, ds := range out.Datasets {
		describeDataset(r, ds)
	}
	if name != "" {
		return nil
	}

	if len(out.Relationships) > 0 {
		r.Header(2, "Relationships")
		rows := make([][]string, 0, len(out.Relationships))
		for _, rel := range out.Relationships {
			rows = append(rows, []string{rel.Name, strings.Join(rel.Models, ", "), rel.JoinType, rel.Condition})
		}
		r.Table([]string{"Name", "Models", "Join type", "Condition"}, rows)
		r.Println("")
	}
	if len(out.Views) > 0 {
		r.Header(2, "Views")
		for _, v := range out.Views {
			r.Printf("- %s\n", v)
		}
	}
	return nil
}

func describeDataset(r *output.Renderer, ds output.DatasetInfo) {
	title := fmt.Sprintf("%s (%s)", ds.Name, ds.Kind)
	if ds.Source != "" {
		title += " from " + ds.Source
	}
	r.Header(2, title)

	rows := make([][]string, 0, len(ds.Columns))
	for _, c := range ds.Columns {
		detail := c.Expression
		if c.Relationship != "" {
			detail = c.Relationship
		}
		notNull := ""
		if c.NotNull {
			notNull = "yes"
		}
		rows = append(rows, []string{c.Name, c.Type, c.Kind, notNull, detail})
	}
	r.Table([]string{"Column", "Type", "Kind", "Not null", "Definition"}, rows)
	r.Println("")
}

func describeManifest(am *transform.AnalyzedModel) output.DescribeOutput {
	m := am.Manifest()
	out := output.DescribeOutput{
		Catalog:       m.Catalog,
		Schema:        m.Schema,
		Hash:          am.Hash(),
		Datasets:      []output.DatasetInfo{},
		Relationships: []output.RelationshipInfo{},
		Views:         []string{},
	}
	for _, model := range m.Models {
		out.Datasets = append(out.Datasets, output.DatasetInfo{
			Name:    model.Name,
			Kind:    mdl.DatasetModel.String(),
			Source:  modelSource(model),
			Columns: columnInfos(model.Columns, ""),
		})
	}
	for _, metric := range m.Metrics {
		cols := columnInfos(metric.Dimension, "dimension")
		cols = append(cols, columnInfos(metric.Measure, "measure")...)
		out.Datasets = append(out.Datasets, output.DatasetInfo{
			Name:    metric.Name,
			Kind:    mdl.DatasetMetric.String(),
			Source:  metric.BaseObject,
			Columns: cols,
		})
	}
	for _, rel := range m.Relationships {
		out.Relationships = append(out.Relationships, output.RelationshipInfo{
			Name:      rel.Name,
			Models:    rel.Models,
			JoinType:  string(rel.JoinType),
			Condition: rel.Condition,
		})
	}
	for _, v := range m.Views {
		out.Views = append(out.Views, v.Name)
	}
	return out
}

func modelSource(model *mdl.Model) string {
	switch {
	case model.TableReference != "":
		return model.TableReference
	case model.BaseObject != "":
		return model.BaseObject
	case model.RefSQL != "":
		return "(sql)"
	default:
		return ""
	}
}

// columnInfos describes cols. A non-empty kind overrides the kind derived
// from each column.
func columnInfos(cols []*mdl.Column, kind string) []output.ColumnInfo {
	out := make([]output.ColumnInfo, 0, len(cols))
	for _, c := range cols {
		k := kind
		if k == "" {
			k = columnKind(c)
		}
		out = append(out, output.ColumnInfo{
			Name:         c.Name,
			Type:         c.Type,
			Kind:         k,
			Expression:   c.Expression,
			Relationship: c.Relationship,
			NotNull:      c.NotNull,
		})
	}
	return out
}

func columnKind(c *mdl.Column) string {
	switch {
	case c.IsRelationship():
		return "relationship"
	case c.IsCalculated:
		return "calculated"
	case c.Expression != "":
		return "expression"
	default:
		return "source"
	}
}
