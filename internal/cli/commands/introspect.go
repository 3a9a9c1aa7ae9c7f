package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/semql/pkg/adapter"
	"github.com/leapstack-labs/semql/pkg/mdl"
)

// IntrospectOptions holds options for the introspect command.
type IntrospectOptions struct {
	Catalog string
	Schema  string
	Format  string
	Out     string
}

// NewIntrospectCommand creates the introspect command.
func NewIntrospectCommand() *cobra.Command {
	opts := &IntrospectOptions{}

	cmd := &cobra.Command{
		Use:   "introspect",
		Short: "Generate a manifest from the configured source",
		Long: `Connect to the configured source and write a manifest with one model per
table of the schema. Every column maps to the physical column of the same name.
The result is a starting point: add relationships, calculated columns and
metrics by hand.`,
		Example: `  # Print a manifest for the default schema
  semql introspect

  # Write the models of the sales schema as YAML
  semql introspect --schema sales --format yaml --out mdl.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIntrospect(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "Catalog of the generated manifest")
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "Schema to introspect (default: the source schema)")
	cmd.Flags().StringVar(&opts.Format, "format", "json", "Manifest format (json|yaml)")
	cmd.Flags().StringVar(&opts.Out, "out", "", "Write the manifest to a file instead of stdout")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runIntrospect(cmd *cobra.Command, opts *IntrospectOptions) error {
	var encode func(io.Writer, *mdl.Manifest) error
	switch opts.Format {
	case "json":
		encode = mdl.Encode
	case "yaml", "yml":
		encode = mdl.EncodeYAML
	default:
		return fmt.Errorf("unsupported format %q (expected json or yaml)", opts.Format)
	}

	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := cc.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	catalog := opts.Catalog
	if catalog == "" {
		catalog = cc.Cfg.Source.Database
	}
	m, err := adapter.Skeleton(ctx, a, catalog, opts.Schema)
	if err != nil {
		return fmt.Errorf("failed to introspect: %w", err)
	}
	cc.Logger.Info("introspected source", "source", cc.Cfg.Source.Type, "models", len(m.Models))

	if opts.Out == "" {
		return encode(cc.Renderer.Writer(), m)
	}

	f, err := os.Create(opts.Out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", opts.Out, err)
	}
	if err := encode(f, m); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	cc.Renderer.Success(fmt.Sprintf("wrote %d models to %s", len(m.Models), opts.Out))
	return nil
}
