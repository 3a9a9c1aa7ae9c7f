package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/semql/pkg/adapter"
	"github.com/leapstack-labs/semql/pkg/dialect"
)

// BuildInfo identifies a semql binary.
type BuildInfo struct {
	Version   string
	BuildDate string
	GitCommit string
}

// NewVersionCommand creates the version command.
func NewVersionCommand(info BuildInfo) *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display semql version, build information and the compiled-in dialects and adapters.`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			if short {
				_, _ = fmt.Fprintln(w, info.Version)
				return
			}
			_, _ = fmt.Fprintf(w, "semql v%s\n", info.Version)
			_, _ = fmt.Fprintf(w, "commit %s, built %s\n", info.GitCommit, info.BuildDate)
			_, _ = fmt.Fprintf(w, "dialects: %s\n", strings.Join(dialect.List(), ", "))
			_, _ = fmt.Fprintf(w, "adapters: %s\n", strings.Join(adapter.ListAdapters(), ", "))
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "Print the version number only")
	return cmd
}
