package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/semql/internal/cli/output"
	"github.com/leapstack-labs/semql/internal/state"
)

// HistoryOptions holds options for the history list command.
type HistoryOptions struct {
	Limit    int
	Failed   bool
	Manifest string
}

// NewHistoryCommand creates the history command and its subcommands.
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded transforms",
		Long: `List, show and clear the transforms recorded in the history database.

History is recorded by transform and serve when history.enabled is set.`,
	}

	cmd.AddCommand(newHistoryListCommand())
	cmd.AddCommand(newHistoryShowCommand())
	cmd.AddCommand(newHistoryClearCommand())
	return cmd
}

func newHistoryListCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recorded transforms, newest first",
		Example: `  # Show the last 10 failures
  semql history list --failed --limit 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistoryList(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "Max entries to show")
	cmd.Flags().BoolVar(&opts.Failed, "failed", false, "Only show failed transforms")
	cmd.Flags().StringVar(&opts.Manifest, "manifest-hash", "", "Only show transforms of this manifest hash")

	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one recorded transform",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryShow(cmd, args[0])
		},
	}
}

func newHistoryClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every recorded transform",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistoryClear(cmd)
		},
	}
}

// openHistory opens the history store, failing when history is disabled.
func openHistory(cmd *cobra.Command) (*CommandContext, *state.SQLiteStore, error) {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return nil, nil, err
	}
	store, err := cc.OpenHistory()
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return nil, nil, fmt.Errorf("history is disabled (set history.enabled in semql.yaml)")
	}
	return cc, store, nil
}

func runHistoryList(cmd *cobra.Command, opts *HistoryOptions) error {
	cc, store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.List(cmd.Context(), state.ListOptions{
		Limit:        opts.Limit,
		ManifestHash: opts.Manifest,
		FailedOnly:   opts.Failed,
	})
	if err != nil {
		return err
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		entries := make([]output.HistoryEntry, 0, len(records))
		for _, rec := range records {
			entries = append(entries, historyEntry(rec))
		}
		return r.JSON(entries)
	}

	if len(records) == 0 {
		r.Muted("No transforms recorded")
		return nil
	}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		status := "ok"
		if rec.Failed() {
			status = "failed"
		}
		rows = append(rows, []string{
			rec.ID,
			rec.CreatedAt.Local().Format(time.DateTime),
			status,
			strconv.FormatInt(rec.Duration.Milliseconds(), 10) + "ms",
			truncate(rec.SQL, 60),
		})
	}
	r.Table([]string{"ID", "Time", "Status", "Duration", "SQL"}, rows)
	return nil
}

func runHistoryShow(cmd *cobra.Command, id string) error {
	cc, store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	rec, err := store.Get(cmd.Context(), id)
	if err != nil {
		return err
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(historyEntry(rec))
	}

	r.Header(1, "Transform "+rec.ID)
	r.Println(output.FormatKeyValue("Manifest", rec.ManifestHash))
	r.Println(output.FormatKeyValue("Time", rec.CreatedAt.Local().Format(time.RFC3339)))
	r.Println(output.FormatKeyValue("Duration", rec.Duration.String()))
	r.Println("")
	r.Println(output.FormatCodeBlock("sql", rec.SQL))
	r.Println("")
	if rec.Failed() {
		r.Println(output.FormatCodeBlock("text", rec.Error))
		return nil
	}
	r.Println(output.FormatCodeBlock("sql", rec.Rewritten))
	return nil
}

func runHistoryClear(cmd *cobra.Command) error {
	cc, store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	n, err := store.Clear(cmd.Context())
	if err != nil {
		return err
	}
	cc.Renderer.Success(fmt.Sprintf("deleted %d transforms", n))
	return nil
}

func historyEntry(rec *state.Record) output.HistoryEntry {
	return output.HistoryEntry{
		ID:         rec.ID,
		Manifest:   rec.ManifestHash,
		SQL:        rec.SQL,
		Rewritten:  rec.Rewritten,
		Error:      rec.Error,
		DurationMS: rec.Duration.Milliseconds(),
		CreatedAt:  rec.CreatedAt.Format(time.RFC3339),
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
