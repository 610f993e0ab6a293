package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/linkcrawl/internal/config"
	"github.com/nao1215/linkcrawl/internal/database"
	"github.com/nao1215/linkcrawl/internal/model"
	"github.com/nao1215/linkcrawl/internal/report"
)

// historyTimeLayout is used for archive timestamps in text output.
const historyTimeLayout = "2006-01-02 15:04:05"

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "List archived crawl runs",
		Long: `History lists the runs archived with 'linkcrawl collect --save', newest first.

Without a URL, the runs of every target are listed.

Examples:
  # List every archived run
  linkcrawl history

  # List the runs of one target
  linkcrawl history https://example.com

  # List archived targets
  linkcrawl history --list-targets

  # Print an archived result again, as Markdown
  linkcrawl history --show <run-id> --markdown`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list-targets", "L", false,
		"List all archived targets")
	cmd.Flags().String("show", "",
		"Print the archived result of a run")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Print --show results as Markdown")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	listTargets, err := cmd.Flags().GetBool("list-targets")
	if err != nil {
		return err
	}
	showRunID, err := cmd.Flags().GetString("show")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}

	db, err := openHistoryDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	out := cmd.OutOrStdout()

	switch {
	case showRunID != "":
		format := report.FormatSimple
		if jsonOutput {
			format = report.FormatJSON
		} else if markdownOutput {
			format = report.FormatMarkdown
		}
		return showRun(ctx, db, showRunID, report.New(format, out, getVerboseFlag(cmd)))
	case listTargets:
		return listArchivedTargets(ctx, db, out, jsonOutput)
	default:
		var target string
		if len(args) > 0 {
			target = args[0]
		}
		return listRunHistory(ctx, db, target, out, jsonOutput)
	}
}

// openHistoryDB opens the existing history database named by --db-dir.
func openHistoryDB(cmd *cobra.Command) (*database.HistoryDB, error) {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false

	db, err := database.Open(dbDir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// showRun writes the archived result of a run.
func showRun(ctx context.Context, db *database.HistoryDB, runID string, w report.Writer) error {
	run, err := db.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	_, err = w.Write(run.Result)
	return err
}

// listArchivedTargets lists every target with at least one archived run.
func listArchivedTargets(ctx context.Context, db *database.HistoryDB, out io.Writer, jsonOutput bool) error {
	targets, err := db.ListTargets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list targets: %w", err)
	}

	if jsonOutput {
		_, err := report.NewJSONWriter(out, report.WithPrettyPrint()).Encode(targets)
		return err
	}

	if len(targets) == 0 {
		fmt.Fprintln(out, "No archived targets found in the database.")
		fmt.Fprintln(out, "\nUse 'linkcrawl collect --save <url>' to archive a crawl.")
		return nil
	}

	fmt.Fprintf(out, "Archived targets (%d):\n\n", len(targets))
	for _, target := range targets {
		fmt.Fprintf(out, "  • %s\n", target)
	}
	fmt.Fprintln(out, "\nUse 'linkcrawl history <url>' to see the runs of a target.")

	return nil
}

// listRunHistory lists the archived runs of target, or of all targets.
func listRunHistory(ctx context.Context, db *database.HistoryDB, target string, out io.Writer, jsonOutput bool) error {
	runs, err := db.History(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if jsonOutput {
		_, err := report.NewJSONWriter(out, report.WithPrettyPrint()).Encode(runs)
		return err
	}

	if len(runs) == 0 {
		if target != "" {
			fmt.Fprintf(out, "No archived runs found for %s\n", target)
		} else {
			fmt.Fprintln(out, "No archived runs found.")
		}
		fmt.Fprintln(out, "\nUse 'linkcrawl collect --save <url>' to archive a crawl.")
		return nil
	}

	if target != "" {
		fmt.Fprintf(out, "Run history for %s (%d runs):\n\n", target, len(runs))
	} else {
		fmt.Fprintf(out, "Run history (%d runs):\n\n", len(runs))
	}
	fmt.Fprintf(out, "  %-36s  %-19s  %5s  %9s  %-12s  %s\n",
		"Run ID", "Archived", "Depth", "Collected", "Errors", "Target")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 100))

	for _, run := range runs {
		fmt.Fprintf(out, "  %-36s  %-19s  %5d  %9d  %-12s  %s\n",
			run.RunID,
			run.ArchivedAt.Local().Format(historyTimeLayout),
			run.Depth,
			run.Collected,
			formatErrorSummary(run.ErrorSummary),
			run.Target,
		)
	}

	fmt.Fprintln(out, "\nUse 'linkcrawl compare <url>' to compare the latest two runs.")
	fmt.Fprintln(out, "Use 'linkcrawl compare --with-run-id <id>' to compare a run with the latest one.")

	return nil
}

// formatErrorSummary formats per-type error counts, e.g. "F:2 P:1".
func formatErrorSummary(summary map[model.ErrorType]int) string {
	abbrev := map[model.ErrorType]string{
		model.ErrorTypeFetch:      "F",
		model.ErrorTypeParse:      "P",
		model.ErrorTypeCollection: "C",
	}

	types := make([]model.ErrorType, 0, len(summary))
	for t, n := range summary {
		if n > 0 {
			types = append(types, t)
		}
	}
	if len(types) == 0 {
		return "none"
	}
	slices.Sort(types)

	parts := make([]string, 0, len(types))
	for _, t := range types {
		name, ok := abbrev[t]
		if !ok {
			name = string(t)
		}
		parts = append(parts, fmt.Sprintf("%s:%d", name, summary[t]))
	}
	return strings.Join(parts, " ")
}
