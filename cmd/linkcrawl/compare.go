package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/linkcrawl/internal/config"
	"github.com/nao1215/linkcrawl/internal/database"
	"github.com/nao1215/linkcrawl/internal/report"
)

// compareTimeLayout is used for run timestamps in comparison output.
const compareTimeLayout = "2006-01-02 15:04"

// NewCompareCmd creates the compare command.
// This command diffs the URL sets of archived runs.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [url]",
		Short: "Compare the links of archived runs",
		Long: `Compare shows which URLs appeared or disappeared between two archived runs
of the same target.

By default the two most recent runs of the target are compared. With
--with-run-id, the given run is compared with the most recent run of its
target. Runs are archived with 'linkcrawl collect --save'.

Examples:
  # Compare the latest two runs
  linkcrawl compare https://example.com

  # Compare an older run with the latest one
  linkcrawl compare --with-run-id <run-id>

  # Output the comparison as JSON
  linkcrawl compare --json https://example.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	cmd.Flags().StringP("with-run-id", "i", "",
		"Compare this run with the latest run of its target (see 'linkcrawl history')")
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	withRunID, err := cmd.Flags().GetString("with-run-id")
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

	// Validate arguments before opening the database.
	var target string
	if len(args) > 0 {
		target = args[0]
	}
	if target == "" && withRunID == "" {
		return errors.New("a target URL is required (use 'linkcrawl history --list-targets' to see archived targets)")
	}

	db, err := openHistoryDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	comparison, err := compareRuns(context.Background(), db, target, withRunID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case jsonOutput:
		_, err = report.NewJSONWriter(out, report.WithPrettyPrint()).Encode(comparison)
		return err
	case markdownOutput:
		return outputComparisonMarkdown(out, comparison)
	default:
		outputComparisonText(out, comparison)
		return nil
	}
}

// compareRuns selects the runs to compare. When both target and runID are
// given, the run must belong to target.
func compareRuns(ctx context.Context, db *database.HistoryDB, target, runID string) (*database.Comparison, error) {
	if runID == "" {
		comparison, err := db.CompareLatest(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("failed to compare runs: %w", err)
		}
		return comparison, nil
	}

	comparison, err := db.CompareWithLatest(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to compare with run %s: %w", runID, err)
	}
	if target != "" && comparison.Base.Target != target {
		return nil, fmt.Errorf("run %s belongs to %s, not %s", runID, comparison.Base.Target, target)
	}
	return comparison, nil
}

// outputComparisonText writes the comparison in human-readable text format.
func outputComparisonText(out io.Writer, c *database.Comparison) {
	fmt.Fprintf(out, "Run Comparison: %s\n", c.Head.Target)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nStatus: %s\n", formatChangeStatus(c))

	fmt.Fprintf(out, "\nPrevious run: %s  (%s)\n", c.Base.RunID, c.Base.ArchivedAt.Local().Format(historyTimeLayout))
	fmt.Fprintf(out, "Current run:  %s  (%s)\n", c.Head.RunID, c.Head.ArchivedAt.Local().Format(historyTimeLayout))

	fmt.Fprintln(out, "\nSummary:")
	fmt.Fprintf(out, "  %-10s  %-10s  %-10s  %-10s\n", "Metric", "Previous", "Current", "Change")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 45))
	fmt.Fprintf(out, "  %-10s  %-10d  %-10d  %-10s\n", "Collected",
		c.Base.Collected, c.Head.Collected, formatDelta(c.Head.Collected-c.Base.Collected))
	fmt.Fprintf(out, "  %-10s  %-10d  %-10d  %-10s\n", "Scanned",
		c.Base.Scanned, c.Head.Scanned, formatDelta(c.Head.Scanned-c.Base.Scanned))
	fmt.Fprintf(out, "  %-10s  %-10d  %-10d  %-10s\n", "Errors",
		totalErrors(c.Base), totalErrors(c.Head), formatDelta(totalErrors(c.Head)-totalErrors(c.Base)))

	if len(c.Added) > 0 {
		fmt.Fprintf(out, "\nAdded URLs (%d):\n", len(c.Added))
		for _, u := range c.Added {
			fmt.Fprintf(out, "  [+] %s\n", u)
		}
	}

	if len(c.Removed) > 0 {
		fmt.Fprintf(out, "\nRemoved URLs (%d):\n", len(c.Removed))
		for _, u := range c.Removed {
			fmt.Fprintf(out, "  [-] %s\n", u)
		}
	}

	if c.Unchanged > 0 {
		fmt.Fprintf(out, "\nUnchanged: %d URLs\n", c.Unchanged)
	}
}

// outputComparisonMarkdown writes the comparison in Markdown format.
func outputComparisonMarkdown(out io.Writer, c *database.Comparison) error {
	md := markdown.NewMarkdown(out)

	md.H1("Run Comparison: " + c.Head.Target)
	md.H2("Summary")
	md.PlainTextf("%s %s", markdown.Bold("Status:"), formatChangeStatus(c))

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows: [][]string{
			{"Run", markdown.Code(c.Base.RunID), markdown.Code(c.Head.RunID), "-"},
			{"Archived", c.Base.ArchivedAt.Local().Format(compareTimeLayout), c.Head.ArchivedAt.Local().Format(compareTimeLayout), "-"},
			{"Collected", strconv.Itoa(c.Base.Collected), strconv.Itoa(c.Head.Collected), formatDelta(c.Head.Collected - c.Base.Collected)},
			{"Scanned", strconv.Itoa(c.Base.Scanned), strconv.Itoa(c.Head.Scanned), formatDelta(c.Head.Scanned - c.Base.Scanned)},
			{"Errors", strconv.Itoa(totalErrors(c.Base)), strconv.Itoa(totalErrors(c.Head)), formatDelta(totalErrors(c.Head) - totalErrors(c.Base))},
		},
	})

	if len(c.Added) > 0 {
		md.H2(fmt.Sprintf("Added URLs (%d)", len(c.Added)))
		md.BulletList(c.Added...)
	}

	if len(c.Removed) > 0 {
		md.H2(fmt.Sprintf("Removed URLs (%d)", len(c.Removed)))
		removed := make([]string, len(c.Removed))
		for i, u := range c.Removed {
			removed[i] = markdown.Strikethrough(u)
		}
		md.BulletList(removed...)
	}

	if c.Unchanged > 0 {
		md.HorizontalRule()
		md.PlainText(markdown.Italic(fmt.Sprintf("%d URLs unchanged", c.Unchanged)))
	}

	return md.Build()
}

// formatChangeStatus summarizes whether the URL set changed.
func formatChangeStatus(c *database.Comparison) string {
	if !c.HasChanges() {
		return "UNCHANGED"
	}
	return fmt.Sprintf("CHANGED (+%d / -%d)", len(c.Added), len(c.Removed))
}

// totalErrors returns the number of errors recorded by a run.
func totalErrors(meta database.RunMetadata) int {
	total := 0
	for _, n := range meta.ErrorSummary {
		total += n
	}
	return total
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
