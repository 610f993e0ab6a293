package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/linkcrawl/internal/model"
)

const (
	ruleWidth  = 70
	dateLayout = "2006-01-02 15:04:05 MST"
)

// SimpleWriter outputs a human-readable crawl summary.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors so the output can be piped to files without escape codes.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with nothing to show are printed.
	showEmpty bool

	// verbose adds the collected URLs and link relationships.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the result in human-readable format.
func (w *SimpleWriter) Write(result *model.CrawlResult) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, result)
	w.writeStats(&sb, result)
	w.writeHosts(&sb, result)
	w.writeErrors(&sb, result)
	if w.verbose {
		w.writeURLs(&sb, result)
		w.writeRelationships(&sb, result)
	}
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, result *model.CrawlResult) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                      LINK COLLECTION REPORT\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Initial URL:  %s\n", result.InitialURL)
	fmt.Fprintf(sb, "Depth:        %d\n", result.Depth)
	if !result.Stats.StartTime.IsZero() {
		fmt.Fprintf(sb, "Started:      %s\n", result.Stats.StartTime.Format(dateLayout))
	}
	fmt.Fprintf(sb, "Status:       %s\n", Status(result))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeStats(sb *strings.Builder, result *model.CrawlResult) {
	section(sb, "STATISTICS")

	s := result.Stats
	fmt.Fprintf(sb, "  URLs scanned:      %d\n", s.TotalURLsScanned)
	fmt.Fprintf(sb, "  URLs collected:    %d\n", s.TotalURLsCollected)
	fmt.Fprintf(sb, "  Relationships:     %d\n", len(result.LinkRelationships))
	fmt.Fprintf(sb, "  Max depth reached: %d\n", s.MaxDepthReached)
	fmt.Fprintf(sb, "  Duration:          %d ms\n", s.DurationMs)
	fmt.Fprintf(sb, "  Errors:            %d\n", len(result.Errors))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeHosts(sb *strings.Builder, result *model.CrawlResult) {
	hosts := result.HostCounts()
	if len(hosts) == 0 && !w.showEmpty {
		return
	}

	section(sb, "HOSTS")

	if len(hosts) == 0 {
		sb.WriteString("  No URLs collected\n\n")
		return
	}
	for _, h := range hosts {
		fmt.Fprintf(sb, "  %6d  %s\n", h.Count, h.Host)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeErrors(sb *strings.Builder, result *model.CrawlResult) {
	if !result.HasErrors() && !w.showEmpty {
		return
	}

	section(sb, "ERRORS")

	if !result.HasErrors() {
		sb.WriteString("  No errors\n\n")
		return
	}
	for _, e := range result.Errors {
		fmt.Fprintf(sb, "  [%s] %s\n", errorIndicator(e.ErrorType), e.URL)
		fmt.Fprintf(sb, "      %s\n", e.Message)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeURLs(sb *strings.Builder, result *model.CrawlResult) {
	section(sb, "COLLECTED URLS")
	for _, u := range result.AllCollectedURLs {
		fmt.Fprintf(sb, "  %s\n", u)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeRelationships(sb *strings.Builder, result *model.CrawlResult) {
	if len(result.LinkRelationships) == 0 && !w.showEmpty {
		return
	}

	section(sb, "LINK RELATIONSHIPS")
	for _, rel := range result.LinkRelationships {
		fmt.Fprintf(sb, "  %s -> %s\n", rel.Source, rel.Found)
	}
	sb.WriteString("\n")
}

// errorIndicator returns a short tag for the error type.
func errorIndicator(t model.ErrorType) string {
	switch t {
	case model.ErrorTypeFetch:
		return "fetch"
	case model.ErrorTypeParse:
		return "parse"
	case model.ErrorTypeCollection:
		return "abort"
	default:
		return "?"
	}
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("Report generated by linkcrawl\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
}

// Status summarizes how a crawl ended.
func Status(result *model.CrawlResult) string {
	counts := result.ErrorCounts()
	switch {
	case counts[model.ErrorTypeCollection] > 0:
		return "Aborted (partial results)"
	case result.HasErrors():
		return fmt.Sprintf("Complete with %d error(s)", len(result.Errors))
	default:
		return "Complete"
	}
}
