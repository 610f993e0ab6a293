package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/linkcrawl/internal/model"
)

// maxChartHosts caps the slices of the host pie chart; the rest are
// grouped under "other".
const maxChartHosts = 8

// MarkdownWriter outputs results in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the result in Markdown format.
func (w *MarkdownWriter) Write(result *model.CrawlResult) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, result)
	w.writeHosts(md, result)
	w.writeErrors(md, result)
	w.writeURLs(md, result)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, result *model.CrawlResult) {
	md.H1("Link Collection Report")
	md.PlainText("")

	started := "-"
	if !result.Stats.StartTime.IsZero() {
		started = result.Stats.StartTime.Format(dateLayout)
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Initial URL", markdown.Code(result.InitialURL)},
			{"Depth", strconv.Itoa(result.Depth)},
			{"Started", started},
			{"Duration", strconv.FormatInt(result.Stats.DurationMs, 10) + " ms"},
			{"URLs Scanned", strconv.Itoa(result.Stats.TotalURLsScanned)},
			{"URLs Collected", strconv.Itoa(result.Stats.TotalURLsCollected)},
			{"Max Depth Reached", strconv.Itoa(result.Stats.MaxDepthReached)},
			{"Status", Status(result)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeHosts(md *markdown.Markdown, result *model.CrawlResult) {
	md.H2("Hosts")
	md.PlainText("")

	hosts := result.HostCounts()
	if len(hosts) == 0 {
		md.PlainText("No URLs collected.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(hosts))
	for i, h := range hosts {
		rows[i] = []string{markdown.Code(h.Host), strconv.Itoa(h.Count)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Host", "URLs"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(hosts) > 1 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Collected URLs by Host"),
			piechart.WithShowData(true),
		)
		var other uint64
		for i, h := range hosts {
			if i >= maxChartHosts {
				other += uint64(h.Count)
				continue
			}
			chart.LabelAndIntValue(h.Host, uint64(h.Count))
		}
		if other > 0 {
			chart.LabelAndIntValue("other", other)
		}

		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeErrors(md *markdown.Markdown, result *model.CrawlResult) {
	md.H2("Errors")
	md.PlainText("")

	if !result.HasErrors() {
		md.Tip("No errors were recorded during the crawl.")
		md.PlainText("")
		return
	}

	counts := result.ErrorCounts()
	if counts[model.ErrorTypeCollection] > 0 {
		md.Caution("The crawl was aborted. The results below are partial.")
	} else {
		md.Warningf("%d page(s) could not be fetched or parsed.", len(result.Errors))
	}
	md.PlainText("")

	types := []model.ErrorType{model.ErrorTypeFetch, model.ErrorTypeParse, model.ErrorTypeCollection}
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Errors by Type"),
		piechart.WithShowData(true),
	)
	for _, t := range types {
		if counts[t] > 0 {
			chart.LabelAndIntValue(t.String(), uint64(counts[t]))
		}
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")

	rows := make([][]string, len(result.Errors))
	for i, e := range result.Errors {
		rows[i] = []string{
			e.ErrorType.String(),
			truncateString(e.URL, 60),
			truncateString(e.Message, 80),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Type", "URL", "Message"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeURLs(md *markdown.Markdown, result *model.CrawlResult) {
	md.H2("Collected URLs")
	md.PlainText("")

	if len(result.AllCollectedURLs) == 0 {
		md.PlainText("No URLs collected.")
		md.PlainText("")
		return
	}

	md.OrderedList(result.AllCollectedURLs...)
	md.PlainText("")

	if len(result.LinkRelationships) > 0 {
		lines := make([]string, len(result.LinkRelationships))
		for i, rel := range result.LinkRelationships {
			lines[i] = "- " + rel.Source + " -> " + rel.Found
		}
		md.Details("Link relationships ("+strconv.Itoa(len(lines))+")", "\n"+strings.Join(lines, "\n")+"\n")
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by %s*", markdown.Link("linkcrawl", "https://github.com/nao1215/linkcrawl"))
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
