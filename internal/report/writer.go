package report

import (
	"io"

	"github.com/nao1215/linkcrawl/internal/model"
)

// Writer defines the interface for report output.
// Implementations write crawl results in various formats.
type Writer interface {
	// Write outputs the result to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(result *model.CrawlResult) (int, error)
}

// MultiWriter writes to multiple Writers in order.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the result to all configured Writers.
// Returns the total bytes written and stops on the first error.
func (m *MultiWriter) Write(result *model.CrawlResult) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(result)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Format names an output format.
type Format string

const (
	// FormatSimple is the human-readable summary (default).
	FormatSimple Format = "simple"
	// FormatText is the plain list of collected URLs.
	FormatText Format = "text"
	// FormatJSON is the CrawlResult wire shape.
	FormatJSON Format = "json"
	// FormatMarkdown is the Markdown report.
	FormatMarkdown Format = "markdown"
)

// New returns the Writer for format, writing to output.
// Unknown formats fall back to the simple writer.
func New(format Format, output io.Writer, verbose bool) Writer {
	switch format {
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint())
	case FormatMarkdown:
		return NewMarkdownWriter(output)
	case FormatText:
		return NewTextWriter(output)
	default:
		return NewSimpleWriter(output, WithVerbose(verbose))
	}
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
