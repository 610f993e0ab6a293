package report

import (
	"io"
	"strings"

	"github.com/nao1215/linkcrawl/internal/model"
)

// TextWriter outputs the collected URLs, one per line, in admission order.
type TextWriter struct {
	baseWriter
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer) *TextWriter {
	return &TextWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the collected URLs of result.
func (w *TextWriter) Write(result *model.CrawlResult) (int, error) {
	if len(result.AllCollectedURLs) == 0 {
		return 0, nil
	}

	var sb strings.Builder
	for _, u := range result.AllCollectedURLs {
		sb.WriteString(u)
		sb.WriteByte('\n')
	}
	return io.WriteString(w.output, sb.String())
}
