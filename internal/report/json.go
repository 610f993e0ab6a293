package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/linkcrawl/internal/model"
)

// JSONWriter outputs results in the CrawlResult wire shape.
//
// Design decision: We use standard encoding/json because the wire shape is
// defined by the struct tags on model.CrawlResult and needs nothing beyond
// what the standard encoder provides.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the result as one JSON document followed by a newline.
func (w *JSONWriter) Write(result *model.CrawlResult) (int, error) {
	return w.Encode(result)
}

// Encode marshals any value (a history listing, a comparison) with the
// writer's indentation settings.
func (w *JSONWriter) Encode(v any) (int, error) {
	var (
		data []byte
		err  error
	)

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}
