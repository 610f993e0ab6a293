// Package report renders crawl results for people and tools.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable summary for terminal display
//   - TextWriter: One collected URL per line, for piping into other tools
//   - JSONWriter: The CrawlResult wire shape for tool integration
//   - MarkdownWriter: A shareable report with mermaid charts
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed with MultiWriter.
package report
