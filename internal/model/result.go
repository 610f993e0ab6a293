package model

import (
	"cmp"
	"net/url"
	"slices"
	"time"
)

// ErrorType classifies an ErrorEntry.
type ErrorType string

const (
	// ErrorTypeFetch is recorded when a page could not be retrieved:
	// non-2xx status, non-HTML content, empty body, or a transport failure.
	ErrorTypeFetch ErrorType = "FetchError"

	// ErrorTypeParse is recorded when links could not be extracted from a
	// fetched page.
	ErrorTypeParse ErrorType = "ParseError"

	// ErrorTypeCollection is recorded when the traversal itself was aborted
	// (a recovered panic or a cancelled context).
	ErrorTypeCollection ErrorType = "CollectionError"
)

// String returns the wire name of the error type.
func (t ErrorType) String() string {
	return string(t)
}

// LinkRelationship records that Found was discovered while scanning Source.
type LinkRelationship struct {
	Source string `json:"source"`
	Found  string `json:"found"`
}

// ErrorEntry is a recoverable, per-node failure recorded during a crawl.
type ErrorEntry struct {
	URL       string    `json:"url"`
	ErrorType ErrorType `json:"errorType"`
	Message   string    `json:"message"`
}

// Stats summarizes one crawl. The collector mutates it monotonically
// while the crawl runs; it is frozen once the result is returned.
type Stats struct {
	// StartTime and EndTime bracket the whole traversal.
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`

	// DurationMs is EndTime - StartTime in milliseconds.
	DurationMs int64 `json:"durationMs"`

	// TotalURLsScanned counts URLs taken off the visited-set check,
	// whether or not they were admitted.
	TotalURLsScanned int `json:"totalUrlsScanned"`

	// TotalURLsCollected counts admitted URLs.
	// It never exceeds TotalURLsScanned.
	TotalURLsCollected int `json:"totalUrlsCollected"`

	// MaxDepthReached is the deepest level at which a URL was admitted.
	MaxDepthReached int `json:"maxDepthReached"`
}

// CrawlResult is the single output value of a crawl.
//
// Design decision: Field names and JSON keys are a compatibility contract
// with report consumers, so the struct is kept flat and every list is
// non-nil (encoded as [] rather than null).
type CrawlResult struct {
	// InitialURL is the seed URL exactly as requested.
	InitialURL string `json:"initialUrl"`

	// Depth is the clamped maximum depth the crawl ran with.
	Depth int `json:"depth"`

	// AllCollectedURLs lists every admitted URL once, in admission order.
	AllCollectedURLs []string `json:"allCollectedUrls"`

	// LinkRelationships is append-only; several entries may share Found.
	LinkRelationships []LinkRelationship `json:"linkRelationships"`

	// Errors lists the per-node failures.
	Errors []ErrorEntry `json:"errors"`

	// Stats summarizes the run.
	Stats Stats `json:"stats"`
}

// NewCrawlResult creates an empty result for the given seed and depth.
func NewCrawlResult(initialURL string, depth int) *CrawlResult {
	return &CrawlResult{
		InitialURL:        initialURL,
		Depth:             depth,
		AllCollectedURLs:  make([]string, 0),
		LinkRelationships: make([]LinkRelationship, 0),
		Errors:            make([]ErrorEntry, 0),
	}
}

// HasErrors reports whether any error was recorded.
func (r *CrawlResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// ErrorCounts returns the number of errors per type.
func (r *CrawlResult) ErrorCounts() map[ErrorType]int {
	counts := make(map[ErrorType]int)
	for _, e := range r.Errors {
		counts[e.ErrorType]++
	}
	return counts
}

// HostCount is the number of collected URLs on one host.
type HostCount struct {
	Host  string `json:"host"`
	Count int    `json:"count"`
}

// HostCounts groups the collected URLs by hostname.
// The result is sorted by count (descending), then host name.
func (r *CrawlResult) HostCounts() []HostCount {
	counts := make(map[string]int)
	for _, raw := range r.AllCollectedURLs {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		counts[u.Hostname()]++
	}

	hosts := make([]HostCount, 0, len(counts))
	for host, n := range counts {
		hosts = append(hosts, HostCount{Host: host, Count: n})
	}
	slices.SortFunc(hosts, func(a, b HostCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Host, b.Host)
	})
	return hosts
}
