package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/nao1215/linkcrawl/internal/filter"
	"github.com/nao1215/linkcrawl/internal/model"
)

// Collector drives depth-bounded crawls.
// It holds only configuration; every Collect call owns its own state, so a
// Collector may run several independent crawls at once.
type Collector struct {
	fetcher  Fetcher
	logger   *slog.Logger
	maxPages int
	now      func() time.Time
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithLogger sets the logger used for crawl progress.
func WithLogger(logger *slog.Logger) CollectorOption {
	return func(c *Collector) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMaxPages caps the number of fetches per crawl. 0 means unlimited.
// Admitted URLs beyond the budget are still recorded but not fetched.
func WithMaxPages(n int) CollectorOption {
	return func(c *Collector) {
		c.maxPages = n
	}
}

// WithClock replaces the time source used for statistics.
func WithClock(now func() time.Time) CollectorOption {
	return func(c *Collector) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCollector creates a Collector that retrieves pages with fetcher.
func NewCollector(fetcher Fetcher, opts ...CollectorOption) *Collector {
	c := &Collector{
		fetcher: fetcher,
		logger:  slog.New(slog.DiscardHandler),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// crawlState is the mutable state of one crawl. It is only touched by the
// goroutine running Collect.
type crawlState struct {
	ctx     context.Context
	req     model.CrawlRequest
	filter  *filter.Filter
	depth   int
	visited map[string]struct{}
	fetches int
	result  *model.CrawlResult
}

// Collect crawls from req.InitialURL and returns what it found.
//
// An invalid request returns a *model.InputError and no result. Per-page
// failures are recorded in the result and never abort the crawl. If ctx is
// cancelled the partial result is returned together with ctx.Err().
func (c *Collector) Collect(ctx context.Context, req model.CrawlRequest) (*model.CrawlResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	f, err := filter.Compile(req.Filters)
	if err != nil {
		return nil, &model.InputError{Field: "filters", Err: err}
	}

	st := &crawlState{
		ctx:     ctx,
		req:     req,
		filter:  f,
		depth:   req.ClampedDepth(),
		visited: make(map[string]struct{}),
	}
	st.result = model.NewCrawlResult(req.InitialURL, st.depth)

	// Discovered links are normalized, so a link back to the seed arrives in
	// normalized form and must not be crawled a second time.
	if seed, err := url.Parse(req.InitialURL); err == nil {
		if normalized := normalizeURL(seed).String(); normalized != req.InitialURL {
			st.visited[normalized] = struct{}{}
		}
	}

	c.logger.Info("crawl started",
		"url", req.InitialURL,
		"depth", st.depth,
		"filters", f.Len(),
		"delay", req.Delay)

	start := c.now()
	c.run(st)
	end := c.now()

	st.result.Stats.StartTime = stamp(start)
	st.result.Stats.EndTime = stamp(end)
	st.result.Stats.DurationMs = end.Sub(start).Milliseconds()

	if err := ctx.Err(); err != nil {
		st.addError(req.InitialURL, model.ErrorTypeCollection, fmt.Sprintf("crawl cancelled: %v", err))
		c.logger.Warn("crawl cancelled",
			"url", req.InitialURL,
			"collected", st.result.Stats.TotalURLsCollected,
			"error", err)
		return st.result, err
	}

	c.logger.Info("crawl finished",
		"url", req.InitialURL,
		"scanned", st.result.Stats.TotalURLsScanned,
		"collected", st.result.Stats.TotalURLsCollected,
		"errors", len(st.result.Errors),
		"duration_ms", st.result.Stats.DurationMs)

	return st.result, nil
}

// run executes the traversal and converts an escaping panic into a
// CollectionError entry.
func (c *Collector) run(st *crawlState) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("crawl aborted by panic", "url", st.req.InitialURL, "panic", r)
			st.addError(st.req.InitialURL, model.ErrorTypeCollection, fmt.Sprintf("unexpected failure: %v", r))
		}
	}()

	c.visit(st, st.req.InitialURL, 0, "")
}

// visit processes one URL node and recurses into its children.
func (c *Collector) visit(st *crawlState, rawURL string, depth int, source string) {
	if st.ctx.Err() != nil {
		return
	}

	if _, ok := st.visited[rawURL]; ok {
		return
	}
	st.visited[rawURL] = struct{}{}
	st.result.Stats.TotalURLsScanned++

	// The seed is always admitted.
	if depth > 0 && !st.filter.IsAdmitted(rawURL, st.req.InitialURL) {
		c.logger.Debug("url rejected", "url", rawURL, "depth", depth)
		return
	}

	st.record(rawURL, depth, source)

	if depth >= st.depth {
		return
	}

	if c.maxPages > 0 && st.fetches >= c.maxPages {
		c.logger.Debug("page budget exhausted, not fetching", "url", rawURL, "max_pages", c.maxPages)
		return
	}
	st.fetches++

	c.logger.Debug("fetching", "url", rawURL, "depth", depth)
	page, err := c.fetcher.Fetch(st.ctx, rawURL, st.req.Delay)
	if err != nil {
		// Cancellation is reported once for the whole crawl.
		if st.ctx.Err() != nil {
			return
		}
		c.logger.Debug("fetch failed", "url", rawURL, "error", err)
		st.addError(rawURL, model.ErrorTypeFetch, fetchMessage(err))
		return
	}

	resolved := page.FinalURL
	if resolved == "" {
		resolved = rawURL
	}

	scope := Scope{}
	if depth == 0 {
		scope = Scope{Selector: st.req.ScopeSelector, Element: st.req.ScopeElement}
	}

	links, err := extract(page.HTML, resolved, scope)
	if err != nil {
		c.logger.Debug("parse failed", "url", rawURL, "error", err)
		st.addError(rawURL, model.ErrorTypeParse, err.Error())
		return
	}

	c.logger.Debug("links extracted", "url", rawURL, "count", len(links))

	// Links are attributed to the admitted node, not to its redirect target.
	for _, link := range links {
		c.visit(st, link, depth+1, rawURL)
	}
}

// extract runs ExtractLinks and turns a panic into an error.
func extract(htmlDoc, baseURL string, scope Scope) (links []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			links = nil
			err = fmt.Errorf("link extraction panicked: %v", r)
		}
	}()
	return ExtractLinks(htmlDoc, baseURL, scope, baseURL)
}

// record adds an admitted URL to the result.
func (st *crawlState) record(rawURL string, depth int, source string) {
	st.result.AllCollectedURLs = append(st.result.AllCollectedURLs, rawURL)
	st.result.Stats.TotalURLsCollected++
	if source != "" {
		st.result.LinkRelationships = append(st.result.LinkRelationships, model.LinkRelationship{
			Source: source,
			Found:  rawURL,
		})
	}
	st.result.Stats.MaxDepthReached = max(st.result.Stats.MaxDepthReached, depth)
}

// addError appends an error entry.
func (st *crawlState) addError(rawURL string, typ model.ErrorType, message string) {
	st.result.Errors = append(st.result.Errors, model.ErrorEntry{
		URL:       rawURL,
		ErrorType: typ,
		Message:   message,
	})
}

// fetchMessage extracts the human-readable reason from a fetch failure.
func fetchMessage(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return err.Error()
}

// stamp normalizes a timestamp for the result: UTC, millisecond precision.
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
