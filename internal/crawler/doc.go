// Package crawler implements the depth-bounded link collector.
//
// # Architecture
//
// The package is built around three parts that the Collector composes:
//
//   - ExtractLinks: a pure function turning an HTML document into absolute,
//     normalized candidate URLs, optionally narrowed to a scope on the seed page
//   - Fetcher: retrieves one HTML document after a pacing delay and reports
//     failures as *FetchError values instead of aborting the crawl
//   - Collector: the recursive traversal driver that owns the visited set,
//     the collected URLs, link relationships, errors and statistics
//
// The URL admission rules live in the filter package and are consulted for
// every URL except the seed.
//
// # Traversal
//
// Traversal is depth-first and sequential. Children of a page are visited one
// at a time in extraction order, so the pacing delay runs before every fetch
// regardless of tree shape. The visited set guarantees each URL is scanned at
// most once per crawl. Nodes at the depth cap are recorded but never fetched.
//
// Design decision: All per-crawl state lives in a value created by Collect
// rather than on the Collector because:
//  1. One Collector can serve many crawls, sequentially or concurrently
//  2. No locking is needed inside a single crawl
//  3. A crawl cannot observe leftovers from a previous one
//
// # Usage
//
//	fetcher := crawler.NewHTTPFetcher(crawler.WithTimeout(30 * time.Second))
//	collector := crawler.NewCollector(fetcher, crawler.WithLogger(logger))
//	result, err := collector.Collect(ctx, model.CrawlRequest{
//		InitialURL: "https://example.com",
//		MaxDepth:   2,
//		Delay:      time.Second,
//	})
//
// # Cancellation
//
// The context is checked before every node and during the pacing wait and
// the HTTP request. A cancelled crawl returns its partial result together
// with the context error.
package crawler
