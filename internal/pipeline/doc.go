// Package pipeline runs crawl jobs: one Pipeline of steps per target, and a
// BatchProcessor that runs several targets concurrently.
//
// A target goes through the steps of DefaultPipeline in order:
//
//  1. target_check rejects malformed .onion hosts, and onion hosts without
//     a proxy, before any network I/O
//  2. collect runs the crawl, retrying when the seed page itself failed
//  3. archive stores the finished result in the history database, when an
//     archiver is configured
//
// Each Job carries its own result, so crawls in a batch share nothing but
// the optional rate limiter inside their fetchers.
//
// Design decision: Retries live here rather than in the crawler, which never
// retries. A crawl is retried as a whole, and only when the seed page could
// not be fetched, because any later failure is already part of the result.
package pipeline
