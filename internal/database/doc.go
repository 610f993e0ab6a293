// Package database provides SQLite-based archiving of finished crawls.
//
// This package implements the HistoryDB, which stores:
//   - Every archived CrawlResult as JSON, keyed by a UUID run ID
//   - The collected URL set of each run, one row per URL
//   - A per-run summary (collected count, error counts) for listings
//
// Archived results are read back only by reporting commands (history and
// compare). They are never fed into a new crawl: there is no resumable
// frontier and no crawl state survives a run.
//
// Design decision: We use SQLite (via modernc.org/sqlite) because the
// database is a single CGO-free file in the XDG data directory, and WAL mode
// lets a history listing run while another process archives a result.
package database
