package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and Config.CrawlRequest().
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoTarget is returned when no URL to crawl was given.
	ErrNoTarget = errors.New("no target specified: provide one or more URLs")

	// ErrInvalidTimeout is returned when the per-request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidDepth is returned when the crawl depth is negative.
	ErrInvalidDepth = errors.New("invalid depth: must be non-negative")

	// ErrInvalidMaxPages is returned when the page budget is negative.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative (0 means unlimited)")

	// ErrInvalidBatchSize is returned when the batch concurrency is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidRate is returned when the aggregate request rate is negative.
	ErrInvalidRate = errors.New("invalid rate: must be non-negative (0 disables the limit)")

	// ErrInvalidRetry is returned when fewer than one attempt is requested.
	ErrInvalidRetry = errors.New("invalid retry count: must be at least 1")

	// ErrConflictingReportFormats is returned when more than one of --json,
	// --markdown and --text is given.
	ErrConflictingReportFormats = errors.New("conflicting report formats: choose only one of --json, --markdown or --text")

	// ErrConflictingProxy is returned when both --proxy and --tor are given.
	ErrConflictingProxy = errors.New("conflicting proxy settings: --proxy and --tor cannot be used together")

	// ErrInvalidCrawlDelay is returned when the pacing delay is negative.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrUnknownProfile is returned when a filter profile is not defined in
	// the configuration file.
	ErrUnknownProfile = errors.New("unknown filter profile")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
