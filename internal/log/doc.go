// Package log provides the crawler's slog setup with automatic redaction of
// secrets.
//
// Crawls are configured with cookies and extra request headers, and the URLs
// they discover often carry session tokens or signed query parameters. The
// SecureHandler wraps any slog.Handler and removes those values before a
// record is written:
//   - attributes whose key names a secret (cookie, authorization, token...)
//   - string values that look like credentials (JWT, bearer, basic auth)
//   - sensitive query parameter values inside URL-valued attributes
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("fetching", "url", "https://example.com/?token=abc")
//	// url=https://example.com/?token=REDACTED
//
// The returned logger is passed to the crawler through its WithLogger option;
// the crawler itself never configures logging.
package log
