package crawler

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/time/rate"
)

// Fetcher defaults.
const (
	// DefaultUserAgent identifies the crawler to the sites it visits.
	DefaultUserAgent = "linkcrawl/1.0 (+https://github.com/nao1215/linkcrawl)"

	// DefaultTimeout bounds a single request including redirects and body.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodySize caps how much of a response body is read.
	DefaultMaxBodySize int64 = 5 * 1024 * 1024

	// maxRedirects matches the net/http default and is enforced explicitly
	// so that custom transports get the same behavior.
	maxRedirects = 10
)

// Fetch failure classes. A *FetchError always wraps exactly one of them.
var (
	// ErrInvalidURL means the URL was empty, unparseable or not http(s).
	// No network call is made.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrHTTPStatus means the final response status was outside 2xx.
	ErrHTTPStatus = errors.New("unexpected HTTP status")

	// ErrNotHTML means the Content-Type header was missing or not HTML.
	ErrNotHTML = errors.New("content is not HTML")

	// ErrEmptyBody means the body was empty after trimming whitespace.
	ErrEmptyBody = errors.New("empty response body")

	// ErrTransport covers DNS failures, timeouts, resets and decoding errors.
	ErrTransport = errors.New("transport failure")
)

// FetchError describes why a page could not be retrieved.
type FetchError struct {
	// URL is the requested URL.
	URL string

	// Reason is a human-readable explanation suitable for an error entry.
	Reason string

	// Err is the failure class, possibly joined with the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
}

// Unwrap returns the wrapped failure class.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Page is a successfully fetched HTML document.
type Page struct {
	// URL is the URL that was requested.
	URL string

	// FinalURL is the URL after following redirects.
	FinalURL string

	// StatusCode is the HTTP status of the final response.
	StatusCode int

	// ContentType is the Content-Type header of the final response.
	ContentType string

	// HTML is the decoded document body.
	HTML string
}

// Fetcher retrieves a single HTML document.
//
// Fetch waits delay before issuing the request. Implementations must honor
// ctx during both the wait and the request, and report every failure as an
// error instead of panicking.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, delay time.Duration) (*Page, error)
}

// HTTPFetcher implements Fetcher with net/http.
type HTTPFetcher struct {
	client      *http.Client
	transport   http.RoundTripper
	timeout     time.Duration
	userAgent   string
	maxBodySize int64
	headers     map[string]string
	cookie      string
	limiter     *rate.Limiter
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) {
		f.userAgent = ua
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		f.timeout = d
	}
}

// WithMaxBodySize sets the maximum number of body bytes read.
// Longer bodies are truncated.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *HTTPFetcher) {
		f.maxBodySize = size
	}
}

// WithHeaders adds extra request headers. They are applied after the
// defaults and may override them.
func WithHeaders(headers map[string]string) FetcherOption {
	return func(f *HTTPFetcher) {
		if f.headers == nil {
			f.headers = make(map[string]string, len(headers))
		}
		maps.Copy(f.headers, headers)
	}
}

// WithCookie sets a raw Cookie header sent with every request.
func WithCookie(cookie string) FetcherOption {
	return func(f *HTTPFetcher) {
		f.cookie = cookie
	}
}

// WithTransport replaces the HTTP transport, e.g. with a SOCKS5 one.
func WithTransport(rt http.RoundTripper) FetcherOption {
	return func(f *HTTPFetcher) {
		f.transport = rt
	}
}

// WithRateLimiter makes every request wait on a limiter.
// One limiter may be shared by fetchers of concurrent crawls to cap their
// aggregate request rate.
func WithRateLimiter(l *rate.Limiter) FetcherOption {
	return func(f *HTTPFetcher) {
		f.limiter = l
	}
}

// NewHTTPFetcher creates an HTTPFetcher with the given options.
func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		timeout:     DefaultTimeout,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.transport == nil {
		f.transport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
	}

	f.client = &http.Client{
		Timeout:   f.timeout,
		Transport: f.transport,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	return f
}

// Fetch validates rawURL, waits delay, then downloads the document.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string, delay time.Duration) (*Page, error) {
	if err := validateFetchURL(rawURL); err != nil {
		return nil, &FetchError{URL: rawURL, Reason: err.Error(), Err: err}
	}

	if err := wait(ctx, delay); err != nil {
		return nil, transportError(rawURL, err)
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, transportError(rawURL, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Reason: err.Error(), Err: fmt.Errorf("%w: %w", ErrInvalidURL, err)}
	}
	f.setHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, transportError(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{
			URL:    rawURL,
			Reason: fmt.Sprintf("HTTP status %d", resp.StatusCode),
			Err:    ErrHTTPStatus,
		}
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		reason := "missing Content-Type"
		if contentType != "" {
			reason = fmt.Sprintf("Content-Type %q is not HTML", contentType)
		}
		return nil, &FetchError{URL: rawURL, Reason: reason, Err: ErrNotHTML}
	}

	body, err := f.readBody(resp)
	if err != nil {
		return nil, transportError(rawURL, err)
	}
	if strings.TrimSpace(body) == "" {
		return nil, &FetchError{URL: rawURL, Reason: "response body is empty", Err: ErrEmptyBody}
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Page{
		URL:         rawURL,
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		HTML:        body,
	}, nil
}

// setHeaders applies default, extra and cookie headers.
func (f *HTTPFetcher) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	for k, v := range f.headers {
		req.Header.Set(k, v)
	}
	if f.cookie != "" {
		req.Header.Set("Cookie", f.cookie)
	}
}

// readBody decodes the response body according to Content-Encoding and
// reads at most maxBodySize bytes of the decoded stream.
func (f *HTTPFetcher) readBody(resp *http.Response) (string, error) {
	reader := io.Reader(resp.Body)

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	case "br":
		reader = brotli.NewReader(resp.Body)
	}

	body, err := io.ReadAll(io.LimitReader(reader, f.maxBodySize))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

// validateFetchURL rejects URLs that must not reach the network.
func validateFetchURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return nil
}

// wait sleeps for d unless ctx ends first. A non-positive d returns at once.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// transportError wraps err as an ErrTransport FetchError. The cause stays in
// the chain so callers can detect context cancellation.
func transportError(rawURL string, err error) *FetchError {
	return &FetchError{
		URL:    rawURL,
		Reason: err.Error(),
		Err:    fmt.Errorf("%w: %w", ErrTransport, err),
	}
}
