package model

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// MaxCrawlDepth is the hard upper bound on crawl depth.
// Requests asking for more are clamped rather than rejected.
const MaxCrawlDepth = 5

// CrawlRequest is the fully resolved input of one crawl.
// It is passed by value and never modified once the crawl starts.
//
// Design decision: The CLI and configuration layers carry loosely typed
// options (flags, YAML, per-target overrides). All of them collapse into
// this one struct, validated once by Validate(), so the traversal never
// re-checks its input.
type CrawlRequest struct {
	// InitialURL is the seed URL. It must be an absolute http(s) URL.
	InitialURL string `json:"initialUrl" yaml:"initialUrl"`

	// MaxDepth is the requested number of hops from the seed.
	// Values above MaxCrawlDepth are clamped by ClampedDepth().
	MaxDepth int `json:"maxDepth" yaml:"maxDepth"`

	// Filters are the admission conditions, ORed together.
	// Empty means every URL that passes the unconditional checks is admitted.
	Filters []FilterCondition `json:"filters,omitempty" yaml:"filters,omitempty"`

	// ScopeSelector is a CSS selector narrowing link extraction on the
	// seed page only.
	ScopeSelector string `json:"scopeSelector,omitempty" yaml:"scopeSelector,omitempty"`

	// ScopeElement is an element name narrowing link extraction on the
	// seed page only. It is used when ScopeSelector matches nothing.
	ScopeElement string `json:"scopeElement,omitempty" yaml:"scopeElement,omitempty"`

	// Delay is the pacing wait performed before every fetch.
	Delay time.Duration `json:"delay" yaml:"delay"`
}

// Validate checks the request and returns an *InputError describing the
// first problem found.
func (r CrawlRequest) Validate() error {
	if strings.TrimSpace(r.InitialURL) == "" {
		return &InputError{Field: "initialUrl", Err: ErrEmptyURL}
	}

	u, err := url.Parse(r.InitialURL)
	if err != nil {
		return &InputError{Field: "initialUrl", Value: r.InitialURL, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &InputError{Field: "initialUrl", Value: r.InitialURL, Err: ErrUnsupportedScheme}
	}
	if u.Hostname() == "" {
		return &InputError{Field: "initialUrl", Value: r.InitialURL, Err: ErrMissingHost}
	}

	if r.MaxDepth < 0 {
		return &InputError{Field: "maxDepth", Value: strconv.Itoa(r.MaxDepth), Err: ErrNegativeDepth}
	}
	if r.Delay < 0 {
		return &InputError{Field: "delay", Value: r.Delay.String(), Err: ErrNegativeDelay}
	}

	return nil
}

// ClampedDepth returns min(MaxDepth, MaxCrawlDepth).
func (r CrawlRequest) ClampedDepth() int {
	return min(r.MaxDepth, MaxCrawlDepth)
}
