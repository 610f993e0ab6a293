package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/nao1215/linkcrawl/internal/filter"
)

// ErrInvalidBaseURL is returned by ExtractLinks when the base URL cannot be
// used to resolve relative references.
var ErrInvalidBaseURL = errors.New("invalid base URL")

// Selectors used for the three extraction tiers.
const (
	linkSelector   = "a[href], link[href]"
	anchorSelector = "a[href]"
)

// ignoredSchemes are href schemes that never lead to a crawlable document.
var ignoredSchemes = []string{"javascript:", "mailto:", "tel:", "sms:", "file:", "data:"}

// Scope narrows link extraction to part of a document.
// It only applies to the seed page of a crawl.
type Scope struct {
	// Selector is a CSS selector. Matched anchors are used directly; other
	// matches contribute their anchor and link descendants.
	Selector string

	// Element is a tag name whose anchor descendants are used when
	// Selector is empty or matches nothing.
	Element string
}

// IsZero reports whether the scope places no restriction.
func (s Scope) IsZero() bool {
	return s.Selector == "" && s.Element == ""
}

// ExtractLinks returns the absolute, normalized URLs referenced by htmlDoc.
//
// Relative references are resolved against baseURL. Links using a scheme that
// cannot be crawled are dropped, as are links embedding excludeURL in a query
// value or fragment. The result is deduplicated and keeps document order, so
// identical input always yields the identical slice.
//
// Design decision: We parse with golang.org/x/net/html and query with goquery
// rather than walking nodes by hand because:
//  1. Scope selectors are arbitrary CSS, which goquery (cascadia) compiles
//  2. An invalid selector simply matches nothing and falls through a tier
//  3. The html tokenizer copes with the malformed markup common on the web
func ExtractLinks(htmlDoc, baseURL string, scope Scope, excludeURL string) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidBaseURL, baseURL, err)
	}

	root, err := html.Parse(strings.NewReader(htmlDoc))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	links := make([]string, 0)
	seen := make(map[string]struct{})

	selectScope(doc, scope).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		resolved, ok := resolveLink(base, href)
		if !ok {
			return
		}
		if excludeURL != "" && filter.ContainsSelfReference(resolved, excludeURL) {
			return
		}

		link := resolved.String()
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})

	return links, nil
}

// selectScope picks the candidate link nodes, falling back from the selector
// to the element to the whole document when a tier matches nothing.
func selectScope(doc *goquery.Document, scope Scope) *goquery.Selection {
	if scope.Selector != "" {
		if matches := doc.Find(scope.Selector); matches.Length() > 0 {
			// The selector already denotes links.
			if matches.Not(linkSelector).Length() == 0 {
				return matches
			}
			return matches.Find(linkSelector)
		}
	}

	if scope.Element != "" {
		if matches := doc.Find(scope.Element); matches.Length() > 0 {
			return matches.Find(anchorSelector)
		}
	}

	return doc.Find(linkSelector)
}

// resolveLink turns an href into a normalized absolute URL.
// The boolean is false when the href must be skipped.
func resolveLink(base *url.URL, href string) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	lower := strings.ToLower(href)
	for _, scheme := range ignoredSchemes {
		if strings.HasPrefix(lower, scheme) {
			return nil, false
		}
	}

	ref, err := url.Parse(href)
	if err != nil {
		return nil, false
	}

	resolved := base.ResolveReference(ref)
	if !resolved.IsAbs() {
		return nil, false
	}
	return normalizeURL(resolved), true
}

// normalizeURL lower-cases scheme and host and gives a hierarchical URL with
// an empty path the root path. The fragment is preserved.
func normalizeURL(u *url.URL) *url.URL {
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Opaque == "" && u.Host != "" && u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}
	return u
}
