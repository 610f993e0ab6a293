package filter

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"github.com/nao1215/linkcrawl/internal/model"
)

// ErrInvalidRegex is returned by Compile when a regex filter does not compile.
var ErrInvalidRegex = errors.New("invalid regex filter")

// defaultExclusions are path entries that are never crawled.
// A URL is rejected when its lower-cased path contains "/" + entry.
var defaultExclusions = []string{
	"admin",
	"login",
	"logout",
	"signin",
	"signout",
	"register",
	"account",
	"wp-admin",
	"wp-login",
	"cart",
	"checkout",
}

// DefaultExclusions returns a copy of the unconditional path exclusion list.
func DefaultExclusions() []string {
	return append([]string(nil), defaultExclusions...)
}

// hostFolder folds hostnames before domain matching; DNS names are case-insensitive.
var hostFolder = cases.Fold()

// condition is a compiled model.FilterCondition.
type condition struct {
	domains     []string
	pathPrefix  []string
	patterns    []*regexp.Regexp
	keywords    []string
	hasDomain   bool
	hasPrefix   bool
	hasPatterns bool
	hasKeywords bool
}

// Filter is a compiled, immutable set of filter conditions.
// The zero value and a nil *Filter admit every URL that survives the
// unconditional checks.
type Filter struct {
	conditions []condition
}

// Compile validates the conditions and precompiles their regular expressions.
//
// Design decision: Patterns are compiled here rather than on every call so
// that a typo in a configuration file stops the crawl before the first
// request instead of silently rejecting every URL.
func Compile(conds []model.FilterCondition) (*Filter, error) {
	f := &Filter{conditions: make([]condition, 0, len(conds))}

	for i, c := range conds {
		compiled := condition{
			domains:     make([]string, 0, len(c.Domain)),
			pathPrefix:  c.PathPrefix,
			keywords:    c.Keywords,
			hasDomain:   len(c.Domain) > 0,
			hasPrefix:   len(c.PathPrefix) > 0,
			hasPatterns: len(c.Regex) > 0,
			hasKeywords: len(c.Keywords) > 0,
		}
		for _, d := range c.Domain {
			compiled.domains = append(compiled.domains, hostFolder.String(d))
		}
		for _, pattern := range c.Regex {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("%w in condition %d: %q: %v", ErrInvalidRegex, i+1, pattern, err)
			}
			compiled.patterns = append(compiled.patterns, re)
		}
		f.conditions = append(f.conditions, compiled)
	}

	return f, nil
}

// MustCompile is like Compile but panics on error.
// Use only for known-valid conditions in tests or initialization.
func MustCompile(conds []model.FilterCondition) *Filter {
	f, err := Compile(conds)
	if err != nil {
		panic(err)
	}
	return f
}

// Len returns the number of compiled conditions.
func (f *Filter) Len() int {
	if f == nil {
		return 0
	}
	return len(f.conditions)
}

// IsAdmitted reports whether rawURL may enter the crawl.
// baseURL is the crawl's seed URL; when non-empty it enables the
// self-reference check. The decision depends only on the arguments.
func (f *Filter) IsAdmitted(rawURL, baseURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	if IsDefaultExcluded(u.Path) {
		return false
	}

	if baseURL != "" && rawURL != baseURL && ContainsSelfReference(u, baseURL) {
		return false
	}

	if f.Len() == 0 {
		return true
	}

	host := hostFolder.String(u.Hostname())
	for _, c := range f.conditions {
		if c.matches(u, host, rawURL) {
			return true
		}
	}
	return false
}

// matches reports whether every present field of the condition matches.
func (c condition) matches(u *url.URL, foldedHost, rawURL string) bool {
	if c.hasDomain && !anyOf(c.domains, func(d string) bool { return strings.Contains(foldedHost, d) }) {
		return false
	}
	if c.hasPrefix && !anyOf(c.pathPrefix, func(p string) bool { return strings.HasPrefix(u.Path, p) }) {
		return false
	}
	if c.hasPatterns && !anyOf(c.patterns, func(re *regexp.Regexp) bool { return re.MatchString(rawURL) }) {
		return false
	}
	if c.hasKeywords && !anyOf(c.keywords, func(k string) bool { return strings.Contains(rawURL, k) }) {
		return false
	}
	return true
}

// anyOf reports whether match holds for at least one element.
func anyOf[T any](values []T, match func(T) bool) bool {
	for _, v := range values {
		if match(v) {
			return true
		}
	}
	return false
}

// IsDefaultExcluded reports whether a URL path contains any entry of the
// default-exclusion list anywhere, e.g. "/myaccount" or "/user-login".
func IsDefaultExcluded(path string) bool {
	lower := strings.ToLower(path)
	for _, entry := range defaultExclusions {
		if strings.Contains(lower, entry) {
			return true
		}
	}
	return false
}

// ContainsSelfReference reports whether target appears inside any query
// parameter value or inside the fragment of u. Such links are share links
// (https://twitter.com/share?url=<target>) rather than new content.
func ContainsSelfReference(u *url.URL, target string) bool {
	if target == "" || u == nil {
		return false
	}

	for _, values := range u.Query() {
		for _, v := range values {
			if strings.Contains(v, target) {
				return true
			}
		}
	}

	return strings.Contains(u.Fragment, target)
}
