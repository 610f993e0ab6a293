package config

import (
	"fmt"
	"slices"

	"github.com/nao1215/linkcrawl/internal/model"
)

// CrawlRequest resolves the request for one target.
//
// Precedence for depth, delay, selector and element is: explicit
// command-line value, then the target entry of the file, then the file
// defaults, then the built-in default. A profile given on the command line
// replaces the one named in the file. Filter conditions are the union of the
// file's conditions, the profile's conditions and the command-line condition.
func (c *Config) CrawlRequest(target string) (model.CrawlRequest, error) {
	tc := c.File.GetTargetConfig(target)

	req := model.CrawlRequest{
		InitialURL:    target,
		MaxDepth:      c.Depth,
		Delay:         c.Delay,
		ScopeSelector: c.Selector,
		ScopeElement:  c.Element,
	}

	if !c.isExplicit(SettingDepth) && tc.Depth != nil {
		req.MaxDepth = *tc.Depth
	}
	if !c.isExplicit(SettingDelay) && tc.Delay != nil {
		req.Delay = *tc.Delay
	}
	if !c.isExplicit(SettingSelector) && tc.Selector != "" {
		req.ScopeSelector = tc.Selector
	}
	if !c.isExplicit(SettingElement) && tc.Element != "" {
		req.ScopeElement = tc.Element
	}

	profile := tc.Profile
	if c.Profile != "" {
		profile = c.Profile
	}

	filters := slices.Clone(tc.Filters)
	if profile != "" {
		var conds []model.FilterCondition
		ok := false
		if c.File != nil {
			conds, ok = c.File.Profiles[profile]
		}
		if !ok {
			return model.CrawlRequest{}, fmt.Errorf("%w: %q", ErrUnknownProfile, profile)
		}
		filters = append(filters, conds...)
	}
	if !c.Filter.IsEmpty() {
		filters = append(filters, c.Filter)
	}
	if len(filters) > 0 {
		req.Filters = filters
	}

	return req, nil
}

// TargetHTTP returns the cookie and extra headers configured for a target.
func (c *Config) TargetHTTP(target string) (cookie string, headers map[string]string) {
	tc := c.File.GetTargetConfig(target)
	return tc.Cookie, tc.Headers
}
