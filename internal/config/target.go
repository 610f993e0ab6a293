package config

import (
	"maps"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/linkcrawl/internal/model"
)

// TargetConfig holds crawl settings for one target, or the defaults for all
// targets. Pointer fields distinguish "not set" from a zero value, because
// depth 0 and delay 0 are meaningful.
type TargetConfig struct {
	// Depth overrides the crawl depth.
	Depth *int `yaml:"depth,omitempty"`

	// Delay overrides the pacing delay, e.g. "500ms".
	Delay *time.Duration `yaml:"delay,omitempty"`

	// Selector and Element narrow extraction on the seed page.
	Selector string `yaml:"selector,omitempty"`
	Element  string `yaml:"element,omitempty"`

	// Cookie is a raw Cookie header, e.g. "name1=value1; name2=value2".
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra request headers.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Profile names an entry of File.Profiles whose conditions are added
	// to Filters.
	Profile string `yaml:"profile,omitempty"`

	// Filters are admission conditions, ORed together.
	Filters []model.FilterCondition `yaml:"filters,omitempty"`
}

// File represents the structure of the .linkcrawl configuration file.
//
//	defaults:
//	  depth: 2
//	  delay: 1s
//	targets:
//	  docs.example.com:
//	    selector: "main"
//	    profile: docs
//	profiles:
//	  docs:
//	    - domain: example.com
//	      pathPrefix: /docs
type File struct {
	// Defaults apply to every target unless overridden.
	Defaults TargetConfig `yaml:"defaults,omitempty"`

	// Targets maps a seed URL or a hostname to its overrides.
	Targets map[string]TargetConfig `yaml:"targets,omitempty"`

	// Profiles are named, reusable lists of filter conditions.
	Profiles map[string][]model.FilterCondition `yaml:"profiles,omitempty"`
}

// NewFile returns an empty configuration file.
func NewFile() *File {
	f := &File{}
	f.ensureMaps()
	return f
}

func (cf *File) ensureMaps() {
	if cf.Targets == nil {
		cf.Targets = make(map[string]TargetConfig)
	}
	if cf.Profiles == nil {
		cf.Profiles = make(map[string][]model.FilterCondition)
	}
}

// GetTargetConfig returns the merged configuration for a seed URL.
// A target entry is looked up by the exact URL first, then by the URL
// without its scheme, then by hostname.
func (cf *File) GetTargetConfig(target string) TargetConfig {
	if cf == nil {
		return TargetConfig{}
	}

	if override, ok := cf.lookupTarget(target); ok {
		return mergeTargetConfig(cf.Defaults, override)
	}
	return mergeTargetConfig(cf.Defaults, TargetConfig{})
}

func (cf *File) lookupTarget(target string) (TargetConfig, bool) {
	if tc, ok := cf.Targets[target]; ok {
		return tc, true
	}

	trimmed := target
	for _, prefix := range []string{"http://", "https://"} {
		trimmed = strings.TrimPrefix(trimmed, prefix)
	}
	if tc, ok := cf.Targets[trimmed]; ok {
		return tc, true
	}

	if u, err := url.Parse(target); err == nil && u.Hostname() != "" {
		if tc, ok := cf.Targets[strings.ToLower(u.Hostname())]; ok {
			return tc, true
		}
	}
	return TargetConfig{}, false
}

// mergeTargetConfig overlays the set fields of override onto defaults.
// Headers are merged key by key; Filters replace the defaults.
func mergeTargetConfig(defaults, override TargetConfig) TargetConfig {
	result := defaults
	result.Headers = maps.Clone(defaults.Headers)

	if override.Depth != nil {
		result.Depth = override.Depth
	}
	if override.Delay != nil {
		result.Delay = override.Delay
	}
	if override.Selector != "" {
		result.Selector = override.Selector
	}
	if override.Element != "" {
		result.Element = override.Element
	}
	if override.Cookie != "" {
		result.Cookie = override.Cookie
	}
	if override.Profile != "" {
		result.Profile = override.Profile
	}
	if len(override.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(override.Headers))
		}
		maps.Copy(result.Headers, override.Headers)
	}
	if len(override.Filters) > 0 {
		result.Filters = override.Filters
	}

	return result
}
