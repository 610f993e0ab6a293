package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/linkcrawl/internal/model"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "linkcrawl"

	// DefaultDepth follows links two hops from the seed, enough for a site
	// section without wandering across the web.
	DefaultDepth = 2

	// DefaultCrawlDelay is the pacing wait before every request.
	// 1 second is conservative and respectful of server resources.
	DefaultCrawlDelay = 1 * time.Second

	// DefaultTimeout bounds one HTTP request including redirects.
	DefaultTimeout = 30 * time.Second

	// DefaultBatchSize crawls targets one at a time.
	DefaultBatchSize = 1

	// DefaultRetry is the number of attempts per target; 1 means no retry.
	DefaultRetry = 1

	// DefaultUserAgent identifies linkcrawl in HTTP requests so operators
	// can recognize crawler traffic in their logs.
	DefaultUserAgent = "linkcrawl/1.0 (+https://github.com/nao1215/linkcrawl)"

	// DefaultMaxBodySize limits how much of a response is read.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// Names of settings that can be given explicitly on the command line.
// Explicit values take precedence over the configuration file.
const (
	SettingDepth    = "depth"
	SettingDelay    = "delay"
	SettingSelector = "selector"
	SettingElement  = "element"
)

// Config holds all options of one linkcrawl invocation.
//
// Design decision: We use a single flat struct populated from flags and
// passed down explicitly rather than global state. Per-target differences
// come from the configuration file and are resolved by CrawlRequest().
type Config struct {
	// Targets are the seed URLs to crawl.
	Targets []string

	// Depth is the maximum number of hops from each seed.
	// Values above model.MaxCrawlDepth are clamped by the crawler.
	Depth int

	// Delay is the pacing wait before every request.
	Delay time.Duration

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// MaxPages caps fetches per crawl. 0 means unlimited.
	MaxPages int

	// Selector and Element narrow link extraction on each seed page.
	Selector string
	Element  string

	// Filter is the condition built from --domain, --path-prefix, --regex
	// and --keyword. It is ORed with the file's conditions when non-empty.
	Filter model.FilterCondition

	// Profile names a filter profile from the configuration file.
	Profile string

	// Explicit records which settings were given on the command line.
	// Keys are the Setting* constants.
	Explicit map[string]bool

	// BatchSize is the number of targets crawled concurrently.
	BatchSize int

	// Rate caps the aggregate requests per second across all concurrent
	// crawls. 0 disables the limit.
	Rate float64

	// Retry is the number of attempts for a target whose seed fetch fails.
	Retry int

	// ConfigFilePath is the explicit configuration file path, if any.
	ConfigFilePath string

	// File is the loaded configuration file. It is never nil after the CLI
	// has built the Config.
	File *File

	// JSONReport, MarkdownReport and TextReport select the output format.
	// At most one may be set; the default is a human-readable summary.
	JSONReport     bool
	MarkdownReport bool
	TextReport     bool

	// ReportFile is the output path. Empty means stdout.
	ReportFile string

	// SaveToDB archives each result in the history database under DBDir.
	SaveToDB bool
	DBDir    string

	// ProxyAddress is a SOCKS5 proxy in host:port form.
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and crawls through it.
	UseTor bool

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// MaxBodySize caps the bytes read per response.
	MaxBodySize int64

	// Verbose enables debug logging.
	Verbose bool
}

// NewConfig creates a Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., delay, timeout).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		Depth:             DefaultDepth,
		Delay:             DefaultCrawlDelay,
		Timeout:           DefaultTimeout,
		BatchSize:         DefaultBatchSize,
		Retry:             DefaultRetry,
		TorStartupTimeout: DefaultTorStartupTimeout,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		Explicit:          make(map[string]bool),
		File:              NewFile(),
		DBDir:             XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for linkcrawl.
// On Linux: ~/.local/share/linkcrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for linkcrawl.
// On Linux: ~/.config/linkcrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the invocation-wide settings and returns the first problem.
// Per-crawl input such as the seed URL is validated by the crawler.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.Depth < 0 {
		return ErrInvalidDepth
	}
	if c.Delay < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.Rate < 0 {
		return ErrInvalidRate
	}
	if c.Retry < 1 {
		return ErrInvalidRetry
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	formats := 0
	for _, on := range []bool{c.JSONReport, c.MarkdownReport, c.TextReport} {
		if on {
			formats++
		}
	}
	if formats > 1 {
		return ErrConflictingReportFormats
	}

	if c.UseTor && c.ProxyAddress != "" {
		return ErrConflictingProxy
	}

	return nil
}

// isExplicit reports whether a setting was given on the command line.
func (c *Config) isExplicit(setting string) bool {
	return c.Explicit[setting]
}
