// Package config holds the linkcrawl configuration: built-in defaults, the
// values parsed from command-line flags, and the optional .linkcrawl YAML file
// with defaults, per-target overrides and named filter profiles.
//
// Everything is resolved into a model.CrawlRequest by Config.CrawlRequest,
// so the crawler never sees flags or files.
package config
