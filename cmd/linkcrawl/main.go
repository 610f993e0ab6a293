// Package main provides the entry point for the linkcrawl CLI.
//
// linkcrawl collects the links reachable from one or more seed URLs within a
// bounded number of hops, filtered by domain, path, regex or keyword rules.
//
// Usage:
//
//	linkcrawl collect <url>...
//	linkcrawl history [url]
//	linkcrawl compare <url>
//
// See --help for all available options.
package main

// main is the entry point for linkcrawl.
func main() {
	Execute()
}
