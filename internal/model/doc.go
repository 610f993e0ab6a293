// Package model defines the core data structures used throughout linkcrawl.
//
// This package contains the following main types:
//   - CrawlRequest: The validated input of a single crawl
//   - FilterCondition: One admission rule; a list of them is ORed together
//   - CrawlResult: The single output value of a crawl, including Stats
//   - InputError: Invalid crawl input, rejected before traversal starts
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The crawler, filter, report and database packages all need
// these types, so centralizing them prevents import cycles.
//
// CrawlResult is serialized to JSON for report output and history storage.
// Its field names are a compatibility contract for tools that consume reports.
package model
