// Package filter decides whether a discovered URL is admitted into a crawl.
//
// Admission runs three stages, in order:
//  1. A fixed default-exclusion list of administrative, authentication and
//     commerce paths. It always applies and cannot be configured away.
//  2. A self-reference check that rejects share links embedding the crawl's
//     base URL in a query parameter or fragment.
//  3. The caller's filter conditions: fields within a condition are ANDed,
//     conditions are ORed.
//
// A Filter is compiled once before a crawl starts so that malformed regular
// expressions fail fast, and IsAdmitted is a pure function afterwards.
package filter
