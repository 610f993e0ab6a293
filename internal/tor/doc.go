// Package tor routes crawler traffic through a SOCKS5 proxy, usually Tor.
//
// A Client wraps a SOCKS5 dialer (golang.org/x/net/proxy) and hands the
// crawler an http.Transport that dials through it. EmbeddedTor starts a
// private Tor daemon via tornago for users without a running Tor. Onion
// seed URLs are checked against the v3 address checksum before a crawl
// starts, so typos fail fast instead of timing out inside Tor.
//
// The package is designed to be used with dependency injection: create a
// Client and pass its Transport to the fetcher rather than using global
// state.
package tor
