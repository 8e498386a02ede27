// Package server exposes the exporter over a small local HTTP API.
//
// Routes live under /api/bandcamp: an authentication check, a single-page
// proxy, a background scrape with progress polling, and row listing,
// reset and download in any export format.
package server
