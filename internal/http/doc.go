// Package http provides an HTTP client configured for Bandcamp requests.
//
// The Client in this package handles:
//   - Browser-like User-Agent headers for Bandcamp compatibility
//   - Cookie forwarding for authenticated fan pages and APIs
//   - JSON POST requests to the fancollection endpoints
//   - In-memory downloads for cover art
//
// # Basic Usage
//
//	client := http.NewClient(30 * time.Second)
//
//	// Fetch the home page as the logged-in fan
//	html, err := client.GetString(ctx, "https://bandcamp.com/", http.Cookie(header))
//
//	// Download cover art
//	data, err := client.DownloadBytes(ctx, artURL)
//
// Non-2xx responses are reported as *StatusError so callers can tell an
// expired session (401/403) apart from transport failures.
package http
