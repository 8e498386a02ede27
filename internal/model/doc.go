// Package model defines the core data structures used throughout
// the bandcamp-purchases application.
//
// # PurchaseRow
//
// PurchaseRow is the normalized shape every upstream item is mapped into:
//
//	key := model.PurchaseKey("a", "12345", &date) // "a:12345:01 Jan 2024 00:00:00 GMT"
//	fmt.Println(model.ThumbnailURL("67890"))     // https://f4.bcbits.com/img/a67890_10.jpg
//
// # ResolvedIdentity
//
// ResolvedIdentity carries the fan ID, slug and canonical cookie header
// produced by the identity resolver and consumed by the harvester.
//
// # ScrapeProgress
//
// ScrapeProgress is published after every fetched page:
//
//	idle -> scraping -> completed | error
package model
