// Package store is the local SQLite cache behind bandcamp-export.
//
// It keeps the rows of the last completed scrape under PurchasesKey so a
// restart can show them without talking to Bandcamp, and records a short
// history of scrape runs. The pure-Go modernc.org/sqlite driver is used so
// the binary stays cgo-free.
package store
