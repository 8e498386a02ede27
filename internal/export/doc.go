// Package export writes purchase rows as CSV, JSON or Parquet.
//
// All formats carry the same columns as the CSV header:
//
//	Artist,Title,Type,Purchase Date,Preorder Status,Item URL,Art URL,Hidden
//
// JSON exports wrap the full rows, raw upstream records included, in an
// envelope with the export time and the scrape run ID. Parquet exports add
// the purchase key, the item ID and the purchase time in milliseconds.
//
// Default file names look like bandcamp-purchases-2024-05-01.csv.
package export
