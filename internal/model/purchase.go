package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// ArtworkURLStart is the Bandcamp image host prefix for album artwork.
	ArtworkURLStart = "https://f4.bcbits.com/img/a"

	// ThumbnailSuffix selects the 100x100 thumbnail rendition.
	ThumbnailSuffix = "_10.jpg"

	// LargeSuffix selects the 700x700 rendition used by detail views.
	LargeSuffix = "_16.jpg"

	// NoArtPlaceholder is used when an item carries no artwork identifier.
	NoArtPlaceholder = "/no-art.png"

	// UnknownPurchaseDate stands in for a missing date inside a purchase key.
	UnknownPurchaseDate = "unknown"
)

// ItemType is the user-facing classification of a purchased item.
type ItemType string

const (
	ItemTypeAlbum   ItemType = "album"
	ItemTypeTrack   ItemType = "track"
	ItemTypePackage ItemType = "package"
	ItemTypeUnknown ItemType = "unknown"
)

// ItemTypeFromCode maps Bandcamp's one-letter type code to an ItemType.
//
// Bandcamp uses:
//   - "a" for albums
//   - "t" for tracks
//   - "p" for packages (physical merch bundled with a release)
//
// Anything else, including the empty string, maps to ItemTypeUnknown.
func ItemTypeFromCode(code string) ItemType {
	switch code {
	case "a":
		return ItemTypeAlbum
	case "t":
		return ItemTypeTrack
	case "p":
		return ItemTypePackage
	default:
		return ItemTypeUnknown
	}
}

// PreorderStatus is the release state of a preordered item.
type PreorderStatus string

const (
	PreorderUnreleased PreorderStatus = "unreleased"
	PreorderReleased   PreorderStatus = "released"
	PreorderUnknown    PreorderStatus = "unknown"
)

// PurchaseRow is the normalized representation of one purchase.
//
// Rows are produced by the item normalizer from exactly one raw upstream
// record and are never mutated afterwards. PurchaseKey is the only axis used
// for deduplication; see PurchaseKey for its exact composition.
//
// JSON field names follow the export format consumed by spreadsheets and
// the local API.
type PurchaseRow struct {
	// PurchaseKey is "<type-code>:<item-id>:<purchase-date-or-unknown>".
	PurchaseKey string `json:"purchaseKey"`

	// PurchaseDate is the upstream purchase timestamp, verbatim.
	// Nil when neither "purchased" nor "purchase_date" was present.
	PurchaseDate *string `json:"purchaseDate"`

	ItemType ItemType `json:"itemType"`
	ItemID   string   `json:"itemId"`
	Title    string   `json:"title"`
	Artist   string   `json:"artist"`
	ItemURL  string   `json:"itemUrl"`

	// ArtURL is a thumbnail URL or NoArtPlaceholder.
	ArtURL string `json:"artUrl"`

	IsPreorder     bool           `json:"isPreorder"`
	PreorderStatus PreorderStatus `json:"preorderStatus"`

	// IsHidden marks rows that came from the hidden-items feed.
	IsHidden bool `json:"isHidden"`

	// RawItem is the original upstream record, kept for debugging and export.
	RawItem json.RawMessage `json:"rawItem,omitempty"`
}

// PurchaseKey builds the stable deduplication key for a purchase.
//
// The composition must stay identical everywhere a key is derived, otherwise
// the same purchase fetched twice would no longer collapse into one row.
func PurchaseKey(typeCode, itemID string, purchaseDate *string) string {
	date := UnknownPurchaseDate
	if purchaseDate != nil && *purchaseDate != "" {
		date = *purchaseDate
	}
	return fmt.Sprintf("%s:%s:%s", typeCode, itemID, date)
}

// ThumbnailURL builds the thumbnail artwork URL for an artwork identifier.
// An empty identifier yields NoArtPlaceholder.
func ThumbnailURL(artID string) string {
	if artID == "" || artID == "0" {
		return NoArtPlaceholder
	}
	return ArtworkURLStart + artID + ThumbnailSuffix
}

// LargeArtURL returns the 700x700 variant of a thumbnail URL.
//
// Placeholders and URLs without the thumbnail suffix are returned unchanged.
func LargeArtURL(artURL string) string {
	if !strings.HasSuffix(artURL, ThumbnailSuffix) {
		return artURL
	}
	return strings.TrimSuffix(artURL, ThumbnailSuffix) + LargeSuffix
}

// HasArtwork returns true if the row points at real artwork rather than the placeholder.
func (r *PurchaseRow) HasArtwork() bool {
	return r.ArtURL != "" && r.ArtURL != NoArtPlaceholder
}

// PurchaseDateOrEmpty returns the purchase date or "" when it is unknown.
func (r *PurchaseRow) PurchaseDateOrEmpty() string {
	if r.PurchaseDate == nil {
		return ""
	}
	return *r.PurchaseDate
}

// DisplayName is "<artist> - <title>", used for file names and logs.
func (r *PurchaseRow) DisplayName() string {
	switch {
	case r.Artist == "":
		return r.Title
	case r.Title == "":
		return r.Artist
	}
	return r.Artist + " - " + r.Title
}
