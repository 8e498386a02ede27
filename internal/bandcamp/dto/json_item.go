package dto

import (
	"encoding/json"
	"strings"

	"github.com/handiism/bandcamp-purchases/internal/model"
)

// JSONItem is one collection entry as Bandcamp sends it.
//
// The same logical record arrives in several shapes (paginated API,
// hidden-items API, embedded page blob, scraped DOM), so every field is
// optional and a few have alternate names.
type JSONItem struct {
	ItemType     string     `json:"item_type"`
	SaleItemType string     `json:"sale_item_type"`
	ItemID       FlexString `json:"item_id"`
	TralbumID    FlexString `json:"tralbum_id"`
	SaleItemID   FlexString `json:"sale_item_id"`

	BandName  string `json:"band_name"`
	ItemTitle string `json:"item_title"`
	Title     string `json:"title"`
	ItemURL   string `json:"item_url"`
	URL       string `json:"url"`

	ArtID FlexString `json:"art_id"`

	// Purchased is the timestamp field used by the hidden-items feed;
	// PurchaseDate is the one used elsewhere.
	Purchased    *string `json:"purchased"`
	PurchaseDate *string `json:"purchase_date"`

	IsPreorder     FlexBool `json:"is_preorder"`
	PreorderStatus string   `json:"preorder_status"`

	// Raw holds the record exactly as received.
	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known fields and keeps a copy of the raw record.
func (ji *JSONItem) UnmarshalJSON(data []byte) error {
	type plain JSONItem
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*ji = JSONItem(p)
	ji.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// TypeCode returns the one-letter type code, preferring item_type.
func (ji *JSONItem) TypeCode() string {
	if ji.ItemType != "" {
		return ji.ItemType
	}
	return ji.SaleItemType
}

// ID returns the item identifier, falling back through the alternate fields.
func (ji *JSONItem) ID() string {
	for _, id := range []FlexString{ji.ItemID, ji.TralbumID, ji.SaleItemID} {
		if id != "" {
			return id.String()
		}
	}
	return ""
}

// PurchaseTimestamp returns "purchased", then "purchase_date", else nil.
func (ji *JSONItem) PurchaseTimestamp() *string {
	for _, d := range []*string{ji.Purchased, ji.PurchaseDate} {
		if d != nil && *d != "" {
			v := *d
			return &v
		}
	}
	return nil
}

// ToPurchaseRow converts the raw item into a normalized model.PurchaseRow.
//
// It never fails: missing fields become empty strings, unknown type codes
// become model.ItemTypeUnknown, and missing artwork becomes the placeholder.
func (ji *JSONItem) ToPurchaseRow(isHidden bool) model.PurchaseRow {
	typeCode := ji.TypeCode()
	itemID := ji.ID()
	purchaseDate := ji.PurchaseTimestamp()

	preorderStatus := model.PreorderUnknown
	if ji.IsPreorder {
		preorderStatus = model.PreorderUnreleased
		if s := strings.TrimSpace(ji.PreorderStatus); s != "" {
			preorderStatus = model.PreorderStatus(s)
		}
	}

	title := ji.ItemTitle
	if title == "" {
		title = ji.Title
	}
	itemURL := ji.ItemURL
	if itemURL == "" {
		itemURL = ji.URL
	}

	raw := ji.Raw
	if raw == nil {
		raw, _ = json.Marshal(ji)
	}

	return model.PurchaseRow{
		PurchaseKey:    model.PurchaseKey(typeCode, itemID, purchaseDate),
		PurchaseDate:   purchaseDate,
		ItemType:       model.ItemTypeFromCode(typeCode),
		ItemID:         itemID,
		Title:          title,
		Artist:         ji.BandName,
		ItemURL:        itemURL,
		ArtURL:         model.ThumbnailURL(ji.ArtID.String()),
		IsPreorder:     bool(ji.IsPreorder),
		PreorderStatus: preorderStatus,
		IsHidden:       isHidden,
		RawItem:        raw,
	}
}
