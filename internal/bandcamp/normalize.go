package bandcamp

import (
	"github.com/handiism/bandcamp-purchases/internal/bandcamp/dto"
	"github.com/handiism/bandcamp-purchases/internal/model"
)

// Normalize converts a raw upstream item into a PurchaseRow.
//
// It performs no I/O and never fails; see dto.JSONItem.ToPurchaseRow for the
// field mapping. isHidden marks rows that came from the hidden-items feed.
func Normalize(raw dto.JSONItem, isHidden bool) model.PurchaseRow {
	return raw.ToPurchaseRow(isHidden)
}

// NormalizeAll normalizes a batch of raw items in order.
func NormalizeAll(raw []dto.JSONItem, isHidden bool) []model.PurchaseRow {
	rows := make([]model.PurchaseRow, 0, len(raw))
	for i := range raw {
		rows = append(rows, Normalize(raw[i], isHidden))
	}
	return rows
}

// Dedupe removes rows whose PurchaseKey was already seen.
//
// The first occurrence of each key is kept and input order is preserved.
// Dedupe(nil) and Dedupe of an empty slice both return an empty, non-nil slice.
func Dedupe(rows []model.PurchaseRow) []model.PurchaseRow {
	var d Deduper
	return d.Add(make([]model.PurchaseRow, 0, len(rows)), rows)
}

// Deduper deduplicates rows incrementally across several batches.
// The zero value is ready to use.
type Deduper struct {
	seen map[string]struct{}
}

// Add appends the rows of batch whose keys have not been seen to dst.
func (d *Deduper) Add(dst, batch []model.PurchaseRow) []model.PurchaseRow {
	if d.seen == nil {
		d.seen = make(map[string]struct{}, len(batch))
	}
	for _, row := range batch {
		if _, ok := d.seen[row.PurchaseKey]; ok {
			continue
		}
		d.seen[row.PurchaseKey] = struct{}{}
		dst = append(dst, row)
	}
	return dst
}
