package bandcamp

import (
	"errors"

	"github.com/handiism/bandcamp-purchases/internal/bandcamp/dto"
)

// blobItemStrategy pulls collection items out of one known blob shape.
type blobItemStrategy struct {
	name    string
	extract func(*dto.JSONBlob) []dto.JSONItem
}

// blobItemStrategies are tried in order. The item cache carries full records
// including purchase dates; the redownload map often only has URLs.
var blobItemStrategies = []blobItemStrategy{
	{name: "item_cache.collection", extract: func(b *dto.JSONBlob) []dto.JSONItem {
		if b.ItemCache == nil || len(b.ItemCache.Collection) == 0 {
			return nil
		}
		items := make([]dto.JSONItem, 0, len(b.ItemCache.Collection))
		for _, k := range dto.SortedKeys(b.ItemCache.Collection) {
			items = append(items, b.ItemCache.Collection[k])
		}
		return items
	}},
	{name: "collection_data.redownload_urls", extract: func(b *dto.JSONBlob) []dto.JSONItem {
		if b.CollectionData == nil || len(b.CollectionData.RedownloadURLs) == 0 {
			return nil
		}
		urls := b.CollectionData.RedownloadURLs
		items := make([]dto.JSONItem, 0, len(urls))
		for _, k := range dto.SortedKeys(urls) {
			if item, ok := dto.RedownloadItem(k, urls[k]); ok {
				items = append(items, item)
			}
		}
		return items
	}},
}

// PageExtraction is the result of a single-page extraction strategy.
type PageExtraction struct {
	Items    []dto.JSONItem
	Strategy string
}

// ExtractPageItems runs the page-based strategies against a profile page.
//
// The data-blob strategies come first and DOM scraping last. The first
// strategy that yields items wins. A blob that cannot be decoded is not
// fatal; it only moves on to the next strategy. Returns ErrNoItems (wrapping
// the last parse problem, if any) when every strategy came up empty.
//
// Page extraction is exhaustive for the page: there is no continuation token.
func ExtractPageItems(pageHTML string) (PageExtraction, error) {
	var parseErr error

	blob, err := ParseBlob(pageHTML)
	switch {
	case err == nil:
		for _, s := range blobItemStrategies {
			if items := s.extract(blob); len(items) > 0 {
				return PageExtraction{Items: items, Strategy: s.name}, nil
			}
		}
	case errors.Is(err, ErrNoBlob):
	default:
		parseErr = err
	}

	if items, err := ScrapeCollectionDOM(pageHTML); err == nil {
		return PageExtraction{Items: items, Strategy: "dom"}, nil
	}

	if parseErr != nil {
		return PageExtraction{}, errors.Join(ErrNoItems, parseErr)
	}
	return PageExtraction{}, ErrNoItems
}
