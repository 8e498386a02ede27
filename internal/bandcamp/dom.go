package bandcamp

import (
	"html"
	"regexp"
	"strings"

	"github.com/handiism/bandcamp-purchases/internal/bandcamp/dto"
)

const collectionItemMarker = "collection-item-container"

var (
	dataAttrRe   = regexp.MustCompile(`data-(itemid|itemtype|tralbumid|tralbumtype)="([^"]*)"`)
	itemLinkRe   = regexp.MustCompile(`<a[^>]+href="([^"]+)"[^>]*class="[^"]*item-link`)
	itemLinkAlt  = regexp.MustCompile(`<a[^>]+class="[^"]*item-link[^"]*"[^>]*href="([^"]+)"`)
	artIDRe      = regexp.MustCompile(`/img/a0*(\d+)_\d+\.`)
	itemTitleRe  = regexp.MustCompile(`(?s)class="collection-item-title"[^>]*>(.*?)</div>`)
	itemArtistRe = regexp.MustCompile(`(?s)class="collection-item-artist"[^>]*>(.*?)</div>`)
	tagRe        = regexp.MustCompile(`<[^>]*>`)
	spaceRe      = regexp.MustCompile(`\s+`)
)

// typeWords maps the DOM's spelled-out item types to API type codes.
var typeWords = map[string]string{
	"album":   "a",
	"track":   "t",
	"package": "p",
	"a":       "a",
	"t":       "t",
	"p":       "p",
}

// ScrapeCollectionDOM extracts collection items from the rendered grid of a
// fan profile page.
//
// This is the last-resort strategy when neither the API nor the data-blob
// produced anything. Each grid entry looks like:
//
//	<li class="collection-item-container" data-itemid="123" data-itemtype="album">
//	  <a class="item-link" href="https://band.bandcamp.com/album/name">
//	  <img class="collection-item-art" src="https://f4.bcbits.com/img/a0456_9.jpg">
//	  <div class="collection-item-title">Name</div>
//	  <div class="collection-item-artist">by Band</div>
//	</li>
//
// Entries without an item ID are skipped, and repeated IDs are kept only once.
// Returns ErrNoItems if nothing usable is found. The DOM carries no purchase
// dates, so rows from this strategy use the "unknown" date in their key.
func ScrapeCollectionDOM(pageHTML string) ([]dto.JSONItem, error) {
	chunks := strings.Split(pageHTML, collectionItemMarker)
	if len(chunks) < 2 {
		return nil, ErrNoItems
	}

	seen := make(map[string]struct{})
	var items []dto.JSONItem
	for _, chunk := range chunks[1:] {
		item, ok := parseGridItem(chunk)
		if !ok {
			continue
		}
		key := item.TypeCode() + item.ID()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		items = append(items, item)
	}

	if len(items) == 0 {
		return nil, ErrNoItems
	}
	return items, nil
}

// parseGridItem reads one grid entry. The chunk runs from just after the
// container class to the start of the next entry.
func parseGridItem(chunk string) (dto.JSONItem, bool) {
	// Attributes of the <li> itself come before its closing '>'.
	head := chunk
	if i := strings.Index(chunk, ">"); i >= 0 {
		head = chunk[:i]
	}

	attrs := make(map[string]string)
	for _, m := range dataAttrRe.FindAllStringSubmatch(head, -1) {
		attrs[m[1]] = html.UnescapeString(m[2])
	}

	id := firstNonEmpty(attrs["tralbumid"], attrs["itemid"])
	if id == "" {
		return dto.JSONItem{}, false
	}
	typeCode := typeWords[strings.ToLower(firstNonEmpty(attrs["tralbumtype"], attrs["itemtype"]))]

	item := dto.JSONItem{
		ItemType: typeCode,
		ItemID:   dto.FlexString(id),
	}

	if m := itemLinkRe.FindStringSubmatch(chunk); m != nil {
		item.ItemURL = html.UnescapeString(m[1])
	} else if m := itemLinkAlt.FindStringSubmatch(chunk); m != nil {
		item.ItemURL = html.UnescapeString(m[1])
	}
	if m := artIDRe.FindStringSubmatch(chunk); m != nil {
		item.ArtID = dto.FlexString(m[1])
	}
	if m := itemTitleRe.FindStringSubmatch(chunk); m != nil {
		item.ItemTitle = cleanText(m[1])
	}
	if m := itemArtistRe.FindStringSubmatch(chunk); m != nil {
		item.BandName = strings.TrimPrefix(cleanText(m[1]), "by ")
	}

	return item, true
}

// cleanText strips tags, unescapes entities and collapses whitespace.
func cleanText(s string) string {
	s = tagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
