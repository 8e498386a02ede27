package dto

import (
	"encoding/json"
	"sort"
	"strings"
)

// JSONBlob is the data-blob document Bandcamp embeds in its pages.
//
// Which branches are populated depends on the page (home, fan profile) and
// on the upstream's current rollout, so all of them are optional.
type JSONBlob struct {
	Identities  *JSONIdentities `json:"identities"`
	FanData     *JSONFanData    `json:"fan_data"`
	AppData     *JSONAppData    `json:"appData"`
	PageContext *JSONPageCtx    `json:"pageContext"`

	CollectionData *JSONCollectionData        `json:"collection_data"`
	ItemCache      *JSONItemCache             `json:"item_cache"`
	Tracklists     map[string]json.RawMessage `json:"tracklists"`
}

// JSONIdentities holds the logged-in identities on the home page.
type JSONIdentities struct {
	Fan *JSONFan `json:"fan"`
}

// JSONAppData wraps identities on newer page layouts.
type JSONAppData struct {
	Identities *JSONIdentities `json:"identities"`
}

// JSONFan is the fan identity record.
type JSONFan struct {
	ID       FlexString `json:"id"`
	Name     string     `json:"name"`
	Username string     `json:"username"`
}

// JSONFanData is the fan summary found on profile pages.
type JSONFanData struct {
	FanID           FlexString `json:"fan_id"`
	Name            string     `json:"name"`
	Username        string     `json:"username"`
	CollectionCount FlexInt    `json:"collection_count"`
}

// JSONPageCtx is the page context wrapper on some profile layouts.
type JSONPageCtx struct {
	PageFan *JSONPageFan `json:"pageFan"`
}

// JSONPageFan uses yet another naming scheme for the same fan fields.
type JSONPageFan struct {
	FanID           FlexString `json:"fan_id"`
	ID              FlexString `json:"id"`
	PageFanID       FlexString `json:"pageFanId"`
	Name            string     `json:"name"`
	Username        string     `json:"username"`
	PageFanUsername string     `json:"pageFanUsername"`
	CollectionCount FlexInt    `json:"collection_count"`
	ItemCount       FlexInt    `json:"item_count"`
}

// JSONCollectionData carries the redownload map on fan profile pages.
//
// Values are either item objects or bare download URLs keyed by
// "<type-code><sale-item-id>", e.g. "a123456".
type JSONCollectionData struct {
	RedownloadURLs map[string]json.RawMessage `json:"redownload_urls"`
}

// JSONItemCache is the keyed cache of collection entries on fan profile pages.
type JSONItemCache struct {
	Collection map[string]JSONItem `json:"collection"`
	Hidden     map[string]JSONItem `json:"hidden"`
}

// SortedKeys returns map keys in a stable order so extraction is deterministic.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RedownloadItem converts one redownload map entry into a JSONItem.
//
// Object values are decoded as items, with the key filling in a missing
// type code or identifier. String values are treated as the item URL.
func RedownloadItem(key string, value json.RawMessage) (JSONItem, bool) {
	typeCode, id := splitSaleKey(key)

	var item JSONItem
	if err := json.Unmarshal(value, &item); err != nil {
		var u string
		if err := json.Unmarshal(value, &u); err != nil || u == "" {
			return JSONItem{}, false
		}
		item = JSONItem{URL: u}
	}

	if item.TypeCode() == "" {
		item.SaleItemType = typeCode
	}
	if item.ID() == "" {
		item.SaleItemID = FlexString(id)
	}
	if item.ID() == "" {
		return JSONItem{}, false
	}
	return item, true
}

// splitSaleKey splits "a123" into ("a", "123").
// Keys without a leading letter are returned as the identifier.
func splitSaleKey(key string) (string, string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ""
	}
	c := key[0]
	if c >= 'a' && c <= 'z' {
		return string(c), key[1:]
	}
	return "", key
}
