package bandcamp

import (
	"encoding/json"
	"html"
	"regexp"
	"strings"

	"github.com/handiism/bandcamp-purchases/internal/bandcamp/dto"
)

// dataBlobRe matches the data-blob attribute Bandcamp uses to ship page state.
var dataBlobRe = regexp.MustCompile(`data-blob="([^"]+)"`)

// extractBlobData extracts the data-blob JSON string from HTML.
//
// Bandcamp embeds page state in the HTML like this:
//
//	<div id="pagedata" data-blob="{&quot;fan_data&quot;:{...}}"></div>
//
// Since the JSON lives in an attribute, quotes and other characters are
// HTML-escaped; the returned string is unescaped and ready to decode.
//
// A body that is already a bare JSON object is returned as-is.
func extractBlobData(htmlContent string) (string, error) {
	trimmed := strings.TrimSpace(htmlContent)
	if strings.HasPrefix(trimmed, "{") {
		return trimmed, nil
	}

	match := dataBlobRe.FindStringSubmatch(htmlContent)
	if match == nil {
		return "", ErrNoBlob
	}
	return html.UnescapeString(match[1]), nil
}

// ParseBlob extracts and decodes the data-blob document from a page.
//
// Returns ErrNoBlob if the page has no blob, or a *ParseError if the blob
// is not valid JSON.
func ParseBlob(htmlContent string) (*dto.JSONBlob, error) {
	data, err := extractBlobData(htmlContent)
	if err != nil {
		return nil, err
	}

	var blob dto.JSONBlob
	if err := json.Unmarshal([]byte(data), &blob); err != nil {
		return nil, &ParseError{What: "data-blob", Err: err}
	}
	return &blob, nil
}
