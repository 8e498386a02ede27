package dto

import (
	"bytes"
	"encoding/json"
)

// ItemsRequest is the body posted to the fancollection endpoints.
//
// A nil OlderThanToken is sent as JSON null, which the upstream reads as
// "start of data".
type ItemsRequest struct {
	FanID          string  `json:"fan_id"`
	OlderThanToken *string `json:"older_than_token"`
	Count          int     `json:"count"`
}

// ItemsPage is one page returned by the collection_items or hidden_items endpoints.
type ItemsPage struct {
	Items         []JSONItem                 `json:"items"`
	MoreAvailable FlexBool                   `json:"more_available"`
	LastToken     *string                    `json:"last_token"`
	Tracklists    map[string]json.RawMessage `json:"tracklists"`

	// Error is true (or a message string) when the upstream refused the request.
	Error        json.RawMessage `json:"error"`
	ErrorMessage string          `json:"error_message"`
}

// HasError reports whether the page carries an upstream error payload.
func (p *ItemsPage) HasError() bool {
	e := bytes.TrimSpace(p.Error)
	if len(e) == 0 {
		return false
	}
	switch string(e) {
	case "null", "false", `""`, "0":
		return false
	}
	return true
}

// ErrorText returns the most descriptive error message available.
func (p *ItemsPage) ErrorText() string {
	if p.ErrorMessage != "" {
		return p.ErrorMessage
	}
	var s string
	if err := json.Unmarshal(p.Error, &s); err == nil && s != "" {
		return s
	}
	return "upstream reported an error"
}

// NextToken returns the continuation token, or nil when none was returned.
func (p *ItemsPage) NextToken() *string {
	if p.LastToken == nil || *p.LastToken == "" {
		return nil
	}
	t := *p.LastToken
	return &t
}
