package dto

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// FlexString accepts a JSON string, number or null.
//
// Bandcamp sends identifiers as numbers from the paginated API and as strings
// from embedded page data, sometimes for the same field.
type FlexString string

// UnmarshalJSON parses strings verbatim and numbers in their literal form.
func (fs *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*fs = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*fs = FlexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		// Booleans, objects and arrays carry no usable identifier.
		*fs = ""
		return nil
	}
	*fs = FlexString(n.String())
	return nil
}

// String returns the value as a plain string.
func (fs FlexString) String() string {
	return string(fs)
}

// FlexBool accepts a JSON boolean, a 0/1 number, a "true"/"false" string or null.
type FlexBool bool

// UnmarshalJSON treats anything it cannot interpret as false.
func (fb *FlexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("true")):
		*fb = true
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		b, _ := strconv.ParseBool(strings.TrimSpace(s))
		*fb = FlexBool(b)
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err == nil {
			*fb = f != 0
			return nil
		}
		*fb = false
	}
	return nil
}

// FlexInt accepts a JSON number, a numeric string or null.
type FlexInt int

// UnmarshalJSON parses integers and truncates floats; anything else is zero.
func (fi *FlexInt) UnmarshalJSON(data []byte) error {
	var fs FlexString
	if err := fs.UnmarshalJSON(data); err != nil {
		return err
	}
	if fs == "" {
		*fi = 0
		return nil
	}
	f, err := strconv.ParseFloat(string(fs), 64)
	if err != nil {
		*fi = 0
		return nil
	}
	*fi = FlexInt(f)
	return nil
}
