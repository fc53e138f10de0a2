package fetch

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// The upstream APIs drift: a number may arrive as a string, null, or an
// object. These types decode what they can and leave the field absent
// otherwise, so one bad field never fails the whole response.

// optFloat is a tolerant JSON number
type optFloat struct {
	val *float64
}

func (f *optFloat) UnmarshalJSON(b []byte) error {
	f.val = nil
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}

	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		f.val = &n
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			f.val = &n
		}
	}
	return nil
}

// Ptr returns the decoded value or nil.
func (f optFloat) Ptr() *float64 { return f.val }

// Or returns the decoded value or def.
func (f optFloat) Or(def float64) float64 {
	if f.val == nil {
		return def
	}
	return *f.val
}

// optInt is a tolerant JSON integer
type optInt struct {
	val *int64
}

func (i *optInt) UnmarshalJSON(b []byte) error {
	var f optFloat
	_ = f.UnmarshalJSON(b)
	i.val = nil
	if f.val != nil {
		n := int64(*f.val)
		i.val = &n
	}
	return nil
}

// Ptr returns the decoded value or nil.
func (i optInt) Ptr() *int64 { return i.val }

// optString is a tolerant JSON string; numbers and booleans are kept in
// their literal form, anything else is absent.
type optString string

func (s *optString) UnmarshalJSON(b []byte) error {
	*s = ""
	b = bytes.TrimSpace(b)

	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = optString(strings.TrimSpace(str))
		return nil
	}
	if len(b) > 0 && (b[0] == '-' || (b[0] >= '0' && b[0] <= '9') || b[0] == 't' || b[0] == 'f') {
		*s = optString(b)
	}
	return nil
}
