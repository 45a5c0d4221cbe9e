package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// FlexString decodes any JSON scalar into its string form. The ticketing API is
// not consistent about quoting ids, flags and timestamps.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(strings.TrimSpace(string(data)))
	return nil
}

// String returns the underlying value.
func (f FlexString) String() string {
	return string(f)
}
