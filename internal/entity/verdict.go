package entity

import (
	"bytes"
	"encoding/json"
)

// FlexBool unmarshals a boolean that scoring endpoints sometimes encode as
// the strings "true"/"false". A missing or null value decodes to false.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*b = false
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = FlexBool(s == "true")
		return nil
	}
	var v bool
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*b = FlexBool(v)
	return nil
}

// Verdict is the scoring endpoint's judgment of one submission attempt.
type Verdict struct {
	Correct FlexBool `json:"correct"`
	NextURL string   `json:"url,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}
