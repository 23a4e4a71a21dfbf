package users

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a backend user identifier. Some deployments send numeric ids and
// others send strings; the original JSON form is preserved so a persisted
// record round-trips unchanged.
type ID struct {
	value  string
	quoted bool
}

// StringID returns an ID that serialises as a JSON string.
func StringID(s string) ID {
	return ID{value: s, quoted: true}
}

// NumericID returns an ID that serialises as a JSON number.
func NumericID(n int64) ID {
	return ID{value: strconv.FormatInt(n, 10)}
}

func (id ID) String() string {
	return id.value
}

func (id ID) IsZero() bool {
	return id.value == ""
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id.quoted || id.value == "" {
		return json.Marshal(id.value)
	}
	return []byte(id.value), nil
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ID{}
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*id = ID{}
			return nil
		}
		*id = StringID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user id must be a string or number: %w", err)
	}
	*id = ID{value: n.String()}
	return nil
}
