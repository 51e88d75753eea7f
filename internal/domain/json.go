package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// jsonValue serializes v for a text column. nil maps to the given empty literal.
func jsonValue(v interface{}, empty string) (driver.Value, error) {
	if v == nil {
		return empty, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// scanJSON decodes a text or blob column into dst.
func scanJSON(value interface{}, dst interface{}, name string) error {
	var bytes []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("failed to scan %s: unexpected type %T", name, value)
	}
	if len(bytes) == 0 {
		return nil
	}
	return json.Unmarshal(bytes, dst)
}
