package sqlite

import (
	"encoding/json"
	"fmt"
)

// encodeJSON marshals a value to the string form stored in a blob column.
func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeJSONMap unmarshals a stored blob column into a map. Empty blobs
// decode to an empty map, never nil.
func decodeJSONMap(blob string) (map[string]any, error) {
	out := make(map[string]any)
	if blob == "" || blob == "null" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(blob), &out); err != nil {
		return nil, fmt.Errorf("decoding JSON blob: %w", err)
	}
	return out, nil
}
