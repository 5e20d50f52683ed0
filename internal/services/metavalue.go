package services

import (
	"encoding/json"
	"fmt"
)

// encodeMetaValue returns the stored form of v. Strings are kept verbatim,
// nil becomes the empty string and everything else is JSON encoded, so 5
// and "5" share the same stored form.
func encodeMetaValue(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode meta value: %w", err)
	}
	return string(b), nil
}
