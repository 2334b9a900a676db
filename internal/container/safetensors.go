package container

import (
	"encoding/json"
	"strings"
)

// ReadHeaderMetadata returns the "__metadata__" entries of a safetensors-style structural header.
// String values holding JSON objects are decoded in place. Any failure yields an empty map,
// since the header metadata is informational only.
func ReadHeaderMetadata(header []byte) map[string]any {
	var doc struct {
		Metadata map[string]any `json:"__metadata__"`
	}

	if err := json.Unmarshal(header, &doc); err != nil || doc.Metadata == nil {
		return map[string]any{}
	}

	for key, value := range doc.Metadata {
		str, ok := value.(string)
		if !ok || !strings.HasPrefix(str, "{") {
			continue
		}

		var nested map[string]any
		if err := json.Unmarshal([]byte(str), &nested); err == nil {
			doc.Metadata[key] = nested
		}
	}

	return doc.Metadata
}
