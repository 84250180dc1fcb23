package source

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Encode serializes ds as a JSON array. An empty list encodes as "[]".
func Encode(ds []Descriptor) (string, error) {
	if ds == nil {
		ds = []Descriptor{}
	}
	data, err := json.Marshal(ds)
	if err != nil {
		return "", fmt.Errorf("encode sources: %w", err)
	}
	return string(data), nil
}

// Decode parses a list produced by Encode. An empty string decodes to an
// empty list. Entries without a database path or title are rejected.
func Decode(s string) ([]Descriptor, error) {
	if strings.TrimSpace(s) == "" {
		return []Descriptor{}, nil
	}
	var ds []Descriptor
	if err := json.Unmarshal([]byte(s), &ds); err != nil {
		return nil, fmt.Errorf("decode sources: %w", err)
	}
	if ds == nil {
		ds = []Descriptor{}
	}
	for i, d := range ds {
		if d.DatabasePath == "" || d.Title == "" {
			return nil, fmt.Errorf("decode sources: entry %d has no databasePath or title", i)
		}
	}
	return ds, nil
}
