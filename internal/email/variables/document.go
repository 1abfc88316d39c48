package variables

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/haneul-labs/crm-delivery/pkg/errors"
)

// Document is a recipient's parsed attribute document. Lookups never panic;
// missing keys simply report absence.
type Document struct {
	root map[string]any
}

// ParseDocument parses a raw JSON attribute document. An empty document is
// valid; anything that is not a JSON object is a format error.
func ParseDocument(raw string) (Document, error) {
	if raw == "" {
		return Document{root: map[string]any{}}, nil
	}
	var root map[string]any
	if err := json.Unmarshal([]byte(raw), &root); err != nil {
		return Document{}, errors.Wrap(errors.CodeFormat, err, "parsing attribute document")
	}
	return Document{root: root}, nil
}

// Get returns the stringified value at a top-level key.
func (d Document) Get(key string) (string, bool) {
	value, ok := d.root[key]
	if !ok || value == nil {
		return "", false
	}
	return stringify(value), true
}

// Lookup walks a nested path. Intermediate values may themselves be
// stringified JSON objects, which happens when attribute documents are
// assembled from flat imports.
func (d Document) Lookup(path []string) (string, bool) {
	if len(path) == 0 {
		return "", false
	}
	current := d.root
	for i := 0; i < len(path)-1; i++ {
		value, ok := current[path[i]]
		if !ok || value == nil {
			return "", false
		}
		next, ok := asObject(value)
		if !ok {
			return "", false
		}
		current = next
	}

	value, ok := current[path[len(path)-1]]
	if !ok || value == nil {
		return "", false
	}
	return stringify(value), true
}

func asObject(value any) (map[string]any, bool) {
	switch typed := value.(type) {
	case map[string]any:
		return typed, true
	case string:
		var nested map[string]any
		if err := json.Unmarshal([]byte(typed), &nested); err != nil {
			return nil, false
		}
		return nested, true
	default:
		return nil, false
	}
}

func stringify(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(typed)
	case map[string]any, []any:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprint(typed)
		}
		return string(encoded)
	default:
		return fmt.Sprint(typed)
	}
}
