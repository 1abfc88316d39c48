package variables

import (
	"regexp"
	"strings"
)

// typeDelimiter splits the key-kind prefix from the rest of a key.
const typeDelimiter = "_"

const (
	attributePrefix = "attribute" + typeDelimiter
	customPrefix    = "custom" + typeDelimiter
)

var numericRe = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// IsNumeric reports whether a resolved value looks like a number, for callers
// that substitute numerics differently from strings.
func IsNumeric(value string) bool {
	return numericRe.MatchString(value)
}

// Resolve produces the substitution value for one declared key. The document
// wins, then the declaration's inline default, then the empty string. Missing
// keys are never an error.
func Resolve(key string, doc Document, vars Variables) (string, string) {
	if value, ok := lookup(key, doc); ok {
		return key, value
	}
	if fallback, ok := vars.DefaultOf(key); ok {
		return key, fallback
	}
	return key, ""
}

// ResolveAll resolves every declared key in order and merges the results.
func ResolveAll(vars Variables, doc Document) map[string]string {
	resolved := make(map[string]string)
	for _, key := range vars.Keys(false) {
		name, value := Resolve(key, doc, vars)
		resolved[name] = value
	}
	return resolved
}

// lookup dispatches on the key's kind. "attribute_x" reads the top-level key
// x, "custom_a_b" walks the nested path a.b, and a bare key reads the top
// level directly.
func lookup(key string, doc Document) (string, bool) {
	switch {
	case strings.HasPrefix(key, attributePrefix):
		return doc.Get(strings.TrimPrefix(key, attributePrefix))
	case strings.HasPrefix(key, customPrefix):
		path := strings.Split(strings.TrimPrefix(key, customPrefix), typeDelimiter)
		return doc.Lookup(path)
	default:
		return doc.Get(key)
	}
}
