package variables

import "strings"

// Delimiter separates a variable key from its inline default, as in
// "title:Hello".
const Delimiter = ":"

// Variables is the ordered list of variable declarations on a template. Each
// entry is either a bare key or "key:default". Order is rendering order and
// duplicates are allowed.
type Variables struct {
	values []string
}

func New(values ...string) Variables {
	return Variables{values: values}
}

func (v Variables) IsEmpty() bool {
	return len(v.values) == 0
}

// Keys returns the declarations, optionally with inline defaults stripped.
func (v Variables) Keys(withDefault bool) []string {
	if withDefault {
		return append([]string(nil), v.values...)
	}
	keys := make([]string, len(v.values))
	for i, value := range v.values {
		keys[i] = keyOf(value)
	}
	return keys
}

// Find locates the declaration for key, optionally with its default attached.
func (v Variables) Find(key string, withDefault bool) (string, bool) {
	for _, value := range v.values {
		if value == key || strings.HasPrefix(value, key+Delimiter) {
			if withDefault {
				return value, true
			}
			return keyOf(value), true
		}
	}
	return "", false
}

// DefaultOf returns the inline default declared for key, if any.
func (v Variables) DefaultOf(key string) (string, bool) {
	for _, value := range v.values {
		if strings.HasPrefix(value, key+Delimiter) {
			return value[len(key)+len(Delimiter):], true
		}
	}
	return "", false
}

func keyOf(value string) string {
	if idx := strings.Index(value, Delimiter); idx >= 0 {
		return value[:idx]
	}
	return value
}
