package templates

import "encoding/json"

// decodeVariables reads the stored JSON array of variable declarations.
// Malformed or empty storage degrades to no variables rather than failing the
// whole fire attempt.
func decodeVariables(raw string) []string {
	if raw == "" {
		return nil
	}
	var decoded []string
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil
	}
	return decoded
}

// EncodeVariables serializes a declaration list for storage.
func EncodeVariables(values []string) string {
	if len(values) == 0 {
		return ""
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return ""
	}
	return string(encoded)
}
