package messaging

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Payload is the opaque body of an inbound message: the raw string posted by
// page script, or JSON text when script posted a non-string value.
// The bridge never decodes it; Decode is a helper for consumers.
type Payload string

// String returns the payload text.
func (p Payload) String() string {
	return string(p)
}

// Bytes returns the payload as a byte slice.
func (p Payload) Bytes() []byte {
	return []byte(p)
}

// IsJSON reports whether the payload looks like a JSON object or array.
// Plain strings such as "hello" are not treated as JSON.
func (p Payload) IsJSON() bool {
	trimmed := strings.TrimSpace(string(p))
	if trimmed == "" {
		return false
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return false
	}
	return json.Valid([]byte(trimmed))
}

// Decode unmarshals the payload into v. Callers fall back to String() when
// it fails: a malformed payload is never an error for the bridge.
func (p Payload) Decode(v any) error {
	if err := json.Unmarshal([]byte(p), v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
