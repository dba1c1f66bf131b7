package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ContentHashFor computes the content-addressable identity of a generated
// payload. The payload is canonicalized first (object keys sorted, whitespace
// stripped) so that formatting differences between two generations of the
// same content never produce distinct hashes.
func ContentHashFor(payload json.RawMessage) (string, error) {
	canonical, err := CanonicalJSON(payload)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize payload: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// TrailContentHashFor computes a trail-level content identity from the
// generated content of its lessons, which must be given in module/lesson
// order. Two trails with identical lesson content hash identically
// regardless of formatting. Placeholder lessons contribute nothing, so the
// hash is only meaningful once a trail is ready.
func TrailContentHashFor(lessons []Lesson) (string, error) {
	h := sha256.New()
	for _, lesson := range lessons {
		if lesson.Placeholder || len(lesson.Content) == 0 {
			continue
		}
		canonical, err := CanonicalJSON(lesson.Content)
		if err != nil {
			return "", fmt.Errorf("lesson %s: %w", lesson.ID, err)
		}
		h.Write(canonical)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// CanonicalJSON returns the canonical encoding of a JSON document. Decoding
// into interface values and re-encoding normalizes key order (encoding/json
// sorts map keys) and removes insignificant whitespace.
func CanonicalJSON(payload json.RawMessage) ([]byte, error) {
	var value any
	if err := json.Unmarshal(payload, &value); err != nil {
		return nil, fmt.Errorf("invalid JSON payload: %w", err)
	}

	canonical, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode payload: %w", err)
	}

	return canonical, nil
}
