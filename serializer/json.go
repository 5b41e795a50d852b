package serializer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// JSON deserializes JSON documents into T.
type JSON[T any] struct{}

// NewJSON returns a JSON serializer for T.
func NewJSON[T any]() JSON[T] {
	return JSON[T]{}
}

func (JSON[T]) Deserialize(data []byte) (T, error) {
	var v T
	if len(bytes.TrimSpace(data)) == 0 {
		return v, ErrEmptyBody
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode json: %w", err)
	}
	if err := check(v, &v); err != nil {
		return v, err
	}
	return v, nil
}

// ValidUntil returns the value's cached-until instant, or Expired.
// CREST resources carry no envelope, so they are normally Expired.
func (JSON[T]) ValidUntil(v T) time.Time {
	if t := validUntil(v); !t.IsZero() {
		return t
	}
	return validUntil(&v)
}
