package serializer

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"reflect"
	"time"
)

// ErrEmptyBody is returned when there is nothing to deserialize.
var ErrEmptyBody = errors.New("serializer: empty body")

// XML deserializes XML documents into T.
type XML[T any] struct{}

// NewXML returns an XML serializer for T.
func NewXML[T any]() XML[T] {
	return XML[T]{}
}

func (XML[T]) Deserialize(data []byte) (T, error) {
	var v T
	if len(bytes.TrimSpace(data)) == 0 {
		return v, ErrEmptyBody
	}
	if err := xml.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode xml: %w", err)
	}
	if err := check(v, &v); err != nil {
		return v, err
	}
	return v, nil
}

// ValidUntil returns the envelope's cached-until instant, or Expired.
func (XML[T]) ValidUntil(v T) time.Time {
	if t := validUntil(v); !t.IsZero() {
		return t
	}
	return validUntil(&v)
}

// checker lets a decoded envelope reject itself, e.g. when it reports an API error.
type checker interface {
	Check() error
}

// check runs Check on the decoded value or on its address, whichever implements it.
func check(v, pv any) error {
	if c, ok := v.(checker); ok && !isNilPointer(v) {
		return c.Check()
	}
	if c, ok := pv.(checker); ok {
		return c.Check()
	}
	return nil
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
