package eveonline

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the timestamp format used throughout the XML API. All times
// are UTC.
const TimeLayout = "2006-01-02 15:04:05"

// Response is the <eveapi> envelope wrapping every XML API result.
type Response[T any] struct {
	XMLName     xml.Name  `xml:"eveapi"`
	Version     int       `xml:"version,attr"`
	CurrentTime Time      `xml:"currentTime"`
	Result      T         `xml:"result"`
	Error       *APIError `xml:"error"`
	Until       Time      `xml:"cachedUntil"`
}

// CachedUntil is the server-declared end of the response's validity window.
func (r Response[T]) CachedUntil() time.Time { return r.Until.Time }

// Check rejects envelopes that report an API error so they are never cached.
func (r Response[T]) Check() error {
	if r.Error != nil {
		return r.Error
	}
	return nil
}

// APIError is the <error code="..."> element returned instead of a result.
type APIError struct {
	Code    int    `xml:"code,attr"`
	Message string `xml:",chardata"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("eve api error %d: %s", e.Code, strings.TrimSpace(e.Message))
}

// Time decodes XML API timestamps from elements and attributes. Empty values
// decode to the zero time.
type Time struct {
	time.Time
}

func (t *Time) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var s string
	if err := d.DecodeElement(&s, &start); err != nil {
		return err
	}
	return t.parse(s)
}

func (t *Time) UnmarshalXMLAttr(attr xml.Attr) error {
	return t.parse(attr.Value)
}

func (t *Time) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.ParseInLocation(TimeLayout, s, time.UTC)
	if err != nil {
		return fmt.Errorf("parse eve time %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// Bool decodes the "True"/"False" and "1"/"0" flags the XML API uses.
type Bool bool

func (b *Bool) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var s string
	if err := d.DecodeElement(&s, &start); err != nil {
		return err
	}
	*b = parseBool(s)
	return nil
}

func (b *Bool) UnmarshalXMLAttr(attr xml.Attr) error {
	*b = parseBool(attr.Value)
	return nil
}

func parseBool(s string) Bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	}
	return false
}
