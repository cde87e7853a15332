package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Location is the last position reported by a dashboard observer.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	Timestamp int64   `json:"timestamp"` // capture instant, Unix milliseconds
}

// MapsURL links the location on Google Maps.
func (l Location) MapsURL() string {
	return fmt.Sprintf("https://www.google.com/maps?q=%v,%v", l.Latitude, l.Longitude)
}

var ErrInvalidLocation = errors.New("location requires numeric latitude and longitude")

// ParseLocation decodes a location report. Latitude and longitude are
// required; accuracy and timestamp fall back to zero when unusable.
func ParseLocation(body []byte) (Location, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return Location{}, fmt.Errorf("location is not a JSON object: %w", err)
	}
	lat := coerceFloat(raw["latitude"])
	lon := coerceFloat(raw["longitude"])
	if lat == nil || lon == nil {
		return Location{}, ErrInvalidLocation
	}
	loc := Location{Latitude: *lat, Longitude: *lon}
	if acc := coerceFloat(raw["accuracy"]); acc != nil {
		loc.Accuracy = *acc
	}
	if ts := coerceInt(raw["timestamp"]); ts != nil {
		loc.Timestamp = *ts
	}
	return loc, nil
}
