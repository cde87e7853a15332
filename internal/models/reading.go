package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Reading is the latest known value of every telemetry field. Nil means the
// device has never reported the field.
type Reading struct {
	FallStatus   *bool     `json:"fall_status"`
	HeartRate    *float64  `json:"heart_rate"`
	StepCount    *int64    `json:"step_count"`
	SleepHours   *float64  `json:"sleep_hours"`
	SpO2         *float64  `json:"spo2"`
	BatteryLevel *float64  `json:"battery_level"`
	WifiRSSI     *float64  `json:"wifi_rssi"`
	DeviceIP     *string   `json:"device_ip"`
	Timestamp    time.Time `json:"timestamp"`
}

// Clone returns a deep copy so callers never share pointers with the store.
func (r Reading) Clone() Reading {
	out := Reading{Timestamp: r.Timestamp}
	out.FallStatus = clonePtr(r.FallStatus)
	out.HeartRate = clonePtr(r.HeartRate)
	out.StepCount = clonePtr(r.StepCount)
	out.SleepHours = clonePtr(r.SleepHours)
	out.SpO2 = clonePtr(r.SpO2)
	out.BatteryLevel = clonePtr(r.BatteryLevel)
	out.WifiRSSI = clonePtr(r.WifiRSSI)
	out.DeviceIP = clonePtr(r.DeviceIP)
	return out
}

// ReadingPatch is a partial reading. Only non-nil fields are applied.
type ReadingPatch struct {
	FallStatus   *bool
	HeartRate    *float64
	StepCount    *int64
	SleepHours   *float64
	SpO2         *float64
	BatteryLevel *float64
	WifiRSSI     *float64
	DeviceIP     *string
}

// Empty reports whether the patch carries no fields at all.
func (p ReadingPatch) Empty() bool {
	return p == ReadingPatch{}
}

// ParseReadingPatch decodes an ingestion payload. Only malformed JSON is an
// error: a well-formed value that is not an object yields an empty patch, and
// individual fields that cannot be coerced are treated as absent.
func ParseReadingPatch(body []byte) (ReadingPatch, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		if json.Valid(body) {
			return ReadingPatch{}, nil
		}
		return ReadingPatch{}, fmt.Errorf("payload is not valid JSON: %w", err)
	}
	return ReadingPatch{
		FallStatus:   coerceBool(raw["fall_status"]),
		HeartRate:    coerceFloat(raw["heart_rate"]),
		StepCount:    coerceInt(raw["step_count"]),
		SleepHours:   coerceFloat(raw["sleep_hours"]),
		SpO2:         coerceFloat(raw["spo2"]),
		BatteryLevel: coerceFloat(raw["battery_level"]),
		WifiRSSI:     coerceFloat(raw["wifi_rssi"]),
		DeviceIP:     coerceString(raw["device_ip"]),
	}, nil
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// DeviceStatus is the connectivity payload pushed to observers.
type DeviceStatus struct {
	Connected bool `json:"connected"`
}
