package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// AlertKind distinguishes the two fall entry points.
type AlertKind string

const (
	AlertKindFallEdge   AlertKind = "fall_edge"
	AlertKindFallReport AlertKind = "fall_report"
)

// Alert is assembled at fan-out time and never stored.
type Alert struct {
	ID       string    `json:"id"`
	Kind     AlertKind `json:"kind"`
	DeviceID string    `json:"device_id,omitempty"`
	Reading  *Reading  `json:"reading,omitempty"`
	Location *Location `json:"location,omitempty"`
	Motion   *Motion   `json:"motion,omitempty"`
	RaisedAt time.Time `json:"raised_at"`

	// DeviceTime is the device's own timestamp text, when it sent one.
	DeviceTime string `json:"device_time,omitempty"`
}

// Motion carries the raw IMU values of a detailed fall report.
type Motion struct {
	AccX  float64 `json:"accX"`
	AccY  float64 `json:"accY"`
	AccZ  float64 `json:"accZ"`
	GyroX float64 `json:"gyroX"`
	GyroY float64 `json:"gyroY"`
	GyroZ float64 `json:"gyroZ"`
}

// FallReport is the payload of the detailed fall-detection endpoint.
type FallReport struct {
	DeviceID     string `json:"deviceId"`
	Motion       Motion `json:"-"`
	FallDetected bool   `json:"fallDetected"`
	Timestamp    string `json:"timestamp"`
}

// ParseFallReport decodes a detailed fall report. Unusable motion values
// read as zero and a missing fall flag reads as false.
func ParseFallReport(body []byte) (FallReport, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return FallReport{}, fmt.Errorf("fall report is not a JSON object: %w", err)
	}
	var r FallReport
	if id := coerceString(raw["deviceId"]); id != nil {
		r.DeviceID = *id
	}
	if ts := coerceString(raw["timestamp"]); ts != nil {
		r.Timestamp = *ts
	}
	if fall := coerceBool(raw["fallDetected"]); fall != nil {
		r.FallDetected = *fall
	}
	for key, dst := range map[string]*float64{
		"accX": &r.Motion.AccX, "accY": &r.Motion.AccY, "accZ": &r.Motion.AccZ,
		"gyroX": &r.Motion.GyroX, "gyroY": &r.Motion.GyroY, "gyroZ": &r.Motion.GyroZ,
	} {
		if v := coerceFloat(raw[key]); v != nil {
			*dst = *v
		}
	}
	return r, nil
}
