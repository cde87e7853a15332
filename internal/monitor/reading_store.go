package monitor

import (
	"time"

	"FallWatch.iot/internal/models"
)

// ReadingStore holds the latest value of every telemetry field. It is not
// safe for concurrent use; Monitor serialises access.
type ReadingStore struct {
	current models.Reading
}

func NewReadingStore() *ReadingStore {
	return &ReadingStore{}
}

// Apply overlays the present fields of patch and stamps the update time.
func (s *ReadingStore) Apply(patch models.ReadingPatch, now time.Time) models.Reading {
	if patch.FallStatus != nil {
		v := *patch.FallStatus
		s.current.FallStatus = &v
	}
	if patch.HeartRate != nil {
		v := *patch.HeartRate
		s.current.HeartRate = &v
	}
	if patch.StepCount != nil {
		v := *patch.StepCount
		s.current.StepCount = &v
	}
	if patch.SleepHours != nil {
		v := *patch.SleepHours
		s.current.SleepHours = &v
	}
	if patch.SpO2 != nil {
		v := *patch.SpO2
		s.current.SpO2 = &v
	}
	if patch.BatteryLevel != nil {
		v := *patch.BatteryLevel
		s.current.BatteryLevel = &v
	}
	if patch.WifiRSSI != nil {
		v := *patch.WifiRSSI
		s.current.WifiRSSI = &v
	}
	if patch.DeviceIP != nil {
		v := *patch.DeviceIP
		s.current.DeviceIP = &v
	}
	s.current.Timestamp = now.UTC()
	return s.current.Clone()
}

// Snapshot returns a copy of the current reading.
func (s *ReadingStore) Snapshot() models.Reading {
	return s.current.Clone()
}
