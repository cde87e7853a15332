package models

import "time"

type DataPoint struct {
	Time time.Time `json:"time"`
	// Nil when the aggregate window had no samples.
	Value *float64 `json:"value"`
}

// HistoryResponse is the series returned for a HistoryQuery.
type HistoryResponse struct {
	Field  string      `json:"field"`
	Points []DataPoint `json:"points"`
}
