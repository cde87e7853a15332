package models

// HistoryQuery selects one reading field over a Flux time range.
type HistoryQuery struct {
	Field        string `json:"field"`
	Start        string `json:"start"`
	Stop         string `json:"stop"`
	WindowPeriod string `json:"windowPeriod"`
}
