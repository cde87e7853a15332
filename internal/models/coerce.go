package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Lenient field decoding: devices send numbers as strings and booleans as
// 0/1 often enough that rejecting them would drop real telemetry.

func coerceFloat(raw json.RawMessage) *float64 {
	if isAbsent(raw) {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if f, err := n.Float64(); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return &f
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return &f
		}
	}
	return nil
}

func coerceInt(raw json.RawMessage) *int64 {
	f := coerceFloat(raw)
	if f == nil {
		return nil
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	r := math.Round(*f)
	if r >= math.MaxInt64 || r < math.MinInt64 {
		return nil
	}
	n := int64(r)
	return &n
}

func coerceBool(raw json.RawMessage) *bool {
	if isAbsent(raw) {
		return nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return &b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return &v
		}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		switch n.String() {
		case "0":
			v := false
			return &v
		case "1":
			v := true
			return &v
		}
	}
	return nil
}

func coerceString(raw json.RawMessage) *string {
	if isAbsent(raw) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		v := n.String()
		return &v
	}
	return nil
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
