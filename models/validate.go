package models

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
)

// ValidateRaw checks an untyped record, as decoded from a JSON body, and
// returns the typed reading. Every rejected field is reported, not just the first.
func ValidateRaw(raw map[string]any) (Reading, error) {
	verr := &ValidationError{}
	var values [SensorCount]float64

	for i, field := range SensorFields {
		v, reason := numberField(raw, field)
		if reason == "" && v < 0 {
			reason = ReasonOutOfRange
		}
		if reason != "" {
			verr.Add(field, reason)
			continue
		}
		values[i] = v
	}

	ts, reason := numberField(raw, FieldTimestamp)
	if reason == "" && (math.Trunc(ts) < 1 || ts >= math.MaxInt64) {
		reason = ReasonOutOfRange
	}
	if reason != "" {
		verr.Add(FieldTimestamp, reason)
	}

	if !verr.Empty() {
		return Reading{}, verr
	}
	return Reading{SensorValues: SensorValuesFrom(values), Timestamp: int64(ts)}, nil
}

func numberField(raw map[string]any, field string) (float64, Reason) {
	v, ok := raw[field]
	if !ok {
		return 0, ReasonMissing
	}
	f, reason := toFloat(v)
	if reason != "" {
		return 0, reason
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ReasonOutOfRange
	}
	return f, ""
}

func toFloat(a any) (float64, Reason) {
	switch t := a.(type) {
	case float64:
		return t, ""
	case float32:
		return float64(t), ""
	case int:
		return float64(t), ""
	case int32:
		return float64(t), ""
	case int64:
		return float64(t), ""
	case uint:
		return float64(t), ""
	case uint32:
		return float64(t), ""
	case uint64:
		return float64(t), ""
	case json.Number:
		f, err := strconv.ParseFloat(string(t), 64)
		if errors.Is(err, strconv.ErrRange) {
			return 0, ReasonOutOfRange
		}
		if err != nil {
			return 0, ReasonNotNumeric
		}
		return f, ""
	default:
		return 0, ReasonNotNumeric
	}
}
