package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound     = errors.New("no reading found")
	ErrInvalidRange = errors.New("invalid range")
)

const (
	FieldSensor1   = "sensor1"
	FieldSensor2   = "sensor2"
	FieldSensor3   = "sensor3"
	FieldSensor4   = "sensor4"
	FieldTimestamp = "timestamp"
)

// SensorFields lists the channel field names in channel order.
var SensorFields = [SensorCount]string{FieldSensor1, FieldSensor2, FieldSensor3, FieldSensor4}

type Reason string

const (
	ReasonMissing    Reason = "missing"
	ReasonNotNumeric Reason = "not_numeric"
	ReasonOutOfRange Reason = "out_of_range"
)

type FieldError struct {
	Field  string `json:"field"`
	Reason Reason `json:"reason"`
}

// ValidationError enumerates every field of an input record that was rejected.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Add(field string, reason Reason) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason})
}

func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+string(f.Reason))
	}
	return "invalid sensor data: " + strings.Join(parts, ", ")
}

// RangeError reports a window whose bounds are reversed or unparsable.
// It matches ErrInvalidRange with errors.Is.
type RangeError struct {
	Detail string
}

func (e *RangeError) Error() string {
	return "invalid range: " + e.Detail
}

func (e *RangeError) Is(target error) bool {
	return target == ErrInvalidRange
}

// StorageError wraps a failure of the persistence back end.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// WrapStorage returns nil for a nil err and leaves domain errors untouched.
func WrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	var serr *StorageError
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidRange) || errors.As(err, &serr) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
