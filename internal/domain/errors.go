package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies measurement failures and diagnostics
type ErrorKind string

const (
	KindMissingAssumption    ErrorKind = "MissingAssumption"
	KindMissingRate          ErrorKind = "MissingRate"
	KindMissingTimelineEntry ErrorKind = "MissingTimelineEntry"
	KindInvalidDateOrdering  ErrorKind = "InvalidDateOrdering"
	KindNegativeIncrement    ErrorKind = "NegativeIncrement"
	KindMissingContract      ErrorKind = "MissingContract"
	KindMissingPattern       ErrorKind = "MissingPattern"
	KindMissingUnderlying    ErrorKind = "MissingUnderlyingLoss"
	KindInvalidInput         ErrorKind = "InvalidInput"
)

// Fatal reports whether a kind aborts a run
func (k ErrorKind) Fatal() bool {
	switch k {
	case KindMissingAssumption, KindInvalidDateOrdering, KindMissingContract, KindInvalidInput:
		return true
	}
	return false
}

// MeasurementError is a fatal measurement failure identifying the offending key
type MeasurementError struct {
	Kind    ErrorKind
	Key     string
	Message string
	Cause   error
}

func (e *MeasurementError) Error() string {
	msg := fmt.Sprintf("%s [%s]", e.Kind, e.Key)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *MeasurementError) Unwrap() error {
	return e.Cause
}

// NewMeasurementError creates a new measurement error
func NewMeasurementError(kind ErrorKind, key, message string, cause error) *MeasurementError {
	return &MeasurementError{Kind: kind, Key: key, Message: message, Cause: cause}
}

// IsKind reports whether err carries a MeasurementError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var me *MeasurementError
	if errors.As(err, &me) {
		return me.Kind == kind
	}
	return false
}

// Diagnostic is a non-fatal condition recorded during a run
type Diagnostic struct {
	Kind    ErrorKind `json:"kind"`
	Month   string    `json:"month,omitempty"`
	Key     string    `json:"key"`
	Message string    `json:"message"`
}

func (d Diagnostic) String() string {
	if d.Month == "" {
		return fmt.Sprintf("%s [%s] %s", d.Kind, d.Key, d.Message)
	}
	return fmt.Sprintf("%s %s [%s] %s", d.Month, d.Kind, d.Key, d.Message)
}

// Diagnostics is the per-run diagnostic log
type Diagnostics []Diagnostic

// Count returns how many diagnostics have the given kind
func (ds Diagnostics) Count(kind ErrorKind) int {
	n := 0
	for _, d := range ds {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// Filter returns the diagnostics of one kind
func (ds Diagnostics) Filter(kind ErrorKind) Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}
