package domain

import (
	"strconv"
	"strings"
)

// Signal type prefixes. Any other string is a literal signal name.
const (
	SignalTimer        = "Timer"
	SignalCompensation = "Compensation"

	timerPrefix = SignalTimer + "-"
)

// Event is a named signal with an opaque payload.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// TimerSignal returns the signal type of a firing correlated to a node instance.
func TimerSignal(nodeInstanceID int64) string {
	return timerPrefix + strconv.FormatInt(nodeInstanceID, 10)
}

// CompensationSignal returns the signal type compensating a specific node.
// An empty uniqueID yields the generic "Compensation" signal.
func CompensationSignal(uniqueID string) string {
	if uniqueID == "" {
		return SignalCompensation
	}
	return SignalCompensation + "-" + uniqueID
}

// IsTimerSignal reports whether the signal originates from a timer firing.
func IsTimerSignal(signalType string) bool {
	return strings.HasPrefix(signalType, timerPrefix)
}

// IsCompensationSignal reports whether the signal requests compensation.
func IsCompensationSignal(signalType string) bool {
	return strings.HasPrefix(signalType, SignalCompensation)
}

// ParseTimerSignal extracts the correlated node-instance id from "Timer-<id>".
func ParseTimerSignal(signalType string) (int64, bool) {
	if !IsTimerSignal(signalType) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(signalType, timerPrefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
