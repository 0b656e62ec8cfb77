// Package logic contains the pure decision logic of the indicator.
// This package has NO external dependencies (no GPIO, HTTP, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// ButtonID names one of the two physical buttons.
type ButtonID string

const (
	ButtonPrimary   ButtonID = "PRIMARY"
	ButtonSecondary ButtonID = "SECONDARY"
)

// EventKind classifies a decoded button gesture.
type EventKind string

const (
	Click          EventKind = "CLICK"
	DoubleClick    EventKind = "DOUBLE_CLICK"
	LongPressStart EventKind = "LONG_PRESS_START"
)

// ButtonEvent is one decoded gesture, consumed exactly once by the dispatcher.
type ButtonEvent struct {
	Source    ButtonID
	Kind      EventKind
	Timestamp time.Time
}

// Input is a single sample of both buttons in logical form (true = pressed).
// The active-low inversion happens in the gpio package.
type Input struct {
	Primary   bool
	Secondary bool
	Time      time.Time
}

// EditMode selects which threshold the increment/decrement gestures change.
type EditMode string

const (
	EditLow  EditMode = "LOW"
	EditHigh EditMode = "HIGH"
)

// ThresholdConfig holds the two colour boundaries.
// low <= high is not enforced.
type ThresholdConfig struct {
	Low  int
	High int
}

// Default thresholds applied at every boot.
const (
	DefaultLowThreshold  = 40
	DefaultHighThreshold = 45
)

// DefaultThresholds returns the boot-time threshold pair.
func DefaultThresholds() ThresholdConfig {
	return ThresholdConfig{Low: DefaultLowThreshold, High: DefaultHighThreshold}
}

// ColorLevel is the traffic-light band a metric falls into.
type ColorLevel string

const (
	LevelLow  ColorLevel = "LOW"  // red
	LevelMid  ColorLevel = "MID"  // yellow
	LevelHigh ColorLevel = "HIGH" // green
)

// ConnectivityState is the network association lifecycle state.
type ConnectivityState string

const (
	StateConnecting         ConnectivityState = "CONNECTING"
	StateConnected          ConnectivityState = "CONNECTED"
	StateProvisioningActive ConnectivityState = "PROVISIONING_ACTIVE"
	StateProvisioningFailed ConnectivityState = "PROVISIONING_FAILED"
)
