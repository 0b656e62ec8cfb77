package render

import "github.com/sweeney/semaphor/internal/logic"

// Color is one of the indicator colours an on/off RGB LED can show.
type Color string

const (
	ColorOff    Color = "OFF"
	ColorRed    Color = "RED"
	ColorYellow Color = "YELLOW"
	ColorGreen  Color = "GREEN"
	ColorBlue   Color = "BLUE"
	ColorWhite  Color = "WHITE"
)

// Busy is the transient colour held while a fetch is in flight.
const Busy = ColorBlue

// ForLevel maps a traffic-light band onto its colour.
func ForLevel(level logic.ColorLevel) Color {
	switch level {
	case logic.LevelLow:
		return ColorRed
	case logic.LevelMid:
		return ColorYellow
	case logic.LevelHigh:
		return ColorGreen
	default:
		return ColorOff
	}
}

// channels returns the on/off state of each LED channel for c.
func (c Color) channels() (r, g, b bool) {
	switch c {
	case ColorRed:
		return true, false, false
	case ColorYellow:
		return true, true, false
	case ColorGreen:
		return false, true, false
	case ColorBlue:
		return false, false, true
	case ColorWhite:
		return true, true, true
	default:
		return false, false, false
	}
}
