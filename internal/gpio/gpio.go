// Package gpio provides button input and RGB indicator output with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementations allow testing without hardware.
package gpio

// Reader reads the two momentary buttons.
type Reader interface {
	// Read returns the logical pressed state of the primary and secondary
	// buttons. The inputs are active-low with pull-ups: raw 0 = pressed.
	Read() (primary, secondary bool, err error)

	// Close releases GPIO resources.
	Close() error
}

// LED drives the three channels of the RGB indicator.
type LED interface {
	// Set switches each channel on or off.
	Set(r, g, b bool) error

	// Close turns the indicator off and releases GPIO resources.
	Close() error
}

// Default pin assignments (BCM numbering).
const (
	DefaultChip         = "gpiochip0"
	DefaultPinPrimary   = 14
	DefaultPinSecondary = 15
	DefaultPinRed       = 17
	DefaultPinGreen     = 27
	DefaultPinBlue      = 22
)

// Pins groups the line offsets used by the device.
type Pins struct {
	Primary   int
	Secondary int
	Red       int
	Green     int
	Blue      int
}

// DefaultPins returns the default wiring.
func DefaultPins() Pins {
	return Pins{
		Primary:   DefaultPinPrimary,
		Secondary: DefaultPinSecondary,
		Red:       DefaultPinRed,
		Green:     DefaultPinGreen,
		Blue:      DefaultPinBlue,
	}
}

func boolToValue(on bool) int {
	if on {
		return 1
	}
	return 0
}
