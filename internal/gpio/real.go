//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads the buttons from hardware using the Linux GPIO character device.
type RealReader struct {
	chip      *gpiocdev.Chip
	primary   *gpiocdev.Line
	secondary *gpiocdev.Line
}

// NewRealReader requests both button lines as inputs with pull-ups.
func NewRealReader(chipName string, pinPrimary, pinSecondary int) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	primary, err := chip.RequestLine(pinPrimary, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request primary pin %d: %w", pinPrimary, err)
	}

	secondary, err := chip.RequestLine(pinSecondary, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		primary.Close()
		chip.Close()
		return nil, fmt.Errorf("request secondary pin %d: %w", pinSecondary, err)
	}

	return &RealReader{
		chip:      chip,
		primary:   primary,
		secondary: secondary,
	}, nil
}

// Read returns the pressed state of both buttons.
// Inverts raw GPIO: raw 0 (pulled to ground) = pressed.
func (r *RealReader) Read() (bool, bool, error) {
	pRaw, err := r.primary.Value()
	if err != nil {
		return false, false, fmt.Errorf("read primary pin: %w", err)
	}

	sRaw, err := r.secondary.Value()
	if err != nil {
		return false, false, fmt.Errorf("read secondary pin: %w", err)
	}

	return pRaw == 0, sRaw == 0, nil
}

// Close releases the button lines and the chip.
func (r *RealReader) Close() error {
	var errs []error

	if r.primary != nil {
		if err := r.primary.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close primary pin: %w", err))
		}
	}
	if r.secondary != nil {
		if err := r.secondary.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close secondary pin: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealLED drives a common-cathode RGB LED from three output lines.
type RealLED struct {
	chip  *gpiocdev.Chip
	lines [3]*gpiocdev.Line
}

// NewRealLED requests the three colour lines as outputs, initially off.
func NewRealLED(chipName string, pinRed, pinGreen, pinBlue int) (*RealLED, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	led := &RealLED{chip: chip}
	for i, pin := range []int{pinRed, pinGreen, pinBlue} {
		line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
		if err != nil {
			led.Close()
			return nil, fmt.Errorf("request led pin %d: %w", pin, err)
		}
		led.lines[i] = line
	}
	return led, nil
}

// Set switches each colour channel.
func (l *RealLED) Set(r, g, b bool) error {
	for i, on := range [3]bool{r, g, b} {
		if err := l.lines[i].SetValue(boolToValue(on)); err != nil {
			return fmt.Errorf("set led channel %d: %w", i, err)
		}
	}
	return nil
}

// Close switches the LED off before releasing the lines, so the indicator
// does not keep showing a stale colour after the daemon exits.
func (l *RealLED) Close() error {
	var errs []error
	for i, line := range l.lines {
		if line == nil {
			continue
		}
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear led channel %d: %w", i, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close led channel %d: %w", i, err))
		}
	}
	if l.chip != nil {
		if err := l.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
