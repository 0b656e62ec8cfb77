package logic

import "time"

// DecoderConfig holds the gesture timing windows.
type DecoderConfig struct {
	// Presses shorter than Debounce are treated as contact bounce.
	Debounce time.Duration
	// Click is the window, measured from the first press, within which a
	// second press turns a click into a double click.
	Click time.Duration
	// LongPress is how long a press must be held before LongPressStart fires.
	LongPress time.Duration
}

// DefaultDecoderConfig returns the timing used on the device.
func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{
		Debounce:  50 * time.Millisecond,
		Click:     400 * time.Millisecond,
		LongPress: 800 * time.Millisecond,
	}
}

type phase uint8

const (
	phaseIdle       phase = iota // released, nothing pending
	phaseDown                    // first press in progress
	phaseUp                      // released after first press, waiting for second
	phaseSecondDown              // second press in progress
	phaseLong                    // long press fired, waiting for release
)

// buttonState tracks the gesture state of a single button.
type buttonState struct {
	phase     phase
	startTime time.Time // first press of the current gesture
	stopTime  time.Time // release of the first press
}

// Decoder turns raw pressed/released samples into gesture events.
// Each button is decoded independently.
type Decoder struct {
	cfg       DecoderConfig
	primary   buttonState
	secondary buttonState
}

// NewDecoder creates a decoder with the given timing.
func NewDecoder(cfg DecoderConfig) *Decoder {
	return &Decoder{cfg: cfg}
}

// Process takes a new sample and returns the events it completes.
// When both buttons complete a gesture on the same sample, the primary
// event comes first.
func (d *Decoder) Process(input Input) []ButtonEvent {
	var events []ButtonEvent

	if kind, ok := d.processButton(&d.primary, input.Primary, input.Time); ok {
		events = append(events, ButtonEvent{Source: ButtonPrimary, Kind: kind, Timestamp: input.Time})
	}
	if kind, ok := d.processButton(&d.secondary, input.Secondary, input.Time); ok {
		events = append(events, ButtonEvent{Source: ButtonSecondary, Kind: kind, Timestamp: input.Time})
	}

	return events
}

// processButton advances one button's state machine.
// Returns the completed gesture, if any.
func (d *Decoder) processButton(b *buttonState, pressed bool, now time.Time) (EventKind, bool) {
	switch b.phase {
	case phaseIdle:
		if pressed {
			b.phase = phaseDown
			b.startTime = now
		}

	case phaseDown:
		held := now.Sub(b.startTime)
		switch {
		case !pressed && held < d.cfg.Debounce:
			// Bounce, not a press
			b.phase = phaseIdle
		case !pressed:
			b.phase = phaseUp
			b.stopTime = now
		case held > d.cfg.LongPress:
			b.phase = phaseLong
			return LongPressStart, true
		}

	case phaseUp:
		if now.Sub(b.startTime) > d.cfg.Click {
			b.phase = phaseIdle
			return Click, true
		}
		if pressed && now.Sub(b.stopTime) > d.cfg.Debounce {
			b.phase = phaseSecondDown
			b.startTime = now
		}

	case phaseSecondDown:
		if !pressed && now.Sub(b.startTime) > d.cfg.Debounce {
			b.phase = phaseIdle
			return DoubleClick, true
		}

	case phaseLong:
		if !pressed {
			b.phase = phaseIdle
		}
	}

	return "", false
}

// Idle reports whether neither button has a gesture in progress.
func (d *Decoder) Idle() bool {
	return d.primary.phase == phaseIdle && d.secondary.phase == phaseIdle
}
