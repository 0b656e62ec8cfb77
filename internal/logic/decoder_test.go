package logic

import (
	"testing"
	"time"
)

const step = 10 * time.Millisecond

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// feed drives the decoder with a primary-only pattern. Each entry is held
// for the given number of 10ms ticks. It returns all events and the time of
// the next sample.
type segment struct {
	primary   bool
	secondary bool
	ticks     int
}

func feed(d *Decoder, start time.Time, segs ...segment) ([]ButtonEvent, time.Time) {
	var events []ButtonEvent
	now := start
	for _, s := range segs {
		for i := 0; i < s.ticks; i++ {
			events = append(events, d.Process(Input{Primary: s.primary, Secondary: s.secondary, Time: now})...)
			now = now.Add(step)
		}
	}
	return events, now
}

func TestDecoderSingleClick(t *testing.T) {
	d := NewDecoder(DefaultDecoderConfig())

	events, _ := feed(d, t0,
		segment{primary: true, ticks: 10},  // 100ms press
		segment{primary: false, ticks: 50}, // 500ms quiet
	)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d: %+v", len(events), events)
	}
	if events[0].Source != ButtonPrimary || events[0].Kind != Click {
		t.Errorf("expected PRIMARY CLICK, got %s %s", events[0].Source, events[0].Kind)
	}
	if !d.Idle() {
		t.Error("decoder should be idle after click resolves")
	}
}

func TestDecoderClickWaitsForQuietWindow(t *testing.T) {
	d := NewDecoder(DefaultDecoderConfig())

	// Press 100ms, release 200ms: still inside the 400ms click window.
	events, _ := feed(d, t0,
		segment{primary: true, ticks: 10},
		segment{primary: false, ticks: 20},
	)
	if len(events) != 0 {
		t.Errorf("click must not resolve before the window closes, got %+v", events)
	}
}

func TestDecoderDoubleClick(t *testing.T) {
	d := NewDecoder(DefaultDecoderConfig())

	events, _ := feed(d, t0,
		segment{primary: true, ticks: 8},
		segment{primary: false, ticks: 10},
		segment{primary: true, ticks: 8},
		segment{primary: false, ticks: 60},
	)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d: %+v", len(events), events)
	}
	if events[0].Kind != DoubleClick {
		t.Errorf("expected DOUBLE_CLICK, got %s", events[0].Kind)
	}
}

func TestDecoderLongPressFiresWhileHeld(t *testing.T) {
	d := NewDecoder(DefaultDecoderConfig())

	// Hold for 1s: the event must appear before release.
	events, _ := feed(d, t0, segment{primary: true, ticks: 100})
	if len(events) != 1 {
		t.Fatalf("expected 1 event while held, got %d", len(events))
	}
	if events[0].Kind != LongPressStart {
		t.Errorf("expected LONG_PRESS_START, got %s", events[0].Kind)
	}
	if held := events[0].Timestamp.Sub(t0); held <= 800*time.Millisecond || held > 820*time.Millisecond {
		t.Errorf("long press fired at %v, want just past 800ms", held)
	}

	// Keep holding, then release: no further events.
	more, _ := feed(d, t0.Add(time.Second),
		segment{primary: true, ticks: 100},
		segment{primary: false, ticks: 60},
	)
	if len(more) != 0 {
		t.Errorf("expected no events after long press, got %+v", more)
	}
}

func TestDecoderIgnoresBounce(t *testing.T) {
	d := NewDecoder(DefaultDecoderConfig())

	// 20ms blip is shorter than the 50ms debounce.
	events, _ := feed(d, t0,
		segment{primary: true, ticks: 2},
		segment{primary: false, ticks: 80},
	)
	if len(events) != 0 {
		t.Errorf("expected bounce to be ignored, got %+v", events)
	}
}

func TestDecoderButtonsIndependent(t *testing.T) {
	d := NewDecoder(DefaultDecoderConfig())

	// Primary long press while secondary is clicked.
	events, _ := feed(d, t0,
		segment{primary: true, secondary: true, ticks: 10},
		segment{primary: true, secondary: false, ticks: 90},
		segment{primary: false, secondary: false, ticks: 10},
	)

	var primary, secondary []EventKind
	for _, e := range events {
		switch e.Source {
		case ButtonPrimary:
			primary = append(primary, e.Kind)
		case ButtonSecondary:
			secondary = append(secondary, e.Kind)
		}
	}
	if len(primary) != 1 || primary[0] != LongPressStart {
		t.Errorf("primary: got %v, want [LONG_PRESS_START]", primary)
	}
	if len(secondary) != 1 || secondary[0] != Click {
		t.Errorf("secondary: got %v, want [CLICK]", secondary)
	}
}

func TestDecoderPrimaryFirstOnSameSample(t *testing.T) {
	d := NewDecoder(DefaultDecoderConfig())

	events, _ := feed(d, t0,
		segment{primary: true, secondary: true, ticks: 10},
		segment{ticks: 50},
	)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Source != ButtonPrimary || events[1].Source != ButtonSecondary {
		t.Errorf("order: got %s, %s", events[0].Source, events[1].Source)
	}
}
