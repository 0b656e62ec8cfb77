package render

import (
	"errors"
	"strings"
	"testing"
	"time"

	"tinygo.org/x/tinyfont/proggy"

	"github.com/sweeney/semaphor/internal/gpio"
	"github.com/sweeney/semaphor/internal/logger"
	"github.com/sweeney/semaphor/internal/logic"
)

func newTestOutput() (*Output, *gpio.FakeLED, *Framebuffer) {
	led := gpio.NewFakeLED()
	fb := NewFramebuffer(DisplayWidth, DisplayHeight, nil)
	return NewOutput(led, fb, logger.Nop(), func(time.Duration) {}), led, fb
}

func TestForLevel(t *testing.T) {
	cases := map[logic.ColorLevel]Color{
		logic.LevelLow:  ColorRed,
		logic.LevelMid:  ColorYellow,
		logic.LevelHigh: ColorGreen,
	}
	for level, want := range cases {
		if got := ForLevel(level); got != want {
			t.Errorf("ForLevel(%s): got %s, want %s", level, got, want)
		}
	}
}

func TestSetColorDrivesChannels(t *testing.T) {
	o, led, _ := newTestOutput()

	cases := []struct {
		c    Color
		want gpio.RGB
	}{
		{ColorRed, gpio.RGB{R: true}},
		{ColorYellow, gpio.RGB{R: true, G: true}},
		{ColorGreen, gpio.RGB{G: true}},
		{ColorBlue, gpio.RGB{B: true}},
		{ColorWhite, gpio.RGB{R: true, G: true, B: true}},
		{ColorOff, gpio.RGB{}},
	}
	for _, tc := range cases {
		o.SetColor(tc.c)
		if led.Last() != tc.want {
			t.Errorf("SetColor(%s): got %+v, want %+v", tc.c, led.Last(), tc.want)
		}
		if o.Color() != tc.c {
			t.Errorf("Color(): got %s, want %s", o.Color(), tc.c)
		}
	}
}

func TestSetColorFailureKeepsLast(t *testing.T) {
	o, led, _ := newTestOutput()
	o.SetColor(ColorGreen)
	led.SetError = errors.New("line busy")
	o.SetColor(ColorRed)
	if o.Color() != ColorGreen {
		t.Errorf("Color after failed write: got %s, want GREEN", o.Color())
	}
}

func TestToggle(t *testing.T) {
	o, _, _ := newTestOutput()
	o.Toggle()
	if o.Color() != ColorWhite {
		t.Errorf("first toggle: got %s", o.Color())
	}
	o.Toggle()
	if o.Color() != ColorOff {
		t.Errorf("second toggle: got %s", o.Color())
	}
}

func TestFlashEndsOff(t *testing.T) {
	o, led, _ := newTestOutput()
	o.Flash(ColorBlue, 3, 50*time.Millisecond)
	if len(led.Writes) != 6 {
		t.Errorf("writes: got %d, want 6", len(led.Writes))
	}
	if o.Color() != ColorOff {
		t.Errorf("after flash: got %s, want OFF", o.Color())
	}
}

func TestSetMessageDrawsPixels(t *testing.T) {
	o, _, fb := newTestOutput()

	o.SetMessage("MIN:40")
	if o.Message() != "MIN:40" {
		t.Errorf("Message: got %q", o.Message())
	}
	if countLit(fb) == 0 {
		t.Error("expected lit pixels after SetMessage")
	}

	o.SetMessage("")
	if n := countLit(fb); n != 0 {
		t.Errorf("empty message should clear display, %d pixels lit", n)
	}
}

func TestFramebufferImage(t *testing.T) {
	fb := NewFramebuffer(4, 2, nil)
	fb.SetPixel(1, 1, textColor)
	fb.SetPixel(9, 9, textColor) // out of range, ignored

	if fb.Lit(1, 1) {
		t.Error("pixel must not be visible before Display")
	}

	var flushed []bool
	fb.flush = func(px []bool) error {
		flushed = append([]bool(nil), px...)
		return nil
	}
	if err := fb.Display(); err != nil {
		t.Fatalf("Display: %v", err)
	}
	if !fb.Lit(1, 1) {
		t.Error("pixel should be visible after Display")
	}
	if len(flushed) != 8 || !flushed[5] {
		t.Errorf("flush got %v", flushed)
	}

	img := fb.Image()
	if img.GrayAt(1, 1).Y != 0xff || img.GrayAt(0, 0).Y != 0 {
		t.Errorf("image pixels wrong: (1,1)=%d (0,0)=%d", img.GrayAt(1, 1).Y, img.GrayAt(0, 0).Y)
	}
}

func TestWrapFitsWidth(t *testing.T) {
	font := &proggy.TinySZ8pt7b
	text := "CONNECTING TO HTTP SERVER... 12:34:56"

	lines := Wrap(font, text, DisplayWidth)
	if len(lines) < 2 {
		t.Fatalf("expected text to wrap, got %q", lines)
	}
	for _, l := range lines {
		if w := width(font, l); w > DisplayWidth {
			t.Errorf("line %q is %dpx wide, max %d", l, w, DisplayWidth)
		}
	}
	if got := strings.Join(lines, " "); got != text {
		t.Errorf("rejoined: got %q, want %q", got, text)
	}
}

func TestWrapSplitsLongWord(t *testing.T) {
	font := &proggy.TinySZ8pt7b
	word := strings.Repeat("X", 60)

	lines := Wrap(font, word, 40)
	if len(lines) < 2 {
		t.Fatalf("expected long word to split, got %q", lines)
	}
	if strings.Join(lines, "") != word {
		t.Errorf("split lost characters: %q", lines)
	}
	for _, l := range lines {
		if width(font, l) > 40 {
			t.Errorf("line %q exceeds width", l)
		}
	}
}

func countLit(fb *Framebuffer) int {
	n := 0
	w, h := fb.Size()
	for y := 0; y < int(h); y++ {
		for x := 0; x < int(w); x++ {
			if fb.Lit(x, y) {
				n++
			}
		}
	}
	return n
}
