// Package render drives the indicator LED and the text display.
// It holds no state beyond what was last written.
package render

import (
	"image/color"
	"time"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"

	"github.com/sweeney/semaphor/internal/gpio"
	"github.com/sweeney/semaphor/internal/logger"
)

var textColor = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

// Output is the render sink: one RGB indicator and one text display.
// Not safe for concurrent use; it is owned by the loop goroutine.
type Output struct {
	led   gpio.LED
	fb    *Framebuffer
	font  tinyfont.Fonter
	log   *logger.Logger
	sleep func(time.Duration)

	color   Color
	message string
}

// NewOutput creates an Output writing to led and fb. sleep paces Flash;
// pass time.Sleep in production.
func NewOutput(led gpio.LED, fb *Framebuffer, log *logger.Logger, sleep func(time.Duration)) *Output {
	return &Output{
		led:   led,
		fb:    fb,
		font:  &proggy.TinySZ8pt7b,
		log:   log,
		sleep: sleep,
		color: ColorOff,
	}
}

// SetColor shows c on the indicator.
func (o *Output) SetColor(c Color) {
	r, g, b := c.channels()
	if err := o.led.Set(r, g, b); err != nil {
		o.log.Warnw("indicator write failed", "color", c, "err", err)
		return
	}
	o.color = c
}

// Color returns the colour last written.
func (o *Output) Color() Color {
	return o.color
}

// Toggle alternates between white and off. Used for connection blink.
func (o *Output) Toggle() {
	if o.color == ColorOff {
		o.SetColor(ColorWhite)
		return
	}
	o.SetColor(ColorOff)
}

// Flash blinks c times times, holding each phase for d, and ends off.
func (o *Output) Flash(c Color, times int, d time.Duration) {
	for i := 0; i < times; i++ {
		o.SetColor(c)
		o.sleep(d)
		o.SetColor(ColorOff)
		o.sleep(d)
	}
}

// SetMessage clears the display and draws text word-wrapped to its width.
// Lines that do not fit vertically are dropped.
func (o *Output) SetMessage(text string) {
	o.message = text
	o.log.Infow("display message", "text", text)

	o.fb.Clear()
	w, h := o.fb.Size()
	lineHeight := int16(o.font.GetYAdvance())
	for i, line := range Wrap(o.font, text, int(w)) {
		baseline := int16(i+1)*lineHeight - 3
		if baseline >= h {
			break
		}
		tinyfont.WriteLine(o.fb, o.font, 0, baseline, line, textColor)
	}
	if err := o.fb.Display(); err != nil {
		o.log.Warnw("display flush failed", "err", err)
	}
}

// Message returns the text last written.
func (o *Output) Message() string {
	return o.message
}
