package render

import (
	"image"
	"image/color"
	"sync"

	"tinygo.org/x/drivers"
)

// Display geometry of the 0.91" SSD1306 panel.
const (
	DisplayWidth  = 128
	DisplayHeight = 32
)

// Framebuffer is a monochrome back/front buffer pair that satisfies
// tinygo.org/x/drivers.Displayer. Drawing goes to the back buffer; Display
// publishes it to the front buffer, which Image reads. Image may be called
// from other goroutines (the HTTP status page).
type Framebuffer struct {
	w, h  int
	back  []bool
	mu    sync.RWMutex
	front []bool
	flush func([]bool) error
}

var _ drivers.Displayer = (*Framebuffer)(nil)

// NewFramebuffer creates a w×h framebuffer. flush, if non-nil, is called by
// Display with the published pixels (row-major, true = lit).
func NewFramebuffer(w, h int, flush func([]bool) error) *Framebuffer {
	return &Framebuffer{
		w:     w,
		h:     h,
		back:  make([]bool, w*h),
		front: make([]bool, w*h),
		flush: flush,
	}
}

// Size returns the display dimensions.
func (f *Framebuffer) Size() (x, y int16) {
	return int16(f.w), int16(f.h)
}

// SetPixel lights any pixel drawn with a non-black colour.
func (f *Framebuffer) SetPixel(x, y int16, c color.RGBA) {
	ix, iy := int(x), int(y)
	if ix < 0 || ix >= f.w || iy < 0 || iy >= f.h {
		return
	}
	f.back[iy*f.w+ix] = c.R != 0 || c.G != 0 || c.B != 0
}

// Clear blanks the back buffer.
func (f *Framebuffer) Clear() {
	for i := range f.back {
		f.back[i] = false
	}
}

// Display publishes the back buffer.
func (f *Framebuffer) Display() error {
	f.mu.Lock()
	copy(f.front, f.back)
	f.mu.Unlock()

	if f.flush != nil {
		return f.flush(f.back)
	}
	return nil
}

// Lit reports whether the published pixel at (x, y) is on.
func (f *Framebuffer) Lit(x, y int) bool {
	if x < 0 || x >= f.w || y < 0 || y >= f.h {
		return false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.front[y*f.w+x]
}

// Image returns a grayscale copy of the published pixels.
func (f *Framebuffer) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, f.w, f.h))
	f.mu.RLock()
	defer f.mu.RUnlock()
	for i, on := range f.front {
		if on {
			img.Pix[(i/f.w)*img.Stride+i%f.w] = 0xff
		}
	}
	return img
}
