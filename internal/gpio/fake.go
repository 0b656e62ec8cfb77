package gpio

import "errors"

// FakeReader is a test double that returns scripted button values.
type FakeReader struct {
	// Samples contains scripted values to return.
	// Each call to Read() consumes the next sample.
	Samples []Sample

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// Sample represents a single button reading (already in logical form).
type Sample struct {
	Primary   bool // true = pressed
	Secondary bool
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples []Sample) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read() (bool, bool, error) {
	if f.ReadError != nil {
		return false, false, f.ReadError
	}

	if len(f.Samples) == 0 {
		return false, false, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample.Primary, sample.Secondary, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Closed = false
}

// RGB is one recorded indicator write.
type RGB struct {
	R, G, B bool
}

// FakeLED records every write for test assertions.
type FakeLED struct {
	Writes   []RGB
	SetError error
	Closed   bool
}

// NewFakeLED creates an empty FakeLED.
func NewFakeLED() *FakeLED {
	return &FakeLED{}
}

// Set records the write.
func (f *FakeLED) Set(r, g, b bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.Writes = append(f.Writes, RGB{R: r, G: g, B: b})
	return nil
}

// Last returns the most recent write, or all-off if none.
func (f *FakeLED) Last() RGB {
	if len(f.Writes) == 0 {
		return RGB{}
	}
	return f.Writes[len(f.Writes)-1]
}

// Close marks the LED as closed.
func (f *FakeLED) Close() error {
	f.Closed = true
	return nil
}
