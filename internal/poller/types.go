package poller

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/semaphor/internal/logic"
)

// Endpoint and parsing constants.
const (
	DefaultBaseURL = "https://derp.ndorma.com"
	StatsPath      = "/iot/stats/servicios"
	MaxBodyBytes   = 1024
	DefaultTimeout = 15 * time.Second
	// ParseFailure is the metric reported when the body cannot be parsed.
	// It flows into colour mapping like any other reading.
	ParseFailure = -1
)

// ErrTransport marks a fetch that never produced an HTTP response.
var ErrTransport = errors.New("transport error")

// ErrParse marks a success response whose body did not yield a count.
var ErrParse = errors.New("parse failure")

// HTTPStatusError is a completed response with a non-success status.
type HTTPStatusError struct {
	Code int
	Body string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http status %d", e.Code)
}

// Outcome is the result of one poll cycle. It lives for one cycle only.
type Outcome struct {
	ID        uuid.UUID
	Forced    bool      // triggered by a button rather than the schedule
	Started   time.Time // when the cycle was triggered
	Timestamp time.Time // when the fetch finished
	ClockText string    // HH:MM:SS captured at trigger time

	HTTPStatus int    // 0 when the transport failed
	Body       string // raw body, capped at MaxBodyBytes
	Metric     int    // ParseFailure when the body did not parse

	// Err is nil on a clean reading. Otherwise it wraps ErrTransport or
	// ErrParse, or is an *HTTPStatusError.
	Err error

	// Level and Rendered are filled in by Poller.Complete.
	Level    logic.ColorLevel
	Rendered bool
	// Stale is set by Complete when the cycle was abandoned while in
	// flight. A stale outcome is not rendered.
	Stale bool

	generation uint64
}

// TransportFailed reports whether no response was received.
func (o Outcome) TransportFailed() bool {
	return errors.Is(o.Err, ErrTransport)
}

// ParseFailed reports whether the metric is the ParseFailure sentinel
// because the body could not be parsed.
func (o Outcome) ParseFailed() bool {
	return errors.Is(o.Err, ErrParse)
}

// StatusError returns the non-success status error, if any.
func (o Outcome) StatusError() (*HTTPStatusError, bool) {
	var se *HTTPStatusError
	if errors.As(o.Err, &se) {
		return se, true
	}
	return nil, false
}

// Reading reports whether the cycle produced a metric for colour mapping,
// including the ParseFailure sentinel.
func (o Outcome) Reading() bool {
	return o.Err == nil || o.ParseFailed()
}
