// Package poller runs the fetch, parse and render cycle for the stats metric.
//
// The HTTP request runs on its own goroutine so the loop keeps sampling
// buttons and blinking while it is in flight. Everything else (busy
// feedback, threshold lookup, rendering) happens on the loop goroutine:
// Trigger starts a cycle and Complete finishes it with the Outcome read
// from Results.
package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/semaphor/internal/logger"
	"github.com/sweeney/semaphor/internal/logic"
	"github.com/sweeney/semaphor/internal/render"
)

// Busy flash timing before each fetch.
const (
	flashTimes = 3
	flashDelay = 50 * time.Millisecond
)

// Sink is the render surface the poller writes to.
type Sink interface {
	SetColor(c render.Color)
	SetMessage(text string)
	Flash(c render.Color, times int, d time.Duration)
	Color() render.Color
	Message() string
}

// Poller owns at most one in-flight fetch.
// Trigger and Complete must be called from the same goroutine.
type Poller struct {
	fetcher Fetcher
	sink    Sink
	clock   func() string
	now     func() time.Time
	log     *logger.Logger

	results    chan Outcome
	inFlight   bool
	pending    *pendingCycle
	generation uint64

	// What the sink showed before the busy feedback of the running cycle.
	prevColor   render.Color
	prevMessage string
}

type pendingCycle struct {
	forced bool
}

// New creates a Poller. clock returns the HH:MM:SS text shown on screen.
func New(fetcher Fetcher, sink Sink, clock func() string, now func() time.Time, log *logger.Logger) *Poller {
	return &Poller{
		fetcher: fetcher,
		sink:    sink,
		clock:   clock,
		now:     now,
		log:     log,
		results: make(chan Outcome, 1),
	}
}

// Results delivers finished fetches. The loop must pass each one to Complete.
func (p *Poller) Results() <-chan Outcome {
	return p.results
}

// Abandon disowns the running cycle and drops any queued one. Complete
// discards the abandoned cycle's outcome without touching the sink. Used
// when the network the fetch went out on is being torn down.
func (p *Poller) Abandon() {
	p.generation++
	if p.pending != nil || p.inFlight {
		p.log.Infow("poll abandoned", "in_flight", p.inFlight, "queued", p.pending != nil)
	}
	p.pending = nil
}

// InFlight reports whether a fetch is running.
func (p *Poller) InFlight() bool {
	return p.inFlight
}

// Trigger starts a poll cycle. If one is already running, the request is
// queued and starts as soon as the running one completes; several queued
// requests collapse into one. It returns true if a fetch was started now.
func (p *Poller) Trigger(ctx context.Context, forced bool) bool {
	if p.inFlight {
		if p.pending == nil {
			p.pending = &pendingCycle{}
		}
		p.pending.forced = p.pending.forced || forced
		p.log.Debugw("poll queued behind in-flight fetch", "forced", forced)
		return false
	}
	p.start(ctx, forced)
	return true
}

func (p *Poller) start(ctx context.Context, forced bool) {
	id := uuid.New()
	clock := p.clock()
	started := p.now()

	p.prevColor = p.sink.Color()
	p.prevMessage = p.sink.Message()

	p.sink.Flash(render.Busy, flashTimes, flashDelay)
	p.sink.SetMessage("CONNECTING TO HTTP SERVER... " + clock)
	p.sink.SetColor(render.Busy)
	p.log.Infow("poll started", "id", id, "forced", forced)

	p.inFlight = true
	generation := p.generation
	go func() {
		out := p.fetcher.Fetch(ctx)
		out.generation = generation
		out.ID = id
		out.Forced = forced
		out.Started = started
		out.ClockText = clock
		p.results <- out
	}()
}

// Complete renders a finished fetch against the current thresholds and
// starts any queued cycle. It returns the outcome with Level and Rendered set.
//
// Failures never escape: a transport failure puts display and indicator
// back to what they showed before the cycle, a non-success status shows the
// body and keeps the previous colour, and a parse failure maps the
// ParseFailure sentinel like a reading. An outcome of an abandoned cycle
// comes back with Stale set and leaves the sink alone.
func (p *Poller) Complete(ctx context.Context, out Outcome, cfg logic.ThresholdConfig) Outcome {
	p.inFlight = false

	switch {
	case out.generation != p.generation:
		out.Stale = true
		p.log.Infow("discarding abandoned poll", "id", out.ID, "err", out.Err)

	case out.TransportFailed():
		p.log.Warnw("poll transport error", "id", out.ID, "err", out.Err)
		p.sink.SetMessage(p.prevMessage)
		p.sink.SetColor(p.prevColor)

	case !out.Reading():
		se, _ := out.StatusError()
		p.log.Warnw("poll http status error", "id", out.ID, "code", out.HTTPStatus, "err", se)
		p.sink.SetMessage("NOT OK. RESPONSE: " + out.Body)
		p.sink.SetColor(p.prevColor)

	default:
		if out.ParseFailed() {
			// -1 is indistinguishable from a real low reading on the indicator.
			p.log.Warnw("poll parse failure, using sentinel", "id", out.ID, "metric", out.Metric, "err", out.Err)
		}
		out.Level = logic.ColorFor(out.Metric, cfg)
		out.Rendered = true
		p.sink.SetMessage(fmt.Sprintf("Nº SERVICIOS: %d (%s)", out.Metric, out.ClockText))
		p.sink.SetColor(render.ForLevel(out.Level))
		p.log.Infow("poll complete", "id", out.ID, "code", out.HTTPStatus, "metric", out.Metric, "level", out.Level)
	}

	if p.pending != nil {
		forced := p.pending.forced
		p.pending = nil
		p.start(ctx, forced)
	}
	return out
}

// PollOnce runs a full cycle synchronously. It must not be called while a
// fetch is in flight.
func (p *Poller) PollOnce(ctx context.Context, cfg logic.ThresholdConfig, forced bool) Outcome {
	p.Trigger(ctx, forced)
	return p.Complete(ctx, <-p.results, cfg)
}
