// Package device runs the indicator's cooperative main loop: it samples
// the buttons, dispatches decoded gestures, fires due timers and applies
// finished poll cycles, all on one goroutine.
package device

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sweeney/semaphor/internal/gpio"
	"github.com/sweeney/semaphor/internal/logger"
	"github.com/sweeney/semaphor/internal/logic"
	"github.com/sweeney/semaphor/internal/mqtt"
	"github.com/sweeney/semaphor/internal/poller"
	"github.com/sweeney/semaphor/internal/render"
	"github.com/sweeney/semaphor/internal/schedule"
	"github.com/sweeney/semaphor/internal/status"
)

// Loop timing.
const (
	DefaultTick         = 10 * time.Millisecond
	DefaultPollInterval = 60 * time.Second
	DefaultClockResync  = 60 * time.Second
	DefaultHeartbeat    = 15 * time.Minute
)

// Config holds the loop timing.
type Config struct {
	PollInterval time.Duration
	ClockResync  time.Duration
	Heartbeat    time.Duration // 0 disables
	Decoder      logic.DecoderConfig
	Thresholds   logic.ThresholdConfig
}

// DefaultConfig returns the device defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval: DefaultPollInterval,
		ClockResync:  DefaultClockResync,
		Heartbeat:    DefaultHeartbeat,
		Decoder:      logic.DefaultDecoderConfig(),
		Thresholds:   logic.DefaultThresholds(),
	}
}

// Connectivity is the network lifecycle the loop depends on.
type Connectivity interface {
	Start(ctx context.Context) error
	Reprovision(ctx context.Context) error
	State() logic.ConnectivityState
}

// Clock is the corrected wall clock.
type Clock interface {
	Sync()
	Synced() (time.Time, bool)
}

// Display is the part of the render sink the loop reads or writes directly.
type Display interface {
	SetMessage(text string)
	Color() render.Color
	Message() string
}

// Deps groups the Device's collaborators. Publisher, MQTTStatus, Tracker
// and Network may be nil. Network may block; it is called off the loop.
type Deps struct {
	Buttons      gpio.Reader
	Display      Display
	Poller       *poller.Poller
	Connectivity Connectivity
	Scheduler    *schedule.Scheduler
	Clock        Clock
	Publisher    mqtt.Publisher
	MQTTStatus   mqtt.ConnectionStatus
	Tracker      *status.Tracker
	Network      func() *status.NetworkInfo
	Now          func() time.Time
	Log          *logger.Logger
}

// Device owns the threshold state and the loop.
type Device struct {
	cfg        Config
	deps       Deps
	log        *logger.Logger
	decoder    *logic.Decoder
	thresholds *logic.Thresholds
	dispatch   DispatchTable

	pollTimer schedule.Handle
	fatal     error

	refreshing atomic.Bool
	background sync.WaitGroup
}

// New creates a Device bound with DefaultDispatch.
func New(cfg Config, deps Deps) *Device {
	return &Device{
		cfg:        cfg,
		deps:       deps,
		log:        deps.Log,
		decoder:    logic.NewDecoder(cfg.Decoder),
		thresholds: logic.NewThresholds(cfg.Thresholds),
		dispatch:   DefaultDispatch(),
	}
}

// Thresholds returns the current threshold pair and edit mode.
func (d *Device) Thresholds() (logic.ThresholdConfig, logic.EditMode) {
	return d.thresholds.Config(), d.thresholds.Mode()
}

// PollTimer returns the handle of the periodic poll timer, zero before
// the device is connected.
func (d *Device) PollTimer() schedule.Handle {
	return d.pollTimer
}

// Run publishes STARTUP, brings the network up, then loops until ctx ends
// or a signal arrives, publishing SHUTDOWN on the way out. It returns an
// error only when the network could not be brought up.
func (d *Device) Run(ctx context.Context, tick <-chan time.Time, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stopped := make(chan os.Signal, 1)
	go func() {
		select {
		case s := <-sig:
			stopped <- s
			cancel()
		case <-ctx.Done():
		}
	}()

	d.publishSystem("STARTUP", "")

	if err := d.deps.Connectivity.Start(ctx); err != nil {
		if ctx.Err() != nil {
			d.shutdown(stopped)
			return nil
		}
		return err
	}
	d.Connected(ctx)

	for {
		select {
		case <-ctx.Done():
			d.shutdown(stopped)
			return nil

		case out := <-d.deps.Poller.Results():
			d.Complete(ctx, out)

		case <-tick:
			d.Step(ctx)
			if d.fatal != nil {
				return d.fatal
			}
		}
	}
}

// Connected arms the recurring timers and runs the first poll.
func (d *Device) Connected(ctx context.Context) {
	d.pollTimer = d.deps.Scheduler.Attach(d.cfg.PollInterval, func() {
		d.poll(ctx, false)
	})
	if d.deps.Clock != nil {
		d.deps.Clock.Sync()
		d.deps.Scheduler.Attach(d.cfg.ClockResync, func() {
			if d.online() {
				d.deps.Clock.Sync()
			}
		})
	}
	if d.cfg.Heartbeat > 0 {
		d.deps.Scheduler.Attach(d.cfg.Heartbeat, func() {
			d.refreshNetwork()
			d.publishSystem("HEARTBEAT", "")
		})
	}
	d.refreshNetwork()
	d.log.Infow("device connected", "poll_interval", d.cfg.PollInterval, "thresholds", d.thresholds.Config())
	d.poll(ctx, false)
}

// online reports whether the network is up. The scheduler keeps running
// while the portal is open, so timers check this before touching the
// network.
func (d *Device) online() bool {
	return d.deps.Connectivity.State() == logic.StateConnected
}

// poll starts a cycle when online.
func (d *Device) poll(ctx context.Context, forced bool) {
	if !d.online() {
		d.log.Debugw("poll skipped", "state", d.deps.Connectivity.State(), "forced", forced)
		return
	}
	d.deps.Poller.Trigger(ctx, forced)
}

// Step runs one loop iteration: sample buttons, dispatch gestures, fire
// due timers.
func (d *Device) Step(ctx context.Context) {
	now := d.deps.Now()

	primary, secondary, err := d.deps.Buttons.Read()
	if err != nil {
		d.log.Warnw("button read error", "err", err)
	} else {
		events := d.decoder.Process(logic.Input{Primary: primary, Secondary: secondary, Time: now})
		for _, ev := range events {
			d.Dispatch(ctx, ev)
		}
	}

	d.deps.Scheduler.Run(now)
	d.updateTracker()
}

// Dispatch routes one gesture through the dispatch table. It reports
// whether a handler was bound.
func (d *Device) Dispatch(ctx context.Context, ev logic.ButtonEvent) bool {
	d.log.Debugw("button event", "source", ev.Source, "kind", ev.Kind)
	if d.deps.Tracker != nil {
		d.deps.Tracker.RecordButtonEvent()
	}
	h, ok := d.dispatch[Key{ev.Source, ev.Kind}]
	if !ok {
		d.log.Warnw("unbound button event", "source", ev.Source, "kind", ev.Kind)
		return false
	}
	h(d, ctx)
	return true
}

// Complete applies a finished fetch with the current thresholds.
func (d *Device) Complete(ctx context.Context, out poller.Outcome) poller.Outcome {
	cfg := d.thresholds.Config()
	out = d.deps.Poller.Complete(ctx, out, cfg)
	if out.Stale {
		return out
	}

	info := status.PollInfo{
		ID:         out.ID.String(),
		Forced:     out.Forced,
		Timestamp:  out.Timestamp,
		HTTPStatus: out.HTTPStatus,
		Metric:     out.Metric,
		Level:      out.Level,
	}
	if out.Err != nil {
		info.Error = out.Err.Error()
	}
	if d.deps.Tracker != nil {
		d.deps.Tracker.RecordPoll(info)
	}

	ev := d.event(mqtt.EventReading, out.Timestamp)
	if !out.Rendered {
		ev.Type = mqtt.EventPollFailed
	}
	ev.Reading = &mqtt.Reading{
		ID:         info.ID,
		Forced:     info.Forced,
		HTTPStatus: info.HTTPStatus,
		Metric:     info.Metric,
		Level:      string(info.Level),
		Error:      info.Error,
	}
	d.publish(ev)
	d.updateTracker()
	return out
}

func (d *Device) thresholdsChanged() {
	cfg, mode := d.thresholds.Config(), d.thresholds.Mode()
	d.deps.Display.SetMessage(d.thresholds.Label())
	d.log.Infow("thresholds", "low", cfg.Low, "high", cfg.High, "mode", mode)
	if d.deps.Tracker != nil {
		d.deps.Tracker.SetThresholds(cfg, mode)
	}
	d.publish(d.event(mqtt.EventThresholds, d.deps.Now()))
}

func (d *Device) event(typ mqtt.EventType, ts time.Time) mqtt.Event {
	cfg := d.thresholds.Config()
	return mqtt.Event{
		Timestamp: ts,
		Type:      typ,
		Low:       cfg.Low,
		High:      cfg.High,
		Mode:      string(d.thresholds.Mode()),
	}
}

func (d *Device) publish(ev mqtt.Event) {
	if d.deps.Publisher == nil {
		return
	}
	if err := d.deps.Publisher.Publish(ev); err != nil {
		d.log.Warnw("publish error", "event", ev.Type, "err", err)
	}
}

func (d *Device) publishSystem(event, reason string) {
	if d.deps.Publisher == nil {
		return
	}
	se := mqtt.SystemEvent{
		Timestamp: d.deps.Now(),
		Event:     event,
		Reason:    reason,
		Retained:  event != "HEARTBEAT",
	}
	if d.deps.Tracker != nil {
		d.updateTracker()
		se.RawPayload = status.FormatStatusEvent(d.deps.Tracker.Snapshot(), event, reason)
	}
	if err := d.deps.Publisher.PublishSystem(se); err != nil {
		d.log.Warnw("system publish error", "event", event, "err", err)
		return
	}
	d.log.Infow("published system event", "event", event)
}

func (d *Device) shutdown(stopped <-chan os.Signal) {
	reason := "CONTEXT"
	select {
	case s := <-stopped:
		reason = signalName(s)
	default:
	}
	d.log.Infow("shutting down", "reason", reason)
	d.background.Wait()
	d.publishSystem("SHUTDOWN", reason)
}

func (d *Device) updateTracker() {
	tr := d.deps.Tracker
	if tr == nil {
		return
	}
	tr.SetConnectivity(d.deps.Connectivity.State())
	tr.SetThresholds(d.thresholds.Config(), d.thresholds.Mode())
	tr.SetOutput(string(d.deps.Display.Color()), d.deps.Display.Message())
	if d.deps.Clock != nil {
		_, ok := d.deps.Clock.Synced()
		tr.SetClockSynced(ok)
	}
	if d.deps.MQTTStatus != nil {
		tr.SetMQTTConnected(d.deps.MQTTStatus.IsConnected())
		b := d.deps.MQTTStatus.Backlog()
		tr.SetMQTTBacklog(b.Queued, b.Dropped)
	}
}

// refreshNetwork looks up the network details on a background goroutine
// and hands them to the tracker. At most one lookup runs at a time.
func (d *Device) refreshNetwork() {
	if d.deps.Network == nil || d.deps.Tracker == nil {
		return
	}
	if !d.refreshing.CompareAndSwap(false, true) {
		return
	}
	d.background.Add(1)
	go func() {
		defer d.background.Done()
		defer d.refreshing.Store(false)
		if info := d.deps.Network(); info != nil {
			d.deps.Tracker.SetNetwork(info)
		}
	}()
}

// WaitBackground blocks until background lookups have finished.
func (d *Device) WaitBackground() {
	d.background.Wait()
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
