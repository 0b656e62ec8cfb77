package connectivity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/semaphor/internal/connectivity"
	"github.com/sweeney/semaphor/internal/gpio"
	"github.com/sweeney/semaphor/internal/logger"
	"github.com/sweeney/semaphor/internal/logic"
	"github.com/sweeney/semaphor/internal/render"
	"github.com/sweeney/semaphor/internal/schedule"
	"github.com/sweeney/semaphor/internal/wifi"
)

// stepClock advances by step on every call. Only the manager's goroutine calls it.
type stepClock struct {
	t    time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func (c *stepClock) Peek() time.Time { return c.t }

// ticks feeds an endless tick stream until the test ends.
func ticks(t *testing.T) <-chan time.Time {
	t.Helper()
	ch := make(chan time.Time)
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case ch <- time.Time{}:
			case <-stop:
				return
			}
		}
	}()
	t.Cleanup(func() { close(stop) })
	return ch
}

type harness struct {
	mgr       *connectivity.Manager
	radio     *wifi.FakeRadio
	out       *render.Output
	led       *gpio.FakeLED
	clock     *stepClock
	restarts  []error
	slept     time.Duration
	states    []logic.ConnectivityState
	enteredAt map[logic.ConnectivityState]time.Time
	messages  []string
}

type recordingOutput struct {
	*render.Output
	h *harness
}

func (r recordingOutput) SetMessage(text string) {
	r.h.messages = append(r.h.messages, text)
	r.Output.SetMessage(text)
}

func newHarness(t *testing.T, cfg connectivity.Config) *harness {
	t.Helper()
	h := &harness{
		radio:     wifi.NewFakeRadio(),
		led:       gpio.NewFakeLED(),
		clock:     &stepClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), step: 10 * time.Millisecond},
		enteredAt: map[logic.ConnectivityState]time.Time{},
	}
	h.out = render.NewOutput(h.led, render.NewFramebuffer(render.DisplayWidth, render.DisplayHeight, nil), logger.Nop(), func(time.Duration) {})

	h.mgr = connectivity.New(cfg, connectivity.Deps{
		Radio:     h.radio,
		Output:    recordingOutput{Output: h.out, h: h},
		Scheduler: schedule.New(h.clock.Now),
		Now:       h.clock.Now,
		Tick:      ticks(t),
		Sleep:     func(d time.Duration) { h.slept += d },
		Restart:   func(reason error) { h.restarts = append(h.restarts, reason) },
		Log:       logger.Nop(),
	})
	h.mgr.OnChange = func(from, to logic.ConnectivityState) {
		h.states = append(h.states, to)
		h.enteredAt[to] = h.clock.Peek()
	}
	return h
}

func testConfig() connectivity.Config {
	cfg := connectivity.DefaultConfig()
	cfg.PortalTimeout = 2 * time.Second
	cfg.ConnectTimeout = time.Second
	return cfg
}

func TestStartConnectsWithStoredCredentials(t *testing.T) {
	h := newHarness(t, testConfig())

	if err := h.mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if h.mgr.State() != logic.StateConnected {
		t.Errorf("state: got %s, want CONNECTED", h.mgr.State())
	}
	if _, prov, _ := h.radio.Counts(); prov != 0 {
		t.Errorf("portal opened %d times, want 0", prov)
	}
	if h.out.Color() != render.ColorOff {
		t.Errorf("indicator after connect: got %s, want OFF", h.out.Color())
	}
	if h.out.Message() != "CONNECTED TO WIFI!" {
		t.Errorf("message: got %q", h.out.Message())
	}
	if len(h.messages) == 0 || h.messages[0] != "CONNECTING TO WIFI..." {
		t.Errorf("first message: got %v", h.messages)
	}
}

func TestStartFallsBackToPortal(t *testing.T) {
	h := newHarness(t, testConfig())
	h.radio.AssociateErr = connectivity.ErrNoCredentials
	h.radio.ProvisionOK = true

	if err := h.mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	want := []logic.ConnectivityState{logic.StateConnecting, logic.StateProvisioningActive, logic.StateConnected}
	if len(h.states) != len(want) {
		t.Fatalf("states: got %v, want %v", h.states, want)
	}
	for i := range want {
		if h.states[i] != want[i] {
			t.Errorf("state %d: got %s, want %s", i, h.states[i], want[i])
		}
	}
	if h.radio.LastSSID() != "ERPSemaphor" {
		t.Errorf("portal SSID: got %q", h.radio.LastSSID())
	}
	if len(h.restarts) != 0 {
		t.Errorf("unexpected restart: %v", h.restarts)
	}
}

func TestProvisioningTimeoutRestartsOnce(t *testing.T) {
	cfg := testConfig()
	h := newHarness(t, cfg)
	h.radio.AssociateErr = errors.New("auth failed")

	err := h.mgr.Start(context.Background())
	if !errors.Is(err, connectivity.ErrNetwork) || !errors.Is(err, connectivity.ErrProvisioningTimeout) {
		t.Fatalf("Start error: got %v, want ErrNetwork+ErrProvisioningTimeout", err)
	}

	if len(h.restarts) != 1 {
		t.Fatalf("restarts: got %d, want exactly 1", len(h.restarts))
	}
	if !errors.Is(h.restarts[0], connectivity.ErrProvisioningTimeout) {
		t.Errorf("restart reason: %v", h.restarts[0])
	}
	if h.mgr.State() != logic.StateProvisioningFailed {
		t.Errorf("state: got %s", h.mgr.State())
	}

	entered := h.enteredAt[logic.StateProvisioningActive]
	failed := h.enteredAt[logic.StateProvisioningFailed]
	if elapsed := failed.Sub(entered); elapsed < cfg.PortalTimeout {
		t.Errorf("restart after %v, must not be earlier than %v", elapsed, cfg.PortalTimeout)
	}

	if h.slept != cfg.RestartPause {
		t.Errorf("pause before restart: got %v, want %v", h.slept, cfg.RestartPause)
	}
	n := len(h.messages)
	if n < 2 || h.messages[n-2] != "FAILED TO CONNECT AND HIT TIMEOUT..." || h.messages[n-1] != "RESETTING..." {
		t.Errorf("failure messages: got %v", h.messages)
	}
}

func TestPortalBlinks(t *testing.T) {
	cfg := testConfig()
	cfg.ConnectTimeout = 2 * time.Second
	h := newHarness(t, cfg)
	h.radio.AssociateErr = errors.New("blocked")

	// Associate fails at once, so all blinking happens in the portal window.
	h.mgr.Start(context.Background())

	// 2s at 200ms ≈ 10 toggles; each toggle is one LED write.
	toggles := 0
	for _, w := range h.led.Writes {
		if w == (gpio.RGB{R: true, G: true, B: true}) {
			toggles++
		}
	}
	if toggles < 3 {
		t.Errorf("expected portal blinking, saw %d white phases", toggles)
	}
}

func TestReprovisionFromConnected(t *testing.T) {
	h := newHarness(t, testConfig())
	if err := h.mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	h.radio.ProvisionOK = true
	if err := h.mgr.Reprovision(context.Background()); err != nil {
		t.Fatalf("Reprovision: %v", err)
	}

	if _, prov, resets := h.radio.Counts(); resets != 1 || prov != 1 {
		t.Errorf("resets=%d provisions=%d, want 1/1", resets, prov)
	}
	if h.mgr.State() != logic.StateConnected {
		t.Errorf("state: got %s", h.mgr.State())
	}
}

func TestReprovisionTimeoutIsFatal(t *testing.T) {
	h := newHarness(t, testConfig())
	h.mgr.Start(context.Background())

	err := h.mgr.Reprovision(context.Background())
	if !errors.Is(err, connectivity.ErrProvisioningTimeout) {
		t.Fatalf("got %v, want ErrProvisioningTimeout", err)
	}
	if len(h.restarts) != 1 {
		t.Errorf("restarts: got %d, want 1", len(h.restarts))
	}
}

func TestReprovisionIgnoredWhenNotConnected(t *testing.T) {
	h := newHarness(t, testConfig())
	if err := h.mgr.Reprovision(context.Background()); err != nil {
		t.Fatalf("Reprovision: %v", err)
	}
	if _, prov, resets := h.radio.Counts(); prov != 0 || resets != 0 {
		t.Errorf("radio touched while CONNECTING: provisions=%d resets=%d", prov, resets)
	}
}

func TestStartCancelled(t *testing.T) {
	h := newHarness(t, testConfig())
	h.radio.AssociateErr = errors.New("nope")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.mgr.Start(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
	if len(h.restarts) != 0 {
		t.Error("cancellation must not restart the device")
	}
}
