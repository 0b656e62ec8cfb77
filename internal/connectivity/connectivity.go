// Package connectivity owns the network association lifecycle: joining
// with stored credentials at boot, falling back to a time-bounded
// provisioning portal, and the fatal restart when provisioning times out.
package connectivity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/semaphor/internal/logger"
	"github.com/sweeney/semaphor/internal/logic"
	"github.com/sweeney/semaphor/internal/render"
	"github.com/sweeney/semaphor/internal/schedule"
)

var (
	// ErrNetwork means the device could not get onto a network at all.
	ErrNetwork = errors.New("network unavailable")
	// ErrProvisioningTimeout means nobody completed the portal in time.
	ErrProvisioningTimeout = errors.New("provisioning timed out")
	// ErrNoCredentials is returned by a Radio with nothing stored to join.
	ErrNoCredentials = errors.New("no stored credentials")
)

// Radio is the network association backend.
type Radio interface {
	// Associate joins the network using stored credentials.
	Associate(ctx context.Context) error
	// ResetCredentials forgets the stored credentials.
	ResetCredentials() error
	// Provision opens a portal advertising ssid and blocks until an
	// operator's credentials have been stored and associated, or ctx ends.
	Provision(ctx context.Context, ssid string) error
}

// Output is the render surface used for status text and blink feedback.
type Output interface {
	SetMessage(text string)
	SetColor(c render.Color)
	Toggle()
}

// Config holds the connection timing.
type Config struct {
	PortalSSID     string
	PortalTimeout  time.Duration
	ConnectTimeout time.Duration
	BlinkConnect   time.Duration // blink period while joining
	BlinkPortal    time.Duration // blink period while the portal is open
	RestartPause   time.Duration // how long the failure message stays up
}

// DefaultConfig returns the device timing.
func DefaultConfig() Config {
	return Config{
		PortalSSID:     "ERPSemaphor",
		PortalTimeout:  120 * time.Second,
		ConnectTimeout: 30 * time.Second,
		BlinkConnect:   600 * time.Millisecond,
		BlinkPortal:    200 * time.Millisecond,
		RestartPause:   3 * time.Second,
	}
}

// Deps groups the Manager's collaborators.
type Deps struct {
	Radio     Radio
	Output    Output
	Scheduler *schedule.Scheduler
	// Now is the monotonic clock the Scheduler and deadlines are measured on.
	Now func() time.Time
	// Tick paces the cooperative wait; the scheduler runs once per tick.
	Tick <-chan time.Time
	// Sleep implements the pause before restart.
	Sleep func(time.Duration)
	// Restart is the fatal path. In production it does not return.
	Restart func(reason error)
	Log     *logger.Logger
}

// Manager is the connectivity state machine. It is driven from the loop
// goroutine; while it waits on the radio it keeps the scheduler running
// so blink feedback continues.
type Manager struct {
	cfg   Config
	deps  Deps
	state logic.ConnectivityState
	blink schedule.Handle

	// OnChange, if set, is called after every state transition.
	OnChange func(from, to logic.ConnectivityState)
}

// New creates a Manager in the Connecting state.
func New(cfg Config, deps Deps) *Manager {
	return &Manager{
		cfg:   cfg,
		deps:  deps,
		state: logic.StateConnecting,
	}
}

// State returns the current connectivity state.
func (m *Manager) State() logic.ConnectivityState {
	return m.state
}

// Start runs the boot sequence: join with stored credentials, or fall back
// to the portal. It returns nil once Connected. If the portal times out the
// Restart hook is invoked and, should it return, Start returns an error
// wrapping ErrNetwork and ErrProvisioningTimeout.
func (m *Manager) Start(ctx context.Context) error {
	m.enter(logic.StateConnecting, "CONNECTING TO WIFI...", m.cfg.BlinkConnect)

	err := m.await(ctx, m.cfg.ConnectTimeout, m.deps.Radio.Associate)
	if err == nil {
		m.connected()
		return nil
	}
	if ctx.Err() != nil {
		m.stopBlink()
		return ctx.Err()
	}
	m.deps.Log.Warnw("stored credentials did not connect", "err", err)

	if err := m.provision(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return nil
}

// Reprovision is the operator-invoked downgrade from Connected: forget the
// stored credentials and reopen the portal. Ignored in any other state.
func (m *Manager) Reprovision(ctx context.Context) error {
	if m.state != logic.StateConnected {
		m.deps.Log.Infow("reprovision ignored", "state", m.state)
		return nil
	}
	if err := m.deps.Radio.ResetCredentials(); err != nil {
		m.deps.Log.Warnw("reset credentials failed", "err", err)
	}
	return m.provision(ctx)
}

func (m *Manager) provision(ctx context.Context) error {
	m.enter(logic.StateProvisioningActive, "STARTED CONFIG PORTAL", m.cfg.BlinkPortal)
	m.deps.Log.Infow("provisioning portal open", "ssid", m.cfg.PortalSSID, "timeout", m.cfg.PortalTimeout)

	err := m.await(ctx, m.cfg.PortalTimeout, func(ctx context.Context) error {
		return m.deps.Radio.Provision(ctx, m.cfg.PortalSSID)
	})
	if err == nil {
		m.connected()
		return nil
	}
	if ctx.Err() != nil {
		m.stopBlink()
		return ctx.Err()
	}

	m.fail(err)
	return ErrProvisioningTimeout
}

// fail is the fatal path: show the failure, pause, and restart.
func (m *Manager) fail(cause error) {
	m.stopBlink()
	m.transition(logic.StateProvisioningFailed)
	m.deps.Log.Errorw("provisioning failed, restarting", "err", cause)

	m.deps.Output.SetMessage("FAILED TO CONNECT AND HIT TIMEOUT...")
	m.deps.Sleep(m.cfg.RestartPause)
	m.deps.Output.SetMessage("RESETTING...")
	m.deps.Restart(fmt.Errorf("%w: %v", ErrProvisioningTimeout, cause))
}

func (m *Manager) connected() {
	m.stopBlink()
	m.deps.Output.SetColor(render.ColorOff)
	m.transition(logic.StateConnected)
	m.deps.Output.SetMessage("CONNECTED TO WIFI!")
}

func (m *Manager) enter(state logic.ConnectivityState, message string, blink time.Duration) {
	m.stopBlink()
	m.blink = m.deps.Scheduler.Attach(blink, m.deps.Output.Toggle)
	m.transition(state)
	m.deps.Output.SetMessage(message)
}

func (m *Manager) stopBlink() {
	if m.blink != 0 {
		m.deps.Scheduler.Detach(m.blink)
		m.blink = 0
	}
}

func (m *Manager) transition(to logic.ConnectivityState) {
	from := m.state
	m.state = to
	m.deps.Log.Infow("connectivity", "from", from, "to", to)
	if m.OnChange != nil {
		m.OnChange(from, to)
	}
}

var errDeadline = errors.New("deadline reached")

// await runs fn on its own goroutine and services the scheduler on every
// tick until fn returns, ctx ends, or timeout elapses on the injected clock.
// A zero timeout waits indefinitely.
func (m *Manager) await(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(cctx) }()

	var deadline time.Time
	if timeout > 0 {
		deadline = m.deps.Now().Add(timeout)
	}

	for {
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		case <-m.deps.Tick:
			now := m.deps.Now()
			m.deps.Scheduler.Run(now)
			if !deadline.IsZero() && !now.Before(deadline) {
				return fmt.Errorf("%w after %v", errDeadline, timeout)
			}
		}
	}
}
