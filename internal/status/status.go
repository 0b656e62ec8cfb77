// Package status provides a thread-safe status tracker for the semaphor daemon.
// It is read by the HTTP handlers and the MQTT status events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/semaphor/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/wifi from status.
type NetworkInfo struct {
	Interface string
	IP        string
	SSID      string
}

// PollInfo summarises the most recent poll cycle.
type PollInfo struct {
	ID         string
	Forced     bool
	Timestamp  time.Time
	HTTPStatus int
	Metric     int
	Level      logic.ColorLevel // empty when nothing was rendered
	Error      string
}

// Counts are running totals since boot.
type Counts struct {
	Polls        int
	PollFailures int
	ButtonEvents int
}

// Config contains daemon configuration for display.
type Config struct {
	TickMs         int64
	PollIntervalMs int64
	HeartbeatMs    int64
	Endpoint       string
	Broker         string
	HTTPPort       string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Connectivity  logic.ConnectivityState
	Thresholds    logic.ThresholdConfig
	Mode          logic.EditMode
	Color         string
	Message       string
	LastPoll      *PollInfo
	Counts        Counts
	ClockSynced   bool
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	MQTTQueued    int            // held while the broker is unreachable
	MQTTDropped   map[string]int // evicted from the outbox, by kind
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Connected reports whether the device has network association.
func (s Snapshot) Connected() bool {
	return s.Connectivity == logic.StateConnected
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Connectivity: logic.StateConnecting,
			Thresholds:   logic.DefaultThresholds(),
			Mode:         logic.EditLow,
			StartTime:    startTime,
			Config:       cfg,
		},
	}
}

// SetConnectivity records the connectivity state.
func (t *Tracker) SetConnectivity(s logic.ConnectivityState) {
	t.mu.Lock()
	t.snap.Connectivity = s
	t.mu.Unlock()
}

// SetThresholds records the threshold pair and edit mode.
func (t *Tracker) SetThresholds(cfg logic.ThresholdConfig, mode logic.EditMode) {
	t.mu.Lock()
	t.snap.Thresholds = cfg
	t.snap.Mode = mode
	t.mu.Unlock()
}

// SetOutput records what the indicator and display currently show.
func (t *Tracker) SetOutput(color, message string) {
	t.mu.Lock()
	t.snap.Color = color
	t.snap.Message = message
	t.mu.Unlock()
}

// RecordPoll stores the latest poll cycle and bumps the counters.
func (t *Tracker) RecordPoll(p PollInfo) {
	t.mu.Lock()
	t.snap.LastPoll = &p
	t.snap.Counts.Polls++
	if p.Error != "" {
		t.snap.Counts.PollFailures++
	}
	t.mu.Unlock()
}

// RecordButtonEvent bumps the decoded gesture counter.
func (t *Tracker) RecordButtonEvent() {
	t.mu.Lock()
	t.snap.Counts.ButtonEvents++
	t.mu.Unlock()
}

// SetClockSynced records whether wall-clock time came from NTP.
func (t *Tracker) SetClockSynced(synced bool) {
	t.mu.Lock()
	t.snap.ClockSynced = synced
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetMQTTBacklog records the MQTT outbox state. dropped is copied.
func (t *Tracker) SetMQTTBacklog(queued int, dropped map[string]int) {
	var cp map[string]int
	if len(dropped) > 0 {
		cp = make(map[string]int, len(dropped))
		for k, n := range dropped {
			cp[k] = n
		}
	}
	t.mu.Lock()
	t.snap.MQTTQueued = queued
	t.snap.MQTTDropped = cp
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.LastPoll != nil {
		p := *s.LastPoll
		s.LastPoll = &p
	}
	if s.Network != nil {
		n := *s.Network
		s.Network = &n
	}
	if s.MQTTDropped != nil {
		d := make(map[string]int, len(s.MQTTDropped))
		for k, n := range s.MQTTDropped {
			d[k] = n
		}
		s.MQTTDropped = d
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
