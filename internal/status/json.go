package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string         `json:"event,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Connectivity  string         `json:"connectivity"`
	Ready         bool           `json:"ready"`
	Color         string         `json:"color"`
	Message       string         `json:"message"`
	Thresholds    ThresholdsJSON `json:"thresholds"`
	LastPoll      *PollJSON      `json:"last_poll,omitempty"`
	Counts        CountsJSON     `json:"counts"`
	ClockSynced   bool           `json:"clock_synced"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Network       *NetworkJSON   `json:"network,omitempty"`
	Config        ConfigJSON     `json:"config"`
}

// ThresholdsJSON is the JSON representation of the threshold pair.
type ThresholdsJSON struct {
	Low  int    `json:"low"`
	High int    `json:"high"`
	Mode string `json:"mode"`
}

// PollJSON is the JSON representation of the last poll cycle.
type PollJSON struct {
	ID         string `json:"id"`
	Forced     bool   `json:"forced"`
	Timestamp  string `json:"timestamp"`
	HTTPStatus int    `json:"http_status"`
	Metric     int    `json:"metric"`
	Level      string `json:"level,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CountsJSON is the JSON representation of running totals.
type CountsJSON struct {
	Polls        int `json:"polls"`
	PollFailures int `json:"poll_failures"`
	ButtonEvents int `json:"button_events"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool           `json:"connected"`
	Broker    string         `json:"broker"`
	Queued    int            `json:"queued"`
	Dropped   map[string]int `json:"dropped,omitempty"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Interface string `json:"interface"`
	IP        string `json:"ip"`
	SSID      string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs         int64  `json:"tick_ms"`
	PollIntervalMs int64  `json:"poll_interval_ms"`
	HeartbeatMs    int64  `json:"heartbeat_ms"`
	Endpoint       string `json:"endpoint"`
	Broker         string `json:"broker"`
	HTTPPort       string `json:"http_port"`
}

func buildInner(snap Snapshot) StatusInner {
	conn := string(snap.Connectivity)
	if conn == "" {
		conn = "UNKNOWN"
	}
	color := snap.Color
	if color == "" {
		color = "OFF"
	}

	inner := StatusInner{
		Connectivity: conn,
		Ready:        snap.Connected(),
		Color:        color,
		Message:      snap.Message,
		Thresholds: ThresholdsJSON{
			Low:  snap.Thresholds.Low,
			High: snap.Thresholds.High,
			Mode: string(snap.Mode),
		},
		Counts: CountsJSON{
			Polls:        snap.Counts.Polls,
			PollFailures: snap.Counts.PollFailures,
			ButtonEvents: snap.Counts.ButtonEvents,
		},
		ClockSynced:   snap.ClockSynced,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT: MQTTStatus{
			Connected: snap.MQTTConnected,
			Broker:    snap.Config.Broker,
			Queued:    snap.MQTTQueued,
			Dropped:   snap.MQTTDropped,
		},
		Config: ConfigJSON{
			TickMs:         snap.Config.TickMs,
			PollIntervalMs: snap.Config.PollIntervalMs,
			HeartbeatMs:    snap.Config.HeartbeatMs,
			Endpoint:       snap.Config.Endpoint,
			Broker:         snap.Config.Broker,
			HTTPPort:       snap.Config.HTTPPort,
		},
	}

	if p := snap.LastPoll; p != nil {
		inner.LastPoll = &PollJSON{
			ID:         p.ID,
			Forced:     p.Forced,
			Timestamp:  p.Timestamp.UTC().Format(time.RFC3339),
			HTTPStatus: p.HTTPStatus,
			Metric:     p.Metric,
			Level:      string(p.Level),
			Error:      p.Error,
		}
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Interface: snap.Network.Interface,
			IP:        snap.Network.IP,
			SSID:      snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
