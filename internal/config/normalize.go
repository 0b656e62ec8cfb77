package config

import (
	"strings"

	"github.com/google/uuid"
)

// Normalize trims and lower-cases free-form values and fills derived
// defaults. It runs before Validate.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	cfg.GPIO.Chip = strings.TrimSpace(cfg.GPIO.Chip)
	cfg.MQTT.Broker = strings.TrimSpace(cfg.MQTT.Broker)
	cfg.MQTT.ClientID = strings.TrimSpace(cfg.MQTT.ClientID)
	cfg.HTTP.Addr = strings.TrimSpace(cfg.HTTP.Addr)
	cfg.WiFi.Interface = strings.TrimSpace(cfg.WiFi.Interface)
	cfg.WiFi.PortalAddr = strings.TrimSpace(cfg.WiFi.PortalAddr)
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))

	// Brokers reject a second session with the same ID, so every board
	// without an explicit ID gets its own.
	if cfg.MQTT.Broker != "" && cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "semaphor-" + uuid.NewString()[:8]
	}
}
