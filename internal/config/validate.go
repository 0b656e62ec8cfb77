package config

import (
	"fmt"
	"net"
	"net/url"

	"github.com/sweeney/semaphor/internal/logger"
)

// Highest BCM line number on the 40-pin header.
const maxPin = 27

// Validate checks configuration correctness.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	// ------------------------------------------------------------
	// GPIO
	// ------------------------------------------------------------

	if cfg.GPIO.Chip == "" {
		return fmt.Errorf("gpio.chip must be set")
	}

	pins := []struct {
		name string
		pin  int
	}{
		{"primary_pin", cfg.GPIO.PrimaryPin},
		{"secondary_pin", cfg.GPIO.SecondaryPin},
		{"red_pin", cfg.GPIO.RedPin},
		{"green_pin", cfg.GPIO.GreenPin},
		{"blue_pin", cfg.GPIO.BluePin},
	}
	owner := make(map[int]string)
	for _, p := range pins {
		if p.pin < 0 || p.pin > maxPin {
			return fmt.Errorf("gpio.%s: %d out of range 0-%d", p.name, p.pin, maxPin)
		}
		if other, ok := owner[p.pin]; ok {
			return fmt.Errorf("gpio.%s: pin %d already used by gpio.%s", p.name, p.pin, other)
		}
		owner[p.pin] = p.name
	}

	// ------------------------------------------------------------
	// MQTT (optional)
	// ------------------------------------------------------------

	if cfg.MQTT.Broker != "" {
		u, err := url.Parse(cfg.MQTT.Broker)
		if err != nil {
			return fmt.Errorf("mqtt.broker: %w", err)
		}
		switch u.Scheme {
		case "tcp", "ssl", "tls", "ws", "wss", "mqtt", "mqtts":
		default:
			return fmt.Errorf("mqtt.broker: unsupported scheme %q", u.Scheme)
		}
		if u.Host == "" {
			return fmt.Errorf("mqtt.broker: missing host")
		}
	}

	// ------------------------------------------------------------
	// LISTENERS
	// ------------------------------------------------------------

	if cfg.HTTP.Addr != "" {
		if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
			return fmt.Errorf("http.addr: %w", err)
		}
	}

	if cfg.WiFi.Interface == "" {
		return fmt.Errorf("wifi.interface must be set")
	}
	if _, _, err := net.SplitHostPort(cfg.WiFi.PortalAddr); err != nil {
		return fmt.Errorf("wifi.portal_addr: %w", err)
	}
	if cfg.HTTP.Addr != "" && samePort(cfg.HTTP.Addr, cfg.WiFi.PortalAddr) {
		return fmt.Errorf("http.addr and wifi.portal_addr both use %s", cfg.HTTP.Addr)
	}

	// ------------------------------------------------------------
	// LOG
	// ------------------------------------------------------------

	if !logger.ValidLevel(cfg.Log.Level) {
		return fmt.Errorf("log.level: unknown level %q", cfg.Log.Level)
	}

	return nil
}

func samePort(a, b string) bool {
	_, pa, errA := net.SplitHostPort(a)
	_, pb, errB := net.SplitHostPort(b)
	return errA == nil && errB == nil && pa == pb
}
