// Package config loads the per-board deployment file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/semaphor/internal/gpio"
	"github.com/sweeney/semaphor/internal/logger"
)

type Config struct {
	GPIO GPIOConfig `yaml:"gpio"`
	MQTT MQTTConfig `yaml:"mqtt"`
	HTTP HTTPConfig `yaml:"http"`
	WiFi WiFiConfig `yaml:"wifi"`
	Log  LogConfig  `yaml:"log"`
}

// ---- GPIO ----

type GPIOConfig struct {
	Chip         string `yaml:"chip"`
	PrimaryPin   int    `yaml:"primary_pin"`
	SecondaryPin int    `yaml:"secondary_pin"`
	RedPin       int    `yaml:"red_pin"`
	GreenPin     int    `yaml:"green_pin"`
	BluePin      int    `yaml:"blue_pin"`
}

// Pins converts the section to the gpio package's pin set.
func (g GPIOConfig) Pins() gpio.Pins {
	return gpio.Pins{
		Primary:   g.PrimaryPin,
		Secondary: g.SecondaryPin,
		Red:       g.RedPin,
		Green:     g.GreenPin,
		Blue:      g.BluePin,
	}
}

// ---- MQTT ----

type MQTTConfig struct {
	Broker   string `yaml:"broker"` // empty disables telemetry
	ClientID string `yaml:"client_id"`
}

// ---- HTTP ----

type HTTPConfig struct {
	Addr string `yaml:"addr"` // empty disables the status page
}

// ---- WIFI ----

type WiFiConfig struct {
	Interface  string `yaml:"interface"`
	PortalAddr string `yaml:"portal_addr"`
}

// ---- LOG ----

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given. Keys
// missing from a file keep these values.
func Default() *Config {
	pins := gpio.DefaultPins()
	return &Config{
		GPIO: GPIOConfig{
			Chip:         gpio.DefaultChip,
			PrimaryPin:   pins.Primary,
			SecondaryPin: pins.Secondary,
			RedPin:       pins.Red,
			GreenPin:     pins.Green,
			BluePin:      pins.Blue,
		},
		MQTT: MQTTConfig{
			Broker: "tcp://192.168.1.200:1883",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		WiFi: WiFiConfig{
			Interface:  "wlan0",
			PortalAddr: ":80",
		},
		Log: LogConfig{
			Level: logger.InfoLevel,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
// Unknown keys are an error.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
