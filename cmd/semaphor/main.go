// Command semaphor polls a stats endpoint and shows the count as a
// traffic-light colour on an RGB LED and a small monochrome display.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/semaphor/internal/config"
	"github.com/sweeney/semaphor/internal/connectivity"
	"github.com/sweeney/semaphor/internal/device"
	"github.com/sweeney/semaphor/internal/gpio"
	"github.com/sweeney/semaphor/internal/logger"
	"github.com/sweeney/semaphor/internal/logic"
	"github.com/sweeney/semaphor/internal/mqtt"
	"github.com/sweeney/semaphor/internal/ntptime"
	"github.com/sweeney/semaphor/internal/poller"
	"github.com/sweeney/semaphor/internal/render"
	"github.com/sweeney/semaphor/internal/schedule"
	"github.com/sweeney/semaphor/internal/status"
	"github.com/sweeney/semaphor/internal/web"
	"github.com/sweeney/semaphor/internal/wifi"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (empty for built-in defaults)")
	printState := flag.Bool("print-state", false, "Print current button states and exit")
	logLevel := flag.String("log-level", "", "Override the configured log level (debug, info, warn, error)")

	flag.Parse()

	cfg, err := loadConfig(*configPath, *logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	log := logger.Get(cfg.Log.Level)
	if err := run(cfg, *printState, log); err != nil {
		log.Errorw("fatal", "err", err)
		_ = log.Sync()
		os.Exit(1)
	}
	_ = log.Sync()
}

// loadConfig reads path (or the defaults), applies the log level
// override, then normalizes and validates the result.
func loadConfig(path, logLevel string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	config.Normalize(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cfg *config.Config, printState bool, log *logger.Logger) error {
	pins := cfg.GPIO.Pins()

	buttons, err := gpio.NewRealReader(cfg.GPIO.Chip, pins.Primary, pins.Secondary)
	if err != nil {
		return fmt.Errorf("init buttons: %w", err)
	}
	defer buttons.Close()

	if printState {
		primary, secondary, err := buttons.Read()
		if err != nil {
			return fmt.Errorf("read buttons: %w", err)
		}
		fmt.Printf("PRIMARY: %s, SECONDARY: %s\n", pressedString(primary), pressedString(secondary))
		return nil
	}

	led, err := gpio.NewRealLED(cfg.GPIO.Chip, pins.Red, pins.Green, pins.Blue)
	if err != nil {
		return fmt.Errorf("init led: %w", err)
	}
	defer led.Close()

	// The panel itself is not driven; the framebuffer is mirrored on the
	// status page at /display.png.
	fb := render.NewFramebuffer(render.DisplayWidth, render.DisplayHeight, nil)
	out := render.NewOutput(led, fb, log.Named("render"), time.Sleep)

	devCfg := device.DefaultConfig()
	client := poller.NewClient(poller.DefaultBaseURL, poller.DefaultTimeout, time.Now)

	tracker := status.NewTracker(time.Now(), status.Config{
		TickMs:         device.DefaultTick.Milliseconds(),
		PollIntervalMs: devCfg.PollInterval.Milliseconds(),
		HeartbeatMs:    devCfg.Heartbeat.Milliseconds(),
		Endpoint:       client.URL(),
		Broker:         cfg.MQTT.Broker,
		HTTPPort:       cfg.HTTP.Addr,
	})

	var (
		publisher  mqtt.Publisher
		mqttStatus mqtt.ConnectionStatus
	)
	if cfg.MQTT.Broker != "" {
		rp := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, log.Named("mqtt"), tracker.SetMQTTConnected)
		defer rp.Close()
		publisher, mqttStatus = rp, rp
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, fb, log.Named("web"))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("http server error", "err", err)
			}
		}()
		defer shutdownServer(srv, log)
		log.Infow("http status server listening", "addr", cfg.HTTP.Addr)
	}

	ticker := time.NewTicker(device.DefaultTick)
	defer ticker.Stop()

	sched := schedule.New(time.Now)
	clock := ntptime.New(ntptime.DefaultServer, ntptime.Query, time.Now, log.Named("ntp"))
	poll := poller.New(client, out, clock.Format, time.Now, log.Named("poller"))

	radio := wifi.NewNMRadio(cfg.WiFi.Interface, cfg.WiFi.PortalAddr, wifi.ExecRunner, log.Named("wifi"))
	conn := connectivity.New(connectivity.DefaultConfig(), connectivity.Deps{
		Radio:     radio,
		Output:    out,
		Scheduler: sched,
		Now:       time.Now,
		Tick:      ticker.C,
		Sleep:     time.Sleep,
		Restart:   restart(log),
		Log:       log.Named("connectivity"),
	})
	conn.OnChange = func(_, to logic.ConnectivityState) {
		tracker.SetConnectivity(to)
	}

	dev := device.New(devCfg, device.Deps{
		Buttons:      buttons,
		Display:      out,
		Poller:       poll,
		Connectivity: conn,
		Scheduler:    sched,
		Clock:        clock,
		Publisher:    publisher,
		MQTTStatus:   mqttStatus,
		Tracker:      tracker,
		Network:      networkInfo(radio, log),
		Now:          time.Now,
		Log:          log.Named("device"),
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Infow("started",
		"endpoint", client.URL(),
		"broker", cfg.MQTT.Broker,
		"interface", cfg.WiFi.Interface,
		"pins", pins,
	)
	return dev.Run(context.Background(), ticker.C, sigCh)
}

// restart is the connectivity fatal path. The service manager brings the
// process back up.
func restart(log *logger.Logger) func(error) {
	return func(reason error) {
		log.Errorw("restarting", "reason", reason)
		_ = log.Sync()
		os.Exit(1)
	}
}

const networkInfoTimeout = 2 * time.Second

// networkInfo returns the Device's network snapshot source.
func networkInfo(radio *wifi.NMRadio, log *logger.Logger) func() *status.NetworkInfo {
	return func() *status.NetworkInfo {
		ctx, cancel := context.WithTimeout(context.Background(), networkInfoTimeout)
		defer cancel()

		ssid, ip, err := radio.Info(ctx)
		if err != nil {
			log.Debugw("network info unavailable", "err", err)
			return nil
		}
		return &status.NetworkInfo{Interface: radio.Interface(), IP: ip, SSID: ssid}
	}
}

func shutdownServer(srv *web.Server, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warnw("http shutdown", "err", err)
	}
}

func pressedString(pressed bool) string {
	if pressed {
		return "PRESSED"
	}
	return "RELEASED"
}
