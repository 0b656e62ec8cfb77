package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

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

// stack is a fully wired device with the hardware and network edges faked:
// buttons, LED and radio are fakes, the stats endpoint is an httptest TLS
// server and telemetry goes to a FakePublisher.
type stack struct {
	dev     *device.Device
	out     *render.Output
	fb      *render.Framebuffer
	radio   *wifi.FakeRadio
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
	hits    *atomic.Int32

	sig  chan os.Signal
	done chan error
}

func newStack(t *testing.T, handler http.HandlerFunc, radio *wifi.FakeRadio) *stack {
	t.Helper()

	s := &stack{
		radio: radio,
		pub:   mqtt.NewFakePublisher(),
		hits:  &atomic.Int32{},
		sig:   make(chan os.Signal, 1),
		done:  make(chan error, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(poller.StatsPath, func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		handler(w, r)
	})
	endpoint := httptest.NewTLSServer(mux)
	t.Cleanup(endpoint.Close)

	s.fb = render.NewFramebuffer(render.DisplayWidth, render.DisplayHeight, nil)
	s.out = render.NewOutput(gpio.NewFakeLED(), s.fb, logger.Nop(), func(time.Duration) {})
	s.tracker = status.NewTracker(time.Now(), status.Config{Endpoint: endpoint.URL + poller.StatsPath})

	tick := make(chan time.Time)
	stopTicks := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				select {
				case tick <- now:
				case <-stopTicks:
					return
				}
			case <-stopTicks:
				return
			}
		}
	}()
	t.Cleanup(func() { close(stopTicks) })

	sched := schedule.New(time.Now)
	clock := ntptime.New("ntp.test", func(string) (time.Duration, error) { return 0, nil }, time.Now, logger.Nop())
	client := poller.NewClient(endpoint.URL, 2*time.Second, time.Now)
	poll := poller.New(client, s.out, clock.Format, time.Now, logger.Nop())

	conn := connectivity.New(connectivity.DefaultConfig(), connectivity.Deps{
		Radio:     radio,
		Output:    s.out,
		Scheduler: sched,
		Now:       time.Now,
		Tick:      tick,
		Sleep:     func(time.Duration) {},
		Restart:   func(reason error) { t.Errorf("unexpected restart: %v", reason) },
		Log:       logger.Nop(),
	})
	conn.OnChange = func(_, to logic.ConnectivityState) {
		s.tracker.SetConnectivity(to)
	}

	s.dev = device.New(device.DefaultConfig(), device.Deps{
		Buttons:      gpio.NewFakeReader([]gpio.Sample{{}}),
		Display:      s.out,
		Poller:       poll,
		Connectivity: conn,
		Scheduler:    sched,
		Clock:        clock,
		Publisher:    s.pub,
		MQTTStatus:   s.pub,
		Tracker:      s.tracker,
		Network: func() *status.NetworkInfo {
			return &status.NetworkInfo{Interface: "wlan0", IP: "10.0.0.7", SSID: "office"}
		},
		Now: time.Now,
		Log: logger.Nop(),
	})

	go func() { s.done <- s.dev.Run(context.Background(), tick, s.sig) }()
	return s
}

// waitPolls blocks until the tracker has recorded n polls.
func (s *stack) waitPolls(t *testing.T, n int) status.Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap := s.tracker.Snapshot()
		if snap.Counts.Polls >= n {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d polls", n)
	return status.Snapshot{}
}

// stop sends SIGTERM and waits for Run to return.
func (s *stack) stop(t *testing.T) {
	t.Helper()
	s.sig <- syscall.SIGTERM
	select {
	case err := <-s.done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after SIGTERM")
	}
}

func countHandler(n int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"count": %d}`, n)
	}
}

// TestIntegrationPollCycle runs boot, the first poll and shutdown against a
// live TLS endpoint.
func TestIntegrationPollCycle(t *testing.T) {
	s := newStack(t, countHandler(42), wifi.NewFakeRadio())

	snap := s.waitPolls(t, 1)
	s.stop(t)

	if snap.Connectivity != logic.StateConnected {
		t.Errorf("connectivity: got %s, want CONNECTED", snap.Connectivity)
	}
	if snap.LastPoll == nil || snap.LastPoll.Metric != 42 || snap.LastPoll.Level != logic.LevelMid {
		t.Fatalf("last poll: got %+v, want metric 42 MID", snap.LastPoll)
	}
	if snap.LastPoll.HTTPStatus != http.StatusOK {
		t.Errorf("http status: got %d, want 200", snap.LastPoll.HTTPStatus)
	}
	if s.out.Color() != render.ColorYellow {
		t.Errorf("indicator: got %s, want YELLOW", s.out.Color())
	}
	if !strings.HasPrefix(s.out.Message(), "Nº SERVICIOS: 42 (") {
		t.Errorf("message: got %q", s.out.Message())
	}
	if s.hits.Load() != 1 {
		t.Errorf("endpoint hits: got %d, want 1", s.hits.Load())
	}
	// Shutdown waits for the background network lookup.
	if nw := s.tracker.Snapshot().Network; nw == nil || nw.SSID != "office" {
		t.Errorf("network: got %+v", nw)
	}

	types := s.pub.EventTypes()
	if len(types) != 1 || types[0] != mqtt.EventReading {
		t.Errorf("events: got %v, want [READING]", types)
	}
	names := s.pub.SystemEventNames()
	if len(names) != 2 || names[0] != "STARTUP" || names[1] != "SHUTDOWN" {
		t.Errorf("system events: got %v, want [STARTUP SHUTDOWN]", names)
	}
	if _, prov, _ := s.radio.Counts(); prov != 0 {
		t.Errorf("portal opened %d times, want 0", prov)
	}
}

// TestIntegrationProvisioningFallback boots without stored credentials and
// connects through the portal before polling.
func TestIntegrationProvisioningFallback(t *testing.T) {
	radio := wifi.NewFakeRadio()
	radio.AssociateErr = connectivity.ErrNoCredentials
	radio.ProvisionOK = true

	s := newStack(t, countHandler(50), radio)
	snap := s.waitPolls(t, 1)
	s.stop(t)

	if _, prov, _ := radio.Counts(); prov != 1 {
		t.Errorf("provisions: got %d, want 1", prov)
	}
	if got, want := radio.LastSSID(), connectivity.DefaultConfig().PortalSSID; got != want {
		t.Errorf("portal SSID: got %q, want %q", got, want)
	}
	if snap.LastPoll == nil || snap.LastPoll.Level != logic.LevelHigh {
		t.Errorf("last poll: got %+v, want HIGH", snap.LastPoll)
	}
	if s.out.Color() != render.ColorGreen {
		t.Errorf("indicator: got %s, want GREEN", s.out.Color())
	}
}

// TestIntegrationServerError keeps running through a non-success status and
// reports it as a failed poll.
func TestIntegrationServerError(t *testing.T) {
	s := newStack(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "maintenance")
	}, wifi.NewFakeRadio())

	snap := s.waitPolls(t, 1)
	s.stop(t)

	if snap.Counts.PollFailures != 1 {
		t.Errorf("poll failures: got %d, want 1", snap.Counts.PollFailures)
	}
	if snap.LastPoll == nil || snap.LastPoll.HTTPStatus != http.StatusServiceUnavailable {
		t.Errorf("last poll: got %+v", snap.LastPoll)
	}
	if got := s.out.Message(); got != "NOT OK. RESPONSE: maintenance" {
		t.Errorf("message: got %q", got)
	}
	if s.out.Color() != render.ColorOff {
		t.Errorf("indicator: got %s, want previous colour OFF", s.out.Color())
	}
	types := s.pub.EventTypes()
	if len(types) != 1 || types[0] != mqtt.EventPollFailed {
		t.Errorf("events: got %v, want [POLL_FAILED]", types)
	}
}

// TestIntegrationStatusPage serves the tracker a device has filled in.
func TestIntegrationStatusPage(t *testing.T) {
	s := newStack(t, countHandler(12), wifi.NewFakeRadio())
	s.waitPolls(t, 1)
	s.stop(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := web.New(ln.Addr().String(), s.tracker, s.fb, logger.Nop())
	go srv.Serve(ln)
	defer srv.Shutdown(context.Background())

	resp, err := http.Get("http://" + ln.Addr().String() + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	var doc status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if doc.Status.Connectivity != "CONNECTED" {
		t.Errorf("connectivity: got %q", doc.Status.Connectivity)
	}
	if doc.Status.LastPoll == nil || doc.Status.LastPoll.Metric != 12 || doc.Status.LastPoll.Level != "LOW" {
		t.Errorf("last_poll: got %+v", doc.Status.LastPoll)
	}
	if doc.Status.Color != "RED" {
		t.Errorf("color: got %q, want RED", doc.Status.Color)
	}
}
