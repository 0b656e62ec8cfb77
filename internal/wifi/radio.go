// Package wifi implements network association on top of NetworkManager,
// including the provisioning portal used when no working credentials exist.
package wifi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/sweeney/semaphor/internal/connectivity"
	"github.com/sweeney/semaphor/internal/logger"
)

// Connection profile names managed by the daemon.
const (
	ClientConnection = "semaphor-wifi"
	PortalConnection = "semaphor-portal"
)

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// NMRadio drives a wireless interface through nmcli.
type NMRadio struct {
	iface      string
	portalAddr string
	run        Runner
	log        *logger.Logger

	// newPortal is swapped in tests.
	newPortal func(addr, ssid string, networks func() []string) portalServer
}

type portalServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
	Submissions() <-chan Credentials
}

// NewNMRadio creates a radio for iface. The portal listens on portalAddr.
func NewNMRadio(iface, portalAddr string, run Runner, log *logger.Logger) *NMRadio {
	return &NMRadio{
		iface:      iface,
		portalAddr: portalAddr,
		run:        run,
		log:        log,
		newPortal: func(addr, ssid string, networks func() []string) portalServer {
			return NewPortal(addr, ssid, networks)
		},
	}
}

var _ connectivity.Radio = (*NMRadio)(nil)

func (r *NMRadio) nmcli(ctx context.Context, args ...string) (string, error) {
	out, err := r.run(ctx, "nmcli", args...)
	text := strings.TrimSpace(string(out))
	if err != nil {
		if text != "" {
			return text, fmt.Errorf("nmcli %s: %w: %s", args[0], err, text)
		}
		return text, fmt.Errorf("nmcli %s: %w", args[0], err)
	}
	return text, nil
}

// hasConnection reports whether a saved profile called name exists.
func (r *NMRadio) hasConnection(ctx context.Context, name string) (bool, error) {
	out, err := r.nmcli(ctx, "-t", "-f", "NAME", "connection", "show")
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == name {
			return true, nil
		}
	}
	return false, nil
}

// Associate brings up the saved client profile.
func (r *NMRadio) Associate(ctx context.Context) error {
	ok, err := r.hasConnection(ctx, ClientConnection)
	if err != nil {
		return fmt.Errorf("list connections: %w", err)
	}
	if !ok {
		return connectivity.ErrNoCredentials
	}
	if _, err := r.nmcli(ctx, "connection", "up", "id", ClientConnection, "ifname", r.iface); err != nil {
		return fmt.Errorf("associate: %w", err)
	}
	return nil
}

// ResetCredentials deletes the saved client profile.
func (r *NMRadio) ResetCredentials() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ok, err := r.hasConnection(ctx, ClientConnection)
	if err != nil {
		return fmt.Errorf("list connections: %w", err)
	}
	if !ok {
		return nil
	}
	if _, err := r.nmcli(ctx, "connection", "delete", "id", ClientConnection); err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	return nil
}

// Provision opens an access point named ssid with the portal page on it,
// and waits for credentials that actually connect.
func (r *NMRadio) Provision(ctx context.Context, ssid string) error {
	networks := r.scan(ctx)

	if err := r.startAccessPoint(ctx, ssid); err != nil {
		return err
	}
	defer r.stopAccessPoint()

	portal := r.newPortal(r.portalAddr, ssid, func() []string { return networks })
	go func() {
		if err := portal.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.log.Warnw("portal server error", "err", err)
		}
	}()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		portal.Shutdown(sctx)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case creds := <-portal.Submissions():
			r.log.Infow("portal credentials received", "ssid", creds.SSID)
			if err := r.join(ctx, creds); err != nil {
				r.log.Warnw("portal credentials rejected", "ssid", creds.SSID, "err", err)
				// Bring the AP back so the operator can retry.
				if err := r.startAccessPoint(ctx, ssid); err != nil {
					return err
				}
				continue
			}
			return nil
		}
	}
}

func (r *NMRadio) scan(ctx context.Context) []string {
	out, err := r.nmcli(ctx, "-t", "-f", "SSID", "device", "wifi", "list", "ifname", r.iface)
	if err != nil {
		r.log.Debugw("wifi scan failed", "err", err)
		return nil
	}
	seen := map[string]bool{}
	var ssids []string
	for _, line := range strings.Split(out, "\n") {
		s := strings.TrimSpace(line)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		ssids = append(ssids, s)
	}
	return ssids
}

func (r *NMRadio) startAccessPoint(ctx context.Context, ssid string) error {
	ok, err := r.hasConnection(ctx, PortalConnection)
	if err != nil {
		return fmt.Errorf("list connections: %w", err)
	}
	if !ok {
		_, err := r.nmcli(ctx, "connection", "add", "type", "wifi", "ifname", r.iface,
			"con-name", PortalConnection, "autoconnect", "no", "ssid", ssid,
			"802-11-wireless.mode", "ap", "ipv4.method", "shared")
		if err != nil {
			return fmt.Errorf("create access point: %w", err)
		}
	}
	if _, err := r.nmcli(ctx, "connection", "up", "id", PortalConnection); err != nil {
		return fmt.Errorf("start access point: %w", err)
	}
	return nil
}

func (r *NMRadio) stopAccessPoint() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := r.nmcli(ctx, "connection", "down", "id", PortalConnection); err != nil {
		r.log.Debugw("stop access point", "err", err)
	}
}

func (r *NMRadio) join(ctx context.Context, creds Credentials) error {
	r.stopAccessPoint()

	args := []string{"device", "wifi", "connect", creds.SSID}
	if creds.Password != "" {
		args = append(args, "password", creds.Password)
	}
	args = append(args, "ifname", r.iface, "name", ClientConnection)
	if _, err := r.nmcli(ctx, args...); err != nil {
		// A failed connect can leave a half-written profile behind.
		r.nmcli(ctx, "connection", "delete", "id", ClientConnection)
		return err
	}
	return nil
}

// Info reports the SSID the interface is joined to and its IPv4 address.
// Either may be empty.
func (r *NMRadio) Info(ctx context.Context) (ssid, ip string, err error) {
	out, err := r.nmcli(ctx, "-t", "-f", "IP4.ADDRESS", "device", "show", r.iface)
	if err != nil {
		return "", "", err
	}
	for _, line := range strings.Split(out, "\n") {
		if _, v, ok := strings.Cut(line, ":"); ok && strings.HasPrefix(line, "IP4.ADDRESS") {
			ip, _, _ = strings.Cut(v, "/")
			break
		}
	}

	out, err = r.nmcli(ctx, "-t", "-f", "ACTIVE,SSID", "device", "wifi", "list", "ifname", r.iface, "--rescan", "no")
	if err != nil {
		return "", ip, err
	}
	for _, line := range strings.Split(out, "\n") {
		if s, ok := strings.CutPrefix(line, "yes:"); ok {
			ssid = s
			break
		}
	}
	return ssid, ip, nil
}

// Interface returns the wireless interface name.
func (r *NMRadio) Interface() string {
	return r.iface
}
