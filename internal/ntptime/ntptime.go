// Package ntptime provides the wall-clock text shown on the display,
// corrected against an NTP server and rendered in a fixed UTC offset.
package ntptime

import (
	"fmt"
	"sync"
	"time"

	"github.com/beevik/ntp"

	"github.com/sweeney/semaphor/internal/logger"
)

const (
	DefaultServer  = "pool.ntp.org"
	UTCOffset      = 3600 * time.Second
	ResyncInterval = 60 * time.Second
	queryTimeout   = 5 * time.Second
)

// QueryFunc returns the offset of the local clock from the server's.
type QueryFunc func(server string) (time.Duration, error)

// Query asks server for the current clock offset using beevik/ntp.
func Query(server string) (time.Duration, error) {
	resp, err := ntp.QueryWithOptions(server, ntp.QueryOptions{Timeout: queryTimeout})
	if err != nil {
		return 0, fmt.Errorf("ntp query %s: %w", server, err)
	}
	if err := resp.Validate(); err != nil {
		return 0, fmt.Errorf("ntp response from %s: %w", server, err)
	}
	return resp.ClockOffset, nil
}

// Source is a corrected clock. Sync runs the query on its own goroutine so
// the caller never waits on the network; Now and Format are safe to call
// concurrently with it.
type Source struct {
	server string
	query  QueryFunc
	now    func() time.Time
	zone   *time.Location
	log    *logger.Logger

	mu       sync.RWMutex
	offset   time.Duration
	synced   time.Time
	syncing  bool
	lastErr  error
	finished chan struct{} // signalled after each sync attempt; nil in production
}

// New creates a Source. Before the first successful sync the local clock is used.
func New(server string, query QueryFunc, now func() time.Time, log *logger.Logger) *Source {
	return &Source{
		server: server,
		query:  query,
		now:    now,
		zone:   time.FixedZone(fmt.Sprintf("UTC%+d", int(UTCOffset.Hours())), int(UTCOffset.Seconds())),
		log:    log,
	}
}

// Sync starts a background query unless one is already running.
func (s *Source) Sync() {
	s.mu.Lock()
	if s.syncing {
		s.mu.Unlock()
		return
	}
	s.syncing = true
	s.mu.Unlock()

	go func() {
		offset, err := s.query(s.server)

		s.mu.Lock()
		s.syncing = false
		s.lastErr = err
		if err == nil {
			s.offset = offset
			s.synced = s.now()
		}
		done := s.finished
		s.mu.Unlock()

		if err != nil {
			s.log.Warnw("time sync failed", "server", s.server, "err", err)
		} else {
			s.log.Debugw("time synced", "server", s.server, "offset", offset)
		}
		if done != nil {
			done <- struct{}{}
		}
	}()
}

// Now returns the corrected time in the display zone.
func (s *Source) Now() time.Time {
	s.mu.RLock()
	offset := s.offset
	s.mu.RUnlock()
	return s.now().Add(offset).In(s.zone)
}

// Format returns the corrected time as HH:MM:SS.
func (s *Source) Format() string {
	return s.Now().Format("15:04:05")
}

// Synced reports when the last successful sync happened.
func (s *Source) Synced() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.synced, !s.synced.IsZero()
}

// Err returns the error of the last sync attempt.
func (s *Source) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}
