package ntptime

import (
	"errors"
	"testing"
	"time"

	"github.com/sweeney/semaphor/internal/logger"
)

var base = time.Date(2026, 1, 1, 10, 20, 30, 0, time.UTC)

func fixed() time.Time { return base }

func newTestSource(query QueryFunc) *Source {
	s := New(DefaultServer, query, fixed, logger.Nop())
	s.finished = make(chan struct{}, 1)
	return s
}

func TestFormatBeforeSyncUsesLocalClockInZone(t *testing.T) {
	s := newTestSource(func(string) (time.Duration, error) { return 0, nil })
	if got := s.Format(); got != "11:20:30" {
		t.Errorf("Format: got %q, want 11:20:30 (UTC+1)", got)
	}
	if _, ok := s.Synced(); ok {
		t.Error("Synced should be false before the first sync")
	}
}

func TestSyncAppliesOffset(t *testing.T) {
	var asked string
	s := newTestSource(func(server string) (time.Duration, error) {
		asked = server
		return 90 * time.Second, nil
	})

	s.Sync()
	<-s.finished

	if asked != DefaultServer {
		t.Errorf("server: got %q", asked)
	}
	if got := s.Format(); got != "11:22:00" {
		t.Errorf("Format: got %q, want 11:22:00", got)
	}
	if at, ok := s.Synced(); !ok || !at.Equal(base) {
		t.Errorf("Synced: got %v %v", at, ok)
	}
}

func TestSyncFailureKeepsPreviousOffset(t *testing.T) {
	calls := 0
	s := newTestSource(func(string) (time.Duration, error) {
		calls++
		if calls == 1 {
			return time.Minute, nil
		}
		return 0, errors.New("timeout")
	})

	s.Sync()
	<-s.finished
	s.Sync()
	<-s.finished

	if s.Err() == nil {
		t.Error("expected last error to be recorded")
	}
	if got := s.Format(); got != "11:21:30" {
		t.Errorf("Format: got %q, want offset from first sync", got)
	}
}

func TestSyncDoesNotOverlap(t *testing.T) {
	release := make(chan struct{})
	calls := 0
	s := newTestSource(func(string) (time.Duration, error) {
		calls++
		<-release
		return 0, nil
	})

	s.Sync()
	s.Sync() // ignored while the first is running
	close(release)
	<-s.finished

	select {
	case <-s.finished:
		t.Error("second sync should not have started")
	case <-time.After(50 * time.Millisecond):
	}
	if calls != 1 {
		t.Errorf("query calls: got %d, want 1", calls)
	}
}
