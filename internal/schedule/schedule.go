// Package schedule provides cooperative timers evaluated from the main loop.
//
// Nothing here runs on its own goroutine: callbacks fire synchronously from
// Run, on the caller's goroutine, against whatever clock the caller passes in.
package schedule

import (
	"sort"
	"time"
)

// Handle identifies a registered timer.
type Handle uint64

type entry struct {
	handle   Handle
	interval time.Duration
	next     time.Time
	once     bool
	fn       func()
}

// Scheduler is a table of recurring and one-shot timers.
// Not safe for concurrent use; it is owned by the loop goroutine.
type Scheduler struct {
	now     func() time.Time
	entries map[Handle]*entry
	seq     Handle
}

// New creates a Scheduler that arms timers relative to now().
func New(now func() time.Time) *Scheduler {
	return &Scheduler{
		now:     now,
		entries: make(map[Handle]*entry),
	}
}

// Attach registers fn to fire every interval, first at now+interval.
func (s *Scheduler) Attach(interval time.Duration, fn func()) Handle {
	return s.add(interval, false, fn)
}

// AttachOnce registers fn to fire once, delay from now.
func (s *Scheduler) AttachOnce(delay time.Duration, fn func()) Handle {
	return s.add(delay, true, fn)
}

func (s *Scheduler) add(d time.Duration, once bool, fn func()) Handle {
	s.seq++
	s.entries[s.seq] = &entry{
		handle:   s.seq,
		interval: d,
		next:     s.now().Add(d),
		once:     once,
		fn:       fn,
	}
	return s.seq
}

// Detach removes a timer. Detaching an unknown or already-fired handle is a no-op.
func (s *Scheduler) Detach(h Handle) {
	delete(s.entries, h)
}

// Active reports whether h is still registered.
func (s *Scheduler) Active(h Handle) bool {
	_, ok := s.entries[h]
	return ok
}

// Next returns the next fire time of h.
func (s *Scheduler) Next(h Handle) (time.Time, bool) {
	e, ok := s.entries[h]
	if !ok {
		return time.Time{}, false
	}
	return e.next, true
}

// Len returns the number of registered timers.
func (s *Scheduler) Len() int {
	return len(s.entries)
}

// Run fires every timer whose deadline is at or before now, in deadline
// order (registration order on ties). A recurring timer fires at most once
// per call and is re-armed one interval after the deadline it just hit,
// or after now if it has fallen more than an interval behind.
// Callbacks may attach or detach timers; changes take effect from the next call.
func (s *Scheduler) Run(now time.Time) int {
	var due []*entry
	for _, e := range s.entries {
		if !now.Before(e.next) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].next.Equal(due[j].next) {
			return due[i].handle < due[j].handle
		}
		return due[i].next.Before(due[j].next)
	})

	fired := 0
	for _, e := range due {
		// An earlier callback may have detached this one.
		if _, ok := s.entries[e.handle]; !ok {
			continue
		}
		if e.once {
			delete(s.entries, e.handle)
		} else {
			e.next = e.next.Add(e.interval)
			if !e.next.After(now) {
				e.next = now.Add(e.interval)
			}
		}
		e.fn()
		fired++
	}
	return fired
}
