package sched

import (
	"github.com/robotalks/hostmcu/pkg/clock"
)

// Timer callback results.
const (
	// Done removes the timer after its callback.
	Done uint8 = 0
	// Reschedule queues the timer again at its (updated) Waketime.
	Reschedule uint8 = 1
)

// Timer is a software timer. Func runs once the clock reaches Waketime.
type Timer struct {
	Waketime uint32
	Func     func(*Timer) uint8

	next   *Timer
	queued bool
}

// Queued reports whether the timer is in the timer list.
func (t *Timer) Queued() bool {
	return t.queued
}

// PeriodicTicks is the interval of the internal periodic timer.
var PeriodicTicks = clock.TimeFromUS(1000000)

func (s *Scheduler) insertTimer(t *Timer) {
	t.queued = true
	if s.timers == nil || clock.TickIsBefore(t.Waketime, s.timers.Waketime) {
		t.next, s.timers = s.timers, t
		return
	}
	prev := s.timers
	for prev.next != nil && !clock.TickIsBefore(t.Waketime, prev.next.Waketime) {
		prev = prev.next
	}
	t.next, prev.next = prev.next, t
}

// AddTimer schedules t. Adding a timer which is already queued is a no-op.
// Timers are not accepted after shutdown.
func (s *Scheduler) AddTimer(t *Timer) {
	if t.queued || s.isShutdown {
		return
	}
	s.insertTimer(t)
	if s.timers == t {
		// the new head may be due before the wake computed earlier
		s.clock.Kick()
	}
}

// DelTimer removes t from the timer list.
func (s *Scheduler) DelTimer(t *Timer) {
	if !t.queued {
		return
	}
	for pp := &s.timers; *pp != nil; pp = &(*pp).next {
		if *pp == t {
			*pp = t.next
			break
		}
	}
	t.next, t.queued = nil, false
}

// TimerDispatch runs the head timer and returns the waketime of the next.
func (s *Scheduler) TimerDispatch() uint32 {
	t := s.timers
	s.timers, t.next, t.queued = t.next, nil, false
	res := t.Func(t)
	// the periodic timer survives shutdown
	if !t.queued && (t == &s.periodic || (res == Reschedule && !s.isShutdown)) {
		s.insertTimer(t)
	}
	return s.timers.Waketime
}

func (s *Scheduler) periodicEvent(t *Timer) uint8 {
	s.wakeTasks()
	t.Waketime += PeriodicTicks
	return Reschedule
}

func (s *Scheduler) clearTimers() {
	for t := s.timers; t != nil; {
		next := t.next
		t.next, t.queued = nil, false
		t = next
	}
	s.timers = nil
	s.insertTimer(&s.periodic)
}
