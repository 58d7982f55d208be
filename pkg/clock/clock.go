// Package clock converts the host monotonic clock into the firmware's
// 32-bit tick domain and drives timer dispatch.
package clock

import (
	"time"
)

// ClockFreq is the number of ticks per second reported to the host.
const ClockFreq = 50000000

const nsPerTick = int64(time.Second) / ClockFreq

const ticksPerUS = ClockFreq / 1000000

// Dispatch tuning, in ticks.
const (
	// MinTryTicks is the gap below which a timer is waited for in place
	// instead of returning to the outer loop.
	MinTryTicks uint32 = 2 * ticksPerUS
	// RepeatTicks is the repeat budget while tasks are pending.
	RepeatTicks uint32 = 100 * ticksPerUS
	// IdleRepeatTicks is the repeat budget while the task queue is idle.
	IdleRepeatTicks uint32 = 500 * ticksPerUS
	// DeferRepeatTicks is how far ahead the wake is pushed when yielding.
	DeferRepeatTicks uint32 = 5 * ticksPerUS
	// PastSlack is how far in the past a timer may be before the
	// dispatch loop is considered broken.
	PastSlack uint32 = 100000 * ticksPerUS
)

// TimeFromUS converts microseconds to ticks.
func TimeFromUS(us uint32) uint32 {
	return us * ticksPerUS
}

// TimeToTicks converts a duration to ticks.
func TimeToTicks(d time.Duration) uint32 {
	return uint32(d.Microseconds() * ticksPerUS)
}

// TickIsBefore reports whether tick a is before tick b. It tolerates one
// 32-bit wraparound between the two values; never replace it with an
// unsigned comparison.
func TickIsBefore(a, b uint32) bool {
	return int32(a-b) < 0
}

// Source provides the host monotonic time.
type Source interface {
	Now() time.Duration
}

type monotonic struct {
	start time.Time
}

// Now implements Source.
func (m *monotonic) Now() time.Duration {
	return time.Since(m.start)
}

// Monotonic returns a Source backed by the runtime monotonic clock.
func Monotonic() Source {
	return &monotonic{start: time.Now()}
}

// Scheduler is the timer side of the cooperative scheduler.
type Scheduler interface {
	// TimerDispatch runs the next due timer and returns the waketime of
	// the earliest remaining timer.
	TimerDispatch() uint32
	// CheckSetTasksBusy reports whether tasks are waiting to run, and
	// requests a task pass if they are not.
	CheckSetTasksBusy() bool
}

// Shutdowner receives the soft shutdown request for a broken timer.
type Shutdowner interface {
	TryShutdown(reason string)
}

// Sleeper blocks the scheduler until input arrives or the timeout expires.
type Sleeper interface {
	Sleep(timeout time.Duration)
}

// Clock is the process-wide tick clock. Except for the conversion helpers
// all methods must be called from the scheduler goroutine.
type Clock struct {
	Scheduler Scheduler
	Shutdown  Shutdowner
	Sleeper   Sleeper

	src Source

	lastReadTime    uint32
	startEpoch      int64
	repeatUntil     uint32
	nextWake        time.Duration
	nextWakeCounter uint32
}

// New creates a Clock reading from src, a nil src uses Monotonic.
func New(src Source) *Clock {
	if src == nil {
		src = Monotonic()
	}
	c := &Clock{src: src}
	now := src.Now()
	// start one second ahead so the counter wraps shortly after start
	c.startEpoch = int64(now/time.Second) + 1
	c.Kick()
	c.repeatUntil = c.nextWakeCounter
	return c
}

func (c *Clock) rawTicks(ts time.Duration) int64 {
	sec := int64(ts / time.Second)
	ns := int64(ts % time.Second)
	return (sec-c.startEpoch)*ClockFreq + ns/nsPerTick
}

func (c *Clock) ticksFrom(ts time.Duration) uint32 {
	return uint32(c.rawTicks(ts))
}

// timeFrom converts ticks back to source time relative to the stored
// next-wake snapshot.
func (c *Clock) timeFrom(ticks uint32) time.Duration {
	rel := int32(ticks - c.nextWakeCounter)
	return c.nextWake + time.Duration(int64(rel)*nsPerTick)
}

// ReadTime returns the current tick.
func (c *Clock) ReadTime() uint32 {
	c.lastReadTime = c.ticksFrom(c.src.Now())
	return c.lastReadTime
}

// LastReadTime returns the tick returned by the latest ReadTime.
func (c *Clock) LastReadTime() uint32 {
	return c.lastReadTime
}

// Uptime returns a 64-bit tick count whose low word matches ReadTime and
// whose high word counts wraparounds.
func (c *Clock) Uptime() uint64 {
	return uint64(c.rawTicks(c.src.Now()) + 1<<32)
}

// Kick forces the next wake to now.
func (c *Clock) Kick() {
	c.nextWake = c.src.Now()
	c.nextWakeCounter = c.ticksFrom(c.nextWake)
}

func (c *Clock) setNextWake(ticks uint32) {
	c.nextWake = c.timeFrom(ticks)
	c.nextWakeCounter = ticks
}

// DispatchMany runs due timers until the next one is far enough in the
// future to sleep for, or the repeat budget is used up, and returns the
// tick to wake at.
func (c *Clock) DispatchMany() uint32 {
	tru := c.repeatUntil
	for {
		next := c.Scheduler.TimerDispatch()
		now := c.ReadTime()
		diff := int32(next - now)
		if diff > int32(MinTryTicks) {
			return next
		}
		if TickIsBefore(tru, now) {
			if diff < -int32(PastSlack) {
				c.Shutdown.TryShutdown("Rescheduled timer in the past")
				c.repeatUntil = now + RepeatTicks
				return now + DeferRepeatTicks
			}
			if c.Scheduler.CheckSetTasksBusy() {
				c.repeatUntil = now + RepeatTicks
				return now + DeferRepeatTicks
			}
			c.repeatUntil = now + IdleRepeatTicks
			tru = c.repeatUntil
		}
		for diff > 0 {
			diff = int32(next - c.ReadTime())
		}
	}
}

// Poll dispatches timers if the next wake has been reached.
func (c *Clock) Poll() {
	if c.src.Now() < c.nextWake {
		return
	}
	c.setNextWake(c.DispatchMany())
}

// Wait sleeps until the next wake or new input, then polls.
func (c *Clock) Wait() {
	if d := c.nextWake - c.src.Now(); d > 0 && c.Sleeper != nil {
		c.Sleeper.Sleep(d)
	}
	c.Poll()
}
