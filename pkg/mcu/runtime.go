// Package mcu wires the clock, scheduler, console, command layer and
// peripherals into one firmware runtime.
package mcu

import (
	"context"
	"fmt"
	"io"

	"github.com/golang/glog"

	"github.com/robotalks/hostmcu/pkg/clock"
	"github.com/robotalks/hostmcu/pkg/command"
	"github.com/robotalks/hostmcu/pkg/console"
	"github.com/robotalks/hostmcu/pkg/framework"
	"github.com/robotalks/hostmcu/pkg/i2c"
	"github.com/robotalks/hostmcu/pkg/sched"
	"github.com/robotalks/hostmcu/pkg/status"
	"github.com/robotalks/hostmcu/pkg/watchdog"
)

// StatsTicks is the interval of stats events.
var StatsTicks = clock.TimeFromUS(10000000)

// Reporter receives runtime events. *status.Reporter implements it.
type Reporter interface {
	Post(ev status.Event)
}

// Runtime is the single owner of all firmware state. Except for Run and
// New, nothing may be called outside the scheduler goroutine.
type Runtime struct {
	Clock    *clock.Clock
	Sched    *sched.Scheduler
	Console  *console.Transport
	Layer    *command.Layer
	I2C      *i2c.Manager
	Watchdog *watchdog.Watchdog
	Reporter Reporter

	oids       map[uint8]*i2c.Device
	i2cSync    bool
	statsTimer sched.Timer

	clockResp    *command.Response
	uptimeResp   *command.Response
	configResp   *command.Response
	shutdownResp *command.Response
	i2cReadResp  *command.Response
}

// New creates the runtime serving the firmware protocol on rw.
func New(conf Config, rw io.ReadWriter, kernel i2c.Kernel) (*Runtime, error) {
	r := &Runtime{
		Clock: clock.New(conf.Source),
		oids:  make(map[uint8]*i2c.Device),
	}
	r.Sched = sched.New(r.Clock)
	r.Clock.Scheduler = r.Sched
	r.Clock.Shutdown = r.Sched

	r.Console = console.New(conf.Console, rw)
	r.Console.Wake = r.Sched.NewTaskWake()
	r.Console.Shutdown = r.Sched
	r.Clock.Sleeper = r.Console

	r.Layer = command.NewLayer(r.Console, r.Sched)
	r.Console.Handler = r.Layer
	r.Sched.AddTask("console", r.Console.Task)

	r.I2C = i2c.NewManager(kernel, r.Sched, r.Clock)
	if conf.I2C != nil {
		r.I2C.Join = conf.I2C.JoinMode()
		r.i2cSync = conf.I2C.Synchronous
	}

	if conf.Watchdog != nil && conf.Watchdog.Enabled {
		w, err := watchdog.Open(conf.Watchdog.Path, r.Clock)
		if err != nil {
			return nil, err
		}
		r.Watchdog = w
		r.Sched.AddTask("watchdog", w.Task)
	}

	r.registerCommands()
	r.Sched.AddShutdownHook(r.onShutdown)
	r.statsTimer.Func = r.statsEvent
	return r, nil
}

func (r *Runtime) registerCommands() {
	l := r.Layer
	r.clockResp = l.Response(command.MsgClock)
	r.uptimeResp = l.Response(command.MsgUptime)
	r.configResp = l.Response(command.MsgConfig)
	r.shutdownResp = l.Response(command.MsgShutdown)
	r.i2cReadResp = l.Response(command.MsgI2CReadResponse)

	l.Register(command.MsgGetClock, 0, r.cmdGetClock)
	l.Register(command.MsgGetUptime, 0, r.cmdGetUptime)
	l.Register(command.MsgGetConfig, command.InShutdown, r.cmdGetConfig)
	l.Register(command.MsgEmergencyStop, command.InShutdown, r.cmdEmergencyStop)
	l.Register(command.MsgConfigI2C, 0, r.cmdConfigI2C)
	l.Register(command.MsgI2CWrite, 0, r.cmdI2CWrite)
	l.Register(command.MsgI2CRead, 0, r.cmdI2CRead)
}

func (r *Runtime) onShutdown() {
	reason := r.Sched.ShutdownReason()
	now := r.Clock.ReadTime()
	r.Layer.Sendf(r.shutdownResp, now, reason)
	if r.Reporter != nil {
		r.Reporter.Post(status.Event{Kind: status.KindShutdown, Reason: reason, Clock: now})
	}
}

func (r *Runtime) statsEvent(t *sched.Timer) uint8 {
	now := r.Clock.ReadTime()
	r.Reporter.Post(status.Event{
		Kind:  status.KindStats,
		Clock: now,
		Fields: map[string]interface{}{
			"uptime":      r.Clock.Uptime(),
			"i2c_devices": r.I2C.Len(),
			"rx_pending":  r.Console.Inbound().AvailableToRead(),
			"tx_pending":  r.Console.Outbound().AvailableToRead(),
		},
	})
	t.Waketime = now + StatsTicks
	return sched.Reschedule
}

// Run runs the console transport and the scheduler until ctx is done or
// the firmware shuts down, in which case a *sched.ShutdownError is
// returned.
func (r *Runtime) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	runner := framework.NewRunnerWith(ctx).
		Go(framework.NamedRun("console", r.Console))

	if r.Reporter != nil {
		r.statsTimer.Waketime = r.Clock.ReadTime() + StatsTicks
		r.Sched.AddTimer(&r.statsTimer)
	}
	err := r.Sched.Run(ctx)
	cancel()

	var errs framework.AggregatedError
	errs.Add(runner.Wait(), r.close())
	if err == context.Canceled {
		err = nil
	}
	if err != nil {
		if agg := errs.Aggregate(); agg != nil {
			glog.Errorf("runtime stopped with errors: %v", agg)
		}
		return err
	}
	return errs.Aggregate()
}

func (r *Runtime) close() error {
	var errs framework.AggregatedError
	errs.Add(r.I2C.Close())
	if r.Watchdog != nil {
		errs.Add(r.Watchdog.Close())
	}
	return errs.Aggregate()
}

func (r *Runtime) lookupI2C(oid uint8) *i2c.Device {
	dev := r.oids[oid]
	if dev == nil {
		r.Sched.Shutdown(fmt.Sprintf("Invalid oid %d", oid))
	}
	return dev
}
