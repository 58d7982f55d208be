package sched

import (
	"context"
	"fmt"

	"github.com/golang/glog"
)

// Clock is the part of the tick clock the scheduler drives.
type Clock interface {
	ReadTime() uint32
	Kick()
	Poll()
	Wait()
}

type taskStatus int

const (
	tasksIdle taskStatus = iota
	tasksRequested
	tasksRunning
)

type task struct {
	name string
	fn   func()
}

// ShutdownError is returned by Run once the firmware shut down.
type ShutdownError struct {
	Reason string
}

// Error implements error.
func (e *ShutdownError) Error() string {
	return fmt.Sprintf("mcu shutdown: %s", e.Reason)
}

// Scheduler runs timers and tasks cooperatively.
type Scheduler struct {
	clock    Clock
	timers   *Timer
	periodic Timer

	tasks      []task
	taskStatus taskStatus

	isShutdown     bool
	shutdownReason string
	shutdownHooks  []func()
}

// New creates a Scheduler driven by clk.
func New(clk Clock) *Scheduler {
	s := &Scheduler{clock: clk}
	s.periodic.Func = s.periodicEvent
	s.periodic.Waketime = clk.ReadTime() + PeriodicTicks
	s.insertTimer(&s.periodic)
	return s
}

// AddTask registers a task. Tasks run in registration order each time
// any task is woken.
func (s *Scheduler) AddTask(name string, fn func()) {
	s.tasks = append(s.tasks, task{name: name, fn: fn})
}

// AddShutdownHook registers fn to be called when the firmware shuts down.
func (s *Scheduler) AddShutdownHook(fn func()) {
	s.shutdownHooks = append(s.shutdownHooks, fn)
}

// TaskWake is a wake flag owned by one task.
type TaskWake struct {
	s     *Scheduler
	woken bool
}

// NewTaskWake creates a wake flag bound to the scheduler.
func (s *Scheduler) NewTaskWake() *TaskWake {
	return &TaskWake{s: s}
}

// Wake flags the owning task and requests a task pass.
func (w *TaskWake) Wake() {
	w.woken = true
	w.s.wakeTasks()
}

// CheckWake reports and clears the wake flag.
func (w *TaskWake) CheckWake() bool {
	woken := w.woken
	w.woken = false
	return woken
}

func (s *Scheduler) wakeTasks() {
	s.taskStatus = tasksRequested
}

// CheckSetTasksBusy reports whether tasks are requested or running. If
// they are idle it requests a task pass and reports false, so a second
// call without a task pass in between reports true.
func (s *Scheduler) CheckSetTasksBusy() bool {
	if s.taskStatus >= tasksRequested {
		return true
	}
	s.taskStatus = tasksRequested
	return false
}

// IsShutdown reports whether the firmware is shut down.
func (s *Scheduler) IsShutdown() bool {
	return s.isShutdown
}

// ShutdownReason returns the reason of the first shutdown.
func (s *Scheduler) ShutdownReason() string {
	return s.shutdownReason
}

// TryShutdown requests a shutdown unless one is already in progress.
func (s *Scheduler) TryShutdown(reason string) {
	if s.isShutdown {
		return
	}
	s.Shutdown(reason)
}

// Shutdown stops the firmware: all timers are cancelled and shutdown
// hooks run. Run returns a *ShutdownError at the next opportunity.
func (s *Scheduler) Shutdown(reason string) {
	if s.isShutdown {
		glog.Errorf("shutdown while shut down: %s", reason)
		return
	}
	glog.Errorf("MCU shutdown: %s", reason)
	s.isShutdown, s.shutdownReason = true, reason
	s.clearTimers()
	for _, fn := range s.shutdownHooks {
		fn()
	}
}

// RunTasks runs all tasks once if any was woken.
func (s *Scheduler) RunTasks() bool {
	if s.taskStatus != tasksRequested {
		return false
	}
	s.taskStatus = tasksRunning
	for _, t := range s.tasks {
		if glog.V(5) {
			glog.Infof("run task %s", t.name)
		}
		t.fn()
		if s.isShutdown {
			break
		}
	}
	if s.taskStatus == tasksRunning {
		s.taskStatus = tasksIdle
	}
	return true
}

// Run is the main loop. It returns ctx.Err() when ctx is done or a
// *ShutdownError after the firmware shut down.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if s.isShutdown {
			return &ShutdownError{Reason: s.shutdownReason}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		s.clock.Poll()
		if s.isShutdown {
			continue
		}
		if !s.RunTasks() {
			s.clock.Wait()
		}
	}
}
