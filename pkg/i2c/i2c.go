// Package i2c runs blocking kernel I2C transfers in worker goroutines and
// reports their completion to the cooperative scheduler through software
// timers, so device transactions look asynchronous to firmware code.
package i2c

import (
	"errors"

	"github.com/robotalks/hostmcu/pkg/clock"
	"github.com/robotalks/hostmcu/pkg/sched"
)

var (
	// ErrBusy indicates a transaction is already in flight.
	ErrBusy = errors.New("i2c device busy")
	// ErrOverflow indicates the transaction doesn't fit the device buffer.
	ErrOverflow = errors.New("i2c transaction too large")
	// ErrInvalidAddr indicates an address outside the 7-bit range.
	ErrInvalidAddr = errors.New("invalid i2c address")
	// ErrShortWrite indicates the kernel accepted fewer bytes than given.
	ErrShortWrite = errors.New("i2c short write")
)

// ByteTicks is the estimated bus time of one byte (9 bit times at 100kHz).
var ByteTicks = clock.TimeFromUS(90)

// Conn is an opened bus handle bound to one device address.
type Conn interface {
	// Write performs a write-only transfer.
	Write(p []byte) (int, error)
	// Transfer performs a combined write then read with a repeated start.
	Transfer(w, r []byte) (int, error)
	Close() error
}

// Kernel opens bus handles.
type Kernel interface {
	Open(bus uint32, addr uint16) (Conn, error)
}

// Scheduler is the part of the scheduler the engine uses.
type Scheduler interface {
	AddTimer(t *sched.Timer)
	Shutdown(reason string)
}

// Clock reads the current tick.
type Clock interface {
	ReadTime() uint32
}

// JoinMode selects how a completion timer collects the worker result.
type JoinMode int

const (
	// JoinPoll checks the worker without blocking and re-arms the timer
	// while it is still running.
	JoinPoll JoinMode = iota
	// JoinBlock waits for the worker inside the timer callback.
	JoinBlock
)

// Key identifies a device.
type Key struct {
	Bus  uint32
	Addr uint16
}
