// Package watchdog keeps the host hardware watchdog fed from the
// scheduler.
package watchdog

import (
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/hostmcu/pkg/clock"
)

// Period is the feed interval in ticks.
var Period = clock.TimeFromUS(5000000)

// Clock reads the current tick.
type Clock interface {
	ReadTime() uint32
}

// Watchdog feeds a watchdog device.
type Watchdog struct {
	dev      io.WriteCloser
	clock    Clock
	lastKick uint32
}

// New creates a Watchdog over an opened device.
func New(dev io.WriteCloser, clk Clock) *Watchdog {
	return &Watchdog{dev: dev, clock: clk, lastKick: clk.ReadTime()}
}

// Open opens the watchdog device at path. Opening arms the watchdog.
func Open(path string, clk Clock) (*Watchdog, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open watchdog %s: %v", path, err)
	}
	w := New(f, clk)
	w.feed()
	return w, nil
}

func (w *Watchdog) feed() {
	if _, err := w.dev.Write([]byte(".")); err != nil {
		glog.Errorf("watchdog write: %v", err)
	}
}

// Task feeds the device once Period elapsed since the last feed. It runs
// as a scheduler task.
func (w *Watchdog) Task() {
	now := w.clock.ReadTime()
	if now-w.lastKick < Period {
		return
	}
	w.feed()
	w.lastKick = now
}

// Close disarms the watchdog and closes the device.
func (w *Watchdog) Close() error {
	if _, err := w.dev.Write([]byte("V")); err != nil {
		glog.Warningf("watchdog disarm: %v", err)
	}
	return w.dev.Close()
}
