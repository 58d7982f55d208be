package i2c

import (
	"fmt"

	"github.com/golang/glog"
)

// Manager is the device table. Each (bus, addr) is opened once.
type Manager struct {
	Kernel Kernel
	Join   JoinMode

	sched   Scheduler
	clock   Clock
	devices map[Key]*Device
}

// NewManager creates a Manager.
func NewManager(k Kernel, s Scheduler, c Clock) *Manager {
	return &Manager{
		Kernel:  k,
		sched:   s,
		clock:   c,
		devices: make(map[Key]*Device),
	}
}

// Open returns the device at bus and addr, opening it on first use.
func (m *Manager) Open(bus uint32, addr uint16) (*Device, error) {
	if addr > 0x7f {
		return nil, ErrInvalidAddr
	}
	key := Key{Bus: bus, Addr: addr}
	if d := m.devices[key]; d != nil {
		return d, nil
	}
	conn, err := m.Kernel.Open(bus, addr)
	if err != nil {
		return nil, fmt.Errorf("open i2c %d:%#x: %v", bus, addr, err)
	}
	d := newDevice(m, key, conn)
	m.devices[key] = d
	glog.V(1).Infof("i2c %d:%#x opened", bus, addr)
	return d, nil
}

// Len returns the number of opened devices.
func (m *Manager) Len() int {
	return len(m.devices)
}

// Close closes every opened device.
func (m *Manager) Close() error {
	var firstErr error
	for key, d := range m.devices {
		if err := d.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.devices, key)
	}
	return firstErr
}
