//go:build linux

package i2c

import (
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	i2cSlave = 0x0703
	i2cRdwr  = 0x0707
	i2cMRd   = 0x0001
)

type i2cMsg struct {
	addr  uint16
	flags uint16
	len   uint16
	buf   uintptr
}

type rdwrData struct {
	msgs  uintptr
	nmsgs uint32
}

type linuxKernel struct{}

// Linux returns the Kernel backed by /dev/i2c-N.
func Linux() Kernel {
	return linuxKernel{}
}

func (linuxKernel) Open(bus uint32, addr uint16) (Conn, error) {
	path := fmt.Sprintf("/dev/i2c-%d", bus)
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %v", path, err)
	}
	if err = unix.IoctlSetInt(fd, i2cSlave, int(addr)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set slave address %#x on %s: %v", addr, path, err)
	}
	return &devConn{fd: fd, addr: addr}, nil
}

// devConn carries one transfer at a time. msgs and data are part of the
// heap allocated conn so the addresses handed to the kernel stay valid.
type devConn struct {
	fd   int
	addr uint16
	msgs [2]i2cMsg
	data rdwrData
}

func (c *devConn) Write(p []byte) (int, error) {
	return unix.Write(c.fd, p)
}

func (c *devConn) Transfer(w, r []byte) (int, error) {
	n := 0
	if len(w) > 0 {
		c.msgs[n] = i2cMsg{addr: c.addr, len: uint16(len(w)), buf: uintptr(unsafe.Pointer(&w[0]))}
		n++
	}
	if len(r) > 0 {
		c.msgs[n] = i2cMsg{addr: c.addr, flags: i2cMRd, len: uint16(len(r)), buf: uintptr(unsafe.Pointer(&r[0]))}
		n++
	}
	if n == 0 {
		return 0, nil
	}
	c.data = rdwrData{msgs: uintptr(unsafe.Pointer(&c.msgs[0])), nmsgs: uint32(n)}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(c.fd), i2cRdwr, uintptr(unsafe.Pointer(&c.data)))
	runtime.KeepAlive(w)
	runtime.KeepAlive(r)
	runtime.KeepAlive(c)
	if errno != 0 {
		return -1, errno
	}
	return len(r), nil
}

func (c *devConn) Close() error {
	return unix.Close(c.fd)
}
