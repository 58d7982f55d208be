//go:build linux

package i2c

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestOpenMissingBus(t *testing.T) {
	_, err := Linux().Open(9999, 0x40)
	require.Error(t, err)
}

func TestTransferMessages(t *testing.T) {
	fd, err := unix.Open("/dev/null", unix.O_RDWR|unix.O_CLOEXEC, 0)
	require.NoError(t, err)
	c := &devConn{fd: fd, addr: 0x40}
	defer c.Close()

	n, err := c.Transfer(nil, nil)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	w, r := []byte{0x0f}, make([]byte, 3)
	_, err = c.Transfer(w, r)
	require.Equal(t, unix.ENOTTY, err)
	require.Equal(t, uint32(2), c.data.nmsgs)
	require.Equal(t, uintptr(unsafe.Pointer(&c.msgs[0])), c.data.msgs)
	require.Equal(t, i2cMsg{addr: 0x40, len: 1, buf: uintptr(unsafe.Pointer(&w[0]))}, c.msgs[0])
	require.Equal(t, i2cMsg{addr: 0x40, flags: i2cMRd, len: 3, buf: uintptr(unsafe.Pointer(&r[0]))}, c.msgs[1])

	_, err = c.Transfer(nil, r)
	require.Equal(t, unix.ENOTTY, err)
	require.Equal(t, uint32(1), c.data.nmsgs)
	require.Equal(t, uint16(i2cMRd), c.msgs[0].flags)
}
