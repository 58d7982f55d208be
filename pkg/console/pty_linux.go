//go:build linux

package console

import (
	"fmt"
	"os"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/sys/unix"
)

// PTY is an allocated pseudo-terminal pair. The slave is kept open so the
// master doesn't see EIO while no peer is attached.
type PTY struct {
	Master    *os.File
	Slave     *os.File
	SlaveName string
	Link      string

	closeOnce sync.Once
}

// OpenPTY allocates a pty, puts it in raw mode and exposes the slave at
// link through a symlink.
func OpenPTY(link string) (*PTY, error) {
	mfd, err := unix.Open("/dev/ptmx", unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open /dev/ptmx: %v", err)
	}
	closeOnErr := func(fds ...int) {
		for _, fd := range fds {
			unix.Close(fd)
		}
	}
	if err = unix.IoctlSetPointerInt(mfd, unix.TIOCSPTLCK, 0); err != nil {
		closeOnErr(mfd)
		return nil, fmt.Errorf("unlock pty: %v", err)
	}
	num, err := unix.IoctlGetUint32(mfd, unix.TIOCGPTN)
	if err != nil {
		closeOnErr(mfd)
		return nil, fmt.Errorf("get pty number: %v", err)
	}
	name := fmt.Sprintf("/dev/pts/%d", num)
	sfd, err := unix.Open(name, unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		closeOnErr(mfd)
		return nil, fmt.Errorf("open %s: %v", name, err)
	}
	if err = setRaw(sfd); err != nil {
		closeOnErr(mfd, sfd)
		return nil, fmt.Errorf("set raw mode on %s: %v", name, err)
	}
	// non-blocking so closing the master unblocks the reader
	if err = unix.SetNonblock(mfd, true); err != nil {
		closeOnErr(mfd, sfd)
		return nil, fmt.Errorf("set non-blocking: %v", err)
	}
	if err = os.Chmod(name, 0660); err != nil {
		closeOnErr(mfd, sfd)
		return nil, fmt.Errorf("chmod %s: %v", name, err)
	}
	if err = os.Remove(link); err != nil && !os.IsNotExist(err) {
		closeOnErr(mfd, sfd)
		return nil, fmt.Errorf("remove %s: %v", link, err)
	}
	if err = os.Symlink(name, link); err != nil {
		closeOnErr(mfd, sfd)
		return nil, fmt.Errorf("symlink %s: %v", link, err)
	}
	glog.Infof("console %s -> %s", link, name)
	return &PTY{
		Master:    os.NewFile(uintptr(mfd), "/dev/ptmx"),
		Slave:     os.NewFile(uintptr(sfd), name),
		SlaveName: name,
		Link:      link,
	}, nil
}

func setRaw(fd int) error {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
	return unix.IoctlSetTermios(fd, unix.TCSETS, t)
}

// Read implements io.Reader on the master side.
func (p *PTY) Read(b []byte) (int, error) {
	return p.Master.Read(b)
}

// Write implements io.Writer on the master side.
func (p *PTY) Write(b []byte) (int, error) {
	return p.Master.Write(b)
}

// Close closes both sides and removes the link. Only the first call
// does anything.
func (p *PTY) Close() error {
	var firstErr error
	p.closeOnce.Do(func() {
		for _, f := range []*os.File{p.Master, p.Slave} {
			if err := f.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if err := os.Remove(p.Link); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	})
	return firstErr
}
