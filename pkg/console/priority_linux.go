//go:build linux

package console

import (
	"runtime"

	"github.com/golang/glog"
	"golang.org/x/sys/unix"
)

// ioNice is the niceness of the console I/O threads.
const ioNice = 10

// setLowPriority pins the calling goroutine to its own OS thread and
// lowers that thread's scheduling priority.
func setLowPriority(name string) {
	runtime.LockOSThread()
	if err := unix.Setpriority(unix.PRIO_PROCESS, unix.Gettid(), ioNice); err != nil {
		glog.V(1).Infof("%s: setpriority: %v", name, err)
	}
}
