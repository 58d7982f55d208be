package i2c

import (
	"github.com/golang/glog"

	"github.com/robotalks/hostmcu/pkg/sched"
)

// BufferSize is the size of a device transaction buffer. Cursors are
// uint8 so they wrap at BufferSize on their own.
const BufferSize = 256

// ReadFlag marks the read phase length as requested.
const ReadFlag = 0x80

// FlagActive is set while a transaction is in flight.
const FlagActive = 0x01

// State is the transaction state of a device.
type State int

// States.
const (
	Idle State = iota
	WritePending
	WriteDrain
	RWPending
	RWDrain
)

var stateNames = map[State]string{
	Idle:         "idle",
	WritePending: "write-pending",
	WriteDrain:   "write-drain",
	RWPending:    "rw-pending",
	RWDrain:      "rw-drain",
}

func (s State) String() string {
	return stateNames[s]
}

// job is the only part of a transaction the worker goroutine touches.
type job struct {
	conn  Conn
	write []byte
	read  []byte
	n     int
	err   error
}

func (j *job) run() {
	if j.read != nil {
		j.n, j.err = j.conn.Transfer(j.write, j.read)
	} else {
		j.n, j.err = j.conn.Write(j.write)
	}
}

// Device is the transaction buffer and state machine of one bus address.
// Except for the worker job it is owned by the scheduler goroutine.
type Device struct {
	Key Key

	buf      [BufferSize]byte
	head     uint8
	tail     uint8
	cur      uint8
	dataLen  [2]uint8
	flags    uint8
	state    State
	lastRead int
	timer    sched.Timer

	mgr      *Manager
	conn     Conn
	job      *job
	done     chan struct{}
	callback func(*Device)
}

func newDevice(m *Manager, key Key, conn Conn) *Device {
	d := &Device{Key: key, mgr: m, conn: conn}
	d.timer.Func = d.event
	return d
}

// State returns the current transaction state.
func (d *Device) State() State {
	return d.state
}

// Active reports whether a transaction is in flight.
func (d *Device) Active() bool {
	return d.flags&FlagActive != 0
}

// Cursor returns the transfer cursor.
func (d *Device) Cursor() uint8 {
	return d.cur
}

func (d *Device) used() int {
	return int(d.head - d.tail)
}

func (d *Device) copyIn(pos uint8, p []byte) {
	for n, b := range p {
		d.buf[pos+uint8(n)] = b
	}
}

func (d *Device) copyOut(pos uint8, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = d.buf[pos+uint8(i)]
	}
	return out
}

// Prepare deposits a transaction: the write phase bytes and the number
// of bytes to read back, 0 for a write-only transaction.
func (d *Device) Prepare(write []byte, readLen int) error {
	if d.Active() || d.dataLen != [2]uint8{} {
		return ErrBusy
	}
	if readLen < 0 || readLen >= ReadFlag || len(write) >= ReadFlag ||
		d.used()+len(write)+readLen >= BufferSize {
		return ErrOverflow
	}
	d.copyIn(d.head, write)
	// room for the read phase is reserved after the write phase
	d.head += uint8(len(write) + readLen)
	d.dataLen[0] = uint8(len(write))
	if readLen > 0 {
		d.dataLen[1] = uint8(readLen) | ReadFlag
	}
	return nil
}

// Async runs the prepared transaction. cb is called on the scheduler
// goroutine once it completed successfully.
func (d *Device) Async(cb func(*Device)) error {
	if d.Active() {
		return ErrBusy
	}
	d.flags |= FlagActive
	d.callback = cb
	if d.start() == sched.Reschedule {
		d.mgr.sched.AddTimer(&d.timer)
	}
	return nil
}

// ReadData returns the bytes read by the last completed transaction.
func (d *Device) ReadData() []byte {
	return d.copyOut(d.cur-uint8(d.lastRead), d.lastRead)
}

func (d *Device) phases() (wlen, rlen int, read bool) {
	return int(d.dataLen[0]), int(d.dataLen[1] &^ ReadFlag), d.dataLen[1]&ReadFlag != 0
}

func (d *Device) start() uint8 {
	wlen, rlen, read := d.phases()
	if wlen == 0 && !read {
		d.flags &^= FlagActive
		d.state = Idle
		return sched.Done
	}
	j := &job{conn: d.conn, write: d.copyOut(d.cur, wlen)}
	if read {
		j.read = make([]byte, rlen)
		d.state = RWPending
	} else {
		d.state = WritePending
	}
	done := make(chan struct{})
	d.job, d.done = j, done
	go func() {
		j.run()
		close(done)
	}()
	d.timer.Waketime = d.mgr.clock.ReadTime() + ByteTicks*uint32(wlen+rlen)
	return sched.Reschedule
}

func (d *Device) joined() bool {
	if d.mgr.Join == JoinBlock {
		<-d.done
		return true
	}
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}

func (d *Device) event(t *sched.Timer) uint8 {
	switch d.state {
	case WritePending, RWPending:
		if !d.joined() {
			t.Waketime = d.mgr.clock.ReadTime() + ByteTicks
			return sched.Reschedule
		}
		if d.state == WritePending {
			d.state = WriteDrain
		} else {
			d.state = RWDrain
		}
		return d.drain()
	case WriteDrain, RWDrain:
		return d.drain()
	}
	return d.start()
}

func (d *Device) fail(reason string, j *job) uint8 {
	glog.Errorf("i2c %d:%#x: %s: n=%d err=%v", d.Key.Bus, d.Key.Addr, reason, j.n, j.err)
	d.head = d.cur
	d.tail = d.cur
	d.mgr.sched.Shutdown(reason)
	return sched.Done
}

// drain collects the finished job. Only here do the worker results
// become visible to the scheduler goroutine.
func (d *Device) drain() uint8 {
	j := d.job
	wlen, rlen, read := d.phases()
	d.job, d.done = nil, nil
	d.dataLen = [2]uint8{}
	d.state = Idle
	d.flags &^= FlagActive
	if read {
		if j.err != nil || j.n < 0 {
			return d.fail("Unable to read i2c device", j)
		}
	} else if j.err != nil || j.n != wlen {
		return d.fail("Unable to write i2c device", j)
	}
	d.cur += uint8(wlen)
	if read {
		d.copyIn(d.cur, j.read)
		d.cur += uint8(rlen)
	}
	d.tail = d.cur
	d.lastRead = rlen
	cb := d.callback
	d.callback = nil
	if cb != nil {
		cb(d)
	}
	return sched.Done
}

// Write performs a blocking write-only transfer outside the async engine.
func (d *Device) Write(p []byte) error {
	if d.Active() {
		return ErrBusy
	}
	n, err := d.conn.Write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return ErrShortWrite
	}
	return nil
}

// Read performs a blocking combined transfer writing reg and reading
// len(dst) bytes.
func (d *Device) Read(reg, dst []byte) error {
	if d.Active() {
		return ErrBusy
	}
	_, err := d.conn.Transfer(reg, dst)
	return err
}
