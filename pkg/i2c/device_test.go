package i2c

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/hostmcu/pkg/sched"
)

type fakeConn struct {
	writes    [][]byte
	transfers [][]byte
	readData  []byte
	n         int
	err       error
	gate      chan struct{}
	closed    bool
}

func (c *fakeConn) wait() {
	if c.gate != nil {
		<-c.gate
	}
}

func (c *fakeConn) Write(p []byte) (int, error) {
	c.wait()
	c.writes = append(c.writes, append([]byte(nil), p...))
	if c.n != 0 || c.err != nil {
		return c.n, c.err
	}
	return len(p), nil
}

func (c *fakeConn) Transfer(w, r []byte) (int, error) {
	c.wait()
	c.transfers = append(c.transfers, append([]byte(nil), w...))
	copy(r, c.readData)
	if c.n != 0 || c.err != nil {
		return c.n, c.err
	}
	return len(r), nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

type fakeKernel struct {
	conns map[Key]*fakeConn
	opens int
	err   error
}

func (k *fakeKernel) Open(bus uint32, addr uint16) (Conn, error) {
	if k.err != nil {
		return nil, k.err
	}
	k.opens++
	conn := &fakeConn{}
	if k.conns == nil {
		k.conns = make(map[Key]*fakeConn)
	}
	k.conns[Key{Bus: bus, Addr: addr}] = conn
	return conn, nil
}

type fakeSched struct {
	timers []*sched.Timer
	reason string
}

func (s *fakeSched) AddTimer(t *sched.Timer) { s.timers = append(s.timers, t) }
func (s *fakeSched) Shutdown(reason string)  { s.reason = reason }

// fire runs the oldest timer and requeues it if asked to.
func (s *fakeSched) fire(t *testing.T) uint8 {
	require.NotEmpty(t, s.timers)
	tm := s.timers[0]
	s.timers = s.timers[1:]
	res := tm.Func(tm)
	if res == sched.Reschedule {
		s.timers = append(s.timers, tm)
	}
	return res
}

type fakeClock struct {
	now uint32
}

func (c *fakeClock) ReadTime() uint32 { return c.now }

type deviceTestEnv struct {
	kernel *fakeKernel
	sched  *fakeSched
	clock  *fakeClock
	mgr    *Manager
	dev    *Device
	conn   *fakeConn
}

func newDeviceTestEnv(t *testing.T, mode JoinMode) *deviceTestEnv {
	env := &deviceTestEnv{
		kernel: &fakeKernel{},
		sched:  &fakeSched{},
		clock:  &fakeClock{now: 1000},
	}
	env.mgr = NewManager(env.kernel, env.sched, env.clock)
	env.mgr.Join = mode
	dev, err := env.mgr.Open(1, 0x40)
	require.NoError(t, err)
	env.dev = dev
	env.conn = env.kernel.conns[Key{Bus: 1, Addr: 0x40}]
	return env
}

func TestWriteOnly(t *testing.T) {
	env := newDeviceTestEnv(t, JoinBlock)
	calls := 0
	require.NoError(t, env.dev.Prepare([]byte{0x10, 0x20, 0x30}, 0))
	require.NoError(t, env.dev.Async(func(d *Device) { calls++ }))
	require.Equal(t, WritePending, env.dev.State())
	require.True(t, env.dev.Active())
	require.Equal(t, ErrBusy, env.dev.Async(nil))
	require.Len(t, env.sched.timers, 1)
	require.Equal(t, uint32(1000)+3*ByteTicks, env.sched.timers[0].Waketime)

	require.Equal(t, sched.Done, env.sched.fire(t))
	require.Equal(t, Idle, env.dev.State())
	require.False(t, env.dev.Active())
	require.Equal(t, 1, calls)
	require.Equal(t, uint8(3), env.dev.Cursor())
	require.Equal(t, [][]byte{{0x10, 0x20, 0x30}}, env.conn.writes)
	require.Empty(t, env.sched.timers)
	require.Empty(t, env.sched.reason)
}

func TestCombinedRead(t *testing.T) {
	env := newDeviceTestEnv(t, JoinBlock)
	env.conn.readData = []byte{0xaa, 0xbb}
	var got []byte
	require.NoError(t, env.dev.Prepare([]byte{0x05}, 2))
	require.NoError(t, env.dev.Async(func(d *Device) {
		got = d.ReadData()
	}))
	require.Equal(t, RWPending, env.dev.State())
	require.Equal(t, sched.Done, env.sched.fire(t))
	require.Equal(t, uint8(3), env.dev.Cursor())
	require.Equal(t, []byte{0xaa, 0xbb}, got)
	require.Equal(t, []byte{0xaa, 0xbb}, env.dev.buf[1:3])
	require.Equal(t, [][]byte{{0x05}}, env.conn.transfers)
}

func TestCursorWraps(t *testing.T) {
	env := newDeviceTestEnv(t, JoinBlock)
	env.conn.readData = []byte{1, 2, 3, 4}
	for i := 0; i < 100; i++ {
		require.NoError(t, env.dev.Prepare([]byte{byte(i)}, 4))
		require.NoError(t, env.dev.Async(nil))
		env.sched.fire(t)
		require.Equal(t, []byte{1, 2, 3, 4}, env.dev.ReadData())
	}
	require.Equal(t, uint8(500%BufferSize), env.dev.Cursor())
}

func TestFailure(t *testing.T) {
	cases := []struct {
		name    string
		readLen int
		n       int
		err     error
		reason  string
	}{
		{"negative write", 0, -1, nil, "Unable to write i2c device"},
		{"short write", 0, 1, nil, "Unable to write i2c device"},
		{"write error", 0, 0, errors.New("EIO"), "Unable to write i2c device"},
		{"negative transfer", 2, -1, nil, "Unable to read i2c device"},
		{"transfer error", 2, -1, errors.New("ENXIO"), "Unable to read i2c device"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			env := newDeviceTestEnv(t, JoinBlock)
			env.conn.n, env.conn.err = c.n, c.err
			calls := 0
			require.NoError(t, env.dev.Prepare([]byte{1, 2}, c.readLen))
			require.NoError(t, env.dev.Async(func(*Device) { calls++ }))
			require.Equal(t, sched.Done, env.sched.fire(t))
			require.Equal(t, c.reason, env.sched.reason)
			require.Equal(t, 0, calls)
			require.Empty(t, env.sched.timers)
			require.False(t, env.dev.Active())
		})
	}
}

func TestPollJoin(t *testing.T) {
	env := newDeviceTestEnv(t, JoinPoll)
	env.conn.gate = make(chan struct{})
	calls := 0
	require.NoError(t, env.dev.Prepare([]byte{1}, 0))
	require.NoError(t, env.dev.Async(func(*Device) { calls++ }))

	env.clock.now = 5000
	require.Equal(t, sched.Reschedule, env.sched.fire(t))
	require.Equal(t, uint32(5000)+ByteTicks, env.sched.timers[0].Waketime)
	require.Equal(t, WritePending, env.dev.State())

	close(env.conn.gate)
	<-env.dev.done
	require.Equal(t, sched.Done, env.sched.fire(t))
	require.Equal(t, 1, calls)
	require.Equal(t, Idle, env.dev.State())
}

func TestNothingPending(t *testing.T) {
	env := newDeviceTestEnv(t, JoinPoll)
	require.NoError(t, env.dev.Async(func(*Device) { t.Fatal("unexpected callback") }))
	require.False(t, env.dev.Active())
	require.Empty(t, env.sched.timers)
}

func TestPrepare(t *testing.T) {
	env := newDeviceTestEnv(t, JoinPoll)
	require.Equal(t, ErrOverflow, env.dev.Prepare(make([]byte, 10), ReadFlag))
	require.Equal(t, ErrOverflow, env.dev.Prepare(make([]byte, ReadFlag), 0))
	require.Equal(t, ErrOverflow, env.dev.Prepare(nil, -1))
	require.NoError(t, env.dev.Prepare([]byte{1}, 0))
	require.Equal(t, ErrBusy, env.dev.Prepare([]byte{1}, 0))
}

func TestSyncTransfers(t *testing.T) {
	env := newDeviceTestEnv(t, JoinPoll)
	require.NoError(t, env.dev.Write([]byte{1, 2}))
	env.conn.readData = []byte{9}
	dst := make([]byte, 1)
	require.NoError(t, env.dev.Read([]byte{3}, dst))
	require.Equal(t, []byte{9}, dst)

	env.conn.n = 1
	require.Equal(t, ErrShortWrite, env.dev.Write([]byte{1, 2}))
}

func TestManager(t *testing.T) {
	env := newDeviceTestEnv(t, JoinPoll)
	dev, err := env.mgr.Open(1, 0x40)
	require.NoError(t, err)
	require.True(t, dev == env.dev)
	_, err = env.mgr.Open(2, 0x40)
	require.NoError(t, err)
	require.Equal(t, 2, env.kernel.opens)
	require.Equal(t, 2, env.mgr.Len())

	_, err = env.mgr.Open(1, 0x80)
	require.Equal(t, ErrInvalidAddr, err)

	env.kernel.err = errors.New("ENOENT")
	_, err = env.mgr.Open(3, 0x10)
	require.Error(t, err)

	require.NoError(t, env.mgr.Close())
	require.True(t, env.conn.closed)
	require.Equal(t, 0, env.mgr.Len())
}
