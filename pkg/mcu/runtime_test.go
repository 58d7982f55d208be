package mcu

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/hostmcu/pkg/clock"
	"github.com/robotalks/hostmcu/pkg/command"
	"github.com/robotalks/hostmcu/pkg/console"
	"github.com/robotalks/hostmcu/pkg/i2c"
	"github.com/robotalks/hostmcu/pkg/sched"
	"github.com/robotalks/hostmcu/pkg/status"
)

type pipeEnd struct {
	io.Reader
	io.Writer
	closers []io.Closer
}

func (p *pipeEnd) Close() error {
	for _, c := range p.closers {
		c.Close()
	}
	return nil
}

type fakeConn struct {
	lock     sync.Mutex
	writes   [][]byte
	regs     [][]byte
	readData []byte
}

func (c *fakeConn) Write(p []byte) (int, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.writes = append(c.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (c *fakeConn) Transfer(w, r []byte) (int, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.regs = append(c.regs, append([]byte(nil), w...))
	copy(r, c.readData)
	return len(r), nil
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) writtenCount() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.writes)
}

type fakeKernel struct {
	conn *fakeConn
	keys []i2c.Key
}

func (k *fakeKernel) Open(bus uint32, addr uint16) (i2c.Conn, error) {
	k.keys = append(k.keys, i2c.Key{Bus: bus, Addr: addr})
	return k.conn, nil
}

type recordReporter struct {
	lock   sync.Mutex
	events []status.Event
}

func (r *recordReporter) Post(ev status.Event) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.events = append(r.events, ev)
}

type runtimeTestEnv struct {
	t        *testing.T
	rt       *Runtime
	client   *command.Client
	kernel   *fakeKernel
	reporter *recordReporter
	runErr   chan error
	cancel   context.CancelFunc
}

func newRuntimeTestEnv(t *testing.T) *runtimeTestEnv {
	return newRuntimeTestEnvWith(t, &i2c.Config{})
}

func newRuntimeTestEnvWith(t *testing.T, i2cConf *i2c.Config) *runtimeTestEnv {
	toFwR, toFwW := io.Pipe()
	toHostR, toHostW := io.Pipe()
	env := &runtimeTestEnv{
		t:        t,
		kernel:   &fakeKernel{conn: &fakeConn{readData: []byte{0xde, 0xad}}},
		reporter: &recordReporter{},
		runErr:   make(chan error, 1),
	}
	rt, err := New(Config{
		Console: &console.Config{Capacity: 256},
		I2C:     i2cConf,
	}, &pipeEnd{Reader: toFwR, Writer: toHostW, closers: []io.Closer{toFwR, toHostW}}, env.kernel)
	require.NoError(t, err)
	rt.Reporter = env.reporter
	env.rt = rt
	env.client = command.NewClient(&pipeEnd{Reader: toHostR, Writer: toFwW, closers: []io.Closer{toHostR, toFwW}})

	ctx, cancel := context.WithCancel(context.Background())
	env.cancel = cancel
	go func() {
		env.runErr <- rt.Run(ctx)
	}()
	go env.client.Run(ctx)
	return env
}

func (e *runtimeTestEnv) do(m, reply *command.Message, args ...interface{}) command.Args {
	select {
	case r := <-e.client.Do(m, reply, args...).ResultChan():
		require.NoError(e.t, r.Err)
		return r.Args
	case <-time.After(5 * time.Second):
		e.t.Fatalf("timeout waiting %s", reply.Name)
	}
	return nil
}

func (e *runtimeTestEnv) wait() error {
	select {
	case err := <-e.runErr:
		return err
	case <-time.After(5 * time.Second):
		e.t.Fatal("runtime not stopped")
	}
	return nil
}

func TestQueries(t *testing.T) {
	env := newRuntimeTestEnv(t)
	defer env.cancel()

	c1 := env.do(command.MsgGetClock, command.MsgClock).Uint(0)
	c2 := env.do(command.MsgGetClock, command.MsgClock).Uint(0)
	require.True(t, clock.TickIsBefore(c1, c2) || c1 == c2)

	args := env.do(command.MsgGetConfig, command.MsgConfig)
	require.Equal(t, uint32(0), args.Uint(0))
	require.Equal(t, uint32(clock.ClockFreq), args.Uint(1))

	up := env.do(command.MsgGetUptime, command.MsgUptime)
	require.True(t, up.Uint(0) <= 1, "counter starts below the first wrap")

	env.cancel()
	require.NoError(t, env.wait())
}

func TestI2CCommands(t *testing.T) {
	env := newRuntimeTestEnv(t)
	defer env.cancel()

	require.NoError(t, env.client.Send(command.MsgConfigI2C, 1, uint32(2), uint32(0x40)))
	args := env.do(command.MsgI2CRead, command.MsgI2CReadResponse, 1, []byte{0x0f}, uint32(2))
	require.Equal(t, uint32(1), args.Uint(0))
	require.Equal(t, []byte{0xde, 0xad}, args.Bytes(1))
	require.Equal(t, []i2c.Key{{Bus: 2, Addr: 0x40}}, env.kernel.keys)

	require.NoError(t, env.client.Send(command.MsgI2CWrite, 1, []byte{0x01, 0x02}))
	for i := 0; i < 500 && env.kernel.conn.writtenCount() == 0; i++ {
		time.Sleep(10 * time.Millisecond)
	}
	env.kernel.conn.lock.Lock()
	require.Equal(t, [][]byte{{0x01, 0x02}}, env.kernel.conn.writes)
	require.Equal(t, [][]byte{{0x0f}}, env.kernel.conn.regs)
	env.kernel.conn.lock.Unlock()

	env.cancel()
	require.NoError(t, env.wait())
}

func TestEmergencyStop(t *testing.T) {
	env := newRuntimeTestEnv(t)
	defer env.cancel()

	env.do(command.MsgGetClock, command.MsgClock)
	require.NoError(t, env.client.Send(command.MsgEmergencyStop))

	err := env.wait()
	require.IsType(t, &sched.ShutdownError{}, err)
	require.Equal(t, "Command request", err.(*sched.ShutdownError).Reason)

	select {
	case d := <-env.client.EventChan():
		require.Equal(t, command.MsgShutdown, d.Message)
		require.Equal(t, "Command request", string(d.Args.Bytes(1)))
	case <-time.After(5 * time.Second):
		t.Fatal("no shutdown response")
	}

	env.reporter.lock.Lock()
	defer env.reporter.lock.Unlock()
	require.Len(t, env.reporter.events, 1)
	require.Equal(t, status.KindShutdown, env.reporter.events[0].Kind)
}

func TestInvalidOID(t *testing.T) {
	env := newRuntimeTestEnv(t)
	defer env.cancel()
	require.NoError(t, env.client.Send(command.MsgI2CWrite, 9, []byte{1}))
	err := env.wait()
	require.IsType(t, &sched.ShutdownError{}, err)
	require.Equal(t, "Invalid oid 9", err.(*sched.ShutdownError).Reason)
}

func TestI2CReadTooLarge(t *testing.T) {
	env := newRuntimeTestEnv(t)
	defer env.cancel()

	require.NoError(t, env.client.Send(command.MsgConfigI2C, 1, uint32(2), uint32(0x40)))
	args := env.do(command.MsgI2CRead, command.MsgI2CReadResponse, 1, []byte{0x0f}, uint32(I2CReadMax))
	require.Len(t, args.Bytes(1), I2CReadMax)

	require.NoError(t, env.client.Send(command.MsgI2CRead, 1, []byte{0x0f}, uint32(I2CReadMax+1)))
	err := env.wait()
	require.IsType(t, &sched.ShutdownError{}, err)
	require.Equal(t, "Message encode error", err.(*sched.ShutdownError).Reason)
	env.kernel.conn.lock.Lock()
	defer env.kernel.conn.lock.Unlock()
	require.Len(t, env.kernel.conn.regs, 1)
}

func TestI2CSyncCommands(t *testing.T) {
	env := newRuntimeTestEnvWith(t, &i2c.Config{Synchronous: true})
	defer env.cancel()

	require.NoError(t, env.client.Send(command.MsgConfigI2C, 3, uint32(1), uint32(0x20)))
	args := env.do(command.MsgI2CRead, command.MsgI2CReadResponse, 3, []byte{0x0a}, uint32(2))
	require.Equal(t, uint32(3), args.Uint(0))
	require.Equal(t, []byte{0xde, 0xad}, args.Bytes(1))

	require.NoError(t, env.client.Send(command.MsgI2CWrite, 3, []byte{0x05}))
	// commands run in order, the write is done once the clock is answered
	env.do(command.MsgGetClock, command.MsgClock)
	env.kernel.conn.lock.Lock()
	require.Equal(t, [][]byte{{0x05}}, env.kernel.conn.writes)
	require.Equal(t, [][]byte{{0x0a}}, env.kernel.conn.regs)
	env.kernel.conn.lock.Unlock()

	env.cancel()
	require.NoError(t, env.wait())
}
