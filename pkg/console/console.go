// Package console bridges a byte stream (normally a pty) to the firmware
// command layer without blocking the scheduler on I/O.
package console

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/hostmcu/pkg/ringbuf"
)

// MessageMax is the largest framed message and the most bytes drained
// from the inbound buffer per task pass.
const MessageMax = 64

const (
	receiveWindow = 4096
	readChunk     = 512
	writeChunk    = 512
)

// IdleSleep bounds how long Sleep blocks without input.
var IdleSleep = 10 * time.Millisecond

// FlushTimeout bounds how long Run waits for pending output on stop.
var FlushTimeout = time.Second

var forceShutdown = []byte("FORCE_SHUTDOWN\n")

// Encoder renders a framed message into dst and returns its length,
// 0 when nothing should be sent.
type Encoder interface {
	EncodeAndFrame(dst []byte, args ...interface{}) int
}

// Handler consumes framed input and reports how many leading bytes it used.
type Handler interface {
	FindAndDispatch(buf []byte) int
}

// Shutdowner performs the fatal shutdown.
type Shutdowner interface {
	Shutdown(reason string)
}

// Waker is the wake flag of the console task.
type Waker interface {
	Wake()
	CheckWake() bool
}

// Transport moves bytes between the stream and the firmware through two
// ring buffers. The reader and writer goroutines own the stream side;
// Task, SendResponse and Sleep run on the scheduler goroutine.
type Transport struct {
	Handler  Handler
	Shutdown Shutdowner
	Wake     Waker
	Backoff  ringbuf.Backoff

	rw        io.ReadWriter
	in        *ringbuf.Buffer
	out       *ringbuf.Buffer
	inNotify  chan struct{}
	outNotify chan struct{}

	recv    [receiveWindow]byte
	recvLen int
}

// New creates a Transport over rw with ring buffers sized by conf.
func New(conf *Config, rw io.ReadWriter) *Transport {
	capacity := conf.Capacity
	if capacity <= 0 {
		capacity = ringbuf.DefaultCapacity
	}
	return &Transport{
		Backoff:   ringbuf.DefaultBackoff,
		rw:        rw,
		in:        ringbuf.New(capacity),
		out:       ringbuf.New(capacity),
		inNotify:  make(chan struct{}, 1),
		outNotify: make(chan struct{}, 1),
	}
}

// Inbound returns the inbound ring buffer.
func (t *Transport) Inbound() *ringbuf.Buffer {
	return t.in
}

// Outbound returns the outbound ring buffer.
func (t *Transport) Outbound() *ringbuf.Buffer {
	return t.out
}

// Run runs the reader and writer until ctx is done. Pending output is
// flushed for up to FlushTimeout, then the stream is closed if it
// implements io.Closer.
func (t *Transport) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t.readLoop(ctx)
	}()
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		t.writeLoop(ctx)
	}()
	<-ctx.Done()
	select {
	case <-writerDone:
	case <-time.After(FlushTimeout):
		glog.Warningf("console: %d bytes not flushed", t.out.AvailableToRead())
	}
	if closer, ok := t.rw.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			glog.Errorf("console close: %v", err)
		}
	}
	<-writerDone
	wg.Wait()
	return ctx.Err()
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (t *Transport) readLoop(ctx context.Context) {
	setLowPriority("console reader")
	var buf [readChunk]byte
	attempt := 0
	for {
		n, err := t.rw.Read(buf[:])
		if ctx.Err() != nil {
			return
		}
		if n > 0 {
			ringbuf.WriteAll(t.in, buf[:n], t.Backoff)
			signal(t.inNotify)
		}
		if err != nil {
			glog.Errorf("console read: %v", err)
			t.Backoff.Wait(attempt)
			attempt++
			continue
		}
		attempt = 0
	}
}

func (t *Transport) writeLoop(ctx context.Context) {
	setLowPriority("console writer")
	var buf [writeChunk]byte
	for {
		n := t.out.Read(buf[:])
		if n == 0 {
			select {
			case <-ctx.Done():
				return
			case <-t.outNotify:
			}
			continue
		}
		if _, err := t.rw.Write(buf[:n]); err != nil {
			if ctx.Err() != nil {
				return
			}
			glog.Errorf("console write: %v", err)
		}
	}
}

// Task drains input into the receive window and hands it to the Handler.
// It runs as a scheduler task.
func (t *Transport) Task() {
	if !t.Wake.CheckWake() {
		return
	}
	free := len(t.recv) - t.recvLen
	if free > MessageMax {
		free = MessageMax
	}
	chunk := t.recv[t.recvLen : t.recvLen+free]
	n := t.in.Read(chunk)
	if n > 0 && bytes.HasPrefix(chunk[:n], forceShutdown) {
		t.Shutdown.Shutdown("Force shutdown command")
		return
	}
	t.recvLen += n
	if t.recvLen == 0 {
		return
	}
	pop := t.Handler.FindAndDispatch(t.recv[:t.recvLen])
	if pop > 0 {
		copy(t.recv[:], t.recv[pop:t.recvLen])
		t.recvLen -= pop
		if t.recvLen > 0 {
			// more blocks may be complete already
			t.Wake.Wake()
		}
	}
	if t.in.AvailableToRead() > 0 {
		t.Wake.Wake()
	}
}

// SendResponse frames a message and queues it for the writer. It stalls
// rather than dropping when the outbound buffer is full.
func (t *Transport) SendResponse(enc Encoder, args ...interface{}) {
	var buf [MessageMax]byte
	n := enc.EncodeAndFrame(buf[:], args...)
	if n <= 0 {
		return
	}
	ringbuf.WriteAll(t.out, buf[:n], t.Backoff)
	signal(t.outNotify)
}

// SleepHint returns how long the scheduler may sleep: zero when input is
// pending, otherwise max bounded by IdleSleep.
func (t *Transport) SleepHint(max time.Duration) time.Duration {
	if t.in.AvailableToRead() > 0 {
		return 0
	}
	if max > IdleSleep {
		return IdleSleep
	}
	return max
}

// Sleep blocks until input arrives or timeout expires and wakes the
// console task when input is pending. It implements clock.Sleeper.
func (t *Transport) Sleep(timeout time.Duration) {
	if d := t.SleepHint(timeout); d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-t.inNotify:
		case <-timer.C:
		}
		timer.Stop()
	}
	if t.in.AvailableToRead() > 0 {
		t.Wake.Wake()
	}
}
