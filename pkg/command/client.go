package command

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"
)

// Result is the result of a command using Do.
type Result struct {
	Err  error
	Args Args
}

// Call represents a pending command waiting for its response.
type Call struct {
	reply    *Message
	resultCh chan Result
	next     *Call
}

// ResultChan returns the chan to retrieve the result.
func (c *Call) ResultChan() <-chan Result {
	return c.resultCh
}

// Client is the host side of the protocol over a stream, normally the
// pty slave of a running firmware.
type Client struct {
	Dict *Dictionary

	rw        io.ReadWriter
	eventCh   chan Decoded
	writeLock sync.Mutex
	seq       byte
	callsHead *Call
	callsTail *Call
	callsLock sync.Mutex
	closed    bool
}

// NewClient creates a client over rw using the Default dictionary.
func NewClient(rw io.ReadWriter) *Client {
	return &Client{
		Dict:    Default,
		rw:      rw,
		eventCh: make(chan Decoded, 16),
	}
}

// EventChan retrieves messages not consumed by any pending call.
func (c *Client) EventChan() <-chan Decoded {
	return c.eventCh
}

// Send encodes and writes one command block.
func (c *Client) Send(m *Message, args ...interface{}) error {
	var buf [MessageMax]byte
	body := buf[MessageHeaderSize:MessageHeaderSize:MessageMax-MessageTrailerSize]
	payload, err := m.AppendArgs(body, args...)
	if err != nil {
		return err
	}
	if len(payload) > MessagePayloadMax {
		return ErrTooLarge
	}
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	n := FrameBlock(buf[:], c.seq, len(payload))
	if _, err = c.rw.Write(buf[:n]); err != nil {
		return err
	}
	c.seq = (c.seq + 1) & MessageSeqMask
	return nil
}

// Raw writes bytes to the stream bypassing framing.
func (c *Client) Raw(p []byte) error {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	_, err := c.rw.Write(p)
	return err
}

// DoWith sends a command and expects the reply message in the provided chan.
func (c *Client) DoWith(m, reply *Message, ch chan Result, args ...interface{}) *Call {
	call := &Call{reply: reply, resultCh: ch}

	c.callsLock.Lock()
	defer c.callsLock.Unlock()
	if c.closed {
		call.resultCh <- Result{Err: ErrClosed}
		return call
	}
	if err := c.Send(m, args...); err != nil {
		call.resultCh <- Result{Err: err}
		return call
	}
	if c.callsHead == nil {
		c.callsHead = call
	} else {
		c.callsTail.next = call
	}
	c.callsTail = call
	return call
}

// Do sends a command and returns a Call for the reply.
func (c *Client) Do(m, reply *Message, args ...interface{}) *Call {
	return c.DoWith(m, reply, make(chan Result, 1), args...)
}

// take removes the first pending call accepting msg, or the oldest call
// when msg is nil.
func (c *Client) take(msg *Message) *Call {
	c.callsLock.Lock()
	defer c.callsLock.Unlock()
	var prev *Call
	for curr := c.callsHead; curr != nil; prev, curr = curr, curr.next {
		if msg != nil && curr.reply != msg {
			continue
		}
		if prev == nil {
			c.callsHead = curr.next
		} else {
			prev.next = curr.next
		}
		if c.callsTail == curr {
			c.callsTail = prev
		}
		curr.next = nil
		return curr
	}
	return nil
}

func (c *Client) handle(ctx context.Context, d Decoded) {
	if call := c.take(d.Message); call != nil {
		call.resultCh <- Result{Args: d.Args}
		return
	}
	if d.Message == MsgIsShutdown {
		if call := c.take(nil); call != nil {
			call.resultCh <- Result{Err: &RefusedError{Reason: string(d.Args.Bytes(0))}}
		}
	}
	select {
	case c.eventCh <- d:
	case <-ctx.Done():
	}
}

func (c *Client) closeCalls() {
	c.callsLock.Lock()
	head := c.callsHead
	c.callsHead, c.callsTail, c.closed = nil, nil, true
	c.callsLock.Unlock()
	for ; head != nil; head = head.next {
		head.resultCh <- Result{Err: ErrClosed}
	}
}

// Run reads responses until ctx is done or the stream fails. Pending
// calls then complete with ErrClosed.
func (c *Client) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.readLoop(ctx)
	}()
	var err error
	select {
	case <-ctx.Done():
		if closer, ok := c.rw.(io.Closer); ok {
			closer.Close()
		}
		<-errCh
		err = ctx.Err()
	case err = <-errCh:
	}
	c.closeCalls()
	return err
}

func (c *Client) readLoop(ctx context.Context) error {
	var buf [MessageMax * 4]byte
	var size int
	for {
		n, err := c.rw.Read(buf[size:])
		if err != nil {
			return err
		}
		size += n
		for {
			payload, seq, pop := ParseBlock(buf[:size])
			if pop == 0 {
				break
			}
			if payload == nil {
				glog.V(3).Infof("client: drop %d bytes", pop)
			} else if len(payload) == 0 {
				glog.V(4).Infof("client: ack seq %#x", seq)
			} else {
				msgs, err := c.Dict.Decode(payload)
				if err != nil {
					glog.Warningf("client: decode: %v", err)
				}
				for _, d := range msgs {
					c.handle(ctx, d)
				}
			}
			copy(buf[:], buf[pop:size])
			size -= pop
		}
	}
}
