package command

import (
	"github.com/golang/glog"

	"github.com/robotalks/hostmcu/pkg/console"
)

// Firmware is the scheduler state consulted while dispatching.
type Firmware interface {
	IsShutdown() bool
	ShutdownReason() string
	Shutdown(reason string)
}

// Sender renders and queues a framed response.
type Sender interface {
	SendResponse(enc console.Encoder, args ...interface{})
}

// Flags modify how a command is dispatched.
type Flags int

// InShutdown allows a command to run while the firmware is shut down.
const InShutdown Flags = 1

// HandlerFunc handles a decoded command.
type HandlerFunc func(Args)

type handler struct {
	msg   *Message
	flags Flags
	fn    HandlerFunc
}

const (
	syncNeedSync  = 1 << 0
	syncNeedValid = 1 << 1
)

// Layer is the firmware side of the protocol. It must be used from the
// scheduler goroutine.
type Layer struct {
	Sender   Sender
	Firmware Firmware

	handlers     map[uint32]*handler
	nextSequence byte
	syncState    byte
	isShutdown   *Response
}

// NewLayer creates a Layer.
func NewLayer(sender Sender, fw Firmware) *Layer {
	l := &Layer{
		Sender:       sender,
		Firmware:     fw,
		handlers:     make(map[uint32]*handler),
		nextSequence: MessageDest,
	}
	l.isShutdown = l.Response(MsgIsShutdown)
	return l
}

// Register installs the handler of a command.
func (l *Layer) Register(m *Message, flags Flags, fn HandlerFunc) {
	l.handlers[m.ID] = &handler{msg: m, flags: flags, fn: fn}
}

// Response creates the encoder of a response message.
func (l *Layer) Response(m *Message) *Response {
	return &Response{Message: m, layer: l}
}

// Sendf encodes and queues a response.
func (l *Layer) Sendf(r *Response, args ...interface{}) {
	l.Sender.SendResponse(r, args...)
}

// Response encodes one response message into a block.
type Response struct {
	Message *Message
	layer   *Layer
}

// EncodeAndFrame implements console.Encoder.
func (r *Response) EncodeAndFrame(dst []byte, args ...interface{}) int {
	if len(dst) < MessageMax {
		glog.Errorf("encode %s: buffer too small", r.Message.Name)
		return 0
	}
	body := dst[MessageHeaderSize:MessageHeaderSize:MessageMax-MessageTrailerSize]
	payload, err := r.Message.AppendArgs(body, args...)
	if err == nil && len(payload) > MessagePayloadMax {
		err = ErrTooLarge
	}
	if err != nil {
		glog.Errorf("encode %s: %v", r.Message.Name, err)
		r.layer.Firmware.Shutdown("Message encode error")
		return 0
	}
	return FrameBlock(dst, r.layer.nextSequence, len(payload))
}

type ackEncoder struct {
	layer *Layer
}

// EncodeAndFrame implements console.Encoder.
func (a ackEncoder) EncodeAndFrame(dst []byte, args ...interface{}) int {
	return FrameBlock(dst, a.layer.nextSequence, 0)
}

func (l *Layer) sendAck() {
	l.Sender.SendResponse(ackEncoder{layer: l})
}

// findBlock returns 1 and the block length for a valid in-sequence
// block, 0 when more data is needed, or -1 with the number of bytes to
// discard.
func (l *Layer) findBlock(buf []byte) (int, int) {
	if len(buf) > 0 && l.syncState&syncNeedSync != 0 {
		return l.resync(buf)
	}
	status, msglen := checkBlock(buf)
	switch status {
	case blockNeedMore:
		return 0, 0
	case blockInvalid:
		if buf[0] == MessageSync {
			// leading sync bytes are dropped silently
			return -1, 1
		}
		l.syncState |= syncNeedSync
		return l.resync(buf)
	}
	l.syncState &^= syncNeedValid
	seq := buf[MessagePosSeq]
	if seq != l.nextSequence {
		// lost a block, drop until it's retransmitted
		glog.V(2).Infof("out of sequence block %#x, expect %#x", seq, l.nextSequence)
		l.sendAck()
		return -1, msglen
	}
	l.nextSequence = (seq+1)&MessageSeqMask | MessageDest
	return 1, msglen
}

func (l *Layer) resync(buf []byte) (int, int) {
	pop, found := nextSync(buf)
	if found {
		l.syncState &^= syncNeedSync
	}
	if l.syncState&syncNeedValid != 0 {
		return -1, pop
	}
	l.syncState |= syncNeedValid
	l.sendAck()
	return -1, pop
}

// FindAndDispatch consumes at most one block from buf, dispatches its
// commands and returns the number of bytes consumed.
func (l *Layer) FindAndDispatch(buf []byte) int {
	ret, pop := l.findBlock(buf)
	if ret > 0 {
		l.dispatch(buf[MessageHeaderSize : pop-MessageTrailerSize])
		l.sendAck()
	}
	return pop
}

func (l *Layer) dispatch(payload []byte) {
	for len(payload) > 0 {
		id, rest, err := ParseInt(payload)
		h := l.handlers[id]
		if err != nil || h == nil {
			l.Firmware.Shutdown("Invalid command")
			return
		}
		args, rest, err := h.msg.ParseArgs(rest)
		if err != nil {
			l.Firmware.Shutdown("Command parser error")
			return
		}
		payload = rest
		if h.flags&InShutdown == 0 && l.Firmware.IsShutdown() {
			l.Sendf(l.isShutdown, l.Firmware.ShutdownReason())
			continue
		}
		if glog.V(4) {
			glog.Infof("dispatch %s", h.msg.Name)
		}
		h.fn(args)
	}
}
