package command

import "bytes"

// Message block layout.
const (
	MessageMin         = 5
	MessageMax         = 64
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessagePosLen      = 0
	MessagePosSeq      = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessagePayloadMax  = MessageMax - MessageMin
	MessageSeqMask     = 0x0f
	MessageDest        = 0x10
	MessageSync        = 0x7e
)

type blockStatus int

const (
	blockNeedMore blockStatus = iota
	blockValid
	blockInvalid
)

// checkBlock validates the block at the start of buf.
func checkBlock(buf []byte) (blockStatus, int) {
	if len(buf) < MessageMin {
		return blockNeedMore, 0
	}
	msglen := int(buf[MessagePosLen])
	if msglen < MessageMin || msglen > MessageMax {
		return blockInvalid, 0
	}
	if buf[MessagePosSeq]&^MessageSeqMask != MessageDest {
		return blockInvalid, 0
	}
	if len(buf) < msglen {
		return blockNeedMore, 0
	}
	if buf[msglen-MessageTrailerSync] != MessageSync {
		return blockInvalid, 0
	}
	crc := uint16(buf[msglen-MessageTrailerCRC])<<8 | uint16(buf[msglen-MessageTrailerCRC+1])
	if CRC16(buf[:msglen-MessageTrailerSize]) != crc {
		return blockInvalid, 0
	}
	return blockValid, msglen
}

// nextSync returns the number of bytes to drop to resynchronize: up to and
// including the next sync byte, or everything if there is none.
func nextSync(buf []byte) (int, bool) {
	if pos := bytes.IndexByte(buf, MessageSync); pos >= 0 {
		return pos + 1, true
	}
	return len(buf), false
}

// FrameBlock writes header and trailer around a payload already placed at
// dst[MessageHeaderSize:MessageHeaderSize+payloadLen] and returns the total
// block length.
func FrameBlock(dst []byte, seq byte, payloadLen int) int {
	msglen := payloadLen + MessageMin
	dst[MessagePosLen] = byte(msglen)
	dst[MessagePosSeq] = MessageDest | seq&MessageSeqMask
	crc := CRC16(dst[:msglen-MessageTrailerSize])
	dst[msglen-MessageTrailerCRC] = byte(crc >> 8)
	dst[msglen-MessageTrailerCRC+1] = byte(crc)
	dst[msglen-MessageTrailerSync] = MessageSync
	return msglen
}

// ParseBlock extracts the first block in buf. A nil payload with n > 0
// means n leading bytes are garbage and should be dropped, n == 0 means
// more data is needed.
func ParseBlock(buf []byte) (payload []byte, seq byte, n int) {
	status, msglen := checkBlock(buf)
	switch status {
	case blockValid:
		return buf[MessageHeaderSize : msglen-MessageTrailerSize], buf[MessagePosSeq] & MessageSeqMask, msglen
	case blockInvalid:
		if buf[0] == MessageSync {
			return nil, 0, 1
		}
		n, _ = nextSync(buf)
		return nil, 0, n
	}
	return nil, 0, 0
}
