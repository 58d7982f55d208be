// Package command implements the firmware message block protocol.
package command

// Every block on the wire is framed as
//
//	len | seq | payload ... | crc16 hi | crc16 lo | sync(0x7e)
//
// where len counts the whole block (5 to 64 bytes) and seq carries a
// 4-bit sequence number. The payload is a list of messages, each a VLQ
// encoded message id followed by its parameters.
//
// The firmware side (Layer) validates the sequence of every incoming block,
// acknowledges good blocks and NAKs lost ones. The host side (Client)
// frames commands with its own sequence and routes decoded responses to
// the callers waiting for them.
