package command

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated indicates a payload ended in the middle of a value.
	ErrTruncated = errors.New("truncated payload")
	// ErrTooLarge indicates a message does not fit in one block.
	ErrTooLarge = errors.New("message too large")
	// ErrClosed indicates the client stopped before a response arrived.
	ErrClosed = errors.New("client closed")
)

// UnknownMessageError is returned when a payload contains an unknown id.
type UnknownMessageError struct {
	ID uint32
}

// Error implements error.
func (e *UnknownMessageError) Error() string {
	return fmt.Sprintf("unknown message id %d", e.ID)
}

// ParamError reports an argument which can't be encoded.
type ParamError struct {
	Message string
	Param   string
	Value   interface{}
}

// Error implements error.
func (e *ParamError) Error() string {
	return fmt.Sprintf("%s: bad value %v for %s", e.Message, e.Value, e.Param)
}

// RefusedError is the result of a command refused because the firmware
// is shut down.
type RefusedError struct {
	Reason string
}

// Error implements error.
func (e *RefusedError) Error() string {
	return "mcu is shutdown: " + e.Reason
}
