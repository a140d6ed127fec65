package messaging

import (
	"errors"
	"fmt"

	"github.com/bnema/browserbridge/internal/application/port"
)

var (
	// ErrInvalidChannel is returned when a channel name is empty or malformed.
	ErrInvalidChannel = errors.New("invalid channel name")
	// ErrNilHandler is returned when registering a nil handler.
	ErrNilHandler = errors.New("message handler cannot be nil")
	// ErrNilHost is returned when constructing a bridge without a host.
	ErrNilHost = errors.New("browser host cannot be nil")
	// ErrEmptyURI is returned by LoadURI for blank input.
	ErrEmptyURI = errors.New("uri is empty")
	// ErrBridgeClosed is returned by operations on a closed bridge.
	ErrBridgeClosed = errors.New("bridge is closed")
	// ErrNotReady aliases the host error so callers can match it from here.
	ErrNotReady = port.ErrNotReady
)

// HandlerError wraps a failure raised by a channel handler during dispatch.
// It is logged and never returned to the host.
type HandlerError struct {
	Channel string
	Err     error
	// Panic holds the recovered value when the handler panicked.
	Panic any
}

func (e *HandlerError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("handler for channel %q panicked: %v", e.Channel, e.Panic)
	}
	return fmt.Sprintf("handler for channel %q failed: %v", e.Channel, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
