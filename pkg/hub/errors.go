package hub

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection is returned when the transport cannot be established or
	// the protocol handshake fails.
	ErrConnection = errors.New("hub: connection error")

	// ErrConnectionClosed is returned once the connection has been closed by
	// either side.
	ErrConnectionClosed = errors.New("hub: connection closed")

	// ErrSend is returned when an outbound frame cannot be written.
	ErrSend = errors.New("hub: send error")

	// ErrUnknownMethod is returned when an invocation names a method that has
	// no registered handler.
	ErrUnknownMethod = errors.New("hub: unknown method")

	// ErrArgumentCount is returned when an invocation carries a different
	// number of arguments than its handler declares.
	ErrArgumentCount = errors.New("hub: wrong number of arguments")

	// ErrHandlerPanic wraps a recovered handler panic.
	ErrHandlerPanic = errors.New("hub: handler panic")
)

// CompletionError is returned by Invoke when the hub completes an invocation
// with an error.
type CompletionError struct {
	Method  string
	Message string
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("hub: %s failed: %s", e.Method, e.Message)
}
