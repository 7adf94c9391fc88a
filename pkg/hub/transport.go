package hub

import "context"

// Connection represents a bidirectional communication channel
type Connection interface {
	// Send sends a message to the remote peer
	Send(data []byte) error

	// Receive blocks until a message is received from the remote peer.
	// A normal closure is reported as ErrConnectionClosed.
	Receive() ([]byte, error)

	// Close closes the connection
	Close() error
}

// ClientTransport handles outgoing connections for the client
type ClientTransport interface {
	// Connect establishes a connection to the hub
	Connect(ctx context.Context) (Connection, error)
}

// ServerTransport hands out incoming connections. It is implemented by the
// websocket server transport and the in-memory test transport.
type ServerTransport interface {
	// Accept blocks until a new connection is available
	Accept() (Connection, error)

	// Close stops accepting connections
	Close() error
}
