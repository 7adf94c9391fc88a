// Package hubtest provides an in-memory transport and a scripted hub peer for
// testing code built on package hub.
package hubtest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/kbirk/runnerbot/pkg/hub"
)

const pipeBuffer = 1024

type pipeConn struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   *sync.Once
	sends  *atomic.Int64
}

// Pipe returns two connected in-memory connections. Closing either end closes
// both.
func Pipe() (hub.Connection, hub.Connection) {
	a := make(chan []byte, pipeBuffer)
	b := make(chan []byte, pipeBuffer)
	closed := make(chan struct{})
	once := &sync.Once{}
	return &pipeConn{in: a, out: b, closed: closed, once: once, sends: &atomic.Int64{}},
		&pipeConn{in: b, out: a, closed: closed, once: once, sends: &atomic.Int64{}}
}

func (c *pipeConn) Send(data []byte) error {
	select {
	case <-c.closed:
		return hub.ErrConnectionClosed
	default:
	}

	cp := make([]byte, len(data))
	copy(cp, data)

	select {
	case c.out <- cp:
		c.sends.Add(1)
		return nil
	case <-c.closed:
		return hub.ErrConnectionClosed
	}
}

func (c *pipeConn) Receive() ([]byte, error) {
	// drain what was sent before the close
	select {
	case data := <-c.in:
		return data, nil
	default:
	}

	select {
	case data := <-c.in:
		return data, nil
	case <-c.closed:
		select {
		case data := <-c.in:
			return data, nil
		default:
			return nil, hub.ErrConnectionClosed
		}
	}
}

func (c *pipeConn) Close() error {
	c.once.Do(func() {
		close(c.closed)
	})
	return nil
}

// Transport is a client and server transport pair backed by pipes. Each
// Connect creates a pipe whose other end is handed to Accept.
type Transport struct {
	accepted chan hub.Connection
	closed   chan struct{}
	once     *sync.Once
	mu       *sync.Mutex
	clients  []*pipeConn
	dialErr  error
}

func NewTransport() *Transport {
	return &Transport{
		accepted: make(chan hub.Connection, 16),
		closed:   make(chan struct{}),
		once:     &sync.Once{},
		mu:       &sync.Mutex{},
	}
}

// FailDial makes subsequent Connect calls return err.
func (t *Transport) FailDial(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dialErr = err
}

func (t *Transport) Connect(ctx context.Context) (hub.Connection, error) {
	t.mu.Lock()
	dialErr := t.dialErr
	t.mu.Unlock()
	if dialErr != nil {
		return nil, dialErr
	}

	client, server := Pipe()

	select {
	case t.accepted <- server:
	case <-t.closed:
		return nil, hub.ErrConnectionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	t.mu.Lock()
	t.clients = append(t.clients, client.(*pipeConn))
	t.mu.Unlock()
	return client, nil
}

func (t *Transport) Accept() (hub.Connection, error) {
	select {
	case conn := <-t.accepted:
		return conn, nil
	case <-t.closed:
		return nil, hub.ErrConnectionClosed
	}
}

func (t *Transport) Close() error {
	t.once.Do(func() {
		close(t.closed)
	})
	return nil
}

// Sends returns how many frames clients have written, handshakes included.
func (t *Transport) Sends() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, c := range t.clients {
		n += int(c.sends.Load())
	}
	return n
}
