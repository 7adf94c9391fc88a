package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbirk/runnerbot/pkg/log"
	"github.com/kbirk/runnerbot/pkg/wire"
)

// DefaultKeepAliveInterval is how often an idle client pings the hub.
const DefaultKeepAliveInterval = 15 * time.Second

// Client is one session with a hub over a single connection. Outbound frames
// are written by one writer at a time; inbound invocations are handled in
// arrival order on a worker that never blocks the dispatch loop.
type Client struct {
	conf      ClientConfig
	transport ClientTransport
	registry  *Registry
	mu        *sync.Mutex
	sending   *sync.Mutex
	conn      Connection
	records   *RecordReader
	pending   map[string]chan *Message
	queue     *invocationQueue
	running   bool
	closed    bool
	done      chan struct{}
}

type ClientConfig struct {
	Transport  ClientTransport
	Registry   *Registry
	ErrHandler func(error)
	Logger     log.Logger
	// KeepAliveInterval between pings, zero disables them.
	KeepAliveInterval time.Duration
	middleware        []Middleware
}

func NewClient(conf ClientConfig) *Client {
	registry := conf.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	return &Client{
		conf:      conf,
		transport: conf.Transport,
		registry:  registry,
		mu:        &sync.Mutex{},
		sending:   &sync.Mutex{},
		records:   &RecordReader{},
		pending:   make(map[string]chan *Message),
		queue:     newInvocationQueue(),
		done:      make(chan struct{}),
	}
}

func (c *Client) Middleware(middleware Middleware) {
	c.conf.middleware = append(c.conf.middleware, middleware)
}

func (c *Client) Registry() *Registry {
	return c.registry
}

// Done is closed once the client has shut down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) reportError(err error) {
	c.logError("Encountered error: " + err.Error())
	if c.conf.ErrHandler != nil {
		c.conf.ErrHandler(err)
	}
}

func (c *Client) logDebug(msg string) {
	if c.conf.Logger != nil {
		c.conf.Logger.Debug(msg)
	}
}

func (c *Client) logInfo(msg string) {
	if c.conf.Logger != nil {
		c.conf.Logger.Info(msg)
	}
}

func (c *Client) logWarn(msg string) {
	if c.conf.Logger != nil {
		c.conf.Logger.Warn(msg)
	}
}

func (c *Client) logError(msg string) {
	if c.conf.Logger != nil {
		c.conf.Logger.Error(msg)
	}
}

// Connect establishes the transport and performs the protocol handshake. It
// does not retry.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("%w: client is closed", ErrConnection)
	}
	if c.conn != nil {
		return nil
	}

	c.logDebug("Connecting to hub")
	conn, err := c.transport.Connect(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}

	err = c.handshake(ctx, conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("%w: handshake: %w", ErrConnection, err)
	}

	c.conn = conn
	c.logInfo("Connected to hub")
	return nil
}

func (c *Client) handshake(ctx context.Context, conn Connection) error {
	// unblock Receive if the context ends mid-handshake
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	req, err := EncodeRecord(HandshakeRequest{
		Protocol: ProtocolName,
		Version:  ProtocolVersion,
	})
	if err != nil {
		return err
	}
	err = conn.Send(req)
	if err != nil {
		return err
	}

	for {
		record, ok := c.records.Next()
		if ok {
			var resp HandshakeResponse
			err = json.Unmarshal(record, &resp)
			if err != nil {
				return fmt.Errorf("malformed handshake response: %w", err)
			}
			if resp.Error != "" {
				return fmt.Errorf("rejected by hub: %s", resp.Error)
			}
			return nil
		}

		bs, err := conn.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		c.records.Feed(bs)
	}
}

// Send writes a fire-and-forget invocation of method.
func (c *Client) Send(ctx context.Context, method string, args ...any) error {
	encoded, err := wire.EncodeAll(args...)
	if err != nil {
		return fmt.Errorf("encoding %s arguments: %w", method, err)
	}
	frame, err := EncodeInvocation("", method, encoded)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", method, err)
	}
	return c.write(ctx, frame)
}

// Invoke writes an invocation of method and waits for the hub to complete it.
func (c *Client) Invoke(ctx context.Context, method string, args ...any) (json.RawMessage, error) {
	encoded, err := wire.EncodeAll(args...)
	if err != nil {
		return nil, fmt.Errorf("encoding %s arguments: %w", method, err)
	}
	id := uuid.NewString()
	frame, err := EncodeInvocation(id, method, encoded)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", method, err)
	}

	// register before writing so an early completion is not lost
	ch := make(chan *Message, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", ErrSend, ErrConnectionClosed)
	}
	c.pending[id] = ch
	c.mu.Unlock()

	err = c.write(ctx, frame)
	if err != nil {
		c.forget(id)
		return nil, err
	}

	select {
	case msg, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("%s: %w", method, ErrConnectionClosed)
		}
		if msg.Error != "" {
			return nil, &CompletionError{Method: method, Message: msg.Error}
		}
		return msg.Result, nil
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) write(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrSend, err)
	}

	c.mu.Lock()
	conn := c.conn
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return fmt.Errorf("%w: %w", ErrSend, ErrConnectionClosed)
	}
	if conn == nil {
		return fmt.Errorf("%w: not connected", ErrSend)
	}

	c.sending.Lock()
	defer c.sending.Unlock()

	err := conn.Send(frame)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSend, err)
	}
	return nil
}

// Run reads and dispatches inbound records until the connection closes, the
// hub sends a close message, or ctx ends. The returned error wraps
// ErrConnectionClosed unless ctx ended first.
func (c *Client) Run(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrConnectionClosed
	case conn == nil:
		c.mu.Unlock()
		return fmt.Errorf("%w: not connected", ErrConnection)
	case c.running:
		c.mu.Unlock()
		return errors.New("hub: dispatch loop already running")
	}
	c.running = true
	c.mu.Unlock()

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		c.handleInvocations(ctx)
	}()
	if c.conf.KeepAliveInterval > 0 {
		go c.keepAlive(ctx)
	}

	stop := context.AfterFunc(ctx, func() {
		c.Close()
	})
	defer stop()

	err := c.readLoop(ctx, conn)

	// invocations read before the close still run
	c.teardown(false)
	<-workerDone
	return err
}

func (c *Client) readLoop(ctx context.Context, conn Connection) error {
	for {
		for {
			record, ok := c.records.Next()
			if !ok {
				break
			}
			err := c.handleRecord(record)
			if err != nil {
				c.logInfo(err.Error())
				return err
			}
		}

		c.logDebug("Waiting for message")
		bs, err := conn.Receive()
		if err != nil {
			if pending := c.records.Pending(); pending > 0 {
				c.logWarn(fmt.Sprintf("Discarding %d bytes of incomplete record", pending))
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, ErrConnectionClosed) {
				c.logInfo("Connection closed")
				return err
			}
			c.logError("Connection lost: " + err.Error())
			return fmt.Errorf("%w: %w", ErrConnectionClosed, err)
		}
		c.records.Feed(bs)
	}
}

// handleRecord processes one record. Malformed or unsupported records are
// dropped; only a hub close message returns an error.
func (c *Client) handleRecord(record []byte) error {
	if len(bytes.TrimSpace(record)) == 0 {
		return nil
	}

	msg, err := ParseMessage(record)
	if err != nil {
		c.logWarn("Dropping record: " + err.Error())
		return nil
	}

	switch msg.Type {
	case InvocationMessage:
		c.logDebug("Received invocation of " + msg.Target)
		inv := &Invocation{
			ID:        msg.InvocationID,
			Target:    msg.Target,
			Arguments: msg.Arguments,
		}
		if !c.queue.push(inv) {
			c.logDebug("Client closed, dropping invocation of " + msg.Target)
		}
	case CompletionMessage:
		c.complete(msg)
	case PingMessage:
		c.logDebug("Received ping")
	case CloseMessage:
		if msg.Error != "" {
			return fmt.Errorf("%w: hub closed the connection: %s", ErrConnectionClosed, msg.Error)
		}
		return fmt.Errorf("%w: hub closed the connection", ErrConnectionClosed)
	default:
		c.logWarn(fmt.Sprintf("Ignoring unsupported %s message", msg.Type))
	}
	return nil
}

func (c *Client) complete(msg *Message) {
	c.mu.Lock()
	ch, ok := c.pending[msg.InvocationID]
	delete(c.pending, msg.InvocationID)
	c.mu.Unlock()

	if !ok {
		c.logWarn("Unrecognized invocation id: " + msg.InvocationID)
		return
	}
	ch <- msg
}

func (c *Client) handleInvocations(ctx context.Context) {
	// the inner Recover lets middleware observe handler panics as errors, the
	// outer one guards the middleware itself
	middleware := make([]Middleware, 0, len(c.conf.middleware)+2)
	middleware = append(middleware, Recover)
	middleware = append(middleware, c.conf.middleware...)
	middleware = append(middleware, Recover)

	for {
		inv, ok := c.queue.pop()
		if !ok {
			return
		}

		err := ApplyHandlerChain(NewContextWithInvocation(ctx, inv), inv, middleware, c.registry.Dispatch)
		switch {
		case err == nil:
		case errors.Is(err, ErrUnknownMethod):
			c.logWarn("Dropping invocation: " + err.Error())
		default:
			c.reportError(err)
		}

		if inv.ID != "" {
			c.respond(ctx, inv, err)
		}
	}
}

// respond completes an invocation the hub expects an answer for.
func (c *Client) respond(ctx context.Context, inv *Invocation, handlerErr error) {
	errMsg := ""
	if handlerErr != nil {
		errMsg = handlerErr.Error()
	}
	frame, err := EncodeCompletion(inv.ID, nil, errMsg)
	if err != nil {
		c.reportError(err)
		return
	}
	err = c.write(ctx, frame)
	if err != nil {
		c.logWarn("Failed to complete " + inv.Target + ": " + err.Error())
	}
}

func (c *Client) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(c.conf.KeepAliveInterval)
	defer ticker.Stop()

	ping, err := EncodePing()
	if err != nil {
		c.reportError(err)
		return
	}

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			err := c.write(ctx, ping)
			if err != nil {
				c.logDebug("Keep-alive ping failed: " + err.Error())
			}
		}
	}
}

// Close shuts the client down. Pending invocations fail and queued inbound
// invocations are discarded. It is safe to call more than once.
func (c *Client) Close() error {
	return c.teardown(true)
}

func (c *Client) teardown(discard bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	pending := c.pending
	c.pending = make(map[string]chan *Message)
	c.mu.Unlock()

	c.queue.close(discard)
	close(c.done)

	for _, ch := range pending {
		close(ch)
	}

	if conn != nil {
		return conn.Close()
	}
	return nil
}
