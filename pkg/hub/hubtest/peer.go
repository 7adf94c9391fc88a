package hubtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kbirk/runnerbot/pkg/hub"
	"github.com/kbirk/runnerbot/pkg/wire"
)

// Peer plays the hub side of a connection from a script.
type Peer struct {
	conn    hub.Connection
	records chan []byte
	done    chan struct{}
	err     error
}

func NewPeer(conn hub.Connection) *Peer {
	p := &Peer{
		conn:    conn,
		records: make(chan []byte, pipeBuffer),
		done:    make(chan struct{}),
	}
	go p.read()
	return p
}

func (p *Peer) read() {
	defer close(p.done)

	reader := &hub.RecordReader{}
	for {
		bs, err := p.conn.Receive()
		if err != nil {
			p.err = err
			return
		}
		reader.Feed(bs)
		for {
			record, ok := reader.Next()
			if !ok {
				break
			}
			p.records <- record
		}
	}
}

func (p *Peer) nextRecord(ctx context.Context) ([]byte, error) {
	select {
	case record := <-p.records:
		return record, nil
	default:
	}

	select {
	case record := <-p.records:
		return record, nil
	case <-p.done:
		select {
		case record := <-p.records:
			return record, nil
		default:
			return nil, p.err
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ReadHandshake returns the client's handshake request without answering it.
func (p *Peer) ReadHandshake(ctx context.Context) (hub.HandshakeRequest, error) {
	var req hub.HandshakeRequest
	record, err := p.nextRecord(ctx)
	if err != nil {
		return req, err
	}
	err = json.Unmarshal(record, &req)
	return req, err
}

// Handshake reads the client's handshake request and accepts it.
func (p *Peer) Handshake(ctx context.Context) error {
	req, err := p.ReadHandshake(ctx)
	if err != nil {
		return err
	}
	if req.Protocol != hub.ProtocolName || req.Version != hub.ProtocolVersion {
		return fmt.Errorf("unexpected handshake %s/%d", req.Protocol, req.Version)
	}
	return p.SendRecord(hub.HandshakeResponse{})
}

// RejectHandshake reads the client's handshake request and refuses it.
func (p *Peer) RejectHandshake(ctx context.Context, reason string) error {
	_, err := p.ReadHandshake(ctx)
	if err != nil {
		return err
	}
	return p.SendRecord(hub.HandshakeResponse{Error: reason})
}

func (p *Peer) SendRecord(v any) error {
	record, err := hub.EncodeRecord(v)
	if err != nil {
		return err
	}
	return p.conn.Send(record)
}

// SendRaw writes bytes as they are, no separator is added.
func (p *Peer) SendRaw(data []byte) error {
	return p.conn.Send(data)
}

// Invoke calls a client method without expecting a completion.
func (p *Peer) Invoke(target string, args ...any) error {
	return p.InvokeWithID("", target, args...)
}

func (p *Peer) InvokeWithID(id string, target string, args ...any) error {
	encoded, err := wire.EncodeAll(args...)
	if err != nil {
		return err
	}
	record, err := hub.EncodeInvocation(id, target, encoded)
	if err != nil {
		return err
	}
	return p.conn.Send(record)
}

// Complete answers a client invocation.
func (p *Peer) Complete(id string, result any, errMsg string) error {
	var raw json.RawMessage
	if result != nil {
		encoded, err := wire.Encode(result)
		if err != nil {
			return err
		}
		raw = encoded
	}
	record, err := hub.EncodeCompletion(id, raw, errMsg)
	if err != nil {
		return err
	}
	return p.conn.Send(record)
}

// SendClose tells the client the hub is closing the connection.
func (p *Peer) SendClose(errMsg string) error {
	return p.SendRecord(hub.Message{Type: hub.CloseMessage, Error: errMsg})
}

// Next returns the next message the client wrote, skipping pings.
func (p *Peer) Next(ctx context.Context) (*hub.Message, error) {
	for {
		record, err := p.nextRecord(ctx)
		if err != nil {
			return nil, err
		}
		msg, err := hub.ParseMessage(record)
		if err != nil {
			return nil, err
		}
		if msg.Type == hub.PingMessage {
			continue
		}
		return msg, nil
	}
}

// Drain reads n invocations. Each one that carries an invocation id is
// completed with its first argument.
func (p *Peer) Drain(ctx context.Context, n int) ([]*hub.Message, error) {
	msgs := make([]*hub.Message, 0, n)
	for len(msgs) < n {
		msg, err := p.Next(ctx)
		if err != nil {
			return msgs, err
		}
		if msg.Type != hub.InvocationMessage {
			return msgs, fmt.Errorf("unexpected %s message", msg.Type)
		}
		if msg.InvocationID != "" {
			var result json.RawMessage
			if len(msg.Arguments) > 0 {
				result = msg.Arguments[0]
			}
			err = p.Complete(msg.InvocationID, result, "")
			if err != nil {
				return msgs, err
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// ExpectNoMessage fails if the client writes anything other than a ping
// within d.
func (p *Peer) ExpectNoMessage(d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	msg, err := p.Next(ctx)
	if err == nil {
		return fmt.Errorf("unexpected %s message for %q", msg.Type, msg.Target)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, hub.ErrConnectionClosed) {
		return nil
	}
	return err
}

// Closed is closed once the client end has gone away.
func (p *Peer) Closed() <-chan struct{} {
	return p.done
}

func (p *Peer) Close() error {
	return p.conn.Close()
}

// ConnectClient accepts the connection made by connect on tr and completes
// the handshake for it.
func ConnectClient(ctx context.Context, tr hub.ServerTransport, connect func(context.Context) error) (*Peer, error) {
	errs := make(chan error, 1)
	go func() {
		errs <- connect(ctx)
	}()

	conn, err := tr.Accept()
	if err != nil {
		return nil, err
	}
	peer := NewPeer(conn)
	err = peer.Handshake(ctx)
	if err != nil {
		return nil, err
	}

	select {
	case err = <-errs:
		if err != nil {
			return nil, err
		}
		return peer, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
