package websocket

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kbirk/runnerbot/pkg/hub"
)

const (
	// DefaultPath is the hub endpoint the game runner exposes.
	DefaultPath = "/runnerhub"

	negotiateVersion = 1
	handshakeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WebSocketConnection implements hub.Connection over text frames.
type WebSocketConnection struct {
	conn               *websocket.Conn
	mu                 *sync.Mutex
	closed             *atomic.Bool
	maxSendMessageSize uint32
	maxRecvMessageSize uint32
}

func newConnection(conn *websocket.Conn, maxSend uint32, maxRecv uint32) *WebSocketConnection {
	return &WebSocketConnection{
		conn:               conn,
		mu:                 &sync.Mutex{},
		closed:             &atomic.Bool{},
		maxSendMessageSize: maxSend,
		maxRecvMessageSize: maxRecv,
	}
}

func (c *WebSocketConnection) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return hub.ErrConnectionClosed
	}
	if c.maxSendMessageSize > 0 && uint32(len(data)) > c.maxSendMessageSize {
		return fmt.Errorf("message size %d exceeds send limit %d", len(data), c.maxSendMessageSize)
	}

	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *WebSocketConnection) Receive() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		// normal closure from either side
		if c.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, hub.ErrConnectionClosed
		}
		return nil, err
	}

	if c.maxRecvMessageSize > 0 && uint32(len(data)) > c.maxRecvMessageSize {
		return nil, fmt.Errorf("message size %d exceeds receive limit %d", len(data), c.maxRecvMessageSize)
	}

	return data, nil
}

func (c *WebSocketConnection) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Send a proper close frame before closing the connection
	// Use a short deadline to avoid blocking indefinitely
	deadline := time.Now().Add(time.Second)
	err := c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		deadline,
	)

	// Close the underlying connection regardless of whether the close frame was sent
	closeErr := c.conn.Close()

	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return err
	}
	return closeErr
}

// NegotiateResponse is returned by the negotiate endpoint. Its connection
// token identifies the websocket that follows.
type NegotiateResponse struct {
	ConnectionID        string               `json:"connectionId,omitempty"`
	ConnectionToken     string               `json:"connectionToken,omitempty"`
	NegotiateVersion    int                  `json:"negotiateVersion"`
	AvailableTransports []AvailableTransport `json:"availableTransports,omitempty"`
	URL                 string               `json:"url,omitempty"`
	AccessToken         string               `json:"accessToken,omitempty"`
	Error               string               `json:"error,omitempty"`
}

type AvailableTransport struct {
	Transport       string   `json:"transport"`
	TransferFormats []string `json:"transferFormats"`
}

func (r *NegotiateResponse) supportsWebSockets() bool {
	if len(r.AvailableTransports) == 0 {
		return true
	}
	for _, t := range r.AvailableTransports {
		if t.Transport == "WebSockets" {
			return true
		}
	}
	return false
}

// ServerTransport implements hub.ServerTransport as an http.Handler serving
// negotiate and the websocket upgrade under Path.
type ServerTransport struct {
	Path               string
	MaxSendMessageSize uint32
	MaxRecvMessageSize uint32
	connCh             chan hub.Connection
	tokens             map[string]struct{}
	mu                 *sync.Mutex
	closed             bool
}

type ServerTransportConfig struct {
	Path               string // Defaults to DefaultPath
	MaxSendMessageSize uint32 // Maximum send message size in bytes (0 for no limit)
	MaxRecvMessageSize uint32 // Maximum receive message size in bytes (0 for no limit)
}

func NewServerTransport(config ServerTransportConfig) *ServerTransport {
	return &ServerTransport{
		Path:               normalizePath(config.Path),
		MaxSendMessageSize: config.MaxSendMessageSize,
		MaxRecvMessageSize: config.MaxRecvMessageSize,
		connCh:             make(chan hub.Connection, 16), // buffered channel for connections
		tokens:             make(map[string]struct{}),
		mu:                 &sync.Mutex{},
	}
}

func (t *ServerTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case t.Path + "/negotiate":
		t.handleNegotiate(w, r)
	case t.Path:
		t.handleWebSocket(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (t *ServerTransport) handleNegotiate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := uuid.NewString()
	t.mu.Lock()
	t.tokens[token] = struct{}{}
	t.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(NegotiateResponse{
		ConnectionID:     uuid.NewString(),
		ConnectionToken:  token,
		NegotiateVersion: negotiateVersion,
		AvailableTransports: []AvailableTransport{
			{Transport: "WebSockets", TransferFormats: []string{"Text"}},
		},
	})
}

func (t *ServerTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// a negotiated id must be one this transport handed out
	if id := r.URL.Query().Get("id"); id != "" {
		t.mu.Lock()
		_, ok := t.tokens[id]
		delete(t.tokens, id)
		t.mu.Unlock()
		if !ok {
			http.Error(w, "unknown connection id", http.StatusNotFound)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	wsConn := newConnection(conn, t.MaxSendMessageSize, t.MaxRecvMessageSize)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		conn.Close()
		return
	}
	select {
	case t.connCh <- wsConn:
	default:
		// Channel is full, close the connection
		conn.Close()
	}
}

func (t *ServerTransport) Accept() (hub.Connection, error) {
	conn, ok := <-t.connCh
	if !ok {
		return nil, hub.ErrConnectionClosed
	}
	return conn, nil
}

func (t *ServerTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil // Already closed
	}

	t.closed = true
	close(t.connCh)
	return nil
}

// ClientTransport implements hub.ClientTransport for websocket hubs.
type ClientTransport struct {
	Host               string
	Port               int
	Path               string
	TLSConfig          *tls.Config
	SkipNegotiation    bool
	MaxSendMessageSize uint32
	MaxRecvMessageSize uint32
	httpClient         *http.Client
}

type ClientTransportConfig struct {
	Host               string
	Port               int
	Path               string // Defaults to DefaultPath
	TLSConfig          *tls.Config
	SkipNegotiation    bool   // Dial the websocket directly without a negotiate request
	MaxSendMessageSize uint32 // Maximum send message size in bytes (0 for no limit)
	MaxRecvMessageSize uint32 // Maximum receive message size in bytes (0 for no limit)
}

func NewClientTransport(config ClientTransportConfig) *ClientTransport {
	return &ClientTransport{
		Host:               config.Host,
		Port:               config.Port,
		Path:               normalizePath(config.Path),
		TLSConfig:          config.TLSConfig,
		SkipNegotiation:    config.SkipNegotiation,
		MaxSendMessageSize: config.MaxSendMessageSize,
		MaxRecvMessageSize: config.MaxRecvMessageSize,
		httpClient: &http.Client{
			Timeout: handshakeTimeout,
			Transport: &http.Transport{
				TLSClientConfig: config.TLSConfig,
			},
		},
	}
}

func (t *ClientTransport) address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// URL returns the websocket endpoint, without a negotiated connection id.
func (t *ClientTransport) URL() *url.URL {
	scheme := "ws"
	if t.TLSConfig != nil {
		scheme = "wss"
	}
	return &url.URL{Scheme: scheme, Host: t.address(), Path: t.Path}
}

func (t *ClientTransport) Connect(ctx context.Context) (hub.Connection, error) {
	// create dialer
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}
	if t.TLSConfig != nil {
		// Configure the Dialer to use SSL/TLS
		dialer.TLSClientConfig = t.TLSConfig
	}

	u := t.URL()
	if !t.SkipNegotiation {
		resp, err := t.Negotiate(ctx)
		if err != nil {
			return nil, err
		}
		u.RawQuery = url.Values{"id": {resp.ConnectionToken}}.Encode()
	}

	// connect to the hub
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}

	return newConnection(conn, t.MaxSendMessageSize, t.MaxRecvMessageSize), nil
}

// Negotiate asks the hub for a connection token.
func (t *ClientTransport) Negotiate(ctx context.Context) (*NegotiateResponse, error) {
	scheme := "http"
	if t.TLSConfig != nil {
		scheme = "https"
	}
	u := url.URL{
		Scheme:   scheme,
		Host:     t.address(),
		Path:     t.Path + "/negotiate",
		RawQuery: url.Values{"negotiateVersion": {strconv.Itoa(negotiateVersion)}}.Encode(),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("negotiate: %w", err)
	}
	res, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("negotiate: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("negotiate: unexpected status %s", res.Status)
	}

	var resp NegotiateResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("negotiate: malformed response: %w", err)
	}
	switch {
	case resp.Error != "":
		return nil, fmt.Errorf("negotiate: %s", resp.Error)
	case resp.URL != "":
		return nil, fmt.Errorf("negotiate: redirect to %s is not supported", resp.URL)
	case !resp.supportsWebSockets():
		return nil, fmt.Errorf("negotiate: hub does not offer websockets")
	}

	// version 0 hubs only hand out a connection id
	if resp.ConnectionToken == "" {
		resp.ConnectionToken = resp.ConnectionID
	}
	if resp.ConnectionToken == "" {
		return nil, fmt.Errorf("negotiate: response has no connection token")
	}
	return &resp, nil
}

func normalizePath(path string) string {
	if path == "" {
		return DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimSuffix(path, "/")
}
