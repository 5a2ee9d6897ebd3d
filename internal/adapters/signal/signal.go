// Package signal is the websocket client for the room server's JSON
// signaling protocol.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicelink/internal/core"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
	ErrRateLimited  = errors.New("rate limited")
	ErrUnauthorized = errors.New("unauthorized")
)

const (
	sendBuffer   = 64
	inboxBuffer  = 64
	writeTimeout = 5 * time.Second
)

type Options struct {
	// PingPeriod is how often websocket pings are sent. The server is
	// considered gone after PingPeriod*10/9 without any frame.
	PingPeriod time.Duration
	ReadLimit  int64
	// ChatLimit messages per ChatInterval are allowed; zero disables limiting.
	ChatLimit    int
	ChatInterval time.Duration
	Dialer       *websocket.Dialer
}

func (o Options) withDefaults() Options {
	if o.PingPeriod <= 0 {
		o.PingPeriod = 54 * time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 32768
	}
	if o.Dialer == nil {
		o.Dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
	return o
}

// WsSignalConn is the buffered write side of a websocket. Writes are queued
// and flushed by the write pump.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu      sync.RWMutex
	closed  bool
	pumping bool
}

var _ core.SignalConnection = (*WsSignalConn)(nil)

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

// Close stops accepting frames. Frames already queued are flushed by the
// write pump before the socket is closed.
func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	pumping := c.pumping
	c.mu.Unlock()
	if !pumping {
		_ = c.conn.Close()
	}
}

func (c *WsSignalConn) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Client speaks the signaling protocol over one websocket.
type Client struct {
	conn    *WsSignalConn
	opts    Options
	limiter *RateLimiter
	inbox   chan Message
	logger  zerolog.Logger
}

// Dial opens the signaling websocket. The token is sent as a bearer
// credential on the upgrade request.
func Dial(ctx context.Context, url, token string, opts Options) (*Client, error) {
	opts = opts.withDefaults()

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	ws, resp, err := opts.Dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: %s", ErrUnauthorized, resp.Status)
		}
		return nil, fmt.Errorf("dial signaling: %w", err)
	}
	ws.SetReadLimit(opts.ReadLimit)

	c := &Client{
		conn: &WsSignalConn{
			conn: ws,
			send: make(chan core.Frame, sendBuffer),
		},
		opts:   opts,
		inbox:  make(chan Message, inboxBuffer),
		logger: log.With().Str("module", "signal").Str("url", url).Logger(),
	}
	if opts.ChatLimit > 0 {
		c.limiter = NewRateLimiter(opts.ChatLimit, opts.ChatInterval)
	}
	c.logger.Info().Msg("signaling connected")
	return c, nil
}

// Messages delivers inbound server messages. It is closed when the read
// pump stops.
func (c *Client) Messages() <-chan Message { return c.inbox }

// Close queues nothing further and lets the pumps wind down.
func (c *Client) Close() { c.conn.Close() }

func (c *Client) sendJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	return c.conn.TrySend(b)
}
