// Package polymarket contains the venue-facing clients: the CLOB market-data
// WebSocket stream and the Gamma discovery REST API.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// handshakeTimeout bounds the WebSocket dial.
	handshakeTimeout = 15 * time.Second

	// defaultPingInterval keeps the connection under the venue's ~30s idle
	// timeout, independent of inbound traffic.
	defaultPingInterval = 25 * time.Second

	// initialReconnectDelay is the backoff before the first reconnect attempt.
	initialReconnectDelay = 1 * time.Second

	// maxReconnectDelay caps the exponential reconnect backoff.
	maxReconnectDelay = 30 * time.Second
)

// State is the connection lifecycle state of a Client.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
	StateStreaming
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateStreaming:
		return "streaming"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// BookHandler receives every decoded book update in arrival order.
type BookHandler func(domain.BookUpdate)

// ClientConfig configures a single stream connection.
type ClientConfig struct {
	// URL is the market channel endpoint, e.g.
	// "wss://ws-subscriptions-clob.polymarket.com/ws/market".
	URL string

	// AssetIDs is the fixed instrument set subscribed on every (re)connect.
	// The per-connection cap is the caller's responsibility.
	AssetIDs []string

	PingInterval time.Duration
	OnBook       BookHandler
	Logger       *slog.Logger
}

// Client maintains one durable subscription to the market channel. It decodes
// inbound frames, forwards book updates to the handler, keeps the connection
// alive with periodic pings, and reconnects with exponential backoff until
// stopped. Updates from one Client are delivered in arrival order.
type Client struct {
	cfg    ClientConfig
	logger *slog.Logger

	state atomic.Int32

	readyOnce sync.Once
	ready     chan struct{}
}

// NewClient creates a stream client for the given configuration.
func NewClient(cfg ClientConfig) *Client {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "poly_ws")),
		ready:  make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State { return State(c.state.Load()) }

// Ready is closed the first time the client reaches Streaming.
func (c *Client) Ready() <-chan struct{} { return c.ready }

// Run connects, subscribes, and streams until ctx is cancelled. Connection
// errors are never returned: the client backs off and reconnects forever, so
// persistent failure is observable only as absence of updates. The backoff
// starts at 1s, doubles to a 30s ceiling, and resets on every successful
// subscribe.
func (c *Client) Run(ctx context.Context) error {
	delay := initialReconnectDelay
	for {
		c.setState(StateConnecting)
		err := c.runOnce(ctx, &delay)
		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return ctx.Err()
		}
		c.logger.Warn("connection lost, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("backoff", delay),
		)
		c.setState(StateDisconnected)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = nextBackoff(delay)
	}
}

// nextBackoff doubles the delay up to maxReconnectDelay.
func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxReconnectDelay {
		d = maxReconnectDelay
	}
	return d
}

// runOnce performs one connect/subscribe/stream cycle and returns the error
// that ended it. On a successful subscribe it resets *delay so the next
// disconnect starts the backoff from scratch.
func (c *Client) runOnce(ctx context.Context, delay *time.Duration) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("polymarket/ws: connect: %w", err)
	}
	defer conn.Close()

	c.setState(StateSubscribed)
	cmd := WSCommand{Type: "MARKET", AssetIDs: c.cfg.AssetIDs}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("polymarket/ws: subscribe: %w", err)
	}

	*delay = initialReconnectDelay
	c.setState(StateStreaming)
	c.readyOnce.Do(func() { close(c.ready) })
	c.logger.Info("subscribed", slog.Int("assets", len(c.cfg.AssetIDs)))

	// The keepalive and the ctx watchdog run alongside the read loop;
	// closing done tears both down, and the watchdog unblocks ReadMessage by
	// closing the socket.
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.keepalive(ctx, done, conn)
	}()
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
		case <-done:
		}
		c.setState(StateClosing)
		conn.Close()
	}()

	readErr := c.readLoop(conn)
	close(done)
	wg.Wait()
	return readErr
}

// keepalive sends a ping every PingInterval regardless of inbound traffic.
func (c *Client) keepalive(ctx context.Context, done <-chan struct{}, conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("ping failed", slog.String("error", err.Error()))
				return
			}
		}
	}
}

// readLoop reads frames until the connection fails and dispatches each one.
func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("polymarket/ws: read: %w: %w", domain.ErrWSDisconnect, err)
		}
		c.handleFrame(raw)
	}
}

// handleFrame decodes one inbound frame, which may hold a single message or
// a batch, and routes each message by its event_type tag. Only book updates
// reach the handler.
func (c *Client) handleFrame(raw []byte) {
	// Bare PING/PONG text frames are a transport-level keepalive exchange,
	// not typed messages.
	if text := strings.TrimSpace(string(raw)); text == "PONG" || text == "PING" {
		return
	}

	msgs, err := splitFrame(raw)
	if err != nil {
		c.logger.Warn("dropping undecodable frame",
			slog.String("error", err.Error()),
			slog.Int("frame_len", len(raw)),
		)
		return
	}

	for _, msg := range msgs {
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg json.RawMessage) {
	var env wsEnvelope
	if err := json.Unmarshal(msg, &env); err != nil {
		c.logger.Warn("dropping undecodable message", slog.String("error", err.Error()))
		return
	}

	switch env.EventType {
	case "book":
		var book BookMessage
		if err := json.Unmarshal(msg, &book); err != nil {
			c.logger.Warn("dropping malformed book message", slog.String("error", err.Error()))
			return
		}
		if c.cfg.OnBook == nil {
			return
		}
		c.cfg.OnBook(domain.BookUpdate{
			AssetID:    book.AssetID,
			Bids:       book.Bids,
			Asks:       book.Asks,
			ReceivedAt: time.Now().UTC(),
			Raw:        append([]byte(nil), msg...),
		})

	case "price_change", "tick_size_change", "last_trade_price":
		// Known but unused on this channel.

	default:
		c.logger.Debug("dropping unhandled message type", slog.String("event_type", env.EventType))
	}
}

func (c *Client) setState(s State) { c.state.Store(int32(s)) }
