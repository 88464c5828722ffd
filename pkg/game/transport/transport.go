// Package transport is the websocket link to the game server. Messages in
// both directions are JSON envelopes of the form {"type": ..., "data": ...}.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"worldview/pkg/engine/retry"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Map payloads can be large.
	maxMessageSize = 4 << 20

	eventBuffer = 256
	sendBuffer  = 64
)

var (
	ErrNotConnected = errors.New("transport: not connected")
	ErrQueueFull    = errors.New("transport: send queue full")
	ErrBadURL       = errors.New("transport: server url must be ws, wss, http or https")
)

// Envelope is one message on the wire.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s: empty payload", e.Type)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%s: %w", e.Type, err)
	}
	return nil
}

// Status is reported on the status channel whenever the link changes state.
type Status struct {
	Connected bool
	Attempt   int
	Err       error
}

// Client keeps one websocket connection open, reconnecting after failures
// with the delays of its retry policy.
type Client struct {
	url    string
	dialer *websocket.Dialer
	policy retry.Policy
	log    logrus.FieldLogger

	events    chan Envelope
	outbound  chan Envelope
	status    chan Status
	connected atomic.Bool
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithPolicy sets the reconnect delay curve. MaxAttempts is ignored: the
// client reconnects until its context ends.
func WithPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// New creates a client for serverURL. http(s) URLs are rewritten to ws(s).
func New(serverURL string, opts ...Option) (*Client, error) {
	u, err := normalizeURL(serverURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		url:      u,
		dialer:   websocket.DefaultDialer,
		policy:   retry.DefaultPolicy(),
		log:      logrus.StandardLogger(),
		events:   make(chan Envelope, eventBuffer),
		outbound: make(chan Envelope, sendBuffer),
		status:   make(chan Status, 8),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func normalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadURL, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("%w: %q", ErrBadURL, raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrBadURL, raw)
	}
	return u.String(), nil
}

// URL returns the websocket URL dialled.
func (c *Client) URL() string { return c.url }

// Events delivers inbound envelopes in arrival order.
func (c *Client) Events() <-chan Envelope { return c.events }

// Status delivers connection state changes. Old states are dropped if
// nobody reads them.
func (c *Client) Status() <-chan Status { return c.status }

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool { return c.connected.Load() }

// Send queues a message. It never blocks.
func (c *Client) Send(typ string, data any) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	env := Envelope{Type: typ}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode %s: %w", typ, err)
		}
		env.Data = raw
	}
	select {
	case c.outbound <- env:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run dials the server and serves connections until ctx ends. It always
// returns ctx.Err().
func (c *Client) Run(ctx context.Context) error {
	attempt := 0
	for {
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			delay := c.policy.Delay(attempt)
			c.log.WithFields(logrus.Fields{
				"url":     c.url,
				"attempt": attempt + 1,
				"retry":   delay,
			}).WithError(err).Warn("Dial failed")
			c.report(Status{Attempt: attempt + 1, Err: err})
			attempt++
			if !sleep(ctx, delay) {
				return ctx.Err()
			}
			continue
		}

		attempt = 0
		c.log.WithField("url", c.url).Info("Connected to server")
		c.connected.Store(true)
		c.report(Status{Connected: true})

		err = c.serve(ctx, conn)

		c.connected.Store(false)
		c.drainOutbound()
		if ctx.Err() != nil {
			c.log.Info("Connection closed")
			return ctx.Err()
		}
		c.log.WithError(err).Warn("Connection lost")
		c.report(Status{Err: err})
		if !sleep(ctx, c.policy.Delay(0)) {
			return ctx.Err()
		}
	}
}

func (c *Client) report(s Status) {
	select {
	case c.status <- s:
	default:
	}
}

// drainOutbound drops messages queued for a connection that went away.
func (c *Client) drainOutbound() {
	for {
		select {
		case <-c.outbound:
		default:
			return
		}
	}
}

func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readPump(gctx, conn) })
	g.Go(func() error { return c.writePump(gctx, conn) })
	return g.Wait()
}

// readPump decodes server messages into the events channel.
func (c *Client) readPump(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.WithError(err).Warn("failed to set read deadline")
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithError(err).Warn("Unexpected close")
			}
			return err
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			c.log.WithField("bytes", len(data)).Warn("Ignoring malformed message")
			continue
		}
		select {
		case c.events <- env:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// writePump sends queued messages and keeps the connection alive with pings.
// It closes the connection when it returns, which also ends readPump.
func (c *Client) writePump(ctx context.Context, conn *websocket.Conn) error {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := conn.Close(); err != nil {
			c.log.WithError(err).Debug("failed to close websocket connection")
		}
	}()

	for {
		select {
		case env := <-c.outbound:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.WithError(err).Warn("failed to set write deadline")
			}
			if err := conn.WriteJSON(env); err != nil {
				c.log.WithError(err).WithField("type", env.Type).Debug("write failed")
				return err
			}

		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.WithError(err).Warn("failed to set ping write deadline")
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.WithError(err).Debug("ping failed")
				return err
			}

		case <-ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
				c.log.WithError(err).Debug("write close message failed")
			}
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
