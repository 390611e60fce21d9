package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// State is a connection lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateFetchingURL  State = "fetching_url"
	StateConnecting   State = "connecting"
	StateOpen         State = "open"
	StateClosing      State = "closing"
)

// Handler processes one decoded inbound event.
type Handler func(Event)

// wsConn is the subset of *websocket.Conn the client needs; it exists so
// tests can substitute a fake connection.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	Close() error
}

// dialer opens a wsConn for a URL; the gorilla dialer is adapted to it in
// defaultDialer.
type dialer interface {
	Dial(urlStr string, header http.Header) (wsConn, *http.Response, error)
}

type defaultDialer struct{}

func (defaultDialer) Dial(urlStr string, header http.Header) (wsConn, *http.Response, error) {
	conn, resp, err := websocket.DefaultDialer.Dial(urlStr, header)
	if err != nil {
		return nil, resp, err
	}
	return conn, resp, nil
}

// Config wires a Client's endpoints, credentials, and timing knobs.
type Config struct {
	APIBase        string
	AppToken       string
	BotToken       string
	RequestTimeout time.Duration
	PingInterval   time.Duration
	ReadTick       time.Duration
	Reconnect      ReconnectPolicy

	Doer   HTTPDoer
	dial   dialer // overridden in tests; nil means defaultDialer
}

// Client is the outbound Socket-Mode client: it owns exactly one socket at
// a time, cycling through disconnected -> fetching_url -> connecting ->
// open -> closing -> disconnected until the context is cancelled or the
// reconnect budget is exhausted.
type Client struct {
	cfg     Config
	doer    HTTPDoer
	dial    dialer
	handler Handler
	log     *slog.Logger

	mu    sync.RWMutex
	state State

	pingSeq    int64
	reconnects int64
}

// ErrReconnectBudgetExhausted is returned by Run when the configured
// maximum number of consecutive reconnect attempts is reached.
var ErrReconnectBudgetExhausted = errors.New("transport: reconnect budget exhausted")

// TransportError classifies a connection failure as recoverable (Run will
// keep retrying within its reconnect budget) or terminal.
type TransportError struct {
	Recoverable bool
	Err         error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewClient builds a Client from cfg. OnEvent must be called before Run to
// receive decoded events; a nil handler is legal and simply discards them.
func NewClient(cfg Config) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.ReadTick <= 0 {
		cfg.ReadTick = 1 * time.Second
	}
	if cfg.Reconnect.MaxAttempts <= 0 {
		cfg.Reconnect = DefaultReconnectPolicy()
	}
	doer := cfg.Doer
	if doer == nil {
		doer = http.DefaultClient
	}
	d := cfg.dial
	if d == nil {
		d = defaultDialer{}
	}
	return &Client{
		cfg:   cfg,
		doer:  doer,
		dial:  d,
		state: StateDisconnected,
		log:   slog.Default().With("component", "transport"),
	}
}

// OnEvent registers the callback invoked for every non-bot, non-subtyped
// inbound event.
func (c *Client) OnEvent(h Handler) {
	c.handler = h
}

// State returns the client's current lifecycle state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Reconnects returns the number of failed connection attempts and closed
// sessions so far, including a failure of the initial connection; each one
// counts whether or not the reconnect budget allows another attempt.
func (c *Client) Reconnects() int64 {
	return atomic.LoadInt64(&c.reconnects)
}

// Run drives the connection lifecycle until ctx is cancelled, the
// reconnect budget is exhausted, or an unrecoverable error occurs.
func (c *Client) Run(ctx context.Context) error {
	attempts := 0
	for {
		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return nil
		}

		if attempts > 0 {
			if attempts >= c.cfg.Reconnect.MaxAttempts {
				c.setState(StateDisconnected)
				return &TransportError{Recoverable: false, Err: ErrReconnectBudgetExhausted}
			}
			d := c.cfg.Reconnect.delay(attempts)
			c.log.Warn("reconnecting after delay", "attempt", attempts, "delay", d)
			select {
			case <-ctx.Done():
				c.setState(StateDisconnected)
				return nil
			case <-time.After(d):
			}
		}

		c.setState(StateFetchingURL)
		url, err := c.openConnection(ctx)
		if err != nil {
			c.log.Error("failed to open connection", "error", err)
			attempts++
			atomic.AddInt64(&c.reconnects, 1)
			continue
		}

		c.setState(StateConnecting)
		conn, _, err := c.dial.Dial(url, nil)
		if err != nil {
			c.log.Error("failed to dial socket", "error", err)
			attempts++
			atomic.AddInt64(&c.reconnects, 1)
			continue
		}

		attempts = 0
		c.setState(StateOpen)
		reason, err := c.runOpen(ctx, conn)
		conn.Close()
		c.setState(StateClosing)

		if err != nil {
			c.log.Error("connection closed with error", "reason", reason, "error", err)
			attempts++
			atomic.AddInt64(&c.reconnects, 1)
			continue
		}
		if reason == "shutdown" {
			c.setState(StateDisconnected)
			return nil
		}
		c.log.Info("connection closed, reconnecting", "reason", reason)
		attempts++
		atomic.AddInt64(&c.reconnects, 1)
	}
}

// runOpen owns conn for the duration of one session: it reads frames,
// acknowledges envelopes, dispatches events, and emits pings, returning
// when the context is cancelled, the server asks the client to disconnect,
// or a read fails.
func (c *Client) runOpen(ctx context.Context, conn wsConn) (reason string, err error) {
	lastPing := time.Now()

	for {
		if ctx.Err() != nil {
			return "shutdown", nil
		}

		if time.Since(lastPing) >= c.cfg.PingInterval {
			id := atomic.AddInt64(&c.pingSeq, 1)
			payload, encErr := encodePing(id)
			if encErr == nil {
				if werr := conn.WriteMessage(websocket.TextMessage, payload); werr != nil {
					c.log.Warn("failed to send ping", "error", werr)
				}
			}
			lastPing = time.Now()
		}

		if err := conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTick)); err != nil {
			return "read_deadline_error", err
		}

		_, data, readErr := conn.ReadMessage()
		if readErr != nil {
			var netErr net.Error
			if errors.As(readErr, &netErr) && netErr.Timeout() {
				continue
			}
			if websocket.IsUnexpectedCloseError(readErr,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return "unexpected_close", readErr
			}
			return "closed", nil
		}

		var frame InboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.log.Warn("failed to decode frame", "error", err)
			continue
		}

		switch frame.Type {
		case FrameEventsAPI:
			c.handleEnvelope(conn, frame)
		case FrameDisconnect:
			return "server_disconnect:" + frame.Reason, nil
		case FrameHello, FramePong:
			// no action required
		default:
			c.log.Debug("ignoring unrecognised frame", "type", frame.Type)
		}
	}
}

// handleEnvelope acknowledges an events_api envelope and, if decoding and
// filtering allow it, dispatches the event to the registered handler. ACKs
// are best-effort: a failure to send one is logged and the session
// continues rather than being torn down.
func (c *Client) handleEnvelope(conn wsConn, frame InboundFrame) {
	if frame.EnvelopeID != "" {
		ack, err := encodeAck(frame.EnvelopeID)
		if err != nil {
			c.log.Warn("failed to encode ack", "envelope_id", frame.EnvelopeID, "error", err)
		} else if err := conn.WriteMessage(websocket.TextMessage, ack); err != nil {
			c.log.Warn("failed to send ack", "envelope_id", frame.EnvelopeID, "error", err)
		}
	}

	event, err := decodeEvent(frame.Payload)
	if err != nil {
		c.log.Warn("failed to decode event payload", "error", err)
		return
	}
	if event.IsBotOrSubtyped() {
		return
	}
	if c.handler != nil {
		c.handler(event)
	}
}
