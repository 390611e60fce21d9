package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// timeoutErr satisfies net.Error with Timeout()==true, mimicking a
// gorilla read deadline expiry.
type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

type fakeConn struct {
	mu      sync.Mutex
	frames  [][]byte
	idx     int
	written [][]byte
	closed  bool
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.idx < len(f.frames) {
		d := f.frames[f.idx]
		f.idx++
		return websocket.TextMessage, d, nil
	}
	return 0, nil, timeoutErr{}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, data)
	return nil
}

func (f *fakeConn) SetReadDeadline(time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) writtenMessages() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.written))
	copy(out, f.written)
	return out
}

func newEventsFrame(t *testing.T, envelopeID string, ev Event) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]Event{"event": ev})
	require.NoError(t, err)
	frame, err := json.Marshal(InboundFrame{Type: FrameEventsAPI, EnvelopeID: envelopeID, Payload: payload})
	require.NoError(t, err)
	return frame
}

func newTestClient() *Client {
	return NewClient(Config{
		APIBase:      "https://chat.example.com",
		PingInterval: time.Hour,
		ReadTick:     time.Millisecond,
		Reconnect:    ReconnectPolicy{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, MaxAttempts: 3},
	})
}

func TestRunOpenAcksAndDispatchesEvent(t *testing.T) {
	c := newTestClient()
	var got []Event
	c.OnEvent(func(ev Event) { got = append(got, ev) })

	conn := &fakeConn{frames: [][]byte{
		newEventsFrame(t, "env-1", Event{Type: "message", Text: "hi", User: "U1", Channel: "C1", TS: "1.0"}),
		[]byte(`{"type":"disconnect","reason":"refresh_requested"}`),
	}}

	reason, err := c.runOpen(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, "server_disconnect:refresh_requested", reason)

	require.Len(t, got, 1)
	assert.Equal(t, "hi", got[0].Text)

	written := conn.writtenMessages()
	require.Len(t, written, 1)
	var ack map[string]string
	require.NoError(t, json.Unmarshal(written[0], &ack))
	assert.Equal(t, "env-1", ack["envelope_id"])
}

func TestRunOpenSkipsBotEvents(t *testing.T) {
	c := newTestClient()
	called := false
	c.OnEvent(func(ev Event) { called = true })

	conn := &fakeConn{frames: [][]byte{
		newEventsFrame(t, "env-1", Event{Type: "message", Text: "hi", BotID: "B1", Channel: "C1"}),
		[]byte(`{"type":"disconnect","reason":"x"}`),
	}}

	_, err := c.runOpen(context.Background(), conn)
	require.NoError(t, err)
	assert.False(t, called)
}

func TestRunOpenSendsPingWhenIntervalElapsed(t *testing.T) {
	c := newTestClient()
	c.cfg.PingInterval = 0 // always due

	conn := &fakeConn{frames: [][]byte{
		[]byte(`{"type":"disconnect","reason":"x"}`),
	}}

	_, err := c.runOpen(context.Background(), conn)
	require.NoError(t, err)

	written := conn.writtenMessages()
	require.NotEmpty(t, written)
	var ping map[string]any
	require.NoError(t, json.Unmarshal(written[0], &ping))
	assert.Equal(t, "ping", ping["type"])
}

func TestRunOpenReturnsShutdownOnContextCancel(t *testing.T) {
	c := newTestClient()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conn := &fakeConn{}
	reason, err := c.runOpen(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, "shutdown", reason)
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	calls int
	err   error
}

func (d *fakeDialer) Dial(urlStr string, header http.Header) (wsConn, *http.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, nil, d.err
	}
	conn := d.conns[d.calls]
	d.calls++
	return conn, nil, nil
}

func TestRunReachesOpenStateThenShutsDownOnContextCancel(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{jsonResp(`{"ok":true,"url":"wss://example.com/socket"}`)}}
	conn := &fakeConn{}
	dial := &fakeDialer{conns: []*fakeConn{conn}}

	c := newTestClient()
	c.cfg.dial = dial
	c.dial = dial
	c.doer = doer

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return c.State() == StateOpen }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancel")
	}
	assert.Equal(t, StateDisconnected, c.State())
}

func TestRunReturnsReconnectBudgetExhaustedWhenOpenAlwaysFails(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{
		jsonResp(`{"ok":false,"error":"invalid_auth"}`),
		jsonResp(`{"ok":false,"error":"invalid_auth"}`),
		jsonResp(`{"ok":false,"error":"invalid_auth"}`),
	}}
	c := newTestClient()
	c.doer = doer

	err := c.Run(context.Background())
	require.ErrorIs(t, err, ErrReconnectBudgetExhausted)
	assert.Equal(t, int64(c.cfg.Reconnect.MaxAttempts), c.Reconnects())

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.False(t, terr.Recoverable)
}
