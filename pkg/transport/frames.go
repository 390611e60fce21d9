// Package transport implements the outbound Socket-Mode client: it opens a
// WebSocket session against the chat service, acknowledges inbound
// envelopes, keeps the connection alive with pings, reconnects with
// backoff on failure, and sends replies over the chat service's REST
// endpoint.
package transport

import "encoding/json"

// InboundFrame is the shape of every frame received on the socket; Type
// selects how Payload and the other fields are interpreted.
type InboundFrame struct {
	Type       string          `json:"type"`
	EnvelopeID string          `json:"envelope_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Reason     string          `json:"reason,omitempty"`
}

// Recognised inbound frame types.
const (
	FrameHello     = "hello"
	FrameEventsAPI = "events_api"
	FrameDisconnect = "disconnect"
	FramePong      = "pong"
)

// eventPayload is an events_api frame's payload shape.
type eventPayload struct {
	Event Event `json:"event"`
}

// Event is the minimum inbound chat event shape the orchestrator needs.
type Event struct {
	Type     string `json:"type"` // "message" | "app_mention"
	Text     string `json:"text"`
	User     string `json:"user"`
	Channel  string `json:"channel"`
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts,omitempty"`
	BotID    string `json:"bot_id,omitempty"`
	Subtype  string `json:"subtype,omitempty"`
}

// IsBotOrSubtyped reports whether the orchestrator must ignore this event:
// it carries a bot_id, or it carries any subtype.
func (e Event) IsBotOrSubtyped() bool {
	return e.BotID != "" || e.Subtype != ""
}

// ackFrame is the outbound acknowledgement for an events_api envelope: a
// JSON object containing only its envelope_id.
type ackFrame struct {
	EnvelopeID string `json:"envelope_id"`
}

// pingFrame is the outbound keepalive frame.
type pingFrame struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// decodeEvent extracts the Event from an events_api frame's payload.
func decodeEvent(payload json.RawMessage) (Event, error) {
	var p eventPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return Event{}, err
	}
	return p.Event, nil
}

func encodeAck(envelopeID string) ([]byte, error) {
	return json.Marshal(ackFrame{EnvelopeID: envelopeID})
}

func encodePing(id int64) ([]byte, error) {
	return json.Marshal(pingFrame{ID: id, Type: "ping"})
}
