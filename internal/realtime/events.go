package realtime

import (
	"encoding/json"
	"fmt"
)

// Event names one kind of real-time frame.
type Event string

const (
	EventChatJoin         Event = "chat:join"
	EventChatLeave        Event = "chat:leave"
	EventMessageNew       Event = "message:new"
	EventMessageUpdated   Event = "message:updated"
	EventMessageDeleted   Event = "message:deleted"
	EventMessageDelivered Event = "message:delivered"
	EventMessageRead      Event = "message:read"
	EventStartTyping      Event = "message:start-typing"
	EventStopTyping       Event = "message:stop-typing"
	EventUserOnline       Event = "user:online"
	EventUserOffline      Event = "user:offline"
)

// Handshake frames. They bracket the session and are not part of the
// event vocabulary.
const (
	EventConnect      Event = "connect"
	EventConnectError Event = "connect_error"
)

// Direction says who may originate an event.
type Direction int

const (
	// Inbound events are sent by clients and handled by the server.
	Inbound Direction = iota + 1
	// Outbound events are only ever sent by the server.
	Outbound
	// Relayed events are sent by a client and forwarded to its peers.
	Relayed
)

func (d Direction) String() string {
	switch d {
	case Inbound:
		return "inbound"
	case Outbound:
		return "outbound"
	case Relayed:
		return "relayed"
	default:
		return "unknown"
	}
}

var directions = map[Event]Direction{
	EventChatJoin:         Inbound,
	EventChatLeave:        Inbound,
	EventMessageNew:       Outbound,
	EventMessageUpdated:   Outbound,
	EventMessageDeleted:   Outbound,
	EventMessageDelivered: Inbound,
	EventMessageRead:      Inbound,
	EventStartTyping:      Relayed,
	EventStopTyping:       Relayed,
	EventUserOnline:       Outbound,
	EventUserOffline:      Outbound,
}

// Events returns the full event vocabulary in declaration order.
func Events() []Event {
	return []Event{
		EventChatJoin,
		EventChatLeave,
		EventMessageNew,
		EventMessageUpdated,
		EventMessageDeleted,
		EventMessageDelivered,
		EventMessageRead,
		EventStartTyping,
		EventStopTyping,
		EventUserOnline,
		EventUserOffline,
	}
}

// Direction reports who originates e. Unknown events report 0.
func (e Event) Direction() Direction {
	return directions[e]
}

// Valid reports whether e is part of the vocabulary.
func (e Event) Valid() bool {
	_, ok := directions[e]
	return ok
}

// ClientOriginated reports whether clients may send e.
func (e Event) ClientOriginated() bool {
	d := e.Direction()
	return d == Inbound || d == Relayed
}

// Envelope is one frame on the wire.
type Envelope struct {
	Event   Event           `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ChatPayload struct {
	ChatID string `json:"chatId"`
}

type MessageRefPayload struct {
	MessageID string `json:"messageId"`
}

type TypingPayload struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

type PresencePayload struct {
	UserID string `json:"userId"`
}

type ConnectPayload struct {
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Encode renders an envelope for event carrying payload.
func Encode(event Event, payload any) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", event, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}
