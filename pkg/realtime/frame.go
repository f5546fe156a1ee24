package realtime

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/0xfullStack/Cryptoless/pkg/apierror"
)

const receivePrefix = "receive "

// Action is the intent expressed by a control frame.
type Action string

const (
	ActionSubscribe   Action = "subscribe"
	ActionUnsubscribe Action = "unsubscribe"
)

// Event identifies a category of realtime messages.
type Event struct {
	Scope   string
	Payload map[string]string
}

// NewEvent returns the Event for the given scope with an empty payload.
func NewEvent(scope string) Event {
	return Event{Scope: scope, Payload: map[string]string{}}
}

// KeyPath is the key inbound frames of the event are delivered with.
func (e Event) KeyPath() string {
	return receivePrefix + e.Scope
}

// ControlFrame is the body of a subscribe/unsubscribe message.
type ControlFrame struct {
	ID      string            `json:"id"`
	Scope   []string          `json:"scope"`
	Payload map[string]string `json:"payload"`
}

// Frame is an inbound message.
type Frame struct {
	// ID is the opaque correlation id of the message, if any.
	ID string
	// Key is the event key the message was delivered with.
	Key string
	// Scope is Key without the "receive " prefix.
	Scope   string
	Payload json.RawMessage
}

// Decode unwraps the "data" entry of the payload into v. A payload without
// data decodes as an empty list.
func (f Frame) Decode(v interface{}) error {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if len(bytes.TrimSpace(f.Payload)) > 0 {
		if err := json.Unmarshal(f.Payload, &wrapper); err != nil {
			return apierror.Decode(err)
		}
	}
	data := wrapper.Data
	if len(data) <= 0 || string(data) == "null" {
		data = json.RawMessage("[]")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apierror.Decode(err)
	}
	return nil
}

// message is the envelope of every frame on the wire, both directions.
type message struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func newControlMessage(action Action, event Event) ([]byte, error) {
	payload := event.Payload
	if payload == nil {
		payload = map[string]string{}
	}
	data, err := json.Marshal(ControlFrame{
		ID:      uuid.New().String(),
		Scope:   []string{event.Scope},
		Payload: payload,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(message{Event: string(action), Data: data})
}

func parseFrame(buf []byte) (Frame, bool) {
	var msg message
	if err := json.Unmarshal(buf, &msg); err != nil {
		return Frame{}, false
	}
	if !strings.HasPrefix(msg.Event, receivePrefix) {
		return Frame{}, false
	}
	return Frame{
		ID:      msg.ID,
		Key:     msg.Event,
		Scope:   strings.TrimPrefix(msg.Event, receivePrefix),
		Payload: msg.Data,
	}, true
}
