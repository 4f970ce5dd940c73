// Package hub fans messages out to websocket clients. One goroutine owns
// the client set; registration, removal and broadcast all go through it.
package hub

import "encoding/json"

// MessageType selects the websocket frame type.
type MessageType int

const (
	// JSONMessage is sent as a text frame.
	JSONMessage MessageType = iota
	// BinaryMessage is sent as a binary frame (JPEG camera frames).
	BinaryMessage
)

// String returns "json" or "binary".
func (t MessageType) String() string {
	if t == BinaryMessage {
		return "binary"
	}
	return "json"
}

// Message is one broadcast payload.
type Message struct {
	Type MessageType
	Data []byte
}

// NewJSONMessage wraps pre-encoded JSON.
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewBinaryMessage wraps raw bytes.
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}

// EncodeJSON marshals v into a JSON message.
func EncodeJSON(v interface{}) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return NewJSONMessage(data), nil
}
