package model

import (
	"encoding/json"
	"errors"
)

// Message types accepted from clients.
const (
	TypeJoin = "join"
	TypeChat = "chat"
)

// TypeSystem is sent by the server only. An inbound message carrying
// this tag is treated like any other unknown type.
const TypeSystem = "system"

var (
	ErrMalformed   = errors.New("malformed message")
	ErrUnknownType = errors.New("unknown message type")
)

type Message struct {
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
	Content  string `json:"content,omitempty"`
	RoomID   string `json:"roomId,omitempty"`
}

// Decode parses a raw payload into one of the known inbound message
// variants. Payloads that do not parse at all yield ErrMalformed;
// well-formed payloads with an unrecognized (or inbound-forbidden)
// type tag yield ErrUnknownType. Nothing else crosses the boundary.
func Decode(raw []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, errors.Join(ErrMalformed, err)
	}
	switch msg.Type {
	case TypeJoin, TypeChat:
		return msg, nil
	}
	return Message{}, ErrUnknownType
}

func NewSystemMessage(content, roomID string) Message {
	return Message{
		Type:    TypeSystem,
		Content: content,
		RoomID:  roomID,
	}
}

func NewChatMessage(username, content, roomID string) Message {
	return Message{
		Type:     TypeChat,
		Username: username,
		Content:  content,
		RoomID:   roomID,
	}
}

// Wire is a per-connection outbound channel. The websocket transport
// owns the draining side; the core delivers with timed sends.
type Wire struct {
	TX chan Message
}

func NewWire(buffer int) Wire {
	return Wire{
		TX: make(chan Message, buffer),
	}
}
