package relay

import (
	"encoding/json"
	"time"
)

// ServerSenderID is the reserved sender id carried by system messages.
const ServerSenderID = "server"

// Kind discriminates the frames exchanged with clients.
type Kind string

const (
	// KindHello is the first client frame announcing a display name.
	KindHello Kind = "hello"
	// KindChat carries a chat body in both directions.
	KindChat Kind = "chat"
	// KindRename asks the server to change the sender's display name.
	KindRename Kind = "rename"
	// KindSystem is a server broadcast (joins, leaves, renames).
	KindSystem Kind = "system"
	// KindNotice is a private server-to-client message.
	KindNotice Kind = "notice"
	// KindUsers carries the current display-name list to every client.
	KindUsers Kind = "users"
)

// Frame is the JSON envelope for a single transport frame.
type Frame struct {
	Type     Kind     `json:"type"`
	Name     string   `json:"name,omitempty"`
	Body     string   `json:"body,omitempty"`
	SenderID string   `json:"senderId,omitempty"`
	Sender   string   `json:"sender,omitempty"`
	Sent     int64    `json:"sent,omitempty"`
	Users    []string `json:"users,omitempty"`
	Clear    bool     `json:"clear,omitempty"`
}

// Message is a validated chat or system message accepted by the relay engine.
// SenderName is snapshotted at acceptance time so it survives the sender
// disconnecting before delivery.
type Message struct {
	Kind       Kind
	SenderID   string
	SenderName string
	Body       string
	Timestamp  time.Time
}

func (m Message) frame() Frame {
	return Frame{
		Type:     m.Kind,
		SenderID: m.SenderID,
		Sender:   m.SenderName,
		Body:     m.Body,
		Sent:     m.Timestamp.UnixMilli(),
	}
}

func encodeFrame(f Frame) []byte {
	// Frame contains only marshal-safe fields; an error here is impossible.
	raw, _ := json.Marshal(f)
	return raw
}

func decodeFrame(raw []byte) (Frame, error) {
	var f Frame
	err := json.Unmarshal(raw, &f)
	return f, err
}
