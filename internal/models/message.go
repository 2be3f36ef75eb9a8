package models

import (
	"encoding/json"
	"time"
)

// Message is a direct message between two users.
type Message struct {
	ID         string    `db:"id" json:"_id"`
	SenderID   string    `db:"sender_id" json:"senderId"`
	ReceiverID string    `db:"receiver_id" json:"receiverId"`
	Text       string    `db:"text" json:"text,omitempty"`
	Image      string    `db:"image" json:"image,omitempty"`
	File       string    `db:"file" json:"file,omitempty"`
	FileType   string    `db:"file_type" json:"fileType,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// Between reports whether the message belongs to the conversation of a and b,
// in either direction.
func (m Message) Between(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

// HasContent reports whether at least one of text, image or file is set.
func (m Message) HasContent() bool {
	return m.Text != "" || m.Image != "" || m.File != ""
}

// SendRequest is the payload of a send call.
type SendRequest struct {
	Text     string `json:"text,omitempty"`
	Image    string `json:"image,omitempty"`
	File     string `json:"file,omitempty"`
	FileType string `json:"fileType,omitempty"`
}

// Empty reports whether the request carries nothing to send.
func (r SendRequest) Empty() bool {
	return r.Text == "" && r.Image == "" && r.File == ""
}

// Event names carried on the push channel.
const (
	EventNewMessage  = "newMessage"
	EventOnlineUsers = "getOnlineUsers"
)

// Envelope is a single frame on the push channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}
