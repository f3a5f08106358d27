package model

import (
	"time"
)

// Attachment is an optional file reference carried by a message.
type Attachment struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// Message represents a message in a conversation.
// Messages in a conversation are totally ordered by (CreatedAt, ID).
type Message struct {
	// Identity
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`

	// Content
	Content    string      `json:"content"`
	Attachment *Attachment `json:"attachment,omitempty"`

	// Timestamps
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Before reports whether m sorts before other in conversation order.
func (m *Message) Before(other *Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

// NewMessage is the data needed to persist a message. The store assigns
// ID and CreatedAt.
type NewMessage struct {
	ConversationID string
	SenderID       string
	Content        string
	Attachment     *Attachment
}

// SendMessageRequest is the request to send a new message.
type SendMessageRequest struct {
	Content    string      `json:"content"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// ListMessagesResponse is the response for listing messages.
type ListMessagesResponse struct {
	Messages []Message `json:"messages"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
	HasMore  bool      `json:"has_more"`
}
