// Package model defines data structures for the messaging core.
package model

import (
	"time"
)

// Role is the role an identity holds in the application.
type Role string

const (
	RolePatient Role = "patient"
	RoleMentor  Role = "mentor"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RolePatient || r == RoleMentor
}

// Conversation is a 1:1 messaging thread between two users.
type Conversation struct {
	ID            string     `json:"id"`
	AppointmentID *string    `json:"appointment_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}

// Participant is a user's membership in a conversation.
// LastReadAt is the read cursor: incoming messages created at or before it are read.
type Participant struct {
	ConversationID string     `json:"conversation_id"`
	UserID         string     `json:"user_id"`
	JoinedAt       time.Time  `json:"joined_at"`
	LastReadAt     *time.Time `json:"last_read_at,omitempty"`
}

// Profile holds the public fields of a user as supplied by the identity provider.
type Profile struct {
	UserID      string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Email       string  `json:"email"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
	Role        Role    `json:"role,omitempty"`
}

// MessagePreview is the last-message portion of a conversation summary.
type MessagePreview struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationSummary is one row of a user's inbox.
type ConversationSummary struct {
	ConversationID   string          `json:"conversation_id"`
	AppointmentID    *string         `json:"appointment_id,omitempty"`
	LastMessageAt    *time.Time      `json:"last_message_at,omitempty"`
	LastMessage      *MessagePreview `json:"last_message,omitempty"`
	HasUnread        bool            `json:"has_unread"`
	UnreadCount      int             `json:"unread_count"`
	OtherParticipant Profile         `json:"other_participant"`
}

// CreateConversationRequest is the request to open a conversation with another user.
type CreateConversationRequest struct {
	ParticipantID string  `json:"participant_id"`
	AppointmentID *string `json:"appointment_id,omitempty"`
}

// CreateConversationResponse is the response to CreateConversationRequest.
type CreateConversationResponse struct {
	ConversationID string `json:"conversation_id"`
}

// ListConversationsResponse is the response for listing a user's conversations.
type ListConversationsResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
	Total         int                   `json:"total"`
}

// MarkReadResponse is the response after advancing a read cursor.
type MarkReadResponse struct {
	ConversationID string    `json:"conversation_id"`
	LastReadAt     time.Time `json:"last_read_at"`
}
