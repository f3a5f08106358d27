package middleware

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/capitalize-ai/care-messaging/pkg/apperror"
)

// MaxContentLength bounds a message body in bytes.
const MaxContentLength = 10000

// ValidateMessageContent rejects content that is empty after trimming,
// too long, or not UTF-8. Callers check this before SendMessage.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return apperror.New(apperror.KindInvalidInput, "content cannot be empty")
	}
	if len(content) > MaxContentLength {
		return apperror.New(apperror.KindInvalidInput, "content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return apperror.New(apperror.KindInvalidInput, "content must be valid UTF-8")
	}
	return nil
}

// ValidateParticipants rejects a conversation request that does not name
// two distinct users.
func ValidateParticipants(userID, otherID string) error {
	if strings.TrimSpace(otherID) == "" {
		return apperror.New(apperror.KindInvalidParticipants, "participant id is required")
	}
	if userID == otherID {
		return apperror.New(apperror.KindInvalidParticipants, "cannot start a conversation with yourself")
	}
	return nil
}

// ValidateConversationID validates a conversation ID.
func ValidateConversationID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperror.New(apperror.KindInvalidInput, "invalid conversation ID format")
	}
	return nil
}

// ValidateMessageID validates a message ID.
func ValidateMessageID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperror.New(apperror.KindInvalidInput, "invalid message ID format")
	}
	return nil
}

// ValidateAttachment checks an optional attachment reference.
func ValidateAttachment(url, kind string) error {
	if url == "" {
		return apperror.New(apperror.KindInvalidInput, "attachment url is required")
	}
	if !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "http://") {
		return apperror.New(apperror.KindInvalidInput, "attachment url must be http(s)")
	}
	if len(kind) > 128 {
		return apperror.New(apperror.KindInvalidInput, "attachment type exceeds maximum length")
	}
	return nil
}
