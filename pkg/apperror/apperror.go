// Package apperror defines the typed error taxonomy shared by the store
// adapters, the messaging service, and the HTTP layer.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind string

const (
	KindInvalidInput             Kind = "INVALID_INPUT"
	KindInvalidParticipants      Kind = "INVALID_PARTICIPANTS"
	KindUnauthorized             Kind = "UNAUTHORIZED"
	KindNotFound                 Kind = "NOT_FOUND"
	KindConversationCreateFailed Kind = "CONVERSATION_CREATE_FAILED"
	KindMessageSendFailed        Kind = "MESSAGE_SEND_FAILED"
	KindMessagingNotConfigured   Kind = "MESSAGING_NOT_CONFIGURED"
	KindStorageUnavailable       Kind = "STORAGE_UNAVAILABLE"
	KindInternal                 Kind = "INTERNAL_ERROR"

	// KindSchemaMissing is only produced by store adapters. The service turns
	// it into a repair attempt and never returns it to callers.
	KindSchemaMissing Kind = "SCHEMA_MISSING"
)

// Error is an error carrying a Kind.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind around cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf returns the Kind of the outermost *Error in err's chain, or
// KindInternal if there is none. A nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
