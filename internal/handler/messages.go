package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/care-messaging/internal/middleware"
	"github.com/capitalize-ai/care-messaging/internal/model"
)

// MessageHandler handles message endpoints.
type MessageHandler struct {
	service Messaging
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(svc Messaging) *MessageHandler {
	return &MessageHandler{service: svc}
}

// List handles GET /api/v1/conversations/:id/messages
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeAppError(w, err)
		return
	}

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeAppError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeAppError(w, err)
		return
	}
	limit = h.service.ClampLimit(limit)

	if err := h.service.Authorize(ctx, conversationID, userID); err != nil {
		writeAppError(w, err)
		return
	}

	messages, err := h.service.GetConversationMessages(ctx, conversationID, limit, offset)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if messages == nil {
		messages = []model.Message{}
	}

	writeJSON(w, http.StatusOK, &model.ListMessagesResponse{
		Messages: messages,
		Limit:    limit,
		Offset:   offset,
		HasMore:  len(messages) == limit,
	})
}

// Send handles POST /api/v1/conversations/:id/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeAppError(w, err)
		return
	}

	var req model.SendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, err)
		return
	}

	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeAppError(w, err)
		return
	}
	if req.Attachment != nil {
		if err := middleware.ValidateAttachment(req.Attachment.URL, req.Attachment.Type); err != nil {
			writeAppError(w, err)
			return
		}
	}

	msg, err := h.service.SendMessage(ctx, conversationID, userID, &req)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

// Delete handles DELETE /api/v1/conversations/:id/messages/:messageID
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	conversationID := chi.URLParam(r, "id")
	messageID := chi.URLParam(r, "messageID")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeAppError(w, err)
		return
	}
	if err := middleware.ValidateMessageID(messageID); err != nil {
		writeAppError(w, err)
		return
	}

	if err := h.service.DeleteMessage(ctx, conversationID, messageID, userID); err != nil {
		writeAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
