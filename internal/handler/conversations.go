package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/care-messaging/internal/middleware"
	"github.com/capitalize-ai/care-messaging/internal/model"
	"github.com/capitalize-ai/care-messaging/pkg/logger"
)

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	service Messaging
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(svc Messaging) *ConversationHandler {
	return &ConversationHandler{service: svc}
}

// Create handles POST /api/v1/conversations
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.CreateConversationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, err)
		return
	}

	if err := middleware.ValidateParticipants(userID, req.ParticipantID); err != nil {
		writeAppError(w, err)
		return
	}

	id, err := h.service.GetOrCreateConversation(ctx, userID, req.ParticipantID, req.AppointmentID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, &model.CreateConversationResponse{ConversationID: id})
}

// List handles GET /api/v1/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	summaries, err := h.service.GetUserConversations(ctx, userID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if summaries == nil {
		summaries = []model.ConversationSummary{}
	}

	writeJSON(w, http.StatusOK, &model.ListConversationsResponse{
		Conversations: summaries,
		Total:         len(summaries),
	})
}

// MarkRead handles POST /api/v1/conversations/:id/read
func (h *ConversationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeAppError(w, err)
		return
	}

	cursor, err := h.service.MarkMessagesAsRead(ctx, conversationID, userID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, &model.MarkReadResponse{
		ConversationID: conversationID,
		LastReadAt:     *cursor,
	})
}

// ProfileHandler handles the caller's public profile.
type ProfileHandler struct {
	service Messaging
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(svc Messaging) *ProfileHandler {
	return &ProfileHandler{service: svc}
}

// Sync handles PUT /api/v1/profile. The profile is taken from the identity
// claims, not the request body.
func (h *ProfileHandler) Sync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	profile, ok := middleware.GetProfile(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	if err := h.service.SyncProfile(ctx, profile); err != nil {
		writeAppError(w, err)
		return
	}

	logger.FromContext(ctx).Debug("profile synced", zap.String("role", string(profile.Role)))
	writeJSON(w, http.StatusOK, profile)
}
