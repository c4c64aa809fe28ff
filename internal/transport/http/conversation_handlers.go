package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/behex/chat-server/internal/chat"
	"github.com/behex/chat-server/internal/store"
)

// ConversationHandlers provides HTTP handlers for conversation endpoints.
type ConversationHandlers struct {
	chat *chat.Service
	log  *zerolog.Logger
}

// NewConversationHandlers creates a new conversation handlers instance.
func NewConversationHandlers(chatService *chat.Service, logger *zerolog.Logger) *ConversationHandlers {
	return &ConversationHandlers{chat: chatService, log: logger}
}

// CreateConversationRequest represents the create conversation request body.
type CreateConversationRequest struct {
	Type           string  `json:"type" binding:"required,oneof=private group"`
	Name           string  `json:"name"`
	ParticipantIDs []int64 `json:"participant_ids" binding:"required,min=1"`
}

// ConversationResponse represents a conversation in API responses.
type ConversationResponse struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Name      string `json:"name,omitempty"`
	CreatedBy int64  `json:"created_by"`
	CreatedAt string `json:"created_at"`
}

// MessageResponse represents a message in API responses.
type MessageResponse struct {
	ID             int64  `json:"id"`
	ConversationID int64  `json:"conversation_id"`
	SenderID       int64  `json:"sender_id"`
	Content        string `json:"content"`
	MessageType    string `json:"message_type"`
	CreatedAt      string `json:"created_at"`
}

// CreateConversation handles conversation creation.
// POST /api/conversations
func (h *ConversationHandlers) CreateConversation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create conversation request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	conv, err := h.chat.CreateConversation(c.Request.Context(), userID,
		store.ConversationType(req.Type), req.Name, req.ParticipantIDs)
	if err != nil {
		var domainErr *chat.Error
		if errors.As(err, &domainErr) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: domainErr.Message})
			return
		}
		h.log.Error().Err(err).Int64("user_id", userID).Msg("failed to create conversation")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusCreated, toConversationResponse(conv))
}

// ListConversations returns the authenticated user's conversations.
// GET /api/conversations
func (h *ConversationHandlers) ListConversations(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	conversations, err := h.chat.UserConversations(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("failed to list conversations")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	out := make([]ConversationResponse, 0, len(conversations))
	for _, conv := range conversations {
		out = append(out, toConversationResponse(conv))
	}
	c.JSON(http.StatusOK, gin.H{"conversations": out})
}

// ListMessages returns a page of conversation messages, newest first.
// GET /api/conversations/:id/messages?limit=50&before_id=123
func (h *ConversationHandlers) ListMessages(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	conversationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid conversation id"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	var beforeID *int64
	if raw := c.Query("before_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid before_id"})
			return
		}
		beforeID = &id
	}

	messages, err := h.chat.ConversationMessages(c.Request.Context(), userID, conversationID, limit, beforeID)
	if err != nil {
		var domainErr *chat.Error
		if errors.As(err, &domainErr) {
			c.JSON(http.StatusForbidden, ErrorResponse{Error: domainErr.Message})
			return
		}
		h.log.Error().Err(err).Int64("conversation_id", conversationID).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	out := make([]MessageResponse, 0, len(messages))
	for _, msg := range messages {
		out = append(out, MessageResponse{
			ID:             msg.ID,
			ConversationID: msg.ConversationID,
			SenderID:       msg.SenderID,
			Content:        msg.Content,
			MessageType:    string(msg.Type),
			CreatedAt:      msg.CreatedAt.UTC().Format(timeFormat),
		})
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

func toConversationResponse(conv *store.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:        conv.ID,
		Type:      string(conv.Type),
		Name:      conv.Name,
		CreatedBy: conv.CreatedBy,
		CreatedAt: conv.CreatedAt.UTC().Format(timeFormat),
	}
}
