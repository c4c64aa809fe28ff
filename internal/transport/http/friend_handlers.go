package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/behex/chat-server/internal/store"
)

// FriendHandlers provides HTTP handlers for friendship endpoints.
type FriendHandlers struct {
	store store.FriendStore
	users store.UserStore
	log   *zerolog.Logger
}

// NewFriendHandlers creates a new friend handlers instance.
func NewFriendHandlers(st store.Store, logger *zerolog.Logger) *FriendHandlers {
	return &FriendHandlers{store: st, users: st, log: logger}
}

// FriendResponse represents a friendship in API responses.
type FriendResponse struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	FriendID  int64  `json:"friend_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// SendRequest creates a pending friend request to the user in the path.
// POST /api/friends/:id/request
func (h *FriendHandlers) SendRequest(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	friendID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || friendID == userID {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid friend id"})
		return
	}

	if _, err := h.users.GetUserByID(c.Request.Context(), friendID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
			return
		}
		h.log.Error().Err(err).Msg("failed to look up user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	existing, err := h.store.GetFriendship(c.Request.Context(), userID, friendID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.log.Error().Err(err).Msg("failed to look up friendship")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "friendship already exists"})
		return
	}

	friend, err := h.store.CreateFriendRequest(c.Request.Context(), userID, friendID)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to create friend request")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusCreated, toFriendResponse(friend))
}

// Accept marks a pending friend request from the user in the path as accepted.
// POST /api/friends/:id/accept
func (h *FriendHandlers) Accept(c *gin.Context) {
	h.resolveRequest(c, store.FriendStatusAccepted)
}

// Decline marks a pending friend request from the user in the path as declined.
// POST /api/friends/:id/decline
func (h *FriendHandlers) Decline(c *gin.Context) {
	h.resolveRequest(c, store.FriendStatusDeclined)
}

func (h *FriendHandlers) resolveRequest(c *gin.Context, status store.FriendStatus) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	friendID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid friend id"})
		return
	}

	friendship, err := h.store.GetFriendship(c.Request.Context(), userID, friendID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "friend request not found"})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("failed to look up friendship")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	// Only the recipient of a pending request can resolve it.
	if friendship.Status != store.FriendStatusPending || friendship.FriendID != userID {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "no pending request from this user"})
		return
	}

	if err := h.store.UpdateFriendStatus(c.Request.Context(), userID, friendID, status); err != nil {
		h.log.Error().Err(err).Msg("failed to update friendship")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": string(status)})
}

// List returns the user's friendships, optionally filtered by ?status=.
// GET /api/friends
func (h *FriendHandlers) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var status *store.FriendStatus
	if raw := c.Query("status"); raw != "" {
		s := store.FriendStatus(raw)
		status = &s
	}

	friends, err := h.store.ListFriends(c.Request.Context(), userID, status)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list friends")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	out := make([]FriendResponse, 0, len(friends))
	for _, f := range friends {
		out = append(out, toFriendResponse(f))
	}
	c.JSON(http.StatusOK, gin.H{"friends": out})
}

func toFriendResponse(f *store.Friend) FriendResponse {
	return FriendResponse{
		ID:        f.ID,
		UserID:    f.UserID,
		FriendID:  f.FriendID,
		Status:    string(f.Status),
		CreatedAt: f.CreatedAt.UTC().Format(timeFormat),
	}
}
