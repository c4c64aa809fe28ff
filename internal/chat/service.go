package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/behex/chat-server/internal/store"
)

// Service owns conversation and message rules on top of the store: who may
// talk to whom, what gets persisted, and what the realtime layer may deliver.
type Service struct {
	store store.Store
	log   *zerolog.Logger
}

// NewService creates a new chat service.
func NewService(st store.Store, logger *zerolog.Logger) *Service {
	return &Service{store: st, log: logger}
}

// SendMessage validates that the sender durably participates in the
// conversation and persists the message.
func (s *Service) SendMessage(ctx context.Context, senderID, conversationID int64, content, msgType string) (*store.Message, error) {
	if content == "" {
		return nil, domainError(ErrCodeEmptyMessage, "message content must not be empty")
	}

	ok, err := s.store.IsParticipant(ctx, senderID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("check participant: %w", err)
	}
	if !ok {
		return nil, domainError(ErrCodeNotParticipant, "You are not a participant in this conversation")
	}

	msg := &store.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Type:           normalizeMessageType(msgType),
	}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}
	return msg, nil
}

// MarkConversationRead persists the user's conversation-level read marker.
func (s *Service) MarkConversationRead(ctx context.Context, userID, conversationID int64) error {
	ok, err := s.store.IsParticipant(ctx, userID, conversationID)
	if err != nil {
		return fmt.Errorf("check participant: %w", err)
	}
	if !ok {
		return domainError(ErrCodeNotParticipant, "You are not a participant in this conversation")
	}

	if err := s.store.MarkConversationRead(ctx, userID, conversationID, time.Now()); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// UserConversationIDs lists ids of conversations the user durably belongs to.
func (s *Service) UserConversationIDs(ctx context.Context, userID int64) ([]int64, error) {
	conversations, err := s.store.ListUserConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	ids := make([]int64, 0, len(conversations))
	for _, c := range conversations {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

// ParticipantIDs lists the durable participants of a conversation.
func (s *Service) ParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error) {
	return s.store.ListParticipants(ctx, conversationID)
}

// IsParticipant checks durable membership of a user in a conversation.
func (s *Service) IsParticipant(ctx context.Context, userID, conversationID int64) (bool, error) {
	return s.store.IsParticipant(ctx, userID, conversationID)
}

// UserConversations lists the conversations the user participates in.
func (s *Service) UserConversations(ctx context.Context, userID int64) ([]*store.Conversation, error) {
	return s.store.ListUserConversations(ctx, userID)
}

// CreateConversation creates a conversation for the creator and peers.
// Private conversations require exactly one peer who is an accepted friend of
// the creator, and reuse an existing private conversation if one exists.
func (s *Service) CreateConversation(ctx context.Context, creatorID int64, convType store.ConversationType, name string, peerIDs []int64) (*store.Conversation, error) {
	switch convType {
	case store.ConversationTypePrivate:
		if len(peerIDs) != 1 {
			return nil, domainError(ErrCodeBadConversation, "Private conversations must have exactly one other participant")
		}
		peerID := peerIDs[0]

		isFriend, err := s.store.IsFriend(ctx, creatorID, peerID)
		if err != nil {
			return nil, fmt.Errorf("check friendship: %w", err)
		}
		if !isFriend {
			return nil, domainError(ErrCodeNotFriends, "You can only start conversations with friends")
		}

		existing, err := s.store.GetPrivateConversation(ctx, creatorID, peerID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("find private conversation: %w", err)
		}
		if existing != nil {
			return existing, nil
		}
	case store.ConversationTypeGroup:
		if len(peerIDs) == 0 {
			return nil, domainError(ErrCodeBadConversation, "Group conversations need at least one other participant")
		}
	default:
		return nil, domainError(ErrCodeBadConversation, "unknown conversation type")
	}

	for _, peerID := range peerIDs {
		if _, err := s.store.GetUserByID(ctx, peerID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, domainError(ErrCodeNotFound, fmt.Sprintf("User with ID %d not found", peerID))
			}
			return nil, fmt.Errorf("get user: %w", err)
		}
	}

	participantIDs := append([]int64{creatorID}, peerIDs...)
	conv, err := s.store.CreateConversation(ctx, convType, name, creatorID, participantIDs)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	s.log.Info().
		Int64("conversation_id", conv.ID).
		Str("type", string(convType)).
		Int("participants", len(participantIDs)).
		Msg("conversation created")
	return conv, nil
}

// ConversationMessages returns a page of messages, newest first, after
// checking the requester participates in the conversation.
func (s *Service) ConversationMessages(ctx context.Context, userID, conversationID int64, limit int, beforeID *int64) ([]*store.Message, error) {
	ok, err := s.store.IsParticipant(ctx, userID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("check participant: %w", err)
	}
	if !ok {
		return nil, domainError(ErrCodeNotParticipant, "You are not a participant in this conversation")
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.ListMessages(ctx, conversationID, limit, beforeID)
}

func normalizeMessageType(msgType string) store.MessageType {
	switch store.MessageType(msgType) {
	case store.MessageTypeImage:
		return store.MessageTypeImage
	case store.MessageTypeFile:
		return store.MessageTypeFile
	case store.MessageTypeSystem:
		return store.MessageTypeSystem
	default:
		return store.MessageTypeText
	}
}
