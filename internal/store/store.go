package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// User represents a user in the system.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsGuest      bool
	SessionID    string // For guest user session tracking
	CreatedAt    time.Time
}

// ConversationType defines different kinds of conversations.
type ConversationType string

const (
	ConversationTypePrivate ConversationType = "private"
	ConversationTypeGroup   ConversationType = "group"
)

// Conversation represents a durable conversation between users.
type Conversation struct {
	ID        int64
	Type      ConversationType
	Name      string // empty for private conversations
	CreatedBy int64
	CreatedAt time.Time
}

// Participant represents durable membership of a user in a conversation.
type Participant struct {
	UserID         int64
	ConversationID int64
	JoinedAt       time.Time
	LastReadAt     *time.Time
}

// MessageType defines the kind of message content.
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

// Message represents a persisted chat message.
type Message struct {
	ID             int64
	ConversationID int64
	SenderID       int64
	Content        string
	Type           MessageType
	CreatedAt      time.Time
}

// FriendStatus defines friend relationship status.
type FriendStatus string

const (
	FriendStatusPending  FriendStatus = "pending"
	FriendStatusAccepted FriendStatus = "accepted"
	FriendStatusDeclined FriendStatus = "declined"
)

// Friend represents a friend relationship. UserID is the requester.
type Friend struct {
	ID        int64
	UserID    int64
	FriendID  int64
	Status    FriendStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// CreateGuestUser creates a temporary guest user with session ID.
	CreateGuestUser(ctx context.Context, sessionID string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// ConversationStore handles conversation persistence.
type ConversationStore interface {
	// CreateConversation creates a conversation and adds all participants.
	// The creator must be included in participantIDs.
	CreateConversation(ctx context.Context, convType ConversationType, name string, createdBy int64, participantIDs []int64) (*Conversation, error)

	// GetConversationByID retrieves a conversation by ID.
	GetConversationByID(ctx context.Context, id int64) (*Conversation, error)

	// GetPrivateConversation finds an existing private conversation between two users.
	GetPrivateConversation(ctx context.Context, userA, userB int64) (*Conversation, error)

	// ListUserConversations lists all conversations the user participates in.
	ListUserConversations(ctx context.Context, userID int64) ([]*Conversation, error)

	// ListParticipants lists user IDs participating in a conversation.
	ListParticipants(ctx context.Context, conversationID int64) ([]int64, error)

	// IsParticipant checks durable membership of a user in a conversation.
	IsParticipant(ctx context.Context, userID, conversationID int64) (bool, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message and fills in its ID and CreatedAt.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListMessages retrieves messages from a conversation, newest first.
	// If beforeID is non-nil, returns messages older than that ID.
	ListMessages(ctx context.Context, conversationID int64, limit int, beforeID *int64) ([]*Message, error)

	// MarkConversationRead updates the participant's last_read_at marker.
	MarkConversationRead(ctx context.Context, userID, conversationID int64, at time.Time) error
}

// FriendStore handles friend persistence.
type FriendStore interface {
	// CreateFriendRequest creates a new friend request (pending status).
	CreateFriendRequest(ctx context.Context, userID, friendID int64) (*Friend, error)

	// UpdateFriendStatus updates the status of a friendship.
	UpdateFriendStatus(ctx context.Context, userID, friendID int64, status FriendStatus) error

	// GetFriendship retrieves a friendship between two users (in either direction).
	GetFriendship(ctx context.Context, userID, friendID int64) (*Friend, error)

	// ListFriends lists friendships for a user, optionally filtered by status.
	ListFriends(ctx context.Context, userID int64, status *FriendStatus) ([]*Friend, error)

	// IsFriend checks if two users are friends (accepted status in either direction).
	IsFriend(ctx context.Context, userID, friendID int64) (bool, error)
}

// Store combines all persistence interfaces.
type Store interface {
	UserStore
	ConversationStore
	MessageStore
	FriendStore

	// Close releases the underlying database handle.
	Close() error
}
