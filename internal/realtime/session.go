package realtime

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/behex/chat-server/internal/proto"
	"github.com/behex/chat-server/internal/store"
)

// Read errors a Conn may surface for payload-level faults. The session replies
// with the matching error envelope and keeps the connection open.
var (
	// ErrInvalidJSON marks an inbound frame that is not valid JSON.
	ErrInvalidJSON = errors.New("invalid json")
	// ErrInvalidFormat marks valid JSON that does not fit the envelope shape.
	ErrInvalidFormat = errors.New("invalid message format")
)

// SessionConn extends Conn with the inbound side used by the session loop.
type SessionConn interface {
	Conn

	// ReadEnvelope blocks for the next inbound envelope. It returns
	// ErrInvalidJSON or ErrInvalidFormat (possibly wrapped) for payload
	// faults; any other error is a transport fault ending the session.
	ReadEnvelope(ctx context.Context) (proto.Inbound, error)
}

// ChatService is the durable-side collaborator the session delegates to.
// Implementations own validation against conversation records and their own
// transaction discipline.
type ChatService interface {
	// UserConversationIDs lists the conversations the user durably belongs to.
	UserConversationIDs(ctx context.Context, userID int64) ([]int64, error)

	// ParticipantIDs lists the durable participants of a conversation.
	ParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error)

	// SendMessage validates membership and persists the message.
	SendMessage(ctx context.Context, senderID, conversationID int64, content, msgType string) (*store.Message, error)

	// MarkConversationRead persists a conversation-level read marker.
	MarkConversationRead(ctx context.Context, userID, conversationID int64) error
}

// Session drives one authenticated connection through its lifecycle: register
// with the hub, auto-join rooms, process inbound envelopes, and clean up on
// close. A Session instance is used for exactly one connection and discarded.
type Session struct {
	user *store.User
	conn SessionConn
	hub  *Hub
	chat ChatService
	log  zerolog.Logger
}

// NewSession builds a session for an authenticated user over conn.
func NewSession(hub *Hub, chat ChatService, user *store.User, conn SessionConn, logger *zerolog.Logger) *Session {
	return &Session{
		user: user,
		conn: conn,
		hub:  hub,
		chat: chat,
		log:  logger.With().Int64("user_id", user.ID).Str("username", user.Username).Logger(),
	}
}

// Run registers the session and processes envelopes until the transport fails
// or ctx is canceled. Cleanup always runs, including on abrupt cancellation.
func (s *Session) Run(ctx context.Context) error {
	if evicted := s.hub.Registry.Register(s.user.ID, s.conn); evicted != nil {
		evicted.Close()
	}
	s.hub.Presence.SetOnline(s.user.ID)
	defer s.teardown()

	s.autoJoinRooms(ctx)
	s.log.Info().Msg("session active")

	s.broadcastPresence(true, proto.Now(), s.hub.Rooms.RoomsOf(s.user.ID))

	for {
		inbound, err := s.conn.ReadEnvelope(ctx)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidJSON):
				s.sendError(proto.ErrCodeInvalidJSON, "Invalid JSON format")
				continue
			case errors.Is(err, ErrInvalidFormat):
				s.sendError(proto.ErrCodeInvalidFormat, "Invalid message format")
				continue
			}
			s.log.Debug().Err(err).Msg("session read ended")
			return err
		}

		s.handleEnvelope(ctx, inbound)
	}
}

// teardown removes every trace of the session from the shared registries and
// announces the user offline. The registry removal is guarded so a session
// evicted by a newer connection does not tear down its replacement. All state
// mutation here is synchronous; the offline broadcast happens last, once the
// registries are consistent.
func (s *Session) teardown() {
	if replaced := s.hub.Registry.Release(s.user.ID, s.conn); replaced {
		// Evicted by a newer connection for the same user: presence, rooms
		// and typing state now belong to the replacement session.
		s.log.Info().Msg("session evicted by newer connection")
		return
	}
	s.releaseSharedState()
}

// releaseSharedState flips presence offline, leaves every room, clears typing
// state and announces the user offline. Each map has its own lock, so a
// reconnect for the same user can register between these sections; the final
// registry re-check catches that case, restores presence and suppresses the
// offline broadcast. The reconnected session's room joins may still have been
// stripped, which the fallback delivery path tolerates until the next
// reconnect.
func (s *Session) releaseSharedState() {
	lastSeen := s.hub.Presence.SetOffline(s.user.ID)
	leftRooms := s.hub.Rooms.LeaveAll(s.user.ID)
	s.hub.Typing.ClearUser(s.user.ID)

	if s.hub.Registry.Get(s.user.ID) != nil {
		s.hub.Presence.SetOnline(s.user.ID)
		s.log.Info().Msg("reconnect raced session cleanup, presence restored")
		return
	}

	s.log.Info().Time("last_seen", lastSeen).Msg("session closed")

	s.broadcastPresence(false, lastSeen.Format(time.RFC3339Nano), leftRooms)
}

// autoJoinRooms joins the live room of every conversation the user durably
// belongs to. A lookup failure degrades to no rooms; the fallback delivery
// path still reaches the user for new messages.
func (s *Session) autoJoinRooms(ctx context.Context) {
	convIDs, err := s.chat.UserConversationIDs(ctx, s.user.ID)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to list conversations for auto-join")
		return
	}
	for _, convID := range convIDs {
		s.hub.Rooms.Join(s.user.ID, convID)
	}
	s.log.Debug().Int("rooms", len(convIDs)).Msg("auto-joined conversation rooms")
}

// broadcastPresence sends a user_online/user_offline envelope to every other
// member of the given rooms, at most once per observer even when rooms share
// members.
func (s *Session) broadcastPresence(online bool, timestamp string, roomIDs []int64) {
	envType := proto.OutboundTypeUserOnline
	if !online {
		envType = proto.OutboundTypeUserOffline
	}
	env := proto.Outbound{
		Type: envType,
		Data: proto.PresenceData{
			UserID:    s.user.ID,
			IsOnline:  online,
			Timestamp: timestamp,
		},
		Timestamp: proto.Now(),
	}

	notified := make(map[int64]struct{})
	for _, roomID := range roomIDs {
		for _, memberID := range s.hub.Rooms.MembersOf(roomID) {
			if memberID == s.user.ID {
				continue
			}
			if _, seen := notified[memberID]; seen {
				continue
			}
			notified[memberID] = struct{}{}
			s.hub.Dispatcher.SendToUser(memberID, env)
		}
	}
}

// handleEnvelope routes one inbound envelope. A panic while processing is
// reported to the sender and never terminates the session.
func (s *Session) handleEnvelope(ctx context.Context, inbound proto.Inbound) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Any("panic", r).Str("type", inbound.Type).Msg("panic while handling envelope")
			s.sendError(proto.ErrCodeProcessing, "Error processing message")
		}
	}()

	switch inbound.Type {
	case proto.InboundTypeMessage:
		s.handleMessage(ctx, inbound)
	case proto.InboundTypeTyping:
		s.handleTyping(inbound)
	case proto.InboundTypeReadReceipt:
		s.handleReadReceipt(ctx, inbound)
	case proto.InboundTypePing:
		if err := s.conn.Send(proto.NewPong()); err != nil {
			s.log.Warn().Err(err).Msg("failed to send pong")
		}
	default:
		s.sendError(proto.ErrCodeUnsupportedType, "Unsupported message type: "+inbound.Type)
	}
}

func (s *Session) handleMessage(ctx context.Context, inbound proto.Inbound) {
	if inbound.ConversationID == 0 || inbound.Content == "" {
		s.sendError(proto.ErrCodeMissingFields, "conversation_id and content are required for messages")
		return
	}

	msg, err := s.chat.SendMessage(ctx, s.user.ID, inbound.ConversationID, inbound.Content, inbound.MessageType)
	if err != nil {
		s.log.Debug().Err(err).Int64("conversation_id", inbound.ConversationID).Msg("send message rejected")
		s.sendError(proto.ErrCodeSendMessage, reason(err, "failed to send message"))
		return
	}

	env := proto.Outbound{
		Type:           proto.OutboundTypeMessage,
		ConversationID: msg.ConversationID,
		Message: &proto.Message{
			ID:             msg.ID,
			ConversationID: msg.ConversationID,
			SenderID:       msg.SenderID,
			Content:        msg.Content,
			MessageType:    string(msg.Type),
			CreatedAt:      msg.CreatedAt.Format(time.RFC3339Nano),
			Sender:         s.wireUser(),
		},
		Timestamp: proto.Now(),
	}

	s.hub.Dispatcher.BroadcastToRoom(msg.ConversationID, env, s.user.ID)
	s.fallbackDeliver(ctx, msg.ConversationID, env)
}

// fallbackDeliver sends env directly to every durable participant who is
// online but not joined to the live room, covering drift between durable
// participation and room membership (e.g. a reconnect race).
func (s *Session) fallbackDeliver(ctx context.Context, conversationID int64, env proto.Outbound) {
	participants, err := s.chat.ParticipantIDs(ctx, conversationID)
	if err != nil {
		s.log.Warn().Err(err).Int64("conversation_id", conversationID).Msg("failed to list participants for fallback delivery")
		return
	}

	for _, participantID := range participants {
		if participantID == s.user.ID {
			continue
		}
		if !s.hub.Presence.IsOnline(participantID) || s.hub.Rooms.IsMember(participantID, conversationID) {
			continue
		}
		if s.hub.Dispatcher.SendToUser(participantID, env) {
			s.log.Debug().
				Int64("participant_id", participantID).
				Int64("conversation_id", conversationID).
				Msg("fallback delivery")
		}
	}
}

func (s *Session) handleTyping(inbound proto.Inbound) {
	if inbound.ConversationID == 0 {
		s.sendError(proto.ErrCodeMissingFields, "conversation_id is required for typing indicators")
		return
	}

	// Typing unless the client explicitly says otherwise.
	isTyping := inbound.Content != "false"
	s.hub.Typing.Set(inbound.ConversationID, s.user.ID, isTyping)

	env := proto.Outbound{
		Type:           proto.OutboundTypeTyping,
		ConversationID: inbound.ConversationID,
		Data: proto.TypingData{
			User:     s.wireUser(),
			IsTyping: isTyping,
		},
		Timestamp: proto.Now(),
	}
	s.hub.Dispatcher.BroadcastToRoom(inbound.ConversationID, env, s.user.ID)
}

func (s *Session) handleReadReceipt(ctx context.Context, inbound proto.Inbound) {
	if inbound.ConversationID == 0 {
		s.sendError(proto.ErrCodeMissingFields, "conversation_id is required for read receipts")
		return
	}

	if err := s.chat.MarkConversationRead(ctx, s.user.ID, inbound.ConversationID); err != nil {
		s.log.Debug().Err(err).Int64("conversation_id", inbound.ConversationID).Msg("read receipt rejected")
		s.sendError(proto.ErrCodeReadReceipt, reason(err, "failed to mark conversation as read"))
		return
	}

	env := proto.Outbound{
		Type:           proto.OutboundTypeReadReceipt,
		ConversationID: inbound.ConversationID,
		Data: proto.ReadReceiptData{
			User:   s.wireUser(),
			ReadAt: proto.Now(),
		},
		Timestamp: proto.Now(),
	}
	s.hub.Dispatcher.BroadcastToRoom(inbound.ConversationID, env, s.user.ID)
}

func (s *Session) sendError(code, message string) {
	if err := s.conn.Send(proto.NewError(code, message)); err != nil {
		s.log.Warn().Err(err).Str("code", code).Msg("failed to send error envelope")
	}
}

func (s *Session) wireUser() *proto.User {
	return &proto.User{ID: s.user.ID, Username: s.user.Username}
}

// reason extracts a user-facing message from a collaborator error, falling
// back to a generic one for errors with no coded reason.
func reason(err error, fallback string) string {
	var coded interface{ Reason() string }
	if errors.As(err, &coded) {
		return coded.Reason()
	}
	return fallback
}
