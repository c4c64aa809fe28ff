package proto

import "time"

// Inbound message type values accepted from clients.
const (
	InboundTypeMessage     = "message"
	InboundTypeTyping      = "typing"
	InboundTypeReadReceipt = "read_receipt"
	InboundTypePing        = "ping"
)

// Outbound message type values pushed to clients.
const (
	OutboundTypeMessage     = "message"
	OutboundTypeTyping      = "typing"
	OutboundTypeReadReceipt = "read_receipt"
	OutboundTypeUserOnline  = "user_online"
	OutboundTypeUserOffline = "user_offline"
	OutboundTypeError       = "error"
	OutboundTypePong        = "pong"
)

// Error codes carried in error envelopes.
const (
	ErrCodeInvalidFormat   = "INVALID_FORMAT"
	ErrCodeInvalidJSON     = "INVALID_JSON"
	ErrCodeMissingFields   = "MISSING_FIELDS"
	ErrCodeUnsupportedType = "UNSUPPORTED_TYPE"
	ErrCodeSendMessage     = "SEND_MESSAGE_ERROR"
	ErrCodeReadReceipt     = "READ_RECEIPT_ERROR"
	ErrCodeProcessing      = "PROCESSING_ERROR"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type           string `json:"type"`
	ConversationID int64  `json:"conversation_id,omitempty"`
	Content        string `json:"content,omitempty"`
	MessageType    string `json:"message_type,omitempty"`
}

// Outbound is the envelope for messages pushed to the client. Exactly one of
// Message or Data is set depending on Type; Timestamp is always set.
type Outbound struct {
	Type           string   `json:"type"`
	ConversationID int64    `json:"conversation_id,omitempty"`
	Message        *Message `json:"message,omitempty"`
	Data           any      `json:"data,omitempty"`
	Timestamp      string   `json:"timestamp"`
}

// Message is the wire shape of a persisted chat message.
type Message struct {
	ID             int64  `json:"id"`
	ConversationID int64  `json:"conversation_id"`
	SenderID       int64  `json:"sender_id"`
	Content        string `json:"content"`
	MessageType    string `json:"message_type"`
	CreatedAt      string `json:"created_at"`
	Sender         *User  `json:"sender,omitempty"`
}

// User identifies a user in outbound payloads.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// TypingData is the payload of a typing envelope.
type TypingData struct {
	User     *User `json:"user"`
	IsTyping bool  `json:"is_typing"`
}

// ReadReceiptData is the payload of a read_receipt envelope. The read marker
// is conversation-level, so no message id is carried.
type ReadReceiptData struct {
	User   *User  `json:"user"`
	ReadAt string `json:"read_at"`
}

// PresenceData is the payload of user_online/user_offline envelopes.
type PresenceData struct {
	UserID    int64  `json:"user_id"`
	IsOnline  bool   `json:"is_online"`
	Timestamp string `json:"timestamp"`
}

// ErrorData is the payload of an error envelope.
type ErrorData struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Now formats the current time the way outbound envelopes expect.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// NewError builds an error envelope with the given code and message.
func NewError(code, message string) Outbound {
	return Outbound{
		Type:      OutboundTypeError,
		Data:      ErrorData{Message: message, Code: code},
		Timestamp: Now(),
	}
}

// NewPong builds a pong envelope.
func NewPong() Outbound {
	return Outbound{Type: OutboundTypePong, Timestamp: Now()}
}
