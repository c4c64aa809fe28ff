package chat

// Error codes for domain errors surfaced to clients.
const (
	ErrCodeNotParticipant  = "not_participant"
	ErrCodeNotFound        = "not_found"
	ErrCodeNotFriends      = "not_friends"
	ErrCodeBadConversation = "bad_conversation"
	ErrCodeEmptyMessage    = "empty_message"
)

// Error wraps a code and human-readable message for a domain fault. The
// message is safe to surface to the client verbatim.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Reason returns the user-facing message.
func (e *Error) Reason() string {
	return e.Message
}

func domainError(code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}
