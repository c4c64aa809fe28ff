package realtime

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/behex/chat-server/internal/proto"
)

// Conn is the transport handle owned by a live session. Implementations must
// serialize Send calls so delivery order per connection matches call order,
// and must tolerate Close being called more than once.
type Conn interface {
	// Send writes one outbound envelope. A non-nil error means the
	// connection is unusable.
	Send(env proto.Outbound) error

	// Close tears down the underlying transport.
	Close()
}

// Registry holds at most one live connection per user. All methods are safe
// for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	conns map[int64]Conn
	log   *zerolog.Logger
}

// NewRegistry constructs an empty connection registry.
func NewRegistry(logger *zerolog.Logger) *Registry {
	return &Registry{
		conns: make(map[int64]Conn),
		log:   logger,
	}
}

// Register installs conn as the user's live connection. If a connection was
// already registered for the user it is returned so the caller can close it;
// the replacement is atomic, lookups never observe a gap.
func (r *Registry) Register(userID int64, conn Conn) Conn {
	r.mu.Lock()
	evicted := r.conns[userID]
	r.conns[userID] = conn
	r.mu.Unlock()

	if evicted != nil {
		r.log.Info().Int64("user_id", userID).Msg("evicting previous connection")
	}
	return evicted
}

// Unregister removes the user's connection if present. No-op when absent.
func (r *Registry) Unregister(userID int64) {
	r.mu.Lock()
	delete(r.conns, userID)
	r.mu.Unlock()
}

// Release removes the user's entry only if it still refers to conn, and
// reports whether a different connection has taken the slot. A session evicted
// by a newer connection must not tear down its replacement's shared state.
func (r *Registry) Release(userID int64, conn Conn) (replaced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.conns[userID]
	if !ok {
		return false
	}
	if cur == conn {
		delete(r.conns, userID)
		return false
	}
	return true
}

// Get returns the user's live connection, or nil if none is registered.
func (r *Registry) Get(userID int64) Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[userID]
}

// SendTo attempts direct delivery to the user. It returns false if no
// connection is registered or the send fails; a failed connection is
// unregistered, a broken pipe means the connection is dead even without an
// explicit disconnect.
func (r *Registry) SendTo(userID int64, env proto.Outbound) bool {
	conn := r.Get(userID)
	if conn == nil {
		return false
	}

	if err := conn.Send(env); err != nil {
		r.log.Warn().Err(err).Int64("user_id", userID).Msg("send failed, dropping connection")
		r.Release(userID, conn)
		conn.Close()
		return false
	}
	return true
}
