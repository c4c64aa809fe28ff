package realtime

import "sync"

// Typing tracks which users are currently typing per room. Entries are
// advisory and have no expiry; a disconnecting user is removed explicitly.
// All methods are safe for concurrent use.
type Typing struct {
	mu     sync.RWMutex
	byRoom map[int64]map[int64]struct{}
}

// NewTyping constructs an empty typing tracker.
func NewTyping() *Typing {
	return &Typing{byRoom: make(map[int64]map[int64]struct{})}
}

// Set toggles the user's typing state in the room.
func (t *Typing) Set(roomID, userID int64, isTyping bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if isTyping {
		if t.byRoom[roomID] == nil {
			t.byRoom[roomID] = make(map[int64]struct{})
		}
		t.byRoom[roomID][userID] = struct{}{}
		return
	}

	if set := t.byRoom[roomID]; set != nil {
		delete(set, userID)
		if len(set) == 0 {
			delete(t.byRoom, roomID)
		}
	}
}

// ClearUser removes the user from every room's typing set.
func (t *Typing) ClearUser(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for roomID, set := range t.byRoom {
		delete(set, userID)
		if len(set) == 0 {
			delete(t.byRoom, roomID)
		}
	}
}

// UsersIn returns a snapshot of the users typing in the room.
func (t *Typing) UsersIn(roomID int64) []int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	users := make([]int64, 0, len(t.byRoom[roomID]))
	for userID := range t.byRoom[roomID] {
		users = append(users, userID)
	}
	return users
}
