package realtime

import "sync"

// Rooms is the bidirectional index between conversations and the users joined
// to them for live delivery. Membership here is independent of durable
// participant records. All methods are safe for concurrent use.
type Rooms struct {
	mu      sync.RWMutex
	members map[int64]map[int64]struct{} // conversation -> users
	joined  map[int64]map[int64]struct{} // user -> conversations
}

// NewRooms constructs an empty membership index.
func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[int64]map[int64]struct{}),
		joined:  make(map[int64]map[int64]struct{}),
	}
}

// Join adds the user to the room. Idempotent.
func (r *Rooms) Join(userID, roomID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.members[roomID] == nil {
		r.members[roomID] = make(map[int64]struct{})
	}
	r.members[roomID][userID] = struct{}{}

	if r.joined[userID] == nil {
		r.joined[userID] = make(map[int64]struct{})
	}
	r.joined[userID][roomID] = struct{}{}
}

// Leave removes the user from the room. Idempotent. An emptied room is pruned.
func (r *Rooms) Leave(userID, roomID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(userID, roomID)
}

func (r *Rooms) leaveLocked(userID, roomID int64) {
	if set := r.members[roomID]; set != nil {
		delete(set, userID)
		if len(set) == 0 {
			delete(r.members, roomID)
		}
	}
	if set := r.joined[userID]; set != nil {
		delete(set, roomID)
		if len(set) == 0 {
			delete(r.joined, userID)
		}
	}
}

// LeaveAll removes the user from every room it was joined to and returns the
// affected room ids.
func (r *Rooms) LeaveAll(userID int64) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms := make([]int64, 0, len(r.joined[userID]))
	for roomID := range r.joined[userID] {
		rooms = append(rooms, roomID)
	}
	for _, roomID := range rooms {
		r.leaveLocked(userID, roomID)
	}
	return rooms
}

// MembersOf returns a snapshot of the users joined to the room.
func (r *Rooms) MembersOf(roomID int64) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]int64, 0, len(r.members[roomID]))
	for userID := range r.members[roomID] {
		members = append(members, userID)
	}
	return members
}

// RoomsOf returns a snapshot of the rooms the user is joined to.
func (r *Rooms) RoomsOf(userID int64) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]int64, 0, len(r.joined[userID]))
	for roomID := range r.joined[userID] {
		rooms = append(rooms, roomID)
	}
	return rooms
}

// IsMember reports whether the user is joined to the room.
func (r *Rooms) IsMember(userID, roomID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[roomID][userID]
	return ok
}
