package realtime

import (
	"sync"
	"time"
)

// Presence tracks which users are online and when offline users were last
// seen. All methods are safe for concurrent use.
type Presence struct {
	mu       sync.RWMutex
	online   map[int64]struct{}
	lastSeen map[int64]time.Time
}

// NewPresence constructs an empty presence tracker.
func NewPresence() *Presence {
	return &Presence{
		online:   make(map[int64]struct{}),
		lastSeen: make(map[int64]time.Time),
	}
}

// SetOnline marks the user as online.
func (p *Presence) SetOnline(userID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[userID] = struct{}{}
}

// SetOffline marks the user as offline and records the last-seen timestamp,
// which is returned.
func (p *Presence) SetOffline(userID int64) time.Time {
	now := time.Now().UTC()
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.online, userID)
	p.lastSeen[userID] = now
	return now
}

// IsOnline reports whether the user is currently online.
func (p *Presence) IsOnline(userID int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.online[userID]
	return ok
}

// LastSeen returns the user's last-seen timestamp. The second return value is
// false if the user has never gone offline.
func (p *Presence) LastSeen(userID int64) (time.Time, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ts, ok := p.lastSeen[userID]
	return ts, ok
}
