package realtime

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/behex/chat-server/internal/proto"
)

// Dispatcher fans outbound envelopes out to room audiences with best-effort
// semantics. Individual send failures are absorbed (the registry drops the
// failing connection) and never block or abort delivery to other recipients.
type Dispatcher struct {
	registry *Registry
	rooms    *Rooms
	log      *zerolog.Logger
}

// NewDispatcher constructs a dispatcher over the given registry and room index.
func NewDispatcher(registry *Registry, rooms *Rooms, logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		rooms:    rooms,
		log:      logger,
	}
}

// BroadcastToRoom delivers env to every user joined to the room, except
// excludeUser (0 excludes nobody). Sends run concurrently and are all joined
// before returning; the count of successful deliveries is returned. Delivery
// order across recipients is unspecified.
func (d *Dispatcher) BroadcastToRoom(roomID int64, env proto.Outbound, excludeUser int64) int {
	members := d.rooms.MembersOf(roomID)
	if len(members) == 0 {
		d.log.Debug().Int64("room_id", roomID).Msg("broadcast to empty room")
		return 0
	}

	var wg sync.WaitGroup
	var delivered atomic.Int64
	attempted := 0

	for _, userID := range members {
		if userID == excludeUser {
			continue
		}
		attempted++
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			if d.registry.SendTo(userID, env) {
				delivered.Add(1)
			}
		}(userID)
	}
	wg.Wait()

	d.log.Debug().
		Int64("room_id", roomID).
		Str("type", env.Type).
		Int64("delivered", delivered.Load()).
		Int("attempted", attempted).
		Msg("room broadcast")

	return int(delivered.Load())
}

// SendToUser delivers env directly to one user, the fallback path for durable
// participants not joined to the live room.
func (d *Dispatcher) SendToUser(userID int64, env proto.Outbound) bool {
	return d.registry.SendTo(userID, env)
}
