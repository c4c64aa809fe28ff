package realtime

import "github.com/rs/zerolog"

// Hub owns the process-wide realtime state: one connection registry, room
// membership index, presence tracker and typing tracker, plus the dispatcher
// fanning envelopes out over them. A single Hub is constructed at process
// start and injected into every session; nothing outside this package mutates
// the underlying maps directly.
type Hub struct {
	Presence   *Presence
	Registry   *Registry
	Rooms      *Rooms
	Typing     *Typing
	Dispatcher *Dispatcher
}

// NewHub constructs a hub with empty state.
func NewHub(logger *zerolog.Logger) *Hub {
	registry := NewRegistry(logger)
	rooms := NewRooms()
	return &Hub{
		Presence:   NewPresence(),
		Registry:   registry,
		Rooms:      rooms,
		Typing:     NewTyping(),
		Dispatcher: NewDispatcher(registry, rooms, logger),
	}
}
