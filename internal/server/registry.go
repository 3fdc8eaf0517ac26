package server

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// roomIdLength is the length of the URL-safe code participants exchange
	// out-of-band to join a room.
	roomIdLength = 6
	// maxIdAttempts bounds the regeneration loop on id collision. With a
	// 16^6 id space a single retry is already rare.
	maxIdAttempts = 5
)

// RoomRegistry owns the map of live rooms. Rooms exist only while they have
// participants; the gateway deletes a room as soon as its last member leaves.
type RoomRegistry struct {
	log zerolog.Logger

	mu    sync.Mutex
	rooms map[string]*Room
}

func NewRoomRegistry(logger zerolog.Logger) *RoomRegistry {
	return &RoomRegistry{
		log:   logger,
		rooms: make(map[string]*Room),
	}
}

// CreateRoom allocates an empty room under a fresh identifier.
func (rr *RoomRegistry) CreateRoom() (*Room, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	for range maxIdAttempts {
		id := newRoomId()
		if _, taken := rr.rooms[id]; taken {
			rr.log.Warn().Str("room", id).Msg("room id collision, regenerating")
			continue
		}

		room := &Room{
			id:        id,
			createdAt: Now(),
			members:   make(map[string]*member),
		}
		rr.rooms[id] = room
		rr.log.Info().Str("room", id).Msg("created room")

		return room, nil
	}

	return nil, errIdExhausted
}

func (rr *RoomRegistry) GetRoom(id string) (*Room, bool) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	room, ok := rr.rooms[id]
	return room, ok
}

// DeleteRoom removes the room from the registry. Deleting an absent room is
// a no-op.
func (rr *RoomRegistry) DeleteRoom(id string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if _, ok := rr.rooms[id]; ok {
		delete(rr.rooms, id)
		rr.log.Info().Str("room", id).Msg("removed room")
	}
}

func (rr *RoomRegistry) Len() int {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	return len(rr.rooms)
}

func newRoomId() string {
	// The first six characters of a v4 UUID are plain hex, which keeps the
	// code URL-safe and easy to type.
	return uuid.NewString()[:roomIdLength]
}
