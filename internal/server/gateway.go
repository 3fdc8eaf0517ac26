package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/parley-chat/parley/internal/stats"
)

const (
	statActiveRooms     = "ActiveRooms"
	statActiveSessions  = "ActiveSessions"
	statRoomsCreated    = "RoomsCreated"
	statMessagesRelayed = "MessagesRelayed"
)

// Gateway is the real-time connection layer. It tracks live sessions, owns
// the explicit session-to-room binding table, and orchestrates the registry
// and room mutations triggered by client requests. The binding table is the
// single source of truth for which room a session may talk to.
type Gateway struct {
	log      zerolog.Logger
	registry *RoomRegistry
	stats    stats.StatsProvider

	// ReadLimit and PingPeriod are connection tuning knobs, overridable from
	// configuration before sessions are accepted.
	ReadLimit  int64
	PingPeriod time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
	bindings map[string]string
}

func NewGateway(logger zerolog.Logger, registry *RoomRegistry, sp stats.StatsProvider) *Gateway {
	gw := &Gateway{
		log:        logger,
		registry:   registry,
		stats:      sp,
		ReadLimit:  maxMessageSize,
		PingPeriod: pingInterval,
		sessions:   make(map[string]*Session),
		bindings:   make(map[string]string),
	}

	sp.RegisterMetric(statActiveRooms)
	sp.RegisterMetric(statActiveSessions)
	sp.RegisterMetric(statRoomsCreated)
	sp.RegisterMetric(statMessagesRelayed)

	return gw
}

func (gw *Gateway) Register(s *Session) {
	gw.mu.Lock()
	defer gw.mu.Unlock()

	gw.sessions[s.id] = s
	gw.stats.Incr(statActiveSessions)
	gw.log.Info().Str("session", s.id).Msg("session connected")
}

func (gw *Gateway) Deregister(s *Session) {
	gw.mu.Lock()
	defer gw.mu.Unlock()

	if _, ok := gw.sessions[s.id]; ok {
		delete(gw.sessions, s.id)
		gw.stats.Decr(statActiveSessions)
		gw.log.Info().Str("session", s.id).Msg("session disconnected")
	}
}

// HandleCreateRoom creates a room with the requesting session as its sole
// member. A session already bound to a room is rejected; it must leave first.
func (gw *Gateway) HandleCreateRoom(s *Session, msg *ClientMessage) {
	if _, bound := gw.boundRoom(s.id); bound {
		s.queueMessage(ErrAlreadyInRoom(msg.Id))
		return
	}

	room, err := gw.registry.CreateRoom()
	if err != nil {
		gw.log.Error().Err(err).Msg("create room")
		s.queueMessage(ErrInternalError(msg.Id))
		return
	}

	if _, _, err := room.join(s); err != nil {
		// cannot happen on a fresh room, but never leave one stranded
		gw.registry.DeleteRoom(room.id)
		s.queueMessage(ErrInternalError(msg.Id))
		return
	}
	gw.bind(s.id, room.id)

	gw.stats.Incr(statActiveRooms)
	gw.stats.Incr(statRoomsCreated)

	s.queueMessage(NoErrOK(msg.Id, map[string]any{
		"room_id": room.id,
	}))
}

// HandleJoinRoom adds the session to an existing room, responds with the
// post-join count plus transcript backfill, and notifies the other members.
func (gw *Gateway) HandleJoinRoom(s *Session, msg *ClientMessage) {
	if _, bound := gw.boundRoom(s.id); bound {
		s.queueMessage(ErrAlreadyInRoom(msg.Id))
		return
	}

	room, ok := gw.registry.GetRoom(msg.Join.RoomId)
	if !ok {
		s.queueMessage(ErrRoomNotFound(msg.Id))
		return
	}

	count, backfill, err := room.join(s)
	switch {
	case errors.Is(err, errRoomFull):
		s.queueMessage(ErrRoomFull(msg.Id))
		return
	case errors.Is(err, errRoomClosed):
		// the last member left between lookup and join
		s.queueMessage(ErrRoomNotFound(msg.Id))
		return
	case err != nil:
		gw.log.Error().Err(err).Str("room", room.id).Msg("join room")
		s.queueMessage(ErrInternalError(msg.Id))
		return
	}
	gw.bind(s.id, room.id)

	gw.log.Info().Str("session", s.id).Str("room", room.id).Int("user_count", count).Msg("session joined room")

	s.queueMessage(NoErrOK(msg.Id, map[string]any{
		"user_count": count,
		"messages":   backfill,
	}))

	room.broadcast(newUserJoined(s.id, count), s.id)
}

// HandleLeaveRoom removes the session from the room it names. Leaving a room
// the session is not bound to is a silent no-op.
func (gw *Gateway) HandleLeaveRoom(s *Session, msg *ClientMessage) {
	roomId, bound := gw.boundRoom(s.id)
	if !bound || roomId != msg.Leave.RoomId {
		gw.log.Debug().Str("session", s.id).Str("room", msg.Leave.RoomId).Msg("leave for unbound room, ignoring")
		return
	}

	gw.leave(s, roomId)
}

// HandleDisconnect is the transport-initiated involuntary leave. The room is
// resolved through the binding table, so a session that never joined a room
// is a no-op.
func (gw *Gateway) HandleDisconnect(s *Session) {
	roomId, bound := gw.boundRoom(s.id)
	if !bound {
		return
	}

	gw.leave(s, roomId)
}

// HandleSendTranscript appends a recognized-speech message to the room's
// transcript and relays it to the other members. A sender that is not bound
// to the named room is dropped silently since the client may be acting on a
// stale room reference.
func (gw *Gateway) HandleSendTranscript(s *Session, msg *ClientMessage) {
	roomId, bound := gw.boundRoom(s.id)
	if !bound || roomId != msg.Publish.RoomId {
		gw.log.Debug().Str("session", s.id).Str("room", msg.Publish.RoomId).Msg("dropping transcript from non-member")
		return
	}

	room, ok := gw.registry.GetRoom(roomId)
	if !ok {
		return
	}

	rec, ok := room.appendTranscript(s.id, msg.Publish.Text, msg.Publish.Confidence)
	if !ok {
		return
	}

	gw.stats.Incr(statMessagesRelayed)
	room.broadcast(newTranscriptEvent(rec), s.id)
}

func (gw *Gateway) leave(s *Session, roomId string) {
	gw.unbind(s.id)

	room, ok := gw.registry.GetRoom(roomId)
	if !ok {
		return
	}

	count, removed := room.leave(s.id)
	if !removed {
		return
	}

	if count == 0 {
		gw.registry.DeleteRoom(roomId)
		gw.stats.Decr(statActiveRooms)
		gw.log.Info().Str("room", roomId).Msg("last participant left, room deleted")
		return
	}

	gw.log.Info().Str("session", s.id).Str("room", roomId).Int("user_count", count).Msg("session left room")
	room.broadcast(newUserLeft(s.id, count), s.id)
}

func (gw *Gateway) bind(sessionId, roomId string) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	gw.bindings[sessionId] = roomId
}

func (gw *Gateway) unbind(sessionId string) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	delete(gw.bindings, sessionId)
}

func (gw *Gateway) boundRoom(sessionId string) (string, bool) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	roomId, ok := gw.bindings[sessionId]
	return roomId, ok
}

func (gw *Gateway) sessionCount() int {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	return len(gw.sessions)
}

// Shutdown stops every live session and waits for their read loops to finish
// cleanup, or until ctx expires.
func (gw *Gateway) Shutdown(ctx context.Context) error {
	gw.mu.Lock()
	for _, s := range gw.sessions {
		s.close()
	}
	gw.mu.Unlock()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if gw.sessionCount() == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
