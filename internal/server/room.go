package server

import (
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/parley-chat/parley/internal/types"
)

// maxRoomSize is the hard cap on concurrent participants in a room.
const maxRoomSize = 10

type member struct {
	session      *Session
	joinedAt     time.Time
	lastActiveAt time.Time
}

// Room holds the membership set and transcript of a single chat room. Every
// read-modify-write sequence (capacity check + insert, append + trim, member
// check + fan-out) runs under mu so interleaved sessions never observe a
// stale count.
type Room struct {
	id        string
	createdAt time.Time

	mu         sync.Mutex
	members    map[string]*member
	transcript transcriptLog
	// closed is set when the last member leaves; a closed room never accepts
	// a join even if a stale reference to it is still held.
	closed bool
}

func (r *Room) Id() string {
	return r.id
}

func (r *Room) CreatedAt() time.Time {
	return r.createdAt
}

// join registers the session and returns the post-join member count along
// with the transcript backfill for the new member.
func (r *Room) join(s *Session) (int, []types.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, nil, errRoomClosed
	}
	if len(r.members) >= maxRoomSize {
		return 0, nil, errRoomFull
	}

	now := Now()
	r.members[s.id] = &member{
		session:      s,
		joinedAt:     now,
		lastActiveAt: now,
	}

	return len(r.members), r.transcript.tail(backfillLimit), nil
}

// leave removes the session if present and returns the post-leave member
// count. The second return reports whether the session was a member. A room
// left empty is marked closed; the caller is responsible for dropping it
// from the registry.
func (r *Room) leave(sessionId string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[sessionId]; !ok {
		return len(r.members), false
	}

	delete(r.members, sessionId)
	if len(r.members) == 0 {
		r.closed = true
	}

	return len(r.members), true
}

// appendTranscript records a message from the given session, stamping it with
// the server clock and updating the sender's activity time. It reports false
// if the sender is not a member, in which case nothing is recorded.
func (r *Room) appendTranscript(sessionId, text string, confidence float64) (types.Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[sessionId]
	if !ok || r.closed {
		return types.Message{}, false
	}

	msg := types.Message{
		SenderId:   sessionId,
		Text:       text,
		Confidence: confidence,
		Timestamp:  Now(),
	}
	r.transcript.append(msg)
	m.lastActiveAt = msg.Timestamp

	return msg, true
}

// broadcast queues msg to every member except skip. Delivery is best-effort;
// a member with a full send buffer misses the event.
func (r *Room) broadcast(msg *ServerMessage, skip string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, m := range r.members {
		if id == skip {
			continue
		}
		m.session.queueMessage(msg)
	}
}

func (r *Room) memberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

func (r *Room) memberIds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Keys(r.members)
}

func (r *Room) transcriptSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transcript.size()
}

func (r *Room) participant(sessionId string) (types.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[sessionId]
	if !ok {
		return types.Participant{}, false
	}

	return types.Participant{
		SessionId:    sessionId,
		JoinedAt:     m.joinedAt,
		LastActiveAt: m.lastActiveAt,
	}, true
}
