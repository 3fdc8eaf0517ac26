package server

import (
	"fmt"
	"testing"
	"time"

	"github.com/parley-chat/parley/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoom() *Room {
	return &Room{
		id:        "abc123",
		createdAt: Now(),
		members:   make(map[string]*member),
	}
}

func newTestSession(t *testing.T, id string) *Session {
	return &Session{
		id:   id,
		log:  testutil.TestLogger(t),
		send: make(chan *ServerMessage, 16),
		stop: make(chan struct{}),
	}
}

func receiveMessage(t *testing.T, s *Session) *ServerMessage {
	t.Helper()
	select {
	case msg := <-s.send:
		require.NotNil(t, msg, "expected a queued message")
		return msg
	default:
		t.Fatalf("expected a message queued for session %q, but found none", s.id)
		return nil
	}
}

func assertNoMessage(t *testing.T, s *Session) {
	t.Helper()
	select {
	case msg := <-s.send:
		t.Fatalf("expected no message for session %q, got %+v", s.id, msg)
	default:
	}
}

func Test_join_leave(t *testing.T) {
	room := newTestRoom()

	a := newTestSession(t, "sess-a")
	count, backfill, err := room.join(a)
	require.NoError(t, err, "expected join to succeed")
	assert.Equal(t, 1, count, "expected count to reflect state after join")
	assert.NotNil(t, backfill, "expected non-nil backfill")
	assert.Len(t, backfill, 0, "expected empty backfill for a fresh room")

	b := newTestSession(t, "sess-b")
	count, _, err = room.join(b)
	require.NoError(t, err, "expected second join to succeed")
	assert.Equal(t, 2, count, "expected count of 2 after second join")

	count, removed := room.leave(a.id)
	assert.True(t, removed, "expected leave to remove member")
	assert.Equal(t, 1, count, "expected count to reflect state after leave")

	count, removed = room.leave(a.id)
	assert.False(t, removed, "expected repeated leave to be a no-op")
	assert.Equal(t, 1, count, "expected count unchanged after no-op leave")

	count, removed = room.leave(b.id)
	assert.True(t, removed, "expected leave to remove last member")
	assert.Equal(t, 0, count, "expected empty room")
	assert.True(t, room.closed, "expected empty room to be marked closed")
}

func Test_join_netCount(t *testing.T) {
	room := newTestRoom()

	// interleaved joins and leaves always net out
	joins, leaves := 0, 0
	for i := range 8 {
		s := newTestSession(t, fmt.Sprintf("sess-%d", i))
		_, _, err := room.join(s)
		require.NoError(t, err, "expected join to succeed")
		joins++

		if i%2 == 1 {
			_, removed := room.leave(s.id)
			require.True(t, removed, "expected leave to succeed")
			leaves++
		}
	}

	assert.Equal(t, joins-leaves, room.memberCount(), "expected member count to equal net joins minus leaves")
	assert.Len(t, room.memberIds(), joins-leaves, "expected member ids to match count")
}

func Test_join_capacity(t *testing.T) {
	room := newTestRoom()

	for i := range maxRoomSize - 1 {
		_, _, err := room.join(newTestSession(t, fmt.Sprintf("sess-%d", i)))
		require.NoError(t, err, "expected join %d to succeed", i)
	}

	// joining at maxRoomSize-1 brings the room to capacity
	count, _, err := room.join(newTestSession(t, "sess-last"))
	require.NoError(t, err, "expected join at capacity-1 to succeed")
	assert.Equal(t, maxRoomSize, count, "expected room to be at capacity")

	// joining at capacity fails
	_, _, err = room.join(newTestSession(t, "sess-over"))
	assert.ErrorIs(t, err, errRoomFull, "expected join at capacity to fail with room full")
	assert.Equal(t, maxRoomSize, room.memberCount(), "expected rejected join to leave membership unchanged")
}

func Test_join_closedRoom(t *testing.T) {
	room := newTestRoom()

	s := newTestSession(t, "sess-a")
	_, _, err := room.join(s)
	require.NoError(t, err, "expected join to succeed")
	room.leave(s.id)

	_, _, err = room.join(newTestSession(t, "sess-b"))
	assert.ErrorIs(t, err, errRoomClosed, "expected join on closed room to fail")
}

func Test_appendTranscript(t *testing.T) {
	t.Run("member append", func(t *testing.T) {
		room := newTestRoom()
		s := newTestSession(t, "sess-a")
		_, _, err := room.join(s)
		require.NoError(t, err, "expected join to succeed")

		before, ok := room.participant(s.id)
		require.True(t, ok, "expected participant record")

		time.Sleep(5 * time.Millisecond)

		msg, ok := room.appendTranscript(s.id, "hello", 0.9)
		require.True(t, ok, "expected append from member to succeed")
		assert.Equal(t, s.id, msg.SenderId, "expected sender to be recorded")
		assert.Equal(t, "hello", msg.Text, "expected text to be recorded")
		assert.Equal(t, 0.9, msg.Confidence, "expected confidence to be recorded")
		assert.False(t, msg.Timestamp.IsZero(), "expected server-assigned timestamp")
		assert.Equal(t, 1, room.transcriptSize(), "expected one transcript entry")

		after, ok := room.participant(s.id)
		require.True(t, ok, "expected participant record")
		assert.True(t, after.LastActiveAt.After(before.LastActiveAt),
			"expected lastActiveAt to be advanced on send")
	})

	t.Run("non-member append is dropped", func(t *testing.T) {
		room := newTestRoom()
		_, _, err := room.join(newTestSession(t, "sess-a"))
		require.NoError(t, err, "expected join to succeed")

		_, ok := room.appendTranscript("stranger", "hi", 0.5)
		assert.False(t, ok, "expected append from non-member to be rejected")
		assert.Equal(t, 0, room.transcriptSize(), "expected transcript to be unchanged")
	})
}

func Test_broadcast(t *testing.T) {
	room := newTestRoom()

	a := newTestSession(t, "sess-a")
	b := newTestSession(t, "sess-b")
	c := newTestSession(t, "sess-c")
	for _, s := range []*Session{a, b, c} {
		_, _, err := room.join(s)
		require.NoError(t, err, "expected join to succeed")
	}

	msg := newUserJoined(a.id, 3)
	room.broadcast(msg, a.id)

	assertNoMessage(t, a)
	for _, s := range []*Session{b, c} {
		got := receiveMessage(t, s)
		require.NotNil(t, got.Event, "expected an event message")
		require.NotNil(t, got.Event.UserJoined, "expected a user_joined event")
		assert.Equal(t, a.id, got.Event.UserJoined.UserId, "expected joining user id")
		assert.Equal(t, 3, got.Event.UserJoined.UserCount, "expected post-join count")
	}
}
