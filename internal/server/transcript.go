package server

import (
	"github.com/parley-chat/parley/internal/types"
)

const (
	// transcriptLimit is the maximum number of messages retained per room.
	transcriptLimit = 100
	// backfillLimit is the number of messages sent to a joining session.
	backfillLimit = 50
)

// transcriptLog is the bounded, append-only message history of a room.
// It is not safe for concurrent use; the owning room's lock guards it.
type transcriptLog struct {
	entries []types.Message
}

func (t *transcriptLog) append(msg types.Message) {
	t.entries = append(t.entries, msg)
	if len(t.entries) > transcriptLimit {
		n := copy(t.entries, t.entries[len(t.entries)-transcriptLimit:])
		t.entries = t.entries[:n]
	}
}

// tail returns up to the last n messages in chronological order. The result
// is a copy and never nil, so it serializes as an empty list for new rooms.
func (t *transcriptLog) tail(n int) []types.Message {
	if n > len(t.entries) {
		n = len(t.entries)
	}
	out := make([]types.Message, 0, n)
	if n > 0 {
		out = append(out, t.entries[len(t.entries)-n:]...)
	}
	return out
}

func (t *transcriptLog) size() int {
	return len(t.entries)
}
