package types

import (
	"time"
)

type Participant struct {
	SessionId    string    `json:"session_id"`
	JoinedAt     time.Time `json:"joined_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

type Message struct {
	SenderId   string    `json:"user_id"`
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}
