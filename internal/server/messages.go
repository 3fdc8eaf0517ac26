package server

import (
	"net/http"
	"time"

	"github.com/parley-chat/parley/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is the inbound envelope. Exactly one of the request fields is
// expected to be set; the Id correlates the server's response with the
// request on the client side.
type ClientMessage struct {
	BaseMessage
	CreateRoom *CreateRoom     `json:"create_room,omitempty"`
	Join       *JoinRoom       `json:"join_room,omitempty"`
	Leave      *LeaveRoom      `json:"leave_room,omitempty"`
	Publish    *SendTranscript `json:"send_transcript,omitempty"`
	session    *Session        `json:"-"`
}

type CreateRoom struct{}

type JoinRoom struct {
	RoomId string `json:"room_id"`
}

type LeaveRoom struct {
	RoomId string `json:"room_id"`
}

type SendTranscript struct {
	RoomId     string  `json:"room_id"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// ServerMessage is the outbound envelope: either a correlated response to a
// client request or a room event pushed to the other members.
type ServerMessage struct {
	BaseMessage
	Response *Response `json:"response,omitempty"`
	Event    *Event    `json:"event,omitempty"`
}

type Response struct {
	ResponseCode int            `json:"response_code"`
	Error        string         `json:"error,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

type Event struct {
	UserJoined *UserJoined      `json:"user_joined,omitempty"`
	UserLeft   *UserLeft        `json:"user_left,omitempty"`
	Transcript *TranscriptEvent `json:"transcript,omitempty"`
}

type UserJoined struct {
	UserId    string `json:"user_id"`
	UserCount int    `json:"user_count"`
}

type UserLeft struct {
	UserId    string `json:"user_id"`
	UserCount int    `json:"user_count"`
}

type TranscriptEvent struct {
	UserId     string    `json:"user_id"`
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

func newTranscriptEvent(msg types.Message) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: msg.Timestamp,
		},
		Event: &Event{
			Transcript: &TranscriptEvent{
				UserId:     msg.SenderId,
				Text:       msg.Text,
				Confidence: msg.Confidence,
				Timestamp:  msg.Timestamp,
			},
		},
	}
}

func newUserJoined(sessionId string, count int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Event: &Event{
			UserJoined: &UserJoined{
				UserId:    sessionId,
				UserCount: count,
			},
		},
	}
}

func newUserLeft(sessionId string, count int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Event: &Event{
			UserLeft: &UserLeft{
				UserId:    sessionId,
				UserCount: count,
			},
		},
	}
}

func NoErrOK(id int, data map[string]any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func ErrRoomNotFound(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusNotFound,
			Error:        "room not found",
		},
	}
}

func ErrRoomFull(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "room full",
		},
	}
}

func ErrAlreadyInRoom(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusConflict,
			Error:        "already in a room",
		},
	}
}

func ErrInternalError(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusInternalServerError,
			Error:        "internal server error",
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
