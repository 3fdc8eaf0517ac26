package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Session is one live connection. It is bound to at most one room at a time;
// the binding itself lives in the gateway's table, not here.
type Session struct {
	id        string
	conn      *websocket.Conn
	gateway   *Gateway
	log       zerolog.Logger
	send      chan *ServerMessage
	stop      chan struct{}
	closeOnce sync.Once
}

func NewSession(id string, conn *websocket.Conn, gw *Gateway, logger zerolog.Logger) *Session {
	return &Session{
		id:      id,
		conn:    conn,
		gateway: gw,
		log:     logger.With().Str("session", id).Logger(),
		send:    make(chan *ServerMessage, 256),
		stop:    make(chan struct{}),
	}
}

func (s *Session) Id() string {
	return s.id
}

func (s *Session) Write() {
	ticker := time.NewTicker(s.gateway.PingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
		s.log.Debug().Msg("write exiting")
	}()

	for {
		select {
		case msg, ok := <-s.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				s.log.Error().Err(err).Msg("failed to serialize message")
				continue
			}

			if !s.writeMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-s.stop:
			return
		case <-ticker.C:
			if !s.writeMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (s *Session) Read() {
	defer func() {
		s.conn.Close()
		s.cleanup()
		s.log.Debug().Msg("read exiting")
	}()

	s.conn.SetReadLimit(s.gateway.ReadLimit)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(appData string) error { s.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.log.Warn().Err(err).Msg("ws read")
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.log.Warn().Err(err).Msg("error parsing message")
			s.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		s.dispatch(&msg)
	}
}

// dispatch routes one decoded client message to the gateway. Requests for one
// session are handled in order on its read loop; cross-session interleaving
// is handled by the room and registry locks.
func (s *Session) dispatch(msg *ClientMessage) {
	msg.session = s
	msg.Timestamp = Now()

	switch {
	case msg.CreateRoom != nil:
		s.gateway.HandleCreateRoom(s, msg)
	case msg.Join != nil:
		s.gateway.HandleJoinRoom(s, msg)
	case msg.Leave != nil:
		s.gateway.HandleLeaveRoom(s, msg)
	case msg.Publish != nil:
		s.gateway.HandleSendTranscript(s, msg)
	default:
		s.queueMessage(ErrInvalidMessage(msg.Id))
	}
}

// queueMessage enqueues msg for delivery without blocking. It reports false
// if the session's buffer is full and the message was dropped.
func (s *Session) queueMessage(msg *ServerMessage) bool {
	select {
	case s.send <- msg:
	default:
		s.log.Warn().Msg("dropping message, send buffer full")
		return false
	}

	return true
}

func (s *Session) writeMessage(msgType int, msg []byte) bool {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := s.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			s.log.Warn().Err(err).Msg("write message")
		}
		return false
	}

	return true
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.stop)
	})
}

func (s *Session) cleanup() {
	s.gateway.HandleDisconnect(s)
	s.gateway.Deregister(s)
	s.close()
}
