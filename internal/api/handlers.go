package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"github.com/teris-io/shortid"

	"github.com/parley-chat/parley/internal/server"
)

type HealthResponse struct {
	Status     string `json:"status"`
	ServerAddr string `json:"server_addr"`
}

func (s *Server) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("json encode")
	}
}

// health reports process reachability for client-side diagnostics. It has no
// effect on room state.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJson(w, http.StatusOK, HealthResponse{
		Status:     "ok",
		ServerAddr: s.srv.Addr,
	})
}

// serveWs upgrades the connection, mints the session identifier, and starts
// the session's read and write pumps.
func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// non-browser clients send no origin header
				return true
			}

			return lo.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("error upgrading connection")
		return
	}

	sid, err := shortid.Generate()
	if err != nil {
		s.log.Error().Err(err).Msg("error generating session id")
		conn.Close()
		return
	}

	sess := server.NewSession(sid, conn, s.gw, s.log)
	s.gw.Register(sess)

	go sess.Write()
	go sess.Read()
}
