package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/rs/zerolog"

	"github.com/parley-chat/parley/internal/config"
	"github.com/parley-chat/parley/internal/server"
)

// Server is the HTTP surface in front of the gateway: the WebSocket upgrade
// endpoint plus health diagnostics.
type Server struct {
	log            zerolog.Logger
	gw             *server.Gateway
	srv            *http.Server
	handler        http.Handler
	allowedOrigins []string
}

func NewServer(mux *http.ServeMux, logger zerolog.Logger, gw *server.Gateway, cfg *config.Config) *Server {
	s := &Server{
		log:            logger,
		gw:             gw,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /healthz", s.health)
	mux.HandleFunc("GET /ws", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
	)(mux)

	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{logger}),
		handlers.PrintRecoveryStack(true),
	)(h)

	s.handler = h
	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

// Handler exposes the middleware-wrapped handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("starting server")
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

// recoveryLogger adapts zerolog to the Println interface gorilla's recovery
// middleware expects.
type recoveryLogger struct {
	log zerolog.Logger
}

func (r recoveryLogger) Println(v ...interface{}) {
	r.log.Error().Msg(fmt.Sprint(v...))
}
