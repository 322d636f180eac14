// Package server exposes the command protocol over websocket alongside
// the metrics and health endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raoulx24/snapkeeper/internal/config"
	"github.com/raoulx24/snapkeeper/internal/logging"
	"github.com/raoulx24/snapkeeper/internal/session"
)

// Stats reports the published snapshot count and total size.
type Stats interface {
	Stats() (int, uint64)
}

// Server is a supervised HTTP service.
type Server struct {
	addr            string
	path            string
	origins         []string
	shutdownTimeout time.Duration

	reg      *session.Registry
	dispatch session.Dispatcher
	stats    Stats
	log      logging.Logger

	upgrader websocket.Upgrader
	handler  http.Handler
	bound    atomic.Pointer[string]
}

func New(cfg config.ServerConfig, reg *session.Registry, dispatch session.Dispatcher, stats Stats, log logging.Logger) *Server {
	s := &Server{
		addr:            cfg.Address,
		path:            cfg.Path,
		origins:         cfg.CORSOrigins,
		shutdownTimeout: cfg.ShutdownTimeout,
		reg:             reg,
		dispatch:        dispatch,
		stats:           stats,
		log:             log.With("component", "server"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		MaxAge:         300,
	}))

	r.Get(s.path, s.handleWebsocket)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

// Addr is the bound listen address, empty until Serve is listening.
func (s *Server) Addr() string {
	if p := s.bound.Load(); p != nil {
		return *p
	}
	return ""
}

// Serve listens until ctx ends, then stops accepting, closes every
// session and waits for them within the shutdown timeout.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}
	bound := ln.Addr().String()
	s.bound.Store(&bound)

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.Info("listening", "addr", bound, "path", s.path)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("http shutdown incomplete", "error", err)
		}
		<-errCh

		s.reg.CloseAll()
		if err := s.reg.Wait(shutdownCtx); err != nil {
			s.log.Warn("sessions still open at shutdown deadline", "open", s.reg.Len())
		}
		s.log.Info("server stopped")
		return nil
	}
}

func (s *Server) String() string { return "http-server" }

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		s.log.Debug("websocket upgrade failed", "error", err)
		return
	}

	sess, err := s.reg.Open(conn)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}
	sess.Serve(r.Context(), s.dispatch)
}

type healthResponse struct {
	Status    string `json:"status"`
	Snapshots int    `json:"snapshots"`
	Bytes     uint64 `json:"bytes"`
	Sessions  int    `json:"sessions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	n, bytes := s.stats.Stats()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:    "ok",
		Snapshots: n,
		Bytes:     bytes,
		Sessions:  s.reg.Len(),
	})
}

// checkOrigin accepts requests without an Origin header and those whose
// origin is listed in the CORS configuration.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(s.origins, "*") || slices.Contains(s.origins, origin)
}
