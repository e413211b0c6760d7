package pairingstub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait       = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for simplicity
	},
}

// Server exposes a Hub over HTTP: the socket at /ws and the online
// counter at /api/users/online.
type Server struct {
	hub    *Hub
	log    *slog.Logger
	router chi.Router
	wg     sync.WaitGroup
}

// NewServer creates a Server around hub.
func NewServer(hub *Hub, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{hub: hub, log: log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/ws", s.handleWebSocket)
	r.Get("/api/users/online", s.handleOnline)
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is cancelled, then drops every client.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	s.log.Info("Pairing stub started", "addr", listener.Addr().String())

	errc := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.hub.DropAll()
	s.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

func (s *Server) handleOnline(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{"count": s.hub.ClientCount()})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Failed to upgrade connection", "error", err)
		return
	}

	c := &client{
		id:       uuid.NewString(),
		outgoing: make(chan []byte, outgoingBuffer),
		drop:     func() { _ = conn.NetConn().Close() },
	}

	s.wg.Add(1)
	go s.serveClient(c, conn)
}

// serveClient owns conn. Writes happen on a separate goroutine fed by c.outgoing.
func (s *Server) serveClient(c *client, conn *websocket.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for data := range c.outgoing {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.log.Debug("Failed to send frame", "client", c.id, "error", err)
				return
			}
		}
	}()

	s.hub.register(c)
	defer func() {
		s.hub.unregister(c)
		close(c.outgoing)
		<-writerDone
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("WebSocket closed", "client", c.id, "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		s.hub.handle(c, data)
	}
}
