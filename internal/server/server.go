package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chatrelay/internal/auth"
	"chatrelay/internal/store"
)

// Server wires the registry, relay, message log, and authenticator behind
// the HTTP surface. Each instance is self-contained so tests can run several
// side by side.
type Server struct {
	cfg      *Config
	registry *Registry
	relay    *Relay
	auth     *auth.Authenticator
	messages store.Log
	upgrader websocket.Upgrader
	log      *slog.Logger

	mu      sync.Mutex
	clients map[*Client]struct{}
	wg      sync.WaitGroup
}

// NewServer assembles a relay server from its components.
func NewServer(cfg *Config, registry *Registry, relay *Relay, authenticator *auth.Authenticator, messages store.Log, log *slog.Logger) *Server {
	origins := newOriginPolicy(cfg.AllowedOrigins)
	return &Server{
		cfg:      cfg,
		registry: registry,
		relay:    relay,
		auth:     authenticator,
		messages: messages,
		log:      log,
		clients:  make(map[*Client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
	}
}

// HTTPServer creates the http.Server carrying the full route table, with
// timeouts suitable for production use. Read timeouts apply to the initial
// request only; upgraded WebSocket connections manage their own deadlines.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Port,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// track adds a live client and accounts for its two pump goroutines.
func (s *Server) track(c *Client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		c.writePump()
	}()
	go func() {
		defer func() {
			s.untrack(c)
			s.wg.Done()
		}()
		c.readPump()
	}()
}

func (s *Server) untrack(c *Client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

// Shutdown stops the HTTP listener, closes every live connection, and waits
// for the pump goroutines to drain, up to timeout.
func (s *Server) Shutdown(httpServer *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		s.log.Warn("http shutdown", "error", err)
	}

	s.mu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.teardown()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			s.log.Debug("closing client on shutdown", "error", err)
		}
	}
	s.log.Info("closed client connections", "count", len(clients))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("shutdown complete")
		return nil
	case <-ctx.Done():
		s.log.Warn("shutdown timeout reached, some goroutines may still be running")
		return ctx.Err()
	}
}
