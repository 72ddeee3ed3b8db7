package chat

import (
	"errors"
	"net"

	"github.com/rs/zerolog"

	"github.com/jiangkunoa/chat-practise/internal/store"
	"github.com/jiangkunoa/chat-practise/internal/token"
)

// TokenVerifier resolves a bearer token to its claims. *token.Manager
// implements it.
type TokenVerifier interface {
	Verify(tokenString string) (*token.Claims, error)
}

// Server accepts chat connections and runs one session per socket.
type Server struct {
	store      store.DataStore
	verifier   TokenVerifier
	registry   *Registry
	dispatcher *Dispatcher
	logger     zerolog.Logger

	ln net.Listener
}

// NewServer creates a chat server.
func NewServer(st store.DataStore, verifier TokenVerifier, logger zerolog.Logger) *Server {
	registry := NewRegistry()
	return &Server{
		store:      st,
		verifier:   verifier,
		registry:   registry,
		dispatcher: NewDispatcher(st, registry, logger),
		logger:     logger,
	}
}

// Registry exposes the connection registry, mainly for tests and diagnostics.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Start listens on addr and accepts connections in a background goroutine
// until Close is called.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("chat server listening")

	go s.acceptLoop(ln)
	return nil
}

// Serve accepts connections from an existing listener, blocking until the
// listener is closed.
func (s *Server) Serve(ln net.Listener) {
	s.ln = ln
	s.acceptLoop(ln)
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.logger.Error().Err(err).Msg("accept failed")
			}
			return
		}
		go s.run(conn)
	}
}

// Addr returns the listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Close stops accepting new connections. Existing sessions run until their
// transports fail.
func (s *Server) Close() error {
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}
