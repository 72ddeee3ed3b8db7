package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jiangkunoa/chat-practise/internal/metrics"
	"github.com/jiangkunoa/chat-practise/internal/models"
)

// authTimeout bounds the wait for the first (token) frame of a connection.
const authTimeout = 30 * time.Second

// ErrAuth wraps all handshake failures. No registry entry exists when it is
// returned; the caller just closes the socket.
var ErrAuth = errors.New("auth failed")

// session owns one authenticated socket: a reader loop decoding commands and
// a writer loop draining the outbound queue, with a once-guarded teardown
// whichever side fails first.
type session struct {
	conn     net.Conn
	user     *models.User
	handle   *Handle
	registry *Registry
	disp     *Dispatcher
	logger   zerolog.Logger

	closeOnce sync.Once
}

// handshake reads and verifies the auth frame, resolving the connection's
// identity. The transport is left positioned exactly after the auth frame.
func (s *Server) handshake(conn net.Conn, fr *FrameReader) (*models.User, error) {
	if err := conn.SetReadDeadline(time.Now().Add(authTimeout)); err != nil {
		return nil, fmt.Errorf("%w: set deadline: %v", ErrAuth, err)
	}
	frame, err := fr.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("%w: read token frame: %v", ErrAuth, err)
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return nil, fmt.Errorf("%w: clear deadline: %v", ErrAuth, err)
	}

	if len(frame) == 0 || !utf8.Valid(frame) {
		return nil, fmt.Errorf("%w: token is empty or not valid UTF-8", ErrAuth)
	}

	claims, err := s.verifier.Verify(string(frame))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuth, err)
	}

	user, err := s.store.GetUser(context.Background(), claims.Sub)
	if err != nil {
		return nil, fmt.Errorf("%w: lookup user: %v", ErrAuth, err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %d not found", ErrAuth, claims.Sub)
	}
	return user, nil
}

// run services one accepted connection until its transport fails.
func (s *Server) run(conn net.Conn) {
	metrics.ConnectionsTotal.Inc()
	logger := s.logger.With().
		Str("conn_id", uuid.NewString()).
		Str("remote_addr", conn.RemoteAddr().String()).
		Logger()
	logger.Info().Msg("new connection")

	fr := NewFrameReader(conn)

	user, err := s.handshake(conn, fr)
	if err != nil {
		metrics.AuthFailures.Inc()
		logger.Info().Err(err).Msg("handshake failed")
		conn.Close()
		return
	}
	logger = logger.With().Uint64("user_id", user.ID).Str("username", user.Username).Logger()
	logger.Info().Msg("authenticated")

	sess := &session{
		conn:     conn,
		user:     user,
		handle:   NewHandle(),
		registry: s.registry,
		disp:     s.dispatcher,
		logger:   logger,
	}
	s.registry.Register(user.ID, sess.handle)

	go sess.writeLoop()
	sess.readLoop(fr)
}

// teardown deregisters the session, stops the peer loop and releases the
// socket. Safe to call from either loop.
func (s *session) teardown() {
	s.closeOnce.Do(func() {
		s.registry.Deregister(s.user.ID, s.handle)
		s.handle.Close()
		s.conn.Close()
		s.logger.Info().Msg("connection closed")
	})
}

// readLoop decodes frames into envelopes and dispatches them one at a time.
// Transport and decode errors are connection-fatal; handler errors are not.
func (s *session) readLoop(fr *FrameReader) {
	defer s.teardown()

	ctx := context.Background()
	for {
		frame, err := fr.ReadFrame()
		if err != nil {
			s.logger.Info().Err(err).Msg("read loop ended")
			return
		}

		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			s.logger.Info().Err(err).Msg("malformed envelope")
			return
		}

		s.disp.Dispatch(ctx, s.user, env)
	}
}

// writeLoop frames and flushes queued outbound payloads until the session
// stops or a write fails.
func (s *session) writeLoop() {
	defer s.teardown()

	fw := NewFrameWriter(s.conn)
	for {
		select {
		case msg := <-s.handle.out:
			if err := fw.WriteFrame(msg); err != nil {
				s.logger.Info().Err(err).Msg("write loop ended")
				return
			}
		case <-s.handle.Done():
			return
		}
	}
}
