package http

import (
	"context"
	stdhttp "net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lawfx/ScrumPokerServer/internal/core"
	"github.com/lawfx/ScrumPokerServer/internal/proto"
)

// defaultHeartbeatInterval is how often the session sweep runs.
const defaultHeartbeatInterval = 10 * time.Second

// TokenVerifier authenticates the in-band {token} message.
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

// SessionServer upgrades WebSocket connections and owns their lifecycle. A
// connection is unauthenticated until its first valid {token} message; the
// periodic sweep evicts connections that never authenticate or stop answering
// pings.
type SessionServer struct {
	lobby    *core.Lobby
	verifier TokenVerifier
	interval time.Duration
	log      zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// session is the per-connection state machine: open → authenticated → closed,
// one way only.
type session struct {
	id     string
	conn   *websocket.Conn
	cancel context.CancelFunc

	mu       sync.Mutex
	authed   bool
	alive    bool
	username string
}

func (s *session) markAlive() {
	s.mu.Lock()
	s.alive = true
	s.mu.Unlock()
}

func (s *session) authenticate(username string) {
	s.mu.Lock()
	s.authed = true
	s.username = username
	s.mu.Unlock()
}

func (s *session) isAuthed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authed
}

// NewSessionServer builds a session server. A non-positive interval picks the
// production default; tests inject short ones.
func NewSessionServer(lobby *core.Lobby, verifier TokenVerifier, interval time.Duration, logger *zerolog.Logger) *SessionServer {
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	return &SessionServer{
		lobby:    lobby,
		verifier: verifier,
		interval: interval,
		log:      logger.With().Str("component", "sessions").Logger(),
		sessions: make(map[string]*session),
	}
}

// Run sweeps sessions until ctx is cancelled. Each sweep closes connections
// that missed the previous ping or never authenticated, then pings the rest;
// an answered ping flips the alive flag back before the next sweep.
func (sv *SessionServer) Run(ctx context.Context) {
	ticker := time.NewTicker(sv.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sv.sweep(ctx)
		}
	}
}

func (sv *SessionServer) sweep(ctx context.Context) {
	sv.mu.Lock()
	snapshot := make([]*session, 0, len(sv.sessions))
	for _, s := range sv.sessions {
		snapshot = append(snapshot, s)
	}
	sv.mu.Unlock()

	for _, s := range snapshot {
		s.mu.Lock()
		username := s.username
		switch {
		case !s.alive:
			s.mu.Unlock()
			sv.log.Info().Str("conn", s.id).Str("user", username).Msg("missed heartbeat, closing")
			_ = s.conn.Close(websocket.StatusCode(proto.CloseMissedHeartbeat), "missed heartbeat")
		case !s.authed:
			s.mu.Unlock()
			sv.log.Info().Str("conn", s.id).Msg("unauthenticated at sweep, closing")
			_ = s.conn.Close(websocket.StatusCode(proto.CloseUnauthenticated), "not authenticated")
		default:
			s.alive = false
			s.mu.Unlock()
			go func(s *session) {
				pingCtx, cancel := context.WithTimeout(ctx, sv.interval)
				defer cancel()
				if err := s.conn.Ping(pingCtx); err == nil {
					s.markAlive()
				}
			}(s)
		}
	}
}

// ServeHTTP upgrades the connection and runs its read loop to completion.
func (sv *SessionServer) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		sv.log.Error().Err(err).Msg("ws accept error")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	s := &session{
		id:     uuid.NewString(),
		conn:   conn,
		cancel: cancel,
		alive:  true,
	}

	sv.mu.Lock()
	sv.sessions[s.id] = s
	sv.mu.Unlock()

	sv.log.Debug().Str("conn", s.id).Msg("connection opened")

	defer func() {
		cancel()
		sv.mu.Lock()
		delete(sv.sessions, s.id)
		sv.mu.Unlock()
		sv.lobby.OnCloseConnection(s.id)
		_ = conn.Close(websocket.StatusNormalClosure, "closing")
		sv.log.Debug().Str("conn", s.id).Msg("connection closed")
	}()

	sv.readLoop(ctx, s)
}

func (sv *SessionServer) readLoop(ctx context.Context, s *session) {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			return
		}

		inbound, err := proto.ParseInbound(data)
		if err != nil {
			sv.log.Debug().Err(err).Str("conn", s.id).Msg("malformed message dropped")
			continue
		}

		if !s.isAuthed() {
			if inbound.Kind != proto.InboundToken {
				sv.log.Debug().Str("conn", s.id).Msg("message before authentication dropped")
				continue
			}
			if !sv.handleToken(ctx, s, inbound.Token) {
				return
			}
			continue
		}

		switch inbound.Kind {
		case proto.InboundToken:
			// already authenticated, nothing to do
		case proto.InboundRequestEstimate:
			if err := sv.lobby.OnEstimateRequest(s.id, inbound.TaskID); err != nil {
				sv.log.Debug().Err(err).Str("conn", s.id).Msg("estimate request rejected")
			}
		case proto.InboundEstimate:
			if err := sv.lobby.OnEstimate(s.id, inbound.Estimate); err != nil {
				sv.log.Debug().Err(err).Str("conn", s.id).Msg("estimate rejected")
			}
		default:
			sv.log.Debug().Str("conn", s.id).Msg("unrecognized message dropped")
		}
	}
}

// handleToken authenticates the connection. It reports whether the read loop
// should continue; rejections close the socket with a domain close code.
func (sv *SessionServer) handleToken(ctx context.Context, s *session, token string) bool {
	username, err := sv.verifier.VerifyToken(token)
	if err != nil {
		sv.log.Info().Err(err).Str("conn", s.id).Msg("token rejected")
		_ = s.conn.Close(websocket.StatusCode(proto.CloseInvalidToken), "invalid token")
		return false
	}

	outbox, err := sv.lobby.OnNewConnection(s.id, username)
	if err != nil {
		sv.log.Info().Err(err).Str("conn", s.id).Str("user", username).Msg("connection rejected")
		_ = s.conn.Close(websocket.StatusCode(proto.CloseDomainRejected), "username already connected")
		return false
	}

	s.authenticate(username)
	s.markAlive()
	go sv.writeLoop(ctx, s, outbox)
	sv.log.Info().Str("conn", s.id).Str("user", username).Msg("connection authenticated")
	return true
}

func (sv *SessionServer) writeLoop(ctx context.Context, s *session, outbox <-chan proto.ServerMessage) {
	for {
		select {
		case msg, ok := <-outbox:
			if !ok {
				return
			}
			if err := wsjson.Write(ctx, s.conn, msg); err != nil {
				sv.log.Debug().Err(err).Str("conn", s.id).Msg("write failed")
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
