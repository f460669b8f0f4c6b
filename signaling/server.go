// Package signaling exchanges WebRTC session descriptions over a
// websocket. Offers and answers are sent with every ICE candidate already
// gathered, so a join is a single request and reply.
package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Path is where a Server is mounted.
const Path = "/signal"

const (
	maxMessageSize = 64 * 1024
	writeWait      = 10 * time.Second
)

var ErrVersionMismatch = errors.New("signaling: version mismatch")

// RemoteError is an error reported by the other side.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "signaling: remote error: " + e.Message
}

// JoinHandler turns an offer into an answer. It is called on the
// connection's goroutine.
type JoinHandler func(ctx context.Context, join JoinInvite) (answer string, err error)

// Server answers join invites. Each websocket connection may carry any
// number of joins.
type Server struct {
	Version string
	OnJoin  JoinHandler

	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

func NewServer(version string, onJoin JoinHandler, logger zerolog.Logger) *Server {
	return &Server{
		Version: version,
		OnJoin:  onJoin,
		logger:  logger.With().Str("component", "signaling").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug().Err(err).Msg("read error")
			}
			return
		}

		reply := s.route(r.Context(), message)
		if reply == nil {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
			s.logger.Debug().Err(err).Msg("write error")
			return
		}
	}
}

func (s *Server) handleJoinInvite(ctx context.Context, p JoinInvite) []byte {
	if p.Version != s.Version {
		s.logger.Info().Str("session", p.Session).Str("version", p.Version).Msg("rejecting join, version mismatch")
		return errorReply(p.Session, fmt.Sprintf("%s: host runs %s", ErrVersionMismatch, s.Version))
	}
	if p.Session == "" || p.Offer == "" {
		return errorReply(p.Session, "session and offer are required")
	}

	s.logger.Info().Str("session", p.Session).Str("nickname", p.Nickname).Msg("peer is joining")
	answer, err := s.OnJoin(ctx, p)
	if err != nil {
		s.logger.Warn().Err(err).Str("session", p.Session).Msg("failed to create session")
		return errorReply(p.Session, err.Error())
	}

	data, _ := json.Marshal(AcceptJoinPacket{
		Type:    TypeAcceptJoin,
		Version: s.Version,
		Session: p.Session,
		Answer:  answer,
	})
	return data
}

func errorReply(session, message string) []byte {
	data, _ := json.Marshal(ErrorPacket{Type: TypeError, Session: session, Message: message})
	return data
}
